package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

type Role string

const (
	RoleUser    Role = "user"
	RolePremium Role = "premium_user"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePremium, RoleAdmin:
		return true
	}
	return false
}

// Roles is stored as a JSON array in a text column.
type Roles []Role

func (r Roles) Has(role Role) bool {
	for _, candidate := range r {
		if candidate == role {
			return true
		}
	}
	return false
}

func (r Roles) Strings() []string {
	out := make([]string, len(r))
	for i, role := range r {
		out[i] = string(role)
	}
	return out
}

func RolesFromStrings(values []string) Roles {
	out := make(Roles, len(values))
	for i, v := range values {
		out[i] = Role(v)
	}
	return out
}

// Scan implements the sql.Scanner interface
func (r *Roles) Scan(value interface{}) error {
	if value == nil {
		*r = Roles{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("roles: unsupported column type")
	}

	var parsed Roles
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements the driver.Valuer interface
func (r Roles) Value() (driver.Value, error) {
	if r == nil {
		r = Roles{}
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/pkg/errors"
	"bailian-gateway/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxBodyBytes     = 10 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return services.ValidatePasswordStrength(fl.Field().String())
	})
	return v
}

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return errors.Validation(errors.ErrInvalidInput, "Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return errors.Validation(errors.ErrInvalidInput, "Invalid request")
	}

	fe := fieldErrors[0]
	var message string
	switch fe.Tag() {
	case "required":
		message = fmt.Sprintf("%s is required", fe.Field())
	case "email":
		message = fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "strongpassword":
		message = "Password must be at least 8 characters and contain uppercase, lowercase, digit and special character"
	case "min", "max", "gte", "lte", "gt":
		message = fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	case "oneof":
		message = fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		message = fmt.Sprintf("%s is invalid", fe.Field())
	}
	return errors.Validation(errors.ErrInvalidInput, message)
}

// Utility to parse pagination params from query. page takes precedence over
// offset; limit is capped at 100.
func ParsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageLimit
	offset = 0
	query := r.URL.Query()

	if limitParam := query.Get("limit"); limitParam != "" {
		if parsedLimit, err := strconv.Atoi(limitParam); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	if pageParam := query.Get("page"); pageParam != "" {
		if page, err := strconv.Atoi(pageParam); err == nil && page > 0 {
			return limit, (page - 1) * limit
		}
	}

	if offsetParam := query.Get("offset"); offsetParam != "" {
		if parsedOffset, err := strconv.Atoi(offsetParam); err == nil && parsedOffset >= 0 {
			offset = parsedOffset
		}
	}

	return limit, offset
}

func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Validation(errors.ErrInvalidInput, "Invalid id")
	}
	return uint(id), nil
}

// currentIdentity is set by AuthMiddleware on every protected route.
func currentIdentity(r *http.Request) (*services.Identity, error) {
	identity, ok := services.IdentityFromContext(r.Context())
	if !ok {
		return nil, errors.Authentication(nil, "Unauthorized")
	}
	return identity, nil
}

func clientInfo(r *http.Request) services.ClientInfo {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return services.ClientInfo{
		IP:            ip,
		UserAgent:     r.UserAgent(),
		CorrelationID: logger.CorrelationIDFromContext(r.Context()),
	}
}

package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"authentication", Authentication(nil, "bad token"), http.StatusUnauthorized},
		{"authorization", Authorization(nil, "admin only"), http.StatusForbidden},
		{"validation", Validation(ErrInvalidInput, "bad body"), http.StatusBadRequest},
		{"not found sentinel", fmt.Errorf("lookup: %w", ErrNotFound), http.StatusNotFound},
		{"conflict", Conflict("username taken"), http.StatusConflict},
		{"rate limited", RateLimited("slow down"), http.StatusTooManyRequests},
		{"upstream", Upstream(nil, "provider failed"), http.StatusBadGateway},
		{"wrapped database error", Wrap(ErrDatabaseError, "failed to create user"), http.StatusInternalServerError},
		{"plain error", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

func TestKindOfFindsOutermostClassifiedError(t *testing.T) {
	inner := NotFound("conversation not found")
	outer := fmt.Errorf("handler: %w", inner)

	assert.Equal(t, KindNotFound, KindOf(outer))
	assert.True(t, Is(outer, ErrNotFound))
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	err := Wrap(fmt.Errorf("pq: connection refused to 10.0.0.5"), "failed to get user by ID")
	assert.Equal(t, "Internal server error", PublicMessage(err))

	assert.Equal(t, "Username or email already exists", PublicMessage(Conflict("Username or email already exists")))
}

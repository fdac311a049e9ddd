package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bailian-gateway/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestParsePaginationParams(t *testing.T) {
	cases := []struct {
		query  string
		limit  int
		offset int
	}{
		{"", 20, 0},
		{"limit=5", 5, 0},
		{"limit=500", 100, 0},
		{"limit=-3", 20, 0},
		{"limit=10&offset=30", 10, 30},
		{"limit=10&page=3", 10, 20},
		{"page=2&offset=7", 20, 20},
		{"page=0&offset=7", 20, 7},
	}

	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/api/conversations?"+tc.query, nil)
		limit, offset := ParsePaginationParams(r)
		assert.Equal(t, tc.limit, limit, tc.query)
		assert.Equal(t, tc.offset, offset, tc.query)
	}
}

func TestDecodeAndValidate(t *testing.T) {
	decode := func(body string) error {
		r := httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(body))
		var req registrationRequest
		return decodeAndValidate(httptest.NewRecorder(), r, &req)
	}

	assert.NoError(t, decode(`{"username":"alice","email":"alice@example.com","password":"Passw0rd!"}`))

	err := decode(`{"username":"alice","email":"not-an-email","password":"Passw0rd!"}`)
	assert.Equal(t, http.StatusBadRequest, errors.HTTPStatus(err))
	assert.Contains(t, errors.PublicMessage(err), "email")

	err = decode(`{"username":"alice","email":"alice@example.com","password":"password"}`)
	assert.Contains(t, errors.PublicMessage(err), "Password must be")

	err = decode(`{"username":`)
	assert.Equal(t, "Invalid request body", errors.PublicMessage(err))
}

func TestChatRequestValidation(t *testing.T) {
	decode := func(body string) error {
		r := httptest.NewRequest(http.MethodPost, "/api/bailian/chat/completions", strings.NewReader(body))
		var req chatRequest
		return decodeAndValidate(httptest.NewRecorder(), r, &req)
	}

	assert.NoError(t, decode(`{"model":"qwen-max","messages":[{"role":"user","content":"hi"}]}`))
	assert.Error(t, decode(`{"model":"qwen-max","messages":[]}`))
	assert.Error(t, decode(`{"model":"qwen-max","messages":[{"role":"robot","content":"hi"}]}`))
	assert.Error(t, decode(`{"model":"qwen-max","messages":[{"role":"user","content":"hi"}],"temperature":3}`))
}

package middleware

import (
	"net/http"
	"strings"

	"bailian-gateway/internal/api/response"
	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/services"
)

func AuthMiddleware(authService services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractTokenFromHeader(r)
			if tokenString == "" {
				response.ErrorMessage(w, r, http.StatusUnauthorized, "Missing bearer token")
				return
			}

			identity, user, err := authService.Authenticate(r.Context(), tokenString)
			if err != nil {
				logger.WithContext(r.Context()).WithError(err).Debug("Token rejected")
				response.Error(w, r, err)
				return
			}

			ctx := services.WithIdentityContext(r.Context(), identity, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractBearerToken returns the token of an "Authorization: Bearer" header.
func ExtractBearerToken(r *http.Request) string {
	return extractTokenFromHeader(r)
}

func extractTokenFromHeader(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

package middleware

import (
	"net/http"

	"bailian-gateway/internal/api/response"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/services"
)

// RequireRole runs after AuthMiddleware and answers 403 unless the caller
// holds role.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := services.IdentityFromContext(r.Context())
			if !ok {
				response.ErrorMessage(w, r, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !identity.Roles.Has(role) {
				response.ErrorMessage(w, r, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AdminMiddleware() func(http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)
}

package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminUser is the basic auth user name for admin routes.
const AdminUser = "admin"

// HashPassword returns the bcrypt hash stored in ServerConfig.AdminHash.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// requireAdmin checks HTTP basic credentials against the admin hash.
func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok {
			h.unauthorized(w, r)
			return
		}
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(AdminUser)) == 1
		passErr := bcrypt.CompareHashAndPassword(h.config.AdminHash, []byte(pass))
		if !userOK || passErr != nil {
			slog.Warn("admin authentication failed", "remote", r.RemoteAddr)
			h.unauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", `Basic realm="baseline admin", charset="UTF-8"`)
	writeError(w, r, http.StatusUnauthorized, "Unauthorized", nil)
}

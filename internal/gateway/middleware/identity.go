package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"charmstudio/internal/gateway/entity"
)

// Identity headers are set by the authenticating proxy in front of the gateway.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// Identity stores the proxy-verified user on the request context. Requests
// without an identity pass through anonymous; RequireUser rejects them.
func Identity(admins []string) func(http.Handler) http.Handler {
	adminSet := make(map[entity.UserID]struct{}, len(admins))
	for _, a := range admins {
		if id := entity.NormalizeUserID(a); !id.IsZero() {
			adminSet[id] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := entity.NewUser(r.Header.Get(HeaderUserID), r.Header.Get(HeaderUserEmail))
			if u.ID.IsZero() {
				next.ServeHTTP(w, r)
				return
			}
			_, u.Admin = adminSet[u.ID]
			next.ServeHTTP(w, r.WithContext(entity.WithUser(r.Context(), u)))
		})
	}
}

// RequireUser answers 401 unless Identity found a user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := entity.UserFrom(r.Context()); !ok {
			unauthorized(w, "missing user identity")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin answers 401 for anonymous requests and 403 for non-admins.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := entity.UserFrom(r.Context())
		if !ok {
			unauthorized(w, "missing user identity")
			return
		}
		if !u.Admin {
			writeError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ParseAdmins splits a comma separated id list.
func ParseAdmins(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusUnauthorized, "unauthorized", msg)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"kind": kind, "message": msg},
	})
}

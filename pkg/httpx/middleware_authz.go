package httpx

import (
	"net/http"
)

// RequireRole enforces a minimum role. The hierarchy is supplied by the
// caller as a low-to-high ordered list of role names; a request whose role
// is missing or not in the hierarchy is rejected.
func RequireRole(hierarchy []string, min string) Middleware {
	rank := make(map[string]int, len(hierarchy))
	for i, name := range hierarchy {
		rank[name] = i
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			have := RoleFromCtx(r.Context())
			if have == "" {
				// No verified identity reached this point at all.
				writeBearerError(w, "missing bearer token")
				return
			}

			haveRank, haveOK := rank[have]
			minRank, minOK := rank[min]
			if !haveOK || !minOK || haveRank < minRank {
				writeRoleError(w, min)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRoleError(w http.ResponseWriter, required string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_role", role="`+required+`"`)
	WriteJSON(w, http.StatusForbidden, map[string]string{
		"error":   "insufficient_role",
		"message": "this operation requires role " + required + " or higher",
	})
}

package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shelfkeeper/shelfkeeper/pkg/jwtx"
)

var roleHierarchy = []string{"client", "admin", "super_admin"}

func TestChainOrder(t *testing.T) {
	var order []string

	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(okHandler(), tag("outer"), tag("inner"))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestTimeout(t *testing.T) {
	var (
		deadline time.Time
		ok       bool
	)
	handler := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
		w.WriteHeader(http.StatusNoContent)
	}), Timeout(time.Second))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, ok, "handler context must carry a deadline")
	require.WithinDuration(t, time.Now().Add(time.Second), deadline, 100*time.Millisecond)
}

func TestAuthnMiddleware(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
		Issuer: "https://auth.test",
	})
	require.NoError(t, err)

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"user_id": UserIDFromCtx(r.Context()),
			"role":    RoleFromCtx(r.Context()),
		})
	})
	handler := Chain(echo, AuthnMiddleware(km.Verifier()))

	t.Run("valid token injects identity", func(t *testing.T) {
		claims := jwtx.NewAccessClaims("user-1", "sess-1", "admin", "alice", false,
			time.Minute, km.Issuer(), time.Now().UTC())
		token, err := km.GetSigner().Sign(claims)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "user-1")
		require.Contains(t, rec.Body.String(), "admin")
	})

	t.Run("missing header rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh token rejected for access use", func(t *testing.T) {
		claims := jwtx.NewRefreshClaims("user-1", "sess-1", jwtx.NewJTI(),
			time.Hour, km.Issuer(), time.Now().UTC())
		token, err := km.GetSigner().Sign(claims)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	withRole := func(role string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := contextWithAuth(r.Context(), jwtx.Claims{Role: role})
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		}
	}

	cases := []struct {
		name string
		have string
		min  string
		want int
	}{
		{"equal role passes", "admin", "admin", http.StatusOK},
		{"higher role passes", "super_admin", "admin", http.StatusOK},
		{"lower role forbidden", "client", "admin", http.StatusForbidden},
		{"unknown role forbidden", "intruder", "client", http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := Chain(okHandler(),
				withRole(tc.have),
				RequireRole(roleHierarchy, tc.min),
			)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, tc.want, rec.Code)
		})
	}

	t.Run("no identity gets 401", func(t *testing.T) {
		handler := Chain(okHandler(), RequireRole(roleHierarchy, "client"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/shelfkeeper/shelfkeeper/internal/auth/domain"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/service"
	"github.com/shelfkeeper/shelfkeeper/internal/auth/store"
	"github.com/shelfkeeper/shelfkeeper/pkg/httpx"
	"github.com/shelfkeeper/shelfkeeper/pkg/jwtx"
	"github.com/shelfkeeper/shelfkeeper/pkg/slogx"
)

// requestTimeout bounds every store call made on behalf of a request. A
// request that outlives it surfaces as temporarily_unavailable.
const requestTimeout = 15 * time.Second

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store

	LoginService *service.LoginService
	TokenService *service.TokenService
	UserService  *service.UserService
	MFAService   *service.MFAService
	AdminService *service.AdminService
	AuditService *service.AuditService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Timeout(requestTimeout),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerMFA()
	r.registerSelf()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware
// chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		LoginService: r.LoginService,
		TokenService: r.TokenService,
		UserService:  r.UserService,
		MFAService:   r.MFAService,
	}

	// Credential endpoints take the strict per-IP budget on top of the
	// per-identifier counters inside the services.
	r.Mux.Handle("POST /v1/auth/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignup),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// MFA verification runs before any access token exists, so it can
	// only be limited by IP. The challenge's own attempt budget is the
	// primary brake on code guessing.
	r.Mux.Handle("POST /v1/auth/mfa/verify",
		httpx.Chain(http.HandlerFunc(h.HandleMFAVerify),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/password",
		httpx.Chain(http.HandlerFunc(h.HandleChangePassword),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	r.Mux.Handle("POST /v1/mfa/setup/initiate",
		httpx.Chain(http.HandlerFunc(h.HandleSetupInitiate),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)

	// Strict: a correct guess here enables an attacker-controlled
	// authenticator.
	r.Mux.Handle("POST /v1/mfa/setup/complete",
		httpx.Chain(http.HandlerFunc(h.HandleSetupComplete),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/mfa",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/mfa/backup-codes",
		httpx.Chain(http.HandlerFunc(h.HandleRegenerateBackupCodes),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSelf() {
	h := &UserInfoHandler{
		UserService:  r.UserService,
		MFAService:   r.MFAService,
		TokenService: r.TokenService,
	}

	r.Mux.Handle("GET /v1/userinfo",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /v1/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleListSessions),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleRevokeSessions),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{
		AdminService: r.AdminService,
		AuditService: r.AuditService,
	}

	// The route gate only checks for the admin rank; which targets an
	// admin may actually touch is the service's call.
	secured := func(handler http.HandlerFunc) http.Handler {
		return httpx.Chain(handler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireRole(domain.RoleHierarchy(), domain.RoleAdmin.String()),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("GET /v1/admin/users", secured(h.HandleListUsers))
	r.Mux.Handle("GET /v1/admin/users/{id}", secured(h.HandleGetUser))
	r.Mux.Handle("PATCH /v1/admin/users/{id}/role", secured(h.HandleSetRole))
	r.Mux.Handle("PATCH /v1/admin/users/{id}/active", secured(h.HandleSetActive))
	r.Mux.Handle("PATCH /v1/admin/users/{id}/verified", secured(h.HandleSetVerified))
	r.Mux.Handle("DELETE /v1/admin/users/{id}", secured(h.HandleDeleteUser))
	r.Mux.Handle("DELETE /v1/admin/users/{id}/mfa", secured(h.HandleResetMFA))
	r.Mux.Handle("GET /v1/admin/users/{id}/audit", secured(h.HandleListAudit))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sandcastle-auth/sandcastle/internal/accounts/domain"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/service"
	"github.com/sandcastle-auth/sandcastle/internal/accounts/store"
	"github.com/sandcastle-auth/sandcastle/pkg/httpx"
	"github.com/sandcastle-auth/sandcastle/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	guard service.SessionGuard

	LifecycleService *service.LifecycleService
	AccountService   *service.AccountService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		SessionMiddleware(st, r.guard),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerStatus()
	r.registerSessions()
	r.registerAccounts()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerStatus() {
	h := &StatusHandler{
		Lifecycle: r.LifecycleService,
		Store:     r.store,
	}

	// Both status endpoints are polled every few seconds, so the limits are
	// lenient. Evaluation applies side effects, which is exactly the point:
	// polling is what drives expiry and deletion forward.
	r.Mux.Handle("GET /api/accounts/{id}/status",
		httpx.Chain(http.HandlerFunc(h.HandleAccountStatus),
			httpx.RateLimitByAccount(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /public/admin/status",
		httpx.Chain(http.HandlerFunc(h.HandleAdminStatus),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionHandler{AccountService: r.AccountService}

	// POST /login - strict rate limit by IP + name to slow brute force
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "name"),
		),
	)

	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			RequireSession(),
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAccounts() {
	h := &AccountsHandler{AccountService: r.AccountService}

	// POST /v1/accounts - public signup, strict limit by IP
	r.Mux.Handle("POST /v1/accounts",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /v1/accounts",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			RequireSession(),
			RequireRole(domain.RoleAdmin),
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)

	// PATCH allows self-service updates; the handler enforces ownership.
	r.Mux.Handle("PATCH /v1/accounts/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate),
			RequireSession(),
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/accounts/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			RequireSession(),
			RequireRole(domain.RoleAdmin),
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

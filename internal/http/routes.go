package httpx

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/target/marketgate/internal/gate"
	"github.com/target/marketgate/internal/observability/metrics"
	"github.com/target/marketgate/internal/session"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	// Auth is optional. Without it the /auth and /api/me endpoints are not mounted.
	Auth     AuthService
	Sessions *session.Store
	Gate     *gate.Gate
	Metrics  *metrics.Metrics
	// Upstream receives requests the gate lets through. Nil answers them with 404.
	Upstream *url.URL
	// Ready checks back GET /readyz.
	Ready map[string]ReadinessCheck
	// TrustedOrigins may post to /auth/* besides the edge's own origin.
	TrustedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the edge handler: auth endpoints, probes and metrics on
// their own routes, and everything else through the gate.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sessions := services.Sessions
	if sessions == nil {
		var err error
		if sessions, err = session.NewStore(session.Options{}); err != nil {
			panic(err)
		}
	}
	g := services.Gate
	if g == nil {
		g = gate.New(nil)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("GET /readyz", readyHandler(services.Ready))
	mux.Handle("GET /metrics", services.Metrics.Handler())

	if services.Auth != nil {
		guard := OriginGuard(OriginGuardConfig{
			TrustedOrigins: services.TrustedOrigins,
			OnReject: func(r *http.Request, origin string) {
				logger.WarnContext(r.Context(), "cross-origin auth request rejected",
					"path", r.URL.Path, "origin", origin)
			},
		})
		registerAuthRoutes(mux, guard, &AuthHandlers{
			Svc:      services.Auth,
			Sessions: sessions,
			Metrics:  services.Metrics,
			Logger:   logger,
		})
	}

	var upstream http.Handler = http.NotFoundHandler()
	if services.Upstream != nil {
		upstream = NewUpstreamProxy(services.Upstream, logger)
	}
	mux.Handle("/", Gate(GateOptions{
		Gate:     g,
		Sessions: sessions,
		Logger:   logger,
		Metrics:  services.Metrics,
	})(upstream))

	return Recover(logger)(Logging(logger, services.Metrics)(mux))
}

func registerAuthRoutes(mux *http.ServeMux, guard func(http.Handler) http.Handler, h *AuthHandlers) {
	mux.Handle("POST /auth/login", guard(http.HandlerFunc(h.Login)))
	mux.Handle("POST /auth/sync", guard(http.HandlerFunc(h.Sync)))
	mux.Handle("POST /auth/logout", guard(http.HandlerFunc(h.Logout)))
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /api/me", h.Me)
}

package templates

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"TemplateMock/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// CORSOrigins defaults to every origin.
	CORSOrigins []string
}

// NewHandler assembles the public surface. /metrics sits outside the
// latency injection. Everything else, preflights and recovered panics
// included, is delayed and stamped by the fault injector.
func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}

	r := chi.NewRouter()

	setupMiddleware(r, deps)
	setupMetrics(r, s, deps)

	r.Group(func(api chi.Router) {
		if s.Faults != nil {
			api.Use(s.Faults.Latency)
			api.Use(kit.Recoverer)
		}
		api.Use(kit.CORS(corsOptions(deps)))
		api.Mount("/", s.Routes())
	})

	return r
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, s *Server, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePattern))

	if s.Faults != nil {
		s.Faults.Register(deps.Registry)
	}

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func corsOptions(deps HTTPDeps) kit.CORSOptions {
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return kit.CORSOptions{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		ExposedHeaders:   []string{HeaderProcessTime, HeaderServerName},
	}
}

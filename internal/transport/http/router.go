// Package httptransport assembles the HTTP surface: global middleware, the
// lifecycle API, the websocket endpoint and operational routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lifeline/internal/lifecycle/handler"
	"lifeline/internal/platform/metrics"
	"lifeline/pkg/platform/httputil"
	"lifeline/pkg/platform/middleware/admin"
	"lifeline/pkg/platform/middleware/request"
	"lifeline/pkg/platform/middleware/requesttime"
)

const healthTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators mounted by NewRouter. Metrics, Gatherer, Hub and
// Health are optional.
type Deps struct {
	Logger      *slog.Logger
	Lifecycle   *handler.Handler
	AdminSecret string
	Hub         http.Handler
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Health      map[string]HealthCheck
}

// NewRouter wires every route. Admin routes share a single secret check.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(request.Logger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(requesttime.Middleware)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", admin.HeaderAdminSecret, request.HeaderRequestID},
		ExposedHeaders:   []string{request.HeaderRequestID},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("lifeline backend running"))
	})
	r.Get("/health", healthHandler(d.Health))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	if d.Hub != nil {
		r.Method(http.MethodGet, "/ws", d.Hub)
	}

	r.Route("/api", func(r chi.Router) {
		d.Lifecycle.Register(r)
		r.Route("/admin", func(r chi.Router) {
			r.Use(admin.RequireAdminSecret(d.AdminSecret, d.Logger))
			d.Lifecycle.RegisterAdmin(r)
		})
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(checks))}
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}

package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"biomatch/internal/biometric/handler"
	"biomatch/pkg/platform/httputil"
)

// HealthCheck probes one backing dependency.
type HealthCheck func(ctx context.Context) error

// NewRouter wires the public surface: the biometric API plus the unauthenticated
// health and metrics endpoints.
func NewRouter(biometrics *handler.Handler, checks map[string]HealthCheck) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		status := http.StatusOK
		deps := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(req.Context()); err != nil {
				deps[name] = "unhealthy"
				status = http.StatusServiceUnavailable
				continue
			}
			deps[name] = "ok"
		}
		httputil.WriteJSON(w, status, map[string]any{
			"status":       statusWord(status),
			"dependencies": deps,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	biometrics.Register(r)
	return r
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}

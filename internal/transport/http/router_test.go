package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"biomatch/internal/biometric/extractor"
	"biomatch/internal/biometric/handler"
	"biomatch/internal/biometric/index"
	"biomatch/internal/biometric/matcher"
	"biomatch/internal/biometric/policy"
	"biomatch/internal/biometric/service"
	"biomatch/internal/biometric/store/attempt"
	"biomatch/internal/biometric/store/template"
	"biomatch/internal/jwttoken"
	"biomatch/pkg/testutil"
)

func newTestRouter(checks map[string]HealthCheck) http.Handler {
	templates := template.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := service.New(
		templates,
		attempt.NewInMemory(),
		policy.NewInMemory(),
		extractor.NewDouble(0),
		index.NewLinear(templates, matcher.NewCosine(), 0),
		matcher.NewCosine(),
		service.WithLogger(logger),
	)
	tokens := jwttoken.NewService("test-key", "biomatch", "biomatch-api")
	return NewRouter(handler.New(engine, logger, tokens), checks)
}

func TestRouterHealthAndMetrics(t *testing.T) {
	testutil.Given(t, "a router with one healthy and one failing dependency", func(t *testing.T) {
		router := newTestRouter(map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})

		testutil.When(t, "calling GET /health", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "it should report degraded", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusServiceUnavailable)
				testutil.AssertJSONContains(t, rec, "status", "degraded")
			})
		})
	})

	testutil.Given(t, "a router with no configured dependencies", func(t *testing.T) {
		router := newTestRouter(nil)

		testutil.When(t, "calling GET /health", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))

			testutil.Then(t, "it should report ok", func(t *testing.T) {
				testutil.AssertStatusOK(t, rec)
				testutil.AssertJSONContains(t, rec, "status", "ok")
			})
		})

		testutil.When(t, "calling GET /metrics", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))

			testutil.Then(t, "it should expose the scrape endpoint", func(t *testing.T) {
				testutil.AssertStatusOK(t, rec)
			})
		})

		testutil.When(t, "calling an API route without a token", func(t *testing.T) {
			rec := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/attempts"))

			testutil.Then(t, "it should be unauthorized", func(t *testing.T) {
				testutil.AssertStatus(t, rec, http.StatusUnauthorized)
				testutil.AssertErrorCode(t, rec, "unauthorized")
			})
		})
	})
}

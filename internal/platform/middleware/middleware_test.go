package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biomatch/internal/jwttoken"
	id "biomatch/pkg/domain"
	"biomatch/pkg/requestcontext"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequireAuthSetsTenant(t *testing.T) {
	tokens := jwttoken.NewService("test-key", "biomatch", "biomatch-api")
	tenant := id.TenantID(uuid.New())
	token, err := tokens.GenerateToken(tenant, time.Hour)
	require.NoError(t, err)

	var seen id.TenantID
	handler := RequireAuth(tokens, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetTenantID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/attempts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenant, seen)
}

func TestRequireAuthRejectsMissingAndBadTokens(t *testing.T) {
	tokens := jwttoken.NewService("test-key", "biomatch", "biomatch-api")
	handler := RequireAuth(tokens, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without auth")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/attempts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/attempts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequestIDGeneratedAndPropagated(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "upstream-id")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "upstream-id", seen)
}

func TestDeviceMetadata(t *testing.T) {
	var deviceID, deviceType string
	handler := Device(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID = requestcontext.DeviceID(r.Context())
		deviceType = requestcontext.DeviceType(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/biometrics/enroll", nil)
	req.Header.Set("X-Device-ID", "kiosk-42")
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "kiosk-42", deviceID)
	assert.Equal(t, "mobile", deviceType)
}

func TestContentTypeJSONRejectsOtherTypes(t *testing.T) {
	handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Content-Type", "text/xml")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

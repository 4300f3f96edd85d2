package middleware

import (
	"net/http"

	"github.com/mssola/useragent"

	"biomatch/pkg/requestcontext"
)

// Device captures sample provenance: the X-Device-ID header the capture
// client sends, and a coarse device type derived from the User-Agent. Both
// land on the context for the engine to stamp onto templates and attempts.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
			ctx = requestcontext.WithDeviceID(ctx, deviceID)
		}
		if ua := r.Header.Get("User-Agent"); ua != "" {
			ctx = requestcontext.WithDeviceType(ctx, deviceType(ua))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func deviceType(rawUA string) string {
	ua := useragent.New(rawUA)
	switch {
	case ua.Bot():
		return "bot"
	case ua.Mobile():
		return "mobile"
	default:
		return "desktop"
	}
}

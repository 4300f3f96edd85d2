// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
// Tests inject fixed values (notably a fixed time via WithTime) to keep
// workflow behavior reproducible.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	deviceIDKey    struct{}
	deviceTypeKey  struct{}
)

// RequestID retrieves the correlation ID set by middleware, or "".
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// Now returns the request time if one was injected, else time.Now().
// Services use this instead of time.Now() so tests can pin the clock.
func Now(ctx context.Context) time.Time {
	if v, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return v
	}
	return time.Now()
}

// WithTime pins the request time on the context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// DeviceID retrieves the reporting device identifier, or "".
func DeviceID(ctx context.Context) string {
	if v, ok := ctx.Value(deviceIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithDeviceID injects a device identifier into the context.
func WithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceIDKey{}, id)
}

// DeviceType retrieves the device type derived from the client, or "".
func DeviceType(ctx context.Context) string {
	if v, ok := ctx.Value(deviceTypeKey{}).(string); ok {
		return v
	}
	return ""
}

// WithDeviceType injects a device type into the context.
func WithDeviceType(ctx context.Context, deviceType string) context.Context {
	return context.WithValue(ctx, deviceTypeKey{}, deviceType)
}

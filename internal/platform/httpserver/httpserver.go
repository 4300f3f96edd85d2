// Package httpserver constructs the process's HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// headerReadTimeout caps how long a client may take to send request headers,
// so slow or stalled connections cannot pin server goroutines.
const headerReadTimeout = 5 * time.Second

// New returns a server listening on addr that routes everything to handler.
// Per-request deadlines are enforced by the timeout middleware, not here.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: headerReadTimeout,
	}
}

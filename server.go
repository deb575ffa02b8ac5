package main

import (
	"log/slog"
	"net/http"
)

// newRouter wires the API routes and wraps them with request id, rate
// limiting (when limiter is not nil) and access logging.
func newRouter(h *Handler, m *Metrics, limiter *clientLimiter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/items", h.itemsHandler)
	mux.HandleFunc("/items/", h.itemHandler)
	mux.HandleFunc("/reset", h.resetHandler)
	mux.HandleFunc("GET /healthz", h.healthHandler)
	mux.HandleFunc("/usage", h.usageHandler)
	mux.HandleFunc("/spec", h.specHandler)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	var handler http.Handler = mux
	if limiter != nil {
		handler = rateLimitMiddleware(limiter)(handler)
	}
	handler = loggingMiddleware(logger, m)(handler)
	return requestIDMiddleware(handler)
}

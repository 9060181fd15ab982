// Package api wires the webhook HTTP surface: routes, middleware and
// health probes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/felixgeelhaar/splitbot/internal/api/handlers"
	"github.com/felixgeelhaar/splitbot/internal/api/middleware"
)

// App holds the dependencies the HTTP surface needs.
type App struct {
	Receiver handlers.MessageReceiver

	// PingStore checks storage connectivity for the readiness probe.
	PingStore func(ctx context.Context) error

	// QueueConnected reports whether the outbound queue is reachable.
	QueueConnected func() bool
}

// Router wraps the HTTP multiplexer with middleware and handlers
type Router struct {
	mux     *http.ServeMux
	app     *App
	webhook *handlers.WebhookHandler
}

// NewRouter creates a new API router with all routes configured
func NewRouter(app *App) http.Handler {
	r := &Router{
		mux:     http.NewServeMux(),
		app:     app,
		webhook: handlers.NewWebhookHandler(app.Receiver),
	}

	r.registerRoutes()

	return r.buildMiddlewareChain(r.mux)
}

func (r *Router) registerRoutes() {
	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)
	r.mux.HandleFunc("GET /ready", r.handleReady)

	// Provider callbacks
	r.mux.HandleFunc("POST /webhooks/whatsapp/received", r.webhook.MessageReceived)
}

func (r *Router) buildMiddlewareChain(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last applied = first executed)
	handler = middleware.Recovery(handler)
	handler = middleware.Logger(handler)
	handler = middleware.RequestID(handler)
	return handler
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the daemon can actually serve traffic:
// storage reachable and the outbound queue connected.
func (r *Router) handleReady(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"storage": "ok", "queue": "ok"}
	healthy := true

	if r.app.PingStore != nil {
		if err := r.app.PingStore(ctx); err != nil {
			checks["storage"] = err.Error()
			healthy = false
		}
	}
	if r.app.QueueConnected != nil && !r.app.QueueConnected() {
		checks["queue"] = "disconnected"
		healthy = false
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, checks)
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/yndnr/wsmesh-go/internal/telemetry/logger"
)

// Options configures a Handler.
type Options struct {
	// Stats returns the snapshot served at /stats.
	Stats func() any

	// Ready reports whether the node accepts traffic. Nil means always ready.
	Ready func() error

	Logger logger.Logger
}

// Handler serves the JSON endpoints.
type Handler struct {
	stats func() any
	ready func() error
	log   logger.Logger
	mux   *http.ServeMux
}

// New creates a Handler.
func New(opts Options) *Handler {
	h := &Handler{
		stats: opts.Stats,
		ready: opts.Ready,
		log:   opts.Logger,
		mux:   http.NewServeMux(),
	}
	if h.log == nil {
		h.log = logger.Nop()
	}
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	h.mux.HandleFunc("GET /stats", h.handleStats)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	resp := NewResponse(logger.RequestIDFromContext(r.Context()), data)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	resp := NewErrorResponse(logger.RequestIDFromContext(r.Context()), code, message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

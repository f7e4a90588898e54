package handler

import (
	"net/http"
	"time"
)

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			h.writeError(w, r, http.StatusServiceUnavailable, "WM-SYS-5030", err.Error())
			return
		}
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		h.writeError(w, r, http.StatusNotFound, "WM-SYS-4040", "statistics not available")
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.stats())
}

// Package dashboard exposes the user command surface (start/stop call,
// clear, export, stats, scroll) and the SSE view feed that browser
// clients render.
package dashboard

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nmorales/voicedesk/internal/notify"
	callsvc "github.com/nmorales/voicedesk/internal/service/call"
	"github.com/nmorales/voicedesk/internal/service/router"
	"github.com/nmorales/voicedesk/pkg/utils"
)

// Handler serves commands and the view feed.
type Handler struct {
	core *router.Router
	hub  *notify.Hub
}

// New creates the dashboard handler.
func New(core *router.Router, hub *notify.Hub) *Handler {
	return &Handler{core: core, hub: hub}
}

// RegisterRoutes mounts command and view endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/call/start", h.handleStartCall)
	r.Post("/call/stop", h.handleStopCall)
	r.Post("/transcript/clear", h.handleClear)
	r.Post("/transcript/scroll", h.handleScroll)
	r.Get("/transcript/export", h.handleExport)
	r.Get("/stats", h.handleStats)
	r.Get("/view", h.handleView)
}

func (h *Handler) handleStartCall(w http.ResponseWriter, r *http.Request) {
	if err := h.core.StartCall(r.Context()); err != nil {
		status := http.StatusConflict
		if errors.Is(err, callsvc.ErrNotReady) {
			status = http.StatusServiceUnavailable
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "connecting"})
}

func (h *Handler) handleStopCall(w http.ResponseWriter, r *http.Request) {
	if err := h.core.StopCall(r.Context()); err != nil {
		status := http.StatusConflict
		if errors.Is(err, callsvc.ErrNotReady) {
			status = http.StatusServiceUnavailable
		}
		utils.RespondError(w, status, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// handleClear requires explicit confirmation; the browser shows the
// prompt and passes confirm=true.
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		utils.RespondError(w, http.StatusBadRequest, "clearing requires confirm=true")
		return
	}
	if err := h.core.ClearTranscript(r.Context()); err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) handleScroll(w http.ResponseWriter, r *http.Request) {
	if err := h.core.ScrollToLatest(r.Context()); err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filename, content, err := h.core.Export(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write([]byte(content)); err != nil {
		log.Printf("[dashboard] export write failed: %v", err)
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.core.Stats(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, snap)
}

// handleView streams presentation events to the browser over SSE.
func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	utils.SetupSSEHeaders(w)

	frames, cancel := h.hub.Subscribe()
	defer cancel()

	ctx := r.Context()
	log.Printf("[dashboard] view feed opened")

	utils.SendSSEEvent(w, flusher, "status", map[string]string{"message": "view established"})

	for {
		select {
		case <-ctx.Done():
			log.Printf("[dashboard] view feed closed")
			return
		case frame, open := <-frames:
			if !open {
				return
			}
			utils.SendSSEEvent(w, flusher, frame.Event, frame.Data)
		}
	}
}

package session

import (
	"log"
	"net/http"
	"time"

	"github.com/hopewhisperer/hope-whisperer/pkg/utils"
)

const heartbeatInterval = 15 * time.Second

// handleEvents streams the view as SSE: one "view" event on connect, then
// one per change, with comment heartbeats in between.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	views, unsubscribe := h.shell.Subscribe()
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	log.Printf("[sse] client connected remote=%s", r.RemoteAddr)
	defer log.Printf("[sse] client disconnected remote=%s", r.RemoteAddr)

	if err := utils.SendSSEEvent(w, flusher, "view", h.shell.View()); err != nil {
		return
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case view, ok := <-views:
			if !ok {
				return
			}
			if err := utils.SendSSEEvent(w, flusher, "view", view); err != nil {
				return
			}
		case <-ticker.C:
			if err := utils.SendSSEComment(w, flusher, "heartbeat"); err != nil {
				return
			}
		}
	}
}

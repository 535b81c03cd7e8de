package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/server/httpx"
)

// events streams list changes as Server-Sent Events.
// Frames are "event: change" with the change JSON; ": ping" comments keep proxies from closing idle streams.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	listID, err := pathID(r, "listID")
	if err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	ctx := r.Context()
	if _, err := h.lists.Get(ctx, httpx.UserID(ctx), listID); err != nil {
		httpx.Error(w, r, h.log, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Fail(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub := h.hub.Subscribe(listID)
	defer sub.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "retry: 3000\n: connected\n\n")
	flusher.Flush()

	ping := time.NewTicker(h.heartbeat)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(c)
			if err != nil {
				h.log.Error("sse: marshal change", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\nid: %d\ndata: %s\n\n", c.Rev, data); err != nil {
				return
			}
			flusher.Flush()
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

package httpx

import (
	"net/http"
	"time"

	"github.com/melsimpson1023/project-2-gemstone/internal/ws"
)

func (r *Router) handleGemstonesWS(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "change feed disabled")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger)
	r.hub.Register(ws.TopicGemstones, client)
	r.metrics.streamOpened("websocket")
	go func() {
		defer func() {
			r.hub.Unregister(ws.TopicGemstones, client)
			client.Close()
			r.metrics.streamClosed("websocket")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleGemstoneEvents(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "change feed disabled")
		return
	}
	flusher, ok := flusherFor(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ws.NewSSEClient(w, flusher, r.logger)
	r.hub.Register(ws.TopicGemstones, client)
	r.metrics.streamOpened("sse")
	defer func() {
		r.hub.Unregister(ws.TopicGemstones, client)
		client.Close()
		r.metrics.streamClosed("sse")
	}()
	// The first frame tells the subscriber it will receive every later event.
	if err := client.Heartbeat(); err != nil {
		return
	}

	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-client.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

package http

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/dkaya/expbench/internal/core/ports"
)

// LogsHandler pushes a container's log stream to websocket clients through
// the log hub, so any number of tabs watching one container share a single
// runtime tail.
type LogsHandler struct {
	hub ports.LogStreamer

	// sessionLimit caps how long one websocket session may stay open;
	// zero disables the cap.
	sessionLimit time.Duration
}

func NewLogsHandler(hub ports.LogStreamer, sessionLimit time.Duration) *LogsHandler {
	return &LogsHandler{hub: hub, sessionLimit: sessionLimit}
}

// Upgrade gates the websocket routes.
func (h *LogsHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream is the websocket endpoint for /ws/logs/container/:container_id.
// The subscription lives in a background context: closing this socket must
// never tear down the tail for other subscribers, and the hub handles the
// last-one-out cleanup itself.
func (h *LogsHandler) Stream(conn *websocket.Conn) {
	defer conn.Close()
	containerID := conn.Params("container_id")

	chunks, cancel, err := h.hub.Subscribe(context.Background(), containerID)
	if err != nil {
		conn.WriteMessage(websocket.TextMessage, []byte("error: "+err.Error()))
		return
	}
	defer cancel()

	// Reader goroutine: the only way to notice a client disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var deadline <-chan time.Time
	if h.sessionLimit > 0 {
		t := time.NewTimer(h.sessionLimit)
		defer t.Stop()
		deadline = t.C
	}

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				conn.WriteMessage(websocket.TextMessage, []byte("[server] log stream ended"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, chunk); err != nil {
				return
			}
		case <-gone:
			log.Printf("log subscriber for %s disconnected", containerID)
			return
		case <-deadline:
			conn.WriteMessage(websocket.TextMessage, []byte("[server] session limit reached"))
			return
		}
	}
}

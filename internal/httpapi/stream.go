package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// handleIntentWS streams a user's topic lifecycle events over a
// websocket. The stream is one way: client frames only refresh the read
// deadline.
func (s *Server) handleIntentWS(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		respondError(w, http.StatusNotImplemented, "intent_runtime_unavailable", "Intent runtime is not configured.")
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		respondError(w, http.StatusBadRequest, "missing_user_id", "query parameter user_id is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	eventCh, unsubscribe := s.service.Subscribe(userID)
	defer unsubscribe()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-eventCh:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(evt); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	conn.SetReadLimit(4 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	}

	cancel()
	<-writerDone
}

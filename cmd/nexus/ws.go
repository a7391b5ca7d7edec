package main

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/nexus/internal/mission"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 25 * time.Second
	wsSendBuffer = 64
)

// newWSHub returns the /ws handler: every connection subscribes to the
// engine's event broadcaster and receives every event as a JSON frame
// until it disconnects. The feed is one-directional — clients decide,
// kill, and send through the HTTP surface, not over the socket.
func (s *server) newWSHub() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(s.cfg.AllowedOrigins, origin)
		},
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.NeuralToken != "" {
			token := bearerToken(r)
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.NeuralToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing token")
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		ch, unsubscribe := s.engine.Events.Subscribe(wsSendBuffer)
		defer unsubscribe()

		done := make(chan struct{})
		go wsReadLoop(conn, done)

		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				_ = conn.Close()
				return
			case <-s.bgCtx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			case event, ok := <-ch:
				if !ok {
					_ = conn.Close()
					return
				}
				if err := writeWSEvent(conn, event); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	})
}

func writeWSEvent(conn *websocket.Conn, event mission.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// wsReadLoop drains and discards client frames. The feed is one-way, but
// the socket must still be read so pong control frames (and an eventual
// close) are processed instead of backing up the connection.
func wsReadLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rtxlabs/vperp/logging"
	"github.com/rtxlabs/vperp/metrics"
)

// upgrader accepts connections from any origin (a permissive CheckOrigin;
// transport is illustrative only — a production deployment would restrict
// this to the trading frontend's origin).
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades the connection and relays every notify.Sink event
// to the client as JSON, one subscriber channel per connection. Mirrors
// backend/ws/hub.go's register/send/unregister shape, collapsed from a
// broadcast hub with its own goroutine loop down to one subscriber
// channel per connection since notify.Sink already does the fan-out.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("httpapi: websocket upgrade failed", logging.String("err", err.Error()))
		return
	}
	defer conn.Close()

	sub := s.notify.Subscribe(64)
	defer sub.Cancel()

	metrics.SetWebsocketConnections(s.notify.SubscriberCount())
	defer metrics.SetWebsocketConnections(s.notify.SubscriberCount())

	go drainReads(conn)

	for {
		select {
		case event, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
			metrics.RecordWebsocketMessage(event.Topic)
		case <-time.After(30 * time.Second):
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drainReads discards inbound messages (this stream is push-only) so
// control frames are processed and a client disconnect is observed
// promptly; the first read error closes the connection.
func drainReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
	}
}

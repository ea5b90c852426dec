package web

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	streamBuffer   = 64
	maxInboundSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleStream pushes every frame result and alert to the client as JSON.
// Frame pixels are never sent.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		http.NotFound(w, r)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	results, stopResults := s.pipeline.Subscribe(streamBuffer)
	defer stopResults()
	alerts, stopAlerts := s.pipeline.SubscribeAlerts(streamBuffer)
	defer stopAlerts()

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("Stream client connected")
	defer func() {
		s.log.Debug().Str("remote", r.RemoteAddr).Msg("Stream client disconnected")
	}()

	gone := make(chan struct{})
	go s.readPump(conn, gone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var msg StreamMessage
		select {
		case res, ok := <-results:
			if !ok {
				s.closeStream(conn)
				return
			}
			msg = resultMessage(res)
		case a, ok := <-alerts:
			if !ok {
				s.closeStream(conn)
				return
			}
			msg = alertMessage(a)
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		case <-gone:
			return
		case <-s.closing:
			s.closeStream(conn)
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readPump discards client messages and keeps the read deadline fresh on
// pong. It closes gone when the connection ends.
func (s *Server) readPump(conn *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("Stream read failed")
			}
			return
		}
	}
}

func (s *Server) closeStream(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradebook/journal"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
)

// LiveMessage is one frame on the live journal socket.
type LiveMessage struct {
	Type      string           `json:"type"`
	Session   string           `json:"session"`
	UpdatedAt int64            `json:"updatedAt,omitempty"`
	Document  journal.Document `json:"document"`
}

// handleLive streams the journal over a WebSocket: the current copy first,
// then every newer remote version. The remote subscription ends with the
// socket.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	user, kind := userFromContext(r.Context()), kindFromContext(r.Context())

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sub, err := s.journals.Subscribe(ctx, user, kind)
	if err != nil {
		failure(w, http.StatusServiceUnavailable, "live updates unavailable", err)
		return
	}
	defer sub.Cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	session := uuid.NewString()
	log := s.log.With(zap.String("session", session), zap.String("user", user), zap.String("kind", string(kind)))
	wsConnectionsActive.Add(1)
	wsConnectionsTotal.Add(1)
	defer wsConnectionsActive.Add(-1)
	log.Debug("live session opened")
	defer log.Debug("live session closed")

	doc, _ := s.journals.Current(ctx, user, kind)
	if err := s.send(conn, LiveMessage{Type: "snapshot", Session: session, Document: doc}); err != nil {
		return
	}

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-sub.C:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription ended"),
					time.Now().Add(writeWait))
				return
			}
			doc := v.Payload
			doc.Kind = kind
			if err := s.send(conn, LiveMessage{Type: "update", Session: session, UpdatedAt: v.UpdatedAt, Document: doc}); err != nil {
				log.Debug("live write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (s *Server) send(conn *websocket.Conn, msg LiveMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// readPump discards client frames and closes done when the peer goes away.
func (s *Server) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	wait := 2 * s.pingInterval
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

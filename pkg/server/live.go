package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/core/liveview"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// liveMessage is what a session pushes to its socket
type liveMessage struct {
	Type    string         `json:"type"` // "view" or "error"
	View    *liveview.View `json:"view,omitempty"`
	Message string         `json:"message,omitempty"`
}

// handleLive runs one live view session per socket. The session owns its
// synchronizer and stops it when the socket closes.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if !s.openSession() {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Code: "unavailable", Message: "server shutting down"})
		return
	}
	defer s.sessions.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.opts.Metrics.SessionOpened()
	defer s.opts.Metrics.SessionClosed()

	logger := s.logger.With(zap.String("remote", r.RemoteAddr))
	logger.Info("Live session opened")
	defer logger.Info("Live session closed")

	pending := make(chan *liveview.View, 1)
	syncer := liveview.New(s.store, logger, liveview.WithMetrics(s.opts.Metrics))
	syncer.OnUpdate(func(v *liveview.View) {
		latestOnly(pending, v)
	})

	if err := syncer.Start(r.Context()); err != nil {
		logger.Warn("Failed to start live view", zap.Error(err))
		s.writeLive(conn, liveMessage{Type: "error", Message: "failed to load calendar"})
		return
	}
	defer syncer.Stop()

	readDone := make(chan struct{})
	go readUntilClosed(conn, readDone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case view := <-pending:
			if err := s.writeLive(conn, liveMessage{Type: "view", View: view}); err != nil {
				logger.Debug("Failed to push view", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-syncer.Done():
			s.writeLive(conn, liveMessage{Type: "error", Message: "live updates stopped"})
			return
		case <-readDone:
			return
		case <-s.closing:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (s *Server) writeLive(conn *websocket.Conn, msg liveMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

// latestOnly replaces any unsent view with v. It has a single producer, the
// synchronizer goroutine, so the loop always ends.
func latestOnly(ch chan *liveview.View, v *liveview.View) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// readUntilClosed discards client frames and answers pongs until the socket
// fails, then closes done
func readUntilClosed(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

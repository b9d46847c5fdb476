package api

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fruitsalade/docbrowser/internal/events"
	"github.com/fruitsalade/docbrowser/internal/logging"
	"github.com/fruitsalade/docbrowser/webapp"
)

const (
	liveWriteWait = 10 * time.Second
	livePongWait  = 60 * time.Second
	livePingEvery = (livePongWait * 9) / 10

	// Clients never send anything meaningful; cap what they can.
	liveReadLimit = 512
)

var liveUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// ─── Live reload ────────────────────────────────────────────────────────────

// handleLive upgrades to a WebSocket and forwards broadcaster events until
// either side goes away. Incoming frames are read and discarded.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}
	defer conn.Close()

	logger := logging.WithContext(r.Context())
	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)
	logger.Debug("live client connected", logging.Int("clients", s.broadcaster.Count()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn.SetReadLimit(liveReadLimit)
	if err := conn.SetReadDeadline(time.Now().Add(livePongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer conn.Close()
		ticker := time.NewTicker(livePingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					// Broadcaster closed: the server is shutting down.
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
						time.Now().Add(liveWriteWait))
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
					return
				}
				data, err := events.MarshalEvent(ev)
				if err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(liveWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}
	cancel()
	s.broadcaster.Unsubscribe(ch)
	<-writerDone
	logger.Debug("live client disconnected")
}

// ─── Web app ────────────────────────────────────────────────────────────────

// appHandler serves the single-page UI. WEBAPP_DIR overrides the embedded
// assets for live editing during development.
func (s *Server) appHandler() http.Handler {
	if s.webappDir != "" {
		logging.Info("serving webapp from disk", logging.String("dir", s.webappDir))
		return http.FileServer(http.Dir(s.webappDir))
	}
	appFS, _ := fs.Sub(webapp.Assets, ".")
	return http.FileServer(http.FS(appFS))
}

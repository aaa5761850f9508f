package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Server exposes the hub over a websocket endpoint at /ws.
type Server struct {
	hub      *Hub
	log      *slog.Logger
	upgrader websocket.Upgrader
	srv      *http.Server
}

// NewServer creates a monitor server listening on addr.
func NewServer(addr string, hub *Hub, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		hub: hub,
		log: log,
		upgrader: websocket.Upgrader{
			// Local debugging tool; any origin may watch.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving websocket clients.
func (s *Server) ListenAndServe() error {
	s.log.Info("monitor listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub, cancel := s.hub.Subscribe()
	defer cancel()

	s.log.Info("monitor client connected", "remote", r.RemoteAddr)

	// Discard inbound messages so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for msg := range sub {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.log.Info("monitor client disconnected", "remote", r.RemoteAddr, "err", err)
			return
		}
	}
}

// Package admin implements the operator-facing HTTP surface: health
// checks, detector state reset, and a live event feed over WebSocket.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nugget/alert-sentinel/internal/anomaly"
	"github.com/nugget/alert-sentinel/internal/buildinfo"
	"github.com/nugget/alert-sentinel/internal/events"
	"github.com/nugget/alert-sentinel/internal/poller"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("admin: failed to write JSON response", "error", err)
	}
}

// Server is the admin HTTP surface.
type Server struct {
	address  string
	port     int
	poller   *poller.Poller
	detector *anomaly.Detector
	bus      *events.Bus
	logger   *slog.Logger
	server   *http.Server
}

// NewServer creates an admin Server.
func NewServer(address string, port int, p *poller.Poller, detector *anomaly.Detector, bus *events.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{address: address, port: port, poller: p, detector: detector, bus: bus, logger: logger}
}

// Start begins serving HTTP requests and blocks until the server stops
// or fails. Returns http.ErrServerClosed on a clean Shutdown.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("POST /debug/reset", s.handleDebugReset)
	mux.HandleFunc("GET /admin/events/ws", s.handleEventsWS)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("admin: starting", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("admin: request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	running := s.poller != nil && s.poller.State() == poller.StateRunning
	writeJSON(w, map[string]any{
		"status":         "ok",
		"poller_running": running,
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, buildinfo.RuntimeInfo(), s.logger)
}

// handleDebugReset clears correlation state across all incident kinds.
// Intended for operators recovering from a false-positive storm without
// restarting the process.
func (s *Server) handleDebugReset(w http.ResponseWriter, r *http.Request) {
	s.detector.ResetState()
	s.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAdmin,
		Kind:      events.KindDetectorReset,
	})
	s.logger.Info("admin: detector state reset")
	writeJSON(w, map[string]string{"status": "reset"}, s.logger)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleEventsWS upgrades the connection and streams events.Bus traffic
// to the client as JSON text frames until the client disconnects.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("admin: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch := s.bus.Subscribe(64)
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				s.logger.Debug("admin: websocket write failed", "error", err)
				return
			}
		}
	}
}

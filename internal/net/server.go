// Package net is the HTTP and WebSocket front end of the simulation.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rtsgo/server/internal/command"
	"github.com/rtsgo/server/internal/config"
	"github.com/rtsgo/server/internal/sim"
	"github.com/rtsgo/server/internal/snapshot"
	"go.uber.org/zap"
)

// Simulation is what the network layer needs from the running simulation.
// Implemented by sim.Loop.
type Simulation interface {
	Submit(ctx context.Context, cmd command.Command) error
	Snapshot() snapshot.Snapshot
	Stats() sim.Stats
}

// Server routes HTTP requests and owns the WebSocket sessions.
type Server struct {
	cfg      config.NetworkConfig
	sim      Simulation
	clients  ClientRegistry
	guard    AdminGuard
	hub      *Hub
	registry *Registry
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewServer(cfg config.NetworkConfig, simulation Simulation, clients ClientRegistry, guard AdminGuard, log *zap.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		sim:      simulation,
		clients:  clients,
		guard:    guard,
		hub:      NewHub(log),
		registry: NewRegistry(log),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log,
	}
	s.registerHandlers()
	return s
}

// Hub returns the set of connected sessions.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the routed, CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /game", s.handleGame)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /reset", s.handleReset)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("DELETE /register/{id}", s.handleUnregister)
	mux.HandleFunc("GET /ws/{id}", s.handleWS)
	return enableCORS(mux)
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.BindAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully and
// closes every session.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.hub.CloseAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("http shutdown", zap.Error(err))
		}
	}()

	s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Accept, "+AdminKeyHeader)
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

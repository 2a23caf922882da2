package net

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rtsgo/server/internal/command"
	"github.com/rtsgo/server/internal/sim"
	"go.uber.org/zap"
)

type RegisterRequest struct {
	UserID int64 `json:"user_id"`
}

type RegisterResponse struct {
	URL string `json:"url"`
}

type StatsResponse struct {
	sim.Stats
	Sessions int `json:"sessions"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) submit(cmd command.Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SubmitTimeout.Duration)
	defer cancel()
	return s.sim.Submit(ctx, cmd)
}

// submitStatus maps a submit failure to an HTTP status.
func submitStatus(err error) int {
	switch {
	case errors.Is(err, command.ErrQueueFull), errors.Is(err, context.DeadlineExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleGame(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Snapshot().Units)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{Stats: s.sim.Stats(), Sessions: s.hub.Len()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.guard.Check(r.Header.Get(AdminKeyHeader)); err != nil {
		s.log.Warn("reset rejected", zap.String("remote", r.RemoteAddr))
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err := s.submit(command.ResetWorld()); err != nil {
		http.Error(w, err.Error(), submitStatus(err))
		return
	}
	s.log.Info("world reset requested", zap.String("remote", r.RemoteAddr))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid register body: "+err.Error(), http.StatusBadRequest)
		return
	}
	id, err := s.clients.Register(r.Context(), req.UserID)
	if err != nil {
		s.log.Error("register client", zap.Error(err))
		http.Error(w, "register failed", http.StatusInternalServerError)
		return
	}
	s.log.Info("client registered", zap.Int64("user_id", req.UserID), zap.Stringer("id", id))
	writeJSON(w, http.StatusOK, RegisterResponse{
		URL: strings.TrimSuffix(s.cfg.PublicURL, "/") + "/ws/" + id.String(),
	})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return
	}
	ok, err := s.clients.Unregister(r.Context(), id)
	if err != nil {
		s.log.Error("unregister client", zap.Error(err))
		http.Error(w, "unregister failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	if sess, live := s.hub.Get(id); live {
		sess.Close()
	}
	s.log.Info("client unregistered", zap.Stringer("id", id))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	known, err := s.clients.Exists(r.Context(), id)
	if err != nil {
		s.log.Error("lookup client", zap.Error(err))
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if !known {
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	sess := NewSession(conn, id,
		s.cfg.SendQueueSize,
		s.cfg.MaxMessageSize,
		s.cfg.WriteTimeout.Duration,
		s.cfg.PongTimeout.Duration,
		s.log,
	)
	s.hub.Add(sess)
	s.log.Info("client connected", zap.Stringer("id", id), zap.String("remote", r.RemoteAddr))

	go sess.writeLoop()
	go func() {
		sess.readLoop(s.handleFrame)
		s.hub.Remove(sess)
		s.log.Info("client disconnected", zap.Stringer("id", id))
	}()
}

// handleFrame dispatches one text frame. Failures are reported to the
// sender only.
func (s *Server) handleFrame(sess *Session, data []byte) {
	if isPing(data) {
		return
	}
	if err := s.registry.Dispatch(sess, data); err != nil {
		s.log.Debug("message rejected", zap.Stringer("session", sess.ID), zap.Error(err))
		sess.Send(EncodeError(err.Error()))
	}
}

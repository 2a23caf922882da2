package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Session is one WebSocket connection. Reads and writes each run in their
// own goroutine; Send is safe from any goroutine and never blocks.
type Session struct {
	ID   uuid.UUID
	conn *websocket.Conn

	send      chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	writeTimeout time.Duration
	pongTimeout  time.Duration

	log *zap.Logger
}

func NewSession(conn *websocket.Conn, id uuid.UUID, sendSize int, maxMessage int64, writeTimeout, pongTimeout time.Duration, log *zap.Logger) *Session {
	conn.SetReadLimit(maxMessage)
	return &Session{
		ID:           id,
		conn:         conn,
		send:         make(chan []byte, sendSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
		pongTimeout:  pongTimeout,
		log:          log.With(zap.Stringer("session", id)),
	}
}

// Send queues msg for writing. A client that cannot keep up is
// disconnected rather than allowed to stall the sender.
func (s *Session) Send(msg []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.send <- msg:
	default:
		s.log.Warn("send queue full, disconnecting slow client")
		s.Close()
	}
}

// Close asks the write loop to send a close frame and drop the connection.
// Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.closeCh
}

// readLoop hands every text frame to handle until the connection fails.
func (s *Session) readLoop(handle func(*Session, []byte)) {
	defer s.Close()

	_ = s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})

	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
		handle(s, data)
	}
}

// writeLoop drains the send queue and keeps the connection alive with pings.
// It owns the underlying connection and closes it on exit, which also ends
// readLoop.
func (s *Session) writeLoop() {
	ping := time.NewTicker(s.pongTimeout * 9 / 10)
	defer func() {
		ping.Stop()
		s.Close()
		s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closeCh:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

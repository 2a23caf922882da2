package net

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// HandlerFunc handles one decoded message from a session.
type HandlerFunc func(sess *Session, body json.RawMessage) error

// Registry maps message kinds to handlers.
type Registry struct {
	handlers map[string]HandlerFunc
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		log:      log,
	}
}

func (reg *Registry) Register(kind string, fn HandlerFunc) {
	reg.handlers[kind] = fn
}

// Dispatch decodes raw and calls the handler for its kind. Unknown kinds and
// handler failures are returned as errors for the caller to report.
func (reg *Registry) Dispatch(sess *Session, raw []byte) error {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return err
	}
	reg.log.Debug("message received",
		zap.String("kind", env.Kind),
		zap.Int("size", len(raw)),
		zap.Stringer("session", sess.ID),
	)

	fn, ok := reg.handlers[env.Kind]
	if !ok {
		return fmt.Errorf("unknown message kind %q", env.Kind)
	}
	return reg.safeCall(fn, sess, env)
}

// safeCall runs a handler, turning a panic into an error so one bad message
// cannot take down the connection's read loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess *Session, env Envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.String("kind", env.Kind),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", env.Kind, rec)
		}
	}()
	return fn(sess, env.Body)
}

package net

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rtsgo/server/internal/command"
	"github.com/rtsgo/server/internal/core/event"
)

func (s *Server) registerHandlers() {
	s.registry.Register(KindCreateUnit, s.onCreateUnit)
	s.registry.Register(KindSetUnitDestination, s.onSetUnitDestination)
}

// onCreateUnit creates a unit, minting an id when the client sent none, and
// tells every client about it.
func (s *Server) onCreateUnit(_ *Session, body json.RawMessage) error {
	req, err := DecodeBody[CreateUnitRequest](body)
	if err != nil {
		return err
	}
	id := NormalizeID(req.ID)
	if id == "" {
		id = uuid.NewString()
	}
	if err := s.submit(command.CreateUnit(id, req.Position[0], req.Position[1])); err != nil {
		return fmt.Errorf("create unit: %w", err)
	}
	reply, err := Encode(KindCreateUnit, unitReply(id, req.Position))
	if err != nil {
		return err
	}
	s.hub.Broadcast(reply)
	return nil
}

// onSetUnitDestination forwards the order and echoes it to every client.
func (s *Server) onSetUnitDestination(_ *Session, body json.RawMessage) error {
	req, err := DecodeBody[SetUnitDestinationRequest](body)
	if err != nil {
		return err
	}
	req.ID = NormalizeID(req.ID)
	if req.ID == "" {
		return errors.New("SetUnitDestination: missing id")
	}
	if err := s.submit(command.SetDestination(req.ID, req.Destination[0], req.Destination[1])); err != nil {
		return fmt.Errorf("set destination: %w", err)
	}
	echo, err := Encode(KindSetUnitDestination, req)
	if err != nil {
		return err
	}
	s.hub.Broadcast(echo)
	return nil
}

// Subscribe forwards simulation events to connected clients. Call before the
// simulation starts; handlers run on the simulation goroutine and only
// queue messages.
func (s *Server) Subscribe(bus *event.Bus) {
	event.Subscribe(bus, func(ev event.UnitArrived) {
		msg, err := Encode(KindUnitArrived, UnitArrivedNotice{
			ID:       ev.UnitID,
			Position: [2]float32{ev.X, ev.Y},
			Tick:     ev.Tick,
		})
		if err == nil {
			s.hub.Broadcast(msg)
		}
	})
	event.Subscribe(bus, func(ev event.UnitRejected) {
		msg, err := Encode(KindUnitRejected, UnitRejectedNotice{
			ID:       ev.UnitID,
			Reason:   ev.Reason.String(),
			Position: [2]float32{ev.X, ev.Y},
		})
		if err == nil {
			s.hub.Broadcast(msg)
		}
	})
	event.Subscribe(bus, func(ev event.WorldReset) {
		msg, err := Encode(KindWorldReset, WorldResetNotice{Tick: ev.Tick})
		if err == nil {
			s.hub.Broadcast(msg)
		}
	})
}

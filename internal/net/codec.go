package net

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rtsgo/server/internal/snapshot"
	"golang.org/x/text/unicode/norm"
)

// Message kinds on the WebSocket. Every frame is a JSON object with exactly
// one key naming the kind, e.g. {"CreateUnit":{"position":[10,15]}}.
const (
	KindCreateUnit         = "CreateUnit"
	KindSetUnitDestination = "SetUnitDestination"
	KindErrorResponse      = "ErrorResponse"
	KindUnitArrived        = "UnitArrived"
	KindWorldReset         = "WorldReset"
	KindUnitRejected       = "UnitRejected"
)

const exampleMessage = `{"CreateUnit":{"position":[10.0,15.0]}}`

var errEmptyEnvelope = errors.New("message must be an object with exactly one key")

// Envelope is a decoded frame: its kind and the still-encoded body.
type Envelope struct {
	Kind string
	Body json.RawMessage
}

type CreateUnitRequest struct {
	Position [2]float32 `json:"position"`
	ID       string     `json:"id,omitempty"`
}

type SetUnitDestinationRequest struct {
	Destination [2]float32 `json:"destination"`
	ID          string     `json:"id"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}

type UnitArrivedNotice struct {
	ID       string     `json:"id"`
	Position [2]float32 `json:"position"`
	Tick     uint64     `json:"tick"`
}

type WorldResetNotice struct {
	Tick uint64 `json:"tick"`
}

// UnitRejectedNotice retracts a CreateUnit or SetUnitDestination broadcast
// that the simulation refused. Position is the one the refused command sent.
type UnitRejectedNotice struct {
	ID       string     `json:"id"`
	Reason   string     `json:"reason"`
	Position [2]float32 `json:"position"`
}

// isPing reports whether the frame is the client keepalive text.
func isPing(raw []byte) bool {
	return string(bytes.TrimSpace(raw)) == "ping"
}

// DecodeEnvelope splits an externally tagged frame into kind and body.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return Envelope{}, fmt.Errorf("error parsing message: %w, try something like this %s", err, exampleMessage)
	}
	if len(m) != 1 {
		return Envelope{}, errEmptyEnvelope
	}
	for k, v := range m {
		return Envelope{Kind: k, Body: v}, nil
	}
	return Envelope{}, errEmptyEnvelope
}

// DecodeBody unmarshals an envelope body, rejecting unknown fields.
func DecodeBody[T any](body json.RawMessage) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("decode body: %w", err)
	}
	return v, nil
}

// Encode wraps v under kind.
func Encode(kind string, v any) ([]byte, error) {
	return json.Marshal(map[string]any{kind: v})
}

// EncodeError builds an ErrorResponse frame.
func EncodeError(msg string) []byte {
	b, err := Encode(KindErrorResponse, ErrorResponse{Message: msg})
	if err != nil {
		return []byte(`{"ErrorResponse":{"message":"internal error"}}`)
	}
	return b
}

// NormalizeID returns the NFC form of a unit id so visually identical ids
// typed on different clients index the same unit.
func NormalizeID(id string) string {
	return norm.NFC.String(id)
}

// unitReply is the body of a CreateUnit reply.
func unitReply(id string, pos [2]float32) snapshot.Unit {
	return snapshot.Unit{Position: pos, Destination: pos, ID: id}
}

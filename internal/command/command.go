// Package command defines the intents external actors submit to the
// simulation and the bounded queue that carries them to the simulation
// goroutine.
package command

import "fmt"

// Kind discriminates the three command variants.
type Kind uint8

const (
	KindCreateUnit Kind = iota + 1
	KindSetDestination
	KindResetWorld
)

func (k Kind) String() string {
	switch k {
	case KindCreateUnit:
		return "CreateUnit"
	case KindSetDestination:
		return "SetDestination"
	case KindResetWorld:
		return "ResetWorld"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Command is one externally submitted intent. ID and X/Y are unused for
// ResetWorld.
type Command struct {
	Kind Kind
	ID   string
	X    float32
	Y    float32
}

// CreateUnit spawns a unit with the given id at (x, y).
func CreateUnit(id string, x, y float32) Command {
	return Command{Kind: KindCreateUnit, ID: id, X: x, Y: y}
}

// SetDestination points an existing unit at (x, y).
func SetDestination(id string, x, y float32) Command {
	return Command{Kind: KindSetDestination, ID: id, X: x, Y: y}
}

// ResetWorld discards every unit.
func ResetWorld() Command {
	return Command{Kind: KindResetWorld}
}

func (c Command) String() string {
	if c.Kind == KindResetWorld {
		return c.Kind.String()
	}
	return fmt.Sprintf("%s{id=%q x=%g y=%g}", c.Kind, c.ID, c.X, c.Y)
}

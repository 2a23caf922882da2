package component

// Position is where a unit currently stands. Every unit has one.
type Position struct {
	X float32
	Y float32
}

// Destination marks a unit as seeking. Absent means the unit is stationary.
type Destination struct {
	X float32
	Y float32
}

// Velocity in distance units per second. Only present while a Destination is.
type Velocity struct {
	DX float32
	DY float32
}

// UnitIdentity is the externally meaningful id of a unit, distinct from the
// entity handle. It is chosen by whoever submits CreateUnit.
type UnitIdentity struct {
	ID string
}

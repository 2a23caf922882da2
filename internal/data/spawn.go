package data

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/rtsgo/server/internal/command"
	"gopkg.in/yaml.v3"
)

// SpawnEntry places one named unit, optionally already heading somewhere.
type SpawnEntry struct {
	ID          string      `yaml:"id"`
	X           float32     `yaml:"x"`
	Y           float32     `yaml:"y"`
	Destination *[2]float32 `yaml:"destination"`
}

// RandomSpawn scatters Count units uniformly inside the Min/Max rectangle.
// The same Seed always produces the same layout.
type RandomSpawn struct {
	Count  int        `yaml:"count"`
	Prefix string     `yaml:"prefix"`
	Min    [2]float32 `yaml:"min"`
	Max    [2]float32 `yaml:"max"`
	Seed   uint64     `yaml:"seed"`
	// Wander gives every generated unit a random destination in the same
	// rectangle.
	Wander bool `yaml:"wander"`
}

// SpawnList is the parsed spawn_list.yaml.
type SpawnList struct {
	Units  []SpawnEntry `yaml:"units"`
	Random *RandomSpawn `yaml:"random"`
}

// LoadSpawnList loads and validates a spawn list file.
func LoadSpawnList(path string) (*SpawnList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spawn list: %w", err)
	}
	list, err := ParseSpawnList(raw)
	if err != nil {
		return nil, fmt.Errorf("spawn list %s: %w", path, err)
	}
	return list, nil
}

// ParseSpawnList decodes spawn list YAML.
func ParseSpawnList(raw []byte) (*SpawnList, error) {
	var list SpawnList
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("parse spawn list: %w", err)
	}
	if err := list.validate(); err != nil {
		return nil, err
	}
	return &list, nil
}

func (l *SpawnList) validate() error {
	var errs []error
	seen := make(map[string]struct{}, len(l.Units))
	for i, u := range l.Units {
		if u.ID == "" {
			errs = append(errs, fmt.Errorf("units[%d]: missing id", i))
			continue
		}
		if _, dup := seen[u.ID]; dup {
			errs = append(errs, fmt.Errorf("units[%d]: duplicate id %q", i, u.ID))
		}
		seen[u.ID] = struct{}{}
	}
	if r := l.Random; r != nil {
		if r.Count < 0 {
			errs = append(errs, errors.New("random.count must not be negative"))
		}
		if r.Max[0] < r.Min[0] || r.Max[1] < r.Min[1] {
			errs = append(errs, errors.New("random.max must not be below random.min"))
		}
	}
	return errors.Join(errs...)
}

// Count returns how many units the list creates.
func (l *SpawnList) Count() int {
	n := len(l.Units)
	if l.Random != nil {
		n += l.Random.Count
	}
	return n
}

// Commands expands the list into the commands that create it, in file order
// followed by the generated units.
func (l *SpawnList) Commands() []command.Command {
	cmds := make([]command.Command, 0, l.Count()*2)
	for _, u := range l.Units {
		cmds = append(cmds, command.CreateUnit(u.ID, u.X, u.Y))
		if u.Destination != nil {
			cmds = append(cmds, command.SetDestination(u.ID, u.Destination[0], u.Destination[1]))
		}
	}
	if r := l.Random; r != nil && r.Count > 0 {
		prefix := r.Prefix
		if prefix == "" {
			prefix = "unit-"
		}
		rng := rand.New(rand.NewPCG(r.Seed, r.Seed^0x9e3779b97f4a7c15))
		point := func() (float32, float32) {
			return r.Min[0] + rng.Float32()*(r.Max[0]-r.Min[0]),
				r.Min[1] + rng.Float32()*(r.Max[1]-r.Min[1])
		}
		for i := range r.Count {
			id := fmt.Sprintf("%s%d", prefix, i)
			x, y := point()
			cmds = append(cmds, command.CreateUnit(id, x, y))
			if r.Wander {
				dx, dy := point()
				cmds = append(cmds, command.SetDestination(id, dx, dy))
			}
		}
	}
	return cmds
}

// Command rtsbridge embeds the simulation without a clock or network: it
// seeds units, steps a fixed number of ticks and prints every position change
// as one JSON object per line.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/rtsgo/server/internal/command"
	"github.com/rtsgo/server/internal/config"
	"github.com/rtsgo/server/internal/data"
	"github.com/rtsgo/server/internal/sim"
	"go.uber.org/zap"
)

// UnitPositionChange is one output line.
type UnitPositionChange struct {
	NewX   float32 `json:"new_x"`
	NewY   float32 `json:"new_y"`
	UnitID string  `json:"unit_id"`
	Tick   uint64  `json:"tick"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		ticks     = flag.Int("ticks", 60, "number of ticks to step")
		dt        = flag.Float64("dt", 1.0/60, "elapsed seconds per tick")
		spawnPath = flag.String("spawn", "", "spawn list YAML; empty seeds -units random wanderers")
		units     = flag.Int("units", 1000, "random units when no spawn list is given")
		cfgPath   = flag.String("config", "", "optional server.toml for simulation settings")
		prof      = flag.String("profile", "", "write a cpu or mem profile to the working directory")
		quiet     = flag.Bool("quiet", false, "step without printing changes")
	)
	flag.Parse()

	switch *prof {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook, profile.Quiet).Stop()
	default:
		return fmt.Errorf("unknown profile mode %q (want cpu or mem)", *prof)
	}

	cfg := config.Defaults()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	seed, err := seedCommands(*spawnPath, *units)
	if err != nil {
		return err
	}

	engine := sim.NewEngine(cfg.Simulation, nil, nil, 0, zap.NewNop())
	engine.Apply(seed...)

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	enc := json.NewEncoder(out)

	for range *ticks {
		engine.Step(*dt)
		if *quiet {
			continue
		}
		for u := range engine.ChangedUnits() {
			if err := enc.Encode(UnitPositionChange{
				NewX:   u.Position.X,
				NewY:   u.Position.Y,
				UnitID: u.Identity.ID,
				Tick:   engine.Ticks(),
			}); err != nil {
				return fmt.Errorf("write change: %w", err)
			}
		}
	}
	fmt.Fprintf(os.Stderr, "stepped %d ticks, %d units\n", engine.Ticks(), engine.UnitCount())
	return nil
}

func seedCommands(spawnPath string, units int) ([]command.Command, error) {
	if spawnPath != "" {
		list, err := data.LoadSpawnList(spawnPath)
		if err != nil {
			return nil, err
		}
		return list.Commands(), nil
	}
	list := data.SpawnList{Random: &data.RandomSpawn{
		Count:  units,
		Prefix: "unit-",
		Min:    [2]float32{-500, -500},
		Max:    [2]float32{500, 500},
		Seed:   1,
		Wander: true,
	}}
	return list.Commands(), nil
}

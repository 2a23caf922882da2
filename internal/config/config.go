package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Simulation SimulationConfig `toml:"simulation"`
	Network    NetworkConfig    `toml:"network"`
	Database   DatabaseConfig   `toml:"database"`
	Admin      AdminConfig      `toml:"admin"`
	Data       DataConfig       `toml:"data"`
	Scripting  ScriptingConfig  `toml:"scripting"`
	Logging    LoggingConfig    `toml:"logging"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	StartTime int64  // set at boot, not from config
}

// SimulationConfig is everything the simulation core takes at construction.
type SimulationConfig struct {
	TickInterval     Duration `toml:"tick_interval"`
	SeekSpeed        float64  `toml:"seek_speed"`        // distance units per second
	ArrivalThreshold float64  `toml:"arrival_threshold"` // squared distance
	CommandQueueSize int      `toml:"command_queue_size"`
	Backpressure     string   `toml:"backpressure"` // "block" or "fail"
}

type NetworkConfig struct {
	BindAddress    string   `toml:"bind_address"`
	PublicURL      string   `toml:"public_url"` // ws base handed out by /register, e.g. "ws://127.0.0.1:8000"
	SendQueueSize  int      `toml:"send_queue_size"`
	MaxMessageSize int64    `toml:"max_message_size"`
	WriteTimeout   Duration `toml:"write_timeout"`
	PongTimeout    Duration `toml:"pong_timeout"`
	SubmitTimeout  Duration `toml:"submit_timeout"`
}

// DatabaseConfig enables the Postgres-backed client registry and tick-stat
// sink when DSN is non-empty.
type DatabaseConfig struct {
	DSN             string   `toml:"dsn"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
}

type AdminConfig struct {
	ResetKeyHash string `toml:"reset_key_hash"` // bcrypt; empty leaves /reset open
}

type DataConfig struct {
	SpawnList string `toml:"spawn_list"` // optional YAML seed
}

type ScriptingConfig struct {
	Scenario string `toml:"scenario"` // optional Lua scenario run at boot
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type MetricsConfig struct {
	SampleEveryTicks int `toml:"sample_every_ticks"`
	SinkBuffer       int `toml:"sink_buffer"`
}

// Duration decodes TOML strings such as "250ms" into a time.Duration.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Validate rejects settings the simulation cannot run with.
func (c *Config) Validate() error {
	var errs []error
	s := c.Simulation
	if s.TickInterval.Duration <= 0 {
		errs = append(errs, errors.New("simulation.tick_interval must be positive"))
	}
	if s.SeekSpeed <= 0 {
		errs = append(errs, errors.New("simulation.seek_speed must be positive"))
	}
	if s.ArrivalThreshold <= 0 {
		errs = append(errs, errors.New("simulation.arrival_threshold must be positive"))
	}
	if s.CommandQueueSize < 1 {
		errs = append(errs, errors.New("simulation.command_queue_size must be at least 1"))
	}
	if s.Backpressure != "block" && s.Backpressure != "fail" {
		errs = append(errs, fmt.Errorf("simulation.backpressure %q: want block or fail", s.Backpressure))
	}
	n := c.Network
	if n.SendQueueSize < 1 {
		errs = append(errs, errors.New("network.send_queue_size must be at least 1"))
	}
	if n.MaxMessageSize < 1 {
		errs = append(errs, errors.New("network.max_message_size must be at least 1"))
	}
	for name, d := range map[string]Duration{
		"write_timeout":  n.WriteTimeout,
		"pong_timeout":   n.PongTimeout,
		"submit_timeout": n.SubmitTimeout,
	} {
		if d.Duration <= 0 {
			errs = append(errs, fmt.Errorf("network.%s must be positive", name))
		}
	}
	return errors.Join(errs...)
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "rtsgo",
		},
		Simulation: SimulationConfig{
			TickInterval:     Duration{time.Second},
			SeekSpeed:        5,
			ArrivalThreshold: 0.1,
			CommandQueueSize: 1000,
			Backpressure:     "block",
		},
		Network: NetworkConfig{
			BindAddress:    "0.0.0.0:8000",
			PublicURL:      "ws://127.0.0.1:8000",
			SendQueueSize:  256,
			MaxMessageSize: 4096,
			WriteTimeout:   Duration{10 * time.Second},
			PongTimeout:    Duration{60 * time.Second},
			SubmitTimeout:  Duration{5 * time.Second},
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: Duration{30 * time.Minute},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			SampleEveryTicks: 60,
			SinkBuffer:       128,
		},
	}
}

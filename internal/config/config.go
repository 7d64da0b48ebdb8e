package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"electionsim/mapsim/internal/travel"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds all mapsim configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Map     MapConfig     `yaml:"map"`
	Agents  AgentsConfig  `yaml:"agents"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the websocket endpoint and the frame loop.
type ServerConfig struct {
	Addr              string  `yaml:"addr"`
	TickInterval      string  `yaml:"tick_interval"`      // frame length of the motion loop
	BroadcastInterval string  `yaml:"broadcast_interval"` // how often positions are pushed
	CommandRate       float64 `yaml:"command_rate"`       // actions per second per client
	CommandBurst      int     `yaml:"command_burst"`
}

// MapConfig selects a built-in layout or describes zones by hand.
type MapConfig struct {
	Preset       string        `yaml:"preset"`
	Stage        *travel.Stage `yaml:"stage,omitempty"` // replaces the preset's stage
	CorridorX    float64       `yaml:"corridor_x"`
	SettleOffset float64       `yaml:"settle_offset"`
	Zones        []ZoneConfig  `yaml:"zones"`
}

// ZoneConfig is a hand-placed zone. Gateway defaults to the middle of the
// side facing the corridor.
type ZoneConfig struct {
	ID      string      `yaml:"id"`
	Name    string      `yaml:"name"`
	X       float64     `yaml:"x"`
	Y       float64     `yaml:"y"`
	Width   float64     `yaml:"width"`
	Height  float64     `yaml:"height"`
	Gateway *[2]float64 `yaml:"gateway,omitempty"`
}

// AgentsConfig configures agent kinds and the starting population.
type AgentsConfig struct {
	Profiles map[string]travel.Profile `yaml:"profiles"`
	Seed     []SeedConfig              `yaml:"seed"`
}

// SeedConfig spawns Count agents of Kind in Zone at startup.
type SeedConfig struct {
	Zone  string `yaml:"zone"`
	Kind  string `yaml:"kind"`
	Count int    `yaml:"count"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns the God Mode map with a small crowd.
func DefaultConfig() *Config {
	profiles := map[string]travel.Profile{}
	for k, p := range travel.DefaultProfiles() {
		profiles[string(k)] = p
	}
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			TickInterval:      "16ms",
			BroadcastInterval: "100ms",
			CommandRate:       10,
			CommandBurst:      20,
		},
		Map: MapConfig{
			Preset:       "godmode",
			SettleOffset: travel.DefaultSettleOffset,
		},
		Agents: AgentsConfig{
			Profiles: profiles,
			Seed: []SeedConfig{
				{Zone: "downtown", Kind: string(travel.Ordinary), Count: 12},
				{Zone: "suburbs", Kind: string(travel.Ordinary), Count: 12},
				{Zone: "campus", Kind: string(travel.Ordinary), Count: 8},
				{Zone: "industrial", Kind: string(travel.Ordinary), Count: 8},
				{Zone: "downtown", Kind: string(travel.Notable), Count: 2},
			},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file, falling back to defaults when
// the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MAPSIM_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("MAPSIM_PRESET"); v != "" {
		c.Map.Preset = v
		c.Map.Zones = nil
	}
	if v := os.Getenv("MAPSIM_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks the values that cannot be caught by the layout builder.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is empty", ErrInvalidConfig)
	}
	if _, err := c.Server.Tick(); err != nil {
		return err
	}
	if _, err := c.Server.Broadcast(); err != nil {
		return err
	}
	if c.Server.CommandRate <= 0 || c.Server.CommandBurst <= 0 {
		return fmt.Errorf("%w: command_rate and command_burst must be positive", ErrInvalidConfig)
	}
	if st := c.Map.Stage; st != nil {
		if len(c.Map.Zones) > 0 {
			return fmt.Errorf("%w: map.stage only applies to presets", ErrInvalidConfig)
		}
		if st.Width <= 0 || st.Height <= 0 || st.Margin < 0 || st.CorridorWidth < 0 {
			return fmt.Errorf("%w: map.stage needs a positive size and non-negative margin and corridor_width", ErrInvalidConfig)
		}
	}
	for kind, p := range c.Agents.Profiles {
		if p.TravelSpeed <= 0 || p.WanderSpeed < 0 || p.Radius < 0 {
			return fmt.Errorf("%w: profile %q has non-positive speed or negative radius", ErrInvalidConfig, kind)
		}
	}
	for _, s := range c.Agents.Seed {
		if _, ok := c.Agents.Profiles[s.Kind]; !ok {
			return fmt.Errorf("%w: seed kind %q has no profile", ErrInvalidConfig, s.Kind)
		}
		if s.Count < 0 {
			return fmt.Errorf("%w: seed count for %q is negative", ErrInvalidConfig, s.Zone)
		}
	}
	return nil
}

// Tick is the frame length of the motion loop.
func (s ServerConfig) Tick() (time.Duration, error) {
	return positiveDuration("tick_interval", s.TickInterval)
}

// Broadcast is the interval between position pushes.
func (s ServerConfig) Broadcast() (time.Duration, error) {
	return positiveDuration("broadcast_interval", s.BroadcastInterval)
}

func positiveDuration(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
	}
	return d, nil
}

// KindProfiles converts the configured profiles to travel kinds.
func (a AgentsConfig) KindProfiles() map[travel.Kind]travel.Profile {
	out := make(map[travel.Kind]travel.Profile, len(a.Profiles))
	for k, p := range a.Profiles {
		out[travel.Kind(k)] = p
	}
	return out
}

// Layout builds the zone registry.
func (m MapConfig) Layout() (*travel.Layout, error) {
	if len(m.Zones) == 0 {
		stage, specs, err := travel.PresetZones(m.Preset)
		if err != nil {
			return nil, err
		}
		if m.Stage != nil {
			stage = *m.Stage
		}
		return travel.GridLayout(stage, m.SettleOffset, specs...)
	}
	zones := make([]travel.Zone, 0, len(m.Zones))
	for _, zc := range m.Zones {
		z := travel.Zone{
			ID:     zc.ID,
			Name:   zc.Name,
			Bounds: orb.Bound{Min: orb.Point{zc.X, zc.Y}, Max: orb.Point{zc.X + zc.Width, zc.Y + zc.Height}},
		}
		switch {
		case zc.Gateway != nil:
			z.Gateway = orb.Point{zc.Gateway[0], zc.Gateway[1]}
		case zc.X+zc.Width <= m.CorridorX:
			z.Gateway = orb.Point{zc.X + zc.Width, zc.Y + zc.Height/2}
		default:
			z.Gateway = orb.Point{zc.X, zc.Y + zc.Height/2}
		}
		zones = append(zones, z)
	}
	return travel.NewLayout(m.CorridorX, m.SettleOffset, zones...)
}

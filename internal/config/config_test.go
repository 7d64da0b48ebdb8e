package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"electionsim/mapsim/internal/travel"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	tick, err := cfg.Server.Tick()
	require.NoError(t, err)
	assert.Equal(t, 16*time.Millisecond, tick)

	l, err := cfg.Map.Layout()
	require.NoError(t, err)
	assert.Len(t, l.Zones(), 4)
	for _, s := range cfg.Agents.Seed {
		_, ok := l.Zone(s.Zone)
		assert.True(t, ok, "seed zone %q missing from default layout", s.Zone)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("MAPSIM_ADDR", "")
	t.Setenv("MAPSIM_PRESET", "")
	t.Setenv("MAPSIM_LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadCustomZones(t *testing.T) {
	t.Setenv("MAPSIM_ADDR", "")
	t.Setenv("MAPSIM_PRESET", "")
	t.Setenv("MAPSIM_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "mapsim.yaml")
	data := `
server:
  addr: ":9999"
  tick_interval: 20ms
map:
  corridor_x: 150
  settle_offset: 30
  zones:
    - {id: home, name: Home, x: 0, y: 0, width: 100, height: 100}
    - {id: office, name: Office, x: 200, y: 0, width: 100, height: 100}
    - {id: park, name: Park, x: 200, y: 150, width: 100, height: 100, gateway: [200, 170]}
agents:
  seed:
    - {zone: home, kind: ordinary, count: 3}
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "100ms", cfg.Server.BroadcastInterval, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Len(t, cfg.Agents.Seed, 1)

	l, err := cfg.Map.Layout()
	require.NoError(t, err)
	home, _ := l.Zone("home")
	office, _ := l.Zone("office")
	park, _ := l.Zone("park")
	assert.Equal(t, orb.Point{100, 50}, home.Gateway)
	assert.Equal(t, orb.Point{200, 50}, office.Gateway)
	assert.Equal(t, orb.Point{200, 170}, park.Gateway)
	assert.Equal(t, []orb.Point{{100, 50}, {150, 50}, {200, 50}, {230, 50}}, l.BuildRoute("home", "office"))
}

func TestLoadPresetStage(t *testing.T) {
	t.Setenv("MAPSIM_ADDR", "")
	t.Setenv("MAPSIM_PRESET", "")
	t.Setenv("MAPSIM_LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "mapsim.yaml")
	data := `
map:
  preset: simulation
  stage: {width: 600, height: 200, margin: 0, corridor_width: 200}
agents:
  seed:
    - {zone: home, kind: ordinary, count: 1}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Map.Stage)

	l, err := cfg.Map.Layout()
	require.NoError(t, err)
	assert.Equal(t, 300.0, l.CorridorX())
	home, ok := l.Zone("home")
	require.True(t, ok)
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{200, 200}}, home.Bounds)
	assert.Equal(t, orb.Point{200, 100}, home.Gateway)
	office, ok := l.Zone("office")
	require.True(t, ok)
	assert.Equal(t, orb.Point{400, 100}, office.Gateway)
}

func TestLayoutRejectsGatewayAwayFromCorridor(t *testing.T) {
	m := MapConfig{
		CorridorX:    150,
		SettleOffset: 30,
		Zones: []ZoneConfig{
			{ID: "home", X: 0, Y: 0, Width: 100, Height: 100},
			{ID: "office", X: 200, Y: 0, Width: 100, Height: 100, Gateway: &[2]float64{300, 50}},
		},
	}
	_, err := m.Layout()
	assert.ErrorIs(t, err, travel.ErrGatewayOffBoundary)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MAPSIM_ADDR", "127.0.0.1:7000")
	t.Setenv("MAPSIM_PRESET", "simulation")
	t.Setenv("MAPSIM_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
	assert.Equal(t, "simulation", cfg.Map.Preset)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"bad tick", func(c *Config) { c.Server.TickInterval = "soon" }},
		{"zero broadcast", func(c *Config) { c.Server.BroadcastInterval = "0s" }},
		{"zero rate", func(c *Config) { c.Server.CommandRate = 0 }},
		{"stopped kind", func(c *Config) { c.Agents.Profiles["ordinary"] = travel.Profile{Radius: 4} }},
		{"unknown seed kind", func(c *Config) { c.Agents.Seed = append(c.Agents.Seed, SeedConfig{Zone: "downtown", Kind: "mayor", Count: 1}) }},
		{"negative seed", func(c *Config) { c.Agents.Seed[0].Count = -1 }},
		{"flat stage", func(c *Config) { c.Map.Stage = &travel.Stage{Width: 800} }},
		{"stage with zones", func(c *Config) {
			c.Map.Stage = &travel.Stage{Width: 800, Height: 600}
			c.Map.Zones = []ZoneConfig{{ID: "a", Width: 100, Height: 100}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestKindProfiles(t *testing.T) {
	profiles := DefaultConfig().Agents.KindProfiles()
	assert.Equal(t, travel.DefaultProfiles(), profiles)
}

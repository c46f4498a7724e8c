package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Kunal6688/PestDetect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 100, cfg.History.MaxEvents)
	assert.Equal(t, 24*time.Hour, cfg.History.RecentWindow)
	assert.Equal(t, 30*time.Second, cfg.Sensors.PollInterval)
	require.Len(t, cfg.Sensors.Items, 4)
	assert.Equal(t, "temperature", cfg.Sensors.Items[0].Name)
	require.Len(t, cfg.Actuators.Relays, 2)
	assert.Equal(t, 60*time.Second, cfg.Actuators.Relays[0].Cooldown)
	assert.Equal(t, 10*time.Second, cfg.Actuators.Relays[0].AutoRelease)
	require.NotEmpty(t, cfg.Rules)
	assert.Equal(t, "pump", cfg.Rules[0].RelayID)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yml := `
port: "9090"
history:
  max_events: 10
actuators:
  relays:
    - id: fan
      cooldown: 5s
      auto_release: 2s
rules:
  - class: mite
    relay: fan
    threshold: 0.4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o600))
	t.Setenv("PEST_DB_PATH", "/tmp/override.db")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 10, cfg.History.MaxEvents)
	assert.Equal(t, "/tmp/override.db", cfg.DB.Path)
	require.Len(t, cfg.Actuators.Relays, 1)
	assert.Equal(t, "fan", cfg.Actuators.Relays[0].ID)
	assert.Equal(t, 5*time.Second, cfg.Actuators.Relays[0].Cooldown)
	assert.Equal(t, []models.ResponseRule{{ClassName: "mite", RelayID: "fan", Threshold: 0.4}}, cfg.Rules)
}

func TestLoad_RejectsRuleForUnknownRelay(t *testing.T) {
	dir := t.TempDir()
	yml := `
rules:
  - class: mite
    relay: nowhere
    threshold: 0.4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o600))

	_, err := Load(dir)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func validConfig() Config {
	return Config{
		History:   HistoryConfig{MaxEvents: 10},
		Broadcast: BroadcastConfig{SubscriberBuffer: 4},
		Sensors: SensorsConfig{
			PollInterval: time.Second,
			Items:        []SensorConfig{{Name: "t", Type: models.SensorTemperature}},
		},
		Actuators: ActuatorsConfig{Relays: []RelayConfig{{ID: "pump"}}},
		Rules:     []models.ResponseRule{{ClassName: "aphid", RelayID: "pump", Threshold: 0.5}},
		Detection: DetectionConfig{Driver: DriverSimulated, Timeout: time.Second},
		Hardware:  HardwareConfig{Driver: DriverSimulated},
		Images:    ImagesConfig{Driver: DriverFS},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"zero_history", func(c *Config) { c.History.MaxEvents = 0 }, false},
		{"threshold_above_one", func(c *Config) { c.Rules[0].Threshold = 1.5 }, false},
		{"threshold_negative", func(c *Config) { c.Rules[0].Threshold = -0.1 }, false},
		{"threshold_edges", func(c *Config) { c.Rules = append(c.Rules, models.ResponseRule{ClassName: "mite", RelayID: "pump", Threshold: 1}) }, true},
		{"duplicate_relay", func(c *Config) { c.Actuators.Relays = append(c.Actuators.Relays, RelayConfig{ID: "pump"}) }, false},
		{"empty_relay", func(c *Config) { c.Actuators.Relays[0].ID = " " }, false},
		{"duplicate_sensor", func(c *Config) { c.Sensors.Items = append(c.Sensors.Items, SensorConfig{Name: "t"}) }, false},
		{"unknown_driver", func(c *Config) { c.Hardware.Driver = "gpio" }, false},
		{"rule_without_class", func(c *Config) { c.Rules[0].ClassName = "" }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(&c)
			err := c.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs"))
	require.NoError(t, err)

	assert.Equal(t, DriverSimulated, cfg.Hardware.Driver)
	assert.Equal(t, DriverFS, cfg.Images.Driver)
	assert.False(t, cfg.Auth.Enabled)
	require.Len(t, cfg.Rules, 4)
	assert.Equal(t, "trap", cfg.Rules[2].RelayID)
	assert.Equal(t, "°C", cfg.Sensors.Items[0].Unit)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Archive.Kafka.Brokers)
}

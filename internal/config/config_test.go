package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"courtbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("COURTBOOK_DB", filepath.Join(tmpDir, "courtbook.db"))
	yamlContent := `
database:
  path: "${COURTBOOK_DB}"
scheduling:
  timezone: "Europe/Moscow"
  min_lead_time: 90m
events:
  retry:
    max_retries: 7
fields:
  - code: "Court-1"
    name: "Court 1"
    sport_type: tennis
    surface_type: clay
    hourly_rate: 20
    tuesday: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(tmpDir, "courtbook.db"), cfg.Database.Path)
	assert.Equal(t, 90*time.Minute, cfg.Scheduling.MinLeadTime)
	assert.Equal(t, 7, cfg.Events.Retry.MaxRetries)

	loc, err := cfg.Scheduling.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", loc.String())

	require.Len(t, cfg.Fields, 1)
	f := cfg.Fields[0]
	assert.Equal(t, "Court-1", f.Code)
	assert.Equal(t, models.DefaultOpeningTime, f.OpeningTime)
	assert.Equal(t, models.DefaultClosingTime, f.ClosingTime)
	assert.Equal(t, models.DefaultCapacity, f.Capacity)
	assert.True(t, f.IsActive)
	assert.True(t, f.IsOpenOn(0))
	assert.False(t, f.IsOpenOn(1))
	assert.True(t, f.IsOpenOn(6))
}

func TestLoadConfig_FieldDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
database:
  path: "./ledger.db"
fields:
  - code: "Hall-B"
    name: "Hall B"
    hourly_rate: 15
  - code: "Court-9"
    name: "Court 9"
    hourly_rate: 15
    capacity: 4
    opening_time: 0
    closing_time: 12
    is_active: false
    sunday: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.Len(t, cfg.Fields, 2)

	hall := cfg.Fields[0]
	assert.True(t, hall.IsActive)
	assert.Equal(t, [7]bool{true, true, true, true, true, true, true}, hall.OpenDays())
	assert.Equal(t, models.DefaultOpeningTime, hall.OpeningTime)
	assert.Equal(t, models.DefaultClosingTime, hall.ClosingTime)
	assert.Equal(t, models.DefaultCapacity, hall.Capacity)

	court := cfg.Fields[1]
	assert.False(t, court.IsActive)
	assert.False(t, court.IsOpenOn(6))
	assert.True(t, court.IsOpenOn(5))
	assert.Equal(t, 0.0, court.OpeningTime)
	assert.Equal(t, 12.0, court.ClosingTime)
	assert.Equal(t, 4, court.Capacity)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("database: [\n"), 0o644))
	_, err = Load(bad)
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() Config {
		c := Config{Database: DatabaseConfig{Path: "path"}}
		c.applyDefaults()
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, true},
		{"bad timezone", func(c *Config) { c.Scheduling.Timezone = "Mars/Olympus" }, true},
		{"inverted durations", func(c *Config) { c.Scheduling.MinDuration = 5 }, true},
		{"tls without cert", func(c *Config) { c.API.GRPC.TLS.Enabled = true }, true},
		{"duplicate field", func(c *Config) {
			c.Fields = []models.Field{{Code: "A", Name: "a"}, {Code: "A", Name: "b"}}
		}, true},
		{"empty field code", func(c *Config) { c.Fields = []models.Field{{Name: "a"}} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 2*time.Hour, cfg.Scheduling.MinLeadTime)
	assert.Equal(t, 1.0, cfg.Scheduling.MinDuration)
	assert.Equal(t, 4.0, cfg.Scheduling.MaxDuration)
	assert.Equal(t, 0.5, cfg.Scheduling.Granularity)
	assert.Equal(t, "BK", cfg.Scheduling.ReferencePrefix)
	assert.Equal(t, 30*time.Second, cfg.Scheduling.FieldCacheTTL)
	assert.Equal(t, "courtbook.events", cfg.Events.Exchange)

	loc, err := cfg.Scheduling.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

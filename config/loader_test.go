package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Len(t, cfg.Gates, 4)
	assert.Equal(t, "Foundation", cfg.Gates[0].Name)
	assert.Equal(t, 0.75, cfg.Gates[0].Threshold)
	assert.Equal(t, 0.80, cfg.Gates[1].Threshold)
	assert.Equal(t, 0.80, cfg.Gates[2].Threshold)
	assert.Equal(t, "Output", cfg.Gates[3].Name)
	assert.Equal(t, 0.85, cfg.Gates[3].Threshold)

	assert.Equal(t, 3, cfg.Debate.MaxRounds)
	assert.Equal(t, 50.0, cfg.Budget.DailyCeiling)
	assert.Equal(t, 0.3, cfg.Cache.TemperatureCeiling)
	assert.Equal(t, 0.05, cfg.Escalation.SensitiveMargin)
	assert.Contains(t, cfg.Escalation.SensitiveTopics, "coup")

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Database.Enabled)

	// Stage weights of the reference system sum to one.
	var sum float64
	for _, w := range cfg.Pipeline.StageWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	require.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestDefaultGates_WeightsSumToOne(t *testing.T) {
	for _, g := range DefaultGates() {
		var sum float64
		for _, f := range g.Factors {
			sum += f.Weight
		}
		assert.InDeltaf(t, 1.0, sum, 1e-9, "gate %s", g.Name)
	}
}

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.Retry.InitialDelay)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "undertow.yaml")

	yamlContent := `
pipeline:
  strict_gates: true
  enable_adversarial: false
  stage_timeout: 3m

gates:
  - name: "Foundation"
    threshold: 0.70
    factors:
      - name: stage_quality
        weight: 1.0

debate:
  max_rounds: 5

budget:
  daily_ceiling: 12.5
  alert_threshold: 0.9

escalation:
  sensitive_topics: ["coup", "blockade"]

log:
  level: "debug"
  format: "console"
`
	err := os.WriteFile(configPath, []byte(yamlContent), 0644)
	require.NoError(t, err)

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.True(t, cfg.Pipeline.StrictGates)
	assert.False(t, cfg.Pipeline.EnableAdversarial)
	assert.Equal(t, 3*time.Minute, cfg.Pipeline.StageTimeout)

	// YAML replaces the gate list wholesale.
	require.Len(t, cfg.Gates, 1)
	assert.Equal(t, 0.70, cfg.Gates[0].Threshold)

	assert.Equal(t, 5, cfg.Debate.MaxRounds)
	assert.Equal(t, 12.5, cfg.Budget.DailyCeiling)
	assert.Equal(t, []string{"coup", "blockade"}, cfg.Escalation.SensitiveTopics)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("UNDERTOW_BUDGET_DAILY_CEILING", "99.5")
	t.Setenv("UNDERTOW_DEBATE_MAX_ROUNDS", "1")
	t.Setenv("UNDERTOW_LOG_LEVEL", "warn")
	t.Setenv("UNDERTOW_ESCALATION_SENSITIVE_TOPICS", "coup, embargo")
	t.Setenv("UNDERTOW_PIPELINE_STAGE_TIMEOUT", "90s")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 99.5, cfg.Budget.DailyCeiling)
	assert.Equal(t, 1, cfg.Debate.MaxRounds)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"coup", "embargo"}, cfg.Escalation.SensitiveTopics)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.StageTimeout)
}

func TestConfig_ValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad gate weights", func(c *Config) { c.Gates[0].Factors[0].Weight = 0.9 }, "weights sum"},
		{"bad threshold", func(c *Config) { c.Gates[0].Threshold = 1.5 }, "threshold"},
		{"negative rounds", func(c *Config) { c.Debate.MaxRounds = -1 }, "max_rounds"},
		{"zero budget", func(c *Config) { c.Budget.DailyCeiling = 0 }, "daily_ceiling"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad driver", func(c *Config) { c.Database.Enabled = true; c.Database.Driver = "oracle" }, "database.driver"},
		{"bad multiplier", func(c *Config) { c.Retry.Multiplier = 0.5 }, "multiplier"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "undertow", SSLMode: "disable"}
	assert.Contains(t, pg.DSN(), "host=db")
	assert.Contains(t, pg.DSN(), "dbname=undertow")

	lite := DatabaseConfig{Driver: "sqlite", Name: "/tmp/undertow.db"}
	assert.Equal(t, "/tmp/undertow.db", lite.DSN())

	other := DatabaseConfig{Driver: "oracle"}
	assert.Empty(t, other.DSN())
}

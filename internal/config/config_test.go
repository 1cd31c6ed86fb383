package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "phelps_wi", cfg.Stations.Target)
	assert.Len(t, cfg.Stations.Targets, 3)
	assert.Len(t, cfg.Stations.Predictors, 8)

	assert.Equal(t, 14, cfg.Forecast.HorizonDays)
	assert.Equal(t, 5.0, cfg.Forecast.Thresholds.LightMM)
	assert.Equal(t, 25.0, cfg.Forecast.Thresholds.HeavyMM)

	assert.Equal(t, -30, cfg.Analysis.MinLag)
	assert.Equal(t, 30, cfg.Analysis.MaxLag)
	assert.Equal(t, 0.05, cfg.Analysis.Alpha)

	assert.Equal(t, 0.0, cfg.Backtest.EventThresholdMM)
	assert.Equal(t, 50.0, cfg.Backtest.MajorEventMM)

	require.Len(t, cfg.Forecast.ProbabilityBands, 5)
	assert.Equal(t, "very_high", cfg.Forecast.ProbabilityBands[0].Name)
	assert.Equal(t, 0.0, cfg.Forecast.ProbabilityBands[4].MinScore)
	require.Len(t, cfg.Forecast.ConfidenceBands, 3)
	assert.Equal(t, "moderate", cfg.Forecast.ConfidenceBands[0].Label)

	assert.Equal(t, 6*time.Hour, cfg.Ingest.Interval)
	assert.False(t, cfg.Publish.Kafka.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snowsignal.yaml")
	content := `
forecast:
  horizon_days: 21
  probability_bands:
    - min_score: 0.45
      name: elevated
      pct: 75
      range: 70-80%
      alert_level: advisory
      action: watch closely
    - min_score: 0
      name: baseline
      pct: 20
      range: 10-30%
      alert_level: none
      action: routine
  confidence_bands:
    - max_offset: 2
      label: firm
    - max_offset: 20
      label: soft
stations:
  target: custom_target
  targets:
    - station_id: custom_target
      name: Custom Target
      latitude: 45.0
      longitude: -90.0
  predictors:
    - station_id: custom_predictor
      name: Custom Predictor
      latitude: 50.0
      longitude: -88.0
      lag_days: 4
      weight: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 21, cfg.Forecast.HorizonDays)

	// Configured banding tables replace the built-in ones.
	require.Len(t, cfg.Forecast.ProbabilityBands, 2)
	assert.Equal(t, "elevated", cfg.Forecast.ProbabilityBands[0].Name)
	assert.Equal(t, 0.45, cfg.Forecast.ProbabilityBands[0].MinScore)
	require.Len(t, cfg.Forecast.ConfidenceBands, 2)
	assert.Equal(t, "soft", cfg.Forecast.ConfidenceBands[1].Label)

	// A configured station list replaces the built-in network.
	require.Len(t, cfg.Stations.Targets, 1)
	require.Len(t, cfg.Stations.Predictors, 1)
	assert.Equal(t, "custom_predictor", cfg.Stations.Predictors[0].StationID)
	assert.Equal(t, 4, cfg.Stations.Predictors[0].LagDays)

	// Untouched sections keep their defaults.
	assert.Equal(t, "https://archive-api.open-meteo.com/v1/archive", cfg.Ingest.BaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SNOWSIGNAL_SERVER_ADDR", ":9090")
	t.Setenv("SNOWSIGNAL_FORECAST_HORIZON_DAYS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 7, cfg.Forecast.HorizonDays)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero ingest window", func(c *Config) { c.Ingest.WindowDays = 0 }},
		{"inverted lag window", func(c *Config) { c.Analysis.MinLag = 10; c.Analysis.MaxLag = -10 }},
		{"alpha out of range", func(c *Config) { c.Analysis.Alpha = 1.5 }},
		{"descending thresholds", func(c *Config) { c.Forecast.Thresholds.ModerateMM = 30 }},
		{"ascending band cut points", func(c *Config) { c.Forecast.ProbabilityBands[1].MinScore = 0.9 }},
		{"ascending band pcts", func(c *Config) { c.Forecast.ProbabilityBands[1].Pct = 95 }},
		{"bottom band above zero", func(c *Config) { c.Forecast.ProbabilityBands[4].MinScore = 0.01 }},
		{"unnamed band", func(c *Config) { c.Forecast.ProbabilityBands[2].Name = "" }},
		{"no confidence bands", func(c *Config) { c.Forecast.ConfidenceBands = nil }},
		{"descending confidence offsets", func(c *Config) { c.Forecast.ConfidenceBands[1].MaxOffset = 2 }},
		{"negative event threshold", func(c *Config) { c.Backtest.EventThresholdMM = -1 }},
		{"major below event threshold", func(c *Config) {
			c.Backtest.EventThresholdMM = 20
			c.Backtest.MajorEventMM = 10
		}},
		{"hit below partial", func(c *Config) { c.Backtest.HitPct = 20 }},
		{"collapsed signal classes", func(c *Config) { c.Backtest.ModerateGlobalScore = 0.15 }},
		{"unknown target", func(c *Config) { c.Stations.Target = "nowhere" }},
		{"negative weight", func(c *Config) { c.Stations.Predictors[0].Weight = -0.1 }},
		{"kafka enabled without topic", func(c *Config) {
			c.Publish.Kafka.Enabled = true
			c.Publish.Kafka.Topic = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			require.NoError(t, cfg.Validate())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPredictorDescriptors(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	descriptors := cfg.PredictorDescriptors()
	require.Len(t, descriptors, 8)

	usable := 0
	for _, d := range descriptors {
		assert.Equal(t, cfg.Forecast.Thresholds, d.Thresholds)
		if d.Usable() {
			usable++
		}
	}
	// The two trailing validation stations never make the active set.
	assert.Equal(t, 6, usable)
}

func TestSeedStations(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	stations := cfg.SeedStations()
	require.Len(t, stations, 11)

	roles := map[string]int{}
	for _, st := range stations {
		roles[string(st.Role)]++
		assert.True(t, st.Active)
		assert.NotEmpty(t, st.Name)
	}
	assert.Equal(t, 3, roles["target"])
	assert.Equal(t, 8, roles["predictor"])
}

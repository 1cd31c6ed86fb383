// Package config loads snowsignal settings from an optional YAML file
// and SNOWSIGNAL_* environment variables, with working defaults for
// the built-in station network.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lox/snowsignal/internal/forecast"
	"github.com/lox/snowsignal/internal/models"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Server   ServerConfig   `mapstructure:"server"`
	Stations StationsConfig `mapstructure:"stations"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type IngestConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	WindowDays int           `mapstructure:"window_days"`
	Interval   time.Duration `mapstructure:"interval"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type AnalysisConfig struct {
	MinLag       int     `mapstructure:"min_lag"`
	MaxLag       int     `mapstructure:"max_lag"`
	MinSamples   int     `mapstructure:"min_samples"`
	Alpha        float64 `mapstructure:"alpha"`
	LookbackDays int     `mapstructure:"lookback_days"`
}

type ForecastConfig struct {
	HorizonDays int                       `mapstructure:"horizon_days"`
	Thresholds  models.ActivityThresholds `mapstructure:"activity_thresholds"`
	// Banding tables for the published outlook. Probability bands are
	// ordered highest cut point first; confidence bands by ascending
	// max offset.
	ProbabilityBands []models.ProbabilityBand `mapstructure:"probability_bands"`
	ConfidenceBands  []models.ConfidenceBand  `mapstructure:"confidence_bands"`
}

type BacktestConfig struct {
	EventThresholdMM    float64 `mapstructure:"event_threshold_mm"`
	MajorEventMM        float64 `mapstructure:"major_event_mm"`
	HitPct              int     `mapstructure:"hit_pct"`
	PartialPct          int     `mapstructure:"partial_pct"`
	StrongGlobalScore   float64 `mapstructure:"strong_global_score"`
	ModerateGlobalScore float64 `mapstructure:"moderate_global_score"`
	WeakGlobalScore     float64 `mapstructure:"weak_global_score"`
}

type PublishConfig struct {
	SnapshotDir string      `mapstructure:"snapshot_dir"`
	Kafka       KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StationsConfig struct {
	Target     string        `mapstructure:"target"`
	Targets    []StationSeed `mapstructure:"targets"`
	Predictors []StationSeed `mapstructure:"predictors"`
}

// StationSeed is one configured station. Lag and weight only apply to
// predictor roles.
type StationSeed struct {
	StationID string  `mapstructure:"station_id"`
	Name      string  `mapstructure:"name"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
	Elevation float64 `mapstructure:"elevation"`
	Country   string  `mapstructure:"country"`
	Region    string  `mapstructure:"region"`
	LagDays   int     `mapstructure:"lag_days"`
	Weight    float64 `mapstructure:"weight"`
}

// Load reads configuration from the given file (optional, pass "" for
// defaults only) and SNOWSIGNAL_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("SNOWSIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Curated defaults for the list-valued sections; a config file
	// replaces them wholesale rather than merging.
	if len(cfg.Stations.Targets) == 0 {
		cfg.Stations.Targets = builtinTargets()
	}
	if len(cfg.Stations.Predictors) == 0 {
		cfg.Stations.Predictors = builtinPredictors()
	}
	if len(cfg.Forecast.ProbabilityBands) == 0 {
		cfg.Forecast.ProbabilityBands = forecast.DefaultProbabilityBands()
	}
	if len(cfg.Forecast.ConfidenceBands) == 0 {
		cfg.Forecast.ConfidenceBands = forecast.DefaultConfidenceBands()
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "./data/snowsignal.db")

	v.SetDefault("ingest.base_url", "https://archive-api.open-meteo.com/v1/archive")
	v.SetDefault("ingest.window_days", 14)
	v.SetDefault("ingest.interval", "6h")
	v.SetDefault("ingest.timeout", "30s")

	v.SetDefault("analysis.min_lag", -30)
	v.SetDefault("analysis.max_lag", 30)
	v.SetDefault("analysis.min_samples", 30)
	v.SetDefault("analysis.alpha", 0.05)
	v.SetDefault("analysis.lookback_days", 1095)

	v.SetDefault("forecast.horizon_days", 14)
	v.SetDefault("forecast.activity_thresholds.light_mm", 5.0)
	v.SetDefault("forecast.activity_thresholds.moderate_mm", 15.0)
	v.SetDefault("forecast.activity_thresholds.heavy_mm", 25.0)

	v.SetDefault("backtest.event_threshold_mm", 0.0)
	v.SetDefault("backtest.major_event_mm", 50.0)
	v.SetDefault("backtest.hit_pct", 50)
	v.SetDefault("backtest.partial_pct", 30)
	v.SetDefault("backtest.strong_global_score", 0.15)
	v.SetDefault("backtest.moderate_global_score", 0.08)
	v.SetDefault("backtest.weak_global_score", 0.04)

	v.SetDefault("publish.snapshot_dir", "./data/snapshots")
	v.SetDefault("publish.kafka.enabled", false)
	v.SetDefault("publish.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("publish.kafka.topic", "snowsignal.forecasts")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("stations.target", "phelps_wi")
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Ingest.BaseURL == "" {
		return fmt.Errorf("ingest.base_url is required")
	}
	if c.Ingest.WindowDays < 1 {
		return fmt.Errorf("ingest.window_days must be at least 1")
	}
	if c.Ingest.Interval < time.Minute {
		return fmt.Errorf("ingest.interval must be at least 1 minute")
	}

	if c.Analysis.MaxLag < c.Analysis.MinLag {
		return fmt.Errorf("analysis.max_lag must not be below analysis.min_lag")
	}
	if c.Analysis.MinSamples < 3 {
		return fmt.Errorf("analysis.min_samples must be at least 3")
	}
	if c.Analysis.Alpha <= 0 || c.Analysis.Alpha >= 1 {
		return fmt.Errorf("analysis.alpha must be between 0 and 1 exclusive")
	}
	if c.Analysis.LookbackDays < c.Analysis.MinSamples {
		return fmt.Errorf("analysis.lookback_days must cover at least analysis.min_samples days")
	}

	if c.Forecast.HorizonDays < 1 {
		return fmt.Errorf("forecast.horizon_days must be at least 1")
	}
	th := c.Forecast.Thresholds
	if !(0 < th.LightMM && th.LightMM < th.ModerateMM && th.ModerateMM < th.HeavyMM) {
		return fmt.Errorf("forecast.activity_thresholds must be ascending and positive")
	}

	bands := c.Forecast.ProbabilityBands
	if len(bands) == 0 {
		return fmt.Errorf("forecast.probability_bands is required")
	}
	for i, band := range bands {
		if band.Name == "" {
			return fmt.Errorf("forecast.probability_bands[%d] has no name", i)
		}
		if band.Pct < 0 || band.Pct > 100 {
			return fmt.Errorf("forecast.probability_bands[%d] pct must be 0-100", i)
		}
		if i > 0 && band.MinScore >= bands[i-1].MinScore {
			return fmt.Errorf("forecast.probability_bands must have strictly descending min_score")
		}
		if i > 0 && band.Pct >= bands[i-1].Pct {
			return fmt.Errorf("forecast.probability_bands must have strictly descending pct")
		}
	}
	if bands[len(bands)-1].MinScore != 0 {
		return fmt.Errorf("forecast.probability_bands bottom band must have min_score 0")
	}

	confidence := c.Forecast.ConfidenceBands
	if len(confidence) == 0 {
		return fmt.Errorf("forecast.confidence_bands is required")
	}
	for i, band := range confidence {
		if band.Label == "" {
			return fmt.Errorf("forecast.confidence_bands[%d] has no label", i)
		}
		if i > 0 && band.MaxOffset <= confidence[i-1].MaxOffset {
			return fmt.Errorf("forecast.confidence_bands must have strictly ascending max_offset")
		}
	}

	if c.Backtest.EventThresholdMM < 0 {
		return fmt.Errorf("backtest.event_threshold_mm must not be negative")
	}
	if c.Backtest.MajorEventMM < c.Backtest.EventThresholdMM {
		return fmt.Errorf("backtest.major_event_mm must not be below backtest.event_threshold_mm")
	}
	if c.Backtest.HitPct < c.Backtest.PartialPct {
		return fmt.Errorf("backtest.hit_pct must not be below backtest.partial_pct")
	}
	if !(c.Backtest.StrongGlobalScore > c.Backtest.ModerateGlobalScore &&
		c.Backtest.ModerateGlobalScore > c.Backtest.WeakGlobalScore &&
		c.Backtest.WeakGlobalScore > 0) {
		return fmt.Errorf("backtest signal class scores must be strictly descending and positive")
	}

	if c.Publish.SnapshotDir == "" {
		return fmt.Errorf("publish.snapshot_dir is required")
	}
	if c.Publish.Kafka.Enabled {
		if len(c.Publish.Kafka.Brokers) == 0 {
			return fmt.Errorf("publish.kafka.brokers is required when kafka is enabled")
		}
		if c.Publish.Kafka.Topic == "" {
			return fmt.Errorf("publish.kafka.topic is required when kafka is enabled")
		}
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}

	if c.Stations.Target == "" {
		return fmt.Errorf("stations.target is required")
	}
	found := false
	for _, seed := range c.Stations.Targets {
		if seed.StationID == c.Stations.Target {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("stations.target %q is not in stations.targets", c.Stations.Target)
	}
	for _, seed := range c.Stations.Predictors {
		if seed.Weight < 0 {
			return fmt.Errorf("predictor %s has negative weight", seed.StationID)
		}
	}

	return nil
}

// SeedStations returns every configured station as a registry row.
func (c *Config) SeedStations() []models.Station {
	stations := make([]models.Station, 0, len(c.Stations.Targets)+len(c.Stations.Predictors))
	for _, seed := range c.Stations.Targets {
		stations = append(stations, seed.toStation(models.RoleTarget))
	}
	for _, seed := range c.Stations.Predictors {
		stations = append(stations, seed.toStation(models.RolePredictor))
	}
	return stations
}

// PredictorDescriptors returns the curated predictor set with the
// shared activity thresholds applied.
func (c *Config) PredictorDescriptors() []models.StationDescriptor {
	descriptors := make([]models.StationDescriptor, 0, len(c.Stations.Predictors))
	for _, seed := range c.Stations.Predictors {
		descriptors = append(descriptors, models.StationDescriptor{
			StationID:  seed.StationID,
			Name:       seed.Name,
			Role:       models.RolePredictor,
			LagDays:    seed.LagDays,
			Weight:     seed.Weight,
			Thresholds: c.Forecast.Thresholds,
		})
	}
	return descriptors
}

func (s StationSeed) toStation(role models.StationRole) models.Station {
	return models.Station{
		StationID: s.StationID,
		Name:      s.Name,
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Elevation: s.Elevation,
		Country:   s.Country,
		Region:    s.Region,
		Role:      role,
		Active:    true,
	}
}

func builtinTargets() []StationSeed {
	return []StationSeed{
		{StationID: "phelps_wi", Name: "Phelps, WI", Latitude: 46.0638, Longitude: -89.0787, Elevation: 521, Country: "US", Region: "Wisconsin"},
		{StationID: "land_o_lakes_wi", Name: "Land O' Lakes, WI", Latitude: 46.1535, Longitude: -89.3207, Elevation: 512, Country: "US", Region: "Wisconsin"},
		{StationID: "eagle_river_wi", Name: "Eagle River, WI", Latitude: 45.9169, Longitude: -89.2443, Elevation: 500, Country: "US", Region: "Wisconsin"},
	}
}

// builtinPredictors is the curated teleconnection network. The two
// negative-lag stations follow the targets rather than lead them; they
// stay in the network for correlation validation but never score.
func builtinPredictors() []StationSeed {
	return []StationSeed{
		{StationID: "thunder_bay_on", Name: "Thunder Bay, ON", Latitude: 48.3809, Longitude: -89.2477, Elevation: 199, Country: "CA", Region: "Ontario", LagDays: 0, Weight: 0.50},
		{StationID: "irkutsk_russia", Name: "Irkutsk, Russia", Latitude: 52.2870, Longitude: 104.3050, Elevation: 440, Country: "RU", Region: "Irkutsk Oblast", LagDays: 7, Weight: 0.15},
		{StationID: "sapporo_japan", Name: "Sapporo, Japan", Latitude: 43.0618, Longitude: 141.3545, Elevation: 26, Country: "JP", Region: "Hokkaido", LagDays: 6, Weight: 0.15},
		{StationID: "chamonix_france", Name: "Chamonix, France", Latitude: 45.9237, Longitude: 6.8694, Elevation: 1035, Country: "FR", Region: "Haute-Savoie", LagDays: 5, Weight: 0.10},
		{StationID: "zermatt_switzerland", Name: "Zermatt, Switzerland", Latitude: 46.0207, Longitude: 7.7491, Elevation: 1608, Country: "CH", Region: "Valais", LagDays: 5, Weight: 0.05},
		{StationID: "niigata_japan", Name: "Niigata, Japan", Latitude: 37.9161, Longitude: 139.0364, Elevation: 2, Country: "JP", Region: "Niigata", LagDays: 3, Weight: 0.05},
		{StationID: "mammoth_mountain_ca", Name: "Mammoth Mountain, CA", Latitude: 37.6305, Longitude: -119.0326, Elevation: 2743, Country: "US", Region: "California", LagDays: -3, Weight: 0.10},
		{StationID: "denver_co", Name: "Denver, CO", Latitude: 39.7392, Longitude: -104.9903, Elevation: 1609, Country: "US", Region: "Colorado", LagDays: -1, Weight: 0.10},
	}
}

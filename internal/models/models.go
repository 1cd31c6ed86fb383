package models

import (
	"time"
)

type StationRole string

const (
	RoleTarget    StationRole = "target"
	RolePredictor StationRole = "predictor"
)

type Station struct {
	StationID string
	Name      string
	Latitude  float64
	Longitude float64
	Elevation float64
	Country   string
	Region    string
	Role      StationRole
	Active    bool
}

// Observation is one daily snowfall total for a station. Identity is
// (station_id, date); a later ingest for the same key overwrites the
// amount, since upstream sources correct partial or estimated values.
type Observation struct {
	StationID  string
	Date       time.Time // UTC midnight, date resolution
	SnowfallMM float64
	UpdatedAt  time.Time
}

type SignalLevel string

const (
	LevelQuiet    SignalLevel = "quiet"
	LevelLight    SignalLevel = "light"
	LevelModerate SignalLevel = "moderate"
	LevelHeavy    SignalLevel = "heavy"
)

// ActivityThresholds are the ascending mm cut points that map a daily
// snowfall amount onto an activity level.
type ActivityThresholds struct {
	LightMM    float64 `json:"light_mm" mapstructure:"light_mm"`
	ModerateMM float64 `json:"moderate_mm" mapstructure:"moderate_mm"`
	HeavyMM    float64 `json:"heavy_mm" mapstructure:"heavy_mm"`
}

// ProbabilityBand maps a score interval onto the human-facing
// probability fields. Tables are ordered highest cut point first and
// the bottom band must start at zero.
type ProbabilityBand struct {
	MinScore   float64 `json:"min_score" mapstructure:"min_score"`
	Name       string  `json:"name" mapstructure:"name"`
	Pct        int     `json:"pct" mapstructure:"pct"`
	Range      string  `json:"range" mapstructure:"range"`
	AlertLevel string  `json:"alert_level" mapstructure:"alert_level"`
	Action     string  `json:"action" mapstructure:"action"`
}

// ConfidenceBand labels day offsets up to and including MaxOffset.
// Tables are ordered by ascending MaxOffset; offsets past the last
// band reuse its label.
type ConfidenceBand struct {
	MaxOffset int    `json:"max_offset" mapstructure:"max_offset"`
	Label     string `json:"label" mapstructure:"label"`
}

// StationDescriptor is the curated operational view of a station: the
// lag and weight the scorer trusts, which may differ from whatever the
// analyzer last discovered for the same station.
type StationDescriptor struct {
	StationID  string             `json:"station_id" mapstructure:"station_id"`
	Name       string             `json:"name" mapstructure:"name"`
	Role       StationRole        `json:"role" mapstructure:"role"`
	LagDays    int                `json:"lag_days" mapstructure:"lag_days"`
	Weight     float64            `json:"weight" mapstructure:"weight"`
	Thresholds ActivityThresholds `json:"activity_thresholds" mapstructure:"activity_thresholds"`
}

// Usable reports whether the descriptor belongs in the active predictor
// set. A negative lag means the station historically follows the
// target, so it cannot project forward and is excluded from scoring.
func (d StationDescriptor) Usable() bool {
	return d.Role == RolePredictor && d.LagDays >= 0 && d.Weight > 0
}

// Classify maps a daily amount onto an activity level and the fraction
// of the station's weight that level carries.
func (d StationDescriptor) Classify(amountMM float64) (SignalLevel, float64) {
	switch {
	case amountMM >= d.Thresholds.HeavyMM:
		return LevelHeavy, 1.0
	case amountMM >= d.Thresholds.ModerateMM:
		return LevelModerate, 0.6
	case amountMM >= d.Thresholds.LightMM:
		return LevelLight, 0.3
	default:
		return LevelQuiet, 0.0
	}
}

// PredictorEntry is one analyzer result: the lag and correlation that
// best relate a station's series to the target. Weight is the curated
// operational weight carried alongside in the persisted form; it is not
// derived from the correlation.
type PredictorEntry struct {
	StationID   string  `json:"station_id"`
	Correlation float64 `json:"correlation"`
	LagDays     int     `json:"lag_days"`
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant"`
	SampleSize  int     `json:"sample_size"`
	Weight      float64 `json:"weight"`
}

type PredictorModel struct {
	TargetStationID string           `json:"target_station_id"`
	CreatedAt       time.Time        `json:"created_at"`
	Predictors      []PredictorEntry `json:"predictors"`
}

// Signal records one predictor observation that projects onto a
// forecast day, kept for explainability in the output.
type Signal struct {
	StationID    string      `json:"station_id"`
	Name         string      `json:"name"`
	Level        SignalLevel `json:"level"`
	ObsDate      time.Time   `json:"obs_date"`
	Contribution float64     `json:"contribution"`
}

type ForecastDay struct {
	Date             time.Time `json:"date"`
	DayOffset        int       `json:"day_offset"`
	Score            float64   `json:"score"`
	ProbabilityBand  string    `json:"probability_band"`
	ProbabilityPct   int       `json:"probability_pct"`
	ProbabilityRange string    `json:"probability_range"`
	AlertLevel       string    `json:"alert_level"`
	Action           string    `json:"action"`
	ConfidenceLabel  string    `json:"confidence_label"`
	Signals          []Signal  `json:"contributing_signals"`
}

type OutlookSummary struct {
	Week1MeanScore float64 `json:"week1_mean_score"`
	Week2MeanScore float64 `json:"week2_mean_score"`
	PeakOffset     int     `json:"peak_day_offset"`
	PeakScore      float64 `json:"peak_score"`
	Pattern        string  `json:"pattern"`
}

type ForecastSnapshot struct {
	GeneratedAt     time.Time      `json:"generated_at"`
	TargetStationID string         `json:"target_station_id"`
	HorizonDays     int            `json:"horizon_days"`
	Forecasts       []ForecastDay  `json:"forecasts"`
	Summary         OutlookSummary `json:"summary"`
}

type SignalClass string

const (
	ClassStrongGlobal   SignalClass = "strong_global"
	ClassModerateGlobal SignalClass = "moderate_global"
	ClassWeakGlobal     SignalClass = "weak_global"
	ClassLocalRegional  SignalClass = "local_regional"
)

type Outcome string

const (
	OutcomeHit     Outcome = "hit"
	OutcomePartial Outcome = "partial"
	OutcomeMiss    Outcome = "miss"
)

type BacktestRecord struct {
	EventDate      time.Time   `json:"event_date"`
	StationID      string      `json:"station_id"`
	ActualMM       float64     `json:"actual_amount_mm"`
	Score          float64     `json:"ensemble_score"`
	ProbabilityPct int         `json:"probability_pct"`
	SignalClass    SignalClass `json:"signal_class"`
	// Outcome is only graded for events at or above the major-event
	// threshold; smaller events are classified but left ungraded.
	Outcome Outcome `json:"outcome,omitempty"`
}

type BacktestReport struct {
	GeneratedAt      time.Time           `json:"generated_at"`
	TargetStationID  string              `json:"target_station_id"`
	Start            time.Time           `json:"start"`
	End              time.Time           `json:"end"`
	TotalEvents      int                 `json:"total_events"`
	ClassCounts      map[SignalClass]int `json:"signal_class_counts"`
	MajorEvents      int                 `json:"major_events"`
	Hits             int                 `json:"hits"`
	Partials         int                 `json:"partials"`
	Misses           int                 `json:"misses"`
	DetectionRate    float64             `json:"detection_rate"`
	ScoreCorrelation float64             `json:"score_vs_amount_correlation"`
	Records          []BacktestRecord    `json:"records"`
}

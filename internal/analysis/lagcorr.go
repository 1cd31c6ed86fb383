// Package analysis finds lagged snowfall correlations between distant
// predictor stations and a local target, the raw material for the
// ensemble forecast.
package analysis

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lox/snowsignal/internal/metrics"
	"github.com/lox/snowsignal/internal/models"
	"github.com/lox/snowsignal/internal/store"
)

// ErrInsufficientData means no lag produced enough overlapping samples
// to compute a correlation.
var ErrInsufficientData = errors.New("analysis: insufficient overlapping samples")

const dateLayout = "2006-01-02"

type Config struct {
	MinLag     int
	MaxLag     int
	MinSamples int
	Alpha      float64
}

func DefaultConfig() Config {
	return Config{
		MinLag:     -30,
		MaxLag:     30,
		MinSamples: 30,
		Alpha:      0.05,
	}
}

func (c Config) Validate() error {
	if c.MaxLag < c.MinLag {
		return fmt.Errorf("analysis config: max lag %d below min lag %d", c.MaxLag, c.MinLag)
	}
	if c.MinSamples < 3 {
		return fmt.Errorf("analysis config: min samples %d below 3", c.MinSamples)
	}
	if c.Alpha <= 0 || c.Alpha >= 1 {
		return fmt.Errorf("analysis config: alpha %v outside (0, 1)", c.Alpha)
	}
	return nil
}

// Result is the best lag found for one predictor station. A positive
// lag means the predictor leads the target by that many days.
type Result struct {
	Correlation float64
	LagDays     int
	PValue      float64
	Significant bool
	SampleSize  int
}

type Analyzer struct {
	store *store.Store
	cfg   Config
}

// NewAnalyzer rejects an inconsistent config before any correlation
// is computed.
func NewAnalyzer(st *store.Store, cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{store: st, cfg: cfg}, nil
}

// BestLag scans every lag in the configured window and returns the one
// with the largest absolute correlation. Nonnegative lags are scanned
// first so an exact tie resolves to a lag the forecaster can project
// forward.
func (a *Analyzer) BestLag(target, predictor []models.Observation) (Result, error) {
	targetByDate := byDate(target)
	predictorByDate := byDate(predictor)

	var best Result
	found := false

	for _, lag := range a.lagOrder() {
		xs, ys := alignAtLag(targetByDate, predictorByDate, target, lag)
		if len(xs) < a.cfg.MinSamples {
			continue
		}
		r, ok := Pearson(xs, ys)
		if !ok {
			continue
		}
		if !found || abs(r) > abs(best.Correlation) {
			best = Result{Correlation: r, LagDays: lag, SampleSize: len(xs)}
			found = true
		}
	}

	if !found {
		return Result{}, ErrInsufficientData
	}

	best.PValue = fisherPValue(best.Correlation, best.SampleSize)
	best.Significant = best.PValue < a.cfg.Alpha
	return best, nil
}

// Run analyzes every descriptor against the target over [start, end],
// caches each result, and returns the assembled model. Stations with
// too little overlapping data are skipped, not failed.
func (a *Analyzer) Run(targetID string, descriptors []models.StationDescriptor, start, end time.Time) (*models.PredictorModel, error) {
	target, err := a.store.GetObservations(targetID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load target series %s: %w", targetID, err)
	}

	computedAt := time.Now().UTC()
	model := &models.PredictorModel{
		TargetStationID: targetID,
		CreatedAt:       computedAt,
	}

	for _, desc := range descriptors {
		if desc.StationID == targetID {
			continue
		}
		predictor, err := a.store.GetObservations(desc.StationID, start, end)
		if err != nil {
			return nil, fmt.Errorf("load predictor series %s: %w", desc.StationID, err)
		}

		result, err := a.BestLag(target, predictor)
		if errors.Is(err, ErrInsufficientData) {
			log.Printf("analysis: skipping %s: insufficient overlap with %s", desc.StationID, targetID)
			metrics.AnalysisStationsSkipped.Inc()
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("analyze %s: %w", desc.StationID, err)
		}

		entry := models.PredictorEntry{
			StationID:   desc.StationID,
			Correlation: result.Correlation,
			LagDays:     result.LagDays,
			PValue:      result.PValue,
			Significant: result.Significant,
			SampleSize:  result.SampleSize,
			Weight:      desc.Weight,
		}
		if err := a.store.UpsertCorrelation(targetID, entry, computedAt); err != nil {
			return nil, fmt.Errorf("cache correlation %s: %w", desc.StationID, err)
		}
		model.Predictors = append(model.Predictors, entry)

		log.Printf("analysis: %s vs %s: r=%.3f lag=%dd p=%.4f n=%d",
			desc.StationID, targetID, result.Correlation, result.LagDays, result.PValue, result.SampleSize)
		metrics.AnalysisStationsAnalyzed.Inc()
	}

	return model, nil
}

// lagOrder yields 0..MaxLag then -1 down to MinLag, so strictly-greater
// comparisons settle ties in favor of nonnegative lags.
func (a *Analyzer) lagOrder() []int {
	order := make([]int, 0, a.cfg.MaxLag-a.cfg.MinLag+1)
	for lag := 0; lag <= a.cfg.MaxLag; lag++ {
		order = append(order, lag)
	}
	for lag := -1; lag >= a.cfg.MinLag; lag-- {
		order = append(order, lag)
	}
	return order
}

// alignAtLag pairs the target amount on each date with the predictor
// amount lag days earlier, keeping only dates where both exist.
func alignAtLag(targetByDate, predictorByDate map[string]float64, target []models.Observation, lag int) (xs, ys []float64) {
	for _, obs := range target {
		shifted := obs.Date.AddDate(0, 0, -lag).Format(dateLayout)
		x, ok := predictorByDate[shifted]
		if !ok {
			continue
		}
		y := targetByDate[obs.Date.Format(dateLayout)]
		xs = append(xs, x)
		ys = append(ys, y)
	}
	return xs, ys
}

func byDate(observations []models.Observation) map[string]float64 {
	m := make(map[string]float64, len(observations))
	for _, obs := range observations {
		m[obs.Date.Format(dateLayout)] = obs.SnowfallMM
	}
	return m
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

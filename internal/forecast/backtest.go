package forecast

import (
	"fmt"
	"log"
	"time"

	"github.com/lox/snowsignal/internal/analysis"
	"github.com/lox/snowsignal/internal/models"
	"github.com/lox/snowsignal/internal/store"
)

type BacktestConfig struct {
	// EventThresholdMM is the exclusive floor below which a target day
	// is not replayed. Zero keeps every day with recorded snowfall.
	EventThresholdMM float64
	// MajorEventMM is the cutoff above which an event gets a graded
	// hit/partial/miss outcome.
	MajorEventMM float64
	HitPct       int
	PartialPct   int
	// Signal class partition on the offset-0 score. Every event lands
	// in exactly one class.
	StrongGlobalScore   float64
	ModerateGlobalScore float64
	WeakGlobalScore     float64
}

func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		EventThresholdMM:    0,
		MajorEventMM:        50.0,
		HitPct:              50,
		PartialPct:          30,
		StrongGlobalScore:   0.15,
		ModerateGlobalScore: 0.08,
		WeakGlobalScore:     0.04,
	}
}

// Backtester replays the live scoring path against historical events.
// Each event date is scored as if it were the current date, so the
// grade reflects exactly what the system would have said at the time.
type Backtester struct {
	store  *store.Store
	scorer *Scorer
	cfg    BacktestConfig
	bands  ProbabilityBands
}

// NewBacktester takes the config as supplied; config validation is
// responsible for rejecting inconsistent thresholds before anything is
// replayed. A nil band table falls back to the builtin defaults.
func NewBacktester(st *store.Store, scorer *Scorer, cfg BacktestConfig, bands ProbabilityBands) *Backtester {
	if len(bands) == 0 {
		bands = DefaultProbabilityBands()
	}
	return &Backtester{store: st, scorer: scorer, cfg: cfg, bands: bands}
}

func (b *Backtester) Run(targetID string, start, end time.Time) (*models.BacktestReport, error) {
	observations, err := b.store.GetObservations(targetID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load target history %s: %w", targetID, err)
	}

	report := &models.BacktestReport{
		GeneratedAt:     clock.Now().UTC(),
		TargetStationID: targetID,
		Start:           dateOf(start),
		End:             dateOf(end),
		ClassCounts:     make(map[models.SignalClass]int),
	}

	var scores, amounts []float64
	detected, detectable := 0, 0

	for _, obs := range observations {
		if obs.SnowfallMM <= b.cfg.EventThresholdMM {
			continue
		}

		days, err := b.scorer.ScoreFrom(obs.Date)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", obs.Date.Format(dateLayout), err)
		}
		score := days[0].Score
		band := b.bands.For(score)
		class := b.classify(score)

		record := models.BacktestRecord{
			EventDate:      obs.Date,
			StationID:      targetID,
			ActualMM:       obs.SnowfallMM,
			Score:          score,
			ProbabilityPct: band.Pct,
			SignalClass:    class,
		}

		report.TotalEvents++
		report.ClassCounts[class]++

		if obs.SnowfallMM >= b.cfg.MajorEventMM {
			record.Outcome = b.grade(band.Pct)
			report.MajorEvents++
			switch record.Outcome {
			case models.OutcomeHit:
				report.Hits++
			case models.OutcomePartial:
				report.Partials++
			default:
				report.Misses++
			}
		}

		if score >= b.cfg.ModerateGlobalScore {
			detectable++
			if band.Pct >= b.cfg.PartialPct {
				detected++
			}
		}
		if score >= b.cfg.WeakGlobalScore {
			scores = append(scores, score)
			amounts = append(amounts, obs.SnowfallMM)
		}

		report.Records = append(report.Records, record)
	}

	if detectable > 0 {
		report.DetectionRate = float64(detected) / float64(detectable)
	}
	if r, ok := analysis.Pearson(scores, amounts); ok {
		report.ScoreCorrelation = r
	}

	log.Printf("backtest: %s %s..%s: %d events, %d major (%d hit / %d partial / %d miss), detection %.0f%%",
		targetID, report.Start.Format(dateLayout), report.End.Format(dateLayout),
		report.TotalEvents, report.MajorEvents, report.Hits, report.Partials, report.Misses,
		report.DetectionRate*100)

	return report, nil
}

func (b *Backtester) classify(score float64) models.SignalClass {
	switch {
	case score >= b.cfg.StrongGlobalScore:
		return models.ClassStrongGlobal
	case score >= b.cfg.ModerateGlobalScore:
		return models.ClassModerateGlobal
	case score >= b.cfg.WeakGlobalScore:
		return models.ClassWeakGlobal
	default:
		return models.ClassLocalRegional
	}
}

func (b *Backtester) grade(pct int) models.Outcome {
	switch {
	case pct >= b.cfg.HitPct:
		return models.OutcomeHit
	case pct >= b.cfg.PartialPct:
		return models.OutcomePartial
	default:
		return models.OutcomeMiss
	}
}

package forecast

import (
	"fmt"
	"time"

	"github.com/lox/snowsignal/internal/metrics"
	"github.com/lox/snowsignal/internal/models"
)

// ProbabilityBands is a banding table checked top down; the first band
// whose MinScore the score reaches wins. Config validation guarantees
// the cut points descend strictly and the bottom band starts at zero.
type ProbabilityBands []models.ProbabilityBand

func (b ProbabilityBands) For(score float64) models.ProbabilityBand {
	for _, band := range b {
		if score >= band.MinScore {
			return band
		}
	}
	return b[len(b)-1]
}

// ConfidenceBands degrade with lead time only. The score says how loud
// the signal is; lead time says how much to trust it.
type ConfidenceBands []models.ConfidenceBand

func (c ConfidenceBands) For(offset int) string {
	for _, band := range c {
		if offset <= band.MaxOffset {
			return band.Label
		}
	}
	return c[len(c)-1].Label
}

func DefaultProbabilityBands() ProbabilityBands {
	return ProbabilityBands{
		{MinScore: 0.70, Name: "very_high", Pct: 85, Range: "80-90%", AlertLevel: "warning", Action: "strong multi-station signal, expect significant snowfall"},
		{MinScore: 0.50, Name: "high", Pct: 70, Range: "65-85%", AlertLevel: "advisory", Action: "prepare for likely significant snowfall"},
		{MinScore: 0.30, Name: "moderate", Pct: 50, Range: "40-60%", AlertLevel: "watch", Action: "recheck the outlook daily"},
		{MinScore: 0.15, Name: "low_moderate", Pct: 30, Range: "20-40%", AlertLevel: "info", Action: "monitor upstream stations"},
		{MinScore: 0, Name: "low", Pct: 10, Range: "5-15%", AlertLevel: "none", Action: "routine monitoring"},
	}
}

func DefaultConfidenceBands() ConfidenceBands {
	return ConfidenceBands{
		{MaxOffset: 3, Label: "moderate"},
		{MaxOffset: 7, Label: "low_moderate"},
		{MaxOffset: 13, Label: "low"},
	}
}

const (
	maxSignalsPerDay = 3

	activePatternScore    = 0.30
	unsettledPatternScore = 0.15
)

// Generator assembles scored days into a published outlook snapshot.
type Generator struct {
	scorer          *Scorer
	targetStationID string
	bands           ProbabilityBands
	confidence      ConfidenceBands
}

// NewGenerator builds a generator using the supplied banding tables.
// Nil tables mean "not configured" and fall back to the builtin
// defaults; invalid tables are rejected earlier by config validation.
func NewGenerator(scorer *Scorer, targetStationID string, bands ProbabilityBands, confidence ConfidenceBands) *Generator {
	if len(bands) == 0 {
		bands = DefaultProbabilityBands()
	}
	if len(confidence) == 0 {
		confidence = DefaultConfidenceBands()
	}
	return &Generator{
		scorer:          scorer,
		targetStationID: targetStationID,
		bands:           bands,
		confidence:      confidence,
	}
}

// Generate produces the outlook for the current date.
func (g *Generator) Generate() (*models.ForecastSnapshot, error) {
	return g.GenerateFrom(today())
}

func (g *Generator) GenerateFrom(base time.Time) (*models.ForecastSnapshot, error) {
	days, err := g.scorer.ScoreFrom(base)
	if err != nil {
		return nil, fmt.Errorf("score outlook: %w", err)
	}

	snapshot := &models.ForecastSnapshot{
		GeneratedAt:     clock.Now().UTC(),
		TargetStationID: g.targetStationID,
		HorizonDays:     g.scorer.Horizon(),
		Forecasts:       make([]models.ForecastDay, 0, len(days)),
	}

	for _, day := range days {
		band := g.bands.For(day.Score)
		signals := day.Signals
		if len(signals) > maxSignalsPerDay {
			signals = signals[:maxSignalsPerDay]
		}
		snapshot.Forecasts = append(snapshot.Forecasts, models.ForecastDay{
			Date:             day.Date,
			DayOffset:        day.Offset,
			Score:            day.Score,
			ProbabilityBand:  band.Name,
			ProbabilityPct:   band.Pct,
			ProbabilityRange: band.Range,
			AlertLevel:       band.AlertLevel,
			Action:           band.Action,
			ConfidenceLabel:  g.confidence.For(day.Offset),
			Signals:          signals,
		})
	}

	snapshot.Summary = summarize(days)
	metrics.ForecastsGenerated.Inc()
	return snapshot, nil
}

func summarize(days []DayScore) models.OutlookSummary {
	var summary models.OutlookSummary
	if len(days) == 0 {
		summary.Pattern = "quiet"
		return summary
	}

	var week1Sum, week2Sum float64
	week1N, week2N := 0, 0
	peak := days[0]
	for _, day := range days {
		if day.Offset < 7 {
			week1Sum += day.Score
			week1N++
		} else if day.Offset < 14 {
			week2Sum += day.Score
			week2N++
		}
		if day.Score > peak.Score {
			peak = day
		}
	}
	if week1N > 0 {
		summary.Week1MeanScore = week1Sum / float64(week1N)
	}
	if week2N > 0 {
		summary.Week2MeanScore = week2Sum / float64(week2N)
	}
	summary.PeakOffset = peak.Offset
	summary.PeakScore = peak.Score

	switch {
	case summary.Week1MeanScore >= activePatternScore:
		summary.Pattern = "active"
	case summary.Week1MeanScore >= unsettledPatternScore:
		summary.Pattern = "unsettled"
	default:
		summary.Pattern = "quiet"
	}
	return summary
}

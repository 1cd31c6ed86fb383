package forecast

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/snowsignal/internal/models"
)

func TestBandTableBoundaries(t *testing.T) {
	tests := []struct {
		score    float64
		wantName string
		wantPct  int
	}{
		{0, "low", 10},
		{0.149, "low", 10},
		{0.15, "low_moderate", 30},
		{0.299, "low_moderate", 30},
		{0.30, "moderate", 50},
		{0.50, "high", 70},
		{0.59, "high", 70},
		{0.699, "high", 70},
		{0.70, "very_high", 85},
		{1.2, "very_high", 85},
	}

	bands := DefaultProbabilityBands()
	for _, tt := range tests {
		band := bands.For(tt.score)
		if band.Name != tt.wantName {
			t.Errorf("For(%v).Name = %q, want %q", tt.score, band.Name, tt.wantName)
		}
		if band.Pct != tt.wantPct {
			t.Errorf("For(%v).Pct = %d, want %d", tt.score, band.Pct, tt.wantPct)
		}
	}
}

func TestBandPctMonotonic(t *testing.T) {
	bands := DefaultProbabilityBands()
	prev := -1
	for score := 0.0; score <= 1.5; score += 0.01 {
		pct := bands.For(score).Pct
		if pct < prev {
			t.Fatalf("pct decreased at score %v: %d < %d", score, pct, prev)
		}
		prev = pct
	}
}

func TestConfidenceByLeadTime(t *testing.T) {
	tests := []struct {
		offset int
		want   string
	}{
		{0, "moderate"},
		{3, "moderate"},
		{4, "low_moderate"},
		{7, "low_moderate"},
		{8, "low"},
		{13, "low"},
	}
	confidence := DefaultConfidenceBands()
	for _, tt := range tests {
		if got := confidence.For(tt.offset); got != tt.want {
			t.Errorf("For(%d) = %q, want %q", tt.offset, got, tt.want)
		}
	}
	// Offsets past the last band reuse its label.
	if got := confidence.For(30); got != "low" {
		t.Errorf("For(30) = %q, want low", got)
	}
}

func TestGenerateSnapshot(t *testing.T) {
	st := setupTestStore(t)
	addObs(t, st, "thunder_bay_on", "2022-12-15", 28.0)
	addObs(t, st, "sapporo_japan", "2022-12-09", 18.0)

	frozen := time.Date(2022, 12, 15, 10, 30, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { SetClock(nil) })

	scorer := NewScorer(st, testDescriptors(), DefaultHorizonDays)
	gen := NewGenerator(scorer, "phelps_wi", nil, nil)

	snapshot, err := gen.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if snapshot.TargetStationID != "phelps_wi" {
		t.Errorf("TargetStationID = %q", snapshot.TargetStationID)
	}
	if !snapshot.GeneratedAt.Equal(frozen) {
		t.Errorf("GeneratedAt = %v, want frozen clock", snapshot.GeneratedAt)
	}
	if len(snapshot.Forecasts) != DefaultHorizonDays {
		t.Fatalf("len(Forecasts) = %d, want %d", len(snapshot.Forecasts), DefaultHorizonDays)
	}

	day0 := snapshot.Forecasts[0]
	if day0.ProbabilityBand != "high" {
		t.Errorf("day0 band = %q, want high", day0.ProbabilityBand)
	}
	if day0.ProbabilityRange != "65-85%" {
		t.Errorf("day0 range = %q, want 65-85%%", day0.ProbabilityRange)
	}
	if day0.ConfidenceLabel != "moderate" {
		t.Errorf("day0 confidence = %q, want moderate", day0.ConfidenceLabel)
	}
	if len(day0.Signals) == 0 || day0.Signals[0].StationID != "thunder_bay_on" {
		t.Errorf("day0 signals = %+v, want thunder_bay_on first", day0.Signals)
	}

	if snapshot.Summary.PeakOffset != 0 {
		t.Errorf("PeakOffset = %d, want 0", snapshot.Summary.PeakOffset)
	}
	if snapshot.Summary.PeakScore < 0.58 || snapshot.Summary.PeakScore > 0.60 {
		t.Errorf("PeakScore = %v, want ~0.59", snapshot.Summary.PeakScore)
	}
}

func TestGenerateCapsSignalsPerDay(t *testing.T) {
	st := setupTestStore(t)

	descriptors := []models.StationDescriptor{
		{StationID: "a", Role: models.RolePredictor, LagDays: 0, Weight: 0.4, Thresholds: defaultThresholds()},
		{StationID: "b", Role: models.RolePredictor, LagDays: 0, Weight: 0.3, Thresholds: defaultThresholds()},
		{StationID: "c", Role: models.RolePredictor, LagDays: 0, Weight: 0.2, Thresholds: defaultThresholds()},
		{StationID: "d", Role: models.RolePredictor, LagDays: 0, Weight: 0.1, Thresholds: defaultThresholds()},
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		addObs(t, st, id, "2023-01-05", 30.0)
	}

	scorer := NewScorer(st, descriptors, DefaultHorizonDays)
	gen := NewGenerator(scorer, "phelps_wi", nil, nil)

	snapshot, err := gen.GenerateFrom(date(t, "2023-01-05"))
	if err != nil {
		t.Fatalf("GenerateFrom: %v", err)
	}

	day0 := snapshot.Forecasts[0]
	if len(day0.Signals) != maxSignalsPerDay {
		t.Fatalf("len(signals) = %d, want %d", len(day0.Signals), maxSignalsPerDay)
	}
	// The weakest contributor is the one dropped.
	for _, sig := range day0.Signals {
		if sig.StationID == "d" {
			t.Error("lowest contributor kept over larger ones")
		}
	}
	// Score still includes every contributor, capped display or not.
	if day0.Score < 0.99 || day0.Score > 1.01 {
		t.Errorf("day0 score = %v, want 1.0 from four heavy signals", day0.Score)
	}
}

func TestGenerateUsesConfiguredBands(t *testing.T) {
	st := setupTestStore(t)
	addObs(t, st, "thunder_bay_on", "2023-01-05", 28.0)

	bands := ProbabilityBands{
		{MinScore: 0.40, Name: "elevated", Pct: 75, Range: "70-80%", AlertLevel: "advisory", Action: "watch closely"},
		{MinScore: 0, Name: "baseline", Pct: 20, Range: "10-30%", AlertLevel: "none", Action: "routine"},
	}
	confidence := ConfidenceBands{
		{MaxOffset: 1, Label: "firm"},
		{MaxOffset: 13, Label: "soft"},
	}

	scorer := NewScorer(st, testDescriptors(), DefaultHorizonDays)
	gen := NewGenerator(scorer, "phelps_wi", bands, confidence)

	snapshot, err := gen.GenerateFrom(date(t, "2023-01-05"))
	if err != nil {
		t.Fatalf("GenerateFrom: %v", err)
	}

	day0 := snapshot.Forecasts[0]
	if day0.ProbabilityBand != "elevated" || day0.ProbabilityPct != 75 {
		t.Errorf("day0 band = %q/%d, want elevated/75", day0.ProbabilityBand, day0.ProbabilityPct)
	}
	if day0.ConfidenceLabel != "firm" {
		t.Errorf("day0 confidence = %q, want firm", day0.ConfidenceLabel)
	}
	day5 := snapshot.Forecasts[5]
	if day5.ProbabilityBand != "baseline" || day5.ConfidenceLabel != "soft" {
		t.Errorf("day5 = %q/%q, want baseline/soft", day5.ProbabilityBand, day5.ConfidenceLabel)
	}
}

func TestSummarizePatternLabels(t *testing.T) {
	mk := func(week1 float64) []DayScore {
		days := make([]DayScore, DefaultHorizonDays)
		for i := range days {
			days[i].Offset = i
			if i < 7 {
				days[i].Score = week1
			}
		}
		return days
	}

	tests := []struct {
		week1 float64
		want  string
	}{
		{0.35, "active"},
		{0.20, "unsettled"},
		{0.05, "quiet"},
	}
	for _, tt := range tests {
		if got := summarize(mk(tt.week1)).Pattern; got != tt.want {
			t.Errorf("pattern at week1=%v: %q, want %q", tt.week1, got, tt.want)
		}
	}
}

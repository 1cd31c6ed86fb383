// Package forecast turns recent predictor station activity into a
// scored snowfall outlook for a target station, and replays the same
// scoring against history to grade it.
package forecast

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lox/snowsignal/internal/models"
	"github.com/lox/snowsignal/internal/store"
)

const (
	// DefaultHorizonDays is the outlook length in days, offset 0 being
	// the base date itself.
	DefaultHorizonDays = 14

	dateLayout = "2006-01-02"
)

// DayScore is the raw ensemble output for one day of the horizon,
// before any probability banding.
type DayScore struct {
	Date    time.Time
	Offset  int
	Score   float64
	Signals []models.Signal
}

// Scorer sums weighted predictor activity onto the days each signal
// projects to. Scores are open-ended above zero; several predictors
// firing heavy on the same day stack.
type Scorer struct {
	store       *store.Store
	descriptors []models.StationDescriptor
	horizon     int
}

func NewScorer(st *store.Store, descriptors []models.StationDescriptor, horizon int) *Scorer {
	if horizon <= 0 {
		horizon = DefaultHorizonDays
	}
	active := make([]models.StationDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Usable() {
			active = append(active, d)
		}
	}
	return &Scorer{store: st, descriptors: active, horizon: horizon}
}

// ActivePredictors returns the descriptors the scorer actually uses.
func (s *Scorer) ActivePredictors() []models.StationDescriptor {
	return s.descriptors
}

func (s *Scorer) Horizon() int {
	return s.horizon
}

// Score computes the outlook with the current date as offset 0.
func (s *Scorer) Score() ([]DayScore, error) {
	return s.ScoreFrom(today())
}

// ScoreFrom computes one score per day of the horizon with base as
// offset 0. Each predictor observation in the trailing history window
// projects to base+lag-obsAge; projections before base or past the
// horizon are dropped. Running it twice over the same stored data
// yields identical output.
func (s *Scorer) ScoreFrom(base time.Time) ([]DayScore, error) {
	base = dateOf(base)
	historyStart := base.AddDate(0, 0, -(s.horizon - 1))

	days := make([]DayScore, s.horizon)
	for i := range days {
		days[i] = DayScore{Date: base.AddDate(0, 0, i), Offset: i}
	}

	for _, desc := range s.descriptors {
		amounts, err := s.store.GetDailyAmounts(desc.StationID, historyStart, base)
		if err != nil {
			return nil, fmt.Errorf("load history for %s: %w", desc.StationID, err)
		}

		for back := 0; back < s.horizon; back++ {
			obsDate := base.AddDate(0, 0, -back)
			amount, ok := amounts[obsDate.Format(dateLayout)]
			if !ok {
				log.Printf("forecast: no data for %s on %s", desc.StationID, obsDate.Format(dateLayout))
				continue
			}

			level, fraction := desc.Classify(amount)
			if fraction == 0 {
				continue
			}

			offset := desc.LagDays - back
			if offset < 0 || offset >= s.horizon {
				continue
			}

			contribution := desc.Weight * fraction
			days[offset].Score += contribution
			days[offset].Signals = append(days[offset].Signals, models.Signal{
				StationID:    desc.StationID,
				Name:         displayName(desc),
				Level:        level,
				ObsDate:      obsDate,
				Contribution: contribution,
			})
		}
	}

	for i := range days {
		sort.SliceStable(days[i].Signals, func(a, b int) bool {
			return days[i].Signals[a].Contribution > days[i].Signals[b].Contribution
		})
	}

	return days, nil
}

func displayName(d models.StationDescriptor) string {
	if d.Name != "" {
		return d.Name
	}
	return d.StationID
}

package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lox/snowsignal/internal/metrics"
	"github.com/lox/snowsignal/internal/store"
)

// Scheduler keeps the trailing observation window fresh for every
// active station.
type Scheduler struct {
	store      *store.Store
	client     *Client
	windowDays int
	interval   time.Duration
}

func NewScheduler(st *store.Store, client *Client, windowDays int, interval time.Duration) *Scheduler {
	if windowDays <= 0 {
		windowDays = 14
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Scheduler{store: st, client: client, windowDays: windowDays, interval: interval}
}

// Run ingests immediately, then on every tick until the context ends.
func (s *Scheduler) Run(ctx context.Context) {
	if err := s.IngestWindow(ctx); err != nil {
		log.Printf("ingest: initial window: %v", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("ingest: shutting down")
			return
		case <-ticker.C:
			if err := s.IngestWindow(ctx); err != nil {
				log.Printf("ingest: window: %v", err)
			}
		}
	}
}

// IngestWindow refreshes the trailing window ending today. Re-fetching
// days already stored is intentional; revised totals overwrite.
func (s *Scheduler) IngestWindow(ctx context.Context) error {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -(s.windowDays - 1))
	return s.IngestRange(ctx, start, end)
}

// IngestRange fetches and upserts [start, end] for every active
// station. A station that fails does not block the rest; the first
// error is returned after all stations are attempted.
func (s *Scheduler) IngestRange(ctx context.Context, start, end time.Time) error {
	stations, err := s.store.GetActiveStations()
	if err != nil {
		return fmt.Errorf("list stations: %w", err)
	}

	var firstErr error
	for _, station := range stations {
		observations, err := s.client.FetchDailySnowfall(ctx, station, start, end)
		if err != nil {
			log.Printf("ingest: fetch %s: %v", station.StationID, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("fetch %s: %w", station.StationID, err)
			}
			continue
		}

		for _, obs := range observations {
			if err := s.store.UpsertObservation(obs); err != nil {
				log.Printf("ingest: upsert %s %s: %v", obs.StationID, obs.Date.Format(dateLayout), err)
				if firstErr == nil {
					firstErr = fmt.Errorf("upsert %s: %w", obs.StationID, err)
				}
				continue
			}
			metrics.ObservationsIngested.WithLabelValues(station.StationID).Inc()
		}
		log.Printf("ingest: %s: %d days upserted", station.StationID, len(observations))
	}
	return firstErr
}

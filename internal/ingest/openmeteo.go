// Package ingest pulls daily snowfall totals from the Open-Meteo
// archive API into the observation store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/snowsignal/internal/metrics"
	"github.com/lox/snowsignal/internal/models"
)

const dateLayout = "2006-01-02"

type Client struct {
	baseURL    string
	client     *http.Client
	maxElapsed time.Duration
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: timeout},
		maxElapsed: 2 * time.Minute,
	}
}

type archiveResponse struct {
	Daily struct {
		Time        []string   `json:"time"`
		SnowfallSum []*float64 `json:"snowfall_sum"`
	} `json:"daily"`
	DailyUnits struct {
		SnowfallSum string `json:"snowfall_sum"`
	} `json:"daily_units"`
}

// FetchDailySnowfall returns one observation per day with reported
// snowfall in [start, end]. Days the archive has not filled in yet come
// back as null and are omitted.
func (c *Client) FetchDailySnowfall(ctx context.Context, st models.Station, start, end time.Time) ([]models.Observation, error) {
	query := url.Values{}
	query.Set("latitude", fmt.Sprintf("%.4f", st.Latitude))
	query.Set("longitude", fmt.Sprintf("%.4f", st.Longitude))
	query.Set("start_date", start.Format(dateLayout))
	query.Set("end_date", end.Format(dateLayout))
	query.Set("daily", "snowfall_sum")
	query.Set("timezone", "UTC")
	requestURL := c.baseURL + "?" + query.Encode()

	var body []byte
	operation := func() error {
		started := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			metrics.ArchiveAPICallsTotal.WithLabelValues(st.StationID, "error").Inc()
			return fmt.Errorf("fetch archive: %w", err)
		}
		defer resp.Body.Close()
		metrics.ArchiveAPILatency.WithLabelValues(st.StationID).Observe(time.Since(started).Seconds())
		metrics.ArchiveAPICallsTotal.WithLabelValues(st.StationID, fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("archive unavailable: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch archive: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}

	var data archiveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("unmarshal archive response: %w", err)
	}
	if len(data.Daily.Time) != len(data.Daily.SnowfallSum) {
		return nil, fmt.Errorf("archive response mismatch: %d dates, %d totals",
			len(data.Daily.Time), len(data.Daily.SnowfallSum))
	}

	// The archive reports snowfall_sum in cm.
	scale := 1.0
	if data.DailyUnits.SnowfallSum == "cm" {
		scale = 10.0
	}

	var observations []models.Observation
	for i, dateStr := range data.Daily.Time {
		total := data.Daily.SnowfallSum[i]
		if total == nil {
			continue
		}
		date, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return nil, fmt.Errorf("parse archive date %q: %w", dateStr, err)
		}
		observations = append(observations, models.Observation{
			StationID:  st.StationID,
			Date:       date,
			SnowfallMM: *total * scale,
		})
	}
	return observations, nil
}

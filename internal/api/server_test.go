package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/snowsignal/internal/forecast"
	"github.com/lox/snowsignal/internal/models"
	"github.com/lox/snowsignal/internal/publish"
	"github.com/lox/snowsignal/internal/store"
)

func setupServer(t *testing.T) (*Server, *store.Store, *publish.FileSink) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	descriptors := []models.StationDescriptor{
		{
			StationID:  "thunder_bay_on",
			Role:       models.RolePredictor,
			LagDays:    0,
			Weight:     0.50,
			Thresholds: models.ActivityThresholds{LightMM: 5, ModerateMM: 15, HeavyMM: 25},
		},
	}
	scorer := forecast.NewScorer(st, descriptors, forecast.DefaultHorizonDays)
	generator := forecast.NewGenerator(scorer, "phelps_wi", nil, nil)
	sink := publish.NewFileSink(t.TempDir())

	return NewServer(st, generator, sink, ":0"), st, sink
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := setupServer(t)

	rec := get(t, server.Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q", body["status"])
	}
}

func TestForecastEndpoint(t *testing.T) {
	server, st, _ := setupServer(t)

	err := st.UpsertObservation(models.Observation{
		StationID:  "thunder_bay_on",
		Date:       time.Now().UTC().Truncate(24 * time.Hour),
		SnowfallMM: 30.0,
	})
	if err != nil {
		t.Fatalf("UpsertObservation: %v", err)
	}

	rec := get(t, server.Handler(), "/api/forecast")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var snapshot models.ForecastSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snapshot.TargetStationID != "phelps_wi" {
		t.Errorf("TargetStationID = %q", snapshot.TargetStationID)
	}
	if len(snapshot.Forecasts) != forecast.DefaultHorizonDays {
		t.Fatalf("len(Forecasts) = %d", len(snapshot.Forecasts))
	}
	if snapshot.Forecasts[0].Score != 0.5 {
		t.Errorf("day0 score = %v, want 0.5", snapshot.Forecasts[0].Score)
	}
}

func TestBacktestEndpoint(t *testing.T) {
	server, _, sink := setupServer(t)

	// Nothing published yet.
	rec := get(t, server.Handler(), "/api/backtest")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	report := &models.BacktestReport{
		GeneratedAt:     time.Now().UTC(),
		TargetStationID: "phelps_wi",
		TotalEvents:     2,
	}
	if err := sink.WriteBacktest(report); err != nil {
		t.Fatalf("WriteBacktest: %v", err)
	}

	rec = get(t, server.Handler(), "/api/backtest")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var loaded models.BacktestReport
	if err := json.Unmarshal(rec.Body.Bytes(), &loaded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if loaded.TotalEvents != 2 {
		t.Errorf("TotalEvents = %d, want 2", loaded.TotalEvents)
	}
}

func TestStationsEndpoint(t *testing.T) {
	server, st, _ := setupServer(t)

	if err := st.UpsertStation(models.Station{StationID: "phelps_wi", Role: models.RoleTarget, Active: true}); err != nil {
		t.Fatalf("UpsertStation: %v", err)
	}

	rec := get(t, server.Handler(), "/api/stations")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var stations []models.Station
	if err := json.Unmarshal(rec.Body.Bytes(), &stations); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(stations) != 1 || stations[0].StationID != "phelps_wi" {
		t.Errorf("stations = %+v", stations)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server, _, _ := setupServer(t)

	rec := get(t, server.Handler(), "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty metrics body")
	}
}

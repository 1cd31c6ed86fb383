// Package publish writes forecast snapshots and backtest reports to
// their outbound sinks: JSON files on disk and, optionally, a Kafka
// topic.
package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lox/snowsignal/internal/metrics"
	"github.com/lox/snowsignal/internal/models"
)

const (
	latestForecastFile = "forecast_latest.json"
	latestBacktestFile = "backtest_latest.json"
	latestModelFile    = "model_latest.json"
)

// FileSink persists snapshots under a directory: a dated file per run
// plus a stable latest pointer the API serves from.
type FileSink struct {
	dir string
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (f *FileSink) WriteForecast(snapshot *models.ForecastSnapshot) error {
	dated := fmt.Sprintf("forecast_%s.json", snapshot.GeneratedAt.UTC().Format("2006-01-02"))
	if err := f.write(dated, latestForecastFile, snapshot); err != nil {
		metrics.SnapshotsPublished.WithLabelValues("file", "error").Inc()
		return err
	}
	metrics.SnapshotsPublished.WithLabelValues("file", "ok").Inc()
	return nil
}

func (f *FileSink) WriteBacktest(report *models.BacktestReport) error {
	dated := fmt.Sprintf("backtest_%s.json", report.GeneratedAt.UTC().Format("2006-01-02"))
	if err := f.write(dated, latestBacktestFile, report); err != nil {
		metrics.SnapshotsPublished.WithLabelValues("file", "error").Inc()
		return err
	}
	metrics.SnapshotsPublished.WithLabelValues("file", "ok").Inc()
	return nil
}

// WriteModel records the predictor model produced by an analysis run
// so a later forecast run can score without re-analyzing.
func (f *FileSink) WriteModel(model *models.PredictorModel) error {
	dated := fmt.Sprintf("model_%s.json", model.CreatedAt.UTC().Format("2006-01-02"))
	if err := f.write(dated, latestModelFile, model); err != nil {
		metrics.SnapshotsPublished.WithLabelValues("file", "error").Inc()
		return err
	}
	metrics.SnapshotsPublished.WithLabelValues("file", "ok").Inc()
	return nil
}

func (f *FileSink) LoadModel() (*models.PredictorModel, error) {
	var model models.PredictorModel
	if err := f.load(latestModelFile, &model); err != nil {
		return nil, err
	}
	return &model, nil
}

func (f *FileSink) LoadForecast() (*models.ForecastSnapshot, error) {
	var snapshot models.ForecastSnapshot
	if err := f.load(latestForecastFile, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (f *FileSink) LoadBacktest() (*models.BacktestReport, error) {
	var report models.BacktestReport
	if err := f.load(latestBacktestFile, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (f *FileSink) write(dated, latest string, v any) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	for _, name := range []string{dated, latest} {
		path := filepath.Join(f.dir, name)
		tmp := path + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("replace %s: %w", name, err)
		}
	}
	return nil
}

func (f *FileSink) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ArchiveAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowsignal_archive_api_calls_total",
			Help: "Total Open-Meteo archive API calls",
		},
		[]string{"station", "status"},
	)

	ArchiveAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snowsignal_archive_api_latency_seconds",
			Help:    "Archive API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"station"},
	)

	ObservationsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowsignal_observations_ingested_total",
			Help: "Total daily observations upserted",
		},
		[]string{"station"},
	)

	AnalysisStationsAnalyzed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snowsignal_analysis_stations_analyzed_total",
			Help: "Predictor stations successfully correlated against a target",
		},
	)

	AnalysisStationsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snowsignal_analysis_stations_skipped_total",
			Help: "Predictor stations skipped for insufficient overlapping data",
		},
	)

	ForecastsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snowsignal_forecasts_generated_total",
			Help: "Outlook snapshots generated",
		},
	)

	SnapshotsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snowsignal_snapshots_published_total",
			Help: "Forecast snapshots published, by sink",
		},
		[]string{"sink", "status"},
	)
)

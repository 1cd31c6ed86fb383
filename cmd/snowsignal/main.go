package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/lox/snowsignal/internal/analysis"
	"github.com/lox/snowsignal/internal/api"
	"github.com/lox/snowsignal/internal/config"
	"github.com/lox/snowsignal/internal/forecast"
	"github.com/lox/snowsignal/internal/ingest"
	"github.com/lox/snowsignal/internal/publish"
	"github.com/lox/snowsignal/internal/store"
)

const dateLayout = "2006-01-02"

var cli struct {
	Config string `help:"Path to YAML config file." short:"c" env:"SNOWSIGNAL_CONFIG" type:"path" optional:""`

	Migrate  MigrateCmd  `cmd:"" help:"Apply database migrations and exit."`
	Seed     SeedCmd     `cmd:"" help:"Seed the station registry from configuration."`
	Ingest   IngestCmd   `cmd:"" help:"Fetch daily snowfall totals for all active stations."`
	Analyze  AnalyzeCmd  `cmd:"" help:"Recompute best-lag correlations against the target."`
	Forecast ForecastCmd `cmd:"" help:"Generate and publish the outlook."`
	Backtest BacktestCmd `cmd:"" help:"Replay scoring against historical snowfall events."`
	Run      RunCmd      `cmd:"" help:"Run the ingest scheduler and HTTP API."`
}

// app holds the shared wiring every command needs: config, an open
// database with migrations applied, and the snapshot sink.
type app struct {
	cfg  *config.Config
	db   *sql.DB
	st   *store.Store
	sink *publish.FileSink
}

func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &app{
		cfg:  cfg,
		db:   db,
		st:   st,
		sink: publish.NewFileSink(cfg.Publish.SnapshotDir),
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

func (a *app) scorer() *forecast.Scorer {
	return forecast.NewScorer(a.st, a.cfg.PredictorDescriptors(), a.cfg.Forecast.HorizonDays)
}

func (a *app) generator() *forecast.Generator {
	return forecast.NewGenerator(a.scorer(), a.cfg.Stations.Target,
		a.cfg.Forecast.ProbabilityBands, a.cfg.Forecast.ConfidenceBands)
}

func (a *app) scheduler() *ingest.Scheduler {
	client := ingest.NewClient(a.cfg.Ingest.BaseURL, a.cfg.Ingest.Timeout)
	return ingest.NewScheduler(a.st, client, a.cfg.Ingest.WindowDays, a.cfg.Ingest.Interval)
}

func (a *app) backtestConfig() forecast.BacktestConfig {
	return forecast.BacktestConfig{
		EventThresholdMM:    a.cfg.Backtest.EventThresholdMM,
		MajorEventMM:        a.cfg.Backtest.MajorEventMM,
		HitPct:              a.cfg.Backtest.HitPct,
		PartialPct:          a.cfg.Backtest.PartialPct,
		StrongGlobalScore:   a.cfg.Backtest.StrongGlobalScore,
		ModerateGlobalScore: a.cfg.Backtest.ModerateGlobalScore,
		WeakGlobalScore:     a.cfg.Backtest.WeakGlobalScore,
	}
}

// publishForecast generates a fresh outlook and writes it to every
// configured sink.
func (a *app) publishForecast(ctx context.Context) error {
	snapshot, err := a.generator().Generate()
	if err != nil {
		return fmt.Errorf("generate forecast: %w", err)
	}
	if err := a.sink.WriteForecast(snapshot); err != nil {
		return err
	}

	if a.cfg.Publish.Kafka.Enabled {
		kafka := publish.NewKafkaSink(a.cfg.Publish.Kafka.Brokers, a.cfg.Publish.Kafka.Topic)
		defer kafka.Close()
		if err := kafka.PublishForecast(ctx, snapshot); err != nil {
			return fmt.Errorf("publish to kafka: %w", err)
		}
	}

	day0 := snapshot.Forecasts[0]
	log.Printf("forecast: published %s outlook, day 0 score %.2f (%s)",
		snapshot.TargetStationID, day0.Score, day0.ProbabilityBand)
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(a *app) error {
	version, err := a.st.MigrationVersion()
	if err != nil {
		return err
	}
	log.Printf("migrate: schema at version %d", version)
	return nil
}

type SeedCmd struct{}

func (c *SeedCmd) Run(a *app) error {
	stations := a.cfg.SeedStations()
	for _, station := range stations {
		if err := a.st.UpsertStation(station); err != nil {
			return fmt.Errorf("upsert station %s: %w", station.StationID, err)
		}
	}
	log.Printf("seed: %d stations registered", len(stations))
	return nil
}

type IngestCmd struct {
	Days int `help:"Backfill this many days instead of the configured window." default:"0"`
}

func (c *IngestCmd) Run(ctx context.Context, a *app) error {
	scheduler := a.scheduler()
	if c.Days > 0 {
		end := time.Now().UTC()
		start := end.AddDate(0, 0, -(c.Days - 1))
		log.Printf("ingest: backfilling %d days", c.Days)
		return scheduler.IngestRange(ctx, start, end)
	}
	return scheduler.IngestWindow(ctx)
}

type AnalyzeCmd struct {
	Lookback int `help:"Days of history to correlate over. Defaults to the configured lookback." default:"0"`
}

func (c *AnalyzeCmd) Run(a *app) error {
	lookback := c.Lookback
	if lookback <= 0 {
		lookback = a.cfg.Analysis.LookbackDays
	}
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -lookback)

	analyzer, err := analysis.NewAnalyzer(a.st, analysis.Config{
		MinLag:     a.cfg.Analysis.MinLag,
		MaxLag:     a.cfg.Analysis.MaxLag,
		MinSamples: a.cfg.Analysis.MinSamples,
		Alpha:      a.cfg.Analysis.Alpha,
	})
	if err != nil {
		return err
	}

	model, err := analyzer.Run(a.cfg.Stations.Target, a.cfg.PredictorDescriptors(), start, end)
	if err != nil {
		return err
	}
	if err := a.sink.WriteModel(model); err != nil {
		return err
	}
	log.Printf("analyze: %d predictors correlated against %s over %d days",
		len(model.Predictors), model.TargetStationID, lookback)
	return nil
}

type ForecastCmd struct{}

func (c *ForecastCmd) Run(ctx context.Context, a *app) error {
	return a.publishForecast(ctx)
}

type BacktestCmd struct {
	Start string `help:"First day to replay (YYYY-MM-DD). Defaults to the analysis lookback." default:""`
	End   string `help:"Last day to replay (YYYY-MM-DD). Defaults to today." default:""`
}

func (c *BacktestCmd) Run(a *app) error {
	end := time.Now().UTC()
	if c.End != "" {
		parsed, err := time.Parse(dateLayout, c.End)
		if err != nil {
			return fmt.Errorf("parse --end: %w", err)
		}
		end = parsed
	}
	start := end.AddDate(0, 0, -a.cfg.Analysis.LookbackDays)
	if c.Start != "" {
		parsed, err := time.Parse(dateLayout, c.Start)
		if err != nil {
			return fmt.Errorf("parse --start: %w", err)
		}
		start = parsed
	}

	backtester := forecast.NewBacktester(a.st, a.scorer(), a.backtestConfig(), a.cfg.Forecast.ProbabilityBands)
	report, err := backtester.Run(a.cfg.Stations.Target, start, end)
	if err != nil {
		return err
	}
	return a.sink.WriteBacktest(report)
}

type RunCmd struct {
	NoPoll bool `help:"Disable the ingest scheduler (server only, for local dev)."`
}

func (c *RunCmd) Run(ctx context.Context, a *app) error {
	if err := c.seedIfEmpty(a); err != nil {
		return err
	}

	if !c.NoPoll {
		go a.scheduler().Run(ctx)
		go c.publishLoop(ctx, a)
	} else {
		log.Println("polling disabled (--no-poll)")
	}

	server := api.NewServer(a.st, a.generator(), a.sink, a.cfg.Server.Addr)
	log.Printf("starting server on %s", a.cfg.Server.Addr)
	return server.Run(ctx)
}

func (c *RunCmd) seedIfEmpty(a *app) error {
	stations, err := a.st.GetActiveStations()
	if err != nil {
		return err
	}
	if len(stations) > 0 {
		return nil
	}
	return (&SeedCmd{}).Run(a)
}

// publishLoop refreshes the snapshot files on the ingest cadence so
// the latest forecast always reflects newly arrived observations.
func (c *RunCmd) publishLoop(ctx context.Context, a *app) {
	ticker := time.NewTicker(a.cfg.Ingest.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.publishForecast(ctx); err != nil {
				log.Printf("publish: %v", err)
			}
		}
	}
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("snowsignal"),
		kong.Description("Snowfall teleconnection outlook engine for the Wisconsin Northwoods."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
		kong.UsageOnError(),
	)

	a, err := newApp(cli.Config)
	kctx.FatalIfErrorf(err)
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kctx.Bind(a)
	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.FatalIfErrorf(kctx.Run())
}

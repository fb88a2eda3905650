package main

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/proactivedb/fleetmon/internal/config"
	"github.com/proactivedb/fleetmon/internal/middleware"
	"github.com/proactivedb/fleetmon/internal/monitoring/alerting"
	monapi "github.com/proactivedb/fleetmon/internal/monitoring/api"
	mondb "github.com/proactivedb/fleetmon/internal/monitoring/database"
	"github.com/proactivedb/fleetmon/internal/monitoring/history"
	"github.com/proactivedb/fleetmon/internal/monitoring/ingest"
	"github.com/proactivedb/fleetmon/internal/monitoring/notify"
	"github.com/proactivedb/fleetmon/internal/monitoring/retention"
	"github.com/proactivedb/fleetmon/internal/monitoring/settings"
	"github.com/proactivedb/fleetmon/internal/monitoring/statusmon"
	"github.com/proactivedb/fleetmon/internal/monitoring/store"
)

func main() {
	log.Info().Msg("Starting fleetmon api server")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// storage: PostgreSQL when reachable, in-memory fallback so a broken DB
	// still leaves current status visible
	var snapshots store.SnapshotStore
	var series store.TimeSeriesStore
	if db, derr := mondb.New(cfg.Database.DSN()); derr == nil {
		if merr := mondb.Migrate(ctx, db); merr != nil {
			log.Fatal().Err(merr).Msg("database migration failed")
		}
		defer db.Close()
		snapshots = mondb.NewSnapshotRepo(db)
		series = mondb.NewTimeSeriesRepo(db)
	} else {
		log.Error().Err(derr).Msg("database init failed; falling back to in-memory stores")
		snapshots = store.NewMemorySnapshotStore()
		series = store.NewMemoryTimeSeriesStore()
	}

	debounceTTL := config.ParseDuration(cfg.Alerting.DebouncePurgeAfter, 48*time.Hour)
	var debounce alerting.DebounceStore = alerting.NewMemoryDebounceStore()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if perr := rdb.Ping(ctx).Err(); perr == nil {
			debounce = alerting.NewRedisDebounceStore(rdb, debounceTTL)
			log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis debounce store")
		} else {
			log.Error().Err(perr).Msg("redis unreachable; using in-memory debounce store")
		}
	}

	var sink notify.Sink = notify.LogSink{}
	if cfg.SMTP.Host != "" {
		sink = notify.NewSMTPSink(&cfg.SMTP)
	} else {
		log.Warn().Msg("no SMTP host configured; alerts will only be logged")
	}

	settingsStore := settings.NewStore(cfg.Alerting.SettingsFile)
	if _, serr := settingsStore.Load(); serr != nil {
		log.Error().Err(serr).Msg("initial settings load failed; using defaults")
	}

	engine := alerting.NewEngine(settingsStore, debounce, sink,
		config.ParseDuration(cfg.Alerting.StatusDebounce, 3*time.Hour),
		config.ParseDuration(cfg.Alerting.DailyDebounce, 24*time.Hour))

	retentionWindow := config.ParseDuration(cfg.Monitor.Retention, 24*time.Hour)
	statusTimeout := config.ParseDuration(cfg.Monitor.StatusTimeout, 90*time.Second)

	pipeline := ingest.NewPipeline(snapshots, series, engine, retentionWindow)
	assembler := history.NewAssembler(series, retentionWindow)

	monitor := statusmon.NewMonitor(snapshots, settingsStore, engine,
		config.ParseDuration(cfg.Monitor.SweepInterval, time.Minute), statusTimeout)
	monitor.Start(ctx)
	defer monitor.Stop()

	sweeper := retention.NewSweeper(series, debounce,
		config.ParseDuration(cfg.Monitor.PruneInterval, time.Hour), retentionWindow, debounceTTL)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID)
	router.Use(middleware.SessionFromHeader)
	monapi.NewApi(router, monapi.Deps{
		Pipeline:      pipeline,
		Snapshots:     snapshots,
		Assembler:     assembler,
		Settings:      settingsStore,
		StatusTimeout: statusTimeout,
	})

	log.Info().Msgf("Starting server on %s", cfg.Server.BindAddr)
	if err := router.Run(cfg.Server.BindAddr); err != nil {
		log.Fatal().Err(err).Msg("start fleetmon api server failed.")
	}
	log.Info().Msg("fleetmon api server exit...")
}

// Package main provides the insight-engine HTTP daemon entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"

	"github.com/skinclarityclub/insight-engine/internal/access"
	"github.com/skinclarityclub/insight-engine/internal/assistant"
	"github.com/skinclarityclub/insight-engine/internal/behavior"
	"github.com/skinclarityclub/insight-engine/internal/cache"
	"github.com/skinclarityclub/insight-engine/internal/config"
	"github.com/skinclarityclub/insight-engine/internal/db"
	pgstore "github.com/skinclarityclub/insight-engine/internal/db/postgres"
	"github.com/skinclarityclub/insight-engine/internal/db/sqlite"
	"github.com/skinclarityclub/insight-engine/internal/graph"
	"github.com/skinclarityclub/insight-engine/internal/integration"
	"github.com/skinclarityclub/insight-engine/internal/semantic"
	"github.com/skinclarityclub/insight-engine/internal/server"
	"github.com/skinclarityclub/insight-engine/internal/watcher"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Config file path (default: <data-dir>/config.yaml)")
	addr := flag.String("addr", "", "Listen address override")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

	path := *configPath
	if path == "" {
		path = filepath.Join(config.DataDir(), "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("failed to load config")
	}
	applyLogLevel(cfg.LogLevel, *debug)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	if err := os.MkdirAll(config.DataDir(), 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	engineCache, err := openCache(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cache")
	}

	var enricher semantic.Enricher
	if cfg.Graph.Enabled {
		g, err := graph.Connect(cfg.Graph.Addr)
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.Graph.Addr).Msg("knowledge graph unavailable, continuing without it")
		} else {
			enricher = g
			log.Info().Str("addr", cfg.Graph.Addr).Msg("knowledge graph connected")
		}
	}

	oracle := access.NewStatic()
	analyzer := semantic.NewAnalyzer(nil, engineCache, enricher)
	engine := behavior.NewEngine(store, engineCache, nil)
	engine.SetPredictionTTL(cfg.Engine.PredictionTTL)
	integrator := integration.NewIntegrator(buildSources(), engineCache, oracle, nil, cfg.Engine.SourceFanout)
	integrator.SetResultTTL(cfg.Engine.IntegrationTTL)

	orchestrator := assistant.New(assistant.Config{
		Store:        store,
		Analyzer:     analyzer,
		Behavior:     engine,
		Integrator:   integrator,
		Oracle:       oracle,
		HistoryDepth: cfg.Engine.HistoryDepth,
		MaxFollowUps: cfg.Engine.MaxFollowUps,
	})
	svc := server.New(store, orchestrator, engine)

	scheduler := cron.New()
	mustSchedule(scheduler, fmt.Sprintf("@every %s", cfg.Engine.ModelFlushEvery), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := engine.Flush(ctx); err != nil {
			log.Warn().Err(err).Msg("periodic model flush failed")
		}
	})
	mustSchedule(scheduler, fmt.Sprintf("@every %s", cfg.Engine.ExpirySweepEvery), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := store.ExpireSessions(ctx, cfg.Engine.SessionExpiry)
		if err != nil {
			log.Warn().Err(err).Msg("session expiry sweep failed")
			return
		}
		if n > 0 {
			log.Info().Int64("expired", n).Msg("sessions expired")
		}
	})
	scheduler.Start()
	defer scheduler.Stop()

	cfgWatcher, err := watcher.New(path, func() {
		reloaded, err := config.Load(path)
		if err != nil {
			log.Warn().Err(err).Msg("config reload failed, keeping previous settings")
			return
		}
		applyLogLevel(reloaded.LogLevel, *debug)
	})
	if err != nil {
		log.Warn().Err(err).Msg("config watcher unavailable")
	} else {
		if err := cfgWatcher.Start(); err != nil {
			log.Warn().Err(err).Msg("config watcher failed to start")
		}
		defer cfgWatcher.Stop()
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Str("version", Version).Msg("insight-engine listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("background work shutdown incomplete")
	}
	if err := engine.Flush(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("final model flush failed")
	}
}

func applyLogLevel(level string, debug bool) {
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
}

func openStore(cfg *config.Config) (db.Store, error) {
	switch cfg.Store.Backend {
	case "postgres":
		return pgstore.NewStore(pgstore.StoreConfig{
			DSN:           cfg.Store.PostgresDSN,
			LogLevel:      gormlogger.Warn,
			PseudonymSalt: cfg.Store.PseudonymSalt,
		})
	default:
		return sqlite.NewStore(sqlite.StoreConfig{
			Path:          cfg.Store.SQLitePath,
			MaxConns:      cfg.Store.MaxConns,
			PseudonymSalt: cfg.Store.PseudonymSalt,
		})
	}
}

func openCache(cfg *config.Config) (cache.Cache, error) {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.Prefix), nil
	}
	return cache.NewMemory(5*time.Minute, 10*time.Minute), nil
}

// buildSources registers the data source connectors. Endpoints come from the
// environment so deployments can point at their own connector gateways.
func buildSources() []integration.Source {
	specs := []struct {
		name   string
		urlEnv string
		keyEnv string
	}{
		{integration.SourceCommerce, "COMMERCE_API_URL", "COMMERCE_API_KEY"},
		{integration.SourceCourses, "COURSES_API_URL", "COURSES_API_KEY"},
		{integration.SourceCustomers, "CUSTOMERS_API_URL", "CUSTOMERS_API_KEY"},
		{integration.SourceMarketing, "MARKETING_API_URL", "MARKETING_API_KEY"},
		{integration.SourceFinance, "FINANCE_API_URL", "FINANCE_API_KEY"},
	}

	var sources []integration.Source
	for _, spec := range specs {
		baseURL := os.Getenv(spec.urlEnv)
		if baseURL == "" {
			continue
		}
		sources = append(sources, integration.NewRESTSource(spec.name, baseURL, os.Getenv(spec.keyEnv), nil))
		log.Info().Str("source", spec.name).Msg("data source registered")
	}
	if len(sources) == 0 {
		log.Warn().Msg("no data sources configured, queries will return no records")
	}
	return sources
}

func mustSchedule(scheduler *cron.Cron, spec string, job func()) {
	if _, err := scheduler.AddFunc(spec, job); err != nil {
		log.Fatal().Err(err).Str("spec", spec).Msg("invalid cron schedule")
	}
}

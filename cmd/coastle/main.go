package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coastle/coastle/internal/alerter"
	"github.com/coastle/coastle/internal/api"
	"github.com/coastle/coastle/internal/config"
	"github.com/coastle/coastle/internal/evaluator"
	"github.com/coastle/coastle/internal/logbuffer"
	"github.com/coastle/coastle/internal/notifier"
	"github.com/coastle/coastle/internal/storage"
	"github.com/coastle/coastle/internal/thresholds"
	"github.com/coastle/coastle/internal/types"
	"github.com/coastle/coastle/internal/version"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "/config/coastle.yaml", "Path to configuration")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	info := version.Get()
	if *showVersion {
		fmt.Println("coastle", info.String())
		return
	}

	// Capture recent log entries for /api/logs
	logBuffer := logbuffer.New(1000)

	zerolog.TimeFieldFormat = time.RFC3339
	logLevelParsed, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logLevelParsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevelParsed)

	var stdout io.Writer = os.Stdout
	if os.Getenv("ENV") == "development" {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(io.MultiWriter(stdout, logBuffer)).With().
		Timestamp().
		Str("version", info.Version).
		Str("commit", info.Commit).
		Logger()

	logger.Info().Msg("Starting Coastle")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("config_path", *configPath).
			Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Service.Storage.Backend).Msg("Failed to open alert store")
	}
	defer store.Close()

	var readings storage.ReadingStore = storage.NewReadingBuffer(0)
	if pg, ok := store.(*storage.PostgresStore); ok {
		readings = pg.Readings()
	}

	// Thresholds: defaults, then config overrides, then the optimizer
	overrides, _ := cfg.ThresholdOverrides()
	thresholdStore := thresholds.NewStore(thresholds.Defaults())
	thresholdStore.Replace(overrides)

	optimizer := newOptimizer(cfg)
	if optimizer != nil && *cfg.Service.Optimizer.RefreshOnStart {
		// Failure keeps the defaults; Refresh already logged it
		thresholds.Refresh(ctx, thresholdStore, optimizer, cfg.Service.Optimizer.Timeout, logger)
	}

	channels, err := buildChannels(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create notification channels")
	}
	notify := notifier.NewNotifier(logger, channels, notifier.Options{
		Rules:   routingRules(cfg),
		Timeout: cfg.Alerts.AlertBehavior.SendTimeout,
	})

	warnUnavailableChannels(cfg, notify, logger)

	engine := alerter.NewEngine(store, notify, alerter.EngineOptions{
		Escalation:      escalationRules(cfg),
		BreachThreshold: cfg.Alerts.AlertBehavior.RepeatedBreach.Threshold,
		BreachWindow:    cfg.Alerts.AlertBehavior.RepeatedBreach.Window,
	}, logger)
	go engine.Run(ctx, time.Minute)

	eval := evaluator.NewEvaluator(thresholdStore, store, engine, logger)
	query := alerter.NewQueryService(store, cfg.Service.Query.ActiveWindow)

	stations := storage.NewStationRegistry()
	for _, sc := range cfg.Service.Stations {
		stations.Put(types.Station{
			ID:    sc.ID,
			Name:  sc.Name,
			Kind:  types.StationKind(sc.Type),
			Point: types.Point{Lat: sc.Lat, Lng: sc.Lng},
		})
	}

	logger.Info().
		Int("station_count", len(cfg.Service.Stations)).
		Int("channel_count", len(channels)).
		Str("storage", cfg.Service.Storage.Backend).
		Str("optimizer", cfg.Service.Optimizer.Type).
		Msg("Configuration loaded")

	apiServer := api.NewServer(api.Deps{
		Evaluator:      eval,
		Engine:         engine,
		Query:          query,
		Thresholds:     thresholdStore,
		Optimizer:      optimizer,
		RefreshTimeout: cfg.Service.Optimizer.Timeout,
		Stations:       stations,
		Store:          store,
		Readings:       readings,
		LogBuffer:      logBuffer,
		Version:        info,
	}, logger, cfg.Service.Server.Port)

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
			cancel()
		}
	}()

	if port := cfg.Service.Server.GRPCHealthPort; port != "" {
		healthServer := api.NewHealthServer(store, logger)
		go func() {
			if err := healthServer.Serve(ctx, port, 10*time.Second); err != nil {
				logger.Error().Err(err).Msg("gRPC health server error")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info().Str("port", cfg.Service.Server.Port).Msg("Coastle running, press Ctrl+C to stop")

	select {
	case <-sigChan:
	case <-ctx.Done():
	}
	logger.Info().Msg("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	cancel()
	engine.Stop()
	if err := notify.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing notification channels")
	}
	logger.Info().Msg("Coastle stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.AlertStore, error) {
	sc := cfg.Service.Storage
	if sc.Backend != "postgres" {
		return storage.NewMemoryStore(), nil
	}
	dsn := os.Getenv(sc.DSNEnv)
	if dsn == "" {
		return nil, fmt.Errorf("environment variable %s is required for postgres storage", sc.DSNEnv)
	}
	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return storage.OpenPostgres(openCtx, storage.PostgresOptions{
		DSN:      dsn,
		MaxConns: sc.MaxConns,
		MaxIdle:  sc.MaxIdle,
	}, logger)
}

func newOptimizer(cfg *config.Config) thresholds.Optimizer {
	oc := cfg.Service.Optimizer
	switch oc.Type {
	case "http":
		return thresholds.NewHTTPOptimizer(os.Getenv(oc.URLEnv), oc.Timeout)
	case "static":
		return thresholds.NewStaticOptimizer()
	default:
		return nil
	}
}

func buildChannels(cfg *config.Config, logger zerolog.Logger) ([]notifier.Channel, error) {
	timeout := cfg.Alerts.AlertBehavior.SendTimeout
	channels := make([]notifier.Channel, 0, len(cfg.Alerts.Channels))
	for name, cc := range cfg.Alerts.Channels {
		switch cc.Type {
		case "log":
			channels = append(channels, notifier.NewLogChannel(name, logger))
		case "apprise":
			url := os.Getenv(cc.URLEnv)
			if url == "" {
				logger.Warn().
					Str("channel", name).
					Str("url_env", cc.URLEnv).
					Msg("Apprise URL not set, skipping channel")
				continue
			}
			channels = append(channels, notifier.NewAppriseChannel(name, url, cc.Service, timeout))
		case "kafka":
			ch, err := notifier.NewKafkaChannel(name, cc.Brokers, cc.Topic, timeout)
			if err != nil {
				return nil, fmt.Errorf("channel %s: %w", name, err)
			}
			channels = append(channels, ch)
		case "redis":
			client := redis.NewClient(&redis.Options{
				Addr:     cc.Addr,
				Password: os.Getenv(cc.PasswordEnv),
				DB:       cc.DB,
			})
			channels = append(channels, notifier.NewRedisStreamChannel(name, client, cc.Stream, cc.MaxLen))
		}
	}
	return channels, nil
}

// warnUnavailableChannels reports rule and escalation targets whose channel
// was skipped at startup, e.g. an apprise channel without its URL
func warnUnavailableChannels(cfg *config.Config, notify *notifier.Notifier, logger zerolog.Logger) {
	check := func(scope, key string, names []string) {
		available := make(map[string]bool, len(names))
		for _, name := range notify.Available(names) {
			available[name] = true
		}
		for _, name := range names {
			if !available[name] {
				logger.Warn().
					Str(scope, key).
					Str("channel", name).
					Msg("Channel referenced but not available, notifications to it will be skipped")
			}
		}
	}
	for severity, rule := range cfg.Alerts.AlertRules {
		check("alert_rule", severity, rule.Channels)
	}
	for severity, rule := range cfg.Alerts.AlertBehavior.Escalation {
		check("escalation", severity, rule.Channels)
	}
}

func routingRules(cfg *config.Config) map[string][]string {
	rules := make(map[string][]string, len(cfg.Alerts.AlertRules))
	for severity, rule := range cfg.Alerts.AlertRules {
		rules[severity] = rule.Channels
	}
	return rules
}

func escalationRules(cfg *config.Config) map[types.Severity]alerter.EscalationRule {
	rules := make(map[types.Severity]alerter.EscalationRule, len(cfg.Alerts.AlertBehavior.Escalation))
	for severity, rule := range cfg.Alerts.AlertBehavior.Escalation {
		rules[types.Severity(severity)] = alerter.EscalationRule{
			Channels: rule.Channels,
			Delay:    rule.Delay,
		}
	}
	return rules
}

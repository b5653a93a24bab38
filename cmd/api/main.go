package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"courtbook/internal/api"
	"courtbook/internal/config"
	"courtbook/internal/database"
	"courtbook/internal/domain"
	"courtbook/internal/events"
	"courtbook/internal/logging"
	"courtbook/internal/metrics"
	"courtbook/internal/models"
	"courtbook/internal/registry"
	"courtbook/internal/repository"
	"courtbook/internal/rules"
	"courtbook/internal/sequence"
	"courtbook/internal/service"
	"courtbook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	fields, err := loadFields(cfg, &logger)
	if err != nil {
		return err
	}
	reg := registry.New(db, db, logging.Component(&logger, "registry"),
		registry.WithCacheTTL(cfg.Scheduling.FieldCacheTTL))
	if err := reg.Sync(ctx, fields); err != nil {
		logger.Error().Err(err).Msg("sync field catalog")
		return err
	}

	seq, err := initSequence(ctx, cfg, db)
	if err != nil {
		return err
	}

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}
	locker := initLocker(cfg, redisClient, &logger)

	bus, publisherCloser, err := initEvents(ctx, cfg, db, &logger)
	if err != nil {
		return err
	}
	if publisherCloser != nil {
		defer func() { _ = publisherCloser.Close() }()
	}

	loc, err := cfg.Scheduling.Location()
	if err != nil {
		return err
	}
	svc := service.NewBookingService(db, reg, locker, bus, seq, domain.SystemClock{Location: loc},
		service.Settings{
			Rules: rules.Settings{
				MinLeadTime: cfg.Scheduling.MinLeadTime,
				MinDuration: cfg.Scheduling.MinDuration,
				MaxDuration: cfg.Scheduling.MaxDuration,
				Granularity: cfg.Scheduling.Granularity,
			},
			Location: loc,
		}, &logger)

	backup := database.NewBackupService(db, cfg.Backup, &logger)
	go backup.Start(ctx)

	startMetrics(ctx, cfg, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, svc, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}
	httpServer := api.NewHTTPServer(cfg.API, svc, reg, &logger)

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadFields merges the catalog from config.yaml with FIELDS_PATH. A field in
// the separate file replaces a config entry with the same code.
func loadFields(cfg *config.Config, logger *zerolog.Logger) ([]*models.Field, error) {
	byCode := make(map[string]int)
	out := make([]*models.Field, 0, len(cfg.Fields))
	add := func(f models.Field) {
		if i, ok := byCode[f.Code]; ok {
			out[i] = &f
			return
		}
		byCode[f.Code] = len(out)
		out = append(out, &f)
	}
	for _, f := range cfg.Fields {
		add(f)
	}

	fieldsPath := os.Getenv("FIELDS_PATH")
	if fieldsPath == "" {
		fieldsPath = "configs/fields.yaml"
	}
	data, err := os.ReadFile(fieldsPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn().Str("fields_path", fieldsPath).Msg("fields file not found, using config catalog only")
		return out, nil
	}
	if err != nil {
		logger.Error().Err(err).Str("fields_path", fieldsPath).Msg("read fields")
		return nil, err
	}

	var fieldsConfig struct {
		Fields []models.Field `yaml:"fields"`
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fieldsConfig); err != nil {
		logger.Error().Err(err).Str("fields_path", fieldsPath).Msg("parse fields")
		return nil, err
	}
	if err := config.ValidateFields(fieldsConfig.Fields); err != nil {
		return nil, fmt.Errorf("%s: %w", fieldsPath, err)
	}
	for _, f := range fieldsConfig.Fields {
		add(f)
	}

	logger.Info().Int("fields", len(out)).Msg("field catalog loaded")
	return out, nil
}

func initSequence(ctx context.Context, cfg *config.Config, db *database.DB) (*sequence.Counter, error) {
	last, err := db.MaxBookingSequence(ctx)
	if err != nil {
		return nil, fmt.Errorf("read booking sequence: %w", err)
	}
	seq := sequence.New(cfg.Scheduling.ReferencePrefix, 0)
	seq.Init(last)
	return seq, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := repository.Ping(pingCtx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, using in-process slot locks")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initLocker prefers Redis slot locks so several instances can share a
// ledger, falling back to in-process locks when Redis is unreachable.
func initLocker(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.SlotLocker {
	memory := repository.NewMemorySlotLocker(cfg.Scheduling.LockTimeout)
	if client == nil {
		return memory
	}
	primary := repository.NewRedisSlotLocker(client, cfg.Scheduling.LockTTL, cfg.Scheduling.LockTimeout)
	return repository.NewFailoverSlotLocker(primary, memory, logging.Component(logger, "slot-locks"))
}

// initEvents wires the audit pipeline: bus -> outbox table -> worker -> broker.
func initEvents(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) (*events.EventBus, io.Closer, error) {
	bus := events.NewEventBus()
	bus.OnError(func(event *events.Event, err error) {
		logger.Error().Err(err).Str("type", event.Type).Msg("event handler failed")
	})

	events.NewOutboxRecorder(db).Attach(bus)

	var (
		publisher domain.Publisher
		closer    io.Closer
	)
	if cfg.Events.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			return nil, nil, fmt.Errorf("connect amqp: %w", err)
		}
		publisher, closer = amqpPublisher, amqpPublisher
		logger.Info().Str("exchange", cfg.Events.Exchange).Msg("audit events published to amqp")
	} else {
		publisher = events.NewLogPublisher(logging.Component(logger, "audit"))
	}

	retry := worker.RetryPolicy{
		MaxRetries:    cfg.Events.Retry.MaxRetries,
		InitialDelay:  cfg.Events.Retry.InitialDelay,
		MaxDelay:      cfg.Events.Retry.MaxDelay,
		BackoffFactor: cfg.Events.Retry.BackoffFactor,
	}
	outbox := worker.NewOutboxWorker(db, publisher, retry, cfg.Events.PollInterval, cfg.Events.BatchSize,
		logging.Component(logger, "outbox"))
	outbox.Attach(bus)
	go outbox.Start(ctx)

	return bus, closer, nil
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Bool("grpc", grpcServer != nil).Int("http_port", cfg.API.HTTP.Port).Msg("courtbook started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("courtbook stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

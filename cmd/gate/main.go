package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dialerops/callgate-backend/internal/api/rest"
	"github.com/dialerops/callgate-backend/internal/api/websocket"
	"github.com/dialerops/callgate-backend/internal/infrastructure/cache"
	"github.com/dialerops/callgate-backend/internal/infrastructure/config"
	"github.com/dialerops/callgate-backend/internal/infrastructure/events"
	"github.com/dialerops/callgate-backend/internal/infrastructure/repository"
	"github.com/dialerops/callgate-backend/internal/infrastructure/telemetry"
	"github.com/dialerops/callgate-backend/internal/service/gate"
	"github.com/dialerops/callgate-backend/internal/service/ledger"
	"github.com/dialerops/callgate-backend/internal/service/policy"
	"github.com/dialerops/callgate-backend/internal/service/reporting"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("engine exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	provider, err := telemetry.Initialize(ctx, &telemetry.Config{
		ServiceName:    "callgate",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.MetricsEnabled,
		SamplingRate:   cfg.Telemetry.TraceSampling,
	})
	if err != nil {
		return err
	}
	defer provider.Shutdown(context.Background())

	db, err := repository.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := cache.NewClient(cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	accounts := repository.NewAccountRepository(db)
	calls := repository.NewCallRepository(db)
	dncList := repository.NewDNCRepository(db)
	consents := repository.NewConsentRepository(db)
	rules := repository.NewRuleRepository(db)
	violations := repository.NewViolationRepository(db)
	reports := repository.NewReportingRepository(db)

	activity := cache.NewActivityLog(redisClient, logger, 0)
	dncCache := cache.NewDNCCache(dncList, redisClient, logger, 0)

	bus := events.NewBus(logger)
	defer bus.Close()
	observeBus(ctx, bus)

	usage := ledger.New(accounts, bus, logger, ledger.Config{
		ReservationGrace: cfg.Ledger.ReservationGrace,
		SweepInterval:    cfg.Ledger.SweepInterval,
	})
	go usage.RunSweeper(ctx)

	evaluator := policy.NewEvaluator(rules, dncCache, consents, activity, logger)
	recorder := gate.NewViolationRecorder(violations, bus, logger)
	callGate := gate.New(accounts, calls, evaluator, usage, recorder, activity, logger, gate.Config{
		LockTimeout:       cfg.Gate.LockTimeout,
		AttemptsPerSecond: cfg.Gate.AttemptsPerSecond,
		AttemptBurst:      cfg.Gate.AttemptBurst,
	})

	pipeline := reporting.NewPipeline(
		reporting.NewMetricsAggregator(calls),
		reporting.NewKPITracker(reports, logger),
		reporting.NewInsightGenerator(),
		reporting.NewComplianceReporter(calls, violations),
		reports,
		reports,
		logger,
		cfg.Reporting.Window,
	)
	go pipeline.RunPeriodic(ctx, cfg.Reporting.Interval, accounts.ListActiveIDs)

	health := rest.NewHealthHandler(logger)
	health.Register("postgres", db.PingContext)
	health.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})

	handler := rest.NewHandler(callGate, logger)
	feed := websocket.NewFeed(bus, logger)
	server := rest.NewServer(cfg.Server, handler, health, feed, logger)

	logger.Info("call gate starting",
		zap.String("environment", cfg.Environment),
		zap.String("version", cfg.Version),
	)
	return server.Run(ctx)
}

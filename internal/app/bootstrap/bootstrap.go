package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	legislativeworkflow "assembly/contexts/legislature/legislative-workflow"
	workflowmetrics "assembly/contexts/legislature/legislative-workflow/adapters/metrics"
	postgresadapter "assembly/contexts/legislature/legislative-workflow/adapters/postgres"
	"assembly/contexts/legislature/legislative-workflow/domain/entities"
	"assembly/contexts/legislature/legislative-workflow/ports"
	"assembly/internal/platform/config"
	"assembly/internal/platform/db"
	"assembly/internal/platform/httpserver"
	"assembly/internal/platform/messaging"
	"assembly/internal/platform/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server  *httpserver.Server
	runtime *runtime
}

type WorkerApp struct {
	runtime *runtime
}

// runtime is what both processes share: the store, the bus and the
// workflow module built on top of them.
type runtime struct {
	cfg             config.Config
	database        *db.Database
	bus             *messaging.Bus
	module          legislativeworkflow.Module
	registry        *prometheus.Registry
	shutdownTracing func(context.Context) error
	logger          *slog.Logger
}

func BuildAPI(ctx context.Context, cfg config.Config, logger *slog.Logger) (*APIApp, error) {
	rt, err := buildRuntime(ctx, cfg, logger, "api")
	if err != nil {
		return nil, err
	}
	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		gatherer = rt.registry
	}
	return &APIApp{
		server:  httpserver.New(rt.module, gatherer, rt.logger, normalizeAddr(cfg.HTTPPort)),
		runtime: rt,
	}, nil
}

// BuildWorker needs a store shared with the api process, so the memory
// driver is refused.
func BuildWorker(ctx context.Context, cfg config.Config, logger *slog.Logger) (*WorkerApp, error) {
	if cfg.StoreDriver == config.StoreMemory {
		return nil, errors.New("worker requires the sqlite or postgres store driver")
	}
	rt, err := buildRuntime(ctx, cfg, logger, "worker")
	if err != nil {
		return nil, err
	}
	return &WorkerApp{runtime: rt}, nil
}

// Migrate creates the schema and seeds the member roster.
func Migrate(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StoreDriver == config.StoreMemory {
		logger.Info("memory store needs no migration",
			"event", "bootstrap_migrate_skipped",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return nil
	}
	members, err := loadMembers(cfg.MembersFile)
	if err != nil {
		return err
	}
	database, err := connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	repo := postgresadapter.NewRepository(database.DB, logger)
	if err := prepareRepository(ctx, repo, members); err != nil {
		return err
	}
	logger.Info("schema migrated",
		"event", "bootstrap_migrate_completed",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"driver", database.Driver,
		"member_count", len(members),
	)
	return nil
}

func buildRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger, process string) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("service", cfg.ServiceName, "process", process)

	shutdownTracing, err := tracing.Setup(ctx, tracing.Options{
		Enabled:     cfg.TracingEnabled,
		Stdout:      cfg.TracingStdout,
		ServiceName: cfg.ServiceName,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	var (
		metrics  ports.Metrics
		recorder *workflowmetrics.Prometheus
	)
	if cfg.MetricsEnabled {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		recorder = workflowmetrics.NewPrometheus(registry)
		metrics = recorder
	}

	bus, err := messaging.NewBus(cfg.Brokers, logger)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	members, err := loadMembers(cfg.MembersFile)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}

	rt := &runtime{
		cfg:             cfg,
		bus:             bus,
		registry:        registry,
		shutdownTracing: shutdownTracing,
		logger:          logger,
	}

	if cfg.StoreDriver == config.StoreMemory {
		rt.module = legislativeworkflow.NewInMemoryModule(members, legislativeworkflow.Dependencies{
			Publisher:          bus,
			Subscriber:         bus,
			Metrics:            metrics,
			IdempotencyTTL:     cfg.IdempotencyTTL,
			DedupTTL:           cfg.DedupTTL,
			OutboxBatchSize:    cfg.OutboxBatchSize,
			DispatcherDisabled: !cfg.EnableNotificationDispatcher,
			Logger:             logger,
		})
		return rt, nil
	}

	database, err := connect(cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, err
	}
	repo := postgresadapter.NewRepository(database.DB, logger)
	if err := prepareRepository(ctx, repo, members); err != nil {
		_ = database.Close()
		_ = shutdownTracing(ctx)
		return nil, err
	}
	if recorder != nil {
		if err := restoreSessionGauge(ctx, repo, recorder); err != nil {
			_ = database.Close()
			_ = shutdownTracing(ctx)
			return nil, err
		}
	}
	rt.database = database
	rt.module = legislativeworkflow.NewModule(legislativeworkflow.Dependencies{
		Repository:         repo,
		UnitOfWork:         repo,
		Members:            repo,
		Notifications:      repo,
		Outbox:             repo,
		Dedup:              repo,
		Publisher:          bus,
		Subscriber:         bus,
		Clock:              postgresadapter.SystemClock{},
		IDGen:              postgresadapter.UUIDGenerator{},
		Metrics:            metrics,
		IdempotencyTTL:     cfg.IdempotencyTTL,
		DedupTTL:           cfg.DedupTTL,
		OutboxBatchSize:    cfg.OutboxBatchSize,
		DispatcherDisabled: !cfg.EnableNotificationDispatcher,
		Logger:             logger,
	})
	logger.Info("workflow store ready",
		"event", "bootstrap_store_ready",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"driver", database.Driver,
		"member_count", len(members),
	)
	return rt, nil
}

func connect(cfg config.Config) (*db.Database, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		return db.ConnectPostgres(cfg.PostgresDSN)
	case config.StoreSQLite:
		return db.ConnectSQLite(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("store driver %q has no database", cfg.StoreDriver)
	}
}

func prepareRepository(ctx context.Context, repo *postgresadapter.Repository, members []entities.Member) error {
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	for _, member := range members {
		if err := repo.UpsertMember(ctx, member); err != nil {
			return err
		}
	}
	return nil
}

// restoreSessionGauge carries an open vote across a restart into the
// plenary_session_active gauge.
func restoreSessionGauge(ctx context.Context, sessions ports.Repository, recorder *workflowmetrics.Prometheus) error {
	_, active, err := sessions.GetActiveSession(ctx)
	if err != nil {
		return err
	}
	recorder.SessionRestored(active)
	return nil
}

func loadMembers(path string) ([]entities.Member, error) {
	seeds, err := config.LoadMembers(path)
	if err != nil {
		return nil, err
	}
	members := make([]entities.Member, 0, len(seeds))
	for _, seed := range seeds {
		role, ok := entities.ParseRole(seed.Role)
		if !ok {
			return nil, fmt.Errorf("member %q has unknown role %q", seed.MemberID, seed.Role)
		}
		if strings.TrimSpace(seed.MemberID) == "" {
			return nil, errors.New("member id is required")
		}
		active := true
		if seed.Active != nil {
			active = *seed.Active
		}
		members = append(members, entities.Member{
			MemberID:     strings.TrimSpace(seed.MemberID),
			DisplayName:  strings.TrimSpace(seed.DisplayName),
			Role:         role,
			Constituency: strings.TrimSpace(seed.Constituency),
			Active:       active,
		})
	}
	return members, nil
}

// Run serves HTTP until ctx is done. With the memory store nothing else can
// reach the outbox, so the relay and dispatcher run in this process too.
func (a *APIApp) Run(ctx context.Context) error {
	rt := a.runtime
	rt.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"driver", rt.cfg.StoreDriver,
	)
	if rt.cfg.StoreDriver != config.StoreMemory {
		return a.server.Run(ctx)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.server.Run(groupCtx)
	})
	group.Go(func() error {
		return rt.runWorkers(groupCtx)
	})
	return group.Wait()
}

func (a *APIApp) Close() error {
	return a.runtime.close()
}

func (w *WorkerApp) Run(ctx context.Context) error {
	w.runtime.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.runtime.cfg.OutboxPollInterval.String(),
	)
	return w.runtime.runWorkers(ctx)
}

func (w *WorkerApp) Close() error {
	return w.runtime.close()
}

func (rt *runtime) runWorkers(ctx context.Context) error {
	if err := rt.module.Dispatcher.Start(ctx); err != nil {
		return err
	}
	err := rt.module.Relay.Run(ctx, rt.cfg.OutboxPollInterval)
	rt.bus.Wait()
	return err
}

func (rt *runtime) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if rt.shutdownTracing != nil {
		if err := rt.shutdownTracing(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.database != nil {
		if err := rt.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}

package gamesense

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamesense/gamesense/pkg/activity"
	"github.com/gamesense/gamesense/pkg/consistency"
	"github.com/gamesense/gamesense/pkg/dlq"
	"github.com/gamesense/gamesense/pkg/logger"
	"github.com/gamesense/gamesense/pkg/metrics"
	"github.com/gamesense/gamesense/pkg/reconcile"
	"github.com/gamesense/gamesense/pkg/retry"
	"github.com/gamesense/gamesense/pkg/store"
	"github.com/gamesense/gamesense/pkg/store/badger"
	"github.com/gamesense/gamesense/pkg/store/memstore"
	"github.com/gamesense/gamesense/pkg/store/neo4j"
	"github.com/gamesense/gamesense/pkg/store/postgres"
	"github.com/gamesense/gamesense/pkg/store/surrealdb"
)

// App holds the stores and the services built on them.
type App struct {
	config *Config
	log    logger.Logger

	docs     store.DocumentStore
	graph    store.GraphStore
	queue    *dlq.Queue
	recorder *activity.Recorder

	coordinator *consistency.Coordinator
	checker     *reconcile.Checker
	replayer    *reconcile.Replayer
	metrics     *metrics.Metrics

	closers []func() error
}

// New connects every backend named in config. On error whatever was already
// opened is closed again.
func New(ctx context.Context, config *Config, log logger.Logger) (app *App, err error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	app = &App{config: config, log: log, metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = app.Close()
			app = nil
		}
	}()

	sink, err := app.openDocumentStore()
	if err != nil {
		return nil, err
	}
	if err := app.openGraphStore(ctx); err != nil {
		return nil, err
	}
	deadLetters, err := app.openDeadLetterStore()
	if err != nil {
		return nil, err
	}

	app.queue = dlq.New(deadLetters, dlq.WithLogger(log))
	app.recorder = activity.NewRecorder(sink, config.ActivitySource)
	app.coordinator = consistency.New(app.docs, app.graph, app.recorder, app.queue,
		retry.New(retry.WithLogger(log)),
		consistency.WithPolicy(config.Retry),
		consistency.WithGraphSyncTimeout(config.GraphSyncTimeout),
		consistency.WithLogger(log),
		consistency.WithObserver(app.metrics),
	)
	app.checker = reconcile.NewChecker(app.docs, app.graph, app.queue, reconcile.WithLogger(log))
	app.replayer = reconcile.NewReplayer(app.docs, app.graph, app.recorder, app.queue, log)
	return app, nil
}

// openDocumentStore sets a.docs and returns the activity sink that lives next to it.
func (a *App) openDocumentStore() (store.ActivitySink, error) {
	cfg := a.config.Document
	if cfg.Driver == DriverMemory {
		a.docs = memstore.NewDocumentStore()
		a.log.Info("using in-memory document store")
		return memstore.NewActivitySink(), nil
	}

	pg, err := postgres.Open(cfg.Driver, cfg.DSN,
		postgres.WithLogger(a.log),
		postgres.WithQueryLogging(cfg.QueryLogging),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	a.closers = append(a.closers, pg.Close)
	a.docs = pg
	a.log.Info("connected to document store", "driver", cfg.Driver)
	return pg, nil
}

func (a *App) openGraphStore(ctx context.Context) error {
	cfg := a.config.Graph
	switch cfg.Driver {
	case DriverSurreal:
		g, err := surrealdb.New(ctx, surrealdb.Config{
			URL:       cfg.URL,
			Namespace: cfg.Namespace,
			Database:  cfg.Database,
			Username:  cfg.Username,
			Password:  cfg.Password,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to SurrealDB: %w", err)
		}
		a.closers = append(a.closers, g.Close)
		a.graph = g
	case DriverNeo4j:
		g, err := neo4j.New(ctx, neo4j.Config{
			URI:      cfg.URL,
			Username: cfg.Username,
			Password: cfg.Password,
			Database: cfg.Database,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Neo4j: %w", err)
		}
		a.closers = append(a.closers, g.Close)
		a.graph = g
	default:
		a.graph = memstore.NewGraphStore()
	}
	a.log.Info("connected to graph store", "driver", cfg.Driver)
	return nil
}

func (a *App) openDeadLetterStore() (store.DeadLetterStore, error) {
	switch a.config.DLQ.Backend {
	case BackendBadger:
		b, err := badger.Open(a.config.DLQ.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger dlq: %w", err)
		}
		a.closers = append(a.closers, b.Close)
		return b, nil
	case BackendDocument:
		if s, ok := a.docs.(store.DeadLetterStore); ok {
			return s, nil
		}
		return nil, fmt.Errorf("%w: document store cannot hold dead letters", ErrInvalidConfig)
	default:
		return memstore.NewDeadLetterStore(), nil
	}
}

// Close closes every backend in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Migrate creates the document tables (dead letter and activity tables
// included) and the graph constraints.
func (a *App) Migrate(ctx context.Context) error {
	a.log.Info("running migrations")
	if err := a.docs.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate document store: %w", err)
	}
	if err := a.graph.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate graph store: %w", err)
	}
	a.log.Info("migrations completed")
	return nil
}

func (a *App) Coordinator() *consistency.Coordinator { return a.coordinator }
func (a *App) Checker() *reconcile.Checker           { return a.checker }
func (a *App) Replayer() *reconcile.Replayer         { return a.replayer }
func (a *App) Queue() *dlq.Queue                     { return a.queue }
func (a *App) Metrics() *metrics.Metrics             { return a.metrics }

// Monitor builds the background consistency monitor from the config.
func (a *App) Monitor() *reconcile.Monitor {
	return reconcile.NewMonitor(a.checker,
		reconcile.WithReplayer(a.replayer, a.config.Monitor.ReplayBatch),
		reconcile.WithReportObserver(a.metrics),
		reconcile.WithMonitorLogger(a.log),
	)
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	identityservice "smartid/internal/identity/service"
	identitystore "smartid/internal/identity/store"
	"smartid/internal/ledger"
	"smartid/internal/platform/config"
	platformmetrics "smartid/internal/platform/metrics"
	"smartid/internal/platform/postgres"
	platformredis "smartid/internal/platform/redis"
	registryservice "smartid/internal/registry/service"
	registrystore "smartid/internal/registry/store"
	httptransport "smartid/internal/transport/http"
	"smartid/pkg/platform/audit/outbox"
	"smartid/pkg/platform/audit/publisher"
	auditmemory "smartid/pkg/platform/audit/store/memory"
	auditpostgres "smartid/pkg/platform/audit/store/postgres"
)

type clock interface {
	identityservice.Clock
	httptransport.Clock
}

// infra is everything that depends on the selected backend.
type infra struct {
	identities identityservice.Store
	registries registryservice.Store
	clock      clock
	tx         identityservice.StoreTx
	registryTx registryservice.StoreTx
	auditStore publisher.Store
	relay      *outbox.Worker
	checks     map[string]httptransport.Check
	closers    []func()
}

func (i *infra) Close() {
	for j := len(i.closers) - 1; j >= 0; j-- {
		i.closers[j]()
	}
}

func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger, metrics *platformmetrics.Metrics) (*infra, error) {
	in := &infra{checks: map[string]httptransport.Check{}}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		in.closers = append(in.closers, func() { _ = redisClient.Close() })
		in.checks["redis"] = redisClient.Health
		in.clock = ledger.NewRedisClock(redisClient.Client)
	} else {
		in.clock = ledger.NewMemoryClock(1)
	}

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		if err := in.openPostgres(ctx, cfg, log, metrics); err != nil {
			in.Close()
			return nil, err
		}
	case config.BackendRedis:
		in.identities = identitystore.NewRedis(redisClient.Client)
		in.registries = registrystore.NewRedis(redisClient.Client)
		in.auditStore = auditmemory.NewInMemoryStore()
	default:
		in.identities = identitystore.NewInMemory()
		in.registries = registrystore.NewInMemory()
		in.auditStore = auditmemory.NewInMemoryStore()
	}
	return in, nil
}

func (in *infra) openPostgres(ctx context.Context, cfg config.Config, log *slog.Logger, metrics *platformmetrics.Metrics) error {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	in.closers = append(in.closers, func() { _ = db.Close() })
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	pool, err := postgres.OpenPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	in.closers = append(in.closers, pool.Close)

	audits := auditpostgres.New(db)
	in.identities = identitystore.NewPostgres(db)
	in.registries = registrystore.NewPostgres(pool)
	in.tx = postgres.NewTxRunner(db)
	in.registryTx = postgres.NewPgxTxRunner(pool)
	in.auditStore = audits
	in.checks["postgres"] = pingChecks(db, pool)

	if len(cfg.Kafka.Brokers) == 0 {
		return nil
	}
	producer, err := outbox.NewKafkaProducer(cfg.Kafka.Brokers)
	if err != nil {
		return err
	}
	in.closers = append(in.closers, producer.Close)
	if err := producer.EnsureTopic(ctx, cfg.Kafka.AuditTopic, 1, 1); err != nil {
		return fmt.Errorf("prepare audit topic: %w", err)
	}
	in.checks["kafka"] = producer.Health
	in.relay = outbox.NewWorker(audits, producer, cfg.Kafka.AuditTopic,
		outbox.WithInterval(cfg.Kafka.RelayInterval),
		outbox.WithBatchSize(cfg.Kafka.RelayBatchSize),
		outbox.WithLogger(log),
		outbox.WithMetrics(outbox.NewMetrics(metrics.Registry)),
	)
	return nil
}

func pingChecks(db *sql.DB, pool *pgxpool.Pool) httptransport.Check {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		return pool.Ping(ctx)
	}
}

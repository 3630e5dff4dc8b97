package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"smartid/internal/auth/token"
	identityhandler "smartid/internal/identity/handler"
	identitymetrics "smartid/internal/identity/metrics"
	"smartid/internal/identity/models"
	identityservice "smartid/internal/identity/service"
	"smartid/internal/platform/config"
	"smartid/internal/platform/httpserver"
	"smartid/internal/platform/logger"
	platformmetrics "smartid/internal/platform/metrics"
	registryhandler "smartid/internal/registry/handler"
	registrymetrics "smartid/internal/registry/metrics"
	registryservice "smartid/internal/registry/service"
	httptransport "smartid/internal/transport/http"
	"smartid/pkg/domain"
	"smartid/pkg/platform/audit/publisher"
)

func main() {
	cfg, err := config.FromEnv()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("smartid stopped with error", "error", err)
		os.Exit(1)
	}
}

// run wires dependencies and blocks until ctx is cancelled or a component
// fails.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.UsesDefaultSigningKey() {
		log.Warn("using the development JWT signing key; set JWT_SIGNING_KEY in production")
	}

	metrics := platformmetrics.New()
	infra, err := openInfra(ctx, cfg, log, metrics)
	if err != nil {
		return err
	}
	defer infra.Close()

	auditPublisher := publisher.NewPublisher(infra.auditStore, publisher.WithLogger(log))
	defer auditPublisher.Close()

	identities := identityservice.New(infra.identities, infra.clock,
		identityservice.WithLogger(log),
		identityservice.WithAuditPublisher(auditPublisher),
		identityservice.WithMetrics(identitymetrics.New(metrics.Registry)),
		identityservice.WithTx(infra.tx),
		identityservice.WithParams(models.Params{
			MinTransferInterval: cfg.Identity.MinTransferInterval,
			DisposePolicy:       models.DisposePolicy(cfg.Identity.DisposePolicy),
		}),
		identityservice.WithBlockPerTx(cfg.Identity.BlockPerTx),
	)
	registries, err := registryservice.New(infra.registries, infra.clock,
		registryservice.WithLogger(log),
		registryservice.WithAuditPublisher(auditPublisher),
		registryservice.WithMetrics(registrymetrics.New(metrics.Registry)),
		registryservice.WithTx(infra.registryTx),
	)
	if err != nil {
		return err
	}

	tokens := token.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Verifier: tokens,
		Metrics:  metrics,
		Ledger: httptransport.NewLedgerHandler(infra.clock, log, func(h domain.Height) {
			metrics.LedgerHeight.Set(float64(h))
		}),
		Health:     httptransport.NewHealthHandler(infra.checks),
		AdminToken: cfg.Auth.AdminToken,
		Modules: []httptransport.Routes{
			identityhandler.New(identities, log),
			registryhandler.New(registries, log),
		},
	})
	srv := httpserver.New(cfg.Server, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting smartid",
			"addr", cfg.Server.Addr,
			"backend", cfg.Storage.Backend,
			"block_per_tx", cfg.Identity.BlockPerTx,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if infra.relay != nil {
		g.Go(func() error {
			log.Info("starting audit outbox relay", "topic", cfg.Kafka.AuditTopic)
			return infra.relay.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

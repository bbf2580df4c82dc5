// main wires the registry's dependencies and keeps the server lifecycle
// small. Business logic lives in the internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	accesshandler "medledger/internal/access/handler"
	accessservice "medledger/internal/access/service"
	"medledger/internal/platform/config"
	"medledger/internal/platform/httpserver"
	"medledger/internal/platform/logger"
	"medledger/internal/platform/metrics"
	"medledger/internal/platform/postgres"
	platformredis "medledger/internal/platform/redis"
	"medledger/internal/platform/token"
	recordhandler "medledger/internal/record/handler"
	recordservice "medledger/internal/record/service"
	httptransport "medledger/internal/transport/http"
	audithandler "medledger/pkg/platform/audit/handler"
	"medledger/pkg/platform/audit/publisher"
	"medledger/pkg/platform/audit/sink/kafka"
	"medledger/pkg/platform/audit/sink/redisstream"
	"medledger/pkg/platform/tx"

	"medledger/internal/access"
	"medledger/internal/record"
	auditmemory "medledger/pkg/platform/audit/store/memory"
	auditpg "medledger/pkg/platform/audit/store/postgres"

	audit "medledger/pkg/platform/audit"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Storage backends. An empty Postgres URL selects the in-memory stores;
	// mutations are then atomic without a transaction runner.
	var (
		db          *sql.DB
		recordStore record.Store
		grantStore  access.Store
		auditStore  audit.Store
		runner      tx.Runner = tx.Passthrough{}
	)
	if cfg.PostgresURL != "" {
		var err error
		db, err = postgres.NewDB(cfg.PostgresURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			return
		}
		defer db.Close()
		recordStore = record.NewPostgres(db)
		grantStore = access.NewPostgres(db)
		auditStore = auditpg.New(db)
		runner = &tx.SQLRunner{DB: db}
	} else {
		recordStore = record.NewInMemoryStore()
		grantStore = access.NewInMemoryStore()
		auditStore = auditmemory.NewInMemoryStore()
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		return
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Audit pipeline: authoritative store plus optional external sinks.
	pubOpts := []publisher.Option{
		publisher.WithLogger(log),
		publisher.WithAsyncFanout(256),
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := kafka.New(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			return
		}
		pubOpts = append(pubOpts, publisher.WithSink(kafkaSink))
	}
	if redisClient != nil {
		pubOpts = append(pubOpts, publisher.WithSink(redisstream.New(redisClient.Client, "")))
	}
	pub := publisher.NewPublisher(auditStore, pubOpts...)
	defer pub.Close()

	// One mutual-exclusion domain over record and grant state: a single
	// writer at a time, readers against last-committed state.
	var commitLock sync.Mutex
	ledger := accessservice.NewService(grantStore, pub, runner, m, &commitLock)
	records := recordservice.NewService(recordStore, ledger, pub, runner, m, &commitLock)

	validator := token.NewValidator(cfg.JWTSigningKey)
	router := httptransport.NewRouter(log, m, validator,
		func(ctx context.Context) error {
			if db != nil {
				if err := db.PingContext(ctx); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(ctx)
			}
			return nil
		},
		recordhandler.New(records, log),
		accesshandler.New(ledger, log),
		audithandler.New(pub, log),
	)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting medledger", "addr", cfg.Addr)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
	}
}

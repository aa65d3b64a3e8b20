package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atmledger/internal/config"
	handler "atmledger/internal/handler/http"
	"atmledger/internal/logger"
	"atmledger/internal/port"
	"atmledger/internal/repository/memory"
	"atmledger/internal/repository/migration"
	"atmledger/internal/repository/postgresql"
	"atmledger/internal/service"
	"atmledger/internal/session"
	"atmledger/pkg/metrics"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

type storage struct {
	uow       port.UnitOfWork
	ledger    port.LedgerRepository
	cards     port.CardInfoRepository
	ops       port.OperationRepository
	operators port.OperatorRepository
	close     func() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logger.LoggerLevel)
	ctx := logger.WithContext(context.Background(), log)

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to open storage")
	}
	defer store.close()

	rate, _ := cfg.ForeignRate()

	var recorder port.MetricsRecorder
	var opts []handler.Option
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		recorder = collector
		opts = append(opts, handler.WithMetrics(collector.Handler()))
	}

	sessions := session.NewStore(session.Config{
		IdleTimeout: cfg.Session.IdleTimeout,
		WarnAfter:   cfg.Session.WarnAfter,
		FilterTTL:   cfg.Session.FilterTTL,
	})
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sessions.Run(sweepCtx, 30*time.Second)

	h := handler.NewHandler(handler.Services{
		Withdrawals: service.NewWithdrawalService(store.uow, store.ledger, service.NewCommissionPolicy(rate), recorder),
		Cards:       service.NewCardInfoService(store.cards),
		Operations:  service.NewOperationService(store.ops),
		Auth:        service.NewAuthService(store.operators),
	}, sessions, log, opts...)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage.Driver).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(log, srv, cfg.Server.ShutdownTimeout)
	log.Info().Msg("shutdown complete")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	var seed *migration.Dataset
	if cfg.Storage.SeedDemo || cfg.Storage.Driver == "memory" {
		d, err := migration.DemoDataset(cfg.Storage.AdminUsername, cfg.Storage.AdminPassword)
		if err != nil {
			return nil, err
		}
		seed = &d
	}

	if cfg.Storage.Driver == "memory" {
		s := memory.NewStore()
		if err := s.Load(*seed); err != nil {
			return nil, err
		}
		log.Warn().Msg("using in-memory storage, data is lost on exit")
		return &storage{uow: s, ledger: s, cards: s, ops: s, operators: s, close: func() error { return nil }}, nil
	}

	db, err := sql.Open("postgres", cfg.DB.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConnection)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConnection)
	db.SetConnMaxLifetime(cfg.DB.ConnectionLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migration.RunMigrations(ctx, db, log); err != nil {
		db.Close()
		return nil, err
	}
	if seed != nil {
		if err := migration.Seed(ctx, db, *seed, log); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &storage{
		uow:       postgresql.NewTxManager(db),
		ledger:    postgresql.NewLedgerRepository(db),
		cards:     postgresql.NewCardInfoRepository(db),
		ops:       postgresql.NewOperationRepository(db),
		operators: postgresql.NewOperatorRepository(db),
		close:     db.Close,
	}, nil
}

func waitForShutdown(log zerolog.Logger, srv *http.Server, timeout time.Duration) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}
}

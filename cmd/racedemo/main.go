// Command racedemo fires concurrent withdrawals at one card and compares the
// resulting balance with what the recorded ledger rows add up to. In
// unserialized mode the two diverge.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"atmledger/internal/domain"
	"atmledger/internal/logger"
	"atmledger/internal/port"
	"atmledger/internal/repository/memory"
	"atmledger/internal/repository/migration"
	"atmledger/internal/repository/postgresql"
	"atmledger/internal/service"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type options struct {
	Mode    domain.Mode
	Workers int
	Amount  decimal.Decimal
	ATMID   int64
	CardID  int64
}

type backend struct {
	uow    port.UnitOfWork
	ledger port.LedgerRepository
	cards  port.CardInfoRepository
}

type report struct {
	Start     decimal.Decimal
	Succeeded int
	Rejected  int
	Debited   decimal.Decimal
	Expected  decimal.Decimal
	Actual    decimal.Decimal
}

func (r report) LostUpdate() bool { return !r.Expected.Equal(r.Actual) }

func main() {
	var (
		mode    = flag.String("mode", "unserialized", "serialized or unserialized")
		workers = flag.Int("workers", 10, "concurrent withdrawals")
		amount  = flag.String("amount", "10.00", "amount per withdrawal")
		atmID   = flag.Int64("atm", 2, "atm id")
		cardID  = flag.Int64("card", 1, "card id")
		dsn     = flag.String("dsn", "", "PostgreSQL DSN; the in-memory store is used when empty")
		latency = flag.Duration("latency", 20*time.Millisecond, "simulated read latency for the in-memory store")
		level   = flag.String("log", "warn", "log level")
	)
	flag.Parse()

	log := logger.New(*level)
	ctx := logger.WithContext(context.Background(), log)

	amt, err := decimal.NewFromString(*amount)
	if err != nil {
		log.Fatal().Err(err).Msg("bad -amount")
	}

	b, closeFn, err := openBackend(ctx, *dsn, *latency, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer closeFn()

	rep, err := run(ctx, b, options{Mode: domain.Mode(*mode), Workers: *workers, Amount: amt, ATMID: *atmID, CardID: *cardID})
	if err != nil {
		log.Fatal().Err(err).Msg("race demo failed")
	}

	fmt.Printf("mode:        %s\n", *mode)
	fmt.Printf("start:       %s\n", rep.Start.StringFixed(2))
	fmt.Printf("succeeded:   %d, rejected: %d\n", rep.Succeeded, rep.Rejected)
	fmt.Printf("debited:     %s\n", rep.Debited.StringFixed(2))
	fmt.Printf("expected:    %s\n", rep.Expected.StringFixed(2))
	fmt.Printf("actual:      %s\n", rep.Actual.StringFixed(2))
	if rep.LostUpdate() {
		fmt.Printf("LOST UPDATE: %s was never debited\n", rep.Actual.Sub(rep.Expected).StringFixed(2))
		os.Exit(2)
	}
}

func openBackend(ctx context.Context, dsn string, latency time.Duration, log zerolog.Logger) (backend, func() error, error) {
	data, err := migration.DemoDataset("admin", "admin")
	if err != nil {
		return backend{}, nil, err
	}

	if dsn == "" {
		s := memory.NewStore(memory.WithLatency(latency))
		if err := s.Load(data); err != nil {
			return backend{}, nil, err
		}
		return backend{uow: s, ledger: s, cards: s}, func() error { return nil }, nil
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return backend{}, nil, err
	}
	if err := migration.RunMigrations(ctx, db, log); err != nil {
		db.Close()
		return backend{}, nil, err
	}
	if err := migration.Seed(ctx, db, data, log); err != nil {
		db.Close()
		return backend{}, nil, err
	}
	return backend{
		uow:    postgresql.NewTxManager(db),
		ledger: postgresql.NewLedgerRepository(db),
		cards:  postgresql.NewCardInfoRepository(db),
	}, db.Close, nil
}

func run(ctx context.Context, b backend, opts options) (report, error) {
	if opts.Workers <= 0 {
		return report{}, fmt.Errorf("%w: workers must be positive", domain.ErrInvalidRequest)
	}
	before, err := b.cards.CardInfo(ctx, opts.CardID)
	if err != nil {
		return report{}, err
	}

	svc := service.NewWithdrawalService(b.uow, b.ledger, service.NewCommissionPolicy(service.DefaultForeignRate), nil)
	caller := domain.Identity{OperatorID: 1, Username: "racedemo"}

	var (
		mu  sync.Mutex
		rep = report{Start: before.Balance, Debited: decimal.Zero}
		wg  sync.WaitGroup
	)
	start := make(chan struct{})
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := svc.Execute(ctx, caller, &domain.WithdrawalReq{
				ATMID: opts.ATMID, CardID: opts.CardID, Amount: opts.Amount, Mode: opts.Mode,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				rep.Succeeded++
				rep.Debited = rep.Debited.Add(res.Total)
			case errors.Is(err, domain.ErrInsufficientFunds):
				rep.Rejected++
			default:
				logger.FromContext(ctx).Error().Err(err).Msg("withdrawal failed")
				rep.Rejected++
			}
		}()
	}
	close(start)
	wg.Wait()

	after, err := b.cards.CardInfo(ctx, opts.CardID)
	if err != nil {
		return report{}, err
	}
	rep.Expected = rep.Start.Sub(rep.Debited)
	rep.Actual = after.Balance
	return rep, nil
}

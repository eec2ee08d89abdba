// Command binstatement replays a Binance account history into a valued statement.
// It synchronizes balances, transfers and fills into a local SQLite file, values
// the portfolio in every configured unit of account and journals the resulting
// events, which the optional dashboard streams over SSE.
//
// Usage:
//
//	binstatement --config config.yaml
//	binstatement --units USDT,BTC --startmonth 1 --startyear 2021
//	binstatement --setup
//
// Required environment variables when synchronizing:
//
//	BINANCE_API_KEY, BINANCE_API_SECRET
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/binstatement/config"
	"github.com/vadiminshakov/binstatement/dashboard"
	"github.com/vadiminshakov/binstatement/internal/aggregator"
	"github.com/vadiminshakov/binstatement/internal/clients"
	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/logging"
	"github.com/vadiminshakov/binstatement/internal/pricecache"
	"github.com/vadiminshakov/binstatement/internal/report"
	"github.com/vadiminshakov/binstatement/internal/services/accountsync"
	"github.com/vadiminshakov/binstatement/internal/services/candles"
	"github.com/vadiminshakov/binstatement/internal/setup"
	"github.com/vadiminshakov/binstatement/internal/statement"
	"github.com/vadiminshakov/binstatement/internal/storage/journal"
	"github.com/vadiminshakov/binstatement/internal/storage/pricestore"
	"github.com/vadiminshakov/binstatement/internal/storage/records"
)

func main() {
	cfg, err := config.Get(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Setup {
		if err := setup.RunTUI(setup.DefaultPath); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("statement failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config.Config, l *zap.Logger) error {
	apiKey := os.Getenv("BINANCE_API_KEY")
	apiSecret := os.Getenv("BINANCE_API_SECRET")
	if cfg.Sync && (apiKey == "" || apiSecret == "") {
		return fmt.Errorf("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set to synchronize")
	}
	client := clients.NewBinanceClient(apiKey, apiSecret)
	pacer := clients.NewPacer(cfg.Speed)

	recordStore, err := records.Open(cfg.DataFile)
	if err != nil {
		return err
	}
	defer recordStore.Close()

	priceStore, err := pricestore.Open(cfg.CacheFile)
	if err != nil {
		return err
	}
	defer priceStore.Close()

	events, err := journal.Open(cfg.JournalDir)
	if err != nil {
		return err
	}
	defer events.Close()

	precision := domain.NewPrecision()
	if cfg.Sync {
		started := time.Now()
		precision, err = accountsync.New(client, recordStore, pacer, l).Run(ctx, cfg.SyncFills)
		if err != nil {
			return err
		}
		l.Info("account synchronized", zap.Duration("took", time.Since(started)))
	}

	cache := pricecache.New(priceStore, candles.NewBinanceSource(client, pacer, l),
		pricecache.WithReferenceAsset(cfg.ReferenceAsset),
		pricecache.WithLogger(l))

	aggOpts := []aggregator.Option{
		aggregator.WithValuationInterval(cfg.ValuationInterval),
		aggregator.WithCommissionAsset(cfg.CommissionAsset),
	}
	if cfg.StartMonth > 0 {
		aggOpts = append(aggOpts, aggregator.WithStartDate(time.Month(cfg.StartMonth), cfg.StartYear))
	}

	reporter := report.New(l, precision)
	runner := statement.NewRunner(recordStore, cache, events, l, aggOpts...)
	runner.AddConsumer(reporter)

	g, ctx := errgroup.WithContext(ctx)
	if cfg.DashboardAddr != "" {
		srv := dashboard.NewServer(cfg.DashboardAddr, events, l)
		g.Go(func() error {
			l.Info("serving statement stream", zap.String("addr", cfg.DashboardAddr), zap.String("run_id", events.RunID()))
			if len(cfg.DashboardDomains) > 0 {
				return srv.StartWithAutoTLS(ctx, cfg.DashboardDomains, "")
			}
			return srv.Start(ctx)
		})
	}

	g.Go(func() error {
		if err := runner.Run(ctx, cfg.UnitsOfAccount); err != nil {
			return err
		}
		for _, unit := range cfg.UnitsOfAccount {
			fmt.Println(reporter.Summary(unit))
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

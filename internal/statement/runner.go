// Package statement runs the replay pipeline for every unit of account.
package statement

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/binstatement/internal/aggregator"
	"github.com/vadiminshakov/binstatement/internal/combiner"
	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/merger"
	"github.com/vadiminshakov/binstatement/internal/metrics"
)

// RecordSource opens ordered record streams. Each call starts fresh iterators.
type RecordSource interface {
	Streams(ctx context.Context) merger.Streams
}

// Journal persists delivered events.
type Journal interface {
	Append(unit string, ev domain.Event) (uint64, error)
}

// Consumer receives every delivered event.
type Consumer interface {
	Consume(unit string, ev domain.Event)
}

// Runner replays the stored records once per unit of account, in parallel.
type Runner struct {
	records   RecordSource
	prices    aggregator.PriceResolver
	journal   Journal
	consumers []Consumer
	aggOpts   []aggregator.Option
	l         *zap.Logger
}

// NewRunner creates a runner. aggOpts apply to the aggregator of every unit.
func NewRunner(records RecordSource, prices aggregator.PriceResolver, journal Journal, l *zap.Logger, aggOpts ...aggregator.Option) *Runner {
	return &Runner{
		records: records,
		prices:  prices,
		journal: journal,
		aggOpts: append([]aggregator.Option{aggregator.WithLogger(l)}, aggOpts...),
		l:       l,
	}
}

// AddConsumer registers c to receive every delivered event.
func (r *Runner) AddConsumer(c Consumer) {
	r.consumers = append(r.consumers, c)
}

// Run replays the statement in each unit of account. The first failing unit
// cancels the others.
func (r *Runner) Run(ctx context.Context, units []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, unit := range units {
		g.Go(func() error {
			return r.runUnit(ctx, unit)
		})
	}
	return g.Wait()
}

func (r *Runner) runUnit(ctx context.Context, unit string) error {
	agg := aggregator.New(r.prices, unit, r.aggOpts...)
	unit = agg.UnitOfAccount()
	r.l.Info("replaying statement", zap.String("unit", unit))

	events := combiner.Combine(agg.Events(ctx, merger.Merge(r.records.Streams(ctx))))

	delivered := 0
	for ev, err := range events {
		if err != nil {
			return errors.Wrapf(err, "replay statement in %s", unit)
		}
		if r.journal != nil {
			if _, err := r.journal.Append(unit, ev); err != nil {
				return errors.Wrapf(err, "journal %s event", ev.Type)
			}
		}
		for _, c := range r.consumers {
			c.Consume(unit, ev)
		}
		metrics.EventsEmitted.WithLabelValues(unit, ev.Type.String()).Inc()
		delivered++
	}

	r.l.Info("statement replayed", zap.String("unit", unit), zap.Int("events", delivered))
	return nil
}

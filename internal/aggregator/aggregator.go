// Package aggregator replays merged account records against a ledger and
// emits valued statement events, including periodic snapshots.
package aggregator

import (
	"context"
	"iter"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/ledger"
)

const (
	// DefaultValuationInterval maximum distance between two valued events while positions are held.
	DefaultValuationInterval = 360 * time.Minute
	// DefaultCommissionAsset asset whose separately held balance may pay commissions.
	DefaultCommissionAsset = "BNB"

	// readinessDelay records newer than now minus this delay are deferred to a later run.
	readinessDelay = int64(time.Minute / time.Millisecond)
)

const (
	sourceDeposited = "Deposited"
	sourceCredited  = "Credited externally"
)

var errStopped = errors.New("consumer stopped")

// PriceResolver resolves the price of base in quote at a UTC epoch millisecond timestamp.
type PriceResolver interface {
	GetPrice(ctx context.Context, ts int64, base, quote string) (domain.Price, error)
}

// Aggregator event aggregator for one unit of account.
type Aggregator struct {
	prices          PriceResolver
	unit            string
	interval        int64
	cutoff          int64
	commissionAsset string
	now             func() time.Time
	l               *zap.Logger
}

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithValuationInterval sets the maximum gap between valued events.
func WithValuationInterval(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.interval = d.Milliseconds()
		}
	}
}

// WithStartDate suppresses emission of events before the first day of month/year (UTC).
// State is still built from the full history.
func WithStartDate(month time.Month, year int) Option {
	return func(a *Aggregator) {
		a.cutoff = time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	}
}

// WithCommissionAsset sets the asset that may pay commissions from a separate holding.
func WithCommissionAsset(asset string) Option {
	return func(a *Aggregator) {
		a.commissionAsset = domain.NormalizeAsset(asset)
	}
}

// WithClock sets the clock used for the readiness gate and the final snapshot flush.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		a.l = l
	}
}

// New creates an aggregator valuing the portfolio in unitOfAccount.
func New(prices PriceResolver, unitOfAccount string, opts ...Option) *Aggregator {
	a := &Aggregator{
		prices:          prices,
		unit:            domain.NormalizeAsset(unitOfAccount),
		interval:        DefaultValuationInterval.Milliseconds(),
		commissionAsset: DefaultCommissionAsset,
		now:             time.Now,
		l:               zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// UnitOfAccount returns the asset the portfolio is valued in.
func (a *Aggregator) UnitOfAccount() string {
	return a.unit
}

// Events replays records, which must be merged in ascending timestamp order,
// and yields statement events in emission order. A fatal error is yielded once
// as the last element. Breaking out of the loop stops the replay after the
// current record.
func (a *Aggregator) Events(ctx context.Context, records iter.Seq2[domain.Record, error]) iter.Seq2[domain.Event, error] {
	return func(yield func(domain.Event, error) bool) {
		r := &replay{
			Aggregator: a,
			ctx:        ctx,
			ledger:     ledger.New(),
			yield:      yield,
		}
		if err := r.run(records); err != nil && !errors.Is(err, errStopped) {
			yield(domain.Event{}, err)
		}
	}
}

// replay state of one pass over the record stream.
type replay struct {
	*Aggregator
	ctx    context.Context
	ledger *ledger.Ledger
	yield  func(domain.Event, error) bool

	lastEventTimestamp int64
	started            bool
	emitted            int
	suppressed         int
}

func (r *replay) run(records iter.Seq2[domain.Record, error]) error {
	now := r.now().UnixMilli()
	deferred := 0

	for rec, err := range records {
		if err != nil {
			return errors.Wrap(err, "read records")
		}
		if err := r.ctx.Err(); err != nil {
			return err
		}

		ts := rec.EffectiveTimestamp()
		if ts+readinessDelay >= now {
			deferred++
			continue
		}

		if err := r.process(rec); err != nil {
			return err
		}
	}

	if err := r.emitSnapshotsUntil(now); err != nil {
		return err
	}

	r.l.Debug("replay finished",
		zap.String("unit", r.unit),
		zap.Int("emitted", r.emitted),
		zap.Int("suppressed", r.suppressed),
		zap.Int("deferred", deferred))
	return nil
}

func (r *replay) process(rec domain.Record) error {
	if err := r.emitSnapshotsUntil(rec.EffectiveTimestamp()); err != nil {
		return err
	}

	switch v := rec.(type) {
	case *domain.Fill:
		return r.fill(v)
	case *domain.Deposit:
		return r.deposit(v)
	case *domain.Withdrawal:
		return r.withdrawal(v)
	case *domain.BalanceCheckpoint:
		return r.checkpoint(v)
	}
	r.l.Warn("ignoring record of unknown kind", zap.Stringer("kind", rec.Kind()))
	return nil
}

func (r *replay) emitSnapshotsUntil(ts int64) error {
	if !r.started {
		return nil
	}
	for r.lastEventTimestamp+r.interval < ts {
		if err := r.emit(domain.Event{
			Timestamp: r.lastEventTimestamp + r.interval,
			Type:      domain.EventSnapshot,
		}); err != nil {
			return err
		}
	}
	return nil
}

// emit values the event and hands it to the consumer unless it falls before the start date.
func (r *replay) emit(ev domain.Event) error {
	r.lastEventTimestamp = ev.Timestamp
	r.started = true

	if ev.Timestamp < r.cutoff {
		r.suppressed++
		return nil
	}

	if err := r.value(&ev); err != nil {
		return err
	}
	r.emitted++
	if !r.yield(ev, nil) {
		return errStopped
	}
	return nil
}

// value fills the portfolio total and composition from positive balances.
func (r *replay) value(ev *domain.Event) error {
	total := decimal.Zero
	totalKnown := true
	composition := make(map[string]domain.Price)

	for _, b := range r.ledger.PositiveBalances() {
		price, err := r.price(ev.Timestamp, b.Asset)
		if err != nil {
			return err
		}
		switch price.State {
		case domain.PriceKnown:
			v := price.Mul(b.Amount)
			composition[b.Asset] = v
			total = total.Add(v.Value)
		case domain.PricePending:
			composition[b.Asset] = price
			totalKnown = false
		}
	}

	ev.Composition = composition
	if totalKnown {
		ev.TotalPortfolioValue = decimal.NewNullDecimal(total)
	}
	return nil
}

func (r *replay) price(ts int64, asset string) (domain.Price, error) {
	p, err := r.prices.GetPrice(r.ctx, ts, asset, r.unit)
	if err != nil {
		return domain.Price{}, errors.Wrapf(err, "price %s in %s at %d", asset, r.unit, ts)
	}
	return p, nil
}

// addLot appends a lot whose cost basis is basisQty of basisAsset valued at ts.
func (r *replay) addLot(asset string, qty decimal.Decimal, basisAsset string, basisQty decimal.Decimal, source string, ts int64) error {
	if !qty.IsPositive() {
		return nil
	}
	p, err := r.price(ts, basisAsset)
	if err != nil {
		return err
	}
	var costBasis decimal.NullDecimal
	if p.IsKnown() {
		costBasis = decimal.NewNullDecimal(p.Value.Mul(basisQty).Div(qty))
	}
	r.ledger.AddLot(asset, qty, costBasis, source, ts)
	return nil
}

// commissionFromProceeds reports whether the commission was taken from the
// traded amounts rather than from a separate commission asset holding.
func (r *replay) commissionFromProceeds(f *domain.Fill, base, quote, commissionAsset string) bool {
	return commissionAsset != r.commissionAsset ||
		(base == r.commissionAsset && f.IsBuyer) ||
		(quote == r.commissionAsset && !f.IsBuyer)
}

func (r *replay) fill(f *domain.Fill) error {
	ts := f.UTCTimestamp
	base := domain.NormalizeAsset(f.BaseAsset)
	quote := domain.NormalizeAsset(f.QuoteAsset)
	commissionAsset := domain.NormalizeAsset(f.CommissionAsset)

	r.ledger.AdjustBalance(commissionAsset, f.Commission.Neg())

	fromProceeds := r.commissionFromProceeds(f, base, quote, commissionAsset)
	var commissionLots []domain.LotSlice
	if !fromProceeds {
		commissionLots = r.ledger.MatchLots(commissionAsset, f.Commission)
	}

	notional := f.Price.Mul(f.Quantity)
	ev := domain.Event{Timestamp: ts}
	trade := &domain.TradeDetails{
		FillID:                        f.ID,
		BaseAsset:                     base,
		QuoteAsset:                    quote,
		Market:                        f.Symbol,
		OrderID:                       f.OrderID,
		Price:                         f.Price,
		Quantity:                      f.Quantity,
		Commission:                    f.Commission,
		CommissionAsset:               commissionAsset,
		CommissionDebitedFromProceeds: fromProceeds,
		IsMaker:                       f.IsMaker,
	}

	// received asset carries its own lot; commission taken from it shrinks that lot.
	received := base
	if f.IsBuyer {
		ev.Type = domain.EventBuy
		r.ledger.AdjustBalance(base, f.Quantity)
		r.ledger.AdjustBalance(quote, notional.Neg())

		r.ledger.MatchLots(quote, notional)
		lotQty := f.Quantity
		if fromProceeds && commissionAsset == base {
			lotQty = lotQty.Sub(f.Commission)
		}
		if err := r.addLot(base, lotQty, quote, notional, "Bought using "+quote, ts); err != nil {
			return err
		}
		trade.Lots = commissionLots
	} else {
		ev.Type = domain.EventSell
		received = quote
		r.ledger.AdjustBalance(base, f.Quantity.Neg())
		r.ledger.AdjustBalance(quote, notional)

		sold := r.ledger.MatchLots(base, f.Quantity)
		proceeds := notional
		if fromProceeds && commissionAsset == quote {
			proceeds = proceeds.Sub(f.Commission)
		}
		if err := r.addLot(quote, proceeds, quote, proceeds, "Sold "+base, ts); err != nil {
			return err
		}
		trade.Lots = append(commissionLots, sold...)
	}
	if fromProceeds && commissionAsset != received {
		r.ledger.MatchLots(commissionAsset, f.Commission)
	}

	commissionPrice, err := r.price(ts, commissionAsset)
	if err != nil {
		return err
	}
	basePrice, err := r.price(ts, base)
	if err != nil {
		return err
	}
	trade.CommissionValue = commissionPrice.Mul(f.Commission).Nullable()
	trade.Value = basePrice.Mul(f.Quantity).Nullable()
	if fromProceeds {
		trade.CommissionCost = trade.CommissionValue
	} else {
		trade.CommissionCost = domain.TotalCostBasis(commissionLots)
	}

	ev.Trade = trade
	return r.emit(ev)
}

func (r *replay) deposit(d *domain.Deposit) error {
	if d.Status == domain.DepositStatusPending {
		r.l.Debug("skipping pending deposit", zap.String("asset", d.Asset), zap.Int64("ts", d.UTCTimestamp))
		return nil
	}
	asset := domain.NormalizeAsset(d.Asset)
	ts := d.UTCTimestamp

	r.ledger.AdjustBalance(asset, d.Amount)
	if err := r.addLot(asset, d.Amount, asset, d.Amount, sourceDeposited, ts); err != nil {
		return err
	}

	value, err := r.transferValue(ts, asset, d.Amount)
	if err != nil {
		return err
	}
	return r.emit(domain.Event{
		Timestamp: ts,
		Type:      domain.EventDeposit,
		Transfer: &domain.TransferDetails{
			Asset:  asset,
			Amount: d.Amount,
			Value:  value,
		},
	})
}

func (r *replay) withdrawal(w *domain.Withdrawal) error {
	if w.Status != domain.WithdrawalStatusCompleted {
		r.l.Debug("skipping incomplete withdrawal",
			zap.String("asset", w.Asset), zap.Int64("ts", w.UTCTimestamp), zap.Int("status", w.Status))
		return nil
	}
	asset := domain.NormalizeAsset(w.Asset)
	ts := w.UTCTimestamp

	r.ledger.AdjustBalance(asset, w.Amount.Neg())

	value, err := r.transferValue(ts, asset, w.Amount)
	if err != nil {
		return err
	}
	return r.emit(domain.Event{
		Timestamp: ts,
		Type:      domain.EventWithdrawal,
		Transfer: &domain.TransferDetails{
			Asset:   asset,
			Amount:  w.Amount,
			Value:   value,
			Address: w.Address,
			Lots:    r.ledger.MatchLots(asset, w.Amount),
		},
	})
}

// checkpoint reconciles the tracked balance with the exchange-reported one.
func (r *replay) checkpoint(b *domain.BalanceCheckpoint) error {
	asset := domain.NormalizeAsset(b.Asset)
	ts := b.EffectiveTimestamp()

	adjustment := b.Total().Sub(r.ledger.Balance(asset))
	if adjustment.IsZero() {
		return nil
	}
	r.ledger.AdjustBalance(asset, adjustment)

	amount := adjustment.Abs()
	value, err := r.transferValue(ts, asset, amount)
	if err != nil {
		return err
	}
	transfer := &domain.TransferDetails{
		Asset:  asset,
		Amount: amount,
		Value:  value,
	}

	if adjustment.IsPositive() {
		// credited balance carries no acquisition cost.
		if err := r.addLot(asset, amount, asset, decimal.Zero, sourceCredited, ts); err != nil {
			return err
		}
		return r.emit(domain.Event{Timestamp: ts, Type: domain.EventCredit, Transfer: transfer})
	}

	transfer.Lots = r.ledger.MatchLots(asset, amount)
	return r.emit(domain.Event{Timestamp: ts, Type: domain.EventDebit, Transfer: transfer})
}

func (r *replay) transferValue(ts int64, asset string, amount decimal.Decimal) (decimal.NullDecimal, error) {
	p, err := r.price(ts, asset)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return p.Mul(amount).Nullable(), nil
}

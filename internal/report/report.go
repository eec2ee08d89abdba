// Package report writes statement events to the console log and renders a per-unit summary.
package report

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/binstatement/internal/domain"
)

const (
	defaultLogInterval = 2 * time.Second
	unknown            = "(unknown)"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#9B9B9B"})
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}).
			Padding(0, 1)
)

// Reporter logs at most one event per interval and tallies every event per unit of account.
type Reporter struct {
	l         *zap.Logger
	precision domain.Precision
	interval  time.Duration
	clock     func() time.Time

	mu          sync.Mutex
	lastEmitted time.Time
	units       map[string]*tally
}

type tally struct {
	counts map[domain.EventType]int
	first  int64
	last   int64
	total  decimal.NullDecimal
}

// Option configures the Reporter.
type Option func(*Reporter)

// WithInterval sets the minimum time between logged events.
func WithInterval(d time.Duration) Option {
	return func(r *Reporter) {
		r.interval = d
	}
}

// WithClock sets the time source used for throttling.
func WithClock(clock func() time.Time) Option {
	return func(r *Reporter) {
		r.clock = clock
	}
}

// New creates a reporter. Amounts are formatted with precision.
func New(l *zap.Logger, precision domain.Precision, opts ...Option) *Reporter {
	r := &Reporter{
		l:         l,
		precision: precision,
		interval:  defaultLogInterval,
		clock:     time.Now,
		units:     make(map[string]*tally),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Consume records ev of unit and logs it unless an event was logged less than an interval ago.
func (r *Reporter) Consume(unit string, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.units[unit]
	if !ok {
		t = &tally{counts: make(map[domain.EventType]int), first: ev.Timestamp}
		r.units[unit] = t
	}
	t.counts[ev.Type]++
	t.last = ev.Timestamp
	t.total = ev.TotalPortfolioValue

	now := r.clock()
	if !r.lastEmitted.IsZero() && now.Sub(r.lastEmitted) < r.interval {
		return
	}
	if msg, fields, ok := r.describe(unit, ev); ok {
		r.l.Info(msg, fields...)
		r.lastEmitted = now
	}
}

func (r *Reporter) describe(unit string, ev domain.Event) (string, []zap.Field, bool) {
	fields := []zap.Field{
		zap.String("unit", unit),
		zap.Time("at", domain.MillisToTime(ev.Timestamp)),
	}
	portfolio := zap.String("portfolio_value", r.nullable(unit, ev.TotalPortfolioValue))

	switch ev.Type {
	case domain.EventBuyAggregation, domain.EventSellAggregation:
		a := ev.Aggregation
		if a == nil {
			return "", nil, false
		}
		msg := "bought"
		if ev.Type == domain.EventSellAggregation {
			msg = "sold"
		}
		return msg, append(fields,
			zap.String("quantity", r.precision.FormatQuantity(a.BaseAsset, a.Quantity)+" "+a.BaseAsset),
			zap.String("price", r.precision.FormatPrice(a.QuoteAsset, a.Price)+" "+a.QuoteAsset),
			zap.String("value", r.nullable(unit, a.Value)),
			portfolio), true
	case domain.EventDeposit, domain.EventWithdrawal, domain.EventCredit, domain.EventDebit:
		tr := ev.Transfer
		if tr == nil {
			return "", nil, false
		}
		return transferMessage(ev.Type), append(fields,
			zap.String("amount", r.precision.FormatQuantity(tr.Asset, tr.Amount)+" "+tr.Asset),
			portfolio), true
	case domain.EventSnapshot:
		return "snapshot", append(fields, portfolio), true
	}
	return "", nil, false
}

func transferMessage(t domain.EventType) string {
	switch t {
	case domain.EventDeposit:
		return "deposit"
	case domain.EventWithdrawal:
		return "withdrawal"
	case domain.EventCredit:
		return "binance credit"
	default:
		return "binance debit"
	}
}

func (r *Reporter) nullable(unit string, v decimal.NullDecimal) string {
	if !v.Valid {
		return unknown
	}
	return r.precision.FormatPrice(unit, v.Decimal)
}

// Summary renders the tally of unit as a bordered box.
func (r *Reporter) Summary(unit string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.units[unit]
	if !ok {
		return boxStyle.Render(titleStyle.Render("Statement in "+unit) + "\nno events")
	}

	types := make([]domain.EventType, 0, len(t.counts))
	for typ := range t.counts {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var b strings.Builder
	b.WriteString(titleStyle.Render("Statement in " + unit))
	fmt.Fprintf(&b, "\n%s %s .. %s",
		labelStyle.Render("period"),
		domain.MillisToTime(t.first).Format(time.DateTime),
		domain.MillisToTime(t.last).Format(time.DateTime))
	for _, typ := range types {
		fmt.Fprintf(&b, "\n%s %d", labelStyle.Render(typ.String()), t.counts[typ])
	}
	fmt.Fprintf(&b, "\n%s %s %s", labelStyle.Render("portfolio value"), r.nullable(unit, t.total), unit)
	return boxStyle.Render(b.String())
}

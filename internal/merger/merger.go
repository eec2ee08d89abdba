// Package merger merges independently ordered record streams into one time-ordered stream.
package merger

import (
	"iter"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/binstatement/internal/domain"
)

// Streams four per-kind record streams, each ascending by effective timestamp.
type Streams struct {
	Fills       iter.Seq2[domain.Record, error]
	Deposits    iter.Seq2[domain.Record, error]
	Withdrawals iter.Seq2[domain.Record, error]
	Balances    iter.Seq2[domain.Record, error]
}

type head struct {
	next   func() (domain.Record, error, bool)
	stop   func()
	record domain.Record
	last   int64
	seen   bool
	done   bool
}

func (h *head) advance(kind domain.RecordKind) error {
	if h.next == nil {
		h.done = true
		return nil
	}
	rec, err, ok := h.next()
	if !ok {
		h.done = true
		h.record = nil
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read %s stream", kind)
	}
	ts := rec.EffectiveTimestamp()
	if h.seen && ts < h.last {
		return errors.Wrapf(domain.ErrOutOfOrder, "%s stream went from %d back to %d", kind, h.last, ts)
	}
	h.record, h.last, h.seen = rec, ts, true
	return nil
}

// Merge yields the records of all streams ascending by effective timestamp.
// On equal timestamps the stream order Fill, Deposit, Withdrawal, BalanceCheckpoint
// decides. Nil streams count as empty. A stream error or an ordering violation
// is yielded once and ends the merge.
func Merge(s Streams) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		sources := [...]iter.Seq2[domain.Record, error]{s.Fills, s.Deposits, s.Withdrawals, s.Balances}
		kinds := [...]domain.RecordKind{
			domain.RecordKindFill,
			domain.RecordKindDeposit,
			domain.RecordKindWithdrawal,
			domain.RecordKindBalanceCheckpoint,
		}

		var heads [len(sources)]head
		for i, src := range sources {
			if src == nil {
				continue
			}
			heads[i].next, heads[i].stop = iter.Pull2(src)
		}
		defer func() {
			for i := range heads {
				if heads[i].stop != nil {
					heads[i].stop()
				}
			}
		}()

		for i := range heads {
			if err := heads[i].advance(kinds[i]); err != nil {
				yield(nil, err)
				return
			}
		}

		for {
			pick := -1
			for i := range heads {
				if heads[i].done {
					continue
				}
				if pick < 0 || heads[i].last < heads[pick].last {
					pick = i
				}
			}
			if pick < 0 {
				return
			}

			if !yield(heads[pick].record, nil) {
				return
			}
			if err := heads[pick].advance(kinds[pick]); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// FromSlice adapts an in-memory ordered slice to a record stream.
func FromSlice[T domain.Record](records []T) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		for _, r := range records {
			if !yield(r, nil) {
				return
			}
		}
	}
}

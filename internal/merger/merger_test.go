package merger

import (
	"iter"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/binstatement/internal/domain"
)

func collect(t *testing.T, seq iter.Seq2[domain.Record, error]) ([]domain.Record, error) {
	t.Helper()
	var out []domain.Record
	for r, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
	return out, nil
}

func TestMerge_FillBeforeDepositOnEqualTimestamp(t *testing.T) {
	records, err := collect(t, Merge(Streams{
		Fills:    FromSlice([]*domain.Fill{{ID: 1, UTCTimestamp: 5}, {ID: 2, UTCTimestamp: 7}}),
		Deposits: FromSlice([]*domain.Deposit{{UTCTimestamp: 5, Asset: "BTC"}}),
	}))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, domain.RecordKindFill, records[0].Kind())
	assert.Equal(t, int64(1), records[0].(*domain.Fill).ID)
	assert.Equal(t, domain.RecordKindDeposit, records[1].Kind())
	assert.Equal(t, int64(2), records[2].(*domain.Fill).ID)
}

func TestMerge_FullPriorityOrder(t *testing.T) {
	records, err := collect(t, Merge(Streams{
		Fills:       FromSlice([]*domain.Fill{{UTCTimestamp: 10}}),
		Deposits:    FromSlice([]*domain.Deposit{{UTCTimestamp: 10}}),
		Withdrawals: FromSlice([]*domain.Withdrawal{{UTCTimestamp: 10}}),
		Balances:    FromSlice([]*domain.BalanceCheckpoint{{RecordTimestamp: 0, CollectionTime: 10}}),
	}))
	require.NoError(t, err)

	kinds := make([]domain.RecordKind, 0, len(records))
	for _, r := range records {
		kinds = append(kinds, r.Kind())
	}
	assert.Equal(t, []domain.RecordKind{
		domain.RecordKindFill,
		domain.RecordKindDeposit,
		domain.RecordKindWithdrawal,
		domain.RecordKindBalanceCheckpoint,
	}, kinds)
}

func TestMerge_AscendingAcrossStreams(t *testing.T) {
	records, err := collect(t, Merge(Streams{
		Fills:       FromSlice([]*domain.Fill{{UTCTimestamp: 3}, {UTCTimestamp: 9}}),
		Deposits:    FromSlice([]*domain.Deposit{{UTCTimestamp: 1}, {UTCTimestamp: 8}}),
		Withdrawals: FromSlice([]*domain.Withdrawal{{UTCTimestamp: 4}}),
		Balances:    FromSlice([]*domain.BalanceCheckpoint{{CollectionTime: 2}, {CollectionTime: 10}}),
	}))
	require.NoError(t, err)

	var ts []int64
	for _, r := range records {
		ts = append(ts, r.EffectiveTimestamp())
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 8, 9, 10}, ts)
}

func TestMerge_EmptyStreams(t *testing.T) {
	records, err := collect(t, Merge(Streams{}))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMerge_OutOfOrderStreamIsFatal(t *testing.T) {
	records, err := collect(t, Merge(Streams{
		Deposits: FromSlice([]*domain.Deposit{{UTCTimestamp: 5}, {UTCTimestamp: 4}}),
	}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrOutOfOrder))
	assert.Len(t, records, 1)
}

func TestMerge_SourceErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	failing := func(yield func(domain.Record, error) bool) {
		if !yield(&domain.Fill{UTCTimestamp: 1}, nil) {
			return
		}
		yield(nil, boom)
	}

	_, err := collect(t, Merge(Streams{Fills: failing}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestMerge_StopsEarly(t *testing.T) {
	n := 0
	for range Merge(Streams{Fills: FromSlice([]*domain.Fill{{UTCTimestamp: 1}, {UTCTimestamp: 2}, {UTCTimestamp: 3}})}) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

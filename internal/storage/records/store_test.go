package records

import (
	"context"
	"iter"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/merger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "records.db"), WithPageSize(2))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func timestamps(t *testing.T, records iter.Seq2[domain.Record, error]) []int64 {
	t.Helper()
	var out []int64
	for rec, err := range records {
		require.NoError(t, err)
		out = append(out, rec.EffectiveTimestamp())
	}
	return out
}

func fill(symbol string, id, ts int64) *domain.Fill {
	return &domain.Fill{
		ID: id, Symbol: symbol, BaseAsset: "btc", QuoteAsset: "usdt", OrderID: id,
		Price: d("100"), Quantity: d("0.5"), Commission: d("0.001"), CommissionAsset: "bnb",
		UTCTimestamp: ts, IsBuyer: true,
	}
}

func TestStore_FillsAscendingAcrossPages(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	for _, f := range []*domain.Fill{
		fill("BTCUSDT", 3, 300), fill("BTCUSDT", 1, 100), fill("ETHBTC", 1, 200),
		fill("BTCUSDT", 2, 200), fill("BTCUSDT", 4, 400),
	} {
		require.NoError(t, s.LogFill(ctx, f))
	}
	// replacing a fill keeps one copy
	require.NoError(t, s.LogFill(ctx, fill("BTCUSDT", 4, 400)))

	assert.Equal(t, []int64{100, 200, 200, 300, 400}, timestamps(t, s.Fills(ctx)))

	var first *domain.Fill
	for rec, err := range s.Fills(ctx) {
		require.NoError(t, err)
		first = rec.(*domain.Fill)
		break
	}
	require.NotNil(t, first)
	assert.Equal(t, "BTC", first.BaseAsset)
	assert.Equal(t, "BNB", first.CommissionAsset)
	assert.True(t, d("0.5").Equal(first.Quantity))
	assert.True(t, first.IsBuyer)

	id, err := s.MostRecentFillID(ctx, "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, int64(4), id)

	id, err = s.MostRecentFillID(ctx, "BNBUSDT")
	require.NoError(t, err)
	assert.Zero(t, id)

	symbols, err := s.Symbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHBTC"}, symbols)
}

func TestStore_DepositsAndWithdrawals(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ts, err := s.MostRecentDepositTime(ctx)
	require.NoError(t, err)
	assert.Zero(t, ts)

	require.NoError(t, s.LogDeposit(ctx, &domain.Deposit{UTCTimestamp: 50, Asset: "usdt", Amount: d("10"), Status: 0}))
	require.NoError(t, s.LogDeposit(ctx, &domain.Deposit{UTCTimestamp: 10, Asset: "BTC", Amount: d("1")}))
	// status update of the same deposit
	require.NoError(t, s.LogDeposit(ctx, &domain.Deposit{UTCTimestamp: 50, Asset: "USDT", Amount: d("10"), Status: 1}))
	require.NoError(t, s.LogDeposit(ctx, &domain.Deposit{UTCTimestamp: 30, Asset: "ETH", Amount: d("2")}))

	var deposits []*domain.Deposit
	for rec, err := range s.Deposits(ctx) {
		require.NoError(t, err)
		deposits = append(deposits, rec.(*domain.Deposit))
	}
	require.Len(t, deposits, 3)
	assert.Equal(t, int64(10), deposits[0].UTCTimestamp)
	assert.Equal(t, "USDT", deposits[2].Asset)
	assert.Equal(t, 1, deposits[2].Status)

	ts, err = s.MostRecentDepositTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(50), ts)

	require.NoError(t, s.LogWithdrawal(ctx, &domain.Withdrawal{UTCTimestamp: 70, Asset: "BTC", Amount: d("0.5"), Address: "a", Status: 6}))
	require.NoError(t, s.LogWithdrawal(ctx, &domain.Withdrawal{UTCTimestamp: 60, Asset: "BTC", Amount: d("0.1"), Address: "b", Status: 6}))
	assert.Equal(t, []int64{60, 70}, timestamps(t, s.Withdrawals(ctx)))

	ts, err = s.MostRecentWithdrawalTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(70), ts)
}

func TestStore_BalanceSnapshotReplacesDay(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	day := int64(86_400_000)
	require.NoError(t, s.LogBalanceSnapshot(ctx, []domain.BalanceCheckpoint{
		{RecordTimestamp: day, CollectionTime: day + 100, Asset: "btc", Free: d("1")},
		{RecordTimestamp: day, CollectionTime: day + 100, Asset: "USDT", Free: d("5"), Locked: d("1")},
	}))
	require.NoError(t, s.LogBalanceSnapshot(ctx, []domain.BalanceCheckpoint{
		{RecordTimestamp: day, CollectionTime: day + 900, Asset: "BTC", Free: d("2")},
	}))
	require.NoError(t, s.LogBalanceSnapshot(ctx, nil))

	var checkpoints []*domain.BalanceCheckpoint
	for rec, err := range s.Balances(ctx) {
		require.NoError(t, err)
		checkpoints = append(checkpoints, rec.(*domain.BalanceCheckpoint))
	}
	require.Len(t, checkpoints, 2)
	assert.Equal(t, "USDT", checkpoints[0].Asset)
	assert.True(t, d("6").Equal(checkpoints[0].Total()))
	assert.Equal(t, "BTC", checkpoints[1].Asset)
	assert.Equal(t, day+900, checkpoints[1].EffectiveTimestamp())
}

func TestStore_StreamsMerge(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.LogFill(ctx, fill("BTCUSDT", 1, 5)))
	require.NoError(t, s.LogDeposit(ctx, &domain.Deposit{UTCTimestamp: 5, Asset: "USDT", Amount: d("1"), Status: 1}))
	require.NoError(t, s.LogDeposit(ctx, &domain.Deposit{UTCTimestamp: 7, Asset: "USDT", Amount: d("2"), Status: 1}))

	var kinds []domain.RecordKind
	for rec, err := range merger.Merge(s.Streams(ctx)) {
		require.NoError(t, err)
		kinds = append(kinds, rec.Kind())
	}
	assert.Equal(t, []domain.RecordKind{
		domain.RecordKindFill, domain.RecordKindDeposit, domain.RecordKindDeposit,
	}, kinds)
}

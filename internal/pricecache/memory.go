package pricecache

import (
	"context"
	"sync"

	"github.com/vadiminshakov/binstatement/internal/domain"
)

type priceKey struct {
	bucket      int64
	base, quote string
}

type candleKey struct {
	bucket           int64
	symbol, interval string
}

// MemoryStore in-process Store, for tests and throwaway replays.
type MemoryStore struct {
	mu      sync.RWMutex
	prices  map[priceKey]domain.Price
	candles map[candleKey]domain.Candle
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices:  make(map[priceKey]domain.Price),
		candles: make(map[candleKey]domain.Candle),
	}
}

func (s *MemoryStore) GetPrice(_ context.Context, bucket int64, base, quote string) (domain.Price, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[priceKey{bucket, base, quote}]
	return p, ok, nil
}

func (s *MemoryStore) PutPrice(_ context.Context, bucket int64, base, quote string, price domain.Price) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[priceKey{bucket, base, quote}] = price
	return nil
}

func (s *MemoryStore) GetCandle(_ context.Context, bucket int64, symbol, interval string) (domain.Candle, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candles[candleKey{bucket, symbol, interval}]
	return c, ok, nil
}

func (s *MemoryStore) PutCandle(_ context.Context, bucket int64, candle domain.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[candleKey{bucket, candle.Symbol, candle.Interval}] = candle
	return nil
}

// Len returns the number of stored prices.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.prices)
}

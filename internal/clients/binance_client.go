package clients

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/pkg/errors"
)

const (
	// MaxSpeed disables pacing between exchange calls.
	MaxSpeed  = 10
	speedStep = 250 * time.Millisecond

	codeUnknown          = -1000
	codeDisconnected     = -1001
	codeTooManyRequests  = -1003
	codeTimeout          = -1007
	codeInvalidSymbol    = -1121
	codeServerBusy       = -1008
	codeTooManyOrdersAPI = -1015
)

// NewBinanceClient creates a Binance REST client.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}

// Pacer spaces exchange calls by a speed setting from 0 (slowest) to 10 (no pause).
type Pacer struct {
	delay time.Duration
}

// NewPacer creates a pacer for speed, clamped to 0..10.
func NewPacer(speed int) *Pacer {
	speed = max(0, min(speed, MaxSpeed))
	return &Pacer{delay: time.Duration(MaxSpeed-speed) * speedStep}
}

// Delay returns the pause taken before each call.
func (p *Pacer) Delay() time.Duration {
	if p == nil {
		return 0
	}
	return p.delay
}

// Wait pauses before the next exchange call.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.Delay() == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func apiErrorCode(err error) (int64, bool) {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	return 0, false
}

// IsInvalidSymbol reports whether Binance rejected the request for an unknown symbol.
func IsInvalidSymbol(err error) bool {
	code, ok := apiErrorCode(err)
	return ok && code == codeInvalidSymbol
}

// IsRetryable reports whether a Binance call failing with err may succeed later.
// Transport errors are retryable; API errors only when they signal load or outage.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	code, ok := apiErrorCode(err)
	if !ok {
		return true
	}
	switch code {
	case codeUnknown, codeDisconnected, codeTooManyRequests, codeTimeout, codeServerBusy, codeTooManyOrdersAPI:
		return true
	}
	return false
}

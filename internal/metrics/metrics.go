// Package metrics exposes prometheus counters for the replay pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PriceCacheLookups counts persistent price cache lookups by result (hit or miss).
	PriceCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "binstatement",
		Subsystem: "pricecache",
		Name:      "lookups_total",
		Help:      "Persistent price cache lookups by result.",
	}, []string{"result"})

	// CandleFetches counts candle source calls by outcome (closed, open, missing, error).
	CandleFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "binstatement",
		Subsystem: "pricecache",
		Name:      "candle_fetches_total",
		Help:      "Candle source calls by outcome.",
	}, []string{"outcome"})

	// EventsEmitted counts statement events delivered per unit of account and type.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "binstatement",
		Subsystem: "statement",
		Name:      "events_total",
		Help:      "Statement events delivered to consumers.",
	}, []string{"unit", "type"})

	// RecordsSynced counts raw records written by the exchange synchronizer.
	RecordsSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "binstatement",
		Subsystem: "sync",
		Name:      "records_total",
		Help:      "Raw account records stored by the synchronizer.",
	}, []string{"kind"})
)

const (
	ResultHit  = "hit"
	ResultMiss = "miss"

	OutcomeClosed  = "closed"
	OutcomeOpen    = "open"
	OutcomeMissing = "missing"
	OutcomeError   = "error"
)

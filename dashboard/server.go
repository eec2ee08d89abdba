// Package dashboard serves the journaled statement events as a server-sent event stream.
package dashboard

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/storage/journal"
)

const (
	journalPollInterval = 3 * time.Second
	heartbeatInterval   = 20 * time.Second
	// first loads longer than this thin out older snapshots
	keepLast = 100
)

type eventReader interface {
	EventsAfter(index uint64) ([]journal.Entry, error)
}

// Server exposes the statement stream and prometheus metrics over HTTP.
type Server struct {
	Addr    string
	Journal eventReader
	l       *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(addr string, events eventReader, l *zap.Logger) *Server {
	return &Server{Addr: addr, Journal: events, l: l}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/statement/stream", s.handleStatementStream)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("http (acme) server shutdown", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("https server shutdown", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("http (acme) server", zap.Error(err))
		}
	}()

	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleStatementStream streams journaled events. ?unit= restricts the stream to
// one unit of account; Last-Event-ID resumes after a journal index.
func (s *Server) handleStatementStream(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "statement journal not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(journalPollInterval)
	defer pollTicker.Stop()

	unit := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("unit")))
	lastIndex := s.parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"))
	isFirstLoad := lastIndex == 0
	sendEvents := func() error {
		entries, err := s.Journal.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			isFirstLoad = false
			return nil
		}
		// the cursor advances past filtered entries too
		last := entries[len(entries)-1].Index

		entries = filterUnit(entries, unit)
		if isFirstLoad {
			entries = thinSnapshots(entries)
			isFirstLoad = false
		}

		for _, entry := range entries {
			payload, err := json.Marshal(entry)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", entry.Index)
			fmt.Fprintf(w, "event: %s\n", entry.Event.Type)
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		flusher.Flush()
		lastIndex = last
		return nil
	}

	if err := sendEvents(); err != nil {
		http.Error(w, "failed to load statement events", http.StatusInternalServerError)
		s.l.Error("statement stream initial load", zap.Error(err))
		return
	}

	// tell the client the initial load is complete even if nothing was sent
	if lastIndex == 0 {
		fmt.Fprintf(w, "event: no_data\n")
		fmt.Fprintf(w, "data: {}\n\n")
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendEvents(); err != nil {
				s.l.Warn("statement stream poll", zap.Error(err))
			}
		}
	}
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID header or a query parameter.
// The header is preferred; the query parameter allows manual reconnects to resume from a known index.
func (s *Server) parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		s.l.Warn("invalid last event id", zap.String("id", idStr), zap.Error(err))
		return 0
	}
	return id
}

func filterUnit(entries []journal.Entry, unit string) []journal.Entry {
	if unit == "" {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if e.Unit == unit {
			out = append(out, e)
		}
	}
	return out
}

// thinSnapshots keeps the last keepLast entries and every non-snapshot event,
// sending exponentially fewer of the older snapshots.
func thinSnapshots(entries []journal.Entry) []journal.Entry {
	if len(entries) <= keepLast {
		return entries
	}

	older := entries[:len(entries)-keepLast]
	kept := make([]bool, len(older))
	skip, sent, gap := 1, 0, 0
	for i := len(older) - 1; i >= 0; i-- {
		if older[i].Event.Type != domain.EventSnapshot {
			kept[i] = true
			continue
		}
		if gap > 0 {
			gap--
			continue
		}
		kept[i] = true
		gap = skip
		sent++
		// double the skip every 12 snapshots sent
		if sent%12 == 0 {
			skip *= 2
		}
	}

	thinned := make([]journal.Entry, 0, len(entries))
	for i, e := range older {
		if kept[i] {
			thinned = append(thinned, e)
		}
	}
	return append(thinned, entries[len(entries)-keepLast:]...)
}

// Package journal appends emitted statement events to a write-ahead log so
// the dashboard can stream them and later runs can be inspected.
package journal

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/binstatement/internal/domain"
)

const (
	defaultDir       = "./wal/statement"
	segmentThreshold = 1000
	maxSegments      = 100
	eventKeyPrefix   = "statement_event_"
)

// Entry journaled statement event.
type Entry struct {
	Index uint64       `json:"index"`
	RunID string       `json:"run_id"`
	Unit  string       `json:"unit"`
	Event domain.Event `json:"event"`
}

// Journal WAL-backed statement event journal. Every Open starts a new run id.
type Journal struct {
	wal   *gowal.Wal
	mu    sync.RWMutex
	runID string
}

// Open opens the journal under dir.
func Open(dir string) (*Journal, error) {
	if dir == "" {
		dir = defaultDir
	}

	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           "statement_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "init statement journal WAL")
	}

	return &Journal{wal: wal, runID: uuid.NewString()}, nil
}

// RunID returns the id stamped on entries appended by this process.
func (j *Journal) RunID() string {
	return j.runID
}

// Append journals an event of the unit of account and returns its index.
func (j *Journal) Append(unit string, ev domain.Event) (uint64, error) {
	if j == nil || j.wal == nil {
		return 0, errors.New("statement journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entry := Entry{
		Index: j.wal.CurrentIndex() + 1,
		RunID: j.runID,
		Unit:  unit,
		Event: ev,
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return 0, errors.Wrap(err, "marshal statement event")
	}

	key := fmt.Sprintf("%s%s", eventKeyPrefix, unit)
	if err := j.wal.Write(entry.Index, key, payload); err != nil {
		return 0, errors.Wrap(err, "write statement event")
	}
	return entry.Index, nil
}

// EventsAfter returns journaled events with an index above index, oldest first.
func (j *Journal) EventsAfter(index uint64) ([]Entry, error) {
	if j == nil || j.wal == nil {
		return nil, errors.New("statement journal is not initialized")
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.wal.CurrentIndex() <= index {
		return nil, nil
	}

	var entries []Entry
	for msg := range j.wal.Iterator() {
		if !strings.HasPrefix(msg.Key, eventKeyPrefix) {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(msg.Value, &entry); err != nil {
			return nil, errors.Wrap(err, "decode statement event")
		}
		if entry.Index > index {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// CurrentIndex returns the latest journal index.
func (j *Journal) CurrentIndex() uint64 {
	if j == nil || j.wal == nil {
		return 0
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	return j.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return errors.New("statement journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}

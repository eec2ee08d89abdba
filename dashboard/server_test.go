package dashboard

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/binstatement/internal/domain"
	"github.com/vadiminshakov/binstatement/internal/storage/journal"
)

type staticJournal []journal.Entry

func (j staticJournal) EventsAfter(index uint64) ([]journal.Entry, error) {
	var out []journal.Entry
	for _, e := range j {
		if e.Index > index {
			out = append(out, e)
		}
	}
	return out, nil
}

func entry(index uint64, unit string, typ domain.EventType) journal.Entry {
	return journal.Entry{Index: index, RunID: "run", Unit: unit, Event: domain.Event{Timestamp: int64(index), Type: typ}}
}

// readEvents reads SSE "event:" lines until n have been seen.
func readEvents(t *testing.T, url string, header http.Header, n int) []string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []string
	scanner := bufio.NewScanner(resp.Body)
	for len(events) < n && scanner.Scan() {
		if name, ok := strings.CutPrefix(scanner.Text(), "event: "); ok {
			events = append(events, name)
		}
	}
	return events
}

func TestStatementStream(t *testing.T) {
	j := staticJournal{
		entry(1, "USDT", domain.EventDeposit),
		entry(2, "BTC", domain.EventDeposit),
		entry(3, "USDT", domain.EventBuyAggregation),
		entry(4, "USDT", domain.EventSnapshot),
	}
	srv := httptest.NewServer(NewServer(":0", j, zap.NewNop()).Handler())
	defer srv.Close()

	t.Run("all units", func(t *testing.T) {
		events := readEvents(t, srv.URL+"/statement/stream", nil, 4)
		assert.Equal(t, []string{"deposit", "deposit", "buy_aggregation", "snapshot"}, events)
	})

	t.Run("unit filter", func(t *testing.T) {
		events := readEvents(t, srv.URL+"/statement/stream?unit=btc", nil, 1)
		assert.Equal(t, []string{"deposit"}, events)
	})

	t.Run("resume", func(t *testing.T) {
		events := readEvents(t, srv.URL+"/statement/stream", http.Header{"Last-Event-Id": {"2"}}, 2)
		assert.Equal(t, []string{"buy_aggregation", "snapshot"}, events)
	})

	t.Run("empty journal", func(t *testing.T) {
		empty := httptest.NewServer(NewServer(":0", staticJournal{}, zap.NewNop()).Handler())
		defer empty.Close()
		events := readEvents(t, empty.URL+"/statement/stream", nil, 1)
		assert.Equal(t, []string{"no_data"}, events)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewServer(":0", staticJournal{}, zap.NewNop()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestThinSnapshots(t *testing.T) {
	var entries []journal.Entry
	for i := uint64(1); i <= 400; i++ {
		typ := domain.EventSnapshot
		if i == 5 {
			typ = domain.EventDeposit
		}
		entries = append(entries, entry(i, "USDT", typ))
	}

	thinned := thinSnapshots(entries)
	assert.Less(t, len(thinned), len(entries))
	assert.Equal(t, entries[len(entries)-keepLast:], thinned[len(thinned)-keepLast:])

	var deposit bool
	for i, e := range thinned {
		if i > 0 {
			assert.Less(t, thinned[i-1].Index, e.Index)
		}
		deposit = deposit || e.Event.Type == domain.EventDeposit
	}
	assert.True(t, deposit, "non-snapshot events survive thinning")
}

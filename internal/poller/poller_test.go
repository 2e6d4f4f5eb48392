package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ashutoshrp06/parcel-agent/internal/agent"
	"github.com/ashutoshrp06/parcel-agent/internal/gmail"
	"github.com/ashutoshrp06/parcel-agent/internal/types"
	"github.com/ashutoshrp06/parcel-agent/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInbox struct {
	mu       sync.Mutex
	emails   []types.Email
	fetchErr error
	marked   []string
	fetches  int
}

func (f *fakeInbox) FetchUnread(ctx context.Context, maxResults int) ([]types.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if len(f.emails) > maxResults {
		return f.emails[:maxResults], nil
	}
	return f.emails, nil
}

func (f *fakeInbox) MarkAsRead(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, id)
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	queries []string
	failOn  string
}

func (f *fakeRunner) Run(ctx context.Context, query string, history []models.HistoryEntry, opts ...agent.RunOption) (*agent.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.failOn != "" && query == f.failOn {
		return nil, agent.ErrModel
	}
	return &agent.Response{Response: "done", RunID: "run-1", Termination: models.TerminationCompleted}, nil
}

func TestProcessOnceMarksOnlySuccessfulRuns(t *testing.T) {
	good := types.Email{ID: "a", FromEmail: "jane@example.com", Subject: "Order", Body: "productId 3"}
	bad := types.Email{ID: "b", FromEmail: "bob@example.com", Subject: "Order", Body: "productId 4"}

	inbox := &fakeInbox{emails: []types.Email{good, bad}}
	runner := &fakeRunner{failOn: bad.Query()}
	p := New(inbox, runner, Config{MaxResults: 5}, nil)

	sum, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Fetched: 2, Processed: 1, Failed: 1}, sum)
	assert.Equal(t, []string{"a"}, inbox.marked)
	assert.Equal(t, []string{good.Query(), bad.Query()}, runner.queries)
}

func TestProcessOnceFormatsQuery(t *testing.T) {
	inbox := &fakeInbox{emails: []types.Email{{ID: "a", FromEmail: "jane@example.com", Subject: "Mugs", Body: "Two mugs please"}}}
	runner := &fakeRunner{}
	p := New(inbox, runner, Config{}, nil)

	_, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, runner.queries, 1)
	assert.Equal(t, "From: jane@example.com\nSubject: Mugs\n\nTwo mugs please", runner.queries[0])
}

func TestProcessOnceSkipsWhenNotAuthenticated(t *testing.T) {
	inbox := &fakeInbox{fetchErr: gmail.ErrNotAuthenticated}
	p := New(inbox, &fakeRunner{}, Config{}, nil)

	sum, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.Skipped)
}

func TestProcessOnceReturnsFetchError(t *testing.T) {
	inbox := &fakeInbox{fetchErr: errors.New("quota exceeded")}
	p := New(inbox, &fakeRunner{}, Config{}, nil)

	_, err := p.ProcessOnce(context.Background())
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	inbox := &fakeInbox{}
	p := New(inbox, &fakeRunner{}, Config{Interval: 10 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		inbox.mu.Lock()
		defer inbox.mu.Unlock()
		return inbox.fetches >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}

func TestPreviewKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", preview("short", 10))
	assert.Equal(t, "Bestellung f", preview("Bestellung für Jörg", 13))
	assert.Equal(t, "Bestellung fü", preview("Bestellung für Jörg", 14))
}

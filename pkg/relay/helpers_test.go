package relay

import (
	"context"
	"sync"
	"time"

	"github.com/tinyland-inc/relayclaw/pkg/correlate"
)

// failingStore returns err from every method.
type failingStore struct {
	err error
}

func (s *failingStore) Put(context.Context, correlate.Record, time.Duration) error {
	return s.err
}

func (s *failingStore) GetAndDelete(context.Context, string) (correlate.Record, bool, error) {
	return correlate.Record{}, false, s.err
}

func (s *failingStore) Exists(context.Context, string) (bool, error) {
	return false, s.err
}

func (s *failingStore) Delete(context.Context, string) error {
	return s.err
}

// captureNotifier records deliveries and optionally fails.
type captureNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
}

type notifyCall struct {
	rec correlate.Record
	res Result
}

func (n *captureNotifier) Notify(_ context.Context, rec correlate.Record, res Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{rec: rec, res: res})
	return n.err
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func defaultSources() []Source {
	return []Source{
		{Kind: SourceHeader, Name: "X-Callback-Secret"},
		{Kind: SourceHeader, Name: "X-Webhook-Key"},
		{Kind: SourceQuery, Name: "secret"},
		{Kind: SourceBody, Name: "secret"},
	}
}

package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tinyland-inc/relayclaw/pkg/correlate"
	"github.com/tinyland-inc/relayclaw/pkg/logger"
	"github.com/tinyland-inc/relayclaw/pkg/retry"
)

// ErrDispatchFailed marks a dispatch whose outbound call exhausted its
// retry policy. The correlation record has been removed: no callback can
// ever match the request, so the caller must notify the chat itself.
var ErrDispatchFailed = errors.New("dispatch failed")

// RemoteCall performs the outbound dispatch for a generated request ID.
// It is retried under the tracker's policy, so it must be safe to invoke
// more than once for the same ID.
type RemoteCall func(ctx context.Context, requestID string) error

// Dispatch is the chat context a future callback has to find its way
// back to.
type Dispatch struct {
	Channel         string
	ChatID          string
	OriginMessageID string
	Metadata        map[string]string
}

// Tracker creates correlation records and performs resilient outbound
// dispatch. It holds no record state itself; the store is the single
// source of truth, so any number of tracker instances may run at once.
type Tracker struct {
	store   correlate.Store
	policy  retry.Policy
	timeout time.Duration
	ttl     time.Duration
	stats   *Stats
}

func NewTracker(store correlate.Store, policy retry.Policy, timeout, ttl time.Duration, stats *Stats) *Tracker {
	if stats == nil {
		stats = NewStats()
	}
	return &Tracker{store: store, policy: policy, timeout: timeout, ttl: ttl, stats: stats}
}

// Dispatch generates a fresh request ID, stores the correlation record,
// then performs the outbound call with retries and the overall timeout.
//
// The record is written BEFORE the call: a crash in between leaves a
// traceable record that the store expires on its own. If the call
// ultimately fails the record is deleted immediately, because a record
// for a dispatch that never reached the executor must not linger waiting
// for a callback that cannot come.
func (t *Tracker) Dispatch(ctx context.Context, d Dispatch, call RemoteCall) (string, error) {
	requestID := uuid.NewString()

	rec := correlate.Record{
		RequestID:       requestID,
		Channel:         d.Channel,
		ChatID:          d.ChatID,
		OriginMessageID: d.OriginMessageID,
		Metadata:        d.Metadata,
		CreatedAt:       time.Now().UTC(),
		TTLSeconds:      int(t.ttl.Seconds()),
	}
	if err := t.store.Put(ctx, rec, t.ttl); err != nil {
		return "", fmt.Errorf("storing correlation record: %w", err)
	}

	err := retry.Do(ctx, t.policy, t.timeout, func(ctx context.Context) error {
		return call(ctx, requestID)
	})
	if err != nil {
		// The dispatch context may already be done; cleanup still has
		// to reach the store.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if delErr := t.store.Delete(cleanupCtx, requestID); delErr != nil {
			logger.ErrorCF("relay", "Failed to clean up record after dispatch failure", map[string]any{
				"request_id": requestID,
				"error":      delErr.Error(),
			})
		}
		t.stats.dispatchFailed.Add(1)
		return "", fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	t.stats.dispatched.Add(1)
	logger.InfoCF("relay", "Task dispatched", map[string]any{
		"request_id": requestID,
		"channel":    d.Channel,
		"chat_id":    d.ChatID,
	})
	return requestID, nil
}

package relay

import (
	"context"
	"fmt"

	"github.com/tinyland-inc/relayclaw/pkg/correlate"
	"github.com/tinyland-inc/relayclaw/pkg/logger"
)

// Outcome classifies the resolution of an inbound callback.
type Outcome int

const (
	// Delivered: the record was consumed and the result handed to the
	// notifier.
	Delivered Outcome = iota
	// Unauthenticated: the secret did not match; no store access occurred.
	Unauthenticated
	// Unknown: no live record for the request ID. Covers never-dispatched,
	// already-resolved and expired; a normal outcome, not an error.
	Unknown
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Unauthenticated:
		return "unauthenticated"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Notifier delivers a resolved result back to the originating chat. It
// owns rendering and any retry policy of its own; the resolver only
// hands off.
type Notifier interface {
	Notify(ctx context.Context, rec correlate.Record, res Result) error
}

// Resolver consumes correlation records for inbound callbacks, exactly
// once per record.
type Resolver struct {
	auth     *Authenticator
	store    correlate.Store
	notifier Notifier
	stats    *Stats
}

func NewResolver(auth *Authenticator, store correlate.Store, notifier Notifier, stats *Stats) *Resolver {
	if stats == nil {
		stats = NewStats()
	}
	return &Resolver{auth: auth, store: store, notifier: notifier, stats: stats}
}

// Resolve authenticates the callback, atomically consumes its record and
// hands the result downstream.
//
// Duplicate and late callbacks surface as Unknown without error: the
// executor retries deliveries, so absence is expected traffic. A store
// outage is the one error path — the record was not consumed, and the
// transport layer answers 503 so the executor redelivers later. A
// notifier failure is reported alongside Delivered and never re-inserts
// the record; resolution already consumed it.
func (r *Resolver) Resolve(ctx context.Context, cb *Callback) (Outcome, error) {
	if res := r.auth.Authenticate(cb); !res.Accepted {
		r.stats.unauthenticated.Add(1)
		return Unauthenticated, nil
	}

	rec, ok, err := r.store.GetAndDelete(ctx, cb.RequestID)
	if err != nil {
		return Unknown, err
	}
	if !ok {
		r.stats.unknown.Add(1)
		logger.DebugCF("relay", "Callback without live record", map[string]any{
			"request_id":  cb.RequestID,
			"remote_addr": cb.RemoteAddr,
		})
		return Unknown, nil
	}

	r.stats.delivered.Add(1)
	logger.InfoCF("relay", "Callback resolved", map[string]any{
		"request_id": cb.RequestID,
		"channel":    rec.Channel,
		"chat_id":    rec.ChatID,
		"success":    cb.Result.Success,
	})

	if err := r.notifier.Notify(ctx, rec, cb.Result); err != nil {
		return Delivered, fmt.Errorf("notifying chat %s/%s: %w", rec.Channel, rec.ChatID, err)
	}
	return Delivered, nil
}

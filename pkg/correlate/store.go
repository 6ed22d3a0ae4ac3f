// Package correlate tracks in-flight dispatched tasks so that out-of-band
// callbacks can be routed back to the originating chat.
//
// One Record exists per dispatched request, keyed by its request ID and
// owned by the store for its whole lifetime. Records expire store-side:
// a late callback simply observes absence, no application polling runs.
package correlate

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the backing store cannot be reached.
// Callers must not collapse it into "record not found": an outage has to
// stay visible so the remote system can redeliver the callback later.
var ErrUnavailable = errors.New("correlation store unavailable")

// Record associates a dispatched request with the chat context its
// eventual result must be delivered to.
type Record struct {
	RequestID       string            `json:"request_id"`
	Channel         string            `json:"channel"`
	ChatID          string            `json:"chat_id"`
	OriginMessageID string            `json:"origin_message_id,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	TTLSeconds      int               `json:"ttl_seconds"`
}

// Store is the shared, expiring key-value home of correlation records.
//
// GetAndDelete is atomic with respect to concurrent callers: of two
// simultaneous callbacks for the same request ID, exactly one observes
// the record. Backends that lack a native get-and-delete primitive must
// serialize via delete-returning-prior-existence, never get-then-delete.
type Store interface {
	Put(ctx context.Context, rec Record, ttl time.Duration) error
	GetAndDelete(ctx context.Context, requestID string) (Record, bool, error)
	Exists(ctx context.Context, requestID string) (bool, error)
	Delete(ctx context.Context, requestID string) error
}

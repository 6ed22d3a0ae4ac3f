package relay

import "sync/atomic"

// Stats counts relay outcomes for the health endpoint and the heartbeat
// summary. All counters are monotonically increasing.
type Stats struct {
	dispatched      atomic.Int64
	dispatchFailed  atomic.Int64
	delivered       atomic.Int64
	unknown         atomic.Int64
	unauthenticated atomic.Int64
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"dispatched":      s.dispatched.Load(),
		"dispatch_failed": s.dispatchFailed.Load(),
		"delivered":       s.delivered.Load(),
		"unknown":         s.unknown.Load(),
		"unauthenticated": s.unauthenticated.Load(),
	}
}

// Package stats provides atomic counters for backend request metrics.
package stats

import "sync/atomic"

// Stats holds atomic counters for backend request metrics.
type Stats struct {
	Sent      atomic.Int64
	Succeeded atomic.Int64
	Failed    atomic.Int64
	TimedOut  atomic.Int64
	InFlight  atomic.Int64
}

// New returns a zero-valued Stats ready for use.
func New() *Stats {
	return &Stats{}
}

// Snapshot is a plain-struct copy of all counters at a point in time.
type Snapshot struct {
	Sent      int64
	Succeeded int64
	Failed    int64
	TimedOut  int64
	InFlight  int64
}

// Snapshot reads all counters atomically and returns a plain copy.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Sent:      s.Sent.Load(),
		Succeeded: s.Succeeded.Load(),
		Failed:    s.Failed.Load(),
		TimedOut:  s.TimedOut.Load(),
		InFlight:  s.InFlight.Load(),
	}
}

// Package sensor models measurement latency: the controller never sees
// the live mechanism state, only a snapshot delayed by a fixed number of
// control steps.
package sensor

import "github.com/san-kum/pendubot/internal/dynamo"

// Snapshot is a read-only copy of measured fields handed to the
// controller. It never aliases the live state vector.
type Snapshot map[string]float64

// NewSnapshot copies the measured fields out of the live state. Time and
// the passive joint angle are always sensed; the remaining coordinates
// are included only when full-state sensing is configured.
func NewSnapshot(t float64, x dynamo.State, full bool) Snapshot {
	s := Snapshot{"t": t, "q2": x[1]}
	if full {
		s["q1"] = x[0]
		s["v1"] = x[2]
		s["v2"] = x[3]
	}
	return s
}

func (s Snapshot) Clone() Snapshot {
	c := make(Snapshot, len(s))
	for k, v := range s {
		c[k] = v
	}
	return c
}

// DelayBuffer is a fixed-length FIFO of exactly delay+1 snapshots. The
// oldest entry is the "current sensed" value; each step a new snapshot is
// pushed and the oldest dropped, so length never changes after
// construction. The delay count is fixed for the run's lifetime.
type DelayBuffer struct {
	buf   []Snapshot
	delay int
}

// NewDelayBuffer builds a buffer for the given delay, filled with copies
// of the first snapshot so early steps observe stale-but-valid data.
// Fractional delays are truncated; negative delays are coerced to zero.
func NewDelayBuffer(delay float64, first Snapshot) *DelayBuffer {
	d := int(delay)
	if d < 0 {
		d = 0
	}

	buf := make([]Snapshot, d+1)
	for i := range buf {
		buf[i] = first.Clone()
	}
	return &DelayBuffer{buf: buf, delay: d}
}

func (b *DelayBuffer) Delay() int { return b.delay }
func (b *DelayBuffer) Len() int   { return len(b.buf) }

// Push appends a new snapshot and drops the oldest, preserving length.
func (b *DelayBuffer) Push(s Snapshot) {
	copy(b.buf, b.buf[1:])
	b.buf[len(b.buf)-1] = s.Clone()
}

// Peek returns the current sensed snapshot (the oldest entry) without
// removing it.
func (b *DelayBuffer) Peek() Snapshot {
	return b.buf[0].Clone()
}

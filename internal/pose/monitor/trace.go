package monitor

import (
	"math"
	"sync"
	"time"

	"github.com/banshee-data/posetrack/internal/pose/l4retarget"
	"gonum.org/v1/gonum/spatial/r3"
)

// TraceSample is the part of a snapshot the trace chart draws.
type TraceSample struct {
	Seq       uint64    `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Root      r3.Vec    `json:"root"`
	// YawDeg is the heading of the body forward about world up, 0 along +Z.
	YawDeg float64 `json:"yaw_deg"`
}

// TraceBuffer keeps the most recent samples in a ring. It is a pipeline
// sink and safe for concurrent use.
type TraceBuffer struct {
	mu      sync.Mutex
	samples []TraceSample
	next    int
	full    bool
}

// NewTraceBuffer returns a buffer holding up to capacity samples.
func NewTraceBuffer(capacity int) *TraceBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &TraceBuffer{samples: make([]TraceSample, capacity)}
}

// PublishSnapshot records one snapshot, evicting the oldest when full.
func (b *TraceBuffer) PublishSnapshot(s *l4retarget.Snapshot) {
	sample := TraceSample{
		Seq:       s.Seq,
		Timestamp: s.Timestamp,
		Root:      s.RootPosition,
		YawDeg:    math.Atan2(s.Forward.X, s.Forward.Z) * 180 / math.Pi,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples[b.next] = sample
	b.next = (b.next + 1) % len(b.samples)
	if b.next == 0 {
		b.full = true
	}
}

// Samples returns the buffered samples, oldest first.
func (b *TraceBuffer) Samples() []TraceSample {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return append([]TraceSample(nil), b.samples[:b.next]...)
	}
	out := make([]TraceSample, 0, len(b.samples))
	out = append(out, b.samples[b.next:]...)
	return append(out, b.samples[:b.next]...)
}

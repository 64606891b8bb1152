package network

import (
	"sync/atomic"
	"time"

	"github.com/banshee-data/posetrack/internal/pose"
)

// PacketStats counts received datagrams. Safe for concurrent use.
type PacketStats struct {
	packets  atomic.Uint64
	bytes    atomic.Uint64
	rejected atomic.Uint64
	frames   atomic.Uint64

	lastPackets atomic.Uint64
	lastLog     atomic.Int64
}

// NewPacketStats returns a zeroed collector.
func NewPacketStats() *PacketStats {
	s := &PacketStats{}
	s.lastLog.Store(time.Now().UnixNano())
	return s
}

func (s *PacketStats) AddPacket(bytes int) {
	s.packets.Add(1)
	s.bytes.Add(uint64(bytes))
}

func (s *PacketStats) AddRejected() { s.rejected.Add(1) }
func (s *PacketStats) AddFrame()    { s.frames.Add(1) }

// PacketSnapshot is a point-in-time copy of the counters.
type PacketSnapshot struct {
	Packets  uint64 `json:"packets"`
	Bytes    uint64 `json:"bytes"`
	Rejected uint64 `json:"rejected"`
	Frames   uint64 `json:"frames"`
}

// Snapshot returns the current counters.
func (s *PacketStats) Snapshot() PacketSnapshot {
	return PacketSnapshot{
		Packets:  s.packets.Load(),
		Bytes:    s.bytes.Load(),
		Rejected: s.rejected.Load(),
		Frames:   s.frames.Load(),
	}
}

// LogStats writes totals and the packet rate since the previous call.
func (s *PacketStats) LogStats() {
	now := time.Now().UnixNano()
	prev := s.lastLog.Swap(now)
	snap := s.Snapshot()
	delta := snap.Packets - s.lastPackets.Swap(snap.Packets)
	elapsed := time.Duration(now - prev).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(delta) / elapsed
	}
	pose.Diagf("landmark packets: total=%d rejected=%d frames=%d bytes=%d rate=%.1f/s",
		snap.Packets, snap.Rejected, snap.Frames, snap.Bytes, rate)
}

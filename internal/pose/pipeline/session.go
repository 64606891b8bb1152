package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"github.com/banshee-data/posetrack/internal/pose/l3rig"
	"github.com/banshee-data/posetrack/internal/pose/l4retarget"
	"github.com/banshee-data/posetrack/internal/timeutil"
	"github.com/google/uuid"
)

// SnapshotSink consumes per-frame output. PublishSnapshot runs on the
// session loop and must not block.
type SnapshotSink interface {
	PublishSnapshot(snap *l4retarget.Snapshot)
}

// FrameRecorder persists each input frame together with its output.
type FrameRecorder interface {
	RecordFrame(sessionID string, f *l1landmarks.Frame, snap *l4retarget.Snapshot) error
}

// SessionConfig holds the dependencies of one retargeting session.
type SessionConfig struct {
	// ID defaults to a fresh UUID.
	ID  string
	Rig *l3rig.Rig
	// Children defaults to l2joints.DefaultChildren.
	Children *[l2joints.Count]l2joints.JointID

	SmoothingFactor float64
	SeedPolicy      l2joints.SeedPolicy
	Retarget        l4retarget.Config

	Sinks    []SnapshotSink
	Recorder FrameRecorder // optional
	Clock    timeutil.Clock
}

// SessionStats is a point-in-time view of a session's counters.
type SessionStats struct {
	SessionID       string        `json:"session_id"`
	RigName         string        `json:"rig_name"`
	StartedAt       time.Time     `json:"started_at"`
	FramesReceived  uint64        `json:"frames_received"`
	FramesProcessed uint64        `json:"frames_processed"`
	FramesDropped   uint64        `json:"frames_dropped"`
	RecordErrors    uint64        `json:"record_errors"`
	ForwardHolds    uint64        `json:"forward_holds"`
	UpHolds         uint64        `json:"up_holds"`
	LookHolds       uint64        `json:"look_holds"`
	LastSeq         uint64        `json:"last_seq"`
	LastLatency     time.Duration `json:"last_latency_ns"`
	LastFrameAt     time.Time     `json:"last_frame_at"`
}

// Session runs the preprocess and retarget passes for one calibrated
// skeleton. Frames are processed strictly one at a time.
type Session struct {
	id       string
	rigName  string
	sk       *l2joints.Skeleton
	sm       *l2joints.Smoother
	rt       *l4retarget.Retargeter
	sinks    []SnapshotSink
	recorder FrameRecorder
	clock    timeutil.Clock

	// procMu serialises frames; the smoother is order dependent.
	procMu sync.Mutex

	mu      sync.RWMutex
	stats   SessionStats
	last    l4retarget.Snapshot
	hasLast bool
	mailbox *Mailbox
}

// NewSession calibrates a skeleton against cfg.Rig. Calibration errors are
// fatal for the session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Rig == nil {
		return nil, errors.New("session requires a rig")
	}
	children := l2joints.DefaultChildren()
	if cfg.Children != nil {
		children = *cfg.Children
	}
	sk, err := l2joints.NewSkeleton(children)
	if err != nil {
		return nil, err
	}
	rt, err := l4retarget.Calibrate(sk, cfg.Rig, cfg.Retarget)
	if err != nil {
		return nil, fmt.Errorf("calibrate rig %q: %w", cfg.Rig.Name, err)
	}
	sm, err := l2joints.NewSmoother(cfg.SmoothingFactor, cfg.SeedPolicy)
	if err != nil {
		return nil, err
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	s := &Session{
		id:       id,
		rigName:  cfg.Rig.Name,
		sk:       sk,
		sm:       sm,
		rt:       rt,
		sinks:    cfg.Sinks,
		recorder: cfg.Recorder,
		clock:    clock,
	}
	s.stats = SessionStats{SessionID: id, RigName: cfg.Rig.Name, StartedAt: clock.Now()}
	opsf("session %s started: rig=%q smoothing=%.2f seed=%s scale=%g",
		id, cfg.Rig.Name, sm.Factor(), sm.Policy(), cfg.Retarget.PositionScale)
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Skeleton returns the session's skeleton. Only read it from the goroutine
// that processes frames.
func (s *Session) Skeleton() *l2joints.Skeleton { return s.sk }

// ProcessFrame runs one frame through the core and hands the snapshot to
// every sink and the recorder.
func (s *Session) ProcessFrame(f *l1landmarks.Frame) l4retarget.Snapshot {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	start := s.clock.Now()
	l2joints.Preprocess(s.sk, f, s.sm)
	s.rt.Apply()

	ts := f.Timestamp
	if ts.IsZero() {
		ts = start
	}
	snap := s.rt.Capture(f.Seq, ts)
	snap.SessionID = s.id
	latency := s.clock.Since(start)

	var recordErr error
	if s.recorder != nil {
		recordErr = s.recorder.RecordFrame(s.id, f, &snap)
		if recordErr != nil {
			opsf("session %s: failed to record frame %d: %v", s.id, f.Seq, recordErr)
		}
	}
	for _, sink := range s.sinks {
		sink.PublishSnapshot(&snap)
	}

	rs := s.rt.Stats()
	s.mu.Lock()
	s.stats.FramesProcessed++
	if recordErr != nil {
		s.stats.RecordErrors++
	}
	s.stats.ForwardHolds = rs.ForwardHolds
	s.stats.UpHolds = rs.UpHolds
	s.stats.LookHolds = rs.LookHolds
	s.stats.LastSeq = f.Seq
	s.stats.LastLatency = latency
	s.stats.LastFrameAt = ts
	s.last = snap
	s.hasLast = true
	s.mu.Unlock()

	tracef("session %s frame %d: root=%v latency=%v", s.id, f.Seq, snap.RootPosition, latency)
	return snap
}

// Run takes frames from mb until ctx is done or mb is closed. A closed
// mailbox ends the run without error.
func (s *Session) Run(ctx context.Context, mb *Mailbox) error {
	s.mu.Lock()
	s.mailbox = mb
	s.mu.Unlock()

	for {
		f, err := mb.Take(ctx)
		if errors.Is(err, ErrMailboxClosed) {
			diagf("session %s: mailbox closed", s.id)
			return nil
		}
		if err != nil {
			return err
		}
		s.ProcessFrame(&f)
	}
}

// Stats returns the current counters.
func (s *Session) Stats() SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.stats
	if s.mailbox != nil {
		st.FramesReceived = s.mailbox.Published()
		st.FramesDropped = s.mailbox.Drops()
	} else {
		st.FramesReceived = st.FramesProcessed
	}
	return st
}

// Latest returns the most recent snapshot.
func (s *Session) Latest() (l4retarget.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.hasLast
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/posetrack/internal/db"
	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"github.com/banshee-data/posetrack/internal/pose/l3rig"
	"github.com/banshee-data/posetrack/internal/pose/l4retarget"
	"github.com/banshee-data/posetrack/internal/pose/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
)

type sliceSink struct{ snaps []l4retarget.Snapshot }

func (s *sliceSink) PublishSnapshot(snap *l4retarget.Snapshot) { s.snaps = append(s.snaps, *snap) }

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	d, err := db.NewDB(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return NewSessionStore(d.DB)
}

func TestCreateAndGetSession(t *testing.T) {
	s := newTestStore(t)
	sess := &Session{RigName: "tpose", Source: "synthetic", SmoothingFactor: 0.5, SeedPolicy: "first", PositionScale: 0.01}
	require.NoError(t, s.CreateSession(sess))
	_, err := uuid.Parse(sess.SessionID)
	require.NoError(t, err)
	assert.NotZero(t, sess.StartedAtNs)

	got, err := s.GetSession(sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	_, err = s.GetSession("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestEndAndDeleteSession(t *testing.T) {
	s := newTestStore(t)
	sess := &Session{SessionID: "a", RigName: "r", Source: "udp", SeedPolicy: "zero"}
	require.NoError(t, s.CreateSession(sess))

	end := time.Unix(50, 0)
	require.NoError(t, s.EndSession("a", end))
	got, err := s.GetSession("a")
	require.NoError(t, err)
	require.NotNil(t, got.EndedAtNs)
	assert.Equal(t, end.UnixNano(), *got.EndedAtNs)

	assert.ErrorIs(t, s.EndSession("b", end), ErrSessionNotFound)
	require.NoError(t, s.DeleteSession("a"))
	assert.ErrorIs(t, s.DeleteSession("a"), ErrSessionNotFound)
}

func TestListSessions(t *testing.T) {
	s := newTestStore(t)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, s.CreateSession(&Session{SessionID: id, RigName: "r", Source: "udp", SeedPolicy: "first", StartedAtNs: int64(i + 1)}))
	}

	all, err := s.ListSessions(0)
	require.NoError(t, err)
	var ids []string
	for _, sess := range all {
		ids = append(ids, sess.SessionID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)

	two, err := s.ListSessions(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestRecordFrame_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession(&Session{SessionID: "rec", RigName: "r", Source: "synthetic", SeedPolicy: "first"}))

	g := l1landmarks.NewGenerator(time.Unix(10, 0))
	var snaps []l4retarget.Snapshot
	var frames []l1landmarks.Frame
	for i := 0; i < 3; i++ {
		f := g.Next()
		snap := l4retarget.Snapshot{Seq: f.Seq, Timestamp: f.Timestamp}
		snap.RootPosition.X = float64(i)
		for j := range snap.Rotations {
			snap.Rotations[j] = quat.Number{Real: 1, Imag: float64(j) / 100}
		}
		require.NoError(t, s.RecordFrame("rec", &f, &snap))
		frames = append(frames, f)
		snap.SessionID = "rec"
		snaps = append(snaps, snap)
	}

	gotSnaps, err := s.LoadSnapshots("rec")
	require.NoError(t, err)
	if diff := cmp.Diff(snaps, gotSnaps); diff != "" {
		t.Errorf("snapshots mismatch (-want +got):\n%s", diff)
	}

	gotFrames, err := s.LoadFrames("rec")
	require.NoError(t, err)
	require.Len(t, gotFrames, 3)
	// Points are stored as float32.
	if diff := cmp.Diff(frames, gotFrames, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}

	trace, err := s.LoadRootTrace("rec")
	require.NoError(t, err)
	require.Len(t, trace, 3)
	assert.Equal(t, uint64(3), trace[2].Seq)
	assert.Equal(t, 2.0, trace[2].Root.X)

	sess, err := s.GetSession("rec")
	require.NoError(t, err)
	assert.Equal(t, 3, sess.FrameCount)
}

func TestRecordFrame_UnknownSession(t *testing.T) {
	s := newTestStore(t)
	f := l1landmarks.Frame{Points: l1landmarks.TPose()}
	err := s.RecordFrame("nobody", &f, &l4retarget.Snapshot{})
	assert.Error(t, err, "foreign key must reject frames without a session")
}

func TestDecodeRotations_BadLength(t *testing.T) {
	var rots [l2joints.Count]quat.Number
	assert.Error(t, decodeRotations(make([]byte, 10), &rots))
}

func TestReplayReproducesRecording(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateSession(&Session{SessionID: "live", RigName: "tpose", Source: "synthetic", SeedPolicy: "first"}))

	live, err := pipeline.NewSession(pipeline.SessionConfig{
		ID: "live", Rig: l3rig.TPoseRig(), SmoothingFactor: 0.5, Recorder: s,
	})
	require.NoError(t, err)

	// Recorded points are float32, so feed the live session the same
	// quantised frames the replay will read back.
	g := l1landmarks.NewGenerator(time.Unix(1, 0))
	for i := 0; i < 20; i++ {
		f := g.Next()
		q, _, err := l1landmarks.DecodeDatagram(l1landmarks.AppendDatagram(nil, &f, 0))
		require.NoError(t, err)
		live.ProcessFrame(&q)
	}

	frames, err := s.LoadFrames("live")
	require.NoError(t, err)
	want, err := s.LoadSnapshots("live")
	require.NoError(t, err)

	sink := &sliceSink{}
	replay, err := pipeline.NewSession(pipeline.SessionConfig{
		ID: "live", Rig: l3rig.TPoseRig(), SmoothingFactor: 0.5, Sinks: []pipeline.SnapshotSink{sink},
	})
	require.NoError(t, err)
	n, err := pipeline.Replay(context.Background(), replay, frames)
	require.NoError(t, err)
	require.Equal(t, 20, n)
	got := sink.snaps

	opts := cmp.Options{
		cmpopts.EquateApprox(0, 1e-12),
		cmpopts.IgnoreFields(l4retarget.Snapshot{}, "Forward"),
	}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("replay differs from recording (-recorded +replayed):\n%s", diff)
	}
}

package sqlite

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"github.com/banshee-data/posetrack/internal/pose/l4retarget"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("session not found")

const rotationsBlobSize = l2joints.Count * 4 * 8

// Session describes one recorded retargeting session.
type Session struct {
	SessionID       string  `json:"session_id"`
	RigName         string  `json:"rig_name"`
	Source          string  `json:"source"`
	SmoothingFactor float64 `json:"smoothing_factor"`
	SeedPolicy      string  `json:"seed_policy"`
	PositionScale   float64 `json:"position_scale"`
	StartedAtNs     int64   `json:"started_at_ns"`
	EndedAtNs       *int64  `json:"ended_at_ns,omitempty"`
	FrameCount      int     `json:"frame_count"`
}

// RootSample is one point of a session's root trajectory.
type RootSample struct {
	Seq         uint64 `json:"seq"`
	TimestampNs int64  `json:"timestamp_ns"`
	Root        r3.Vec `json:"root"`
}

// SessionStore reads and writes pose sessions.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a SessionStore over a migrated database.
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// CreateSession inserts a session row. An empty SessionID gets a new UUID
// and a zero StartedAtNs gets the current time.
func (s *SessionStore) CreateSession(sess *Session) error {
	if sess.SessionID == "" {
		sess.SessionID = uuid.New().String()
	}
	if sess.StartedAtNs == 0 {
		sess.StartedAtNs = time.Now().UnixNano()
	}
	_, err := s.db.Exec(`
		INSERT INTO pose_sessions (
			session_id, rig_name, source, smoothing_factor, seed_policy,
			position_scale, started_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.SessionID, sess.RigName, sess.Source, sess.SmoothingFactor,
		sess.SeedPolicy, sess.PositionScale, sess.StartedAtNs,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// EndSession stamps the session's end time.
func (s *SessionStore) EndSession(sessionID string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE pose_sessions SET ended_at_ns = ? WHERE session_id = ?`,
		at.UnixNano(), sessionID)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// RecordFrame stores one input frame with the snapshot it produced.
func (s *SessionStore) RecordFrame(sessionID string, f *l1landmarks.Frame, snap *l4retarget.Snapshot) error {
	var ts int64
	if !snap.Timestamp.IsZero() {
		ts = snap.Timestamp.UnixNano()
	}
	_, err := s.db.Exec(`
		INSERT INTO pose_frames (
			session_id, seq, timestamp_ns, landmarks,
			root_x, root_y, root_z, rotations
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, int64(f.Seq), ts, l1landmarks.AppendDatagram(nil, f, 0),
		snap.RootPosition.X, snap.RootPosition.Y, snap.RootPosition.Z,
		encodeRotations(&snap.Rotations),
	)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", f.Seq, err)
	}
	return nil
}

const sessionColumns = `
	s.session_id, s.rig_name, s.source, s.smoothing_factor, s.seed_policy,
	s.position_scale, s.started_at_ns, s.ended_at_ns,
	(SELECT COUNT(*) FROM pose_frames f WHERE f.session_id = s.session_id)`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	var sess Session
	var ended sql.NullInt64
	if err := row.Scan(
		&sess.SessionID, &sess.RigName, &sess.Source, &sess.SmoothingFactor,
		&sess.SeedPolicy, &sess.PositionScale, &sess.StartedAtNs, &ended,
		&sess.FrameCount,
	); err != nil {
		return nil, err
	}
	if ended.Valid {
		v := ended.Int64
		sess.EndedAtNs = &v
	}
	return &sess, nil
}

// GetSession returns one session by ID.
func (s *SessionStore) GetSession(sessionID string) (*Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM pose_sessions s WHERE s.session_id = ?`, sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns the most recent sessions first. A limit of zero or
// less returns every session.
func (s *SessionStore) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+sessionColumns+`
		FROM pose_sessions s
		ORDER BY s.started_at_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// LoadFrames returns a session's input frames in recording order.
func (s *SessionStore) LoadFrames(sessionID string) ([]l1landmarks.Frame, error) {
	rows, err := s.db.Query(`
		SELECT landmarks FROM pose_frames
		WHERE session_id = ?
		ORDER BY frame_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load frames: %w", err)
	}
	defer rows.Close()

	var out []l1landmarks.Frame
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		f, _, err := l1landmarks.DecodeDatagram(blob)
		if err != nil {
			return nil, fmt.Errorf("decode frame %d of session %s: %w", len(out), sessionID, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// LoadSnapshots returns the recorded output of a session in order.
func (s *SessionStore) LoadSnapshots(sessionID string) ([]l4retarget.Snapshot, error) {
	rows, err := s.db.Query(`
		SELECT seq, timestamp_ns, root_x, root_y, root_z, rotations
		FROM pose_frames
		WHERE session_id = ?
		ORDER BY frame_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	var out []l4retarget.Snapshot
	for rows.Next() {
		var (
			seq, ts int64
			root    r3.Vec
			blob    []byte
		)
		if err := rows.Scan(&seq, &ts, &root.X, &root.Y, &root.Z, &blob); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap := l4retarget.Snapshot{SessionID: sessionID, Seq: uint64(seq), RootPosition: root}
		if ts != 0 {
			snap.Timestamp = time.Unix(0, ts)
		}
		if err := decodeRotations(blob, &snap.Rotations); err != nil {
			return nil, fmt.Errorf("snapshot %d: %w", seq, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// LoadRootTrace returns the root trajectory of a session.
func (s *SessionStore) LoadRootTrace(sessionID string) ([]RootSample, error) {
	rows, err := s.db.Query(`
		SELECT seq, timestamp_ns, root_x, root_y, root_z
		FROM pose_frames
		WHERE session_id = ?
		ORDER BY frame_id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load root trace: %w", err)
	}
	defer rows.Close()

	var out []RootSample
	for rows.Next() {
		var seq int64
		var rs RootSample
		if err := rows.Scan(&seq, &rs.TimestampNs, &rs.Root.X, &rs.Root.Y, &rs.Root.Z); err != nil {
			return nil, fmt.Errorf("scan root sample: %w", err)
		}
		rs.Seq = uint64(seq)
		out = append(out, rs)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its frames.
func (s *SessionStore) DeleteSession(sessionID string) error {
	res, err := s.db.Exec(`DELETE FROM pose_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// Rotations are stored as (w, x, y, z) float64 per joint slot.
func encodeRotations(rots *[l2joints.Count]quat.Number) []byte {
	b := make([]byte, 0, rotationsBlobSize)
	for _, q := range rots {
		for _, v := range [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag} {
			b = binary.LittleEndian.AppendUint64(b, math.Float64bits(v))
		}
	}
	return b
}

func decodeRotations(b []byte, rots *[l2joints.Count]quat.Number) error {
	if len(b) != rotationsBlobSize {
		return fmt.Errorf("rotations blob is %d bytes, want %d", len(b), rotationsBlobSize)
	}
	f := func(i int) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:])) }
	for j := range rots {
		rots[j] = quat.Number{Real: f(4 * j), Imag: f(4*j + 1), Jmag: f(4*j + 2), Kmag: f(4*j + 3)}
	}
	return nil
}

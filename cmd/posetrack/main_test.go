package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/posetrack/internal/db"
	"github.com/banshee-data/posetrack/internal/pose"
	"github.com/banshee-data/posetrack/internal/pose/l3rig"
	sqlite "github.com/banshee-data/posetrack/internal/pose/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), args, &out, &errOut)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "posetrack dev (unknown, built unknown)\n", out)
}

func TestMigrateCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pose.db")

	out, err := execute(t, "--db", path, "migrate", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 0 (latest 2, dirty false)")

	out, err = execute(t, "--db", path, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2")

	out, err = execute(t, "--db", path, "migrate", "down")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 1")

	out, err = execute(t, "--db", path, "migrate", "force", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "schema version 2")

	_, err = execute(t, "--db", path, "migrate", "force", "two")
	assert.Error(t, err)
}

func TestRunRejectsBadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pose.db")

	_, err := execute(t, "--db", path, "run", "--source", "camera", "--http", "", "--grpc", "")
	assert.ErrorContains(t, err, "unknown source")

	_, err = execute(t, "--db", path, "run", "--source", "pcap", "--http", "", "--grpc", "")
	assert.ErrorContains(t, err, "--pcap is required")

	_, err = execute(t, "--db", path, "--config", "tuning.yaml", "run")
	assert.ErrorContains(t, err, ".json")
}

func TestSyntheticRunRecordAndReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pose.db")

	_, err := execute(t, "--db", path, "run",
		"--source", "synthetic", "--frames", "5",
		"--http", "", "--grpc", "", "--session-id", "synthetic-1")
	require.NoError(t, err)

	d, err := db.NewDB(path)
	require.NoError(t, err)
	sess, err := sqlite.NewSessionStore(d.DB).GetSession("synthetic-1")
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.Equal(t, "synthetic", sess.Source)
	assert.Equal(t, l3rig.TPoseRig().Name, sess.RigName)
	assert.Equal(t, "first", sess.SeedPolicy)
	assert.NotNil(t, sess.EndedAtNs)
	assert.Positive(t, sess.FrameCount)

	out, err := execute(t, "--db", path, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "synthetic-1")
	assert.True(t, strings.HasPrefix(out, "SESSION"))

	out, err = execute(t, "--db", path, "sessions", "show", "synthetic-1")
	require.NoError(t, err)
	var shown sqlite.Session
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, sess.FrameCount, shown.FrameCount)

	out, err = execute(t, "--db", path, "replay", "synthetic-1", "--verify", "--record")
	require.NoError(t, err)
	assert.Contains(t, out, "max rotation difference")

	out, err = execute(t, "--db", path, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "replay:synthetic-1")

	_, err = execute(t, "--db", path, "sessions", "delete", "synthetic-1")
	require.NoError(t, err)
	_, err = execute(t, "--db", path, "sessions", "show", "synthetic-1")
	assert.ErrorIs(t, err, sqlite.ErrSessionNotFound)
}

func TestRunWithoutRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pose.db")
	_, err := execute(t, "--db", path, "run",
		"--source", "synthetic", "--frames", "2",
		"--http", "", "--grpc", "", "--no-record")
	require.NoError(t, err)

	out, err := execute(t, "--db", path, "sessions", "list")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"), "header only")
}

func TestReplayUnknownSession(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pose.db")
	_, err := execute(t, "--db", path, "replay", "missing")
	assert.ErrorIs(t, err, sqlite.ErrSessionNotFound)
}

func TestSetupLoggingToDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var stderr bytes.Buffer
	c, err := setupLogging(&stderr, dir, true, false)
	require.NoError(t, err)
	t.Cleanup(func() { setupLogging(os.Stderr, "", false, false) })
	require.NoError(t, c.Close())

	ops, err := os.ReadFile(filepath.Join(dir, "ops.log"))
	require.NoError(t, err)
	assert.Contains(t, string(ops), "logging to "+dir)
	_, err = os.Stat(filepath.Join(dir, "trace.log"))
	assert.True(t, os.IsNotExist(err), "trace stream disabled")
	assert.Empty(t, stderr.String())
}

func TestFailingCommandClosesLogFiles(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")
	t.Cleanup(func() { setupLogging(os.Stderr, "", false, false) })

	_, err := execute(t, "--db", filepath.Join(dir, "pose.db"), "--log-dir", logDir, "replay", "missing")
	require.ErrorIs(t, err, sqlite.ErrSessionNotFound)

	log.Printf("written after exit")
	pose.Opsf("written after exit")

	ops, err := os.ReadFile(filepath.Join(logDir, "ops.log"))
	require.NoError(t, err)
	assert.Contains(t, string(ops), "logging to "+logDir)
	assert.NotContains(t, string(ops), "written after exit")
}

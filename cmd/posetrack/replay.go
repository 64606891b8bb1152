package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/banshee-data/posetrack/internal/pose/geom"
	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"github.com/banshee-data/posetrack/internal/pose/l3rig"
	"github.com/banshee-data/posetrack/internal/pose/l4retarget"
	"github.com/banshee-data/posetrack/internal/pose/pipeline"
	sqlite "github.com/banshee-data/posetrack/internal/pose/storage/sqlite"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

type replayOptions struct {
	rigPath   string
	verify    bool
	tolerance float64
	record    bool
}

func newReplayCmd(a *app) *cobra.Command {
	o := &replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay <session-id>",
		Short: "Re-run a recorded session's frames through a fresh session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()
			rig, err := loadRig(o.rigPath)
			if err != nil {
				return err
			}
			res, err := replaySession(cmd.Context(), sqlite.NewSessionStore(database.DB), args[0], rig, o)
			if err != nil {
				return err
			}
			res.print(cmd.OutOrStdout())
			if o.verify && !res.withinTolerance(o.tolerance) {
				return fmt.Errorf("replay of %s diverged from the recording", args[0])
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.rigPath, "rig", "", "bind-pose rig JSON (defaults to the built-in T-pose rig)")
	f.BoolVar(&o.verify, "verify", false, "compare replayed snapshots against the recorded ones")
	f.Float64Var(&o.tolerance, "tolerance", 1e-3, "largest accepted rotation difference in radians with --verify")
	f.BoolVar(&o.record, "record", false, "record the replay as a new session")
	return cmd
}

type snapshotCollector struct {
	snaps []l4retarget.Snapshot
}

func (c *snapshotCollector) PublishSnapshot(s *l4retarget.Snapshot) {
	c.snaps = append(c.snaps, *s)
}

type replayResult struct {
	SessionID   string
	ReplayID    string
	Frames      int
	Verified    bool
	MaxAngle    float64
	MaxRootDist float64
	WorstSeq    uint64
}

func (r replayResult) withinTolerance(tol float64) bool {
	return r.MaxAngle <= tol
}

func (r replayResult) print(w io.Writer) {
	fmt.Fprintf(w, "replayed %d frames of session %s", r.Frames, r.SessionID)
	if r.ReplayID != "" {
		fmt.Fprintf(w, " as %s", r.ReplayID)
	}
	fmt.Fprintln(w)
	if r.Verified {
		fmt.Fprintf(w, "max rotation difference %.3g rad (seq %d), max root difference %.3g\n",
			r.MaxAngle, r.WorstSeq, r.MaxRootDist)
	}
}

// replaySession rebuilds the recorded session's smoothing and scale
// settings and feeds its frames through in order.
func replaySession(ctx context.Context, store *sqlite.SessionStore, id string, rig *l3rig.Rig, o *replayOptions) (replayResult, error) {
	res := replayResult{SessionID: id}
	rec, err := store.GetSession(id)
	if err != nil {
		return res, err
	}
	policy, err := l2joints.ParseSeedPolicy(rec.SeedPolicy)
	if err != nil {
		return res, err
	}
	if rec.RigName != rig.Name {
		log.Printf("replay: session %s was recorded with rig %q, replaying with %q", id, rec.RigName, rig.Name)
	}
	frames, err := store.LoadFrames(id)
	if err != nil {
		return res, err
	}

	collect := &snapshotCollector{}
	cfg := pipeline.SessionConfig{
		Rig:             rig,
		SmoothingFactor: rec.SmoothingFactor,
		SeedPolicy:      policy,
		Retarget:        l4retarget.Config{PositionScale: rec.PositionScale},
		Sinks:           []pipeline.SnapshotSink{collect},
	}
	if o.record {
		cfg.ID = uuid.NewString()
		err := store.CreateSession(&sqlite.Session{
			SessionID:       cfg.ID,
			RigName:         rig.Name,
			Source:          "replay:" + id,
			SmoothingFactor: rec.SmoothingFactor,
			SeedPolicy:      rec.SeedPolicy,
			PositionScale:   rec.PositionScale,
		})
		if err != nil {
			return res, err
		}
		cfg.Recorder = store
		res.ReplayID = cfg.ID
		defer func() {
			if err := store.EndSession(cfg.ID, time.Now()); err != nil {
				log.Printf("failed to end session %s: %v", cfg.ID, err)
			}
		}()
	}

	session, err := pipeline.NewSession(cfg)
	if err != nil {
		return res, err
	}
	res.Frames, err = pipeline.Replay(ctx, session, frames)
	if err != nil {
		return res, err
	}

	if o.verify {
		want, err := store.LoadSnapshots(id)
		if err != nil {
			return res, err
		}
		if len(want) != len(collect.snaps) {
			return res, fmt.Errorf("recording has %d snapshots, replay produced %d", len(want), len(collect.snaps))
		}
		res.Verified = true
		for i := range want {
			got := &collect.snaps[i]
			for j := range got.Rotations {
				if d := geom.Angle(want[i].Rotations[j], got.Rotations[j]); d > res.MaxAngle || math.IsNaN(d) {
					res.MaxAngle = d
					res.WorstSeq = got.Seq
				}
			}
			res.MaxRootDist = math.Max(res.MaxRootDist, r3.Norm(r3.Sub(want[i].RootPosition, got.RootPosition)))
		}
	}
	return res, nil
}

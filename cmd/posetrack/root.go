package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/banshee-data/posetrack/internal/config"
	"github.com/banshee-data/posetrack/internal/db"
	"github.com/banshee-data/posetrack/internal/pose/l3rig"
	"github.com/banshee-data/posetrack/internal/version"
	"github.com/spf13/cobra"
)

// app carries the persistent flags and what PersistentPreRunE builds from
// them.
type app struct {
	configPath string
	dbPath     string
	logDir     string
	debug      bool
	trace      bool

	tuning *config.TuningConfig
	logs   io.Closer
}

// run executes the command tree with args and closes the log files on every
// exit path. Cobra skips PersistentPostRunE when RunE fails.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	if cerr := a.closeLogs(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "posetrack",
		Short:         "Retarget pose landmarks onto a humanoid rig",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logs, err := setupLogging(cmd.ErrOrStderr(), a.logDir, a.debug, a.trace)
			if err != nil {
				return err
			}
			a.logs = logs

			if a.configPath == "" {
				a.tuning = config.DefaultTuningConfig()
				return nil
			}
			a.tuning, err = config.LoadTuningConfig(a.configPath)
			if err != nil {
				return err
			}
			log.Printf("loaded tuning config from %s", a.configPath)
			return nil
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "tuning config JSON (defaults built in)")
	pf.StringVar(&a.dbPath, "db", "posetrack.db", "session database path")
	pf.StringVar(&a.logDir, "log-dir", "", "write rotating ops/diag/trace logs to this directory instead of stderr")
	pf.BoolVar(&a.debug, "debug", false, "enable the diagnostic log stream")
	pf.BoolVar(&a.trace, "trace", false, "enable the per-frame trace log stream")

	root.AddCommand(
		newRunCmd(a),
		newReplayCmd(a),
		newSessionsCmd(a),
		newMigrateCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) closeLogs() error {
	if a.logs == nil {
		return nil
	}
	err := a.logs.Close()
	a.logs = nil
	return err
}

// openDB opens and migrates the session database.
func (a *app) openDB() (*db.DB, error) {
	d, err := db.NewDB(a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", a.dbPath, err)
	}
	return d, nil
}

// loadRig reads a rig file, or returns the built-in T-pose rig when path is
// empty.
func loadRig(path string) (*l3rig.Rig, error) {
	if path == "" {
		return l3rig.TPoseRig(), nil
	}
	rig, err := l3rig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load rig: %w", err)
	}
	return rig, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return nil
		},
	}
}

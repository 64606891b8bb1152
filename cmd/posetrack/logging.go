package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/posetrack/internal/pose"
	"github.com/banshee-data/posetrack/internal/version"
	"gopkg.in/natefinch/lumberjack.v2"
)

type closers []io.Closer

func (c closers) Close() error {
	var errs []error
	for _, cl := range c {
		errs = append(errs, cl.Close())
	}
	return errors.Join(errs...)
}

// fileLogs owns the rotating log files. Close points the streams back at
// stderr first, as lumberjack reopens a closed file on the next write.
type fileLogs struct {
	stderr io.Writer
	files  closers
}

func (f fileLogs) Close() error {
	pose.SetLogWriters(pose.LogWriters{Ops: f.stderr})
	log.SetOutput(f.stderr)
	return f.files.Close()
}

func rotatingFile(dir, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name),
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
}

// setupLogging routes the ops, diag and trace streams. Without a log
// directory everything enabled goes to stderr; with one each stream gets
// its own rotating file. The standard logger follows the ops stream.
func setupLogging(stderr io.Writer, dir string, diag, trace bool) (io.Closer, error) {
	if dir == "" {
		w := pose.LogWriters{Ops: stderr}
		if diag {
			w.Diag = stderr
		}
		if trace {
			w.Trace = stderr
		}
		pose.SetLogWriters(w)
		log.SetOutput(stderr)
		return closers(nil), nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	ops := rotatingFile(dir, "ops.log")
	w := pose.LogWriters{Ops: ops}
	c := closers{ops}
	if diag {
		d := rotatingFile(dir, "diag.log")
		w.Diag = d
		c = append(c, d)
	}
	if trace {
		t := rotatingFile(dir, "trace.log")
		w.Trace = t
		c = append(c, t)
	}
	pose.SetLogWriters(w)
	log.SetOutput(ops)
	log.Printf("%s logging to %s", version.String(), dir)
	return fileLogs{stderr: stderr, files: c}, nil
}

package pipeline

import (
	"context"

	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
	"github.com/banshee-data/posetrack/internal/timeutil"
)

// SyntheticSource publishes generated frames at the generator's period.
type SyntheticSource struct {
	Generator *l1landmarks.Generator
	Sink      l1landmarks.FrameSink
	Clock     timeutil.Clock
	// Limit stops the source after this many frames; zero runs until ctx
	// is done.
	Limit uint64
}

// Run publishes one frame per tick. It returns ctx.Err() on cancellation
// and nil once Limit frames have been sent.
func (s *SyntheticSource) Run(ctx context.Context) error {
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	ticker := clock.NewTicker(s.Generator.Period)
	defer ticker.Stop()

	diagf("synthetic source started: period=%v limit=%d", s.Generator.Period, s.Limit)
	var sent uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			s.Sink.Publish(s.Generator.Next())
			sent++
			if s.Limit > 0 && sent >= s.Limit {
				return nil
			}
		}
	}
}

// Replay feeds recorded frames through the session in order, bypassing the
// mailbox so that no frame is dropped. It returns the number of frames
// processed.
func Replay(ctx context.Context, s *Session, frames []l1landmarks.Frame) (int, error) {
	for i := range frames {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		s.ProcessFrame(&frames[i])
	}
	opsf("session %s: replayed %d frames", s.ID(), len(frames))
	return len(frames), nil
}

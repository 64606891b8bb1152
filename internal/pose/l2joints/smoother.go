package l2joints

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// SeedPolicy decides what the smoothing history holds before the first frame.
type SeedPolicy int

const (
	// SeedFromFirst copies the first frame into the history, so the first
	// output equals the first input.
	SeedFromFirst SeedPolicy = iota
	// SeedFromZero starts the history at the origin. With factor 0.5 the
	// first output is half the input and the pose eases in from the origin.
	SeedFromZero
)

func (p SeedPolicy) String() string {
	switch p {
	case SeedFromFirst:
		return "first"
	case SeedFromZero:
		return "zero"
	default:
		return fmt.Sprintf("SeedPolicy(%d)", int(p))
	}
}

// ParseSeedPolicy is the inverse of SeedPolicy.String.
func ParseSeedPolicy(s string) (SeedPolicy, error) {
	switch s {
	case "first":
		return SeedFromFirst, nil
	case "zero":
		return SeedFromZero, nil
	default:
		return 0, fmt.Errorf("unknown seed policy %q", s)
	}
}

// Smoother is the session-scoped first-order low-pass filter applied to
// every joint position: out = prev*factor + cur*(1-factor), prev = out.
type Smoother struct {
	factor float64
	policy SeedPolicy
	prev   [Count]r3.Vec
	frames uint64
}

// NewSmoother returns a Smoother with the given history weight. factor must
// be in [0, 1); 0 disables smoothing.
func NewSmoother(factor float64, policy SeedPolicy) (*Smoother, error) {
	if !(factor >= 0 && factor < 1) {
		return nil, fmt.Errorf("smoothing factor %v outside [0, 1)", factor)
	}
	if policy != SeedFromFirst && policy != SeedFromZero {
		return nil, fmt.Errorf("unknown seed policy %d", int(policy))
	}
	return &Smoother{factor: factor, policy: policy}, nil
}

// Smooth filters cur and advances the history.
func (s *Smoother) Smooth(cur *[Count]r3.Vec) [Count]r3.Vec {
	if s.frames == 0 && s.policy == SeedFromFirst {
		s.prev = *cur
	}
	s.frames++
	for i := range s.prev {
		s.prev[i] = r3.Add(r3.Scale(s.factor, s.prev[i]), r3.Scale(1-s.factor, cur[i]))
	}
	return s.prev
}

// Reset forgets the history; the next frame is seeded again.
func (s *Smoother) Reset() {
	s.prev = [Count]r3.Vec{}
	s.frames = 0
}

// Frames returns how many frames have been smoothed since the last reset.
func (s *Smoother) Frames() uint64 { return s.frames }

// Factor returns the history weight.
func (s *Smoother) Factor() float64 { return s.factor }

// Policy returns the seeding policy.
func (s *Smoother) Policy() SeedPolicy { return s.policy }

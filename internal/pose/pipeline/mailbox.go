package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
)

// ErrMailboxClosed is returned by Take once the mailbox is closed and empty.
var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox is the single-slot handoff between a frame producer and the
// session loop. Publish never blocks: a frame the loop has not taken yet is
// overwritten and counted as dropped, so latency stays bounded at one frame.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	frame  l1landmarks.Frame
	full   bool
	closed bool

	published atomic.Uint64
	drops     atomic.Uint64
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Publish stores f, replacing any frame not yet taken. Frames published
// after Close are discarded.
func (m *Mailbox) Publish(f l1landmarks.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.full {
		m.drops.Add(1)
	}
	m.frame = f
	m.full = true
	m.published.Add(1)
	m.cond.Signal()
}

// Take blocks until a frame is available, the mailbox is closed or ctx is
// done. A frame published before Close is still delivered.
func (m *Mailbox) Take(ctx context.Context) (l1landmarks.Frame, error) {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.cond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for !m.full {
		if m.closed {
			return l1landmarks.Frame{}, ErrMailboxClosed
		}
		if err := ctx.Err(); err != nil {
			return l1landmarks.Frame{}, err
		}
		m.cond.Wait()
	}
	f := m.frame
	m.full = false
	m.frame = l1landmarks.Frame{}
	return f, nil
}

// Close wakes any waiting Take. It is safe to call more than once.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
}

// Published returns how many frames were accepted.
func (m *Mailbox) Published() uint64 { return m.published.Load() }

// Drops returns how many frames were overwritten before being taken.
func (m *Mailbox) Drops() uint64 { return m.drops.Load() }

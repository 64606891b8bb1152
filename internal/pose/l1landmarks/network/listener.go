// Package network receives landmark datagrams from the pose tracker over
// UDP or from a packet capture and hands decoded frames to a FrameSink.
package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/posetrack/internal/pose"
	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
)

// DefaultPort is the UDP port the tracker sends to unless configured.
const DefaultPort = 5005

// PacketStatsInterface collects listener counters.
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddRejected()
	AddFrame()
	LogStats()
}

// Parser decodes one datagram into a frame.
type Parser interface {
	ParseDatagram(b []byte) (l1landmarks.Frame, error)
}

// UDPListener receives landmark datagrams and forwards decoded frames.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	factory     UDPSocketFactory
	stats       PacketStatsInterface
	parser      Parser
	sink        l1landmarks.FrameSink

	mu     sync.Mutex
	conn   UDPSocket
	closed bool
}

// UDPListenerConfig contains configuration options for the UDP listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Stats       PacketStatsInterface
	Parser      Parser
	Sink        l1landmarks.FrameSink
	// SocketFactory defaults to RealUDPSocketFactory.
	SocketFactory UDPSocketFactory
}

// NewUDPListener creates a listener. A nil Stats gets a no-op collector and
// a nil Parser gets one with the default projector.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	stats := config.Stats
	if stats == nil {
		stats = noopStats{}
	}
	parser := config.Parser
	if parser == nil {
		parser = l1landmarks.NewParser(l1landmarks.DefaultProjector())
	}
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	factory := config.SocketFactory
	if factory == nil {
		factory = RealUDPSocketFactory{}
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		factory:     factory,
		stats:       stats,
		parser:      parser,
		sink:        config.Sink,
	}
}

type noopStats struct{}

func (noopStats) AddPacket(int) {}
func (noopStats) AddRejected()  {}
func (noopStats) AddFrame()     {}
func (noopStats) LogStats()     {}

// Start listens until ctx is cancelled or Close is called. It returns
// ctx.Err() or net.ErrClosed respectively.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := l.factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return net.ErrClosed
	}
	l.conn = conn
	l.mu.Unlock()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			pose.Opsf("Warning: failed to set UDP receive buffer size to %d: %v", l.rcvBuf, err)
		}
	}
	pose.Opsf("UDP listener started on %s", conn.LocalAddr())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.startStatsLogging(ctx)

	buffer := make([]byte, 2*l1landmarks.DATAGRAM_SIZE)
	for {
		if ctx.Err() != nil {
			pose.Opsf("UDP listener stopping due to context cancellation")
			return ctx.Err()
		}
		// Short deadline so cancellation is noticed promptly.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			pose.Opsf("UDP read error: %v", err)
			continue
		}
		if err := l.handlePacket(buffer[:n]); err != nil {
			pose.Diagf("rejected datagram from %v: %v", from, err)
		}
	}
}

func (l *UDPListener) handlePacket(packet []byte) error {
	l.stats.AddPacket(len(packet))
	f, err := l.parser.ParseDatagram(packet)
	if err != nil {
		l.stats.AddRejected()
		return err
	}
	l.stats.AddFrame()
	pose.Tracef("frame seq=%d", f.Seq)
	if l.sink != nil {
		l.sink.Publish(f)
	}
	return nil
}

func (l *UDPListener) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}

// Close closes the socket, unblocking Start. A Start that has not opened
// its socket yet returns net.ErrClosed instead of listening.
func (l *UDPListener) Close() error {
	l.mu.Lock()
	l.closed = true
	conn := l.conn
	l.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

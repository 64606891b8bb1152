// Package visualiser streams retargeted skeletons to renderer clients over
// gRPC. The Publisher is a pipeline sink: it never blocks the session loop
// and drops frames for clients that cannot keep up.
package visualiser

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/posetrack/internal/pose"
	"github.com/banshee-data/posetrack/internal/pose/l4retarget"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Config holds configuration for the visualiser gRPC server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:50061")
	ListenAddr string
	// MaxClients is the maximum number of concurrent streaming clients
	MaxClients int
	// ClientBuffer is the per-client frame queue depth.
	ClientBuffer int
	// DefaultMaxRate caps frames per second for clients that do not ask
	// for a rate. Zero sends every frame.
	DefaultMaxRate float64
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:     "localhost:50061",
		MaxClients:     5,
		ClientBuffer:   4,
		DefaultMaxRate: 30,
	}
}

// Stats is a point-in-time view of the publisher.
type Stats struct {
	Running       bool   `json:"running"`
	FrameCount    uint64 `json:"frame_count"`
	DroppedFrames uint64 `json:"dropped_frames"`
	RateSkipped   uint64 `json:"rate_skipped"`
	ClientCount   int32  `json:"client_count"`
}

// Publisher manages the gRPC server and skeleton fan-out.
type Publisher struct {
	config   Config
	server   *grpc.Server
	listener net.Listener

	frameChan chan *SkeletonFrame
	clients   map[string]*clientStream
	clientsMu sync.RWMutex
	nextID    atomic.Uint64

	frameCount    atomic.Uint64
	droppedFrames atomic.Uint64
	rateSkipped   atomic.Uint64
	clientCount   atomic.Int32

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type clientStream struct {
	id      string
	frameCh chan *SkeletonFrame
}

// NewPublisher creates a new Publisher with the given configuration.
func NewPublisher(cfg Config) *Publisher {
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = 1
	}
	return &Publisher{
		config:    cfg,
		frameChan: make(chan *SkeletonFrame, 16),
		clients:   make(map[string]*clientStream),
		stopCh:    make(chan struct{}),
	}
}

// Start listens on the configured address and serves in the background.
func (p *Publisher) Start() error {
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	if err := p.Serve(lis); err != nil {
		lis.Close()
		return err
	}
	return nil
}

// Serve serves on lis in the background. A Publisher serves at most once.
func (p *Publisher) Serve(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("publisher already running")
	}
	p.listener = lis
	p.server = grpc.NewServer()
	RegisterSkeletonService(p.server, p)

	p.wg.Add(2)
	go p.broadcastLoop()
	go func() {
		defer p.wg.Done()
		pose.Opsf("visualiser: gRPC server listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			pose.Opsf("visualiser: gRPC server error: %v", err)
		}
	}()
	return nil
}

// Addr returns the listening address, or nil before Serve.
func (p *Publisher) Addr() net.Addr {
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// GRPCServer returns the underlying server, or nil before Serve.
func (p *Publisher) GRPCServer() *grpc.Server { return p.server }

// Stop ends every stream and stops the server.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)
	p.server.GracefulStop()
	p.wg.Wait()
	pose.Opsf("visualiser: gRPC server stopped")
}

// PublishSnapshot queues a snapshot for every connected client. It never
// blocks; a full queue drops the frame.
func (p *Publisher) PublishSnapshot(s *l4retarget.Snapshot) {
	if !p.running.Load() {
		return
	}
	f := FrameFromSnapshot(s)
	select {
	case p.frameChan <- f:
		p.frameCount.Add(1)
	default:
		dropped := p.droppedFrames.Add(1)
		pose.Diagf("visualiser: dropped frame %d (total dropped: %d), queue full", f.Seq, dropped)
	}
}

// Stats returns the publisher counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		Running:       p.running.Load(),
		FrameCount:    p.frameCount.Load(),
		DroppedFrames: p.droppedFrames.Load(),
		RateSkipped:   p.rateSkipped.Load(),
		ClientCount:   p.clientCount.Load(),
	}
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case f := <-p.frameChan:
			p.clientsMu.RLock()
			for _, c := range p.clients {
				select {
				case c.frameCh <- f:
				default:
					p.droppedFrames.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

func (p *Publisher) addClient(id string) (*clientStream, error) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if p.config.MaxClients > 0 && len(p.clients) >= p.config.MaxClients {
		return nil, status.Errorf(codes.ResourceExhausted, "client limit of %d reached", p.config.MaxClients)
	}
	if id == "" {
		id = fmt.Sprintf("client-%d", p.nextID.Add(1))
	}
	if _, taken := p.clients[id]; taken {
		id = fmt.Sprintf("%s-%d", id, p.nextID.Add(1))
	}
	c := &clientStream{id: id, frameCh: make(chan *SkeletonFrame, p.config.ClientBuffer)}
	p.clients[id] = c
	n := p.clientCount.Add(1)
	pose.Opsf("visualiser: client connected: %s (total: %d)", id, n)
	return c, nil
}

func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if _, ok := p.clients[id]; !ok {
		return
	}
	delete(p.clients, id)
	n := p.clientCount.Add(-1)
	pose.Opsf("visualiser: client disconnected: %s (remaining: %d)", id, n)
}

// StreamSkeletons serves one client until it disconnects or the publisher
// stops.
func (p *Publisher) StreamSkeletons(req *StreamRequest, stream SkeletonStream) error {
	c, err := p.addClient(req.ClientID)
	if err != nil {
		return err
	}
	defer p.removeClient(c.id)

	maxRate := req.MaxRate
	if maxRate <= 0 {
		maxRate = p.config.DefaultMaxRate
	}
	var limiter *rate.Limiter
	if maxRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(maxRate), 1)
	}

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case f := <-c.frameCh:
			if limiter != nil && !limiter.Allow() {
				p.rateSkipped.Add(1)
				continue
			}
			if err := stream.Send(f); err != nil {
				return err
			}
		}
	}
}

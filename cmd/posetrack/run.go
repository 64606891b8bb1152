package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/banshee-data/posetrack/internal/config"
	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
	"github.com/banshee-data/posetrack/internal/pose/l1landmarks/network"
	"github.com/banshee-data/posetrack/internal/pose/l2joints"
	"github.com/banshee-data/posetrack/internal/pose/l4retarget"
	"github.com/banshee-data/posetrack/internal/pose/monitor"
	"github.com/banshee-data/posetrack/internal/pose/pipeline"
	sqlite "github.com/banshee-data/posetrack/internal/pose/storage/sqlite"
	"github.com/banshee-data/posetrack/internal/pose/visualiser"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// Frame sources accepted by --source.
const (
	sourceUDP       = "udp"
	sourcePCAP      = "pcap"
	sourceSynthetic = "synthetic"
)

const traceCapacity = 900 // 30 s at 30 Hz

type runOptions struct {
	source    string
	udpAddr   string
	pcapFile  string
	pcapPort  int
	frames    uint64
	rigPath   string
	httpAddr  string
	grpcAddr  string
	noRecord  bool
	sessionID string
}

func newRunCmd(a *app) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Retarget a live or replayed landmark stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), a, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.source, "source", sourceUDP, "frame source: udp, pcap or synthetic")
	f.StringVar(&o.udpAddr, "udp", fmt.Sprintf(":%d", network.DefaultPort), "UDP listen address for tracker datagrams")
	f.StringVar(&o.pcapFile, "pcap", "", "capture file to read when --source=pcap")
	f.IntVar(&o.pcapPort, "pcap-port", network.DefaultPort, "UDP destination port to select from the capture")
	f.Uint64Var(&o.frames, "frames", 0, "stop the synthetic source after this many frames (0 runs until interrupted)")
	f.StringVar(&o.rigPath, "rig", "", "bind-pose rig JSON (defaults to the built-in T-pose rig)")
	f.StringVar(&o.httpAddr, "http", ":8090", "monitor HTTP listen address (empty disables)")
	f.StringVar(&o.grpcAddr, "grpc", visualiser.DefaultConfig().ListenAddr, "skeleton stream gRPC listen address (empty disables)")
	f.BoolVar(&o.noRecord, "no-record", false, "do not record frames even if record_frames is set")
	f.StringVar(&o.sessionID, "session-id", "", "session ID (defaults to a new UUID)")
	return cmd
}

// parserFor builds the datagram parser the tuning config describes.
func parserFor(tuning *config.TuningConfig) *l1landmarks.Parser {
	p := l1landmarks.NewParser(l1landmarks.Projector{
		Width:      tuning.GetScreenWidth(),
		Height:     tuning.GetScreenHeight(),
		DepthScale: tuning.GetDepthScale(),
	})
	p.ForceProject = tuning.GetLandmarkSpace() == config.LandmarkSpaceScreen
	return p
}

func seedPolicyFor(tuning *config.TuningConfig) l2joints.SeedPolicy {
	if tuning.GetSeedFromFirst() {
		return l2joints.SeedFromFirst
	}
	return l2joints.SeedFromZero
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runSession(ctx context.Context, a *app, o *runOptions) error {
	switch o.source {
	case sourceUDP, sourceSynthetic:
	case sourcePCAP:
		if o.pcapFile == "" {
			return errors.New("--pcap is required with --source=pcap")
		}
	default:
		return fmt.Errorf("unknown source %q", o.source)
	}

	tuning := a.tuning
	rig, err := loadRig(o.rigPath)
	if err != nil {
		return err
	}
	id := o.sessionID
	if id == "" {
		id = uuid.NewString()
	}
	policy := seedPolicyFor(tuning)

	// Opening the database also serves the session list on the monitor,
	// so it is needed even when this run is not recorded.
	database, err := a.openDB()
	if err != nil {
		return err
	}
	defer database.Close()
	store := sqlite.NewSessionStore(database.DB)

	var recorder pipeline.FrameRecorder
	if tuning.GetRecordFrames() && !o.noRecord {
		err := store.CreateSession(&sqlite.Session{
			SessionID:       id,
			RigName:         rig.Name,
			Source:          o.source,
			SmoothingFactor: tuning.GetSmoothingFactor(),
			SeedPolicy:      policy.String(),
			PositionScale:   tuning.GetPositionScale(),
		})
		if err != nil {
			return err
		}
		recorder = store
		defer func() {
			if err := store.EndSession(id, time.Now()); err != nil {
				log.Printf("failed to end session %s: %v", id, err)
			}
		}()
	}

	trace := monitor.NewTraceBuffer(traceCapacity)
	sinks := []pipeline.SnapshotSink{trace}

	var publisher *visualiser.Publisher
	if o.grpcAddr != "" {
		vcfg := visualiser.DefaultConfig()
		vcfg.ListenAddr = o.grpcAddr
		vcfg.DefaultMaxRate = tuning.GetPublishMaxRate()
		publisher = visualiser.NewPublisher(vcfg)
		if err := publisher.Start(); err != nil {
			return err
		}
		defer publisher.Stop()
		sinks = append(sinks, publisher)
	}

	session, err := pipeline.NewSession(pipeline.SessionConfig{
		ID:              id,
		Rig:             rig,
		SmoothingFactor: tuning.GetSmoothingFactor(),
		SeedPolicy:      policy,
		Retarget:        l4retarget.Config{PositionScale: tuning.GetPositionScale()},
		Sinks:           sinks,
		Recorder:        recorder,
	})
	if err != nil {
		return err
	}

	// runCtx ends when the session loop does, so finite sources shut the
	// monitor down once their frames are drained.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	mb := pipeline.NewMailbox()
	packetStats := network.NewPacketStats()

	g.Go(func() error {
		defer cancel()
		return ignoreCanceled(session.Run(gctx, mb))
	})

	g.Go(func() error {
		defer mb.Close()
		switch o.source {
		case sourcePCAP:
			return ignoreCanceled(network.ReadPCAPFile(gctx, o.pcapFile, o.pcapPort, parserFor(tuning), mb, packetStats))
		case sourceSynthetic:
			src := &pipeline.SyntheticSource{
				Generator: l1landmarks.NewGenerator(time.Now()),
				Sink:      mb,
				Limit:     o.frames,
			}
			return ignoreCanceled(src.Run(gctx))
		default:
			l := network.NewUDPListener(network.UDPListenerConfig{
				Address:     o.udpAddr,
				RcvBuf:      tuning.GetUDPRcvBuf(),
				LogInterval: tuning.GetStatsInterval(),
				Stats:       packetStats,
				Parser:      parserFor(tuning),
				Sink:        mb,
			})
			return ignoreCanceled(l.Start(gctx))
		}
	})

	if o.httpAddr != "" {
		wcfg := monitor.WebServerConfig{
			Address:     o.httpAddr,
			Session:     session,
			PacketStats: packetStats.Snapshot,
			Sessions:    store,
			DB:          database,
			Trace:       trace,
		}
		if publisher != nil {
			wcfg.PublisherStats = publisher.Stats
		}
		ws, err := monitor.NewWebServer(wcfg)
		if err != nil {
			return err
		}
		g.Go(func() error { return ws.Start(gctx) })
	}

	g.Go(func() error {
		logSessionStats(gctx, session, tuning.GetStatsInterval())
		return nil
	})

	err = g.Wait()
	st := session.Stats()
	log.Printf("session %s finished: received=%d processed=%d dropped=%d forward_holds=%d record_errors=%d",
		st.SessionID, st.FramesReceived, st.FramesProcessed, st.FramesDropped, st.ForwardHolds, st.RecordErrors)
	return err
}

func logSessionStats(ctx context.Context, s *pipeline.Session, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Stats()
			log.Printf("session %s: received=%d processed=%d dropped=%d latency=%v",
				st.SessionID, st.FramesReceived, st.FramesProcessed, st.FramesDropped, st.LastLatency)
		}
	}
}

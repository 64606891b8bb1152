//go:build pcap
// +build pcap

package network

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/posetrack/internal/pose"
	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// ReadPCAPFile replays landmark datagrams captured on udpPort. Frame
// timestamps are replaced by capture timestamps when the sender left them
// unset. Only available when building with the pcap tag.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, parser Parser, sink l1landmarks.FrameSink, stats PacketStatsInterface) error {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	defer handle.Close()

	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}
	pose.Diagf("PCAP BPF filter set: %s", filterStr)

	if stats == nil {
		stats = noopStats{}
	}
	source := gopacket.NewPacketSource(handle, handle.LinkType())
	count := 0
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			pose.Opsf("PCAP reader stopping due to context cancellation (processed %d packets)", count)
			return ctx.Err()
		case packet := <-source.Packets():
			if packet == nil {
				pose.Opsf("PCAP file reading complete: %d packets in %v", count, time.Since(startTime))
				return nil
			}
			count++

			udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}
			stats.AddPacket(len(udp.Payload))

			f, err := parser.ParseDatagram(udp.Payload)
			if err != nil {
				stats.AddRejected()
				pose.Diagf("PCAP packet %d rejected: %v", count, err)
				continue
			}
			if f.Timestamp.IsZero() {
				f.Timestamp = packet.Metadata().Timestamp
			}
			stats.AddFrame()
			if sink != nil {
				sink.Publish(f)
			}
		}
	}
}

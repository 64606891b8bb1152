//go:build !pcap
// +build !pcap

package network

import (
	"context"
	"errors"

	"github.com/banshee-data/posetrack/internal/pose/l1landmarks"
)

// ErrPCAPDisabled is returned by ReadPCAPFile in builds without the pcap tag.
var ErrPCAPDisabled = errors.New("PCAP support not enabled: rebuild with -tags=pcap")

// ReadPCAPFile is unavailable without the pcap build tag.
func ReadPCAPFile(ctx context.Context, pcapFile string, udpPort int, parser Parser, sink l1landmarks.FrameSink, stats PacketStatsInterface) error {
	return ErrPCAPDisabled
}

//go:build !pcap
// +build !pcap

package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadPCAPFile_Disabled(t *testing.T) {
	err := ReadPCAPFile(context.Background(), "capture.pcap", DefaultPort, nil, nil, nil)
	assert.ErrorIs(t, err, ErrPCAPDisabled)
}

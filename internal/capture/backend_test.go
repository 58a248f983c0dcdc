package capture

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/dissect/internal/config"
	"firestige.xyz/dissect/internal/core"
)

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(config.CaptureConfig{})
	require.NoError(t, err)
	assert.IsType(t, PcapBackend{}, b)

	b, err = NewBackend(config.CaptureConfig{Backend: "pcap"})
	require.NoError(t, err)
	assert.IsType(t, PcapBackend{}, b)

	_, err = NewBackend(config.CaptureConfig{Backend: "netmap"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestNewBackendAFPacket(t *testing.T) {
	b, err := NewBackend(config.CaptureConfig{Backend: "afpacket", BufferMB: 4})
	if runtime.GOOS != "linux" {
		assert.ErrorIs(t, err, core.ErrConfigInvalid)
		return
	}
	require.NoError(t, err)

	devices, err := b.Devices()
	require.NoError(t, err)
	for _, d := range devices {
		if d.Name == "lo" {
			assert.True(t, d.Loopback)
		}
	}
}

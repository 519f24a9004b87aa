package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsWhenInputEmpty(t *testing.T) {
	cfg, err := FromTOML("")
	require.NoError(t, err)
	assert.Equal(t, uint16(7667), cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 512, cfg.Store.CompressionThreshold)
	assert.Equal(t, uint32(4*1024*1024), cfg.Protocol.MaxMessageBytes)
}

func TestParsesPartialOverrides(t *testing.T) {
	cfg, err := FromTOML(`
[server]
host = "0.0.0.0"
port = 7777

[store]
compression_threshold = 2048

[protocol]
idle_timeout_secs = 5
`)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, uint16(7777), cfg.Server.Port)
	assert.Equal(t, 2048, cfg.Store.CompressionThreshold)
	assert.Equal(t, uint64(250), cfg.Store.CleanupIntervalMS)
	assert.Equal(t, uint64(5), cfg.Protocol.IdleTimeoutSecs)
	assert.Equal(t, Default().Protocol.MaxMessageBytes, cfg.Protocol.MaxMessageBytes)
}

func TestRejectsInvalidProtocolValues(t *testing.T) {
	_, err := FromTOML("[protocol]\nmax_message_bytes = 0")
	require.Error(t, err)
}

func TestRejectsZeroPort(t *testing.T) {
	_, err := FromTOML("[server]\nport = 0")
	require.Error(t, err)
}

func TestBlankHostHealsToLoopback(t *testing.T) {
	cfg, err := FromTOML("[server]\nhost = \"   \"\nport = 7667")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestRejectsZeroDefaultTTL(t *testing.T) {
	_, err := FromTOML("[store]\ndefault_ttl_secs = 0")
	require.Error(t, err)
}

func TestSocketAddrResolvesHostPort(t *testing.T) {
	cfg := Default()
	addr, err := cfg.Server.SocketAddr()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7667", addr)
}

package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viktor111/keyz/internal/clock"
	"github.com/viktor111/keyz/internal/protocol"
	"github.com/viktor111/keyz/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s := store.NewWithClock(store.DefaultConfig(), clock.NewFixed(1_000_000))
	t.Cleanup(s.Close)
	return s
}

func TestDispatchSetGetDel(t *testing.T) {
	s := newTestStore(t)
	cfg := protocol.DefaultConfig()

	resp, err := Dispatch("SET a hello", s, cfg)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	resp, err = Dispatch("GET a", s, cfg)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp)

	resp, err = Dispatch("DEL a", s, cfg)
	require.NoError(t, err)
	assert.Equal(t, "a", resp)

	resp, err = Dispatch("GET a", s, cfg)
	require.NoError(t, err)
	assert.Equal(t, "null", resp)
}

func TestDispatchGetMissingKeyReturnsNull(t *testing.T) {
	s := newTestStore(t)
	resp, err := Dispatch("GET missing", s, protocol.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "null", resp)
}

func TestDispatchUnknownCommandReturnsConfiguredLiteral(t *testing.T) {
	s := newTestStore(t)
	cfg := protocol.DefaultConfig()
	cfg.InvalidCommandResponse = "error:custom invalid"

	resp, err := Dispatch("NOOP", s, cfg)
	require.NoError(t, err)
	assert.Equal(t, "error:custom invalid", resp)
}

func TestDispatchInvalidSetSyntaxReturnsFixedLiteral(t *testing.T) {
	s := newTestStore(t)
	resp, err := Dispatch("SET onlykey", s, protocol.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "error:set command invalid", resp)
}

func TestDispatchExInReportsRemainingSeconds(t *testing.T) {
	s := newTestStore(t)
	cfg := protocol.DefaultConfig()

	_, err := Dispatch("SET a v EX 10", s, cfg)
	require.NoError(t, err)

	resp, err := Dispatch("EXIN a", s, cfg)
	require.NoError(t, err)
	assert.Equal(t, "10", resp)
}

func TestDispatchInfoRendersJSON(t *testing.T) {
	s := newTestStore(t)
	resp, err := Dispatch("INFO", s, protocol.DefaultConfig())
	require.NoError(t, err)
	assert.Contains(t, resp, "\"keys\":0")
	assert.Contains(t, resp, "\"close_command\":\"CLOSE\"")
}

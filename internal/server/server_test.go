package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/viktor111/keyz/internal/dispatch"
	"github.com/viktor111/keyz/internal/protocol"
	"github.com/viktor111/keyz/internal/store"
)

// panicStore panics on any Insert, to exercise the connection handler's
// panic recovery without reaching into the real store.
type panicStore struct{ *store.Store }

func (panicStore) Insert(key string, value []byte, ttlSeconds uint64) error {
	panic("boom")
}

func startTestServer(t *testing.T, protoCfg protocol.Config) net.Addr {
	t.Helper()

	st := store.New()
	t.Cleanup(st.Close)

	return startTestServerWithStore(t, protoCfg, st)
}

func startTestServerWithStore(t *testing.T, protoCfg protocol.Config, st dispatch.Store) net.Addr {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := New(listener, st, protoCfg, nil)
	stop := make(chan struct{})
	t.Cleanup(func() {
		close(stop)
		listener.Close()
	})
	go srv.Serve(stop)

	return listener.Addr()
}

func roundTrip(t *testing.T, conn net.Conn, message string) string {
	t.Helper()
	require.NoError(t, protocol.WriteFrame(conn, message))
	resp, err := protocol.ReadFrame(conn, 4*1024*1024)
	require.NoError(t, err)
	return resp
}

func TestSetGetDelRoundTrip(t *testing.T) {
	addr := startTestServer(t, protocol.DefaultConfig())

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, "ok", roundTrip(t, conn, "SET a hello"))
	require.Equal(t, "hello", roundTrip(t, conn, "GET a"))
	require.Equal(t, "a", roundTrip(t, conn, "DEL a"))
	require.Equal(t, "null", roundTrip(t, conn, "GET a"))
}

func TestUnknownCommandKeepsConnectionOpen(t *testing.T) {
	addr := startTestServer(t, protocol.DefaultConfig())

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, "error:invalid command", roundTrip(t, conn, "NOOP"))
	require.Equal(t, "ok", roundTrip(t, conn, "SET a b"))
}

func TestCloseCommandEndsConnection(t *testing.T) {
	addr := startTestServer(t, protocol.DefaultConfig())

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, "Closing connection", roundTrip(t, conn, "CLOSE"))

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = protocol.ReadFrame(conn, 4*1024*1024)
	require.Error(t, err)
	require.True(t, protocol.IsKind(err, protocol.KindClientDisconnected))
}

func TestIdleTimeoutClosesConnection(t *testing.T) {
	cfg := protocol.DefaultConfig()
	cfg.IdleTimeoutSecs = 1
	addr := startTestServer(t, cfg)

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	resp, err := protocol.ReadFrame(conn, 4*1024*1024)
	require.NoError(t, err)
	require.Equal(t, "error:timeout", resp)

	_, err = protocol.ReadFrame(conn, 4*1024*1024)
	require.Error(t, err)
}

func TestInvalidUTF8FrameKeepsConnectionOpen(t *testing.T) {
	addr := startTestServer(t, protocol.DefaultConfig())

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, protocol.WriteFrame(conn, string([]byte{0xff, 0xfe, 0xfd})))
	resp, err := protocol.ReadFrame(conn, 4*1024*1024)
	require.NoError(t, err)
	require.Equal(t, "error:invalid command", resp)

	require.Equal(t, "ok", roundTrip(t, conn, "SET a b"))
}

func TestHandlerPanicClosesOnlyThatConnection(t *testing.T) {
	st := store.New()
	t.Cleanup(st.Close)
	addr := startTestServerWithStore(t, protocol.DefaultConfig(), panicStore{st})

	badConn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer badConn.Close()

	require.NoError(t, protocol.WriteFrame(badConn, "SET a b"))
	badConn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = protocol.ReadFrame(badConn, 4*1024*1024)
	require.Error(t, err)

	goodConn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer goodConn.Close()
	require.Equal(t, "null", roundTrip(t, goodConn, "GET a"))
}

func TestInfoReturnsJSONPayload(t *testing.T) {
	addr := startTestServer(t, protocol.DefaultConfig())

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	resp := roundTrip(t, conn, "INFO")
	require.Contains(t, resp, "\"keys\"")
	require.Contains(t, resp, "\"max_message_bytes\"")
}

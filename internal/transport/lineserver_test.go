package transport

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startLineServer(t *testing.T, exec Executor, b *Broadcaster) *LineServer {
	t.Helper()

	cfg := DefaultLineServerConfig()
	cfg.Addr = "127.0.0.1:0"
	s := NewLineServer(cfg, exec, b, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return s.Addr() != nil },
		time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func dialConsole(t *testing.T, s *LineServer) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil accumulates reads until want appears in the stream.
func readUntil(t *testing.T, conn net.Conn, want string) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var buf bytes.Buffer
	tmp := make([]byte, 256)
	for !strings.Contains(buf.String(), want) {
		n, err := conn.Read(tmp)
		require.NoError(t, err, "waiting for %q, have %q", want, buf.String())
		buf.Write(tmp[:n])
	}
	return buf.String()
}

func TestLineServer_GreetsAndExecutes(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	rec := &recordingExec{sink: b}
	s := startLineServer(t, rec, b)

	conn := dialConsole(t, s)
	greeting := readUntil(t, conn, "bmon> ")
	assert.Contains(t, greeting, "boardmon console")

	_, err := conn.Write([]byte("logstats\n"))
	require.NoError(t, err)

	out := readUntil(t, conn, "ack:logstats\n")
	assert.Contains(t, out, "ack:logstats\n")
	assert.Equal(t, []string{"logstats"}, rec.recorded())
}

func TestLineServer_BroadcastReachesAllClients(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	rec := &recordingExec{sink: b}
	s := startLineServer(t, rec, b)

	first := dialConsole(t, s)
	readUntil(t, first, "bmon> ")
	second := dialConsole(t, s)
	readUntil(t, second, "bmon> ")

	_, err := first.Write([]byte("temp\n"))
	require.NoError(t, err)

	readUntil(t, first, "ack:temp\n")
	readUntil(t, second, "ack:temp\n")
}

func TestLineServer_DisconnectDetachesSink(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	rec := &recordingExec{sink: b}
	s := startLineServer(t, rec, b)

	conn := dialConsole(t, s)
	readUntil(t, conn, "bmon> ")
	require.Equal(t, 1, b.Count())

	conn.Close()

	require.Eventually(t, func() bool { return b.Count() == 0 },
		time.Second, 5*time.Millisecond)
}

func TestLineServer_StopsOnContextCancel(t *testing.T) {
	cfg := DefaultLineServerConfig()
	cfg.Addr = "127.0.0.1:0"
	s := NewLineServer(cfg, &recordingExec{}, NewBroadcaster(zap.NewNop()), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return s.Addr() != nil },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Executor dispatches one raw command line. Command output travels
// through the sink the engine was built with, not through the return
// path, matching a serial console's fire-and-observe model.
type Executor interface {
	Execute(line string)
}

// connWriteTimeout bounds a single write to a console client. A
// client that stalls longer is dropped by the broadcaster.
const connWriteTimeout = 5 * time.Second

// LineServerConfig holds TCP console configuration.
type LineServerConfig struct {
	Addr   string // listen address
	Banner string // greeting sent on connect
	Prompt string // written after the banner and each command
}

// DefaultLineServerConfig returns default TCP console configuration.
func DefaultLineServerConfig() LineServerConfig {
	return LineServerConfig{
		Addr:   ":7070",
		Banner: "boardmon console. Type 'help' for commands.",
		Prompt: "bmon> ",
	}
}

// LineServer accepts TCP connections and runs a line-oriented console
// on each: every received line goes to the executor, and every
// connection is attached to the broadcaster for the duration.
type LineServer struct {
	config LineServerConfig
	exec   Executor
	bcast  *Broadcaster
	logger *zap.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	addr  net.Addr
}

// NewLineServer creates a TCP console server.
func NewLineServer(config LineServerConfig, exec Executor, bcast *Broadcaster, logger *zap.Logger) *LineServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LineServer{
		config: config,
		exec:   exec,
		bcast:  bcast,
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// Addr returns the bound listen address once Run has started, nil
// before that.
func (s *LineServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run listens and serves until the context is canceled. Open
// connections are closed on the way out.
func (s *LineServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("console listen: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("tcp console listening", zap.String("addr", ln.Addr().String()))

	go func() {
		<-ctx.Done()
		ln.Close()
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
	}()

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			if ctx.Err() != nil {
				s.logger.Info("tcp console stopping")
				return ctx.Err()
			}
			return fmt.Errorf("console accept: %w", err)
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			s.serve(c)
		}(conn)
	}
}

// serve runs the console loop for one connection.
func (s *LineServer) serve(conn net.Conn) {
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	remote := conn.RemoteAddr().String()
	s.logger.Info("console client connected", zap.String("remote", remote))

	sink := &deadlineWriter{conn: conn, timeout: connWriteTimeout}
	id := s.bcast.Attach(sink)
	defer func() {
		s.bcast.Detach(id)
		s.logger.Info("console client disconnected", zap.String("remote", remote))
	}()

	fmt.Fprintf(sink, "%s\n%s", s.config.Banner, s.config.Prompt)

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		s.exec.Execute(scanner.Text())
		if _, err := io.WriteString(sink, s.config.Prompt); err != nil {
			return
		}
	}
}

// deadlineWriter bounds each write so a stalled client errors out
// instead of blocking the broadcaster.
type deadlineWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w *deadlineWriter) Write(p []byte) (int, error) {
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
		return 0, err
	}
	return w.conn.Write(p)
}

// Package httpapi serves the daemon's REST, WebSocket, and metrics
// surface. The WebSocket route is the two-way bridge: clients receive
// the shared console stream plus telemetry frames, and text frames
// they send are dispatched as command lines.
package httpapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eliteGoblin/boardmon/internal/logstore"
	"github.com/eliteGoblin/boardmon/internal/metrics"
	"github.com/eliteGoblin/boardmon/internal/shell"
	"github.com/eliteGoblin/boardmon/internal/sysinfo"
	"github.com/eliteGoblin/boardmon/internal/transport"
	"github.com/eliteGoblin/boardmon/internal/watchdog"
)

// Config holds API server configuration.
type Config struct {
	Addr    string
	Board   string
	Version string
}

// Deps are the daemon components the API reads from. Engine must be
// built with Console as its output sink, otherwise command capture
// and the WebSocket console stream see nothing.
type Deps struct {
	Store     *logstore.Store
	Watchdog  *watchdog.Supervisor
	Sysinfo   *sysinfo.Collector
	Engine    *shell.Engine
	Console   *transport.Broadcaster
	Telemetry *transport.Broadcaster
	Metrics   *metrics.Registry
}

// Server is the HTTP/WS front end.
type Server struct {
	config   Config
	deps     Deps
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates the API server.
func NewServer(config Config, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		config: config,
		deps:   deps,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Addr returns the bound listen address once Run has started, nil
// before that.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/logs", s.handleLogs)
		api.GET("/status", s.handleStatus)
		api.GET("/watchdog", s.handleWatchdog)
		api.GET("/sysinfo", s.handleSysinfo)
		api.POST("/command", s.handleCommand)
	}
	r.GET("/ws", s.handleWS)
	r.GET("/metrics", gin.WrapH(s.deps.Metrics.HTTPHandler()))

	return r
}

// Run serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	srv := &http.Server{
		Handler:      s.router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	s.logger.Info("http api listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http api stopping")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return ctx.Err()
}

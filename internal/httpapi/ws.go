package httpapi

import (
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

// handleWS upgrades the connection and wires it into both broadcast
// streams. Inbound text frames are executed as command lines, so a
// dashboard can drive the shell over the same socket it watches.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	sink := &wsWriter{conn: conn}
	consoleID := s.deps.Console.Attach(sink)
	telemetryID := s.deps.Telemetry.Attach(sink)
	defer func() {
		s.deps.Console.Detach(consoleID)
		s.deps.Telemetry.Detach(telemetryID)
		s.logger.Info("websocket client disconnected", zap.String("remote", remote))
	}()
	s.logger.Info("websocket client connected", zap.String("remote", remote))

	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		line := strings.TrimSpace(string(msg))
		if line == "" {
			continue
		}
		s.deps.Engine.Execute(line)
	}
}

// wsWriter adapts a websocket connection to io.Writer. The console
// and telemetry broadcasters write from different goroutines and
// gorilla allows only one concurrent writer, hence the mutex.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return 0, err
	}
	if err := w.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

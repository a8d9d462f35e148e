package httpapi

import (
	"bytes"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eliteGoblin/boardmon/internal/logstore"
	"github.com/eliteGoblin/boardmon/internal/shell"
	"github.com/eliteGoblin/boardmon/internal/sysinfo"
	"github.com/eliteGoblin/boardmon/internal/watchdog"
)

// maxLogPayload caps the /api/logs response body so a full ring of
// worst-case records cannot balloon a poll cycle.
const maxLogPayload = 16 * 1024

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleLogs serves the bounded JSON log dump. The optional limit
// query caps the number of entries; it defaults to the full ring.
func (s *Server) handleLogs(c *gin.Context) {
	limit := s.deps.Store.Capacity()
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	c.Data(http.StatusOK, "application/json", s.deps.Store.MarshalBounded(limit, maxLogPayload))
}

type statusResponse struct {
	Board      string         `json:"board"`
	Version    string         `json:"version"`
	UptimeSecs uint64         `json:"uptime_secs"`
	Consoles   int            `json:"consoles"`
	LogStore   logstore.Stats `json:"logstore"`
	Watchdog   watchdog.Stats `json:"watchdog"`
	Shell      shell.Stats    `json:"shell"`
	Sysinfo    sysinfo.Stats  `json:"sysinfo"`
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		Board:      s.config.Board,
		Version:    s.config.Version,
		UptimeSecs: s.deps.Sysinfo.UptimeSecs(),
		Consoles:   s.deps.Console.Count(),
		LogStore:   s.deps.Store.Stats(),
		Watchdog:   s.deps.Watchdog.Stats(),
		Shell:      s.deps.Engine.Stats(),
		Sysinfo:    s.deps.Sysinfo.Stats(),
	})
}

func (s *Server) handleWatchdog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stats":   s.deps.Watchdog.Stats(),
		"targets": s.deps.Watchdog.Snapshot(),
	})
}

func (s *Server) handleSysinfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Sysinfo.Latest())
}

type commandRequest struct {
	Line string `json:"line" binding:"required"`
}

// handleCommand dispatches one command line and returns the console
// output it produced. The capture sink joins the shared console
// stream for the duration of the call, so output from concurrently
// executing commands may interleave, same as on a shared serial port.
func (s *Server) handleCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	capture := &lockedBuffer{}
	id := s.deps.Console.Attach(capture)
	s.deps.Engine.Execute(req.Line)
	s.deps.Console.Detach(id)

	c.JSON(http.StatusOK, gin.H{
		"line":   req.Line,
		"output": capture.String(),
	})
}

// lockedBuffer is an io.Writer safe for the broadcaster to hit from
// other goroutines while the handler drains it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

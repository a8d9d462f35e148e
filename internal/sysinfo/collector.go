// Package sysinfo maintains a periodically refreshed snapshot of
// process and host metrics for the diagnostic surfaces: heap and
// goroutine figures from the runtime, process CPU and RSS, host
// memory and load average, and the simulated board temperature.
package sysinfo

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"
)

// DefaultInterval is how often the background loop refreshes.
const DefaultInterval = 2 * time.Second

// Snapshot is one refresh of the collector's metrics.
type Snapshot struct {
	Board      string    `json:"board"`
	Firmware   string    `json:"fw"`
	UptimeSecs uint64    `json:"up"`
	Boots      uint32    `json:"boots"`
	Goroutines int       `json:"goroutines"`
	OSThreads  int       `json:"os_threads"`
	HeapAlloc  uint64    `json:"heap_alloc"`
	HeapSys    uint64    `json:"heap_sys"`
	ProcCPU    float64   `json:"proc_cpu_pct"`
	ProcRSS    uint64    `json:"proc_rss"`
	MemTotal   uint64    `json:"host_mem_total"`
	MemFree    uint64    `json:"host_mem_free"`
	MemUsedPct float64   `json:"host_mem_used_pct"`
	Load1      float64   `json:"load1"`
	Load5      float64   `json:"load5"`
	Load15     float64   `json:"load15"`
	TempC      float64   `json:"temp_c"`
	SampledAt  time.Time `json:"sampled_at"`
}

// Stats reports collector activity.
type Stats struct {
	Refreshes    uint64        `json:"refreshes"`
	LastDuration time.Duration `json:"last_duration"`
	LastSample   time.Time     `json:"last_sample"`
}

// Config holds collector configuration.
type Config struct {
	Interval time.Duration // refresh period
	Board    string        // board identity reported in snapshots
	Firmware string        // daemon version reported in snapshots
}

// DefaultConfig returns default collector configuration.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
		Board:    "shrike-lite",
		Firmware: "0.0.0-dev",
	}
}

// Collector samples the metrics on demand and from a background loop.
type Collector struct {
	config Config
	logger *zap.Logger

	mu        sync.Mutex
	snap      Snapshot
	refreshes uint64
	lastDur   time.Duration
	boots     uint32
	temp      *tempSensor

	proc  *process.Process
	start time.Time
	now   func() time.Time
}

// New creates a collector. The process handle is best-effort: metrics
// it backs are reported as zero when unavailable.
func New(config Config, logger *zap.Logger) *Collector {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Collector{
		config: config,
		logger: logger,
		temp:   newTempSensor(time.Now().UnixNano()),
		start:  time.Now(),
		now:    time.Now,
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Debug("process handle unavailable", zap.Error(err))
	} else {
		c.proc = proc
	}
	return c
}

// Run refreshes immediately, then on every interval tick until the
// context is canceled.
func (c *Collector) Run(ctx context.Context) error {
	c.mu.Lock()
	c.boots++
	boot := c.boots
	c.mu.Unlock()

	c.logger.Info("sysinfo collector started",
		zap.Duration("interval", c.config.Interval),
		zap.Uint32("boot", boot))

	c.Refresh()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("sysinfo collector stopping")
			return ctx.Err()
		case <-ticker.C:
			c.Refresh()
		}
	}
}

// Refresh samples every source once and stores the result as the
// latest snapshot, which is also returned.
func (c *Collector) Refresh() Snapshot {
	began := time.Now()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snap := Snapshot{
		Board:      c.config.Board,
		Firmware:   c.config.Firmware,
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
	}
	if tc := pprof.Lookup("threadcreate"); tc != nil {
		snap.OSThreads = tc.Count()
	}

	if c.proc != nil {
		if pct, err := c.proc.CPUPercent(); err == nil {
			snap.ProcCPU = pct
		}
		if mi, err := c.proc.MemoryInfo(); err == nil {
			snap.ProcRSS = mi.RSS
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		snap.MemTotal = vm.Total
		snap.MemFree = vm.Available
		snap.MemUsedPct = vm.UsedPercent
	} else {
		c.logger.Debug("host memory unavailable", zap.Error(err))
	}

	if avg, err := load.Avg(); err == nil {
		snap.Load1 = avg.Load1
		snap.Load5 = avg.Load5
		snap.Load15 = avg.Load15
	} else {
		c.logger.Debug("load average unavailable", zap.Error(err))
	}

	c.mu.Lock()
	now := c.now()
	snap.UptimeSecs = uint64(now.Sub(c.start) / time.Second)
	snap.Boots = c.boots
	snap.TempC = c.temp.read()
	snap.SampledAt = now
	c.snap = snap
	c.refreshes++
	c.lastDur = time.Since(began)
	c.mu.Unlock()

	return snap
}

// Latest returns the most recent snapshot. Zero value before the
// first refresh.
func (c *Collector) Latest() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// UptimeSecs is a quick accessor for elapsed whole seconds since
// construction.
func (c *Collector) UptimeSecs() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(c.now().Sub(c.start) / time.Second)
}

// TempC returns the latest sampled board temperature.
func (c *Collector) TempC() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.TempC
}

// Stats reports refresh activity.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Refreshes:    c.refreshes,
		LastDuration: c.lastDur,
		LastSample:   c.snap.SampledAt,
	}
}

// Dump writes the human-readable system report.
func (c *Collector) Dump(w io.Writer) {
	s := c.Latest()

	fmt.Fprintf(w, "\n=== boardmon System Info ===\n")
	fmt.Fprintf(w, "Board     : %s\n", s.Board)
	fmt.Fprintf(w, "Firmware  : %s\n", s.Firmware)
	fmt.Fprintf(w, "Go        : %s\n", runtime.Version())
	fmt.Fprintf(w, "Uptime    : %d s\n", s.UptimeSecs)
	fmt.Fprintf(w, "Boot #    : %d\n", s.Boots)
	fmt.Fprintf(w, "CPU (proc): ~%.1f%%\n", s.ProcCPU)
	fmt.Fprintf(w, "Load avg  : %.2f / %.2f / %.2f\n", s.Load1, s.Load5, s.Load15)
	fmt.Fprintf(w, "Heap      : alloc %d B | sys %d B\n", s.HeapAlloc, s.HeapSys)
	fmt.Fprintf(w, "Host mem  : %d B total | %d B free | %.1f%% used\n",
		s.MemTotal, s.MemFree, s.MemUsedPct)
	fmt.Fprintf(w, "RSS       : %d B\n", s.ProcRSS)
	fmt.Fprintf(w, "Temp      : %.1f C\n", s.TempC)
	fmt.Fprintf(w, "Goroutines: %d (OS threads ~%d)\n", s.Goroutines, s.OSThreads)
	fmt.Fprintf(w, "===========================\n\n")
}

// TelemetryJSON renders the compact frame pushed to live subscribers.
func (c *Collector) TelemetryJSON() []byte {
	s := c.Latest()
	return []byte(fmt.Sprintf(
		`{"temp":%.1f,"up":%d,"thds":%d,"heap":%d,"cpu":%.1f}`,
		s.TempC, s.UptimeSecs, s.Goroutines, s.HeapAlloc, s.ProcCPU))
}

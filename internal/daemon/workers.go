package daemon

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/boardmon/internal/config"
	"github.com/eliteGoblin/boardmon/internal/logstore"
	"github.com/eliteGoblin/boardmon/internal/sysinfo"
	"github.com/eliteGoblin/boardmon/internal/watchdog"
)

// Worker names double as watchdog target names.
const (
	pulseWorkerName  = "pulse"
	sensorWorkerName = "sensor"

	// The pulse target times out after missing several beats.
	pulseTimeoutBeats = 4

	sensorInterval = 2 * time.Second
	sensorTimeout  = 3 * sensorInterval

	// tempWarnC is the temperature above which the sensor worker
	// logs a warning.
	tempWarnC = 65.0

	// flakyWedgeOdds is the per-tick chance (1 in N) that a flaky
	// pulse worker wedges on its own.
	flakyWedgeOdds = 100
)

// Workers runs the background workers that exercise the watchdog: a
// pulse worker that does nothing but heartbeat, and a sensor worker
// that watches the temperature. The pulse worker can be wedged (via
// Stall or flaky mode) and is restarted by its recovery action.
type Workers struct {
	config config.WorkersConfig
	wdg    *watchdog.Supervisor
	store  *logstore.Store
	sys    *sysinfo.Collector
	logger *zap.Logger
	rng    *rand.Rand

	mu      sync.Mutex
	stalled bool
}

// NewWorkers creates the worker set. Targets are registered when Run
// starts.
func NewWorkers(cfg config.WorkersConfig, wdg *watchdog.Supervisor, store *logstore.Store, sys *sysinfo.Collector, logger *zap.Logger) *Workers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workers{
		config: cfg,
		wdg:    wdg,
		store:  store,
		sys:    sys,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Stall stops the pulse worker from heartbeating until its recovery
// action runs. The misbehave console command calls this.
func (w *Workers) Stall() {
	w.mu.Lock()
	w.stalled = true
	w.mu.Unlock()
	w.store.Append(logstore.Warn, "PULSE", "worker stopped feeding the watchdog")
	w.logger.Warn("pulse worker stalled")
}

// Stalled reports whether the pulse worker is currently wedged.
func (w *Workers) Stalled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stalled
}

// Run registers the watchdog targets and loops until the context is
// canceled.
func (w *Workers) Run(ctx context.Context) error {
	pulseInterval := time.Duration(w.config.PulseIntervalMs) * time.Millisecond
	pulseHandle, err := w.wdg.Register(pulseWorkerName, pulseTimeoutBeats*pulseInterval, w.recoverPulse)
	if err != nil {
		return fmt.Errorf("register pulse worker: %w", err)
	}
	sensorHandle, err := w.wdg.Register(sensorWorkerName, sensorTimeout, nil)
	if err != nil {
		return fmt.Errorf("register sensor worker: %w", err)
	}

	w.logger.Info("workers started",
		zap.Duration("pulse_interval", pulseInterval),
		zap.Bool("flaky", w.config.Flaky))

	pulseTicker := time.NewTicker(pulseInterval)
	sensorTicker := time.NewTicker(sensorInterval)
	defer pulseTicker.Stop()
	defer sensorTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-pulseTicker.C:
			if w.config.Flaky && !w.Stalled() && w.rng.Intn(flakyWedgeOdds) == 0 {
				w.mu.Lock()
				w.stalled = true
				w.mu.Unlock()
				w.store.Append(logstore.Warn, "PULSE", "worker wedged (flaky mode)")
				w.logger.Warn("pulse worker wedged", zap.String("cause", "flaky"))
			}
			if !w.Stalled() {
				w.wdg.Heartbeat(pulseHandle)
			}

		case <-sensorTicker.C:
			if t := w.sys.TempC(); t > tempWarnC {
				w.store.Appendf(logstore.Warn, "SENSOR", "temperature high: %.1f C", t)
			}
			w.wdg.Heartbeat(sensorHandle)
		}
	}
}

// recoverPulse is the pulse target's recovery action: it clears the
// stall so the next tick heartbeats again.
func (w *Workers) recoverPulse(name string, elapsed time.Duration) {
	w.mu.Lock()
	w.stalled = false
	w.mu.Unlock()
	w.store.Appendf(logstore.Error, "WDG",
		"'%s' restarted after %d ms of silence", name, elapsed.Milliseconds())
	w.logger.Warn("pulse worker restarted",
		zap.String("target", name),
		zap.Duration("silent_for", elapsed))
}

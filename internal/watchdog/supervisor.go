// Package watchdog implements the heartbeat supervisor. Workers
// register a name and a timeout, then call Heartbeat periodically; a
// checker sweep flags targets whose heartbeats stop and runs their
// recovery action.
package watchdog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	// DefaultCapacity is the size of the supervision table.
	DefaultCapacity = 8

	// DefaultCheckInterval is how often Run sweeps the table.
	DefaultCheckInterval = 1000 * time.Millisecond

	// maxNameLen is the byte budget for a target name.
	maxNameLen = 23

	// warnNum/warnDen place the warning threshold at 75% of the
	// target's timeout.
	warnNum = 3
	warnDen = 4
)

// ErrCapacityExceeded is returned by Register when the table is full.
var ErrCapacityExceeded = errors.New("watchdog: table full")

// Handle identifies a registered target. Operations on an invalid or
// deactivated handle are silent no-ops.
type Handle int

// NoHandle is the handle returned by a failed registration.
const NoHandle Handle = -1

// RecoveryFunc is invoked when a target times out, with the target's
// name and the elapsed time since its last heartbeat. It runs without
// the supervisor lock held, so it may call back into the supervisor.
type RecoveryFunc func(name string, elapsed time.Duration)

// Config carries supervisor construction parameters.
type Config struct {
	Capacity      int
	CheckInterval time.Duration
	// OnRecovery runs for targets registered without their own
	// recovery action. Defaults to logging a warning.
	OnRecovery RecoveryFunc
}

// DefaultConfig returns the standard supervisor configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      DefaultCapacity,
		CheckInterval: DefaultCheckInterval,
	}
}

type target struct {
	active     bool
	name       string
	timeout    time.Duration
	lastBeat   time.Time
	state      State
	recover    RecoveryFunc
	beats      uint64
	timeouts   uint64
	recoveries uint64
}

// TargetInfo is a copy of one active target's bookkeeping.
type TargetInfo struct {
	Slot       int
	Name       string
	State      State
	Timeout    time.Duration
	Elapsed    time.Duration
	Beats      uint64
	Timeouts   uint64
	Recoveries uint64
}

// MarshalJSON renders the durations as millisecond counts, the same
// units the console reports.
func (t TargetInfo) MarshalJSON() ([]byte, error) {
	type wire struct {
		Slot       int    `json:"slot"`
		Name       string `json:"name"`
		State      State  `json:"state"`
		TimeoutMs  int64  `json:"timeout_ms"`
		ElapsedMs  int64  `json:"elapsed_ms"`
		Beats      uint64 `json:"beats"`
		Timeouts   uint64 `json:"timeouts"`
		Recoveries uint64 `json:"recoveries"`
	}
	return json.Marshal(wire{
		Slot:       t.Slot,
		Name:       t.Name,
		State:      t.State,
		TimeoutMs:  t.Timeout.Milliseconds(),
		ElapsedMs:  t.Elapsed.Milliseconds(),
		Beats:      t.Beats,
		Timeouts:   t.Timeouts,
		Recoveries: t.Recoveries,
	})
}

// Stats is a snapshot of the supervisor's aggregate counters.
type Stats struct {
	Enabled    bool   `json:"enabled"`
	Capacity   int    `json:"capacity"`
	Registered int    `json:"registered"` // lifetime registrations, slots are never reused
	Active     int    `json:"active"`
	Healthy    int    `json:"healthy"`
	Checks     uint64 `json:"checks"`
	Beats      uint64 `json:"beats"`
	Timeouts   uint64 `json:"timeouts"`
	Recoveries uint64 `json:"recoveries"`
}

// Supervisor tracks heartbeats for up to Capacity targets. The table
// is append-only: deregistering deactivates a slot but never frees it.
type Supervisor struct {
	mu      sync.Mutex
	table   []target
	count   int // slots handed out
	enabled bool

	checks     uint64
	beats      uint64
	timeouts   uint64
	recoveries uint64

	interval time.Duration
	fallback RecoveryFunc
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Supervisor from cfg. Zero-valued fields fall back to
// the defaults.
func New(cfg Config, logger *zap.Logger) (*Supervisor, error) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Capacity < 1 {
		return nil, fmt.Errorf("watchdog: capacity %d must be at least 1", cfg.Capacity)
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Supervisor{
		table:    make([]target, cfg.Capacity),
		enabled:  true,
		interval: cfg.CheckInterval,
		logger:   logger,
		now:      time.Now,
	}

	s.fallback = cfg.OnRecovery
	if s.fallback == nil {
		s.fallback = func(name string, elapsed time.Duration) {
			logger.Warn("default recovery",
				zap.String("name", name),
				zap.Duration("elapsed", elapsed))
		}
	}
	return s, nil
}

// Register adds a target to the supervision table. Names longer than
// 23 bytes are truncated. The target starts Idle with the registration
// instant as its last heartbeat, so a target that never beats still
// times out. At capacity the table is left untouched and
// ErrCapacityExceeded is returned.
func (s *Supervisor) Register(name string, timeout time.Duration, fn RecoveryFunc) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count >= len(s.table) {
		s.logger.Warn("watchdog table full", zap.String("name", name))
		return NoHandle, fmt.Errorf("register %q: %w", name, ErrCapacityExceeded)
	}

	slot := s.count
	s.count++

	if len(name) > maxNameLen {
		cut := maxNameLen
		for cut > 0 && !utf8.RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	s.table[slot] = target{
		active:   true,
		name:     name,
		timeout:  timeout,
		lastBeat: s.now(),
		state:    Idle,
		recover:  fn,
	}

	s.logger.Info("watchdog target registered",
		zap.String("name", name),
		zap.Int("slot", slot),
		zap.Duration("timeout", timeout))
	return Handle(slot), nil
}

// Heartbeat marks the target alive: it stamps the heartbeat time and
// forces the state to Healthy from any state. Invalid or deactivated
// handles are ignored.
func (s *Supervisor) Heartbeat(h Handle) {
	i := int(h)
	if i < 0 || i >= len(s.table) {
		return
	}

	s.mu.Lock()
	e := &s.table[i]
	if e.active {
		e.lastBeat = s.now()
		e.state = Healthy
		e.beats++
		s.beats++
	}
	s.mu.Unlock()
}

// Deregister deactivates a target. The slot is never reused.
func (s *Supervisor) Deregister(h Handle) {
	i := int(h)
	if i < 0 || i >= len(s.table) {
		return
	}

	s.mu.Lock()
	e := &s.table[i]
	if e.active {
		e.active = false
		s.logger.Info("watchdog target deregistered",
			zap.String("name", e.name), zap.Int("slot", i))
	}
	s.mu.Unlock()
}

// Enable suspends or resumes checking. While disabled, sweeps return
// immediately and do not count as checks.
func (s *Supervisor) Enable(on bool) {
	s.mu.Lock()
	s.enabled = on
	s.mu.Unlock()

	if on {
		s.logger.Info("watchdog enabled")
	} else {
		s.logger.Info("watchdog disabled")
	}
}

// Enabled reports whether checking is active.
func (s *Supervisor) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// State returns the target's current state, or Idle for an invalid or
// deactivated handle.
func (s *Supervisor) State(h Handle) State {
	i := int(h)
	if i < 0 || i >= len(s.table) {
		return Idle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.table[i].active {
		return Idle
	}
	return s.table[i].state
}

// HealthyCount returns how many active targets are currently Healthy.
func (s *Supervisor) HealthyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthyLocked()
}

func (s *Supervisor) healthyLocked() int {
	n := 0
	for i := 0; i < s.count; i++ {
		if s.table[i].active && s.table[i].state == Healthy {
			n++
		}
	}
	return n
}

// Snapshot returns copies of all active targets in slot order.
func (s *Supervisor) Snapshot() []TargetInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]TargetInfo, 0, s.count)
	for i := 0; i < s.count; i++ {
		e := &s.table[i]
		if !e.active {
			continue
		}
		out = append(out, TargetInfo{
			Slot:       i,
			Name:       e.name,
			State:      e.state,
			Timeout:    e.timeout,
			Elapsed:    now.Sub(e.lastBeat),
			Beats:      e.beats,
			Timeouts:   e.timeouts,
			Recoveries: e.recoveries,
		})
	}
	return out
}

// Stats returns a snapshot of the aggregate counters.
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := 0
	for i := 0; i < s.count; i++ {
		if s.table[i].active {
			active++
		}
	}
	return Stats{
		Enabled:    s.enabled,
		Capacity:   len(s.table),
		Registered: s.count,
		Active:     active,
		Healthy:    s.healthyLocked(),
		Checks:     s.checks,
		Beats:      s.beats,
		Timeouts:   s.timeouts,
		Recoveries: s.recoveries,
	}
}

// CheckOnce performs one sweep of the table. A disabled supervisor
// returns immediately without counting the sweep. For each active
// target:
//
//   - past its timeout and not already Unresponsive or Recovered: the
//     target goes Unresponsive, the lock is released, the recovery
//     action runs, the lock is reacquired, and the target is set
//     Recovered regardless of what happened meanwhile. One recovery
//     per silence; a fresh heartbeat rearms.
//   - past 75% of its timeout and currently Healthy: Warning. No other
//     state escalates to Warning, so Warning never clobbers a state
//     further along.
func (s *Supervisor) CheckOnce() {
	s.mu.Lock()

	if !s.enabled {
		s.mu.Unlock()
		return
	}
	s.checks++
	now := s.now()

	for i := 0; i < s.count; i++ {
		e := &s.table[i]
		if !e.active {
			continue
		}

		elapsed := now.Sub(e.lastBeat)
		switch {
		case elapsed > e.timeout:
			if e.state == Unresponsive || e.state == Recovered {
				continue
			}
			e.state = Unresponsive
			e.timeouts++
			s.timeouts++
			s.logger.Warn("target unresponsive",
				zap.String("name", e.name),
				zap.Duration("elapsed", elapsed))

			fn := e.recover
			if fn == nil {
				fn = s.fallback
			}
			name := e.name

			// Recovery runs unlocked so it can call back in.
			s.mu.Unlock()
			fn(name, elapsed)
			s.mu.Lock()

			e.state = Recovered
			e.recoveries++
			s.recoveries++

		case elapsed > e.timeout*warnNum/warnDen:
			if e.state == Healthy {
				e.state = Warning
				s.logger.Warn("target entering warning zone",
					zap.String("name", e.name))
			}
		}
	}

	s.mu.Unlock()
}

// Run sweeps the table on the configured interval until ctx is
// canceled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("watchdog checker started",
		zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("watchdog checker stopping")
			return ctx.Err()
		case <-ticker.C:
			s.CheckOnce()
		}
	}
}

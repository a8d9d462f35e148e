// Package daemon assembles the boardmon components and runs them as
// one supervised process: the log store, the watchdog, the system
// info collector, the command engine with its console transports, the
// background workers, and the HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/boardmon/internal/config"
	"github.com/eliteGoblin/boardmon/internal/httpapi"
	"github.com/eliteGoblin/boardmon/internal/logstore"
	"github.com/eliteGoblin/boardmon/internal/metrics"
	"github.com/eliteGoblin/boardmon/internal/shell"
	"github.com/eliteGoblin/boardmon/internal/sysinfo"
	"github.com/eliteGoblin/boardmon/internal/transport"
	"github.com/eliteGoblin/boardmon/internal/watchdog"
)

// Daemon owns every long-lived component. Construct with New, then
// call Run once.
type Daemon struct {
	config  *config.Config
	version string
	logger  *zap.Logger

	store     *logstore.Store
	wdg       *watchdog.Supervisor
	sys       *sysinfo.Collector
	engine    *shell.Engine
	console   *transport.Broadcaster
	telemetry *transport.Broadcaster
	registry  *metrics.Registry
	workers   *Workers
	lineSrv   *transport.LineServer
	api       *httpapi.Server
}

// New wires the full component graph from a normalized configuration.
// The given logger gains a hook that mirrors Warn and above into the
// log store, so operational trouble shows up on the device console.
func New(cfg *config.Config, version string, logger *zap.Logger) (*Daemon, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := logstore.New(cfg.LogStore.Capacity)
	if err != nil {
		return nil, err
	}
	minLevel, err := logstore.ParseLevel(cfg.LogStore.MinLevel)
	if err != nil {
		return nil, fmt.Errorf("logstore min level: %w", err)
	}
	store.SetMinLevel(minLevel)

	logger = logger.WithOptions(zap.Hooks(mirrorToStore(store)))

	d := &Daemon{
		config:  cfg,
		version: version,
		logger:  logger,
		store:   store,
	}

	d.wdg, err = watchdog.New(watchdog.Config{
		Capacity:      cfg.Watchdog.Capacity,
		CheckInterval: time.Duration(cfg.Watchdog.CheckIntervalMs) * time.Millisecond,
		OnRecovery:    d.defaultRecovery,
	}, logger)
	if err != nil {
		return nil, err
	}

	d.sys = sysinfo.New(sysinfo.Config{
		Interval: time.Duration(cfg.Telemetry.IntervalMs) * time.Millisecond,
		Board:    cfg.Board,
		Firmware: version,
	}, logger)

	d.console = transport.NewBroadcaster(logger)
	d.telemetry = transport.NewBroadcaster(logger)

	d.engine = shell.New(shell.Config{
		Output:  d.console,
		Version: "boardmon " + version,
	})
	d.workers = NewWorkers(cfg.Workers, d.wdg, d.store, d.sys, logger)
	if err := d.registerCommands(); err != nil {
		return nil, err
	}

	d.registry = metrics.NewRegistry()
	d.registry.MustRegister(
		metrics.NewLogStoreCollector(cfg.Board, d.store),
		metrics.NewWatchdogCollector(cfg.Board, d.wdg),
		metrics.NewShellCollector(cfg.Board, d.engine),
	)

	d.lineSrv = transport.NewLineServer(transport.LineServerConfig{
		Addr:   cfg.Listen.TCP,
		Banner: fmt.Sprintf("boardmon %s console. Type 'help' for commands.", version),
		Prompt: cfg.Shell.Prompt,
	}, d.engine, d.console, logger)

	d.api = httpapi.NewServer(httpapi.Config{
		Addr:    cfg.Listen.HTTP,
		Board:   cfg.Board,
		Version: version,
	}, httpapi.Deps{
		Store:     d.store,
		Watchdog:  d.wdg,
		Sysinfo:   d.sys,
		Engine:    d.engine,
		Console:   d.console,
		Telemetry: d.telemetry,
		Metrics:   d.registry,
	}, logger)

	return d, nil
}

// Engine exposes the command engine, for attaching local consoles.
func (d *Daemon) Engine() *shell.Engine { return d.engine }

// APIAddr returns the HTTP API's bound address, nil before Run.
func (d *Daemon) APIAddr() net.Addr { return d.api.Addr() }

// ConsoleAddr returns the TCP console's bound address, nil before Run.
func (d *Daemon) ConsoleAddr() net.Addr { return d.lineSrv.Addr() }

// Console exposes the console output broadcaster.
func (d *Daemon) Console() *transport.Broadcaster { return d.console }

// Store exposes the diagnostic log store.
func (d *Daemon) Store() *logstore.Store { return d.store }

// Run starts every component and blocks until the context is
// canceled or a component fails. The first failure cancels the rest.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("boardmon starting",
		zap.String("board", d.config.Board),
		zap.String("version", d.version),
		zap.String("console", d.config.Listen.TCP),
		zap.String("http", d.config.Listen.HTTP))
	d.store.Appendf(logstore.Info, "LOG",
		"ring buffer ready (%d slots, filter >= %s)",
		d.store.Capacity(), d.store.MinLevel())
	d.store.Appendf(logstore.Info, "BOOT", "boardmon %s starting", d.version)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := run(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Error("component failed",
				zap.String("component", name), zap.Error(err))
			select {
			case errCh <- fmt.Errorf("%s: %w", name, err):
			default:
			}
			cancel()
		}()
	}

	start("watchdog", d.wdg.Run)
	start("sysinfo", d.sys.Run)
	start("workers", d.workers.Run)
	start("telemetry", d.runTelemetry)
	start("console", d.lineSrv.Run)
	start("api", d.api.Run)

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	d.logger.Info("boardmon stopped")
	return ctx.Err()
}

// runTelemetry pushes a compact JSON frame to telemetry subscribers
// on a fixed cadence, the stream the dashboard bridge consumes.
func (d *Daemon) runTelemetry(ctx context.Context) error {
	interval := time.Duration(d.config.Telemetry.IntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	d.logger.Info("telemetry emitter started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			frame := append(d.sys.TelemetryJSON(), '\n')
			_, _ = d.telemetry.Write(frame)
		}
	}
}

// defaultRecovery handles timeouts for targets registered without
// their own recovery action.
func (d *Daemon) defaultRecovery(name string, elapsed time.Duration) {
	d.store.Appendf(logstore.Error, "WDG",
		"default recovery for '%s' (no heartbeat for %d ms)",
		name, elapsed.Milliseconds())
}

// mirrorToStore forwards Warn and above from the operational logger
// into the diagnostic ring.
func mirrorToStore(store *logstore.Store) func(zapcore.Entry) error {
	return func(e zapcore.Entry) error {
		if e.Level < zapcore.WarnLevel {
			return nil
		}
		lvl := logstore.Warn
		if e.Level > zapcore.WarnLevel {
			lvl = logstore.Error
		}
		store.Append(lvl, "DAEMON", e.Message)
		return nil
	}
}

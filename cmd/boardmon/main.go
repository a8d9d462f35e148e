// Package main is the CLI entry point for boardmon.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/boardmon/internal/config"
	"github.com/eliteGoblin/boardmon/internal/daemon"
	"github.com/eliteGoblin/boardmon/internal/transport"
)

var (
	// Version info (set via ldflags)
	Version   = "1.2.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "boardmon",
	Short: "On-device diagnostics and supervision daemon",
	Long: `boardmon keeps a ring buffer of diagnostic logs, supervises worker
heartbeats with a software watchdog, and exposes a command console
over TCP, WebSocket, and a REST API. It is the service a dashboard or
an operator talks to when a board misbehaves.`,
	Version: Version,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon",
	Long: `Starts every component: the log store, the watchdog supervisor, the
system info collector, the background workers, the TCP console, and
the HTTP API. Blocks until SIGINT or SIGTERM.`,
	RunE: runDaemon,
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Connect to a running daemon's console",
	Long: `Dials the daemon's TCP console and wires it to this terminal.
Type 'help' once connected. Close with Ctrl-C or EOF.`,
	RunE: runConsole,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

var (
	configPath  string
	interactive bool
	consoleAddr string
	jsonOutput  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	runCmd.Flags().BoolVar(&interactive, "console", false, "Attach an interactive console on stdin/stdout")
	consoleCmd.Flags().StringVar(&consoleAddr, "addr", "", "Console address (default from config)")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}
	config.Normalize(cfg)
	return cfg, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := createLogger(cfg.Log.Level)
	defer func() { _ = logger.Sync() }()

	d, err := daemon.New(cfg, Version, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	if interactive {
		id := d.Console().Attach(os.Stdout)
		defer d.Console().Detach(id)
		local := transport.NewConsole(cfg.Shell.Prompt, os.Stdin, os.Stdout, d.Engine(), logger)
		go func() {
			// EOF on stdin closes the local console only; the
			// daemon keeps running headless.
			if err := local.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("local console closed", zap.Error(err))
			}
		}()
	}

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runConsole(cmd *cobra.Command, args []string) error {
	addr := consoleAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		addr = cfg.Listen.TCP
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	errCh := make(chan error, 2)
	go func() {
		_, err := io.Copy(os.Stdout, conn)
		errCh <- err
	}()
	go func() {
		_, err := io.Copy(conn, os.Stdin)
		errCh <- err
	}()

	if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func createLogger(level string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := config.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("boardmon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/boardmon/internal/config"
	"github.com/eliteGoblin/boardmon/internal/daemon"
)

// TestDaemon_BootsFromConfigFile walks the same path the binary does:
// parse a YAML file, validate, normalize, build the daemon, and serve.
func TestDaemon_BootsFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boardmon.yaml")
	yaml := `board: yaml-bench
log:
  level: error
logstore:
  capacity: 4
  min_level: debug
listen:
  tcp: "127.0.0.1:0"
  http: "127.0.0.1:0"
telemetry:
  interval_ms: 50
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("validate config: %v", err)
	}
	config.Normalize(cfg)

	if cfg.Board != "yaml-bench" {
		t.Fatalf("board = %q, want yaml-bench", cfg.Board)
	}
	if cfg.LogStore.Capacity != 4 {
		t.Fatalf("logstore capacity = %d, want 4", cfg.LogStore.Capacity)
	}
	if cfg.Watchdog.Capacity != config.DefaultWdgCapacity {
		t.Fatalf("watchdog capacity = %d, want default %d", cfg.Watchdog.Capacity, config.DefaultWdgCapacity)
	}
	if cfg.Shell.Prompt != config.DefaultPrompt {
		t.Fatalf("prompt = %q, want default %q", cfg.Shell.Prompt, config.DefaultPrompt)
	}

	d, err := daemon.New(cfg, "0.0.0-it", zap.NewNop())
	if err != nil {
		t.Fatalf("build daemon: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for d.APIAddr() == nil {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("api listener never came up")
		}
		time.Sleep(20 * time.Millisecond)
	}

	resp, err := http.Get("http://" + d.APIAddr().String() + "/api/status")
	if err != nil {
		cancel()
		t.Fatalf("GET /api/status: %v", err)
	}
	var status struct {
		Board   string `json:"board"`
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		resp.Body.Close()
		cancel()
		t.Fatalf("decode status: %v", err)
	}
	resp.Body.Close()
	if status.Board != "yaml-bench" {
		t.Fatalf("status board = %q, want yaml-bench", status.Board)
	}
	if status.Version != "0.0.0-it" {
		t.Fatalf("status version = %q, want 0.0.0-it", status.Version)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v, want context.Canceled", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
}

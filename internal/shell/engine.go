// Package shell implements the table-driven command engine behind the
// device console. Commands are registered by name and dispatched from
// raw text lines arriving over any transport; all user-facing output
// goes through a single replaceable sink, keeping the engine
// transport-agnostic.
package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	// MaxCommands is the command table capacity.
	MaxCommands = 24

	// HistoryDepth is how many recent lines are retained.
	HistoryDepth = 8

	// MaxArgs is the argument cap used by variadic built-ins.
	MaxArgs = 8
)

// ErrCapacityExceeded is returned by Register when the table is full.
var ErrCapacityExceeded = errors.New("shell: command table full")

// Handler executes a command with its typed arguments, writing any
// user-facing output to out. A nil return counts as success.
type Handler func(args []Arg, out io.Writer) error

// Command describes one table entry.
type Command struct {
	Name    string
	Help    string
	Usage   string
	MinArgs int
	MaxArgs int
	Hidden  bool // omitted from the help listing
	Handler Handler
}

// Stats is a snapshot of the engine's counters.
type Stats struct {
	Registered int    `json:"registered"`
	Capacity   int    `json:"capacity"`
	Total      uint64 `json:"total"`
	Succeeded  uint64 `json:"succeeded"`
	Failed     uint64 `json:"failed"`
	Unknown    uint64 `json:"unknown"`
	ArgErrors  uint64 `json:"arg_errors"`
	HistoryLen int    `json:"history_len"`
}

// Config carries engine construction parameters.
type Config struct {
	// Output is the initial sink. Defaults to os.Stdout.
	Output io.Writer
	// Version is what the version built-in reports.
	Version string
	// Uptime supplies elapsed runtime for the uptime built-in.
	// Defaults to time since construction.
	Uptime func() time.Duration
}

// Engine is the command dispatcher. Its lock guards the table, the
// history, and the counters, and is never held while a handler runs.
type Engine struct {
	mu       sync.Mutex
	commands []Command
	history  []string
	stats    Stats
	out      io.Writer

	version string
	uptime  func() time.Duration
}

// New creates an Engine with the built-in command set registered.
func New(cfg Config) *Engine {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Version == "" {
		cfg.Version = "boardmon (dev)"
	}
	if cfg.Uptime == nil {
		start := time.Now()
		cfg.Uptime = func() time.Duration { return time.Since(start) }
	}

	e := &Engine{
		commands: make([]Command, 0, MaxCommands),
		out:      cfg.Output,
		version:  cfg.Version,
		uptime:   cfg.Uptime,
	}
	e.registerBuiltins()
	return e
}

// Register appends a command to the table. At capacity the table is
// left untouched and ErrCapacityExceeded is returned. Lookup is
// first-match, so a duplicate name never shadows an earlier one.
func (e *Engine) Register(cmd Command) error {
	if cmd.Name == "" {
		return errors.New("shell: command name required")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("shell: command %q has no handler", cmd.Name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.commands) >= MaxCommands {
		return fmt.Errorf("register %q: %w", cmd.Name, ErrCapacityExceeded)
	}
	e.commands = append(e.commands, cmd)
	return nil
}

// SetOutput replaces the output sink for subsequent executions.
func (e *Engine) SetOutput(w io.Writer) {
	e.mu.Lock()
	e.out = w
	e.mu.Unlock()
}

// Output returns the current sink.
func (e *Engine) Output() io.Writer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out
}

// History returns the retained lines, oldest first.
func (e *Engine) History() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]string, len(e.history))
	copy(out, e.history)
	return out
}

// Stats returns a snapshot of the engine's counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

func (e *Engine) statsLocked() Stats {
	st := e.stats
	st.Registered = len(e.commands)
	st.Capacity = MaxCommands
	st.HistoryLen = len(e.history)
	return st
}

// Execute parses and dispatches one raw command line.
//
// Empty and whitespace-only lines are complete no-ops. Anything else
// is recorded in history (deduplicated against the most recent entry)
// before lookup, so unknown commands show up there too. Lookup is a
// case-insensitive exact match on the first token. A second token of
// exactly "--help" prints the command's usage and returns without
// touching any counter. Every other dispatch counts toward the total
// exactly once, whether it lands on the unknown, arity-error, or
// handler path. Handlers run without the engine lock held.
func (e *Engine) Execute(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	e.mu.Lock()
	e.recordHistoryLocked(trimmed)

	tokens := splitLine(trimmed)
	if len(tokens) == 0 {
		e.mu.Unlock()
		return
	}

	out := e.out
	cmd, found := e.findLocked(tokens[0])
	if !found {
		e.stats.Total++
		e.stats.Unknown++
		e.mu.Unlock()
		fmt.Fprintf(out, "Unknown command: '%s'. Type 'help'.\n", tokens[0])
		return
	}

	if len(tokens) > 1 && tokens[1] == "--help" {
		e.mu.Unlock()
		usage := cmd.Usage
		if usage == "" {
			usage = "N/A"
		}
		fmt.Fprintf(out, "Usage: %s\n", usage)
		if cmd.Help != "" {
			fmt.Fprintf(out, "  %s\n", cmd.Help)
		}
		return
	}

	argc := len(tokens) - 1
	if argc < cmd.MinArgs {
		e.stats.Total++
		e.stats.ArgErrors++
		e.mu.Unlock()
		fmt.Fprintf(out, "Too few args for '%s' (min %d, got %d)\n",
			cmd.Name, cmd.MinArgs, argc)
		return
	}
	if argc > cmd.MaxArgs {
		e.stats.Total++
		e.stats.ArgErrors++
		e.mu.Unlock()
		fmt.Fprintf(out, "Too many args for '%s' (max %d, got %d)\n",
			cmd.Name, cmd.MaxArgs, argc)
		return
	}

	e.stats.Total++
	e.mu.Unlock()

	args := make([]Arg, argc)
	for i, tok := range tokens[1:] {
		args[i] = typeToken(tok)
	}

	err := cmd.Handler(args, out)

	e.mu.Lock()
	if err != nil {
		e.stats.Failed++
	} else {
		e.stats.Succeeded++
	}
	e.mu.Unlock()

	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
}

// findLocked returns a copy of the first table entry whose name
// matches, ignoring case.
func (e *Engine) findLocked(name string) (Command, bool) {
	for i := range e.commands {
		if strings.EqualFold(e.commands[i].Name, name) {
			return e.commands[i], true
		}
	}
	return Command{}, false
}

// recordHistoryLocked appends line unless it repeats the most recent
// entry, evicting the oldest line on overflow.
func (e *Engine) recordHistoryLocked(line string) {
	if n := len(e.history); n > 0 && e.history[n-1] == line {
		return
	}
	e.history = append(e.history, line)
	if len(e.history) > HistoryDepth {
		e.history = e.history[1:]
	}
}

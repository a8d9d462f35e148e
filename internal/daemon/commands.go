package daemon

import (
	"fmt"
	"io"
	"strings"

	"github.com/eliteGoblin/boardmon/internal/logstore"
	"github.com/eliteGoblin/boardmon/internal/shell"
	"github.com/eliteGoblin/boardmon/internal/watchdog"
)

const (
	logTailDefault   = 8
	logSearchDefault = 16
	logJSONDefault   = 16
	logJSONMaxBytes  = 1024
)

// registerCommands installs the diagnostic commands on top of the
// engine's built-ins.
func (d *Daemon) registerCommands() error {
	commands := []shell.Command{
		{Name: "log", Help: "Append a log entry", Usage: "log <level> <module> <message...>",
			MinArgs: 3, MaxArgs: 16, Handler: d.cmdLog},
		{Name: "loglevel", Help: "Show or set the log filter", Usage: "loglevel [level]",
			MaxArgs: 1, Handler: d.cmdLogLevel},
		{Name: "logs", Help: "Dump the log buffer", Usage: "logs [min-level]",
			MaxArgs: 1, Handler: d.cmdLogs},
		{Name: "logtail", Help: "Show the most recent log entries", Usage: "logtail [n]",
			MaxArgs: 1, Handler: d.cmdLogTail},
		{Name: "logsearch", Help: "Search log messages", Usage: "logsearch <keyword> [max]",
			MinArgs: 1, MaxArgs: 2, Handler: d.cmdLogSearch},
		{Name: "logstats", Help: "Logging statistics", Usage: "logstats",
			Handler: d.cmdLogStats},
		{Name: "logclear", Help: "Clear the log buffer", Usage: "logclear",
			Handler: d.cmdLogClear},
		{Name: "logjson", Help: "Dump logs as JSON", Usage: "logjson [max]",
			MaxArgs: 1, Handler: d.cmdLogJSON},
		{Name: "wdg", Help: "Watchdog control", Usage: "wdg [list|stats|enable|disable]",
			MaxArgs: 1, Handler: d.cmdWdg},
		{Name: "beat", Help: "Heartbeat a watchdog slot", Usage: "beat <slot>",
			MinArgs: 1, MaxArgs: 1, Handler: d.cmdBeat},
		{Name: "sys", Help: "System information report", Usage: "sys",
			Handler: d.cmdSys},
		{Name: "temp", Help: "Current temperature", Usage: "temp",
			Handler: d.cmdTemp},
		{Name: "free", Help: "Memory usage", Usage: "free",
			Handler: d.cmdFree},
		{Name: "misbehave", Usage: "misbehave", Hidden: true,
			Handler: d.cmdMisbehave},
	}
	for _, cmd := range commands {
		if err := d.engine.Register(cmd); err != nil {
			return fmt.Errorf("register %q: %w", cmd.Name, err)
		}
	}
	return nil
}

func (d *Daemon) cmdLog(args []shell.Arg, out io.Writer) error {
	level, err := logstore.ParseLevel(args[0].Raw)
	if err != nil {
		return err
	}
	parts := make([]string, 0, len(args)-2)
	for _, a := range args[2:] {
		parts = append(parts, a.Raw)
	}
	d.store.Append(level, args[1].Raw, strings.Join(parts, " "))
	fmt.Fprintln(out, "Logged.")
	return nil
}

func (d *Daemon) cmdLogLevel(args []shell.Arg, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintf(out, "Log filter: >= %s\n", d.store.MinLevel())
		return nil
	}
	level, err := logstore.ParseLevel(args[0].Raw)
	if err != nil {
		return err
	}
	d.store.SetMinLevel(level)
	fmt.Fprintf(out, "Log filter set to >= %s\n", level)
	return nil
}

func (d *Daemon) cmdLogs(args []shell.Arg, out io.Writer) error {
	min := logstore.Debug
	if len(args) == 1 {
		parsed, err := logstore.ParseLevel(args[0].Raw)
		if err != nil {
			return err
		}
		min = parsed
	}

	stats := d.store.Stats()
	entries := d.store.Dump(min)
	fmt.Fprintf(out, "\n=== Log Buffer (%d / %d entries, filter >= %s) ===\n",
		stats.Count, stats.Capacity, min)
	for i := range entries {
		writeEntry(out, &entries[i])
	}
	fmt.Fprintf(out, "=== Shown %d entries ===\n\n", len(entries))
	return nil
}

func (d *Daemon) cmdLogTail(args []shell.Arg, out io.Writer) error {
	n := logTailDefault
	if len(args) == 1 {
		if args[0].Kind != shell.KindInt || args[0].Int < 1 {
			return fmt.Errorf("count must be a positive number, got %q", args[0].Raw)
		}
		n = int(args[0].Int)
	}

	entries := d.store.DumpLast(n)
	fmt.Fprintf(out, "\n=== Last %d Log Entries ===\n", len(entries))
	for i := range entries {
		writeEntry(out, &entries[i])
	}
	fmt.Fprint(out, "==========================\n\n")
	return nil
}

func (d *Daemon) cmdLogSearch(args []shell.Arg, out io.Writer) error {
	max := logSearchDefault
	if len(args) == 2 {
		if args[1].Kind != shell.KindInt || args[1].Int < 1 {
			return fmt.Errorf("max must be a positive number, got %q", args[1].Raw)
		}
		max = int(args[1].Int)
	}

	keyword := args[0].Raw
	matches := d.store.Search(keyword, max)
	fmt.Fprintf(out, "\n=== Log Search: %q ===\n", keyword)
	for i := range matches {
		writeEntry(out, &matches[i])
	}
	fmt.Fprintf(out, "=== Found %d matches ===\n\n", len(matches))
	return nil
}

func (d *Daemon) cmdLogStats(_ []shell.Arg, out io.Writer) error {
	st := d.store.Stats()
	fmt.Fprint(out, "\n=== Logging Statistics ===\n")
	fmt.Fprintf(out, "Buffer   : %d / %d entries\n", st.Count, st.Capacity)
	fmt.Fprintf(out, "Total    : %d messages\n", st.Total)
	fmt.Fprintf(out, "Dropped  : %d (buffer full)\n", st.Dropped)
	fmt.Fprintf(out, "Queries  : %d\n", st.Queries)
	fmt.Fprintln(out, "Per level:")
	for lvl := logstore.Debug; lvl <= logstore.Error; lvl++ {
		fmt.Fprintf(out, "  %-6s : %d\n", lvl, st.PerLevel[lvl])
	}
	fmt.Fprintf(out, "Filter   : >= %s\n", st.MinLevel)
	fmt.Fprint(out, "=========================\n\n")
	return nil
}

func (d *Daemon) cmdLogClear(_ []shell.Arg, out io.Writer) error {
	d.store.Clear()
	fmt.Fprintln(out, "Log store cleared.")
	return nil
}

func (d *Daemon) cmdLogJSON(args []shell.Arg, out io.Writer) error {
	max := logJSONDefault
	if len(args) == 1 {
		if args[0].Kind != shell.KindInt || args[0].Int < 1 {
			return fmt.Errorf("max must be a positive number, got %q", args[0].Raw)
		}
		max = int(args[0].Int)
	}
	fmt.Fprintf(out, "%s\n", d.store.MarshalBounded(max, logJSONMaxBytes))
	return nil
}

func (d *Daemon) cmdWdg(args []shell.Arg, out io.Writer) error {
	sub := "list"
	if len(args) == 1 {
		sub = strings.ToLower(args[0].Raw)
	}
	switch sub {
	case "list":
		d.writeWdgTable(out)
	case "stats":
		d.writeWdgStats(out)
	case "enable":
		d.wdg.Enable(true)
		fmt.Fprintln(out, "Watchdog enabled.")
	case "disable":
		d.wdg.Enable(false)
		fmt.Fprintln(out, "Watchdog disabled.")
	default:
		return fmt.Errorf("unknown subcommand %q (want list|stats|enable|disable)", sub)
	}
	return nil
}

func (d *Daemon) writeWdgTable(out io.Writer) {
	st := d.wdg.Stats()
	enabled := "DISABLED"
	if st.Enabled {
		enabled = "ENABLED"
	}
	fmt.Fprint(out, "\n=== Watchdog Status ===\n")
	fmt.Fprintf(out, "Global: %s | Checks: %d | Heartbeats: %d | Timeouts: %d | Recoveries: %d\n",
		enabled, st.Checks, st.Beats, st.Timeouts, st.Recoveries)
	fmt.Fprintf(out, "%-4s %-20s %-14s %-10s %-6s %-6s\n",
		"Slot", "Name", "State", "Timeout", "Beats", "Fails")
	fmt.Fprintln(out, "---- -------------------- -------------- ---------- ------ ------")
	for _, t := range d.wdg.Snapshot() {
		fmt.Fprintf(out, "%-4d %-20s %-14s %-10d %-6d %-6d\n",
			t.Slot, t.Name, t.State, t.Timeout.Milliseconds(), t.Beats, t.Timeouts)
	}
	fmt.Fprint(out, "=======================\n\n")
}

func (d *Daemon) writeWdgStats(out io.Writer) {
	st := d.wdg.Stats()
	enabled := "yes"
	if !st.Enabled {
		enabled = "no"
	}
	fmt.Fprint(out, "\n=== Watchdog Statistics ===\n")
	fmt.Fprintf(out, "Enabled   : %s\n", enabled)
	fmt.Fprintf(out, "Slots     : %d active / %d registered / %d capacity\n",
		st.Active, st.Registered, st.Capacity)
	fmt.Fprintf(out, "Checks    : %d\n", st.Checks)
	fmt.Fprintf(out, "Heartbeats: %d\n", st.Beats)
	fmt.Fprintf(out, "Timeouts  : %d\n", st.Timeouts)
	fmt.Fprintf(out, "Recoveries: %d\n", st.Recoveries)
	fmt.Fprint(out, "===========================\n\n")
}

func (d *Daemon) cmdBeat(args []shell.Arg, out io.Writer) error {
	if args[0].Kind != shell.KindInt {
		return fmt.Errorf("slot must be a number, got %q", args[0].Raw)
	}
	slot := int(args[0].Int)
	for _, t := range d.wdg.Snapshot() {
		if t.Slot == slot {
			d.wdg.Heartbeat(watchdog.Handle(slot))
			fmt.Fprintf(out, "Heartbeat sent to '%s' (slot %d)\n", t.Name, slot)
			return nil
		}
	}
	return fmt.Errorf("no active target in slot %d", slot)
}

func (d *Daemon) cmdSys(_ []shell.Arg, out io.Writer) error {
	d.sys.Dump(out)
	return nil
}

func (d *Daemon) cmdTemp(_ []shell.Arg, out io.Writer) error {
	fmt.Fprintf(out, "Temperature: %.1f C\n", d.sys.TempC())
	return nil
}

func (d *Daemon) cmdFree(_ []shell.Arg, out io.Writer) error {
	snap := d.sys.Latest()
	fmt.Fprintf(out, "Heap : %d B allocated / %d B reserved\n", snap.HeapAlloc, snap.HeapSys)
	fmt.Fprintf(out, "Host : %d B free of %d B (%.1f%% used)\n",
		snap.MemFree, snap.MemTotal, snap.MemUsedPct)
	fmt.Fprintf(out, "RSS  : %d B\n", snap.ProcRSS)
	return nil
}

func (d *Daemon) cmdMisbehave(_ []shell.Arg, out io.Writer) error {
	d.workers.Stall()
	fmt.Fprintln(out, "Pulse worker wedged; the watchdog should catch it.")
	return nil
}

// writeEntry renders one log entry the way the console dump commands
// expect: elapsed seconds, level tag, module, message.
func writeEntry(out io.Writer, e *logstore.Entry) {
	ms := e.Timestamp.Milliseconds()
	fmt.Fprintf(out, "[%5d.%03d] %s %-8s %s\n",
		ms/1000, ms%1000, e.Level.Tag(), e.Module, e.Message)
}

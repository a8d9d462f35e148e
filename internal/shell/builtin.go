package shell

import (
	"fmt"
	"io"
	"runtime"
	"strings"
)

// registerBuiltins installs the standard command set. It runs during
// construction against an empty table, so capacity errors cannot
// occur.
func (e *Engine) registerBuiltins() {
	builtins := []Command{
		{
			Name: "help", Help: "Show available commands",
			Usage: "help", Handler: e.helpHandler,
		},
		{
			Name: "status", Help: "Command engine statistics",
			Usage: "status", Handler: e.statusHandler,
		},
		{
			Name: "history", Help: "Show command history",
			Usage: "history", Handler: e.historyHandler,
		},
		{
			Name: "echo", Help: "Echo arguments back",
			Usage: "echo <args...>", MaxArgs: MaxArgs, Handler: echoHandler,
		},
		{
			Name: "uptime", Help: "Show system uptime",
			Usage: "uptime", Handler: e.uptimeHandler,
		},
		{
			Name: "version", Help: "Show daemon version",
			Usage: "version", Handler: e.versionHandler,
		},
	}
	for _, cmd := range builtins {
		if err := e.Register(cmd); err != nil {
			panic(err)
		}
	}
}

func (e *Engine) helpHandler(_ []Arg, out io.Writer) error {
	e.mu.Lock()
	visible := make([]Command, 0, len(e.commands))
	for _, c := range e.commands {
		if !c.Hidden {
			visible = append(visible, c)
		}
	}
	e.mu.Unlock()

	fmt.Fprintf(out, "\nAvailable commands:\n")
	fmt.Fprintf(out, "%-16s %s\n", "Command", "Description")
	fmt.Fprintln(out, "---------------- --------------------------------")
	for _, c := range visible {
		fmt.Fprintf(out, "%-16s %s\n", c.Name, c.Help)
	}
	fmt.Fprintf(out, "\nType '<command> --help' for usage details.\n\n")
	return nil
}

func (e *Engine) statusHandler(_ []Arg, out io.Writer) error {
	st := e.Stats()

	fmt.Fprintf(out, "\n=== Command Engine Status ===\n")
	fmt.Fprintf(out, "Registered: %d/%d\n", st.Registered, st.Capacity)
	fmt.Fprintf(out, "Executed  : %d (ok: %d, fail: %d, unknown: %d)\n",
		st.Total, st.Succeeded, st.Failed, st.Unknown)
	fmt.Fprintf(out, "Arg errors: %d\n", st.ArgErrors)
	fmt.Fprintf(out, "History   : %d/%d\n", st.HistoryLen, HistoryDepth)
	fmt.Fprintf(out, "============================\n\n")
	return nil
}

func (e *Engine) historyHandler(_ []Arg, out io.Writer) error {
	lines := e.History()

	fmt.Fprintf(out, "Command history (%d entries):\n", len(lines))
	for i, l := range lines {
		fmt.Fprintf(out, "  [%d] %s\n", i+1, l)
	}
	return nil
}

func echoHandler(args []Arg, out io.Writer) error {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	fmt.Fprintln(out, strings.Join(parts, " "))
	return nil
}

func (e *Engine) uptimeHandler(_ []Arg, out io.Writer) error {
	ms := e.uptime().Milliseconds()
	s := ms / 1000
	m := s / 60
	h := m / 60

	fmt.Fprintf(out, "Uptime: %02d:%02d:%02d.%03d\n", h, m%60, s%60, ms%1000)
	return nil
}

func (e *Engine) versionHandler(_ []Arg, out io.Writer) error {
	fmt.Fprintf(out, "%s\n", e.version)
	fmt.Fprintf(out, "Go runtime %s\n", runtime.Version())
	return nil
}

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// Console runs a line-oriented shell over a local reader/writer pair,
// normally stdin and stdout.
type Console struct {
	prompt string
	in     io.Reader
	out    io.Writer
	exec   Executor
	logger *zap.Logger
}

// NewConsole creates a local console.
func NewConsole(prompt string, in io.Reader, out io.Writer, exec Executor, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		prompt: prompt,
		in:     in,
		out:    out,
		exec:   exec,
		logger: logger,
	}
}

// Run reads lines until EOF or context cancel. EOF is a normal exit.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	fmt.Fprint(c.out, c.prompt)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				c.logger.Debug("console input closed")
				return <-scanErr
			}
			c.exec.Execute(line)
			fmt.Fprint(c.out, c.prompt)
		}
	}
}

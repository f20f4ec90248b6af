// Package processor contains message processors for the watcher.
package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Command pipes each message into an external program. Exit status 0 means
// processed, any other exit status means not processed.
type Command struct {
	argv    []string
	timeout time.Duration
	log     *slog.Logger
}

func NewCommand(argv []string, timeout time.Duration, log *slog.Logger) (*Command, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("command: no program configured")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Command{argv: argv, timeout: timeout, log: log}, nil
}

func (c *Command) Process(ctx context.Context, raw []byte) (bool, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	cmd.Stdin = bytes.NewReader(raw)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		c.log.Info("Command rejected message", "command", c.argv[0], "exit_code", exitErr.ExitCode(),
			"stderr", strings.TrimSpace(stderr.String()))
		return false, nil
	}
	return false, fmt.Errorf("run %s: %w", c.argv[0], err)
}

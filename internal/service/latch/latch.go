package latch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/oshokin/doorbell/internal/logger"
)

// Latch releases the door.
type Latch interface {
	Unlatch(ctx context.Context) error
}

// ErrNoCommand indicates that no unlatch command is configured.
var ErrNoCommand = errors.New("unlatch command is not configured")

// CommandLatch runs a configured program, for example a GPIO helper that
// pulses the relay pin, and waits for it to finish.
type CommandLatch struct {
	// argv is the program and its arguments.
	argv []string
}

// NewCommandLatch creates a latch running argv.
func NewCommandLatch(argv []string) (*CommandLatch, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, ErrNoCommand
	}

	return &CommandLatch{
		argv: append([]string(nil), argv...),
	}, nil
}

// Unlatch runs the command. Its combined output is logged and included in
// the error when the command fails.
func (l *CommandLatch) Unlatch(ctx context.Context) error {
	var output bytes.Buffer

	//nolint:gosec // The command comes from the operator's own configuration.
	cmd := exec.CommandContext(ctx, l.argv[0], l.argv[1:]...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	trimmed := strings.TrimSpace(output.String())

	if err != nil {
		return fmt.Errorf("run %s: %w (output: %q)", l.argv[0], err, trimmed)
	}

	logger.InfoKV(ctx, "Latch fired", "command", l.argv[0], "output", trimmed)

	return nil
}

// DryRun logs instead of firing the latch.
type DryRun struct{}

// Unlatch logs the skipped action.
func (DryRun) Unlatch(ctx context.Context) error {
	logger.Info(ctx, "Debug mode, latch not fired")

	return nil
}

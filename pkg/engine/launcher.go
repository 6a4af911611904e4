package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// Launcher runs a shell command to completion and reports its exit
// code. It exists as a capability so the engine can be exercised
// without spawning real processes.
type Launcher interface {
	Launch(ctx context.Context, command string) (int, error)
}

// Compile-time interface check.
var _ Launcher = (*shellLauncher)(nil)

// shellLauncher executes commands through sh -c, blocking until the
// process exits. Stdout and stderr are teed into the configured writer.
type shellLauncher struct {
	log logrus.FieldLogger
	out io.Writer
}

// NewShellLauncher creates a Launcher that writes all process output
// to out.
func NewShellLauncher(log logrus.FieldLogger, out io.Writer) Launcher {
	return &shellLauncher{
		log: log.WithField("component", "launcher"),
		out: out,
	}
}

// Launch runs the command and returns its exit code. The returned
// error is non-nil only when the command could not be executed at all;
// a non-zero exit from the command itself is not an error.
func (l *shellLauncher) Launch(ctx context.Context, command string) (int, error) {
	l.log.WithField("command", command).Debug("Starting shell command")

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Stdout = l.out
	cmd.Stderr = l.out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}

		return 0, fmt.Errorf("running command: %w", err)
	}

	return 0, nil
}

// Package execx runs the external helper tools the packaging pipeline
// depends on (ldd, dpkg, dpkg-query, strip, objcopy, cargo) as child
// processes, capturing stdout and stderr so failures can be reported with
// the tool's own diagnostics attached.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var ErrNotFound = exec.ErrNotFound

// ExternalCommandError reports a helper tool that exited non-zero. The
// captured stderr is kept verbatim for diagnostics.
type ExternalCommandError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExternalCommandError) Error() string {
	msg := fmt.Sprintf("%s %s exited with status %d", e.Tool, strings.Join(e.Args, " "), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Run executes command with args and returns its stdout. A non-zero exit
// becomes an *ExternalCommandError; a missing binary surfaces ErrNotFound
// so callers can distinguish "host has no dpkg" from "dpkg failed".
func Run(ctx context.Context, command string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = os.Environ()

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExternalCommandError{
				Tool:     command,
				Args:     args,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
			}
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", command, ErrNotFound)
		}
		return "", fmt.Errorf("running %s: %w", command, err)
	}

	return stdout.String(), nil
}

// Runner abstracts Run so the dependency analyzer and the strip stage can
// be exercised in tests without the host tools.
type Runner interface {
	Run(ctx context.Context, command string, args ...string) (string, error)
}

// System is the Runner backed by the real host tools.
type System struct{}

func (System) Run(ctx context.Context, command string, args ...string) (string, error) {
	return Run(ctx, command, args...)
}

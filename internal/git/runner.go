// pattern: Imperative Shell

package git

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// Runner executes the git binary in a directory and returns its stdout.
// A non-zero exit is reported as *CommandFailedError carrying stderr.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// ExecRunner runs git via os/exec.
type ExecRunner struct {
	Binary string // defaults to "git"
}

// NewExecRunner returns a runner for the git binary found on PATH.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{Binary: "git"}
}

func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = "git"
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return stdout.Bytes(), &CommandFailedError{
			Args:     args,
			Stderr:   msg,
			ExitCode: code,
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

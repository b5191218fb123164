// pattern: Imperative Shell
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"worktreehub/internal/instance"
)

const defaultClientTimeout = 30 * time.Second

// Delegate coordinates discovering a running worktreehub server and delegating
// a CLI command to it via HTTP. It handles error classification (no server vs
// other errors) and exit code logic.
type Delegate struct {
	// ConfigDir is the config directory for lock/port file discovery.
	ConfigDir string

	// ExitFunc is called to exit the process. Defaults to os.Exit.
	ExitFunc func(int)

	// Stderr is where error messages are written. Defaults to os.Stderr.
	Stderr io.Writer

	// ClientTimeout is the HTTP client timeout. Defaults to 30 seconds.
	// Worktree creation and agent login run longer.
	ClientTimeout time.Duration
}

func (d *Delegate) discover() *instance.Client {
	if d.ExitFunc == nil {
		d.ExitFunc = os.Exit
	}
	if d.Stderr == nil {
		d.Stderr = os.Stderr
	}
	if d.ClientTimeout == 0 {
		d.ClientTimeout = defaultClientTimeout
	}

	baseURL, err := instance.Discover(ResolveDataDir(d.ConfigDir))
	if err != nil {
		fmt.Fprintf(d.Stderr, "error: %v\n", err)
		if errors.Is(err, instance.ErrNotRunning) {
			d.ExitFunc(2)
		} else {
			d.ExitFunc(1)
		}
		return nil
	}

	return instance.NewClientWithTimeout(baseURL, d.ClientTimeout)
}

// Run executes a delegated command by discovering the running server and
// invoking fn with an HTTP client targeting it.
//
// Exit codes:
// - 2: no running worktreehub server found
// - 1: any other error (connection, request failed, etc.)
// - 0: success (fn returned nil)
func (d *Delegate) Run(fn func(*instance.Client) error) {
	client := d.discover()
	if client == nil {
		return
	}

	if err := fn(client); err != nil {
		var statusErr *instance.StatusError
		if errors.As(err, &statusErr) {
			fmt.Fprintf(d.Stderr, "error: %s\n", statusErr.Message)
		} else {
			fmt.Fprintf(d.Stderr, "error: %v\n", err)
		}
		d.ExitFunc(1)
	}
}

// Client discovers the running server and returns an HTTP client for it.
// Returns nil if discovery fails, after ExitFunc has been called.
func (d *Delegate) Client() *instance.Client {
	return d.discover()
}

// PrintJSON writes JSON data to stdout, indented when stdout is a terminal.
func PrintJSON(data []byte) error {
	return FprintJSON(os.Stdout, data, isTerminal(os.Stdout))
}

// FprintJSON writes JSON data to w. With pretty set the data is re-encoded
// with indentation; data that does not parse is written unchanged.
func FprintJSON(w io.Writer, data []byte, pretty bool) error {
	if pretty {
		var obj any
		if err := json.Unmarshal(data, &obj); err == nil {
			encoder := json.NewEncoder(w)
			encoder.SetIndent("", "  ")
			return encoder.Encode(obj)
		}
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

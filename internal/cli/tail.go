// pattern: Imperative Shell
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"worktreehub/internal/instance"
)

// When the server's bounded output buffer has dropped its oldest bytes, the
// tail of the previous snapshot is searched for in the new one, starting with
// overlapWindow bytes and halving down to minAnchor.
const (
	overlapWindow = 256
	minAnchor     = 4
)

// TailConfig configures the tail polling behavior.
type TailConfig struct {
	ProjectKey string
	Worktree   string
	Interval   time.Duration
	NoColor    bool
	Writer     io.Writer
	ErrWriter  io.Writer
}

// TailSession polls an agent session's output and streams new bytes to the
// writer. It returns nil when the context is cancelled or the session ends,
// and an error when the server cannot be reached after one retry.
func TailSession(ctx context.Context, client *instance.Client, cfg TailConfig) error {
	resp, err := fetchOutput(client, cfg.ProjectKey, cfg.Worktree)
	if err != nil {
		if isNotFound(err) {
			_, _ = fmt.Fprintln(cfg.ErrWriter, "No session running.")
			return nil
		}
		return err
	}

	write := func(s string) {
		if cfg.NoColor {
			s = StripANSI(s)
		}
		_, _ = io.WriteString(cfg.Writer, s)
	}

	write(resp.Output)
	last := resp.Output
	if !resp.Running {
		_, _ = fmt.Fprintln(cfg.ErrWriter, "Session ended.")
		return nil
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			resp, err := fetchOutput(client, cfg.ProjectKey, cfg.Worktree)
			if err != nil {
				if isNotFound(err) {
					_, _ = fmt.Fprintln(cfg.ErrWriter, "Session ended.")
					return nil
				}
				retryCount++
				if retryCount > 1 {
					return err
				}
				continue
			}
			retryCount = 0

			write(newOutput(last, resp.Output))
			last = resp.Output

			if !resp.Running {
				_, _ = fmt.Fprintln(cfg.ErrWriter, "Session ended.")
				return nil
			}
		}
	}
}

// newOutput returns the part of current that was not in previous. When the
// server trimmed its buffer, the tail of previous is located in current; if
// it cannot be found the whole snapshot is new.
func newOutput(previous, current string) string {
	if strings.HasPrefix(current, previous) {
		return current[len(previous):]
	}
	for k := min(len(previous), overlapWindow); k >= minAnchor; k /= 2 {
		anchor := previous[len(previous)-k:]
		if i := strings.LastIndex(current, anchor); i >= 0 {
			return current[i+k:]
		}
	}
	return current
}

func isNotFound(err error) bool {
	var statusErr *instance.StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}

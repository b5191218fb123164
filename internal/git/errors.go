package git

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotAGitRepository is returned when an operation needs a repository root
// and the project path is not inside one.
var ErrNotAGitRepository = errors.New("not a git repository")

// CommandFailedError reports a git invocation that exited non-zero.
type CommandFailedError struct {
	Args     []string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *CommandFailedError) Error() string {
	sub := "git"
	if len(e.Args) > 0 {
		sub = "git " + e.Args[0]
		if len(e.Args) > 1 && !strings.HasPrefix(e.Args[1], "-") {
			sub += " " + e.Args[1]
		}
	}
	return fmt.Sprintf("%s: %s", sub, e.Stderr)
}

func (e *CommandFailedError) Unwrap() error {
	return e.Err
}

// Message returns the stderr text of a failed git command, or err's text for
// any other error.
func Message(err error) string {
	var cf *CommandFailedError
	if errors.As(err, &cf) {
		return cf.Stderr
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsDirtyRemoval reports whether a worktree removal failed because the tree
// still has modified or untracked files.
func IsDirtyRemoval(err error) bool {
	var cf *CommandFailedError
	if !errors.As(err, &cf) {
		return false
	}
	msg := strings.ToLower(cf.Stderr)
	return strings.Contains(msg, "contains modified or untracked files") ||
		strings.Contains(msg, "use --force")
}

// IsMissingWorktree reports whether a removal failed because git no longer
// knows the path as a working tree.
func IsMissingWorktree(err error) bool {
	var cf *CommandFailedError
	if !errors.As(err, &cf) {
		return false
	}
	msg := strings.ToLower(cf.Stderr)
	return strings.Contains(msg, "is not a working tree")
}

// pattern: Functional Core

package session

import (
	"strconv"
	"strings"
)

// hostTerminalVars identify the terminal the engine itself runs under.
// Agents must not see them or they adapt their output to the wrong terminal.
var hostTerminalVars = map[string]bool{
	"TERM_PROGRAM":          true,
	"TERM_PROGRAM_VERSION":  true,
	"TERM_SESSION_ID":       true,
	"GHOSTTY_RESOURCES_DIR": true,
	"COLORTERM":             true,
	"XPC_SERVICE_NAME":      true,
	"ITERM_SESSION_ID":      true,
	"KITTY_WINDOW_ID":       true,
	"WEZTERM_PANE":          true,
}

// BuildEnv returns base with TERM, COLUMNS and LINES set for the pty size.
// When stripHost is true, host-terminal identity variables are removed.
func BuildEnv(base []string, stripHost bool, cols, rows int) []string {
	env := make([]string, 0, len(base)+3)
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		switch {
		case key == "TERM", key == "COLUMNS", key == "LINES":
			continue
		case stripHost && hostTerminalVars[key]:
			continue
		}
		env = append(env, kv)
	}
	return append(env,
		"TERM=xterm-256color",
		"COLUMNS="+strconv.Itoa(cols),
		"LINES="+strconv.Itoa(rows),
	)
}

// ShellQuote wraps s in single quotes for a POSIX shell.
func ShellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// pattern: Functional Core
package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
)

// PrintAgentHelp prints a guide for driving worktrees and agent sessions from
// another program. Static prose is followed by a command reference built
// from the registered commands.
func (a *App) PrintAgentHelp(w io.Writer) {
	fmt.Fprintln(w, "WORKTREEHUB AUTOMATION GUIDE")
	fmt.Fprintln(w, "============================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "OVERVIEW")
	fmt.Fprintln(w, "--------")
	fmt.Fprintln(w, "Worktreehub gives each task its own git worktree and runs an agent CLI and")
	fmt.Fprintln(w, "optional preview services inside it, each under a pseudo-terminal. A single")
	fmt.Fprintln(w, "server runs at a time (enforced by file lock).")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "All group commands delegate to the running server via HTTP. Start it with")
	fmt.Fprintln(w, "'worktreehub serve' in a terminal tab or service manager.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "WORKFLOW")
	fmt.Fprintln(w, "--------")
	fmt.Fprintln(w, "  1. Open the repository and note its project key:")
	fmt.Fprintln(w, "     worktreehub project open /path/to/repo")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  2. Create a worktree for the task from an existing branch:")
	fmt.Fprintln(w, "     worktreehub worktree create <project-key> main")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "     The JSON result names the worktree and the agent branch created for it.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  3. Start the agent in the worktree:")
	fmt.Fprintln(w, "     worktreehub session start <project-key> <worktree>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  4. Send a prompt and read or tail the output:")
	fmt.Fprintln(w, "     worktreehub session send <project-key> <worktree> \"fix the failing test\"")
	fmt.Fprintln(w, "     worktreehub session output <project-key> <worktree>")
	fmt.Fprintln(w, "     worktreehub session tail <project-key> <worktree> --no-color")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  5. Delete the worktree when the branch has been merged:")
	fmt.Fprintln(w, "     worktreehub worktree delete <project-key> <worktree>")
	fmt.Fprintln(w)

	a.printCommandReference(w)

	fmt.Fprintln(w, "SESSION INTERACTION PATTERNS")
	fmt.Fprintln(w, "---------------------------")
	fmt.Fprintln(w, "Send + Read pattern (polling):")
	fmt.Fprintln(w, "  worktreehub session send <project-key> <worktree> \"run the tests\"")
	fmt.Fprintln(w, "  sleep 5")
	fmt.Fprintln(w, "  worktreehub session output <project-key> <worktree>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Key behaviors:")
	fmt.Fprintln(w, "  - 'send' presses Enter after the text unless --no-enter is given.")
	fmt.Fprintln(w, "  - 'output' prints the retained output (up to 1 MiB) without escape")
	fmt.Fprintln(w, "    sequences; pass --raw to keep them.")
	fmt.Fprintln(w, "  - 'tail' exits cleanly when the session ends.")
	fmt.Fprintln(w, "  - 'session start' on a running agent only resizes it.")
	fmt.Fprintln(w, "  - Preview services are configured per worktree; 'preview start' without")
	fmt.Fprintln(w, "    a service id starts every enabled service.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "EXIT CODES")
	fmt.Fprintln(w, "----------")
	fmt.Fprintln(w, "  0  Success")
	fmt.Fprintln(w, "  1  Error (invalid arguments, command failed, etc.)")
	fmt.Fprintln(w, "  2  No running worktreehub server found")
}

// printCommandReference prints the dynamic command reference section
// by iterating registered commands and groups.
func (a *App) printCommandReference(w io.Writer) {
	fmt.Fprintln(w, "COMMAND REFERENCE")
	fmt.Fprintln(w, "-----------------")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Top-level commands:")
	for _, name := range topLevelOrder {
		if cmd, ok := a.commands[name]; ok {
			fmt.Fprintf(w, "  %-18s %s\n", cmd.Name, cmd.Summary)
			fmt.Fprintf(w, "                     %s\n", cmd.Usage)
		}
	}
	fmt.Fprintln(w)

	for _, groupName := range groupOrder {
		group, ok := a.groups[groupName]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%s commands (%s):\n", group.Name, group.Summary)
		names := slices.Sorted(maps.Keys(group.Commands))
		for _, name := range names {
			cmd := group.Commands[name]
			fmt.Fprintf(w, "  %-18s %s\n", groupName+" "+cmd.Name, cmd.Summary)
			fmt.Fprintf(w, "                     %s\n", cmd.Usage)
		}
		fmt.Fprintln(w)
	}
}

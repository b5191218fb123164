// pattern: Imperative Shell
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"worktreehub/internal/instance"
)

// worktreeTimeout bounds calls that run git worktree add/remove on the server.
const worktreeTimeout = 2 * time.Minute

// RegisterWorktreeCommands registers the worktree command group commands.
// Requires configDir for discovering the running worktreehub server.
func RegisterWorktreeCommands(group *Group, configDir string) {
	group.AddCommand(&Command{
		Name:    "list",
		Summary: "List managed worktrees with their sessions",
		Usage:   "Usage: worktreehub worktree list <project-key> [--branch <name>]",
		Run: func(args []string) error {
			fs := newFlagSet("worktree list")
			branch := fs.String("branch", "", "only worktrees created from this branch")
			rest, err := parseArgs(fs, args, 1, "Usage: worktreehub worktree list <project-key> [--branch <name>]")
			if err != nil {
				return err
			}
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.ListWorktrees(rest[0], *branch)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "create",
		Summary: "Create a new git worktree",
		Usage:   "Usage: worktreehub worktree create <project-key> <branch> [--from <start-point>]",
		Run: func(args []string) error {
			fs := newFlagSet("worktree create")
			from := fs.String("from", "", "commit or ref to start from (default: the branch)")
			rest, err := parseArgs(fs, args, 2, "Usage: worktreehub worktree create <project-key> <branch> [--from <start-point>]")
			if err != nil {
				return err
			}
			delegate := Delegate{ConfigDir: configDir, ClientTimeout: worktreeTimeout}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.CreateWorktree(rest[0], rest[1], *from)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "rename",
		Summary: "Set a worktree's display name",
		Usage:   "Usage: worktreehub worktree rename <project-key> <worktree> <display-name>",
		Run: func(args []string) error {
			if len(args) < 3 {
				return fmt.Errorf("usage: worktreehub worktree rename <project-key> <worktree> <display-name>")
			}
			displayName := strings.Join(args[2:], " ")
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.RenameWorktree(args[0], args[1], displayName)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "delete",
		Summary: "Stop a worktree's sessions and delete it",
		Usage:   "Usage: worktreehub worktree delete <project-key> <worktree>",
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: worktreehub worktree delete <project-key> <worktree>")
			}
			delegate := Delegate{ConfigDir: configDir, ClientTimeout: worktreeTimeout}
			delegate.Run(func(client *instance.Client) error {
				if err := client.DeleteWorktree(args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(os.Stdout, "Worktree deleted.")
				return nil
			})
			return nil
		},
	})
}

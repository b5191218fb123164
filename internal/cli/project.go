// pattern: Imperative Shell
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"worktreehub/internal/instance"
	"worktreehub/internal/project"
)

// RegisterProjectCommands registers the project command group commands.
func RegisterProjectCommands(group *Group, configDir string) {
	group.AddCommand(&Command{
		Name:    "open",
		Summary: "Open a git repository (default: current directory)",
		Usage:   "Usage: worktreehub project open [path]",
		Run: func(args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.OpenProject(abs)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "list",
		Summary: "List open, recent and favorite projects",
		Usage:   "Usage: worktreehub project list",
		Run: func(args []string) error {
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.ListProjects()
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "discover",
		Summary: "List repositories under the configured scan paths",
		Usage:   "Usage: worktreehub project discover",
		Run: func(args []string) error {
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.DiscoverProjects()
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "close",
		Summary: "Close a project, stopping its sessions",
		Usage:   "Usage: worktreehub project close <project-key> [--remove]",
		Run: func(args []string) error {
			fs := newFlagSet("project close")
			remove := fs.Bool("remove", false, "delete every managed worktree and forget the project")
			rest, err := parseArgs(fs, args, 1, "Usage: worktreehub project close <project-key> [--remove]")
			if err != nil {
				return err
			}
			delegate := Delegate{ConfigDir: configDir, ClientTimeout: 2 * worktreeTimeout}
			delegate.Run(func(client *instance.Client) error {
				return runProjectClose(client, os.Stdout, rest[0], *remove)
			})
			return nil
		},
	})

	registerProjectStateCommands(group, configDir)

	group.AddCommand(&Command{
		Name:    "branches",
		Summary: "List branches a worktree can be created from",
		Usage:   "Usage: worktreehub project branches <project-key>",
		Run: func(args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("usage: worktreehub project branches <project-key>")
			}
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.Branches(args[0])
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})
}

func registerProjectStateCommands(group *Group, configDir string) {
	group.AddCommand(&Command{
		Name:    "favorite",
		Summary: "Mark a project as a favorite (default: current directory)",
		Usage:   "Usage: worktreehub project favorite [path] [--remove]",
		Run: func(args []string) error {
			fs := newFlagSet("project favorite")
			remove := fs.Bool("remove", false, "unmark the project instead")
			rest, err := parseArgs(fs, args, 0, "Usage: worktreehub project favorite [path] [--remove]")
			if err != nil {
				return err
			}
			path := "."
			if len(rest) > 0 {
				path = rest[0]
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				var data []byte
				if *remove {
					data, err = client.RemoveFavorite(abs)
				} else {
					data, err = client.AddFavorite(abs)
				}
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "state",
		Summary: "Show or update the remembered selection of an open project",
		Usage:   stateUsage,
		Run: func(args []string) error {
			fs := newStateFlagSet()
			rest, err := parseArgs(fs, args, 1, stateUsage)
			if err != nil {
				return err
			}
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				return runProjectState(client, os.Stdout, rest[0], fs)
			})
			return nil
		},
	})
}

const stateUsage = "Usage: worktreehub project state <project-key> [--base-branch b] [--select wt] [--tabs a,b] [--active-tab t]"

func newStateFlagSet() *flag.FlagSet {
	fs := newFlagSet("project state")
	fs.String("base-branch", "", "branch new worktrees start from")
	fs.String("select", "", "selected worktree name")
	fs.StringSlice("tabs", nil, "open tabs, comma separated")
	fs.String("active-tab", "", "active tab, one of the open tabs")
	return fs
}

// runProjectState prints the project's state, first applying any flags
// that were set on top of the stored values.
func runProjectState(client *instance.Client, out io.Writer, key string, fs *flag.FlagSet) error {
	data, err := client.ProjectState(key)
	if err != nil {
		return err
	}
	var st project.State
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decoding project state: %w", err)
	}

	changed := false
	if fs.Changed("base-branch") {
		st.BaseBranch, _ = fs.GetString("base-branch")
		changed = true
	}
	if fs.Changed("select") {
		st.SelectedWorktree, _ = fs.GetString("select")
		changed = true
	}
	if fs.Changed("tabs") {
		st.OpenTabs, _ = fs.GetStringSlice("tabs")
		changed = true
	}
	if fs.Changed("active-tab") {
		st.ActiveTab, _ = fs.GetString("active-tab")
		changed = true
	}
	if changed {
		if data, err = client.SetProjectState(key, st); err != nil {
			return err
		}
	}
	return FprintJSON(out, data, false)
}

func runProjectClose(client *instance.Client, out io.Writer, key string, remove bool) error {
	if err := client.CloseProject(key, remove); err != nil {
		return err
	}
	if remove {
		fmt.Fprintln(out, "Project removed.")
	} else {
		fmt.Fprintln(out, "Project closed.")
	}
	return nil
}

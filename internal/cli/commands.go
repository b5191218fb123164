// pattern: Imperative Shell
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"worktreehub/internal/config"
	"worktreehub/internal/instance"
)

// ResolveDataDir returns the directory holding the lock and port files.
// If configDir is specified, uses that; otherwise the default config directory.
func ResolveDataDir(configDir string) string {
	if configDir != "" {
		return configDir
	}
	return config.Dir()
}

// BuildApp creates and configures the CLI application with all commands and groups.
func BuildApp(version string, configDir string) *App {
	app := NewApp(version)

	app.AddCommand(&Command{
		Name:    "logs",
		Summary: "Print recent server log entries as JSON",
		Usage:   "Usage: worktreehub logs [--scope <prefix>] [--limit N]",
		Run: func(args []string) error {
			fs := newFlagSet("logs")
			scope := fs.String("scope", "", "only entries whose scope starts with this prefix")
			limit := fs.Int("limit", 200, "maximum number of entries")
			if _, err := parseArgs(fs, args, 0, "Usage: worktreehub logs [--scope <prefix>] [--limit N]"); err != nil {
				return err
			}
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				return runLogs(client, os.Stdout, *scope, *limit)
			})
			return nil
		},
	})

	app.AddCommand(&Command{
		Name:    "cleanup",
		Summary: "Remove stale lock/port files from a crashed server",
		Usage:   "Usage: worktreehub cleanup",
		Run: func(args []string) error {
			if err := runCleanup(ResolveDataDir(configDir), os.Stdout); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return nil
		},
	})

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: worktreehub version",
		Run: func(args []string) error {
			fmt.Println(version)
			return nil
		},
	})

	RegisterProjectCommands(app.AddGroup("project", "Open, list and close repositories"), configDir)
	RegisterWorktreeCommands(app.AddGroup("worktree", "Manage git worktrees"), configDir)
	RegisterSessionCommands(app.AddGroup("session", "Drive a worktree's agent session"), configDir)
	RegisterPreviewCommands(app.AddGroup("preview", "Run preview services"), configDir)
	RegisterAuthCommands(app.AddGroup("auth", "Agent CLI login"), configDir)

	return app
}

// runCleanup removes stale lock and port files from a crashed server.
func runCleanup(dataDir string, out io.Writer) error {
	removed, err := instance.RemoveStale(dataDir)
	if errors.Is(err, instance.ErrAlreadyRunning) {
		return fmt.Errorf("a worktreehub server appears to be running. Stop it first")
	}
	if err != nil {
		return err
	}
	if removed {
		fmt.Fprintln(out, "Cleaned up stale lock and port files.")
	} else {
		fmt.Fprintln(out, "Nothing to clean up.")
	}
	return nil
}

func runLogs(client *instance.Client, out io.Writer, scope string, limit int) error {
	data, err := client.Logs(scope, limit)
	if err != nil {
		return err
	}
	return FprintJSON(out, data, false)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parseArgs parses flags anywhere in args and returns the positional
// arguments, failing with usage when fewer than min remain.
func parseArgs(fs *flag.FlagSet, args []string, min int, usage string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%v\n%s", err, usage)
	}
	rest := fs.Args()
	if len(rest) < min {
		return nil, errors.New(usage)
	}
	return rest, nil
}

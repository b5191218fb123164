// pattern: Imperative Shell
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"worktreehub/internal/instance"
)

// outputResponse mirrors the server's agent output payload.
type outputResponse struct {
	Output  string `json:"output"`
	Running bool   `json:"running"`
}

// RegisterSessionCommands registers the session command group commands.
// Every command addresses a worktree's agent session by project key and
// worktree name.
func RegisterSessionCommands(group *Group, configDir string) {
	group.AddCommand(&Command{
		Name:    "start",
		Summary: "Start the worktree's agent",
		Usage:   "Usage: worktreehub session start <project-key> <worktree> [--resume]",
		Run: func(args []string) error {
			fs := newFlagSet("session start")
			resume := fs.Bool("resume", false, "resume the agent's last conversation")
			rest, err := parseArgs(fs, args, 2, "Usage: worktreehub session start <project-key> <worktree> [--resume]")
			if err != nil {
				return err
			}
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.StartAgent(rest[0], rest[1], *resume)
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "stop",
		Summary: "Stop the worktree's agent",
		Usage:   "Usage: worktreehub session stop <project-key> <worktree>",
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: worktreehub session stop <project-key> <worktree>")
			}
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				if err := client.StopAgent(args[0], args[1]); err != nil {
					return err
				}
				fmt.Println("Session stopped.")
				return nil
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "send",
		Summary: "Type text into the agent",
		Usage:   "Usage: worktreehub session send <project-key> <worktree> <text> [--no-enter]",
		Run: func(args []string) error {
			fs := newFlagSet("session send")
			noEnter := fs.Bool("no-enter", false, "do not press Enter after the text")
			rest, err := parseArgs(fs, args, 3, "Usage: worktreehub session send <project-key> <worktree> <text> [--no-enter]")
			if err != nil {
				return err
			}
			text := strings.Join(rest[2:], " ")
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				if err := client.SendInput(rest[0], rest[1], text, !*noEnter); err != nil {
					return err
				}
				fmt.Println("Sent.")
				return nil
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "output",
		Summary: "Print the agent's retained output",
		Usage:   "Usage: worktreehub session output <project-key> <worktree> [--raw]",
		Run: func(args []string) error {
			fs := newFlagSet("session output")
			raw := fs.Bool("raw", false, "keep terminal escape sequences")
			rest, err := parseArgs(fs, args, 2, "Usage: worktreehub session output <project-key> <worktree> [--raw]")
			if err != nil {
				return err
			}
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				return runSessionOutput(client, os.Stdout, rest[0], rest[1], *raw)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "tail",
		Summary: "Stream the agent's output until it exits",
		Usage:   "Usage: worktreehub session tail <project-key> <worktree> [-i/--interval 1s] [--no-color]",
		Run: func(args []string) error {
			fs := newFlagSet("session tail")
			interval := fs.DurationP("interval", "i", time.Second, "polling interval")
			noColor := fs.Bool("no-color", false, "strip terminal escape sequences")
			rest, err := parseArgs(fs, args, 2, "Usage: worktreehub session tail <project-key> <worktree> [-i/--interval 1s] [--no-color]")
			if err != nil {
				return err
			}
			if *interval <= 0 {
				return fmt.Errorf("invalid interval: %v", *interval)
			}

			delegate := Delegate{ConfigDir: configDir}
			client := delegate.Client()
			if client == nil {
				return nil // ExitFunc already called by Client()
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = TailSession(ctx, client, TailConfig{
				ProjectKey: rest[0],
				Worktree:   rest[1],
				Interval:   *interval,
				NoColor:    *noColor,
				Writer:     os.Stdout,
				ErrWriter:  os.Stderr,
			})
			if err != nil {
				return fmt.Errorf("tail failed: %v", err)
			}
			return nil
		},
	})
}

// runSessionOutput prints the agent's output. Escape sequences are stripped
// unless raw is set.
func runSessionOutput(client *instance.Client, out io.Writer, key, name string, raw bool) error {
	resp, err := fetchOutput(client, key, name)
	if err != nil {
		return err
	}
	text := resp.Output
	if !raw {
		text = StripANSI(text)
	}
	_, err = io.WriteString(out, text)
	return err
}

func fetchOutput(client *instance.Client, key, name string) (outputResponse, error) {
	var resp outputResponse
	data, err := client.AgentOutput(key, name, true)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return resp, fmt.Errorf("failed to parse response: %w", err)
	}
	return resp, nil
}

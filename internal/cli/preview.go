// pattern: Imperative Shell
package cli

import (
	"fmt"

	"worktreehub/internal/instance"
)

// RegisterPreviewCommands registers the preview command group commands.
// Without a service id the commands act on every enabled service.
func RegisterPreviewCommands(group *Group, configDir string) {
	group.AddCommand(&Command{
		Name:    "start",
		Summary: "Start enabled preview services, or one service",
		Usage:   "Usage: worktreehub preview start <project-key> <worktree> [service-id]",
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: worktreehub preview start <project-key> <worktree> [service-id]")
			}
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				var (
					data []byte
					err  error
				)
				if len(args) > 2 {
					data, err = client.StartPreview(args[0], args[1], args[2])
				} else {
					data, err = client.StartPreviews(args[0], args[1])
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
		Name:    "stop",
		Summary: "Stop running preview services, or one service",
		Usage:   "Usage: worktreehub preview stop <project-key> <worktree> [service-id]",
		Run: func(args []string) error {
			if len(args) < 2 {
				return fmt.Errorf("usage: worktreehub preview stop <project-key> <worktree> [service-id]")
			}
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				var err error
				if len(args) > 2 {
					err = client.StopPreview(args[0], args[1], args[2])
				} else {
					err = client.StopPreviews(args[0], args[1])
				}
				if err != nil {
					return err
				}
				fmt.Println("Preview stopped.")
				return nil
			})
			return nil
		},
	})
}

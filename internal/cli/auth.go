// pattern: Imperative Shell
package cli

import (
	"time"

	"worktreehub/internal/instance"
)

// loginTimeout covers an interactive login completed in a browser.
const loginTimeout = 10 * time.Minute

// RegisterAuthCommands registers the auth command group commands.
func RegisterAuthCommands(group *Group, configDir string) {
	group.AddCommand(&Command{
		Name:    "status",
		Summary: "Report whether the agent CLI is logged in",
		Usage:   "Usage: worktreehub auth status",
		Run: func(args []string) error {
			delegate := Delegate{ConfigDir: configDir}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.AuthStatus()
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "login",
		Summary: "Run the agent CLI's login flow on the server host",
		Usage:   "Usage: worktreehub auth login",
		Run: func(args []string) error {
			delegate := Delegate{ConfigDir: configDir, ClientTimeout: loginTimeout}
			delegate.Run(func(client *instance.Client) error {
				data, err := client.AuthLogin()
				if err != nil {
					return err
				}
				return PrintJSON(data)
			})
			return nil
		},
	})
}

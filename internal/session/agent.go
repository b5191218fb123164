package session

import (
	"syscall"
	"time"

	"worktreehub/internal/logging"
)

// AgentOptions configures an interactive agent session for one worktree.
type AgentOptions struct {
	Title     string
	Dir       string
	Branch    string
	AgentPath string
	Shell     string
	Resume    bool
	Env       []string
	StopGrace time.Duration
	Logger    *logging.ScopedLogger
	OnExit    func(*Session)
}

// AgentCommand builds the shell line that runs the agent in dir and drops
// into a login shell once it exits.
func AgentCommand(agentPath, dir, shell string, resume bool) string {
	cmd := "cd " + ShellQuote(dir) + " && " + ShellQuote(agentPath)
	if resume {
		cmd += " resume"
	} else {
		cmd += " --cd " + ShellQuote(dir)
	}
	return cmd + "; exec " + ShellQuote(shell) + " -l"
}

// NewAgent returns an idle agent session.
func NewAgent(opts AgentOptions) *Session {
	shell := opts.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	return New(Options{
		Kind:              KindAgent,
		Title:             opts.Title,
		Dir:               opts.Dir,
		Branch:            opts.Branch,
		Shell:             shell,
		Command:           AgentCommand(opts.AgentPath, opts.Dir, shell, opts.Resume),
		Env:               opts.Env,
		StripHostTerminal: true,
		StopSignal:        syscall.SIGTERM,
		StopGrace:         opts.StopGrace,
		Logger:            opts.Logger,
		OnExit:            opts.OnExit,
	})
}

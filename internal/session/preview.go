package session

import (
	"syscall"
	"time"

	"worktreehub/internal/logging"
)

// PreviewOptions configures a long-running preview service such as a dev
// server.
type PreviewOptions struct {
	Title         string
	ServiceID     string
	Root          string // resolved service directory
	Branch        string
	Command       string
	EnvText       string // written to Root/.env while the service runs
	Shell         string
	Env           []string
	StopGrace     time.Duration
	MinimumUptime time.Duration
	Logger        *logging.ScopedLogger
	OnExit        func(*Session)
}

// NewPreview returns an idle preview session.
func NewPreview(opts PreviewOptions) *Session {
	return New(Options{
		Kind:          KindPreview,
		Title:         opts.Title,
		Dir:           opts.Root,
		Branch:        opts.Branch,
		ServiceID:     opts.ServiceID,
		Shell:         opts.Shell,
		Command:       "cd " + ShellQuote(opts.Root) + " && " + opts.Command,
		Env:           opts.Env,
		EnvFile:       NewEnvFile(opts.Root, opts.EnvText),
		StopSignal:    syscall.SIGINT,
		StopGrace:     opts.StopGrace,
		MinimumUptime: opts.MinimumUptime,
		Logger:        opts.Logger,
		OnExit:        opts.OnExit,
	})
}

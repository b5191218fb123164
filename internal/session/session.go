// pattern: Imperative Shell

package session

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"worktreehub/internal/logging"
)

// Kind distinguishes agent sessions from preview-service sessions.
type Kind string

const (
	KindAgent   Kind = "agent"
	KindPreview Kind = "preview"
)

// State is a session's lifecycle position. Stopped is terminal.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	// DefaultMaxOutput bounds the replay buffer; older bytes are dropped.
	DefaultMaxOutput = 1 << 20
	// DefaultStopGrace is how long Stop waits before escalating to SIGKILL.
	DefaultStopGrace = 2 * time.Second

	killWait   = time.Second
	drainWait  = 500 * time.Millisecond
	readBufLen = 32 * 1024
)

// ErrPtyAllocationFailed is returned when no pseudo-terminal could be opened.
var ErrPtyAllocationFailed = errors.New("failed to allocate pseudo-terminal")

// LaunchError reports a child process that could not be started.
type LaunchError struct {
	Message string
}

func (e *LaunchError) Error() string {
	return "failed to launch process: " + e.Message
}

// Options configures a Session. Most callers use NewAgent or NewPreview.
type Options struct {
	Kind    Kind
	Title   string
	Dir     string
	Branch  string
	Shell   string // login shell wrapping Command; defaults to /bin/sh
	Command string // passed to Shell as "-l -c Command"
	Env     []string

	// StripHostTerminal removes variables naming the outer terminal.
	StripHostTerminal bool
	// EnvFile is injected before launch and restored on exit or stop.
	EnvFile *EnvFile

	StopSignal    syscall.Signal
	StopGrace     time.Duration
	MinimumUptime time.Duration
	MaxOutput     int

	// ServiceID links a preview session to its configuration.
	ServiceID string

	Logger *logging.ScopedLogger
	OnExit func(*Session)
}

type subscriber struct {
	id int
	fn func([]byte)
}

// Session runs one child process on a pseudo-terminal and streams its
// output to observers. A stopped session cannot be restarted.
type Session struct {
	id        string
	kind      Kind
	dir       string
	branch    string
	serviceID string
	shell     string
	command   string
	env       []string
	stripHost bool
	envFile   *EnvFile
	stopSig   syscall.Signal
	grace     time.Duration
	minUptime time.Duration
	maxOutput int
	logger    *logging.ScopedLogger

	lifecycle sync.Mutex // serializes Start and Stop

	mu            sync.Mutex
	title         string
	state         State
	cmd           *exec.Cmd
	ptmx          *os.File
	cols, rows    int
	startedAt     time.Time
	exitCode      int
	exitErr       error
	stopRequested bool
	exitTimer     *time.Timer

	outMu   sync.Mutex
	output  []byte
	primary func([]byte)
	subs    []subscriber
	nextSub int

	exited   chan struct{} // closed when the child has been reaped
	done     chan struct{} // closed when the exit notification fires
	exitOnce sync.Once
	onExit   []func(*Session)
}

// New creates an idle session.
func New(opts Options) *Session {
	s := &Session{
		id:        uuid.NewString(),
		kind:      opts.Kind,
		dir:       opts.Dir,
		branch:    opts.Branch,
		serviceID: opts.ServiceID,
		shell:     opts.Shell,
		command:   opts.Command,
		env:       opts.Env,
		stripHost: opts.StripHostTerminal,
		envFile:   opts.EnvFile,
		stopSig:   opts.StopSignal,
		grace:     opts.StopGrace,
		minUptime: opts.MinimumUptime,
		maxOutput: opts.MaxOutput,
		logger:    opts.Logger,
		title:     opts.Title,
		exitCode:  -1,
		exited:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	if s.shell == "" {
		s.shell = "/bin/sh"
	}
	if s.env == nil {
		s.env = os.Environ()
	}
	if s.stopSig == 0 {
		s.stopSig = syscall.SIGTERM
	}
	if s.grace <= 0 {
		s.grace = DefaultStopGrace
	}
	if s.maxOutput <= 0 {
		s.maxOutput = DefaultMaxOutput
	}
	if s.logger == nil {
		s.logger = logging.NopLogger()
	}
	if opts.OnExit != nil {
		s.onExit = append(s.onExit, opts.OnExit)
	}
	return s
}

func (s *Session) ID() string        { return s.id }
func (s *Session) Kind() Kind        { return s.kind }
func (s *Session) Dir() string       { return s.dir }
func (s *Session) Branch() string    { return s.branch }
func (s *Session) ServiceID() string { return s.serviceID }
func (s *Session) Command() string   { return s.command }

// Title returns the display title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// SetTitle changes the display title.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	s.title = title
	s.mu.Unlock()
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsRunning reports whether the child process is alive.
func (s *Session) IsRunning() bool {
	return s.State() == StateRunning
}

// StartedAt returns when the child was launched, or the zero time.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// ExitCode returns the child's exit status, or -1 if it has not exited or
// was killed by a signal.
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Err returns the launch failure, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// Size returns the last applied terminal size.
func (s *Session) Size() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// Done is closed once the exit notification has fired.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// OnExit registers fn to run once when the session exits. If the session
// already exited, fn runs immediately.
func (s *Session) OnExit(fn func(*Session)) {
	s.mu.Lock()
	select {
	case <-s.done:
		s.mu.Unlock()
		fn(s)
		return
	default:
	}
	s.onExit = append(s.onExit, fn)
	s.mu.Unlock()
}

// fireExit delivers the exit notification exactly once.
func (s *Session) fireExit() {
	s.exitOnce.Do(func() {
		s.mu.Lock()
		if s.exitTimer != nil {
			s.exitTimer.Stop()
			s.exitTimer = nil
		}
		callbacks := s.onExit
		s.onExit = nil
		close(s.done)
		s.mu.Unlock()

		s.logger.Info("session exited", "id", s.id, "kind", string(s.kind), "exit_code", s.ExitCode())
		for _, fn := range callbacks {
			fn(s)
		}
	})
}

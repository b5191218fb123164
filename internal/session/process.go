package session

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// Start launches the child on a new pseudo-terminal of the given size.
// Calling Start on a session that is already past Idle only applies the
// size. A launch failure leaves the session Stopped with a diagnostic in
// its output and fires the exit notification.
func (s *Session) Start(cols, rows int) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	cols, rows = clampSize(cols, rows)

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		s.Resize(cols, rows)
		return nil
	}
	s.state = StateStarting
	s.cols, s.rows = cols, rows
	title := s.title
	s.mu.Unlock()

	ptmx, tty, err := pty.Open()
	if err != nil {
		s.emit([]byte("\n[Failed to allocate pseudo-terminal]\n"))
		s.fail(fmt.Errorf("%w: %v", ErrPtyAllocationFailed, err))
		s.logger.Error("pty allocation failed", "id", s.id, "error", err)
		return s.Err()
	}
	if err := pty.Setsize(ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		s.logger.Warn("failed to size pty", "id", s.id, "error", err)
	}

	if s.envFile != nil {
		if err := s.envFile.Inject(); err != nil {
			s.logger.Warn("failed to inject .env", "id", s.id, "error", err)
		}
	}

	cmd := exec.Command(s.shell, "-l", "-c", s.command)
	cmd.Dir = s.dir
	cmd.Env = BuildEnv(s.env, s.stripHost, cols, rows)
	cmd.Stdin = tty
	cmd.Stdout = tty
	cmd.Stderr = tty
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	if err := cmd.Start(); err != nil {
		_ = tty.Close()
		_ = ptmx.Close()
		s.emit([]byte(fmt.Sprintf("\n[Failed to start %s: %v]\n", title, err)))
		s.restoreEnv()
		s.fail(&LaunchError{Message: err.Error()})
		s.logger.Error("failed to start process", "id", s.id, "command", s.command, "error", err)
		return s.Err()
	}
	_ = tty.Close()

	s.mu.Lock()
	s.cmd = cmd
	s.ptmx = ptmx
	s.startedAt = time.Now()
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Info("session started", "id", s.id, "kind", string(s.kind), "dir", s.dir, "pid", cmd.Process.Pid)

	drained := make(chan struct{})
	go s.readLoop(drained)
	go s.waitLoop(cmd, drained)
	return nil
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = StateStopped
	s.exitErr = err
	close(s.exited)
	s.mu.Unlock()
	s.fireExit()
}

func (s *Session) readLoop(drained chan<- struct{}) {
	defer close(drained)
	s.mu.Lock()
	ptmx := s.ptmx
	s.mu.Unlock()

	buf := make([]byte, readBufLen)
	for {
		n, err := ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.emit(chunk)
		}
		if err != nil {
			return
		}
	}
}

func (s *Session) waitLoop(cmd *exec.Cmd, drained <-chan struct{}) {
	err := cmd.Wait()

	// Output still buffered in the pty is delivered before the exit notice.
	select {
	case <-drained:
	case <-time.After(drainWait):
	}

	code := -1
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		code = 0
	case errors.As(err, &exitErr):
		code = exitErr.ExitCode()
	}

	s.mu.Lock()
	_ = s.ptmx.Close()
	s.state = StateStopped
	s.exitCode = code
	stopRequested := s.stopRequested
	uptime := time.Since(s.startedAt)
	close(s.exited)
	s.mu.Unlock()

	s.restoreEnv()

	if stopRequested || s.minUptime <= 0 || uptime >= s.minUptime {
		s.fireExit()
		return
	}

	// A process that dies right away stays visible long enough to read why.
	remaining := s.minUptime - uptime
	s.emit([]byte(fmt.Sprintf("\n\n[Process exited with status %d. Closing in %ds...]\n",
		code, int(remaining/time.Second))))
	s.mu.Lock()
	s.exitTimer = time.AfterFunc(remaining, s.fireExit)
	s.mu.Unlock()
}

// Stop terminates the session. Running children receive the configured stop
// signal, then SIGKILL once the grace window elapses. Stop is idempotent and
// always leaves the session Stopped with its exit notification fired.
func (s *Session) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	switch s.state {
	case StateIdle:
		s.state = StateStopped
		close(s.exited)
		s.mu.Unlock()
		s.fireExit()
		return
	case StateStopped:
		s.mu.Unlock()
		s.fireExit()
		s.restoreEnv()
		return
	}
	s.stopRequested = true
	s.state = StateStopping
	pid := s.cmd.Process.Pid
	s.mu.Unlock()

	s.logger.Info("stopping session", "id", s.id, "signal", s.stopSig.String())
	signalGroup(pid, s.stopSig)

	select {
	case <-s.exited:
	case <-time.After(s.grace):
		s.logger.Warn("session did not exit in time, killing", "id", s.id, "grace", s.grace)
		signalGroup(pid, syscall.SIGKILL)
		select {
		case <-s.exited:
		case <-time.After(killWait):
			s.logger.Error("session still alive after SIGKILL", "id", s.id, "pid", pid)
		}
	}

	s.restoreEnv()
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.fireExit()
}

// Resize applies a new terminal size to a running session.
func (s *Session) Resize(cols, rows int) {
	cols, rows = clampSize(cols, rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return
	}
	if s.cols == cols && s.rows == rows {
		return
	}
	if err := pty.Setsize(s.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
		s.logger.Debug("resize failed", "id", s.id, "error", err)
		return
	}
	s.cols, s.rows = cols, rows
	signalGroup(s.cmd.Process.Pid, syscall.SIGWINCH)
}

// Send writes raw bytes to the child's terminal. Writes to a session that is
// not running are dropped.
func (s *Session) Send(data []byte) {
	s.mu.Lock()
	ptmx := s.ptmx
	running := s.state == StateRunning
	s.mu.Unlock()
	if !running || len(data) == 0 {
		return
	}
	if _, err := ptmx.Write(data); err != nil {
		s.logger.Debug("write to session failed", "id", s.id, "error", err)
	}
}

// SendLine writes text followed by a newline.
func (s *Session) SendLine(text string) {
	s.Send([]byte(text + "\n"))
}

func (s *Session) restoreEnv() {
	if s.envFile == nil {
		return
	}
	if err := s.envFile.Restore(); err != nil {
		s.logger.Warn("failed to restore .env", "id", s.id, "error", err)
	}
}

// signalGroup signals the process group led by pid, falling back to the
// process itself.
func signalGroup(pid int, sig syscall.Signal) {
	if pid <= 0 {
		return
	}
	if err := unix.Kill(-pid, sig); err != nil {
		_ = unix.Kill(pid, sig)
	}
}

func clampSize(cols, rows int) (int, int) {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return min(cols, 0xffff), min(rows, 0xffff)
}

package sidecar

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"media-organizer/pkg/logging"
)

// ErrAlreadyRunning is returned when Start is called twice. The shell
// owns at most one backend process per run.
var ErrAlreadyRunning = errors.New("sidecar already running")

// ErrNotRunning is returned by Stop when there is nothing to stop.
var ErrNotRunning = errors.New("sidecar not running")

// Supervisor spawns and owns the backend child process. The owner that
// starts the backend is responsible for stopping it; nothing is left
// behind when the shell exits.
type Supervisor struct {
	log *logging.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	state  State
	events []Event
	done   chan struct{}

	exitCode   int
	exitReason ExitReason
}

// NewSupervisor creates an idle supervisor.
func NewSupervisor(log *logging.Logger) *Supervisor {
	return &Supervisor{log: log, state: StateIdle}
}

// Start spawns the backend executable. The child gets its own process
// group so signals aimed at it never hit the GUI shell, and its
// combined output is forwarded to the supervisor's log.
func (s *Supervisor) Start(ctx context.Context, path string, args ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return ErrAlreadyRunning
	}

	s.setStateLocked(StateStarting, 0, "Spawning backend process")

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		s.setStateLocked(StateFailed, 0, fmt.Sprintf("Failed to start: %v", err))
		pw.Close()
		pr.Close()
		return fmt.Errorf("failed to start backend: %w", err)
	}

	s.cmd = cmd
	s.done = make(chan struct{})
	pid := cmd.Process.Pid
	s.setStateLocked(StateRunning, pid, fmt.Sprintf("PID %d started", pid))
	s.log.Info("Backend started", map[string]interface{}{"pid": pid, "path": path})

	go s.forwardOutput(pr)
	go s.wait(cmd, pw)
	return nil
}

// forwardOutput relays the child's combined output into our log.
func (s *Supervisor) forwardOutput(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.log.Debug("backend: " + scanner.Text())
	}
}

func (s *Supervisor) wait(cmd *exec.Cmd, pw *io.PipeWriter) {
	err := cmd.Wait()
	pw.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	pid := cmd.Process.Pid
	s.exitCode = cmd.ProcessState.ExitCode()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		s.exitReason = ExitReasonSuccess
		s.setStateLocked(StateCompleted, pid, "Backend exited cleanly")
	case errors.As(err, &exitErr):
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			s.exitReason = DetermineExitReason(s.exitCode, status)
			if status.Signaled() {
				s.setStateLocked(StateKilled, pid,
					"Killed by "+SignalName(status.Signal()))
				break
			}
		} else {
			s.exitReason = ExitReasonError
		}
		s.setStateLocked(StateFailed, pid, fmt.Sprintf("Backend exited with code %d", s.exitCode))
	default:
		s.exitReason = ExitReasonUnknown
		s.setStateLocked(StateFailed, pid, fmt.Sprintf("Wait failed: %v", err))
	}

	s.log.Info("Backend exited", map[string]interface{}{
		"pid":       pid,
		"exit_code": s.exitCode,
		"reason":    string(s.exitReason),
	})
	close(s.done)
}

// setStateLocked records a lifecycle event. Callers hold s.mu.
func (s *Supervisor) setStateLocked(state State, pid int, message string) {
	s.state = state
	s.events = append(s.events, Event{
		PID:        pid,
		State:      state,
		Timestamp:  time.Now().UTC(),
		ExitCode:   s.exitCode,
		ExitReason: s.exitReason,
		Message:    message,
	})
}

// Stop terminates the backend: SIGTERM, a grace period, then SIGKILL.
// It returns once the process has been reaped.
func (s *Supervisor) Stop(grace time.Duration) error {
	s.mu.Lock()
	cmd := s.cmd
	done := s.done
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return ErrNotRunning
	}

	select {
	case <-done:
		return nil // already gone
	default:
	}

	pid := cmd.Process.Pid
	s.log.Info("Stopping backend", map[string]interface{}{"pid": pid})

	// Signal the whole process group
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil {
		cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-done:
		return nil
	case <-time.After(grace):
	}

	s.log.Warn("Backend ignored SIGTERM, killing", map[string]interface{}{"pid": pid})
	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil {
		cmd.Process.Kill()
	}
	<-done
	return nil
}

// WaitHealthy polls the backend health endpoint until it answers 200,
// the timeout passes, or the process dies.
func (s *Supervisor) WaitHealthy(ctx context.Context, baseURL string, timeout time.Duration) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return ErrNotRunning
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(2 * time.Second)

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		resp, err := client.R().SetContext(ctx).Get("/health")
		if err == nil && resp.IsSuccess() {
			s.log.Info("Backend healthy", map[string]interface{}{"url": baseURL})
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("backend did not become healthy within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			s.mu.Lock()
			code := s.exitCode
			s.mu.Unlock()
			return fmt.Errorf("backend exited during startup (code %d)", code)
		case <-ticker.C:
		}
	}
}

// PID returns the child's PID, or 0 when nothing runs.
func (s *Supervisor) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ExitReason returns how the backend terminated, once it has.
func (s *Supervisor) ExitReason() ExitReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitReason
}

// Events returns a copy of the lifecycle event history.
func (s *Supervisor) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Done is closed when the backend process has exited.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

package sidecar

import (
	"fmt"
	"syscall"
	"time"
)

// State is the backend process lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateKilled    State = "killed"
)

// ExitReason describes why the backend process terminated.
type ExitReason string

const (
	// ExitReasonSuccess means exit code 0.
	ExitReasonSuccess ExitReason = "success"
	// ExitReasonError means a non-zero exit code.
	ExitReasonError ExitReason = "error"
	// ExitReasonSignal means the process was terminated by a signal.
	ExitReasonSignal ExitReason = "signal"
	ExitReasonUnknown ExitReason = "unknown"
)

// Event records one lifecycle state change of the supervised process.
type Event struct {
	PID        int        `json:"pid"`
	State      State      `json:"state"`
	Timestamp  time.Time  `json:"timestamp"`
	ExitCode   int        `json:"exit_code,omitempty"`
	ExitReason ExitReason `json:"exit_reason,omitempty"`
	Signal     string     `json:"signal,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// DetermineExitReason classifies a process exit from its wait status.
func DetermineExitReason(exitCode int, waitStatus syscall.WaitStatus) ExitReason {
	if waitStatus.Exited() {
		if exitCode == 0 {
			return ExitReasonSuccess
		}
		return ExitReasonError
	}
	if waitStatus.Signaled() {
		return ExitReasonSignal
	}
	return ExitReasonUnknown
}

// SignalName returns a readable name for a signal number.
func SignalName(sig syscall.Signal) string {
	switch sig {
	case syscall.SIGKILL:
		return "SIGKILL"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGHUP:
		return "SIGHUP"
	case syscall.SIGQUIT:
		return "SIGQUIT"
	case syscall.SIGSEGV:
		return "SIGSEGV"
	default:
		return fmt.Sprintf("SIG%d", sig)
	}
}

// IsSuccess reports whether the exit represents a clean shutdown.
func (r ExitReason) IsSuccess() bool {
	return r == ExitReasonSuccess
}

package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	log "github.com/translatd/translatd/internal/logging"
)

// DefaultGracePeriod is how long Spawn watches the child for an immediate
// crash before declaring the launch successful.
const DefaultGracePeriod = 500 * time.Millisecond

// SpawnError means the background server could not be started and tracked.
type SpawnError struct {
	Reason string
	Err    error
}

func (e *SpawnError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot start server: %s: %v", e.Reason, e.Err)
	}
	return "cannot start server: " + e.Reason
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Options configure one spawn.
type Options struct {
	// Executable is the binary to launch.
	Executable string

	// Args are passed to the executable verbatim.
	Args []string

	// WorkDir is the child's working directory. Empty inherits the parent's.
	WorkDir string

	// LogPath receives the child's stdout and stderr. Empty discards output.
	LogPath string

	// GracePeriod overrides DefaultGracePeriod when positive.
	GracePeriod time.Duration
}

// Spawn launches the executable detached from the invoking terminal, verifies
// it survived startup, and persists its pid to the record. When the pid
// cannot be persisted the child is stopped again: an untracked process must
// never be left running.
func Spawn(ctx context.Context, rec *Record, opts Options) (int, error) {
	if opts.Executable == "" {
		return 0, &SpawnError{Reason: "no executable given"}
	}
	// Preconditions are checked one by one so the message names the missing
	// artifact.
	if _, err := os.Stat(opts.Executable); err != nil {
		return 0, &SpawnError{Reason: fmt.Sprintf("executable %s is missing", opts.Executable), Err: err}
	}
	if opts.WorkDir != "" {
		if _, err := os.Stat(opts.WorkDir); err != nil {
			return 0, &SpawnError{Reason: fmt.Sprintf("working directory %s is missing", opts.WorkDir), Err: err}
		}
	}

	grace := opts.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	var pid int
	err := rec.withLock(ctx, func() error {
		// A record from a previous run must not coexist with the new process.
		if err := rec.Delete(); err != nil {
			return &SpawnError{Reason: "cannot clear previous process record", Err: err}
		}

		output, err := childOutput(opts.LogPath)
		if err != nil {
			return &SpawnError{Reason: "cannot open server log", Err: err}
		}
		defer output.Close()

		cmd := exec.Command(opts.Executable, opts.Args...)
		cmd.Dir = opts.WorkDir
		cmd.Stdin = nil
		cmd.Stdout = output
		cmd.Stderr = output
		cmd.SysProcAttr = detachAttrs()

		if err := cmd.Start(); err != nil {
			return &SpawnError{Reason: "launch failed", Err: err}
		}
		pid = cmd.Process.Pid

		// Catch a crash-on-start before declaring success. The Wait goroutine
		// also reaps the child if it dies while the invoker is still around.
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case waitErr := <-done:
			return &SpawnError{Reason: fmt.Sprintf("process %d exited immediately after launch", pid), Err: waitErr}
		case <-time.After(grace):
		}

		if err := rec.Write(pid); err != nil {
			if killErr := cmd.Process.Kill(); killErr != nil {
				log.WithError(killErr).Errorf("failed to stop untracked process %d", pid)
			}
			return &SpawnError{Reason: "cannot persist process record", Err: err}
		}

		log.Infof("started server process %d", pid)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pid, nil
}

func childOutput(path string) (*os.File, error) {
	if path == "" {
		return os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

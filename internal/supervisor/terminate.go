package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	log "github.com/translatd/translatd/internal/logging"
)

// killBudget bounds the whole tree teardown so one stuck process cannot
// stall shutdown of the rest.
const killBudget = 5 * time.Second

// Outcome reports what Terminate found.
type Outcome int

const (
	// NotRunning means there was nothing alive to stop.
	NotRunning Outcome = iota
	// Stopped means a live process was found and terminated.
	Stopped
)

func (o Outcome) String() string {
	if o == Stopped {
		return "stopped"
	}
	return "not running"
}

// Terminate stops the recorded process and every descendant, deepest first.
// An absent, malformed, or stale record is the normal stopped state and
// returns NotRunning without error. Descendant failures are logged, never
// fatal; the record is deleted once the root attempt has been made. Check the
// error before the outcome.
func Terminate(ctx context.Context, rec *Record) (Outcome, error) {
	outcome := NotRunning
	err := rec.withLock(ctx, func() error {
		pid, ok, err := rec.Read()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		alive, err := process.PidExists(int32(pid))
		if err != nil {
			return fmt.Errorf("cannot check process %d: %w", pid, err)
		}
		if !alive {
			log.Debugf("recorded process %d is gone, clearing stale record", pid)
			return rec.Delete()
		}

		killCtx, cancel := context.WithTimeout(ctx, killBudget)
		defer cancel()

		table, err := processTable()
		if err != nil {
			log.WithError(err).Warnf("cannot enumerate processes, stopping only the root")
		}
		for _, child := range descendantsDeepestFirst(table, int32(pid)) {
			if err := killPid(killCtx, child); err != nil {
				log.WithError(err).Warnf("failed to stop descendant process %d", child)
			}
		}

		rootErr := killPid(killCtx, int32(pid))

		// The record goes away once the root attempt has been made; a stuck
		// record would block every later start.
		if err := rec.Delete(); err != nil {
			log.WithError(err).Errorf("failed to delete process record")
		}
		if rootErr != nil {
			return fmt.Errorf("could not stop process %d: %w", pid, rootErr)
		}

		log.Infof("stopped server process %d", pid)
		outcome = Stopped
		return nil
	})
	return outcome, err
}

// Status reports the recorded pid and whether that process is alive.
func Status(rec *Record) (int, bool, error) {
	pid, ok, err := rec.Read()
	if err != nil || !ok {
		return 0, false, err
	}
	alive, err := process.PidExists(int32(pid))
	if err != nil {
		return pid, false, fmt.Errorf("cannot check process %d: %w", pid, err)
	}
	return pid, alive, nil
}

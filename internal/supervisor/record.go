// Package supervisor starts the relay as a detached background process and
// later locates and stops that process together with everything it spawned.
// The process record file is the single source of truth for "is the server
// running"; a missing record is the normal stopped state, never an error.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	log "github.com/translatd/translatd/internal/logging"
)

// RecordFileName is the well-known record location under the state directory.
const RecordFileName = "translatd.pid"

const (
	lockTimeout    = 5 * time.Second
	lockRetryDelay = 50 * time.Millisecond
)

// IOError reports a record file that exists but cannot be locked, read,
// written, or deleted. Absence is not an IOError.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("process record %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Record is the single-slot durable note of the managed process identity.
// Every read-modify-write sequence runs under an advisory file lock so a
// terminate cannot race a spawn over the same slot.
type Record struct {
	path string
	lock *flock.Flock
}

// NewRecord places the record file under stateDir. The lock lives in a
// sibling file: the record itself is replaced by rename and deleted, either
// of which would silently drop a lock held on it.
func NewRecord(stateDir string) *Record {
	path := filepath.Join(stateDir, RecordFileName)
	return &Record{path: path, lock: flock.New(path + ".lock")}
}

func (r *Record) Path() string { return r.path }

// withLock runs fn while holding the advisory lock. Acquisition is bounded;
// a stuck holder surfaces as an IOError instead of hanging the operator.
func (r *Record) withLock(ctx context.Context, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	ok, err := r.lock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return &IOError{Op: "lock", Path: r.path, Err: err}
	}
	if !ok {
		return &IOError{Op: "lock", Path: r.path, Err: errors.New("held by another process")}
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			log.WithError(err).Warnf("failed to release record lock for %s", r.path)
		}
	}()
	return fn()
}

// Read returns the recorded pid. A missing, empty, or non-numeric record
// reads as not present.
func (r *Record) Read() (int, bool, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &IOError{Op: "read", Path: r.path, Err: err}
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false, nil
	}
	return pid, true, nil
}

// Write persists the pid as a single line. The write goes through a temp
// file and rename so readers never observe a torn record.
func (r *Record) Write(pid int) error {
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0o600); err != nil {
		return &IOError{Op: "write", Path: r.path, Err: err}
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return &IOError{Op: "write", Path: r.path, Err: err}
	}
	return nil
}

// Delete removes the record. A record that is already gone is success.
func (r *Record) Delete() error {
	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &IOError{Op: "delete", Path: r.path, Err: err}
	}
	return nil
}

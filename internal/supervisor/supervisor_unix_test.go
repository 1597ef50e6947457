//go:build !windows

package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

func lookPathOrSkip(t *testing.T, name string) string {
	t.Helper()
	bin, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
	return bin
}

func waitGone(t *testing.T, pid int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		alive, err := process.PidExists(int32(pid))
		if err == nil && !alive {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("process %d is still alive", pid)
}

// waitDead accepts an unreaped zombie as dead; orphaned descendants may sit
// in the table until init collects them.
func waitDead(t *testing.T, pid int32) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		p, err := process.NewProcess(pid)
		if err != nil {
			return
		}
		statuses, err := p.Status()
		if err != nil || slices.Contains(statuses, process.Zombie) {
			return
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("process %d is still alive", pid)
}

func TestSpawnTerminateRoundTrip(t *testing.T) {
	sleepBin := lookPathOrSkip(t, "sleep")
	dir := t.TempDir()
	rec := NewRecord(dir)
	ctx := context.Background()

	pid, err := Spawn(ctx, rec, Options{
		Executable:  sleepBin,
		Args:        []string{"30"},
		WorkDir:     dir,
		GracePeriod: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if pid <= 0 {
		t.Fatalf("bad pid %d", pid)
	}

	got, ok, err := rec.Read()
	if err != nil || !ok || got != pid {
		t.Fatalf("record should hold %d, got pid=%d ok=%v err=%v", pid, got, ok, err)
	}

	outcome, err := Terminate(ctx, rec)
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if outcome != Stopped {
		t.Fatalf("expected Stopped, got %v", outcome)
	}
	if _, ok, _ := rec.Read(); ok {
		t.Fatal("record should be deleted after terminate")
	}
	waitGone(t, pid)

	// Repeating the stop finds a clean slate.
	outcome, err = Terminate(ctx, rec)
	if err != nil || outcome != NotRunning {
		t.Fatalf("second terminate: outcome=%v err=%v", outcome, err)
	}
}

func TestTerminateStopsTheWholeTree(t *testing.T) {
	shBin := lookPathOrSkip(t, "sh")
	dir := t.TempDir()
	rec := NewRecord(dir)
	ctx := context.Background()

	// Root shell with a direct sleep child and a nested shell that owns a
	// grandchild sleep, so the teardown has to reach two levels down.
	pid, err := Spawn(ctx, rec, Options{
		Executable:  shBin,
		Args:        []string{"-c", "sh -c 'sleep 30 & wait' & sleep 30 & wait"},
		GracePeriod: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	// Give the shells a moment to fork the full tree.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		table, err := processTable()
		if err == nil && len(descendantsDeepestFirst(table, int32(pid))) >= 3 {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}

	table, err := processTable()
	if err != nil {
		t.Fatalf("processTable: %v", err)
	}
	tree := descendantsDeepestFirst(table, int32(pid))
	if len(tree) < 3 {
		t.Fatalf("expected at least 3 descendants (child shell, its sleep, direct sleep), got %v", tree)
	}

	outcome, err := Terminate(ctx, rec)
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if outcome != Stopped {
		t.Fatalf("expected Stopped, got %v", outcome)
	}
	waitGone(t, pid)
	for _, child := range tree {
		waitDead(t, child)
	}
}

func TestSpawnNamesTheMissingExecutable(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecord(dir)
	missing := filepath.Join(dir, "no-such-binary")

	_, err := Spawn(context.Background(), rec, Options{Executable: missing})
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected SpawnError, got %v", err)
	}
	if !strings.Contains(spawnErr.Error(), "no-such-binary") {
		t.Fatalf("message should name the executable: %v", spawnErr)
	}
	if _, ok, _ := rec.Read(); ok {
		t.Fatal("no record should exist after a failed spawn")
	}
}

func TestSpawnNamesTheMissingWorkDir(t *testing.T) {
	sleepBin := lookPathOrSkip(t, "sleep")
	dir := t.TempDir()
	rec := NewRecord(dir)
	missing := filepath.Join(dir, "gone")

	_, err := Spawn(context.Background(), rec, Options{Executable: sleepBin, WorkDir: missing})
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected SpawnError, got %v", err)
	}
	if !strings.Contains(spawnErr.Error(), "working directory") || !strings.Contains(spawnErr.Error(), "gone") {
		t.Fatalf("message should name the working directory: %v", spawnErr)
	}
}

func TestSpawnDetectsImmediateExit(t *testing.T) {
	falseBin := lookPathOrSkip(t, "false")
	rec := NewRecord(t.TempDir())

	_, err := Spawn(context.Background(), rec, Options{
		Executable:  falseBin,
		GracePeriod: 300 * time.Millisecond,
	})
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected SpawnError, got %v", err)
	}
	if !strings.Contains(spawnErr.Error(), "exited immediately") {
		t.Fatalf("unexpected message: %v", spawnErr)
	}
	if _, ok, _ := rec.Read(); ok {
		t.Fatal("no record should exist after a crashed launch")
	}
}

func TestTerminateClearsStaleRecord(t *testing.T) {
	trueBin := lookPathOrSkip(t, "true")
	rec := NewRecord(t.TempDir())

	// A freshly exited child yields a pid that is certainly dead.
	cmd := exec.Command(trueBin)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadPid := cmd.Process.Pid
	_ = cmd.Wait()

	if err := rec.Write(deadPid); err != nil {
		t.Fatalf("Write: %v", err)
	}

	outcome, err := Terminate(context.Background(), rec)
	if err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if outcome != NotRunning {
		t.Fatalf("expected NotRunning for a dead pid, got %v", outcome)
	}
	if _, ok, _ := rec.Read(); ok {
		t.Fatal("stale record should be deleted")
	}
}

func TestTerminateTreatsMalformedRecordAsAbsent(t *testing.T) {
	rec := NewRecord(t.TempDir())
	if err := os.WriteFile(rec.Path(), []byte("definitely-not-a-pid\n"), 0o600); err != nil {
		t.Fatalf("seed record: %v", err)
	}

	outcome, err := Terminate(context.Background(), rec)
	if err != nil {
		t.Fatalf("malformed record must not raise, got %v", err)
	}
	if outcome != NotRunning {
		t.Fatalf("expected NotRunning, got %v", outcome)
	}
}

func TestStatusReportsLiveProcess(t *testing.T) {
	sleepBin := lookPathOrSkip(t, "sleep")
	dir := t.TempDir()
	rec := NewRecord(dir)
	ctx := context.Background()

	pid, err := Spawn(ctx, rec, Options{Executable: sleepBin, Args: []string{"30"}, GracePeriod: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer func() { _, _ = Terminate(ctx, rec) }()

	got, alive, err := Status(rec)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if got != pid || !alive {
		t.Fatalf("expected pid %d alive, got %d alive=%v", pid, got, alive)
	}
}

package supervisor

import (
	"context"

	"github.com/shirou/gopsutil/v4/process"
)

// procInfo is the slice of the process table the supervisor needs.
type procInfo struct {
	pid  int32
	ppid int32
}

// processTable snapshots pid and parent pid for every visible process.
// Entries that vanish mid-walk are skipped.
func processTable() ([]procInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	table := make([]procInfo, 0, len(procs))
	for _, p := range procs {
		ppid, err := p.Ppid()
		if err != nil {
			continue
		}
		table = append(table, procInfo{pid: p.Pid, ppid: ppid})
	}
	return table, nil
}

// descendantsDeepestFirst returns every process whose ancestry reaches root,
// children before their parents. The root itself is excluded.
func descendantsDeepestFirst(table []procInfo, root int32) []int32 {
	children := make(map[int32][]int32, len(table))
	for _, p := range table {
		children[p.ppid] = append(children[p.ppid], p.pid)
	}

	var out []int32
	visited := map[int32]bool{root: true}
	var walk func(pid int32)
	walk = func(pid int32) {
		for _, child := range children[pid] {
			if visited[child] {
				// pid reuse can make the table look cyclic
				continue
			}
			visited[child] = true
			walk(child)
			out = append(out, child)
		}
	}
	walk(root)
	return out
}

// killPid force-stops one process. A pid that is already gone is success.
func killPid(ctx context.Context, pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	if err := p.KillWithContext(ctx); err != nil {
		if running, checkErr := p.IsRunning(); checkErr == nil && !running {
			return nil
		}
		return err
	}
	return nil
}

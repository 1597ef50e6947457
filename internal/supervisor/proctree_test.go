package supervisor

import (
	"slices"
	"testing"
)

func TestDescendantsOrderChildrenBeforeParents(t *testing.T) {
	// 100 → 101 → 103 → 104, and 100 → 102.
	table := []procInfo{
		{pid: 101, ppid: 100},
		{pid: 102, ppid: 100},
		{pid: 103, ppid: 101},
		{pid: 104, ppid: 103},
		{pid: 999, ppid: 1}, // unrelated
	}

	got := descendantsDeepestFirst(table, 100)
	want := []int32{104, 103, 101, 102}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	for _, p := range table {
		childIdx := slices.Index(got, p.pid)
		parentIdx := slices.Index(got, p.ppid)
		if childIdx >= 0 && parentIdx >= 0 && childIdx > parentIdx {
			t.Fatalf("child %d listed after parent %d: %v", p.pid, p.ppid, got)
		}
	}
}

func TestDescendantsEmptyWithoutChildren(t *testing.T) {
	table := []procInfo{{pid: 2, ppid: 1}, {pid: 3, ppid: 1}}
	if got := descendantsDeepestFirst(table, 2); len(got) != 0 {
		t.Fatalf("expected no descendants, got %v", got)
	}
	if got := descendantsDeepestFirst(nil, 7); len(got) != 0 {
		t.Fatalf("expected no descendants from an empty table, got %v", got)
	}
}

func TestDescendantsToleratePidReuseCycles(t *testing.T) {
	// pid reuse can produce a table where 2 and 3 look like each other's
	// parent; the walk must still terminate.
	table := []procInfo{
		{pid: 3, ppid: 2},
		{pid: 2, ppid: 3},
	}
	got := descendantsDeepestFirst(table, 2)
	if !slices.Equal(got, []int32{3}) {
		t.Fatalf("expected [3], got %v", got)
	}
}

func TestDescendantsExcludeTheRoot(t *testing.T) {
	table := []procInfo{{pid: 5, ppid: 4}, {pid: 6, ppid: 5}}
	got := descendantsDeepestFirst(table, 4)
	if slices.Contains(got, 4) {
		t.Fatalf("root must not appear in its own descendant list: %v", got)
	}
}

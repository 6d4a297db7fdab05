//go:build windows

package provider

import "github.com/patterncore/patternlang/internal/langerr"

// processStore on Windows has no ptrace-style /proc/<pid>/mem equivalent
// wired up in this codebase (the teacher's own core/process_windows.go only
// checks liveness via OpenProcess, never reads memory); attaching always
// fails here rather than silently no-op'ing, grounded on that same
// Windows/Unix split.
type processStore struct {
	baseAddr uint64
	size     uint64
}

func openProcessStore(pid int, baseAddr, size uint64, writable bool) (*processStore, bool, error) {
	return nil, false, langerr.New(langerr.KindProvider, "process-memory provider is not supported on Windows in this build")
}

func (s *processStore) RawReadAt(offset uint64, buf []byte) (int, error) {
	return 0, langerr.New(langerr.KindProvider, "process-memory provider is not supported on Windows in this build")
}

func (s *processStore) RawWriteAt(offset uint64, buf []byte) error {
	return langerr.New(langerr.KindProvider, "process-memory provider is not supported on Windows in this build")
}

func (s *processStore) RawSize() uint64 { return s.size }

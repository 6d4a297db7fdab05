package provider

import "github.com/patterncore/patternlang/internal/langerr"

// ProcessProvider reads (and, when the backend permits, writes) the memory
// of a running process. It is never resizable, per spec.md §4.6.
type ProcessProvider struct {
	*Base
	store *processStore
}

// AttachProcessProvider attaches to pid's memory, starting logical offset 0
// at baseAddr (e.g. the process's main module base). writable requests
// write access; on non-Windows builds, if /proc/<pid>/mem cannot be opened
// for writing, a read-only provider is returned instead. On Windows
// attaching always fails.
func AttachProcessProvider(pid int, baseAddr uint64, size uint64, writable bool) (*ProcessProvider, error) {
	store, writable, err := openProcessStore(pid, baseAddr, size, writable)
	if err != nil {
		return nil, langerr.Wrap(langerr.KindProvider, 0, "attach process provider", err)
	}
	return &ProcessProvider{
		Base:  NewBase(store, "process", "process", writable, 0),
		store: store,
	}, nil
}

func (p *ProcessProvider) Resizable() bool { return false }
func (p *ProcessProvider) Save() error     { return nil }

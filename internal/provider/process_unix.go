//go:build !windows

package provider

import (
	"os"

	"github.com/patterncore/patternlang/internal/langerr"
)

// processStore reads/writes a running process's address space through
// /proc/<pid>/mem, grounded on this codebase's core/process_unix.go build-tag
// split for platform-specific process operations.
type processStore struct {
	mem      *os.File
	baseAddr uint64
	size     uint64
}

func openProcessStore(pid int, baseAddr, size uint64, writable bool) (*processStore, bool, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	mem, err := os.OpenFile(procMemPath(pid), flag, 0)
	if err != nil && writable {
		// Fall back to read-only if the host lacks ptrace permission for writes.
		mem, err = os.OpenFile(procMemPath(pid), os.O_RDONLY, 0)
		writable = false
	}
	if err != nil {
		return nil, false, err
	}
	return &processStore{mem: mem, baseAddr: baseAddr, size: size}, writable, nil
}

func procMemPath(pid int) string {
	return "/proc/" + itoa(pid) + "/mem"
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (s *processStore) RawReadAt(offset uint64, buf []byte) (int, error) {
	n, err := s.mem.ReadAt(buf, int64(s.baseAddr+offset))
	if err != nil && n == 0 {
		return 0, langerr.Wrap(langerr.KindProvider, 0, "read process memory", err)
	}
	return n, nil
}

func (s *processStore) RawWriteAt(offset uint64, buf []byte) error {
	_, err := s.mem.WriteAt(buf, int64(s.baseAddr+offset))
	if err != nil {
		return langerr.Wrap(langerr.KindProvider, 0, "write process memory", err)
	}
	return nil
}

func (s *processStore) RawSize() uint64 { return s.size }

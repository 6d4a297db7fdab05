package provider

import (
	"fmt"
	"os"
	"sync"

	"github.com/patterncore/patternlang/internal/langerr"
)

// fileStore provides random access over an *os.File. Every read/write goes
// through buffered stdio calls; this repository's teacher never reaches for
// a memory-mapping library (see DESIGN.md), and spec.md §4.6 explicitly
// allows falling back to "buffered stdio on insert/remove", so this is the
// implementation for every operation, not just resizes.
type fileStore struct {
	mu   sync.RWMutex
	f    *os.File
	path string
	size int64
}

func openFileStore(path string, writable bool) (*fileStore, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, langerr.Wrap(langerr.KindProvider, 0, "open file provider", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, langerr.Wrap(langerr.KindProvider, 0, "stat file provider", err)
	}
	return &fileStore{f: f, path: path, size: info.Size()}, nil
}

func (s *fileStore) RawReadAt(offset uint64, buf []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.f.ReadAt(buf, int64(offset))
	if err != nil && n == 0 {
		return 0, langerr.Wrap(langerr.KindEvaluation, 0, "read past end of file provider", err)
	}
	return n, nil
}

func (s *fileStore) RawWriteAt(offset uint64, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.f.WriteAt(buf, int64(offset))
	if err != nil {
		return langerr.Wrap(langerr.KindProvider, 0, "write file provider", err)
	}
	if end := int64(offset) + int64(n); end > s.size {
		s.size = end
	}
	return nil
}

func (s *fileStore) RawSize() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(s.size)
}

// FileProvider is a memory-mapped-in-spirit, buffered-stdio-in-practice
// random access file provider.
type FileProvider struct {
	*Base
	store *fileStore
}

// OpenFileProvider opens path as a Provider. writable controls whether Write/
// AddPatch/Insert/Remove are permitted.
func OpenFileProvider(path string, writable bool) (*FileProvider, error) {
	store, err := openFileStore(path, writable)
	if err != nil {
		return nil, err
	}
	return &FileProvider{
		Base:  NewBase(store, path, "file", writable, 0),
		store: store,
	}, nil
}

func (p *FileProvider) Resizable() bool { return p.Writable() }

// Insert grows the file by n bytes at offset, shifting trailing bytes right
// via a full rewrite through the atomic writer, per spec.md §4.6's resizable
// operations contract.
func (p *FileProvider) Insert(offset, n uint64) error {
	return p.spliceRewrite(offset, func(tail []byte) []byte {
		return append(make([]byte, n), tail...)
	})
}

// Remove deletes n bytes starting at offset.
func (p *FileProvider) Remove(offset, n uint64) error {
	return p.spliceRewrite(offset, func(tail []byte) []byte {
		if uint64(len(tail)) <= n {
			return nil
		}
		return tail[n:]
	})
}

// spliceRewrite reads the whole file, lets transform rewrite everything from
// offset onward, and atomically replaces the file contents. This is the
// "buffered stdio" fallback spec.md §4.6 allows for resizing operations.
func (p *FileProvider) spliceRewrite(offset uint64, transform func(tail []byte) []byte) error {
	if !p.Writable() {
		return langerr.New(langerr.KindProvider, "provider is read-only")
	}
	p.store.mu.Lock()
	size := p.store.size
	if int64(offset) > size {
		offset = uint64(size)
	}
	head := make([]byte, offset)
	if _, err := p.store.f.ReadAt(head, 0); err != nil && offset > 0 {
		p.store.mu.Unlock()
		return langerr.Wrap(langerr.KindProvider, 0, "read head for splice", err)
	}
	tail := make([]byte, size-int64(offset))
	if _, err := p.store.f.ReadAt(tail, int64(offset)); err != nil && len(tail) > 0 {
		p.store.mu.Unlock()
		return langerr.Wrap(langerr.KindProvider, 0, "read tail for splice", err)
	}
	p.store.mu.Unlock()

	newTail := transform(tail)
	whole := append(head, newTail...)
	if err := writeFileAtomic(p.store.path, whole); err != nil {
		return err
	}

	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	p.store.f.Close()
	f, err := os.OpenFile(p.store.path, os.O_RDWR, 0o644)
	if err != nil {
		return langerr.Wrap(langerr.KindProvider, 0, "reopen file provider after splice", err)
	}
	p.store.f = f
	p.store.size = int64(len(whole))
	return nil
}

// Save flushes pending patches into the backing file in place.
func (p *FileProvider) Save() error {
	if !p.Writable() {
		return langerr.New(langerr.KindProvider, "provider is read-only")
	}
	for addr, v := range p.Base.Patches() {
		if _, err := p.store.f.WriteAt([]byte{v}, int64(addr)); err != nil {
			return langerr.Wrap(langerr.KindProvider, 0, fmt.Sprintf("flush patch at 0x%X", addr), err)
		}
	}
	return p.store.f.Sync()
}

// SaveAs writes the full logical (patched) content to a new path.
func (p *FileProvider) SaveAs(path string) error {
	size := p.Size()
	buf := make([]byte, size)
	if _, err := p.Read(0, buf); err != nil {
		return err
	}
	return writeFileAtomic(path, buf)
}

func (p *FileProvider) Close() error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	return p.store.f.Close()
}

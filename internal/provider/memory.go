package provider

import (
	"sync"

	"github.com/patterncore/patternlang/internal/langerr"
)

// memoryStore is an in-memory byte slice RawStore, resizable via Insert/
// Remove since it owns its backing array outright.
type memoryStore struct {
	mu   sync.RWMutex
	data []byte
}

func (m *memoryStore) RawReadAt(offset uint64, buf []byte) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if offset >= uint64(len(m.data)) {
		return 0, langerr.New(langerr.KindEvaluation, "read past end of provider")
	}
	n := copy(buf, m.data[offset:])
	if n < len(buf) {
		return n, langerr.New(langerr.KindEvaluation, "short read past end of provider")
	}
	return n, nil
}

func (m *memoryStore) RawWriteAt(offset uint64, buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	end := offset + uint64(len(buf))
	if end > uint64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[offset:end], buf)
	return nil
}

func (m *memoryStore) RawSize() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.data))
}

// MemoryProvider is a resizable, writable Provider entirely backed by a heap
// buffer, used for scratch evaluation and as the target of Insert/Remove.
type MemoryProvider struct {
	*Base
	store *memoryStore
}

// NewMemoryProvider wraps an initial byte buffer (copied) as a Provider.
func NewMemoryProvider(name string, data []byte) *MemoryProvider {
	store := &memoryStore{data: append([]byte(nil), data...)}
	return &MemoryProvider{
		Base:  NewBase(store, name, "memory", true, 0),
		store: store,
	}
}

func (p *MemoryProvider) Resizable() bool { return true }

func (p *MemoryProvider) Insert(offset, n uint64) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	if offset > uint64(len(p.store.data)) {
		offset = uint64(len(p.store.data))
	}
	grown := make([]byte, len(p.store.data)+int(n))
	copy(grown, p.store.data[:offset])
	copy(grown[offset+n:], p.store.data[offset:])
	p.store.data = grown
	return nil
}

func (p *MemoryProvider) Remove(offset, n uint64) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	if offset >= uint64(len(p.store.data)) {
		return nil
	}
	end := offset + n
	if end > uint64(len(p.store.data)) {
		end = uint64(len(p.store.data))
	}
	p.store.data = append(p.store.data[:offset], p.store.data[end:]...)
	return nil
}

func (p *MemoryProvider) Save() error             { return nil }
func (p *MemoryProvider) SaveAs(path string) error { return writeFileAtomic(path, p.snapshot()) }

func (p *MemoryProvider) snapshot() []byte {
	p.store.mu.RLock()
	defer p.store.mu.RUnlock()
	return append([]byte(nil), p.store.data...)
}

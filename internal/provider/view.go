package provider

import "github.com/patterncore/patternlang/internal/langerr"

// viewStore forwards raw reads/writes to an inner Provider, offset by start
// and bounded by length, per spec.md §4.6's "view-over-region" backend.
type viewStore struct {
	inner  Provider
	start  uint64
	length uint64
}

func (v *viewStore) RawReadAt(offset uint64, buf []byte) (int, error) {
	if offset >= v.length {
		return 0, langerr.New(langerr.KindEvaluation, "read past end of view provider")
	}
	n := len(buf)
	if offset+uint64(n) > v.length {
		n = int(v.length - offset)
	}
	got, err := v.inner.RawRead(v.start+offset, buf[:n])
	if got < len(buf) && err == nil {
		err = langerr.New(langerr.KindEvaluation, "short read past end of view provider")
	}
	return got, err
}

func (v *viewStore) RawWriteAt(offset uint64, buf []byte) error {
	if offset+uint64(len(buf)) > v.length {
		return langerr.New(langerr.KindEvaluation, "write past end of view provider")
	}
	return v.inner.RawWrite(v.start+offset, buf)
}

func (v *viewStore) RawSize() uint64 { return v.length }

// ViewProvider is a bounded window over an inner Provider: offsets are
// relative to start, and reads/writes cannot escape [start, start+length).
type ViewProvider struct {
	*Base
	store *viewStore
}

// NewViewProvider creates a view bounded to [start, start+length) of inner.
func NewViewProvider(inner Provider, start, length uint64) *ViewProvider {
	store := &viewStore{inner: inner, start: start, length: length}
	return &ViewProvider{
		Base:  NewBase(store, "view", "view", inner.Writable(), inner.PageSize()),
		store: store,
	}
}

func (p *ViewProvider) Save() error             { return p.store.inner.Save() }
func (p *ViewProvider) SaveAs(path string) error { return p.store.inner.SaveAs(path) }

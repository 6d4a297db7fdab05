package provider

import (
	"encoding/base64"
	"sync"

	"github.com/patterncore/patternlang/internal/langerr"
)

// base64Store treats an inner Provider's bytes as base64 text and exposes
// the decoded bytes 1:1, rounding reads/writes to 4-byte ciphertext groups
// (3 decoded bytes each), per spec.md §4.6's "base64" backend.
type base64Store struct {
	mu    sync.Mutex
	inner Provider
}

const groupCiphertext = 4
const groupPlaintext = 3

func (s *base64Store) RawReadAt(offset uint64, buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startGroup := offset / groupPlaintext
	endGroup := (offset + uint64(len(buf)) + groupPlaintext - 1) / groupPlaintext

	cipherLen := (endGroup - startGroup) * groupCiphertext
	cipherBuf := make([]byte, cipherLen)
	n, err := s.inner.RawRead(startGroup*groupCiphertext, cipherBuf)
	if err != nil && n == 0 {
		return 0, err
	}
	cipherBuf = cipherBuf[:n]

	plain := make([]byte, base64.StdEncoding.DecodedLen(len(cipherBuf)))
	pn, decErr := base64.StdEncoding.Decode(plain, cipherBuf)
	if decErr != nil {
		return 0, langerr.Wrap(langerr.KindProvider, 0, "decode base64 provider group", decErr)
	}
	plain = plain[:pn]

	relStart := offset - startGroup*groupPlaintext
	if relStart > uint64(len(plain)) {
		return 0, langerr.New(langerr.KindEvaluation, "read past end of base64 provider")
	}
	avail := plain[relStart:]
	copied := copy(buf, avail)
	if copied < len(buf) {
		return copied, langerr.New(langerr.KindEvaluation, "short read past end of base64 provider")
	}
	return copied, nil
}

func (s *base64Store) RawWriteAt(offset uint64, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	startGroup := offset / groupPlaintext
	endGroup := (offset + uint64(len(buf)) + groupPlaintext - 1) / groupPlaintext
	groupCount := endGroup - startGroup

	cipherBuf := make([]byte, groupCount*groupCiphertext)
	n, _ := s.inner.RawRead(startGroup*groupCiphertext, cipherBuf)
	cipherBuf = cipherBuf[:n]

	plain := make([]byte, groupCount*groupPlaintext)
	pn, _ := base64.StdEncoding.Decode(plain, cipherBuf)
	plain = plain[:max64(pn, int(groupCount*groupPlaintext))]

	relStart := offset - startGroup*groupPlaintext
	copy(plain[relStart:], buf)

	cipherOut := make([]byte, base64.StdEncoding.EncodedLen(len(plain)))
	base64.StdEncoding.Encode(cipherOut, plain)
	return s.inner.RawWrite(startGroup*groupCiphertext, cipherOut)
}

func max64(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (s *base64Store) RawSize() uint64 {
	cipherSize := s.inner.Size()
	groups := cipherSize / groupCiphertext
	return groups * groupPlaintext
}

// Base64Provider decodes an inner Provider's base64 text transparently.
type Base64Provider struct {
	*Base
	store *base64Store
}

// NewBase64Provider wraps inner (expected to hold base64 ASCII text) as a
// Provider exposing the decoded bytes.
func NewBase64Provider(inner Provider) *Base64Provider {
	store := &base64Store{inner: inner}
	return &Base64Provider{
		Base:  NewBase(store, "base64:"+inner.Name(), "base64", inner.Writable(), 0),
		store: store,
	}
}

func (p *Base64Provider) Save() error             { return p.store.inner.Save() }
func (p *Base64Provider) SaveAs(path string) error { return p.store.inner.SaveAs(path) }

package provider

import (
	"io"
	"sync"

	"github.com/patterncore/patternlang/internal/langerr"
)

// RemoteFile is the minimal surface an SFTP (or other remote file) handle
// must provide for SSHProvider to proxy reads and writes through it. A host
// wires in a concrete SFTP client's open file handle (e.g. *sftp.File);
// this package stays free of any specific SSH/SFTP client dependency, per
// spec.md §4.6's "proxies through an SFTP handle" wording — the handle is
// supplied by the collaborator that owns the session, not opened here.
type RemoteFile interface {
	io.ReaderAt
	io.WriterAt
	Size() (int64, error)
}

type sshStore struct {
	mu   sync.RWMutex
	file RemoteFile
	size int64
}

func (s *sshStore) RawReadAt(offset uint64, buf []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, err := s.file.ReadAt(buf, int64(offset))
	if err != nil && err != io.EOF {
		return n, langerr.Wrap(langerr.KindProvider, 0, "SSH remote read", err)
	}
	if n < len(buf) {
		return n, langerr.New(langerr.KindEvaluation, "read past end of SSH remote provider")
	}
	return n, nil
}

func (s *sshStore) RawWriteAt(offset uint64, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.file.WriteAt(buf, int64(offset))
	if err != nil {
		return langerr.Wrap(langerr.KindProvider, 0, "SSH remote write", err)
	}
	if end := int64(offset) + int64(n); end > s.size {
		s.size = end
	}
	return nil
}

func (s *sshStore) RawSize() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(s.size)
}

// SSHProvider proxies reads/writes through a remote SFTP file handle.
type SSHProvider struct {
	*Base
	store *sshStore
}

// NewSSHProvider wraps an already-opened remote file handle (from the
// host's SSH/SFTP session) as a Provider.
func NewSSHProvider(name string, file RemoteFile, writable bool) (*SSHProvider, error) {
	size, err := file.Size()
	if err != nil {
		return nil, langerr.Wrap(langerr.KindProvider, 0, "stat SSH remote provider", err)
	}
	store := &sshStore{file: file, size: size}
	return &SSHProvider{
		Base:  NewBase(store, name, "ssh", writable, 0),
		store: store,
	}, nil
}

func (p *SSHProvider) Save() error { return nil }

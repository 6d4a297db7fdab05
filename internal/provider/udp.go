package provider

import (
	"net"
	"sync"

	"github.com/patterncore/patternlang/internal/langerr"
)

// udpStore is append-only: each received datagram becomes one selectable
// message. Size() tracks only the currently selected message's length,
// matching spec.md §4.6's "size() tracks the selected message" contract.
// Message selection reuses the Base paging mechanism: CurrentPage() picks
// the message index, one datagram per "page".
type udpStore struct {
	mu       sync.RWMutex
	conn     net.PacketConn
	messages [][]byte
	selected func() uint64
}

const udpMaxDatagram = 65507

func (s *udpStore) RawReadAt(offset uint64, buf []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.selected()
	if idx >= uint64(len(s.messages)) {
		return 0, langerr.New(langerr.KindProvider, "no message selected at that page index")
	}
	msg := s.messages[idx]
	offset -= idx * udpMaxDatagram // Base adds the page's start to every offset
	if offset >= uint64(len(msg)) {
		return 0, langerr.New(langerr.KindEvaluation, "read past end of selected UDP message")
	}
	n := copy(buf, msg[offset:])
	if n < len(buf) {
		return n, langerr.New(langerr.KindEvaluation, "short read past end of selected UDP message")
	}
	return n, nil
}

func (s *udpStore) RawWriteAt(offset uint64, buf []byte) error {
	return langerr.New(langerr.KindProvider, "UDP provider is append-only and does not support writes")
}

func (s *udpStore) RawSize() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.selected()
	if idx >= uint64(len(s.messages)) {
		return 0
	}
	return uint64(len(s.messages[idx]))
}

// UDPProvider listens on a local UDP address and exposes each received
// datagram as a selectable logical slice, per spec.md §4.6.
type UDPProvider struct {
	*Base
	store   *udpStore
	closeCh chan struct{}
}

// ListenUDPProvider opens a UDP listener on addr (e.g. "0.0.0.0:9999") and
// begins collecting datagrams as messages.
func ListenUDPProvider(addr string) (*UDPProvider, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, langerr.Wrap(langerr.KindProvider, 0, "listen UDP provider", err)
	}
	store := &udpStore{conn: conn}
	p := &UDPProvider{
		store:   store,
		closeCh: make(chan struct{}),
	}
	store.selected = func() uint64 { return p.CurrentPage() }
	p.Base = NewBase(store, "udp:"+addr, "udp", false, udpMaxDatagram)

	go p.recvLoop()
	return p, nil
}

func (p *UDPProvider) recvLoop() {
	buf := make([]byte, udpMaxDatagram)
	for {
		select {
		case <-p.closeCh:
			return
		default:
		}
		n, _, err := p.store.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		msg := append([]byte(nil), buf[:n]...)
		p.store.mu.Lock()
		p.store.messages = append(p.store.messages, msg)
		p.store.mu.Unlock()
	}
}

// MessageCount reports how many datagrams have been received so far.
func (p *UDPProvider) MessageCount() int {
	p.store.mu.RLock()
	defer p.store.mu.RUnlock()
	return len(p.store.messages)
}

// Close stops the receive loop and closes the underlying socket.
func (p *UDPProvider) Close() error {
	close(p.closeCh)
	return p.store.conn.Close()
}

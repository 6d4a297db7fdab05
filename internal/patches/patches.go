// Package patches implements the in-memory address->byte override map and
// its IPS/IPS32 binary codec, per spec.md §4.7.
package patches

import (
	"sort"

	"github.com/patterncore/patternlang/internal/langerr"
)

// Patches is an ordered address->byte override map. Every key is a distinct
// absolute address; its value replaces the underlying provider byte on read,
// per spec.md §3's "Patches" invariant.
type Patches map[uint64]byte

// Clone returns a deep copy, used when a Provider opens a new undo snapshot.
func (p Patches) Clone() Patches {
	out := make(Patches, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Set records a single address override.
func (p Patches) Set(addr uint64, b byte) { p[addr] = b }

// Get reports the override at addr, if any.
func (p Patches) Get(addr uint64) (byte, bool) {
	b, ok := p[addr]
	return b, ok
}

// SortedAddresses returns every patched address in ascending order.
func (p Patches) SortedAddresses() []uint64 {
	addrs := make([]uint64, 0, len(p))
	for a := range p {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	return addrs
}

// run is a maximal contiguous address range collapsed for encoding.
type run struct {
	start uint64
	bytes []byte
}

func (p Patches) runs() []run {
	addrs := p.SortedAddresses()
	var out []run
	for _, a := range addrs {
		if len(out) > 0 {
			last := &out[len(out)-1]
			if last.start+uint64(len(last.bytes)) == a {
				last.bytes = append(last.bytes, p[a])
				continue
			}
		}
		out = append(out, run{start: a, bytes: []byte{p[a]}})
	}
	return out
}

const (
	ipsMagic      = "PATCH"
	ipsTerminator = "EOF"
	ips32Magic    = "IPS32"
	ips32Term     = "EEOF"

	ipsMaxAddr   = 0x00FFFFFF
	ips32MaxAddr = 0x7FFFFFFF
	maxRunLen    = 0xFFFF
)

// EncodeIPS renders p as an IPS patch stream. Fails if any address exceeds
// 0x00FFFFFF or any collapsed run exceeds 0xFFFF bytes.
func EncodeIPS(p Patches) ([]byte, error) {
	return encode(p, ipsMagic, ipsTerminator, ipsMaxAddr, 3)
}

// EncodeIPS32 renders p as an IPS32 patch stream (4-byte addresses, higher
// address ceiling).
func EncodeIPS32(p Patches) ([]byte, error) {
	return encode(p, ips32Magic, ips32Term, ips32MaxAddr, 4)
}

func encode(p Patches, magic, terminator string, maxAddr uint64, addrBytes int) ([]byte, error) {
	out := append([]byte(nil), magic...)
	for _, r := range p.runs() {
		end := r.start + uint64(len(r.bytes)) - 1
		if end > maxAddr {
			return nil, langerr.New(langerr.KindPatchCodec, "address out of range for patch format")
		}
		if len(r.bytes) > maxRunLen {
			return nil, langerr.New(langerr.KindPatchCodec, "run length exceeds format maximum")
		}
		out = append(out, beBytes(r.start, addrBytes)...)
		out = append(out, beBytes(uint64(len(r.bytes)), 2)...)
		out = append(out, r.bytes...)
	}
	out = append(out, terminator...)
	return out, nil
}

func beBytes(v uint64, n int) []byte {
	b := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// DecodeIPS parses an IPS patch stream into a Patches map.
func DecodeIPS(data []byte) (Patches, error) {
	return decode(data, ipsMagic, ipsTerminator, ipsMaxAddr, 3)
}

// DecodeIPS32 parses an IPS32 patch stream into a Patches map.
func DecodeIPS32(data []byte) (Patches, error) {
	return decode(data, ips32Magic, ips32Term, ips32MaxAddr, 4)
}

func decode(data []byte, magic, terminator string, maxAddr uint64, addrBytes int) (Patches, error) {
	if len(data) < len(magic) || string(data[:len(magic)]) != magic {
		return nil, langerr.New(langerr.KindPatchCodec, "invalid patch header")
	}
	pos := len(magic)
	out := Patches{}
	for {
		if pos+len(terminator) <= len(data) && string(data[pos:pos+len(terminator)]) == terminator {
			return out, nil
		}
		if pos+addrBytes+2 > len(data) {
			return nil, langerr.New(langerr.KindPatchCodec, "missing EOF terminator")
		}
		addr := beUint(data[pos : pos+addrBytes])
		pos += addrBytes
		length := beUint(data[pos : pos+2])
		pos += 2
		if pos+int(length) > len(data) {
			return nil, langerr.New(langerr.KindPatchCodec, "malformed patch format: truncated run")
		}
		if addr+length > maxAddr+1 {
			return nil, langerr.New(langerr.KindPatchCodec, "address out of range")
		}
		if length > maxRunLen {
			return nil, langerr.New(langerr.KindPatchCodec, "patch too large")
		}
		for i := uint64(0); i < length; i++ {
			out[addr+i] = data[pos+int(i)]
		}
		pos += int(length)
	}
}

// Package provider implements the byte-source abstraction of spec.md §4.6:
// a uniform random-access store with overlayed patches, paging, and
// undo/redo, backed by several concrete implementations.
package provider

import (
	"fmt"
	"sync"

	"github.com/patterncore/patternlang/internal/langerr"
	"github.com/patterncore/patternlang/internal/patches"
)

// KV is one name/value pair in a Provider's description, per spec.md §6's
// "human-readable name, type_name, and a description list of key/value
// strings for UI".
type KV struct {
	Key, Value string
}

// Overlay is an address-bounded override with higher read priority than
// patches, per the GLOSSARY's "Overlay" entry.
type Overlay struct {
	Start uint64
	Data  []byte
}

func (o Overlay) end() uint64 { return o.Start + uint64(len(o.Data)) }

// ErrUnsupported is returned by the optional operations (Insert/Remove/
// Save/SaveAs) on a Provider implementation that does not support them.
var ErrUnsupported = fmt.Errorf("operation not supported by this provider")

// Provider is the mandatory contract every backing store implements, per
// spec.md §4.6's operation table.
type Provider interface {
	Name() string
	TypeName() string
	Description() []KV

	Size() uint64
	Writable() bool
	Resizable() bool

	Read(offset uint64, buf []byte) (int, error)
	Write(offset uint64, buf []byte) error
	RawRead(offset uint64, buf []byte) (int, error)
	RawWrite(offset uint64, buf []byte) error

	Insert(offset, n uint64) error
	Remove(offset, n uint64) error
	Save() error
	SaveAs(path string) error

	Overlays() []Overlay
	AddOverlay(o Overlay)

	AddPatch(addr uint64, b byte, newSnapshot bool) error
	Undo() error
	Redo() error
	CanUndo() bool
	CanRedo() bool

	PageSize() uint64
	CurrentPage() uint64
	SetCurrentPage(n uint64)
	BaseAddress() uint64
	SetBaseAddress(n uint64)
}

// RawStore is the minimal medium-specific surface a backend must implement;
// Base composes it into the full Provider contract, applying overlays,
// patches, paging, and undo/redo uniformly across every backend.
type RawStore interface {
	RawReadAt(absOffset uint64, buf []byte) (int, error)
	RawWriteAt(absOffset uint64, buf []byte) error
	RawSize() uint64
}

// Base implements every Provider method except the medium-specific raw I/O,
// which it delegates to an injected RawStore. Insert/Remove/Save/SaveAs
// default to ErrUnsupported; resizable/savable backends override them.
//
// Guards patches, overlays, page index, and base address with one mutex, per
// spec.md §5's "Provider mutex guards patches, overlay list, page index, and
// base address" concurrency requirement; reads take the read lock so
// concurrent background readers (§5 "background collaborators... read the
// provider concurrently") never block each other.
type Base struct {
	mu sync.RWMutex

	raw      RawStore
	name     string
	typeName string
	writable bool

	overlays []Overlay
	current  patches.Patches
	undoLog  []patches.Patches
	redoLog  []patches.Patches

	pageSize    uint64
	currentPage uint64
	baseAddr    uint64
}

// NewBase wires a RawStore into the shared Provider machinery.
func NewBase(raw RawStore, name, typeName string, writable bool, pageSize uint64) *Base {
	if pageSize == 0 {
		pageSize = 1 << 32 // effectively "no paging" for stores that don't page
	}
	return &Base{
		raw:      raw,
		name:     name,
		typeName: typeName,
		writable: writable,
		current:  patches.Patches{},
		pageSize: pageSize,
	}
}

func (b *Base) Name() string     { return b.name }
func (b *Base) TypeName() string { return b.typeName }
func (b *Base) Writable() bool   { return b.writable }

// Resizable is overridden by backends whose RawStore supports Insert/Remove;
// Base alone reports false.
func (b *Base) Resizable() bool { return false }

func (b *Base) Size() uint64 { return b.raw.RawSize() }

func (b *Base) PageSize() uint64       { return b.pageSize }
func (b *Base) CurrentPage() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentPage
}
func (b *Base) SetCurrentPage(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentPage = n
}
func (b *Base) BaseAddress() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.baseAddr
}
func (b *Base) SetBaseAddress(n uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.baseAddr = n
}

// absolute converts a page-relative offset (as read/write addresses are
// specified, per spec.md §4.6 "Paging") into the absolute address overlays
// and patches are keyed by.
func (b *Base) absolute(offset uint64) uint64 {
	return offset + b.currentPage*b.pageSize + b.baseAddr
}

// Overlays returns the ordered overlay list.
func (b *Base) Overlays() []Overlay {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Overlay(nil), b.overlays...)
}

// AddOverlay appends an address-bounded override.
func (b *Base) AddOverlay(o Overlay) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overlays = append(b.overlays, o)
}

// RawRead bypasses overlays and patches entirely.
func (b *Base) RawRead(offset uint64, buf []byte) (int, error) {
	b.mu.RLock()
	abs := b.absolute(offset)
	b.mu.RUnlock()
	return b.raw.RawReadAt(abs, buf)
}

// RawWrite bypasses overlays and patches entirely.
func (b *Base) RawWrite(offset uint64, buf []byte) error {
	if !b.writable {
		return langerr.New(langerr.KindProvider, "provider is read-only")
	}
	b.mu.RLock()
	abs := b.absolute(offset)
	b.mu.RUnlock()
	return b.raw.RawWriteAt(abs, buf)
}

// Read fills buf from logical bytes: raw bytes overlaid by patches, overlaid
// by overlays, per spec.md §4.6's priority rule "Overlays win over patches;
// patches win over raw bytes."
func (b *Base) Read(offset uint64, buf []byte) (int, error) {
	b.mu.RLock()
	abs := b.absolute(offset)
	b.mu.RUnlock()

	n, err := b.raw.RawReadAt(abs, buf)
	if err != nil && n == 0 {
		return 0, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for i := 0; i < n; i++ {
		addr := abs + uint64(i)
		if v, ok := b.current[addr]; ok {
			buf[i] = v
		}
	}
	for _, ov := range b.overlays {
		lo, hi := ov.Start, ov.end()
		for i := 0; i < n; i++ {
			addr := abs + uint64(i)
			if addr >= lo && addr < hi {
				buf[i] = ov.Data[addr-lo]
			}
		}
	}
	return n, err
}

// Write records a patch per modified byte, per spec.md §4.6's "write"
// contract; it fails outright if the provider is not writable.
func (b *Base) Write(offset uint64, buf []byte) error {
	if !b.writable {
		return langerr.New(langerr.KindProvider, "provider is read-only")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	abs := b.absolute(offset)
	for i, v := range buf {
		b.current[abs+uint64(i)] = v
	}
	return nil
}

// AddPatch records one address/byte override. newSnapshot opens a fresh undo
// point (pushing the prior state onto the undo stack); otherwise the byte
// merges into the currently open snapshot. Recording any new patch after an
// undo discards the redo stack, per spec.md §4.6's "Snapshots reachable only
// via redo are discarded when a new patch is recorded after an undo."
func (b *Base) AddPatch(addr uint64, value byte, newSnapshot bool) error {
	if !b.writable {
		return langerr.New(langerr.KindProvider, "provider is read-only")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if newSnapshot {
		b.undoLog = append(b.undoLog, b.current.Clone())
	}
	b.redoLog = nil
	b.current[addr] = value
	return nil
}

// Undo moves one snapshot back in the patch history.
func (b *Base) Undo() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.undoLog) == 0 {
		return langerr.New(langerr.KindProvider, "nothing to undo")
	}
	b.redoLog = append(b.redoLog, b.current.Clone())
	prev := b.undoLog[len(b.undoLog)-1]
	b.undoLog = b.undoLog[:len(b.undoLog)-1]
	b.current = prev
	return nil
}

// Redo moves one snapshot forward, reversing the most recent Undo.
func (b *Base) Redo() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.redoLog) == 0 {
		return langerr.New(langerr.KindProvider, "nothing to redo")
	}
	b.undoLog = append(b.undoLog, b.current.Clone())
	next := b.redoLog[len(b.redoLog)-1]
	b.redoLog = b.redoLog[:len(b.redoLog)-1]
	b.current = next
	return nil
}

func (b *Base) CanUndo() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.undoLog) > 0
}

func (b *Base) CanRedo() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.redoLog) > 0
}

// Patches returns a snapshot of the currently applied patch map, used by
// internal/patches codec callers and internal/patchaudit.
func (b *Base) Patches() patches.Patches {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current.Clone()
}

// Insert/Remove/Save/SaveAs are unsupported by default; resizable/savable
// backends embed Base and override these.
func (b *Base) Insert(offset, n uint64) error    { return ErrUnsupported }
func (b *Base) Remove(offset, n uint64) error    { return ErrUnsupported }
func (b *Base) Save() error                      { return ErrUnsupported }
func (b *Base) SaveAs(path string) error         { return ErrUnsupported }

// Description renders the standard key/value pairs every backend shares.
func (b *Base) Description() []KV {
	out := []KV{
		{"name", b.name},
		{"type", b.typeName},
		{"size", fmt.Sprintf("%d", b.Size())},
		{"writable", fmt.Sprintf("%t", b.writable)},
		{"page_size", fmt.Sprintf("%d", b.pageSize)},
		{"current_page", fmt.Sprintf("%d", b.CurrentPage())},
	}
	out = append(out, KV{"pending_patches", fmt.Sprintf("%d", len(b.current))})
	if diff := b.patchDiff(); diff != "" {
		out = append(out, KV{"pending_diff", diff})
	}
	return out
}

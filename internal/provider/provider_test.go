package provider

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryProvider_ReadWrite(t *testing.T) {
	p := NewMemoryProvider("mem", []byte{0xAA, 0xBB, 0xCC, 0xDD})
	buf := make([]byte, 4)
	n, err := p.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC, 0xDD}, buf)
}

func TestMemoryProvider_ReadPastEnd(t *testing.T) {
	p := NewMemoryProvider("mem", []byte{0x01, 0x02})
	buf := make([]byte, 4)
	_, err := p.Read(0, buf)
	require.Error(t, err)
}

func TestMemoryProvider_PatchOverlaysRaw(t *testing.T) {
	p := NewMemoryProvider("mem", []byte{0x00, 0x00, 0x00})
	require.NoError(t, p.AddPatch(1, 0xFF, true))

	buf := make([]byte, 3)
	_, err := p.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xFF, 0x00}, buf)

	rawBuf := make([]byte, 3)
	_, err = p.RawRead(0, rawBuf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x00}, rawBuf)
}

func TestMemoryProvider_OverlayWinsOverPatch(t *testing.T) {
	p := NewMemoryProvider("mem", []byte{0x00, 0x00})
	require.NoError(t, p.AddPatch(0, 0x11, true))
	p.AddOverlay(Overlay{Start: 0, Data: []byte{0x22}})

	buf := make([]byte, 1)
	_, err := p.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x22), buf[0])
}

func TestMemoryProvider_UndoRedo(t *testing.T) {
	p := NewMemoryProvider("mem", []byte{0x00})
	require.NoError(t, p.AddPatch(0, 0x11, true))
	require.NoError(t, p.AddPatch(0, 0x22, true))

	buf := make([]byte, 1)
	p.Read(0, buf)
	assert.Equal(t, byte(0x22), buf[0])

	require.True(t, p.CanUndo())
	require.NoError(t, p.Undo())
	p.Read(0, buf)
	assert.Equal(t, byte(0x11), buf[0])

	require.True(t, p.CanRedo())
	require.NoError(t, p.Redo())
	p.Read(0, buf)
	assert.Equal(t, byte(0x22), buf[0])
}

func TestMemoryProvider_UndoThenNewPatchDropsRedo(t *testing.T) {
	p := NewMemoryProvider("mem", []byte{0x00})
	require.NoError(t, p.AddPatch(0, 0x11, true))
	require.NoError(t, p.Undo())
	require.True(t, p.CanRedo())

	require.NoError(t, p.AddPatch(0, 0x33, true))
	assert.False(t, p.CanRedo())
}

func TestMemoryProvider_InsertRemove(t *testing.T) {
	p := NewMemoryProvider("mem", []byte{0x01, 0x02, 0x03})
	require.NoError(t, p.Insert(1, 2))
	assert.Equal(t, uint64(5), p.Size())

	require.NoError(t, p.Remove(1, 2))
	assert.Equal(t, uint64(3), p.Size())
}

func TestViewProvider_BoundsAndForwarding(t *testing.T) {
	inner := NewMemoryProvider("mem", []byte{0, 1, 2, 3, 4, 5})
	view := NewViewProvider(inner, 2, 3)

	buf := make([]byte, 3)
	_, err := view.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 4}, buf)

	_, err = view.Read(2, make([]byte, 2))
	require.Error(t, err)
}

func TestBase64Provider_DecodesTransparently(t *testing.T) {
	inner := NewMemoryProvider("mem", []byte("QUJD")) // base64("ABC")
	b64 := NewBase64Provider(inner)

	buf := make([]byte, 3)
	_, err := b64.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, []byte("ABC"), buf)
}

func TestBase_ReadOnlyRejectsWrite(t *testing.T) {
	store := &memoryStore{data: []byte{0x00}}
	b := NewBase(store, "ro", "memory", false, 0)
	err := b.Write(0, []byte{0x01})
	require.Error(t, err)
}

// TestBase_ConcurrentPagingAndIO exercises Read/RawRead/Write concurrently
// with SetCurrentPage/SetBaseAddress under the race detector: absolute()
// must only ever observe currentPage/baseAddr under the same lock a
// concurrent Set holds, per spec.md §5's "Provider mutex guards" contract.
func TestBase_ConcurrentPagingAndIO(t *testing.T) {
	store := &memoryStore{data: make([]byte, 1<<20)}
	b := NewBase(store, "mem", "memory", true, 4096)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := uint64(0); ; i++ {
			select {
			case <-stop:
				return
			default:
				b.SetCurrentPage(i % 8)
				b.SetBaseAddress(i % 16)
			}
		}
	}()
	go func() {
		defer wg.Done()
		buf := make([]byte, 8)
		for {
			select {
			case <-stop:
				return
			default:
				_, _ = b.Read(0, buf)
				_, _ = b.RawRead(0, buf)
			}
		}
	}()
	go func() {
		defer wg.Done()
		buf := []byte{1, 2, 3, 4}
		for {
			select {
			case <-stop:
				return
			default:
				_ = b.Write(0, buf)
			}
		}
	}()

	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()
}

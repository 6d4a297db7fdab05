package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/patternlang/internal/lexer"
	"github.com/patterncore/patternlang/internal/parser"
	"github.com/patterncore/patternlang/internal/pattern"
	"github.com/patterncore/patternlang/internal/provider"
)

func mustRun(t *testing.T, src string, data []byte) []*pattern.Pattern {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	prov := provider.NewMemoryProvider("mem", data)
	e := New(prov)
	out, err := e.Run(prog, nil)
	require.NoError(t, err)
	return out
}

func TestEvaluator_StructFields(t *testing.T) {
	out := mustRun(t, `
		struct Header {
			u32 magic;
			u16 version;
		};
		Header h @ 0x0;
	`, []byte{0x78, 0x56, 0x34, 0x12, 0x02, 0x00})

	require.Len(t, out, 1)
	h := out[0]
	assert.Equal(t, "struct", h.Kind.String())
	require.Len(t, h.Children, 2)
	assert.Equal(t, uint64(0x12345678), h.Children[0].UintValue)
	assert.Equal(t, uint64(2), h.Children[1].UintValue)
}

func TestEvaluator_StaticArray(t *testing.T) {
	out := mustRun(t, `
		u8 values[4] @ 0x0;
	`, []byte{1, 2, 3, 4})

	require.Len(t, out, 1)
	require.Len(t, out[0].Children, 4)
	assert.Equal(t, uint64(3), out[0].Children[2].UintValue)
}

func TestEvaluator_Bitfield(t *testing.T) {
	out := mustRun(t, `
		bitfield Flags {
			a : 1;
			b : 3;
			c : 4;
		};
		Flags f @ 0x0;
	`, []byte{0b10110101})

	require.Len(t, out, 1)
	f := out[0]
	require.Len(t, f.Children, 3)
	assert.Equal(t, uint64(1), f.Children[0].UintValue) // bit 0
	assert.Equal(t, uint64(2), f.Children[1].UintValue) // bits 1-3 -> 0b010
	assert.Equal(t, uint64(0b1011), f.Children[2].UintValue)
}

func TestEvaluator_ConditionalAndExpr(t *testing.T) {
	out := mustRun(t, `
		u8 flag @ 0x0;
		if (flag == 1) {
			u8 yes @ 0x1;
		} else {
			u8 no @ 0x1;
		}
	`, []byte{1, 0xAA})

	require.Len(t, out, 2)
	assert.Equal(t, "yes", out[1].Name)
	assert.Equal(t, uint64(0xAA), out[1].UintValue)
}

func TestEvaluator_Pointer(t *testing.T) {
	out := mustRun(t, `
		u8 *ptr : u32;
	`, []byte{0x04, 0x00, 0x00, 0x00, 0xEE})

	require.Len(t, out, 1)
	p := out[0]
	assert.Equal(t, uint64(4), p.PointedAtAddress)
	require.NotNil(t, p.Pointee)
	assert.Equal(t, uint64(0xEE), p.Pointee.UintValue)
}

func TestEvaluator_AutoSizedArrayStopsAtEOF(t *testing.T) {
	out := mustRun(t, `
		u8 values[] @ 0x0;
	`, []byte{1, 2, 3})

	require.Len(t, out, 1)
	assert.Equal(t, "array", out[0].Kind.String())
	require.Len(t, out[0].Children, 3)
	assert.Equal(t, uint64(3), out[0].Children[2].UintValue)
	assert.Equal(t, uint64(3), out[0].Size)
}

func TestEvaluator_OutOfRangeReadAborts(t *testing.T) {
	toks, err := lexer.Tokenize(`u32 x @ 0x10;`)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	prov := provider.NewMemoryProvider("mem", []byte{1, 2})
	e := New(prov)
	_, err = e.Run(prog, nil)
	require.Error(t, err)
}

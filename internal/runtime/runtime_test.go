package runtime

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/patternlang/internal/evaluator"
	"github.com/patterncore/patternlang/internal/provider"
)

func TestExecuteString_BasicPrimitive(t *testing.T) {
	rt := New()
	prov := provider.NewMemoryProvider("mem", []byte{0x2A, 0x00, 0x00, 0x00})

	out, err := rt.ExecuteString(prov, `u32 answer @ 0x0;`, nil, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(42), out[0].UintValue)
	assert.Equal(t, uint64(42), rt.OutVariables()["answer"].Int.Uint64())
}

func TestExecuteFile_ReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "pattern.ptn")
	require.NoError(t, os.WriteFile(srcPath, []byte(`u8 flag @ 0x0;`), 0o644))

	rt := New()
	prov := provider.NewMemoryProvider("mem", []byte{1})

	out, err := rt.ExecuteFile(prov, srcPath, nil, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint64(1), out[0].UintValue)
}

func TestExecuteFunction_ImplicitMain(t *testing.T) {
	rt := New()
	prov := provider.NewMemoryProvider("mem", nil)

	out, err := rt.ExecuteFunction(prov, `return 1 + 2;`)
	require.NoError(t, err)
	assert.Equal(t, evaluator.LiteralInt, out.Kind)
	assert.Equal(t, int64(3), out.Int.Int64())
}

func TestExecuteFunction_ExplicitMain(t *testing.T) {
	rt := New()
	prov := provider.NewMemoryProvider("mem", nil)

	out, err := rt.ExecuteFunction(prov, `fn main() { return 7; }`)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.Int.Int64())
}

func TestRegisterFunction_SurvivesAcrossRuns(t *testing.T) {
	rt := New()
	rt.RegisterFunction("", "double", evaluator.Exact(1), func(e *evaluator.Evaluator, args []evaluator.Literal) (evaluator.Literal, error) {
		v := args[0].Int.Int64() * 2
		return evaluator.Literal{Kind: evaluator.LiteralInt, Int: big.NewInt(v)}, nil
	})

	prov := provider.NewMemoryProvider("mem", nil)
	out1, err := rt.ExecuteFunction(prov, `return double(21);`)
	require.NoError(t, err)
	assert.Equal(t, int64(42), out1.Int.Int64())

	out2, err := rt.ExecuteFunction(prov, `return double(2);`)
	require.NoError(t, err)
	assert.Equal(t, int64(4), out2.Int.Int64())
}

func TestLimitsCarryAcrossExecuteCalls(t *testing.T) {
	rt := New()
	rt.SetRecursionLimit(3)
	prov := provider.NewMemoryProvider("mem", nil)

	_, err := rt.ExecuteFunction(prov, `
		fn recurse(n) { if (n == 5) { return n; } return recurse(n + 1); }
		fn main() { return recurse(0); }
	`)
	require.Error(t, err)
}

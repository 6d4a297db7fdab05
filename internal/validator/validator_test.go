package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/patternlang/internal/ast"
	"github.com/patterncore/patternlang/internal/lexer"
	"github.com/patterncore/patternlang/internal/parser"
)

func parseProgram(t *testing.T, src string) *ast.Scope {
	t.Helper()
	toks, err := lexer.Tokenize(src)
	require.NoError(t, err)
	prog, err := parser.Parse(toks)
	require.NoError(t, err)
	return prog
}

func TestValidate_Accepts(t *testing.T) {
	prog := parseProgram(t, `struct Header { u32 magic; u16 version; };`)
	assert.NoError(t, Validate(prog))
}

func TestValidate_DuplicateTopLevel(t *testing.T) {
	prog := parseProgram(t, `struct Header { u32 a; }; struct Header { u32 b; };`)
	err := Validate(prog)
	require.Error(t, err)
}

func TestValidate_DuplicateMember(t *testing.T) {
	prog := parseProgram(t, `struct Header { u32 a; u16 a; };`)
	require.Error(t, Validate(prog))
}

func TestValidate_DuplicateEnumEntry(t *testing.T) {
	prog := parseProgram(t, `enum Color : u8 { Red = 0, Red = 1 };`)
	require.Error(t, Validate(prog))
}

func TestValidate_DuplicateBitfieldField(t *testing.T) {
	prog := parseProgram(t, `bitfield Flags { a : 1; a : 1; };`)
	require.Error(t, Validate(prog))
}

func TestValidate_UndeclaredType(t *testing.T) {
	prog := parseProgram(t, `using Alias = Widget;`)
	require.Error(t, Validate(prog))
}

func TestValidate_DeclaredCustomTypeAccepted(t *testing.T) {
	prog := parseProgram(t, `struct Inner { u8 x; }; struct Outer { Inner i; };`)
	assert.NoError(t, Validate(prog))
}

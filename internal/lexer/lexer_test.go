package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/patternlang/internal/token"
)

func TestTokenizeIdentsAndKeywords(t *testing.T) {
	toks, err := Tokenize("struct Foo { u32 bar; };")
	require.NoError(t, err)

	var kinds []token.Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []token.Kind{
		token.KindKeyword, token.KindIdent, token.KindSeparator,
		token.KindBuiltInType, token.KindIdent, token.KindSeparator,
		token.KindSeparator, token.KindSeparator, token.KindEOF,
	}, kinds)
}

func TestTokenizeIntegerBases(t *testing.T) {
	cases := map[string]uint64{
		"0x1F":  0x1F,
		"0b101": 0b101,
		"0o17":  0o17,
		"42":    42,
		"42u":   42,
	}
	for src, want := range cases {
		toks, err := Tokenize(src)
		require.NoError(t, err, src)
		require.Equal(t, token.KindInteger, toks[0].Kind, src)
		assert.Equal(t, want, toks[0].Int.Uint64(), src)
	}
}

func TestTokenizeIntegerOverflow128(t *testing.T) {
	_, err := Tokenize("0xFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF")
	require.Error(t, err)
}

func TestTokenizeFloatLiteral(t *testing.T) {
	toks, err := Tokenize("3.14f")
	require.NoError(t, err)
	require.Equal(t, token.KindFloat, toks[0].Kind)
	assert.InDelta(t, 3.14, toks[0].Float, 0.0001)
}

func TestTokenizeStringEscapes(t *testing.T) {
	toks, err := Tokenize(`"a\nb\x41"`)
	require.NoError(t, err)
	require.Equal(t, token.KindString, toks[0].Kind)
	assert.Equal(t, "a\nbA", toks[0].Str)
}

func TestTokenizeCharLiterals(t *testing.T) {
	toks, err := Tokenize(`'a'`)
	require.NoError(t, err)
	require.Equal(t, token.KindChar, toks[0].Kind)
	assert.False(t, toks[0].Wide)

	toks, err = Tokenize(`'ab'`)
	require.NoError(t, err)
	require.Equal(t, token.KindChar, toks[0].Kind)
	assert.True(t, toks[0].Wide)
}

func TestTokenizeUnterminatedStringErrors(t *testing.T) {
	_, err := Tokenize(`"abc`)
	require.Error(t, err)
}

func TestTokenizeOperatorsLongestMatch(t *testing.T) {
	toks, err := Tokenize("<<= << <")
	require.NoError(t, err)
	assert.Equal(t, "<<=", toks[0].Text)
	assert.Equal(t, "<<", toks[1].Text)
	assert.Equal(t, "<", toks[2].Text)
}

func TestTokenizeIllegalCharacter(t *testing.T) {
	_, err := Tokenize("`")
	require.Error(t, err)
}

func TestTokenizeLineNumbers(t *testing.T) {
	toks, err := Tokenize("u8 a;\nu8 b;")
	require.NoError(t, err)
	assert.Equal(t, 1, toks[0].Line)
	var secondLineSeen bool
	for _, tok := range toks {
		if tok.Line == 2 {
			secondLineSeen = true
		}
	}
	assert.True(t, secondLineSeen)
}

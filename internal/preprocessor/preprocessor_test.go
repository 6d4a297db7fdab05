package preprocessor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLoader map[string]string

func (m mapLoader) Load(path string) (string, error) {
	if text, ok := m[path]; ok {
		return text, nil
	}
	return "", fmt.Errorf("not found: %s", path)
}

func TestStripLineComment(t *testing.T) {
	p := New(mapLoader{})
	res, err := p.Process("main.pat", "u8 a; // trailing\nu8 b;")
	require.NoError(t, err)
	assert.Contains(t, res.Source, "u8 a;")
	assert.NotContains(t, res.Source, "trailing")
}

func TestStripBlockCommentPreservesLineCount(t *testing.T) {
	p := New(mapLoader{})
	src := "u8 a;\n/* block\nspans\nlines */\nu8 b;"
	res, err := p.Process("main.pat", src)
	require.NoError(t, err)
	// Every output line ends in '\n', so splitLines also yields an empty
	// segment after the last one.
	assert.Equal(t, 5, len(splitLines(res.Source))-1)
}

func splitLines(s string) []string {
	var lines []string
	cur := ""
	for _, c := range s {
		if c == '\n' {
			lines = append(lines, cur)
			cur = ""
			continue
		}
		cur += string(c)
	}
	lines = append(lines, cur)
	return lines
}

func TestIncludeExpansion(t *testing.T) {
	loader := mapLoader{"helper.pat": "u32 helper_field;"}
	p := New(loader)
	res, err := p.Process("main.pat", `#include "helper.pat"`)
	require.NoError(t, err)
	assert.Contains(t, res.Source, "helper_field")
}

func TestIncludeCycleDetected(t *testing.T) {
	loader := mapLoader{
		"a.pat": `#include "b.pat"`,
		"b.pat": `#include "a.pat"`,
	}
	p := New(loader)
	_, err := p.Process("a.pat", loader["a.pat"])
	require.Error(t, err)
}

func TestDefineSubstitution(t *testing.T) {
	p := New(mapLoader{})
	res, err := p.Process("main.pat", "#define SIZE 16\nu8 buf[SIZE];")
	require.NoError(t, err)
	assert.Contains(t, res.Source, "u8 buf[16];")
}

func TestDefineDoesNotMatchSubstring(t *testing.T) {
	p := New(mapLoader{})
	res, err := p.Process("main.pat", "#define A 1\nu8 ABC;")
	require.NoError(t, err)
	assert.Contains(t, res.Source, "u8 ABC;")
}

func TestPragmaEndianRecognized(t *testing.T) {
	p := New(mapLoader{})
	res, err := p.Process("main.pat", "#pragma endian big\nu8 a;")
	require.NoError(t, err)
	require.Len(t, res.Pragmas, 1)
	assert.Equal(t, "endian", res.Pragmas[0].Key)
	assert.Equal(t, "big", res.Pragmas[0].Value)
}

func TestPragmaEndianRejectsUnknownValue(t *testing.T) {
	p := New(mapLoader{})
	_, err := p.Process("main.pat", "#pragma endian sideways")
	require.Error(t, err)
}

func TestStringLiteralCommentMarkersIgnored(t *testing.T) {
	p := New(mapLoader{})
	res, err := p.Process("main.pat", `str s = "http://example.com";`)
	require.NoError(t, err)
	assert.Contains(t, res.Source, "http://example.com")
}

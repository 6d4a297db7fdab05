// Package preprocessor implements the textual stage that runs before
// lexing: comment stripping, #include expansion, #define token
// replacement, and #pragma dispatch, per spec.md §4.1.
package preprocessor

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/patterncore/patternlang/internal/langerr"
)

// FileLoader resolves an #include path to its source text. The host
// supplies this (e.g. reading from disk, from an embedded FS, or from a
// virtual project); the preprocessor never touches the filesystem itself.
type FileLoader interface {
	Load(path string) (string, error)
}

// PragmaHandler processes a single `#pragma key value` directive.
// Returning an error rejects the value and aborts preprocessing.
type PragmaHandler func(value string, line int) error

// Preprocessor expands directives and strips comments from pattern-language
// source text, tracking include cycles and registered pragma handlers.
type Preprocessor struct {
	loader      FileLoader
	pragmas     map[string]PragmaHandler
	searchRoots []string
}

// New creates a Preprocessor that resolves #include paths through loader.
func New(loader FileLoader) *Preprocessor {
	p := &Preprocessor{
		loader:  loader,
		pragmas: make(map[string]PragmaHandler),
	}
	p.RegisterPragma("endian", func(value string, line int) error {
		switch strings.TrimSpace(value) {
		case "big", "little", "native":
			return nil
		default:
			return fmt.Errorf("unrecognized endian value %q", value)
		}
	})
	return p
}

// RegisterPragma installs a handler for #pragma key. Built-in handlers
// (currently "endian") may be overridden by the host.
func (p *Preprocessor) RegisterPragma(key string, h PragmaHandler) {
	p.pragmas[key] = h
}

// AddSearchRoot registers a glob root (supporting doublestar `**` patterns)
// consulted when an #include path does not resolve directly through the
// loader; candidates are expanded to concrete paths and tried in order.
func (p *Preprocessor) AddSearchRoot(root string) {
	p.searchRoots = append(p.searchRoots, root)
}

// Pragma is a single recognised `#pragma key value` directive, returned
// alongside the expanded text so the host/evaluator can act on it (e.g.
// apply `endian`).
type Pragma struct {
	Key   string
	Value string
	Line  int
}

// Result is the output of a preprocessing run.
type Result struct {
	Source  string
	Pragmas []Pragma
}

var (
	includeRe = regexp.MustCompile(`^\s*#include\s+"([^"]*)"\s*$`)
	defineRe  = regexp.MustCompile(`^\s*#define\s+([A-Za-z_][A-Za-z0-9_]*)\s+(.*)$`)
	pragmaRe  = regexp.MustCompile(`^\s*#pragma\s+(\S+)\s*(.*)$`)
)

// Process runs the full preprocessing pipeline over source, starting from
// a virtual top-level filename used only for cycle/error reporting.
func (p *Preprocessor) Process(filename, source string) (*Result, error) {
	visited := map[string]bool{canonical(filename): true}
	defines := make(map[string]string)
	var pragmas []Pragma

	out, err := p.expand(filename, source, visited, defines, &pragmas)
	if err != nil {
		return nil, err
	}
	return &Result{Source: out, Pragmas: pragmas}, nil
}

func canonical(path string) string {
	return filepath.Clean(path)
}

func (p *Preprocessor) expand(filename, source string, visited map[string]bool, defines map[string]string, pragmas *[]Pragma) (string, error) {
	stripped, err := stripComments(source)
	if err != nil {
		return "", err
	}

	lines := strings.Split(stripped, "\n")
	var out strings.Builder

	for i, line := range lines {
		lineNo := i + 1

		if m := includeRe.FindStringSubmatch(line); m != nil {
			incPath := m[1]
			resolved, text, err := p.resolveInclude(incPath)
			if err != nil {
				return "", langerr.At(langerr.KindPreprocessor, lineNo, fmt.Sprintf("include %q not found: %v", incPath, err))
			}
			key := canonical(resolved)
			if visited[key] {
				return "", langerr.At(langerr.KindPreprocessor, lineNo, fmt.Sprintf("include cycle detected at %q", incPath))
			}
			visited[key] = true
			expanded, err := p.expand(resolved, text, visited, defines, pragmas)
			if err != nil {
				return "", err
			}
			delete(visited, key)
			out.WriteString(expanded)
			out.WriteString("\n")
			continue
		}

		if m := defineRe.FindStringSubmatch(line); m != nil {
			defines[m[1]] = strings.TrimSpace(m[2])
			out.WriteString("\n")
			continue
		}

		if m := pragmaRe.FindStringSubmatch(line); m != nil {
			key, value := m[1], strings.TrimSpace(m[2])
			if handler, ok := p.pragmas[key]; ok {
				if err := handler(value, lineNo); err != nil {
					return "", langerr.At(langerr.KindPreprocessor, lineNo, fmt.Sprintf("pragma %q rejected: %v", key, err))
				}
			}
			*pragmas = append(*pragmas, Pragma{Key: key, Value: value, Line: lineNo})
			out.WriteString("\n")
			continue
		}

		out.WriteString(substituteDefines(line, defines))
		out.WriteString("\n")
	}

	return out.String(), nil
}

// resolveInclude tries the loader directly, then each registered search
// root as a doublestar glob prefix.
func (p *Preprocessor) resolveInclude(path string) (resolvedPath, text string, err error) {
	if p.loader != nil {
		if text, err = p.loader.Load(path); err == nil {
			return path, text, nil
		}
	}
	for _, root := range p.searchRoots {
		candidate := filepath.Join(root, path)
		matches, _ := doublestar.Glob(nil, filepath.ToSlash(candidate))
		for _, m := range matches {
			if p.loader != nil {
				if text, err := p.loader.Load(m); err == nil {
					return m, text, nil
				}
			}
		}
		if p.loader != nil {
			if text, lerr := p.loader.Load(candidate); lerr == nil {
				return candidate, text, nil
			}
		}
	}
	if err != nil {
		return "", "", err
	}
	return "", "", fmt.Errorf("no loader configured")
}

var wordBoundary = `\b`

// substituteDefines performs word-boundary token replacement of every
// previously-seen #define name in line. Replacements do not themselves
// get re-scanned for nested defines (matching spec.md's "no arguments, no
// stringisation" contract).
func substituteDefines(line string, defines map[string]string) string {
	if len(defines) == 0 {
		return line
	}
	names := make([]string, 0, len(defines))
	for name := range defines {
		names = append(names, regexp.QuoteMeta(name))
	}
	re := regexp.MustCompile(wordBoundary + "(" + strings.Join(names, "|") + ")" + wordBoundary)
	return re.ReplaceAllStringFunc(line, func(name string) string { return defines[name] })
}

// stripComments removes // line comments and /* */ block comments while
// preserving line numbers: every consumed source line still emits exactly
// one newline, so downstream line numbers stay aligned with the original
// file.
func stripComments(source string) (string, error) {
	var out strings.Builder
	runes := []rune(source)
	n := len(runes)
	line := 1

	for i := 0; i < n; i++ {
		c := runes[i]

		if c == '\n' {
			out.WriteRune('\n')
			line++
			continue
		}

		if c == '/' && i+1 < n && runes[i+1] == '/' {
			for i < n && runes[i] != '\n' {
				i++
			}
			i--
			continue
		}

		if c == '/' && i+1 < n && runes[i+1] == '*' {
			startLine := line
			i += 2
			closed := false
			for i+1 < n {
				if runes[i] == '\n' {
					out.WriteRune('\n')
					line++
				}
				if runes[i] == '*' && runes[i+1] == '/' {
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				return "", langerr.At(langerr.KindPreprocessor, startLine, "unterminated block comment")
			}
			continue
		}

		// Skip over string/char literals verbatim so a '//' or '/*' inside
		// one is not mistaken for a comment start.
		if c == '"' || c == '\'' {
			quote := c
			out.WriteRune(c)
			i++
			for i < n && runes[i] != quote {
				if runes[i] == '\\' && i+1 < n {
					out.WriteRune(runes[i])
					i++
				}
				if runes[i] == '\n' {
					line++
				}
				out.WriteRune(runes[i])
				i++
			}
			if i < n {
				out.WriteRune(runes[i])
			}
			continue
		}

		out.WriteRune(c)
	}

	return out.String(), nil
}

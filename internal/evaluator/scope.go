package evaluator

import "github.com/patterncore/patternlang/internal/pattern"

// frame is one lexical scope, per spec.md §4.5 "Scopes": a pair of the
// parent pattern being filled (nil at the top level) and the local variable
// bindings declared within it. Entering a struct/union/array/function body
// pushes a frame; leaving pops it, trimming any locals it declared.
type frame struct {
	vars map[string]value
	pat  *pattern.Pattern
}

func newFrame(pat *pattern.Pattern) *frame {
	return &frame{vars: map[string]value{}, pat: pat}
}

func (e *Evaluator) pushFrame(pat *pattern.Pattern) *frame {
	f := newFrame(pat)
	e.frames = append(e.frames, f)
	return f
}

func (e *Evaluator) popFrame() {
	e.frames = e.frames[:len(e.frames)-1]
}

func (e *Evaluator) top() *frame {
	return e.frames[len(e.frames)-1]
}

// currentComposite returns the pattern currently being filled in the
// innermost scope that owns one (struct/union; array and function frames
// carry none).
func (e *Evaluator) currentComposite() *pattern.Pattern {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if e.frames[i].pat != nil {
			return e.frames[i].pat
		}
	}
	return nil
}

// parentComposite returns the composite pattern enclosing currentComposite,
// used to resolve the `parent` path keyword.
func (e *Evaluator) parentComposite() *pattern.Pattern {
	seen := false
	for i := len(e.frames) - 1; i >= 0; i-- {
		if e.frames[i].pat != nil {
			if seen {
				return e.frames[i].pat
			}
			seen = true
		}
	}
	return nil
}

// setVar binds name in the innermost frame.
func (e *Evaluator) setVar(name string, v value) {
	e.top().vars[name] = v
}

// lookupVar searches frames innermost-first for a local variable binding.
func (e *Evaluator) lookupVar(name string) (value, bool) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		if v, ok := e.frames[i].vars[name]; ok {
			return v, true
		}
	}
	return value{}, false
}

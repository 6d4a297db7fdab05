// Package runtime wires the preprocessor, lexer, parser, validator, and
// evaluator into the single embedding surface described by spec.md §6:
// execute_string/execute_file/execute_function plus the runtime-lifetime
// configuration calls (pattern/recursion limits, default endian, data
// source, registered functions, abort).
package runtime

import (
	"os"

	"github.com/patterncore/patternlang/internal/ast"
	"github.com/patterncore/patternlang/internal/evaluator"
	"github.com/patterncore/patternlang/internal/langerr"
	"github.com/patterncore/patternlang/internal/lexer"
	"github.com/patterncore/patternlang/internal/parser"
	"github.com/patterncore/patternlang/internal/pattern"
	"github.com/patterncore/patternlang/internal/preprocessor"
	"github.com/patterncore/patternlang/internal/provider"
	"github.com/patterncore/patternlang/internal/validator"
)

// osLoader resolves #include paths directly off the filesystem, relative
// to the working directory the host process was started in.
type osLoader struct{}

func (osLoader) Load(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Runtime is the long-lived embedding handle a host holds across multiple
// execute_* calls. Each execute_* call replaces the evaluator's transient
// run state but preserves runtime-lifetime configuration (limits, default
// endian, registered functions) across calls, per spec.md §6.
type Runtime struct {
	pp         *preprocessor.Preprocessor
	eval       *evaluator.Evaluator
	lastErr    error
	registered []registration
}

type registration struct {
	namespace, name string
	arity           evaluator.ParamArity
	fn              evaluator.BuiltinFunc
}

// New creates a fresh Runtime with no data source bound; each execute_* call
// binds the provider passed to it.
func New() *Runtime {
	r := &Runtime{pp: preprocessor.New(osLoader{})}
	r.eval = evaluator.New(nil)
	return r
}

// AddIncludeSearchRoot registers a glob root consulted by #include
// resolution beyond the loader's direct lookup.
func (r *Runtime) AddIncludeSearchRoot(root string) {
	r.pp.AddSearchRoot(root)
}

// RegisterPragma installs a handler for a `#pragma key value` directive.
func (r *Runtime) RegisterPragma(key string, h preprocessor.PragmaHandler) {
	r.pp.RegisterPragma(key, h)
}

// SetPatternLimit bounds the number of patterns a single run may produce.
func (r *Runtime) SetPatternLimit(n int) { r.eval.SetPatternLimit(n) }

// SetRecursionLimit bounds user-function call depth.
func (r *Runtime) SetRecursionLimit(n int) { r.eval.SetRecursionLimit(n) }

// SetDefaultEndian sets the byte order used when no le/be prefix is active.
func (r *Runtime) SetDefaultEndian(e pattern.Endian) { r.eval.SetDefaultEndian(e) }

// SetPointerBase sets the base address absolute pointer fields are offset
// from.
func (r *Runtime) SetPointerBase(base uint64) { r.eval.SetPointerBase(base) }

// SetDataSource rebinds the byte provider of the current evaluator, without
// discarding registered functions or limits. Each execute_* call replaces
// the evaluator and reads from the provider passed to that call instead.
func (r *Runtime) SetDataSource(p provider.Provider) { r.eval.SetDataSource(p) }

// Abort signals the in-flight evaluation to stop at its next checkpoint.
// Each execute_* call starts a fresh evaluator, so an Abort made between
// calls does not affect the next one.
func (r *Runtime) Abort() { r.eval.Abort() }

// RegisterFunction installs a built-in callable from pattern source under
// namespace.name (an empty namespace is the global table). Registrations
// survive across execute_* calls, replayed onto each fresh Evaluator.
func (r *Runtime) RegisterFunction(namespace, name string, arity evaluator.ParamArity, fn evaluator.BuiltinFunc) {
	r.registered = append(r.registered, registration{namespace, name, arity, fn})
	r.eval.RegisterFunction(namespace, name, arity, fn)
}

// OutVariables returns the name→literal mapping of top-level variables
// bound by the most recent successful run.
func (r *Runtime) OutVariables() map[string]evaluator.Literal { return r.eval.OutVariables() }

// ConsoleLog returns the ordered (level, message) entries emitted by the
// most recent run.
func (r *Runtime) ConsoleLog() []evaluator.LogEntry { return r.eval.ConsoleLog() }

// Error returns the error from the most recent execute_* call, or nil.
func (r *Runtime) Error() error { return r.lastErr }

// newEvaluatorForRun replaces r.eval with a fresh Evaluator bound to prov,
// replaying prior configuration and registrations so they remain visible to
// the new run without leaking state (bound variables, console log, abort
// flag) from the previous one.
func (r *Runtime) newEvaluatorForRun(prov provider.Provider) {
	prev := r.eval
	e := evaluator.New(prov)
	e.SetPatternLimit(prev.PatternLimit())
	e.SetRecursionLimit(prev.RecursionLimit())
	e.SetDefaultEndian(prev.DefaultEndian())
	e.SetPointerBase(prev.PointerBaseValue())
	for _, reg := range r.registered {
		e.RegisterFunction(reg.namespace, reg.name, reg.arity, reg.fn)
	}
	r.eval = e
}

// compile runs preprocessing → lexing → parsing → validation, returning the
// validated AST ready for evaluation.
func (r *Runtime) compile(filename, source string) (*ast.Scope, error) {
	pre, err := r.pp.Process(filename, source)
	if err != nil {
		return nil, err
	}
	toks, err := lexer.Tokenize(pre.Source)
	if err != nil {
		return nil, err
	}
	prog, err := parser.Parse(toks)
	if err != nil {
		return nil, err
	}
	if err := validator.Validate(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// ExecuteString implements spec.md §6's `execute_string(provider, source,
// env_vars, in_vars)`: compile source and evaluate it top-to-bottom,
// returning every pattern the run produced. env_vars seed preprocessor
// #define state ahead of the user source by being prepended as #define
// directives.
func (r *Runtime) ExecuteString(prov provider.Provider, source string, envVars map[string]string, inVars map[string]evaluator.Literal) ([]*pattern.Pattern, error) {
	r.newEvaluatorForRun(prov)
	prog, err := r.compile("<string>", withEnvDefines(source, envVars))
	if err != nil {
		r.lastErr = err
		return nil, err
	}
	out, err := r.eval.Run(prog, inVars)
	r.lastErr = err
	return out, err
}

// ExecuteFile implements spec.md §6's `execute_file`: read source from path
// on the filesystem and otherwise behave like ExecuteString.
func (r *Runtime) ExecuteFile(prov provider.Provider, path string, envVars map[string]string, inVars map[string]evaluator.Literal) ([]*pattern.Pattern, error) {
	text, err := osLoader{}.Load(path)
	if err != nil {
		wrapped := langerr.Wrap(langerr.KindPreprocessor, 0, "failed to read source file", err)
		r.lastErr = wrapped
		return nil, wrapped
	}
	r.newEvaluatorForRun(prov)
	prog, err := r.compile(path, withEnvDefines(text, envVars))
	if err != nil {
		r.lastErr = err
		return nil, err
	}
	out, err := r.eval.Run(prog, inVars)
	r.lastErr = err
	return out, err
}

// ExecuteFunction implements spec.md §6's `execute_function(provider,
// code)`: code is wrapped in an implicit `fn main() { ... }` when it
// contains no top-level `fn main()` of its own, then main() is
// invoked and its return value is handed back as a Literal.
func (r *Runtime) ExecuteFunction(prov provider.Provider, code string) (evaluator.Literal, error) {
	r.newEvaluatorForRun(prov)
	prog, err := r.compile("<function>", code)
	if err != nil {
		r.lastErr = err
		return evaluator.Literal{}, err
	}
	if !hasEntryPoint(prog) {
		prog = wrapAsMain(prog)
	}
	out, err := r.eval.RunFunction(prog, nil)
	r.lastErr = err
	return out, err
}

func hasEntryPoint(prog *ast.Scope) bool {
	for _, n := range prog.Statements {
		if fn, ok := n.(*ast.FunctionDef); ok && fn.Name == "main" {
			return true
		}
	}
	return false
}

// wrapAsMain lifts every top-level statement of prog into the body of a
// synthetic `fn main()`, matching spec.md §6's "code is wrapped in an
// implicit fn main() if no entry point is present".
func wrapAsMain(prog *ast.Scope) *ast.Scope {
	main := &ast.FunctionDef{Name: "main", Body: &ast.Scope{Statements: prog.Statements}}
	return &ast.Scope{Statements: []ast.Node{main}}
}

// withEnvDefines prepends one #define line per env_vars entry ahead of
// source, so host-supplied environment variables participate in
// preprocessor macro substitution exactly like source-level #defines.
func withEnvDefines(source string, envVars map[string]string) string {
	if len(envVars) == 0 {
		return source
	}
	var b []byte
	for k, v := range envVars {
		b = append(b, []byte("#define "+k+" "+v+"\n")...)
	}
	return string(b) + source
}

// Package evaluator walks a validated AST, producing a tree of
// internal/pattern.Pattern values against an internal/provider.Provider, per
// spec.md §4.5.
package evaluator

import (
	"fmt"
	"sync/atomic"

	"github.com/patterncore/patternlang/internal/ast"
	"github.com/patterncore/patternlang/internal/byteorder"
	"github.com/patterncore/patternlang/internal/langerr"
	"github.com/patterncore/patternlang/internal/pattern"
	"github.com/patterncore/patternlang/internal/provider"
	"github.com/patterncore/patternlang/internal/token"
)

// flowSignal is the evaluator's control-flow state machine, per spec.md
// §4.5's diagram: Running advances to Aborted (an error return), FlowReturn,
// FlowBreak, or FlowCont.
type flowSignal int

const (
	flowNone flowSignal = iota
	flowBreak
	flowContinue
	flowReturn
)

// LogEntry is one console_log() message; level is "debug"/"info"/"warn"/
// "error" per spec.md §4.5's "console log messages... accumulate regardless
// of abort".
type LogEntry struct {
	Level   string
	Message string
}

// Evaluator is single-threaded and not reentrant, per spec.md §5's
// "Scheduling model": it owns the byte cursor as part of its state.
type Evaluator struct {
	prov        provider.Provider
	cursor      uint64
	pointerBase uint64

	endianStack []pattern.Endian
	defaultEnd  pattern.Endian

	frames []*frame

	typeDecls map[string]ast.Node
	functions map[string]*ast.FunctionDef
	builtins  map[string]builtinEntry

	inVars  map[string]value
	outVars map[string]value

	recursionDepth int
	recursionLimit int
	patternCount   int
	patternLimit   int

	aborted int32

	flow      flowSignal
	flowValue value

	console []LogEntry
}

// New constructs an Evaluator reading against prov, with the default limits
// spec.md §4.5/§6 describe as host-configurable.
func New(prov provider.Provider) *Evaluator {
	return &Evaluator{
		prov:          prov,
		defaultEnd:    pattern.EndianLittle,
		typeDecls:     map[string]ast.Node{},
		functions:     map[string]*ast.FunctionDef{},
		builtins:      map[string]builtinEntry{},
		inVars:        map[string]value{},
		outVars:       map[string]value{},
		recursionLimit: 256,
		patternLimit:   100000,
	}
}

func (e *Evaluator) SetRecursionLimit(n int)        { e.recursionLimit = n }
func (e *Evaluator) SetPatternLimit(n int)          { e.patternLimit = n }
func (e *Evaluator) SetDefaultEndian(b pattern.Endian) { e.defaultEnd = b }
func (e *Evaluator) SetPointerBase(b uint64)        { e.pointerBase = b }
func (e *Evaluator) SetDataSource(p provider.Provider) { e.prov = p }

// RecursionLimit, PatternLimit, DefaultEndian, and PointerBaseValue expose
// the current configuration so a host (e.g. internal/runtime) can carry it
// forward onto a freshly constructed Evaluator between execute_* calls.
func (e *Evaluator) RecursionLimit() int          { return e.recursionLimit }
func (e *Evaluator) PatternLimit() int            { return e.patternLimit }
func (e *Evaluator) DefaultEndian() pattern.Endian { return e.defaultEnd }
func (e *Evaluator) PointerBaseValue() uint64      { return e.pointerBase }

// Abort requests cancellation at the next statement boundary, per spec.md
// §5's "An evaluator holds abort: atomic<bool>".
func (e *Evaluator) Abort() { atomic.StoreInt32(&e.aborted, 1) }

func (e *Evaluator) isAborted() bool { return atomic.LoadInt32(&e.aborted) != 0 }

func (e *Evaluator) ConsoleLog() []LogEntry { return append([]LogEntry(nil), e.console...) }

func (e *Evaluator) log(level, msg string) {
	e.console = append(e.console, LogEntry{Level: level, Message: msg})
}

// OutVariables returns the global-scope variable bindings after a successful
// run, per spec.md §6's `out_variables()`. Single and multi-name variable
// declarations are recorded; arrays and pointers are not.
func (e *Evaluator) OutVariables() map[string]Literal {
	out := make(map[string]Literal, len(e.outVars))
	for k, v := range e.outVars {
		out[k] = fromValue(v)
	}
	return out
}

func (e *Evaluator) reset() {
	e.cursor = 0
	e.endianStack = nil
	e.frames = nil
	e.typeDecls = map[string]ast.Node{}
	e.functions = map[string]*ast.FunctionDef{}
	e.outVars = map[string]value{}
	e.recursionDepth = 0
	e.flow = flowNone
	atomic.StoreInt32(&e.aborted, 0)
}

// currentEndian is the top of the endian stack, or the evaluator default.
func (e *Evaluator) currentEndian() pattern.Endian {
	if n := len(e.endianStack); n > 0 {
		return e.endianStack[n-1]
	}
	return e.defaultEnd
}

func (e *Evaluator) pushEndian(ae ast.Endian) bool {
	switch ae {
	case ast.EndianLittle:
		e.endianStack = append(e.endianStack, pattern.EndianLittle)
		return true
	case ast.EndianBig:
		e.endianStack = append(e.endianStack, pattern.EndianBig)
		return true
	default:
		return false
	}
}

func (e *Evaluator) popEndian() { e.endianStack = e.endianStack[:len(e.endianStack)-1] }

func (e *Evaluator) declareTypes(program *ast.Scope) {
	for _, stmt := range program.Statements {
		switch d := stmt.(type) {
		case *ast.StructDecl:
			e.typeDecls[d.Name] = d
		case *ast.UnionDecl:
			e.typeDecls[d.Name] = d
		case *ast.EnumDecl:
			e.typeDecls[d.Name] = d
		case *ast.BitfieldDecl:
			e.typeDecls[d.Name] = d
		case *ast.TypeDecl:
			e.typeDecls[d.Name] = d
		}
	}
}

func (e *Evaluator) declareFunctions(program *ast.Scope) {
	for _, stmt := range program.Statements {
		if fn, ok := stmt.(*ast.FunctionDef); ok {
			e.functions[fn.Name] = fn
		}
	}
}

// Run executes program's top-level statements directly, producing the
// pattern list an `execute_string`/`execute_file` call returns.
func (e *Evaluator) Run(program *ast.Scope, inVars map[string]Literal) ([]*pattern.Pattern, error) {
	e.reset()
	e.declareTypes(program)
	e.declareFunctions(program)
	for k, v := range inVars {
		e.inVars[k] = v.toValue()
	}

	e.pushFrame(nil)
	defer e.popFrame()

	var top []*pattern.Pattern
	for _, stmt := range program.Statements {
		if e.isAborted() {
			return nil, langerr.New(langerr.KindAborted, "evaluation aborted")
		}
		if isDeclOnly(stmt) {
			continue
		}
		p, err := e.execTopStmt(stmt)
		if err != nil {
			return nil, err
		}
		if p != nil {
			top = append(top, p)
		}
		if e.flow == flowReturn {
			break
		}
	}
	return top, nil
}

// RunFunction executes program's declarations then calls `main`, per
// spec.md §6's "execute_function... code is wrapped in an implicit fn
// main() if no entry point is present" (the wrapping itself is the host's
// responsibility; RunFunction assumes main already exists).
func (e *Evaluator) RunFunction(program *ast.Scope, inVars map[string]Literal) (Literal, error) {
	e.reset()
	e.declareTypes(program)
	e.declareFunctions(program)
	for k, v := range inVars {
		e.inVars[k] = v.toValue()
	}
	main, ok := e.functions["main"]
	if !ok {
		return Literal{}, langerr.New(langerr.KindEvaluation, "no entry point: fn main() not found")
	}
	e.pushFrame(nil)
	defer e.popFrame()
	v, err := e.callUserFunction(main, nil, 0)
	if err != nil {
		return Literal{}, err
	}
	return fromValue(v), nil
}

func isDeclOnly(n ast.Node) bool {
	switch n.(type) {
	case *ast.StructDecl, *ast.UnionDecl, *ast.EnumDecl, *ast.BitfieldDecl, *ast.TypeDecl, *ast.FunctionDef:
		return true
	default:
		return false
	}
}

// execTopStmt executes one global-scope statement, returning the pattern it
// produced (if any); variable declarations are also recorded in
// out_variables.
func (e *Evaluator) execTopStmt(n ast.Node) (*pattern.Pattern, error) {
	switch d := n.(type) {
	case *ast.VariableDecl:
		p, err := e.evalVariableDecl(d)
		if err != nil {
			return nil, err
		}
		if p != nil {
			e.outVars[d.Name] = patternToValue(p)
		}
		return p, nil
	case *ast.ArrayDecl:
		p, err := e.evalArrayDecl(d)
		if err != nil {
			return nil, err
		}
		return p, nil
	case *ast.PointerDecl:
		p, err := e.evalPointerDecl(d)
		if err != nil {
			return nil, err
		}
		return p, nil
	case *ast.MultiVariableDecl:
		var last *pattern.Pattern
		for _, name := range d.Names {
			p, err := e.evalTypedMember(name, d.Type, ast.PlacementSequential, nil, nil)
			if err != nil {
				return nil, err
			}
			e.outVars[name] = patternToValue(p)
			last = p
		}
		return last, nil
	default:
		return nil, e.execStmt(n)
	}
}

// execStmt executes a statement with no pattern result of its own (control
// flow, scopes, declarations used as expression statements).
func (e *Evaluator) execStmt(n ast.Node) error {
	if e.isAborted() {
		return langerr.New(langerr.KindAborted, "evaluation aborted")
	}
	switch d := n.(type) {
	case *ast.StructDecl, *ast.UnionDecl, *ast.EnumDecl, *ast.BitfieldDecl, *ast.TypeDecl, *ast.FunctionDef:
		return nil
	case *ast.VariableDecl:
		_, err := e.evalVariableDecl(d)
		return err
	case *ast.ArrayDecl:
		_, err := e.evalArrayDecl(d)
		return err
	case *ast.PointerDecl:
		_, err := e.evalPointerDecl(d)
		return err
	case *ast.MultiVariableDecl:
		for _, name := range d.Names {
			if _, err := e.evalTypedMember(name, d.Type, ast.PlacementSequential, nil, nil); err != nil {
				return err
			}
		}
		return nil
	case *ast.Scope:
		e.pushFrame(nil)
		defer e.popFrame()
		for _, stmt := range d.Statements {
			if err := e.execStmt(stmt); err != nil {
				return err
			}
			if e.flow != flowNone {
				break
			}
		}
		return nil
	case *ast.Conditional:
		cond, err := e.evalExpr(d.Cond)
		if err != nil {
			return err
		}
		if cond.asBool() {
			return e.execStmt(d.Then)
		}
		if d.Else != nil {
			return e.execStmt(d.Else)
		}
		return nil
	case *ast.While:
		for {
			if e.isAborted() {
				return langerr.New(langerr.KindAborted, "evaluation aborted")
			}
			cond, err := e.evalExpr(d.Cond)
			if err != nil {
				return err
			}
			if !cond.asBool() {
				break
			}
			if err := e.execStmt(d.Body); err != nil {
				return err
			}
			if e.flow == flowBreak {
				e.flow = flowNone
				break
			}
			if e.flow == flowContinue {
				e.flow = flowNone
				continue
			}
			if e.flow == flowReturn {
				break
			}
		}
		return nil
	case *ast.ControlFlow:
		switch d.Kind {
		case ast.ControlBreak:
			e.flow = flowBreak
		case ast.ControlContinue:
			e.flow = flowContinue
		case ast.ControlReturn:
			if d.Value != nil {
				v, err := e.evalExpr(d.Value)
				if err != nil {
					return err
				}
				e.flowValue = v
			} else {
				e.flowValue = voidValue()
			}
			e.flow = flowReturn
		}
		return nil
	default:
		// Bare expression statement: a function call for side effects.
		_, err := e.evalExpr(n)
		return err
	}
}

// evalVariableDecl evaluates one `Type name [@ expr];` field.
func (e *Evaluator) evalVariableDecl(d *ast.VariableDecl) (*pattern.Pattern, error) {
	p, err := e.evalTypedMember(d.Name, d.Type, d.Placement, d.At, d.Attributes)
	if err != nil {
		return nil, err
	}
	if p != nil {
		e.setVar(d.Name, patternToValue(p))
	}
	return p, nil
}

// evalTypedMember is the shared core of variable/array-element/struct-member
// evaluation: it resolves placement, evaluates the type, and applies
// attributes. The endian frame of a le/be-prefixed built-in type is pushed
// and popped by evalBuiltIn.
func (e *Evaluator) evalTypedMember(name string, typ ast.Node, placement ast.Placement, at ast.Node, attrs []*ast.Attribute) (*pattern.Pattern, error) {
	if placement == ast.PlacementIn {
		if v, ok := e.inVars[name]; ok {
			e.setVar(name, v)
		}
		return nil, nil
	}

	saved := e.cursor
	restoreAfter := len(e.frames) > 1 // "only inside a non-global scope" per spec.md §4.5
	if placement == ast.PlacementAt {
		addr, err := e.evalExpr(at)
		if err != nil {
			return nil, err
		}
		e.cursor = addr.asBig().Uint64()
	}

	p, err := e.evalType(typ, name)
	if err != nil {
		return nil, err
	}
	applyAttributes(p, attrs)

	if placement == ast.PlacementAt && restoreAfter {
		e.cursor = saved
	}
	return p, nil
}

// applyAttributes applies `color`/`name`/`comment` variable-level
// attributes, which win over any type-level attribute already applied by
// evalType, per spec.md §4.5's "variable attributes... may overwrite
// colour, format, or display name" ordering.
func applyAttributes(p *pattern.Pattern, attrs []*ast.Attribute) {
	if p == nil {
		return
	}
	for _, a := range attrs {
		switch a.Name {
		case "color":
			if len(a.Args) == 1 {
				if lit, ok := a.Args[0].(*ast.Literal); ok {
					p.Color = uint32(lit.Int.Uint64())
				}
			}
		case "name":
			if len(a.Args) == 1 {
				if lit, ok := a.Args[0].(*ast.Literal); ok {
					p.Name = lit.Str
				}
			}
		case "comment":
			if len(a.Args) == 1 {
				if lit, ok := a.Args[0].(*ast.Literal); ok {
					p.Comment = lit.Str
				}
			}
		}
	}
}

// evalType dispatches a type reference (built-in or custom) to the matching
// evaluation routine, producing one pattern rooted at the current cursor.
func (e *Evaluator) evalType(typ ast.Node, name string) (*pattern.Pattern, error) {
	e.patternCount++
	if e.patternCount > e.patternLimit {
		return nil, langerr.New(langerr.KindPatternLimit, "pattern count limit exceeded")
	}

	switch t := typ.(type) {
	case *ast.BuiltInTypeNode:
		return e.evalBuiltIn(t, name)
	case *ast.Path:
		if len(t.Segments) != 1 {
			return nil, langerr.At(langerr.KindEvaluation, typ.Line(), "invalid type reference")
		}
		typeName := t.Segments[0].Name
		decl, ok := e.typeDecls[typeName]
		if !ok {
			return nil, langerr.At(langerr.KindEvaluation, typ.Line(), fmt.Sprintf("undeclared type %q", typeName))
		}
		return e.evalDeclaredType(decl, name, typeName)
	default:
		return nil, langerr.At(langerr.KindEvaluation, typ.Line(), "unsupported type reference")
	}
}

func (e *Evaluator) evalDeclaredType(decl ast.Node, name, typeName string) (*pattern.Pattern, error) {
	switch d := decl.(type) {
	case *ast.StructDecl:
		return e.evalStruct(d, name)
	case *ast.UnionDecl:
		return e.evalUnion(d, name)
	case *ast.EnumDecl:
		return e.evalEnum(d, name)
	case *ast.BitfieldDecl:
		return e.evalBitfield(d, name)
	case *ast.TypeDecl:
		p, err := e.evalType(d.Body, name)
		if p != nil {
			p.TypeName = typeName
		}
		return p, err
	default:
		return nil, langerr.New(langerr.KindEvaluation, fmt.Sprintf("%q does not name a type", typeName))
	}
}

// evalBuiltIn reads one fixed-width or variable-width primitive at the
// current cursor, per spec.md §4.5's "Reading primitives" steps.
func (e *Evaluator) evalBuiltIn(t *ast.BuiltInTypeNode, name string) (*pattern.Pattern, error) {
	bt := t.Type
	end := e.currentEndian()
	switch bt.Tag {
	case token.TagString:
		return e.readCString(name)
	default:
	}
	if t.Endian != ast.EndianDefault {
		pushed := e.pushEndian(t.Endian)
		if pushed {
			end = e.currentEndian()
			defer e.popEndian()
		}
	}

	offset := e.cursor
	size := bt.Size
	buf := make([]byte, size)
	n, err := e.prov.Read(offset, buf)
	if err != nil || n < size {
		return nil, langerr.At(langerr.KindOutOfRange, 0, fmt.Sprintf("out-of-range read at offset %d (%d bytes)", offset, size))
	}
	e.cursor += uint64(size)

	p := &pattern.Pattern{Offset: offset, Size: uint64(size), Endian: end, Name: name, TypeName: bt.String()}
	raw := byteorder.ToUint64(buf, end == pattern.EndianBig)

	switch bt.Tag {
	case token.TagUnsigned:
		p.Kind = pattern.KindUnsigned
		p.UintValue = raw
	case token.TagSigned:
		p.Kind = pattern.KindSigned
		p.IntValue = signExtend(raw, size)
	case token.TagFloating:
		p.Kind = pattern.KindFloat
		if size == 4 {
			p.FloatVal = float64(asFloat32(uint32(raw)))
		} else {
			p.FloatVal = asFloat64(raw)
		}
	case token.TagBoolean:
		p.Kind = pattern.KindBool
		p.BoolVal = raw != 0
	case token.TagCharacter:
		p.Kind = pattern.KindChar
		p.CharVal = byte(raw)
	case token.TagChar16:
		p.Kind = pattern.KindChar16
		p.Char16Val = uint16(raw)
	case token.TagPadding:
		p.Kind = pattern.KindPadding
	default:
		p.Kind = pattern.KindUnsigned
		p.UintValue = raw
	}
	return p, nil
}

// readCString reads a NUL-terminated byte string starting at the cursor;
// str has no fixed size (token.BuiltinTypes["str"].Size == 0).
func (e *Evaluator) readCString(name string) (*pattern.Pattern, error) {
	offset := e.cursor
	var out []byte
	buf := make([]byte, 1)
	for {
		n, err := e.prov.Read(offset+uint64(len(out)), buf)
		if err != nil || n == 0 {
			return nil, langerr.At(langerr.KindOutOfRange, 0, "out-of-range read scanning string")
		}
		if buf[0] == 0 {
			break
		}
		out = append(out, buf[0])
		if len(out) > 1<<20 {
			return nil, langerr.New(langerr.KindEvaluation, "string exceeds maximum length")
		}
	}
	e.cursor = offset + uint64(len(out)) + 1
	return &pattern.Pattern{
		Kind: pattern.KindString, Offset: offset, Size: uint64(len(out)) + 1,
		Name: name, TypeName: "str", StrVal: string(out),
	}, nil
}

func signExtend(raw uint64, size int) int64 {
	bits := uint(size * 8)
	if bits >= 64 {
		return int64(raw)
	}
	signBit := uint64(1) << (bits - 1)
	if raw&signBit != 0 {
		return int64(raw | (^uint64(0) << bits))
	}
	return int64(raw)
}

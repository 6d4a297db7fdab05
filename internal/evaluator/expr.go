package evaluator

import (
	"fmt"
	"math"
	"math/big"

	"github.com/patterncore/patternlang/internal/ast"
	"github.com/patterncore/patternlang/internal/langerr"
	"github.com/patterncore/patternlang/internal/pattern"
	"github.com/patterncore/patternlang/internal/token"
)

func pow(base, exp float64) float64 { return math.Pow(base, exp) }

// evalExpr evaluates one expression node to a runtime value, per spec.md
// §4.5 "Expressions".
func (e *Evaluator) evalExpr(n ast.Node) (value, error) {
	switch d := n.(type) {
	case *ast.Literal:
		return e.evalLiteral(d)
	case *ast.Path:
		return e.evalPath(d)
	case *ast.Ternary:
		cond, err := e.evalExpr(d.Cond)
		if err != nil {
			return value{}, err
		}
		if cond.asBool() {
			return e.evalExpr(d.Then)
		}
		return e.evalExpr(d.Else)
	case *ast.Binary:
		return e.evalBinary(d)
	case *ast.Unary:
		return e.evalUnary(d)
	case *ast.FunctionCall:
		return e.evalCall(d)
	case *ast.TypeOperator:
		return e.evalTypeOperator(d)
	default:
		return value{}, langerr.At(langerr.KindEvaluation, n.Line(), fmt.Sprintf("cannot evaluate %T as an expression", n))
	}
}

func (e *Evaluator) evalLiteral(l *ast.Literal) (value, error) {
	switch l.Kind {
	case token.KindInteger:
		width := l.Int.Width * 8
		if width == 0 {
			width = 32
		}
		return uintVal(l.Int.Uint64(), width).normalized(), nil
	case token.KindFloat:
		return floatVal(l.Float), nil
	case token.KindString:
		return stringVal(l.Str), nil
	case token.KindChar:
		return uintVal(l.Int.Uint64(), l.Int.Width*8), nil
	case token.KindKeyword:
		return boolVal(l.Bool), nil
	default:
		return value{}, langerr.At(langerr.KindEvaluation, l.Line(), "malformed literal")
	}
}

func (e *Evaluator) evalUnary(u *ast.Unary) (value, error) {
	v, err := e.evalExpr(u.Operand)
	if err != nil {
		return value{}, err
	}
	switch u.Op {
	case "!":
		return boolVal(!v.asBool()), nil
	case "~":
		width := v.width
		if width == 0 {
			width = 64
		}
		return intValue(mask(new(big.Int).Not(v.asBig()), width), v.signed, width).normalized(), nil
	case "-":
		if v.kind == vFloat {
			return floatVal(-v.f), nil
		}
		width := v.width
		if width == 0 {
			width = 64
		}
		return intValue(mask(new(big.Int).Neg(v.asBig()), width), true, width).normalized(), nil
	case "+":
		return v, nil
	default:
		return value{}, langerr.At(langerr.KindEvaluation, u.Line(), "unsupported unary operator "+u.Op)
	}
}

func (e *Evaluator) evalBinary(b *ast.Binary) (value, error) {
	switch b.Op {
	case "&&":
		l, err := e.evalExpr(b.Left)
		if err != nil {
			return value{}, err
		}
		if !l.asBool() {
			return boolVal(false), nil
		}
		r, err := e.evalExpr(b.Right)
		if err != nil {
			return value{}, err
		}
		return boolVal(r.asBool()), nil
	case "||":
		l, err := e.evalExpr(b.Left)
		if err != nil {
			return value{}, err
		}
		if l.asBool() {
			return boolVal(true), nil
		}
		r, err := e.evalExpr(b.Right)
		if err != nil {
			return value{}, err
		}
		return boolVal(r.asBool()), nil
	case "^^":
		l, err := e.evalExpr(b.Left)
		if err != nil {
			return value{}, err
		}
		r, err := e.evalExpr(b.Right)
		if err != nil {
			return value{}, err
		}
		return boolVal(l.asBool() != r.asBool()), nil
	}

	l, err := e.evalExpr(b.Left)
	if err != nil {
		return value{}, err
	}
	r, err := e.evalExpr(b.Right)
	if err != nil {
		return value{}, err
	}

	switch b.Op {
	case "==":
		return boolVal(compare(l, r) == 0), nil
	case "!=":
		return boolVal(compare(l, r) != 0), nil
	case "<":
		return boolVal(compare(l, r) < 0), nil
	case "<=":
		return boolVal(compare(l, r) <= 0), nil
	case ">":
		return boolVal(compare(l, r) > 0), nil
	case ">=":
		return boolVal(compare(l, r) >= 0), nil
	}

	if (l.kind == vFloat || r.kind == vFloat) && (b.Op == "+" || b.Op == "-" || b.Op == "*" || b.Op == "/") {
		lf, rf := l.asFloat(), r.asFloat()
		switch b.Op {
		case "+":
			return floatVal(lf + rf), nil
		case "-":
			return floatVal(lf - rf), nil
		case "*":
			return floatVal(lf * rf), nil
		case "/":
			if rf == 0 {
				return value{}, langerr.At(langerr.KindEvaluation, b.Line(), "division by zero")
			}
			return floatVal(lf / rf), nil
		}
	}

	if b.Op == "**" {
		return evalPow(l, r, b.Line())
	}

	return binaryIntOp(b.Op, l, r, b.Line())
}

func evalPow(base, exp value, line int) (value, error) {
	if base.kind == vFloat || exp.kind == vFloat {
		return floatVal(pow(base.asFloat(), exp.asFloat())), nil
	}
	n := exp.asBig().Int64()
	if n < 0 {
		return floatVal(pow(base.asFloat(), float64(n))), nil
	}
	width := base.width
	if width == 0 {
		width = 64
	}
	acc := uintVal(1, width)
	for i := int64(0); i < n; i++ {
		v, err := binaryIntOp("*", acc, base, line)
		if err != nil {
			return value{}, err
		}
		acc = v
	}
	return acc, nil
}

func (e *Evaluator) evalTypeOperator(t *ast.TypeOperator) (value, error) {
	switch t.Kind {
	case ast.OpSizeof:
		size, err := e.sizeOf(t.Operand)
		if err != nil {
			return value{}, err
		}
		return uintVal(size, 64), nil
	case ast.OpAddressof:
		addr, err := e.addressOf(t.Operand)
		if err != nil {
			return value{}, err
		}
		return uintVal(addr, 64), nil
	default:
		return value{}, langerr.At(langerr.KindEvaluation, t.Line(), "unsupported type operator")
	}
}

// sizeOf resolves either a type reference (built-in or declared) or a
// value-producing expression to its byte size, per spec.md §4.5 "sizeof X
// returns the byte size of the type or pattern X".
func (e *Evaluator) sizeOf(n ast.Node) (uint64, error) {
	switch t := n.(type) {
	case *ast.BuiltInTypeNode:
		return uint64(t.Type.Size), nil
	case *ast.Path:
		if len(t.Segments) == 1 {
			if decl, ok := e.typeDecls[t.Segments[0].Name]; ok {
				return e.sizeOfDecl(decl)
			}
		}
		p, err := e.patternAtPath(t)
		if err != nil {
			return 0, err
		}
		return p.Size, nil
	default:
		v, err := e.evalExpr(n)
		if err != nil {
			return 0, err
		}
		return uint64(v.asBig().Int64()), nil
	}
}

func (e *Evaluator) sizeOfDecl(decl ast.Node) (uint64, error) {
	saved := e.cursor
	defer func() { e.cursor = saved }()
	e.cursor = 0
	p, err := e.evalDeclaredType(decl, "sizeof", "sizeof")
	if err != nil {
		return 0, err
	}
	return p.Size, nil
}

// addressOf returns a resolved path's absolute offset.
func (e *Evaluator) addressOf(n ast.Node) (uint64, error) {
	path, ok := n.(*ast.Path)
	if !ok {
		v, err := e.evalExpr(n)
		if err != nil {
			return 0, err
		}
		return v.asBig().Uint64(), nil
	}
	p, err := e.patternAtPath(path)
	if err != nil {
		return 0, err
	}
	return p.Offset, nil
}

func (e *Evaluator) evalCall(c *ast.FunctionCall) (value, error) {
	args := make([]value, len(c.Args))
	for i, a := range c.Args {
		v, err := e.evalExpr(a)
		if err != nil {
			return value{}, err
		}
		args[i] = v
	}

	if fn, ok := e.functions[c.Name]; ok {
		return e.callUserFunctionVal(fn, args, c.Line())
	}
	if b, ok := e.builtins[c.Name]; ok {
		if !b.arity.accepts(len(args)) {
			return value{}, langerr.At(langerr.KindEvaluation, c.Line(), fmt.Sprintf("wrong argument count calling %q", c.Name))
		}
		lits := make([]Literal, len(args))
		for i, a := range args {
			lits[i] = fromValue(a)
		}
		out, err := b.fn(e, lits)
		if err != nil {
			return value{}, err
		}
		return out.toValue(), nil
	}
	return value{}, langerr.At(langerr.KindEvaluation, c.Line(), fmt.Sprintf("call to undeclared function %q", c.Name))
}

func (e *Evaluator) callUserFunctionVal(fn *ast.FunctionDef, args []value, line int) (value, error) {
	v, err := e.callUserFunction(fn, args, line)
	return v, err
}

// callUserFunction binds positional parameters in a fresh frame, executes
// the body, and returns its flowValue, enforcing the recursion limit per
// spec.md §4.5 "Functions". A trailing `...` pack occupies the last entry of
// Params; arguments beyond the fixed parameters are not bound to any name.
func (e *Evaluator) callUserFunction(fn *ast.FunctionDef, args []value, line int) (value, error) {
	e.recursionDepth++
	defer func() { e.recursionDepth-- }()
	if e.recursionDepth > e.recursionLimit {
		return value{}, langerr.At(langerr.KindRecursion, line, "recursion limit exceeded")
	}

	e.pushFrame(nil)
	defer e.popFrame()

	fixed := len(fn.Params)
	if fn.Variadic && fixed > 0 {
		fixed--
	}
	for i := 0; i < fixed && i < len(args); i++ {
		e.setVar(fn.Params[i], args[i])
	}
	if fn.Variadic {
		packName := fn.Params[len(fn.Params)-1]
		_ = packName // the pack's arguments are not bound; the body cannot read them.
	}

	savedFlow, savedVal := e.flow, e.flowValue
	e.flow, e.flowValue = flowNone, value{}
	for _, stmt := range fn.Body.Statements {
		if err := e.execStmt(stmt); err != nil {
			e.flow, e.flowValue = savedFlow, savedVal
			return value{}, err
		}
		if e.flow != flowNone {
			break
		}
	}
	result := e.flowValue
	if e.flow != flowReturn {
		result = voidValue()
	}
	e.flow, e.flowValue = savedFlow, savedVal
	return result, nil
}

// evalPath resolves a dotted/indexed identifier chain to a value, per
// spec.md §3's Path semantics: `this`/`parent` anchor to the composite
// pattern stack, plain names resolve first against the live pattern tree,
// then, if that fails, as local variables.
func (e *Evaluator) evalPath(p *ast.Path) (value, error) {
	resolved, err := e.patternAtPath(p)
	if err == nil {
		return patternToValue(resolved), nil
	}
	// Fall back to a plain local-variable lookup (covers function
	// parameters and loop-local scalars that never produced a Pattern).
	if len(p.Segments) == 1 && !p.Segments[0].Parent && !p.Segments[0].ThisRef {
		if v, ok := e.lookupVar(p.Segments[0].Name); ok {
			return v, nil
		}
	}
	return value{}, err
}

// patternAtPath walks a Path against the live pattern tree (current
// composite/parent/children), used by evalPath, sizeof, and addressof.
func (e *Evaluator) patternAtPath(p *ast.Path) (*pattern.Pattern, error) {
	if len(p.Segments) == 0 {
		return nil, langerr.At(langerr.KindEvaluation, p.Line(), "empty path")
	}

	seg0 := p.Segments[0]
	var cur *pattern.Pattern
	rest := p.Segments[1:]

	switch {
	case seg0.Parent:
		cur = e.parentComposite()
		if cur == nil {
			return nil, langerr.At(langerr.KindEvaluation, p.Line(), "`parent` used outside a nested scope")
		}
	case seg0.ThisRef:
		cur = e.currentComposite()
		if cur == nil {
			return nil, langerr.At(langerr.KindEvaluation, p.Line(), "`this` used outside a composite")
		}
	default:
		found, err := e.findFieldByName(seg0.Name)
		if err != nil {
			return nil, err
		}
		cur = found
		if seg0.Index != nil {
			idx, err := e.evalExpr(seg0.Index)
			if err != nil {
				return nil, err
			}
			cur, err = indexPattern(cur, int(idx.asBig().Int64()), p.Line())
			if err != nil {
				return nil, err
			}
		}
	}

	for _, seg := range rest {
		child, err := findChildByName(cur, seg.Name)
		if err != nil {
			return nil, langerr.At(langerr.KindEvaluation, p.Line(), fmt.Sprintf("no member %q", seg.Name))
		}
		cur = child
		if seg.Index != nil {
			idx, err := e.evalExpr(seg.Index)
			if err != nil {
				return nil, err
			}
			cur, err = indexPattern(cur, int(idx.asBig().Int64()), p.Line())
			if err != nil {
				return nil, err
			}
		}
	}
	return cur, nil
}

// findFieldByName searches the composite stack innermost-first for a
// child pattern with the given name.
func (e *Evaluator) findFieldByName(name string) (*pattern.Pattern, error) {
	for i := len(e.frames) - 1; i >= 0; i-- {
		pat := e.frames[i].pat
		if pat == nil {
			continue
		}
		if child, err := findChildByName(pat, name); err == nil {
			return child, nil
		}
	}
	return nil, langerr.New(langerr.KindEvaluation, fmt.Sprintf("no field %q in scope", name))
}

func findChildByName(p *pattern.Pattern, name string) (*pattern.Pattern, error) {
	if p == nil {
		return nil, langerr.New(langerr.KindEvaluation, "nil pattern")
	}
	for _, c := range p.Children {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, langerr.New(langerr.KindEvaluation, fmt.Sprintf("no member %q", name))
}

func indexPattern(p *pattern.Pattern, idx int, line int) (*pattern.Pattern, error) {
	if idx < 0 || idx >= len(p.Children) {
		return nil, langerr.At(langerr.KindEvaluation, line, "array index out of range")
	}
	return p.Children[idx], nil
}

// Package ast defines the syntax tree produced by the parser and walked by
// the validator and evaluator, per spec.md §4.3/§4.4.
package ast

import "github.com/patterncore/patternlang/internal/token"

// Node is implemented by every AST node. Accept dispatches to the matching
// Visitor method, following the visitor convention used throughout the
// reference parser packages in this codebase's lineage.
type Node interface {
	Line() int
	Accept(v Visitor) error
	Clone() Node
}

// Visitor receives one callback per concrete node kind.
type Visitor interface {
	VisitLiteral(*Literal) error
	VisitPath(*Path) error
	VisitTypeDecl(*TypeDecl) error
	VisitBuiltInType(*BuiltInTypeNode) error
	VisitStruct(*StructDecl) error
	VisitUnion(*UnionDecl) error
	VisitEnum(*EnumDecl) error
	VisitBitfield(*BitfieldDecl) error
	VisitVariableDecl(*VariableDecl) error
	VisitArrayDecl(*ArrayDecl) error
	VisitPointerDecl(*PointerDecl) error
	VisitMultiVariableDecl(*MultiVariableDecl) error
	VisitScope(*Scope) error
	VisitConditional(*Conditional) error
	VisitTernary(*Ternary) error
	VisitBinary(*Binary) error
	VisitUnary(*Unary) error
	VisitControlFlow(*ControlFlow) error
	VisitFunctionDef(*FunctionDef) error
	VisitFunctionCall(*FunctionCall) error
	VisitAttribute(*Attribute) error
	VisitTypeOperator(*TypeOperator) error
	VisitWhile(*While) error
}

type base struct {
	line int
}

func (b base) Line() int { return b.line }

// SetLine records the source line a node was parsed from. The parser calls
// this after constructing a node via a struct literal (rather than through
// a New* helper) to keep line tracking uniform across every node kind.
func (b *base) SetLine(line int) { b.line = line }

// Literal is an integer, float, string, char, or boolean constant.
type Literal struct {
	base
	Kind  token.Kind
	Int   token.IntValue
	Float float64
	Str   string
	Bool  bool
}

func (n *Literal) Accept(v Visitor) error { return v.VisitLiteral(n) }
func (n *Literal) Clone() Node            { c := *n; return &c }

// NewLiteral constructs a Literal node at the given source line.
func NewLiteral(line int) *Literal { return &Literal{base: base{line}} }

// Path is an r-value reference: a dotted/indexed chain of identifiers,
// e.g. `this.header.magic` or `arr[3].field`.
type Path struct {
	base
	Segments []PathSegment
}

// PathSegment is one element of a Path: a field name, optional array
// index expression, or the special `parent`/`this` markers.
type PathSegment struct {
	Name    string
	Index   Node // nil unless this segment is an array subscript
	Parent  bool
	ThisRef bool
}

func (n *Path) Accept(v Visitor) error { return v.VisitPath(n) }
func (n *Path) Clone() Node {
	c := *n
	c.Segments = append([]PathSegment(nil), n.Segments...)
	return &c
}

func NewPath(line int) *Path { return &Path{base: base{line}} }

// TypeDecl is a `using Name = Type;` type alias declaration.
type TypeDecl struct {
	base
	Name     string
	Template []string
	Body     Node
}

func (n *TypeDecl) Accept(v Visitor) error { return v.VisitTypeDecl(n) }
func (n *TypeDecl) Clone() Node {
	c := *n
	c.Template = append([]string(nil), n.Template...)
	c.Body = cloneOrNil(n.Body)
	return &c
}

// BuiltInTypeNode references one of the fixed built-in types.
type BuiltInTypeNode struct {
	base
	Type     token.BuiltInType
	Endian   Endian
}

// Endian is an explicit le/be prefix, or EndianDefault to inherit the
// ambient evaluator endian setting.
type Endian int

const (
	EndianDefault Endian = iota
	EndianLittle
	EndianBig
)

func (n *BuiltInTypeNode) Accept(v Visitor) error { return v.VisitBuiltInType(n) }
func (n *BuiltInTypeNode) Clone() Node             { c := *n; return &c }

// StructDecl declares a struct type: an ordered sequence of member
// declarations, each contributing sequential bytes to the enclosing layout.
type StructDecl struct {
	base
	Name       string
	Template   []string
	Inherits   []string
	Members    []Node
	Attributes []*Attribute
}

func (n *StructDecl) Accept(v Visitor) error { return v.VisitStruct(n) }
func (n *StructDecl) Clone() Node {
	c := *n
	c.Template = append([]string(nil), n.Template...)
	c.Inherits = append([]string(nil), n.Inherits...)
	c.Members = cloneSlice(n.Members)
	c.Attributes = cloneAttrs(n.Attributes)
	return &c
}

// UnionDecl declares a union type: every member starts at the same offset,
// and the union's size is the maximum member size.
type UnionDecl struct {
	base
	Name       string
	Template   []string
	Members    []Node
	Attributes []*Attribute
}

func (n *UnionDecl) Accept(v Visitor) error { return v.VisitUnion(n) }
func (n *UnionDecl) Clone() Node {
	c := *n
	c.Template = append([]string(nil), n.Template...)
	c.Members = cloneSlice(n.Members)
	c.Attributes = cloneAttrs(n.Attributes)
	return &c
}

// EnumDecl declares a named enumeration over an underlying built-in type.
type EnumDecl struct {
	base
	Name      string
	Underlying *BuiltInTypeNode
	Entries   []EnumEntry
}

// EnumEntry is a single `Name = Value` (or auto-incremented) enum member.
type EnumEntry struct {
	Name  string
	Value Node // nil means "previous value + 1" (or 0 for the first entry)
}

func (n *EnumDecl) Accept(v Visitor) error { return v.VisitEnum(n) }
func (n *EnumDecl) Clone() Node {
	c := *n
	if n.Underlying != nil {
		u := *n.Underlying
		c.Underlying = &u
	}
	c.Entries = append([]EnumEntry(nil), n.Entries...)
	for i := range c.Entries {
		if c.Entries[i].Value != nil {
			c.Entries[i].Value = c.Entries[i].Value.Clone()
		}
	}
	return &c
}

// BitfieldDecl declares a bitfield type: a sequence of named fields each
// consuming a fixed bit width from a shared byte span.
type BitfieldDecl struct {
	base
	Name       string
	Fields     []BitfieldField
	Attributes []*Attribute
}

// BitfieldField is a single named bit-width field within a BitfieldDecl.
type BitfieldField struct {
	Name    string
	BitSize Node
	Padding bool // true for anonymous `padding : n` spacer fields
}

func (n *BitfieldDecl) Accept(v Visitor) error { return v.VisitBitfield(n) }
func (n *BitfieldDecl) Clone() Node {
	c := *n
	c.Fields = append([]BitfieldField(nil), n.Fields...)
	for i := range c.Fields {
		if c.Fields[i].BitSize != nil {
			c.Fields[i].BitSize = c.Fields[i].BitSize.Clone()
		}
	}
	c.Attributes = cloneAttrs(n.Attributes)
	return &c
}

// Placement describes how a VariableDecl's cursor is positioned.
type Placement int

const (
	// PlacementSequential advances the enclosing cursor by the declared type's size.
	PlacementSequential Placement = iota
	// PlacementAt evaluates an address expression and reads from there; the
	// enclosing cursor is restored afterwards only inside a non-global scope.
	PlacementAt
	// PlacementIn marks an `in` parameter: supplied by the caller, never read from data.
	PlacementIn
	// PlacementOut marks an `out` parameter: written back to the caller's scope.
	PlacementOut
)

// VariableDecl declares one typed field, optionally placed at an explicit
// address (`Type name @ addr;`) rather than sequentially.
type VariableDecl struct {
	base
	Name       string
	Type       Node
	Placement  Placement
	At         Node // non-nil when Placement == PlacementAt
	Attributes []*Attribute
}

func (n *VariableDecl) Accept(v Visitor) error { return v.VisitVariableDecl(n) }
func (n *VariableDecl) Clone() Node {
	c := *n
	c.Type = cloneOrNil(n.Type)
	c.At = cloneOrNil(n.At)
	c.Attributes = cloneAttrs(n.Attributes)
	return &c
}

// ArrayDecl declares an array field: static (`Type name[N]`) when Count is
// non-nil, dynamic (`Type name[while(cond)]`) when WhileCond is non-nil, and
// auto-sized (`Type name[]`, read until an element read goes out of range)
// when both are nil.
type ArrayDecl struct {
	base
	Name       string
	ElemType   Node
	Count      Node // nil for a while-bounded or auto-sized array
	WhileCond  Node // non-nil for a dynamic array bounded by a condition
	Placement  Placement
	At         Node
	Attributes []*Attribute
}

func (n *ArrayDecl) Accept(v Visitor) error { return v.VisitArrayDecl(n) }
func (n *ArrayDecl) Clone() Node {
	c := *n
	c.ElemType = cloneOrNil(n.ElemType)
	c.Count = cloneOrNil(n.Count)
	c.WhileCond = cloneOrNil(n.WhileCond)
	c.At = cloneOrNil(n.At)
	c.Attributes = cloneAttrs(n.Attributes)
	return &c
}

// PointerDecl declares a pointer field: a sized integer read at the
// cursor, reinterpreted as an address into PointeeType.
type PointerDecl struct {
	base
	Name        string
	SizeType    *BuiltInTypeNode
	PointeeType Node
	Relative    bool // true when the pointer value is relative to its own location
	Attributes  []*Attribute
}

func (n *PointerDecl) Accept(v Visitor) error { return v.VisitPointerDecl(n) }
func (n *PointerDecl) Clone() Node {
	c := *n
	if n.SizeType != nil {
		s := *n.SizeType
		c.SizeType = &s
	}
	c.PointeeType = cloneOrNil(n.PointeeType)
	c.Attributes = cloneAttrs(n.Attributes)
	return &c
}

// MultiVariableDecl declares several names sharing one type in a single
// statement, e.g. `u32 a, b, c;`.
type MultiVariableDecl struct {
	base
	Names []string
	Type  Node
}

func (n *MultiVariableDecl) Accept(v Visitor) error { return v.VisitMultiVariableDecl(n) }
func (n *MultiVariableDecl) Clone() Node {
	c := *n
	c.Names = append([]string(nil), n.Names...)
	c.Type = cloneOrNil(n.Type)
	return &c
}

// Scope is a brace-delimited compound statement: an ordered list of
// statements sharing one lexical scope.
type Scope struct {
	base
	Statements []Node
}

func (n *Scope) Accept(v Visitor) error { return v.VisitScope(n) }
func (n *Scope) Clone() Node {
	c := *n
	c.Statements = cloneSlice(n.Statements)
	return &c
}

// Conditional is an `if (cond) then [else else_]` statement.
type Conditional struct {
	base
	Cond Node
	Then Node
	Else Node // nil if there is no else-branch
}

func (n *Conditional) Accept(v Visitor) error { return v.VisitConditional(n) }
func (n *Conditional) Clone() Node {
	c := *n
	c.Cond = cloneOrNil(n.Cond)
	c.Then = cloneOrNil(n.Then)
	c.Else = cloneOrNil(n.Else)
	return &c
}

// While is a `while (cond) body` loop, used both as a statement and as an
// array-bound expression context.
type While struct {
	base
	Cond Node
	Body Node
}

func (n *While) Accept(v Visitor) error { return v.VisitWhile(n) }
func (n *While) Clone() Node {
	c := *n
	c.Cond = cloneOrNil(n.Cond)
	c.Body = cloneOrNil(n.Body)
	return &c
}

// Ternary is `cond ? then : else_`.
type Ternary struct {
	base
	Cond, Then, Else Node
}

func (n *Ternary) Accept(v Visitor) error { return v.VisitTernary(n) }
func (n *Ternary) Clone() Node {
	c := *n
	c.Cond = cloneOrNil(n.Cond)
	c.Then = cloneOrNil(n.Then)
	c.Else = cloneOrNil(n.Else)
	return &c
}

// Binary is a two-operand arithmetic, comparison, logical, or bitwise
// expression.
type Binary struct {
	base
	Op          string
	Left, Right Node
}

func (n *Binary) Accept(v Visitor) error { return v.VisitBinary(n) }
func (n *Binary) Clone() Node {
	c := *n
	c.Left = cloneOrNil(n.Left)
	c.Right = cloneOrNil(n.Right)
	return &c
}

// Unary is a single-operand prefix expression: -x, !x, ~x, *x.
type Unary struct {
	base
	Op      string
	Operand Node
}

func (n *Unary) Accept(v Visitor) error { return v.VisitUnary(n) }
func (n *Unary) Clone() Node {
	c := *n
	c.Operand = cloneOrNil(n.Operand)
	return &c
}

// ControlFlowKind distinguishes break/continue/return statements.
type ControlFlowKind int

const (
	ControlBreak ControlFlowKind = iota
	ControlContinue
	ControlReturn
)

// ControlFlow is a break, continue, or return statement; Value is non-nil
// only for `return expr;`.
type ControlFlow struct {
	base
	Kind  ControlFlowKind
	Value Node
}

func (n *ControlFlow) Accept(v Visitor) error { return v.VisitControlFlow(n) }
func (n *ControlFlow) Clone() Node {
	c := *n
	c.Value = cloneOrNil(n.Value)
	return &c
}

// FunctionDef declares a user function: named parameters, an optional
// variadic pack, and a body scope.
type FunctionDef struct {
	base
	Name       string
	Params     []string
	Variadic   bool
	ReturnType Node // nil when the function has no declared return type
	Body       *Scope
}

func (n *FunctionDef) Accept(v Visitor) error { return v.VisitFunctionDef(n) }
func (n *FunctionDef) Clone() Node {
	c := *n
	c.Params = append([]string(nil), n.Params...)
	c.ReturnType = cloneOrNil(n.ReturnType)
	if n.Body != nil {
		c.Body = n.Body.Clone().(*Scope)
	}
	return &c
}

// FunctionCall invokes either a user-defined function or a registered
// builtin by name.
type FunctionCall struct {
	base
	Name string
	Args []Node
}

func (n *FunctionCall) Accept(v Visitor) error { return v.VisitFunctionCall(n) }
func (n *FunctionCall) Clone() Node {
	c := *n
	c.Args = cloneSlice(n.Args)
	return &c
}

// Attribute is a `[[name(args...)]]` decoration attached to a declaration.
type Attribute struct {
	base
	Name string
	Args []Node
}

func (n *Attribute) Accept(v Visitor) error { return v.VisitAttribute(n) }
func (n *Attribute) Clone() Node {
	c := *n
	c.Args = cloneSlice(n.Args)
	return &c
}

// TypeOperatorKind distinguishes sizeof/addressof expressions.
type TypeOperatorKind int

const (
	OpSizeof TypeOperatorKind = iota
	OpAddressof
)

// TypeOperator is a `sizeof(expr)` or `addressof(expr)` expression.
type TypeOperator struct {
	base
	Kind    TypeOperatorKind
	Operand Node
}

func (n *TypeOperator) Accept(v Visitor) error { return v.VisitTypeOperator(n) }
func (n *TypeOperator) Clone() Node {
	c := *n
	c.Operand = cloneOrNil(n.Operand)
	return &c
}

func cloneOrNil(n Node) Node {
	if n == nil {
		return nil
	}
	return n.Clone()
}

func cloneSlice(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = cloneOrNil(n)
	}
	return out
}

func cloneAttrs(attrs []*Attribute) []*Attribute {
	if attrs == nil {
		return nil
	}
	out := make([]*Attribute, len(attrs))
	for i, a := range attrs {
		out[i] = a.Clone().(*Attribute)
	}
	return out
}

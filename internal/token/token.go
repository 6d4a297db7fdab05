// Package token defines the lexical tokens produced by the lexer and
// consumed by the parser, plus the built-in type tag encoding shared by the
// lexer, parser, and evaluator.
package token

import "fmt"

// Kind identifies the syntactic category of a Token.
type Kind int

const (
	KindEOF Kind = iota
	KindKeyword
	KindIdent
	KindInteger
	KindFloat
	KindString
	KindChar
	KindOperator
	KindSeparator
	KindBuiltInType
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "EOF"
	case KindKeyword:
		return "keyword"
	case KindIdent:
		return "identifier"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindChar:
		return "char"
	case KindOperator:
		return "operator"
	case KindSeparator:
		return "separator"
	case KindBuiltInType:
		return "builtin-type"
	default:
		return "unknown"
	}
}

// IntValue carries a 128-bit unsigned integer literal value split into high
// and low 64-bit halves (the lexer never sees values larger than 128 bits;
// overflow beyond that is a lex error), along with the literal's declared
// width in bytes (0 means "unsized", inferred later from context).
type IntValue struct {
	Hi, Lo uint64
	Width  int
}

// Uint64 reports the value truncated to 64 bits, which is sufficient for
// every literal actually produced by the grammar in §4.2 (bases 2/8/10/16
// with optional u/U suffix); Hi is retained for overflow detection only.
func (v IntValue) Uint64() uint64 { return v.Lo }

// Token is a single lexical unit. Every token carries the 1-based source
// line it was found on, for diagnostics threaded through every later stage.
type Token struct {
	Kind  Kind
	Line  int
	Text  string // verbatim or normalized spelling, used for idents/keywords/operators/separators
	Int   IntValue
	Float float64
	Str   string // decoded string/char literal payload
	Wide  bool   // true for two-byte character literals (char16)
	Type  BuiltInType
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d", t.Kind, t.Text, t.Line)
}

// TypeCode encodes a built-in type's kind in its low nibble and its size in
// bytes in the high byte, matching §3's "Built-in type tag" description.
type TypeCode uint16

const (
	TagUnsigned TypeCode = iota
	TagSigned
	TagFloating
	TagBoolean
	TagCharacter
	TagChar16
	TagPadding
	TagString
	TagAuto
)

// BuiltInType is a decoded built-in type tag: a kind and a byte size.
type BuiltInType struct {
	Tag  TypeCode
	Size int
}

// Code packs Tag into the low nibble and Size into the high byte of a
// TypeCode, as the data model in spec.md §3 prescribes.
func (b BuiltInType) Code() uint16 {
	return uint16(b.Tag&0xF) | (uint16(b.Size&0xFF) << 8)
}

func (b BuiltInType) String() string {
	switch b.Tag {
	case TagUnsigned:
		return fmt.Sprintf("u%d", b.Size*8)
	case TagSigned:
		return fmt.Sprintf("s%d", b.Size*8)
	case TagFloating:
		if b.Size == 4 {
			return "float"
		}
		return "double"
	case TagBoolean:
		return "bool"
	case TagCharacter:
		return "char"
	case TagChar16:
		return "char16"
	case TagPadding:
		return "padding"
	case TagString:
		return "string"
	case TagAuto:
		return "auto"
	default:
		return "?"
	}
}

// Builtin type table referenced by both lexer (keyword recognition) and
// parser (type resolution). Sizes for signed/unsigned/float match the
// fixed-width keywords; bool/char/char16/padding/string/auto are fixed.
var BuiltinTypes = map[string]BuiltInType{
	"u8":      {TagUnsigned, 1},
	"u16":     {TagUnsigned, 2},
	"u24":     {TagUnsigned, 3},
	"u32":     {TagUnsigned, 4},
	"u48":     {TagUnsigned, 6},
	"u64":     {TagUnsigned, 8},
	"u96":     {TagUnsigned, 12},
	"u128":    {TagUnsigned, 16},
	"s8":      {TagSigned, 1},
	"s16":     {TagSigned, 2},
	"s24":     {TagSigned, 3},
	"s32":     {TagSigned, 4},
	"s48":     {TagSigned, 6},
	"s64":     {TagSigned, 8},
	"s96":     {TagSigned, 12},
	"s128":    {TagSigned, 16},
	"float":   {TagFloating, 4},
	"double":  {TagFloating, 8},
	"bool":    {TagBoolean, 1},
	"char":    {TagCharacter, 1},
	"char16":  {TagChar16, 2},
	"padding": {TagPadding, 1},
	"str":     {TagString, 0},
	"auto":    {TagAuto, 0},
}

// Keywords recognised by the lexer, per spec.md §4.2.
var Keywords = map[string]bool{
	"struct": true, "union": true, "enum": true, "bitfield": true,
	"using": true, "fn": true, "return": true, "break": true,
	"continue": true, "if": true, "else": true, "while": true,
	"for": true, "in": true, "out": true, "le": true, "be": true,
	"signed": true, "unsigned": true, "float": true, "double": true,
	"char": true, "char16": true, "bool": true, "padding": true,
	"auto": true, "sizeof": true, "addressof": true, "parent": true,
	"this": true, "true": true, "false": true,
}

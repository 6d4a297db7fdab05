// Package pattern defines the tree of typed, located, annotated patterns
// produced by a successful evaluation run, per spec.md §3 "Pattern".
package pattern

import "github.com/patterncore/patternlang/internal/token"

// Endian is the byte order a pattern's bytes were read with.
type Endian int

const (
	EndianLittle Endian = iota
	EndianBig
)

func (e Endian) String() string {
	if e == EndianBig {
		return "big"
	}
	return "little"
}

// Kind discriminates the variants of Pattern. A Pattern carries only the
// fields relevant to its Kind; composite kinds additionally populate
// Children.
type Kind int

const (
	KindUnsigned Kind = iota
	KindSigned
	KindFloat
	KindBool
	KindChar
	KindChar16
	KindString
	KindWString
	KindPadding
	KindEnum
	KindBitfield
	KindBitfieldField
	KindStruct
	KindUnion
	KindStaticArray
	KindDynamicArray
	KindPointer
)

func (k Kind) String() string {
	switch k {
	case KindUnsigned:
		return "unsigned"
	case KindSigned:
		return "signed"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindChar16:
		return "char16"
	case KindString:
		return "string"
	case KindWString:
		return "wstring"
	case KindPadding:
		return "padding"
	case KindEnum:
		return "enum"
	case KindBitfield:
		return "bitfield"
	case KindBitfieldField:
		return "bitfield_field"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindStaticArray:
		return "array"
	case KindDynamicArray:
		return "array"
	case KindPointer:
		return "pointer"
	default:
		return "unknown"
	}
}

// Pattern is the result of evaluating one AST node against a Provider. Every
// pattern records its location and display metadata; composite kinds
// additionally own their children, per spec.md §3's ownership invariant
// ("patterns are owned by their parent; the top-level list is owned by the
// runtime").
type Pattern struct {
	Kind     Kind
	Offset   uint64
	Size     uint64
	Endian   Endian
	Color    uint32
	Name     string
	TypeName string
	Comment  string

	// Scalar payloads. Only the field matching Kind is meaningful.
	UintValue uint64
	IntValue  int64
	FloatVal  float64
	BoolVal   bool
	CharVal   byte
	Char16Val uint16
	StrVal    string

	// Enum-specific: the underlying integer Kind (Unsigned/Signed) value and
	// the name it resolved to, plus the full value->name map for display.
	EnumValue int64
	EnumName  string
	EnumNames map[int64]string

	// Bitfield / bitfield-field specific.
	BitOffset int // field's bit offset within the host bitfield, 0-based from bit 0
	BitSize   int // field's width in bits

	// Pointer-specific.
	PointerBase      uint64
	PointedAtAddress uint64
	Pointee          *Pattern // nil only if the pointee type failed to resolve and evaluation was aborted first

	// PointerRaw is the pointer-relative integer value read from the
	// pointer's own storage bytes at evaluation time, i.e. PointedAtAddress
	// minus PointerBase as they stood when the pointer was evaluated. Cached
	// so Rebase can recompute PointedAtAddress without re-reading the
	// provider.
	PointerRaw uint64

	// Static array stride; 0 for dynamic arrays and non-arrays.
	Stride uint64

	// Composite children: struct members / union members / array entries /
	// bitfield fields, in construction order. Always nil for scalar kinds.
	Children []*Pattern

	// Context links the pattern back to the evaluator run that produced it,
	// used by visitors that need access to e.g. the originating Provider.
	Context interface{}
}

// Visitor receives one callback per Pattern Kind during a tree walk, used by
// host-side renderers/exporters. VisitComposite is called for
// struct/union/array/bitfield/pointer kinds in place of a per-kind method;
// the walker inspects Kind to decide how to recurse into Children.
type Visitor interface {
	VisitScalar(p *Pattern) error
	VisitComposite(p *Pattern) error
}

// Walk performs a pre-order traversal of p and its descendants, calling the
// matching Visitor method at each node and recursing into Children for
// composite kinds. A non-nil error from either method aborts the walk.
func Walk(p *Pattern, v Visitor) error {
	if p == nil {
		return nil
	}
	if isComposite(p.Kind) {
		if err := v.VisitComposite(p); err != nil {
			return err
		}
		for _, c := range p.Children {
			if err := Walk(c, v); err != nil {
				return err
			}
		}
		if p.Kind == KindPointer && p.Pointee != nil {
			return Walk(p.Pointee, v)
		}
		return nil
	}
	return v.VisitScalar(p)
}

// Rebase moves a pointer pattern onto a new base address, recomputing its
// PointedAtAddress and shifting its pointee subtree's offsets to match, per
// spec.md §8: "after rebase(base), P.pointee.offset = base +
// read_int(P.offset, P.size)". A no-op for non-pointer patterns or a pointer
// whose pointee failed to resolve.
func (p *Pattern) Rebase(base uint64) {
	if p.Kind != KindPointer {
		return
	}
	target := base + p.PointerRaw
	p.PointerBase = base
	p.PointedAtAddress = target
	if p.Pointee == nil {
		return
	}
	delta := int64(target) - int64(p.Pointee.Offset)
	shiftOffset(p.Pointee, delta)
}

// shiftOffset moves p and every descendant's Offset by delta, keeping a
// pointee subtree's internal layout consistent after a Rebase. Other
// pointers reachable through Children have their own storage location
// shifted the same way, but their own Pointee subtrees are left alone: what
// they point at is unrelated to where their host struct moved to.
func shiftOffset(p *Pattern, delta int64) {
	if p == nil || delta == 0 {
		return
	}
	p.Offset = uint64(int64(p.Offset) + delta)
	for _, c := range p.Children {
		shiftOffset(c, delta)
	}
}

func isComposite(k Kind) bool {
	switch k {
	case KindStruct, KindUnion, KindStaticArray, KindDynamicArray, KindBitfield, KindPointer:
		return true
	default:
		return false
	}
}

// EndianFromNative converts a big-endian flag (such as byteorder.Native()'s
// result) into a pattern Endian.
func EndianFromNative(isBig bool) Endian {
	if isBig {
		return EndianBig
	}
	return EndianLittle
}

// TypeNameFor renders a stable display type name for a built-in scalar
// pattern, matching token.BuiltInType's own String().
func TypeNameFor(bt token.BuiltInType) string {
	return bt.String()
}

package evaluator

import (
	"fmt"

	"github.com/patterncore/patternlang/internal/ast"
	"github.com/patterncore/patternlang/internal/byteorder"
	"github.com/patterncore/patternlang/internal/langerr"
	"github.com/patterncore/patternlang/internal/pattern"
	"github.com/patterncore/patternlang/internal/token"
)

// evalStruct evaluates members in declaration order, per spec.md §4.5
// "Struct: evaluate members in order; size = cursor − start. Inherited
// structs prepend their (already-evaluated) members."
func (e *Evaluator) evalStruct(d *ast.StructDecl, name string) (*pattern.Pattern, error) {
	start := e.cursor
	p := &pattern.Pattern{Kind: pattern.KindStruct, Offset: start, Name: name, TypeName: d.Name, Endian: e.currentEndian()}

	e.pushFrame(p)
	defer e.popFrame()

	for _, base := range d.Inherits {
		baseDecl, ok := e.typeDecls[base]
		if !ok {
			return nil, langerr.At(langerr.KindEvaluation, d.Line(), fmt.Sprintf("undeclared base type %q", base))
		}
		baseStruct, ok := baseDecl.(*ast.StructDecl)
		if !ok {
			return nil, langerr.At(langerr.KindEvaluation, d.Line(), fmt.Sprintf("base %q is not a struct", base))
		}
		for _, m := range baseStruct.Members {
			if err := e.evalMember(m); err != nil {
				return nil, err
			}
		}
	}
	for _, m := range d.Members {
		if err := e.evalMember(m); err != nil {
			return nil, err
		}
		if e.flow != flowNone {
			break
		}
	}

	p.Size = e.cursor - start
	applyAttributes(p, d.Attributes)
	return p, nil
}

// evalUnion evaluates every member from the same starting offset, per
// spec.md §4.5 "Union"; size is the widest member and the cursor advances
// past it exactly once.
func (e *Evaluator) evalUnion(d *ast.UnionDecl, name string) (*pattern.Pattern, error) {
	start := e.cursor
	p := &pattern.Pattern{Kind: pattern.KindUnion, Offset: start, Name: name, TypeName: d.Name, Endian: e.currentEndian()}

	e.pushFrame(p)
	defer e.popFrame()

	maxSize := uint64(0)
	for _, m := range d.Members {
		e.cursor = start
		if err := e.evalMember(m); err != nil {
			return nil, err
		}
		if sz := e.cursor - start; sz > maxSize {
			maxSize = sz
		}
		if e.flow != flowNone {
			break
		}
	}
	e.cursor = start + maxSize
	p.Size = maxSize
	applyAttributes(p, d.Attributes)
	return p, nil
}

// evalMember dispatches one struct/union member statement, appending its
// resulting pattern (if any) as a child of the enclosing composite.
func (e *Evaluator) evalMember(n ast.Node) error {
	switch d := n.(type) {
	case *ast.VariableDecl:
		_, err := e.evalTypedMemberChild(d.Name, d.Type, d.Placement, d.At, d.Attributes)
		return err
	case *ast.ArrayDecl:
		_, err := e.evalArrayDecl(d)
		return err
	case *ast.PointerDecl:
		_, err := e.evalPointerDecl(d)
		return err
	case *ast.MultiVariableDecl:
		for _, name := range d.Names {
			if _, err := e.evalTypedMemberChild(name, d.Type, ast.PlacementSequential, nil, nil); err != nil {
				return err
			}
		}
		return nil
	default:
		return e.execStmt(n)
	}
}

// addChild appends p to the innermost composite's Children; at global scope,
// where there is no composite, it does nothing.
func (e *Evaluator) addChild(p *pattern.Pattern) {
	if p == nil {
		return
	}
	if parent := e.currentComposite(); parent != nil {
		parent.Children = append(parent.Children, p)
	}
}

// evalTypedMemberChild is evalTypedMember plus automatic child registration,
// used by every member-position caller (struct/union members, multi-decls).
func (e *Evaluator) evalTypedMemberChild(name string, typ ast.Node, placement ast.Placement, at ast.Node, attrs []*ast.Attribute) (*pattern.Pattern, error) {
	p, err := e.evalTypedMember(name, typ, placement, at, attrs)
	if err != nil {
		return nil, err
	}
	e.addChild(p)
	if p != nil {
		e.setVar(name, patternToValue(p))
	}
	return p, nil
}

func (e *Evaluator) evalArrayDecl(d *ast.ArrayDecl) (*pattern.Pattern, error) {
	start := e.cursor
	restoreAfter := len(e.frames) > 1
	if d.Placement == ast.PlacementAt {
		addr, err := e.evalExpr(d.At)
		if err != nil {
			return nil, err
		}
		e.cursor = addr.asBig().Uint64()
		start = e.cursor
	}

	dynamic := d.WhileCond != nil
	kind := pattern.KindStaticArray
	if dynamic {
		kind = pattern.KindDynamicArray
	}
	p := &pattern.Pattern{Kind: kind, Offset: start, Name: d.Name, Endian: e.currentEndian()}
	e.pushFrame(nil)
	defer e.popFrame()

	count := -1
	if !dynamic && d.Count != nil {
		n, err := e.evalExpr(d.Count)
		if err != nil {
			return nil, err
		}
		count = int(n.asBig().Int64())
	}

	// An array declared with empty brackets (no count, no while-condition)
	// auto-sizes to whatever data remains: it reads elements until the
	// element type itself runs out of bytes to read, rather than until a
	// fixed count or condition says to stop.
	auto := !dynamic && d.Count == nil

	i := 0
	for {
		if dynamic {
			if e.isAborted() {
				return nil, langerr.New(langerr.KindAborted, "evaluation aborted")
			}
		} else if count >= 0 && i >= count {
			break
		}

		elemStart := e.cursor
		elemName := fmt.Sprintf("%s[%d]", d.Name, i)
		elem, err := e.evalType(d.ElemType, elemName)
		if err != nil {
			if auto {
				if lerr, ok := err.(*langerr.Error); ok && lerr.Kind == langerr.KindOutOfRange {
					e.cursor = elemStart
					break
				}
			}
			return nil, err
		}
		if i == 0 && !dynamic {
			p.Stride = elem.Size
		}
		p.Children = append(p.Children, elem)
		i++

		if e.flow == flowBreak {
			e.flow = flowNone
			break
		}
		if e.flow == flowContinue {
			e.flow = flowNone
		}
		if e.flow == flowReturn {
			break
		}

		if dynamic {
			cond, err := e.evalExpr(d.WhileCond)
			if err != nil {
				return nil, err
			}
			if !cond.asBool() {
				break
			}
		}
	}
	p.Size = e.cursor - start
	applyAttributes(p, d.Attributes)

	if d.Placement == ast.PlacementAt && restoreAfter {
		e.cursor = start
	}
	e.addChild(p)
	return p, nil
}

// evalPointerDecl reads a sized integer, computes the pointee address, and
// evaluates the pointee type there without advancing the cursor past it,
// per spec.md §4.5 "Pointer".
func (e *Evaluator) evalPointerDecl(d *ast.PointerDecl) (*pattern.Pattern, error) {
	offset := e.cursor
	size := d.SizeType.Type.Size
	buf := make([]byte, size)
	n, err := e.prov.Read(offset, buf)
	if err != nil || n < size {
		return nil, langerr.At(langerr.KindOutOfRange, d.Line(), "out-of-range read for pointer field")
	}
	raw := byteorder.ToUint64(buf, e.currentEndian() == pattern.EndianBig)
	e.cursor += uint64(size)

	base := e.pointerBase
	if d.Relative {
		base = offset + uint64(size)
	}
	target := base + raw

	p := &pattern.Pattern{
		Kind: pattern.KindPointer, Offset: offset, Size: uint64(size), Name: d.Name,
		Endian: e.currentEndian(), PointerBase: base, PointedAtAddress: target, PointerRaw: raw,
	}

	savedCursor := e.cursor
	e.cursor = target
	pointee, err := e.evalType(d.PointeeType, d.Name+".*")
	e.cursor = savedCursor
	if err != nil {
		return nil, err
	}
	p.Pointee = pointee
	applyAttributes(p, d.Attributes)
	e.addChild(p)
	e.setVar(d.Name, patternToValue(p))
	return p, nil
}

// evalEnum reads the underlying integer and resolves it to its entry name.
func (e *Evaluator) evalEnum(d *ast.EnumDecl, name string) (*pattern.Pattern, error) {
	u := d.Underlying
	if u == nil {
		u = &ast.BuiltInTypeNode{Type: token.BuiltinTypes["u32"]}
	}
	underlying := &ast.BuiltInTypeNode{Type: u.Type, Endian: u.Endian}
	p, err := e.evalBuiltIn(underlying, name)
	if err != nil {
		return nil, err
	}
	names := map[int64]string{}
	var prev int64 = -1
	for _, entry := range d.Entries {
		v := prev + 1
		if entry.Value != nil {
			val, err := e.evalExpr(entry.Value)
			if err != nil {
				return nil, err
			}
			v = val.asBig().Int64()
		}
		names[v] = entry.Name
		prev = v
	}
	var raw int64
	if p.Kind == pattern.KindSigned {
		raw = p.IntValue
	} else {
		raw = int64(p.UintValue)
	}
	p.Kind = pattern.KindEnum
	p.TypeName = d.Name
	p.EnumNames = names
	p.EnumValue = raw
	p.EnumName = names[raw]
	return p, nil
}

// evalBitfield consumes enough bytes to hold the fields' total bit width
// (rounded up to whole bytes) as one integer, then
// slices bit-fields out of it right-to-left by default, per spec.md §4.5
// "Bitfield".
func (e *Evaluator) evalBitfield(d *ast.BitfieldDecl, name string) (*pattern.Pattern, error) {
	totalBits := 0
	for _, f := range d.Fields {
		n, err := e.evalExpr(f.BitSize)
		if err != nil {
			return nil, err
		}
		totalBits += int(n.asBig().Int64())
	}
	storageBytes := (totalBits + 7) / 8

	start := e.cursor
	buf := make([]byte, storageBytes)
	n, err := e.prov.Read(start, buf)
	if err != nil || n < storageBytes {
		return nil, langerr.At(langerr.KindOutOfRange, d.Line(), "out-of-range read for bitfield")
	}
	e.cursor += uint64(storageBytes)

	raw := byteorder.ToUint64(buf, e.currentEndian() == pattern.EndianBig)

	leftToRight := false
	for _, a := range d.Attributes {
		if a.Name == "left_to_right" {
			leftToRight = true
		}
	}

	p := &pattern.Pattern{Kind: pattern.KindBitfield, Offset: start, Size: uint64(storageBytes), Name: name, TypeName: d.Name, Endian: e.currentEndian()}

	bitCursor := 0
	if leftToRight {
		bitCursor = totalBits
	}
	for _, f := range d.Fields {
		n, err := e.evalExpr(f.BitSize)
		if err != nil {
			return nil, err
		}
		width := int(n.asBig().Int64())
		var bitOffset int
		if leftToRight {
			bitCursor -= width
			bitOffset = bitCursor
		} else {
			bitOffset = bitCursor
			bitCursor += width
		}
		if f.Padding {
			continue
		}
		fieldVal := (raw >> uint(bitOffset)) & ((uint64(1) << uint(width)) - 1)
		child := &pattern.Pattern{
			Kind: pattern.KindBitfieldField, Offset: start, Size: uint64(storageBytes),
			Name: f.Name, BitOffset: bitOffset, BitSize: width, UintValue: fieldVal,
		}
		p.Children = append(p.Children, child)
		e.setVar(f.Name, uintVal(fieldVal, width))
	}
	applyAttributes(p, d.Attributes)
	return p, nil
}

// patternToValue converts an evaluated Pattern's scalar payload into an
// expression value, used for variable bindings and member-path lookups.
func patternToValue(p *pattern.Pattern) value {
	switch p.Kind {
	case pattern.KindUnsigned:
		return uintVal(p.UintValue, int(p.Size)*8)
	case pattern.KindSigned:
		return sintVal(p.IntValue, int(p.Size)*8)
	case pattern.KindFloat:
		return floatVal(p.FloatVal)
	case pattern.KindBool:
		return boolVal(p.BoolVal)
	case pattern.KindChar:
		return uintVal(uint64(p.CharVal), 8)
	case pattern.KindChar16:
		return uintVal(uint64(p.Char16Val), 16)
	case pattern.KindString:
		return stringVal(p.StrVal)
	case pattern.KindEnum:
		return sintVal(p.EnumValue, int(p.Size)*8)
	case pattern.KindBitfieldField:
		return uintVal(p.UintValue, p.BitSize)
	case pattern.KindPointer:
		return uintVal(p.PointedAtAddress, 64)
	default:
		return uintVal(p.Offset, 64)
	}
}

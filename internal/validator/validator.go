// Package validator implements the single pre-evaluation pass of spec.md
// §4.4: name-collision and structural checks that reject a program before
// the evaluator ever runs, without mutating the AST.
package validator

import (
	"fmt"

	"github.com/patterncore/patternlang/internal/ast"
	"github.com/patterncore/patternlang/internal/langerr"
)

// Validate walks the top-level scope and every nested type declaration,
// returning the first violation found, per spec.md §4.4's rejection list.
func Validate(program *ast.Scope) error {
	v := &validator{
		topLevel: map[string]bool{},
		types:    map[string]bool{},
	}
	return v.run(program)
}

type validator struct {
	topLevel map[string]bool
	types    map[string]bool
}

func (v *validator) run(program *ast.Scope) error {
	for _, stmt := range program.Statements {
		if err := v.declareTopLevel(stmt); err != nil {
			return err
		}
	}
	for _, stmt := range program.Statements {
		if err := v.checkNode(stmt); err != nil {
			return err
		}
	}
	return nil
}

// declareTopLevel registers every top-level type, variable, array and
// function name (types and variables share one namespace per §4.4) and
// rejects duplicates. Pointer and multi-name declarations are not registered.
func (v *validator) declareTopLevel(n ast.Node) error {
	name, isType := topLevelName(n)
	if name == "" {
		return nil
	}
	if v.topLevel[name] {
		return langerr.At(langerr.KindValidation, n.Line(), fmt.Sprintf("duplicate top-level name %q", name))
	}
	v.topLevel[name] = true
	if isType {
		v.types[name] = true
	}
	return nil
}

func topLevelName(n ast.Node) (name string, isType bool) {
	switch d := n.(type) {
	case *ast.StructDecl:
		return d.Name, true
	case *ast.UnionDecl:
		return d.Name, true
	case *ast.EnumDecl:
		return d.Name, true
	case *ast.BitfieldDecl:
		return d.Name, true
	case *ast.TypeDecl:
		return d.Name, true
	case *ast.VariableDecl:
		return d.Name, false
	case *ast.ArrayDecl:
		return d.Name, false
	case *ast.FunctionDef:
		return d.Name, false
	default:
		return "", false
	}
}

// checkNode recurses into composite declarations checking member-level
// invariants, and validates that referenced custom types were declared.
func (v *validator) checkNode(n ast.Node) error {
	switch d := n.(type) {
	case *ast.StructDecl:
		if err := v.checkUniqueNames(d.Members, "struct member"); err != nil {
			return err
		}
		for _, base := range d.Inherits {
			if !v.types[base] {
				return langerr.At(langerr.KindValidation, d.Line(), fmt.Sprintf("undeclared base type %q", base))
			}
		}
		for _, m := range d.Members {
			if err := v.checkTypeRefs(m); err != nil {
				return err
			}
			if err := v.checkNode(m); err != nil {
				return err
			}
		}
	case *ast.UnionDecl:
		if err := v.checkUniqueNames(d.Members, "union member"); err != nil {
			return err
		}
		for _, m := range d.Members {
			if err := v.checkTypeRefs(m); err != nil {
				return err
			}
			if err := v.checkNode(m); err != nil {
				return err
			}
		}
	case *ast.EnumDecl:
		seen := map[string]bool{}
		for _, e := range d.Entries {
			if seen[e.Name] {
				return langerr.At(langerr.KindValidation, d.Line(), fmt.Sprintf("duplicate enum entry %q", e.Name))
			}
			seen[e.Name] = true
		}
	case *ast.BitfieldDecl:
		seen := map[string]bool{}
		total := 0
		for _, f := range d.Fields {
			if !f.Padding {
				if seen[f.Name] {
					return langerr.At(langerr.KindValidation, d.Line(), fmt.Sprintf("duplicate bitfield field %q", f.Name))
				}
				seen[f.Name] = true
			}
			if lit, ok := constBitSize(f.BitSize); ok {
				total += lit
			}
		}
		// Declared storage size is carried as the first bitfield "size"
		// attribute in this dialect; when absent, no overflow check applies,
		// since the evaluator sizes the storage from the fields' total width.
		if sz, ok := bitfieldDeclaredSize(d); ok && total > sz*8 {
			return langerr.At(langerr.KindValidation, d.Line(), "bitfield fields exceed declared storage size")
		}
	case *ast.FunctionDef:
		if d.Body != nil {
			for _, stmt := range d.Body.Statements {
				if err := v.checkNode(stmt); err != nil {
					return err
				}
			}
		}
	case *ast.Scope:
		for _, stmt := range d.Statements {
			if err := v.checkNode(stmt); err != nil {
				return err
			}
		}
	case *ast.Conditional:
		if err := v.checkNode(d.Then); err != nil {
			return err
		}
		if d.Else != nil {
			return v.checkNode(d.Else)
		}
	case *ast.VariableDecl:
		return v.checkTypeRefs(d)
	case *ast.ArrayDecl:
		return v.checkTypeRefs(d)
	case *ast.PointerDecl:
		return v.checkTypeRefs(d)
	case *ast.TypeDecl:
		return v.checkTypeRefs(d)
	}
	return nil
}

func (v *validator) checkUniqueNames(members []ast.Node, what string) error {
	seen := map[string]bool{}
	for _, m := range members {
		name, _ := memberName(m)
		if name == "" {
			continue
		}
		if seen[name] {
			return langerr.At(langerr.KindValidation, m.Line(), fmt.Sprintf("duplicate %s name %q", what, name))
		}
		seen[name] = true
	}
	return nil
}

func memberName(n ast.Node) (string, bool) {
	switch d := n.(type) {
	case *ast.VariableDecl:
		return d.Name, true
	case *ast.ArrayDecl:
		return d.Name, true
	case *ast.PointerDecl:
		return d.Name, true
	default:
		return "", false
	}
}

// checkTypeRefs rejects references to undeclared custom type names.
func (v *validator) checkTypeRefs(n ast.Node) error {
	var typeNode ast.Node
	switch d := n.(type) {
	case *ast.VariableDecl:
		typeNode = d.Type
	case *ast.ArrayDecl:
		typeNode = d.ElemType
	case *ast.PointerDecl:
		typeNode = d.PointeeType
	case *ast.TypeDecl:
		typeNode = d.Body
	default:
		return nil
	}
	return v.checkTypeNode(typeNode, n.Line())
}

func (v *validator) checkTypeNode(n ast.Node, line int) error {
	path, ok := n.(*ast.Path)
	if !ok || len(path.Segments) != 1 {
		return nil
	}
	name := path.Segments[0].Name
	if !v.types[name] {
		return langerr.At(langerr.KindValidation, line, fmt.Sprintf("undeclared custom type %q", name))
	}
	return nil
}

func constBitSize(n ast.Node) (int, bool) {
	lit, ok := n.(*ast.Literal)
	if !ok {
		return 0, false
	}
	return int(lit.Int.Uint64()), true
}

func bitfieldDeclaredSize(d *ast.BitfieldDecl) (int, bool) {
	for _, a := range d.Attributes {
		if a.Name == "size" && len(a.Args) == 1 {
			if v, ok := constBitSize(a.Args[0]); ok {
				return v, true
			}
		}
	}
	return 0, false
}

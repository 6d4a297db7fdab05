// Package parser implements the hand-written recursive-descent parser that
// turns a token.Token stream into an ast.Node tree, per spec.md §4.3.
package parser

import (
	"github.com/patterncore/patternlang/internal/ast"
	"github.com/patterncore/patternlang/internal/langerr"
	"github.com/patterncore/patternlang/internal/token"
)

// Parser consumes a fixed token slice and produces a top-level Scope node
// containing every declaration/statement in the source.
type Parser struct {
	toks  []token.Token
	pos   int
	types map[string]bool // names previously declared as types, per §4.3's "identifier is a type only if already declared" rule
}

// New creates a Parser over a complete token stream (as produced by
// lexer.Tokenize, always KindEOF-terminated).
func New(toks []token.Token) *Parser {
	return &Parser{toks: toks, types: map[string]bool{}}
}

// Parse parses the entire token stream and returns the top-level scope.
func Parse(toks []token.Token) (*ast.Scope, error) {
	p := New(toks)
	return p.ParseProgram()
}

func (p *Parser) cur() token.Token  { return p.toks[p.pos] }
func (p *Parser) curLine() int      { return p.cur().Line }
func (p *Parser) atEOF() bool       { return p.cur().Kind == token.KindEOF }

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) check(kind token.Kind, text string) bool {
	t := p.cur()
	return t.Kind == kind && (text == "" || t.Text == text)
}

func (p *Parser) checkOp(op string) bool  { return p.check(token.KindOperator, op) }
func (p *Parser) checkSep(s string) bool  { return p.check(token.KindSeparator, s) }
func (p *Parser) checkKw(kw string) bool  { return p.check(token.KindKeyword, kw) }

func (p *Parser) match(kind token.Kind, text string) (token.Token, bool) {
	if p.check(kind, text) {
		return p.advance(), true
	}
	return token.Token{}, false
}

func (p *Parser) expect(kind token.Kind, text, what string) (token.Token, error) {
	if tok, ok := p.match(kind, text); ok {
		return tok, nil
	}
	return token.Token{}, langerr.At(langerr.KindParse, p.curLine(), "expected "+what+", found "+p.cur().String())
}

// ParseProgram parses every top-level declaration/statement until EOF.
func (p *Parser) ParseProgram() (*ast.Scope, error) {
	scope := &ast.Scope{}
	for !p.atEOF() {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			scope.Statements = append(scope.Statements, stmt)
		}
	}
	return scope, nil
}

func (p *Parser) parseStatement() (ast.Node, error) {
	line := p.curLine()

	switch {
	case p.checkKw("struct"):
		return p.parseStruct()
	case p.checkKw("union"):
		return p.parseUnion()
	case p.checkKw("enum"):
		return p.parseEnum()
	case p.checkKw("bitfield"):
		return p.parseBitfield()
	case p.checkKw("using"):
		return p.parseUsing()
	case p.checkKw("fn"):
		return p.parseFunctionDef()
	case p.checkKw("if"):
		return p.parseConditional()
	case p.checkKw("while"):
		return p.parseWhileStatement()
	case p.checkKw("for"):
		return p.parseForStatement()
	case p.checkKw("break"):
		p.advance()
		if _, err := p.expect(token.KindSeparator, ";", "';'"); err != nil {
			return nil, err
		}
		return &ast.ControlFlow{Kind: ast.ControlBreak}, nil
	case p.checkKw("continue"):
		p.advance()
		if _, err := p.expect(token.KindSeparator, ";", "';'"); err != nil {
			return nil, err
		}
		return &ast.ControlFlow{Kind: ast.ControlContinue}, nil
	case p.checkKw("return"):
		p.advance()
		var val ast.Node
		if !p.checkSep(";") {
			v, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			val = v
		}
		if _, err := p.expect(token.KindSeparator, ";", "';'"); err != nil {
			return nil, err
		}
		return &ast.ControlFlow{Kind: ast.ControlReturn, Value: val}, nil
	case p.checkSep("{"):
		return p.parseScope()
	case p.checkSep("["):
		attrs, err := p.parseAttributes()
		if err != nil {
			return nil, err
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		attachAttributes(stmt, attrs)
		return stmt, nil
	}

	_ = line
	return p.parseDeclarationOrExprStatement()
}

func attachAttributes(n ast.Node, attrs []*ast.Attribute) {
	switch v := n.(type) {
	case *ast.VariableDecl:
		v.Attributes = append(v.Attributes, attrs...)
	case *ast.ArrayDecl:
		v.Attributes = append(v.Attributes, attrs...)
	case *ast.PointerDecl:
		v.Attributes = append(v.Attributes, attrs...)
	case *ast.StructDecl:
		v.Attributes = append(v.Attributes, attrs...)
	case *ast.UnionDecl:
		v.Attributes = append(v.Attributes, attrs...)
	case *ast.BitfieldDecl:
		v.Attributes = append(v.Attributes, attrs...)
	}
}

func (p *Parser) parseAttributes() ([]*ast.Attribute, error) {
	if _, err := p.expect(token.KindSeparator, "[", "'['"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KindSeparator, "[", "'['"); err != nil {
		return nil, err
	}
	var attrs []*ast.Attribute
	for {
		line := p.curLine()
		name, err := p.expect(token.KindIdent, "", "attribute name")
		if err != nil {
			return nil, err
		}
		attr := &ast.Attribute{Name: name.Text}
		if p.checkSep("(") {
			p.advance()
			for !p.checkSep(")") {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				attr.Args = append(attr.Args, arg)
				if p.checkSep(",") {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(token.KindSeparator, ")", "')'"); err != nil {
				return nil, err
			}
		}
		setLine(attr, line)
		attrs = append(attrs, attr)
		if p.checkSep(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.KindSeparator, "]", "']'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KindSeparator, "]", "']'"); err != nil {
		return nil, err
	}
	return attrs, nil
}

func (p *Parser) parseScope() (*ast.Scope, error) {
	if _, err := p.expect(token.KindSeparator, "{", "'{'"); err != nil {
		return nil, err
	}
	scope := &ast.Scope{}
	for !p.checkSep("}") {
		if p.atEOF() {
			return nil, langerr.At(langerr.KindParse, p.curLine(), "unterminated scope, expected '}'")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			scope.Statements = append(scope.Statements, stmt)
		}
	}
	p.advance()
	return scope, nil
}

func (p *Parser) parseStruct() (*ast.StructDecl, error) {
	line := p.curLine()
	p.advance()
	name, err := p.expect(token.KindIdent, "", "struct name")
	if err != nil {
		return nil, err
	}
	p.types[name.Text] = true

	decl := &ast.StructDecl{Name: name.Text}
	setLine(decl, line)

	if p.checkOp(":") {
		p.advance()
		for {
			inh, err := p.expect(token.KindIdent, "", "inherited type name")
			if err != nil {
				return nil, err
			}
			decl.Inherits = append(decl.Inherits, inh.Text)
			if p.checkSep(",") {
				p.advance()
				continue
			}
			break
		}
	}

	body, err := p.parseScope()
	if err != nil {
		return nil, err
	}
	decl.Members = body.Statements
	p.match(token.KindSeparator, ";")
	return decl, nil
}

func (p *Parser) parseUnion() (*ast.UnionDecl, error) {
	line := p.curLine()
	p.advance()
	name, err := p.expect(token.KindIdent, "", "union name")
	if err != nil {
		return nil, err
	}
	p.types[name.Text] = true

	decl := &ast.UnionDecl{Name: name.Text}
	setLine(decl, line)

	body, err := p.parseScope()
	if err != nil {
		return nil, err
	}
	decl.Members = body.Statements
	p.match(token.KindSeparator, ";")
	return decl, nil
}

func (p *Parser) parseEnum() (*ast.EnumDecl, error) {
	line := p.curLine()
	p.advance()
	name, err := p.expect(token.KindIdent, "", "enum name")
	if err != nil {
		return nil, err
	}
	p.types[name.Text] = true

	decl := &ast.EnumDecl{Name: name.Text}
	setLine(decl, line)

	if p.checkOp(":") {
		p.advance()
		bt, err := p.expect(token.KindBuiltInType, "", "enum underlying type")
		if err != nil {
			return nil, err
		}
		u := &ast.BuiltInTypeNode{Type: bt.Type}
		setLine(u, line)
		decl.Underlying = u
	}

	if _, err := p.expect(token.KindSeparator, "{", "'{'"); err != nil {
		return nil, err
	}
	for !p.checkSep("}") {
		entryName, err := p.expect(token.KindIdent, "", "enum entry name")
		if err != nil {
			return nil, err
		}
		entry := ast.EnumEntry{Name: entryName.Text}
		if p.checkOp("=") {
			p.advance()
			val, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			entry.Value = val
		}
		decl.Entries = append(decl.Entries, entry)
		if p.checkSep(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.KindSeparator, "}", "'}'"); err != nil {
		return nil, err
	}
	p.match(token.KindSeparator, ";")
	return decl, nil
}

func (p *Parser) parseBitfield() (*ast.BitfieldDecl, error) {
	line := p.curLine()
	p.advance()
	name, err := p.expect(token.KindIdent, "", "bitfield name")
	if err != nil {
		return nil, err
	}
	p.types[name.Text] = true

	decl := &ast.BitfieldDecl{Name: name.Text}
	setLine(decl, line)

	if _, err := p.expect(token.KindSeparator, "{", "'{'"); err != nil {
		return nil, err
	}
	for !p.checkSep("}") {
		padding := false
		var fieldName string
		if p.check(token.KindBuiltInType, "padding") {
			p.advance()
			padding = true
		} else {
			fn, err := p.expect(token.KindIdent, "", "bitfield field name")
			if err != nil {
				return nil, err
			}
			fieldName = fn.Text
		}
		if _, err := p.expect(token.KindOperator, ":", "':'"); err != nil {
			return nil, err
		}
		size, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.KindSeparator, ";", "';'"); err != nil {
			return nil, err
		}
		decl.Fields = append(decl.Fields, ast.BitfieldField{Name: fieldName, BitSize: size, Padding: padding})
	}
	if _, err := p.expect(token.KindSeparator, "}", "'}'"); err != nil {
		return nil, err
	}
	p.match(token.KindSeparator, ";")
	return decl, nil
}

func (p *Parser) parseUsing() (*ast.TypeDecl, error) {
	line := p.curLine()
	p.advance()
	name, err := p.expect(token.KindIdent, "", "type alias name")
	if err != nil {
		return nil, err
	}
	p.types[name.Text] = true

	decl := &ast.TypeDecl{Name: name.Text}
	setLine(decl, line)

	if _, err := p.expect(token.KindOperator, "=", "'='"); err != nil {
		return nil, err
	}
	body, err := p.parseTypeRef()
	if err != nil {
		return nil, err
	}
	decl.Body = body
	if _, err := p.expect(token.KindSeparator, ";", "';'"); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) parseFunctionDef() (*ast.FunctionDef, error) {
	line := p.curLine()
	p.advance()
	name, err := p.expect(token.KindIdent, "", "function name")
	if err != nil {
		return nil, err
	}
	decl := &ast.FunctionDef{Name: name.Text}
	setLine(decl, line)

	if _, err := p.expect(token.KindSeparator, "(", "'('"); err != nil {
		return nil, err
	}
	for !p.checkSep(")") {
		if p.checkOp(".") && p.toks[p.pos+1].Text == "." && p.toks[p.pos+2].Text == "." {
			p.advance()
			p.advance()
			p.advance()
			decl.Variadic = true
			decl.Params = append(decl.Params, "...")
			break
		}
		pn, err := p.expect(token.KindIdent, "", "parameter name")
		if err != nil {
			return nil, err
		}
		decl.Params = append(decl.Params, pn.Text)
		if p.checkSep(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(token.KindSeparator, ")", "')'"); err != nil {
		return nil, err
	}

	body, err := p.parseScope()
	if err != nil {
		return nil, err
	}
	decl.Body = body
	return decl, nil
}

func (p *Parser) parseConditional() (*ast.Conditional, error) {
	line := p.curLine()
	p.advance()
	if _, err := p.expect(token.KindSeparator, "(", "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KindSeparator, ")", "')'"); err != nil {
		return nil, err
	}
	then, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	node := &ast.Conditional{Cond: cond, Then: then}
	setLine(node, line)

	// Dangling-else binds to the nearest unmatched if, which falls out
	// naturally here: each recursive parseStatement call consumes its own
	// trailing else before returning control to its caller.
	if p.checkKw("else") {
		p.advance()
		elseBranch, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		node.Else = elseBranch
	}
	return node, nil
}

func (p *Parser) parseWhileStatement() (ast.Node, error) {
	line := p.curLine()
	p.advance()
	if _, err := p.expect(token.KindSeparator, "(", "'('"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KindSeparator, ")", "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	node := &ast.While{Cond: cond, Body: body}
	setLine(node, line)
	return node, nil
}

// parseForStatement desugars `for (init; cond; post) body` into a Scope
// containing init, followed by an equivalent While whose body appends post.
func (p *Parser) parseForStatement() (ast.Node, error) {
	line := p.curLine()
	p.advance()
	if _, err := p.expect(token.KindSeparator, "(", "'('"); err != nil {
		return nil, err
	}
	init, err := p.parseDeclarationOrExprStatement()
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KindSeparator, ";", "';'"); err != nil {
		return nil, err
	}
	post, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KindSeparator, ")", "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}

	loopBody := &ast.Scope{Statements: []ast.Node{body, post}}
	setLine(loopBody, line)
	whileNode := &ast.While{Cond: cond, Body: loopBody}
	setLine(whileNode, line)

	outer := &ast.Scope{Statements: []ast.Node{init, whileNode}}
	setLine(outer, line)
	return outer, nil
}

// parseTypeRef parses a type reference: an optional endian prefix, then a
// built-in type or a previously-declared custom type name.
func (p *Parser) parseTypeRef() (ast.Node, error) {
	line := p.curLine()
	endian := ast.EndianDefault
	if p.checkKw("le") {
		p.advance()
		endian = ast.EndianLittle
	} else if p.checkKw("be") {
		p.advance()
		endian = ast.EndianBig
	}

	if p.check(token.KindBuiltInType, "") {
		bt := p.advance()
		node := &ast.BuiltInTypeNode{Type: bt.Type, Endian: endian}
		setLine(node, line)
		return node, nil
	}

	if p.check(token.KindIdent, "") {
		name := p.advance()
		path := &ast.Path{Segments: []ast.PathSegment{{Name: name.Text}}}
		setLine(path, line)
		return path, nil
	}

	return nil, langerr.At(langerr.KindParse, line, "expected type name, found "+p.cur().String())
}

// parseDeclarationOrExprStatement handles `Type name(...);`, `Type name,
// name2;`, `Type name[count];`, `Type *name : sizeType;`, and bare
// expression statements such as function calls. No assignment operator is
// parsed, so `x = 1;` is a parse error.
func (p *Parser) parseDeclarationOrExprStatement() (ast.Node, error) {
	line := p.curLine()

	if p.startsTypeRef() {
		typ, err := p.parseTypeRef()
		if err != nil {
			return nil, err
		}

		if p.checkOp("*") {
			p.advance()
			name, err := p.expect(token.KindIdent, "", "pointer variable name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.KindOperator, ":", "':'"); err != nil {
				return nil, err
			}
			sizeType, err := p.expect(token.KindBuiltInType, "", "pointer size type")
			if err != nil {
				return nil, err
			}
			decl := &ast.PointerDecl{
				Name:        name.Text,
				SizeType:    &ast.BuiltInTypeNode{Type: sizeType.Type},
				PointeeType: typ,
			}
			setLine(decl, line)
			if _, err := p.expect(token.KindSeparator, ";", "';'"); err != nil {
				return nil, err
			}
			return decl, nil
		}

		name, err := p.expect(token.KindIdent, "", "variable name")
		if err != nil {
			return nil, err
		}

		if p.checkSep(",") {
			names := []string{name.Text}
			for p.checkSep(",") {
				p.advance()
				n2, err := p.expect(token.KindIdent, "", "variable name")
				if err != nil {
					return nil, err
				}
				names = append(names, n2.Text)
			}
			if _, err := p.expect(token.KindSeparator, ";", "';'"); err != nil {
				return nil, err
			}
			decl := &ast.MultiVariableDecl{Names: names, Type: typ}
			setLine(decl, line)
			return decl, nil
		}

		if p.checkSep("[") {
			p.advance()
			arr := &ast.ArrayDecl{Name: name.Text, ElemType: typ}
			setLine(arr, line)
			if p.checkKw("while") {
				p.advance()
				if _, err := p.expect(token.KindSeparator, "(", "'('"); err != nil {
					return nil, err
				}
				cond, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(token.KindSeparator, ")", "')'"); err != nil {
					return nil, err
				}
				arr.WhileCond = cond
			} else if !p.checkSep("]") {
				count, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				arr.Count = count
			}
			if _, err := p.expect(token.KindSeparator, "]", "']'"); err != nil {
				return nil, err
			}
			if err := p.parsePlacementSuffix(&arr.Placement, &arr.At); err != nil {
				return nil, err
			}
			if _, err := p.expect(token.KindSeparator, ";", "';'"); err != nil {
				return nil, err
			}
			return arr, nil
		}

		decl := &ast.VariableDecl{Name: name.Text, Type: typ}
		setLine(decl, line)
		if err := p.parsePlacementSuffix(&decl.Placement, &decl.At); err != nil {
			return nil, err
		}
		if _, err := p.expect(token.KindSeparator, ";", "';'"); err != nil {
			return nil, err
		}
		return decl, nil
	}

	// Bare expression statement (e.g. a function call).
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KindSeparator, ";", "';'"); err != nil {
		return nil, err
	}
	return expr, nil
}

func (p *Parser) parsePlacementSuffix(placement *ast.Placement, at *ast.Node) error {
	if p.checkSep("@") {
		p.advance()
		addr, err := p.parseExpression()
		if err != nil {
			return err
		}
		*placement = ast.PlacementAt
		*at = addr
		return nil
	}
	if p.checkKw("in") {
		p.advance()
		*placement = ast.PlacementIn
		return nil
	}
	if p.checkKw("out") {
		p.advance()
		*placement = ast.PlacementOut
		return nil
	}
	*placement = ast.PlacementSequential
	return nil
}

// startsTypeRef reports whether the current position begins a type
// reference: a built-in type keyword, le/be prefix, or an identifier
// previously registered as a type name.
func (p *Parser) startsTypeRef() bool {
	if p.check(token.KindBuiltInType, "") {
		return true
	}
	if p.checkKw("le") || p.checkKw("be") {
		return true
	}
	if p.cur().Kind == token.KindIdent && p.types[p.cur().Text] {
		return true
	}
	return false
}

func setLine(n ast.Node, line int) {
	switch v := n.(type) {
	case *ast.Literal:
		v.SetLine(line)
	case *ast.Path:
		v.SetLine(line)
	case *ast.TypeDecl:
		v.SetLine(line)
	case *ast.BuiltInTypeNode:
		v.SetLine(line)
	case *ast.StructDecl:
		v.SetLine(line)
	case *ast.UnionDecl:
		v.SetLine(line)
	case *ast.EnumDecl:
		v.SetLine(line)
	case *ast.BitfieldDecl:
		v.SetLine(line)
	case *ast.VariableDecl:
		v.SetLine(line)
	case *ast.ArrayDecl:
		v.SetLine(line)
	case *ast.PointerDecl:
		v.SetLine(line)
	case *ast.MultiVariableDecl:
		v.SetLine(line)
	case *ast.Scope:
		v.SetLine(line)
	case *ast.Conditional:
		v.SetLine(line)
	case *ast.While:
		v.SetLine(line)
	case *ast.Ternary:
		v.SetLine(line)
	case *ast.Binary:
		v.SetLine(line)
	case *ast.Unary:
		v.SetLine(line)
	case *ast.ControlFlow:
		v.SetLine(line)
	case *ast.FunctionDef:
		v.SetLine(line)
	case *ast.FunctionCall:
		v.SetLine(line)
	case *ast.Attribute:
		v.SetLine(line)
	case *ast.TypeOperator:
		v.SetLine(line)
	}
}

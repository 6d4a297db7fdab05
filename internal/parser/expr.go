package parser

import (
	"github.com/patterncore/patternlang/internal/ast"
	"github.com/patterncore/patternlang/internal/langerr"
	"github.com/patterncore/patternlang/internal/token"
)

// parseExpression is the entry point for the full operator-precedence chain
// described in spec.md §4.3, lowest (ternary) to highest (member/index/call).
func (p *Parser) parseExpression() (ast.Node, error) {
	return p.parseTernary()
}

func (p *Parser) parseTernary() (ast.Node, error) {
	line := p.curLine()
	cond, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}
	if !p.checkOp("?") {
		return cond, nil
	}
	p.advance()
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.KindOperator, ":", "':'"); err != nil {
		return nil, err
	}
	els, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	node := &ast.Ternary{Cond: cond, Then: then, Else: els}
	setLine(node, line)
	return node, nil
}

// parseLeftAssoc parses one precedence tier: a left-associative chain of
// any operator in ops, built on top of the next tier down.
func (p *Parser) parseLeftAssoc(ops []string, next func(p *Parser) (ast.Node, error)) (ast.Node, error) {
	line := p.curLine()
	left, err := next(p)
	if err != nil {
		return nil, err
	}
	for {
		matched := ""
		for _, op := range ops {
			if p.checkOp(op) {
				matched = op
				break
			}
		}
		if matched == "" {
			return left, nil
		}
		p.advance()
		right, err := next(p)
		if err != nil {
			return nil, err
		}
		node := &ast.Binary{Op: matched, Left: left, Right: right}
		setLine(node, line)
		left = node
	}
}

func (p *Parser) parseLogicalOr() (ast.Node, error) {
	return p.parseLeftAssoc([]string{"||"}, (*Parser).parseLogicalXor)
}
func (p *Parser) parseLogicalXor() (ast.Node, error) {
	return p.parseLeftAssoc([]string{"^^"}, (*Parser).parseLogicalAnd)
}
func (p *Parser) parseLogicalAnd() (ast.Node, error) {
	return p.parseLeftAssoc([]string{"&&"}, (*Parser).parseBitOr)
}
func (p *Parser) parseBitOr() (ast.Node, error) {
	return p.parseLeftAssoc([]string{"|"}, (*Parser).parseBitXor)
}
func (p *Parser) parseBitXor() (ast.Node, error) {
	return p.parseLeftAssoc([]string{"^"}, (*Parser).parseBitAnd)
}
func (p *Parser) parseBitAnd() (ast.Node, error) {
	return p.parseLeftAssoc([]string{"&"}, (*Parser).parseEquality)
}
func (p *Parser) parseEquality() (ast.Node, error) {
	return p.parseLeftAssoc([]string{"==", "!="}, (*Parser).parseRelational)
}
func (p *Parser) parseRelational() (ast.Node, error) {
	return p.parseLeftAssoc([]string{"<=", ">=", "<", ">"}, (*Parser).parseShift)
}
func (p *Parser) parseShift() (ast.Node, error) {
	return p.parseLeftAssoc([]string{"<<", ">>"}, (*Parser).parseAdditive)
}
func (p *Parser) parseAdditive() (ast.Node, error) {
	return p.parseLeftAssoc([]string{"+", "-"}, (*Parser).parseMultiplicative)
}
func (p *Parser) parseMultiplicative() (ast.Node, error) {
	return p.parseLeftAssoc([]string{"*", "/", "%"}, (*Parser).parseUnary)
}

func (p *Parser) parseUnary() (ast.Node, error) {
	line := p.curLine()
	for _, op := range []string{"!", "~", "+", "-"} {
		if p.checkOp(op) {
			p.advance()
			operand, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			node := &ast.Unary{Op: op, Operand: operand}
			setLine(node, line)
			return node, nil
		}
	}
	return p.parsePower()
}

// parsePower handles the right-associative `**` operator, binding tighter
// than unary prefixes but looser than postfix member/index/call.
func (p *Parser) parsePower() (ast.Node, error) {
	line := p.curLine()
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if !p.checkOp("**") {
		return base, nil
	}
	p.advance()
	exp, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	node := &ast.Binary{Op: "**", Left: base, Right: exp}
	setLine(node, line)
	return node, nil
}

// parsePostfix handles member access (`.`), indexing (`[expr]`), and calls
// (`(args)`) chained onto a primary expression.
func (p *Parser) parsePostfix() (ast.Node, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.checkOp("."):
			p.advance()
			field, err := p.expect(token.KindIdent, "", "member name")
			if err != nil {
				return nil, err
			}
			path, ok := expr.(*ast.Path)
			if !ok {
				path = &ast.Path{}
				setLine(path, expr.Line())
			}
			path.Segments = append(path.Segments, ast.PathSegment{Name: field.Text})
			expr = path
		case p.checkSep("["):
			p.advance()
			idx, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.KindSeparator, "]", "']'"); err != nil {
				return nil, err
			}
			path, ok := expr.(*ast.Path)
			if !ok || len(path.Segments) == 0 {
				path = &ast.Path{Segments: []ast.PathSegment{{}}}
				setLine(path, expr.Line())
			}
			path.Segments[len(path.Segments)-1].Index = idx
			expr = path
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Node, error) {
	line := p.curLine()

	switch {
	case p.checkSep("("):
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.KindSeparator, ")", "')'"); err != nil {
			return nil, err
		}
		return inner, nil

	case p.check(token.KindInteger, ""):
		tok := p.advance()
		lit := ast.NewLiteral(line)
		lit.Kind = token.KindInteger
		lit.Int = tok.Int
		return lit, nil

	case p.check(token.KindFloat, ""):
		tok := p.advance()
		lit := ast.NewLiteral(line)
		lit.Kind = token.KindFloat
		lit.Float = tok.Float
		return lit, nil

	case p.check(token.KindString, ""):
		tok := p.advance()
		lit := ast.NewLiteral(line)
		lit.Kind = token.KindString
		lit.Str = tok.Str
		return lit, nil

	case p.check(token.KindChar, ""):
		tok := p.advance()
		lit := ast.NewLiteral(line)
		lit.Kind = token.KindChar
		lit.Int = token.IntValue{Lo: uint64(tok.Str[0])}
		if tok.Wide {
			lit.Int.Width = 2
		} else {
			lit.Int.Width = 1
		}
		return lit, nil

	case p.checkKw("true") || p.checkKw("false"):
		tok := p.advance()
		lit := ast.NewLiteral(line)
		lit.Kind = token.KindKeyword
		lit.Bool = tok.Text == "true"
		return lit, nil

	case p.checkKw("sizeof"):
		p.advance()
		if _, err := p.expect(token.KindSeparator, "(", "'('"); err != nil {
			return nil, err
		}
		var operand ast.Node
		var err error
		if p.startsTypeRef() {
			operand, err = p.parseTypeRef()
		} else {
			operand, err = p.parseExpression()
		}
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.KindSeparator, ")", "')'"); err != nil {
			return nil, err
		}
		node := &ast.TypeOperator{Kind: ast.OpSizeof, Operand: operand}
		setLine(node, line)
		return node, nil

	case p.checkKw("addressof"):
		p.advance()
		if _, err := p.expect(token.KindSeparator, "(", "'('"); err != nil {
			return nil, err
		}
		operand, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.KindSeparator, ")", "')'"); err != nil {
			return nil, err
		}
		node := &ast.TypeOperator{Kind: ast.OpAddressof, Operand: operand}
		setLine(node, line)
		return node, nil

	case p.checkKw("parent"):
		p.advance()
		path := &ast.Path{Segments: []ast.PathSegment{{Parent: true}}}
		setLine(path, line)
		return p.continueDottedPath(path)

	case p.checkKw("this"):
		p.advance()
		path := &ast.Path{Segments: []ast.PathSegment{{ThisRef: true}}}
		setLine(path, line)
		return p.continueDottedPath(path)

	case p.check(token.KindIdent, ""):
		name := p.advance()
		if p.checkSep("(") {
			p.advance()
			call := &ast.FunctionCall{Name: name.Text}
			setLine(call, line)
			for !p.checkSep(")") {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
				if p.checkSep(",") {
					p.advance()
					continue
				}
				break
			}
			if _, err := p.expect(token.KindSeparator, ")", "')'"); err != nil {
				return nil, err
			}
			return call, nil
		}
		path := &ast.Path{Segments: []ast.PathSegment{{Name: name.Text}}}
		setLine(path, line)
		return path, nil

	default:
		return nil, langerr.At(langerr.KindParse, line, "expected expression, found "+p.cur().String())
	}
}

// continueDottedPath allows `parent.field` / `this.field` chains to fold
// into the same Path the postfix loop builds for plain identifiers.
func (p *Parser) continueDottedPath(path *ast.Path) (ast.Node, error) {
	for p.checkOp(".") {
		p.advance()
		field, err := p.expect(token.KindIdent, "", "member name")
		if err != nil {
			return nil, err
		}
		path.Segments = append(path.Segments, ast.PathSegment{Name: field.Text})
	}
	return path, nil
}

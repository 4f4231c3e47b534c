package parser

import (
	"fmt"

	"github.com/viant/flowgraph/lang/ast"
	"github.com/viant/flowgraph/lang/lexer"
)

// parseExpr is the entry point for a single expression (no bare top-level
// comma); precedence from lowest to highest:
//
//	or -> and -> not -> comparison (single, non-chained) -> additive ->
//	term -> unary -> postfix -> primary
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.OR {
		pos := p.advance().Pos
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Meta: ast.Meta{Pos: ast.At(pos)}, Op: "or", X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.AND {
		pos := p.advance().Pos
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Meta: ast.Meta{Pos: ast.At(pos)}, Op: "and", X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.cur().Kind == lexer.NOT {
		pos := p.advance().Pos
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOp{Meta: ast.Meta{Pos: ast.At(pos)}, Op: "not", X: x}, nil
	}
	return p.parseComparison()
}

func isCompareOp(k lexer.Kind) bool {
	switch k {
	case lexer.EQ, lexer.NEQ, lexer.LT, lexer.GT, lexer.LE, lexer.GE, lexer.IS, lexer.IN:
		return true
	}
	return false
}

func compareOpText(k lexer.Kind) string {
	switch k {
	case lexer.EQ:
		return "=="
	case lexer.NEQ:
		return "!="
	case lexer.LT:
		return "<"
	case lexer.GT:
		return ">"
	case lexer.LE:
		return "<="
	case lexer.GE:
		return ">="
	case lexer.IS:
		return "is"
	case lexer.IN:
		return "in"
	}
	return "?"
}

// parseComparison parses at most one comparison operator; a second one
// immediately following is an InstrumentationFailure (§4.4.4 "Chained
// comparisons are rejected").
func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if !isCompareOp(p.cur().Kind) {
		return left, nil
	}
	pos := p.cur().Pos
	op := compareOpText(p.advance().Kind)
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if isCompareOp(p.cur().Kind) {
		return nil, fmt.Errorf("parser: chained comparisons are rejected at offset %d", p.cur().Pos)
	}
	return &ast.Compare{Meta: ast.Meta{Pos: ast.At(pos)}, Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.PLUS || p.cur().Kind == lexer.MINUS {
		opTok := p.advance()
		op := "+"
		if opTok.Kind == lexer.MINUS {
			op = "-"
		}
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Meta: ast.Meta{Pos: ast.At(opTok.Pos)}, Op: op, X: left, Y: right}
	}
	return left, nil
}

func (p *Parser) parseTerm() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().Kind == lexer.STAR || p.cur().Kind == lexer.SLASH || p.cur().Kind == lexer.PERCENT {
		opTok := p.advance()
		op := map[lexer.Kind]string{lexer.STAR: "*", lexer.SLASH: "/", lexer.PERCENT: "%"}[opTok.Kind]
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinOp{Meta: ast.Meta{Pos: ast.At(opTok.Pos)}, Op: op, X: left, Y: right}
	}
	return left, nil
}

// parseUnary special-cases a leading '-' directly before a numeric literal:
// per §4.4.4 "negations of pure numeric literals are left as literals", this
// never becomes a UnaryOp call once normalised (see lang/normalize).
func (p *Parser) parseUnary() (ast.Expr, error) {
	if p.cur().Kind == lexer.MINUS {
		pos := p.advance().Pos
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if lit, ok := x.(*ast.IntLit); ok {
			return &ast.IntLit{Meta: ast.Meta{Pos: ast.At(pos)}, Value: -lit.Value}, nil
		}
		if lit, ok := x.(*ast.FloatLit); ok {
			return &ast.FloatLit{Meta: ast.Meta{Pos: ast.At(pos)}, Value: -lit.Value}, nil
		}
		return &ast.UnaryOp{Meta: ast.Meta{Pos: ast.At(pos)}, Op: "-", X: x}, nil
	}
	return p.parsePostfix()
}

// parsePostfix handles attribute access, subscripting and calls, left to
// right, all of which the normaliser turns into plain calls (§4.4.2-3).
func (p *Parser) parsePostfix() (ast.Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case lexer.DOT:
			p.advance()
			name, err := p.expect(lexer.IDENT, "attribute name")
			if err != nil {
				return nil, err
			}
			expr = &ast.Attribute{Meta: ast.Meta{Pos: ast.At(name.Pos)}, Value: expr, Attr: name.Text}
		case lexer.LBRACK:
			pos := p.advance().Pos
			idx, err := p.parseIndex()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBRACK, "']'"); err != nil {
				return nil, err
			}
			expr = &ast.Subscript{Meta: ast.Meta{Pos: ast.At(pos)}, Value: expr, Index: idx}
		case lexer.LPAREN:
			pos := p.advance().Pos
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
				return nil, err
			}
			expr = &ast.Call{Meta: ast.Meta{Pos: ast.At(pos)}, Func: expr, Args: args}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Arg, error) {
	var args []ast.Arg
	for p.cur().Kind != lexer.RPAREN {
		var a ast.Arg
		switch {
		case p.cur().Kind == lexer.STAR:
			p.advance()
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			a = ast.Arg{Value: v, Stars: 1}
		case p.cur().Kind == lexer.DSTAR:
			p.advance()
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			a = ast.Arg{Value: v, Stars: 2}
		case p.cur().Kind == lexer.IDENT && p.peek(1).Kind == lexer.ASSIGN:
			name := p.advance().Text
			p.advance() // '='
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			a = ast.Arg{Value: v, Name: name}
		default:
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			a = ast.Arg{Value: v}
		}
		args = append(args, a)
		if p.cur().Kind == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}
	return args, nil
}

// parseIndex parses the contents of `[...]`: a single index, a slice
// (lo:hi:step, any part omittable), or (via comma) a multi-dimensional tuple
// of indices (§4.4.3).
func (p *Parser) parseIndex() (ast.Expr, error) {
	var parts []ast.Expr
	for {
		part, err := p.parseSliceOrExpr()
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
		if p.cur().Kind == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return &ast.TupleIndex{Elts: parts}, nil
}

func (p *Parser) atIndexBoundary() bool {
	k := p.cur().Kind
	return k == lexer.COLON || k == lexer.RBRACK || k == lexer.COMMA
}

func (p *Parser) parseSliceOrExpr() (ast.Expr, error) {
	var lower, upper, step ast.Expr
	var err error
	if !p.atIndexBoundary() {
		lower, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if p.cur().Kind != lexer.COLON {
		return lower, nil
	}
	pos := p.advance().Pos
	if !p.atIndexBoundary() {
		upper, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if p.cur().Kind == lexer.COLON {
		p.advance()
		if !p.atIndexBoundary() {
			step, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
	}
	return &ast.Slice{Meta: ast.Meta{Pos: ast.At(pos)}, Lower: lower, Upper: upper, Step: step}, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case lexer.INT:
		p.advance()
		return &ast.IntLit{Meta: ast.Meta{Pos: ast.At(tok.Pos)}, Value: tok.Int}, nil
	case lexer.FLOAT:
		p.advance()
		return &ast.FloatLit{Meta: ast.Meta{Pos: ast.At(tok.Pos)}, Value: tok.Flt}, nil
	case lexer.STRING:
		p.advance()
		return &ast.StringLit{Meta: ast.Meta{Pos: ast.At(tok.Pos)}, Value: tok.Text}, nil
	case lexer.TRUE:
		p.advance()
		return &ast.BoolLit{Meta: ast.Meta{Pos: ast.At(tok.Pos)}, Value: true}, nil
	case lexer.FALSE:
		p.advance()
		return &ast.BoolLit{Meta: ast.Meta{Pos: ast.At(tok.Pos)}, Value: false}, nil
	case lexer.NONE:
		p.advance()
		return &ast.NoneLit{Meta: ast.Meta{Pos: ast.At(tok.Pos)}}, nil
	case lexer.IDENT:
		p.advance()
		return &ast.Ident{Meta: ast.Meta{Pos: ast.At(tok.Pos)}, Name: tok.Text}, nil
	case lexer.LAMBDA:
		return p.parseLambda()
	case lexer.LPAREN:
		return p.parseParenOrTuple()
	case lexer.LBRACK:
		return p.parseListLit()
	case lexer.LBRACE:
		return p.parseBraceLit()
	}
	return nil, fmt.Errorf("parser: unexpected token %q at offset %d", tok.Text, tok.Pos)
}

func (p *Parser) parseLambda() (ast.Expr, error) {
	pos := p.advance().Pos // 'lambda'
	var params []ast.Param
	for p.cur().Kind != lexer.COLON {
		name, err := p.expect(lexer.IDENT, "lambda parameter")
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: name.Text})
		if p.cur().Kind == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.COLON, "':'"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.Lambda{Meta: ast.Meta{Pos: ast.At(pos)}, Params: params, Body: body}, nil
}

func (p *Parser) parseParenOrTuple() (ast.Expr, error) {
	pos := p.advance().Pos // '('
	if p.cur().Kind == lexer.RPAREN {
		p.advance()
		return &ast.TupleLit{Meta: ast.Meta{Pos: ast.At(pos)}}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == lexer.COMMA {
		elts := []ast.Expr{first}
		for p.cur().Kind == lexer.COMMA {
			p.advance()
			if p.cur().Kind == lexer.RPAREN {
				break
			}
			next, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elts = append(elts, next)
		}
		if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return &ast.TupleLit{Meta: ast.Meta{Pos: ast.At(pos)}, Elts: elts}, nil
	}
	if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
		return nil, err
	}
	return first, nil
}

func (p *Parser) parseListLit() (ast.Expr, error) {
	pos := p.advance().Pos // '['
	var elts []ast.Expr
	for p.cur().Kind != lexer.RBRACK {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
		if p.cur().Kind == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RBRACK, "']'"); err != nil {
		return nil, err
	}
	return &ast.ListLit{Meta: ast.Meta{Pos: ast.At(pos)}, Elts: elts}, nil
}

// parseBraceLit parses both dict and set literals; `{}` is the empty dict.
func (p *Parser) parseBraceLit() (ast.Expr, error) {
	pos := p.advance().Pos // '{'
	if p.cur().Kind == lexer.RBRACE {
		p.advance()
		return &ast.DictLit{Meta: ast.Meta{Pos: ast.At(pos)}}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind == lexer.COLON {
		p.advance()
		firstVal, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		keys := []ast.Expr{first}
		vals := []ast.Expr{firstVal}
		for p.cur().Kind == lexer.COMMA {
			p.advance()
			if p.cur().Kind == lexer.RBRACE {
				break
			}
			k, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.COLON, "':'"); err != nil {
				return nil, err
			}
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			keys = append(keys, k)
			vals = append(vals, v)
		}
		if _, err := p.expect(lexer.RBRACE, "'}'"); err != nil {
			return nil, err
		}
		return &ast.DictLit{Meta: ast.Meta{Pos: ast.At(pos)}, Keys: keys, Values: vals}, nil
	}
	elts := []ast.Expr{first}
	for p.cur().Kind == lexer.COMMA {
		p.advance()
		if p.cur().Kind == lexer.RBRACE {
			break
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if _, err := p.expect(lexer.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return &ast.SetLit{Meta: ast.Meta{Pos: ast.At(pos)}, Elts: elts}, nil
}

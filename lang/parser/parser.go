// Package parser builds lang/ast trees from lexer tokens with a small
// hand-written recursive-descent/precedence-climbing parser.
package parser

import (
	"fmt"

	"github.com/viant/flowgraph/lang/ast"
	"github.com/viant/flowgraph/lang/lexer"
)

// Parser consumes a token slice and produces a *ast.Program.
type Parser struct {
	toks []lexer.Token
	pos  int
}

// Parse lexes and parses src into a Program.
func Parse(src []byte) (*ast.Program, error) {
	toks, err := lexer.Tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("parser: %w", err)
	}
	p := &Parser{toks: toks}
	return p.parseProgram()
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) peek(n int) lexer.Token {
	i := p.pos + n
	if i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[i]
}
func (p *Parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k lexer.Kind, what string) (lexer.Token, error) {
	if p.cur().Kind != k {
		return lexer.Token{}, fmt.Errorf("parser: expected %s at offset %d, got %q", what, p.cur().Pos, p.cur().Text)
	}
	return p.advance(), nil
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for p.cur().Kind != lexer.EOF {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		prog.Body = append(prog.Body, stmt)
	}
	return prog, nil
}

func (p *Parser) parseBlock() ([]ast.Stmt, error) {
	if _, err := p.expect(lexer.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	var body []ast.Stmt
	for p.cur().Kind != lexer.RBRACE {
		if p.cur().Kind == lexer.EOF {
			return nil, fmt.Errorf("parser: unterminated block")
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
	}
	p.advance() // '}'
	return body, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch p.cur().Kind {
	case lexer.DEF:
		return p.parseFunctionDef()
	case lexer.CLASS:
		return p.parseClassDef()
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.FOR:
		return p.parseFor()
	case lexer.RETURN:
		pos := p.advance().Pos
		var val ast.Expr
		if p.cur().Kind != lexer.SEMI {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			val = v
		}
		if _, err := p.expect(lexer.SEMI, "';'"); err != nil {
			return nil, err
		}
		return &ast.Return{Meta: ast.Meta{Pos: ast.At(pos)}, Value: val}, nil
	case lexer.DEL:
		pos := p.advance().Pos
		var targets []ast.Expr
		for {
			t, err := p.parsePostfix()
			if err != nil {
				return nil, err
			}
			targets = append(targets, t)
			if p.cur().Kind == lexer.COMMA {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.SEMI, "';'"); err != nil {
			return nil, err
		}
		return &ast.Delete{Meta: ast.Meta{Pos: ast.At(pos)}, Targets: targets}, nil
	case lexer.PASS:
		pos := p.advance().Pos
		_, err := p.expect(lexer.SEMI, "';'")
		return &ast.Pass{Meta: ast.Meta{Pos: ast.At(pos)}}, err
	case lexer.BREAK:
		pos := p.advance().Pos
		_, err := p.expect(lexer.SEMI, "';'")
		return &ast.Break{Meta: ast.Meta{Pos: ast.At(pos)}}, err
	case lexer.CONTINUE:
		pos := p.advance().Pos
		_, err := p.expect(lexer.SEMI, "';'")
		return &ast.Continue{Meta: ast.Meta{Pos: ast.At(pos)}}, err
	default:
		return p.parseSimpleStmt()
	}
}

// parseSimpleStmt handles plain expression statements, assignments (including
// chained multiple targets, §4.4.1) and augmented assignment.
func (p *Parser) parseSimpleStmt() (ast.Stmt, error) {
	pos := p.cur().Pos
	first, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	switch p.cur().Kind {
	case lexer.ASSIGN:
		targets := []ast.Expr{first}
		for p.cur().Kind == lexer.ASSIGN {
			p.advance()
			next, err := p.parseExprList()
			if err != nil {
				return nil, err
			}
			targets = append(targets, next)
		}
		if _, err := p.expect(lexer.SEMI, "';'"); err != nil {
			return nil, err
		}
		value := targets[len(targets)-1]
		targets = targets[:len(targets)-1]
		return &ast.Assign{Meta: ast.Meta{Pos: ast.At(pos)}, Targets: targets, Value: value}, nil
	case lexer.PLUSEQ, lexer.MINUSEQ, lexer.STAREQ, lexer.SLASHEQ, lexer.PERCENTEQ:
		op := augOp(p.advance().Kind)
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.SEMI, "';'"); err != nil {
			return nil, err
		}
		return &ast.AugAssign{Meta: ast.Meta{Pos: ast.At(pos)}, Target: first, Op: op, Value: value}, nil
	default:
		if _, err := p.expect(lexer.SEMI, "';'"); err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Meta: ast.Meta{Pos: ast.At(pos)}, X: first}, nil
	}
}

func augOp(k lexer.Kind) string {
	switch k {
	case lexer.PLUSEQ:
		return "+"
	case lexer.MINUSEQ:
		return "-"
	case lexer.STAREQ:
		return "*"
	case lexer.SLASHEQ:
		return "/"
	case lexer.PERCENTEQ:
		return "%"
	}
	return "?"
}

// parseExprList parses one or more comma-separated expressions; more than
// one collapses into a TupleLit pattern (assignment targets, §4.4.1).
func (p *Parser) parseExprList() (ast.Expr, error) {
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != lexer.COMMA {
		return first, nil
	}
	elts := []ast.Expr{first}
	for p.cur().Kind == lexer.COMMA {
		p.advance()
		if isStmtTerminator(p.cur().Kind) {
			break
		}
		next, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elts = append(elts, next)
	}
	return &ast.TupleLit{Elts: elts}, nil
}

func isStmtTerminator(k lexer.Kind) bool {
	return k == lexer.ASSIGN || k == lexer.SEMI || k == lexer.EOF
}

func (p *Parser) parseFunctionDef() (ast.Stmt, error) {
	pos := p.advance().Pos // 'def'
	name, err := p.expect(lexer.IDENT, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN, "'('"); err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDef{Meta: ast.Meta{Pos: ast.At(pos)}, Name: name.Text, Params: params, Body: body}, nil
}

func (p *Parser) parseParams() ([]ast.Param, error) {
	var params []ast.Param
	for p.cur().Kind != lexer.RPAREN {
		stars := 0
		if p.cur().Kind == lexer.STAR {
			stars = 1
			p.advance()
		} else if p.cur().Kind == lexer.DSTAR {
			stars = 2
			p.advance()
		}
		name, err := p.expect(lexer.IDENT, "parameter name")
		if err != nil {
			return nil, err
		}
		var def ast.Expr
		if p.cur().Kind == lexer.ASSIGN {
			p.advance()
			def, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		params = append(params, ast.Param{Name: name.Text, Stars: stars, Default: def})
		if p.cur().Kind == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}
	return params, nil
}

func (p *Parser) parseClassDef() (ast.Stmt, error) {
	pos := p.advance().Pos // 'class'
	name, err := p.expect(lexer.IDENT, "class name")
	if err != nil {
		return nil, err
	}
	var bases []string
	if p.cur().Kind == lexer.LPAREN {
		p.advance()
		for p.cur().Kind != lexer.RPAREN {
			b, err := p.expect(lexer.IDENT, "base class name")
			if err != nil {
				return nil, err
			}
			bases = append(bases, b.Text)
			if p.cur().Kind == lexer.COMMA {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.RPAREN, "')'"); err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ClassDef{Meta: ast.Meta{Pos: ast.At(pos)}, Name: name.Text, Bases: bases, Body: body}, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	pos := p.advance().Pos // 'if'
	test, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var orelse []ast.Stmt
	if p.cur().Kind == lexer.ELSE {
		p.advance()
		if p.cur().Kind == lexer.IF {
			elseIf, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			orelse = []ast.Stmt{elseIf}
		} else {
			orelse, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
		}
	}
	return &ast.If{Meta: ast.Meta{Pos: ast.At(pos)}, Test: test, Body: body, Orelse: orelse}, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	pos := p.advance().Pos
	test, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.While{Meta: ast.Meta{Pos: ast.At(pos)}, Test: test, Body: body}, nil
}

func (p *Parser) parseFor() (ast.Stmt, error) {
	pos := p.advance().Pos
	target, err := p.parseExprList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.IN, "'in'"); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.For{Meta: ast.Meta{Pos: ast.At(pos)}, Target: target, Iter: iter, Body: body}, nil
}

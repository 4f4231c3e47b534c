// Package normalize lowers parsed lang/ast trees into the restricted form
// the tracer runtime expects: every attribute access, subscript, operator,
// in-place operator and container literal becomes an ordinary call to a
// dunder-named builtin, and every assignment has exactly one target. This is
// the AST normaliser of the data-flow model: once normalised, "every
// operation the program performs is a call", which is what lets the tracer
// runtime record Call/Return events uniformly instead of special-casing
// syntax.
package normalize

import (
	"fmt"

	"github.com/viant/flowgraph/lang/ast"
)

type normalizer struct {
	tmp int
}

// Program normalises every statement in prog's body and returns a new
// *ast.Program; prog itself is left untouched.
func Program(prog *ast.Program) (*ast.Program, error) {
	n := &normalizer{}
	body, err := n.block(prog.Body)
	if err != nil {
		return nil, err
	}
	return &ast.Program{Meta: prog.Meta, Body: body}, nil
}

func (n *normalizer) newTemp() string {
	n.tmp++
	return fmt.Sprintf("__tmp%d__", n.tmp)
}

func (n *normalizer) block(stmts []ast.Stmt) ([]ast.Stmt, error) {
	var out []ast.Stmt
	for _, s := range stmts {
		lowered, err := n.stmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, lowered...)
	}
	return out, nil
}

func (n *normalizer) stmt(s ast.Stmt) ([]ast.Stmt, error) {
	switch t := s.(type) {
	case *ast.ExprStmt:
		x, err := n.expr(t.X)
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{&ast.ExprStmt{Meta: t.Meta, X: x}}, nil

	case *ast.Assign:
		return n.assign(t)

	case *ast.AugAssign:
		return n.augAssign(t)

	case *ast.Delete:
		return n.del(t)

	case *ast.If:
		test, err := n.expr(t.Test)
		if err != nil {
			return nil, err
		}
		body, err := n.block(t.Body)
		if err != nil {
			return nil, err
		}
		orelse, err := n.block(t.Orelse)
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{&ast.If{Meta: t.Meta, Test: test, Body: body, Orelse: orelse}}, nil

	case *ast.While:
		test, err := n.expr(t.Test)
		if err != nil {
			return nil, err
		}
		body, err := n.block(t.Body)
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{&ast.While{Meta: t.Meta, Test: test, Body: body}}, nil

	case *ast.For:
		iter, err := n.expr(t.Iter)
		if err != nil {
			return nil, err
		}
		body, err := n.block(t.Body)
		if err != nil {
			return nil, err
		}
		// The loop target is a binding pattern, not a value expression; it is
		// resolved the same way an assignment target is (§4.4.1/§4.4.3
		// destructuring), so it is left to the interpreter's own destructuring
		// bind rather than lowered to calls here.
		return []ast.Stmt{&ast.For{Meta: t.Meta, Target: t.Target, Iter: iter, Body: body}}, nil

	case *ast.FunctionDef:
		body, err := n.block(t.Body)
		if err != nil {
			return nil, err
		}
		params, err := n.params(t.Params)
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{&ast.FunctionDef{Meta: t.Meta, Name: t.Name, Params: params, Body: body}}, nil

	case *ast.ClassDef:
		body, err := n.block(t.Body)
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{&ast.ClassDef{Meta: t.Meta, Name: t.Name, Bases: t.Bases, Body: body}}, nil

	case *ast.Return:
		if t.Value == nil {
			return []ast.Stmt{t}, nil
		}
		v, err := n.expr(t.Value)
		if err != nil {
			return nil, err
		}
		return []ast.Stmt{&ast.Return{Meta: t.Meta, Value: v}}, nil

	case *ast.Pass, *ast.Break, *ast.Continue:
		return []ast.Stmt{s}, nil

	default:
		return nil, fmt.Errorf("normalize: unsupported statement %T", s)
	}
}

func (n *normalizer) params(params []ast.Param) ([]ast.Param, error) {
	out := make([]ast.Param, len(params))
	for i, p := range params {
		if p.Default != nil {
			d, err := n.expr(p.Default)
			if err != nil {
				return nil, err
			}
			p.Default = d
		}
		out[i] = p
	}
	return out, nil
}

// ---------------------------------------------------------------- Assignment (§4.4.1)

func (n *normalizer) assign(a *ast.Assign) ([]ast.Stmt, error) {
	value, err := n.expr(a.Value)
	if err != nil {
		return nil, err
	}
	if len(a.Targets) == 1 {
		return n.assignTo(a.Targets[0], value)
	}

	// Multiple chained targets: eliminate by binding the value once and then
	// assigning every target from that binding (§4.4.1).
	tmp := n.newTemp()
	out := []ast.Stmt{&ast.Assign{Targets: []ast.Expr{&ast.Ident{Name: tmp}}, Value: value}}
	for _, target := range a.Targets {
		stmts, err := n.assignTo(target, &ast.Ident{Name: tmp})
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

// assignTo lowers one assignment target. Plain identifiers stay plain
// assignment (there is no aggregate to call a setter on); attribute and
// subscript targets become __setattr__/__setitem__ calls (§4.4.2/§4.4.3); a
// flat tuple/list-of-idents pattern (`x, y = ...`) is left as a pattern
// target rather than destructured, so the tracer sees the pattern literal of
// §4.4.7 and the Return it consumes can still carry multiple_values (§3,
// §8 scenario 4); only a pattern with a nested/non-ident element falls back
// to positional __getitem__ destructuring, since the interpreter can only
// bind a flat name pattern directly.
func (n *normalizer) assignTo(target ast.Expr, value ast.Expr) ([]ast.Stmt, error) {
	switch t := target.(type) {
	case *ast.Ident:
		return []ast.Stmt{&ast.Assign{Targets: []ast.Expr{t}, Value: value}}, nil

	case *ast.Attribute:
		obj, err := n.expr(t.Value)
		if err != nil {
			return nil, err
		}
		call := dunderCall("__setattr__", obj, strLit(t.Attr), value)
		return []ast.Stmt{&ast.ExprStmt{Meta: t.Meta, X: call}}, nil

	case *ast.Subscript:
		obj, err := n.expr(t.Value)
		if err != nil {
			return nil, err
		}
		idx, err := n.indexExpr(t.Index)
		if err != nil {
			return nil, err
		}
		call := dunderCall("__setitem__", obj, idx, value)
		return []ast.Stmt{&ast.ExprStmt{Meta: t.Meta, X: call}}, nil

	case *ast.TupleLit:
		if identPattern(t.Elts) {
			return []ast.Stmt{&ast.Assign{Targets: []ast.Expr{t}, Value: value}}, nil
		}
		return n.destructure(t.Elts, value)
	case *ast.ListLit:
		if identPattern(t.Elts) {
			return []ast.Stmt{&ast.Assign{Targets: []ast.Expr{t}, Value: value}}, nil
		}
		return n.destructure(t.Elts, value)

	default:
		return nil, fmt.Errorf("normalize: unsupported assignment target %T", target)
	}
}

// identPattern reports whether every element of a tuple/list assignment
// target is a plain identifier, the only shape the interpreter's pattern
// binding (`trace/interp.go`'s patternNames) understands directly.
func identPattern(elts []ast.Expr) bool {
	for _, e := range elts {
		if _, ok := e.(*ast.Ident); !ok {
			return false
		}
	}
	return len(elts) > 0
}

func (n *normalizer) destructure(targets []ast.Expr, value ast.Expr) ([]ast.Stmt, error) {
	tmp := n.newTemp()
	out := []ast.Stmt{&ast.Assign{Targets: []ast.Expr{&ast.Ident{Name: tmp}}, Value: value}}
	for i, elt := range targets {
		item := dunderCall("__getitem__", &ast.Ident{Name: tmp}, intLit(int64(i)))
		stmts, err := n.assignTo(elt, item)
		if err != nil {
			return nil, err
		}
		out = append(out, stmts...)
	}
	return out, nil
}

// ---------------------------------------------------------------- Augmented assignment (§4.4.5)

func (n *normalizer) augAssign(a *ast.AugAssign) ([]ast.Stmt, error) {
	value, err := n.expr(a.Value)
	if err != nil {
		return nil, err
	}
	op := dunderOp(a.Op)

	switch t := a.Target.(type) {
	case *ast.Ident:
		call := dunderCall(op, t, value)
		return []ast.Stmt{&ast.Assign{Targets: []ast.Expr{t}, Value: call}}, nil

	case *ast.Attribute:
		objTmp := n.newTemp()
		obj, err := n.expr(t.Value)
		if err != nil {
			return nil, err
		}
		out := []ast.Stmt{&ast.Assign{Targets: []ast.Expr{&ast.Ident{Name: objTmp}}, Value: obj}}
		get := dunderCall("__getattr__", &ast.Ident{Name: objTmp}, strLit(t.Attr))
		call := dunderCall(op, get, value)
		set := dunderCall("__setattr__", &ast.Ident{Name: objTmp}, strLit(t.Attr), call)
		out = append(out, &ast.ExprStmt{Meta: t.Meta, X: set})
		return out, nil

	case *ast.Subscript:
		objTmp, idxTmp := n.newTemp(), n.newTemp()
		obj, err := n.expr(t.Value)
		if err != nil {
			return nil, err
		}
		idx, err := n.indexExpr(t.Index)
		if err != nil {
			return nil, err
		}
		out := []ast.Stmt{
			&ast.Assign{Targets: []ast.Expr{&ast.Ident{Name: objTmp}}, Value: obj},
			&ast.Assign{Targets: []ast.Expr{&ast.Ident{Name: idxTmp}}, Value: idx},
		}
		get := dunderCall("__getitem__", &ast.Ident{Name: objTmp}, &ast.Ident{Name: idxTmp})
		call := dunderCall(op, get, value)
		set := dunderCall("__setitem__", &ast.Ident{Name: objTmp}, &ast.Ident{Name: idxTmp}, call)
		out = append(out, &ast.ExprStmt{Meta: t.Meta, X: set})
		return out, nil

	default:
		return nil, fmt.Errorf("normalize: unsupported augmented-assignment target %T", a.Target)
	}
}

// ---------------------------------------------------------------- Delete

func (n *normalizer) del(d *ast.Delete) ([]ast.Stmt, error) {
	var out []ast.Stmt
	for _, target := range d.Targets {
		switch t := target.(type) {
		case *ast.Ident:
			out = append(out, &ast.Delete{Meta: t.Meta, Targets: []ast.Expr{t}})
		case *ast.Attribute:
			obj, err := n.expr(t.Value)
			if err != nil {
				return nil, err
			}
			call := dunderCall("__delattr__", obj, strLit(t.Attr))
			out = append(out, &ast.ExprStmt{Meta: t.Meta, X: call})
		case *ast.Subscript:
			obj, err := n.expr(t.Value)
			if err != nil {
				return nil, err
			}
			idx, err := n.indexExpr(t.Index)
			if err != nil {
				return nil, err
			}
			call := dunderCall("__delitem__", obj, idx)
			out = append(out, &ast.ExprStmt{Meta: t.Meta, X: call})
		default:
			return nil, fmt.Errorf("normalize: unsupported delete target %T", target)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------- Expressions

func (n *normalizer) expr(e ast.Expr) (ast.Expr, error) {
	switch t := e.(type) {
	case *ast.Ident, *ast.NoneLit, *ast.BoolLit, *ast.IntLit, *ast.FloatLit, *ast.StringLit:
		return e, nil

	case *ast.Attribute:
		obj, err := n.expr(t.Value)
		if err != nil {
			return nil, err
		}
		return dunderCall("__getattr__", obj, strLit(t.Attr)), nil

	case *ast.Subscript:
		obj, err := n.expr(t.Value)
		if err != nil {
			return nil, err
		}
		idx, err := n.indexExpr(t.Index)
		if err != nil {
			return nil, err
		}
		return dunderCall("__getitem__", obj, idx), nil

	case *ast.UnaryOp:
		x, err := n.expr(t.X)
		if err != nil {
			return nil, err
		}
		// Negation of a numeric literal is already folded by the parser
		// (§4.4.4); every other UnaryOp, including `not` and negation of a
		// non-numeric operand, becomes a dunder call.
		return dunderCall(dunderUnary(t.Op), x), nil

	case *ast.BinOp:
		x, err := n.expr(t.X)
		if err != nil {
			return nil, err
		}
		y, err := n.expr(t.Y)
		if err != nil {
			return nil, err
		}
		return dunderCall(dunderOp(t.Op), x, y), nil

	case *ast.Compare:
		l, err := n.expr(t.Left)
		if err != nil {
			return nil, err
		}
		r, err := n.expr(t.Right)
		if err != nil {
			return nil, err
		}
		return dunderCall(dunderCompare(t.Op), l, r), nil

	case *ast.Call:
		fn, err := n.expr(t.Func)
		if err != nil {
			return nil, err
		}
		args := make([]ast.Arg, len(t.Args))
		for i, a := range t.Args {
			v, err := n.expr(a.Value)
			if err != nil {
				return nil, err
			}
			args[i] = ast.Arg{Value: v, Name: a.Name, Stars: a.Stars}
		}
		return &ast.Call{Meta: t.Meta, Func: fn, Args: args}, nil

	case *ast.Lambda:
		params, err := n.params(t.Params)
		if err != nil {
			return nil, err
		}
		body, err := n.expr(t.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Lambda{Meta: t.Meta, Params: params, Body: body}, nil

	case *ast.ListLit:
		elts, err := n.exprs(t.Elts)
		if err != nil {
			return nil, err
		}
		return dunderCall("__list__", elts...), nil

	case *ast.TupleLit:
		elts, err := n.exprs(t.Elts)
		if err != nil {
			return nil, err
		}
		return dunderCall("__tuple__", elts...), nil

	case *ast.SetLit:
		elts, err := n.exprs(t.Elts)
		if err != nil {
			return nil, err
		}
		return dunderCall("__set__", elts...), nil

	case *ast.DictLit:
		var args []ast.Expr
		for i := range t.Keys {
			k, err := n.expr(t.Keys[i])
			if err != nil {
				return nil, err
			}
			v, err := n.expr(t.Values[i])
			if err != nil {
				return nil, err
			}
			args = append(args, k, v)
		}
		return dunderCall("__dict__", args...), nil

	default:
		return nil, fmt.Errorf("normalize: unsupported expression %T", e)
	}
}

func (n *normalizer) exprs(in []ast.Expr) ([]ast.Expr, error) {
	out := make([]ast.Expr, len(in))
	for i, e := range in {
		v, err := n.expr(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// indexExpr lowers a Subscript's Index: a *Slice becomes a __slice__ call
// and a *TupleIndex (multi-dimensional index, §4.4.3) becomes a __tuple__
// call of its lowered parts; anything else is a plain expression.
func (n *normalizer) indexExpr(idx ast.Expr) (ast.Expr, error) {
	switch t := idx.(type) {
	case *ast.Slice:
		lower, err := n.maybeExpr(t.Lower)
		if err != nil {
			return nil, err
		}
		upper, err := n.maybeExpr(t.Upper)
		if err != nil {
			return nil, err
		}
		step, err := n.maybeExpr(t.Step)
		if err != nil {
			return nil, err
		}
		return dunderCall("__slice__", lower, upper, step), nil
	case *ast.TupleIndex:
		elts, err := n.exprs(t.Elts)
		if err != nil {
			return nil, err
		}
		return dunderCall("__tuple__", elts...), nil
	default:
		return n.expr(idx)
	}
}

func (n *normalizer) maybeExpr(e ast.Expr) (ast.Expr, error) {
	if e == nil {
		return &ast.NoneLit{}, nil
	}
	return n.expr(e)
}

// ---------------------------------------------------------------- helpers

func dunderCall(name string, args ...ast.Expr) *ast.Call {
	callArgs := make([]ast.Arg, len(args))
	for i, a := range args {
		callArgs[i] = ast.Arg{Value: a}
	}
	return &ast.Call{Func: &ast.Ident{Name: name}, Args: callArgs}
}

func strLit(s string) *ast.StringLit { return &ast.StringLit{Value: s} }
func intLit(i int64) *ast.IntLit     { return &ast.IntLit{Value: i} }

func dunderOp(op string) string {
	switch op {
	case "+":
		return "__add__"
	case "-":
		return "__sub__"
	case "*":
		return "__mul__"
	case "/":
		return "__div__"
	case "%":
		return "__mod__"
	case "and":
		return "__and__"
	case "or":
		return "__or__"
	}
	return "__" + op + "__"
}

func dunderCompare(op string) string {
	switch op {
	case "==":
		return "__eq__"
	case "!=":
		return "__ne__"
	case "<":
		return "__lt__"
	case ">":
		return "__gt__"
	case "<=":
		return "__le__"
	case ">=":
		return "__ge__"
	case "is":
		return "__is__"
	case "in":
		return "__in__"
	}
	return "__cmp__"
}

func dunderUnary(op string) string {
	switch op {
	case "-":
		return "__neg__"
	case "not":
		return "__not__"
	}
	return "__" + op + "__"
}

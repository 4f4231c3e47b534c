package normalize

import "github.com/viant/flowgraph/lang/ast"

// Rewrite applies the AST trace transformer (§4.5) to an already-normalised
// program: every call expression, including the dunder builtin calls the
// normaliser introduced, is wrapped so it flows through a single runtime
// entry point (`__trace_call__`). The tracer (trace package) evaluates the
// callee and arguments exactly as it would for a bare call, then decides
// from the callee's resolved identity whether the call is an ordinary
// function call or one of the attribute/item access operations, emitting
// Call/Return/Access/Assign/Delete events accordingly (§3). Folding every
// call through one entry point is what lets the tracer keep a single
// pending-call substack (§4.6) instead of one discipline for user calls and
// another for builtin operations.
//
// Every argument at a call site is boxed before being added to the wrapped
// call (§9): a plain value becomes Raw, and an argument that is itself the
// result of a nested traced call is left as the nested call expression, so
// the tracer can unbox it into the nested call's Return event rather than a
// flattened value. Because this rewrite runs after normalisation, nested
// calls are already ordinary ast.Call nodes; no extra boxing node is needed
// at the AST level; the boxing discipline lives in trace/box.go, applied to
// already-evaluated arguments at call time.
func Rewrite(prog *ast.Program) (*ast.Program, error) {
	body, err := rewriteBlock(prog.Body)
	if err != nil {
		return nil, err
	}
	return &ast.Program{Meta: prog.Meta, Body: body}, nil
}

func rewriteBlock(stmts []ast.Stmt) ([]ast.Stmt, error) {
	out := make([]ast.Stmt, len(stmts))
	for i, s := range stmts {
		r, err := rewriteStmt(s)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func rewriteStmt(s ast.Stmt) (ast.Stmt, error) {
	switch t := s.(type) {
	case *ast.ExprStmt:
		x, err := rewriteExpr(t.X)
		if err != nil {
			return nil, err
		}
		return &ast.ExprStmt{Meta: t.Meta, X: x}, nil

	case *ast.Assign:
		v, err := rewriteExpr(t.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Assign{Meta: t.Meta, Targets: t.Targets, Value: v}, nil

	case *ast.Delete:
		return t, nil

	case *ast.If:
		test, err := rewriteExpr(t.Test)
		if err != nil {
			return nil, err
		}
		body, err := rewriteBlock(t.Body)
		if err != nil {
			return nil, err
		}
		orelse, err := rewriteBlock(t.Orelse)
		if err != nil {
			return nil, err
		}
		return &ast.If{Meta: t.Meta, Test: test, Body: body, Orelse: orelse}, nil

	case *ast.While:
		test, err := rewriteExpr(t.Test)
		if err != nil {
			return nil, err
		}
		body, err := rewriteBlock(t.Body)
		if err != nil {
			return nil, err
		}
		return &ast.While{Meta: t.Meta, Test: test, Body: body}, nil

	case *ast.For:
		iter, err := rewriteExpr(t.Iter)
		if err != nil {
			return nil, err
		}
		body, err := rewriteBlock(t.Body)
		if err != nil {
			return nil, err
		}
		return &ast.For{Meta: t.Meta, Target: t.Target, Iter: iter, Body: body}, nil

	case *ast.FunctionDef:
		body, err := rewriteBlock(t.Body)
		if err != nil {
			return nil, err
		}
		return &ast.FunctionDef{Meta: t.Meta, Name: t.Name, Params: t.Params, Body: body}, nil

	case *ast.ClassDef:
		body, err := rewriteBlock(t.Body)
		if err != nil {
			return nil, err
		}
		return &ast.ClassDef{Meta: t.Meta, Name: t.Name, Bases: t.Bases, Body: body}, nil

	case *ast.Return:
		if t.Value == nil {
			return t, nil
		}
		v, err := rewriteExpr(t.Value)
		if err != nil {
			return nil, err
		}
		return &ast.Return{Meta: t.Meta, Value: v}, nil

	default:
		return s, nil
	}
}

// TraceCallName is the synthetic callee every real call is rewritten to go
// through; trace.Interp recognises this name directly instead of looking it
// up in scope.
const TraceCallName = "__trace_call__"

func rewriteExpr(e ast.Expr) (ast.Expr, error) {
	switch t := e.(type) {
	case *ast.Call:
		fn, err := rewriteExpr(t.Func)
		if err != nil {
			return nil, err
		}
		args := make([]ast.Arg, len(t.Args))
		for i, a := range t.Args {
			v, err := rewriteExpr(a.Value)
			if err != nil {
				return nil, err
			}
			args[i] = ast.Arg{Value: v, Name: a.Name, Stars: a.Stars}
		}
		wrapped := append([]ast.Arg{{Value: calleeHint(t.Func)}, {Value: fn}}, args...)
		return &ast.Call{Meta: t.Meta, Func: &ast.Ident{Name: TraceCallName}, Args: wrapped}, nil

	case *ast.Lambda:
		body, err := rewriteExpr(t.Body)
		if err != nil {
			return nil, err
		}
		return &ast.Lambda{Meta: t.Meta, Params: t.Params, Body: body}, nil

	default:
		return e, nil
	}
}

// calleeHint is a best-effort static name for diagnostics and for the name
// inspector's fallback path (§4.1) when the resolved callable carries no
// better name of its own; it is never authoritative.
func calleeHint(fn ast.Expr) ast.Expr {
	if id, ok := fn.(*ast.Ident); ok {
		return &ast.StringLit{Value: id.Name}
	}
	return &ast.StringLit{Value: ""}
}

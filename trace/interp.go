// Package trace implements the tracer runtime (§4.6) and the tree-walking
// interpreter that executes a normalised, trace-rewritten program (§0): Go
// cannot embed the dynamic language's own runtime, so this interpreter
// stands in for it, executing the same Call/Return/Access/Assign/Delete
// event discipline the original traces out of a live CPython process.
package trace

import (
	"fmt"

	"github.com/viant/flowgraph/lang/ast"
	"github.com/viant/flowgraph/lang/normalize"
	"github.com/viant/flowgraph/trace/bind"
	"github.com/viant/flowgraph/trace/names"
	"github.com/viant/flowgraph/trace/objtrack"
	"github.com/viant/flowgraph/trace/value"
)

// Interp walks a normalised *ast.Program, evaluating it against a module
// scope while routing every call through the tracer (§4.5).
type Interp struct {
	module  string
	tracer  *Tracer
	tracker *objtrack.Tracker
}

// NewInterp constructs an interpreter for one module recording. tracer and
// tracker are owned by the caller (normally the recorder, §4.9) so they can
// be inspected after the run completes.
func NewInterp(module string, tracer *Tracer, tracker *objtrack.Tracker) *Interp {
	return &Interp{module: module, tracer: tracer, tracker: tracker}
}

// Tracker exposes the object tracker so builtins (and, later, the
// annotator) can track and resolve identities during evaluation.
func (i *Interp) Tracker() *objtrack.Tracker { return i.tracker }

// Run executes prog's top-level statements in a fresh module scope and
// returns that scope, so a caller can inspect module-level bindings
// afterwards.
func (i *Interp) Run(prog *ast.Program) (*value.Scope, error) {
	root := value.NewScope(i.module, "module", i.module, nil)
	RegisterBuiltins(root)
	if _, _, err := i.execBlock(root, prog.Body); err != nil {
		return nil, err
	}
	return root, nil
}

type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlReturn
	ctrlBreak
	ctrlContinue
)

func (i *Interp) execBlock(scope *value.Scope, stmts []ast.Stmt) (ctrlKind, Box, error) {
	for _, s := range stmts {
		c, box, err := i.execStmt(scope, s)
		if err != nil {
			return ctrlNone, Box{}, err
		}
		if c != ctrlNone {
			return c, box, nil
		}
	}
	return ctrlNone, Box{}, nil
}

func (i *Interp) execStmt(scope *value.Scope, s ast.Stmt) (ctrlKind, Box, error) {
	switch t := s.(type) {
	case *ast.ExprStmt:
		_, err := i.Eval(scope, t.X)
		return ctrlNone, Box{}, err

	case *ast.Assign:
		target := t.Targets[0]
		pattern, ok := patternNames(target)
		if !ok {
			return ctrlNone, Box{}, fmt.Errorf("trace: internal invariant: unnormalised assignment target %T", target)
		}
		v, err := i.evalRHS(scope, t.Value, len(pattern) > 1)
		if err != nil {
			return ctrlNone, Box{}, err
		}
		// trace_assign fires before the binding is performed (§4.6).
		i.emitAssign(scope, pattern, v)
		if len(pattern) == 1 {
			scope.Set(pattern[0], v.Value)
		} else {
			items, iterErr := iterate(v.Value)
			if iterErr != nil {
				return ctrlNone, Box{}, iterErr
			}
			if len(items) != len(pattern) {
				return ctrlNone, Box{}, fmt.Errorf("trace: cannot unpack %d values into %d targets", len(items), len(pattern))
			}
			for idx, name := range pattern {
				scope.Set(name, items[idx])
			}
		}
		return ctrlNone, Box{}, nil

	case *ast.Delete:
		for _, target := range t.Targets {
			ident, ok := target.(*ast.Ident)
			if !ok {
				return ctrlNone, Box{}, fmt.Errorf("trace: internal invariant: unnormalised delete target %T", target)
			}
			// trace_delete fires before the deletion itself (§4.6).
			if i.tracer.CurrentEmit() {
				i.tracer.emit(&Event{Kind: Delete, Seq: i.tracer.nextSeq(), ScopeID: scope.ID, Name: ident.Name})
			}
			scope.Delete(ident.Name)
		}
		return ctrlNone, Box{}, nil

	case *ast.If:
		test, err := i.Eval(scope, t.Test)
		if err != nil {
			return ctrlNone, Box{}, err
		}
		if value.Truthy(test.Value) {
			return i.execBlock(scope, t.Body)
		}
		return i.execBlock(scope, t.Orelse)

	case *ast.While:
		for {
			test, err := i.Eval(scope, t.Test)
			if err != nil {
				return ctrlNone, Box{}, err
			}
			if !value.Truthy(test.Value) {
				return ctrlNone, Box{}, nil
			}
			c, box, err := i.execBlock(scope, t.Body)
			if err != nil {
				return ctrlNone, Box{}, err
			}
			switch c {
			case ctrlBreak:
				return ctrlNone, Box{}, nil
			case ctrlReturn:
				return c, box, nil
			}
		}

	case *ast.For:
		iter, err := i.Eval(scope, t.Iter)
		if err != nil {
			return ctrlNone, Box{}, err
		}
		items, err := iterate(iter.Value)
		if err != nil {
			return ctrlNone, Box{}, err
		}
		for _, item := range items {
			if err := bindTarget(scope, t.Target, item); err != nil {
				return ctrlNone, Box{}, err
			}
			c, box, err := i.execBlock(scope, t.Body)
			if err != nil {
				return ctrlNone, Box{}, err
			}
			switch c {
			case ctrlBreak:
				return ctrlNone, Box{}, nil
			case ctrlReturn:
				return c, box, nil
			}
		}
		return ctrlNone, Box{}, nil

	case *ast.FunctionDef:
		fn := &value.Function{Module: i.module, Name: t.Name, Params: t.Params, Body: t.Body, Closure: scope}
		scope.Bind(t.Name, fn)
		return ctrlNone, Box{}, nil

	case *ast.ClassDef:
		cls := &value.Class{Module: i.module, Name: t.Name, Methods: map[string]*value.Function{}}
		for _, base := range t.Bases {
			if bv, ok := scope.Get(base); ok {
				if bc, ok := bv.(*value.Class); ok {
					cls.Bases = append(cls.Bases, bc)
				}
			}
		}
		classScope := value.NewScope(scope.ID+"."+t.Name, "class", t.Name, scope)
		if _, _, err := i.execBlock(classScope, t.Body); err != nil {
			return ctrlNone, Box{}, err
		}
		for _, name := range classScope.Names() {
			v, _ := classScope.Get(name)
			if fn, ok := v.(*value.Function); ok {
				fn.Receiver = cls
				cls.Methods[name] = fn
			}
		}
		scope.Bind(t.Name, cls)
		return ctrlNone, Box{}, nil

	case *ast.Return:
		if t.Value == nil {
			return ctrlReturn, Raw(value.None), nil
		}
		v, err := i.Eval(scope, t.Value)
		if err != nil {
			return ctrlNone, Box{}, err
		}
		return ctrlReturn, v, nil

	case *ast.Pass:
		return ctrlNone, Box{}, nil
	case *ast.Break:
		return ctrlBreak, Box{}, nil
	case *ast.Continue:
		return ctrlContinue, Box{}, nil

	default:
		return ctrlNone, Box{}, fmt.Errorf("trace: unsupported statement %T", s)
	}
}

// patternNames flattens an (already multiple-target-normalised) assignment
// target into its symbolic shape (§4.4.7 "pattern_literal"): a single-name
// target yields a one-element slice, a TupleLit/ListLit of names yields one
// entry per name in source order. ok is false for any other target shape,
// which the caller treats as an internal invariant failure (§7).
func patternNames(target ast.Expr) (names []string, ok bool) {
	switch t := target.(type) {
	case *ast.Ident:
		return []string{t.Name}, true
	case *ast.TupleLit:
		return identNames(t.Elts)
	case *ast.ListLit:
		return identNames(t.Elts)
	default:
		return nil, false
	}
}

func identNames(elts []ast.Expr) ([]string, bool) {
	out := make([]string, len(elts))
	for i, e := range elts {
		id, ok := e.(*ast.Ident)
		if !ok {
			return nil, false
		}
		out[i] = id.Name
	}
	return out, true
}

// evalRHS evaluates an assignment's right-hand side, propagating multi (set
// when the target is a destructuring pattern) down to a directly-assigned
// call expression so its Return event carries the correct multiple_values
// flag (§3, §8 "Boundary behaviours").
func (i *Interp) evalRHS(scope *value.Scope, e ast.Expr, multi bool) (Box, error) {
	if call, ok := e.(*ast.Call); ok {
		if ident, ok := call.Func.(*ast.Ident); ok && ident.Name == normalize.TraceCallName {
			return i.evalTraceCallMulti(scope, call.Args, multi)
		}
	}
	return i.Eval(scope, e)
}

// emitAssign emits the trace_assign event for an already-evaluated RHS
// (§4.6 "trace_assign is called before the binding is performed"), carrying
// the RHS's originating event forward so the flow-graph builder can resolve
// the assignment's source (§4.8 "On an Assign event").
func (i *Interp) emitAssign(scope *value.Scope, pattern []string, rhs Box) {
	if !i.tracer.CurrentEmit() {
		return
	}
	ev := &Event{
		Kind:    Assign,
		Seq:     i.tracer.nextSeq(),
		ScopeID: scope.ID,
		Args:    []Arg{{Name: "value", Box: rhs}},
	}
	if len(pattern) == 1 {
		ev.Name = pattern[0]
	} else {
		ev.Pattern = pattern
	}
	i.tracer.emit(ev)
}

// isAtomic implements the atomicity rule (§4.6): a call is atomic iff its
// body will not be recursively traced. Native functions (the operator
// module and opaque builtins) have no AST body at all; user-defined
// functions, bound methods, and constructors backed by a user __init__
// always have one.
func isAtomic(callee value.Value) bool {
	switch c := callee.(type) {
	case *value.Function, *value.BoundMethod:
		return false
	case *value.Class:
		fn, _ := c.Lookup("__init__")
		return fn == nil
	default:
		return true
	}
}

// Eval evaluates a normalised expression, returning a Box so callers can
// detect when the value flowed directly out of a nested traced call (§9).
func (i *Interp) Eval(scope *value.Scope, e ast.Expr) (Box, error) {
	switch t := e.(type) {
	case *ast.Ident:
		v, ok := scope.Get(t.Name)
		if !ok {
			return Box{}, fmt.Errorf("trace: undefined name %q", t.Name)
		}
		if !i.tracer.CurrentEmit() {
			return Raw(v), nil
		}
		ev := &Event{Kind: Access, Seq: i.tracer.nextSeq(), ScopeID: scope.ID, Name: t.Name, Args: []Arg{{Name: "value", Box: Raw(v)}}}
		i.tracer.emit(ev)
		return FromEvent(v, ev), nil
	case *ast.NoneLit:
		return Raw(value.None), nil
	case *ast.BoolLit:
		return Raw(value.Bool(t.Value)), nil
	case *ast.IntLit:
		return Raw(value.Int(t.Value)), nil
	case *ast.FloatLit:
		return Raw(value.Float(t.Value)), nil
	case *ast.StringLit:
		return Raw(value.Str(t.Value)), nil
	case *ast.Lambda:
		fn := &value.Function{
			Module:  i.module,
			Params:  t.Params,
			Body:    []ast.Stmt{&ast.Return{Value: t.Body}},
			Closure: scope,
		}
		return Raw(fn), nil
	case *ast.Call:
		ident, ok := t.Func.(*ast.Ident)
		if !ok || ident.Name != normalize.TraceCallName {
			return Box{}, fmt.Errorf("trace: internal invariant: unrewritten call expression")
		}
		return i.evalTraceCallMulti(scope, t.Args, false)
	default:
		return Box{}, fmt.Errorf("trace: unsupported expression %T", e)
	}
}

// evalTraceCallMulti is the single entry point every call in a rewritten
// program passes through (§4.5): it resolves the callee's name (§4.1),
// binds its arguments (§4.2), emits the Call event (gated by the enclosing
// scope's emit-events flag, §4.6), invokes it, and emits the matching Return
// event — carrying multi as its multiple_values flag (§3). The flow-graph
// builder itself recognises the builtin attribute/item operations
// (`__setattr__`/`__setitem__`) directly off the Call/Return pair (§4.8 step
// 3's mutation rule); no separate Access/Assign/Delete event is derived here.
func (i *Interp) evalTraceCallMulti(scope *value.Scope, args []ast.Arg, multi bool) (Box, error) {
	if len(args) < 2 {
		return Box{}, fmt.Errorf("trace: internal invariant: malformed trace call")
	}
	calleeBox, err := i.Eval(scope, args[1].Value)
	if err != nil {
		return Box{}, err
	}
	callee := calleeBox.Value

	pos, kw, boxes, err := i.evalArgs(scope, args[2:])
	if err != nil {
		return Box{}, err
	}

	module, qualified := names.Resolve(callee)
	evalDefault := func(e ast.Expr) (value.Value, error) {
		b, err := i.Eval(scope, e)
		return b.Value, err
	}

	var bound []bind.Bound
	var invoke func() (value.Value, error)

	switch c := callee.(type) {
	case *value.NativeFunc:
		bound = bind.Opaque(pos, kw, nil)
		invoke = func() (value.Value, error) { return c.Fn(i, pos, kw) }

	case *value.Function:
		b, err := bind.Bind(c, pos, kw, evalDefault)
		if err != nil {
			return Box{}, err
		}
		bound = b
		invoke = func() (value.Value, error) { return i.callFunction(c, b) }

	case *value.BoundMethod:
		b, err := bind.Bind(c, pos, kw, evalDefault)
		if err != nil {
			return Box{}, err
		}
		bound = b
		invoke = func() (value.Value, error) { return i.callFunction(c.Fn, b) }

	case *value.Class:
		inst := value.NewInstance(c)
		if initFn, _ := c.Lookup("__init__"); initFn != nil {
			bm := &value.BoundMethod{Fn: initFn, Self: inst}
			b, err := bind.Bind(bm, pos, kw, evalDefault)
			if err != nil {
				return Box{}, err
			}
			bound = b
			invoke = func() (value.Value, error) { _, err := i.callFunction(initFn, b); return inst, err }
		} else {
			bound = bind.Opaque(pos, kw, nil)
			invoke = func() (value.Value, error) { return inst, nil }
		}

	default:
		return Box{}, fmt.Errorf("trace: value of type %s is not callable", callee.TypeName())
	}

	atomic := isAtomic(callee)
	emit := i.tracer.CurrentEmit()

	callEvent := &Event{
		Kind:    Call,
		Seq:     i.tracer.nextSeq(),
		ScopeID: scope.ID,
		Module:  module,
		Name:    qualified,
		Callee:  callee,
		Atomic:  atomic,
		Args:    attachOrigins(bound, boxes),
	}
	if emit {
		i.tracer.emit(callEvent)
	}
	i.tracer.pushPending(callEvent)
	i.tracer.pushEmit(emit && !atomic)

	resultVal, err := invoke()

	i.tracer.popEmit()
	i.tracer.popPending()
	if err != nil {
		// ProgramFailure (§7): the scope-stack invariant is already
		// restored by the pop above; no Return is emitted for this call.
		return Box{}, err
	}

	if multi {
		resultVal = coerceMultipleValues(resultVal)
	}

	returnEvent := &Event{
		Kind:           Return,
		Seq:            i.tracer.nextSeq(),
		ScopeID:        scope.ID,
		Module:         module,
		Name:           qualified,
		Callee:         callee,
		Atomic:         atomic,
		Result:         Raw(resultVal),
		MultipleValues: multi,
	}
	if emit {
		i.tracer.emit(returnEvent)
	}

	return FromEvent(resultVal, returnEvent), nil
}

// coerceMultipleValues stabilises an ephemeral iterable return value into a
// concrete, retainable sequence when the call site destructures it (§4.6
// "Multiple-values coercion"). Failure to iterate is silently ignored: the
// user's own error (attempting to unpack a non-iterable) surfaces from the
// subsequent destructuring assignment.
func coerceMultipleValues(v value.Value) value.Value {
	switch v.(type) {
	case *value.Tuple, *value.List:
		return v
	}
	items, err := iterate(v)
	if err != nil {
		return v
	}
	return &value.Tuple{Elems: items}
}

func (i *Interp) evalArgs(scope *value.Scope, args []ast.Arg) (pos []value.Value, kw map[string]value.Value, boxes []Box, err error) {
	kw = map[string]value.Value{}
	for _, a := range args {
		box, evalErr := i.Eval(scope, a.Value)
		if evalErr != nil {
			return nil, nil, nil, evalErr
		}
		switch a.Stars {
		case 1:
			items, iterErr := iterate(box.Value)
			if iterErr != nil {
				return nil, nil, nil, iterErr
			}
			for _, it := range items {
				pos = append(pos, it)
				boxes = append(boxes, Raw(it))
			}
		case 2:
			d, ok := box.Value.(*value.Dict)
			if !ok {
				return nil, nil, nil, fmt.Errorf("trace: ** argument must be a dict, got %s", box.Value.TypeName())
			}
			for _, k := range d.Keys() {
				ks, ok := k.(value.Str)
				if !ok {
					return nil, nil, nil, fmt.Errorf("trace: ** argument keys must be strings")
				}
				v, _, _ := d.Get(k)
				kw[string(ks)] = v
			}
		default:
			if a.Name != "" {
				kw[a.Name] = box.Value
				boxes = append(boxes, box)
			} else {
				pos = append(pos, box.Value)
				boxes = append(boxes, box)
			}
		}
	}
	return pos, kw, boxes, nil
}

// attachOrigins re-associates each bound argument with the box it came
// from, so a bound argument that flowed directly from a nested traced call
// keeps that call's Return event as its Origin (§9); matching is by value
// identity since bind.Bind only returns values, not boxes.
func attachOrigins(bound []bind.Bound, boxes []Box) []Arg {
	args := make([]Arg, len(bound))
	for i, b := range bound {
		box := Raw(b.Value)
		for _, ob := range boxes {
			if ob.Value == b.Value && ob.Origin != nil {
				box = ob
				break
			}
		}
		args[i] = Arg{Name: b.Name, Box: box}
	}
	return args
}

func (i *Interp) callFunction(fn *value.Function, bound []bind.Bound) (value.Value, error) {
	id := fn.Name
	if fn.Closure != nil {
		id = fn.Closure.ID + "." + fn.Name
	}
	scope := value.NewScope(id, "function", fn.Name, fn.Closure)
	for _, b := range bound {
		scope.Bind(b.Name, b.Value)
	}
	ctrl, box, err := i.execBlock(scope, fn.Body)
	if err != nil {
		return nil, err
	}
	if ctrl == ctrlReturn {
		return box.Value, nil
	}
	return value.None, nil
}

func bindTarget(scope *value.Scope, target ast.Expr, v value.Value) error {
	switch t := target.(type) {
	case *ast.Ident:
		scope.Bind(t.Name, v)
		return nil
	case *ast.TupleLit:
		return destructureInto(scope, t.Elts, v)
	case *ast.ListLit:
		return destructureInto(scope, t.Elts, v)
	default:
		return fmt.Errorf("trace: unsupported loop target %T", target)
	}
}

func destructureInto(scope *value.Scope, targets []ast.Expr, v value.Value) error {
	items, err := iterate(v)
	if err != nil {
		return err
	}
	if len(items) != len(targets) {
		return fmt.Errorf("trace: cannot unpack %d values into %d targets", len(items), len(targets))
	}
	for i, elt := range targets {
		if err := bindTarget(scope, elt, items[i]); err != nil {
			return err
		}
	}
	return nil
}

func iterate(v value.Value) ([]value.Value, error) {
	switch t := v.(type) {
	case *value.List:
		return t.Elems, nil
	case *value.Tuple:
		return t.Elems, nil
	case *value.Set:
		return t.Values(), nil
	case *value.Dict:
		return t.Keys(), nil
	case value.Str:
		chars := make([]value.Value, 0, len(t))
		for _, r := range string(t) {
			chars = append(chars, value.Str(string(r)))
		}
		return chars, nil
	default:
		return nil, fmt.Errorf("trace: value of type %s is not iterable", v.TypeName())
	}
}

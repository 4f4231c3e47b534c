// Package bind implements the argument binder (§4.2): it turns a callable's
// already-evaluated positional and keyword arguments into the ordered
// name -> value map the tracer attaches to a Call event. Grounded on the
// original pyflowgraph argument-binding module (`_examples/original_source`,
// flowgraph/trace), including its opaque-callable fallback (name arguments
// "0", "1", ... when no parameter list is available) and its treatment of a
// bound method's receiver as an ordinary named argument.
package bind

import (
	"errors"
	"sort"

	"github.com/viant/flowgraph/lang/ast"
	"github.com/viant/flowgraph/trace/value"
)

// ErrArityMismatch is returned when the supplied arguments cannot be
// reconciled with a callable's declared parameters.
var ErrArityMismatch = errors.New("bind: argument count does not match parameters")

// Bound is one resolved (name, value) argument pair, in binding order.
type Bound struct {
	Name  string
	Value value.Value
}

// EvalDefault evaluates a parameter's default-value expression in the scope
// the callable was defined in; callers pass their interpreter's evaluator
// so this package stays independent of the tree-walking interpreter.
type EvalDefault func(ast.Expr) (value.Value, error)

// Bind resolves callable's arguments. For user-defined functions and bound
// methods it walks the declared parameter list (§4.2: self handling,
// variadic *args/**kwargs expansion, default values). For anything else —
// native functions, classes used as bare constructors, and any other
// callable-shaped value — it falls back to positional names "0", "1", ...
// and passes keyword arguments through under their own names, with keys
// ordered deterministically (§4.2 "deterministic keyword ordering").
func Bind(callable value.Value, pos []value.Value, kw map[string]value.Value, evalDefault EvalDefault) ([]Bound, error) {
	switch t := callable.(type) {
	case *value.Function:
		return bindParams(t.Params, pos, kw, evalDefault)

	case *value.BoundMethod:
		if t.Fn == nil || len(t.Fn.Params) == 0 {
			return opaqueBind(pos, kw, t.Self), nil
		}
		receiver := Bound{Name: t.Fn.Params[0].Name, Value: t.Self}
		rest, err := bindParams(t.Fn.Params[1:], pos, kw, evalDefault)
		if err != nil {
			return nil, err
		}
		return append([]Bound{receiver}, rest...), nil

	default:
		return opaqueBind(pos, kw, nil), nil
	}
}

// Opaque exposes the positional-name fallback binding for callers (the
// tracer) that need bound names for a Call event even when the callee
// itself will be invoked directly rather than through Bind.
func Opaque(pos []value.Value, kw map[string]value.Value, receiver value.Value) []Bound {
	return opaqueBind(pos, kw, receiver)
}

func bindParams(params []ast.Param, pos []value.Value, kw map[string]value.Value, evalDefault EvalDefault) ([]Bound, error) {
	named := map[string]bool{}
	for _, p := range params {
		if p.Stars == 0 {
			named[p.Name] = true
		}
	}

	var out []Bound
	i := 0
	for _, p := range params {
		switch p.Stars {
		case 1: // *args: everything left over positionally
			rest := append([]value.Value{}, pos[min(i, len(pos)):]...)
			out = append(out, Bound{Name: p.Name, Value: &value.Tuple{Elems: rest}})
			i = len(pos)
		case 2: // **kwargs: keyword args not claimed by a named parameter
			d := value.NewDict()
			for _, k := range sortedKeys(kw) {
				if named[k] {
					continue
				}
				if err := d.Set(value.Str(k), kw[k]); err != nil {
					return nil, err
				}
			}
			out = append(out, Bound{Name: p.Name, Value: d})
		default:
			if v, ok := kw[p.Name]; ok {
				out = append(out, Bound{Name: p.Name, Value: v})
				continue
			}
			if i < len(pos) {
				out = append(out, Bound{Name: p.Name, Value: pos[i]})
				i++
				continue
			}
			if p.Default != nil {
				if evalDefault == nil {
					return nil, ErrArityMismatch
				}
				v, err := evalDefault(p.Default)
				if err != nil {
					return nil, err
				}
				out = append(out, Bound{Name: p.Name, Value: v})
				continue
			}
			return nil, ErrArityMismatch
		}
	}
	if i < len(pos) {
		return nil, ErrArityMismatch
	}
	return out, nil
}

// opaqueBind names positional arguments "0", "1", ... for callables with no
// declared parameter list (§4.2); receiver, when non-nil, is bound first
// under "self" the same way a bound method's receiver is.
func opaqueBind(pos []value.Value, kw map[string]value.Value, receiver value.Value) []Bound {
	var out []Bound
	if receiver != nil {
		out = append(out, Bound{Name: "self", Value: receiver})
	}
	for i, v := range pos {
		out = append(out, Bound{Name: itoa(i), Value: v})
	}
	for _, k := range sortedKeys(kw) {
		out = append(out, Bound{Name: k, Value: kw[k]})
	}
	return out
}

func sortedKeys(m map[string]value.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	digits := []byte{}
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	return string(digits)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

package trace

import (
	"fmt"
	"strings"

	"github.com/viant/flowgraph/trace/value"
)

// RegisterBuiltins binds the operator-support module (§4.4/§4.6) into
// scope: the dunder functions the normaliser rewrites attribute access,
// subscripts, operators and container literals into, plus a couple of
// ordinary convenience builtins (print, len) so traced programs can do
// useful work. Grounded on the original pyflowgraph trace module's
// operator-support functions (`_examples/original_source`, flowgraph/trace).
func RegisterBuiltins(scope *value.Scope) {
	for name, fn := range builtinTable {
		fn := fn
		native := func(caller interface{}, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
			i, _ := caller.(*Interp)
			return fn(i, pos, kw)
		}
		scope.Bind(name, &value.NativeFunc{Module: "builtins", Name: name, Arity: -1, Fn: native})
	}
}

type builtinFn func(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error)

var builtinTable = map[string]builtinFn{
	"__getattr__": biGetAttr,
	"__setattr__": biSetAttr,
	"__delattr__": biDelAttr,
	"__getitem__": biGetItem,
	"__setitem__": biSetItem,
	"__delitem__": biDelItem,
	"__slice__":   biSlice,
	"__list__":    biList,
	"__tuple__":   biTuple,
	"__set__":     biSet,
	"__dict__":    biDict,
	"__add__":     biAdd,
	"__sub__":     biArith('-'),
	"__mul__":     biArith('*'),
	"__div__":     biArith('/'),
	"__mod__":     biArith('%'),
	"__eq__":      biCompare("=="),
	"__ne__":      biCompare("!="),
	"__lt__":      biCompare("<"),
	"__gt__":      biCompare(">"),
	"__le__":      biCompare("<="),
	"__ge__":      biCompare(">="),
	"__is__":      biIs,
	"__in__":      biIn,
	"__neg__":     biNeg,
	"__not__":     biNot,
	"__and__":     biAnd,
	"__or__":      biOr,
	"print":       biPrint,
	"len":         biLen,
}

func biGetAttr(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	obj, name, err := attrArgs(pos)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case *value.Instance:
		if v, ok := o.Fields[name]; ok {
			return v, nil
		}
		if fn, _ := o.Class.Lookup(name); fn != nil {
			return &value.BoundMethod{Fn: fn, Self: o}, nil
		}
	case *value.Class:
		if fn, ok := o.Methods[name]; ok {
			return fn, nil
		}
	case *value.Module:
		if v, ok := o.Members[name]; ok {
			return v, nil
		}
	}
	return nil, fmt.Errorf("trace: %s has no attribute %q", obj.TypeName(), name)
}

func biSetAttr(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) < 3 {
		return nil, fmt.Errorf("trace: __setattr__ requires 3 arguments")
	}
	obj, name, err := attrArgs(pos[:2])
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*value.Instance)
	if !ok {
		return nil, fmt.Errorf("trace: cannot set attribute %q on %s", name, obj.TypeName())
	}
	inst.Fields[name] = pos[2]
	return value.None, nil
}

func biDelAttr(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	obj, name, err := attrArgs(pos)
	if err != nil {
		return nil, err
	}
	inst, ok := obj.(*value.Instance)
	if !ok {
		return nil, fmt.Errorf("trace: cannot delete attribute %q on %s", name, obj.TypeName())
	}
	delete(inst.Fields, name)
	return value.None, nil
}

func attrArgs(pos []value.Value) (value.Value, string, error) {
	if len(pos) < 2 {
		return nil, "", fmt.Errorf("trace: attribute operation requires 2 arguments")
	}
	name, ok := pos[1].(value.Str)
	if !ok {
		return nil, "", fmt.Errorf("trace: attribute name must be a string")
	}
	return pos[0], string(name), nil
}

func biGetItem(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) < 2 {
		return nil, fmt.Errorf("trace: __getitem__ requires 2 arguments")
	}
	obj, idx := pos[0], pos[1]
	switch o := obj.(type) {
	case *value.List:
		return sliceOrIndex(o.Elems, idx, func(es []value.Value) value.Value { return &value.List{Elems: es} })
	case *value.Tuple:
		return sliceOrIndex(o.Elems, idx, func(es []value.Value) value.Value { return &value.Tuple{Elems: es} })
	case value.Str:
		runes := []rune(string(o))
		boxed := make([]value.Value, len(runes))
		for i, r := range runes {
			boxed[i] = value.Str(string(r))
		}
		v, err := sliceOrIndex(boxed, idx, func(es []value.Value) value.Value {
			var b strings.Builder
			for _, e := range es {
				b.WriteString(string(e.(value.Str)))
			}
			return value.Str(b.String())
		})
		return v, err
	case *value.Dict:
		v, ok, err := o.Get(idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("trace: key %s not found", value.Repr(idx))
		}
		return v, nil
	default:
		return nil, fmt.Errorf("trace: %s is not subscriptable", obj.TypeName())
	}
}

func sliceOrIndex(elems []value.Value, idx value.Value, rebuild func([]value.Value) value.Value) (value.Value, error) {
	if sl, ok := idx.(*value.Slice); ok {
		lo, hi, step, err := resolveSlice(sl, len(elems))
		if err != nil {
			return nil, err
		}
		var out []value.Value
		for i := lo; (step > 0 && i < hi) || (step < 0 && i > hi); i += step {
			if i < 0 || i >= len(elems) {
				break
			}
			out = append(out, elems[i])
		}
		return rebuild(out), nil
	}
	n, ok := idx.(value.Int)
	if !ok {
		return nil, fmt.Errorf("trace: index must be an int")
	}
	i := int(n)
	if i < 0 {
		i += len(elems)
	}
	if i < 0 || i >= len(elems) {
		return nil, fmt.Errorf("trace: index %d out of range", n)
	}
	return elems[i], nil
}

func resolveSlice(sl *value.Slice, length int) (lo, hi, step int, err error) {
	step = 1
	if sl.Step != nil {
		if s, ok := sl.Step.(value.Int); ok && s != 0 {
			step = int(s)
		}
	}
	if step > 0 {
		lo, hi = 0, length
	} else {
		lo, hi = length-1, -1
	}
	if sl.Lower != nil {
		if v, ok := sl.Lower.(value.Int); ok {
			lo = int(v)
			if lo < 0 {
				lo += length
			}
		}
	}
	if sl.Upper != nil {
		if v, ok := sl.Upper.(value.Int); ok {
			hi = int(v)
			if hi < 0 {
				hi += length
			}
		}
	}
	return lo, hi, step, nil
}

func biSetItem(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) < 3 {
		return nil, fmt.Errorf("trace: __setitem__ requires 3 arguments")
	}
	obj, idx, val := pos[0], pos[1], pos[2]
	switch o := obj.(type) {
	case *value.List:
		n, ok := idx.(value.Int)
		if !ok {
			return nil, fmt.Errorf("trace: list index must be an int")
		}
		pos := int(n)
		if pos < 0 {
			pos += len(o.Elems)
		}
		if pos < 0 || pos >= len(o.Elems) {
			return nil, fmt.Errorf("trace: index %d out of range", n)
		}
		o.Elems[pos] = val
		return value.None, nil
	case *value.Dict:
		if err := o.Set(idx, val); err != nil {
			return nil, err
		}
		return value.None, nil
	default:
		return nil, fmt.Errorf("trace: %s does not support item assignment", obj.TypeName())
	}
}

func biDelItem(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) < 2 {
		return nil, fmt.Errorf("trace: __delitem__ requires 2 arguments")
	}
	obj, idx := pos[0], pos[1]
	switch o := obj.(type) {
	case *value.List:
		n, ok := idx.(value.Int)
		if !ok {
			return nil, fmt.Errorf("trace: list index must be an int")
		}
		p := int(n)
		if p < 0 {
			p += len(o.Elems)
		}
		if p < 0 || p >= len(o.Elems) {
			return nil, fmt.Errorf("trace: index %d out of range", n)
		}
		o.Elems = append(o.Elems[:p], o.Elems[p+1:]...)
		return value.None, nil
	case *value.Dict:
		if err := o.Delete(idx); err != nil {
			return nil, err
		}
		return value.None, nil
	default:
		return nil, fmt.Errorf("trace: %s does not support item deletion", obj.TypeName())
	}
}

// biSlice implements __slice__, matching the normaliser's use of a None
// literal for an omitted `a:b:c` bound (§4.4.3).
func biSlice(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	for len(pos) < 3 {
		pos = append(pos, value.None)
	}
	s := &value.Slice{}
	if pos[0] != value.None {
		s.Lower = pos[0]
	}
	if pos[1] != value.None {
		s.Upper = pos[1]
	}
	if pos[2] != value.None {
		s.Step = pos[2]
	}
	return s, nil
}

func biList(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	return &value.List{Elems: append([]value.Value{}, pos...)}, nil
}

func biTuple(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	return &value.Tuple{Elems: append([]value.Value{}, pos...)}, nil
}

func biSet(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	s := value.NewSet()
	for _, v := range pos {
		if err := s.Add(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func biDict(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	d := value.NewDict()
	for idx := 0; idx+1 < len(pos); idx += 2 {
		if err := d.Set(pos[idx], pos[idx+1]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func numOf(v value.Value) (float64, bool, bool) {
	switch t := v.(type) {
	case value.Int:
		return float64(t), false, true
	case value.Float:
		return float64(t), true, true
	}
	return 0, false, false
}

func biAdd(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) != 2 {
		return nil, fmt.Errorf("trace: __add__ requires 2 arguments")
	}
	a, b := pos[0], pos[1]
	if sa, ok := a.(value.Str); ok {
		sb, ok := b.(value.Str)
		if !ok {
			return nil, fmt.Errorf("trace: cannot add %s and %s", a.TypeName(), b.TypeName())
		}
		return value.Str(string(sa) + string(sb)), nil
	}
	if la, ok := a.(*value.List); ok {
		lb, ok := b.(*value.List)
		if !ok {
			return nil, fmt.Errorf("trace: cannot add %s and %s", a.TypeName(), b.TypeName())
		}
		return &value.List{Elems: append(append([]value.Value{}, la.Elems...), lb.Elems...)}, nil
	}
	return biArith('+')(i, pos, kw)
}

func biArith(op byte) builtinFn {
	return func(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
		if len(pos) != 2 {
			return nil, fmt.Errorf("trace: arithmetic operator requires 2 arguments")
		}
		a, aFloat, aOk := numOf(pos[0])
		b, bFloat, bOk := numOf(pos[1])
		if !aOk || !bOk {
			return nil, fmt.Errorf("trace: unsupported operand types %s and %s", pos[0].TypeName(), pos[1].TypeName())
		}
		var r float64
		switch op {
		case '+':
			r = a + b
		case '-':
			r = a - b
		case '*':
			r = a * b
		case '/':
			if b == 0 {
				return nil, fmt.Errorf("trace: division by zero")
			}
			r = a / b
		case '%':
			if b == 0 {
				return nil, fmt.Errorf("trace: division by zero")
			}
			ai, bi := int64(a), int64(b)
			return value.Int(ai % bi), nil
		}
		if aFloat || bFloat {
			return value.Float(r), nil
		}
		return value.Int(int64(r)), nil
	}
}

func biCompare(op string) builtinFn {
	return func(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
		if len(pos) != 2 {
			return nil, fmt.Errorf("trace: comparison requires 2 arguments")
		}
		a, b := pos[0], pos[1]
		if op == "==" || op == "!=" {
			eq := valuesEqual(a, b)
			if op == "!=" {
				eq = !eq
			}
			return value.Bool(eq), nil
		}
		af, _, aok := numOf(a)
		bf, _, bok := numOf(b)
		if aok && bok {
			switch op {
			case "<":
				return value.Bool(af < bf), nil
			case ">":
				return value.Bool(af > bf), nil
			case "<=":
				return value.Bool(af <= bf), nil
			case ">=":
				return value.Bool(af >= bf), nil
			}
		}
		as, aok := a.(value.Str)
		bs, bok := b.(value.Str)
		if aok && bok {
			switch op {
			case "<":
				return value.Bool(as < bs), nil
			case ">":
				return value.Bool(as > bs), nil
			case "<=":
				return value.Bool(as <= bs), nil
			case ">=":
				return value.Bool(as >= bs), nil
			}
		}
		return nil, fmt.Errorf("trace: unsupported comparison between %s and %s", a.TypeName(), b.TypeName())
	}
}

func valuesEqual(a, b value.Value) bool {
	af, _, aok := numOf(a)
	bf, _, bok := numOf(b)
	if aok && bok {
		return af == bf
	}
	if as, ok := a.(value.Str); ok {
		bs, ok := b.(value.Str)
		return ok && as == bs
	}
	if ab, ok := a.(value.Bool); ok {
		bb, ok := b.(value.Bool)
		return ok && ab == bb
	}
	if a == value.None || b == value.None {
		return a == value.None && b == value.None
	}
	return a == b
}

func biIs(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) != 2 {
		return nil, fmt.Errorf("trace: __is__ requires 2 arguments")
	}
	return value.Bool(pos[0] == pos[1]), nil
}

func biIn(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) != 2 {
		return nil, fmt.Errorf("trace: __in__ requires 2 arguments")
	}
	needle, haystack := pos[0], pos[1]
	switch h := haystack.(type) {
	case *value.List:
		for _, e := range h.Elems {
			if valuesEqual(e, needle) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case *value.Tuple:
		for _, e := range h.Elems {
			if valuesEqual(e, needle) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case *value.Set:
		return value.Bool(h.Contains(needle)), nil
	case *value.Dict:
		_, ok, err := h.Get(needle)
		if err != nil {
			return value.Bool(false), nil
		}
		return value.Bool(ok), nil
	case value.Str:
		n, ok := needle.(value.Str)
		if !ok {
			return nil, fmt.Errorf("trace: 'in' on a string requires a string operand")
		}
		return value.Bool(strings.Contains(string(h), string(n))), nil
	default:
		return nil, fmt.Errorf("trace: %s is not a container", haystack.TypeName())
	}
}

func biNeg(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) != 1 {
		return nil, fmt.Errorf("trace: __neg__ requires 1 argument")
	}
	switch t := pos[0].(type) {
	case value.Int:
		return -t, nil
	case value.Float:
		return -t, nil
	}
	return nil, fmt.Errorf("trace: cannot negate %s", pos[0].TypeName())
}

func biNot(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) != 1 {
		return nil, fmt.Errorf("trace: __not__ requires 1 argument")
	}
	return value.Bool(!value.Truthy(pos[0])), nil
}

func biAnd(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) != 2 {
		return nil, fmt.Errorf("trace: __and__ requires 2 arguments")
	}
	if !value.Truthy(pos[0]) {
		return pos[0], nil
	}
	return pos[1], nil
}

func biOr(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) != 2 {
		return nil, fmt.Errorf("trace: __or__ requires 2 arguments")
	}
	if value.Truthy(pos[0]) {
		return pos[0], nil
	}
	return pos[1], nil
}

func biPrint(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	parts := make([]string, len(pos))
	for idx, v := range pos {
		parts[idx] = value.Repr(v)
	}
	fmt.Println(strings.Join(parts, " "))
	return value.None, nil
}

func biLen(i *Interp, pos []value.Value, kw map[string]value.Value) (value.Value, error) {
	if len(pos) != 1 {
		return nil, fmt.Errorf("trace: len requires 1 argument")
	}
	switch t := pos[0].(type) {
	case *value.List:
		return value.Int(len(t.Elems)), nil
	case *value.Tuple:
		return value.Int(len(t.Elems)), nil
	case *value.Dict:
		return value.Int(t.Len()), nil
	case *value.Set:
		return value.Int(t.Len()), nil
	case value.Str:
		return value.Int(len([]rune(string(t)))), nil
	default:
		return nil, fmt.Errorf("trace: object of type %s has no len()", pos[0].TypeName())
	}
}

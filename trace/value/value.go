// Package value defines the runtime value space of the embedded language:
// scalars, containers, user-defined classes/instances and callables. It is
// deliberately a leaf package with no dependency on the tracer, interpreter,
// name inspector or argument binder, so all of those can depend on it
// without creating an import cycle.
package value

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/viant/flowgraph/lang/ast"
)

// Value is any runtime value produced by the embedded interpreter.
type Value interface {
	// TypeName returns the value's fully-qualified type name as the name
	// inspector (§4.1) would report it, e.g. "builtins.int" or
	// "mypkg.Point".
	TypeName() string
}

type noneValue struct{}

func (noneValue) TypeName() string { return "builtins.NoneType" }

// None is the single instance of the none literal.
var None Value = noneValue{}

type Bool bool

func (Bool) TypeName() string { return "builtins.bool" }

type Int int64

func (Int) TypeName() string { return "builtins.int" }

type Float float64

func (Float) TypeName() string { return "builtins.float" }

type Str string

func (Str) TypeName() string { return "builtins.str" }

// List, Tuple, Dict and Set are untrackable containers (§3 "typically not
// trackable"): no object identifier is ever assigned to them by the object
// tracker, matching the data model's statement that trackability is reserved
// for user-defined aggregates.
type List struct{ Elems []Value }

func (*List) TypeName() string { return "builtins.list" }

type Tuple struct{ Elems []Value }

func (*Tuple) TypeName() string { return "builtins.tuple" }

// Slice is the result of the __slice__ builtin the normaliser introduces
// for `a:b:c` subscript syntax (§4.4.3); any of Lower/Upper/Step is nil
// when that part was omitted.
type Slice struct {
	Lower, Upper, Step Value
}

func (*Slice) TypeName() string { return "builtins.slice" }

type dictEntry struct {
	key   Value
	value Value
}

// Dict preserves insertion order, as the source language's dict does.
type Dict struct {
	order   []string
	entries map[string]dictEntry
}

func NewDict() *Dict { return &Dict{entries: map[string]dictEntry{}} }

func (*Dict) TypeName() string { return "builtins.dict" }

func (d *Dict) Set(key, value Value) error {
	k, err := HashKey(key)
	if err != nil {
		return err
	}
	if _, ok := d.entries[k]; !ok {
		d.order = append(d.order, k)
	}
	d.entries[k] = dictEntry{key: key, value: value}
	return nil
}

func (d *Dict) Get(key Value) (Value, bool, error) {
	k, err := HashKey(key)
	if err != nil {
		return nil, false, err
	}
	e, ok := d.entries[k]
	return e.value, ok, nil
}

func (d *Dict) Delete(key Value) error {
	k, err := HashKey(key)
	if err != nil {
		return err
	}
	if _, ok := d.entries[k]; !ok {
		return fmt.Errorf("value: key not found")
	}
	delete(d.entries, k)
	for i, ok := range d.order {
		if ok == k {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	return nil
}

func (d *Dict) Keys() []Value {
	out := make([]Value, 0, len(d.order))
	for _, k := range d.order {
		out = append(out, d.entries[k].key)
	}
	return out
}

func (d *Dict) Len() int { return len(d.order) }

// Set is an unordered collection of hashable values.
type Set struct {
	entries map[string]Value
}

func NewSet() *Set { return &Set{entries: map[string]Value{}} }

func (*Set) TypeName() string { return "builtins.set" }

func (s *Set) Add(v Value) error {
	k, err := HashKey(v)
	if err != nil {
		return err
	}
	s.entries[k] = v
	return nil
}

func (s *Set) Contains(v Value) bool {
	k, err := HashKey(v)
	if err != nil {
		return false
	}
	_, ok := s.entries[k]
	return ok
}

func (s *Set) Len() int { return len(s.entries) }

func (s *Set) Values() []Value {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Value, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.entries[k])
	}
	return out
}

// HashKey produces a canonical string key for the hashable scalar types.
// Composite values are not hashable, mirroring the source language.
func HashKey(v Value) (string, error) {
	switch t := v.(type) {
	case noneValue:
		return "n:", nil
	case Bool:
		return "b:" + strconv.FormatBool(bool(t)), nil
	case Int:
		return "i:" + strconv.FormatInt(int64(t), 10), nil
	case Float:
		return "f:" + strconv.FormatFloat(float64(t), 'g', -1, 64), nil
	case Str:
		return "s:" + string(t), nil
	default:
		return "", fmt.Errorf("value: unhashable type %s", v.TypeName())
	}
}

// Class is a user-defined type value. Classes are callables (constructors)
// and are therefore excluded from trackability by the "not a bare callable"
// clause of §3, exactly like bound methods and free functions.
type Class struct {
	Module  string
	Name    string
	Bases   []*Class
	Methods map[string]*Function
}

func (c *Class) TypeName() string { return c.Module + "." + c.Name }

// QualifiedName is the class name, as the name inspector would report for a
// type (§4.1).
func (c *Class) QualifiedName() string { return c.Name }

// MRO walks bases depth-first, matching the simple linearisation used by the
// annotator's ancestor-chain resolution (§4.7).
func (c *Class) MRO() []*Class {
	seen := map[*Class]bool{}
	var order []*Class
	var walk func(*Class)
	walk = func(cl *Class) {
		if cl == nil || seen[cl] {
			return
		}
		seen[cl] = true
		order = append(order, cl)
		for _, b := range cl.Bases {
			walk(b)
		}
	}
	walk(c)
	return order
}

func (c *Class) Lookup(method string) (*Function, *Class) {
	for _, cl := range c.MRO() {
		if fn, ok := cl.Methods[method]; ok {
			return fn, cl
		}
	}
	return nil, nil
}

// Instance is the one trackable value kind in this system (§3): a
// user-defined aggregate, as opposed to scalars/strings/tuples/lists/dicts/
// sets which are "typically not trackable".
type Instance struct {
	Class  *Class
	Fields map[string]Value

	// TrackID is set once by the object tracker (trace/objtrack) the first
	// time this instance is observed; empty means untracked. It lives on
	// the instance itself rather than in a side table keyed by pointer, so
	// the tracker's reverse index (trace/objtrack) can hold a weak
	// reference instead of pinning every tracked instance alive.
	TrackID string
}

func NewInstance(c *Class) *Instance {
	return &Instance{Class: c, Fields: map[string]Value{}}
}

func (i *Instance) TypeName() string { return i.Class.TypeName() }

// Function is a user-defined callable. Params/Body/Closure are filled in by
// the interpreter (trace/interp.go) from an *ast.FunctionDef.
type Function struct {
	Module   string
	Name     string
	Receiver *Class // non-nil for methods, used by the name inspector's
	// bound-method fallback (§4.1)
	Params  []ast.Param
	Body    []ast.Stmt
	Closure *Scope
}

func (f *Function) TypeName() string { return "builtins.function" }

// QualifiedName reports Receiver.Name.Method for methods and plain Name for
// free functions, per §4.1.
func (f *Function) QualifiedName() string {
	if f.Receiver != nil {
		return f.Receiver.Name + "." + f.Name
	}
	return f.Name
}

// BoundMethod pairs a Function with the receiver it was looked up on.
type BoundMethod struct {
	Fn   *Function
	Self Value
}

func (*BoundMethod) TypeName() string { return "builtins.method" }

// NativeFunc is a Go-implemented callable: either a language builtin (the
// operator-support module of §4.6) or a trace hook. Caller is an opaque
// pointer to the interpreter, typed as interface{} here to avoid this leaf
// package depending on the trace package; callers type-assert it back.
type NativeFunc struct {
	Module string
	Name   string
	Arity  int // -1 for variadic
	Fn     func(caller interface{}, pos []Value, kw map[string]Value) (Value, error)
}

func (*NativeFunc) TypeName() string { return "builtins.builtin_function_or_method" }

// Module is a namespace value, used for the name inspector's "builtins"
// fallback module and for user-defined modules (§4.1).
type Module struct {
	Name    string
	Members map[string]Value
}

func (m *Module) TypeName() string { return "builtins.module" }

// Truthy implements the language's boolean coercion rules.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case noneValue:
		return false
	case Bool:
		return bool(t)
	case Int:
		return t != 0
	case Float:
		return t != 0
	case Str:
		return t != ""
	case *List:
		return len(t.Elems) > 0
	case *Tuple:
		return len(t.Elems) > 0
	case *Dict:
		return t.Len() > 0
	case *Set:
		return t.Len() > 0
	default:
		return true
	}
}

// Repr renders a value for diagnostics, for print, and for the slot name the
// flow-graph builder records on an attribute-read node; port payloads come
// from JSON instead.
func Repr(v Value) string {
	switch t := v.(type) {
	case noneValue:
		return "None"
	case Bool:
		return strconv.FormatBool(bool(t))
	case Int:
		return strconv.FormatInt(int64(t), 10)
	case Float:
		return strconv.FormatFloat(float64(t), 'g', -1, 64)
	case Str:
		return string(t)
	case *List:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = Repr(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Tuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = Repr(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Instance:
		return t.TypeName() + "{}"
	default:
		return v.TypeName()
	}
}

// JSON converts v into a plain Go value suitable for json.Marshal when v is
// representable (§4.8 step 2 "deep-copied primitive payload ... if the
// value is JSON-representable"); ok is false for values with no safe
// primitive projection (instances, callables).
func JSON(v Value) (interface{}, bool) {
	switch t := v.(type) {
	case noneValue:
		return nil, true
	case Bool:
		return bool(t), true
	case Int:
		return int64(t), true
	case Float:
		return float64(t), true
	case Str:
		return string(t), true
	case *List:
		out := make([]interface{}, 0, len(t.Elems))
		for _, e := range t.Elems {
			jv, ok := JSON(e)
			if !ok {
				return nil, false
			}
			out = append(out, jv)
		}
		return out, true
	case *Tuple:
		out := make([]interface{}, 0, len(t.Elems))
		for _, e := range t.Elems {
			jv, ok := JSON(e)
			if !ok {
				return nil, false
			}
			out = append(out, jv)
		}
		return out, true
	default:
		return nil, false
	}
}

// IsBuiltinType reports whether typeName is one of the language's built-in
// scalar/container type names, used when the builder decides whether to
// attach a port's type name (§4.8 step 2 "unless the type is built-in").
func IsBuiltinType(typeName string) bool {
	return strings.HasPrefix(typeName, "builtins.")
}

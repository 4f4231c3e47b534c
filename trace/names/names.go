// Package names implements the name inspector (§4.1): given a resolved
// callable value, it reports the (module name, qualified name) pair the
// flow-graph builder uses to name Call nodes. It is grounded on the
// original pyflowgraph name-inspection module (`_examples/original_source`,
// flowgraph/trace), which falls back to a synthetic "builtins" module and
// to the callable's own type name when nothing more specific is available.
package names

import "github.com/viant/flowgraph/trace/value"

// Resolve returns the defining module and the qualified name for callable.
// module is never empty: a callable that carries no module of its own
// reports "builtins".
func Resolve(callable value.Value) (module string, qualified string) {
	switch t := callable.(type) {
	case *value.NativeFunc:
		mod := t.Module
		if mod == "" {
			mod = "builtins"
		}
		return mod, t.Name

	case *value.Function:
		mod := t.Module
		if mod == "" {
			mod = "builtins"
		}
		return mod, t.QualifiedName()

	case *value.BoundMethod:
		// A bound method reports its underlying function's qualified name;
		// when the function itself is anonymous (e.g. produced from a
		// lambda assigned to an attribute) fall back to the receiver's type
		// name plus a synthetic "<lambda>" marker, mirroring the original's
		// "callable object without a recognisable __name__" fallback.
		if t.Fn != nil {
			mod := t.Fn.Module
			if mod == "" {
				mod = "builtins"
			}
			if t.Fn.Name != "" {
				return mod, t.Fn.QualifiedName()
			}
			return mod, t.Self.TypeName() + ".<lambda>"
		}
		return "builtins", t.Self.TypeName() + ".<callable>"

	case *value.Class:
		mod := t.Module
		if mod == "" {
			mod = "builtins"
		}
		return mod, t.QualifiedName()

	case nil:
		return "builtins", "<unknown>"

	default:
		// Any other callable-shaped value (a class instance implementing a
		// call operator, for instance) falls back to its type name, the
		// same fallback the original applies to arbitrary callable objects.
		return "builtins", callable.TypeName()
	}
}

// QualifiedNameOf is a convenience wrapper returning "module.qualified" in
// one string.
func QualifiedNameOf(callable value.Value) string {
	module, qualified := Resolve(callable)
	if module == "" {
		return qualified
	}
	return module + "." + qualified
}

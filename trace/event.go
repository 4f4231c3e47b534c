package trace

import "github.com/viant/flowgraph/trace/value"

// Kind classifies a trace event (§3). Call/Return bracket every call,
// including the builtin attribute/item operations the normaliser lowered
// non-call syntax into (§4.4); Access/Assign/Delete are emitted directly by
// the interpreter for plain variable reads, bindings and deletions (§4.6).
type Kind int

const (
	Call Kind = iota
	Return
	Access
	Assign
	Delete
)

func (k Kind) String() string {
	switch k {
	case Call:
		return "call"
	case Return:
		return "return"
	case Access:
		return "access"
	case Assign:
		return "assign"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Arg is one bound argument of a Call event, in binding order (§4.2).
type Arg struct {
	Name string
	Box  Box
}

// Event is one record the tracer emits. Seq is a monotonically increasing
// sequence number across the whole recording.
type Event struct {
	Kind    Kind
	Seq     int
	ScopeID string

	Module string
	Name   string // qualified name (§4.1) for Call; attribute/key label for Access/Assign/Delete
	Callee value.Value

	// Atomic marks a Call event whose body will not be recursively traced
	// (§3, §4.6 "Atomicity rule"): native functions and bodiless
	// constructors are atomic, user-defined functions, bound methods and
	// __init__-backed constructors are not.
	Atomic bool

	// Receiver is the object an event was performed against, when its
	// producer supplies one. trace.Interp always leaves it zero: its
	// Access/Assign/Delete events concern plain variables, and attribute and
	// item operations arrive as Call/Return pairs.
	Receiver Box

	// Args holds the bound call arguments for Call events and the single
	// accessed/assigned value for Access/Assign events (under the name
	// "value"); empty for Delete.
	Args []Arg

	// Result is the Call's return value, echoed onto the matching Return
	// event so the builder can link a call's output port without having to
	// re-walk the pending-call substack.
	Result Box

	// MultipleValues is set on a Return event when the syntactic context
	// that consumed it destructures the result (§3 "a flag multiple_values
	// indicating whether the surrounding syntactic context destructures the
	// return"), e.g. `x, y = Pair()`. The builder uses it to decide between
	// a single "return" port and one "return.i" port per element (§4.8
	// step 3, §8 "Boundary behaviours").
	MultipleValues bool

	// Pattern holds the symbolic shape of an Assign's target when it is a
	// destructuring pattern rather than a single name (§4.4.7
	// "pattern_literal is the symbolic shape of the target"); nil for a
	// plain `x = ...` assignment, where Name alone carries the target.
	Pattern []string
}

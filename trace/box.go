package trace

import "github.com/viant/flowgraph/trace/value"

// Box pairs a runtime value with the event that produced it, when known
// (§9 boxed-value discipline: "Arg = Raw(Value) | Event(Event)"). An
// argument evaluated straight from a literal or a variable lookup is Raw;
// an argument that is itself the result of a nested traced call carries
// that call's Return event as its Origin, so the flow-graph builder can
// draw an edge to the nested call's output port instead of materialising a
// fresh literal node for the same value.
type Box struct {
	Value  value.Value
	Origin *Event
}

// Raw boxes a plain value with no known call origin.
func Raw(v value.Value) Box { return Box{Value: v} }

// FromEvent boxes a value together with the event that produced it.
func FromEvent(v value.Value, origin *Event) Box { return Box{Value: v, Origin: origin} }

// IsZero reports whether b carries no value, used for Delete events whose
// Result is intentionally empty.
func (b Box) IsZero() bool { return b.Value == nil && b.Origin == nil }

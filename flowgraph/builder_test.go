package flowgraph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/flowgraph/annotation"
	"github.com/viant/flowgraph/annotation/mem"
	"github.com/viant/flowgraph/flowgraph"
	"github.com/viant/flowgraph/trace"
	"github.com/viant/flowgraph/trace/objtrack"
	"github.com/viant/flowgraph/trace/value"
)

func findNode(g *flowgraph.Graph, id string) *flowgraph.Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

func findEdge(g *flowgraph.Graph, source, target, sourcePort, targetPort string) *flowgraph.Edge {
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target && e.SourcePort == sourcePort && e.TargetPort == targetPort {
			return e
		}
	}
	return nil
}

// TestChainedCallsWireEdgeBetweenProducerAndConsumer exercises the §8
// worked scenario `x = A(); y = B(x)`: the object A returns flows straight
// into B's argument port, and A's node keeps its INPUT-less OUTPUT edge.
func TestChainedCallsWireEdgeBetweenProducerAndConsumer(t *testing.T) {
	tracker := objtrack.New()
	b := flowgraph.New(context.Background(), nil, tracker, flowgraph.Options{})

	inst := value.NewInstance(&value.Class{Module: "pkg", Name: "Widget"})
	oid, ok := tracker.Track(inst)
	require.True(t, ok)

	callA := &trace.Event{Kind: trace.Call, Module: "pkg", Name: "A", Atomic: true}
	require.NoError(t, b.PushEvent(callA))
	returnA := &trace.Event{Kind: trace.Return, Module: "pkg", Name: "A", Atomic: true, Result: trace.Box{Value: inst}}
	require.NoError(t, b.PushEvent(returnA))

	assignX := &trace.Event{Kind: trace.Assign, Name: "x", Args: []trace.Arg{{Name: "value", Box: trace.FromEvent(inst, returnA)}}}
	require.NoError(t, b.PushEvent(assignX))

	accessX := &trace.Event{Kind: trace.Access, Name: "x"}
	require.NoError(t, b.PushEvent(accessX))

	callB := &trace.Event{
		Kind: trace.Call, Module: "pkg", Name: "B", Atomic: true,
		Args: []trace.Arg{{Name: "a", Box: trace.FromEvent(inst, accessX)}},
	}
	require.NoError(t, b.PushEvent(callB))
	returnB := &trace.Event{Kind: trace.Return, Module: "pkg", Name: "B", Atomic: true}
	require.NoError(t, b.PushEvent(returnB))

	g := b.Graph()
	nodeA := findNode(g, "A:1")
	nodeB := findNode(g, "B:1")
	require.NotNil(t, nodeA)
	require.NotNil(t, nodeB)

	edge := findEdge(g, nodeA.ID, nodeB.ID, "return", "a")
	require.NotNil(t, edge, "A's return value must flow directly into B's argument port")
	assert.Equal(t, oid, edge.ObjectID)

	outputEdge := findEdge(g, nodeA.ID, g.OutputID, "return", "")
	assert.NotNil(t, outputEdge, "A:1 keeps its edge into OUTPUT even after B consumes the same object")
}

// TestRepeatedConsumerCallsShareTheSameProducerEdgeAndOutputPersists covers
// two calls from the same producer (`B(x); B(x)`): both get an edge from
// A's output port, and A's OUTPUT edge is never removed by a consumer.
func TestRepeatedConsumerCallsShareTheSameProducerEdgeAndOutputPersists(t *testing.T) {
	tracker := objtrack.New()
	b := flowgraph.New(context.Background(), nil, tracker, flowgraph.Options{})

	inst := value.NewInstance(&value.Class{Module: "pkg", Name: "Widget"})
	_, ok := tracker.Track(inst)
	require.True(t, ok)

	require.NoError(t, b.PushEvent(&trace.Event{Kind: trace.Call, Module: "pkg", Name: "A", Atomic: true}))
	returnA := &trace.Event{Kind: trace.Return, Module: "pkg", Name: "A", Atomic: true, Result: trace.Box{Value: inst}}
	require.NoError(t, b.PushEvent(returnA))

	for i := 0; i < 2; i++ {
		require.NoError(t, b.PushEvent(&trace.Event{
			Kind: trace.Call, Module: "pkg", Name: "B", Atomic: true,
			Args: []trace.Arg{{Name: "a", Box: trace.FromEvent(inst, returnA)}},
		}))
		require.NoError(t, b.PushEvent(&trace.Event{Kind: trace.Return, Module: "pkg", Name: "B", Atomic: true}))
	}

	g := b.Graph()
	nodeA := findNode(g, "A:1")
	require.NotNil(t, nodeA)

	assert.NotNil(t, findEdge(g, nodeA.ID, "B:1", "return", "a"))
	assert.NotNil(t, findEdge(g, nodeA.ID, "B:2", "return", "a"))
	assert.NotNil(t, findEdge(g, nodeA.ID, g.OutputID, "return", ""))
}

// TestMutationAnnotationReplacesOutputEdge covers §4.8 step 3/4's mutation
// rule: an annotated output argument gets its own "name!" output port and
// OUTPUT edge, overriding whatever previously claimed that object id.
func TestMutationAnnotationReplacesOutputEdge(t *testing.T) {
	store := mem.New(&annotation.Record{
		Language: "lang", Package: "pkg", Kind: "function", Function: "mutate",
		Outputs: []annotation.SlotDescriptor{{Name: "obj"}},
	})
	ann := annotation.New(store, "lang", "pkg")
	tracker := objtrack.New()
	b := flowgraph.New(context.Background(), ann, tracker, flowgraph.Options{})

	inst := value.NewInstance(&value.Class{Module: "pkg", Name: "Widget"})
	oid, _ := tracker.Track(inst)

	callee := &value.Function{Module: "pkg", Name: "mutate"}
	require.NoError(t, b.PushEvent(&trace.Event{
		Kind: trace.Call, Module: "pkg", Name: "mutate", Callee: callee, Atomic: true,
		Args: []trace.Arg{{Name: "obj", Box: trace.Raw(inst)}},
	}))
	require.NoError(t, b.PushEvent(&trace.Event{
		Kind: trace.Return, Module: "pkg", Name: "mutate", Callee: callee, Atomic: true,
		Args: []trace.Arg{{Name: "obj", Box: trace.Raw(inst)}},
	}))

	g := b.Graph()
	node := findNode(g, "mutate:1")
	require.NotNil(t, node)
	_, hasMutatedPort := node.Outputs.Get("obj!")
	assert.True(t, hasMutatedPort)

	edge := findEdge(g, node.ID, g.OutputID, "obj!", "")
	require.NotNil(t, edge)
	assert.Equal(t, oid, edge.ObjectID)
}

// TestMultipleValuesReturnProducesIndexedPorts covers `x, y = Pair()`:
// MultipleValues fans a tuple result out into return.0/return.1 ports.
func TestMultipleValuesReturnProducesIndexedPorts(t *testing.T) {
	tracker := objtrack.New()
	b := flowgraph.New(context.Background(), nil, tracker, flowgraph.Options{})

	a := value.NewInstance(&value.Class{Module: "pkg", Name: "A"})
	c := value.NewInstance(&value.Class{Module: "pkg", Name: "C"})
	tracker.Track(a)
	tracker.Track(c)

	require.NoError(t, b.PushEvent(&trace.Event{Kind: trace.Call, Module: "pkg", Name: "Pair", Atomic: true}))
	require.NoError(t, b.PushEvent(&trace.Event{
		Kind: trace.Return, Module: "pkg", Name: "Pair", Atomic: true, MultipleValues: true,
		Result: trace.Box{Value: &value.Tuple{Elems: []value.Value{a, c}}},
	}))

	g := b.Graph()
	node := findNode(g, "Pair:1")
	require.NotNil(t, node)
	_, ok0 := node.Outputs.Get("return.0")
	_, ok1 := node.Outputs.Get("return.1")
	assert.True(t, ok0)
	assert.True(t, ok1)
	assert.NotNil(t, findEdge(g, node.ID, g.OutputID, "return.0", ""))
	assert.NotNil(t, findEdge(g, node.ID, g.OutputID, "return.1", ""))
}

// TestNonAtomicCallOpensNestedSubgraph covers §4.8 step 4: a user-defined
// (non-atomic) call gets its own nested Graph, torn down on Return.
func TestNonAtomicCallOpensNestedSubgraph(t *testing.T) {
	b := flowgraph.New(context.Background(), nil, nil, flowgraph.Options{})

	require.NoError(t, b.PushEvent(&trace.Event{Kind: trace.Call, Module: "pkg", Name: "f", Atomic: false}))
	g := b.Graph()
	node := findNode(g, "f:1")
	require.NotNil(t, node)
	require.NotNil(t, node.Graph, "a non-atomic call opens a nested subgraph")
	assert.Equal(t, node.ID+".INPUT", node.Graph.InputID)
	assert.Equal(t, node.ID+".OUTPUT", node.Graph.OutputID)

	require.NoError(t, b.PushEvent(&trace.Event{Kind: trace.Return, Module: "pkg", Name: "f", Atomic: false}))
}

// TestAttributeGetterReturningCallableIsRemoved covers the special removal
// rule: `__getattr__` resolving to something callable (a bound method
// lookup, not a genuine attribute read) never becomes a graph node.
func TestAttributeGetterReturningCallableIsRemoved(t *testing.T) {
	b := flowgraph.New(context.Background(), nil, nil, flowgraph.Options{})

	receiver := value.NewInstance(&value.Class{Module: "pkg", Name: "Widget"})
	require.NoError(t, b.PushEvent(&trace.Event{
		Kind: trace.Call, Module: "builtins", Name: "__getattr__", Atomic: true,
		Args: []trace.Arg{{Name: "0", Box: trace.Raw(receiver)}, {Name: "1", Box: trace.Raw(value.Str("move"))}},
	}))
	method := &value.BoundMethod{Self: receiver}
	require.NoError(t, b.PushEvent(&trace.Event{
		Kind: trace.Return, Module: "builtins", Name: "__getattr__", Atomic: true,
		Result: trace.Box{Value: method},
	}))

	g := b.Graph()
	assert.Nil(t, findNode(g, "__getattr__:1"), "a method-lookup getattr call must not remain a node")
}

// TestAttributeGetterReturningPlainValueBecomesSlotNode covers the other
// `__getattr__` outcome: a genuine field read with no annotation match
// becomes a slot-kind node naming the accessed field.
func TestAttributeGetterReturningPlainValueBecomesSlotNode(t *testing.T) {
	b := flowgraph.New(context.Background(), nil, nil, flowgraph.Options{})

	receiver := value.NewInstance(&value.Class{Module: "pkg", Name: "Widget"})
	require.NoError(t, b.PushEvent(&trace.Event{
		Kind: trace.Call, Module: "builtins", Name: "__getattr__", Atomic: true,
		Args: []trace.Arg{{Name: "0", Box: trace.Raw(receiver)}, {Name: "1", Box: trace.Raw(value.Str("x"))}},
	}))
	require.NoError(t, b.PushEvent(&trace.Event{
		Kind: trace.Return, Module: "builtins", Name: "__getattr__", Atomic: true,
		Args:   []trace.Arg{{Name: "0", Box: trace.Raw(receiver)}, {Name: "1", Box: trace.Raw(value.Str("x"))}},
		Result: trace.Box{Value: value.Int(1)},
	}))

	g := b.Graph()
	node := findNode(g, "__getattr__:1")
	require.NotNil(t, node)
	assert.Equal(t, flowgraph.AnnotationSlot, node.AnnotationKind)
	assert.Equal(t, "x", node.Slot)
}

func TestReturnWithoutMatchingCallIsInternalInvariant(t *testing.T) {
	b := flowgraph.New(context.Background(), nil, nil, flowgraph.Options{})
	err := b.PushEvent(&trace.Event{Kind: trace.Return, Name: "f"})
	assert.ErrorIs(t, err, flowgraph.ErrInternalInvariant)
}

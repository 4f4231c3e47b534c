package flowgraph

import (
	"context"
	"fmt"

	"github.com/viant/flowgraph/annotation"
	"github.com/viant/flowgraph/trace"
	"github.com/viant/flowgraph/trace/objtrack"
	"github.com/viant/flowgraph/trace/value"
)

// ErrInternalInvariant is raised when a Return event arrives with no
// matching in-flight Call, which should be unreachable given the tracer's
// own Call/Return nesting guarantee (§5, §7 "InternalInvariantFailure").
var ErrInternalInvariant = fmt.Errorf("flowgraph: internal invariant violated")

// portRef is the (node, port) pair the object/variable/event tables map to
// (§4.8, glossary "Output table"/"Variable table"/"Event table").
type portRef struct {
	node *Node
	port string
}

// callMarker tracks one in-flight call across the Call/Return pair,
// independent of which graph scope is "current" when each half is
// processed (§5 "nested Call/Return pairs properly nested").
type callMarker struct {
	node        *Node
	framePushed bool
}

// frame is one scope's bookkeeping (§4.8 "Per-scope context"): the graph it
// is building plus its three lookup tables.
type frame struct {
	graph *Graph

	outputTable   map[string]portRef
	variableTable map[string]portRef
	eventTable    map[*trace.Event]portRef
}

func newFrame(g *Graph) *frame {
	return &frame{
		graph:         g,
		outputTable:   map[string]portRef{},
		variableTable: map[string]portRef{},
		eventTable:    map[*trace.Event]portRef{},
	}
}

// Builder consumes a tracer's event stream one event at a time (§4.9
// "builder consumes each event as push_event") and maintains the evolving
// flow graph described by §3.
type Builder struct {
	ctx     context.Context
	ann     *annotation.Annotator
	tracker *objtrack.Tracker
	opts    Options

	root   *Graph
	frames []*frame
	calls  []*callMarker
	namer  *nodeNamer
}

// New constructs a Builder rooted at a fresh top-level graph. ann and
// tracker may be nil; a nil annotator simply never finds annotations
// (AnnotationMissing is the expected path, §7) and a nil tracker treats
// every value as untrackable.
func New(ctx context.Context, ann *annotation.Annotator, tracker *objtrack.Tracker, opts Options) *Builder {
	root := newGraph("INPUT", "OUTPUT")
	b := &Builder{ctx: ctx, ann: ann, tracker: tracker, opts: opts, root: root, namer: newNodeNamer()}
	b.frames = []*frame{newFrame(root)}
	return b
}

// Graph returns the root graph built so far; valid to call at any point,
// including before the recording has finished (§4.9).
func (b *Builder) Graph() *Graph { return b.root }

func (b *Builder) current() *frame { return b.frames[len(b.frames)-1] }

// PushEvent consumes one trace event, advancing the graph under
// construction (§4.8).
func (b *Builder) PushEvent(ev *trace.Event) error {
	switch ev.Kind {
	case trace.Call:
		return b.onCall(ev)
	case trace.Return:
		return b.onReturn(ev)
	case trace.Access:
		b.onAccess(ev)
		return nil
	case trace.Assign:
		b.onAssign(ev)
		return nil
	case trace.Delete:
		b.onDelete(ev)
		return nil
	default:
		return fmt.Errorf("flowgraph: unknown event kind %v", ev.Kind)
	}
}

// trackedID resolves the stable identifier for v, assigning one on first
// observation (§4.3 "assigns a stable, monotonically increasing identifier
// to every trackable value the tracer observes"). Track is idempotent, so
// the same instance seen again later (as an argument, a return value, or a
// mutated slot) always resolves to the same id.
func (b *Builder) trackedID(v value.Value) (string, bool) {
	if b.tracker == nil {
		return "", false
	}
	return b.tracker.Track(v)
}

// onCall implements §4.8 "On a Call event".
func (b *Builder) onCall(ev *trace.Event) error {
	cur := b.current()

	record, err := b.annotationForCallable(ev)
	if err != nil {
		return err
	}

	id := b.namer.next(ev.Name, ev.ScopeID)
	node := newNode(id, ev.Module, ev.Name)
	if record != nil {
		node.AnnotationKey = record.ID
		node.AnnotationKind = AnnotationFunction
	}

	for _, arg := range ev.Args {
		port := &Port{Name: arg.Name}
		if oid, ok := b.trackedID(arg.Box.Value); ok {
			port.ObjectID = oid
		}
		if payload, ok := value.JSON(arg.Box.Value); ok {
			port.Payload = payload
		}
		if tn := arg.Box.Value.TypeName(); !value.IsBuiltinType(tn) {
			port.TypeName = tn
		}
		node.Inputs.Add(port)

		b.connectInput(cur, node, arg)
	}

	cur.graph.addNode(node)

	marker := &callMarker{node: node, framePushed: !ev.Atomic}
	b.calls = append(b.calls, marker)

	if !ev.Atomic {
		nested := newGraph(node.ID+".INPUT", node.ID+".OUTPUT")
		node.Graph = nested
		b.frames = append(b.frames, newFrame(nested))
	}
	return nil
}

// connectInput wires one Call argument's incoming edge per §4.8 step 3.
func (b *Builder) connectInput(cur *frame, node *Node, arg trace.Arg) {
	oid, tracked := b.trackedID(arg.Box.Value)

	if tracked {
		if ref, ok := cur.outputTable[oid]; ok {
			cur.graph.addEdge(&Edge{Source: ref.node.ID, Target: node.ID, SourcePort: ref.port, TargetPort: arg.Name, ObjectID: oid})
			return
		}
	}
	if arg.Box.Origin != nil {
		if ref, ok := cur.eventTable[arg.Box.Origin]; ok {
			cur.graph.addEdge(&Edge{Source: ref.node.ID, Target: node.ID, SourcePort: ref.port, TargetPort: arg.Name, ObjectID: oid})
			return
		}
	}
	if tracked {
		cur.graph.addEdge(&Edge{Source: cur.graph.InputID, Target: node.ID, SourcePort: "", TargetPort: arg.Name, ObjectID: oid})
	}
	// Untrackable with no known provenance: no edge (§7 UntrackableValue).
}

// onReturn implements §4.8 "On a Return event".
func (b *Builder) onReturn(ev *trace.Event) error {
	if len(b.calls) == 0 {
		return fmt.Errorf("%w: unmatched return for %s", ErrInternalInvariant, ev.Name)
	}
	marker := b.calls[len(b.calls)-1]
	b.calls = b.calls[:len(b.calls)-1]
	if marker.framePushed {
		if len(b.frames) < 2 {
			return fmt.Errorf("%w: frame stack underflow for %s", ErrInternalInvariant, ev.Name)
		}
		b.frames = b.frames[:len(b.frames)-1]
	}
	cur := b.current()
	node := marker.node

	if isAttributeGetter(ev) && looksCallable(ev.Result.Value) {
		cur.graph.removeNode(node)
		return nil
	}

	record, err := b.annotationForCallable(ev)
	if err != nil {
		return err
	}

	_, resultTracked := b.trackedID(ev.Result.Value)

	if ev.MultipleValues {
		items, _ := iterateValue(ev.Result.Value)
		for i, item := range items {
			portName := fmt.Sprintf("return.%d", i)
			b.addOutputPort(node, portName, item)
			b.setObjectOutput(cur, node, portName, item)
		}
	} else {
		b.addOutputPort(node, "return", ev.Result.Value)
		if resultTracked {
			b.setObjectOutput(cur, node, "return", ev.Result.Value)
		} else {
			cur.eventTable[ev] = portRef{node: node, port: "return"}
		}
	}

	for _, arg := range ev.Args {
		if !b.isMutated(ev, arg.Name, record) {
			continue
		}
		portName := arg.Name + "!"
		b.addOutputPort(node, portName, arg.Box.Value)
		b.setObjectOutput(cur, node, portName, arg.Box.Value)
		b.captureSlots(cur, node, portName, arg.Box.Value)
	}

	if !ev.MultipleValues && resultTracked {
		b.captureSlots(cur, node, "return", ev.Result.Value)
	}

	if record == nil && isAttributeGetter(ev) {
		if len(ev.Args) >= 2 {
			name := value.Repr(ev.Args[1].Box.Value)
			node.Slot = name
			node.AnnotationKind = AnnotationSlot
		}
	} else if record == nil && isConstructorCall(ev) {
		node.AnnotationKind = AnnotationConstruct
	}

	return nil
}

// addOutputPort fills in one output port's descriptive fields, mirroring
// the input-port construction in onCall.
func (b *Builder) addOutputPort(node *Node, name string, v value.Value) {
	port := &Port{Name: name}
	if oid, ok := b.trackedID(v); ok {
		port.ObjectID = oid
	}
	if payload, ok := value.JSON(v); ok {
		port.Payload = payload
	}
	if v != nil {
		if tn := v.TypeName(); !value.IsBuiltinType(tn) {
			port.TypeName = tn
		}
	}
	node.Outputs.Add(port)
}

// setObjectOutput implements §4.8 step 4: at most one edge from a
// non-sentinel node to OUTPUT may carry a given object id at any time.
func (b *Builder) setObjectOutput(cur *frame, node *Node, port string, v value.Value) {
	oid, ok := b.trackedID(v)
	if !ok {
		return
	}
	cur.graph.removeOutputEdge(oid)
	cur.graph.addEdge(&Edge{Source: node.ID, Target: cur.graph.OutputID, SourcePort: port, TargetPort: "", ObjectID: oid})
	cur.outputTable[oid] = portRef{node: node, port: port}
}

// isMutated implements the purity rule of §4.8 step 3: a call is pure
// w.r.t. argument a unless the annotation's outputs list names a, except
// the two canonical mutating operators which mark their receiver (the
// first positional argument) as mutated by default.
func (b *Builder) isMutated(ev *trace.Event, argName string, record *annotation.Record) bool {
	if record.HasOutput(argName) {
		return true
	}
	if ev.Module == "builtins" && (ev.Name == "__setattr__" || ev.Name == "__setitem__") {
		return len(ev.Args) > 0 && ev.Args[0].Name == argName
	}
	return false
}

// captureSlots implements the optional §4.8 step 5 "Slot capture": for each
// slot an annotation declares on v, synthesise a dedicated single-argument
// `slot:<name>` node wired from (node, fromPort), and recurse into the
// slot's own value when it is itself trackable. Disabled unless
// Options.CaptureSlots is set.
func (b *Builder) captureSlots(cur *frame, node *Node, fromPort string, v value.Value) {
	if !b.opts.CaptureSlots {
		return
	}
	inst, ok := v.(*value.Instance)
	if !ok || b.ann == nil {
		return
	}
	record, err := b.ann.ForType(b.ctx, inst.Class)
	if err != nil || record == nil {
		return
	}
	for _, slotName := range record.SlotNames() {
		field, ok := inst.Fields[slotName]
		if !ok {
			continue
		}
		slotNode := newNode(b.namer.next("slot:"+slotName, node.ID), node.Module, "slot:"+slotName)
		slotNode.AnnotationKind = AnnotationSlot
		slotNode.Slot = slotName
		slotNode.Inputs.Add(&Port{Name: "value"})
		cur.graph.addNode(slotNode)
		cur.graph.addEdge(&Edge{Source: node.ID, Target: slotNode.ID, SourcePort: fromPort, TargetPort: "value"})

		b.addOutputPort(slotNode, "return", field)
		if oid, tracked := b.trackedID(field); tracked {
			cur.graph.removeOutputEdge(oid)
			cur.graph.addEdge(&Edge{Source: slotNode.ID, Target: cur.graph.OutputID, SourcePort: "return", ObjectID: oid})
			cur.outputTable[oid] = portRef{node: slotNode, port: "return"}
			b.captureSlots(cur, slotNode, "return", field)
		}
	}
}

func (b *Builder) onAccess(ev *trace.Event) {
	cur := b.current()
	if ref, ok := cur.variableTable[ev.Name]; ok {
		cur.eventTable[ev] = ref
	}
}

func (b *Builder) onAssign(ev *trace.Event) {
	cur := b.current()
	var rhs trace.Box
	if len(ev.Args) > 0 {
		rhs = ev.Args[0].Box
	}

	var source *portRef
	if oid, ok := b.trackedID(rhs.Value); ok {
		if ref, ok := cur.outputTable[oid]; ok {
			source = &ref
		}
	}
	if source == nil && rhs.Origin != nil {
		if ref, ok := cur.eventTable[rhs.Origin]; ok {
			source = &ref
		}
	}
	if source == nil {
		return
	}

	if len(ev.Pattern) == 0 {
		cur.variableTable[ev.Name] = *source
		return
	}
	for i, name := range ev.Pattern {
		cur.variableTable[name] = portRef{node: source.node, port: fmt.Sprintf("%s.%d", source.port, i)}
	}
}

func (b *Builder) onDelete(ev *trace.Event) {
	delete(b.current().variableTable, ev.Name)
}

func (b *Builder) annotationForCallable(ev *trace.Event) (*annotation.Record, error) {
	if b.ann == nil || ev.Callee == nil {
		return nil, nil
	}
	return b.ann.ForCallable(b.ctx, ev.Callee)
}

func isAttributeGetter(ev *trace.Event) bool {
	return ev.Module == "builtins" && ev.Name == "__getattr__"
}

func isConstructorCall(ev *trace.Event) bool {
	_, isClass := ev.Callee.(*value.Class)
	return isClass
}

func looksCallable(v value.Value) bool {
	switch v.(type) {
	case *value.Function, *value.BoundMethod, *value.NativeFunc, *value.Module, *value.Class:
		return true
	default:
		return false
	}
}

func iterateValue(v value.Value) ([]value.Value, error) {
	switch t := v.(type) {
	case *value.Tuple:
		return t.Elems, nil
	case *value.List:
		return t.Elems, nil
	default:
		return nil, fmt.Errorf("flowgraph: return value of type %s is not a sequence", v.TypeName())
	}
}

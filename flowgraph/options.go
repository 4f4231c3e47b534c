package flowgraph

// Options configures optional builder behaviour.
type Options struct {
	// CaptureSlots enables the §4.8 step 5 "Slot capture" pass: a
	// dedicated single-argument `slot:<name>` node is synthesised between a
	// producing node and the next consumer for each annotated slot on a
	// created/mutated value. Off by default since it roughly doubles node
	// count on slot-heavy annotations.
	CaptureSlots bool
}

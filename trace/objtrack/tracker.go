// Package objtrack implements the object tracker (§4.3): it assigns a
// stable, monotonically increasing identifier to every trackable value the
// tracer observes and lets later events ask "have we seen this object
// before, and under what id". Only *value.Instance is trackable (§3):
// scalars, strings and the built-in containers are excluded, matching the
// data model's "user-defined aggregate values typically are [trackable]".
//
// Identity is realised as a weak-reference handle arena, as §9 permits:
// the reverse (id -> instance) index holds a weak.Pointer so a tracked
// instance can still be garbage collected once the traced program drops
// its last reference, and runtime.AddCleanup removes the stale entry when
// that happens.
package objtrack

import (
	"runtime"
	"strconv"
	"sync"
	"weak"

	"github.com/viant/flowgraph/trace/value"
)

// Tracker assigns and resolves object identifiers. The zero value is not
// usable; construct with New.
type Tracker struct {
	mu   sync.Mutex
	next uint64
	byID map[string]weak.Pointer[value.Instance]
}

func New() *Tracker {
	return &Tracker{byID: map[string]weak.Pointer[value.Instance]{}}
}

// IsTrackable reports whether v is a value kind the tracker assigns
// identifiers to.
func IsTrackable(v value.Value) bool {
	_, ok := v.(*value.Instance)
	return ok
}

// IsTracked reports whether v has already been assigned an identifier.
func (t *Tracker) IsTracked(v value.Value) bool {
	inst, ok := v.(*value.Instance)
	return ok && inst.TrackID != ""
}

// Track assigns v an identifier on first observation and returns it; ok is
// false when v is not a trackable kind.
func (t *Tracker) Track(v value.Value) (id string, ok bool) {
	inst, isInstance := v.(*value.Instance)
	if !isInstance {
		return "", false
	}
	if inst.TrackID != "" {
		return inst.TrackID, true
	}

	t.mu.Lock()
	t.next++
	id = strconv.FormatUint(t.next, 10)
	t.mu.Unlock()

	inst.TrackID = id
	wp := weak.Make(inst)

	t.mu.Lock()
	t.byID[id] = wp
	t.mu.Unlock()

	runtime.AddCleanup(inst, t.forget, id)
	return id, true
}

func (t *Tracker) forget(id string) {
	t.mu.Lock()
	delete(t.byID, id)
	t.mu.Unlock()
}

// ID reports the identifier already assigned to v, if any.
func (t *Tracker) ID(v value.Value) (string, bool) {
	inst, ok := v.(*value.Instance)
	if !ok || inst.TrackID == "" {
		return "", false
	}
	return inst.TrackID, true
}

// Get resolves an identifier back to its instance. It returns false once
// the instance has been garbage collected, even though the identifier was
// valid at some earlier point.
func (t *Tracker) Get(id string) (*value.Instance, bool) {
	t.mu.Lock()
	wp, ok := t.byID[id]
	t.mu.Unlock()
	if !ok {
		return nil, false
	}
	inst := wp.Value()
	if inst == nil {
		return nil, false
	}
	return inst, true
}

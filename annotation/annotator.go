// Package annotation's Annotator answers the three questions the flow-graph
// builder asks of the annotation store (§4.7): what does this callable look
// like, what does this value's type look like, and what does a given type
// look like by itself. Exactly as specified, including the partial-order
// rule used to pick the best-matching type record and the per-callable/
// per-type memoisation.
package annotation

import (
	"context"
	"sync"

	"github.com/viant/flowgraph/trace/names"
	"github.com/viant/flowgraph/trace/value"
)

// Annotator fronts a Store and memoises its answers (§4.7 "All results are
// memoised by a key derived from the callable ... or from the type's fully
// qualified name").
type Annotator struct {
	store Store
	lang  string
	pkg   string

	mu          sync.Mutex
	callableMem map[string]*Record
	typeMem     map[string]*Record
}

// New returns an Annotator over store, tagging every lookup with the given
// language and package (§3 "identified by the triple (language, package,
// id)").
func New(store Store, language, pkg string) *Annotator {
	return &Annotator{
		store:       store,
		lang:        language,
		pkg:         pkg,
		callableMem: map[string]*Record{},
		typeMem:     map[string]*Record{},
	}
}

// ForCallable resolves the best annotation for callable (§4.7 "Functions are
// looked up by (language, package, kind: function, function: qualified-
// name); methods are resolved by looking up kind: function annotations
// scoped to the class first, then falling back to the function lookup").
func (a *Annotator) ForCallable(ctx context.Context, callable value.Value) (*Record, error) {
	key := callableKey(callable)
	a.mu.Lock()
	if r, ok := a.callableMem[key]; ok {
		a.mu.Unlock()
		return r, nil
	}
	a.mu.Unlock()

	_, qualified := names.Resolve(callable)

	var class string
	if bm, ok := callable.(*value.BoundMethod); ok {
		class = bm.Self.TypeName()
		// Method records carry the bare method name; the class scopes them.
		if bm.Fn != nil && bm.Fn.Name != "" {
			qualified = bm.Fn.Name
		}
	}

	var record *Record
	var err error
	if class != "" {
		record, err = a.store.Get(ctx, Query{
			"language": a.lang, "package": a.pkg, "kind": "function",
			"class": class, "function": qualified,
		})
		if err != nil {
			return nil, err
		}
	}
	if record == nil {
		record, err = a.store.Get(ctx, Query{
			"language": a.lang, "package": a.pkg, "kind": "function", "function": qualified,
		})
		if err != nil {
			return nil, err
		}
	}

	a.mu.Lock()
	a.callableMem[key] = record
	a.mu.Unlock()
	return record, nil
}

// ForValue resolves the best type annotation for v's runtime type, per
// ForType. It returns (nil, nil) — AnnotationMissing (§7), never an error —
// for any value that is not a user-defined *value.Instance.
func (a *Annotator) ForValue(ctx context.Context, v value.Value) (*Record, error) {
	inst, ok := v.(*value.Instance)
	if !ok {
		return nil, nil
	}
	return a.ForType(ctx, inst.Class)
}

// ForType resolves the best annotation for cls by walking its full ancestor
// chain and applying the partial order of §4.7:
//
//	record A <= record B iff every class in A is a superclass of some class
//	in B
//
// i.e. the record naming the most specific (closest-to-cls) classes wins.
// Ties are broken deterministically by stable iteration order over the
// candidate set, which the store returns and this function never reorders
// except by the partial order itself (§4.7 "Ties are broken arbitrarily but
// deterministically").
func (a *Annotator) ForType(ctx context.Context, cls *value.Class) (*Record, error) {
	if cls == nil {
		return nil, nil
	}
	key := cls.TypeName()
	a.mu.Lock()
	if r, ok := a.typeMem[key]; ok {
		a.mu.Unlock()
		return r, nil
	}
	a.mu.Unlock()

	// rank is each ancestor's distance from cls in its MRO (0 is cls itself),
	// the closest-to-cls-wins ordering the partial order of §4.7 reduces to.
	rank := map[string]int{}
	for i, c := range cls.MRO() {
		rank[c.QualifiedName()] = i
	}

	candidates, err := a.store.Filter(ctx, Query{
		"language": a.lang, "package": a.pkg, "kind": "type",
	})
	if err != nil {
		return nil, err
	}

	var best *Record
	for _, cand := range candidates {
		if !subsetOf(cand.Classes, rank) {
			continue
		}
		if best == nil || precedes(best, cand, rank) {
			best = cand
		}
	}

	a.mu.Lock()
	a.typeMem[key] = best
	a.mu.Unlock()
	return best, nil
}

// subsetOf reports whether every name in classes has a known rank, i.e. is
// one of cls's ancestors (§4.7 "all matching records whose declared class
// set is a subset of the ancestor set are candidates").
func subsetOf(classes []string, rank map[string]int) bool {
	if len(classes) == 0 {
		return false
	}
	for _, c := range classes {
		if _, ok := rank[c]; !ok {
			return false
		}
	}
	return true
}

// precedes reports whether candidate is strictly more specific than best
// under the class-hierarchy partial order of §4.7: "record A <= record B iff
// every class in A is a superclass of some class in B". Walking up cls's MRO,
// the record naming the class closest to cls is the most derived match, so
// candidate precedes best iff its closest named class sits nearer cls (a
// lower rank) than best's; a tie keeps the existing best, the deterministic
// first-seen tie-break §4.7 allows.
func precedes(best, candidate *Record, rank map[string]int) bool {
	return minRank(candidate.Classes, rank) < minRank(best.Classes, rank)
}

// minRank returns the smallest rank among classes, i.e. the distance of the
// most-derived class a record names from the type being resolved.
func minRank(classes []string, rank map[string]int) int {
	best := -1
	for _, c := range classes {
		r, ok := rank[c]
		if !ok {
			continue
		}
		if best == -1 || r < best {
			best = r
		}
	}
	return best
}

// callableKey derives the memoisation key for a callable (§4.7 "function-
// qualified name plus, for bound methods, the receiver's type").
func callableKey(callable value.Value) string {
	_, qualified := names.Resolve(callable)
	if bm, ok := callable.(*value.BoundMethod); ok {
		return bm.Self.TypeName() + "#" + qualified
	}
	return qualified
}

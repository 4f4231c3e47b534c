package annotation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/flowgraph/annotation"
	"github.com/viant/flowgraph/annotation/mem"
	"github.com/viant/flowgraph/trace/value"
)

func TestForCallableResolvesPlainFunction(t *testing.T) {
	store := mem.New(&annotation.Record{
		Language: "py", Package: "pkg", Kind: "function", Function: "helper",
	})
	ann := annotation.New(store, "py", "pkg")

	fn := &value.Function{Module: "pkg", Name: "helper"}
	rec, err := ann.ForCallable(context.Background(), fn)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "helper", rec.Function)
}

func TestForCallablePrefersClassScopedMethodRecord(t *testing.T) {
	store := mem.New(
		&annotation.Record{Language: "py", Package: "pkg", Kind: "function", Function: "move", ID: "generic"},
		&annotation.Record{Language: "py", Package: "pkg", Kind: "function", Function: "move", Class: "pkg.Point", ID: "scoped"},
	)
	ann := annotation.New(store, "py", "pkg")

	cls := &value.Class{Module: "pkg", Name: "Point"}
	fn := &value.Function{Module: "pkg", Receiver: cls, Name: "move"}
	bm := &value.BoundMethod{Fn: fn, Self: value.NewInstance(cls)}

	rec, err := ann.ForCallable(context.Background(), bm)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "scoped", rec.ID)
}

func TestForCallableFallsBackToFunctionRecordWhenNoClassScopedMatch(t *testing.T) {
	store := mem.New(
		&annotation.Record{Language: "py", Package: "pkg", Kind: "function", Function: "move", ID: "generic"},
	)
	ann := annotation.New(store, "py", "pkg")

	cls := &value.Class{Module: "pkg", Name: "Point"}
	fn := &value.Function{Module: "pkg", Receiver: cls, Name: "move"}
	bm := &value.BoundMethod{Fn: fn, Self: value.NewInstance(cls)}

	rec, err := ann.ForCallable(context.Background(), bm)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "generic", rec.ID)
}

func TestForCallableMemoizesResult(t *testing.T) {
	store := mem.New(&annotation.Record{Language: "py", Package: "pkg", Kind: "function", Function: "f", ID: "first"})
	ann := annotation.New(store, "py", "pkg")
	fn := &value.Function{Module: "pkg", Name: "f"}

	first, err := ann.ForCallable(context.Background(), fn)
	require.NoError(t, err)
	require.NotNil(t, first)

	store.Add(&annotation.Record{Language: "py", Package: "pkg", Kind: "function", Function: "f", ID: "second"})
	second, err := ann.ForCallable(context.Background(), fn)
	require.NoError(t, err)
	assert.Same(t, first, second, "a memoized callable lookup must not be recomputed against a changed store")
}

func TestForTypePicksMostSpecificAncestorRecord(t *testing.T) {
	a := &value.Class{Module: "pkg", Name: "A"}
	b := &value.Class{Module: "pkg", Name: "B", Bases: []*value.Class{a}}
	c := &value.Class{Module: "pkg", Name: "C", Bases: []*value.Class{b}}

	store := mem.New(
		&annotation.Record{Language: "py", Package: "pkg", Kind: "type", Classes: []string{"A"}, ID: "shallow"},
		&annotation.Record{Language: "py", Package: "pkg", Kind: "type", Classes: []string{"A", "B"}, ID: "deep"},
	)
	ann := annotation.New(store, "py", "pkg")

	rec, err := ann.ForType(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "deep", rec.ID, "the record naming the class closest to C wins")
}

func TestForTypePicksRecordNamingTheMoreDerivedSingleClass(t *testing.T) {
	// C <: B <: A: a record declaring {A} alone must lose to one declaring
	// {B} alone, since B is the more-derived (closer to cls) ancestor — the
	// canonical case the class-cardinality shortcut cannot order at all.
	a := &value.Class{Module: "pkg", Name: "A"}
	b := &value.Class{Module: "pkg", Name: "B", Bases: []*value.Class{a}}
	c := &value.Class{Module: "pkg", Name: "C", Bases: []*value.Class{b}}

	store := mem.New(
		&annotation.Record{Language: "py", Package: "pkg", Kind: "type", Classes: []string{"A"}, ID: "namesA"},
		&annotation.Record{Language: "py", Package: "pkg", Kind: "type", Classes: []string{"B"}, ID: "namesB"},
	)
	ann := annotation.New(store, "py", "pkg")

	rec, err := ann.ForType(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "namesB", rec.ID, "the record naming the more-derived class must win regardless of store order")

	store2 := mem.New(
		&annotation.Record{Language: "py", Package: "pkg", Kind: "type", Classes: []string{"B"}, ID: "namesB"},
		&annotation.Record{Language: "py", Package: "pkg", Kind: "type", Classes: []string{"A"}, ID: "namesA"},
	)
	ann2 := annotation.New(store2, "py", "pkg")
	rec2, err := ann2.ForType(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, rec2)
	assert.Equal(t, "namesB", rec2.ID, "the winner must not depend on candidate iteration order")
}

func TestForTypeReturnsNilWhenNoCandidateIsASubsetOfAncestry(t *testing.T) {
	a := &value.Class{Module: "pkg", Name: "A"}
	store := mem.New(&annotation.Record{Language: "py", Package: "pkg", Kind: "type", Classes: []string{"Unrelated"}})
	ann := annotation.New(store, "py", "pkg")

	rec, err := ann.ForType(context.Background(), a)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestForValueOnlyResolvesInstances(t *testing.T) {
	store := mem.New()
	ann := annotation.New(store, "py", "pkg")

	rec, err := ann.ForValue(context.Background(), value.Int(1))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

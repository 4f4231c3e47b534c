package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	tests := []struct {
		description string
		v           Value
		want        bool
	}{
		{"none is falsy", None, false},
		{"zero int is falsy", Int(0), false},
		{"nonzero int is truthy", Int(1), true},
		{"empty string is falsy", Str(""), false},
		{"nonempty string is truthy", Str("a"), true},
		{"empty list is falsy", &List{}, false},
		{"nonempty list is truthy", &List{Elems: []Value{Int(1)}}, true},
		{"instance is always truthy", NewInstance(&Class{Name: "X"}), true},
	}
	for _, tc := range tests {
		t.Run(tc.description, func(t *testing.T) {
			assert.Equal(t, tc.want, Truthy(tc.v), tc.description)
		})
	}
}

func TestDictPreservesInsertionOrderAndRoundTrips(t *testing.T) {
	d := NewDict()
	require.NoError(t, d.Set(Str("b"), Int(2)))
	require.NoError(t, d.Set(Str("a"), Int(1)))
	require.Equal(t, []Value{Str("b"), Str("a")}, d.Keys())

	v, ok, err := d.Get(Str("a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Int(1), v)

	require.NoError(t, d.Delete(Str("b")))
	assert.Equal(t, []Value{Str("a")}, d.Keys())
	assert.Equal(t, 1, d.Len())
}

func TestDictRejectsUnhashableKey(t *testing.T) {
	d := NewDict()
	err := d.Set(&List{}, Int(1))
	assert.Error(t, err)
}

func TestSetDeduplicatesByHashKey(t *testing.T) {
	s := NewSet()
	require.NoError(t, s.Add(Int(1)))
	require.NoError(t, s.Add(Int(1)))
	require.NoError(t, s.Add(Int(2)))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(Int(1)))
	assert.False(t, s.Contains(Int(3)))
}

func TestClassMROWalksBasesDepthFirst(t *testing.T) {
	a := &Class{Name: "A"}
	b := &Class{Name: "B", Bases: []*Class{a}}
	c := &Class{Name: "C", Bases: []*Class{b}}

	mro := c.MRO()
	require.Len(t, mro, 3)
	assert.Equal(t, "C", mro[0].Name)
	assert.Equal(t, "B", mro[1].Name)
	assert.Equal(t, "A", mro[2].Name)
}

func TestClassLookupWalksMRO(t *testing.T) {
	greetFn := &Function{Name: "greet"}
	base := &Class{Name: "Base", Methods: map[string]*Function{"greet": greetFn}}
	derived := &Class{Name: "Derived", Bases: []*Class{base}, Methods: map[string]*Function{}}

	fn, owner := derived.Lookup("greet")
	require.NotNil(t, fn)
	assert.Same(t, greetFn, fn)
	assert.Same(t, base, owner)

	fn, _ = derived.Lookup("missing")
	assert.Nil(t, fn)
}

func TestJSONRepresentableValues(t *testing.T) {
	v, ok := JSON(&List{Elems: []Value{Int(1), Str("a")}})
	require.True(t, ok)
	assert.Equal(t, []interface{}{int64(1), "a"}, v)

	_, ok = JSON(NewInstance(&Class{Name: "X"}))
	assert.False(t, ok, "instances have no safe primitive projection")
}

func TestIsBuiltinType(t *testing.T) {
	assert.True(t, IsBuiltinType(Int(0).TypeName()))
	assert.False(t, IsBuiltinType((&Class{Module: "mypkg", Name: "Point"}).TypeName()))
}

func TestReprFormatsContainers(t *testing.T) {
	assert.Equal(t, "[1, 2]", Repr(&List{Elems: []Value{Int(1), Int(2)}}))
	assert.Equal(t, "(1, 2)", Repr(&Tuple{Elems: []Value{Int(1), Int(2)}}))
	assert.Equal(t, "None", Repr(None))
}

package mem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/flowgraph/annotation"
)

func TestGetReturnsNilWhenNoRecordMatches(t *testing.T) {
	s := New()
	rec, err := s.Get(context.Background(), annotation.Query{"function": "missing"})
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestGetReturnsSingleMatch(t *testing.T) {
	s := New(&annotation.Record{Function: "f", Kind: "function"})
	rec, err := s.Get(context.Background(), annotation.Query{"function": "f"})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "f", rec.Function)
}

func TestGetReportsAmbiguityForMultipleMatches(t *testing.T) {
	s := New(
		&annotation.Record{Function: "f", ID: "1"},
		&annotation.Record{Function: "f", ID: "2"},
	)
	_, err := s.Get(context.Background(), annotation.Query{"function": "f"})
	assert.ErrorIs(t, err, annotation.ErrAmbiguous)
}

func TestFilterReturnsAllMatches(t *testing.T) {
	s := New(
		&annotation.Record{Kind: "type", Classes: []string{"A"}},
		&annotation.Record{Kind: "type", Classes: []string{"B"}},
		&annotation.Record{Kind: "function", Function: "f"},
	)
	matches, err := s.Filter(context.Background(), annotation.Query{"kind": "type"})
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}

func TestAddAppendsRecordsVisibleToSubsequentQueries(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), annotation.Query{"function": "f"})
	require.NoError(t, err)

	s.Add(&annotation.Record{Function: "f"})
	rec, err := s.Get(context.Background(), annotation.Query{"function": "f"})
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestLoadPackageIsIdempotentAndTracksName(t *testing.T) {
	s := New()
	assert.False(t, s.Loaded("pkg"))
	require.NoError(t, s.LoadPackage(context.Background(), "pkg"))
	assert.True(t, s.Loaded("pkg"))
	require.NoError(t, s.LoadPackage(context.Background(), "pkg"))
	assert.True(t, s.Loaded("pkg"))
}

package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viant/flowgraph/annotation"
)

func TestFilterPostsQueryAndDecodesRecords(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/query", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode([]*annotation.Record{{Function: "f"}})
	}))
	defer srv.Close()

	s := New(srv.URL, time.Second)
	records, err := s.Filter(context.Background(), annotation.Query{"function": "f"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "f", records[0].Function)
	assert.Equal(t, "f", gotBody["function"])
}

func TestFilterTranslatesInAndOrOperatorsToWireShape(t *testing.T) {
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode([]*annotation.Record{})
	}))
	defer srv.Close()

	s := New(srv.URL, time.Second)
	_, err := s.Filter(context.Background(), annotation.Query{
		"function": annotation.In{"f", "g"},
		"$or": annotation.Or{
			{"package": "a"},
			{"package": "b"},
		},
	})
	require.NoError(t, err)

	in, ok := gotBody["function"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{"f", "g"}, in["$in"])

	or, ok := gotBody["$or"].([]interface{})
	require.True(t, ok)
	require.Len(t, or, 2)
}

func TestGetReturnsNilOnNoMatchAndErrAmbiguousOnMultiple(t *testing.T) {
	none := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]*annotation.Record{})
	}))
	defer none.Close()
	s := New(none.URL, time.Second)
	rec, err := s.Get(context.Background(), annotation.Query{"function": "f"})
	require.NoError(t, err)
	assert.Nil(t, rec)

	many := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]*annotation.Record{{ID: "1"}, {ID: "2"}})
	}))
	defer many.Close()
	s2 := New(many.URL, time.Second)
	_, err = s2.Get(context.Background(), annotation.Query{"function": "f"})
	assert.ErrorIs(t, err, annotation.ErrAmbiguous)
}

func TestFilterReturnsErrorOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	s := New(srv.URL, time.Second)
	_, err := s.Filter(context.Background(), annotation.Query{})
	assert.Error(t, err)
}

func TestLoadPackagePostsToPackageEndpoint(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := New(srv.URL, time.Second)
	require.NoError(t, s.LoadPackage(context.Background(), "pkg"))
	assert.Equal(t, "/packages/pkg/load", gotPath)
}

func TestLoadPackageReturnsErrorOnFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := New(srv.URL, time.Second)
	assert.Error(t, s.LoadPackage(context.Background(), "pkg"))
}

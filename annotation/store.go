package annotation

import (
	"context"
	"errors"
)

// ErrAmbiguous is returned by Store.Get when more than one record matches
// the query (§6 "get(query) -> exactly one record or none/error on
// ambiguity").
var ErrAmbiguous = errors.New("annotation: ambiguous query matched more than one record")

// In is the conjunctive-query membership operator (§6 "a $in operator for
// membership").
type In []interface{}

// Or is the conjunctive-query disjunction operator (§6 "a $or operator for
// disjunction"); each element is itself a Query, and the clause matches if
// any one of them does.
type Or []Query

// Query is a conjunctive map of field-name -> equality value, field-name ->
// In, or the reserved key "$or" -> Or (§6 "Queries are conjunctive maps of
// field equalities with a $in operator ... and a $or operator"). Field
// names match Record's yaml tags: "language", "package", "id", "kind",
// "function", "class".
type Query map[string]interface{}

// Store is the narrow collaborator contract the annotator depends on
// (§6). It is a queryable record store outside this system's core; two
// implementations ship here (annotation/mem, annotation/remote) and either
// satisfies this interface.
type Store interface {
	// Get returns exactly one record matching query, or (nil, nil) if none
	// match, or (nil, ErrAmbiguous) if more than one does.
	Get(ctx context.Context, query Query) (*Record, error)

	// Filter returns every record matching query.
	Filter(ctx context.Context, query Query) ([]*Record, error)

	// LoadPackage is an idempotent side effect that makes a package's
	// records available to subsequent Get/Filter calls; repeated calls for
	// the same name must be cheap (§6 "must tolerate repeated calls
	// cheaply").
	LoadPackage(ctx context.Context, name string) error
}

// Match reports whether r satisfies query, implementing the conjunctive
// map/$in/$or semantics directly against Record's exported-ish fields via
// fieldValue. Shared by annotation/mem and by any Store that wants to
// filter a result set it fetched some other way.
func Match(r *Record, query Query) bool {
	for k, v := range query {
		if k == "$or" {
			clauses, ok := v.(Or)
			if !ok {
				return false
			}
			matched := false
			for _, clause := range clauses {
				if Match(r, clause) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
			continue
		}
		field := fieldValue(r, k)
		if in, ok := v.(In); ok {
			if !containsAny(field, in) {
				return false
			}
			continue
		}
		if !equalsField(field, v) {
			return false
		}
	}
	return true
}

func fieldValue(r *Record, key string) interface{} {
	switch key {
	case "language":
		return r.Language
	case "package":
		return r.Package
	case "id":
		return r.ID
	case "kind":
		return r.Kind
	case "function":
		return r.Function
	case "class":
		return r.Class
	case "classes":
		return r.Classes
	default:
		return nil
	}
}

func equalsField(field interface{}, want interface{}) bool {
	if classes, ok := field.([]string); ok {
		s, ok := want.(string)
		if !ok {
			return false
		}
		for _, c := range classes {
			if c == s {
				return true
			}
		}
		return false
	}
	return field == want
}

func containsAny(field interface{}, in In) bool {
	for _, want := range in {
		if equalsField(field, want) {
			return true
		}
	}
	return false
}

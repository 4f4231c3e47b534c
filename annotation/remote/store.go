// Package remote implements an HTTP-backed annotation.Store against a
// configured base URL (§6 Configuration "annotation-store base URL").
// Grounded on the original pyflowgraph remote annotation client
// (`_examples/original_source`, opendisc/remote_annotation_db.py)'s
// get/filter/load_package trio, translated into an idiomatic Go HTTP client
// rather than transliterated line by line.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/viant/flowgraph/annotation"
)

// Store is a thin HTTP client over a remote annotation service exposing
// POST {baseURL}/query and POST {baseURL}/packages/{name}/load.
type Store struct {
	BaseURL string
	Client  *http.Client
	Log     *logrus.Entry
}

// New returns a Store against baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration) *Store {
	return &Store{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
		Log:     logrus.WithField("component", "annotation.remote"),
	}
}

func (s *Store) Get(ctx context.Context, query annotation.Query) (*annotation.Record, error) {
	matches, err := s.Filter(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("annotation: remote get: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, annotation.ErrAmbiguous
	}
}

func (s *Store) Filter(ctx context.Context, query annotation.Query) ([]*annotation.Record, error) {
	body, err := json.Marshal(queryWire(query))
	if err != nil {
		return nil, fmt.Errorf("annotation: encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("annotation: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("annotation: query %s: %w", s.BaseURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("annotation: query %s: unexpected status %d", s.BaseURL, resp.StatusCode)
	}

	var records []*annotation.Record
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("annotation: decode response: %w", err)
	}
	return records, nil
}

// LoadPackage posts to the package-load endpoint; §6 requires it to
// "tolerate repeated calls cheaply", which here just means the remote side
// is responsible for idempotence — this client issues the request every
// time without local caching, same as the original's thin wrapper.
func (s *Store) LoadPackage(ctx context.Context, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/packages/"+name+"/load", nil)
	if err != nil {
		return fmt.Errorf("annotation: build load request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		s.Log.WithError(err).WithField("package", name).Warn("failed to load annotation package")
		return fmt.Errorf("annotation: load package %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("annotation: load package %s: unexpected status %d", name, resp.StatusCode)
	}
	return nil
}

// queryWire converts a Query into a plain JSON-able map, translating the
// In/Or marker types into a conventional "$in"/"$or" wire shape.
func queryWire(q annotation.Query) map[string]interface{} {
	out := make(map[string]interface{}, len(q))
	for k, v := range q {
		switch t := v.(type) {
		case annotation.In:
			out[k] = map[string]interface{}{"$in": []interface{}(t)}
		case annotation.Or:
			clauses := make([]map[string]interface{}, len(t))
			for i, c := range t {
				clauses[i] = queryWire(c)
			}
			out[k] = clauses
		default:
			out[k] = v
		}
	}
	return out
}

// Package store defines the generic document-collection contract every
// engine component persists through, plus the in-memory and sqlite
// implementations. Queries are exact-match conjunctions over top-level
// fields. All results are value copies; no shared mutable state leaks back
// to the caller.
package store

import (
	"context"
	"encoding/json"
)

// Collection names.
const (
	Users           = "users"
	Projects        = "projects"
	ExpenseClaims   = "expense_claims"
	ExpenseItems    = "expense_items"
	ProjectRevenue  = "project_revenue"
	LaborAllocation = "project_labor_allocations"
	ProjectTaxFees  = "project_tax_fees"
	CommissionRules = "commission_rules"
	Settlements     = "project_settlements"
	ImportJobs      = "import_jobs"
	OperationLogs   = "operation_logs"
)

// Doc is one stored document.
type Doc = map[string]any

// Query is an exact-match conjunction over document fields.
type Query = map[string]any

// Store is the document-collection capability set consumed by every
// component. UpsertOne is atomic with respect to a single Store handle;
// the read-modify-write fallback is only race-free under the single-writer
// request model this service runs in.
type Store interface {
	Insert(ctx context.Context, collection string, doc Doc) (Doc, error)
	List(ctx context.Context, collection string) ([]Doc, error)
	// FindOne returns nil with no error when nothing matches.
	FindOne(ctx context.Context, collection string, query Query) (Doc, error)
	FindMany(ctx context.Context, collection string, query Query) ([]Doc, error)
	UpdateMany(ctx context.Context, collection string, query Query, patch Doc) (int, error)
	DeleteMany(ctx context.Context, collection string, query Query) (int, error)
	// UpdateByID patches the document whose idField equals idValue and
	// returns the updated copy, or nil when absent.
	UpdateByID(ctx context.Context, collection, idField, idValue string, patch Doc) (Doc, error)
	// UpsertOne patches the first document matching query, or inserts
	// query+createDefaults+patch when none matches.
	UpsertOne(ctx context.Context, collection string, query Query, patch Doc, createDefaults Doc) (Doc, error)
	Close() error
}

// Encode converts an entity struct into a document.
func Encode(v any) (Doc, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	doc := Doc{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode converts a document into an entity struct.
func Decode(doc Doc, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// DecodeAll converts a document slice into a typed slice.
func DecodeAll[T any](docs []Doc) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := Decode(doc, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func matches(doc Doc, query Query) bool {
	for key, want := range query {
		if !valueEqual(doc[key], want) {
			return false
		}
	}
	return true
}

// valueEqual compares a stored value with a query value. Stored numbers
// come back as float64 after the JSON round trip, so numeric query values
// are compared through float64.
func valueEqual(got, want any) bool {
	if got == nil || want == nil {
		return got == want
	}
	if gf, ok := asFloat(got); ok {
		if wf, ok := asFloat(want); ok {
			return gf == wf
		}
		return false
	}
	return got == want
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

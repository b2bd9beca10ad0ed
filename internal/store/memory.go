package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/lijunhao/projfin/pkg/ids"
)

// Memory is an in-memory Store used by tests and local development.
// Documents are deep-copied on the way in and out.
type Memory struct {
	mu    sync.Mutex
	state map[string][]Doc
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: map[string][]Doc{}}
}

func deepCopy(doc Doc) Doc {
	raw, _ := json.Marshal(doc)
	out := Doc{}
	_ = json.Unmarshal(raw, &out)
	return out
}

func (m *Memory) rows(collection string) []Doc {
	if m.state[collection] == nil {
		m.state[collection] = []Doc{}
	}
	return m.state[collection]
}

// Insert stores a copy of doc, assigning a synthetic _id when absent.
func (m *Memory) Insert(_ context.Context, collection string, doc Doc) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := deepCopy(doc)
	if row["_id"] == nil {
		row["_id"] = ids.New("row")
	}
	m.state[collection] = append(m.rows(collection), row)
	return deepCopy(row), nil
}

// List returns copies of every document in the collection.
func (m *Memory) List(_ context.Context, collection string) ([]Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows := m.rows(collection)
	out := make([]Doc, 0, len(rows))
	for _, row := range rows {
		out = append(out, deepCopy(row))
	}
	return out, nil
}

// FindOne returns a copy of the first matching document, or nil.
func (m *Memory) FindOne(_ context.Context, collection string, query Query) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows(collection) {
		if matches(row, query) {
			return deepCopy(row), nil
		}
	}
	return nil, nil
}

// FindMany returns copies of every matching document.
func (m *Memory) FindMany(_ context.Context, collection string, query Query) ([]Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Doc{}
	for _, row := range m.rows(collection) {
		if matches(row, query) {
			out = append(out, deepCopy(row))
		}
	}
	return out, nil
}

// UpdateMany patches every matching document and returns the count.
func (m *Memory) UpdateMany(_ context.Context, collection string, query Query, patch Doc) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for _, row := range m.rows(collection) {
		if matches(row, query) {
			applyPatch(row, patch)
			changed++
		}
	}
	return changed, nil
}

// DeleteMany removes every matching document and returns the count.
func (m *Memory) DeleteMany(_ context.Context, collection string, query Query) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keep := []Doc{}
	deleted := 0
	for _, row := range m.rows(collection) {
		if matches(row, query) {
			deleted++
			continue
		}
		keep = append(keep, row)
	}
	m.state[collection] = keep
	return deleted, nil
}

// UpdateByID patches the document with the given id, returning the updated
// copy or nil when absent.
func (m *Memory) UpdateByID(_ context.Context, collection, idField, idValue string, patch Doc) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows(collection) {
		if row[idField] == idValue {
			applyPatch(row, patch)
			return deepCopy(row), nil
		}
	}
	return nil, nil
}

// UpsertOne patches the first match or inserts query+createDefaults+patch.
func (m *Memory) UpsertOne(_ context.Context, collection string, query Query, patch Doc, createDefaults Doc) (Doc, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows(collection) {
		if matches(row, query) {
			applyPatch(row, patch)
			return deepCopy(row), nil
		}
	}

	row := Doc{}
	for k, v := range query {
		row[k] = v
	}
	for k, v := range createDefaults {
		row[k] = v
	}
	for k, v := range patch {
		row[k] = v
	}
	row = deepCopy(row)
	if row["_id"] == nil {
		row["_id"] = ids.New("row")
	}
	m.state[collection] = append(m.rows(collection), row)
	return deepCopy(row), nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error {
	return nil
}

func applyPatch(row Doc, patch Doc) {
	for k, v := range deepCopy(patch) {
		row[k] = v
	}
}

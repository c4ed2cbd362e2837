package db

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store used for local runs and tests.
// Commit stages every write on copies and swaps them in only when all succeed.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]any
	seq  map[string]int
	next int
}

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]map[string]any),
		seq:  make(map[string]int),
	}
}

func docKey(collection, id string) string {
	return collection + "/" + id
}

// Get decodes a document into dst
func (m *MemoryStore) Get(_ context.Context, collection, id string, dst any, fields ...string) error {
	m.mu.RLock()
	doc, ok := m.docs[docKey(collection, id)]
	var raw []byte
	var err error
	if ok {
		raw, err = json.Marshal(project(doc, fields))
	}
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	return Document{ID: id, Data: raw}.Decode(dst)
}

// Set creates or replaces a document
func (m *MemoryStore) Set(ctx context.Context, collection, id string, data any) error {
	return m.Commit(ctx, NewBatch().Set(collection, id, data))
}

// Update merges fields into an existing document
func (m *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return m.Commit(ctx, NewBatch().Update(collection, id, fields))
}

// SetFieldIfEmpty performs a conditional single-field write
func (m *MemoryStore) SetFieldIfEmpty(_ context.Context, collection, id, field string, value any) (bool, error) {
	normalized, err := normalize(value)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[docKey(collection, id)]
	if !ok {
		return false, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if current, present := doc[field]; present && current != nil && current != "" {
		return false, nil
	}
	doc[field] = normalized
	return true, nil
}

// Query lists documents matching a single field condition
func (m *MemoryStore) Query(_ context.Context, collection, field string, op Op, value any, limit int) ([]Document, error) {
	want, err := normalize(value)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type hit struct {
		id  string
		seq int
		doc map[string]any
	}
	var hits []hit
	prefix := collection + "/"
	for key, doc := range m.docs {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		got := doc[field]
		match := false
		switch op {
		case OpEqual:
			match = reflect.DeepEqual(got, want)
		case OpArrayContains:
			if arr, ok := got.([]any); ok {
				match = containsValue(arr, want)
			}
		default:
			return nil, fmt.Errorf("unsupported query operator %q", op)
		}
		if match {
			hits = append(hits, hit{id: strings.TrimPrefix(key, prefix), seq: m.seq[key], doc: doc})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	docs := make([]Document, 0, len(hits))
	for _, h := range hits {
		raw, err := json.Marshal(h.doc)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s/%s: %w", collection, h.id, err)
		}
		docs = append(docs, Document{ID: h.id, Data: raw})
	}
	return docs, nil
}

// Commit applies all writes or none
func (m *MemoryStore) Commit(_ context.Context, b *Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	staged := make(map[string]map[string]any)
	var created []string
	load := func(key string) (map[string]any, bool, error) {
		if doc, ok := staged[key]; ok {
			return doc, doc != nil, nil
		}
		doc, ok := m.docs[key]
		if !ok {
			return nil, false, nil
		}
		clone, err := cloneDoc(doc)
		return clone, true, err
	}

	for i, w := range b.Writes() {
		key := docKey(w.Collection, w.ID)
		doc, exists, err := load(key)
		if err != nil {
			return err
		}

		switch w.Kind {
		case WriteCreate, WriteSet:
			if w.Kind == WriteCreate && exists {
				return fmt.Errorf("batch write %d (%s %s): %w", i, w.Kind, key, ErrConflict)
			}
			obj, err := toObject(w.Data)
			if err != nil {
				return fmt.Errorf("batch write %d (%s %s): %w", i, w.Kind, key, err)
			}
			if !exists {
				created = append(created, key)
			}
			staged[key] = obj

		case WriteUpdate, WriteArrayUnion, WriteArrayAppend:
			if !exists {
				return fmt.Errorf("batch write %d (%s %s): %w", i, w.Kind, key, ErrNotFound)
			}
			if err := applyMutation(doc, w); err != nil {
				return fmt.Errorf("batch write %d (%s %s): %w", i, w.Kind, key, err)
			}
			staged[key] = doc

		case WriteRequireNot:
			if !exists {
				return fmt.Errorf("batch write %d (%s %s): %w", i, w.Kind, key, ErrNotFound)
			}
			unwanted, err := normalize(w.Values[0])
			if err != nil {
				return fmt.Errorf("batch write %d (%s %s): %w", i, w.Kind, key, err)
			}
			if reflect.DeepEqual(doc[w.Field], unwanted) {
				return fmt.Errorf("batch write %d (%s %s): %s is %v: %w", i, w.Kind, key, w.Field, unwanted, ErrPrecondition)
			}

		default:
			return fmt.Errorf("unknown write kind %s", w.Kind)
		}
	}

	for key, doc := range staged {
		m.docs[key] = doc
	}
	for _, key := range created {
		if _, ok := m.seq[key]; !ok {
			m.next++
			m.seq[key] = m.next
		}
	}
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() {}

// Count returns the number of documents in a collection
func (m *MemoryStore) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for key := range m.docs {
		if strings.HasPrefix(key, collection+"/") {
			n++
		}
	}
	return n
}

func applyMutation(doc map[string]any, w Write) error {
	switch w.Kind {
	case WriteUpdate:
		fields, err := toObject(w.Data)
		if err != nil {
			return err
		}
		for k, v := range fields {
			doc[k] = v
		}
	case WriteArrayUnion, WriteArrayAppend:
		arr, _ := doc[w.Field].([]any)
		for _, v := range w.Values {
			nv, err := normalize(v)
			if err != nil {
				return err
			}
			if w.Kind == WriteArrayUnion && containsValue(arr, nv) {
				continue
			}
			arr = append(arr, nv)
		}
		if arr == nil {
			arr = []any{}
		}
		doc[w.Field] = arr
	}
	return nil
}

func project(doc map[string]any, fields []string) map[string]any {
	if len(fields) == 0 {
		return doc
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

func containsValue(arr []any, v any) bool {
	for _, item := range arr {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

// normalize round-trips a value through JSON so comparisons match stored values
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize value: %w", err)
	}
	return out, nil
}

func toObject(data any) (map[string]any, error) {
	raw, err := marshalObject(data)
	if err != nil {
		return nil, err
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return obj, nil
}

func cloneDoc(doc map[string]any) (map[string]any, error) {
	return toObject(doc)
}

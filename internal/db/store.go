package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a document does not exist
	ErrNotFound = errors.New("document not found")
	// ErrConflict is returned when a create targets an existing document
	ErrConflict = errors.New("document already exists")
	// ErrPrecondition is returned when a batch precondition does not hold
	ErrPrecondition = errors.New("precondition failed")
)

// Op is a query comparison operator
type Op string

// Supported query operators
const (
	OpEqual         Op = "=="
	OpArrayContains Op = "array-contains"
)

// Store is a key-value document store.
type Store interface {
	// Get decodes the document into dst. When fields are given only those keys are read.
	Get(ctx context.Context, collection, id string, dst any, fields ...string) error
	// Set creates or replaces a document
	Set(ctx context.Context, collection, id string, data any) error
	// Update merges top-level fields into an existing document
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// SetFieldIfEmpty writes field only when it is absent or empty and reports whether it wrote.
	SetFieldIfEmpty(ctx context.Context, collection, id, field string, value any) (bool, error)
	// Query returns documents whose field matches value under op, ordered by creation.
	// A limit of 0 or less returns every match.
	Query(ctx context.Context, collection, field string, op Op, value any, limit int) ([]Document, error)
	// Commit applies every write in the batch or none of them
	Commit(ctx context.Context, b *Batch) error
	// Close releases resources held by the store
	Close()
}

// Document is a raw stored document
type Document struct {
	ID   string
	Data json.RawMessage
}

// Decode unmarshals the document body into dst
func (d Document) Decode(dst any) error {
	if err := json.Unmarshal(d.Data, dst); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}
	return nil
}

// WriteKind identifies a batched write
type WriteKind int

// Batched write kinds
const (
	WriteCreate WriteKind = iota
	WriteSet
	WriteUpdate
	WriteArrayUnion
	WriteArrayAppend
	WriteRequireNot
)

func (k WriteKind) String() string {
	switch k {
	case WriteCreate:
		return "create"
	case WriteSet:
		return "set"
	case WriteUpdate:
		return "update"
	case WriteArrayUnion:
		return "array-union"
	case WriteArrayAppend:
		return "array-append"
	case WriteRequireNot:
		return "require-not"
	default:
		return fmt.Sprintf("write(%d)", int(k))
	}
}

// Write is one pending mutation in a Batch
type Write struct {
	Kind       WriteKind
	Collection string
	ID         string
	Data       any
	Field      string
	Values     []any
}

// Batch collects writes that are committed together
type Batch struct {
	writes []Write
}

// NewBatch returns an empty batch
func NewBatch() *Batch {
	return &Batch{}
}

// Create adds a create-only write; the commit fails with ErrConflict if the document exists.
func (b *Batch) Create(collection, id string, data any) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteCreate, Collection: collection, ID: id, Data: data})
	return b
}

// Set adds a create-or-replace write
func (b *Batch) Set(collection, id string, data any) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteSet, Collection: collection, ID: id, Data: data})
	return b
}

// Update adds a merge of top-level fields; the commit fails with ErrNotFound if the document is missing.
func (b *Batch) Update(collection, id string, fields map[string]any) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteUpdate, Collection: collection, ID: id, Data: fields})
	return b
}

// ArrayUnion adds values to an array field, skipping ones already present
func (b *Batch) ArrayUnion(collection, id, field string, values ...any) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteArrayUnion, Collection: collection, ID: id, Field: field, Values: values})
	return b
}

// ArrayAppend appends values to an array field
func (b *Batch) ArrayAppend(collection, id, field string, values ...any) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteArrayAppend, Collection: collection, ID: id, Field: field, Values: values})
	return b
}

// RequireNot adds a precondition: the commit fails with ErrPrecondition if the
// document's field equals value, and with ErrNotFound if the document is missing.
// The document stays locked against concurrent batches until the commit ends.
func (b *Batch) RequireNot(collection, id, field string, value any) *Batch {
	b.writes = append(b.writes, Write{Kind: WriteRequireNot, Collection: collection, ID: id, Field: field, Values: []any{value}})
	return b
}

// Writes returns the pending writes in order
func (b *Batch) Writes() []Write {
	return b.writes
}

// Len returns the number of pending writes
func (b *Batch) Len() int {
	return len(b.writes)
}

// marshalObject encodes data and checks that it is a JSON object
func marshalObject(data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("document must be a JSON object")
	}
	return raw, nil
}

package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresStore implements Store on a single JSONB documents table
type PostgresStore struct {
	db *DB
}

// NewPostgresStore wraps a connected DB
func NewPostgresStore(db *DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// uniqueViolation is the SQLSTATE for a duplicate primary key
const uniqueViolation = "23505"

// arrayField evaluates to the field when it holds an array, otherwise an empty array
const arrayField = `CASE WHEN jsonb_typeof(data->($3::text)) = 'array' THEN data->($3::text) ELSE '[]'::jsonb END`

// querier is satisfied by both the pool and a transaction
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Get decodes a document into dst, optionally projecting to the given fields
func (s *PostgresStore) Get(ctx context.Context, collection, id string, dst any, fields ...string) error {
	var raw []byte
	var err error
	if len(fields) == 0 {
		err = s.db.pool.QueryRow(ctx,
			`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
			collection, id,
		).Scan(&raw)
	} else {
		err = s.db.pool.QueryRow(ctx,
			`SELECT COALESCE(
			   (SELECT jsonb_object_agg(key, value) FROM jsonb_each(data) WHERE key = ANY($3::text[])),
			   '{}'::jsonb)
			 FROM documents WHERE collection = $1 AND id = $2`,
			collection, id, fields,
		).Scan(&raw)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		return fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}

	return Document{ID: id, Data: raw}.Decode(dst)
}

// Set creates or replaces a document
func (s *PostgresStore) Set(ctx context.Context, collection, id string, data any) error {
	return applyWrite(ctx, s.db.pool, Write{Kind: WriteSet, Collection: collection, ID: id, Data: data})
}

// Update merges fields into an existing document
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return applyWrite(ctx, s.db.pool, Write{Kind: WriteUpdate, Collection: collection, ID: id, Data: fields})
}

// SetFieldIfEmpty performs a conditional single-field write
func (s *PostgresStore) SetFieldIfEmpty(ctx context.Context, collection, id, field string, value any) (bool, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal %s: %w", field, err)
	}

	tag, err := s.db.pool.Exec(ctx,
		`UPDATE documents
		 SET data = jsonb_set(data, ARRAY[$3::text], $4::jsonb, true), updated_at = NOW()
		 WHERE collection = $1 AND id = $2 AND COALESCE(data->>($3::text), '') = ''`,
		collection, id, field, raw,
	)
	if err != nil {
		return false, fmt.Errorf("failed to set %s on %s/%s: %w", field, collection, id, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	err = s.db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s/%s: %w", collection, id, err)
	}
	if !exists {
		return false, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return false, nil
}

// Query lists documents matching a single field condition
func (s *PostgresStore) Query(ctx context.Context, collection, field string, op Op, value any, limit int) ([]Document, error) {
	var operand any = value
	var cond string
	switch op {
	case OpEqual:
		cond = `data->($2::text) = $3::jsonb`
	case OpArrayContains:
		cond = `data->($2::text) @> $3::jsonb`
		operand = []any{value}
	default:
		return nil, fmt.Errorf("unsupported query operator %q", op)
	}

	raw, err := json.Marshal(operand)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query value: %w", err)
	}
	// LIMIT NULL is unlimited, matching the memory store's meaning of 0
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}

	rows, err := s.db.pool.Query(ctx,
		`SELECT id, data FROM documents
		 WHERE collection = $1 AND `+cond+`
		 ORDER BY created_at, id LIMIT $4::int`,
		collection, field, raw, limitArg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Data); err != nil {
			return nil, fmt.Errorf("failed to scan %s document: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", collection, err)
	}
	return docs, nil
}

// Commit applies all batched writes in one transaction
func (s *PostgresStore) Commit(ctx context.Context, b *Batch) error {
	if b == nil || b.Len() == 0 {
		return nil
	}

	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for i, w := range b.Writes() {
		if err := applyWrite(ctx, tx, w); err != nil {
			return fmt.Errorf("batch write %d (%s %s/%s): %w", i, w.Kind, w.Collection, w.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the underlying pool
func (s *PostgresStore) Close() {
	s.db.Close()
}

func applyWrite(ctx context.Context, q querier, w Write) error {
	switch w.Kind {
	case WriteCreate:
		raw, err := marshalObject(w.Data)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx,
			`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`,
			w.Collection, w.ID, raw,
		)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return err

	case WriteSet:
		raw, err := marshalObject(w.Data)
		if err != nil {
			return err
		}
		_, err = q.Exec(ctx,
			`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
			 ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
			w.Collection, w.ID, raw,
		)
		return err

	case WriteUpdate:
		raw, err := marshalObject(w.Data)
		if err != nil {
			return err
		}
		return execExisting(ctx, q, w,
			`UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
			 WHERE collection = $1 AND id = $2`,
			w.Collection, w.ID, raw,
		)

	case WriteArrayUnion:
		for _, v := range w.Values {
			raw, err := json.Marshal([]any{v})
			if err != nil {
				return fmt.Errorf("failed to marshal array value: %w", err)
			}
			err = execExisting(ctx, q, w,
				`UPDATE documents
				 SET data = jsonb_set(data, ARRAY[$3::text],
				   CASE WHEN `+arrayField+` @> $4::jsonb THEN `+arrayField+`
				        ELSE `+arrayField+` || $4::jsonb END, true),
				   updated_at = NOW()
				 WHERE collection = $1 AND id = $2`,
				w.Collection, w.ID, w.Field, raw,
			)
			if err != nil {
				return err
			}
		}
		return nil

	case WriteArrayAppend:
		raw, err := json.Marshal(w.Values)
		if err != nil {
			return fmt.Errorf("failed to marshal array values: %w", err)
		}
		return execExisting(ctx, q, w,
			`UPDATE documents
			 SET data = jsonb_set(data, ARRAY[$3::text], `+arrayField+` || $4::jsonb, true),
			   updated_at = NOW()
			 WHERE collection = $1 AND id = $2`,
			w.Collection, w.ID, w.Field, raw,
		)

	case WriteRequireNot:
		raw, err := json.Marshal(w.Values[0])
		if err != nil {
			return fmt.Errorf("failed to marshal precondition value: %w", err)
		}
		var equal bool
		err = q.QueryRow(ctx,
			`SELECT COALESCE(data->($3::text) = $4::jsonb, false) FROM documents
			 WHERE collection = $1 AND id = $2 FOR UPDATE`,
			w.Collection, w.ID, w.Field, raw,
		).Scan(&equal)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if equal {
			return fmt.Errorf("%s is %s: %w", w.Field, raw, ErrPrecondition)
		}
		return nil

	default:
		return fmt.Errorf("unknown write kind %s", w.Kind)
	}
}

// execExisting runs an UPDATE and reports ErrNotFound when no row matched
func execExisting(ctx context.Context, q querier, w Write, sql string, args ...any) error {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", w.Collection, w.ID, ErrNotFound)
	}
	return nil
}

// Package docstore implements the document-access core on top of
// PostgreSQL. Every persisted record is a JSONB document in the documents
// table, keyed by (collection, id). The (collection, id) primary key is the
// per-document atomicity boundary: a plain INSERT is the store's
// create-if-absent primitive, and its duplicate-key failure is what the
// uniqueness reservation protocol is built on.
package docstore

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avoropay/accounts-core/internal/domain"
)

// Store provides raw document operations for all collections. It holds no
// mutable state; all state lives in the database. Operations join an active
// transaction when one is present in the context.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pool exposes the underlying pool for the transaction manager and tests.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// builder is the squirrel statement builder configured for pgx placeholders.
var builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// FieldEq matches documents whose top-level string field equals value.
func FieldEq(field, value string) sq.Sqlizer {
	return sq.Expr("doc->>? = ?", field, value)
}

// FieldBoolEq matches documents whose top-level boolean field equals value.
func FieldBoolEq(field string, value bool) sq.Sqlizer {
	return sq.Expr("(doc->>?)::boolean = ?", field, value)
}

// FieldInt64Lte matches documents whose top-level numeric field is at or
// below value. Used by the expiry sweeps, which treat a record at its exact
// expiry second as already expired.
func FieldInt64Lte(field string, value int64) sq.Sqlizer {
	return sq.Expr("(doc->>?)::bigint <= ?", field, value)
}

// CreateDoc inserts a new document, failing with domain.ErrAlreadyExists if
// a document already occupies (collection, id). This is the create-if-absent
// primitive; concurrent creates at the same identity are serialized by the
// primary key.
func (s *Store) CreateDoc(ctx context.Context, collection, id string, doc []byte) error {
	q := QuerierFromCtx(ctx, s.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`,
		collection, id, doc,
	)
	return mapError(err, collection, "create", id)
}

// PutDoc writes a document unconditionally, creating or replacing it.
func (s *Store) PutDoc(ctx context.Context, collection, id string, doc []byte) error {
	q := QuerierFromCtx(ctx, s.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc`,
		collection, id, doc,
	)
	return mapError(err, collection, "put", id)
}

// UpdateDocCAS replaces a document only if its stored version field still
// equals expectedVersion. A concurrent writer that got there first surfaces
// as domain.ErrConflict; a missing document as domain.ErrNotFound.
func (s *Store) UpdateDocCAS(ctx context.Context, collection, id string, doc []byte, expectedVersion int64) error {
	q := QuerierFromCtx(ctx, s.pool)

	tag, err := q.Exec(ctx,
		`UPDATE documents SET doc = $3
		 WHERE collection = $1 AND id = $2 AND (doc->>'version')::bigint = $4`,
		collection, id, doc, expectedVersion,
	)
	if err != nil {
		return mapError(err, collection, "update", id)
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.docExists(ctx, collection, id)
		if err != nil {
			return mapError(err, collection, "update", id)
		}
		if !exists {
			return fmt.Errorf("%s %q update: %w", collection, id, domain.ErrNotFound)
		}
		return fmt.Errorf("%s %q update at version %d: %w", collection, id, expectedVersion, domain.ErrConflict)
	}
	return nil
}

// GetDoc reads a single document. Returns domain.ErrNotFound if absent.
func (s *Store) GetDoc(ctx context.Context, collection, id string) ([]byte, error) {
	q := QuerierFromCtx(ctx, s.pool)

	var doc []byte
	err := q.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&doc)
	if err != nil {
		return nil, mapError(err, collection, "get", id)
	}
	return doc, nil
}

// GetDocForUpdate reads a single document while taking a row lock. Only
// meaningful inside a transaction; used to serialize claim-then-confirm
// decisions on reservation documents.
func (s *Store) GetDocForUpdate(ctx context.Context, collection, id string) ([]byte, error) {
	q := QuerierFromCtx(ctx, s.pool)

	var doc []byte
	err := q.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id,
	).Scan(&doc)
	if err != nil {
		return nil, mapError(err, collection, "get", id)
	}
	return doc, nil
}

// DeleteDoc removes a document permanently. Returns true if a document was
// deleted, false if none existed.
func (s *Store) DeleteDoc(ctx context.Context, collection, id string) (bool, error) {
	q := QuerierFromCtx(ctx, s.pool)

	tag, err := q.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	if err != nil {
		return false, mapError(err, collection, "delete", id)
	}
	return tag.RowsAffected() > 0, nil
}

// ListDocs returns the documents of a collection matching all given field
// predicates. The store offers no joins; cross-collection lookups are the
// caller's problem.
func (s *Store) ListDocs(ctx context.Context, collection string, preds ...sq.Sqlizer) ([][]byte, error) {
	q := QuerierFromCtx(ctx, s.pool)

	stmt := builder.Select("doc").
		From("documents").
		Where(sq.Eq{"collection": collection})
	for _, p := range preds {
		stmt = stmt.Where(p)
	}

	sql, args, err := stmt.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%s list: build query: %w", collection, err)
	}

	var docs [][]byte
	if err := pgxscan.Select(ctx, q, &docs, sql, args...); err != nil {
		return nil, mapError(err, collection, "list", "")
	}
	return docs, nil
}

// DeleteDocsWhere removes every document of a collection matching all given
// field predicates and reports how many were removed. Used by the expiry
// sweeps.
func (s *Store) DeleteDocsWhere(ctx context.Context, collection string, preds ...sq.Sqlizer) (int64, error) {
	q := QuerierFromCtx(ctx, s.pool)

	stmt := builder.Delete("documents").
		Where(sq.Eq{"collection": collection})
	for _, p := range preds {
		stmt = stmt.Where(p)
	}

	sql, args, err := stmt.ToSql()
	if err != nil {
		return 0, fmt.Errorf("%s delete-where: build query: %w", collection, err)
	}

	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError(err, collection, "delete-where", "")
	}
	return tag.RowsAffected(), nil
}

func (s *Store) docExists(ctx context.Context, collection, id string) (bool, error) {
	q := QuerierFromCtx(ctx, s.pool)

	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		collection, id,
	).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	return exists, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/lijunhao/projfin/pkg/ids"
)

// SQLiteConfig holds sqlite store configuration.
type SQLiteConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// SQLite persists documents as JSON bodies in a single table, filtered with
// json_extract. Patches are applied read-modify-write inside a transaction,
// which keeps update semantics identical to the in-memory store and makes
// UpsertOne atomic per store handle.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLite opens (and if needed initializes) a sqlite-backed store.
func NewSQLite(cfg SQLiteConfig, logger *zap.Logger) (*SQLite, error) {
	// WAL mode for better concurrency between the request loop and readers.
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", cfg.Path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			rowid_pk   INTEGER PRIMARY KEY AUTOINCREMENT,
			collection TEXT NOT NULL,
			body       TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Document store ready", zap.String("path", cfg.Path))
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) withTx(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// whereClause renders an exact-match conjunction over json_extract paths.
// Keys are sorted so generated SQL is deterministic.
func whereClause(query Query) (string, []any) {
	clause := "collection = ?"
	keys := make([]string, 0, len(query))
	for key := range query {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	args := []any{}
	for _, key := range keys {
		clause += fmt.Sprintf(" AND json_extract(body, '$.%s') = ?", key)
		args = append(args, bindValue(query[key]))
	}
	return clause, args
}

// bindValue normalizes query values for comparison against json_extract
// output: JSON booleans extract as 0/1 integers.
func bindValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func decodeBody(body string) (Doc, error) {
	doc := Doc{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("corrupt document body: %w", err)
	}
	return doc, nil
}

// Insert stores doc, assigning a synthetic _id when absent.
func (s *SQLite) Insert(ctx context.Context, collection string, doc Doc) (Doc, error) {
	row := Doc{}
	for k, v := range doc {
		row[k] = v
	}
	if row["_id"] == nil {
		row["_id"] = ids.New("row")
	}

	raw, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, body) VALUES (?, ?)", collection, string(raw)); err != nil {
		s.logger.Error("Failed to insert document",
			zap.String("collection", collection), zap.Error(err))
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}
	return decodeBody(string(raw))
}

// List returns every document in the collection in insertion order.
func (s *SQLite) List(ctx context.Context, collection string) ([]Doc, error) {
	return s.query(ctx, "collection = ?", []any{collection})
}

// FindOne returns the first matching document, or nil.
func (s *SQLite) FindOne(ctx context.Context, collection string, query Query) (Doc, error) {
	clause, args := whereClause(query)
	docs, err := s.query(ctx, clause+" LIMIT 1", append([]any{collection}, args...))
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// FindMany returns every matching document.
func (s *SQLite) FindMany(ctx context.Context, collection string, query Query) ([]Doc, error) {
	clause, args := whereClause(query)
	return s.query(ctx, clause, append([]any{collection}, args...))
}

func (s *SQLite) query(ctx context.Context, clause string, args []any) ([]Doc, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT body FROM documents WHERE "+clause+" ORDER BY rowid_pk", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	out := []Doc{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// UpdateMany patches every matching document and returns the count.
func (s *SQLite) UpdateMany(ctx context.Context, collection string, query Query, patch Doc) (int, error) {
	changed := 0
	err := s.withTx(func(tx *sql.Tx) error {
		var err error
		changed, err = patchRows(ctx, tx, collection, query, patch, -1)
		return err
	})
	return changed, err
}

// DeleteMany removes every matching document and returns the count.
func (s *SQLite) DeleteMany(ctx context.Context, collection string, query Query) (int, error) {
	clause, args := whereClause(query)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE "+clause, append([]any{collection}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// UpdateByID patches the document whose idField equals idValue.
func (s *SQLite) UpdateByID(ctx context.Context, collection, idField, idValue string, patch Doc) (Doc, error) {
	var updated Doc
	err := s.withTx(func(tx *sql.Tx) error {
		docs, err := s.lockRows(ctx, tx, collection, Query{idField: idValue}, 1)
		if err != nil || len(docs) == 0 {
			return err
		}
		updated, err = writePatched(ctx, tx, docs[0], patch)
		return err
	})
	return updated, err
}

// UpsertOne patches the first match, or inserts query+createDefaults+patch
// when nothing matches. Runs inside one transaction so the read-then-write
// cannot interleave with another write on this handle.
func (s *SQLite) UpsertOne(ctx context.Context, collection string, query Query, patch Doc, createDefaults Doc) (Doc, error) {
	var result Doc
	err := s.withTx(func(tx *sql.Tx) error {
		docs, err := s.lockRows(ctx, tx, collection, query, 1)
		if err != nil {
			return err
		}
		if len(docs) > 0 {
			result, err = writePatched(ctx, tx, docs[0], patch)
			return err
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
		if row["_id"] == nil {
			row["_id"] = ids.New("row")
		}
		raw, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO documents (collection, body) VALUES (?, ?)", collection, string(raw)); err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
		result, err = decodeBody(string(raw))
		return err
	})
	return result, err
}

// Close closes the underlying connection pool.
func (s *SQLite) Close() error {
	s.logger.Info("Closing document store")
	return s.db.Close()
}

type lockedDoc struct {
	rowID int64
	doc   Doc
}

func (s *SQLite) lockRows(ctx context.Context, tx *sql.Tx, collection string, query Query, limit int) ([]lockedDoc, error) {
	clause, args := whereClause(query)
	sqlText := "SELECT rowid_pk, body FROM documents WHERE " + clause + " ORDER BY rowid_pk"
	if limit > 0 {
		sqlText += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := tx.QueryContext(ctx, sqlText, append([]any{collection}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	out := []lockedDoc{}
	for rows.Next() {
		var rowID int64
		var body string
		if err := rows.Scan(&rowID, &body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		out = append(out, lockedDoc{rowID: rowID, doc: doc})
	}
	return out, rows.Err()
}

func patchRows(ctx context.Context, tx *sql.Tx, collection string, query Query, patch Doc, limit int) (int, error) {
	clause, args := whereClause(query)
	sqlText := "SELECT rowid_pk, body FROM documents WHERE " + clause + " ORDER BY rowid_pk"
	if limit > 0 {
		sqlText += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := tx.QueryContext(ctx, sqlText, append([]any{collection}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("failed to query documents: %w", err)
	}

	locked := []lockedDoc{}
	for rows.Next() {
		var rowID int64
		var body string
		if err := rows.Scan(&rowID, &body); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decodeBody(body)
		if err != nil {
			rows.Close()
			return 0, err
		}
		locked = append(locked, lockedDoc{rowID: rowID, doc: doc})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, ld := range locked {
		if _, err := writePatched(ctx, tx, ld, patch); err != nil {
			return 0, err
		}
	}
	return len(locked), nil
}

func writePatched(ctx context.Context, tx *sql.Tx, ld lockedDoc, patch Doc) (Doc, error) {
	for k, v := range patch {
		ld.doc[k] = v
	}
	raw, err := json.Marshal(ld.doc)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE documents SET body = ? WHERE rowid_pk = ?", string(raw), ld.rowID); err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}
	return decodeBody(string(raw))
}

var _ Store = (*SQLite)(nil)
var _ Store = (*Memory)(nil)

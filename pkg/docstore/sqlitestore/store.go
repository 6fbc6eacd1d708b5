// ABOUTME: SQLite JSON1 document store backed by modernc.org/sqlite
// ABOUTME: One table per schema table, expression indexes over json_extract

package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/nainya/readerstore/pkg/docstore"
)

// Store implements docstore.Client on SQLite. Documents live in a JSON
// data column; updates are single UPDATE statements so they are atomic.
type Store struct {
	db     *sql.DB
	schema *docstore.Schema
}

var _ docstore.Client = (*Store)(nil)

// FileDSN builds a DSN for an on-disk database with WAL and a busy timeout.
func FileDSN(path string) string {
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

// MemoryDSN builds a DSN for a named shared-cache in-memory database.
func MemoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// Open opens the database at dsn and creates the schema's tables and indexes.
func Open(ctx context.Context, dsn string, schema *docstore.Schema) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection serializes writes
	// instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db, schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and migrates the schema.
func New(ctx context.Context, db *sql.DB, schema *docstore.Schema) (*Store, error) {
	s := &Store{db: db, schema: schema}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	for _, t := range s.schema.Tables() {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL CHECK (json_valid(data))
		)`, quote(t.Name))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
		for _, idx := range t.Indexes {
			cols := make([]string, len(idx.Fields))
			for i, f := range idx.Fields {
				cols[i] = extract(f)
			}
			stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (%s)`,
				quote(t.Name+"_"+idx.Name), quote(t.Name), strings.Join(cols, ", "))
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create index %s.%s: %w", t.Name, idx.Name, err)
			}
		}
	}
	return nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) table(name string) (string, error) {
	if _, err := s.schema.Table(name); err != nil {
		return "", err
	}
	return quote(name), nil
}

// Get returns the document stored under id.
func (s *Store) Get(ctx context.Context, table, id string) ([]byte, error) {
	tbl, err := s.table(table)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.QueryRowContext(ctx, `SELECT data FROM `+tbl+` WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", table, id, err)
	}
	return data, nil
}

// GetByIndex returns the lowest-id document matching key.
func (s *Store) GetByIndex(ctx context.Context, table, index string, key docstore.Key) ([]byte, error) {
	docs, err := s.Scan(ctx, table, docstore.Query{Index: index, Key: key, Limit: 1})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Scan returns matching documents ordered by the query field, then id.
func (s *Store) Scan(ctx context.Context, table string, q docstore.Query) ([][]byte, error) {
	plan, err := s.schema.Check(table, q)
	if err != nil {
		return nil, err
	}
	cond, args := where(plan.Conditions())
	stmt := `SELECT data FROM ` + quote(table) + cond + orderBy(plan)
	switch {
	case plan.Limit > 0:
		stmt += ` LIMIT ? OFFSET ?`
		args = append(args, plan.Limit, plan.Skip)
	case plan.Skip > 0:
		stmt += ` LIMIT -1 OFFSET ?`
		args = append(args, plan.Skip)
	}

	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		out = append(out, data)
	}
	return out, rows.Err()
}

// Count returns the number of matching documents.
func (s *Store) Count(ctx context.Context, table string, q docstore.Query) (int64, error) {
	plan, err := s.schema.Check(table, q)
	if err != nil {
		return 0, err
	}
	cond, args := where(plan.Conditions())
	var n int64
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+quote(table)+cond, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// Upsert inserts or replaces the document and returns the stored JSON.
func (s *Store) Upsert(ctx context.Context, table, id string, doc []byte) ([]byte, error) {
	tbl, err := s.table(table)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, docstore.ErrEmptyID
	}
	if _, err := docstore.DecodeMap(doc); err != nil {
		return nil, err
	}
	var stored []byte
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO `+tbl+` (id, data) VALUES (?, json(?))
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
		RETURNING data`, id, string(doc)).Scan(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s/%s: %w", table, id, err)
	}
	return stored, nil
}

// Update applies exprs with one json_set statement.
func (s *Store) Update(ctx context.Context, table, id string, exprs ...docstore.Expr) error {
	exprs, err := s.schema.CheckExprs(table, exprs)
	if err != nil {
		return err
	}
	var (
		parts []string
		args  []any
	)
	for _, e := range exprs {
		path := "'$." + e.Field + "'"
		switch e.Kind {
		case docstore.ExprIncrement:
			parts = append(parts, path, "COALESCE("+extract(e.Field)+", 0) + ?")
			args = append(args, e.Delta)
		case docstore.ExprSet:
			raw, err := docstore.Encode(e.Value)
			if err != nil {
				return err
			}
			parts = append(parts, path, "json(?)")
			args = append(args, string(raw))
		default:
			return fmt.Errorf("unknown expression kind %d", e.Kind)
		}
	}
	args = append(args, id)
	stmt := `UPDATE ` + quote(table) + ` SET data = json_set(data, ` + strings.Join(parts, ", ") + `) WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", table, id, err)
	}
	return nil
}

// Delete removes the document at id.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	tbl, err := s.table(table)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+tbl+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, id, err)
	}
	return nil
}

// DeleteByIndex removes every document matching key.
func (s *Store) DeleteByIndex(ctx context.Context, table, index string, key docstore.Key) (int64, error) {
	plan, err := s.schema.Check(table, docstore.Query{Index: index, Key: key})
	if err != nil {
		return 0, err
	}
	cond, args := where(plan.Conditions())
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+quote(table)+cond, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s by %s: %w", table, index, err)
	}
	return res.RowsAffected()
}

// GroupCount counts documents per value of field among values.
func (s *Store) GroupCount(ctx context.Context, table, field string, values []string) (map[string]int64, error) {
	tbl, err := s.table(table)
	if err != nil {
		return nil, err
	}
	if !docstore.ValidName(field) {
		return nil, fmt.Errorf("%w: group by %q", docstore.ErrInvalidField, field)
	}
	out := make(map[string]int64)
	if len(values) == 0 {
		return out, nil
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	stmt := fmt.Sprintf(`SELECT %[1]s, COUNT(*) FROM %[2]s WHERE %[1]s IN (%[3]s) GROUP BY %[1]s`,
		extract(field), tbl, strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", "))
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to group %s by %s: %w", table, field, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			value string
			n     int64
		)
		if err := rows.Scan(&value, &n); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		out[value] = n
	}
	return out, rows.Err()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func quote(name string) string {
	return `"` + name + `"`
}

func extract(field string) string {
	return "json_extract(data, '$." + field + "')"
}

func where(preds []docstore.Predicate) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(preds))
	args := make([]any, 0, len(preds))
	for _, p := range preds {
		col := extract(p.Field)
		switch p.Op {
		case docstore.IsNull:
			clauses = append(clauses, col+" IS NULL")
			continue
		case docstore.Eq:
			clauses = append(clauses, col+" IS ?")
		case docstore.Ne:
			clauses = append(clauses, col+" IS NOT ?")
		case docstore.Lt:
			clauses = append(clauses, col+" < ?")
		case docstore.Lte:
			clauses = append(clauses, col+" <= ?")
		case docstore.Gt:
			clauses = append(clauses, col+" > ?")
		case docstore.Gte:
			clauses = append(clauses, col+" >= ?")
		}
		args = append(args, sqlValue(p.Value))
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(plan docstore.Plan) string {
	if plan.OrderBy == "" {
		return " ORDER BY id"
	}
	dir := "ASC"
	if plan.Descending {
		dir = "DESC"
	}
	return " ORDER BY " + extract(plan.OrderBy) + " " + dir + ", id"
}

// sqlValue maps booleans to the integers json_extract yields for them.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return int64(1)
		}
		return int64(0)
	}
	return v
}

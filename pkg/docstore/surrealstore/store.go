// ABOUTME: SurrealDB document store using parameterized SurrealQL
// ABOUTME: Records are addressed as type::thing(table, id); the record id field is stripped on read

package surrealstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/nainya/readerstore/pkg/docstore"
)

// Config holds connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// Store implements docstore.Client on SurrealDB. Each statement runs in
// its own implicit transaction, which is what makes Update atomic.
type Store struct {
	db     *surrealdb.DB
	schema *docstore.Schema
}

var _ docstore.Client = (*Store)(nil)

// Open connects over WebSocket with the surrealcbor codec, signs in when
// credentials are set, selects the namespace and database, and defines the
// schema's tables and indexes.
func Open(ctx context.Context, cfg Config, schema *docstore.Schema) (*Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}
	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			db.Close(ctx)
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	s, err := New(ctx, db, schema)
	if err != nil {
		db.Close(ctx)
		return nil, err
	}
	return s, nil
}

// New wraps a connected database and defines the schema.
func New(ctx context.Context, db *surrealdb.DB, schema *docstore.Schema) (*Store, error) {
	s := &Store{db: db, schema: schema}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	var stmts []string
	for _, t := range s.schema.Tables() {
		stmts = append(stmts, fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", t.Name))
		for _, idx := range t.Indexes {
			stmts = append(stmts, fmt.Sprintf("DEFINE INDEX IF NOT EXISTS %s_%s ON TABLE %s FIELDS %s",
				t.Name, idx.Name, t.Name, strings.Join(idx.Fields, ", ")))
		}
	}
	if len(stmts) == 0 {
		return nil
	}
	_, err := surrealdb.Query[any](ctx, s.db, strings.Join(stmts, ";\n"), nil)
	return err
}

type countRow struct {
	C int64 `json:"c"`
}

func (s *Store) rows(ctx context.Context, sql string, vars map[string]any) ([][]byte, error) {
	res, err := surrealdb.Query[[]map[string]any](ctx, s.db, sql, vars)
	if err != nil {
		return nil, err
	}
	if res == nil || len(*res) == 0 {
		return nil, nil
	}
	out := make([][]byte, 0, len((*res)[0].Result))
	for _, row := range (*res)[0].Result {
		delete(row, "id")
		doc, err := docstore.Encode(row)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Get returns the document stored under id.
func (s *Store) Get(ctx context.Context, table, id string) ([]byte, error) {
	if _, err := s.schema.Table(table); err != nil {
		return nil, err
	}
	docs, err := s.rows(ctx, "SELECT * FROM type::thing($tb, $id)", map[string]any{"tb": table, "id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", table, id, err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
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
	vars := map[string]any{"tb": table}
	sql := "SELECT * FROM type::table($tb)" + where(plan.Conditions(), vars)

	order := "id ASC"
	if plan.OrderBy != "" {
		dir := "ASC"
		if plan.Descending {
			dir = "DESC"
		}
		order = plan.OrderBy + " " + dir + ", id ASC"
	}
	sql += " ORDER BY " + order
	if plan.Limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = plan.Limit
	}
	if plan.Skip > 0 {
		sql += " START $skip"
		vars["skip"] = plan.Skip
	}

	docs, err := s.rows(ctx, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}
	return docs, nil
}

// Count returns the number of matching documents.
func (s *Store) Count(ctx context.Context, table string, q docstore.Query) (int64, error) {
	plan, err := s.schema.Check(table, q)
	if err != nil {
		return 0, err
	}
	vars := map[string]any{"tb": table}
	sql := "SELECT count() AS c FROM type::table($tb)" + where(plan.Conditions(), vars) + " GROUP ALL"
	res, err := surrealdb.Query[[]countRow](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	if res == nil || len(*res) == 0 || len((*res)[0].Result) == 0 {
		return 0, nil
	}
	return (*res)[0].Result[0].C, nil
}

// Upsert replaces the record content and returns the stored document.
func (s *Store) Upsert(ctx context.Context, table, id string, doc []byte) ([]byte, error) {
	if _, err := s.schema.Table(table); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, docstore.ErrEmptyID
	}
	content, err := docstore.DecodeMap(doc)
	if err != nil {
		return nil, err
	}
	docs, err := s.rows(ctx, "UPSERT type::thing($tb, $id) CONTENT $doc RETURN AFTER",
		map[string]any{"tb": table, "id": id, "doc": content})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s/%s: %w", table, id, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("failed to upsert %s/%s: no record returned", table, id)
	}
	return docs[0], nil
}

// Update applies exprs in one UPDATE statement. UPDATE never creates
// records, so a missing id is a no-op.
func (s *Store) Update(ctx context.Context, table, id string, exprs ...docstore.Expr) error {
	exprs, err := s.schema.CheckExprs(table, exprs)
	if err != nil {
		return err
	}
	vars := map[string]any{"tb": table, "id": id}
	sets := make([]string, 0, len(exprs))
	for i, e := range exprs {
		name := fmt.Sprintf("v%d", i)
		switch e.Kind {
		case docstore.ExprIncrement:
			sets = append(sets, fmt.Sprintf("%s = (%s ?? 0) + $%s", e.Field, e.Field, name))
			vars[name] = e.Delta
		case docstore.ExprSet:
			sets = append(sets, fmt.Sprintf("%s = $%s", e.Field, name))
			vars[name] = e.Value
		default:
			return fmt.Errorf("unknown expression kind %d", e.Kind)
		}
	}
	sql := "UPDATE type::thing($tb, $id) SET " + strings.Join(sets, ", ") + " RETURN NONE"
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", table, id, err)
	}
	return nil
}

// Delete removes the record at id.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	if _, err := s.schema.Table(table); err != nil {
		return err
	}
	if _, err := surrealdb.Query[any](ctx, s.db, "DELETE type::thing($tb, $id)",
		map[string]any{"tb": table, "id": id}); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, id, err)
	}
	return nil
}

// DeleteByIndex removes every record matching key and counts them.
func (s *Store) DeleteByIndex(ctx context.Context, table, index string, key docstore.Key) (int64, error) {
	plan, err := s.schema.Check(table, docstore.Query{Index: index, Key: key})
	if err != nil {
		return 0, err
	}
	vars := map[string]any{"tb": table}
	sql := "DELETE FROM type::table($tb)" + where(plan.Conditions(), vars) + " RETURN BEFORE"
	docs, err := s.rows(ctx, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s by %s: %w", table, index, err)
	}
	return int64(len(docs)), nil
}

// GroupCount counts records per value of field among values.
func (s *Store) GroupCount(ctx context.Context, table, field string, values []string) (map[string]int64, error) {
	if _, err := s.schema.Table(table); err != nil {
		return nil, err
	}
	if !docstore.ValidName(field) {
		return nil, fmt.Errorf("%w: group by %q", docstore.ErrInvalidField, field)
	}
	out := make(map[string]int64)
	if len(values) == 0 {
		return out, nil
	}
	sql := fmt.Sprintf("SELECT %[1]s AS g, count() AS c FROM type::table($tb) WHERE %[1]s IN $vals GROUP BY g", field)
	type groupRow struct {
		G string `json:"g"`
		C int64  `json:"c"`
	}
	res, err := surrealdb.Query[[]groupRow](ctx, s.db, sql, map[string]any{"tb": table, "vals": values})
	if err != nil {
		return nil, fmt.Errorf("failed to group %s by %s: %w", table, field, err)
	}
	if res == nil || len(*res) == 0 {
		return out, nil
	}
	for _, row := range (*res)[0].Result {
		out[row.G] = row.C
	}
	return out, nil
}

// Ping runs a trivial statement.
func (s *Store) Ping(ctx context.Context) error {
	_, err := surrealdb.Query[any](ctx, s.db, "RETURN true", nil)
	return err
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

// where renders predicates as SurrealQL, binding values as $k0, $k1, ...
// NONE and NULL both count as null.
func where(preds []docstore.Predicate, vars map[string]any) string {
	if len(preds) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(preds))
	for i, p := range preds {
		name := fmt.Sprintf("k%d", i)
		switch p.Op {
		case docstore.IsNull:
			clauses = append(clauses, fmt.Sprintf("(%[1]s IS NONE OR %[1]s IS NULL)", p.Field))
			continue
		case docstore.Eq:
			clauses = append(clauses, fmt.Sprintf("%s = $%s", p.Field, name))
		case docstore.Ne:
			if p.Value == nil {
				clauses = append(clauses, fmt.Sprintf("(%[1]s IS NOT NONE AND %[1]s IS NOT NULL)", p.Field))
				continue
			}
			clauses = append(clauses, fmt.Sprintf("%s != $%s", p.Field, name))
		case docstore.Lt:
			clauses = append(clauses, fmt.Sprintf("%s < $%s", p.Field, name))
		case docstore.Lte:
			clauses = append(clauses, fmt.Sprintf("%s <= $%s", p.Field, name))
		case docstore.Gt:
			clauses = append(clauses, fmt.Sprintf("%s > $%s", p.Field, name))
		case docstore.Gte:
			clauses = append(clauses, fmt.Sprintf("%s >= $%s", p.Field, name))
		}
		vars[name] = p.Value
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

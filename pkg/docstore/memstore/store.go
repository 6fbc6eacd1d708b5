// ABOUTME: In-process document store with maintained secondary indexes
// ABOUTME: Every write updates the index trees under one lock

package memstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/nainya/readerstore/pkg/docstore"
)

// ErrClosed is returned by every call after Close.
var ErrClosed = errors.New("memstore: closed")

// Store keeps documents in memory. It is safe for concurrent use; updates
// are applied under the write lock so increments never interleave.
type Store struct {
	mu     sync.RWMutex
	schema *docstore.Schema
	tables map[string]*table
	closed bool
}

type table struct {
	def  docstore.Table
	docs map[string][]byte
	// index name -> encoded key -> set of ids
	indexes map[string]map[string]map[string]struct{}
}

var _ docstore.Client = (*Store)(nil)

// New creates an empty store serving the tables of schema.
func New(schema *docstore.Schema) *Store {
	s := &Store{schema: schema, tables: make(map[string]*table)}
	for _, def := range schema.Tables() {
		t := &table{
			def:     def,
			docs:    make(map[string][]byte),
			indexes: make(map[string]map[string]map[string]struct{}, len(def.Indexes)),
		}
		for _, idx := range def.Indexes {
			t.indexes[idx.Name] = make(map[string]map[string]struct{})
		}
		s.tables[def.Name] = t
	}
	return s
}

func (s *Store) table(name string) (*table, error) {
	if s.closed {
		return nil, ErrClosed
	}
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", docstore.ErrUnknownTable, name)
	}
	return t, nil
}

func (t *table) index(id string, doc []byte) {
	for _, idx := range t.def.Indexes {
		k := indexKey(doc, idx.Fields)
		ids := t.indexes[idx.Name][k]
		if ids == nil {
			ids = make(map[string]struct{})
			t.indexes[idx.Name][k] = ids
		}
		ids[id] = struct{}{}
	}
}

func (t *table) unindex(id string, doc []byte) {
	for _, idx := range t.def.Indexes {
		k := indexKey(doc, idx.Fields)
		ids := t.indexes[idx.Name][k]
		delete(ids, id)
		if len(ids) == 0 {
			delete(t.indexes[idx.Name], k)
		}
	}
}

func (t *table) put(id string, doc []byte) {
	if old, ok := t.docs[id]; ok {
		t.unindex(id, old)
	}
	t.docs[id] = doc
	t.index(id, doc)
}

func (t *table) remove(id string) bool {
	old, ok := t.docs[id]
	if !ok {
		return false
	}
	t.unindex(id, old)
	delete(t.docs, id)
	return true
}

// Get returns the document stored under id.
func (s *Store) Get(ctx context.Context, tableName, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(tableName)
	if err != nil {
		return nil, err
	}
	doc, ok := t.docs[id]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(doc), nil
}

// GetByIndex returns the lowest-id document matching key.
func (s *Store) GetByIndex(ctx context.Context, tableName, index string, key docstore.Key) ([]byte, error) {
	docs, err := s.Scan(ctx, tableName, docstore.Query{Index: index, Key: key, Limit: 1})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Scan returns matching documents ordered by the query field, then id.
func (s *Store) Scan(ctx context.Context, tableName string, q docstore.Query) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plan, err := s.schema.Check(tableName, q)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(tableName)
	if err != nil {
		return nil, err
	}

	ids := t.match(plan)
	t.order(ids, plan.OrderBy, plan.Descending)
	ids = window(ids, plan.Skip, plan.Limit)

	out := make([][]byte, len(ids))
	for i, id := range ids {
		out[i] = bytes.Clone(t.docs[id])
	}
	return out, nil
}

// Count returns the number of documents matching the query.
func (s *Store) Count(ctx context.Context, tableName string, q docstore.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	plan, err := s.schema.Check(tableName, q)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(tableName)
	if err != nil {
		return 0, err
	}
	return int64(len(t.match(plan))), nil
}

// Upsert stores doc under id and returns the stored bytes.
func (s *Store) Upsert(ctx context.Context, tableName, id string, doc []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, docstore.ErrEmptyID
	}
	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return nil, docstore.ErrInvalidDoc
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(tableName)
	if err != nil {
		return nil, err
	}
	stored := bytes.Clone(doc)
	t.put(id, stored)
	return bytes.Clone(stored), nil
}

// Update applies exprs under the write lock.
func (s *Store) Update(ctx context.Context, tableName, id string, exprs ...docstore.Expr) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	exprs, err := s.schema.CheckExprs(tableName, exprs)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(tableName)
	if err != nil {
		return err
	}
	doc, ok := t.docs[id]
	if !ok {
		return nil
	}
	next := bytes.Clone(doc)
	for _, e := range exprs {
		if next, err = apply(next, e); err != nil {
			return fmt.Errorf("update %s/%s: %w", tableName, id, err)
		}
	}
	t.put(id, next)
	return nil
}

func apply(doc []byte, e docstore.Expr) ([]byte, error) {
	switch e.Kind {
	case docstore.ExprIncrement:
		cur := gjson.GetBytes(doc, e.Field).Int()
		return sjson.SetRawBytes(doc, e.Field, strconv.AppendInt(nil, cur+e.Delta, 10))
	case docstore.ExprSet:
		raw, err := docstore.Encode(e.Value)
		if err != nil {
			return nil, err
		}
		return sjson.SetRawBytes(doc, e.Field, raw)
	}
	return nil, fmt.Errorf("unknown expression kind %d", e.Kind)
}

// Delete removes the document at id.
func (s *Store) Delete(ctx context.Context, tableName, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(tableName)
	if err != nil {
		return err
	}
	t.remove(id)
	return nil
}

// DeleteByIndex removes every document matching key.
func (s *Store) DeleteByIndex(ctx context.Context, tableName, index string, key docstore.Key) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	idx, norm, err := s.schema.Lookup(tableName, index, key)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.table(tableName)
	if err != nil {
		return 0, err
	}
	matched := t.indexes[idx.Name][lookupKey(norm)]
	ids := make([]string, 0, len(matched))
	for id := range matched {
		ids = append(ids, id)
	}
	var n int64
	for _, id := range ids {
		if t.remove(id) {
			n++
		}
	}
	return n, nil
}

// GroupCount counts documents per value of field among values.
func (s *Store) GroupCount(ctx context.Context, tableName, field string, values []string) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !docstore.ValidName(field) {
		return nil, fmt.Errorf("%w: group by %q", docstore.ErrInvalidField, field)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.table(tableName)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(values))
	for _, v := range values {
		wanted[v] = true
	}
	out := make(map[string]int64)
	for _, doc := range t.docs {
		r := gjson.GetBytes(doc, field)
		if r.Type == gjson.String && wanted[r.Str] {
			out[r.Str]++
		}
	}
	return out, nil
}

// Ping reports ErrClosed after Close.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close drops all data.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tables = nil
	return nil
}

// match returns the ids satisfying the plan, using the index when set.
func (t *table) match(plan docstore.Plan) []string {
	var candidates []string
	if plan.Index != "" {
		for id := range t.indexes[plan.Index][lookupKey(plan.Key)] {
			candidates = append(candidates, id)
		}
	} else {
		candidates = make([]string, 0, len(t.docs))
		for id := range t.docs {
			candidates = append(candidates, id)
		}
	}
	out := candidates[:0]
	for _, id := range candidates {
		if matches(t.docs[id], plan.Filter) {
			out = append(out, id)
		}
	}
	return out
}

func (t *table) order(ids []string, field string, desc bool) {
	if field == "" {
		sort.Strings(ids)
		return
	}
	keys := make(map[string][]byte, len(ids))
	for _, id := range ids {
		keys[id] = encodeResult(nil, gjson.GetBytes(t.docs[id], field))
	}
	sort.Slice(ids, func(i, j int) bool {
		c := bytes.Compare(keys[ids[i]], keys[ids[j]])
		if c == 0 {
			return ids[i] < ids[j]
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func window(ids []string, skip, limit int) []string {
	if skip >= len(ids) {
		return nil
	}
	ids = ids[skip:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids
}

func matches(doc []byte, preds []docstore.Predicate) bool {
	for _, p := range preds {
		if !holds(gjson.GetBytes(doc, p.Field), p) {
			return false
		}
	}
	return true
}

func holds(r gjson.Result, p docstore.Predicate) bool {
	isNull := r.Type == gjson.Null
	switch p.Op {
	case docstore.IsNull:
		return isNull
	case docstore.Eq:
		return encodeKey(r) == lookupKey([]any{p.Value})
	case docstore.Ne:
		return encodeKey(r) != lookupKey([]any{p.Value})
	}
	if isNull || p.Value == nil {
		return false
	}
	c, ok := compareValues(r, p.Value)
	if !ok {
		return false
	}
	switch p.Op {
	case docstore.Lt:
		return c < 0
	case docstore.Lte:
		return c <= 0
	case docstore.Gt:
		return c > 0
	case docstore.Gte:
		return c >= 0
	}
	return false
}

func encodeKey(r gjson.Result) string {
	return string(encodeResult(nil, r))
}

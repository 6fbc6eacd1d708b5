// ABOUTME: Table and secondary index registry handed to every backend
// ABOUTME: Validates table, index and field names before they reach query text

package docstore

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidName reports whether s may be used as a table, index or field name.
// Backends splice these names into query text, so the set is kept narrow.
func ValidName(s string) bool {
	return fieldPattern.MatchString(s)
}

// IndexDef defines a secondary index
type IndexDef struct {
	Name   string   // Index name, unique within its table
	Fields []string // Fields to index (in order)
}

// Table declares a document table and its secondary indexes
type Table struct {
	Name    string
	Indexes []IndexDef
}

// Index looks up an index by name.
func (t Table) Index(name string) (IndexDef, error) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, nil
		}
	}
	return IndexDef{}, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, t.Name, name)
}

// Schema is the set of tables a backend serves.
type Schema struct {
	tables map[string]Table
}

// NewSchema validates and registers tables. Later duplicates of a table
// name are rejected.
func NewSchema(tables ...Table) (*Schema, error) {
	s := &Schema{tables: make(map[string]Table, len(tables))}
	for _, t := range tables {
		if !ValidName(t.Name) {
			return nil, fmt.Errorf("%w: table %q", ErrInvalidField, t.Name)
		}
		if _, exists := s.tables[t.Name]; exists {
			return nil, fmt.Errorf("table %s already registered", t.Name)
		}
		seen := make(map[string]bool, len(t.Indexes))
		for _, idx := range t.Indexes {
			if !ValidName(idx.Name) || seen[idx.Name] {
				return nil, fmt.Errorf("%w: index %q on %s", ErrInvalidField, idx.Name, t.Name)
			}
			if len(idx.Fields) == 0 {
				return nil, fmt.Errorf("index %s.%s has no fields", t.Name, idx.Name)
			}
			for _, f := range idx.Fields {
				if !ValidName(f) {
					return nil, fmt.Errorf("%w: %q in %s.%s", ErrInvalidField, f, t.Name, idx.Name)
				}
			}
			seen[idx.Name] = true
		}
		s.tables[t.Name] = t
	}
	return s, nil
}

// MustSchema is NewSchema that panics on error, for package-level schemas.
func MustSchema(tables ...Table) *Schema {
	s, err := NewSchema(tables...)
	if err != nil {
		panic(err)
	}
	return s
}

// Tables returns the registered tables sorted by name.
func (s *Schema) Tables() []Table {
	out := make([]Table, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Table looks up a table by name.
func (s *Schema) Table(name string) (Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return Table{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return t, nil
}

// Lookup resolves an index and checks the key against its fields. The key
// values are normalized.
func (s *Schema) Lookup(table, index string, key Key) (IndexDef, Key, error) {
	t, err := s.Table(table)
	if err != nil {
		return IndexDef{}, nil, err
	}
	idx, err := t.Index(index)
	if err != nil {
		return IndexDef{}, nil, err
	}
	if len(key) != len(idx.Fields) {
		return IndexDef{}, nil, fmt.Errorf("%w: %s.%s wants %d values, got %d",
			ErrKeyArity, table, index, len(idx.Fields), len(key))
	}
	norm := make(Key, len(key))
	for i, v := range key {
		if norm[i], err = Normalize(v); err != nil {
			return IndexDef{}, nil, err
		}
	}
	return idx, norm, nil
}

// Plan is a checked query: its index fields resolved and values normalized.
type Plan struct {
	Query
	Fields []string // index fields matching Key, empty without an index
}

// Conditions returns the index key and filters as one predicate list.
func (p Plan) Conditions() []Predicate {
	out := make([]Predicate, 0, len(p.Fields)+len(p.Filter))
	for i, f := range p.Fields {
		out = append(out, Predicate{Field: f, Op: Eq, Value: p.Key[i]})
	}
	return append(out, p.Filter...)
}

// Check validates q against the schema and returns a normalized plan.
func (s *Schema) Check(table string, q Query) (Plan, error) {
	p := Plan{Query: q}
	if _, err := s.Table(table); err != nil {
		return p, err
	}
	if q.Index != "" {
		idx, key, err := s.Lookup(table, q.Index, q.Key)
		if err != nil {
			return p, err
		}
		p.Fields = idx.Fields
		p.Key = key
	}
	if q.OrderBy != "" && !ValidName(q.OrderBy) {
		return p, fmt.Errorf("%w: order by %q", ErrInvalidField, q.OrderBy)
	}
	if q.Skip < 0 || q.Limit < 0 {
		return p, fmt.Errorf("negative skip or limit")
	}
	p.Filter = make([]Predicate, len(q.Filter))
	for i, pred := range q.Filter {
		if !ValidName(pred.Field) {
			return p, fmt.Errorf("%w: filter %q", ErrInvalidField, pred.Field)
		}
		if pred.Op < Eq || pred.Op > IsNull {
			return p, fmt.Errorf("unknown operator %s", pred.Op)
		}
		v, err := Normalize(pred.Value)
		if err != nil {
			return p, err
		}
		if pred.Op == Eq && v == nil {
			pred.Op = IsNull
		}
		pred.Value = v
		p.Filter[i] = pred
	}
	return p, nil
}

// CheckExprs validates update expressions and normalizes Set values.
func (s *Schema) CheckExprs(table string, exprs []Expr) ([]Expr, error) {
	if _, err := s.Table(table); err != nil {
		return nil, err
	}
	if len(exprs) == 0 {
		return nil, ErrNoExprs
	}
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		if !ValidName(e.Field) {
			return nil, fmt.Errorf("%w: update %q", ErrInvalidField, e.Field)
		}
		if e.Kind == ExprSet {
			v, err := NormalizeDeep(e.Value)
			if err != nil {
				return nil, err
			}
			e.Value = v
		}
		out[i] = e
	}
	return out, nil
}

// Normalize maps a scalar to the representation documents use on the wire:
// nil, bool, int64, float64 or string. Times become RFC 3339 strings.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case string:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return x.Format(time.RFC3339Nano), nil
	case *string:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrInvalidValue, v)
}

// NormalizeDeep is Normalize extended to string slices, for Set values
// such as tag or author lists.
func NormalizeDeep(v any) (any, error) {
	switch x := v.(type) {
	case []string:
		if x == nil {
			return nil, nil
		}
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			n, err := Normalize(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return Normalize(v)
}

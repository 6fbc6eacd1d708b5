// ABOUTME: Query, predicate and update expression types
// ABOUTME: Fluent builder for scans and counts across backends

package docstore

import "fmt"

// Op is a predicate comparison operator.
type Op int

const (
	Eq Op = iota
	Ne
	Lt
	Lte
	Gt
	Gte
	IsNull
)

func (o Op) String() string {
	switch o {
	case Eq:
		return "eq"
	case Ne:
		return "ne"
	case Lt:
		return "lt"
	case Lte:
		return "lte"
	case Gt:
		return "gt"
	case Gte:
		return "gte"
	case IsNull:
		return "is_null"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Predicate filters on one top-level field. Eq and Ne with a nil value
// compare against null; a missing field counts as null. Range operators
// never match null.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// DefaultLimit is the page size NewQuery starts with.
const DefaultLimit = 100

// Query selects documents from one table. When Index is set, Key restricts
// the scan to documents whose index fields equal Key. Limit 0 means no limit.
// Results are ordered by OrderBy and then by id.
type Query struct {
	Index      string
	Key        Key
	Filter     []Predicate
	OrderBy    string
	Descending bool
	Skip       int
	Limit      int
}

// Paged reports whether the query restricts the result window.
func (q Query) Paged() bool {
	return q.Skip > 0 || q.Limit > 0
}

// QueryBuilder provides a fluent interface for building queries
type QueryBuilder struct {
	query Query
}

// NewQuery creates a builder with the default limit
func NewQuery() *QueryBuilder {
	return &QueryBuilder{query: Query{Limit: DefaultLimit}}
}

// Index restricts the query to an index key
func (qb *QueryBuilder) Index(name string, key ...any) *QueryBuilder {
	qb.query.Index = name
	qb.query.Key = Key(key)
	return qb
}

// Where adds an equality filter
func (qb *QueryBuilder) Where(field string, value any) *QueryBuilder {
	return qb.Filter(field, Eq, value)
}

// Filter adds a filter with an explicit operator
func (qb *QueryBuilder) Filter(field string, op Op, value any) *QueryBuilder {
	qb.query.Filter = append(qb.query.Filter, Predicate{Field: field, Op: op, Value: value})
	return qb
}

// OrderBy sets ordering field
func (qb *QueryBuilder) OrderBy(field string, descending bool) *QueryBuilder {
	qb.query.OrderBy = field
	qb.query.Descending = descending
	return qb
}

// Skip sets the number of leading results to drop
func (qb *QueryBuilder) Skip(n int) *QueryBuilder {
	qb.query.Skip = n
	return qb
}

// Limit sets the result limit, 0 for unlimited
func (qb *QueryBuilder) Limit(n int) *QueryBuilder {
	qb.query.Limit = n
	return qb
}

// Build returns the constructed query
func (qb *QueryBuilder) Build() Query {
	return qb.query
}

// ExprKind distinguishes update expressions.
type ExprKind int

const (
	ExprSet ExprKind = iota
	ExprIncrement
)

// Expr is a single store-side field update.
type Expr struct {
	Kind  ExprKind
	Field string
	Value any
	Delta int64
}

// Set assigns value to field. A nil value writes null.
func Set(field string, value any) Expr {
	return Expr{Kind: ExprSet, Field: field, Value: value}
}

// Increment adds delta to field, treating a missing field as 0.
func Increment(field string, delta int64) Expr {
	return Expr{Kind: ExprIncrement, Field: field, Delta: delta}
}

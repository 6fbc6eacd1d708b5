// ABOUTME: MongoDB document store, one collection per schema table
// ABOUTME: Documents are keyed by _id = Id and converted through relaxed extended JSON

package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nainya/readerstore/pkg/docstore"
)

// Store implements docstore.Client on MongoDB. Single-document operations
// are atomic on the server, which covers Update.
type Store struct {
	db     *mongo.Database
	schema *docstore.Schema
}

var _ docstore.Client = (*Store)(nil)

// Open connects to uri, verifies the primary is reachable and ensures the
// schema's indexes.
func Open(ctx context.Context, uri, database string, schema *docstore.Schema) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	s, err := New(ctx, client.Database(database), schema)
	if err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// New wraps a database handle and ensures indexes.
func New(ctx context.Context, db *mongo.Database, schema *docstore.Schema) (*Store, error) {
	s := &Store{db: db, schema: schema}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates one compound index per IndexDef.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	for _, t := range s.schema.Tables() {
		if len(t.Indexes) == 0 {
			continue
		}
		models := make([]mongo.IndexModel, 0, len(t.Indexes))
		for _, idx := range t.Indexes {
			keys := bson.D{}
			for _, f := range idx.Fields {
				keys = append(keys, bson.E{Key: f, Value: 1})
			}
			models = append(models, mongo.IndexModel{
				Keys:    keys,
				Options: options.Index().SetName(idx.Name),
			})
		}
		if _, err := s.db.Collection(t.Name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", t.Name, err)
		}
	}
	return nil
}

func (s *Store) collection(table string) (*mongo.Collection, error) {
	if _, err := s.schema.Table(table); err != nil {
		return nil, err
	}
	return s.db.Collection(table), nil
}

// Get returns the document stored under id.
func (s *Store) Get(ctx context.Context, table, id string) ([]byte, error) {
	coll, err := s.collection(table)
	if err != nil {
		return nil, err
	}
	raw, err := coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", table, id, err)
	}
	return toJSON(raw)
}

// GetByIndex returns the lowest-id document matching key.
func (s *Store) GetByIndex(ctx context.Context, table, index string, key docstore.Key) ([]byte, error) {
	docs, err := s.Scan(ctx, table, docstore.Query{Index: index, Key: key, Limit: 1})
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

// Scan returns matching documents ordered by the query field, then _id.
func (s *Store) Scan(ctx context.Context, table string, q docstore.Query) ([][]byte, error) {
	plan, err := s.schema.Check(table, q)
	if err != nil {
		return nil, err
	}
	coll := s.db.Collection(table)

	sort := bson.D{}
	if plan.OrderBy != "" {
		dir := 1
		if plan.Descending {
			dir = -1
		}
		sort = append(sort, bson.E{Key: plan.OrderBy, Value: dir})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})
	opts := options.Find().SetSort(sort)
	if plan.Skip > 0 {
		opts.SetSkip(int64(plan.Skip))
	}
	if plan.Limit > 0 {
		opts.SetLimit(int64(plan.Limit))
	}

	cur, err := coll.Find(ctx, filter(plan.Conditions()), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}
	defer cur.Close(ctx)

	var out [][]byte
	for cur.Next(ctx) {
		doc, err := toJSON(cur.Current)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", table, err)
	}
	return out, nil
}

// Count returns the number of matching documents.
func (s *Store) Count(ctx context.Context, table string, q docstore.Query) (int64, error) {
	plan, err := s.schema.Check(table, q)
	if err != nil {
		return 0, err
	}
	n, err := s.db.Collection(table).CountDocuments(ctx, filter(plan.Conditions()))
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// Upsert replaces the document at id, inserting when absent, and returns
// the post-write value.
func (s *Store) Upsert(ctx context.Context, table, id string, doc []byte) ([]byte, error) {
	coll, err := s.collection(table)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, docstore.ErrEmptyID
	}
	if _, err := docstore.DecodeMap(doc); err != nil {
		return nil, err
	}
	var body bson.D
	if err := bson.UnmarshalExtJSON(doc, false, &body); err != nil {
		return nil, fmt.Errorf("failed to convert %s/%s: %w", table, id, err)
	}
	replacement := append(bson.D{{Key: "_id", Value: id}}, withoutID(body)...)

	raw, err := coll.FindOneAndReplace(ctx,
		bson.D{{Key: "_id", Value: id}},
		replacement,
		options.FindOneAndReplace().SetUpsert(true).SetReturnDocument(options.After),
	).Raw()
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s/%s: %w", table, id, err)
	}
	return toJSON(raw)
}

// Update applies exprs with one UpdateOne carrying $set and $inc.
func (s *Store) Update(ctx context.Context, table, id string, exprs ...docstore.Expr) error {
	exprs, err := s.schema.CheckExprs(table, exprs)
	if err != nil {
		return err
	}
	set, inc := bson.D{}, bson.D{}
	for _, e := range exprs {
		switch e.Kind {
		case docstore.ExprIncrement:
			inc = append(inc, bson.E{Key: e.Field, Value: e.Delta})
		case docstore.ExprSet:
			set = append(set, bson.E{Key: e.Field, Value: e.Value})
		default:
			return fmt.Errorf("unknown expression kind %d", e.Kind)
		}
	}
	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if len(inc) > 0 {
		update = append(update, bson.E{Key: "$inc", Value: inc})
	}
	if _, err := s.db.Collection(table).UpdateOne(ctx, bson.D{{Key: "_id", Value: id}}, update); err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", table, id, err)
	}
	return nil
}

// Delete removes the document at id.
func (s *Store) Delete(ctx context.Context, table, id string) error {
	coll, err := s.collection(table)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}}); err != nil {
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
	res, err := s.db.Collection(table).DeleteMany(ctx, filter(plan.Conditions()))
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s by %s: %w", table, index, err)
	}
	return res.DeletedCount, nil
}

// GroupCount counts documents per value of field among values.
func (s *Store) GroupCount(ctx context.Context, table, field string, values []string) (map[string]int64, error) {
	coll, err := s.collection(table)
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
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: field, Value: bson.D{{Key: "$in", Value: values}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$" + field},
			{Key: "c", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to group %s by %s: %w", table, field, err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Value string `bson:"_id"`
		Count int64  `bson:"c"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}
	for _, r := range rows {
		out[r.Value] = r.Count
	}
	return out, nil
}

// Ping checks the primary.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.db.Client().Disconnect(context.Background())
}

// filter renders predicates as a MongoDB query document. A null comparison
// also matches missing fields, as elsewhere.
func filter(preds []docstore.Predicate) bson.D {
	conds := make(bson.A, 0, len(preds))
	for _, p := range preds {
		var cond any
		switch p.Op {
		case docstore.Eq:
			cond = p.Value
		case docstore.IsNull:
			cond = nil
		case docstore.Ne:
			cond = bson.D{{Key: "$ne", Value: p.Value}}
		case docstore.Lt:
			cond = bson.D{{Key: "$lt", Value: p.Value}}
		case docstore.Lte:
			cond = bson.D{{Key: "$lte", Value: p.Value}}
		case docstore.Gt:
			cond = bson.D{{Key: "$gt", Value: p.Value}}
		case docstore.Gte:
			cond = bson.D{{Key: "$gte", Value: p.Value}}
		}
		conds = append(conds, bson.D{{Key: p.Field, Value: cond}})
	}
	switch len(conds) {
	case 0:
		return bson.D{}
	case 1:
		return conds[0].(bson.D)
	}
	return bson.D{{Key: "$and", Value: conds}}
}

func withoutID(d bson.D) bson.D {
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	return out
}

func toJSON(raw bson.Raw) ([]byte, error) {
	var d bson.D
	if err := bson.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	doc, err := bson.MarshalExtJSON(withoutID(d), false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}

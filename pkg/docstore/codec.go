// ABOUTME: JSON document codec helpers shared by repositories and backends
// ABOUTME: Encoding via goccy/go-json, field reads via gjson

package docstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// IDField is the document field carrying the identifier.
const IDField = "Id"

// Encode marshals a document value.
func Encode(v any) ([]byte, error) {
	doc, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

// Decode unmarshals a document into v.
func Decode(doc []byte, v any) error {
	if err := json.Unmarshal(doc, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// DecodeAll decodes a scan result into a typed slice.
func DecodeAll[T any](docs [][]byte) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		v := new(T)
		if err := Decode(doc, v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetAs fetches and decodes one document, nil when absent.
func GetAs[T any](ctx context.Context, c Client, table, id string) (*T, error) {
	doc, err := c.Get(ctx, table, id)
	if err != nil || doc == nil {
		return nil, err
	}
	v := new(T)
	if err := Decode(doc, v); err != nil {
		return nil, err
	}
	return v, nil
}

// ScanAs runs a scan and decodes the results.
func ScanAs[T any](ctx context.Context, c Client, table string, q Query) ([]*T, error) {
	docs, err := c.Scan(ctx, table, q)
	if err != nil {
		return nil, err
	}
	return DecodeAll[T](docs)
}

// UpsertAs encodes v, upserts it at id and decodes the stored result.
func UpsertAs[T any](ctx context.Context, c Client, table, id string, v *T) (*T, error) {
	doc, err := Encode(v)
	if err != nil {
		return nil, err
	}
	stored, err := c.Upsert(ctx, table, id, doc)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := Decode(stored, out); err != nil {
		return nil, err
	}
	return out, nil
}

// IDOf reads the identifier field of a raw document.
func IDOf(doc []byte) string {
	return gjson.GetBytes(doc, IDField).String()
}

// Field reads a top-level field of a raw document.
func Field(doc []byte, name string) gjson.Result {
	return gjson.GetBytes(doc, name)
}

// DecodeMap decodes a document into a generic map. Integral numbers become
// int64 so stores with distinct integer types keep counters integral.
func DecodeMap(doc []byte) (map[string]any, error) {
	if !gjson.ValidBytes(doc) || !gjson.ParseBytes(doc).IsObject() {
		return nil, ErrInvalidDoc
	}
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for k, v := range m {
		m[k] = fromNumber(v)
	}
	return m, nil
}

func fromNumber(v any) any {
	switch x := v.(type) {
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := x.Int64(); err == nil {
				return i
			}
		}
		f, _ := x.Float64()
		return f
	case map[string]any:
		for k, e := range x {
			x[k] = fromNumber(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = fromNumber(e)
		}
		return x
	}
	return v
}

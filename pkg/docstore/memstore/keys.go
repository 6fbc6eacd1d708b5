// ABOUTME: Order-preserving encoding for index keys and sort values
// ABOUTME: Type-tagged so null < false < true < numbers < strings

package memstore

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/tidwall/gjson"
)

// Value tags; their order is the cross-type sort order.
const (
	tagNull  = 0x01
	tagFalse = 0x02
	tagTrue  = 0x03
	tagNum   = 0x04
	tagStr   = 0x05
)

// encodeScalar encodes a normalized value (nil, bool, int64, float64, string).
func encodeScalar(out []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(out, tagNull)
	case bool:
		if x {
			return append(out, tagTrue)
		}
		return append(out, tagFalse)
	case int64:
		return encodeNumber(out, float64(x))
	case float64:
		return encodeNumber(out, x)
	case string:
		return encodeString(out, x)
	}
	return append(out, tagNull)
}

// encodeResult encodes a gjson field value. Missing fields encode as null.
func encodeResult(out []byte, r gjson.Result) []byte {
	switch r.Type {
	case gjson.False:
		return append(out, tagFalse)
	case gjson.True:
		return append(out, tagTrue)
	case gjson.Number:
		return encodeNumber(out, r.Num)
	case gjson.String:
		return encodeString(out, r.Str)
	case gjson.JSON:
		return encodeString(out, r.Raw)
	}
	return append(out, tagNull)
}

func encodeNumber(out []byte, f float64) []byte {
	// Flip the sign bit for positives and all bits for negatives so the
	// big-endian bytes sort like the floats.
	bits := math.Float64bits(f)
	if f >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], bits)
	out = append(out, tagNum)
	return append(out, buf[:]...)
}

// encodeString escapes 0x00 as 0x00 0xFF and terminates with 0x00 0x01, so
// a prefix always sorts before its extensions.
func encodeString(out []byte, s string) []byte {
	out = append(out, tagStr)
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			out = append(out, 0x00, 0xFF)
			continue
		}
		out = append(out, s[i])
	}
	return append(out, 0x00, 0x01)
}

// indexKey encodes the indexed fields of a document as one tuple.
func indexKey(doc []byte, fields []string) string {
	out := make([]byte, 0, 32)
	for _, r := range gjson.GetManyBytes(doc, fields...) {
		out = encodeResult(out, r)
	}
	return string(out)
}

// lookupKey encodes a normalized key tuple the way indexKey encodes documents.
func lookupKey(key []any) string {
	out := make([]byte, 0, 32)
	for _, v := range key {
		out = encodeScalar(out, v)
	}
	return string(out)
}

// compareValues orders a document field against a predicate value. ok is
// false when the two are of different kinds, which range operators treat
// as no match.
func compareValues(r gjson.Result, v any) (cmp int, ok bool) {
	a := encodeResult(nil, r)
	b := encodeScalar(nil, v)
	if kind(a[0]) != kind(b[0]) {
		return 0, false
	}
	return bytes.Compare(a, b), true
}

// kind folds false and true into one kind.
func kind(tag byte) byte {
	if tag == tagTrue {
		return tagFalse
	}
	return tag
}

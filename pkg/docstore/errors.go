// ABOUTME: Sentinel errors shared by every document store backend
// ABOUTME: Callers match them with errors.Is

package docstore

import "errors"

var (
	ErrUnknownTable = errors.New("docstore: unknown table")
	ErrUnknownIndex = errors.New("docstore: unknown index")
	ErrKeyArity     = errors.New("docstore: key does not match index fields")
	ErrInvalidField = errors.New("docstore: invalid field name")
	ErrInvalidValue = errors.New("docstore: unsupported value type")
	ErrNoExprs      = errors.New("docstore: update without expressions")
	ErrEmptyID      = errors.New("docstore: empty document id")
	ErrInvalidDoc   = errors.New("docstore: document is not a JSON object")
)

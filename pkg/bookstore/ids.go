// ABOUTME: Deterministic identifiers for hierarchy entities
// ABOUTME: A child's id is its parent's id joined with its ordinal

package bookstore

import (
	"strconv"

	"github.com/google/uuid"
)

// DeriveID returns parentID + "-" + number. Callers validate parentID is
// non-empty and number >= 1, and run the uniqueness guard before using it.
func DeriveID(parentID string, number int) string {
	return parentID + "-" + strconv.Itoa(number)
}

// NewRootID generates an identifier for a root entity.
func NewRootID() string {
	return uuid.NewString()
}

// ABOUTME: Error taxonomy for the hierarchy repositories
// ABOUTME: Validation failures and duplicate ordinals; misses are nil results

package bookstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nainya/readerstore/pkg/docstore"
)

var (
	ErrValidation       = errors.New("bookstore: validation failed")
	ErrDuplicateOrdinal = errors.New("bookstore: duplicate ordinal")
	ErrParentNotFound   = errors.New("bookstore: parent not found")
	ErrUnknownCounter   = errors.New("bookstore: unknown counter")
)

// ValidationError reports rejected input. It matches ErrValidation and
// unwraps to its cause.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("bookstore: invalid ")
	b.WriteString(e.Entity)
	if e.Field != "" {
		b.WriteString(".")
		b.WriteString(e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(entity, field, reason string) error {
	return &ValidationError{Entity: entity, Field: field, Reason: reason}
}

func parentMissing(entity, field, id string) error {
	return &ValidationError{
		Entity: entity,
		Field:  field,
		Reason: fmt.Sprintf("%s not found", id),
		Err:    ErrParentNotFound,
	}
}

// fromValidator converts struct validation failures, reporting the first.
func fromValidator(entity string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &ValidationError{Entity: entity, Field: fe.Field(), Reason: "failed " + reason, Err: err}
	}
	return &ValidationError{Entity: entity, Reason: err.Error(), Err: err}
}

// DuplicateOrdinalError names the coordinate a write collided with.
type DuplicateOrdinalError struct {
	Table         string
	Index         string
	Key           docstore.Key
	ConflictingID string
}

func (e *DuplicateOrdinalError) Error() string {
	return fmt.Sprintf("bookstore: duplicate ordinal in %s.%s at %v (held by %s)",
		e.Table, e.Index, []any(e.Key), e.ConflictingID)
}

func (e *DuplicateOrdinalError) Is(target error) bool {
	return target == ErrDuplicateOrdinal
}

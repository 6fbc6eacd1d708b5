// ABOUTME: Validation and parent errors of the content repositories
// ABOUTME: ValidationError matches ErrValidation and unwraps its cause

package content

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrValidation     = errors.New("content: validation failed")
	ErrParentNotFound = errors.New("content: parent not found")
	ErrUnknownCounter = errors.New("content: unknown counter")
)

// ValidationError reports rejected input and matches ErrValidation.
type ValidationError struct {
	Kind   string
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("content: invalid %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("content: invalid %s.%s: %s", e.Kind, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ValidationError) Unwrap() error        { return e.Err }

func invalid(kind, field, reason string, cause error) error {
	return &ValidationError{Kind: kind, Field: field, Reason: reason, Err: cause}
}

func fromValidator(kind string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return invalid(kind, verrs[0].Field(), "failed "+verrs[0].Tag(), err)
	}
	return invalid(kind, "", err.Error(), err)
}

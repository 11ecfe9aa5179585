package auth

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when the response envelope is missing
// its success flag or failure reason. This is the only hard classification
// failure; missing optional detail fields merely coarsen the outcome.
var ErrMalformedResponse = errors.New("malformed response envelope")

// ValidationError reports an empty required credential field. Callers
// decide whether to re-prompt or abort.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("required field %q is empty", e.Field)
}

// IsValidationError reports whether err is a credential validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

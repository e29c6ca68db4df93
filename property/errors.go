package property

import (
	"errors"
	"fmt"
)

// ConversionError reports a caller value whose shape does not match the
// declared kind. Expected names the literal shape the kind requires.
type ConversionError struct {
	Kind     Kind
	Expected string
	Value    any
	Reason   string
}

func (e *ConversionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot convert value to %s: %s (expected %s)", e.Kind, e.Reason, e.Expected)
	}
	return fmt.Sprintf("cannot convert value to %s (expected %s)", e.Kind, e.Expected)
}

// AsConversionError unwraps err into a *ConversionError.
func AsConversionError(err error) (*ConversionError, bool) {
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return convErr, true
	}
	return nil, false
}

func mismatch(kind Kind, expected string, value any, format string, args ...any) error {
	return &ConversionError{
		Kind:     kind,
		Expected: expected,
		Value:    value,
		Reason:   fmt.Sprintf(format, args...),
	}
}

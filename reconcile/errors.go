package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/slighter12/cocos-mcp-go/property"
)

// Class groups engine failures by what went wrong and when.
type Class string

const (
	ClassInvalidArgument    Class = "invalid_argument"
	ClassNotFound           Class = "not_found"
	ClassShapeMismatch      Class = "shape_mismatch"
	ClassAmbiguousReference Class = "ambiguous_reference"
	ClassDispatchExhausted  Class = "dispatch_exhausted"
	ClassUnverified         Class = "unverified"
	ClassHost               Class = "host_error"
	ClassInternal           Class = "internal"
)

// Error is a classified engine failure. Available lists what the scene did
// offer when something was not found.
type Error struct {
	Class       Class
	Message     string
	Available   []string
	Expected    string
	Instruction string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func notFound(available []string, format string, args ...any) *Error {
	return &Error{Class: ClassNotFound, Message: fmt.Sprintf(format, args...), Available: available}
}

func invalidArgument(format string, args ...any) *Error {
	return &Error{Class: ClassInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func hostError(err error, format string, args ...any) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return &Error{Class: ClassHost, Message: fmt.Sprintf(format, args...), Err: err}
}

// classify maps any error to a classified engine error.
func classify(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	if convErr, ok := property.AsConversionError(err); ok {
		return &Error{Class: ClassShapeMismatch, Message: convErr.Error(), Expected: convErr.Expected, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Class: ClassHost, Message: "operation cancelled", Err: err}
	}
	return &Error{Class: ClassInternal, Message: err.Error(), Err: err}
}

// failure renders err as a failed Result, merging data into the result data.
func failure(err error, data map[string]any) Result {
	e := classify(err)
	if data == nil {
		data = map[string]any{}
	}
	if len(e.Available) > 0 {
		data["available"] = e.Available
	}
	if e.Expected != "" {
		data["expected"] = e.Expected
	}
	if len(data) == 0 {
		data = nil
	}
	return Result{
		Success:     false,
		Error:       e.Error(),
		Instruction: e.Instruction,
		Data:        data,
		Kind:        e.Class,
	}
}

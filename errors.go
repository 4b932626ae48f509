package bitwire

import (
	"errors"
	"fmt"
)

var (
	ErrSchema         = errors.New("malformed schema")
	ErrAssertion      = errors.New("assertion failed")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrBounds         = errors.New("out of bounds")
	ErrRange          = errors.New("value out of range")
	ErrType           = errors.New("wrong value type")
	ErrMissingValue   = errors.New("missing value")
)

// SchemaError reports a schema that cannot be built or used.
// errors.Is(err, ErrSchema) holds for every SchemaError.
type SchemaError struct {
	msg string
}

func (e *SchemaError) Error() string {
	return "bitwire: " + e.msg
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func schemaErrorf(format string, a ...any) *SchemaError {
	return &SchemaError{fmt.Sprintf(format, a...)}
}

// DecodeError is returned by the decode entry points. Field is the dotted
// path of the offending field, Value its raw value when one was read.
type DecodeError struct {
	Field string
	Value any
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("bitwire: decode %s (value %v): %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("bitwire: decode %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError is returned by Encode. Field is the dotted path of the
// offending field, Value the value supplied for it.
type EncodeError struct {
	Field string
	Value any
	Err   error
}

func (e *EncodeError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("bitwire: encode %s (value %v): %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("bitwire: encode %s: %v", e.Field, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

func decodeFailure(path string, value any, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	return &DecodeError{Field: path, Value: value, Err: err}
}

func encodeFailure(path string, value any, err error) error {
	var ee *EncodeError
	if errors.As(err, &ee) {
		return err
	}
	return &EncodeError{Field: path, Value: value, Err: err}
}

func joinPath(parent, name string) string {
	switch {
	case parent == "":
		return name
	case name == "":
		return parent
	}
	return parent + "." + name
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

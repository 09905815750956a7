package genabi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/indexsupply/hookgen/hookabi"
)

var (
	ErrUnsupportedType     = errors.New("unsupported field type")
	ErrMissingByteLength   = errors.New("byte length is required")
	ErrPatternNotAllowed   = errors.New("null field should not have a pattern")
	ErrUnimplemented       = errors.New("amount field does not support patterns")
	ErrUnsupportedEncoding = errors.New("unsupported pattern encoding")
	ErrMissingPattern      = errors.New("pattern is required")
	ErrMalformedPattern    = errors.New("malformed pattern")
)

// Error is a generation failure. The input was valid
// JSON with a valid shape but one of its fields can't
// be turned into C.
//
// Err wraps one of the Err* values in this package.
type Error struct {
	Section hookabi.Section
	Entry   string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	var s strings.Builder
	if e.Section != "" {
		s.WriteString(string(e.Section))
		s.WriteString(": ")
	}
	if e.Entry != "" {
		fmt.Fprintf(&s, "entry %q: ", e.Entry)
	}
	if e.Field != "" {
		fmt.Fprintf(&s, "field %q: ", e.Field)
	}
	s.WriteString(e.Err.Error())
	return s.String()
}

func (e *Error) Unwrap() error { return e.Err }

func fieldErr(f hookabi.Field, err error) error {
	return &Error{Field: f.Name(), Err: err}
}

// adds entry (and section) context to errors
// produced by the struct emitters
func entryErr(s hookabi.Section, name string, err error) error {
	var ge *Error
	if !errors.As(err, &ge) {
		ge = &Error{Err: err}
	}
	if ge.Section == "" {
		ge.Section = s
	}
	if ge.Entry == "" {
		ge.Entry = name
	}
	return ge
}

package hookabi

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

var (
	ErrNoHooks    = errors.New("Invalid JSON: No hooks field found")
	ErrMissingABI = errors.New("Invalid JSON: Some hooks have no ABI")
	ErrEmpty      = errors.New("empty input")
	ErrHooksList  = errors.New("Invalid JSON: hooks must be a list")
	ErrABIObject  = errors.New("Invalid JSON: abi must be an object")
)

// ParseError is returned for any input that fails
// before generation: malformed JSON, a missing hooks
// list, a hook without an abi or an unknown field type.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// Reports whether b is absent or one of the JSON
// values that count as missing: null, false, 0 and "".
func missing(b json.RawMessage) bool {
	b = bytes.TrimSpace(b)
	switch string(b) {
	case "", "null", "false", `""`:
		return true
	}
	if b[0] == '-' || (b[0] >= '0' && b[0] <= '9') {
		f, err := strconv.ParseFloat(string(b), 64)
		return err == nil && f == 0
	}
	return false
}

func kind(b json.RawMessage) byte {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// Decodes a document of the form:
//
//	{"hooks": [{"id": "...", "abi": {...}}]}
//
// Every hook is checked for an abi before any
// abi is decoded.
func ParseDocument(js []byte) ([]Hook, error) {
	if len(bytes.TrimSpace(js)) == 0 {
		return nil, &ParseError{ErrEmpty}
	}
	var top json.RawMessage
	if err := json.Unmarshal(js, &top); err != nil {
		return nil, &ParseError{err}
	}
	if kind(top) != '{' {
		return nil, &ParseError{ErrNoHooks}
	}
	var doc struct {
		Hooks json.RawMessage `json:"hooks"`
	}
	if err := json.Unmarshal(top, &doc); err != nil {
		return nil, &ParseError{err}
	}
	if missing(doc.Hooks) {
		return nil, &ParseError{ErrNoHooks}
	}
	if kind(doc.Hooks) != '[' {
		return nil, &ParseError{ErrHooksList}
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(doc.Hooks, &elems); err != nil {
		return nil, &ParseError{fmt.Errorf("decoding hooks: %w", err)}
	}
	type rawHook struct {
		ID  string          `json:"id"`
		ABI json.RawMessage `json:"abi"`
	}
	raw := make([]rawHook, len(elems))
	for i, e := range elems {
		if kind(e) != '{' {
			return nil, &ParseError{ErrMissingABI}
		}
		if err := json.Unmarshal(e, &raw[i]); err != nil {
			return nil, &ParseError{fmt.Errorf("hook %d: %w", i, err)}
		}
	}
	for _, rh := range raw {
		if missing(rh.ABI) {
			return nil, &ParseError{ErrMissingABI}
		}
	}
	for _, rh := range raw {
		if kind(rh.ABI) != '{' {
			return nil, &ParseError{fmt.Errorf("hook %q: %w", rh.ID, ErrABIObject)}
		}
	}
	hooks := make([]Hook, len(raw))
	for i, rh := range raw {
		hooks[i].ID = rh.ID
		if err := json.Unmarshal(rh.ABI, &hooks[i].ABI); err != nil {
			return nil, &ParseError{fmt.Errorf("hook %q: %w", rh.ID, err)}
		}
	}
	return hooks, nil
}

// Re-indents js with two spaces, keeping key order.
// Formatting already formatted output is a no-op.
func Format(js []byte) ([]byte, error) {
	if len(bytes.TrimSpace(js)) == 0 {
		return nil, &ParseError{ErrEmpty}
	}
	var v any
	if err := json.Unmarshal(js, &v); err != nil {
		return nil, &ParseError{err}
	}
	var c, b bytes.Buffer
	if err := json.Compact(&c, js); err != nil {
		return nil, &ParseError{err}
	}
	if err := json.Indent(&b, c.Bytes(), "", "  "); err != nil {
		return nil, &ParseError{err}
	}
	return b.Bytes(), nil
}

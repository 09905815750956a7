// Data model for Hook ABI documents.
//
// An ABI describes the binary layout of a Hook's
// states and parameters. Each section is a list of
// entries and each entry has a selector (the key)
// and data (the payload), both lists of fields.
package hookabi

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

type FieldType string

const (
	UInt8     FieldType = "UInt8"
	UInt16    FieldType = "UInt16"
	UInt32    FieldType = "UInt32"
	UInt64    FieldType = "UInt64"
	AccountID FieldType = "AccountID"
	Hash128   FieldType = "Hash128"
	Hash160   FieldType = "Hash160"
	Hash256   FieldType = "Hash256"
	Amount    FieldType = "Amount"
	VarString FieldType = "VarString"
	Null      FieldType = "Null"
)

var FieldTypes = []FieldType{
	UInt8, UInt16, UInt32, UInt64,
	AccountID, Hash128, Hash160, Hash256, Amount,
	VarString, Null,
}

var ErrUnknownFieldType = errors.New("unsupported field type")

func (ft FieldType) Valid() bool {
	for _, t := range FieldTypes {
		if t == ft {
			return true
		}
	}
	return false
}

// Unknown type strings are rejected here so that
// the generator only ever sees the closed set above.
func (ft *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("field type must be a string: %w", err)
	}
	if !FieldType(s).Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFieldType, s)
	}
	*ft = FieldType(s)
	return nil
}

type Encoding string

const (
	Hex   Encoding = "hex"
	ASCII Encoding = "ascii"
)

type Field struct {
	Type            FieldType `json:"type"`
	Label           string    `json:"label,omitempty"`
	Description     string    `json:"description,omitempty"`
	Pattern         string    `json:"pattern,omitempty"`
	PatternEncoding Encoding  `json:"patternEncoding,omitempty"`
	ByteLength      *int      `json:"byteLength,omitempty"`
	Exclude         bool      `json:"exclude,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// Hex when unset
func (f Field) Encoding() Encoding {
	if f.PatternEncoding == "" {
		return Hex
	}
	return f.PatternEncoding
}

func (f Field) HasPattern() bool {
	return f.Pattern != ""
}

// Label if set, otherwise the type name.
func (f Field) Name() string {
	if f.Label != "" {
		return f.Label
	}
	return string(f.Type)
}

// Entry is either a hook state or a parameter.
// Both share the same shape.
type Entry struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Selector    []Field `json:"selector"`
	Data        []Field `json:"data"`
	Notes       string  `json:"notes,omitempty"`
	Deprecated  bool    `json:"deprecated,omitempty"`
}

// Returns a copy of e where each unlabeled field in
// Selector and Data is named field_<i>. The two lists
// are indexed independently.
func (e Entry) FillLabels() Entry {
	e.Selector = fillLabels(e.Selector)
	e.Data = fillLabels(e.Data)
	return e
}

func fillLabels(fields []Field) []Field {
	if fields == nil {
		return nil
	}
	res := make([]Field, len(fields))
	for i, f := range fields {
		if f.Label == "" {
			f.Label = fmt.Sprintf("field_%d", i)
		}
		res[i] = f
	}
	return res
}

// Direct reports whether the selector is a single
// VarString with a literal pattern. Such entries use
// the pattern as the key instead of a key struct.
func (e Entry) Direct() bool {
	return len(e.Selector) == 1 &&
		e.Selector[0].Type == VarString &&
		e.Selector[0].HasPattern()
}

type Section string

const (
	HookStates     Section = "hookStates"
	HookParameters Section = "hookParameters"
	OtxnParameters Section = "otxnParameters"
)

// Sections in display order
var Sections = []Section{HookStates, HookParameters, OtxnParameters}

func (s Section) Title() string {
	switch s {
	case HookStates:
		return "Hook States"
	case HookParameters:
		return "Hook Parameters"
	case OtxnParameters:
		return "OTXN Parameters"
	default:
		return string(s)
	}
}

// A nil section was absent from the document.
// A present but empty section is a non-nil, empty slice.
type ABI struct {
	Notes          string   `json:"notes,omitempty"`
	HookStates     *[]Entry `json:"hookStates,omitempty"`
	HookParameters *[]Entry `json:"hookParameters,omitempty"`
	OtxnParameters *[]Entry `json:"otxnParameters,omitempty"`
}

func (a ABI) Entries(s Section) ([]Entry, bool) {
	var p *[]Entry
	switch s {
	case HookStates:
		p = a.HookStates
	case HookParameters:
		p = a.HookParameters
	case OtxnParameters:
		p = a.OtxnParameters
	}
	if p == nil {
		return nil, false
	}
	return *p, true
}

type Hook struct {
	ID  string `json:"id"`
	ABI ABI    `json:"abi"`
}

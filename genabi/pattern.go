package genabi

import (
	"fmt"
	"strings"

	"github.com/indexsupply/hookgen/hookabi"
)

// Returns the right hand side of a C initializer
// for f's pattern.
//
// Numbers are copied as is. Fixed size binary types
// become string literals. VarString patterns are
// decoded into a byte array literal according to the
// field's encoding: "BEEF" is { 0xBEU, 0xEFU } as hex
// and { 'B', 'E', 'E', 'F' } as ascii.
func InitValue(f hookabi.Field) (string, error) {
	if !f.HasPattern() {
		return "", fmt.Errorf("%w for field: %s", ErrMissingPattern, f.Name())
	}
	switch f.Type {
	case hookabi.UInt8, hookabi.UInt16, hookabi.UInt32, hookabi.UInt64:
		return f.Pattern, nil
	case hookabi.AccountID, hookabi.Hash128, hookabi.Hash160, hookabi.Hash256:
		return `"` + f.Pattern + `"`, nil
	case hookabi.Amount:
		return "", fmt.Errorf("%w: %s", ErrUnimplemented, f.Pattern)
	case hookabi.VarString:
		switch enc := f.Encoding(); enc {
		case hookabi.Hex:
			return hexBytes(f.Pattern)
		case hookabi.ASCII:
			return asciiBytes(f.Pattern)
		default:
			return "", fmt.Errorf("%w: %s", ErrUnsupportedEncoding, enc)
		}
	case hookabi.Null:
		return "", fmt.Errorf("%w: %s", ErrPatternNotAllowed, f.Name())
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, f.Name())
	}
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') ||
		('a' <= c && c <= 'f') ||
		('A' <= c && c <= 'F')
}

func hexBytes(p string) (string, error) {
	if len(p)%2 != 0 {
		return "", fmt.Errorf("%w: odd length hex %q", ErrMalformedPattern, p)
	}
	items := make([]string, 0, len(p)/2)
	for i := 0; i < len(p); i += 2 {
		if !isHex(p[i]) || !isHex(p[i+1]) {
			return "", fmt.Errorf("%w: non-hex pair %q at %d", ErrMalformedPattern, p[i:i+2], i)
		}
		items = append(items, "0x"+strings.ToUpper(p[i:i+2])+"U")
	}
	return "{ " + strings.Join(items, ", ") + " }", nil
}

func asciiBytes(p string) (string, error) {
	items := make([]string, 0, len(p))
	for i, r := range p {
		switch {
		case r == '\'' || r == '\\':
			items = append(items, `'\`+string(r)+`'`)
		case r < 0x20 || r > 0x7e:
			return "", fmt.Errorf("%w: non-printable ascii %q at %d", ErrMalformedPattern, r, i)
		default:
			items = append(items, "'"+string(r)+"'")
		}
	}
	return "{ " + strings.Join(items, ", ") + " }", nil
}

package genabi

import (
	"fmt"

	"github.com/indexsupply/hookgen/hookabi"
)

const (
	placeholderLength = 256
	placeholderNote   = "Set 256 as a placeholder value. Should be set with byteLength in ABI"
)

// Returns the C declaration (type and name) for f.
// note is non-empty when the declaration needs a
// trailing comment, currently only for a VarString
// without a byteLength.
func CType(f hookabi.Field) (decl, note string, err error) {
	label := f.Name()
	switch f.Type {
	case hookabi.UInt8:
		return "uint8_t " + label, "", nil
	case hookabi.UInt16:
		return "uint16_t " + label, "", nil
	case hookabi.UInt32:
		return "uint32_t " + label, "", nil
	case hookabi.UInt64:
		return "uint64_t " + label, "", nil
	case hookabi.AccountID:
		return array(label, 20), "", nil
	case hookabi.Hash128:
		return array(label, 16), "", nil
	case hookabi.Hash160:
		return array(label, 20), "", nil
	case hookabi.Hash256:
		return array(label, 32), "", nil
	case hookabi.Amount:
		return array(label, 48), "", nil
	case hookabi.VarString:
		if f.ByteLength == nil || *f.ByteLength <= 0 {
			return array(label, placeholderLength), placeholderNote, nil
		}
		return array(label, *f.ByteLength), "", nil
	case hookabi.Null:
		if f.ByteLength == nil || *f.ByteLength < 0 {
			return "", "", fmt.Errorf("%w for Null field: %s", ErrMissingByteLength, label)
		}
		return array("_offset", *f.ByteLength), "", nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedType, label)
	}
}

func array(name string, n int) string {
	return fmt.Sprintf("uint8_t %s[%d]", name, n)
}

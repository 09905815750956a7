package genabi

import (
	"strings"

	"github.com/indexsupply/hookgen/hookabi"
)

// Emits a typedef with one member per field:
//
//	typedef struct FooKey {
//	  uint8_t field_0;
//	} FooKey;
func Define(name string, fields []hookabi.Field) (string, error) {
	lines := make([]string, len(fields))
	for i, f := range fields {
		decl, note, err := CType(f)
		if err != nil {
			return "", fieldErr(f, err)
		}
		lines[i] = "  " + decl + ";"
		if note != "" {
			lines[i] += " // " + note
		}
	}
	var s strings.Builder
	s.WriteString("typedef struct ")
	s.WriteString(name)
	s.WriteString(" {\n")
	s.WriteString(strings.Join(lines, "\n"))
	s.WriteString("\n} ")
	s.WriteString(name)
	s.WriteString(";")
	return s.String(), nil
}

// Emits a variable of type name:
//
//	FooKey fookey = {
//	  .field_0 = 1,
//	};
//
// Only fields with a pattern are listed. When onlyVar
// is set, or no field has a pattern, the variable is
// declared without an initializer. Patterns are encoded
// even when onlyVar is set so that an invalid pattern
// is always reported.
func Initialize(name string, fields []hookabi.Field, onlyVar bool) (string, error) {
	var members []string
	for _, f := range fields {
		if !f.HasPattern() {
			continue
		}
		v, err := InitValue(f)
		if err != nil {
			return "", fieldErr(f, err)
		}
		members = append(members, "  ."+f.Name()+" = "+v+",")
	}
	v := strings.ToLower(name)
	if onlyVar || len(members) == 0 {
		return name + " " + v + ";", nil
	}
	var s strings.Builder
	s.WriteString(name)
	s.WriteString(" ")
	s.WriteString(v)
	s.WriteString(" = {\n")
	s.WriteString(strings.Join(members, "\n"))
	s.WriteString("\n};")
	return s.String(), nil
}

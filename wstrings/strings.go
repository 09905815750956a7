package wstrings

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

// Safe reports an error unless s is usable as a
// file name component.
func Safe(s string) error {
	if s == "" {
		return errors.New("must not be empty")
	}
	for _, r := range s {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-') {
			return errors.New("must be 'a-z', 'A-Z', '0-9', '_', or '-'")
		}
	}
	return nil
}

// Upper cases the first rune of s
func Ucfirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 || r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

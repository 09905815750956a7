package isxerrors

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Wraps xerrors.Errorf but returns nil when none
// of args is a non-nil error. Useful for wrapping
// the result of a call without an if block:
//
//	return isxerrors.Errorf("executing template: %w", t.Execute(w, v))
func Errorf(format string, args ...any) error {
	for i := range args {
		if err, ok := args[i].(error); ok && err != nil {
			return xerrors.Errorf(format, args...)
		}
	}
	return nil
}

// Detail formats err along with the frames
// recorded by xerrors. Used for debug logging.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}

// test checks
package tc

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kr/pretty"
)

func NoErr(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		tb.Fatalf("expected no error. got: %s", err)
	}
}

// Fails unless errors.Is(err, target)
func WantErr(tb testing.TB, err, target error) {
	tb.Helper()
	if !errors.Is(err, target) {
		tb.Fatalf("want error: %v got: %v", target, err)
	}
}

// Fails unless err is non-nil and its message contains s
func ErrContains(tb testing.TB, err error, s string) {
	tb.Helper()
	if err == nil {
		tb.Fatalf("want error containing %q. got none", s)
	}
	if !strings.Contains(err.Error(), s) {
		tb.Fatalf("want error containing %q. got: %s", s, err)
	}
}

func WantGot(tb testing.TB, want, got any) {
	tb.Helper()
	if !reflect.DeepEqual(want, got) {
		tb.Error(pretty.Sprintf("want: %# v got: %# v", want, got))
	}
}

package wos

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

// If s has a $ prefix then the value is read from
// the upper cased env variable of the same name.
// A missing variable is an error.
//
// if there is no $ prefix then s is returned
func Getenv(s string) (string, error) {
	if !strings.HasPrefix(s, "$") {
		return s, nil
	}
	name := strings.ToUpper(strings.TrimPrefix(s, "$"))
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("expected %s to be set", name)
	}
	return v, nil
}

// A config string that may refer to an env variable
// with a $ prefix. See [Getenv].
type EnvString string

func (es *EnvString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("env string must be a string: %w", err)
	}
	v, err := Getenv(s)
	if err != nil {
		return err
	}
	*es = EnvString(v)
	return nil
}

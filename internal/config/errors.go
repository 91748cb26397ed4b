package config

import "fmt"

// InvalidFieldError reports a configuration field that failed to parse or
// fell outside its accepted set of values.
type InvalidFieldError struct {
	Field string
	Value string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("config: invalid value %q for %s", e.Value, e.Field)
}

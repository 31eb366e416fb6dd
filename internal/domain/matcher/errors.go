package matcher

import "fmt"

// ConfigurationError reports an invalid Settings value. The engine is not
// constructed and no run executes.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Field, e.Reason)
}

func configError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}

// CapacityError reports input or search that exceeded a configured bound.
// Runs that hit one still return a result, flagged as truncated.
type CapacityError struct {
	Limit  string `json:"limit"`
	Detail string `json:"detail"`
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity limit %s reached: %s", e.Limit, e.Detail)
}

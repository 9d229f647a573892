package survey

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

var (
	// ErrUnknownVariant is returned when a record names a variant that is not registered.
	ErrUnknownVariant = errors.New("unknown survey variant")
)

// Rule names the completeness rule a record violated.
type Rule string

const (
	RuleRequired     Rule = "required"
	RuleAllowedValue Rule = "allowed_value"
	RuleDuplicate    Rule = "duplicate_value"
	RuleMinWords     Rule = "min_words"
	RuleUnknownStaff Rule = "unknown_staff"
	RuleMediaCount   Rule = "media_count"
	RuleMediaType    Rule = "media_type"
)

// ValidationError describes one unmet completeness rule. It is user-fixable and
// is always reported before any side effect has happened.
type ValidationError struct {
	Field   string `json:"field"`
	Rule    Rule   `json:"rule"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func violation(field string, rule Rule, format string, args ...any) error {
	return &ValidationError{Field: field, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// Violations flattens a validation error, possibly wrapped, into its individual rule
// violations.
func Violations(err error) []*ValidationError {
	errs := multierr.Errors(err)
	var group interface{ Unwrap() []error }
	if len(errs) == 1 && errors.As(err, &group) {
		errs = group.Unwrap()
	}

	var out []*ValidationError
	for _, e := range errs {
		var ve *ValidationError
		if errors.As(e, &ve) {
			out = append(out, ve)
		}
	}
	return out
}

// FirstViolation returns the first unmet rule, or nil when err carries none.
func FirstViolation(err error) *ValidationError {
	if vs := Violations(err); len(vs) > 0 {
		return vs[0]
	}
	return nil
}

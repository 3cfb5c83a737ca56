package domain

import "fmt"

// MalformedRuleError reports a rules-source row that cannot be turned into a Rule.
type MalformedRuleError struct {
	Line   int
	Field  string
	Reason string
	Err    error
}

func (e *MalformedRuleError) Error() string {
	msg := fmt.Sprintf("rules line %d", e.Line)
	if e.Field != "" {
		msg += ": " + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedRuleError) Unwrap() error { return e.Err }

// InvalidDateError reports an observation date that does not match ObservationDateLayout.
type InvalidDateError struct {
	Value string
	Err   error
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid observation date %q: %v", e.Value, e.Err)
}

func (e *InvalidDateError) Unwrap() error { return e.Err }

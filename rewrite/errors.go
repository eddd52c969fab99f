package rewrite

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPattern     = errors.New("empty regex")
	ErrEmptyReplacement = errors.New("empty replace value")
)

// ConfigurationError is fatal and only returned while building an engine.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err == nil {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Reason, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// RuleApplicationError reports one pattern rule that could not be applied to one body.
// The pass that produced it goes on with the next rule.
type RuleApplicationError struct {
	Rule     *Rule
	ClientIP string
	Hostname string
	Err      error
}

func (e *RuleApplicationError) Error() string {
	return fmt.Sprintf("%s [%s] regex (%s) or replace value (%s) is empty or invalid: %v",
		e.ClientIP, e.Hostname, e.Rule.Pattern, e.Rule.Replacement, e.Err)
}

func (e *RuleApplicationError) Unwrap() error {
	return e.Err
}

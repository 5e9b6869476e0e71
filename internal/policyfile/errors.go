package policyfile

import (
	"fmt"
	"strings"
)

// ParseError reports a lexical or structural problem in a policy file.
type ParseError struct {
	Detail string
}

func (e *ParseError) Error() string { return "policy file: " + e.Detail }

func newParseErr(format string, args ...any) *ParseError {
	return &ParseError{Detail: fmt.Sprintf(format, args...)}
}

// ValidationErrors collects every structural problem found while
// interpreting a parsed document against the plugins/patch/analyze
// grammar, mirroring pkg/config/validator's "collect everything, don't
// fail on the first problem" style.
type ValidationErrors struct {
	Problems []error
}

func (e *ValidationErrors) Error() string {
	msgs := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		msgs[i] = p.Error()
	}
	return fmt.Sprintf("policy file validation failed (%d problem(s)): %s", len(e.Problems), strings.Join(msgs, "; "))
}

func (e *ValidationErrors) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Errorf(format, args...))
}

func (e *ValidationErrors) errOrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

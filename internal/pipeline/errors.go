package pipeline

import (
	"fmt"
	"strings"
)

// Violation is one failed validation rule for one item or field.
type Violation struct {
	SourceURL string
	Field     string
	Rule      string
}

func (v Violation) String() string {
	if v.SourceURL == "" {
		return fmt.Sprintf("%s: %s", v.Field, v.Rule)
	}
	return fmt.Sprintf("%s: %s: %s", v.SourceURL, v.Field, v.Rule)
}

// SchemaValidationError aggregates every violation found across all items.
// Validation never stops at the first failure.
type SchemaValidationError struct {
	Violations []Violation
}

func (e *SchemaValidationError) Error() string {
	lines := make([]string, 0, len(e.Violations)+1)
	lines = append(lines, fmt.Sprintf("metadata failed validation (%d violations):", len(e.Violations)))
	for _, v := range e.Violations {
		lines = append(lines, "  - "+v.String())
	}
	return strings.Join(lines, "\n")
}

// SentinelModelError is raised when the model explicitly reports it cannot
// satisfy a mandatory field. The draft needs a human edit before rerunning.
type SentinelModelError struct {
	Message string
}

func (e *SentinelModelError) Error() string {
	return fmt.Sprintf("model could not extract required metadata: %s", e.Message)
}

// ParseError is raised when a model response lacks the expected fenced
// block, or the block does not decode into the expected shape.
type ParseError struct {
	Want   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("response contains no %s block", e.Want)
	}
	return fmt.Sprintf("response %s block invalid: %s", e.Want, e.Reason)
}

// WriteConflict means the target content file already exists. It is the one
// recoverable failure: resolved by explicit overwrite confirmation.
type WriteConflict struct {
	Path string
}

func (e *WriteConflict) Error() string {
	return fmt.Sprintf("content file already exists: %s", e.Path)
}

package performance

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrPermissionDenied = errors.New("only Admin or Manager can submit evaluations")

// ValidationError maps input field names to the problems found with them.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = map[string][]string{}
	}
	v.Fields[field] = append(v.Fields[field], message)
}

func (v *ValidationError) Empty() bool { return v == nil || len(v.Fields) == 0 }

// Err returns v when it holds at least one field, nil otherwise.
func (v *ValidationError) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], "; "))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

type DuplicateEvaluationError struct {
	EmpID          string
	Week           int
	Year           int
	EvaluationType string
}

func (e *DuplicateEvaluationError) Error() string {
	return fmt.Sprintf("Evaluation already exists for %s (Week %d, %d, %s).", e.EmpID, e.Week, e.Year, e.EvaluationType)
}

// NotFoundError reports a reference that did not resolve. Field is the input
// key that carried the identifier.
type NotFoundError struct {
	Field   string
	Value   string
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s '%s' not found.", e.Field, e.Value)
}

// RankingError wraps a failed rank recompute. Callers log and drop it.
type RankingError struct {
	Group Group
	Err   error
}

func (e *RankingError) Error() string {
	return fmt.Sprintf("rank group %d-W%02d %s: %v", e.Group.Year, e.Group.Week, e.Group.EvaluationType, e.Err)
}

func (e *RankingError) Unwrap() error { return e.Err }

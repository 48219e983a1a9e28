package performance

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	EvaluationTypeManager = "Manager"
	EvaluationTypeSelf    = "Self"
	EvaluationTypePeer    = "Peer"
	EvaluationTypeHR      = "HR"
)

var EvaluationTypes = []string{EvaluationTypeManager, EvaluationTypeSelf, EvaluationTypePeer, EvaluationTypeHR}

func NormalizeEvaluationType(value string) (string, bool) {
	for _, t := range EvaluationTypes {
		if strings.EqualFold(t, strings.TrimSpace(value)) {
			return t, true
		}
	}
	return "", false
}

const (
	msgMetricInteger = "Metric must be an integer between 0-100."
	msgMetricRange   = "Metric must be between 0-100."
)

// MetricPatch records which metrics and comments an input touched.
type MetricPatch struct {
	ScoreSet   [MetricCount]bool
	Scores     Scores
	CommentSet [MetricCount]bool
	Comments   Comments
}

func (p *MetricPatch) setScore(m Metric, v *int) {
	p.ScoreSet[m] = true
	p.Scores[m] = v
}

func (p *MetricPatch) setComment(m Metric, v string) {
	p.CommentSet[m] = true
	p.Comments[m] = v
}

// Apply overlays the patch onto existing scores and comments.
func (p MetricPatch) Apply(scores Scores, comments Comments) (Scores, Comments) {
	for m := range MetricCount {
		if p.ScoreSet[m] {
			scores[m] = p.Scores[m]
		}
		if p.CommentSet[m] {
			comments[m] = p.Comments[m]
		}
	}
	return scores, comments
}

// OptionalDate distinguishes an absent review_date from an explicit null.
type OptionalDate struct {
	Set   bool
	Value *time.Time
}

// Input is a parsed evaluation payload. Pointer fields are nil when the key
// was absent.
type Input struct {
	EmployeeEmpID    *string
	EmployeeField    string
	EvaluatorEmpID   *string
	DepartmentCode   *string
	EvaluationType   *string
	ReviewDate       OptionalDate
	EvaluationPeriod *string
	Week             *int
	Year             *int
	Remarks          *string
	Metrics          MetricPatch
}

// readOnlyKeys appear in evaluation responses. They are accepted and ignored
// so a fetched evaluation can be sent back as an update.
var readOnlyKeys = map[string]bool{
	"id": true, "total_score": true, "average_score": true, "rank": true,
	"score_display": true, "score_category": true, "employee_name": true,
	"department_name": true, "evaluator_name": true, "manager_name": true,
	"created_at": true, "updated_at": true,
}

// ParseInput decodes a JSON evaluation payload. Flat metric and comment keys
// are applied first and the nested "metrics" object second, so nested values
// win when both carry the same key. Unknown keys are rejected.
func ParseInput(body []byte) (*Input, error) {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, NewValidationError("non_field_errors", "Request body must be a JSON object.")
	}

	in := &Input{}
	verr := &ValidationError{}

	var nested map[string]json.RawMessage
	employees := map[string]string{}
	weeks := map[string]*int{}
	for key, value := range raw {
		switch key {
		case "employee", "employee_emp_id":
			if s, ok := parseString(value, key, verr); ok && s != nil && strings.TrimSpace(*s) != "" {
				employees[key] = strings.TrimSpace(*s)
			}
		case "evaluator_emp_id":
			if s, ok := parseString(value, key, verr); ok && s != nil && strings.TrimSpace(*s) != "" {
				trimmed := strings.TrimSpace(*s)
				in.EvaluatorEmpID = &trimmed
			}
		case "department_code":
			if s, ok := parseString(value, key, verr); ok && s != nil && strings.TrimSpace(*s) != "" {
				trimmed := strings.TrimSpace(*s)
				in.DepartmentCode = &trimmed
			}
		case "evaluation_type":
			s, ok := parseString(value, key, verr)
			if !ok || s == nil {
				continue
			}
			t, valid := NormalizeEvaluationType(*s)
			if !valid {
				verr.Add(key, "Must be one of: "+strings.Join(EvaluationTypes, ", ")+".")
				continue
			}
			in.EvaluationType = &t
		case "review_date":
			s, ok := parseString(value, key, verr)
			if !ok {
				continue
			}
			in.ReviewDate.Set = true
			if s == nil || strings.TrimSpace(*s) == "" {
				continue
			}
			d, valid := ParseReviewDate(*s)
			if !valid {
				verr.Add(key, "Date has wrong format. Use YYYY-MM-DD.")
				continue
			}
			in.ReviewDate.Value = &d
		case "evaluation_period":
			if s, ok := parseString(value, key, verr); ok && s != nil {
				in.EvaluationPeriod = s
			}
		case "remarks":
			if s, ok := parseString(value, key, verr); ok && s != nil {
				in.Remarks = s
			}
		case "week", "week_number":
			if v, ok := parseInteger(value); !ok {
				verr.Add("week", "Valid week and year are required.")
			} else if v != nil {
				weeks[key] = v
			}
		case "year":
			if v, ok := parseInteger(value); !ok {
				verr.Add("year", "Valid week and year are required.")
			} else if v != nil {
				in.Year = v
			}
		case "metrics":
			if isNull(value) {
				continue
			}
			if err := json.Unmarshal(value, &nested); err != nil {
				verr.Add(key, "Must be an object of metric scores and comments.")
			}
		default:
			if readOnlyKeys[key] {
				continue
			}
			if !applyMetricKey(&in.Metrics, key, value, verr) {
				verr.Add(key, "Unknown field.")
			}
		}
	}

	// "employee" and "week_number" win over their aliases.
	for _, key := range []string{"employee_emp_id", "employee"} {
		if v, ok := employees[key]; ok {
			in.EmployeeEmpID = &v
			in.EmployeeField = key
		}
	}
	for _, key := range []string{"week", "week_number"} {
		if v, ok := weeks[key]; ok {
			in.Week = v
		}
	}

	for key, value := range nested {
		if !applyMetricKey(&in.Metrics, key, value, verr) {
			verr.Add("metrics."+key, "Unknown metric.")
		}
	}

	if err := verr.Err(); err != nil {
		return nil, err
	}
	return in, nil
}

// applyMetricKey handles a metric or comment key, reporting false when key is
// neither.
func applyMetricKey(p *MetricPatch, key string, value json.RawMessage, verr *ValidationError) bool {
	if m, ok := LookupMetric(key); ok {
		if isNull(value) {
			p.setScore(m, nil)
			return true
		}
		v, ok := parseInteger(value)
		switch {
		case !ok || v == nil:
			verr.Add(key, msgMetricInteger)
		case *v < MinMetricValue || *v > MaxMetricValue:
			verr.Add(key, msgMetricRange)
		default:
			p.setScore(m, v)
		}
		return true
	}
	if m, ok := LookupComment(key); ok {
		if s, ok := parseString(value, key, verr); ok {
			if s == nil {
				p.setComment(m, "")
			} else {
				p.setComment(m, *s)
			}
		}
		return true
	}
	return false
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// parseString returns nil for JSON null and records an error for non-strings.
func parseString(value json.RawMessage, key string, verr *ValidationError) (*string, bool) {
	if isNull(value) {
		return nil, true
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		verr.Add(key, "Must be a string.")
		return nil, false
	}
	return &s, true
}

// parseInteger accepts JSON numbers and numeric strings holding a whole
// number. It returns (nil, true) for null. Whole numbers too large for an int32
// are clamped so callers report them as out of range rather than malformed.
func parseInteger(value json.RawMessage) (*int, bool) {
	if isNull(value) {
		return nil, true
	}
	text := string(bytes.TrimSpace(value))
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(value, &text); err != nil {
			return nil, false
		}
		text = strings.TrimSpace(text)
	}
	if n, err := strconv.Atoi(text); err == nil {
		return &n, true
	}
	f, err := strconv.ParseFloat(text, 64)
	switch {
	case err != nil:
		// Only an overflowing literal such as 1e400 gets through, as ±Inf.
		if !errors.Is(err, strconv.ErrRange) || !math.IsInf(f, 0) {
			return nil, false
		}
	case math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f):
		return nil, false
	}
	n := int(math.Max(math.MinInt32, math.Min(math.MaxInt32, f)))
	return &n, true
}

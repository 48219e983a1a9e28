package shared

import (
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"epts/internal/transport/http/api"
)

// Validator collects field-keyed messages for query and payload checks done in
// handlers.
type Validator struct {
	fields map[string][]string
}

func NewValidator() *Validator {
	return &Validator{fields: map[string][]string{}}
}

func (v *Validator) Add(field, reason string) {
	if v == nil {
		return
	}
	field = strings.TrimSpace(field)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return
	}
	v.fields[field] = append(v.fields[field], reason)
}

func (v *Validator) Required(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
	}
}

// Int parses an optional integer query value. Empty input yields nil.
func (v *Validator) Int(field, raw string, minValue, maxValue int) *int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		v.Add(field, "must be an integer")
		return nil
	}
	if parsed < minValue || parsed > maxValue {
		v.Add(field, "must be between "+strconv.Itoa(minValue)+" and "+strconv.Itoa(maxValue))
		return nil
	}
	return &parsed
}

func (v *Validator) HasIssues() bool {
	return v != nil && len(v.fields) > 0
}

func (v *Validator) Fields() map[string][]string {
	if v == nil {
		return nil
	}
	out := make(map[string][]string, len(v.fields))
	for field, reasons := range v.fields {
		sorted := append([]string(nil), reasons...)
		sort.Strings(sorted)
		out[field] = sorted
	}
	return out
}

func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	FailValidation(w, requestID, v.Fields())
	return true
}

func FailValidation(w http.ResponseWriter, requestID string, fields map[string][]string) {
	api.FailFields(w, http.StatusBadRequest, "validation_error", "payload validation failed", fields, requestID)
}

// ValidatorFields converts validator/v10 errors into field-keyed messages,
// naming fields by their json tag.
func ValidatorFields(err error, payload any) map[string][]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	names := jsonNames(payload)
	out := map[string][]string{}
	for _, fe := range verrs {
		name := names[fe.StructField()]
		if name == "" {
			name = strings.ToLower(fe.Field())
		}
		out[name] = append(out[name], tagMessage(fe))
	}
	return out
}

func jsonNames(payload any) map[string]string {
	t := reflect.TypeOf(payload)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := map[string]string{}
	if t == nil || t.Kind() != reflect.Struct {
		return names
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if tag != "" && tag != "-" {
			names[field.Name] = tag
		}
	}
	return names
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return "Ensure this field has no more than " + fe.Param() + " characters."
	case "min":
		return "Ensure this field has at least " + fe.Param() + " characters."
	case "email":
		return "Enter a valid email address."
	case "alphanum":
		return "Only letters and digits are allowed."
	case "oneof":
		return "Must be one of: " + fe.Param() + "."
	}
	return "Invalid value."
}

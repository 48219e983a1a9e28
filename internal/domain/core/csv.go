package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"epts/internal/domain/auth"
)

var ErrCSVHeader = errors.New("csv header is missing required columns")

var requiredColumns = []string{"emp_id", "first_name", "last_name", "email", "role", "password"}

type ImportRow struct {
	Line           int
	EmpID          string `validate:"required,max=20"`
	FirstName      string `validate:"required,max=100"`
	LastName       string `validate:"required,max=100"`
	Email          string `validate:"required,email"`
	Role           string `validate:"required,oneof=Admin Manager Employee"`
	DepartmentCode string `validate:"omitempty,max=20"`
	ManagerEmpID   string `validate:"omitempty,max=20"`
	Designation    string `validate:"omitempty,max=100"`
	ContactNumber  string `validate:"omitempty,max=15"`
	JoiningDate    string `validate:"omitempty,datetime=2006-01-02"`
	Password       string `validate:"required,min=8"`
}

type RowError struct {
	Row    int               `json:"row"`
	EmpID  string            `json:"emp_id,omitempty"`
	Errors map[string]string `json:"errors"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Errors)
}

type ImportResult struct {
	SuccessCount int        `json:"success_count"`
	Errors       []RowError `json:"errors"`
}

var importValidator = validator.New()

// ParseImport reads the upload, returning rows that passed field validation and
// row errors for those that did not. Line numbers count the header as line 1.
func ParseImport(r io.Reader) ([]ImportRow, []RowError, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, ErrCSVHeader
	}
	index := map[string]int{}
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrCSVHeader, col)
		}
	}

	var rows []ImportRow
	var rowErrors []RowError
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, RowError{Row: line, Errors: map[string]string{"row": err.Error()}})
			continue
		}
		get := func(col string) string {
			i, ok := index[col]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		row := ImportRow{
			Line:           line,
			EmpID:          get("emp_id"),
			FirstName:      get("first_name"),
			LastName:       get("last_name"),
			Email:          strings.ToLower(get("email")),
			Role:           normalizeRole(get("role")),
			DepartmentCode: get("department_code"),
			ManagerEmpID:   get("manager_emp_id"),
			Designation:    get("designation"),
			ContactNumber:  get("contact_number"),
			JoiningDate:    get("joining_date"),
			Password:       get("password"),
		}
		if fieldErrs := validateImportRow(row); len(fieldErrs) > 0 {
			rowErrors = append(rowErrors, RowError{Row: line, EmpID: row.EmpID, Errors: fieldErrs})
			continue
		}
		rows = append(rows, row)
	}
	return rows, rowErrors, nil
}

func normalizeRole(role string) string {
	if canonical, ok := auth.NormalizeRole(role); ok {
		return canonical
	}
	return role
}

func validateImportRow(row ImportRow) map[string]string {
	err := importValidator.Struct(row)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"row": err.Error()}
	}
	out := map[string]string{}
	for _, fe := range verrs {
		out[columnName(fe.StructField())] = fe.Tag()
	}
	return out
}

func columnName(field string) string {
	switch field {
	case "EmpID":
		return "emp_id"
	case "ManagerEmpID":
		return "manager_emp_id"
	}
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

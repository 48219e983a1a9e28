package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseImportAcceptsValidRows(t *testing.T) {
	input := "emp_id,first_name,last_name,email,role,department_code,manager_emp_id,designation,joining_date,password\n" +
		"EMP010,Asha,Rao,Asha@Example.com,employee,ENG,EMP001,Engineer,2024-01-15,password123\n"

	rows, rowErrors, err := ParseImport(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(rowErrors) != 0 {
		t.Fatalf("unexpected row errors: %+v", rowErrors)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.Line != 2 || row.Role != "Employee" || row.Email != "asha@example.com" || row.ManagerEmpID != "EMP001" {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestParseImportReportsInvalidRows(t *testing.T) {
	input := "emp_id,first_name,last_name,email,role,password\n" +
		"EMP011,Ben,Ode,not-an-email,Employee,password123\n" +
		"EMP012,Cara,Lim,cara@example.com,Director,password123\n" +
		"EMP013,Dev,Sen,dev@example.com,Manager,short\n" +
		"EMP014,Eli,Moe,eli@example.com,Manager,password123\n"

	rows, rowErrors, err := ParseImport(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(rows) != 1 || rows[0].EmpID != "EMP014" {
		t.Fatalf("expected only EMP014 to pass, got %+v", rows)
	}
	if len(rowErrors) != 3 {
		t.Fatalf("expected 3 row errors, got %+v", rowErrors)
	}
	if _, ok := rowErrors[0].Errors["email"]; !ok || rowErrors[0].Row != 2 {
		t.Fatalf("expected email error on row 2, got %+v", rowErrors[0])
	}
	if _, ok := rowErrors[1].Errors["role"]; !ok {
		t.Fatalf("expected role error, got %+v", rowErrors[1])
	}
	if _, ok := rowErrors[2].Errors["password"]; !ok {
		t.Fatalf("expected password error, got %+v", rowErrors[2])
	}
}

func TestParseImportRequiresHeaderColumns(t *testing.T) {
	_, _, err := ParseImport(strings.NewReader("emp_id,first_name\nEMP1,A\n"))
	if !errors.Is(err, ErrCSVHeader) {
		t.Fatalf("expected header error, got %v", err)
	}
	_, _, err = ParseImport(strings.NewReader(""))
	if !errors.Is(err, ErrCSVHeader) {
		t.Fatalf("expected header error for empty input, got %v", err)
	}
}

func TestColumnName(t *testing.T) {
	cases := map[string]string{
		"EmpID":          "emp_id",
		"FirstName":      "first_name",
		"DepartmentCode": "department_code",
		"ManagerEmpID":   "manager_emp_id",
		"Email":          "email",
	}
	for field, want := range cases {
		if got := columnName(field); got != want {
			t.Fatalf("columnName(%q) = %q, want %q", field, got, want)
		}
	}
}

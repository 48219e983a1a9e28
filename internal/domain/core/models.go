package core

import (
	"strings"
	"time"
)

const (
	EmployeeStatusActive   = "Active"
	EmployeeStatusInactive = "Inactive"
)

type Employee struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	EmpID          string     `json:"emp_id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email,omitempty"`
	Role           string     `json:"role"`
	DepartmentID   string     `json:"department_id,omitempty"`
	DepartmentCode string     `json:"department_code,omitempty"`
	DepartmentName string     `json:"department_name,omitempty"`
	ManagerID      string     `json:"manager_id,omitempty"`
	ManagerEmpID   string     `json:"manager_emp_id,omitempty"`
	ManagerName    string     `json:"manager_name"`
	Designation    string     `json:"designation"`
	ContactNumber  string     `json:"contact_number,omitempty"`
	JoiningDate    *time.Time `json:"joining_date,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

type Department struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type EmployeeFilter struct {
	// ManagerEmployeeID restricts results to direct reports of that employee row.
	ManagerEmployeeID string
	// SelfUserID restricts results to the employee owned by that user.
	SelfUserID   string
	Department   string
	ManagerEmpID string
	Role         string
	Status       string
	Search       string
}

type Manager struct {
	EmpID    string `json:"emp_id"`
	FullName string `json:"full_name"`
}

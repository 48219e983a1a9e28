package auth

import (
	"context"
	"slices"
	"strings"
)

const (
	RoleAdmin    = "Admin"
	RoleManager  = "Manager"
	RoleEmployee = "Employee"
)

var Roles = []string{RoleAdmin, RoleManager, RoleEmployee}

const (
	PermEmployeesRead    = "employees.read"
	PermEmployeesWrite   = "employees.write"
	PermOrgRead          = "org.read"
	PermOrgWrite         = "org.write"
	PermPerformanceRead  = "performance.read"
	PermPerformanceWrite = "performance.write"
	PermReportsRead      = "reports.read"
	PermAuditRead        = "audit.read"
)

// DefaultPermissions is every permission the API checks. Admins hold all of them.
var DefaultPermissions = []string{
	PermEmployeesRead,
	PermEmployeesWrite,
	PermOrgRead,
	PermOrgWrite,
	PermPerformanceRead,
	PermPerformanceWrite,
	PermReportsRead,
	PermAuditRead,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermEmployeesRead,
		PermOrgRead,
		PermPerformanceRead,
	},
	RoleManager: {
		PermEmployeesRead,
		PermOrgRead,
		PermPerformanceRead,
		PermPerformanceWrite,
		PermReportsRead,
	},
	RoleAdmin: slices.Clone(DefaultPermissions),
}

// UserContext is the authenticated caller, threaded explicitly into domain calls.
type UserContext struct {
	UserID   string
	EmpID    string
	RoleName string
}

func (u UserContext) IsAdmin() bool   { return u.RoleName == RoleAdmin }
func (u UserContext) IsManager() bool { return u.RoleName == RoleManager }

// CanEvaluate reports whether the role may create or update evaluations.
func CanEvaluate(role string) bool {
	return role == RoleAdmin || role == RoleManager
}

func ValidRole(role string) bool {
	return slices.Contains(Roles, role)
}

// NormalizeRole maps case variants ("admin", "MANAGER") onto the canonical role name.
func NormalizeRole(role string) (string, bool) {
	for _, candidate := range Roles {
		if strings.EqualFold(candidate, strings.TrimSpace(role)) {
			return candidate, true
		}
	}
	return "", false
}

// StaticPermissions resolves permissions from RolePermissions. Roles are fixed,
// so there is no role_permissions table to consult.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, role, permission string) (bool, error) {
	return slices.Contains(RolePermissions[role], permission), nil
}

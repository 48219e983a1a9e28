package core

import "epts/internal/domain/auth"

// FilterEmployeeFields strips contact details the caller is not entitled to see.
func FilterEmployeeFields(emp *Employee, user auth.UserContext) {
	if user.IsAdmin() || emp.UserID == user.UserID {
		return
	}
	if user.IsManager() && emp.ManagerEmpID != "" && emp.ManagerEmpID == user.EmpID {
		return
	}
	emp.Email = ""
	emp.ContactNumber = ""
}

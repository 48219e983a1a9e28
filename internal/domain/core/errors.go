package core

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrConflict               = errors.New("already exists")
	ErrDepartmentHasEmployees = errors.New("department has active employees")
)

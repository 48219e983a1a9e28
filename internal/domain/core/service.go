package core

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"

	"epts/internal/domain/auth"
)

// EmployeeStore is the persistence surface the service depends on.
type EmployeeStore interface {
	GetEmployeeByEmpID(ctx context.Context, empID string) (*Employee, error)
	GetEmployeeByUserID(ctx context.Context, userID string) (*Employee, error)
	CountEmployees(ctx context.Context, filter EmployeeFilter) (int, error)
	ListEmployees(ctx context.Context, filter EmployeeFilter, limit, offset int) ([]Employee, error)
	ListManagers(ctx context.Context) ([]Manager, error)
	ListDepartments(ctx context.Context, includeInactive bool) ([]Department, error)
	GetDepartmentByCode(ctx context.Context, code string) (*Department, error)
	CreateDepartment(ctx context.Context, dep Department) (string, error)
	DepartmentHasActiveEmployees(ctx context.Context, departmentID string) (bool, error)
	DepartmentHasReferences(ctx context.Context, departmentID string) (bool, error)
	DeactivateDepartment(ctx context.Context, departmentID string) error
	DeleteDepartment(ctx context.Context, departmentID string) error
	ImportEmployees(ctx context.Context, rows []ImportRow, hash func(string) (string, error)) (ImportResult, error)
}

type Service struct {
	store    EmployeeStore
	validate *validator.Validate
}

func NewService(store EmployeeStore) *Service {
	return &Service{store: store, validate: validator.New()}
}

type DepartmentInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Code        string `json:"code" validate:"required,max=20,alphanum"`
	Description string `json:"description" validate:"max=1000"`
}

// ListEmployees scopes the filter to what the caller may see: admins see
// everyone, managers their direct reports, employees only themselves.
func (s *Service) ListEmployees(ctx context.Context, user auth.UserContext, filter EmployeeFilter, limit, offset int) ([]Employee, int, error) {
	switch {
	case user.IsAdmin():
	case user.IsManager():
		self, err := s.store.GetEmployeeByUserID(ctx, user.UserID)
		if err != nil {
			return nil, 0, err
		}
		filter.ManagerEmployeeID = self.ID
	default:
		filter.SelfUserID = user.UserID
	}

	total, err := s.store.CountEmployees(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.ListEmployees(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		FilterEmployeeFields(&items[i], user)
	}
	return items, total, nil
}

func (s *Service) GetEmployee(ctx context.Context, user auth.UserContext, empID string) (*Employee, error) {
	emp, err := s.store.GetEmployeeByEmpID(ctx, empID)
	if err != nil {
		return nil, err
	}
	if !canView(user, emp) {
		return nil, ErrForbidden
	}
	FilterEmployeeFields(emp, user)
	return emp, nil
}

func canView(user auth.UserContext, emp *Employee) bool {
	switch {
	case user.IsAdmin():
		return true
	case emp.UserID == user.UserID:
		return true
	case user.IsManager():
		return strings.EqualFold(emp.ManagerEmpID, user.EmpID)
	}
	return false
}

func (s *Service) ListManagers(ctx context.Context) ([]Manager, error) {
	return s.store.ListManagers(ctx)
}

// Profile returns the caller's employee record when their role matches the
// requested profile kind.
func (s *Service) Profile(ctx context.Context, user auth.UserContext, role string) (*Employee, error) {
	if !strings.EqualFold(user.RoleName, role) {
		return nil, ErrForbidden
	}
	return s.store.GetEmployeeByUserID(ctx, user.UserID)
}

// ListDepartments returns active departments. Only admins may ask for
// inactive ones as well.
func (s *Service) ListDepartments(ctx context.Context, user auth.UserContext, includeInactive bool) ([]Department, error) {
	return s.store.ListDepartments(ctx, includeInactive && user.IsAdmin())
}

func (s *Service) CreateDepartment(ctx context.Context, input DepartmentInput) (*Department, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	if err := s.validate.Struct(input); err != nil {
		return nil, err
	}
	dep := Department{Name: input.Name, Code: input.Code, Description: input.Description, IsActive: true}
	id, err := s.store.CreateDepartment(ctx, dep)
	if err != nil {
		return nil, err
	}
	dep.ID = id
	return &dep, nil
}

// DeactivateDepartment refuses while active employees remain unless force is
// set. A forced removal of an unreferenced department deletes it outright.
func (s *Service) DeactivateDepartment(ctx context.Context, code string, force bool) error {
	dep, err := s.store.GetDepartmentByCode(ctx, code)
	if err != nil {
		return err
	}
	hasEmployees, err := s.store.DepartmentHasActiveEmployees(ctx, dep.ID)
	if err != nil {
		return err
	}
	if hasEmployees && !force {
		return ErrDepartmentHasEmployees
	}
	if force {
		referenced, err := s.store.DepartmentHasReferences(ctx, dep.ID)
		if err != nil {
			return err
		}
		if !referenced {
			return s.store.DeleteDepartment(ctx, dep.ID)
		}
	}
	return s.store.DeactivateDepartment(ctx, dep.ID)
}

// ImportEmployees parses and stores a CSV upload. Rows failing validation are
// reported alongside rows rejected by the database.
func (s *Service) ImportEmployees(ctx context.Context, user auth.UserContext, r io.Reader) (ImportResult, error) {
	if !user.IsAdmin() {
		return ImportResult{}, ErrForbidden
	}
	rows, rowErrors, err := ParseImport(r)
	if err != nil {
		return ImportResult{}, err
	}
	result := ImportResult{Errors: make([]RowError, 0)}
	if len(rows) > 0 {
		result, err = s.store.ImportEmployees(ctx, rows, auth.HashPassword)
		if err != nil {
			return ImportResult{}, err
		}
	}
	result.Errors = append(rowErrors, result.Errors...)
	if result.Errors == nil {
		result.Errors = make([]RowError, 0)
	}
	return result, nil
}

// IsValidation reports whether err came from payload validation.
func IsValidation(err error) bool {
	var verrs validator.ValidationErrors
	return errors.As(err, &verrs)
}

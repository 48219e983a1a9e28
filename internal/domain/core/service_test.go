package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"epts/internal/domain/auth"
)

type fakeStore struct {
	employees     []Employee
	departments   map[string]*Department
	activeByDept  map[string]bool
	referenced    map[string]bool
	deactivated   []string
	deleted       []string
	lastFilter    EmployeeFilter
	importedRows  []ImportRow
	importResults ImportResult
}

func (f *fakeStore) GetEmployeeByEmpID(_ context.Context, empID string) (*Employee, error) {
	for _, emp := range f.employees {
		if strings.EqualFold(emp.EmpID, empID) {
			copied := emp
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) GetEmployeeByUserID(_ context.Context, userID string) (*Employee, error) {
	for _, emp := range f.employees {
		if emp.UserID == userID {
			copied := emp
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) CountEmployees(_ context.Context, filter EmployeeFilter) (int, error) {
	return len(f.match(filter)), nil
}

func (f *fakeStore) ListEmployees(_ context.Context, filter EmployeeFilter, limit, offset int) ([]Employee, error) {
	f.lastFilter = filter
	items := f.match(filter)
	if offset > len(items) {
		return []Employee{}, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], nil
}

func (f *fakeStore) match(filter EmployeeFilter) []Employee {
	var out []Employee
	for _, emp := range f.employees {
		if filter.ManagerEmployeeID != "" && emp.ManagerID != filter.ManagerEmployeeID {
			continue
		}
		if filter.SelfUserID != "" && emp.UserID != filter.SelfUserID {
			continue
		}
		out = append(out, emp)
	}
	return out
}

func (f *fakeStore) ListManagers(context.Context) ([]Manager, error) {
	return []Manager{{EmpID: "EMP001", FullName: "Maya Iyer"}}, nil
}

func (f *fakeStore) ListDepartments(_ context.Context, includeInactive bool) ([]Department, error) {
	var out []Department
	for _, dep := range f.departments {
		if dep.IsActive || includeInactive {
			out = append(out, *dep)
		}
	}
	return out, nil
}

func (f *fakeStore) GetDepartmentByCode(_ context.Context, code string) (*Department, error) {
	dep, ok := f.departments[strings.ToUpper(code)]
	if !ok {
		return nil, ErrNotFound
	}
	return dep, nil
}

func (f *fakeStore) CreateDepartment(_ context.Context, dep Department) (string, error) {
	if _, ok := f.departments[dep.Code]; ok {
		return "", ErrConflict
	}
	dep.ID = "dep-" + strings.ToLower(dep.Code)
	f.departments[dep.Code] = &dep
	return dep.ID, nil
}

func (f *fakeStore) DepartmentHasActiveEmployees(_ context.Context, id string) (bool, error) {
	return f.activeByDept[id], nil
}

func (f *fakeStore) DepartmentHasReferences(_ context.Context, id string) (bool, error) {
	return f.referenced[id], nil
}

func (f *fakeStore) DeactivateDepartment(_ context.Context, id string) error {
	f.deactivated = append(f.deactivated, id)
	return nil
}

func (f *fakeStore) DeleteDepartment(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) ImportEmployees(_ context.Context, rows []ImportRow, _ func(string) (string, error)) (ImportResult, error) {
	f.importedRows = rows
	return f.importResults, nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		employees: []Employee{
			{ID: "e1", UserID: "u1", EmpID: "EMP001", Role: auth.RoleManager, Email: "maya@example.com", ContactNumber: "555"},
			{ID: "e2", UserID: "u2", EmpID: "EMP002", Role: auth.RoleEmployee, ManagerID: "e1", ManagerEmpID: "EMP001", Email: "raj@example.com", ContactNumber: "556"},
			{ID: "e3", UserID: "u3", EmpID: "EMP003", Role: auth.RoleEmployee, Email: "zoe@example.com", ContactNumber: "557"},
		},
		departments: map[string]*Department{
			"ENG": {ID: "dep-eng", Code: "ENG", Name: "Engineering", IsActive: true},
		},
		activeByDept: map[string]bool{},
		referenced:   map[string]bool{},
	}
}

var (
	adminUser    = auth.UserContext{UserID: "u0", EmpID: "ADMIN", RoleName: auth.RoleAdmin}
	managerUser  = auth.UserContext{UserID: "u1", EmpID: "EMP001", RoleName: auth.RoleManager}
	employeeUser = auth.UserContext{UserID: "u3", EmpID: "EMP003", RoleName: auth.RoleEmployee}
)

func TestListEmployeesScopesByRole(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	ctx := context.Background()

	items, total, err := svc.ListEmployees(ctx, adminUser, EmployeeFilter{}, 10, 0)
	if err != nil || total != 3 || len(items) != 3 {
		t.Fatalf("admin list: total=%d items=%d err=%v", total, len(items), err)
	}

	items, total, err = svc.ListEmployees(ctx, managerUser, EmployeeFilter{}, 10, 0)
	if err != nil || total != 1 || items[0].EmpID != "EMP002" {
		t.Fatalf("manager list: total=%d items=%+v err=%v", total, items, err)
	}
	if items[0].Email == "" {
		t.Fatal("manager should see direct report contact details")
	}

	items, total, err = svc.ListEmployees(ctx, employeeUser, EmployeeFilter{}, 10, 0)
	if err != nil || total != 1 || items[0].EmpID != "EMP003" {
		t.Fatalf("employee list: total=%d items=%+v err=%v", total, items, err)
	}
	if store.lastFilter.SelfUserID != "u3" {
		t.Fatalf("expected self filter, got %+v", store.lastFilter)
	}
}

func TestGetEmployeeEnforcesVisibility(t *testing.T) {
	svc := NewService(newFakeStore())
	ctx := context.Background()

	if _, err := svc.GetEmployee(ctx, employeeUser, "EMP002"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := svc.GetEmployee(ctx, managerUser, "EMP003"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for non-report, got %v", err)
	}
	emp, err := svc.GetEmployee(ctx, managerUser, "emp002")
	if err != nil || emp.EmpID != "EMP002" {
		t.Fatalf("expected report visible, got %+v %v", emp, err)
	}
	if _, err := svc.GetEmployee(ctx, adminUser, "EMP999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFilterEmployeeFieldsHidesContactDetails(t *testing.T) {
	emp := Employee{UserID: "u3", EmpID: "EMP003", Email: "zoe@example.com", ContactNumber: "557"}
	FilterEmployeeFields(&emp, managerUser)
	if emp.Email != "" || emp.ContactNumber != "" {
		t.Fatalf("expected contact details hidden, got %+v", emp)
	}

	self := Employee{UserID: "u3", Email: "zoe@example.com"}
	FilterEmployeeFields(&self, employeeUser)
	if self.Email == "" {
		t.Fatal("expected self to keep email")
	}
}

func TestProfileRequiresMatchingRole(t *testing.T) {
	svc := NewService(newFakeStore())
	if _, err := svc.Profile(context.Background(), employeeUser, "manager"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	emp, err := svc.Profile(context.Background(), managerUser, "manager")
	if err != nil || emp.EmpID != "EMP001" {
		t.Fatalf("expected manager profile, got %+v %v", emp, err)
	}
}

func TestCreateDepartmentValidates(t *testing.T) {
	svc := NewService(newFakeStore())
	ctx := context.Background()

	if _, err := svc.CreateDepartment(ctx, DepartmentInput{Name: "", Code: "HR"}); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	dep, err := svc.CreateDepartment(ctx, DepartmentInput{Name: " Human Resources ", Code: "hr"})
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if dep.Code != "HR" || dep.Name != "Human Resources" || !dep.IsActive {
		t.Fatalf("unexpected department: %+v", dep)
	}
	if _, err := svc.CreateDepartment(ctx, DepartmentInput{Name: "Eng", Code: "ENG"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestDeactivateDepartment(t *testing.T) {
	store := newFakeStore()
	store.activeByDept["dep-eng"] = true
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.DeactivateDepartment(ctx, "ENG", false); !errors.Is(err, ErrDepartmentHasEmployees) {
		t.Fatalf("expected has-employees error, got %v", err)
	}

	store.referenced["dep-eng"] = true
	if err := svc.DeactivateDepartment(ctx, "eng", true); err != nil {
		t.Fatalf("force deactivate error: %v", err)
	}
	if len(store.deactivated) != 1 || len(store.deleted) != 0 {
		t.Fatalf("expected soft deactivation, got deactivated=%v deleted=%v", store.deactivated, store.deleted)
	}

	store.referenced["dep-eng"] = false
	if err := svc.DeactivateDepartment(ctx, "ENG", true); err != nil {
		t.Fatalf("force delete error: %v", err)
	}
	if len(store.deleted) != 1 {
		t.Fatalf("expected delete, got %v", store.deleted)
	}

	if err := svc.DeactivateDepartment(ctx, "OPS", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestImportEmployeesMergesRowErrors(t *testing.T) {
	store := newFakeStore()
	store.importResults = ImportResult{SuccessCount: 1, Errors: []RowError{{Row: 3, EmpID: "EMP021", Errors: map[string]string{"emp_id": "exists"}}}}
	svc := NewService(store)

	input := "emp_id,first_name,last_name,email,role,password\n" +
		"EMP020,Ann,Lee,bad,Employee,password123\n" +
		"EMP021,Bo,Kim,bo@example.com,Employee,password123\n" +
		"EMP022,Cy,Ng,cy@example.com,Employee,password123\n"

	if _, err := svc.ImportEmployees(context.Background(), managerUser, strings.NewReader(input)); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden for manager, got %v", err)
	}

	result, err := svc.ImportEmployees(context.Background(), adminUser, strings.NewReader(input))
	if err != nil {
		t.Fatalf("import error: %v", err)
	}
	if len(store.importedRows) != 2 {
		t.Fatalf("expected 2 rows passed to store, got %d", len(store.importedRows))
	}
	if result.SuccessCount != 1 || len(result.Errors) != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Errors[0].Row != 2 || result.Errors[1].Row != 3 {
		t.Fatalf("unexpected error order: %+v", result.Errors)
	}
}

func TestListDepartmentsInactiveOnlyForAdmins(t *testing.T) {
	store := newFakeStore()
	store.departments["OLD"] = &Department{ID: "dep-old", Code: "OLD", Name: "Legacy", IsActive: false}
	svc := NewService(store)
	ctx := context.Background()

	cases := []struct {
		user            auth.UserContext
		includeInactive bool
		want            int
	}{
		{adminUser, false, 1},
		{adminUser, true, 2},
		{managerUser, true, 1},
		{employeeUser, true, 1},
	}
	for _, tc := range cases {
		deps, err := svc.ListDepartments(ctx, tc.user, tc.includeInactive)
		if err != nil {
			t.Fatalf("list error: %v", err)
		}
		if len(deps) != tc.want {
			t.Fatalf("%s include=%v: expected %d departments, got %d", tc.user.RoleName, tc.includeInactive, tc.want, len(deps))
		}
	}
}

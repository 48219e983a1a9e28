package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"epts/internal/platform/db"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool}
}

const employeeSelect = `
    SELECT e.id, u.id, u.emp_id, u.first_name, u.last_name, u.email, u.role,
           COALESCE(d.id::text, ''), COALESCE(d.code, ''), COALESCE(d.name, ''),
           COALESCE(m.id::text, ''), COALESCE(mu.emp_id, ''),
           COALESCE(trim(mu.first_name || ' ' || mu.last_name), ''),
           e.designation, e.contact_number, e.joining_date, e.status, e.created_at, e.updated_at
    FROM employees e
    JOIN users u ON u.id = e.user_id
    LEFT JOIN departments d ON d.id = e.department_id
    LEFT JOIN employees m ON m.id = e.manager_id
    LEFT JOIN users mu ON mu.id = m.user_id
`

func scanEmployee(row pgx.Row) (*Employee, error) {
	var emp Employee
	err := row.Scan(
		&emp.ID, &emp.UserID, &emp.EmpID, &emp.FirstName, &emp.LastName, &emp.Email, &emp.Role,
		&emp.DepartmentID, &emp.DepartmentCode, &emp.DepartmentName,
		&emp.ManagerID, &emp.ManagerEmpID, &emp.ManagerName,
		&emp.Designation, &emp.ContactNumber, &emp.JoiningDate, &emp.Status, &emp.CreatedAt, &emp.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if emp.ManagerName == "" {
		emp.ManagerName = "-"
	}
	return &emp, nil
}

func (s *Store) GetEmployeeByEmpID(ctx context.Context, empID string) (*Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, employeeSelect+`
    WHERE lower(u.emp_id) = lower($1) AND e.is_deleted = false
  `, strings.TrimSpace(empID)))
}

func (s *Store) GetEmployeeByUserID(ctx context.Context, userID string) (*Employee, error) {
	return scanEmployee(s.DB.QueryRow(ctx, employeeSelect+`
    WHERE u.id = $1 AND e.is_deleted = false
  `, userID))
}

func (s *Store) CountEmployees(ctx context.Context, filter EmployeeFilter) (int, error) {
	query, args := buildEmployeeQuery("SELECT COUNT(1) FROM employees e JOIN users u ON u.id = e.user_id LEFT JOIN departments d ON d.id = e.department_id LEFT JOIN employees m ON m.id = e.manager_id LEFT JOIN users mu ON mu.id = m.user_id", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) ListEmployees(ctx context.Context, filter EmployeeFilter, limit, offset int) ([]Employee, error) {
	query, args := buildEmployeeQuery(employeeSelect, filter)
	query += fmt.Sprintf(" ORDER BY u.emp_id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Employee, 0)
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *emp)
	}
	return out, rows.Err()
}

func buildEmployeeQuery(prefix string, filter EmployeeFilter) (string, []any) {
	query := prefix + " WHERE e.is_deleted = false"
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		query += " AND " + strings.ReplaceAll(clause, "$?", fmt.Sprintf("$%d", len(args)))
	}
	if filter.ManagerEmployeeID != "" {
		add("e.manager_id = $?", filter.ManagerEmployeeID)
	}
	if filter.SelfUserID != "" {
		add("u.id = $?", filter.SelfUserID)
	}
	if filter.Department != "" {
		add("(lower(d.code) = lower($?) OR lower(d.name) = lower($?) OR d.id::text = $?)", filter.Department)
	}
	if filter.ManagerEmpID != "" {
		add("lower(mu.emp_id) = lower($?)", filter.ManagerEmpID)
	}
	if filter.Role != "" {
		add("lower(u.role) = lower($?)", filter.Role)
	}
	if filter.Status != "" {
		add("lower(e.status) = lower($?)", filter.Status)
	}
	if filter.Search != "" {
		add("(u.first_name ILIKE $? OR u.last_name ILIKE $? OR u.emp_id ILIKE $? OR e.designation ILIKE $? OR d.name ILIKE $?)", "%"+filter.Search+"%")
	}
	return query, args
}

func (s *Store) ListManagers(ctx context.Context) ([]Manager, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT u.emp_id, trim(u.first_name || ' ' || u.last_name)
    FROM employees e
    JOIN users u ON u.id = e.user_id
    WHERE u.role IN ('Manager', 'Admin') AND e.is_deleted = false AND e.status = $1
    ORDER BY u.first_name
  `, EmployeeStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Manager, 0)
	for rows.Next() {
		var m Manager
		if err := rows.Scan(&m.EmpID, &m.FullName); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListDepartments(ctx context.Context, includeInactive bool) ([]Department, error) {
	query := "SELECT id, name, code, description, is_active, created_at FROM departments"
	if !includeInactive {
		query += " WHERE is_active = true"
	}
	query += " ORDER BY name"

	rows, err := s.DB.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Department, 0)
	for rows.Next() {
		var dep Department
		if err := rows.Scan(&dep.ID, &dep.Name, &dep.Code, &dep.Description, &dep.IsActive, &dep.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, dep)
	}
	return out, rows.Err()
}

func (s *Store) GetDepartmentByCode(ctx context.Context, code string) (*Department, error) {
	return getDepartmentByCode(ctx, s.DB, code, false)
}

func getDepartmentByCode(ctx context.Context, q db.Querier, code string, activeOnly bool) (*Department, error) {
	query := "SELECT id, name, code, description, is_active, created_at FROM departments WHERE lower(code) = lower($1)"
	if activeOnly {
		query += " AND is_active = true"
	}
	var dep Department
	err := q.QueryRow(ctx, query, strings.TrimSpace(code)).Scan(&dep.ID, &dep.Name, &dep.Code, &dep.Description, &dep.IsActive, &dep.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dep, nil
}

func (s *Store) CreateDepartment(ctx context.Context, dep Department) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO departments (name, code, description, is_active)
    VALUES ($1, $2, $3, true)
    RETURNING id
  `, dep.Name, dep.Code, dep.Description).Scan(&id)
	if db.IsUniqueViolation(err) {
		return "", ErrConflict
	}
	return id, err
}

func (s *Store) DepartmentHasActiveEmployees(ctx context.Context, departmentID string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM employees
    WHERE department_id = $1 AND status = $2 AND is_deleted = false
  `, departmentID, EmployeeStatusActive).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) DepartmentHasReferences(ctx context.Context, departmentID string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, `
    SELECT (SELECT COUNT(1) FROM performance_evaluations WHERE department_id = $1)
         + (SELECT COUNT(1) FROM employees WHERE department_id = $1)
  `, departmentID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) DeactivateDepartment(ctx context.Context, departmentID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE departments SET is_active = false WHERE id = $1", departmentID)
	return err
}

func (s *Store) DeleteDepartment(ctx context.Context, departmentID string) error {
	_, err := s.DB.Exec(ctx, "DELETE FROM departments WHERE id = $1", departmentID)
	return err
}

// ImportEmployees inserts rows in one transaction with a savepoint per row, so
// a bad row is reported without discarding the rows around it.
func (s *Store) ImportEmployees(ctx context.Context, rows []ImportRow, hash func(string) (string, error)) (ImportResult, error) {
	result := ImportResult{Errors: make([]RowError, 0)}
	err := db.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		for _, row := range rows {
			err := db.Savepoint(ctx, tx, func(tx pgx.Tx) error {
				return insertImportedEmployee(ctx, tx, row, hash)
			})
			if err == nil {
				result.SuccessCount++
				continue
			}
			var rowErr *RowError
			switch {
			case errors.As(err, &rowErr):
				result.Errors = append(result.Errors, *rowErr)
			case db.IsUniqueViolation(err):
				result.Errors = append(result.Errors, RowError{Row: row.Line, EmpID: row.EmpID, Errors: map[string]string{"emp_id": "emp_id, username or email already exists"}})
			default:
				return err
			}
		}
		return nil
	})
	return result, err
}

func insertImportedEmployee(ctx context.Context, tx pgx.Tx, row ImportRow, hash func(string) (string, error)) error {
	var departmentID, managerID any
	if row.DepartmentCode != "" {
		dep, err := getDepartmentByCode(ctx, tx, row.DepartmentCode, true)
		if errors.Is(err, ErrNotFound) {
			return &RowError{Row: row.Line, EmpID: row.EmpID, Errors: map[string]string{"department_code": fmt.Sprintf("Department '%s' not found or inactive.", row.DepartmentCode)}}
		}
		if err != nil {
			return err
		}
		departmentID = dep.ID
	}
	if row.ManagerEmpID != "" {
		var id string
		err := tx.QueryRow(ctx, `
      SELECT e.id FROM employees e JOIN users u ON u.id = e.user_id
      WHERE lower(u.emp_id) = lower($1) AND e.is_deleted = false
    `, row.ManagerEmpID).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return &RowError{Row: row.Line, EmpID: row.EmpID, Errors: map[string]string{"manager_emp_id": fmt.Sprintf("Manager '%s' not found.", row.ManagerEmpID)}}
		}
		if err != nil {
			return err
		}
		managerID = id
	}

	passwordHash, err := hash(row.Password)
	if err != nil {
		return err
	}

	var userID string
	if err := tx.QueryRow(ctx, `
    INSERT INTO users (emp_id, username, email, password_hash, first_name, last_name, role)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING id
  `, row.EmpID, strings.ToLower(row.EmpID), row.Email, passwordHash, row.FirstName, row.LastName, row.Role).Scan(&userID); err != nil {
		return err
	}

	var joining any
	if row.JoiningDate != "" {
		parsed, err := time.Parse("2006-01-02", row.JoiningDate)
		if err != nil {
			return &RowError{Row: row.Line, EmpID: row.EmpID, Errors: map[string]string{"joining_date": "must be YYYY-MM-DD"}}
		}
		joining = parsed
	}

	_, err = tx.Exec(ctx, `
    INSERT INTO employees (user_id, department_id, manager_id, designation, contact_number, joining_date, status)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
  `, userID, departmentID, managerID, row.Designation, row.ContactNumber, joining, EmployeeStatusActive)
	return err
}

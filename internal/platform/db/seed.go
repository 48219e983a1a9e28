package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"epts/internal/domain/auth"
	"epts/internal/platform/config"
)

func Seed(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	return WithTx(ctx, pool, func(tx pgx.Tx) error {
		departmentID, err := ensureDepartment(ctx, tx, cfg.SeedDepartmentCode, cfg.SeedDepartmentName)
		if err != nil {
			return err
		}
		return ensureAdmin(ctx, tx, departmentID, cfg.SeedAdminEmpID, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
	})
}

func ensureDepartment(ctx context.Context, q Querier, code, name string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", nil
	}
	var id string
	err := q.QueryRow(ctx, "SELECT id FROM departments WHERE lower(code) = lower($1)", code).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", err
	}
	err = q.QueryRow(ctx, "INSERT INTO departments (name, code) VALUES ($1, $2) RETURNING id", name, code).Scan(&id)
	return id, err
}

func ensureAdmin(ctx context.Context, q Querier, departmentID, empID, email, password string) error {
	if strings.TrimSpace(empID) == "" || strings.TrimSpace(password) == "" {
		return nil
	}

	var userID string
	err := q.QueryRow(ctx, "SELECT id FROM users WHERE lower(emp_id) = lower($1)", empID).Scan(&userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	if err := q.QueryRow(ctx, `
    INSERT INTO users (emp_id, username, email, password_hash, first_name, last_name, role)
    VALUES ($1, $2, $3, $4, 'System', 'Admin', $5)
    RETURNING id
  `, empID, strings.ToLower(empID), email, hash, auth.RoleAdmin).Scan(&userID); err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
    INSERT INTO employees (user_id, department_id, designation, joining_date)
    VALUES ($1, NULLIF($2, '')::uuid, 'Administrator', CURRENT_DATE)
  `, userID, departmentID)
	return err
}

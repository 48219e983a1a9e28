package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const UserStatusActive = "active"

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

type AuthUser struct {
	ID        string
	EmpID     string
	Email     string
	FirstName string
	LastName  string
	RoleName  string
	Password  string
}

// FindActiveUser matches login against emp_id or email, case-insensitively.
func (s *Store) FindActiveUser(ctx context.Context, login string) (AuthUser, error) {
	var out AuthUser
	err := s.DB.QueryRow(ctx, `
    SELECT id, emp_id, email, first_name, last_name, role, password_hash
    FROM users
    WHERE (lower(emp_id) = lower($1) OR lower(email) = lower($1)) AND status = $2
  `, login, UserStatusActive).Scan(&out.ID, &out.EmpID, &out.Email, &out.FirstName, &out.LastName, &out.RoleName, &out.Password)
	return out, err
}

func (s *Store) UpdateLastLogin(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, "UPDATE users SET last_login = now() WHERE id = $1", userID)
	return err
}

func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	var count int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM users WHERE id = $1 AND status = $2", userID, UserStatusActive).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"epts/internal/requestctx"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserStore interface {
	FindActiveUser(ctx context.Context, login string) (AuthUser, error)
	UpdateLastLogin(ctx context.Context, userID string) error
	UserExists(ctx context.Context, userID string) (bool, error)
}

type Service struct {
	store  UserStore
	secret string
	ttl    time.Duration
}

func NewService(store UserStore, secret string, ttl time.Duration) *Service {
	return &Service{store: store, secret: secret, ttl: ttl}
}

type LoginResult struct {
	Token string
	User  AuthUser
}

func (s *Service) Login(ctx context.Context, login, password string) (LoginResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	user, err := s.store.FindActiveUser(ctx, login)
	if err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := CheckPassword(user.Password, password); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.secret, Claims{UserID: user.ID, EmpID: user.EmpID, RoleName: user.RoleName}, s.ttl)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		slog.Warn("update last_login failed", requestctx.LogAttr(ctx), "userId", user.ID, "err", err)
	}
	user.Password = ""
	return LoginResult{Token: token, User: user}, nil
}

func (s *Service) UserExists(ctx context.Context, userID string) (bool, error) {
	return s.store.UserExists(ctx, userID)
}

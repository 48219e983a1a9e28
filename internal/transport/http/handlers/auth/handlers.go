package authhandler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"epts/internal/domain/auth"
	"epts/internal/transport/http/api"
	"epts/internal/transport/http/middleware"
	"epts/internal/transport/http/shared"
)

type Authenticator interface {
	Login(ctx context.Context, login, password string) (auth.LoginResult, error)
}

type Handler struct {
	Service  Authenticator
	validate *validator.Validate
}

func NewHandler(service Authenticator) *Handler {
	return &Handler{Service: service, validate: validator.New()}
}

type loginRequest struct {
	EmpID    string `json:"emp_id" validate:"required_without=Email,max=50"`
	Email    string `json:"email" validate:"required_without=EmpID,omitempty,email"`
	Password string `json:"password" validate:"required,max=128"`
}

func (p loginRequest) login() string {
	if strings.TrimSpace(p.EmpID) != "" {
		return p.EmpID
	}
	return p.Email
}

type loginUser struct {
	ID        string `json:"id"`
	EmpID     string `json:"emp_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), shared.ValidatorFields(err, payload))
		return
	}

	result, err := h.Service.Login(r.Context(), payload.login(), payload.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", middleware.GetRequestID(r.Context()))
		return
	}

	api.Success(w, map[string]any{
		"token": result.Token,
		"user": loginUser{
			ID:        result.User.ID,
			EmpID:     result.User.EmpID,
			Email:     result.User.Email,
			FirstName: result.User.FirstName,
			LastName:  result.User.LastName,
			Role:      result.User.RoleName,
		},
	}, middleware.GetRequestID(r.Context()))
}

package corehandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"epts/internal/domain/audit"
	"epts/internal/domain/auth"
	"epts/internal/domain/core"
	"epts/internal/transport/http/api"
	"epts/internal/transport/http/middleware"
	"epts/internal/transport/http/shared"
)

const maxUploadMemory = 8 << 20

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

type Handler struct {
	Service *core.Service
	Audit   AuditRecorder
	Perms   middleware.PermissionStore
}

func NewHandler(service *core.Service, auditor AuditRecorder, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditor, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Get("/profile/{role}", h.handleProfile)
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/", h.handleListEmployees)
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/managers", h.handleListManagers)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Post("/upload_csv", h.handleUploadCSV)
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/{empID}", h.handleGetEmployee)
	})
	r.Route("/departments", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermOrgRead, h.Perms)).Get("/", h.handleListDepartments)
		r.With(middleware.RequirePermission(auth.PermOrgWrite, h.Perms)).Post("/", h.handleCreateDepartment)
		r.With(middleware.RequirePermission(auth.PermOrgWrite, h.Perms)).Delete("/{code}", h.handleDeactivateDepartment)
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	emp, err := h.Service.Profile(r.Context(), user, user.RoleName)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		slog.Warn("me employee lookup failed", "userId", user.UserID, "err", err)
	}

	api.Success(w, map[string]any{
		"user": map[string]string{
			"id":     user.UserID,
			"emp_id": user.EmpID,
			"role":   user.RoleName,
		},
		"employee": emp,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	role, valid := auth.NormalizeRole(chi.URLParam(r, "role"))
	if !valid {
		api.Fail(w, http.StatusNotFound, "not_found", "unknown profile", middleware.GetRequestID(r.Context()))
		return
	}
	emp, err := h.Service.Profile(r.Context(), user, role)
	if err != nil {
		writeError(w, r, err, "profile")
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	query := r.URL.Query()
	filter := core.EmployeeFilter{
		Department:   strings.TrimSpace(query.Get("department")),
		ManagerEmpID: strings.TrimSpace(query.Get("manager")),
		Status:       strings.TrimSpace(query.Get("status")),
		Search:       strings.TrimSpace(query.Get("search")),
	}
	if raw := strings.TrimSpace(query.Get("role")); raw != "" {
		role, valid := auth.NormalizeRole(raw)
		if !valid {
			shared.FailValidation(w, middleware.GetRequestID(r.Context()), map[string][]string{"role": {"Invalid role."}})
			return
		}
		filter.Role = role
	}

	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	items, total, err := h.Service.ListEmployees(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "employee")
		return
	}
	api.Success(w, shared.NewPage(r, page, total, items), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	emp, err := h.Service.GetEmployee(r.Context(), user, chi.URLParam(r, "empID"))
	if err != nil {
		writeError(w, r, err, "employee")
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListManagers(w http.ResponseWriter, r *http.Request) {
	managers, err := h.Service.ListManagers(r.Context())
	if err != nil {
		writeError(w, r, err, "manager")
		return
	}
	api.Success(w, managers, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), map[string][]string{"file": {"Upload a CSV file in the 'file' field."}})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), map[string][]string{"file": {"No file was submitted."}})
		return
	}
	defer file.Close()
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), map[string][]string{"file": {"File must have a .csv extension."}})
		return
	}

	result, err := h.Service.ImportEmployees(r.Context(), user, file)
	if errors.Is(err, core.ErrCSVHeader) {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), map[string][]string{"file": {err.Error()}})
		return
	}
	if err != nil {
		writeError(w, r, err, "file")
		return
	}
	h.record(r, user, audit.ActionEmployeesImport, audit.EntityEmployeeImport, header.Filename, map[string]any{
		"file":         header.Filename,
		"successCount": result.SuccessCount,
		"errorCount":   len(result.Errors),
	})
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	includeInactive := strings.EqualFold(r.URL.Query().Get("include_inactive"), "true")
	deps, err := h.Service.ListDepartments(r.Context(), user, includeInactive)
	if err != nil {
		writeError(w, r, err, "department")
		return
	}
	api.Success(w, deps, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload core.DepartmentInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	dep, err := h.Service.CreateDepartment(r.Context(), payload)
	if core.IsValidation(err) {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), shared.ValidatorFields(err, payload))
		return
	}
	if errors.Is(err, core.ErrConflict) {
		api.FailField(w, http.StatusBadRequest, "department_exists", "code", "Department with this code already exists.",
			middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		writeError(w, r, err, "department")
		return
	}
	h.record(r, user, audit.ActionDepartmentCreate, audit.EntityDepartment, dep.Code, dep)
	api.Created(w, dep, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeactivateDepartment(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	code := chi.URLParam(r, "code")
	force := strings.EqualFold(r.URL.Query().Get("force"), "true")

	err := h.Service.DeactivateDepartment(r.Context(), code, force)
	if errors.Is(err, core.ErrDepartmentHasEmployees) {
		api.Fail(w, http.StatusBadRequest, "department_in_use", "Cannot deactivate department with active employees.", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		writeError(w, r, err, "department")
		return
	}
	h.record(r, user, audit.ActionDepartmentRemove, audit.EntityDepartment, code, map[string]any{"code": code, "force": force})
	api.Success(w, map[string]string{"status": "deactivated", "code": code}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityType, entityID string, after any) {
	if h.Audit == nil {
		return
	}
	err := h.Audit.Record(r.Context(), audit.Entry{
		ActorID:    user.UserID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         middleware.ClientIP(r),
		After:      after,
	})
	if err != nil {
		slog.Warn("audit write failed", "action", action, "entityId", entityID, "err", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, entity string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, core.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", entity+" not found", requestID)
	case errors.Is(err, core.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "You do not have permission to perform this action.", requestID)
	default:
		slog.Error("core request failed", "path", r.URL.Path, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}

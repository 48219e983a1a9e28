package performancehandler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"epts/internal/domain/audit"
	"epts/internal/domain/auth"
	"epts/internal/domain/performance"
	"epts/internal/transport/http/api"
	"epts/internal/transport/http/middleware"
	"epts/internal/transport/http/shared"
)

type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry) error
}

type RankRepairRunner interface {
	RepairRanksNow(ctx context.Context) (any, error)
}

type Handler struct {
	Service *performance.Service
	Audit   AuditRecorder
	Jobs    RankRepairRunner
	Perms   middleware.PermissionStore
}

func NewHandler(service *performance.Service, auditor AuditRecorder, jobs RankRepairRunner, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Audit: auditor, Jobs: jobs, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermPerformanceRead, h.Perms)
	write := middleware.RequirePermission(auth.PermPerformanceWrite, h.Perms)
	reports := middleware.RequirePermission(auth.PermReportsRead, h.Perms)

	r.Route("/performance", func(r chi.Router) {
		r.Route("/evaluations", func(r chi.Router) {
			r.With(read).Get("/", h.handleListEvaluations)
			r.With(write).Post("/", h.handleCreateEvaluation)
			r.Route("/{evaluationID}", func(r chi.Router) {
				r.With(read).Get("/", h.handleGetEvaluation)
				r.With(write).Put("/", h.handleUpdateEvaluation)
				r.With(write).Patch("/", h.handleUpdateEvaluation)
				r.With(read).Get("/report.pdf", h.handleEvaluationReport)
			})
		})
		r.With(reports).Get("/summary", h.handleSummary)
		r.With(reports).Get("/dashboard/organization", h.handleOrganizationDashboard)
		r.With(read).Get("/dashboard", h.handleDashboard)
		r.With(read).Get("/employee/{empID}", h.handleEmployeePerformance)
		r.With(read).Get("/evaluation-by-emp/{empID}", h.handleEvaluationsByEmployee)
		r.With(read).Get("/latest-week", h.handleLatestWeek)
		r.With(read).Get("/rankings", h.handleRankings)
		r.With(write).Post("/rankings/repair", h.handleRepairRanks)
	})
}

func (h *Handler) handleCreateEvaluation(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	in, ok := h.readInput(w, r)
	if !ok {
		return
	}

	ev, err := h.Service.Create(r.Context(), user, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.record(r, user, audit.ActionEvaluationCreate, ev.ID, nil, ev)
	api.Created(w, ev, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateEvaluation(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	in, ok := h.readInput(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "evaluationID")
	var before *performance.Evaluation
	if auth.CanEvaluate(user.RoleName) {
		before, _ = h.Service.Get(r.Context(), user, id)
	}
	ev, err := h.Service.Update(r.Context(), user, id, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.record(r, user, audit.ActionEvaluationUpdate, ev.ID, before, ev)
	api.Success(w, ev, middleware.GetRequestID(r.Context()))
}

func (h *Handler) readInput(w http.ResponseWriter, r *http.Request) (*performance.Input, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", middleware.GetRequestID(r.Context()))
			return nil, false
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return nil, false
	}
	in, err := performance.ParseInput(body)
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return in, true
}

func (h *Handler) record(r *http.Request, user auth.UserContext, action, entityID string, before, after any) {
	if h.Audit == nil {
		return
	}
	err := h.Audit.Record(r.Context(), audit.Entry{
		ActorID:    user.UserID,
		Action:     action,
		EntityType: audit.EntityEvaluation,
		EntityID:   entityID,
		RequestID:  middleware.GetRequestID(r.Context()),
		IP:         middleware.ClientIP(r),
		Before:     before,
		After:      after,
	})
	if err != nil {
		slog.Warn("audit evaluation write failed", "action", action, "evaluationId", entityID, "err", err)
	}
}

func (h *Handler) handleListEvaluations(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	group := parseGroup(r, v)
	order := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("ordering")))
	switch order {
	case "", performance.OrderRecent, performance.OrderRank, performance.OrderScore:
	default:
		v.Add("ordering", "must be one of recent, rank, score")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	filter := performance.ListFilter{
		Year:           group.Year,
		Week:           group.Week,
		EvaluationType: group.EvaluationType,
		Department:     strings.TrimSpace(r.URL.Query().Get("department")),
		EmpID:          strings.TrimSpace(r.URL.Query().Get("emp_id")),
		Order:          order,
	}
	page := shared.ParsePagination(r, shared.DefaultPageSize, shared.MaxPageSize)
	items, total, err := h.Service.List(r.Context(), user, filter, page.Limit, page.Offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, shared.NewPage(r, page, total, items), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEvaluation(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	ev, err := h.Service.Get(r.Context(), user, chi.URLParam(r, "evaluationID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, ev, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEvaluationReport(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	id := chi.URLParam(r, "evaluationID")
	var buf bytes.Buffer
	if err := h.Service.WriteReport(r.Context(), user, id, &buf); err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Attachment(w, "application/pdf", fmt.Sprintf("evaluation-%s.pdf", id), buf.Bytes())
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	group := parseGroup(r, v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	summary, err := h.Service.Summary(r.Context(), user, performance.ListFilter{
		Year:           group.Year,
		Week:           group.Week,
		EvaluationType: group.EvaluationType,
		Department:     strings.TrimSpace(r.URL.Query().Get("department")),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleOrganizationDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	group := parseGroup(r, v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	dashboard, err := h.Service.OrganizationDashboard(r.Context(), user, group)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, dashboard, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	dashboard, err := h.Service.Dashboard(r.Context(), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, dashboard, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEmployeePerformance(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	out, err := h.Service.EmployeePerformance(r.Context(), user, chi.URLParam(r, "empID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEvaluationsByEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	out, err := h.Service.EmployeePerformance(r.Context(), user, chi.URLParam(r, "empID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, out.Evaluations, middleware.GetRequestID(r.Context()))
}

type latestWeekResponse struct {
	EvaluationType string `json:"evaluation_type"`
	Year           *int   `json:"year"`
	WeekNumber     *int   `json:"week_number"`
}

func (h *Handler) handleLatestWeek(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	group := parseGroup(r, v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	evaluationType := group.EvaluationType
	if evaluationType == "" {
		evaluationType = performance.EvaluationTypeManager
	}
	period, found, err := h.Service.LatestWeek(r.Context(), user, evaluationType)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out := latestWeekResponse{EvaluationType: evaluationType}
	if found {
		out.Year, out.WeekNumber = &period.Year, &period.Week
	}
	api.Success(w, out, middleware.GetRequestID(r.Context()))
}

type rankingsResponse struct {
	performance.Group
	Rankings []performance.RankRow `json:"rankings"`
}

func (h *Handler) handleRankings(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	group := parseGroup(r, v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	group, rows, err := h.Service.Rankings(r.Context(), user, group)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.Success(w, rankingsResponse{Group: group, Rankings: rows}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRepairRanks(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	if !user.IsAdmin() {
		api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", middleware.GetRequestID(r.Context()))
		return
	}
	if h.Jobs == nil {
		api.Fail(w, http.StatusServiceUnavailable, "jobs_unavailable", "job runner not configured", middleware.GetRequestID(r.Context()))
		return
	}
	details, err := h.Jobs.RepairRanksNow(r.Context())
	if err != nil {
		slog.Warn("rank repair run failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "rank_repair_failed", "rank repair failed", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

// parseGroup reads the optional year, week and evaluation_type filters.
func parseGroup(r *http.Request, v *shared.Validator) performance.Group {
	query := r.URL.Query()
	var group performance.Group
	if year := v.Int("year", query.Get("year"), 1, 9999); year != nil {
		group.Year = *year
	}
	rawWeek := query.Get("week")
	if rawWeek == "" {
		rawWeek = query.Get("week_number")
	}
	if week := v.Int("week", rawWeek, 1, 53); week != nil {
		group.Week = *week
	}
	if raw := strings.TrimSpace(query.Get("evaluation_type")); raw != "" {
		t, ok := performance.NormalizeEvaluationType(raw)
		if !ok {
			v.Add("evaluation_type", fmt.Sprintf("\"%s\" is not a valid choice.", raw))
		}
		group.EvaluationType = t
	}
	return group
}

// writeError maps domain failures onto the response envelope. Field details
// are keyed by the input field that caused them.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var verr *performance.ValidationError
	var dup *performance.DuplicateEvaluationError
	var nf *performance.NotFoundError
	switch {
	case errors.As(err, &verr):
		shared.FailValidation(w, requestID, verr.Fields)
	case errors.As(err, &dup):
		api.FailField(w, http.StatusBadRequest, "duplicate_evaluation", "duplicate", dup.Error(), requestID)
	case errors.As(err, &nf):
		api.FailField(w, http.StatusNotFound, "not_found", nf.Field, nf.Error(), requestID)
	case errors.Is(err, performance.ErrPermissionDenied):
		api.FailField(w, http.StatusForbidden, "forbidden", "role", err.Error(), requestID)
	default:
		slog.Error("performance request failed", "path", r.URL.Path, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}

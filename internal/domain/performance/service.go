package performance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"epts/internal/domain/auth"
	"epts/internal/requestctx"
)

const maxGroupRows = 500

// Observer receives lifecycle outcomes, typically for metrics.
type Observer interface {
	EvaluationSaved(operation string)
	RankingFailed()
}

type nopObserver struct{}

func (nopObserver) EvaluationSaved(string) {}
func (nopObserver) RankingFailed()         {}

type Service struct {
	store    StoreAPI
	observer Observer
}

func NewService(store StoreAPI) *Service {
	return &Service{store: store, observer: nopObserver{}}
}

func (s *Service) WithObserver(o Observer) *Service {
	if o != nil {
		s.observer = o
	}
	return s
}

// Create records a new evaluation for the actor. The role check runs before
// any lookup, and the dedup check holds a lock on the (employee, week, year,
// type) key for the rest of the transaction.
func (s *Service) Create(ctx context.Context, actor auth.UserContext, in *Input) (*Evaluation, error) {
	if !auth.CanEvaluate(actor.RoleName) {
		return nil, ErrPermissionDenied
	}

	var out *Evaluation
	err := s.store.InTx(ctx, func(tx TxStore) error {
		if in.EmployeeEmpID == nil {
			return NewValidationError("employee", "Employee ID is required.")
		}
		emp, err := resolveEmployee(ctx, tx, *in.EmployeeEmpID, in.EmployeeField)
		if err != nil {
			return err
		}
		evaluator, err := resolveEvaluator(ctx, tx, in.EvaluatorEmpID, actor)
		if err != nil {
			return err
		}
		departmentID := emp.DepartmentID
		if in.DepartmentCode != nil {
			dep, err := resolveDepartment(ctx, tx, *in.DepartmentCode)
			if err != nil {
				return err
			}
			departmentID = dep.ID
		}

		evaluationType := EvaluationTypeManager
		if in.EvaluationType != nil {
			evaluationType = *in.EvaluationType
		}
		period, err := ResolvePeriod(in.ReviewDate.Value, in.Week, in.Year)
		if err != nil {
			return err
		}

		key := DedupKey{EmployeeID: emp.ID, Year: period.Year, Week: period.Week, EvaluationType: evaluationType}
		if err := tx.LockEvaluationKey(ctx, key); err != nil {
			return err
		}
		exists, err := tx.EvaluationExists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return &DuplicateEvaluationError{EmpID: emp.EmpID, Week: period.Week, Year: period.Year, EvaluationType: evaluationType}
		}

		rec := Record{
			EmployeeID:     emp.ID,
			EvaluatorID:    evaluator.ID,
			DepartmentID:   departmentID,
			EvaluationType: evaluationType,
			ReviewDate:     in.ReviewDate.Value,
			WeekNumber:     period.Week,
			Year:           period.Year,
		}
		if in.EvaluationPeriod != nil {
			rec.EvaluationPeriod = *in.EvaluationPeriod
		}
		if in.Remarks != nil {
			rec.Remarks = *in.Remarks
		}
		rec.Scores, rec.Comments = in.Metrics.Apply(Scores{}, Comments{})
		rec.TotalScore, rec.AverageScore = Score(rec.Scores)

		id, err := tx.InsertEvaluation(ctx, rec)
		if err != nil {
			return err
		}
		s.rank(ctx, tx, rec.Group())

		out, err = tx.GetEvaluation(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.observer.EvaluationSaved("create")
	return out, nil
}

const lockAttempts = 3

// lockForUpdate takes the rank locks of the evaluation's current group and
// of the group in moves it to, then locks the row. Group locks always come
// before row locks so Update cannot deadlock against Create or ranking.
func lockForUpdate(ctx context.Context, tx TxStore, id string, in *Input) (Record, error) {
	for range lockAttempts {
		current, err := tx.PeekGroup(ctx, id)
		if err != nil {
			return Record{}, err
		}
		if err := tx.LockGroups(ctx, []Group{current, targetGroup(current, in)}); err != nil {
			return Record{}, err
		}
		rec, err := tx.LoadRecord(ctx, id)
		if err != nil {
			return Record{}, err
		}
		if rec.Group() == current {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("evaluation %s kept moving between rank groups", id)
}

// targetGroup is the group an evaluation in current lands in once in is
// applied. An unresolvable period keeps the current one; Update reports
// that error itself.
func targetGroup(current Group, in *Input) Group {
	next := current
	if in.EvaluationType != nil {
		next.EvaluationType = *in.EvaluationType
	}
	if in.ReviewDate.Value != nil || in.Week != nil || in.Year != nil {
		week, year := in.Week, in.Year
		if week == nil {
			week = &current.Week
		}
		if year == nil {
			year = &current.Year
		}
		if period, err := ResolvePeriod(in.ReviewDate.Value, week, year); err == nil {
			next.Week, next.Year = period.Week, period.Year
		}
	}
	return next
}

// Update applies in to an existing evaluation. Fields absent from in keep
// their stored values, except that a new employee brings their department
// unless department_code is also given. The dedup check does not run.
// Managers may only touch evaluations they can read.
func (s *Service) Update(ctx context.Context, actor auth.UserContext, id string, in *Input) (*Evaluation, error) {
	if !auth.CanEvaluate(actor.RoleName) {
		return nil, ErrPermissionDenied
	}

	var out *Evaluation
	err := s.store.InTx(ctx, func(tx TxStore) error {
		missing := &NotFoundError{Field: "id", Value: id, Message: fmt.Sprintf("Evaluation '%s' not found.", id)}
		rec, err := lockForUpdate(ctx, tx, id, in)
		if errors.Is(err, errNotFound) {
			return missing
		}
		if err != nil {
			return err
		}
		if !actor.IsAdmin() {
			current, err := tx.GetEvaluation(ctx, id)
			if err != nil {
				return err
			}
			if !canView(actor, current) {
				return missing
			}
		}
		previous := rec.Group()

		if in.EmployeeEmpID != nil {
			emp, err := resolveEmployee(ctx, tx, *in.EmployeeEmpID, in.EmployeeField)
			if err != nil {
				return err
			}
			rec.EmployeeID = emp.ID
			if in.DepartmentCode == nil {
				rec.DepartmentID = emp.DepartmentID
			}
		}
		if in.EvaluatorEmpID != nil {
			evaluator, err := resolveEvaluator(ctx, tx, in.EvaluatorEmpID, actor)
			if err != nil {
				return err
			}
			rec.EvaluatorID = evaluator.ID
		}
		if in.DepartmentCode != nil {
			dep, err := resolveDepartment(ctx, tx, *in.DepartmentCode)
			if err != nil {
				return err
			}
			rec.DepartmentID = dep.ID
		}
		if in.EvaluationType != nil {
			rec.EvaluationType = *in.EvaluationType
		}
		if in.ReviewDate.Set {
			rec.ReviewDate = in.ReviewDate.Value
		}
		if in.ReviewDate.Value != nil || in.Week != nil || in.Year != nil {
			week, year := in.Week, in.Year
			if week == nil {
				week = &rec.WeekNumber
			}
			if year == nil {
				year = &rec.Year
			}
			period, err := ResolvePeriod(in.ReviewDate.Value, week, year)
			if err != nil {
				return err
			}
			rec.WeekNumber, rec.Year = period.Week, period.Year
		}
		if in.EvaluationPeriod != nil {
			rec.EvaluationPeriod = *in.EvaluationPeriod
		}
		if in.Remarks != nil {
			rec.Remarks = *in.Remarks
		}
		rec.Scores, rec.Comments = in.Metrics.Apply(rec.Scores, rec.Comments)
		rec.TotalScore, rec.AverageScore = Score(rec.Scores)

		if err := tx.UpdateEvaluation(ctx, rec); err != nil {
			return err
		}
		s.rank(ctx, tx, rec.Group())
		if previous != rec.Group() {
			s.rank(ctx, tx, previous)
		}

		out, err = tx.GetEvaluation(ctx, rec.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.observer.EvaluationSaved("update")
	return out, nil
}

// rank is best effort: a failure is logged and the write carries on with the
// previous ranks in place.
func (s *Service) rank(ctx context.Context, tx TxStore, group Group) {
	if err := tx.RankGroup(ctx, group); err != nil {
		s.observer.RankingFailed()
		slog.Warn("evaluation ranking failed", requestctx.LogAttr(ctx), "err", err, "year", group.Year, "week", group.Week, "evaluationType", group.EvaluationType)
	}
}

func resolveEmployee(ctx context.Context, tx TxStore, empID, field string) (EmployeeRef, error) {
	if field == "" {
		field = "employee"
	}
	emp, err := tx.FindEmployee(ctx, empID)
	if errors.Is(err, errNotFound) {
		return EmployeeRef{}, &NotFoundError{Field: field, Value: empID, Message: fmt.Sprintf("Employee with emp_id '%s' not found.", empID)}
	}
	return emp, err
}

func resolveEvaluator(ctx context.Context, tx TxStore, empID *string, actor auth.UserContext) (UserRef, error) {
	if empID == nil {
		user, err := tx.FindUserByID(ctx, actor.UserID)
		if errors.Is(err, errNotFound) {
			return UserRef{}, &NotFoundError{Field: "evaluator_emp_id", Value: actor.EmpID, Message: "Acting user no longer exists."}
		}
		return user, err
	}
	user, err := tx.FindUserByEmpID(ctx, *empID)
	if errors.Is(err, errNotFound) {
		return UserRef{}, &NotFoundError{Field: "evaluator_emp_id", Value: *empID, Message: fmt.Sprintf("Evaluator '%s' not found.", *empID)}
	}
	return user, err
}

func resolveDepartment(ctx context.Context, tx TxStore, code string) (DepartmentRef, error) {
	dep, err := tx.FindActiveDepartment(ctx, code)
	if errors.Is(err, errNotFound) {
		return DepartmentRef{}, &NotFoundError{Field: "department_code", Value: code, Message: fmt.Sprintf("Department '%s' not found or inactive.", code)}
	}
	return dep, err
}

// ScopeFor returns the read scope of an actor: admins see everything,
// managers their team and themselves, employees only themselves.
func ScopeFor(actor auth.UserContext) Scope {
	switch {
	case actor.IsAdmin():
		return Scope{}
	case actor.IsManager():
		return Scope{TeamOfUserID: actor.UserID}
	default:
		return Scope{SelfUserID: actor.UserID}
	}
}

func canView(actor auth.UserContext, ev *Evaluation) bool {
	switch {
	case actor.IsAdmin():
		return true
	case ev.EmployeeUserID == actor.UserID:
		return true
	case actor.IsManager():
		return ev.ManagerUserID == actor.UserID
	}
	return false
}

// Get returns an evaluation visible to the actor. Evaluations outside the
// actor's scope are reported as missing.
func (s *Service) Get(ctx context.Context, actor auth.UserContext, id string) (*Evaluation, error) {
	ev, err := s.store.GetEvaluation(ctx, id)
	if errors.Is(err, errNotFound) || (err == nil && !canView(actor, ev)) {
		return nil, &NotFoundError{Field: "id", Value: id, Message: fmt.Sprintf("Evaluation '%s' not found.", id)}
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (s *Service) List(ctx context.Context, actor auth.UserContext, filter ListFilter, limit, offset int) ([]Evaluation, int, error) {
	filter.Scope = ScopeFor(actor)
	total, err := s.store.CountEvaluations(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.store.ListEvaluations(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Summary(ctx context.Context, actor auth.UserContext, filter ListFilter) (Summary, error) {
	if !auth.CanEvaluate(actor.RoleName) {
		return Summary{}, ErrPermissionDenied
	}
	filter.Scope = ScopeFor(actor)
	summary, err := s.store.SummaryStats(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	filter.Order = OrderScore
	top, err := s.store.ListEvaluations(ctx, filter, 5, 0)
	if err != nil {
		return Summary{}, err
	}
	summary.TopPerformers = make([]RankRow, 0, len(top))
	for _, ev := range top {
		summary.TopPerformers = append(summary.TopPerformers, NewRankRow(ev))
	}
	if summary.Departments == nil {
		summary.Departments = []DepartmentAverage{}
	}
	return summary, nil
}

// resolveGroup fills in the latest evaluated week when the caller gave none.
func (s *Service) resolveGroup(ctx context.Context, group Group, scope Scope) (Group, bool, error) {
	if group.EvaluationType == "" {
		group.EvaluationType = EvaluationTypeManager
	}
	if group.Year != 0 && group.Week != 0 {
		return group, true, nil
	}
	period, ok, err := s.store.LatestPeriod(ctx, group.EvaluationType, scope)
	if err != nil || !ok {
		return group, false, err
	}
	group.Year, group.Week = period.Year, period.Week
	return group, true, nil
}

func (s *Service) groupEvaluations(ctx context.Context, group Group, scope Scope) ([]Evaluation, error) {
	return s.store.ListEvaluations(ctx, ListFilter{
		Scope:          scope,
		Year:           group.Year,
		Week:           group.Week,
		EvaluationType: group.EvaluationType,
		Order:          OrderRank,
	}, maxGroupRows, 0)
}

func (s *Service) OrganizationDashboard(ctx context.Context, actor auth.UserContext, group Group) (OrganizationDashboard, error) {
	if !auth.CanEvaluate(actor.RoleName) {
		return OrganizationDashboard{}, ErrPermissionDenied
	}
	scope := ScopeFor(actor)
	group, ok, err := s.resolveGroup(ctx, group, scope)
	if err != nil {
		return OrganizationDashboard{}, err
	}
	out := OrganizationDashboard{Group: group, Evaluations: []Evaluation{}}
	if !ok {
		return out, nil
	}
	items, err := s.groupEvaluations(ctx, group, scope)
	if err != nil {
		return OrganizationDashboard{}, err
	}
	out.Evaluations = items
	return out, nil
}

func (s *Service) Rankings(ctx context.Context, actor auth.UserContext, group Group) (Group, []RankRow, error) {
	scope := ScopeFor(actor)
	group, ok, err := s.resolveGroup(ctx, group, scope)
	if err != nil || !ok {
		return group, []RankRow{}, err
	}
	items, err := s.groupEvaluations(ctx, group, scope)
	if err != nil {
		return group, nil, err
	}
	rows := make([]RankRow, 0, len(items))
	for _, ev := range items {
		rows = append(rows, NewRankRow(ev))
	}
	return group, rows, nil
}

// Dashboard summarizes the actor's own evaluations, newest first, with a
// chronological trend.
func (s *Service) Dashboard(ctx context.Context, actor auth.UserContext) (EmployeeDashboard, error) {
	items, err := s.store.ListEvaluations(ctx, ListFilter{Scope: Scope{SelfUserID: actor.UserID}, Order: OrderRecent}, maxGroupRows, 0)
	if err != nil {
		return EmployeeDashboard{}, err
	}
	return buildDashboard(actor.EmpID, items), nil
}

func buildDashboard(empID string, items []Evaluation) EmployeeDashboard {
	out := EmployeeDashboard{EmpID: empID, TotalReviews: len(items), Evaluations: items, Trend: []TrendPoint{}}
	if out.Evaluations == nil {
		out.Evaluations = []Evaluation{}
	}
	if len(items) == 0 {
		return out
	}
	latest := items[0]
	out.Latest = &latest

	var sum float64
	for _, ev := range items {
		sum += ev.AverageScore
		out.BestAverage = max(out.BestAverage, ev.AverageScore)
		out.Trend = append(out.Trend, TrendPoint{Year: ev.Year, Week: ev.WeekNumber, TotalScore: ev.TotalScore, AverageScore: ev.AverageScore, Rank: ev.Rank})
	}
	out.OverallAverage = math.Round(sum/float64(len(items))*100) / 100
	slices.Reverse(out.Trend)
	return out
}

// EmployeePerformance returns every evaluation of one employee. Admins may
// read anyone, managers their direct reports, everyone their own.
func (s *Service) EmployeePerformance(ctx context.Context, actor auth.UserContext, empID string) (EmployeePerformance, error) {
	emp, err := s.store.FindEmployee(ctx, empID)
	if errors.Is(err, errNotFound) {
		return EmployeePerformance{}, &NotFoundError{Field: "emp_id", Value: empID, Message: fmt.Sprintf("Employee with emp_id '%s' not found.", empID)}
	}
	if err != nil {
		return EmployeePerformance{}, err
	}
	allowed := actor.IsAdmin() || emp.UserID == actor.UserID || (actor.IsManager() && emp.ManagerUserID == actor.UserID)
	if !allowed {
		return EmployeePerformance{}, ErrPermissionDenied
	}

	items, err := s.store.ListEvaluations(ctx, ListFilter{EmpID: emp.EmpID, Order: OrderRecent}, maxGroupRows, 0)
	if err != nil {
		return EmployeePerformance{}, err
	}
	out := EmployeePerformance{
		Employee: EmployeeInfo{
			EmpID:          emp.EmpID,
			FullName:       emp.FullName,
			DepartmentName: emp.DepartmentName,
			ManagerName:    emp.ManagerName,
		},
		Evaluations: items,
	}
	if out.Employee.ManagerName == "" {
		out.Employee.ManagerName = "-"
	}
	if out.Evaluations == nil {
		out.Evaluations = []Evaluation{}
	}
	if len(items) > 0 {
		var sum float64
		for _, ev := range items {
			sum += ev.AverageScore
		}
		out.AverageScore = math.Round(sum/float64(len(items))*100) / 100
	}
	return out, nil
}

func (s *Service) LatestWeek(ctx context.Context, actor auth.UserContext, evaluationType string) (Period, bool, error) {
	if evaluationType == "" {
		evaluationType = EvaluationTypeManager
	}
	return s.store.LatestPeriod(ctx, evaluationType, ScopeFor(actor))
}

// WriteReport renders one evaluation as a PDF.
func (s *Service) WriteReport(ctx context.Context, actor auth.UserContext, id string, w io.Writer) error {
	ev, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	return RenderReport(w, *ev)
}

// RepairRanks re-ranks every group still holding unranked evaluations and
// returns how many groups were repaired.
func (s *Service) RepairRanks(ctx context.Context) (int, error) {
	groups, err := s.store.UnrankedGroups(ctx)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for _, group := range groups {
		err := s.store.InTx(ctx, func(tx TxStore) error {
			return tx.RankGroup(ctx, group)
		})
		if err != nil {
			s.observer.RankingFailed()
			slog.Warn("rank repair failed", "err", err, "year", group.Year, "week", group.Week, "evaluationType", group.EvaluationType)
			continue
		}
		repaired++
	}
	return repaired, nil
}

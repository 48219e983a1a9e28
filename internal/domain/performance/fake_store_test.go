package performance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

type fakeUser struct {
	ID    string
	EmpID string
	Name  string
}

type fakeDepartment struct {
	ID     string
	Code   string
	Name   string
	Active bool
}

// memStore is an in-memory StoreAPI. Transactions work on a copy of the
// evaluation table that replaces the original only when fn succeeds.
type memStore struct {
	users       map[string]fakeUser
	employees   []EmployeeRef
	departments []fakeDepartment
	evaluations map[string]Record
	ranks       map[string]*int
	created     map[string]time.Time
	nextID      int
	clock       time.Time

	rankErr   error
	rankCalls []Group
	locks     []DedupKey
	lockLog   []string
	inserts   int
	commits   int
}

func newMemStore() *memStore {
	s := &memStore{
		users:       map[string]fakeUser{},
		evaluations: map[string]Record{},
		ranks:       map[string]*int{},
		created:     map[string]time.Time{},
		clock:       time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	s.addUser("u-admin", "ADM001", "Ada Admin")
	s.addUser("u-mgr", "MGR001", "Maya Iyer")
	s.addUser("u-emp1", "EMP001", "Ravi Kumar")
	s.addUser("u-emp2", "EMP002", "Lena Cho")
	s.addUser("u-emp3", "EMP003", "Omar Said")
	s.departments = []fakeDepartment{
		{ID: "d-eng", Code: "ENG", Name: "Engineering", Active: true},
		{ID: "d-ops", Code: "OPS", Name: "Operations", Active: false},
		{ID: "d-qa", Code: "QA", Name: "Quality", Active: true},
	}
	s.employees = []EmployeeRef{
		{ID: "e-mgr", UserID: "u-mgr", EmpID: "MGR001", FullName: "Maya Iyer", DepartmentID: "d-eng", DepartmentName: "Engineering"},
		{ID: "e-1", UserID: "u-emp1", EmpID: "EMP001", FullName: "Ravi Kumar", DepartmentID: "d-eng", DepartmentName: "Engineering", ManagerUserID: "u-mgr", ManagerName: "Maya Iyer"},
		{ID: "e-2", UserID: "u-emp2", EmpID: "EMP002", FullName: "Lena Cho", DepartmentID: "d-eng", DepartmentName: "Engineering", ManagerUserID: "u-mgr", ManagerName: "Maya Iyer"},
		{ID: "e-3", UserID: "u-emp3", EmpID: "EMP003", FullName: "Omar Said", DepartmentID: "d-qa", DepartmentName: "Quality"},
	}
	return s
}

func (s *memStore) addUser(id, empID, name string) {
	s.users[id] = fakeUser{ID: id, EmpID: empID, Name: name}
}

func (s *memStore) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	tx := &memTx{
		store:       s,
		evaluations: cloneMap(s.evaluations),
		ranks:       cloneMap(s.ranks),
		created:     cloneMap(s.created),
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.evaluations, s.ranks, s.created = tx.evaluations, tx.ranks, tx.created
	s.commits++
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) findEmployee(empID string) (EmployeeRef, error) {
	for _, e := range s.employees {
		if strings.EqualFold(e.EmpID, strings.TrimSpace(empID)) {
			return e, nil
		}
	}
	return EmployeeRef{}, errNotFound
}

func (s *memStore) employeeByID(id string) EmployeeRef {
	for _, e := range s.employees {
		if e.ID == id {
			return e
		}
	}
	return EmployeeRef{}
}

func (s *memStore) FindEmployee(_ context.Context, empID string) (EmployeeRef, error) {
	return s.findEmployee(empID)
}

func (s *memStore) materialize(rec Record, rank *int, created time.Time) Evaluation {
	emp := s.employeeByID(rec.EmployeeID)
	ev := Evaluation{
		ID:               rec.ID,
		EmployeeID:       rec.EmployeeID,
		EmployeeUserID:   emp.UserID,
		EmployeeEmpID:    emp.EmpID,
		EmployeeName:     emp.FullName,
		ManagerUserID:    emp.ManagerUserID,
		ManagerName:      emp.ManagerName,
		EvaluatorID:      rec.EvaluatorID,
		DepartmentID:     rec.DepartmentID,
		EvaluationType:   rec.EvaluationType,
		ReviewDate:       rec.ReviewDate,
		EvaluationPeriod: rec.EvaluationPeriod,
		WeekNumber:       rec.WeekNumber,
		Year:             rec.Year,
		Scores:           rec.Scores,
		Comments:         rec.Comments,
		TotalScore:       rec.TotalScore,
		AverageScore:     rec.AverageScore,
		Rank:             rank,
		Remarks:          rec.Remarks,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	if u, ok := s.users[rec.EvaluatorID]; ok {
		ev.EvaluatorEmpID, ev.EvaluatorName = u.EmpID, u.Name
	}
	for _, d := range s.departments {
		if d.ID == rec.DepartmentID {
			ev.DepartmentCode, ev.DepartmentName = d.Code, d.Name
		}
	}
	return ev
}

func (s *memStore) GetEvaluation(_ context.Context, id string) (*Evaluation, error) {
	rec, ok := s.evaluations[id]
	if !ok {
		return nil, errNotFound
	}
	ev := s.materialize(rec, s.ranks[id], s.created[id])
	return &ev, nil
}

func (s *memStore) filtered(filter ListFilter) []Evaluation {
	var out []Evaluation
	for id, rec := range s.evaluations {
		ev := s.materialize(rec, s.ranks[id], s.created[id])
		if filter.TeamOfUserID != "" && ev.ManagerUserID != filter.TeamOfUserID && ev.EmployeeUserID != filter.TeamOfUserID {
			continue
		}
		if filter.SelfUserID != "" && ev.EmployeeUserID != filter.SelfUserID {
			continue
		}
		if filter.Year != 0 && ev.Year != filter.Year {
			continue
		}
		if filter.Week != 0 && ev.WeekNumber != filter.Week {
			continue
		}
		if filter.EvaluationType != "" && ev.EvaluationType != filter.EvaluationType {
			continue
		}
		if filter.EmpID != "" && !strings.EqualFold(ev.EmployeeEmpID, filter.EmpID) {
			continue
		}
		if filter.Department != "" && !strings.EqualFold(ev.DepartmentCode, filter.Department) && !strings.EqualFold(ev.DepartmentName, filter.Department) {
			continue
		}
		out = append(out, ev)
	}
	slices.SortFunc(out, func(a, b Evaluation) int {
		switch filter.Order {
		case OrderRank:
			ra, rb := 1<<30, 1<<30
			if a.Rank != nil {
				ra = *a.Rank
			}
			if b.Rank != nil {
				rb = *b.Rank
			}
			if ra != rb {
				return ra - rb
			}
			return b.TotalScore - a.TotalScore
		case OrderScore:
			return b.TotalScore - a.TotalScore
		default:
			if a.Year != b.Year {
				return b.Year - a.Year
			}
			return b.WeekNumber - a.WeekNumber
		}
	})
	return out
}

func (s *memStore) CountEvaluations(_ context.Context, filter ListFilter) (int, error) {
	return len(s.filtered(filter)), nil
}

func (s *memStore) ListEvaluations(_ context.Context, filter ListFilter, limit, offset int) ([]Evaluation, error) {
	items := s.filtered(filter)
	if offset >= len(items) {
		return []Evaluation{}, nil
	}
	return items[offset:min(len(items), offset+limit)], nil
}

func (s *memStore) SummaryStats(_ context.Context, filter ListFilter) (Summary, error) {
	items := s.filtered(filter)
	summary := Summary{TotalEvaluations: len(items)}
	employees := map[string]bool{}
	var sum float64
	for i, ev := range items {
		employees[ev.EmployeeID] = true
		sum += ev.AverageScore
		if i == 0 || ev.TotalScore > summary.BestScore {
			summary.BestScore = ev.TotalScore
		}
		if i == 0 || ev.TotalScore < summary.WorstScore {
			summary.WorstScore = ev.TotalScore
		}
	}
	summary.TotalEmployees = len(employees)
	if len(items) > 0 {
		summary.AverageScore = sum / float64(len(items))
	}
	return summary, nil
}

func (s *memStore) LatestPeriod(_ context.Context, evaluationType string, scope Scope) (Period, bool, error) {
	items := s.filtered(ListFilter{Scope: scope, EvaluationType: evaluationType})
	if len(items) == 0 {
		return Period{}, false, nil
	}
	return Period{Year: items[0].Year, Week: items[0].WeekNumber}, true, nil
}

func (s *memStore) UnrankedGroups(context.Context) ([]Group, error) {
	seen := map[Group]bool{}
	var out []Group
	for id, rec := range s.evaluations {
		if s.ranks[id] == nil && !seen[rec.Group()] {
			seen[rec.Group()] = true
			out = append(out, rec.Group())
		}
	}
	return out, nil
}

type memTx struct {
	store       *memStore
	evaluations map[string]Record
	ranks       map[string]*int
	created     map[string]time.Time
}

func (t *memTx) FindEmployee(_ context.Context, empID string) (EmployeeRef, error) {
	return t.store.findEmployee(empID)
}

func (t *memTx) FindUserByEmpID(_ context.Context, empID string) (UserRef, error) {
	for _, u := range t.store.users {
		if strings.EqualFold(u.EmpID, empID) {
			return UserRef{ID: u.ID, EmpID: u.EmpID}, nil
		}
	}
	return UserRef{}, errNotFound
}

func (t *memTx) FindUserByID(_ context.Context, userID string) (UserRef, error) {
	u, ok := t.store.users[userID]
	if !ok {
		return UserRef{}, errNotFound
	}
	return UserRef{ID: u.ID, EmpID: u.EmpID}, nil
}

func (t *memTx) FindActiveDepartment(_ context.Context, code string) (DepartmentRef, error) {
	for _, d := range t.store.departments {
		if strings.EqualFold(d.Code, code) && d.Active {
			return DepartmentRef{ID: d.ID, Code: d.Code, Name: d.Name}, nil
		}
	}
	return DepartmentRef{}, errNotFound
}

func (t *memTx) LockEvaluationKey(_ context.Context, key DedupKey) error {
	t.store.locks = append(t.store.locks, key)
	return nil
}

func (t *memTx) EvaluationExists(_ context.Context, key DedupKey) (bool, error) {
	for _, rec := range t.evaluations {
		if rec.EmployeeID == key.EmployeeID && rec.Year == key.Year && rec.WeekNumber == key.Week && rec.EvaluationType == key.EvaluationType {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertEvaluation(_ context.Context, rec Record) (string, error) {
	t.store.nextID++
	t.store.inserts++
	rec.ID = fmt.Sprintf("ev-%d", t.store.nextID)
	t.evaluations[rec.ID] = rec
	t.created[rec.ID] = t.store.clock.Add(time.Duration(t.store.nextID) * time.Minute)
	return rec.ID, nil
}

func (t *memTx) PeekGroup(_ context.Context, id string) (Group, error) {
	rec, ok := t.evaluations[id]
	if !ok {
		return Group{}, errNotFound
	}
	return rec.Group(), nil
}

func (t *memTx) LockGroups(_ context.Context, groups []Group) error {
	for _, g := range orderedGroups(groups) {
		t.store.lockLog = append(t.store.lockLog, fmt.Sprintf("group:%d-%d-%s", g.Year, g.Week, g.EvaluationType))
	}
	return nil
}

func (t *memTx) LoadRecord(_ context.Context, id string) (Record, error) {
	rec, ok := t.evaluations[id]
	if !ok {
		return Record{}, errNotFound
	}
	t.store.lockLog = append(t.store.lockLog, "row:"+id)
	return rec, nil
}

func (t *memTx) UpdateEvaluation(_ context.Context, rec Record) error {
	if _, ok := t.evaluations[rec.ID]; !ok {
		return errNotFound
	}
	t.evaluations[rec.ID] = rec
	return nil
}

func (t *memTx) RankGroup(_ context.Context, group Group) error {
	t.store.rankCalls = append(t.store.rankCalls, group)
	if t.store.rankErr != nil {
		return &RankingError{Group: group, Err: t.store.rankErr}
	}
	var entries []RankEntry
	for id, rec := range t.evaluations {
		if rec.Group() == group {
			entries = append(entries, RankEntry{ID: id, TotalScore: rec.TotalScore, AverageScore: rec.AverageScore, ReviewDate: rec.ReviewDate, CreatedAt: t.created[id]})
		}
	}
	for _, a := range AssignRanks(entries) {
		t.ranks[a.ID] = IntPtr(a.Rank)
	}
	return nil
}

func (t *memTx) GetEvaluation(_ context.Context, id string) (*Evaluation, error) {
	rec, ok := t.evaluations[id]
	if !ok {
		return nil, errNotFound
	}
	ev := t.store.materialize(rec, t.ranks[id], t.created[id])
	return &ev, nil
}

var errRankBoom = errors.New("rank boom")

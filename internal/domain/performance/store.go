package performance

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
	queries
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{DB: pool, queries: queries{q: pool}}
}

func (s *Store) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	return db.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx, queries: queries{q: tx}})
	})
}

// queries holds the statements shared by pool and transaction scoped stores.
type queries struct {
	q db.Querier
}

var metricColumns, commentColumns string

func init() {
	names := make([]string, MetricCount)
	comments := make([]string, MetricCount)
	for i, m := range Metrics() {
		names[i] = m.Name()
		comments[i] = m.CommentKey()
	}
	metricColumns = strings.Join(names, ", ")
	commentColumns = strings.Join(comments, ", ")
}

func noRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return errNotFound
	}
	return err
}

const employeeRefSelect = `
    SELECT e.id, u.id, u.emp_id, trim(u.first_name || ' ' || u.last_name),
           COALESCE(e.department_id::text, ''), COALESCE(d.name, ''),
           COALESCE(mu.id::text, ''), COALESCE(trim(mu.first_name || ' ' || mu.last_name), '')
    FROM employees e
    JOIN users u ON u.id = e.user_id
    LEFT JOIN departments d ON d.id = e.department_id
    LEFT JOIN employees m ON m.id = e.manager_id
    LEFT JOIN users mu ON mu.id = m.user_id
    WHERE lower(u.emp_id) = lower($1) AND e.is_deleted = false
`

func (s queries) FindEmployee(ctx context.Context, empID string) (EmployeeRef, error) {
	var ref EmployeeRef
	err := s.q.QueryRow(ctx, employeeRefSelect, strings.TrimSpace(empID)).Scan(
		&ref.ID, &ref.UserID, &ref.EmpID, &ref.FullName, &ref.DepartmentID, &ref.DepartmentName, &ref.ManagerUserID, &ref.ManagerName,
	)
	return ref, noRows(err)
}

func (s queries) evaluationSelect() string {
	return `
    SELECT pe.id, e.id, eu.id, eu.emp_id, trim(eu.first_name || ' ' || eu.last_name),
           COALESCE(mu.id::text, ''), COALESCE(trim(mu.first_name || ' ' || mu.last_name), ''),
           COALESCE(ev.id::text, ''), COALESCE(ev.emp_id, ''), COALESCE(trim(ev.first_name || ' ' || ev.last_name), ''),
           COALESCE(d.id::text, ''), COALESCE(d.code, ''), COALESCE(d.name, ''),
           pe.evaluation_type, pe.review_date, pe.evaluation_period, pe.week_number, pe.year,
           ` + metricColumns + `,
           ` + commentColumns + `,
           pe.total_score, pe.average_score::float8, pe.rank, pe.remarks, pe.created_at, pe.updated_at
    FROM performance_evaluations pe
    JOIN employees e ON e.id = pe.employee_id
    JOIN users eu ON eu.id = e.user_id
    LEFT JOIN users ev ON ev.id = pe.evaluator_id
    LEFT JOIN departments d ON d.id = pe.department_id
    LEFT JOIN employees m ON m.id = e.manager_id
    LEFT JOIN users mu ON mu.id = m.user_id
`
}

func scanEvaluation(row pgx.Row) (*Evaluation, error) {
	var ev Evaluation
	dest := []any{
		&ev.ID, &ev.EmployeeID, &ev.EmployeeUserID, &ev.EmployeeEmpID, &ev.EmployeeName,
		&ev.ManagerUserID, &ev.ManagerName,
		&ev.EvaluatorID, &ev.EvaluatorEmpID, &ev.EvaluatorName,
		&ev.DepartmentID, &ev.DepartmentCode, &ev.DepartmentName,
		&ev.EvaluationType, &ev.ReviewDate, &ev.EvaluationPeriod, &ev.WeekNumber, &ev.Year,
	}
	for i := range MetricCount {
		dest = append(dest, &ev.Scores[i])
	}
	for i := range MetricCount {
		dest = append(dest, &ev.Comments[i])
	}
	dest = append(dest, &ev.TotalScore, &ev.AverageScore, &ev.Rank, &ev.Remarks, &ev.CreatedAt, &ev.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, noRows(err)
	}
	return &ev, nil
}

func (s queries) GetEvaluation(ctx context.Context, id string) (*Evaluation, error) {
	return scanEvaluation(s.q.QueryRow(ctx, s.evaluationSelect()+" WHERE pe.id::text = $1", id))
}

func buildListQuery(prefix string, filter ListFilter) (string, []any) {
	query := prefix + " WHERE e.is_deleted = false"
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		query += " AND " + strings.ReplaceAll(clause, "$?", fmt.Sprintf("$%d", len(args)))
	}
	if filter.TeamOfUserID != "" {
		add("(mu.id = $? OR eu.id = $?)", filter.TeamOfUserID)
	}
	if filter.SelfUserID != "" {
		add("eu.id = $?", filter.SelfUserID)
	}
	if filter.Year != 0 {
		add("pe.year = $?", filter.Year)
	}
	if filter.Week != 0 {
		add("pe.week_number = $?", filter.Week)
	}
	if filter.EvaluationType != "" {
		add("pe.evaluation_type = $?", filter.EvaluationType)
	}
	if filter.Department != "" {
		add("(lower(d.code) = lower($?) OR lower(d.name) = lower($?))", filter.Department)
	}
	if filter.EmpID != "" {
		add("lower(eu.emp_id) = lower($?)", filter.EmpID)
	}
	return query, args
}

func orderClause(order string) string {
	switch order {
	case OrderRank:
		return " ORDER BY pe.rank ASC NULLS LAST, pe.total_score DESC, pe.created_at ASC, pe.id ASC"
	case OrderScore:
		return " ORDER BY pe.total_score DESC, pe.average_score DESC, pe.created_at ASC, pe.id ASC"
	default:
		return " ORDER BY pe.year DESC, pe.week_number DESC, pe.created_at DESC, pe.id ASC"
	}
}

const listJoins = `
    FROM performance_evaluations pe
    JOIN employees e ON e.id = pe.employee_id
    JOIN users eu ON eu.id = e.user_id
    LEFT JOIN departments d ON d.id = pe.department_id
    LEFT JOIN employees m ON m.id = e.manager_id
    LEFT JOIN users mu ON mu.id = m.user_id
`

func (s queries) CountEvaluations(ctx context.Context, filter ListFilter) (int, error) {
	query, args := buildListQuery("SELECT COUNT(1)"+listJoins, filter)
	var total int
	if err := s.q.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s queries) ListEvaluations(ctx context.Context, filter ListFilter, limit, offset int) ([]Evaluation, error) {
	query, args := buildListQuery(s.evaluationSelect(), filter)
	query += orderClause(filter.Order)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Evaluation, 0)
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func (s queries) SummaryStats(ctx context.Context, filter ListFilter) (Summary, error) {
	var summary Summary
	query, args := buildListQuery(`
    SELECT COUNT(1), COUNT(DISTINCT pe.employee_id),
           COALESCE(ROUND(AVG(pe.average_score), 2), 0)::float8,
           COALESCE(MAX(pe.total_score), 0), COALESCE(MIN(pe.total_score), 0)`+listJoins, filter)
	if err := s.q.QueryRow(ctx, query, args...).Scan(
		&summary.TotalEvaluations, &summary.TotalEmployees, &summary.AverageScore, &summary.BestScore, &summary.WorstScore,
	); err != nil {
		return Summary{}, err
	}

	query, args = buildListQuery(`
    SELECT COALESCE(d.name, 'Unassigned'), COUNT(1), ROUND(AVG(pe.average_score), 2)::float8`+listJoins, filter)
	query += " GROUP BY d.name ORDER BY 3 DESC, 1"
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()

	summary.Departments = make([]DepartmentAverage, 0)
	for rows.Next() {
		var dep DepartmentAverage
		if err := rows.Scan(&dep.DepartmentName, &dep.Evaluations, &dep.AverageScore); err != nil {
			return Summary{}, err
		}
		summary.Departments = append(summary.Departments, dep)
	}
	return summary, rows.Err()
}

func (s queries) LatestPeriod(ctx context.Context, evaluationType string, scope Scope) (Period, bool, error) {
	query, args := buildListQuery("SELECT pe.year, pe.week_number"+listJoins, ListFilter{Scope: scope, EvaluationType: evaluationType})
	query += " ORDER BY pe.year DESC, pe.week_number DESC LIMIT 1"
	var p Period
	err := s.q.QueryRow(ctx, query, args...).Scan(&p.Year, &p.Week)
	if errors.Is(err, pgx.ErrNoRows) {
		return Period{}, false, nil
	}
	if err != nil {
		return Period{}, false, err
	}
	return p, true, nil
}

func (s queries) UnrankedGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.q.Query(ctx, `
    SELECT DISTINCT year, week_number, evaluation_type
    FROM performance_evaluations
    WHERE rank IS NULL
    ORDER BY year, week_number, evaluation_type
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.Year, &g.Week, &g.EvaluationType); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

type txStore struct {
	tx pgx.Tx
	queries
}

func (s *txStore) FindUserByEmpID(ctx context.Context, empID string) (UserRef, error) {
	var ref UserRef
	err := s.tx.QueryRow(ctx, "SELECT id, emp_id FROM users WHERE lower(emp_id) = lower($1)", strings.TrimSpace(empID)).Scan(&ref.ID, &ref.EmpID)
	return ref, noRows(err)
}

func (s *txStore) FindUserByID(ctx context.Context, userID string) (UserRef, error) {
	var ref UserRef
	err := s.tx.QueryRow(ctx, "SELECT id, emp_id FROM users WHERE id::text = $1", userID).Scan(&ref.ID, &ref.EmpID)
	return ref, noRows(err)
}

func (s *txStore) FindActiveDepartment(ctx context.Context, code string) (DepartmentRef, error) {
	var ref DepartmentRef
	err := s.tx.QueryRow(ctx, `
    SELECT id, code, name FROM departments
    WHERE lower(code) = lower($1) AND is_active = true
  `, strings.TrimSpace(code)).Scan(&ref.ID, &ref.Code, &ref.Name)
	return ref, noRows(err)
}

func dedupLockKey(key DedupKey) string {
	return fmt.Sprintf("evaluation:%s:%d:%d:%s", key.EmployeeID, key.Year, key.Week, key.EvaluationType)
}

func groupLockKey(group Group) string {
	return fmt.Sprintf("rank:%d:%d:%s", group.Year, group.Week, group.EvaluationType)
}

func (s *txStore) LockEvaluationKey(ctx context.Context, key DedupKey) error {
	_, err := s.tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", dedupLockKey(key))
	return err
}

func (s *txStore) EvaluationExists(ctx context.Context, key DedupKey) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM performance_evaluations
      WHERE employee_id = $1 AND year = $2 AND week_number = $3 AND evaluation_type = $4
    )
  `, key.EmployeeID, key.Year, key.Week, key.EvaluationType).Scan(&exists)
	return exists, err
}

func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}

func placeholders(from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(parts, ", ")
}

func recordArgs(rec Record) []any {
	args := []any{
		rec.EmployeeID, nullableID(rec.EvaluatorID), nullableID(rec.DepartmentID), rec.EvaluationType,
		rec.ReviewDate, rec.EvaluationPeriod, rec.WeekNumber, rec.Year,
		rec.TotalScore, rec.AverageScore, rec.Remarks,
	}
	for i := range MetricCount {
		args = append(args, rec.Scores[i])
	}
	for i := range MetricCount {
		args = append(args, rec.Comments[i])
	}
	return args
}

const recordFixedColumns = 11

func (s *txStore) InsertEvaluation(ctx context.Context, rec Record) (string, error) {
	query := `
    INSERT INTO performance_evaluations (
      employee_id, evaluator_id, department_id, evaluation_type,
      review_date, evaluation_period, week_number, year,
      total_score, average_score, remarks,
      ` + metricColumns + `,
      ` + commentColumns + `
    ) VALUES (` + placeholders(1, recordFixedColumns+2*MetricCount) + `)
    RETURNING id`
	var id string
	if err := s.tx.QueryRow(ctx, query, recordArgs(rec)...).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (s *txStore) PeekGroup(ctx context.Context, id string) (Group, error) {
	var g Group
	err := s.tx.QueryRow(ctx, `
    SELECT year, week_number, evaluation_type FROM performance_evaluations WHERE id::text = $1
  `, id).Scan(&g.Year, &g.Week, &g.EvaluationType)
	return g, noRows(err)
}

func (s *txStore) LockGroups(ctx context.Context, groups []Group) error {
	for _, g := range orderedGroups(groups) {
		if err := lockGroup(ctx, s.tx, g); err != nil {
			return err
		}
	}
	return nil
}

func lockGroup(ctx context.Context, tx pgx.Tx, group Group) error {
	_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", groupLockKey(group))
	return err
}

func (s *txStore) LoadRecord(ctx context.Context, id string) (Record, error) {
	rec := Record{ID: id}
	dest := []any{
		&rec.ID, &rec.EmployeeID, &rec.EvaluatorID, &rec.DepartmentID, &rec.EvaluationType,
		&rec.ReviewDate, &rec.EvaluationPeriod, &rec.WeekNumber, &rec.Year,
		&rec.TotalScore, &rec.AverageScore, &rec.Remarks,
	}
	for i := range MetricCount {
		dest = append(dest, &rec.Scores[i])
	}
	for i := range MetricCount {
		dest = append(dest, &rec.Comments[i])
	}
	err := s.tx.QueryRow(ctx, `
    SELECT id, employee_id, COALESCE(evaluator_id::text, ''), COALESCE(department_id::text, ''), evaluation_type,
           review_date, evaluation_period, week_number, year,
           total_score, average_score::float8, remarks,
           `+metricColumns+`,
           `+commentColumns+`
    FROM performance_evaluations
    WHERE id::text = $1
    FOR UPDATE
  `, id).Scan(dest...)
	if err != nil {
		return Record{}, noRows(err)
	}
	return rec, nil
}

func (s *txStore) UpdateEvaluation(ctx context.Context, rec Record) error {
	columns := []string{
		"employee_id", "evaluator_id", "department_id", "evaluation_type",
		"review_date", "evaluation_period", "week_number", "year",
		"total_score", "average_score", "remarks",
	}
	for _, m := range Metrics() {
		columns = append(columns, m.Name())
	}
	for _, m := range Metrics() {
		columns = append(columns, m.CommentKey())
	}
	sets := make([]string, len(columns))
	for i, col := range columns {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
	}
	args := append(recordArgs(rec), rec.ID)
	query := fmt.Sprintf("UPDATE performance_evaluations SET %s, updated_at = now() WHERE id = $%d", strings.Join(sets, ", "), len(args))
	tag, err := s.tx.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errNotFound
	}
	return nil
}

// RankGroup recomputes ranks for group inside a savepoint so a failure here
// leaves the surrounding write intact.
func (s *txStore) RankGroup(ctx context.Context, group Group) error {
	err := db.Savepoint(ctx, s.tx, func(tx pgx.Tx) error {
		if err := lockGroup(ctx, tx, group); err != nil {
			return err
		}
		entries, err := loadGroup(ctx, tx, group)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}

		batch := &pgx.Batch{}
		for _, a := range AssignRanks(entries) {
			batch.Queue("UPDATE performance_evaluations SET rank = $1 WHERE id = $2 AND rank IS DISTINCT FROM $1", a.Rank, a.ID)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return &RankingError{Group: group, Err: err}
	}
	return nil
}

func loadGroup(ctx context.Context, tx pgx.Tx, group Group) ([]RankEntry, error) {
	rows, err := tx.Query(ctx, `
    SELECT id, total_score, average_score::float8, review_date, created_at
    FROM performance_evaluations
    WHERE year = $1 AND week_number = $2 AND evaluation_type = $3
  `, group.Year, group.Week, group.EvaluationType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []RankEntry
	for rows.Next() {
		var e RankEntry
		var reviewDate *time.Time
		if err := rows.Scan(&e.ID, &e.TotalScore, &e.AverageScore, &reviewDate, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ReviewDate = reviewDate
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

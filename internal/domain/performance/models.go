package performance

import (
	"encoding/json"
	"time"
)

// Evaluation is the materialized read shape of one performance review.
type Evaluation struct {
	ID               string
	EmployeeID       string
	EmployeeUserID   string
	EmployeeEmpID    string
	EmployeeName     string
	ManagerUserID    string
	ManagerName      string
	EvaluatorID      string
	EvaluatorEmpID   string
	EvaluatorName    string
	DepartmentID     string
	DepartmentCode   string
	DepartmentName   string
	EvaluationType   string
	ReviewDate       *time.Time
	EvaluationPeriod string
	WeekNumber       int
	Year             int
	Scores           Scores
	Comments         Comments
	TotalScore       int
	AverageScore     float64
	Rank             *int
	Remarks          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (e Evaluation) Group() Group {
	return Group{Year: e.Year, Week: e.WeekNumber, EvaluationType: e.EvaluationType}
}

// MetricsMap returns scores and comments keyed by field name.
func (e Evaluation) MetricsMap() map[string]any {
	out := make(map[string]any, MetricCount*2)
	for _, m := range Metrics() {
		out[m.Name()] = e.Scores[m]
		out[m.CommentKey()] = e.Comments[m]
	}
	return out
}

type evaluationJSON struct {
	ID               string         `json:"id"`
	EmployeeEmpID    string         `json:"employee_emp_id"`
	EmployeeName     string         `json:"employee_name"`
	ManagerName      string         `json:"manager_name"`
	EvaluatorEmpID   string         `json:"evaluator_emp_id,omitempty"`
	EvaluatorName    string         `json:"evaluator_name,omitempty"`
	DepartmentCode   string         `json:"department_code,omitempty"`
	DepartmentName   *string        `json:"department_name"`
	EvaluationType   string         `json:"evaluation_type"`
	ReviewDate       *string        `json:"review_date"`
	EvaluationPeriod string         `json:"evaluation_period"`
	WeekNumber       int            `json:"week_number"`
	Year             int            `json:"year"`
	Metrics          map[string]any `json:"metrics"`
	TotalScore       int            `json:"total_score"`
	AverageScore     float64        `json:"average_score"`
	Rank             *int           `json:"rank"`
	ScoreDisplay     string         `json:"score_display"`
	ScoreCategory    string         `json:"score_category"`
	Remarks          string         `json:"remarks"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func (e Evaluation) MarshalJSON() ([]byte, error) {
	out := evaluationJSON{
		ID:               e.ID,
		EmployeeEmpID:    e.EmployeeEmpID,
		EmployeeName:     e.EmployeeName,
		ManagerName:      e.ManagerName,
		EvaluatorEmpID:   e.EvaluatorEmpID,
		EvaluatorName:    e.EvaluatorName,
		DepartmentCode:   e.DepartmentCode,
		EvaluationType:   e.EvaluationType,
		EvaluationPeriod: e.EvaluationPeriod,
		WeekNumber:       e.WeekNumber,
		Year:             e.Year,
		Metrics:          e.MetricsMap(),
		TotalScore:       e.TotalScore,
		AverageScore:     e.AverageScore,
		Rank:             e.Rank,
		ScoreDisplay:     ScoreDisplay(e.TotalScore),
		ScoreCategory:    ScoreCategory(e.AverageScore),
		Remarks:          e.Remarks,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
	if e.DepartmentName != "" {
		out.DepartmentName = &e.DepartmentName
	}
	if e.ReviewDate != nil {
		d := e.ReviewDate.Format("2006-01-02")
		out.ReviewDate = &d
	}
	if out.ManagerName == "" {
		out.ManagerName = "-"
	}
	return json.Marshal(out)
}

// Record is the write shape persisted for an evaluation.
type Record struct {
	ID               string
	EmployeeID       string
	EvaluatorID      string
	DepartmentID     string
	EvaluationType   string
	ReviewDate       *time.Time
	EvaluationPeriod string
	WeekNumber       int
	Year             int
	Scores           Scores
	Comments         Comments
	TotalScore       int
	AverageScore     float64
	Remarks          string
}

func (r Record) Group() Group {
	return Group{Year: r.Year, Week: r.WeekNumber, EvaluationType: r.EvaluationType}
}

// DedupKey identifies the one evaluation allowed per employee, week and type.
type DedupKey struct {
	EmployeeID     string
	Year           int
	Week           int
	EvaluationType string
}

type EmployeeRef struct {
	ID             string
	UserID         string
	EmpID          string
	FullName       string
	DepartmentID   string
	DepartmentName string
	ManagerUserID  string
	ManagerName    string
}

type UserRef struct {
	ID    string
	EmpID string
}

type DepartmentRef struct {
	ID   string
	Code string
	Name string
}

// Scope limits reads to what an actor may see. Empty fields mean no limit.
type Scope struct {
	// TeamOfUserID matches evaluations of employees managed by that user, plus
	// the user's own.
	TeamOfUserID string
	SelfUserID   string
}

const (
	OrderRecent = "recent"
	OrderRank   = "rank"
	OrderScore  = "score"
)

type ListFilter struct {
	Scope
	Year           int
	Week           int
	EvaluationType string
	Department     string
	EmpID          string
	Order          string
}

type RankRow struct {
	EmpID          string  `json:"emp_id"`
	FullName       string  `json:"full_name"`
	DepartmentName string  `json:"department_name"`
	TotalScore     int     `json:"total_score"`
	AverageScore   float64 `json:"average_score"`
	Rank           *int    `json:"rank"`
	ScoreDisplay   string  `json:"score_display"`
}

func NewRankRow(e Evaluation) RankRow {
	return RankRow{
		EmpID:          e.EmployeeEmpID,
		FullName:       e.EmployeeName,
		DepartmentName: e.DepartmentName,
		TotalScore:     e.TotalScore,
		AverageScore:   e.AverageScore,
		Rank:           e.Rank,
		ScoreDisplay:   ScoreDisplay(e.TotalScore),
	}
}

type DepartmentAverage struct {
	DepartmentName string  `json:"department_name"`
	Evaluations    int     `json:"evaluations"`
	AverageScore   float64 `json:"average_score"`
}

type Summary struct {
	TotalEvaluations int                 `json:"total_evaluations"`
	TotalEmployees   int                 `json:"total_employees"`
	AverageScore     float64             `json:"average_score"`
	BestScore        int                 `json:"best_score"`
	WorstScore       int                 `json:"worst_score"`
	TopPerformers    []RankRow           `json:"top_performers"`
	Departments      []DepartmentAverage `json:"departments"`
}

type TrendPoint struct {
	Year         int     `json:"year"`
	Week         int     `json:"week_number"`
	TotalScore   int     `json:"total_score"`
	AverageScore float64 `json:"average_score"`
	Rank         *int    `json:"rank"`
}

type EmployeeDashboard struct {
	EmpID          string       `json:"emp_id"`
	TotalReviews   int          `json:"total_reviews"`
	OverallAverage float64      `json:"overall_average"`
	BestAverage    float64      `json:"best_average"`
	Latest         *Evaluation  `json:"latest"`
	Trend          []TrendPoint `json:"trend"`
	Evaluations    []Evaluation `json:"evaluations"`
}

type OrganizationDashboard struct {
	Group
	Evaluations []Evaluation `json:"evaluations"`
}

type EmployeeInfo struct {
	EmpID          string `json:"emp_id"`
	FullName       string `json:"full_name"`
	DepartmentName string `json:"department_name"`
	ManagerName    string `json:"manager_name"`
}

type EmployeePerformance struct {
	Employee     EmployeeInfo `json:"employee"`
	AverageScore float64      `json:"average_score"`
	Evaluations  []Evaluation `json:"evaluations"`
}

package performance

import (
	"context"
	"errors"
)

// errNotFound is returned by store lookups that matched nothing.
var errNotFound = errors.New("not found")

// StoreAPI is the read side plus a transaction entry point for writes.
type StoreAPI interface {
	InTx(ctx context.Context, fn func(tx TxStore) error) error
	GetEvaluation(ctx context.Context, id string) (*Evaluation, error)
	CountEvaluations(ctx context.Context, filter ListFilter) (int, error)
	ListEvaluations(ctx context.Context, filter ListFilter, limit, offset int) ([]Evaluation, error)
	SummaryStats(ctx context.Context, filter ListFilter) (Summary, error)
	LatestPeriod(ctx context.Context, evaluationType string, scope Scope) (Period, bool, error)
	FindEmployee(ctx context.Context, empID string) (EmployeeRef, error)
	UnrankedGroups(ctx context.Context) ([]Group, error)
}

// TxStore runs inside the transaction of one create or update.
type TxStore interface {
	FindEmployee(ctx context.Context, empID string) (EmployeeRef, error)
	FindUserByEmpID(ctx context.Context, empID string) (UserRef, error)
	FindUserByID(ctx context.Context, userID string) (UserRef, error)
	FindActiveDepartment(ctx context.Context, code string) (DepartmentRef, error)
	// LockEvaluationKey serializes creates for one dedup key until the
	// transaction ends.
	LockEvaluationKey(ctx context.Context, key DedupKey) error
	EvaluationExists(ctx context.Context, key DedupKey) (bool, error)
	InsertEvaluation(ctx context.Context, rec Record) (string, error)
	// PeekGroup reads the current group of an evaluation without locking it.
	PeekGroup(ctx context.Context, id string) (Group, error)
	// LockGroups takes the rank locks of groups in (year, week, type) order.
	// Writers that also lock evaluation rows take these first.
	LockGroups(ctx context.Context, groups []Group) error
	// LoadRecord reads an evaluation and locks its row.
	LoadRecord(ctx context.Context, id string) (Record, error)
	UpdateEvaluation(ctx context.Context, rec Record) error
	// RankGroup rewrites ranks for the whole group. A failure must leave the
	// transaction usable and is reported as a *RankingError.
	RankGroup(ctx context.Context, group Group) error
	GetEvaluation(ctx context.Context, id string) (*Evaluation, error)
}

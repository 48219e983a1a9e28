package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	JobRankRepair = "rank_repair"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunStore persists one row per job run.
type RunStore interface {
	StartRun(ctx context.Context, jobType string) (string, error)
	FinishRun(ctx context.Context, runID, status string, details []byte) error
}

// RunObserver is told how each run ended.
type RunObserver interface {
	JobRun(job, status string)
}

// RankRepairer re-ranks groups left without ranks.
type RankRepairer interface {
	RepairRanks(ctx context.Context) (int, error)
}

type Service struct {
	runs     RunStore
	observer RunObserver
	repairer RankRepairer
	interval time.Duration
	queue    chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(runs RunStore, repairer RankRepairer, interval time.Duration, observer RunObserver) *Service {
	return &Service{
		runs:     runs,
		observer: observer,
		repairer: repairer,
		interval: interval,
		queue:    make(chan job, 32),
	}
}

// Run drains the queue and schedules rank repair until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.interval > 0 && s.repairer != nil {
		go s.scheduleRankRepair(ctx, s.interval)
	}
	s.worker(ctx)
	return nil
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// RepairRanksNow runs a rank repair synchronously and records it.
func (s *Service) RepairRanksNow(ctx context.Context) (any, error) {
	return s.RunNow(ctx, JobRankRepair, s.repairRanks)
}

func (s *Service) repairRanks(ctx context.Context) (any, error) {
	repaired, err := s.repairer.RepairRanks(ctx)
	return map[string]any{"groupsRepaired": repaired}, err
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.runs != nil {
		id, err := s.runs.StartRun(ctx, j.Type)
		if err != nil {
			slog.Warn("job run insert failed", "jobType", j.Type, "err", err)
		}
		runID = id
	}

	details, err := j.Run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	if s.observer != nil {
		s.observer.JobRun(j.Type, status)
	}

	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.runs.FinishRun(ctx, runID, status, detailsJSON); updErr != nil {
			slog.Warn("job run update failed", "jobType", j.Type, "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleRankRepair(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobRankRepair, s.repairRanks)
		}
	}
}

// PoolRuns records runs in the job_runs table.
type PoolRuns struct {
	DB *pgxpool.Pool
}

func (p PoolRuns) StartRun(ctx context.Context, jobType string) (string, error) {
	var id string
	err := p.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, jobType, StatusRunning).Scan(&id)
	return id, err
}

func (p PoolRuns) FinishRun(ctx context.Context, runID, status string, details []byte) error {
	_, err := p.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, details, runID)
	return err
}

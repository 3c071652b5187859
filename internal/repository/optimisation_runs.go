package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

const runColumns = `id, job_id, status, parameters, num_schedules, seed, requested_by, error, created_at, finished_at, version`

func scanRun(row interface{ Scan(...any) error }) (*domain.OptimisationRun, error) {
	run := &domain.OptimisationRun{}
	var (
		parameters []byte
		finishedAt sql.NullTime
	)
	dst := []any{&run.ID, &run.JobID, &run.Status, &parameters, &run.NumSchedules, &run.Seed, &run.RequestedBy, &run.Error, &run.CreatedAt, &finishedAt, &run.Version}
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(parameters, &run.Parameters); err != nil {
		return nil, err
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	run.Schedules = make([]domain.ScheduleResult, 0)

	return run, nil
}

func (r *Repository) CreateOptimisationRun(run *domain.OptimisationRun) error {
	query := `
		INSERT INTO optimisation_runs (job_id, status, parameters, num_schedules, seed, requested_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, version
	`

	parameters, err := json.Marshal(run.Parameters)
	if err != nil {
		return err
	}

	ctx, cancel := r.queryContext()
	defer cancel()

	args := []any{run.JobID, run.Status, parameters, run.NumSchedules, run.Seed, run.RequestedBy}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.ID, &run.CreatedAt, &run.Version)
}

// listRuns 只返回任务本身，不包含排班表
func (r *Repository) listRuns(query string, args ...any) ([]*domain.OptimisationRun, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]*domain.OptimisationRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return runs, nil
}

func (r *Repository) GetAllOptimisationRuns() ([]*domain.OptimisationRun, error) {
	return r.listRuns(`SELECT ` + runColumns + ` FROM optimisation_runs ORDER BY created_at DESC`)
}

func (r *Repository) GetOptimisationRunsByRequester(userID int64) ([]*domain.OptimisationRun, error) {
	query := `SELECT ` + runColumns + ` FROM optimisation_runs WHERE requested_by = $1 ORDER BY created_at DESC`
	return r.listRuns(query, userID)
}

// GetRunSummaryByRequester 按状态统计用户提交的任务，没有任务时返回全零的统计
func (r *Repository) GetRunSummaryByRequester(userID int64) (domain.RunSummary, error) {
	query := `
		SELECT status, COUNT(*), MAX(created_at)
		FROM optimisation_runs
		WHERE requested_by = $1
		GROUP BY status
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	summary := domain.RunSummary{}

	rows, err := r.dbpool.QueryContext(ctx, query, userID)
	if err != nil {
		return summary, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status    domain.RunStatus
			count     int32
			lastRunAt time.Time
		)
		if err := rows.Scan(&status, &count, &lastRunAt); err != nil {
			return summary, err
		}
		summary.Add(status, count)
		if summary.LastRunAt == nil || lastRunAt.After(*summary.LastRunAt) {
			summary.LastRunAt = &lastRunAt
		}
	}

	return summary, rows.Err()
}

func (r *Repository) GetOptimisationRunByJobID(jobID string) (*domain.OptimisationRun, error) {
	query := `SELECT ` + runColumns + ` FROM optimisation_runs WHERE job_id = $1`

	ctx, cancel := r.queryContext()
	defer cancel()

	return scanRun(r.dbpool.QueryRowContext(ctx, query, jobID))
}

// GetOptimisationRunByID 返回任务以及其所有排班表（包括每个实习的分配）
func (r *Repository) GetOptimisationRunByID(id int64) (*domain.OptimisationRun, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	query := `SELECT ` + runColumns + ` FROM optimisation_runs WHERE id = $1`
	run, err := scanRun(r.dbpool.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	query = `
		SELECT
			id, run_index, file_name, viable, non_viable_reason, iterations, fitness,
			mean_ward_util, mean_uniq_deps, mean_uniq_wards,
			num_incorr_num_plac, num_incorrect_length, num_capacity_exceeded, num_double_booked, num_unassigned
		FROM schedule_results
		WHERE optimisation_run_id = $1
		ORDER BY run_index
	`

	rows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resultIndex := make(map[int64]int) // schedule_result_id -> run.Schedules 的下标
	for rows.Next() {
		s := domain.ScheduleResult{}
		dst := []any{
			&s.ID, &s.RunIndex, &s.FileName, &s.Viable, &s.NonViableReason, &s.Iterations, &s.Fitness,
			&s.MeanWardUtil, &s.MeanUniqDeps, &s.MeanUniqWards,
			&s.NumIncorrNumPlac, &s.NumIncorrectLength, &s.NumCapacityExceeded, &s.NumDoubleBooked, &s.NumUnassigned,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		s.Assignments = make([]domain.Assignment, 0)
		resultIndex[s.ID] = len(run.Schedules)
		run.Schedules = append(run.Schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	query = `
		SELECT sa.schedule_result_id, sa.placement_id, sa.ward_id
		FROM schedule_assignments sa
		JOIN schedule_results sr ON sr.id = sa.schedule_result_id
		WHERE sr.optimisation_run_id = $1
		ORDER BY sa.schedule_result_id, sa.placement_id
	`

	assignmentRows, err := r.dbpool.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer assignmentRows.Close()

	for assignmentRows.Next() {
		var (
			resultID int64
			a        domain.Assignment
			wardID   sql.NullInt64
		)
		if err := assignmentRows.Scan(&resultID, &a.PlacementID, &wardID); err != nil {
			return nil, err
		}
		if wardID.Valid {
			a.WardID = &wardID.Int64
		}

		i, exists := resultIndex[resultID]
		if !exists {
			continue
		}
		run.Schedules[i].Assignments = append(run.Schedules[i].Assignments, a)
	}
	if err := assignmentRows.Err(); err != nil {
		return nil, err
	}

	return run, nil
}

// UpdateOptimisationRunStatus 使用 version 做乐观锁，版本不一致时返回 sql.ErrNoRows
func (r *Repository) UpdateOptimisationRunStatus(run *domain.OptimisationRun) error {
	query := `
		UPDATE optimisation_runs
		SET status = $1, error = $2, finished_at = $3, version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	var finishedAt sql.NullTime
	if run.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *run.FinishedAt, Valid: true}
	}

	args := []any{run.Status, run.Error, finishedAt, run.ID, run.Version}
	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&run.Version)
}

// CompleteOptimisationRun 在一个事务中写入所有排班表并把任务标记为已完成
func (r *Repository) CompleteOptimisationRun(run *domain.OptimisationRun, schedules []domain.ScheduleResult) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// 重新执行的任务先删除之前的结果
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedule_results WHERE optimisation_run_id = $1`, run.ID); err != nil {
		return err
	}

	for i := range schedules {
		s := &schedules[i]

		query := `
			INSERT INTO schedule_results (
				optimisation_run_id, run_index, file_name, viable, non_viable_reason, iterations, fitness,
				mean_ward_util, mean_uniq_deps, mean_uniq_wards,
				num_incorr_num_plac, num_incorrect_length, num_capacity_exceeded, num_double_booked, num_unassigned
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING id
		`
		args := []any{
			run.ID, s.RunIndex, s.FileName, s.Viable, s.NonViableReason, s.Iterations, s.Fitness,
			s.MeanWardUtil, s.MeanUniqDeps, s.MeanUniqWards,
			s.NumIncorrNumPlac, s.NumIncorrectLength, s.NumCapacityExceeded, s.NumDoubleBooked, s.NumUnassigned,
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&s.ID); err != nil {
			return err
		}

		for _, a := range s.Assignments {
			query := `
				INSERT INTO schedule_assignments (schedule_result_id, placement_id, ward_id)
				VALUES ($1, $2, $3)
			`

			var wardID sql.NullInt64
			if a.WardID != nil {
				wardID = sql.NullInt64{Int64: *a.WardID, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, query, s.ID, a.PlacementID, wardID); err != nil {
				return err
			}
		}
	}

	finishedAt := time.Now()
	query := `
		UPDATE optimisation_runs
		SET status = $1, error = '', finished_at = $2, version = version + 1
		WHERE id = $3 AND version = $4
		RETURNING version
	`
	if err := tx.QueryRowContext(ctx, query, domain.RunStatusCompleted, finishedAt, run.ID, run.Version).Scan(&run.Version); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	run.Status = domain.RunStatusCompleted
	run.Error = ""
	run.FinishedAt = &finishedAt
	run.Schedules = schedules

	return nil
}

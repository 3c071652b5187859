package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

// CreateStudent 学生已经存在时更新姓名和课程
func (r *Repository) CreateStudent(studentID string, name string, cohort string) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	return upsertStudent(ctx, r.dbpool, studentID, name, cohort)
}

func upsertStudent(ctx context.Context, q querier, studentID string, name string, cohort string) error {
	query := `
		INSERT INTO students (student_id, name, cohort)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id) DO UPDATE SET name = EXCLUDED.name, cohort = EXCLUDED.cohort
	`

	_, err := q.ExecContext(ctx, query, studentID, name, cohort)
	return err
}

// GetStudentCohorts 返回 studentID -> 课程
func (r *Repository) GetStudentCohorts() (map[string]string, error) {
	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, `SELECT student_id, cohort FROM students`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cohorts := make(map[string]string)
	for rows.Next() {
		var studentID, cohort string
		if err := rows.Scan(&studentID, &cohort); err != nil {
			return nil, err
		}
		cohorts[studentID] = cohort
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cohorts, nil
}

func (r *Repository) GetAllPlacements() ([]*domain.Placement, error) {
	query := `
		SELECT
			p.id, p.student_id, s.name, p.name, p.cohort, p.duration, p.start_week, p.start_date,
			p.year_group, p.nurse_associate, p.is_driver,
			p.previous_wards, p.previous_departments, p.allowed_covid_statuses
		FROM placements p
		JOIN students s ON s.student_id = p.student_id
		ORDER BY p.id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	placements := make([]*domain.Placement, 0)
	for rows.Next() {
		p := &domain.Placement{}
		var (
			startDate           sql.NullTime
			previousWards       string
			previousDepartments string
			allowedCovid        string
		)
		dst := []any{
			&p.ID, &p.StudentID, &p.StudentName, &p.Name, &p.Cohort, &p.Duration, &p.Start, &startDate,
			&p.Year, &p.NurseAssociate, &p.IsDriver,
			&previousWards, &previousDepartments, &allowedCovid,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		if startDate.Valid {
			p.StartDate = startDate.Time
		}
		p.PreviousWards = splitList(previousWards)
		p.PreviousDepartments = splitList(previousDepartments)
		p.AllowedCovidStatuses = splitList(allowedCovid)
		placements = append(placements, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return placements, nil
}

func (r *Repository) CreatePlacement(p *domain.Placement) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	return insertPlacement(ctx, r.dbpool, p)
}

func insertPlacement(ctx context.Context, q querier, p *domain.Placement) error {
	query := `
		INSERT INTO placements (
			student_id, name, cohort, duration, start_week, start_date,
			year_group, nurse_associate, is_driver,
			previous_wards, previous_departments, allowed_covid_statuses
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var startDate sql.NullTime
	if !p.StartDate.IsZero() {
		startDate = sql.NullTime{Time: p.StartDate, Valid: true}
	}

	args := []any{
		p.StudentID, p.Name, p.Cohort, p.Duration, p.Start, startDate,
		p.Year, p.NurseAssociate, p.IsDriver,
		joinList(p.PreviousWards), joinList(p.PreviousDepartments), joinList(p.AllowedCovidStatuses),
	}
	return q.QueryRowContext(ctx, query, args...).Scan(&p.ID)
}

// ImportWardsAndPlacements 在一个事务中写入病房、学生和实习，任何一条失败都整体回滚
func (r *Repository) ImportWardsAndPlacements(wards []*domain.Ward, placements []*domain.Placement) error {
	ctx, cancel := r.transactionContext()
	defer cancel()

	tx, err := r.dbpool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, w := range wards {
		if err := insertWard(ctx, tx, w); err != nil {
			return fmt.Errorf("插入病房 %q 失败: %w", w.Name, err)
		}
	}

	students := make(map[string]bool)
	for _, p := range placements {
		if !students[p.StudentID] {
			if err := upsertStudent(ctx, tx, p.StudentID, p.StudentName, p.Cohort); err != nil {
				return fmt.Errorf("插入学生 %q 失败: %w", p.StudentID, err)
			}
			students[p.StudentID] = true
		}

		if err := insertPlacement(ctx, tx, p); err != nil {
			return fmt.Errorf("插入实习 %q 失败: %w", p.Name, err)
		}
	}

	return tx.Commit()
}

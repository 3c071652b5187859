package repository

import (
	"context"
	"database/sql"

	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

func (r *Repository) GetAllWards() ([]*domain.Ward, error) {
	query := `
		SELECT
			id, name, department, audit_expiry_week, covid_status,
			capacity, year1_capacity, year2_capacity, year3_capacity, nurse_associate_capacity,
			needs_driver, dyad
		FROM wards
		ORDER BY id
	`

	ctx, cancel := r.queryContext()
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wards := make([]*domain.Ward, 0)
	for rows.Next() {
		w := &domain.Ward{}
		var auditExpiryWeek sql.NullInt32
		dst := []any{
			&w.ID, &w.Name, &w.Department, &auditExpiryWeek, &w.CovidStatus,
			&w.Capacity, &w.Year1Capacity, &w.Year2Capacity, &w.Year3Capacity, &w.NurseAssociateCapacity,
			&w.NeedsDriver, &w.DYAD,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		if auditExpiryWeek.Valid {
			w.AuditExpiryWeek = &auditExpiryWeek.Int32
		}
		wards = append(wards, w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return wards, nil
}

func (r *Repository) CreateWard(w *domain.Ward) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	return insertWard(ctx, r.dbpool, w)
}

func insertWard(ctx context.Context, q querier, w *domain.Ward) error {
	query := `
		INSERT INTO wards (
			name, department, audit_expiry_week, covid_status,
			capacity, year1_capacity, year2_capacity, year3_capacity, nurse_associate_capacity,
			needs_driver, dyad
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	var auditExpiryWeek sql.NullInt32
	if w.AuditExpiryWeek != nil {
		auditExpiryWeek = sql.NullInt32{Int32: *w.AuditExpiryWeek, Valid: true}
	}

	args := []any{
		w.Name, w.Department, auditExpiryWeek, w.CovidStatus,
		w.Capacity, w.Year1Capacity, w.Year2Capacity, w.Year3Capacity, w.NurseAssociateCapacity,
		w.NeedsDriver, w.DYAD,
	}
	return q.QueryRowContext(ctx, query, args...).Scan(&w.ID)
}

func (r *Repository) DeleteWard(id int64) error {
	ctx, cancel := r.queryContext()
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, `DELETE FROM wards WHERE id = $1`, id)
	return err
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-court-reservation/internal/domain/closure"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

type closureRow struct {
	ID              string    `db:"id"`
	TenantID        string    `db:"tenant_id"`
	ResourceID      *string   `db:"resource_id"`
	Date            time.Time `db:"date"`
	StartMin        *int      `db:"start_min"`
	EndMin          *int      `db:"end_min"`
	CrossesMidnight bool      `db:"crosses_midnight"`
	Active          bool      `db:"active"`
	Reason          string    `db:"reason"`
}

type ClosureRepository struct{ db *sqlx.DB }

func NewClosureRepository(db *sqlx.DB) *ClosureRepository {
	return &ClosureRepository{db: db}
}

func (r *ClosureRepository) ListForRange(ctx context.Context, tenantID, resourceID string, fromDate, toDate time.Time) ([]*closure.Closure, error) {
	var rows []closureRow
	query := `SELECT id, tenant_id, resource_id, date, start_min, end_min, crosses_midnight, active, reason
		FROM closures
		WHERE tenant_id = $1 AND active
		AND (resource_id IS NULL OR resource_id = $2)
		AND date BETWEEN $3 AND $4
		ORDER BY date, start_min NULLS FIRST`
	if err := r.db.SelectContext(ctx, &rows, query, tenantID, resourceID, fromDate, toDate); err != nil {
		return nil, fmt.Errorf("閉鎖設定の取得に失敗: %w", err)
	}

	out := make([]*closure.Closure, len(rows))
	for i, row := range rows {
		out[i] = &closure.Closure{
			ID:              row.ID,
			TenantID:        row.TenantID,
			ResourceID:      row.ResourceID,
			Date:            timerange.DateOnly(row.Date),
			StartMin:        row.StartMin,
			EndMin:          row.EndMin,
			CrossesMidnight: row.CrossesMidnight,
			Active:          row.Active,
			Reason:          row.Reason,
		}
	}
	return out, nil
}

var _ closure.Repository = (*ClosureRepository)(nil)

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

type planRow struct {
	ID       string `db:"id"`
	TenantID string `db:"tenant_id"`
	Name     string `db:"name"`
}

type ruleRow struct {
	ID              string        `db:"id"`
	PlanID          string        `db:"plan_id"`
	Segment         string        `db:"segment"`
	DayOfWeek       sql.NullInt16 `db:"day_of_week"`
	FromMin         int           `db:"from_min"`
	ToMin           int           `db:"to_min"`
	CrossesMidnight bool          `db:"crosses_midnight"`
	DurationMin     int           `db:"duration_min"`
	Price           int64         `db:"price"`
	Priority        int           `db:"priority"`
	ValidFrom       time.Time     `db:"valid_from"`
	ValidTo         *time.Time    `db:"valid_to"`
	Active          bool          `db:"active"`
}

type TariffRepository struct{ db *sqlx.DB }

func NewTariffRepository(db *sqlx.DB) *TariffRepository {
	return &TariffRepository{db: db}
}

// ResolvePlan はコートのプラン、なければコート種別の既定プランを返す
func (r *TariffRepository) ResolvePlan(ctx context.Context, tenantID, resourceID string) (*tariff.Plan, error) {
	exists, err := r.ResourceExists(ctx, tenantID, resourceID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, tariff.ErrResourceNotFound
	}

	var row planRow
	query := `SELECT p.id, p.tenant_id, p.name
		FROM resources r
		LEFT JOIN resource_type_plans d ON d.tenant_id = r.tenant_id AND d.resource_type = r.type
		JOIN tariff_plans p ON p.id = COALESCE(r.plan_id, d.plan_id)
		WHERE r.id = $1 AND r.tenant_id = $2`
	if err := r.db.GetContext(ctx, &row, query, resourceID, tenantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tariff.ErrPlanNotFound
		}
		return nil, fmt.Errorf("料金プラン取得に失敗: %w", err)
	}
	return &tariff.Plan{ID: row.ID, TenantID: row.TenantID, Name: row.Name}, nil
}

// ResourceExists はテナント配下のコートかどうかを返す
func (r *TariffRepository) ResourceExists(ctx context.Context, tenantID, resourceID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM resources WHERE id = $1 AND tenant_id = $2)`, resourceID, tenantID); err != nil {
		return false, fmt.Errorf("コート取得に失敗: %w", err)
	}
	return exists, nil
}

// RulesForDate は曜日・有効期間で絞り込んだ有効ルールを返す
func (r *TariffRepository) RulesForDate(ctx context.Context, planID string, segment tariff.Segment, date time.Time) ([]*tariff.Rule, error) {
	var rows []ruleRow
	query := `SELECT id, plan_id, segment, day_of_week, from_min, to_min, crosses_midnight, duration_min, price, priority, valid_from, valid_to, active
		FROM tariff_rules
		WHERE plan_id = $1 AND segment = $2 AND active
		AND (day_of_week IS NULL OR day_of_week = $3)
		AND valid_from <= $4 AND (valid_to IS NULL OR valid_to >= $4)
		ORDER BY from_min, duration_min`
	if err := r.db.SelectContext(ctx, &rows, query, planID, string(segment), int(date.Weekday()), date); err != nil {
		return nil, fmt.Errorf("料金ルール取得に失敗: %w", err)
	}

	out := make([]*tariff.Rule, 0, len(rows))
	for _, row := range rows {
		rule := &tariff.Rule{
			ID:              row.ID,
			PlanID:          row.PlanID,
			Segment:         tariff.Segment(row.Segment),
			FromMin:         row.FromMin,
			ToMin:           row.ToMin,
			CrossesMidnight: row.CrossesMidnight,
			DurationMin:     row.DurationMin,
			Price:           row.Price,
			Priority:        row.Priority,
			ValidFrom:       timerange.DateOnly(row.ValidFrom),
			Active:          row.Active,
		}
		if row.DayOfWeek.Valid {
			wd := time.Weekday(row.DayOfWeek.Int16)
			rule.DayOfWeek = &wd
		}
		if row.ValidTo != nil {
			to := timerange.DateOnly(*row.ValidTo)
			rule.ValidTo = &to
		}
		out = append(out, rule)
	}
	return out, nil
}

var _ tariff.Repository = (*TariffRepository)(nil)

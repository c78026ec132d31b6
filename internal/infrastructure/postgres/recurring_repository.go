package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-court-reservation/internal/domain/recurring"
	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

type templateRow struct {
	ID          string     `db:"id"`
	TenantID    string     `db:"tenant_id"`
	ResourceID  string     `db:"resource_id"`
	DayOfWeek   int        `db:"day_of_week"`
	StartMin    int        `db:"start_min"`
	DurationMin int        `db:"duration_min"`
	Active      bool       `db:"active"`
	StartDate   time.Time  `db:"start_date"`
	EndDate     *time.Time `db:"end_date"`
	ClientName  string     `db:"client_name"`
	ClientPhone string     `db:"client_phone"`
	ClientEmail string     `db:"client_email"`
	Segment     string     `db:"segment"`
	Notes       string     `db:"notes"`
	CreatedBy   string     `db:"created_by"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

type exceptionRow struct {
	ID          string    `db:"id"`
	TemplateID  string    `db:"template_id"`
	Date        time.Time `db:"date"`
	Action      string    `db:"action"`
	ResourceID  *string   `db:"resource_id"`
	StartMin    *int      `db:"start_min"`
	DurationMin *int      `db:"duration_min"`
	Notes       string    `db:"notes"`
	CreatedAt   time.Time `db:"created_at"`
}

const templateColumns = `id, tenant_id, resource_id, day_of_week, start_min, duration_min, active, start_date, end_date,
	client_name, client_phone, client_email, segment, notes, created_by, created_at, updated_at`

type RecurringRepository struct{ db *sqlx.DB }

func NewRecurringRepository(db *sqlx.DB) *RecurringRepository {
	return &RecurringRepository{db: db}
}

func (r *RecurringRepository) Create(ctx context.Context, t *recurring.Template) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	row := templateRow{
		ID:          t.ID,
		TenantID:    t.TenantID,
		ResourceID:  t.ResourceID,
		DayOfWeek:   int(t.DayOfWeek),
		StartMin:    t.StartMin,
		DurationMin: t.DurationMin,
		Active:      t.Active,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		ClientName:  t.Client.Name,
		ClientPhone: t.Client.Phone,
		ClientEmail: t.Client.Email,
		Segment:     string(t.Segment),
		Notes:       t.Notes,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	query := `INSERT INTO recurring_templates (` + templateColumns + `) VALUES (
		:id, :tenant_id, :resource_id, :day_of_week, :start_min, :duration_min, :active, :start_date, :end_date,
		:client_name, :client_phone, :client_email, :segment, :notes, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("定期予約の作成に失敗: %w", err)
	}
	return nil
}

func (r *RecurringRepository) GetByID(ctx context.Context, id string) (*recurring.Template, error) {
	var row templateRow
	if err := r.db.GetContext(ctx, &row, `SELECT `+templateColumns+` FROM recurring_templates WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, recurring.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("定期予約の取得に失敗: %w", err)
	}
	t := &recurring.Template{
		ID:          row.ID,
		TenantID:    row.TenantID,
		ResourceID:  row.ResourceID,
		DayOfWeek:   time.Weekday(row.DayOfWeek),
		StartMin:    row.StartMin,
		DurationMin: row.DurationMin,
		Active:      row.Active,
		StartDate:   timerange.DateOnly(row.StartDate),
		Client:      reservation.Client{Name: row.ClientName, Phone: row.ClientPhone, Email: row.ClientEmail},
		Segment:     tariff.Segment(row.Segment),
		Notes:       row.Notes,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.EndDate != nil {
		end := timerange.DateOnly(*row.EndDate)
		t.EndDate = &end
	}
	return t, nil
}

func (r *RecurringRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE recurring_templates SET active = $2, updated_at = $3 WHERE id = $1`, id, active, at)
	if err != nil {
		return fmt.Errorf("定期予約の更新に失敗: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return recurring.ErrTemplateNotFound
	}
	return nil
}

// UpsertException は (template_id, date) の一意制約で登録・更新する
func (r *RecurringRepository) UpsertException(ctx context.Context, e *recurring.Exception) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	query := `INSERT INTO recurring_exceptions (id, template_id, date, action, resource_id, start_min, duration_min, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (template_id, date) DO UPDATE SET
			action = EXCLUDED.action,
			resource_id = EXCLUDED.resource_id,
			start_min = EXCLUDED.start_min,
			duration_min = EXCLUDED.duration_min,
			notes = EXCLUDED.notes
		RETURNING id`
	err := r.db.QueryRowxContext(ctx, query,
		e.ID, e.TemplateID, e.Date, string(e.Action), e.ResourceID, e.StartMin, e.DurationMin, e.Notes, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("例外日の登録に失敗: %w", err)
	}
	return nil
}

func (r *RecurringRepository) ExceptionsInRange(ctx context.Context, templateID string, from, to time.Time) (map[string]*recurring.Exception, error) {
	var rows []exceptionRow
	query := `SELECT id, template_id, date, action, resource_id, start_min, duration_min, notes, created_at
		FROM recurring_exceptions WHERE template_id = $1 AND date BETWEEN $2 AND $3`
	if err := r.db.SelectContext(ctx, &rows, query, templateID, from, to); err != nil {
		return nil, fmt.Errorf("例外日の取得に失敗: %w", err)
	}

	out := make(map[string]*recurring.Exception, len(rows))
	for _, row := range rows {
		d := timerange.DateOnly(row.Date)
		out[timerange.FormatDate(d)] = &recurring.Exception{
			ID:          row.ID,
			TemplateID:  row.TemplateID,
			Date:        d,
			Action:      recurring.Action(row.Action),
			ResourceID:  row.ResourceID,
			StartMin:    row.StartMin,
			DurationMin: row.DurationMin,
			Notes:       row.Notes,
			CreatedAt:   row.CreatedAt,
		}
	}
	return out, nil
}

var _ recurring.Repository = (*RecurringRepository)(nil)

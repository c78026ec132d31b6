package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
	"github.com/sanosuguru/go-court-reservation/internal/domain/transaction"
)

const (
	pgExclusionViolation = "23P01"
	pgUniqueViolation    = "23505"
)

type reservationRow struct {
	ID                  string         `db:"id"`
	TenantID            string         `db:"tenant_id"`
	ResourceID          string         `db:"resource_id"`
	Date                time.Time      `db:"date"`
	StartMin            int            `db:"start_min"`
	EndMin              int            `db:"end_min"`
	DayOffset           int            `db:"day_offset"`
	StartsAt            time.Time      `db:"starts_at"`
	EndsAt              time.Time      `db:"ends_at"`
	Status              string         `db:"status"`
	Price               int64          `db:"price"`
	DepositAmount       int64          `db:"deposit_amount"`
	DepositPaid         int64          `db:"deposit_paid"`
	ExpiresAt           *time.Time     `db:"expires_at"`
	RecurringTemplateID *string        `db:"recurring_template_id"`
	ClientName          string         `db:"client_name"`
	ClientPhone         string         `db:"client_phone"`
	ClientEmail         string         `db:"client_email"`
	Origin              string         `db:"origin"`
	IdempotencyKey      sql.NullString `db:"idempotency_key"`
	CreatedBy           string         `db:"created_by"`
	ConfirmedAt         *time.Time     `db:"confirmed_at"`
	CancelledAt         *time.Time     `db:"cancelled_at"`
	CancelledBy         string         `db:"cancelled_by"`
	CancelReason        string         `db:"cancel_reason"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

const reservationColumns = `id, tenant_id, resource_id, date, start_min, end_min, day_offset, starts_at, ends_at,
	status, price, deposit_amount, deposit_paid, expires_at, recurring_template_id,
	client_name, client_phone, client_email, origin, idempotency_key, created_by,
	confirmed_at, cancelled_at, cancelled_by, cancel_reason, created_at, updated_at`

type ReservationRepository struct{ db *sqlx.DB }

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Insert は重なっている期限切れの仮押さえを expired にしてから挿入する
// 重複の最終判定は排他制約 reservations_no_overlap が行う
func (r *ReservationRepository) Insert(ctx context.Context, txi transaction.Tx, res *reservation.Reservation, now time.Time) error {
	tx := UnwrapTx(txi)
	if tx == nil {
		return fmt.Errorf("PostgreSQL のトランザクションが必要です")
	}

	expire := `UPDATE reservations SET status = 'expired', updated_at = $4
		WHERE resource_id = $1 AND status = 'pending_payment' AND expires_at <= $4
		AND tstzrange(starts_at, ends_at, '[)') && tstzrange($2, $3, '[)')`
	if _, err := tx.ExecContext(ctx, expire, res.ResourceID, res.StartsAt, res.EndsAt, now); err != nil {
		return fmt.Errorf("期限切れ仮押さえの更新に失敗: %w", err)
	}

	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	query := `INSERT INTO reservations (` + reservationColumns + `) VALUES (
		:id, :tenant_id, :resource_id, :date, :start_min, :end_min, :day_offset, :starts_at, :ends_at,
		:status, :price, :deposit_amount, :deposit_paid, :expires_at, :recurring_template_id,
		:client_name, :client_phone, :client_email, :origin, :idempotency_key, :created_by,
		:confirmed_at, :cancelled_at, :cancelled_by, :cancel_reason, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, toReservationRow(res)); err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgExclusionViolation:
				return reservation.ErrOverlap
			case pgUniqueViolation:
				return reservation.ErrDuplicateKey
			}
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ReservationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*reservation.Reservation, error) {
	if key == "" {
		return nil, reservation.ErrReservationNotFound
	}
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE idempotency_key = $1`
	if err := r.db.GetContext(ctx, &row, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ReservationRepository) ListActiveInRange(ctx context.Context, resourceID string, from, to, now time.Time) ([]*reservation.Reservation, error) {
	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE resource_id = $1
		AND tstzrange(starts_at, ends_at, '[)') && tstzrange($2, $3, '[)')
		AND (status = 'confirmed' OR (status = 'pending_payment' AND expires_at > $4))
		ORDER BY starts_at`
	if err := r.db.SelectContext(ctx, &rows, query, resourceID, from, to, now); err != nil {
		return nil, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

// UpdateStatus は現在の状態が from に含まれる場合のみ更新する（条件付き UPDATE）
func (r *ReservationRepository) UpdateStatus(ctx context.Context, id string, from []reservation.Status, change reservation.StatusChange) (bool, error) {
	query := `UPDATE reservations SET
		status = $1::text,
		updated_at = $2::timestamptz,
		confirmed_at = CASE WHEN $1::text = 'confirmed' THEN $2::timestamptz ELSE confirmed_at END,
		cancelled_at = CASE WHEN $1::text = 'cancelled' THEN $2::timestamptz ELSE cancelled_at END,
		cancelled_by = CASE WHEN $1::text = 'cancelled' THEN $3 ELSE cancelled_by END,
		cancel_reason = CASE WHEN $1::text = 'cancelled' THEN $4 ELSE cancel_reason END
		WHERE id = $5 AND status = ANY($6)`
	result, err := r.db.ExecContext(ctx, query, string(change.To), change.At, change.Actor, change.Reason, id, pq.Array(statusStrings(from)))
	if err != nil {
		return false, fmt.Errorf("予約状態の更新に失敗: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("予約状態の更新に失敗: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM reservations WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("予約取得に失敗: %w", err)
	}
	if !exists {
		return false, reservation.ErrReservationNotFound
	}
	return false, nil
}

func (r *ReservationRepository) ExpireStaleHolds(ctx context.Context, now time.Time) ([]string, error) {
	var resourceIDs []string
	if err := r.db.SelectContext(ctx, &resourceIDs,
		`UPDATE reservations SET status = 'expired', updated_at = $1
		WHERE status = 'pending_payment' AND expires_at <= $1
		RETURNING resource_id`, now); err != nil {
		return nil, fmt.Errorf("期限切れ仮押さえの失効に失敗: %w", err)
	}
	return resourceIDs, nil
}

func (r *ReservationRepository) LastDateForTemplate(ctx context.Context, templateID string) (*time.Time, error) {
	var last sql.NullTime
	query := `SELECT MAX(date) FROM reservations
		WHERE recurring_template_id = $1 AND status IN ('confirmed', 'pending_payment')`
	if err := r.db.GetContext(ctx, &last, query, templateID); err != nil {
		return nil, fmt.Errorf("生成済み予約の取得に失敗: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	d := timerange.DateOnly(last.Time)
	return &d, nil
}

func (r *ReservationRepository) CancelByTemplate(ctx context.Context, templateID string, fromDate time.Time, change reservation.StatusChange) (int, error) {
	query := `UPDATE reservations SET status = 'cancelled', updated_at = $3, cancelled_at = $3, cancelled_by = $4, cancel_reason = $5
		WHERE recurring_template_id = $1 AND date >= $2 AND status IN ('confirmed', 'pending_payment')`
	result, err := r.db.ExecContext(ctx, query, templateID, fromDate, change.At, change.Actor, change.Reason)
	if err != nil {
		return 0, fmt.Errorf("定期予約のキャンセルに失敗: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// AddPayment は入金記録の追加と内金支払額の加算を同一トランザクションで行う
func (r *ReservationRepository) AddPayment(ctx context.Context, p *reservation.Payment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET deposit_paid = deposit_paid + $2, updated_at = $3 WHERE id = $1`,
		p.ReservationID, p.Amount, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("内金の更新に失敗: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return reservation.ErrReservationNotFound
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payments (id, reservation_id, amount, method, recorded_by, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.ReservationID, p.Amount, string(p.Method), p.RecordedBy, p.CreatedAt); err != nil {
		return fmt.Errorf("入金記録に失敗: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

func toReservationRow(res *reservation.Reservation) *reservationRow {
	row := &reservationRow{
		ID:                  res.ID,
		TenantID:            res.TenantID,
		ResourceID:          res.ResourceID,
		Date:                res.Date,
		StartMin:            res.StartMin,
		EndMin:              res.EndMin,
		DayOffset:           res.DayOffset,
		StartsAt:            res.StartsAt,
		EndsAt:              res.EndsAt,
		Status:              string(res.Status),
		Price:               res.Price,
		DepositAmount:       res.DepositAmount,
		DepositPaid:         res.DepositPaid,
		ExpiresAt:           res.ExpiresAt,
		RecurringTemplateID: res.RecurringTemplateID,
		ClientName:          res.Client.Name,
		ClientPhone:         res.Client.Phone,
		ClientEmail:         res.Client.Email,
		Origin:              string(res.Origin),
		CreatedBy:           res.CreatedBy,
		ConfirmedAt:         res.ConfirmedAt,
		CancelledAt:         res.CancelledAt,
		CancelledBy:         res.CancelledBy,
		CancelReason:        res.CancelReason,
		CreatedAt:           res.CreatedAt,
		UpdatedAt:           res.UpdatedAt,
	}
	if res.IdempotencyKey != "" {
		row.IdempotencyKey = sql.NullString{String: res.IdempotencyKey, Valid: true}
	}
	return row
}

func (row *reservationRow) toEntity() *reservation.Reservation {
	return &reservation.Reservation{
		ID:                  row.ID,
		TenantID:            row.TenantID,
		ResourceID:          row.ResourceID,
		Date:                timerange.DateOnly(row.Date),
		StartMin:            row.StartMin,
		EndMin:              row.EndMin,
		DayOffset:           row.DayOffset,
		StartsAt:            row.StartsAt,
		EndsAt:              row.EndsAt,
		Status:              reservation.Status(row.Status),
		Price:               row.Price,
		DepositAmount:       row.DepositAmount,
		DepositPaid:         row.DepositPaid,
		ExpiresAt:           row.ExpiresAt,
		RecurringTemplateID: row.RecurringTemplateID,
		Client:              reservation.Client{Name: row.ClientName, Phone: row.ClientPhone, Email: row.ClientEmail},
		Origin:              reservation.Origin(row.Origin),
		IdempotencyKey:      row.IdempotencyKey.String,
		CreatedBy:           row.CreatedBy,
		ConfirmedAt:         row.ConfirmedAt,
		CancelledAt:         row.CancelledAt,
		CancelledBy:         row.CancelledBy,
		CancelReason:        row.CancelReason,
		CreatedAt:           row.CreatedAt,
		UpdatedAt:           row.UpdatedAt,
	}
}

func toEntities(rows []reservationRow) []*reservation.Reservation {
	out := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		out[i] = rows[i].toEntity()
	}
	return out
}

func statusStrings(set []reservation.Status) []string {
	out := make([]string, len(set))
	for i, s := range set {
		out[i] = string(s)
	}
	return out
}

var _ reservation.Repository = (*ReservationRepository)(nil)

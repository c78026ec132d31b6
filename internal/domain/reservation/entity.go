package reservation

import (
	"time"

	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

// Status は予約の状態を表す
type Status string

const (
	StatusPendingPayment Status = "pending_payment"
	StatusConfirmed      Status = "confirmed"
	StatusCancelled      Status = "cancelled"
	StatusRejected       Status = "rejected"
	StatusExpired        Status = "expired"
)

// Origin は予約の作成経路
type Origin string

const (
	OriginWeb       Origin = "web"
	OriginStaff     Origin = "staff"
	OriginRecurring Origin = "recurring"
)

// DefaultHold は仮押さえの既定の有効時間
const DefaultHold = 10 * time.Minute

// Client は予約者の連絡先
type Client struct {
	Name  string
	Phone string
	Email string
}

// Reservation は予約エンティティを表す
// Date/StartMin/EndMin/DayOffset は表示用、StartsAt/EndsAt は重複判定に使う絶対時刻
type Reservation struct {
	ID                  string
	TenantID            string
	ResourceID          string
	Date                time.Time
	StartMin            int
	EndMin              int
	DayOffset           int
	StartsAt            time.Time
	EndsAt              time.Time
	Status              Status
	Price               int64
	DepositAmount       int64
	DepositPaid         int64
	ExpiresAt           *time.Time
	RecurringTemplateID *string
	Client              Client
	Origin              Origin
	IdempotencyKey      string
	CreatedBy           string
	ConfirmedAt         *time.Time
	CancelledAt         *time.Time
	CancelledBy         string
	CancelReason        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Draft は予約作成の入力
type Draft struct {
	TenantID            string
	ResourceID          string
	Range               timerange.Range
	Price               int64
	DepositAmount       int64
	Client              Client
	Origin              Origin
	RecurringTemplateID *string
	IdempotencyKey      string
	CreatedBy           string
}

// NewPending は仮押さえ（支払い待ち）の予約を作成する
func NewPending(d Draft, loc *time.Location, now time.Time, hold time.Duration) *Reservation {
	r := newFromDraft(d, loc, now)
	r.Status = StatusPendingPayment
	expiresAt := now.Add(hold)
	r.ExpiresAt = &expiresAt
	return r
}

// NewConfirmed は確定済みの予約を作成する（スタッフ・定期予約用）
func NewConfirmed(d Draft, loc *time.Location, now time.Time) *Reservation {
	r := newFromDraft(d, loc, now)
	r.Status = StatusConfirmed
	r.ConfirmedAt = &now
	return r
}

func newFromDraft(d Draft, loc *time.Location, now time.Time) *Reservation {
	iv := d.Range.Absolute(loc)
	origin := d.Origin
	if origin == "" {
		origin = OriginWeb
	}
	return &Reservation{
		TenantID:            d.TenantID,
		ResourceID:          d.ResourceID,
		Date:                d.Range.Date,
		StartMin:            d.Range.StartMin,
		EndMin:              d.Range.EndClock(),
		DayOffset:           d.Range.DayOffset(),
		StartsAt:            iv.Start,
		EndsAt:              iv.End,
		Price:               d.Price,
		DepositAmount:       d.DepositAmount,
		Client:              d.Client,
		Origin:              origin,
		RecurringTemplateID: d.RecurringTemplateID,
		IdempotencyKey:      d.IdempotencyKey,
		CreatedBy:           d.CreatedBy,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// Range は日付基準の時間帯を返す
func (r *Reservation) Range() timerange.Range {
	return timerange.Decode(r.Date, r.StartMin, r.EndMin, r.DayOffset)
}

// Interval は重複判定に使う絶対時刻の区間を返す
func (r *Reservation) Interval() timerange.Interval {
	return timerange.Interval{Start: r.StartsAt, End: r.EndsAt}
}

// HoldActive は仮押さえが有効期限内かを返す
func (r *Reservation) HoldActive(now time.Time) bool {
	return r.Status == StatusPendingPayment && r.ExpiresAt != nil && now.Before(*r.ExpiresAt)
}

// Blocks は予約が時間帯を占有しているか（確定済み、または期限内の仮押さえ）を返す
func (r *Reservation) Blocks(now time.Time) bool {
	return r.Status == StatusConfirmed || r.HoldActive(now)
}

// IsTerminal はこれ以上の遷移がない状態かを返す
func (r *Reservation) IsTerminal() bool {
	return r.Status == StatusCancelled || r.Status == StatusRejected || r.Status == StatusExpired
}

// OutstandingDeposit は未払いの内金を返す
func (r *Reservation) OutstandingDeposit() int64 {
	if r.DepositPaid >= r.DepositAmount {
		return 0
	}
	return r.DepositAmount - r.DepositPaid
}

// Validate は予約の検証を行う
func (r *Reservation) Validate() error {
	if r.TenantID == "" {
		return ErrTenantIDRequired
	}
	if r.ResourceID == "" {
		return ErrResourceIDRequired
	}
	rg := r.Range()
	if rg.Duration() <= 0 || rg.Duration() >= timerange.MinutesPerDay || !rg.Aligned() {
		return ErrInvalidRange
	}
	if r.Price < 0 || r.DepositAmount < 0 || r.DepositAmount > r.Price {
		return ErrInvalidAmount
	}
	if !r.EndsAt.After(r.StartsAt) {
		return ErrInvalidRange
	}
	return nil
}

// StatusChange は状態遷移の記録
type StatusChange struct {
	To     Status
	At     time.Time
	Actor  string
	Reason string
}

// PaymentMethod は手動入金の方法
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCard     PaymentMethod = "card"
	PaymentGateway  PaymentMethod = "gateway"
)

// Valid は既知の入金方法かを返す
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentTransfer, PaymentCard, PaymentGateway:
		return true
	}
	return false
}

// Payment は予約への入金記録
type Payment struct {
	ID            string
	ReservationID string
	Amount        int64
	Method        PaymentMethod
	RecordedBy    string
	CreatedAt     time.Time
}

package reservation

import "time"

// 予約のライフサイクルイベント種別
const (
	EventConfirmed = "reservation.confirmed"
	EventCancelled = "reservation.cancelled"
)

// Event は外部に通知する予約の状態変化
type Event struct {
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id"`
	TenantID      string    `json:"tenant_id"`
	ResourceID    string    `json:"resource_id"`
	Status        Status    `json:"status"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewEvent は予約の現在の状態からイベントを作成する
func NewEvent(eventType string, r *Reservation, at time.Time) Event {
	return Event{
		Type:          eventType,
		ReservationID: r.ID,
		TenantID:      r.TenantID,
		ResourceID:    r.ResourceID,
		Status:        r.Status,
		StartsAt:      r.StartsAt,
		EndsAt:        r.EndsAt,
		OccurredAt:    at,
	}
}

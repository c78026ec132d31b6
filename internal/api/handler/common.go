package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-court-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/apperror"
)

var errUnauthenticated = apperror.New(apperror.KindAuth, "unauthorized", "認証が必要です")

func actorOf(c echo.Context) (*middleware.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return nil, errUnauthenticated
	}
	return actor, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	return c.Validate(req)
}

// parseSlot は日付と HH:MM の開始・終了を解析する（終了 <= 開始は翌日跨ぎ）
func parseSlot(date, start, end string) (time.Time, int, int, error) {
	d, err := timerange.ParseDate(date)
	if err != nil {
		return time.Time{}, 0, 0, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s, err := timerange.ParseClock(start)
	if err != nil {
		return time.Time{}, 0, 0, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := timerange.ParseClock(end)
	if err != nil {
		return time.Time{}, 0, 0, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return d, s, e, nil
}

func segmentOverride(s string) *tariff.Segment {
	if s == "" {
		return nil
	}
	seg := tariff.Segment(s)
	return &seg
}

// ClientRequest は予約者情報
type ClientRequest struct {
	Name  string `json:"name" validate:"max=120" example:"田中太郎"`
	Phone string `json:"phone" validate:"max=40" example:"+54 11 5555-0000"`
	Email string `json:"email" validate:"omitempty,email" example:"tanaka@example.com"`
}

func (r ClientRequest) toEntity() reservation.Client {
	return reservation.Client{Name: r.Name, Phone: r.Phone, Email: r.Email}
}

type ClientResponse struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

type ReservationResponse struct {
	ID                  string         `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	ResourceID          string         `json:"resource_id" example:"court-1"`
	Date                string         `json:"date" example:"2024-01-10"`
	Start               string         `json:"start" example:"19:00"`
	End                 string         `json:"end" example:"20:30"`
	DayOffset           int            `json:"day_offset"`
	StartsAt            time.Time      `json:"starts_at"`
	EndsAt              time.Time      `json:"ends_at"`
	Status              string         `json:"status" example:"pending_payment"`
	Price               int64          `json:"price" example:"1400"`
	DepositAmount       int64          `json:"deposit_amount" example:"420"`
	DepositPaid         int64          `json:"deposit_paid"`
	ExpiresAt           *time.Time     `json:"expires_at,omitempty"`
	RecurringTemplateID *string        `json:"recurring_template_id,omitempty"`
	Client              ClientResponse `json:"client"`
	Origin              string         `json:"origin" example:"web"`
	ConfirmedAt         *time.Time     `json:"confirmed_at,omitempty"`
	CancelledAt         *time.Time     `json:"cancelled_at,omitempty"`
	CancelReason        string         `json:"cancel_reason,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:                  r.ID,
		ResourceID:          r.ResourceID,
		Date:                timerange.FormatDate(r.Date),
		Start:               timerange.FormatClock(r.StartMin),
		End:                 timerange.FormatClock(r.EndMin),
		DayOffset:           r.DayOffset,
		StartsAt:            r.StartsAt,
		EndsAt:              r.EndsAt,
		Status:              string(r.Status),
		Price:               r.Price,
		DepositAmount:       r.DepositAmount,
		DepositPaid:         r.DepositPaid,
		ExpiresAt:           r.ExpiresAt,
		RecurringTemplateID: r.RecurringTemplateID,
		Client:              ClientResponse{Name: r.Client.Name, Phone: r.Client.Phone, Email: r.Client.Email},
		Origin:              string(r.Origin),
		ConfirmedAt:         r.ConfirmedAt,
		CancelledAt:         r.CancelledAt,
		CancelReason:        r.CancelReason,
		CreatedAt:           r.CreatedAt,
	}
}

func toReservationResponses(rs []*reservation.Reservation) []ReservationResponse {
	resp := make([]ReservationResponse, len(rs))
	for i, r := range rs {
		resp[i] = toReservationResponse(r)
	}
	return resp
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-court-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-court-reservation/internal/application"
	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
)

type ReservationHandler struct {
	booking BookingServiceInterface
	ledger  LedgerServiceInterface
}

func NewReservationHandler(b BookingServiceInterface, l LedgerServiceInterface) *ReservationHandler {
	return &ReservationHandler{booking: b, ledger: l}
}

type CreateReservationRequest struct {
	ResourceID     string        `json:"resource_id" validate:"required" example:"court-1"`
	Date           string        `json:"date" validate:"required,date" example:"2024-01-10"`
	Start          string        `json:"start" validate:"required,clock" example:"19:00"`
	End            string        `json:"end" validate:"required,clock" example:"20:30"`
	Segment        string        `json:"segment,omitempty" validate:"omitempty,oneof=public instructor"`
	Client         ClientRequest `json:"client"`
	IdempotencyKey string        `json:"idempotency_key" validate:"max=100" example:"order-2024-001"`
}

// BookingResponse は仮押さえの結果。決済に必要な値は最上位に置く
type BookingResponse struct {
	ReservationID string              `json:"reservation_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	ExpiresAt     *time.Time          `json:"expires_at,omitempty"`
	PriceTotal    int64               `json:"price_total" example:"1400"`
	DepositAmount int64               `json:"deposit_amount" example:"420"`
	CheckoutURL   string              `json:"checkout_url,omitempty" example:"https://pay.example.com/checkout/550e8400"`
	Reservation   ReservationResponse `json:"reservation"`
	Quote         QuoteResponse       `json:"quote"`
}

// Create godoc
// @Summary 予約を作成
// @Description 料金を計算し、内金の支払い待ちとして枠を仮押さえします（既定10分間有効）
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateReservationRequest true "予約情報"
// @Success 201 {object} BookingResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "枠が既に予約済み"
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req CreateReservationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, start, end, err := parseSlot(req.Date, req.Start, req.End)
	if err != nil {
		return err
	}
	b, err := h.booking.CreateBooking(c.Request().Context(), application.CreateBookingInput{
		TenantID:        actor.TenantID,
		ResourceID:      req.ResourceID,
		Date:            date,
		StartMin:        start,
		EndMin:          end,
		Capabilities:    actor.Capabilities,
		SegmentOverride: segmentOverride(req.Segment),
		Client:          req.Client.toEntity(),
		IdempotencyKey:  req.IdempotencyKey,
		CreatedBy:       actor.UserID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, BookingResponse{
		ReservationID: b.Reservation.ID,
		ExpiresAt:     b.Reservation.ExpiresAt,
		PriceTotal:    b.Reservation.Price,
		DepositAmount: b.Reservation.DepositAmount,
		CheckoutURL:   b.CheckoutURL,
		Reservation:   toReservationResponse(b.Reservation),
		Quote:         toQuoteResponse(req.ResourceID, b.Quote),
	})
}

// GetByID godoc
// @Summary 予約を取得
// @Description 指定IDの予約を取得します
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param id path string true "予約ID"
// @Success 200 {object} ReservationResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{id} [get]
func (h *ReservationHandler) GetByID(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	r, err := h.ownReservation(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

type StaffReservationRequest struct {
	ResourceID     string        `json:"resource_id" validate:"required" example:"court-1"`
	Date           string        `json:"date" validate:"required,date" example:"2024-01-10"`
	Start          string        `json:"start" validate:"required,clock" example:"10:00"`
	End            string        `json:"end" validate:"required,clock" example:"13:00"`
	Segment        string        `json:"segment,omitempty" validate:"omitempty,oneof=public instructor"`
	Price          *int64        `json:"price,omitempty" validate:"omitempty,min=0" example:"3000"`
	Client         ClientRequest `json:"client"`
	IdempotencyKey string        `json:"idempotency_key" validate:"max=100"`
}

// CreateStaff godoc
// @Summary スタッフ予約を作成
// @Description 確定済みの予約を作成します。料金を省略すると30分単位の任意の時間で計算します
// @Tags staff
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body StaffReservationRequest true "予約情報"
// @Success 201 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /staff/reservations [post]
func (h *ReservationHandler) CreateStaff(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req StaffReservationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, start, end, err := parseSlot(req.Date, req.Start, req.End)
	if err != nil {
		return err
	}
	r, err := h.booking.CreateStaffBooking(c.Request().Context(), application.StaffBookingInput{
		TenantID:       actor.TenantID,
		ResourceID:     req.ResourceID,
		Date:           date,
		StartMin:       start,
		EndMin:         end,
		Segment:        tariff.Segment(req.Segment),
		Price:          req.Price,
		Client:         req.Client.toEntity(),
		IdempotencyKey: req.IdempotencyKey,
		CreatedBy:      actor.UserID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toReservationResponse(r))
}

type CancelReservationRequest struct {
	Reason string `json:"reason" validate:"max=500" example:"雨天のため"`
}

// Cancel godoc
// @Summary 予約をキャンセル
// @Description 確定済みまたは支払い待ちの予約をキャンセルし、枠を解放します
// @Tags staff
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "予約ID"
// @Param request body CancelReservationRequest false "キャンセル理由"
// @Success 200 {object} ReservationResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "キャンセルできない状態"
// @Router /reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req CancelReservationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.ownReservation(ctx, actor, c.Param("id")); err != nil {
		return err
	}
	r, err := h.ledger.Cancel(ctx, application.CancelInput{ID: c.Param("id"), Actor: actor.UserID, Reason: req.Reason})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

type ManualPaymentRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0" example:"420"`
	Method string `json:"method" validate:"required,oneof=cash transfer card" example:"cash"`
}

// RecordPayment godoc
// @Summary 入金を記録
// @Description 窓口での入金を記録します。内金に達した支払い待ちの予約は確定します
// @Tags staff
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "予約ID"
// @Param request body ManualPaymentRequest true "入金情報"
// @Success 200 {object} ReservationResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /reservations/{id}/payments [post]
func (h *ReservationHandler) RecordPayment(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req ManualPaymentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.ownReservation(ctx, actor, c.Param("id")); err != nil {
		return err
	}
	r, err := h.ledger.RecordManualPayment(ctx, application.ManualPaymentInput{
		ReservationID: c.Param("id"),
		Amount:        req.Amount,
		Method:        reservation.PaymentMethod(req.Method),
		RecordedBy:    actor.UserID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toReservationResponse(r))
}

// ownReservation は呼び出し元のテナントの予約だけを返す。他テナントの予約は存在しないものとして扱う
func (h *ReservationHandler) ownReservation(ctx context.Context, actor *middleware.Actor, id string) (*reservation.Reservation, error) {
	r, err := h.ledger.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.TenantID != actor.TenantID {
		return nil, reservation.ErrReservationNotFound
	}
	return r, nil
}

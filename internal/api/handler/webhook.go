package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-court-reservation/internal/application"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
)

type WebhookHandler struct {
	ledger LedgerServiceInterface
}

func NewWebhookHandler(l LedgerServiceInterface) *WebhookHandler {
	return &WebhookHandler{ledger: l}
}

type PaymentWebhookRequest struct {
	ReservationID string `json:"reservation_id" validate:"required" example:"550e8400-e29b-41d4-a716-446655440000"`
	Status        string `json:"status" validate:"required" example:"approved"`
	Amount        int64  `json:"amount" validate:"min=0" example:"420"`
}

type PaymentWebhookResponse struct {
	Outcome string `json:"outcome" example:"confirmed"`
}

// Payment godoc
// @Summary 決済結果の通知を受け取る
// @Description 決済代行からの通知で予約を確定・却下します。終了状態の予約や未知の状態は無視します
// @Tags webhooks
// @Accept json
// @Produce json
// @Param X-Webhook-Token header string true "共有トークン"
// @Param request body PaymentWebhookRequest true "決済結果"
// @Success 200 {object} PaymentWebhookResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Router /webhooks/payments [post]
func (h *WebhookHandler) Payment(c echo.Context) error {
	var req PaymentWebhookRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	outcome, err := h.ledger.HandlePaymentEvent(ctx, application.PaymentEvent{
		ReservationID: req.ReservationID,
		Status:        req.Status,
		Amount:        req.Amount,
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("決済通知を処理しました",
		zap.String("reservation_id", req.ReservationID),
		zap.String("status", req.Status),
		zap.String("outcome", string(outcome)),
	)
	return c.JSON(http.StatusOK, PaymentWebhookResponse{Outcome: string(outcome)})
}

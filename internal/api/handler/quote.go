package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-court-reservation/internal/application"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

type QuoteHandler struct {
	service PricingServiceInterface
}

func NewQuoteHandler(s PricingServiceInterface) *QuoteHandler {
	return &QuoteHandler{service: s}
}

type QuoteRequest struct {
	ResourceID string `json:"resource_id" validate:"required" example:"court-1"`
	Date       string `json:"date" validate:"required,date" example:"2024-01-10"`
	Start      string `json:"start" validate:"required,clock" example:"08:30"`
	End        string `json:"end" validate:"required,clock" example:"10:00"`
	Segment    string `json:"segment,omitempty" validate:"omitempty,oneof=public instructor" example:"public"`
}

type QuoteSegmentResponse struct {
	Start    string   `json:"start"`
	End      string   `json:"end"`
	RuleIDs  []string `json:"rule_ids"`
	Subtotal int64    `json:"subtotal"`
}

type QuoteResponse struct {
	ResourceID   string                 `json:"resource_id" example:"court-1"`
	Date         string                 `json:"date" example:"2024-01-10"`
	Start        string                 `json:"start" example:"08:30"`
	End          string                 `json:"end" example:"10:00"`
	DayOffset    int                    `json:"day_offset"`
	DurationMin  int                    `json:"duration_min" example:"90"`
	Segment      string                 `json:"segment" example:"public"`
	TariffPlanID string                 `json:"tariff_plan_id"`
	RuleID       string                 `json:"rule_id,omitempty"`
	RuleIDs      []string               `json:"rule_ids"`
	Hybrid       bool                   `json:"hybrid"`
	PriceTotal   int64                  `json:"price_total" example:"1300"`
	Breakdown    []QuoteSegmentResponse `json:"breakdown,omitempty"`
}

func toQuoteResponse(resourceID string, q *application.Quote) QuoteResponse {
	resp := QuoteResponse{
		ResourceID:   resourceID,
		Date:         timerange.FormatDate(q.Range.Date),
		Start:        timerange.FormatClock(q.Range.StartMin),
		End:          timerange.FormatClock(q.Range.EndMin),
		DayOffset:    q.Range.DayOffset(),
		DurationMin:  q.Range.Duration(),
		Segment:      string(q.Segment),
		TariffPlanID: q.PlanID,
		RuleID:       q.RuleID,
		RuleIDs:      q.RuleIDs,
		Hybrid:       q.Hybrid,
		PriceTotal:   q.Total,
	}
	for _, b := range q.Breakdown {
		resp.Breakdown = append(resp.Breakdown, QuoteSegmentResponse{
			Start:    timerange.FormatClock(b.StartMin),
			End:      timerange.FormatClock(b.EndMin),
			RuleIDs:  b.RuleIDs,
			Subtotal: b.Subtotal,
		})
	}
	return resp
}

// Create godoc
// @Summary 料金を見積もる
// @Description 60/90/120分の枠の料金を計算します。料金帯をまたぐ場合は30分単位の按分になります
// @Tags quotes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body QuoteRequest true "見積もり条件"
// @Success 200 {object} QuoteResponse
// @Failure 400 {object} api.ErrorResponse "対応していない時間"
// @Failure 401 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse "区分の指定はスタッフのみ"
// @Failure 409 {object} api.ErrorResponse "料金が設定されていない"
// @Router /quotes [post]
func (h *QuoteHandler) Create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req QuoteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	date, start, end, err := parseSlot(req.Date, req.Start, req.End)
	if err != nil {
		return err
	}
	q, err := h.service.Quote(c.Request().Context(), application.QuoteInput{
		TenantID:        actor.TenantID,
		ResourceID:      req.ResourceID,
		Date:            date,
		StartMin:        start,
		EndMin:          end,
		Capabilities:    actor.Capabilities,
		SegmentOverride: segmentOverride(req.Segment),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toQuoteResponse(req.ResourceID, q))
}

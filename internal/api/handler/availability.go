package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-court-reservation/internal/application"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

type AvailabilityHandler struct {
	service AvailabilityServiceInterface
}

func NewAvailabilityHandler(s AvailabilityServiceInterface) *AvailabilityHandler {
	return &AvailabilityHandler{service: s}
}

type AvailabilityResponse struct {
	ResourceID string                        `json:"resource_id"`
	Days       []application.DayAvailability `json:"days"`
}

// Get godoc
// @Summary 空き状況を取得
// @Description 指定日から days 日分の30分刻みの開始・終了可否を返します
// @Tags resources
// @Produce json
// @Security BearerAuth
// @Param id path string true "コートID"
// @Param date_from query string true "開始日 (YYYY-MM-DD)"
// @Param days query int false "日数" default(1)
// @Param segment query string false "料金区分（スタッフのみ）"
// @Success 200 {object} AvailabilityResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /resources/{id}/availability [get]
func (h *AvailabilityHandler) Get(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	from, err := timerange.ParseDate(c.QueryParam("date_from"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	days := 1
	if raw := c.QueryParam("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "days は整数で指定してください")
		}
	}

	resourceID := c.Param("id")
	result, err := h.service.Availability(c.Request().Context(), application.AvailabilityInput{
		TenantID:        actor.TenantID,
		ResourceID:      resourceID,
		DateFrom:        from,
		Days:            days,
		Capabilities:    actor.Capabilities,
		SegmentOverride: segmentOverride(c.QueryParam("segment")),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AvailabilityResponse{ResourceID: resourceID, Days: result})
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-court-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-court-reservation/internal/application"
	"github.com/sanosuguru/go-court-reservation/internal/domain/recurring"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

type RecurringHandler struct {
	service RecurringServiceInterface
}

func NewRecurringHandler(s RecurringServiceInterface) *RecurringHandler {
	return &RecurringHandler{service: s}
}

type CreateTemplateRequest struct {
	ResourceID    string        `json:"resource_id" validate:"required" example:"court-1"`
	DayOfWeek     int           `json:"day_of_week" validate:"min=0,max=6" example:"1"`
	Start         string        `json:"start" validate:"required,clock" example:"18:00"`
	DurationMin   int           `json:"duration_min" validate:"required,gt=0" example:"90"`
	StartDate     string        `json:"start_date" validate:"required,date" example:"2024-01-01"`
	EndDate       string        `json:"end_date,omitempty" validate:"omitempty,date" example:"2024-06-30"`
	Client        ClientRequest `json:"client"`
	Segment       string        `json:"segment,omitempty" validate:"omitempty,oneof=public instructor"`
	Notes         string        `json:"notes" validate:"max=500"`
	GenerateWeeks int           `json:"generate_weeks" validate:"min=0,max=52" example:"8"`
	Policy        string        `json:"policy,omitempty" validate:"omitempty,oneof=skip abort" example:"skip"`
}

type TemplateResponse struct {
	ID          string         `json:"id"`
	ResourceID  string         `json:"resource_id"`
	DayOfWeek   int            `json:"day_of_week"`
	Start       string         `json:"start"`
	DurationMin int            `json:"duration_min"`
	Active      bool           `json:"active"`
	StartDate   string         `json:"start_date"`
	EndDate     string         `json:"end_date,omitempty"`
	Client      ClientResponse `json:"client"`
	Segment     string         `json:"segment"`
	Notes       string         `json:"notes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toTemplateResponse(t *recurring.Template) TemplateResponse {
	resp := TemplateResponse{
		ID:          t.ID,
		ResourceID:  t.ResourceID,
		DayOfWeek:   int(t.DayOfWeek),
		Start:       timerange.FormatClock(t.StartMin),
		DurationMin: t.DurationMin,
		Active:      t.Active,
		StartDate:   timerange.FormatDate(t.StartDate),
		Client:      ClientResponse{Name: t.Client.Name, Phone: t.Client.Phone, Email: t.Client.Email},
		Segment:     string(t.Segment),
		Notes:       t.Notes,
		CreatedAt:   t.CreatedAt,
	}
	if t.EndDate != nil {
		resp.EndDate = timerange.FormatDate(*t.EndDate)
	}
	return resp
}

type ConflictResponse struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

type GenerateResponse struct {
	Created      []ReservationResponse `json:"created"`
	Conflicts    []ConflictResponse    `json:"conflicts"`
	Aborted      bool                  `json:"aborted"`
	NextFromDate string                `json:"next_from_date"`
}

func toGenerateResponse(r *application.GenerateResult) *GenerateResponse {
	if r == nil {
		return nil
	}
	resp := &GenerateResponse{
		Created:      toReservationResponses(r.Created),
		Conflicts:    make([]ConflictResponse, len(r.Conflicts)),
		Aborted:      r.Aborted,
		NextFromDate: timerange.FormatDate(r.NextFromDate),
	}
	for i, c := range r.Conflicts {
		resp.Conflicts[i] = ConflictResponse{Date: timerange.FormatDate(c.Date), Reason: c.Reason, Code: c.Code}
	}
	return resp
}

type CreateTemplateResponse struct {
	Template   TemplateResponse  `json:"template"`
	Generation *GenerateResponse `json:"generation,omitempty"`
}

// Create godoc
// @Summary 定期予約を登録
// @Description 毎週同じ曜日・時刻の予約テンプレートを登録し、必要なら指定週数分の予約を生成します
// @Tags recurring
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTemplateRequest true "テンプレート"
// @Success 201 {object} CreateTemplateResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "衝突による中断や生成中"
// @Router /recurring-templates [post]
func (h *RecurringHandler) Create(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req CreateTemplateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	start, err := timerange.ParseClock(req.Start)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	startDate, err := timerange.ParseDate(req.StartDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var endDate *time.Time
	if req.EndDate != "" {
		d, err := timerange.ParseDate(req.EndDate)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		endDate = &d
	}

	t, result, err := h.service.CreateTemplate(c.Request().Context(), application.CreateTemplateInput{
		TenantID:      actor.TenantID,
		ResourceID:    req.ResourceID,
		DayOfWeek:     time.Weekday(req.DayOfWeek),
		StartMin:      start,
		DurationMin:   req.DurationMin,
		StartDate:     startDate,
		EndDate:       endDate,
		Client:        req.Client.toEntity(),
		Segment:       tariff.Segment(req.Segment),
		Notes:         req.Notes,
		CreatedBy:     actor.UserID,
		GenerateWeeks: req.GenerateWeeks,
		Policy:        recurring.ConflictPolicy(req.Policy),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, CreateTemplateResponse{
		Template:   toTemplateResponse(t),
		Generation: toGenerateResponse(result),
	})
}

type RegenerateRequest struct {
	Weeks  int    `json:"weeks" validate:"required,min=1,max=52" example:"4"`
	Policy string `json:"policy,omitempty" validate:"omitempty,oneof=skip abort" example:"skip"`
}

// Regenerate godoc
// @Summary 定期予約を追加生成
// @Description 最後に生成した週の翌週から指定週数分の予約を生成します
// @Tags recurring
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "テンプレートID"
// @Param request body RegenerateRequest true "生成条件"
// @Success 200 {object} GenerateResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "無効化済みまたは生成中"
// @Router /recurring-templates/{id}/regenerate [post]
func (h *RecurringHandler) Regenerate(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req RegenerateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	t, err := h.ownTemplate(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}
	result, err := h.service.Generate(ctx, application.GenerateInput{
		TemplateID: t.ID,
		WeeksAhead: req.Weeks,
		Policy:     recurring.ConflictPolicy(req.Policy),
		Actor:      actor.UserID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toGenerateResponse(result))
}

type DeactivateRequest struct {
	CancelFutureInstances bool   `json:"cancel_future_instances"`
	IncludeToday          bool   `json:"include_today"`
	Reason                string `json:"reason" validate:"max=500"`
}

type DeactivateResponse struct {
	Cancelled int `json:"cancelled"`
}

// Deactivate godoc
// @Summary 定期予約を無効化
// @Description テンプレートを無効化し、必要なら今後の予約をキャンセルします
// @Tags recurring
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "テンプレートID"
// @Param request body DeactivateRequest false "無効化条件"
// @Success 200 {object} DeactivateResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /recurring-templates/{id}/deactivate [post]
func (h *RecurringHandler) Deactivate(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var req DeactivateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	t, err := h.ownTemplate(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}
	n, err := h.service.Deactivate(ctx, application.DeactivateInput{
		TemplateID:            t.ID,
		CancelFutureInstances: req.CancelFutureInstances,
		IncludeToday:          req.IncludeToday,
		Actor:                 actor.UserID,
		Reason:                req.Reason,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, DeactivateResponse{Cancelled: n})
}

// Reactivate godoc
// @Summary 定期予約を再開
// @Description 無効化したテンプレートを有効に戻します（予約は生成しません）
// @Tags recurring
// @Produce json
// @Security BearerAuth
// @Param id path string true "テンプレートID"
// @Success 200 {object} TemplateResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /recurring-templates/{id}/reactivate [post]
func (h *RecurringHandler) Reactivate(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.ownTemplate(ctx, actor, c.Param("id")); err != nil {
		return err
	}
	t, err := h.service.Reactivate(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toTemplateResponse(t))
}

type ExceptionRequest struct {
	Action      string  `json:"action" validate:"required,oneof=skip override" example:"override"`
	ResourceID  *string `json:"resource_id,omitempty"`
	Start       *string `json:"start,omitempty" validate:"omitempty,clock" example:"20:00"`
	DurationMin *int    `json:"duration_min,omitempty" validate:"omitempty,gt=0" example:"60"`
	Notes       string  `json:"notes" validate:"max=500"`
}

type ExceptionResponse struct {
	TemplateID  string  `json:"template_id"`
	Date        string  `json:"date"`
	Action      string  `json:"action"`
	ResourceID  *string `json:"resource_id,omitempty"`
	Start       *string `json:"start,omitempty"`
	DurationMin *int    `json:"duration_min,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// UpsertException godoc
// @Summary 例外日を登録
// @Description 指定日の定期予約をスキップ、またはコート・時刻・時間を変更します。生成済みの予約には影響しません
// @Tags recurring
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "テンプレートID"
// @Param date path string true "対象日 (YYYY-MM-DD)"
// @Param request body ExceptionRequest true "例外内容"
// @Success 200 {object} ExceptionResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /recurring-templates/{id}/exceptions/{date} [put]
func (h *RecurringHandler) UpsertException(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	date, err := timerange.ParseDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var req ExceptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	var start *int
	if req.Start != nil {
		m, err := timerange.ParseClock(*req.Start)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		start = &m
	}

	ctx := c.Request().Context()
	t, err := h.ownTemplate(ctx, actor, c.Param("id"))
	if err != nil {
		return err
	}
	e, err := h.service.UpsertException(ctx, application.UpsertExceptionInput{
		TemplateID:  t.ID,
		Date:        date,
		Action:      recurring.Action(req.Action),
		ResourceID:  req.ResourceID,
		StartMin:    start,
		DurationMin: req.DurationMin,
		Notes:       req.Notes,
	})
	if err != nil {
		return err
	}
	resp := ExceptionResponse{
		TemplateID:  e.TemplateID,
		Date:        timerange.FormatDate(e.Date),
		Action:      string(e.Action),
		ResourceID:  e.ResourceID,
		DurationMin: e.DurationMin,
		Notes:       e.Notes,
	}
	if e.StartMin != nil {
		s := timerange.FormatClock(*e.StartMin)
		resp.Start = &s
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *RecurringHandler) ownTemplate(ctx context.Context, actor *middleware.Actor, id string) (*recurring.Template, error) {
	t, err := h.service.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.TenantID != actor.TenantID {
		return nil, recurring.ErrTemplateNotFound
	}
	return t, nil
}

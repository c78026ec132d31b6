package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-court-reservation/internal/application"
	"github.com/sanosuguru/go-court-reservation/internal/domain/recurring"
	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

func mondayTemplate() *recurring.Template {
	now := time.Date(2024, time.January, 1, 9, 0, 0, 0, time.UTC)
	return &recurring.Template{
		ID:          "tpl-1",
		TenantID:    testTenant,
		ResourceID:  "court-1",
		DayOfWeek:   time.Monday,
		StartMin:    1080,
		DurationMin: 90,
		Active:      true,
		StartDate:   timerange.Date(2024, time.January, 1),
		Client:      reservation.Client{Name: "月曜レッスン"},
		Segment:     tariff.SegmentPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestRecurringHandler_Create(t *testing.T) {
	e := NewTestEcho()

	t.Run("テンプレート登録と初回生成", func(t *testing.T) {
		svc := new(MockRecurringService)
		created := pendingReservation()
		created.Status = reservation.StatusConfirmed
		svc.On("CreateTemplate", mock.Anything, mock.MatchedBy(func(in application.CreateTemplateInput) bool {
			return in.TenantID == testTenant && in.DayOfWeek == time.Monday && in.StartMin == 1080 &&
				in.DurationMin == 90 && in.GenerateWeeks == 4 && in.Policy == recurring.PolicyAbort &&
				in.EndDate != nil && in.EndDate.Equal(timerange.Date(2024, time.June, 24)) &&
				in.CreatedBy == "user-test"
		})).Return(mondayTemplate(), &application.GenerateResult{
			Created:      []*reservation.Reservation{created},
			Conflicts:    []recurring.Conflict{{Date: timerange.Date(2024, time.January, 8), Reason: "重複", Code: "slot_unavailable"}},
			Aborted:      true,
			NextFromDate: timerange.Date(2024, time.January, 8),
		}, nil)

		c, rec := newJSONContext(e, http.MethodPost, "/recurring-templates", `{
			"resource_id": "court-1",
			"day_of_week": 1,
			"start": "18:00",
			"duration_min": 90,
			"start_date": "2024-01-01",
			"end_date": "2024-06-24",
			"client": {"name": "月曜レッスン"},
			"generate_weeks": 4,
			"policy": "abort"
		}`)
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).Create, c)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp CreateTemplateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "tpl-1", resp.Template.ID)
		assert.Equal(t, "18:00", resp.Template.Start)
		assert.Equal(t, 1, resp.Template.DayOfWeek)
		require.NotNil(t, resp.Generation)
		assert.Len(t, resp.Generation.Created, 1)
		require.Len(t, resp.Generation.Conflicts, 1)
		assert.Equal(t, "2024-01-08", resp.Generation.Conflicts[0].Date)
		assert.Equal(t, "slot_unavailable", resp.Generation.Conflicts[0].Code)
		assert.True(t, resp.Generation.Aborted)
		assert.Equal(t, "2024-01-08", resp.Generation.NextFromDate)
		svc.AssertExpectations(t)
	})

	t.Run("生成なしの登録", func(t *testing.T) {
		svc := new(MockRecurringService)
		svc.On("CreateTemplate", mock.Anything, mock.Anything).Return(mondayTemplate(), nil, nil)

		c, rec := newJSONContext(e, http.MethodPost, "/recurring-templates",
			`{"resource_id":"court-1","day_of_week":0,"start":"18:00","duration_min":90,"start_date":"2024-01-07"}`)
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).Create, c)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.NotContains(t, rec.Body.String(), `"generation"`)
	})

	t.Run("曜日が範囲外", func(t *testing.T) {
		svc := new(MockRecurringService)
		c, rec := newJSONContext(e, http.MethodPost, "/recurring-templates",
			`{"resource_id":"court-1","day_of_week":7,"start":"18:00","duration_min":90,"start_date":"2024-01-01"}`)
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).Create, c)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "CreateTemplate", mock.Anything, mock.Anything)
	})

	t.Run("未知のポリシー", func(t *testing.T) {
		svc := new(MockRecurringService)
		c, rec := newJSONContext(e, http.MethodPost, "/recurring-templates",
			`{"resource_id":"court-1","day_of_week":1,"start":"18:00","duration_min":90,"start_date":"2024-01-01","policy":"retry"}`)
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).Create, c)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRecurringHandler_Regenerate(t *testing.T) {
	e := NewTestEcho()

	t.Run("追加生成", func(t *testing.T) {
		svc := new(MockRecurringService)
		svc.On("GetTemplate", mock.Anything, "tpl-1").Return(mondayTemplate(), nil)
		svc.On("Generate", mock.Anything, application.GenerateInput{
			TemplateID: "tpl-1", WeeksAhead: 2, Policy: recurring.PolicySkip, Actor: "user-test",
		}).Return(&application.GenerateResult{NextFromDate: timerange.Date(2024, time.February, 12)}, nil)

		c, rec := newJSONContext(e, http.MethodPost, "/recurring-templates/tpl-1/regenerate", `{"weeks":2,"policy":"skip"}`)
		c.SetParamNames("id")
		c.SetParamValues("tpl-1")
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).Regenerate, c)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp GenerateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "2024-02-12", resp.NextFromDate)
		assert.Empty(t, resp.Created)
		svc.AssertExpectations(t)
	})

	t.Run("生成中は409", func(t *testing.T) {
		svc := new(MockRecurringService)
		svc.On("GetTemplate", mock.Anything, "tpl-1").Return(mondayTemplate(), nil)
		svc.On("Generate", mock.Anything, mock.Anything).Return(nil, application.ErrGenerationInProgress)

		c, rec := newJSONContext(e, http.MethodPost, "/recurring-templates/tpl-1/regenerate", `{"weeks":2}`)
		c.SetParamNames("id")
		c.SetParamValues("tpl-1")
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).Regenerate, c)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "generation_in_progress")
	})

	t.Run("他テナントのテンプレートは404", func(t *testing.T) {
		svc := new(MockRecurringService)
		svc.On("GetTemplate", mock.Anything, "tpl-1").Return(mondayTemplate(), nil)

		c, rec := newJSONContext(e, http.MethodPost, "/recurring-templates/tpl-1/regenerate", `{"weeks":2}`)
		c.SetParamNames("id")
		c.SetParamValues("tpl-1")
		WithTestActor(c, "tenant-2", tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).Regenerate, c)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		svc.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("週数なしは400", func(t *testing.T) {
		svc := new(MockRecurringService)
		c, rec := newJSONContext(e, http.MethodPost, "/recurring-templates/tpl-1/regenerate", `{}`)
		c.SetParamNames("id")
		c.SetParamValues("tpl-1")
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).Regenerate, c)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRecurringHandler_DeactivateReactivate(t *testing.T) {
	e := NewTestEcho()

	t.Run("無効化して今後の予約をキャンセル", func(t *testing.T) {
		svc := new(MockRecurringService)
		svc.On("GetTemplate", mock.Anything, "tpl-1").Return(mondayTemplate(), nil)
		svc.On("Deactivate", mock.Anything, application.DeactivateInput{
			TemplateID: "tpl-1", CancelFutureInstances: true, IncludeToday: true, Actor: "user-test", Reason: "契約終了",
		}).Return(3, nil)

		c, rec := newJSONContext(e, http.MethodPost, "/recurring-templates/tpl-1/deactivate",
			`{"cancel_future_instances":true,"include_today":true,"reason":"契約終了"}`)
		c.SetParamNames("id")
		c.SetParamValues("tpl-1")
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).Deactivate, c)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"cancelled":3}`, rec.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("再開", func(t *testing.T) {
		svc := new(MockRecurringService)
		inactive := mondayTemplate()
		inactive.Active = false
		svc.On("GetTemplate", mock.Anything, "tpl-1").Return(inactive, nil)
		svc.On("Reactivate", mock.Anything, "tpl-1").Return(mondayTemplate(), nil)

		c, rec := newJSONContext(e, http.MethodPost, "/recurring-templates/tpl-1/reactivate", "")
		c.SetParamNames("id")
		c.SetParamValues("tpl-1")
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).Reactivate, c)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp TemplateResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Active)
	})

	t.Run("存在しないテンプレート", func(t *testing.T) {
		svc := new(MockRecurringService)
		svc.On("GetTemplate", mock.Anything, "missing").Return(nil, recurring.ErrTemplateNotFound)

		c, rec := newJSONContext(e, http.MethodPost, "/recurring-templates/missing/reactivate", "")
		c.SetParamNames("id")
		c.SetParamValues("missing")
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).Reactivate, c)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "template_not_found")
	})
}

func TestRecurringHandler_UpsertException(t *testing.T) {
	e := NewTestEcho()

	t.Run("時刻と時間を変更", func(t *testing.T) {
		svc := new(MockRecurringService)
		start, duration := 1200, 60
		svc.On("GetTemplate", mock.Anything, "tpl-1").Return(mondayTemplate(), nil)
		svc.On("UpsertException", mock.Anything, mock.MatchedBy(func(in application.UpsertExceptionInput) bool {
			return in.TemplateID == "tpl-1" && in.Action == recurring.ActionOverride &&
				in.Date.Equal(timerange.Date(2024, time.January, 8)) &&
				in.StartMin != nil && *in.StartMin == 1200 &&
				in.DurationMin != nil && *in.DurationMin == 60
		})).Return(&recurring.Exception{
			TemplateID: "tpl-1", Date: timerange.Date(2024, time.January, 8), Action: recurring.ActionOverride,
			StartMin: &start, DurationMin: &duration,
		}, nil)

		c, rec := newJSONContext(e, http.MethodPut, "/recurring-templates/tpl-1/exceptions/2024-01-08",
			`{"action":"override","start":"20:00","duration_min":60}`)
		c.SetParamNames("id", "date")
		c.SetParamValues("tpl-1", "2024-01-08")
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).UpsertException, c)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp ExceptionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "override", resp.Action)
		require.NotNil(t, resp.Start)
		assert.Equal(t, "20:00", *resp.Start)
		svc.AssertExpectations(t)
	})

	t.Run("曜日違いは400", func(t *testing.T) {
		svc := new(MockRecurringService)
		svc.On("GetTemplate", mock.Anything, "tpl-1").Return(mondayTemplate(), nil)
		svc.On("UpsertException", mock.Anything, mock.Anything).Return(nil, recurring.ErrWrongWeekday)

		c, rec := newJSONContext(e, http.MethodPut, "/recurring-templates/tpl-1/exceptions/2024-01-09", `{"action":"skip"}`)
		c.SetParamNames("id", "date")
		c.SetParamValues("tpl-1", "2024-01-09")
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).UpsertException, c)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("日付の形式が不正", func(t *testing.T) {
		svc := new(MockRecurringService)
		c, rec := newJSONContext(e, http.MethodPut, "/recurring-templates/tpl-1/exceptions/next-monday", `{"action":"skip"}`)
		c.SetParamNames("id", "date")
		c.SetParamValues("tpl-1", "next-monday")
		WithTestActor(c, testTenant, tariff.CapabilityStaff)
		serve(e, NewRecurringHandler(svc).UpsertException, c)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "GetTemplate", mock.Anything, mock.Anything)
	})
}

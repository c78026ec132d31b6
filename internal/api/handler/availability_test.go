package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-court-reservation/internal/application"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

func TestAvailabilityHandler_Get(t *testing.T) {
	e := NewTestEcho()

	t.Run("正常に空き状況を返す", func(t *testing.T) {
		mockService := new(MockAvailabilityService)
		days := []application.DayAvailability{{
			Date: "2024-01-10", OpenMin: 480, CloseMin: 1380,
			Ticks: []application.Tick{
				{Time: "08:00", Minute: 480, CanStart: true},
				{Time: "08:30", Minute: 510, CanStart: false, CanEnd: false, Reason: application.ReasonBlocked, BlockKind: application.BlockConfirmed},
			},
			Durations: []int{60, 90},
		}}
		mockService.On("Availability", mock.Anything, mock.MatchedBy(func(in application.AvailabilityInput) bool {
			return in.TenantID == testTenant && in.ResourceID == "court-1" && in.Days == 7 &&
				in.DateFrom.Equal(timerange.Date(2024, time.January, 10)) &&
				tariff.HasCapability(in.Capabilities, tariff.CapabilityInstructor)
		})).Return(days, nil)

		c, rec := newJSONContext(e, http.MethodGet, "/resources/court-1/availability?date_from=2024-01-10&days=7", "")
		c.SetParamNames("id")
		c.SetParamValues("court-1")
		WithTestActor(c, testTenant, tariff.CapabilityInstructor)
		serve(e, NewAvailabilityHandler(mockService).Get, c)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp AvailabilityResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "court-1", resp.ResourceID)
		require.Len(t, resp.Days, 1)
		assert.Equal(t, "reserva", resp.Days[0].Ticks[1].BlockKind)
		assert.Equal(t, []int{60, 90}, resp.Days[0].Durations)
		mockService.AssertExpectations(t)
	})

	t.Run("days省略時は1日", func(t *testing.T) {
		mockService := new(MockAvailabilityService)
		mockService.On("Availability", mock.Anything, mock.MatchedBy(func(in application.AvailabilityInput) bool {
			return in.Days == 1
		})).Return([]application.DayAvailability{}, nil)

		c, rec := newJSONContext(e, http.MethodGet, "/resources/court-1/availability?date_from=2024-01-10", "")
		c.SetParamNames("id")
		c.SetParamValues("court-1")
		WithTestActor(c, testTenant)
		serve(e, NewAvailabilityHandler(mockService).Get, c)

		assert.Equal(t, http.StatusOK, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("日付の形式が不正", func(t *testing.T) {
		mockService := new(MockAvailabilityService)
		c, rec := newJSONContext(e, http.MethodGet, "/resources/court-1/availability?date_from=10/01/2024", "")
		c.SetParamNames("id")
		c.SetParamValues("court-1")
		WithTestActor(c, testTenant)
		serve(e, NewAvailabilityHandler(mockService).Get, c)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("日数が範囲外", func(t *testing.T) {
		mockService := new(MockAvailabilityService)
		mockService.On("Availability", mock.Anything, mock.Anything).Return(nil, application.ErrInvalidDays)

		c, rec := newJSONContext(e, http.MethodGet, "/resources/court-1/availability?date_from=2024-01-10&days=60", "")
		c.SetParamNames("id")
		c.SetParamValues("court-1")
		WithTestActor(c, testTenant)
		serve(e, NewAvailabilityHandler(mockService).Get, c)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid_days")
	})

	t.Run("他テナントのコートは404", func(t *testing.T) {
		mockService := new(MockAvailabilityService)
		mockService.On("Availability", mock.Anything, mock.Anything).Return(nil, tariff.ErrResourceNotFound)

		c, rec := newJSONContext(e, http.MethodGet, "/resources/court-x/availability?date_from=2024-01-10", "")
		c.SetParamNames("id")
		c.SetParamValues("court-x")
		WithTestActor(c, "tenant-2")
		serve(e, NewAvailabilityHandler(mockService).Get, c)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("ストレージ障害は詳細を隠して500", func(t *testing.T) {
		mockService := new(MockAvailabilityService)
		mockService.On("Availability", mock.Anything, mock.Anything).
			Return(nil, errors.New("pq: connection refused at 10.0.0.5"))

		c, rec := newJSONContext(e, http.MethodGet, "/resources/court-1/availability?date_from=2024-01-10", "")
		c.SetParamNames("id")
		c.SetParamValues("court-1")
		WithTestActor(c, testTenant)
		serve(e, NewAvailabilityHandler(mockService).Get, c)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.5")
	})
}

package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"

	"github.com/sanosuguru/go-court-reservation/internal/application"
	"github.com/sanosuguru/go-court-reservation/internal/domain/recurring"
	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
)

const testTenant = "tenant-1"

// MockPricingService はPricingServiceInterfaceのモック
type MockPricingService struct {
	mock.Mock
}

func (m *MockPricingService) Quote(ctx context.Context, input application.QuoteInput) (*application.Quote, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Quote), args.Error(1)
}

// MockAvailabilityService はAvailabilityServiceInterfaceのモック
type MockAvailabilityService struct {
	mock.Mock
}

func (m *MockAvailabilityService) Availability(ctx context.Context, input application.AvailabilityInput) ([]application.DayAvailability, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]application.DayAvailability), args.Error(1)
}

// MockBookingService はBookingServiceInterfaceのモック
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateBooking(ctx context.Context, input application.CreateBookingInput) (*application.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.Booking), args.Error(1)
}

func (m *MockBookingService) CreateStaffBooking(ctx context.Context, input application.StaffBookingInput) (*reservation.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

// MockLedgerService はLedgerServiceInterfaceのモック
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) Get(ctx context.Context, id string) (*reservation.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockLedgerService) Cancel(ctx context.Context, input application.CancelInput) (*reservation.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockLedgerService) RecordManualPayment(ctx context.Context, input application.ManualPaymentInput) (*reservation.Reservation, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Reservation), args.Error(1)
}

func (m *MockLedgerService) HandlePaymentEvent(ctx context.Context, ev application.PaymentEvent) (application.PaymentOutcome, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(application.PaymentOutcome), args.Error(1)
}

// MockRecurringService はRecurringServiceInterfaceのモック
type MockRecurringService struct {
	mock.Mock
}

func (m *MockRecurringService) GetTemplate(ctx context.Context, id string) (*recurring.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurring.Template), args.Error(1)
}

func (m *MockRecurringService) CreateTemplate(ctx context.Context, input application.CreateTemplateInput) (*recurring.Template, *application.GenerateResult, error) {
	args := m.Called(ctx, input)
	var t *recurring.Template
	if v := args.Get(0); v != nil {
		t = v.(*recurring.Template)
	}
	var r *application.GenerateResult
	if v := args.Get(1); v != nil {
		r = v.(*application.GenerateResult)
	}
	return t, r, args.Error(2)
}

func (m *MockRecurringService) Generate(ctx context.Context, input application.GenerateInput) (*application.GenerateResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.GenerateResult), args.Error(1)
}

func (m *MockRecurringService) Deactivate(ctx context.Context, input application.DeactivateInput) (int, error) {
	args := m.Called(ctx, input)
	return args.Int(0), args.Error(1)
}

func (m *MockRecurringService) Reactivate(ctx context.Context, id string) (*recurring.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurring.Template), args.Error(1)
}

func (m *MockRecurringService) UpsertException(ctx context.Context, input application.UpsertExceptionInput) (*recurring.Exception, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recurring.Exception), args.Error(1)
}

// newJSONContext はJSONボディ付きのリクエストコンテキストを作る
func newJSONContext(e *echo.Echo, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// serve はハンドラーを呼び、エラーはエラーハンドラーでレスポンスに変換する
func serve(e *echo.Echo, h echo.HandlerFunc, c echo.Context) {
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
}

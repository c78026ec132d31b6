package handler

import (
	"context"

	"github.com/sanosuguru/go-court-reservation/internal/application"
	"github.com/sanosuguru/go-court-reservation/internal/domain/recurring"
	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
)

// PricingServiceInterface は料金計算サービスのインターフェース
type PricingServiceInterface interface {
	Quote(ctx context.Context, input application.QuoteInput) (*application.Quote, error)
}

// AvailabilityServiceInterface は空き状況サービスのインターフェース
type AvailabilityServiceInterface interface {
	Availability(ctx context.Context, input application.AvailabilityInput) ([]application.DayAvailability, error)
}

// BookingServiceInterface は予約受付サービスのインターフェース
type BookingServiceInterface interface {
	CreateBooking(ctx context.Context, input application.CreateBookingInput) (*application.Booking, error)
	CreateStaffBooking(ctx context.Context, input application.StaffBookingInput) (*reservation.Reservation, error)
}

// LedgerServiceInterface は予約台帳サービスのインターフェース
type LedgerServiceInterface interface {
	Get(ctx context.Context, id string) (*reservation.Reservation, error)
	Cancel(ctx context.Context, input application.CancelInput) (*reservation.Reservation, error)
	RecordManualPayment(ctx context.Context, input application.ManualPaymentInput) (*reservation.Reservation, error)
	HandlePaymentEvent(ctx context.Context, ev application.PaymentEvent) (application.PaymentOutcome, error)
}

// RecurringServiceInterface は定期予約サービスのインターフェース
type RecurringServiceInterface interface {
	GetTemplate(ctx context.Context, id string) (*recurring.Template, error)
	CreateTemplate(ctx context.Context, input application.CreateTemplateInput) (*recurring.Template, *application.GenerateResult, error)
	Generate(ctx context.Context, input application.GenerateInput) (*application.GenerateResult, error)
	Deactivate(ctx context.Context, input application.DeactivateInput) (int, error)
	Reactivate(ctx context.Context, id string) (*recurring.Template, error)
	UpsertException(ctx context.Context, input application.UpsertExceptionInput) (*recurring.Exception, error)
}

package application

import (
	"context"
	"strings"
	"time"

	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

type BookingConfig struct {
	DepositPercent  int64
	CheckoutBaseURL string
	Hold            time.Duration
}

// BookingService は見積もりと仮押さえをまとめて予約受付を行う
type BookingService struct {
	pricing *PricingService
	ledger  *ReservationService
	cfg     BookingConfig
}

func NewBookingService(pricing *PricingService, ledger *ReservationService, cfg BookingConfig) *BookingService {
	return &BookingService{pricing: pricing, ledger: ledger, cfg: cfg}
}

type CreateBookingInput struct {
	TenantID        string
	ResourceID      string
	Date            time.Time
	StartMin        int
	EndMin          int
	Capabilities    []tariff.Capability
	SegmentOverride *tariff.Segment
	Client          reservation.Client
	IdempotencyKey  string
	CreatedBy       string
}

// Booking は予約受付の結果
type Booking struct {
	Reservation *reservation.Reservation
	Quote       *Quote
	CheckoutURL string
}

// CreateBooking は料金を計算し、内金付きの仮押さえを作成する
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*Booking, error) {
	q, err := s.pricing.Quote(ctx, QuoteInput{
		TenantID:        input.TenantID,
		ResourceID:      input.ResourceID,
		Date:            input.Date,
		StartMin:        input.StartMin,
		EndMin:          input.EndMin,
		Capabilities:    input.Capabilities,
		SegmentOverride: input.SegmentOverride,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.ledger.CreatePending(ctx, CreateReservationInput{
		TenantID:       input.TenantID,
		ResourceID:     input.ResourceID,
		Date:           input.Date,
		StartMin:       input.StartMin,
		EndMin:         input.EndMin,
		Price:          q.Total,
		DepositAmount:  Deposit(q.Total, s.cfg.DepositPercent),
		Hold:           s.cfg.Hold,
		Client:         input.Client,
		Origin:         reservation.OriginWeb,
		IdempotencyKey: input.IdempotencyKey,
		CreatedBy:      input.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	return &Booking{Reservation: res, Quote: q, CheckoutURL: s.checkoutURL(res.ID)}, nil
}

type StaffBookingInput struct {
	TenantID       string
	ResourceID     string
	Date           time.Time
	StartMin       int
	EndMin         int
	Segment        tariff.Segment
	Price          *int64
	Client         reservation.Client
	IdempotencyKey string
	CreatedBy      string
}

// CreateStaffBooking はスタッフによる確定済み予約を作成する
// 料金が指定されない場合は30分単位の任意の時間で計算する
func (s *BookingService) CreateStaffBooking(ctx context.Context, input StaffBookingInput) (*reservation.Reservation, error) {
	var price int64
	if input.Price != nil {
		if *input.Price < 0 {
			return nil, reservation.ErrInvalidAmount
		}
		if err := s.pricing.EnsureResource(ctx, input.TenantID, input.ResourceID); err != nil {
			return nil, err
		}
		price = *input.Price
	} else {
		rg, err := timerange.New(input.Date, input.StartMin, input.EndMin)
		if err != nil {
			return nil, reservation.ErrInvalidRange
		}
		segment := input.Segment
		if segment == "" {
			segment = tariff.SegmentPublic
		}
		q, err := s.pricing.PriceRange(ctx, PriceRangeInput{
			TenantID:   input.TenantID,
			ResourceID: input.ResourceID,
			Range:      rg,
			Segment:    segment,
		})
		if err != nil {
			return nil, err
		}
		price = q.Total
	}

	return s.ledger.CreateConfirmed(ctx, CreateReservationInput{
		TenantID:       input.TenantID,
		ResourceID:     input.ResourceID,
		Date:           input.Date,
		StartMin:       input.StartMin,
		EndMin:         input.EndMin,
		Price:          price,
		Client:         input.Client,
		Origin:         reservation.OriginStaff,
		IdempotencyKey: input.IdempotencyKey,
		CreatedBy:      input.CreatedBy,
	})
}

func (s *BookingService) checkoutURL(id string) string {
	if s.cfg.CheckoutBaseURL == "" {
		return ""
	}
	return strings.TrimRight(s.cfg.CheckoutBaseURL, "/") + "/" + id
}

// Deposit は料金に対する内金を四捨五入で求める
func Deposit(total, percent int64) int64 {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return total
	}
	return (total*percent + 50) / 100
}

package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
	"github.com/sanosuguru/go-court-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/metrics"
)

// EventPublisher は予約イベントの送信先
type EventPublisher interface {
	Publish(ctx context.Context, e reservation.Event) error
}

type LedgerConfig struct {
	Hold             time.Duration
	PaymentTolerance int64
	Location         *time.Location
}

// DefaultLedgerConfig は仮押さえ10分、許容誤差1の設定を返す
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{Hold: reservation.DefaultHold, PaymentTolerance: 1, Location: time.UTC}
}

type ReservationService struct {
	txManager    transaction.Manager
	reservations reservation.Repository
	clock        clock.Clock
	cache        AvailabilityCache
	publisher    EventPublisher
	metrics      *metrics.Metrics
	cfg          LedgerConfig
}

func NewReservationService(txm transaction.Manager, rr reservation.Repository, c clock.Clock, cache AvailabilityCache, pub EventPublisher, m *metrics.Metrics, cfg LedgerConfig) *ReservationService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Hold <= 0 {
		cfg.Hold = reservation.DefaultHold
	}
	return &ReservationService{txManager: txm, reservations: rr, clock: c, cache: cache, publisher: pub, metrics: m, cfg: cfg}
}

type CreateReservationInput struct {
	TenantID            string
	ResourceID          string
	Date                time.Time
	StartMin            int
	EndMin              int
	Price               int64
	DepositAmount       int64
	Hold                time.Duration
	Client              reservation.Client
	Origin              reservation.Origin
	RecurringTemplateID *string
	IdempotencyKey      string
	CreatedBy           string
}

func (in CreateReservationInput) draft() (reservation.Draft, error) {
	rg, err := timerange.New(in.Date, in.StartMin, in.EndMin)
	if err != nil || !rg.Aligned() {
		return reservation.Draft{}, reservation.ErrInvalidRange
	}
	return reservation.Draft{
		TenantID:            in.TenantID,
		ResourceID:          in.ResourceID,
		Range:               rg,
		Price:               in.Price,
		DepositAmount:       in.DepositAmount,
		Client:              in.Client,
		Origin:              in.Origin,
		RecurringTemplateID: in.RecurringTemplateID,
		IdempotencyKey:      in.IdempotencyKey,
		CreatedBy:           in.CreatedBy,
	}, nil
}

// CreatePending は支払い待ちの仮押さえを作成する
// 重なる確定済み予約または期限内の仮押さえがある場合は reservation.ErrOverlap を返す
func (s *ReservationService) CreatePending(ctx context.Context, input CreateReservationInput) (*reservation.Reservation, error) {
	if existing, err := s.byIdempotencyKey(ctx, input.IdempotencyKey); err != nil || existing != nil {
		return existing, err
	}
	if input.Hold < 0 {
		return nil, reservation.ErrInvalidHold
	}
	hold := input.Hold
	if hold == 0 {
		hold = s.cfg.Hold
	}
	d, err := input.draft()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	res := reservation.NewPending(d, s.cfg.Location, now, hold)
	return s.create(ctx, res, now)
}

// CreateConfirmed は仮押さえを経ずに確定済みの予約を作成する（スタッフ・定期予約用）
func (s *ReservationService) CreateConfirmed(ctx context.Context, input CreateReservationInput) (*reservation.Reservation, error) {
	if existing, err := s.byIdempotencyKey(ctx, input.IdempotencyKey); err != nil || existing != nil {
		return existing, err
	}
	d, err := input.draft()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	res := reservation.NewConfirmed(d, s.cfg.Location, now)
	return s.create(ctx, res, now)
}

func (s *ReservationService) byIdempotencyKey(ctx context.Context, key string) (*reservation.Reservation, error) {
	if key == "" {
		return nil, nil
	}
	existing, err := s.reservations.GetByIdempotencyKey(ctx, key)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, reservation.ErrReservationNotFound) {
		return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
	}
	return nil, nil
}

func (s *ReservationService) create(ctx context.Context, res *reservation.Reservation, now time.Time) (*reservation.Reservation, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.reservations.Insert(ctx, tx, res, now); err != nil {
		// 同じキーの同時リクエストは先に作成された予約を返す
		if errors.Is(err, reservation.ErrDuplicateKey) {
			return s.reservations.GetByIdempotencyKey(ctx, res.IdempotencyKey)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.metrics.ObserveReservation(string(res.Status))
	logger.FromContext(ctx).Info("予約を作成しました",
		zap.String("reservation_id", res.ID),
		zap.String("resource_id", res.ResourceID),
		zap.String("status", string(res.Status)),
		zap.Time("starts_at", res.StartsAt),
		zap.Time("ends_at", res.EndsAt),
	)
	s.invalidate(ctx, res.ResourceID)
	if res.Status == reservation.StatusConfirmed {
		s.publish(ctx, reservation.EventConfirmed, res, now)
	}
	return res, nil
}

func (s *ReservationService) Get(ctx context.Context, id string) (*reservation.Reservation, error) {
	return s.reservations.GetByID(ctx, id)
}

// Confirm は支払い待ちの予約を確定する。確定済みなら何もしない
func (s *ReservationService) Confirm(ctx context.Context, id, actor string) (*reservation.Reservation, error) {
	res, changed, err := s.transition(ctx, id,
		[]reservation.Status{reservation.StatusPendingPayment},
		reservation.StatusChange{To: reservation.StatusConfirmed, Actor: actor},
	)
	if err != nil || !changed {
		return res, err
	}
	s.publish(ctx, reservation.EventConfirmed, res, s.clock.Now())
	return res, nil
}

// Reject は支払い待ちの予約を却下する。却下済みなら何もしない
func (s *ReservationService) Reject(ctx context.Context, id, actor, reason string) (*reservation.Reservation, error) {
	res, _, err := s.transition(ctx, id,
		[]reservation.Status{reservation.StatusPendingPayment},
		reservation.StatusChange{To: reservation.StatusRejected, Actor: actor, Reason: reason},
	)
	return res, err
}

type CancelInput struct {
	ID     string
	Actor  string
	Reason string
}

// Cancel は確定済みまたは支払い待ちの予約をキャンセルする。キャンセル済みなら何もしない
func (s *ReservationService) Cancel(ctx context.Context, input CancelInput) (*reservation.Reservation, error) {
	res, changed, err := s.transition(ctx, input.ID,
		[]reservation.Status{reservation.StatusConfirmed, reservation.StatusPendingPayment},
		reservation.StatusChange{To: reservation.StatusCancelled, Actor: input.Actor, Reason: input.Reason},
	)
	if err != nil || !changed {
		return res, err
	}
	s.publish(ctx, reservation.EventCancelled, res, s.clock.Now())
	return res, nil
}

// transition は条件付きで状態を変更する
// 既に目的の状態にある場合は変更せずに返し、それ以外の状態からは ErrInvalidTransition
func (s *ReservationService) transition(ctx context.Context, id string, from []reservation.Status, change reservation.StatusChange) (*reservation.Reservation, bool, error) {
	change.At = s.clock.Now()
	ok, err := s.reservations.UpdateStatus(ctx, id, from, change)
	if err != nil {
		return nil, false, err
	}
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		if res.Status == change.To {
			return res, false, nil
		}
		return nil, false, reservation.ErrInvalidTransition
	}

	s.metrics.ObserveReservation(string(change.To))
	logger.FromContext(ctx).Info("予約の状態を変更しました",
		zap.String("reservation_id", id),
		zap.String("status", string(change.To)),
		zap.String("actor", change.Actor),
	)
	s.invalidate(ctx, res.ResourceID)
	return res, true, nil
}

type ManualPaymentInput struct {
	ReservationID string
	Amount        int64
	Method        reservation.PaymentMethod
	RecordedBy    string
}

// RecordManualPayment は入金を記録し、支払い待ちで内金が揃った場合は予約を確定する
func (s *ReservationService) RecordManualPayment(ctx context.Context, input ManualPaymentInput) (*reservation.Reservation, error) {
	if input.Amount <= 0 {
		return nil, reservation.ErrInvalidAmount
	}
	if !input.Method.Valid() {
		return nil, reservation.ErrInvalidPaymentMethod
	}
	res, err := s.reservations.GetByID(ctx, input.ReservationID)
	if err != nil {
		return nil, err
	}
	if res.Status != reservation.StatusConfirmed && res.Status != reservation.StatusPendingPayment {
		return nil, reservation.ErrInvalidTransition
	}

	p := &reservation.Payment{
		ReservationID: res.ID,
		Amount:        input.Amount,
		Method:        input.Method,
		RecordedBy:    input.RecordedBy,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.reservations.AddPayment(ctx, p); err != nil {
		return nil, fmt.Errorf("入金の記録に失敗: %w", err)
	}
	logger.FromContext(ctx).Info("入金を記録しました",
		zap.String("reservation_id", res.ID),
		zap.Int64("amount", input.Amount),
		zap.String("method", string(input.Method)),
	)

	res, err = s.reservations.GetByID(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	if res.Status == reservation.StatusPendingPayment && res.OutstandingDeposit() == 0 {
		return s.Confirm(ctx, res.ID, input.RecordedBy)
	}
	return res, nil
}

// 決済サービスから通知される支払い状態
const (
	PaymentApproved = "approved"
	PaymentRejected = "rejected"
)

// PaymentEvent は外部決済からの通知
type PaymentEvent struct {
	ReservationID string
	Status        string
	Amount        int64
}

// PaymentOutcome は通知の処理結果
type PaymentOutcome string

const (
	OutcomeConfirmed PaymentOutcome = "confirmed"
	OutcomeRejected  PaymentOutcome = "rejected"
	OutcomeIgnored   PaymentOutcome = "ignored"
)

// HandlePaymentEvent は決済通知を検証して予約を確定または却下する
// 照合できない通知は状態を変えずに無視する
func (s *ReservationService) HandlePaymentEvent(ctx context.Context, ev PaymentEvent) (PaymentOutcome, error) {
	log := logger.FromContext(ctx).With(
		zap.String("reservation_id", ev.ReservationID),
		zap.String("payment_status", ev.Status),
		zap.Int64("amount", ev.Amount),
	)

	res, err := s.reservations.GetByID(ctx, ev.ReservationID)
	if err != nil {
		if errors.Is(err, reservation.ErrReservationNotFound) {
			log.Warn("該当する予約がないため決済通知を無視します")
			return OutcomeIgnored, nil
		}
		return "", err
	}
	if res.Status != reservation.StatusPendingPayment {
		log.Info("支払い待ちではないため決済通知を無視します", zap.String("status", string(res.Status)))
		return OutcomeIgnored, nil
	}
	if diff := ev.Amount - res.DepositAmount; diff > s.cfg.PaymentTolerance || diff < -s.cfg.PaymentTolerance {
		log.Warn("決済金額が内金と一致しないため無視します", zap.Int64("expected", res.DepositAmount))
		return OutcomeIgnored, nil
	}

	switch ev.Status {
	case PaymentApproved:
		if _, err := s.Confirm(ctx, res.ID, "payment"); err != nil {
			if errors.Is(err, reservation.ErrInvalidTransition) {
				log.Warn("予約の状態が変わったため決済通知を無視します")
				return OutcomeIgnored, nil
			}
			return "", err
		}
		p := &reservation.Payment{
			ReservationID: res.ID,
			Amount:        ev.Amount,
			Method:        reservation.PaymentGateway,
			RecordedBy:    "payment",
			CreatedAt:     s.clock.Now(),
		}
		if err := s.reservations.AddPayment(ctx, p); err != nil {
			return "", fmt.Errorf("入金の記録に失敗: %w", err)
		}
		return OutcomeConfirmed, nil
	case PaymentRejected:
		if _, err := s.Reject(ctx, res.ID, "payment", "決済が却下されました"); err != nil {
			if errors.Is(err, reservation.ErrInvalidTransition) {
				log.Warn("予約の状態が変わったため決済通知を無視します")
				return OutcomeIgnored, nil
			}
			return "", err
		}
		return OutcomeRejected, nil
	default:
		log.Warn("未知の支払い状態のため決済通知を無視します")
		return OutcomeIgnored, nil
	}
}

// ExpireStaleHolds は期限切れの仮押さえを expired にし、該当コートの空き状況キャッシュを捨てる
func (s *ReservationService) ExpireStaleHolds(ctx context.Context) (int, error) {
	resourceIDs, err := s.reservations.ExpireStaleHolds(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("期限切れ仮押さえの失効に失敗: %w", err)
	}
	n := len(resourceIDs)
	s.metrics.ObserveHoldsExpired(n)
	if n == 0 {
		return 0, nil
	}

	seen := make(map[string]bool, n)
	for _, id := range resourceIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		s.invalidate(ctx, id)
	}
	logger.FromContext(ctx).Info("期限切れの仮押さえを失効しました",
		zap.Int("count", n),
		zap.Int("resources", len(seen)),
	)
	return n, nil
}

func (s *ReservationService) invalidate(ctx context.Context, resourceID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, resourceID); err != nil {
		logger.FromContext(ctx).Warn("空き状況キャッシュの無効化に失敗", zap.String("resource_id", resourceID), zap.Error(err))
	}
}

func (s *ReservationService) publish(ctx context.Context, eventType string, res *reservation.Reservation, at time.Time) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, reservation.NewEvent(eventType, res, at)); err != nil {
		logger.FromContext(ctx).Warn("予約イベントの送信に失敗",
			zap.String("type", eventType),
			zap.String("reservation_id", res.ID),
			zap.Error(err),
		)
	}
}

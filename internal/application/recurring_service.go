package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-court-reservation/internal/domain/recurring"
	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
	redislock "github.com/sanosuguru/go-court-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/apperror"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/metrics"
)

var ErrGenerationInProgress = apperror.New(apperror.KindConflict, "generation_in_progress", "この定期予約は他の処理で生成中です")

type RecurringService struct {
	templates    recurring.Repository
	reservations reservation.Repository
	pricing      *PricingService
	ledger       *ReservationService
	locker       redislock.Locker
	clock        clock.Clock
	metrics      *metrics.Metrics
	loc          *time.Location
}

func NewRecurringService(tr recurring.Repository, rr reservation.Repository, pricing *PricingService, ledger *ReservationService, locker redislock.Locker, c clock.Clock, m *metrics.Metrics, loc *time.Location) *RecurringService {
	if loc == nil {
		loc = time.UTC
	}
	return &RecurringService{
		templates:    tr,
		reservations: rr,
		pricing:      pricing,
		ledger:       ledger,
		locker:       locker,
		clock:        c,
		metrics:      m,
		loc:          loc,
	}
}

type CreateTemplateInput struct {
	TenantID      string
	ResourceID    string
	DayOfWeek     time.Weekday
	StartMin      int
	DurationMin   int
	StartDate     time.Time
	EndDate       *time.Time
	Client        reservation.Client
	Segment       tariff.Segment
	Notes         string
	CreatedBy     string
	GenerateWeeks int
	Policy        recurring.ConflictPolicy
}

// GenerateResult は生成結果
type GenerateResult struct {
	Created      []*reservation.Reservation
	Conflicts    []recurring.Conflict
	Aborted      bool
	NextFromDate time.Time
}

// CreateTemplate はテンプレートを登録し、指定があれば初回分を生成する
func (s *RecurringService) CreateTemplate(ctx context.Context, input CreateTemplateInput) (*recurring.Template, *GenerateResult, error) {
	now := s.clock.Now()
	segment := input.Segment
	if segment == "" {
		segment = tariff.SegmentPublic
	}
	t := &recurring.Template{
		TenantID:    input.TenantID,
		ResourceID:  input.ResourceID,
		DayOfWeek:   input.DayOfWeek,
		StartMin:    input.StartMin,
		DurationMin: input.DurationMin,
		Active:      true,
		StartDate:   timerange.DateOnly(input.StartDate),
		EndDate:     input.EndDate,
		Client:      input.Client,
		Segment:     segment,
		Notes:       input.Notes,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.EndDate != nil {
		end := timerange.DateOnly(*t.EndDate)
		t.EndDate = &end
	}
	if err := t.Validate(); err != nil {
		return nil, nil, err
	}
	if input.GenerateWeeks < 0 || input.GenerateWeeks > recurring.MaxWeeksAhead {
		return nil, nil, recurring.ErrInvalidWeeksAhead
	}
	if err := s.pricing.EnsureResource(ctx, t.TenantID, t.ResourceID); err != nil {
		return nil, nil, err
	}
	if err := s.templates.Create(ctx, t); err != nil {
		return nil, nil, fmt.Errorf("定期予約の登録に失敗: %w", err)
	}
	logger.FromContext(ctx).Info("定期予約を登録しました",
		zap.String("template_id", t.ID),
		zap.String("resource_id", t.ResourceID),
		zap.String("day_of_week", t.DayOfWeek.String()),
		zap.String("start", timerange.FormatClock(t.StartMin)),
	)

	if input.GenerateWeeks == 0 {
		return t, nil, nil
	}
	result, err := s.Generate(ctx, GenerateInput{TemplateID: t.ID, WeeksAhead: input.GenerateWeeks, Policy: input.Policy, Actor: input.CreatedBy})
	if err != nil {
		return t, nil, err
	}
	return t, result, nil
}

type GenerateInput struct {
	TemplateID string
	WeeksAhead int
	Policy     recurring.ConflictPolicy
	Actor      string
}

// Generate は最後に生成済みの日付の翌週から weeksAhead 週分の予約を作成する
func (s *RecurringService) Generate(ctx context.Context, input GenerateInput) (*GenerateResult, error) {
	if input.WeeksAhead < 1 || input.WeeksAhead > recurring.MaxWeeksAhead {
		return nil, recurring.ErrInvalidWeeksAhead
	}
	policy := input.Policy
	if policy == "" {
		policy = recurring.PolicySkip
	}
	if !policy.Valid() {
		return nil, recurring.ErrInvalidPolicy
	}

	if s.locker != nil {
		lock, err := s.locker.AcquireLockWithRetry(ctx, "recurring:"+input.TemplateID, 30*time.Second, 3, 200*time.Millisecond)
		if err != nil {
			if errors.Is(err, redislock.ErrLockNotAcquired) {
				return nil, ErrGenerationInProgress
			}
			return nil, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		defer lock.Release(ctx)
	}

	t, err := s.templates.GetByID(ctx, input.TemplateID)
	if err != nil {
		return nil, err
	}
	if !t.Active {
		return nil, recurring.ErrTemplateInactive
	}

	from := t.StartDate
	last, err := s.reservations.LastDateForTemplate(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("生成済み予約の取得に失敗: %w", err)
	}
	if last != nil {
		if next := timerange.AddDays(*last, 7); next.After(from) {
			from = next
		}
	}
	first := t.FirstOccurrence(from)

	var dates []time.Time
	for i := 0; i < input.WeeksAhead; i++ {
		d := timerange.AddDays(first, 7*i)
		if !t.Within(d) {
			break
		}
		dates = append(dates, d)
	}

	result := &GenerateResult{NextFromDate: first}
	if len(dates) == 0 {
		return result, nil
	}
	exceptions, err := s.templates.ExceptionsInRange(ctx, t.ID, dates[0], dates[len(dates)-1])
	if err != nil {
		return nil, fmt.Errorf("例外日の取得に失敗: %w", err)
	}

	log := logger.FromContext(ctx).With(zap.String("template_id", t.ID), zap.String("policy", string(policy)))
	for _, d := range dates {
		result.NextFromDate = timerange.AddDays(d, 7)
		occ, ok := t.Apply(d, exceptions[timerange.FormatDate(d)])
		if !ok {
			continue
		}
		res, err := s.createOccurrence(ctx, t, occ, input.Actor)
		if err == nil {
			result.Created = append(result.Created, res)
			continue
		}
		if !isOccurrenceConflict(err) {
			// 生成済みの分は確定しているので結果と一緒に返す
			return result, err
		}

		c := recurring.Conflict{Date: d, Reason: err.Error(), Code: apperror.CodeOf(err)}
		result.Conflicts = append(result.Conflicts, c)
		s.metrics.ObserveRecurringConflict(string(policy))
		log.Warn("定期予約の生成で衝突が発生しました",
			zap.String("date", timerange.FormatDate(d)),
			zap.String("code", c.Code),
		)
		if policy == recurring.PolicyAbort {
			result.Aborted = true
			result.NextFromDate = d
			break
		}
	}

	log.Info("定期予約を生成しました",
		zap.Int("created", len(result.Created)),
		zap.Int("conflicts", len(result.Conflicts)),
	)
	return result, nil
}

func (s *RecurringService) createOccurrence(ctx context.Context, t *recurring.Template, occ recurring.Occurrence, actor string) (*reservation.Reservation, error) {
	rg, err := timerange.FromDuration(occ.Date, occ.StartMin, occ.DurationMin)
	if err != nil {
		return nil, recurring.ErrInvalidSlot
	}
	q, err := s.pricing.PriceRange(ctx, PriceRangeInput{
		TenantID:   t.TenantID,
		ResourceID: occ.ResourceID,
		Range:      rg,
		Segment:    t.Segment,
	})
	if err != nil {
		return nil, err
	}
	templateID := t.ID
	return s.ledger.CreateConfirmed(ctx, CreateReservationInput{
		TenantID:            t.TenantID,
		ResourceID:          occ.ResourceID,
		Date:                rg.Date,
		StartMin:            rg.StartMin,
		EndMin:              rg.EndMin,
		Price:               q.Total,
		Client:              t.Client,
		Origin:              reservation.OriginRecurring,
		RecurringTemplateID: &templateID,
		CreatedBy:           actor,
	})
}

// 重複予約・料金未設定・振替先コートの不在や不正な枠は日付単位の衝突として扱う
func isOccurrenceConflict(err error) bool {
	if errors.Is(err, reservation.ErrOverlap) || isPricingConflict(err) {
		return true
	}
	switch apperror.KindOf(err) {
	case apperror.KindNotFound, apperror.KindValidation:
		return true
	}
	return false
}

type DeactivateInput struct {
	TemplateID            string
	CancelFutureInstances bool
	IncludeToday          bool
	Actor                 string
	Reason                string
}

// Deactivate はテンプレートを無効化し、指定があれば今後の予約をキャンセルする
func (s *RecurringService) Deactivate(ctx context.Context, input DeactivateInput) (int, error) {
	t, err := s.templates.GetByID(ctx, input.TemplateID)
	if err != nil {
		return 0, err
	}
	now := s.clock.Now()
	if err := s.templates.SetActive(ctx, t.ID, false, now); err != nil {
		return 0, fmt.Errorf("定期予約の無効化に失敗: %w", err)
	}
	if !input.CancelFutureInstances {
		return 0, nil
	}

	from := timerange.DateOf(now, s.loc)
	if !input.IncludeToday {
		from = timerange.AddDays(from, 1)
	}
	n, err := s.reservations.CancelByTemplate(ctx, t.ID, from, reservation.StatusChange{
		To:     reservation.StatusCancelled,
		At:     now,
		Actor:  input.Actor,
		Reason: input.Reason,
	})
	if err != nil {
		return 0, fmt.Errorf("定期予約のキャンセルに失敗: %w", err)
	}
	s.ledger.invalidate(ctx, t.ResourceID)
	logger.FromContext(ctx).Info("定期予約を無効化しました",
		zap.String("template_id", t.ID),
		zap.Int("cancelled", n),
	)
	return n, nil
}

// GetTemplate はテンプレートを取得する
func (s *RecurringService) GetTemplate(ctx context.Context, id string) (*recurring.Template, error) {
	return s.templates.GetByID(ctx, id)
}

// Reactivate は無効化したテンプレートを再び有効にする（予約は生成しない）
func (s *RecurringService) Reactivate(ctx context.Context, id string) (*recurring.Template, error) {
	if _, err := s.templates.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.templates.SetActive(ctx, id, true, s.clock.Now()); err != nil {
		return nil, fmt.Errorf("定期予約の再開に失敗: %w", err)
	}
	return s.templates.GetByID(ctx, id)
}

type UpsertExceptionInput struct {
	TemplateID  string
	Date        time.Time
	Action      recurring.Action
	ResourceID  *string
	StartMin    *int
	DurationMin *int
	Notes       string
}

// UpsertException は (テンプレート, 日付) 単位で例外を登録する
// 生成済みの予約には影響しない
func (s *RecurringService) UpsertException(ctx context.Context, input UpsertExceptionInput) (*recurring.Exception, error) {
	t, err := s.templates.GetByID(ctx, input.TemplateID)
	if err != nil {
		return nil, err
	}
	date := timerange.DateOnly(input.Date)
	if date.Weekday() != t.DayOfWeek {
		return nil, recurring.ErrWrongWeekday
	}
	e := &recurring.Exception{
		TemplateID:  t.ID,
		Date:        date,
		Action:      input.Action,
		ResourceID:  input.ResourceID,
		StartMin:    input.StartMin,
		DurationMin: input.DurationMin,
		Notes:       input.Notes,
		CreatedAt:   s.clock.Now(),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if e.ResourceID != nil {
		if err := s.pricing.EnsureResource(ctx, t.TenantID, *e.ResourceID); err != nil {
			return nil, err
		}
	}
	if err := s.templates.UpsertException(ctx, e); err != nil {
		return nil, fmt.Errorf("例外日の登録に失敗: %w", err)
	}
	return e, nil
}

package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-court-reservation/internal/domain/closure"
	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/apperror"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
)

// ブロック理由
const (
	ReasonBlocked = "bloqueado"

	BlockClosure   = "cierre"
	BlockConfirmed = "reserva"
	BlockHold      = "pendiente"
	BlockElapsed   = "pasado"
)

// 値が大きいほど優先される
var blockPrecedence = map[string]int{
	BlockElapsed:   1,
	BlockHold:      2,
	BlockConfirmed: 3,
	BlockClosure:   4,
}

var ErrInvalidDays = apperror.New(apperror.KindValidation, "invalid_days", "日数が範囲外です")

// AvailabilityCache は日付単位の空き状況キャッシュ
type AvailabilityCache interface {
	Get(ctx context.Context, resourceID, field string) ([]byte, error)
	Set(ctx context.Context, resourceID, field string, value []byte) error
	Invalidate(ctx context.Context, resourceID string) error
}

type AvailabilityConfig struct {
	MaxDays       int
	FallbackOpen  int
	FallbackClose int
	Location      *time.Location
}

// DefaultAvailabilityConfig は 08:00-23:00、最大14日の設定を返す
func DefaultAvailabilityConfig() AvailabilityConfig {
	return AvailabilityConfig{MaxDays: 14, FallbackOpen: 8 * 60, FallbackClose: 23 * 60, Location: time.UTC}
}

type AvailabilityService struct {
	tariffs      tariff.Repository
	closures     closure.Repository
	reservations reservation.Repository
	clock        clock.Clock
	cache        AvailabilityCache
	cfg          AvailabilityConfig
}

func NewAvailabilityService(tr tariff.Repository, cr closure.Repository, rr reservation.Repository, c clock.Clock, cache AvailabilityCache, cfg AvailabilityConfig) *AvailabilityService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 14
	}
	return &AvailabilityService{tariffs: tr, closures: cr, reservations: rr, clock: c, cache: cache, cfg: cfg}
}

type AvailabilityInput struct {
	TenantID        string
	ResourceID      string
	DateFrom        time.Time
	Days            int
	Capabilities    []tariff.Capability
	SegmentOverride *tariff.Segment
}

// DayAvailability は1日分の空き状況
type DayAvailability struct {
	Date      string `json:"date"`
	OpenMin   int    `json:"open_min"`
	CloseMin  int    `json:"close_min"`
	Ticks     []Tick `json:"ticks"`
	Durations []int  `json:"durations"`
}

// Tick は30分刻みの1点（Minute は当日0時基準で、翌日分は1440以上）
type Tick struct {
	Time      string `json:"time"`
	Minute    int    `json:"minute"`
	DayOffset int    `json:"day_offset"`
	CanStart  bool   `json:"can_start"`
	CanEnd    bool   `json:"can_end"`
	Reason    string `json:"reason,omitempty"`
	BlockKind string `json:"block_kind,omitempty"`
}

type busyInterval struct {
	timerange.Interval
	kind string
}

// Availability は指定日から days 日分の空き状況を返す
func (s *AvailabilityService) Availability(ctx context.Context, input AvailabilityInput) ([]DayAvailability, error) {
	if input.Days < 1 || input.Days > s.cfg.MaxDays {
		return nil, ErrInvalidDays
	}
	segment, err := tariff.SegmentFor(input.Capabilities, input.SegmentOverride)
	if err != nil {
		return nil, err
	}
	plan, err := s.tariffs.ResolvePlan(ctx, input.TenantID, input.ResourceID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	today := timerange.DateOf(now, s.cfg.Location)
	days := make([]DayAvailability, 0, input.Days)
	for i := 0; i < input.Days; i++ {
		date := timerange.AddDays(input.DateFrom, i)
		cacheable := s.cache != nil && !date.Equal(today)
		field := string(segment) + ":" + timerange.FormatDate(date)

		if cacheable {
			if day, ok := s.fromCache(ctx, input.ResourceID, field); ok {
				days = append(days, *day)
				continue
			}
		}

		day, err := s.day(ctx, input.TenantID, input.ResourceID, plan.ID, segment, date, now)
		if err != nil {
			return nil, err
		}
		if cacheable {
			s.toCache(ctx, input.ResourceID, field, day)
		}
		days = append(days, *day)
	}
	return days, nil
}

func (s *AvailabilityService) day(ctx context.Context, tenantID, resourceID, planID string, segment tariff.Segment, date, now time.Time) (*DayAvailability, error) {
	loc := s.cfg.Location
	rules, err := s.tariffs.RulesForDate(ctx, planID, segment, date)
	if err != nil {
		return nil, fmt.Errorf("料金ルールの取得に失敗: %w", err)
	}

	// 営業時間の外枠と、ルールの時間帯を結合した予約可能区間
	openMin, closeMin := s.cfg.FallbackOpen, s.cfg.FallbackClose
	var allowed timerange.Intervals
	durationSet := make(map[int]bool)
	for i, r := range rules {
		from, to := r.Window()
		if i == 0 || from < openMin {
			openMin = from
		}
		if i == 0 || to > closeMin {
			closeMin = to
		}
		allowed = append(allowed, timerange.Range{Date: date, StartMin: from, EndMin: to}.Absolute(loc))
		durationSet[r.DurationMin] = true
	}
	openMin = floorTick(openMin)
	closeMin = ceilTick(closeMin)
	allowed = allowed.Merge()

	busy, err := s.busySet(ctx, tenantID, resourceID, date, openMin, closeMin, now)
	if err != nil {
		return nil, err
	}

	day := &DayAvailability{
		Date:     timerange.FormatDate(date),
		OpenMin:  openMin,
		CloseMin: closeMin,
	}
	for t := openMin; t <= closeMin; t += timerange.TickMinutes {
		at := timerange.At(date, t, loc)
		next := timerange.Interval{Start: at, End: timerange.At(date, t+timerange.TickMinutes, loc)}
		prev := timerange.Interval{Start: timerange.At(date, t-timerange.TickMinutes, loc), End: at}

		tick := Tick{
			Time:      timerange.FormatClock(t),
			Minute:    t,
			DayOffset: t / timerange.MinutesPerDay,
			CanStart:  allowed.Covers(next) && !intersectsBusy(busy, next),
			CanEnd:    allowed.Covers(prev) && !intersectsBusy(busy, prev),
		}
		if kind := blockKindAt(busy, at); kind != "" {
			tick.Reason = ReasonBlocked
			tick.BlockKind = kind
		}
		day.Ticks = append(day.Ticks, tick)
	}

	for d := range durationSet {
		day.Durations = append(day.Durations, d)
	}
	sort.Ints(day.Durations)
	return day, nil
}

// busySet は予約・仮押さえ・閉鎖・経過時間から占有区間を作る
func (s *AvailabilityService) busySet(ctx context.Context, tenantID, resourceID string, date time.Time, openMin, closeMin int, now time.Time) ([]busyInterval, error) {
	loc := s.cfg.Location
	from := timerange.At(date, openMin-timerange.TickMinutes, loc)
	to := timerange.At(date, closeMin+timerange.TickMinutes, loc)

	var busy []busyInterval
	reservations, err := s.reservations.ListActiveInRange(ctx, resourceID, from, to, now)
	if err != nil {
		return nil, fmt.Errorf("予約の取得に失敗: %w", err)
	}
	for _, r := range reservations {
		kind := BlockConfirmed
		if r.Status == reservation.StatusPendingPayment {
			kind = BlockHold
		}
		busy = append(busy, busyInterval{Interval: r.Interval(), kind: kind})
	}

	// 前後の日付に宣言された日跨ぎの閉鎖も対象にする
	closures, err := s.closures.ListForRange(ctx, tenantID, resourceID, timerange.AddDays(date, -1), timerange.AddDays(date, 1))
	if err != nil {
		return nil, fmt.Errorf("閉鎖情報の取得に失敗: %w", err)
	}
	for _, c := range closures {
		busy = append(busy, busyInterval{Interval: c.Interval(loc), kind: BlockClosure})
	}

	// 現在時刻の次の正時までは予約不可
	local := now.In(loc)
	cutoff := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc).Add(time.Hour)
	if start := timerange.At(date, 0, loc); cutoff.After(start) {
		busy = append(busy, busyInterval{Interval: timerange.Interval{Start: start, End: cutoff}, kind: BlockElapsed})
	}
	return busy, nil
}

func intersectsBusy(busy []busyInterval, iv timerange.Interval) bool {
	for _, b := range busy {
		if b.Overlaps(iv) {
			return true
		}
	}
	return false
}

// blockKindAt は時刻 at を含む占有区間のうち最も優先度の高い種類を返す
func blockKindAt(busy []busyInterval, at time.Time) string {
	kind := ""
	for _, b := range busy {
		if b.Contains(at) && blockPrecedence[b.kind] > blockPrecedence[kind] {
			kind = b.kind
		}
	}
	return kind
}

func floorTick(m int) int {
	return m - m%timerange.TickMinutes
}

func ceilTick(m int) int {
	if r := m % timerange.TickMinutes; r != 0 {
		return m + timerange.TickMinutes - r
	}
	return m
}

func (s *AvailabilityService) fromCache(ctx context.Context, resourceID, field string) (*DayAvailability, bool) {
	raw, err := s.cache.Get(ctx, resourceID, field)
	if err != nil {
		return nil, false
	}
	var day DayAvailability
	if err := json.Unmarshal(raw, &day); err != nil {
		logger.FromContext(ctx).Warn("空き状況キャッシュの復元に失敗", zap.Error(err))
		return nil, false
	}
	return &day, true
}

func (s *AvailabilityService) toCache(ctx context.Context, resourceID, field string, day *DayAvailability) {
	raw, err := json.Marshal(day)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, resourceID, field, raw); err != nil {
		logger.FromContext(ctx).Warn("空き状況キャッシュの保存に失敗", zap.Error(err))
	}
}

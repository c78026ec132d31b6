package application

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/metrics"
)

// 公開見積もりで受け付ける予約時間（分）
var quotableDurations = map[int]bool{60: true, 90: true, 120: true}

// ハイブリッド計算で使う時間枠の組（60/90/120分）
var tripleBuckets = [3]int{60, 90, 120}

type PricingService struct {
	tariffs tariff.Repository
	metrics *metrics.Metrics
}

func NewPricingService(tr tariff.Repository, m *metrics.Metrics) *PricingService {
	return &PricingService{tariffs: tr, metrics: m}
}

type QuoteInput struct {
	TenantID        string
	ResourceID      string
	Date            time.Time
	StartMin        int
	EndMin          int
	Capabilities    []tariff.Capability
	SegmentOverride *tariff.Segment
}

type PriceRangeInput struct {
	TenantID   string
	ResourceID string
	Range      timerange.Range
	Segment    tariff.Segment
}

// Quote は見積もり結果
type Quote struct {
	Total     int64
	PlanID    string
	RuleID    string
	RuleIDs   []string
	Segment   tariff.Segment
	Range     timerange.Range
	Hybrid    bool
	Breakdown []QuoteSegment
}

// QuoteSegment はハイブリッド見積もりの区間ごとの内訳（分は開始日の0時基準）
type QuoteSegment struct {
	StartMin int
	EndMin   int
	RuleIDs  []string
	Subtotal int64
}

// Quote は公開用の見積もり。予約時間は60/90/120分のみ
func (s *PricingService) Quote(ctx context.Context, input QuoteInput) (*Quote, error) {
	segment, err := tariff.SegmentFor(input.Capabilities, input.SegmentOverride)
	if err != nil {
		return nil, err
	}
	rg, err := timerange.New(input.Date, input.StartMin, input.EndMin)
	if err != nil {
		return nil, tariff.ErrUnsupportedDuration
	}
	if !quotableDurations[rg.Duration()] || !rg.Aligned() {
		return nil, tariff.ErrUnsupportedDuration
	}
	return s.PriceRange(ctx, PriceRangeInput{
		TenantID:   input.TenantID,
		ResourceID: input.ResourceID,
		Range:      rg,
		Segment:    segment,
	})
}

// PriceRange は30分単位の任意の時間帯の料金を計算する（予約作成・定期予約用）
func (s *PricingService) PriceRange(ctx context.Context, input PriceRangeInput) (*Quote, error) {
	rg := input.Range
	if rg.Duration() <= 0 || rg.Duration() >= timerange.MinutesPerDay || !rg.Aligned() {
		return nil, tariff.ErrUnsupportedDuration
	}
	if !input.Segment.Valid() {
		return nil, tariff.ErrInvalidSegment
	}

	plan, err := s.tariffs.ResolvePlan(ctx, input.TenantID, input.ResourceID)
	if err != nil {
		return nil, err
	}

	book := newRuleBook(s.tariffs, plan.ID, input.Segment, rg.Date)
	q, err := s.price(ctx, book, rg)
	if err != nil {
		if isPricingConflict(err) {
			s.metrics.ObserveQuote("conflict")
		}
		return nil, err
	}
	q.PlanID = plan.ID
	q.Segment = input.Segment
	q.Range = rg
	if q.Hybrid {
		s.metrics.ObserveQuote("hybrid")
	} else {
		s.metrics.ObserveQuote("direct")
	}
	return q, nil
}

// EnsureResource はコートがテナント配下にあることを確認する
func (s *PricingService) EnsureResource(ctx context.Context, tenantID, resourceID string) error {
	ok, err := s.tariffs.ResourceExists(ctx, tenantID, resourceID)
	if err != nil {
		return err
	}
	if !ok {
		return tariff.ErrResourceNotFound
	}
	return nil
}

type triple [3]*tariff.Rule

func (t triple) key() [3]string {
	var k [3]string
	for i, r := range t {
		if r != nil {
			k[i] = r.ID
		}
	}
	return k
}

type tickGroup struct {
	startMin int
	endMin   int
	rules    triple
}

func (s *PricingService) price(ctx context.Context, book *ruleBook, rg timerange.Range) (*Quote, error) {
	groups, err := s.groupTicks(ctx, book, rg)
	if err != nil {
		return nil, err
	}

	// 単一区間かつ時間枠どおりの長さなら、その時間枠のルールをそのまま使う
	if len(groups) == 1 && isBucket(rg.Duration()) {
		rule, err := book.ruleAt(ctx, rg.StartMin, rg.Duration())
		if err != nil {
			return nil, err
		}
		if rule == nil {
			return nil, tariff.ErrNoApplicableRule
		}
		return &Quote{Total: rule.Price, RuleID: rule.ID, RuleIDs: []string{rule.ID}}, nil
	}

	// 区間ごとに部品の組み合わせで最小料金を求める（時間枠にない長さの単一区間も含む）
	q := &Quote{Hybrid: len(groups) > 1}
	var total float64
	seen := make(map[string]bool)
	for _, g := range groups {
		ticks := (g.endMin - g.startMin) / timerange.TickMinutes
		cost, ok := tileCost(ticks, g.rules)
		if !ok {
			logger.FromContext(ctx).Warn("料金ルールで区間を分割できません",
				zap.String("from", timerange.FormatClock(g.startMin)),
				zap.String("to", timerange.FormatClock(g.endMin)),
			)
			return nil, tariff.ErrNotTileable
		}
		total += cost

		seg := QuoteSegment{StartMin: g.startMin, EndMin: g.endMin, Subtotal: int64(math.Round(cost))}
		for _, r := range g.rules {
			if r == nil {
				continue
			}
			seg.RuleIDs = append(seg.RuleIDs, r.ID)
			if !seen[r.ID] {
				seen[r.ID] = true
				q.RuleIDs = append(q.RuleIDs, r.ID)
			}
		}
		q.Breakdown = append(q.Breakdown, seg)
	}
	q.Total = int64(math.Round(total))
	q.RuleID = q.RuleIDs[0]
	return q, nil
}

// groupTicks は適用ルールの組が同じ連続した30分刻みをまとめる
func (s *PricingService) groupTicks(ctx context.Context, book *ruleBook, rg timerange.Range) ([]tickGroup, error) {
	var groups []tickGroup
	for t := rg.StartMin; t < rg.EndMin; t += timerange.TickMinutes {
		var tr triple
		for i, b := range tripleBuckets {
			r, err := book.ruleAt(ctx, t, b)
			if err != nil {
				return nil, err
			}
			tr[i] = r
		}
		if n := len(groups); n > 0 && groups[n-1].rules.key() == tr.key() {
			groups[n-1].endMin = t + timerange.TickMinutes
			continue
		}
		groups = append(groups, tickGroup{startMin: t, endMin: t + timerange.TickMinutes, rules: tr})
	}
	return groups, nil
}

// tileCost は ticks 個の30分刻みをちょうど覆う最小料金を動的計画法で求める
// 部品: 30分=60分料金の半額, 60分, 90分, 120分（ルールがある場合のみ）
func tileCost(ticks int, rules triple) (float64, bool) {
	type piece struct {
		ticks int
		cost  float64
	}
	var pieces []piece
	if r := rules[0]; r != nil {
		pieces = append(pieces, piece{1, float64(r.Price) / 2}, piece{2, float64(r.Price)})
	}
	if r := rules[1]; r != nil {
		pieces = append(pieces, piece{3, float64(r.Price)})
	}
	if r := rules[2]; r != nil {
		pieces = append(pieces, piece{4, float64(r.Price)})
	}
	if len(pieces) == 0 {
		return 0, false
	}

	inf := math.Inf(1)
	dp := make([]float64, ticks+1)
	for i := 1; i <= ticks; i++ {
		dp[i] = inf
		for _, p := range pieces {
			if p.ticks <= i && dp[i-p.ticks]+p.cost < dp[i] {
				dp[i] = dp[i-p.ticks] + p.cost
			}
		}
	}
	if math.IsInf(dp[ticks], 1) {
		return 0, false
	}
	return dp[ticks], true
}

func isBucket(d int) bool {
	for _, b := range tariff.Buckets {
		if b == d {
			return true
		}
	}
	return false
}

func isPricingConflict(err error) bool {
	return errors.Is(err, tariff.ErrNoApplicableRule) ||
		errors.Is(err, tariff.ErrNotTileable) ||
		errors.Is(err, tariff.ErrAmbiguousCarryOver)
}

// ruleBook は基準日の前後の日付ごとの料金ルールを遅延取得して保持する
type ruleBook struct {
	repo    tariff.Repository
	planID  string
	segment tariff.Segment
	date    time.Time
	byDay   map[int][]*tariff.Rule
}

func newRuleBook(repo tariff.Repository, planID string, segment tariff.Segment, date time.Time) *ruleBook {
	return &ruleBook{repo: repo, planID: planID, segment: segment, date: date, byDay: make(map[int][]*tariff.Rule)}
}

// rules は基準日から offset 日後に有効なルールを返す
func (b *ruleBook) rules(ctx context.Context, offset int) ([]*tariff.Rule, error) {
	if rs, ok := b.byDay[offset]; ok {
		return rs, nil
	}
	rs, err := b.repo.RulesForDate(ctx, b.planID, b.segment, timerange.AddDays(b.date, offset))
	if err != nil {
		return nil, fmt.Errorf("料金ルールの取得に失敗: %w", err)
	}
	b.byDay[offset] = rs
	return rs, nil
}

// ruleAt は基準日0時から t 分の刻みに、時間枠 bucket で適用されるルールを返す（なければ nil）
// 前日の日跨ぎルールと当日のルールが両方該当する場合は設定不備として扱う
func (b *ruleBook) ruleAt(ctx context.Context, t, bucket int) (*tariff.Rule, error) {
	day := t / timerange.MinutesPerDay
	m := t % timerange.MinutesPerDay

	prev, err := b.rules(ctx, day-1)
	if err != nil {
		return nil, err
	}
	own, err := b.rules(ctx, day)
	if err != nil {
		return nil, err
	}

	var carried, current []*tariff.Rule
	for _, r := range prev {
		if r.DurationMin == bucket && r.CoversCarried(m) {
			carried = append(carried, r)
		}
	}
	for _, r := range own {
		if r.DurationMin == bucket && r.CoversOwnDay(m) {
			current = append(current, r)
		}
	}

	if len(carried) > 0 && len(current) > 0 {
		logger.FromContext(ctx).Warn("前日の深夜ルールと当日のルールが同じ時間帯に該当します",
			zap.String("plan_id", b.planID),
			zap.String("date", timerange.FormatDate(timerange.AddDays(b.date, day))),
			zap.String("time", timerange.FormatClock(m)),
			zap.Int("duration", bucket),
			zap.String("carried_rule_id", carried[0].ID),
			zap.String("current_rule_id", current[0].ID),
		)
		return nil, tariff.ErrAmbiguousCarryOver
	}
	if len(carried) > 0 {
		return pickRule(carried), nil
	}
	return pickRule(current), nil
}

// pickRule は優先度、曜日指定、ID の順で一意にルールを選ぶ
func pickRule(rs []*tariff.Rule) *tariff.Rule {
	if len(rs) == 0 {
		return nil
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Outranks(rs[j]) {
			return true
		}
		if rs[j].Outranks(rs[i]) {
			return false
		}
		return rs[i].ID < rs[j].ID
	})
	return rs[0]
}

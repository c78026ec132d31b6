package tariff

import (
	"time"

	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

// Segment は料金ルールを選ぶ利用者区分
type Segment string

const (
	SegmentPublic     Segment = "public"
	SegmentInstructor Segment = "instructor"
)

// Valid は既知の区分かを返す
func (s Segment) Valid() bool {
	return s == SegmentPublic || s == SegmentInstructor
}

// Capability は利用者がテナント内で持つ権限
type Capability string

const (
	CapabilityInstructor Capability = "instructor"
	CapabilityStaff      Capability = "staff"
)

// ResolveSegment は権限集合から料金区分を決める
func ResolveSegment(caps []Capability) Segment {
	if HasCapability(caps, CapabilityInstructor) {
		return SegmentInstructor
	}
	return SegmentPublic
}

// HasCapability は権限集合に c が含まれるかを返す
func HasCapability(caps []Capability, c Capability) bool {
	for _, v := range caps {
		if v == c {
			return true
		}
	}
	return false
}

// SegmentFor は明示指定があればそれを、なければ権限から区分を決める
// 権限から導かれる区分と異なる指定はスタッフのみ可能
func SegmentFor(caps []Capability, override *Segment) (Segment, error) {
	derived := ResolveSegment(caps)
	if override == nil || *override == "" {
		return derived, nil
	}
	if !override.Valid() {
		return "", ErrInvalidSegment
	}
	if *override != derived && !HasCapability(caps, CapabilityStaff) {
		return "", ErrOverrideForbidden
	}
	return *override, nil
}

// Buckets は料金ルールが扱う時間枠（分）
var Buckets = []int{30, 60, 90, 120}

// Plan は料金プラン
type Plan struct {
	ID       string
	TenantID string
	Name     string
}

// Rule は料金ルール
// FromMin/ToMin は 0時からの分。CrossesMidnight のとき ToMin は翌日の時刻を表す
type Rule struct {
	ID              string
	PlanID          string
	Segment         Segment
	DayOfWeek       *time.Weekday
	FromMin         int
	ToMin           int
	CrossesMidnight bool
	DurationMin     int
	Price           int64
	Priority        int
	ValidFrom       time.Time
	ValidTo         *time.Time
	Active          bool
}

// ValidOn は日付 d にルールが有効かを返す（曜日・有効期間・有効フラグ）
func (r *Rule) ValidOn(d time.Time) bool {
	if !r.Active {
		return false
	}
	if !r.AppliesOnWeekday(d.Weekday()) {
		return false
	}
	if d.Before(r.ValidFrom) {
		return false
	}
	if r.ValidTo != nil && d.After(*r.ValidTo) {
		return false
	}
	return true
}

// AppliesOnWeekday は曜日指定が一致するか（指定なしは全曜日）を返す
func (r *Rule) AppliesOnWeekday(wd time.Weekday) bool {
	return r.DayOfWeek == nil || *r.DayOfWeek == wd
}

// Window はアンカー日付 0時からの分で表した適用時間帯 [from, to) を返す
func (r *Rule) Window() (int, int) {
	to := r.ToMin
	if r.CrossesMidnight || to <= r.FromMin {
		to += timerange.MinutesPerDay
	}
	return r.FromMin, to
}

// CoversOwnDay はアンカー日付当日の分 m にルールが掛かるかを返す
func (r *Rule) CoversOwnDay(m int) bool {
	from, to := r.Window()
	return m >= from && m < to
}

// CoversCarried は前日アンカーの日跨ぎルールが翌日の分 m に掛かるかを返す
func (r *Rule) CoversCarried(m int) bool {
	_, to := r.Window()
	return to > timerange.MinutesPerDay && m+timerange.MinutesPerDay < to
}

// DayOfWeekSpecific は曜日指定ありのルールかを返す
func (r *Rule) DayOfWeekSpecific() bool {
	return r.DayOfWeek != nil
}

// Outranks はタイブレークで r が o より優先されるかを返す
// 優先度が高い方、同じなら曜日指定ありの方が勝つ
func (r *Rule) Outranks(o *Rule) bool {
	if r.Priority != o.Priority {
		return r.Priority > o.Priority
	}
	return r.DayOfWeekSpecific() && !o.DayOfWeekSpecific()
}

// Validate はルール定義を検証する
func (r *Rule) Validate() error {
	if r.PlanID == "" {
		return ErrPlanIDRequired
	}
	if !r.Segment.Valid() {
		return ErrInvalidSegment
	}
	if r.FromMin < 0 || r.FromMin >= timerange.MinutesPerDay || r.ToMin < 0 || r.ToMin > timerange.MinutesPerDay {
		return ErrInvalidWindow
	}
	if r.FromMin%timerange.TickMinutes != 0 || r.ToMin%timerange.TickMinutes != 0 {
		return ErrInvalidWindow
	}
	if !r.CrossesMidnight && r.ToMin <= r.FromMin {
		return ErrInvalidWindow
	}
	if !validBucket(r.DurationMin) {
		return ErrInvalidBucket
	}
	if r.Price < 0 {
		return ErrInvalidPrice
	}
	return nil
}

func validBucket(d int) bool {
	for _, b := range Buckets {
		if b == d {
			return true
		}
	}
	return false
}

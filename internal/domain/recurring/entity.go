package recurring

import (
	"time"

	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

// MaxWeeksAhead は一度に生成できる最大週数
const MaxWeeksAhead = 52

// Template は毎週の定期予約（固定枠）
type Template struct {
	ID          string
	TenantID    string
	ResourceID  string
	DayOfWeek   time.Weekday
	StartMin    int
	DurationMin int
	Active      bool
	StartDate   time.Time
	EndDate     *time.Time
	Client      reservation.Client
	Segment     tariff.Segment
	Notes       string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate はテンプレートの検証を行う
func (t *Template) Validate() error {
	if t.TenantID == "" || t.ResourceID == "" {
		return ErrResourceRequired
	}
	if t.DayOfWeek < time.Sunday || t.DayOfWeek > time.Saturday {
		return ErrInvalidDayOfWeek
	}
	if _, err := timerange.FromDuration(t.StartDate, t.StartMin, t.DurationMin); err != nil {
		return ErrInvalidSlot
	}
	if t.StartMin%timerange.TickMinutes != 0 || t.DurationMin%timerange.TickMinutes != 0 {
		return ErrInvalidSlot
	}
	if !t.Segment.Valid() {
		return ErrInvalidSegment
	}
	if t.EndDate != nil && t.EndDate.Before(t.StartDate) {
		return ErrInvalidValidity
	}
	return nil
}

// FirstOccurrence は from 以降で最初の該当曜日を返す
func (t *Template) FirstOccurrence(from time.Time) time.Time {
	shift := (int(t.DayOfWeek) - int(from.Weekday()) + 7) % 7
	return timerange.AddDays(from, shift)
}

// Within は日付 d がテンプレートの有効期間内かを返す
func (t *Template) Within(d time.Time) bool {
	if d.Before(t.StartDate) {
		return false
	}
	return t.EndDate == nil || !d.After(*t.EndDate)
}

// Action は例外日の扱い
type Action string

const (
	ActionSkip     Action = "skip"
	ActionOverride Action = "override"
)

// Exception は特定日の例外（休み・一回限りの変更）
type Exception struct {
	ID          string
	TemplateID  string
	Date        time.Time
	Action      Action
	ResourceID  *string
	StartMin    *int
	DurationMin *int
	Notes       string
	CreatedAt   time.Time
}

// Validate は例外の検証を行う
func (e *Exception) Validate() error {
	switch e.Action {
	case ActionSkip:
		return nil
	case ActionOverride:
		if e.ResourceID == nil && e.StartMin == nil && e.DurationMin == nil {
			return ErrEmptyOverride
		}
		if e.StartMin != nil && (*e.StartMin < 0 || *e.StartMin >= timerange.MinutesPerDay || *e.StartMin%timerange.TickMinutes != 0) {
			return ErrInvalidSlot
		}
		if e.DurationMin != nil && (*e.DurationMin <= 0 || *e.DurationMin >= timerange.MinutesPerDay || *e.DurationMin%timerange.TickMinutes != 0) {
			return ErrInvalidSlot
		}
		return nil
	default:
		return ErrInvalidAction
	}
}

// Occurrence は生成対象の1回分の枠
type Occurrence struct {
	Date        time.Time
	ResourceID  string
	StartMin    int
	DurationMin int
}

// Apply は例外を反映した枠を返す。skip の場合は false
func (t *Template) Apply(date time.Time, exc *Exception) (Occurrence, bool) {
	occ := Occurrence{Date: date, ResourceID: t.ResourceID, StartMin: t.StartMin, DurationMin: t.DurationMin}
	if exc == nil {
		return occ, true
	}
	if exc.Action == ActionSkip {
		return Occurrence{}, false
	}
	if exc.ResourceID != nil {
		occ.ResourceID = *exc.ResourceID
	}
	if exc.StartMin != nil {
		occ.StartMin = *exc.StartMin
	}
	if exc.DurationMin != nil {
		occ.DurationMin = *exc.DurationMin
	}
	return occ, true
}

// ConflictPolicy は生成中の衝突時の挙動
type ConflictPolicy string

const (
	PolicySkip  ConflictPolicy = "skip"
	PolicyAbort ConflictPolicy = "abort"
)

// Valid は既知のポリシーかを返す
func (p ConflictPolicy) Valid() bool {
	return p == PolicySkip || p == PolicyAbort
}

// Conflict は生成できなかった日付と理由
type Conflict struct {
	Date   time.Time
	Reason string
	Code   string
}

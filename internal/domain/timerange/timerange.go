// Package timerange は日付+分オフセットで表す予約時間帯と、
// 日跨ぎ（深夜0時超え）の計算を一か所に集約する。
package timerange

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

const (
	// MinutesPerDay は1日の分数
	MinutesPerDay = 24 * 60
	// TickMinutes は予約の最小単位（30分）
	TickMinutes = 30

	dateLayout = "2006-01-02"
)

var (
	ErrInvalidDate     = errors.New("日付の形式が不正です（YYYY-MM-DD）")
	ErrInvalidClock    = errors.New("時刻の形式が不正です（HH:MM）")
	ErrInvalidDuration = errors.New("時間の長さが不正です")
	ErrNotAligned      = errors.New("時刻は30分単位である必要があります")
)

// ParseDate は YYYY-MM-DD を UTC 0時の日付として解釈する
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// FormatDate は日付を YYYY-MM-DD で返す
func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

// Date は年月日だけを残した UTC 0時の日付を返す
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf は時刻 t の loc における暦日を返す
func DateOf(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return Date(lt.Year(), lt.Month(), lt.Day())
}

// DateOnly は t の年月日だけを残した UTC 0時の日付を返す
func DateOnly(t time.Time) time.Time {
	return Date(t.Year(), t.Month(), t.Day())
}

// AddDays は日付に n 日加える
func AddDays(d time.Time, n int) time.Time {
	return d.AddDate(0, 0, n)
}

// At は暦日 d の loc における 0時から minute 分後の絶対時刻を返す
// minute が1440以上なら翌日以降になる
func At(d time.Time, minute int, loc *time.Location) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, minute, 0, 0, loc)
}

// ParseClock は HH:MM を 0時からの分に変換する
func ParseClock(s string) (int, error) {
	if len(s) != 5 {
		return 0, ErrInvalidClock
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, ErrInvalidClock
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock は分を HH:MM に変換する（1440で正規化する）
func FormatClock(minute int) string {
	minute = Normalize(minute)
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// Normalize は分を [0,1440) に正規化する
func Normalize(minute int) int {
	minute %= MinutesPerDay
	if minute < 0 {
		minute += MinutesPerDay
	}
	return minute
}

// Range は開始日 Date を基準にした半開区間 [StartMin, EndMin)
// EndMin は日跨ぎの場合 1440 を超える
type Range struct {
	Date     time.Time
	StartMin int
	EndMin   int
}

// New は開始・終了時刻から Range を作る。end <= start は日跨ぎとみなす
func New(date time.Time, start, end int) (Range, error) {
	if start < 0 || start >= MinutesPerDay || end < 0 || end >= MinutesPerDay {
		return Range{}, ErrInvalidClock
	}
	if end <= start {
		end += MinutesPerDay
	}
	return Range{Date: date, StartMin: start, EndMin: end}, nil
}

// FromDuration は開始時刻と長さから Range を作る
func FromDuration(date time.Time, start, duration int) (Range, error) {
	if start < 0 || start >= MinutesPerDay {
		return Range{}, ErrInvalidClock
	}
	if duration <= 0 || duration >= MinutesPerDay {
		return Range{}, ErrInvalidDuration
	}
	return Range{Date: date, StartMin: start, EndMin: start + duration}, nil
}

// Duration は分単位の長さを返す
func (r Range) Duration() int {
	return r.EndMin - r.StartMin
}

// EndClock は終了時刻を [0,1440) に正規化して返す
func (r Range) EndClock() int {
	return Normalize(r.EndMin)
}

// DayOffset は終了が翌日にかかる場合 1 を返す
func (r Range) DayOffset() int {
	if r.EndMin >= MinutesPerDay {
		return 1
	}
	return 0
}

// Aligned は開始と終了が30分刻みかを返す
func (r Range) Aligned() bool {
	return r.StartMin%TickMinutes == 0 && r.EndMin%TickMinutes == 0
}

// Absolute は loc における絶対時刻の区間を返す
func (r Range) Absolute(loc *time.Location) Interval {
	return Interval{Start: At(r.Date, r.StartMin, loc), End: At(r.Date, r.EndMin, loc)}
}

// Decode は保存形式（日付・開始・終了・日跨ぎフラグ）から Range を復元する
func Decode(date time.Time, start, end, dayOffset int) Range {
	return Range{Date: date, StartMin: start, EndMin: end + dayOffset*MinutesPerDay}
}

// Interval は絶対時刻の半開区間 [Start, End)
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps は2区間が重なるかを返す
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains は時刻 t が区間内 [Start, End) にあるかを返す
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// Covers は区間 o が完全に含まれるかを返す
func (i Interval) Covers(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Intervals は絶対時刻の区間集合
type Intervals []Interval

// Merge は重なる・接する区間を結合し、開始順に並べた新しい集合を返す
func (s Intervals) Merge() Intervals {
	if len(s) == 0 {
		return nil
	}
	sorted := make(Intervals, len(s))
	copy(sorted, s)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := Intervals{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// Covers は iv 全体がいずれかの区間に含まれるかを返す（Merge 済みの集合を前提とする）
func (s Intervals) Covers(iv Interval) bool {
	for _, x := range s {
		if x.Covers(iv) {
			return true
		}
	}
	return false
}

// Intersects は iv がいずれかの区間と重なるかを返す
func (s Intervals) Intersects(iv Interval) bool {
	for _, x := range s {
		if x.Overlaps(iv) {
			return true
		}
	}
	return false
}

package closure

import (
	"time"

	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

// Closure は管理者が設定した利用不可の時間帯
// ResourceID が空ならテナント全体、StartMin/EndMin が nil なら終日
type Closure struct {
	ID              string
	TenantID        string
	ResourceID      *string
	Date            time.Time
	StartMin        *int
	EndMin          *int
	CrossesMidnight bool
	Active          bool
	Reason          string
}

// FullDay は終日閉鎖かを返す
func (c *Closure) FullDay() bool {
	return c.StartMin == nil || c.EndMin == nil
}

// TenantWide はテナント全体の閉鎖かを返す
func (c *Closure) TenantWide() bool {
	return c.ResourceID == nil
}

// AppliesTo はコート resourceID に適用されるかを返す
func (c *Closure) AppliesTo(resourceID string) bool {
	return c.Active && (c.TenantWide() || *c.ResourceID == resourceID)
}

// Range は閉鎖日基準の時間帯を返す
func (c *Closure) Range() timerange.Range {
	if c.FullDay() {
		return timerange.Range{Date: c.Date, StartMin: 0, EndMin: timerange.MinutesPerDay}
	}
	end := *c.EndMin
	if c.CrossesMidnight || end <= *c.StartMin {
		end += timerange.MinutesPerDay
	}
	return timerange.Range{Date: c.Date, StartMin: *c.StartMin, EndMin: end}
}

// Interval は loc における絶対時刻の閉鎖区間を返す
func (c *Closure) Interval(loc *time.Location) timerange.Interval {
	return c.Range().Absolute(loc)
}

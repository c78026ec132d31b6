package timerange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:30", 510, false},
		{"23:30", 1410, false},
		{"24:00", 0, true},
		{"8:30", 0, true},
		{"ab:cd", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatClock_Normalizes(t *testing.T) {
	assert.Equal(t, "00:30", FormatClock(1470))
	assert.Equal(t, "23:00", FormatClock(1380))
}

func TestNew_CrossingMidnight(t *testing.T) {
	d := Date(2025, 3, 10)
	r, err := New(d, 23*60, 60)
	require.NoError(t, err)

	assert.Equal(t, 1380, r.StartMin)
	assert.Equal(t, 1500, r.EndMin)
	assert.Equal(t, 120, r.Duration())
	assert.Equal(t, 60, r.EndClock())
	assert.Equal(t, 1, r.DayOffset())
}

func TestRange_EndingExactlyAtMidnight(t *testing.T) {
	r, err := FromDuration(Date(2025, 3, 10), 23*60, 60)
	require.NoError(t, err)
	assert.Equal(t, 0, r.EndClock())
	assert.Equal(t, 1, r.DayOffset())

	iv := r.Absolute(time.UTC)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), iv.End)
}

func TestRange_RoundTrip(t *testing.T) {
	d := Date(2025, 3, 10)
	for start := 0; start < MinutesPerDay; start += TickMinutes {
		for _, dur := range []int{30, 60, 90, 120, 180} {
			r, err := FromDuration(d, start, dur)
			require.NoError(t, err)

			back := Decode(r.Date, r.StartMin, r.EndClock(), r.DayOffset())
			assert.Equal(t, r, back)

			iv := r.Absolute(time.UTC)
			assert.Equal(t, time.Duration(dur)*time.Minute, iv.End.Sub(iv.Start))
		}
	}
}

func TestInterval_HalfOpen(t *testing.T) {
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	a := Interval{Start: base, End: base.Add(time.Hour)}
	b := Interval{Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)}

	assert.False(t, a.Overlaps(b))
	assert.True(t, a.Contains(base))
	assert.False(t, a.Contains(base.Add(time.Hour)))
	assert.True(t, a.Covers(Interval{Start: base, End: base.Add(30 * time.Minute)}))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())
	assert.Equal(t, "2025-03-11", FormatDate(AddDays(d, 1)))

	_, err = ParseDate("10/03/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestIntervals_Merge(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2025, 3, 10, h, m, 0, 0, time.UTC) }
	set := Intervals{
		{Start: at(14, 0), End: at(16, 0)},
		{Start: at(8, 0), End: at(10, 0)},
		{Start: at(10, 0), End: at(12, 0)},
		{Start: at(15, 0), End: at(15, 30)},
	}

	merged := set.Merge()
	require.Len(t, merged, 2)
	assert.Equal(t, Interval{Start: at(8, 0), End: at(12, 0)}, merged[0])
	assert.Equal(t, Interval{Start: at(14, 0), End: at(16, 0)}, merged[1])

	assert.True(t, merged.Covers(Interval{Start: at(9, 30), End: at(10, 30)}))
	assert.False(t, merged.Covers(Interval{Start: at(11, 30), End: at(12, 30)}))
	assert.True(t, merged.Intersects(Interval{Start: at(11, 30), End: at(12, 30)}))
	assert.False(t, merged.Intersects(Interval{Start: at(12, 0), End: at(14, 0)}))
	assert.Nil(t, Intervals(nil).Merge())
}

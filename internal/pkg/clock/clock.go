package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻の供給元
type Clock interface {
	Now() time.Time
}

// System は実時間を返す Clock
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Mock はテスト用の手動で進める Clock
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set は現在時刻を設定する
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance は現在時刻を d だけ進める
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

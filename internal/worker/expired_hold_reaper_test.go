package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockHoldExpirer はHoldExpirerのモック
type MockHoldExpirer struct {
	mock.Mock
}

func (m *MockHoldExpirer) ExpireStaleHolds(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestNewExpiredHoldReaper(t *testing.T) {
	t.Run("指定した間隔", func(t *testing.T) {
		r := NewExpiredHoldReaper(new(MockHoldExpirer), 30*time.Second)
		assert.Equal(t, 30*time.Second, r.interval)
		assert.NotNil(t, r.stopCh)
		assert.NotNil(t, r.doneCh)
	})

	t.Run("間隔が0なら1分", func(t *testing.T) {
		r := NewExpiredHoldReaper(new(MockHoldExpirer), 0)
		assert.Equal(t, time.Minute, r.interval)
	})
}

func TestExpiredHoldReaper_RunOnce(t *testing.T) {
	t.Run("失効件数を返す", func(t *testing.T) {
		m := new(MockHoldExpirer)
		m.On("ExpireStaleHolds", mock.Anything).Return(3, nil)

		r := NewExpiredHoldReaper(m, time.Minute)
		assert.Equal(t, 3, r.RunOnce(context.Background()))
		m.AssertExpectations(t)
	})

	t.Run("対象なし", func(t *testing.T) {
		m := new(MockHoldExpirer)
		m.On("ExpireStaleHolds", mock.Anything).Return(0, nil)

		r := NewExpiredHoldReaper(m, time.Minute)
		assert.Equal(t, 0, r.RunOnce(context.Background()))
	})

	t.Run("エラーでもパニックしない", func(t *testing.T) {
		m := new(MockHoldExpirer)
		m.On("ExpireStaleHolds", mock.Anything).Return(0, errors.New("database error"))

		r := NewExpiredHoldReaper(m, time.Minute)
		assert.NotPanics(t, func() {
			assert.Equal(t, 0, r.RunOnce(context.Background()))
		})
	})
}

func TestExpiredHoldReaper_StartStop(t *testing.T) {
	t.Run("Stopで停止する", func(t *testing.T) {
		m := new(MockHoldExpirer)
		m.On("ExpireStaleHolds", mock.Anything).Return(1, nil).Maybe()

		r := NewExpiredHoldReaper(m, 10*time.Millisecond)
		go r.Start(context.Background())

		time.Sleep(35 * time.Millisecond)
		done := make(chan struct{})
		go func() {
			r.Stop()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("ワーカーが停止しませんでした")
		}
		m.AssertCalled(t, "ExpireStaleHolds", mock.Anything)
	})

	t.Run("コンテキストのキャンセルで停止する", func(t *testing.T) {
		m := new(MockHoldExpirer)
		m.On("ExpireStaleHolds", mock.Anything).Return(0, nil).Maybe()

		r := NewExpiredHoldReaper(m, time.Hour)
		ctx, cancel := context.WithCancel(context.Background())
		go r.Start(ctx)
		cancel()

		select {
		case <-r.doneCh:
		case <-time.After(time.Second):
			t.Fatal("ワーカーが停止しませんでした")
		}
		m.AssertNotCalled(t, "ExpireStaleHolds", mock.Anything)
	})

	t.Run("Stopは複数回呼べる", func(t *testing.T) {
		r := NewExpiredHoldReaper(new(MockHoldExpirer), time.Hour)
		go r.Start(context.Background())

		r.Stop()
		assert.NotPanics(t, r.Stop)
	})
}

package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
)

// HoldExpirer は期限切れの仮押さえを失効させる
type HoldExpirer interface {
	ExpireStaleHolds(ctx context.Context) (int, error)
}

// ExpiredHoldReaper は支払い待ちのまま期限を過ぎた予約を定期的に失効させるワーカー。
// 空き状況の判定は期限をその場で見るので、役目は行の状態更新と該当コートのキャッシュ破棄
type ExpiredHoldReaper struct {
	expirer  HoldExpirer
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// NewExpiredHoldReaper は新しいワーカーを作成
func NewExpiredHoldReaper(e HoldExpirer, interval time.Duration) *ExpiredHoldReaper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpiredHoldReaper{
		expirer:  e,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はワーカーを開始する。Stop かコンテキストのキャンセルまでブロックする
func (r *ExpiredHoldReaper) Start(ctx context.Context) {
	logger.Info("仮押さえ失効ワーカー開始", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("仮押さえ失効ワーカー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("仮押さえ失効ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// Stop はワーカーを停止し、終了を待つ
func (r *ExpiredHoldReaper) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

// RunOnce は1回分の失効処理を行い、失効させた件数を返す
func (r *ExpiredHoldReaper) RunOnce(ctx context.Context) int {
	log := logger.Get()
	log.Debug("期限切れ仮押さえの失効処理開始")

	count, err := r.expirer.ExpireStaleHolds(ctx)
	if err != nil {
		log.Error("期限切れ仮押さえの失効処理に失敗", zap.Error(err))
		return 0
	}
	if count == 0 {
		log.Debug("期限切れの仮押さえなし")
	}
	return count
}

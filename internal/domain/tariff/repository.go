package tariff

import (
	"context"
	"time"
)

// Repository は料金プラン・料金ルールの読み取りインターフェース
type Repository interface {
	// ResolvePlan はコートに直接割り当てられたプラン、なければ種別の既定プランを返す
	ResolvePlan(ctx context.Context, tenantID, resourceID string) (*Plan, error)

	// ResourceExists はテナント配下にコートがあるかを返す
	ResourceExists(ctx context.Context, tenantID, resourceID string) (bool, error)

	// RulesForDate は日付 date に有効な有効ルールを全時間枠分返す
	RulesForDate(ctx context.Context, planID string, segment Segment, date time.Time) ([]*Rule, error)
}

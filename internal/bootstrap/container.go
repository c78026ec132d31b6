// Package bootstrap は設定からストレージと外部接続を組み立て、サービス一式を作る。
// API サーバーと運用 CLI の両方が使う。
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-court-reservation/internal/api/handler"
	"github.com/sanosuguru/go-court-reservation/internal/application"
	"github.com/sanosuguru/go-court-reservation/internal/config"
	"github.com/sanosuguru/go-court-reservation/internal/domain/closure"
	"github.com/sanosuguru/go-court-reservation/internal/domain/recurring"
	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
	"github.com/sanosuguru/go-court-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-court-reservation/internal/infrastructure/memory"
	"github.com/sanosuguru/go-court-reservation/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-court-reservation/internal/infrastructure/rabbitmq"
	redisinfra "github.com/sanosuguru/go-court-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/metrics"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("不明なストレージドライバーです")

// Container は組み立て済みのサービスと後片付け処理を持つ
type Container struct {
	Pricing      *application.PricingService
	Availability *application.AvailabilityService
	Ledger       *application.ReservationService
	Booking      *application.BookingService
	Recurring    *application.RecurringService
	HealthChecks map[string]handler.HealthCheck

	closers []func() error
}

type repositories struct {
	tariffs      tariff.Repository
	closures     closure.Repository
	reservations reservation.Repository
	templates    recurring.Repository
	txManager    transaction.Manager
}

// New は cfg に従って Container を組み立てる。
// Redis と RabbitMQ は任意で、接続できなければキャッシュ・ロック・イベント通知なしで動く
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*Container, error) {
	c := &Container{HealthChecks: make(map[string]handler.HealthCheck)}

	repos, err := c.openStorage(ctx, cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	var (
		cache     application.AvailabilityCache
		locker    redisinfra.Locker
		publisher application.EventPublisher
	)
	if client := c.openRedis(ctx, cfg); client != nil {
		cache = redisinfra.NewAvailabilityCache(client, cfg.Redis.CacheTTL)
		locker = redisinfra.NewLockManager(client, m)
	}
	if cfg.RabbitMQ.URL != "" {
		p := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
		c.closers = append(c.closers, p.Close)
		publisher = p
	}

	open, err := timerange.ParseClock(cfg.Booking.FallbackOpen)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("FALLBACK_OPEN が不正です: %w", err)
	}
	closeMin, err := timerange.ParseClock(cfg.Booking.FallbackClose)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("FALLBACK_CLOSE が不正です: %w", err)
	}

	loc := cfg.App.Location()
	hold := time.Duration(cfg.Booking.HoldMinutes) * time.Minute
	clk := clock.System{}

	c.Pricing = application.NewPricingService(repos.tariffs, m)
	c.Availability = application.NewAvailabilityService(repos.tariffs, repos.closures, repos.reservations, clk, cache, application.AvailabilityConfig{
		MaxDays:       cfg.Booking.MaxAvailabilityDays,
		FallbackOpen:  open,
		FallbackClose: closeMin,
		Location:      loc,
	})
	c.Ledger = application.NewReservationService(repos.txManager, repos.reservations, clk, cache, publisher, m, application.LedgerConfig{
		Hold:             hold,
		PaymentTolerance: cfg.Booking.PaymentTolerance,
		Location:         loc,
	})
	c.Booking = application.NewBookingService(c.Pricing, c.Ledger, application.BookingConfig{
		DepositPercent:  int64(cfg.Booking.DepositPercent),
		CheckoutBaseURL: cfg.Booking.CheckoutBaseURL,
		Hold:            hold,
	})
	c.Recurring = application.NewRecurringService(repos.templates, repos.reservations, c.Pricing, c.Ledger, locker, clk, m, loc)
	return c, nil
}

func (c *Container) openStorage(ctx context.Context, cfg *config.Config) (*repositories, error) {
	switch cfg.Storage.Driver {
	case DriverMemory:
		store := memory.NewStore()
		memory.SeedDemo(store)
		logger.Warn("インメモリストレージで起動します（再起動でデータは消えます）", zap.String("tenant_id", memory.DemoTenant))
		return &repositories{
			tariffs:      memory.NewTariffRepository(store),
			closures:     memory.NewClosureRepository(store),
			reservations: memory.NewReservationRepository(store),
			templates:    memory.NewRecurringRepository(store),
			txManager:    memory.NewTxManager(),
		}, nil
	case DriverPostgres:
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("データベース接続エラー: %w", err)
		}
		c.closers = append(c.closers, db.Close)
		c.HealthChecks["database"] = func(ctx context.Context) error { return postgres.Ping(ctx, db) }
		logger.Info("データベースに接続しました", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))
		return &repositories{
			tariffs:      postgres.NewTariffRepository(db),
			closures:     postgres.NewClosureRepository(db),
			reservations: postgres.NewReservationRepository(db),
			templates:    postgres.NewRecurringRepository(db),
			txManager:    postgres.NewTxManager(db),
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Storage.Driver)
	}
}

func (c *Container) openRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	client := redisinfra.NewClient(&cfg.Redis)
	if err := redisinfra.Ping(ctx, client); err != nil {
		logger.Warn("Redisに接続できません。キャッシュと分散ロックなしで起動します", zap.String("addr", cfg.Redis.Addr()), zap.Error(err))
		_ = client.Close()
		return nil
	}
	c.closers = append(c.closers, client.Close)
	c.HealthChecks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, client) }
	logger.Info("Redisに接続しました", zap.String("addr", cfg.Redis.Addr()))
	return client
}

// Close は開いた接続を逆順に閉じる
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

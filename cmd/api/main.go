package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-court-reservation/internal/api"
	"github.com/sanosuguru/go-court-reservation/internal/api/middleware"
	"github.com/sanosuguru/go-court-reservation/internal/api/router"
	"github.com/sanosuguru/go-court-reservation/internal/bootstrap"
	"github.com/sanosuguru/go-court-reservation/internal/config"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/metrics"
	"github.com/sanosuguru/go-court-reservation/internal/worker"
)

func main() {
	cfg := config.Load()
	logger.Set(logger.NewLogger(cfg.App.Env))
	defer logger.Sync()

	m := metrics.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := bootstrap.New(ctx, cfg, m)
	if err != nil {
		logger.Fatal("初期化エラー", zap.Error(err))
	}
	defer container.Close()

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("JWT_SECRET が未設定のため、認証が必要なAPIはすべて拒否されます")
	}
	if cfg.Auth.WebhookToken == "" {
		logger.Warn("WEBHOOK_TOKEN が未設定のため、決済Webhookはすべて拒否されます")
	}

	// Echo インスタンス作成
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	// ミドルウェア設定
	middleware.SetupMiddleware(e)

	router.RegisterRoutes(e, router.Services{
		Pricing:      container.Pricing,
		Availability: container.Availability,
		Booking:      container.Booking,
		Ledger:       container.Ledger,
		Recurring:    container.Recurring,
	}, router.Options{
		JWTSecret:    cfg.Auth.JWTSecret,
		WebhookToken: cfg.Auth.WebhookToken,
		Metrics:      m,
		MetricsAuth:  middleware.NewMetricsConfig(&cfg.Auth),
		HealthChecks: container.HealthChecks,
	})

	// 期限切れの仮押さえを定期的に失効させる
	reaper := worker.NewExpiredHoldReaper(container.Ledger, cfg.Booking.ReaperInterval)
	go reaper.Start(ctx)

	// サーバー起動
	go func() {
		logger.Info("サーバーを起動します", zap.String("port", cfg.Server.Port), zap.String("storage", cfg.Storage.Driver))
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")
	reaper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンエラー", zap.Error(err))
		return
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}

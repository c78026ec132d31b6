package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/apperror"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/logger"
)

const (
	actorKey = "actor"

	// WebhookTokenHeader は決済Webhookの共有トークンを運ぶヘッダー
	WebhookTokenHeader = "X-Webhook-Token"
)

var (
	errMissingToken = apperror.New(apperror.KindAuth, "unauthorized", "認証トークンが必要です")
	errInvalidToken = apperror.New(apperror.KindAuth, "unauthorized", "認証トークンが不正です")
	errNoTenant     = apperror.New(apperror.KindAuth, "unauthorized", "トークンにテナントが含まれていません")
	errForbidden    = apperror.New(apperror.KindForbidden, "forbidden", "この操作を行う権限がありません")
	errBadWebhook   = apperror.New(apperror.KindAuth, "unauthorized", "Webhookトークンが不正です")
)

// Claims はアクセストークンのクレーム
type Claims struct {
	TenantID     string   `json:"tenant_id"`
	Capabilities []string `json:"capabilities,omitempty"`
	jwt.RegisteredClaims
}

// Actor は認証済みの呼び出し元
type Actor struct {
	UserID       string
	TenantID     string
	Capabilities []tariff.Capability
}

// HasCapability は権限を持つかを返す
func (a *Actor) HasCapability(c tariff.Capability) bool {
	return tariff.HasCapability(a.Capabilities, c)
}

// ActorFrom はコンテキストから認証済みの呼び出し元を取り出す
func ActorFrom(c echo.Context) (*Actor, bool) {
	a, ok := c.Get(actorKey).(*Actor)
	return a, ok
}

// SetActor は呼び出し元をコンテキストに設定する（ハンドラーのテスト用）
func SetActor(c echo.Context, a *Actor) {
	c.Set(actorKey, a)
}

// JWTAuth は Bearer トークンを HS256 で検証し、呼び出し元を設定する
// トークンが無い・不正な場合はハンドラーを呼ばずに 401 を返す
func JWTAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return errMissingToken
			}
			if len(key) == 0 {
				return errInvalidToken
			}

			claims := &Claims{}
			if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			}); err != nil {
				logger.Debug("トークン検証失敗", zap.Error(err))
				return errInvalidToken
			}
			if claims.TenantID == "" {
				return errNoTenant
			}

			actor := &Actor{UserID: claims.Subject, TenantID: claims.TenantID}
			for _, name := range claims.Capabilities {
				actor.Capabilities = append(actor.Capabilities, tariff.Capability(name))
			}
			SetActor(c, actor)

			req := c.Request()
			ctx := logger.WithContext(req.Context(), logger.FromContext(req.Context()).With(
				zap.String("user_id", actor.UserID),
				zap.String("tenant_id", actor.TenantID),
			))
			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}

// RequireCapability は権限 required を持たない呼び出し元を 403 で拒否する
// JWTAuth の後に置くこと
func RequireCapability(required tariff.Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return errMissingToken
			}
			if !actor.HasCapability(required) {
				return errForbidden
			}
			return next(c)
		}
	}
}

// WebhookToken は共有トークンを定数時間で比較する
// トークン未設定の場合は全て拒否する
func WebhookToken(token string) echo.MiddlewareFunc {
	expected := []byte(token)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := []byte(c.Request().Header.Get(WebhookTokenHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				return errBadWebhook
			}
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション設定を表す
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	RabbitMQ RabbitMQConfig
	Auth     AuthConfig
	Booking  BookingConfig
	Storage  StorageConfig
}

// ServerConfig はサーバー設定
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AppConfig は実行環境とタイムゾーン
type AppConfig struct {
	Env      string
	Timezone string
}

// Location はタイムゾーンを返す。不正な値なら UTC
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseConfig はデータベース設定
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// 接続プール
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig はRedis設定
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// RabbitMQConfig はイベント通知先の設定（URL が空なら通知しない）
type RabbitMQConfig struct {
	URL   string
	Queue string
}

// AuthConfig は認証設定
type AuthConfig struct {
	JWTSecret    string
	WebhookToken string
	MetricsUser  string
	MetricsPass  string
}

// BookingConfig は予約まわりの業務設定
type BookingConfig struct {
	HoldMinutes         int
	DepositPercent      int
	PaymentTolerance    int64
	CheckoutBaseURL     string
	MaxAvailabilityDays int
	FallbackOpen        string
	FallbackClose       string
	ReaperInterval      time.Duration
}

// StorageConfig はストレージ設定
type StorageConfig struct {
	Driver         string
	MigrationsPath string
}

// Load は環境変数から設定を読み込む（.env があれば先に読み込む）
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		App: AppConfig{
			Env:      getEnv("APP_ENV", "development"),
			Timezone: getEnv("APP_TIMEZONE", "America/Argentina/Buenos_Aires"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "court_reservation"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			CacheTTL: getDurationEnv("AVAILABILITY_CACHE_TTL", 30*time.Second),
		},
		RabbitMQ: RabbitMQConfig{
			URL:   getEnv("RABBITMQ_URL", ""),
			Queue: getEnv("RABBITMQ_QUEUE", "reservation_events"),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			WebhookToken: getEnv("WEBHOOK_TOKEN", ""),
			MetricsUser:  getEnv("METRICS_USER", ""),
			MetricsPass:  getEnv("METRICS_PASSWORD", ""),
		},
		Booking: BookingConfig{
			HoldMinutes:         getIntEnv("HOLD_MINUTES", 10),
			DepositPercent:      getIntEnv("DEPOSIT_PERCENT", 30),
			PaymentTolerance:    int64(getIntEnv("PAYMENT_TOLERANCE", 1)),
			CheckoutBaseURL:     getEnv("CHECKOUT_BASE_URL", "http://localhost:3000/checkout"),
			MaxAvailabilityDays: getIntEnv("MAX_AVAILABILITY_DAYS", 14),
			FallbackOpen:        getEnv("FALLBACK_OPEN", "08:00"),
			FallbackClose:       getEnv("FALLBACK_CLOSE", "23:00"),
			ReaperInterval:      getDurationEnv("REAPER_INTERVAL", time.Minute),
		},
		Storage: StorageConfig{
			Driver:         getEnv("STORAGE_DRIVER", "postgres"),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "file://migrations"),
		},
	}

	// DATABASE_URL / REDIS_URL（PaaS 形式）が指定されていれば個別設定より優先する
	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		applyDatabaseURL(&cfg.Database, raw)
	}
	if raw := os.Getenv("REDIS_URL"); raw != "" {
		applyRedisURL(&cfg.Redis, raw)
	}
	return cfg
}

// DSN はPostgreSQL接続文字列を返す
func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode
}

// URL は golang-migrate 用の接続URLを返す
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// Addr はRedis接続アドレスを返す
func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func applyDatabaseURL(c *DatabaseConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	c.Host = u.Hostname()
	if p := u.Port(); p != "" {
		c.Port = p
	}
	if u.User != nil {
		c.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
	c.DBName = strings.TrimPrefix(u.Path, "/")
	c.SSLMode = "require"
	if mode := u.Query().Get("sslmode"); mode != "" {
		c.SSLMode = mode
	}
}

func applyRedisURL(c *RedisConfig, raw string) {
	u, err := url.Parse(raw)
	if err != nil {
		return
	}
	c.Host = u.Hostname()
	if p := u.Port(); p != "" {
		c.Port = p
	}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			c.Password = pw
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

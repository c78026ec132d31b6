package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はアプリケーションのメトリクスを管理する
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 予約操作の総数（status: pending, confirmed, rejected, cancelled, overlap, error）
	ReservationsTotal *prometheus.CounterVec

	// 見積もりの総数（kind: direct, hybrid, conflict）
	QuotesTotal *prometheus.CounterVec

	// 失効させた仮押さえの総数
	HoldsExpiredTotal prometheus.Counter

	// 定期予約生成時の衝突数（policy）
	RecurringConflictsTotal *prometheus.CounterVec

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reservations_total",
				Help: "Total number of reservation ledger operations",
			},
			[]string{"status"},
		),
		QuotesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_total",
				Help: "Total number of price quotes",
			},
			[]string{"kind"},
		),
		HoldsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "holds_expired_total",
				Help: "Total number of pending holds marked expired",
			},
		),
		RecurringConflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "recurring_conflicts_total",
				Help: "Total number of dates skipped or aborted during recurring generation",
			},
			[]string{"policy"},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ReservationsTotal,
		m.QuotesTotal,
		m.HoldsExpiredTotal,
		m.RecurringConflictsTotal,
		m.DistributedLockDuration,
	)

	return m
}

// 以下のヘルパーは nil レシーバでも安全に呼べる（メトリクス未設定のテストや CLI 用）

func (m *Metrics) ObserveReservation(status string) {
	if m == nil {
		return
	}
	m.ReservationsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveQuote(kind string) {
	if m == nil {
		return
	}
	m.QuotesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveHoldsExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.HoldsExpiredTotal.Add(float64(n))
}

func (m *Metrics) ObserveRecurringConflict(policy string) {
	if m == nil {
		return
	}
	m.RecurringConflictsTotal.WithLabelValues(policy).Inc()
}

func (m *Metrics) ObserveLock(operation, status string, started time.Time) {
	if m == nil {
		return
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}

package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sanosuguru/go-court-reservation/internal/domain/closure"
	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
	"github.com/sanosuguru/go-court-reservation/internal/infrastructure/memory"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/clock"
	"github.com/sanosuguru/go-court-reservation/internal/pkg/metrics"
)

const (
	testTenant = "tenant-1"
	testCourt  = "court-1"
	testPlan   = "plan-1"
)

// 2024-01-10 は水曜日
var testDate = timerange.Date(2024, time.January, 10)

// testEnv はインメモリストアに組み立てたサービス一式
type testEnv struct {
	store        *memory.Store
	clock        *clock.Mock
	metrics      *metrics.Metrics
	cache        *fakeCache
	publisher    *fakePublisher
	pricing      *PricingService
	availability *AvailabilityService
	ledger       *ReservationService
	booking      *BookingService
	recurring    *RecurringService
	reservations *memory.ReservationRepository
}

// newTestEnv は前日 2024-01-09 12:00 UTC を現在時刻とした環境を作る
func newTestEnv() *testEnv {
	store := memory.NewStore()
	store.AddPlan(tariff.Plan{ID: testPlan, TenantID: testTenant, Name: "標準"})
	store.AddResource(memory.Resource{ID: testCourt, TenantID: testTenant, Type: "padel"})
	store.SetTypeDefault(testTenant, "padel", testPlan)

	clk := clock.NewMock(time.Date(2024, time.January, 9, 12, 0, 0, 0, time.UTC))
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	cache := newFakeCache()
	pub := &fakePublisher{}

	tariffs := memory.NewTariffRepository(store)
	closures := memory.NewClosureRepository(store)
	reservations := memory.NewReservationRepository(store)
	templates := memory.NewRecurringRepository(store)

	pricing := NewPricingService(tariffs, m)
	availability := NewAvailabilityService(tariffs, closures, reservations, clk, nil, DefaultAvailabilityConfig())
	ledger := NewReservationService(memory.NewTxManager(), reservations, clk, cache, pub, m, DefaultLedgerConfig())
	booking := NewBookingService(pricing, ledger, BookingConfig{DepositPercent: 30, CheckoutBaseURL: "https://pay.example.com/checkout/"})
	recurringSvc := NewRecurringService(templates, reservations, pricing, ledger, nil, clk, m, time.UTC)

	return &testEnv{
		store:        store,
		clock:        clk,
		metrics:      m,
		cache:        cache,
		publisher:    pub,
		pricing:      pricing,
		availability: availability,
		ledger:       ledger,
		booking:      booking,
		recurring:    recurringSvc,
		reservations: reservations,
	}
}

// rule は曜日指定なし・常時有効の公開料金ルールを登録する
func (e *testEnv) rule(from, to string, duration int, price int64) *tariff.Rule {
	f, _ := timerange.ParseClock(from)
	t, _ := timerange.ParseClock(to)
	return e.store.AddRule(tariff.Rule{
		PlanID:          testPlan,
		Segment:         tariff.SegmentPublic,
		FromMin:         f,
		ToMin:           t,
		CrossesMidnight: t <= f,
		DurationMin:     duration,
		Price:           price,
		Active:          true,
	})
}

func (e *testEnv) closure(date time.Time, from, to string) *closure.Closure {
	f, _ := timerange.ParseClock(from)
	t, _ := timerange.ParseClock(to)
	court := testCourt
	return e.store.AddClosure(closure.Closure{
		TenantID:   testTenant,
		ResourceID: &court,
		Date:       date,
		StartMin:   &f,
		EndMin:     &t,
		Active:     true,
		Reason:     "メンテナンス",
	})
}

func (e *testEnv) pending(date time.Time, from, to string) (*reservation.Reservation, error) {
	f, _ := timerange.ParseClock(from)
	t, _ := timerange.ParseClock(to)
	return e.ledger.CreatePending(context.Background(), CreateReservationInput{
		TenantID:      testTenant,
		ResourceID:    testCourt,
		Date:          date,
		StartMin:      f,
		EndMin:        t,
		Price:         1000,
		DepositAmount: 300,
		Hold:          10 * time.Minute,
	})
}

func (e *testEnv) confirmed(date time.Time, from, to string) (*reservation.Reservation, error) {
	f, _ := timerange.ParseClock(from)
	t, _ := timerange.ParseClock(to)
	return e.ledger.CreateConfirmed(context.Background(), CreateReservationInput{
		TenantID:   testTenant,
		ResourceID: testCourt,
		Date:       date,
		StartMin:   f,
		EndMin:     t,
		Price:      1000,
		Origin:     reservation.OriginStaff,
	})
}

func clockOf(s string) int {
	m, err := timerange.ParseClock(s)
	if err != nil {
		panic(err)
	}
	return m
}

// fakeCache は AvailabilityCache のインメモリ実装
type fakeCache struct {
	mu          sync.Mutex
	data        map[string]map[string][]byte
	gets        int
	sets        int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]map[string][]byte)}
}

func (c *fakeCache) Get(ctx context.Context, resourceID, field string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[resourceID][field]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (c *fakeCache) Set(ctx context.Context, resourceID, field string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.data[resourceID] == nil {
		c.data[resourceID] = make(map[string][]byte)
	}
	c.data[resourceID][field] = value
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, resourceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, resourceID)
	c.invalidated = append(c.invalidated, resourceID)
	return nil
}

var errCacheMiss = errors.New("cache miss")

// fakePublisher は送信されたイベントを記録する
type fakePublisher struct {
	mu     sync.Mutex
	events []reservation.Event
}

func (p *fakePublisher) Publish(ctx context.Context, e reservation.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

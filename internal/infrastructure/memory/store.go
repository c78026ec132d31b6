// Package memory はテストとローカル実行用のインメモリストレージ。
// PostgreSQL 実装と同じリポジトリ契約（重複予約の原子的な拒否を含む）を満たす。
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/sanosuguru/go-court-reservation/internal/domain/closure"
	"github.com/sanosuguru/go-court-reservation/internal/domain/recurring"
	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
	"github.com/sanosuguru/go-court-reservation/internal/domain/transaction"
)

// Resource はコート（料金プランの直接割り当てと種別を持つ）
type Resource struct {
	ID       string
	TenantID string
	Type     string
	PlanID   *string
}

// Store は全リポジトリのデータを保持する
type Store struct {
	mu sync.RWMutex

	resources    map[string]*Resource
	plans        map[string]*tariff.Plan
	typeDefaults map[string]string
	rules        []*tariff.Rule
	closures     []*closure.Closure
	reservations map[string]*reservation.Reservation
	payments     []*reservation.Payment
	templates    map[string]*recurring.Template
	exceptions   map[string]*recurring.Exception
}

// NewStore は空のストアを作成する
func NewStore() *Store {
	return &Store{
		resources:    make(map[string]*Resource),
		plans:        make(map[string]*tariff.Plan),
		typeDefaults: make(map[string]string),
		reservations: make(map[string]*reservation.Reservation),
		templates:    make(map[string]*recurring.Template),
		exceptions:   make(map[string]*recurring.Exception),
	}
}

func newID() string {
	return uuid.New().String()
}

// AddResource はコートを登録する
func (s *Store) AddResource(r Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	s.resources[r.ID] = &cp
}

// AddPlan は料金プランを登録する
func (s *Store) AddPlan(p tariff.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.plans[p.ID] = &cp
}

// SetTypeDefault はテナント・種別ごとの既定プランを設定する
func (s *Store) SetTypeDefault(tenantID, resourceType, planID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.typeDefaults[tenantID+"/"+resourceType] = planID
}

// AddRule は料金ルールを登録する（ID が空なら採番する）
func (s *Store) AddRule(r tariff.Rule) *tariff.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := r
	if cp.ID == "" {
		cp.ID = newID()
	}
	s.rules = append(s.rules, &cp)
	return &cp
}

// AddClosure は閉鎖を登録する（ID が空なら採番する）
func (s *Store) AddClosure(c closure.Closure) *closure.Closure {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := c
	if cp.ID == "" {
		cp.ID = newID()
	}
	s.closures = append(s.closures, &cp)
	return &cp
}

// Payments は予約の入金記録を返す
func (s *Store) Payments(reservationID string) []reservation.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []reservation.Payment
	for _, p := range s.payments {
		if p.ReservationID == reservationID {
			out = append(out, *p)
		}
	}
	return out
}

// TxManager は何もしないトランザクションを返す
// 原子性は各リポジトリ操作がストアのロック内で完結することで担保する
type TxManager struct{}

func NewTxManager() *TxManager {
	return &TxManager{}
}

func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	return noopTx{}, nil
}

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

package memory

import (
	"context"
	"time"

	"github.com/sanosuguru/go-court-reservation/internal/domain/tariff"
)

type TariffRepository struct {
	store *Store
}

func NewTariffRepository(s *Store) *TariffRepository {
	return &TariffRepository{store: s}
}

func (r *TariffRepository) ResolvePlan(ctx context.Context, tenantID, resourceID string) (*tariff.Plan, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	res, ok := r.store.resources[resourceID]
	if !ok || res.TenantID != tenantID {
		return nil, tariff.ErrResourceNotFound
	}
	planID := ""
	if res.PlanID != nil {
		planID = *res.PlanID
	} else {
		planID = r.store.typeDefaults[tenantID+"/"+res.Type]
	}
	p, ok := r.store.plans[planID]
	if !ok {
		return nil, tariff.ErrPlanNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *TariffRepository) ResourceExists(ctx context.Context, tenantID, resourceID string) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	res, ok := r.store.resources[resourceID]
	return ok && res.TenantID == tenantID, nil
}

func (r *TariffRepository) RulesForDate(ctx context.Context, planID string, segment tariff.Segment, date time.Time) ([]*tariff.Rule, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*tariff.Rule
	for _, rule := range r.store.rules {
		if rule.PlanID != planID || rule.Segment != segment || !rule.ValidOn(date) {
			continue
		}
		cp := *rule
		out = append(out, &cp)
	}
	return out, nil
}

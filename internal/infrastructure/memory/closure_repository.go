package memory

import (
	"context"
	"time"

	"github.com/sanosuguru/go-court-reservation/internal/domain/closure"
)

type ClosureRepository struct {
	store *Store
}

func NewClosureRepository(s *Store) *ClosureRepository {
	return &ClosureRepository{store: s}
}

func (r *ClosureRepository) ListForRange(ctx context.Context, tenantID, resourceID string, fromDate, toDate time.Time) ([]*closure.Closure, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*closure.Closure
	for _, c := range r.store.closures {
		if c.TenantID != tenantID || !c.AppliesTo(resourceID) {
			continue
		}
		if c.Date.Before(fromDate) || c.Date.After(toDate) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

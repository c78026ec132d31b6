package memory

import (
	"context"
	"time"

	"github.com/sanosuguru/go-court-reservation/internal/domain/reservation"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
	"github.com/sanosuguru/go-court-reservation/internal/domain/transaction"
)

type ReservationRepository struct {
	store *Store
}

func NewReservationRepository(s *Store) *ReservationRepository {
	return &ReservationRepository{store: s}
}

// Insert は重複判定・期限切れ仮押さえの失効・挿入をストアのロック内で一括で行う
func (r *ReservationRepository) Insert(ctx context.Context, tx transaction.Tx, res *reservation.Reservation, now time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	iv := res.Interval()
	var stale []*reservation.Reservation
	for _, existing := range r.store.reservations {
		if res.IdempotencyKey != "" && existing.IdempotencyKey == res.IdempotencyKey {
			return reservation.ErrDuplicateKey
		}
		if existing.ResourceID != res.ResourceID || !existing.Interval().Overlaps(iv) {
			continue
		}
		if existing.Blocks(now) {
			return reservation.ErrOverlap
		}
		if existing.Status == reservation.StatusPendingPayment {
			stale = append(stale, existing)
		}
	}

	for _, s := range stale {
		s.Status = reservation.StatusExpired
		s.UpdatedAt = now
	}
	if res.ID == "" {
		res.ID = newID()
	}
	cp := *res
	r.store.reservations[res.ID] = &cp
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	res, ok := r.store.reservations[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *ReservationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*reservation.Reservation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for _, res := range r.store.reservations {
		if key != "" && res.IdempotencyKey == key {
			cp := *res
			return &cp, nil
		}
	}
	return nil, reservation.ErrReservationNotFound
}

func (r *ReservationRepository) ListActiveInRange(ctx context.Context, resourceID string, from, to, now time.Time) ([]*reservation.Reservation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	window := timerange.Interval{Start: from, End: to}
	var out []*reservation.Reservation
	for _, res := range r.store.reservations {
		if res.ResourceID != resourceID || !res.Blocks(now) || !res.Interval().Overlaps(window) {
			continue
		}
		cp := *res
		out = append(out, &cp)
	}
	return out, nil
}

func (r *ReservationRepository) UpdateStatus(ctx context.Context, id string, from []reservation.Status, change reservation.StatusChange) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	res, ok := r.store.reservations[id]
	if !ok {
		return false, reservation.ErrReservationNotFound
	}
	if !statusIn(res.Status, from) {
		return false, nil
	}
	applyChange(res, change)
	return true, nil
}

func (r *ReservationRepository) ExpireStaleHolds(ctx context.Context, now time.Time) ([]string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var resourceIDs []string
	for _, res := range r.store.reservations {
		if res.Status == reservation.StatusPendingPayment && res.ExpiresAt != nil && !now.Before(*res.ExpiresAt) {
			res.Status = reservation.StatusExpired
			res.UpdatedAt = now
			resourceIDs = append(resourceIDs, res.ResourceID)
		}
	}
	return resourceIDs, nil
}

func (r *ReservationRepository) LastDateForTemplate(ctx context.Context, templateID string) (*time.Time, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var last *time.Time
	for _, res := range r.store.reservations {
		if res.RecurringTemplateID == nil || *res.RecurringTemplateID != templateID {
			continue
		}
		if !statusIn(res.Status, liveStatuses) {
			continue
		}
		if last == nil || res.Date.After(*last) {
			d := res.Date
			last = &d
		}
	}
	return last, nil
}

func (r *ReservationRepository) CancelByTemplate(ctx context.Context, templateID string, fromDate time.Time, change reservation.StatusChange) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	count := 0
	for _, res := range r.store.reservations {
		if res.RecurringTemplateID == nil || *res.RecurringTemplateID != templateID {
			continue
		}
		if !statusIn(res.Status, liveStatuses) || res.Date.Before(fromDate) {
			continue
		}
		applyChange(res, change)
		count++
	}
	return count, nil
}

func (r *ReservationRepository) AddPayment(ctx context.Context, p *reservation.Payment) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	res, ok := r.store.reservations[p.ReservationID]
	if !ok {
		return reservation.ErrReservationNotFound
	}
	if p.ID == "" {
		p.ID = newID()
	}
	cp := *p
	r.store.payments = append(r.store.payments, &cp)
	res.DepositPaid += p.Amount
	res.UpdatedAt = p.CreatedAt
	return nil
}

var liveStatuses = []reservation.Status{reservation.StatusConfirmed, reservation.StatusPendingPayment}

func statusIn(s reservation.Status, set []reservation.Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func applyChange(res *reservation.Reservation, change reservation.StatusChange) {
	res.Status = change.To
	res.UpdatedAt = change.At
	switch change.To {
	case reservation.StatusConfirmed:
		at := change.At
		res.ConfirmedAt = &at
	case reservation.StatusCancelled:
		at := change.At
		res.CancelledAt = &at
		res.CancelledBy = change.Actor
		res.CancelReason = change.Reason
	}
}

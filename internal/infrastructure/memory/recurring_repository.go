package memory

import (
	"context"
	"time"

	"github.com/sanosuguru/go-court-reservation/internal/domain/recurring"
	"github.com/sanosuguru/go-court-reservation/internal/domain/timerange"
)

type RecurringRepository struct {
	store *Store
}

func NewRecurringRepository(s *Store) *RecurringRepository {
	return &RecurringRepository{store: s}
}

func (r *RecurringRepository) Create(ctx context.Context, t *recurring.Template) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if t.ID == "" {
		t.ID = newID()
	}
	cp := *t
	r.store.templates[t.ID] = &cp
	return nil
}

func (r *RecurringRepository) GetByID(ctx context.Context, id string) (*recurring.Template, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	t, ok := r.store.templates[id]
	if !ok {
		return nil, recurring.ErrTemplateNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *RecurringRepository) SetActive(ctx context.Context, id string, active bool, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	t, ok := r.store.templates[id]
	if !ok {
		return recurring.ErrTemplateNotFound
	}
	t.Active = active
	t.UpdatedAt = at
	return nil
}

func (r *RecurringRepository) UpsertException(ctx context.Context, e *recurring.Exception) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.templates[e.TemplateID]; !ok {
		return recurring.ErrTemplateNotFound
	}
	key := exceptionKey(e.TemplateID, e.Date)
	if existing, ok := r.store.exceptions[key]; ok {
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
	} else if e.ID == "" {
		e.ID = newID()
	}
	cp := *e
	r.store.exceptions[key] = &cp
	return nil
}

func (r *RecurringRepository) ExceptionsInRange(ctx context.Context, templateID string, from, to time.Time) (map[string]*recurring.Exception, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make(map[string]*recurring.Exception)
	for _, e := range r.store.exceptions {
		if e.TemplateID != templateID || e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		cp := *e
		out[timerange.FormatDate(e.Date)] = &cp
	}
	return out, nil
}

func exceptionKey(templateID string, d time.Time) string {
	return templateID + "/" + timerange.FormatDate(d)
}

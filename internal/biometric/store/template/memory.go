// Package template persists biometric templates.
//
// Error contract for every implementation:
//   - sentinel.ErrNotFound when a template does not exist, is soft-deleted,
//     or belongs to a different tenant (tenant isolation is enforced here,
//     not left to callers)
//   - nil on success
//   - wrapped infrastructure errors otherwise
//
// List methods return templates ordered by enrollment time ascending; the
// workflows rely on that order for stable tie-breaking.
package template

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
	"biomatch/pkg/platform/sentinel"
)

// InMemory stores templates in memory for tests and single-node development.
type InMemory struct {
	mu        sync.RWMutex
	templates map[id.TemplateID]*models.BiometricTemplate
}

// NewInMemory constructs an empty in-memory template store.
func NewInMemory() *InMemory {
	return &InMemory{templates: make(map[id.TemplateID]*models.BiometricTemplate)}
}

func (s *InMemory) Insert(_ context.Context, t *models.BiometricTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[t.ID]; exists {
		return fmt.Errorf("template %s: %w", t.ID, sentinel.ErrConflict)
	}
	cloned := *t
	s.templates[t.ID] = &cloned
	return nil
}

func (s *InMemory) FindByID(_ context.Context, tenantID id.TenantID, templateID id.TemplateID) (*models.BiometricTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[templateID]
	if !ok || t.Deleted || t.TenantID != tenantID {
		return nil, fmt.Errorf("template %s: %w", templateID, sentinel.ErrNotFound)
	}
	cloned := *t
	return &cloned, nil
}

func (s *InMemory) ListBySubject(_ context.Context, tenantID id.TenantID, subjectID id.SubjectID, modality models.Modality, matchableOnly bool) ([]*models.BiometricTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.BiometricTemplate
	for _, t := range s.templates {
		if t.TenantID != tenantID || t.SubjectID != subjectID || t.Modality != modality || t.Deleted {
			continue
		}
		if matchableOnly && !t.Matchable() {
			continue
		}
		cloned := *t
		out = append(out, &cloned)
	}
	sortByEnrollment(out)
	return out, nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID, modality models.Modality) ([]*models.BiometricTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.BiometricTemplate
	for _, t := range s.templates {
		if t.TenantID != tenantID || t.Modality != modality || !t.Matchable() {
			continue
		}
		cloned := *t
		out = append(out, &cloned)
	}
	sortByEnrollment(out)
	return out, nil
}

// SetActive flips the active flag after validating the transition through the
// domain methods, holding the store lock across validate-and-mutate.
func (s *InMemory) SetActive(_ context.Context, tenantID id.TenantID, templateID id.TemplateID, active bool, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[templateID]
	if !ok || t.Deleted || t.TenantID != tenantID {
		return fmt.Errorf("template %s: %w", templateID, sentinel.ErrNotFound)
	}
	if active {
		if err := t.CanReactivate(); err != nil {
			return err
		}
		t.ApplyReactivation(now)
		return nil
	}
	if err := t.CanDeactivate(); err != nil {
		return err
	}
	t.ApplyDeactivation(now)
	return nil
}

func (s *InMemory) SoftDelete(_ context.Context, tenantID id.TenantID, templateID id.TemplateID, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[templateID]
	if !ok || t.Deleted || t.TenantID != tenantID {
		return fmt.Errorf("template %s: %w", templateID, sentinel.ErrNotFound)
	}
	t.ApplyDeletion(now)
	return nil
}

func sortByEnrollment(ts []*models.BiometricTemplate) {
	sort.SliceStable(ts, func(i, j int) bool {
		if ts[i].EnrolledAt.Equal(ts[j].EnrolledAt) {
			return ts[i].ID.String() < ts[j].ID.String()
		}
		return ts[i].EnrolledAt.Before(ts[j].EnrolledAt)
	})
}

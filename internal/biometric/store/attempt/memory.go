// Package attempt persists the append-only audit log of match attempts.
//
// No update or delete operations exist on this store by design: retention and
// export are external concerns, and the engine itself must never be able to
// rewrite its own audit trail.
package attempt

import (
	"context"
	"sync"

	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
)

// InMemory keeps attempts in memory for tests and single-node development.
type InMemory struct {
	mu       sync.RWMutex
	attempts []*models.MatchAttempt
}

// NewInMemory constructs an empty in-memory attempt store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(_ context.Context, a *models.MatchAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cloned := *a
	s.attempts = append(s.attempts, &cloned)
	return nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID, limit int) ([]*models.MatchAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(limit, func(a *models.MatchAttempt) bool {
		return a.TenantID == tenantID
	}), nil
}

func (s *InMemory) ListBySubject(_ context.Context, tenantID id.TenantID, subjectID id.SubjectID, limit int) ([]*models.MatchAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(limit, func(a *models.MatchAttempt) bool {
		if a.TenantID != tenantID {
			return false
		}
		if a.ClaimedSubjectID != nil && *a.ClaimedSubjectID == subjectID {
			return true
		}
		return a.MatchedSubjectID != nil && *a.MatchedSubjectID == subjectID
	}), nil
}

// filter returns matches newest-first, capped at limit.
func (s *InMemory) filter(limit int, keep func(*models.MatchAttempt) bool) []*models.MatchAttempt {
	var out []*models.MatchAttempt
	for i := len(s.attempts) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if keep(s.attempts[i]) {
			cloned := *s.attempts[i]
			out = append(out, &cloned)
		}
	}
	return out
}

// Package policy supplies per-tenant matching thresholds.
//
// Policy provisioning belongs to the surrounding system; the engine only
// reads. Tenants without an explicit policy get the engine defaults, so a
// fresh tenant can enroll and match without prior configuration.
package policy

import (
	"context"
	"sync"

	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
)

// Store resolves the effective policy for a tenant.
type Store interface {
	PolicyFor(ctx context.Context, tenantID id.TenantID) (models.TenantPolicy, error)
}

// InMemory holds tenant policies in memory for tests and single-node
// deployments.
type InMemory struct {
	mu       sync.RWMutex
	policies map[id.TenantID]models.TenantPolicy
}

// NewInMemory constructs an empty in-memory policy store.
func NewInMemory() *InMemory {
	return &InMemory{policies: make(map[id.TenantID]models.TenantPolicy)}
}

// Set validates and stores a tenant policy.
func (s *InMemory) Set(tenantID id.TenantID, p models.TenantPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[tenantID] = p
	return nil
}

func (s *InMemory) PolicyFor(_ context.Context, tenantID id.TenantID) (models.TenantPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.policies[tenantID]; ok {
		return p, nil
	}
	return models.DefaultPolicy(), nil
}

package models

import dErrors "biomatch/pkg/domain-errors"

// Default thresholds applied to tenants without explicit policy. The duplicate
// threshold is deliberately distinct from, and higher than, the verification
// threshold: tripping it means "this exact sample is already enrolled", not
// "this sample verifies".
const (
	DefaultEnrollMinQuality   = 0.60
	DefaultVerifyThreshold    = 0.75
	DefaultSearchThreshold    = 0.70
	DefaultDuplicateThreshold = 0.85
	DefaultMaxSearchResults   = 10

	// HardMaxSearchResults caps identification result sets regardless of
	// tenant policy; 1:N search is never unbounded.
	HardMaxSearchResults = 100
)

// TenantPolicy holds the per-tenant matching thresholds supplied by the
// policy store.
type TenantPolicy struct {
	EnrollMinQuality   float64 `json:"enroll_min_quality"`
	VerifyThreshold    float64 `json:"verify_threshold"`
	SearchThreshold    float64 `json:"search_threshold"`
	DuplicateThreshold float64 `json:"duplicate_threshold"`
	MaxSearchResults   int     `json:"max_search_results"`
}

// DefaultPolicy returns the engine-wide defaults.
func DefaultPolicy() TenantPolicy {
	return TenantPolicy{
		EnrollMinQuality:   DefaultEnrollMinQuality,
		VerifyThreshold:    DefaultVerifyThreshold,
		SearchThreshold:    DefaultSearchThreshold,
		DuplicateThreshold: DefaultDuplicateThreshold,
		MaxSearchResults:   DefaultMaxSearchResults,
	}
}

// Validate enforces policy invariants before a policy is accepted into a
// store.
func (p TenantPolicy) Validate() error {
	for name, v := range map[string]float64{
		"enroll_min_quality":  p.EnrollMinQuality,
		"verify_threshold":    p.VerifyThreshold,
		"search_threshold":    p.SearchThreshold,
		"duplicate_threshold": p.DuplicateThreshold,
	} {
		if v < 0 || v > 1 {
			return dErrors.Newf(dErrors.CodeValidation, "%s must be within [0,1]", name)
		}
	}
	if p.DuplicateThreshold < p.VerifyThreshold {
		return dErrors.New(dErrors.CodeValidation, "duplicate_threshold must not be below verify_threshold")
	}
	if p.MaxSearchResults <= 0 || p.MaxSearchResults > HardMaxSearchResults {
		return dErrors.Newf(dErrors.CodeValidation, "max_search_results must be within [1,%d]", HardMaxSearchResults)
	}
	return nil
}

// Package liveness defines the anti-spoofing collaborator.
//
// Liveness is the outermost gate in every workflow that requests it: it is
// cheaper than extraction and security-critical, so a non-live verdict stops
// the workflow before features are ever extracted or the template store is
// touched.
package liveness

import (
	"context"

	"biomatch/internal/biometric/models"
)

// Verdict is the outcome of a liveness check. A false IsLive is a decision,
// not an error; Checks carries per-probe diagnostics for the caller.
type Verdict struct {
	IsLive     bool            `json:"is_live"`
	Confidence float64         `json:"confidence"`
	Checks     map[string]bool `json:"checks,omitempty"`
}

// Gate checks that a sample originates from a live subject. Failure kinds:
// invalid_sample, liveness_timeout. Implementations must be safe for
// concurrent use.
type Gate interface {
	Check(ctx context.Context, sample models.RawSample, modality models.Modality) (Verdict, error)
}

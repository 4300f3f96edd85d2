// Package extractor defines the feature-extraction collaborator.
//
// The engine treats extraction as a swappable black box: a production backend
// calls a real model endpoint, tests use the deterministic double. Both must
// be safe for concurrent use and must never mutate shared state.
package extractor

import (
	"context"

	"biomatch/internal/biometric/models"
)

// Features is the output of a successful extraction.
type Features struct {
	// Vector is the encoded feature vector (see internal/biometric/vector).
	Vector []byte
	// Quality grades the sample in [0,1] at extraction time.
	Quality float64
}

// Extractor turns a raw sample into features, or fails with one of the typed
// kinds: invalid_sample, no_subject_detected, low_quality,
// extraction_timeout. Context deadlines map to extraction_timeout.
type Extractor interface {
	Extract(ctx context.Context, sample models.RawSample, modality models.Modality) (Features, error)
}

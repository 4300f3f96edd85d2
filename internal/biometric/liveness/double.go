package liveness

import (
	"bytes"
	"context"
	"errors"

	"biomatch/internal/biometric/models"
	dErrors "biomatch/pkg/domain-errors"
)

// SpoofMarker flags a sample as non-live when it appears anywhere in the
// payload. Tests and local tooling prepend it to exercise rejection paths.
var SpoofMarker = []byte("spoof:")

// Double is a deterministic liveness gate for tests and local development.
// Verdicts depend only on the sample contents: anything carrying SpoofMarker
// is non-live, everything else is live with fixed confidence. The per-check
// map mirrors the probes the production gate reports.
type Double struct{}

// NewDouble constructs a Double gate.
func NewDouble() *Double { return &Double{} }

func (d *Double) Check(ctx context.Context, sample models.RawSample, modality models.Modality) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Verdict{}, dErrors.Wrap(err, models.CodeLivenessTimeout, "liveness check timed out")
		}
		return Verdict{}, err
	}
	if len(sample) == 0 {
		return Verdict{}, dErrors.New(models.CodeInvalidSample, "sample is empty")
	}

	live := !bytes.Contains(sample, SpoofMarker)
	confidence := 0.95
	if !live {
		confidence = 0.2
	}
	return Verdict{
		IsLive:     live,
		Confidence: confidence,
		Checks: map[string]bool{
			"blink_detection":  live,
			"face_movement":    live,
			"texture_analysis": live,
			"depth_analysis":   live,
		},
	}, nil
}

// Package vector is the single place feature vectors cross between their
// numeric form and the opaque byte payload stores carry. Everything outside
// the matcher treats the encoded form as a black box.
package vector

import (
	"github.com/fxamacker/cbor/v2"

	"biomatch/internal/biometric/models"
	dErrors "biomatch/pkg/domain-errors"
)

// Encode serializes a feature vector into its stored byte form. CBOR keeps the
// payload compact and the encoding deterministic for identical input.
func Encode(values []float64) ([]byte, error) {
	if len(values) == 0 {
		return nil, dErrors.New(models.CodeInvalidSample, "feature vector is empty")
	}
	encoded, err := cbor.Marshal(values)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode feature vector")
	}
	return encoded, nil
}

// Decode restores the numeric form of a stored feature vector.
func Decode(payload []byte) ([]float64, error) {
	if len(payload) == 0 {
		return nil, dErrors.New(models.CodeInvalidSample, "feature vector payload is empty")
	}
	var values []float64
	if err := cbor.Unmarshal(payload, &values); err != nil {
		return nil, dErrors.Wrap(err, models.CodeInvalidSample, "malformed feature vector payload")
	}
	return values, nil
}

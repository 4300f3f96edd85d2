package extractor

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"biomatch/internal/biometric/models"
	"biomatch/internal/biometric/vector"
	dErrors "biomatch/pkg/domain-errors"
)

// Vector dimensions per modality for the double. Arbitrary but fixed, the way
// real extractor backends emit fixed-length vectors per modality.
var doubleDims = map[models.Modality]int{
	models.ModalityFace:  128,
	models.ModalityVoice: 64,
}

// Double is a deterministic extractor for tests and local development. The
// vector is derived from a SHA-256 expansion of the sample bytes, so the same
// sample always yields the same vector and distinct samples yield vectors
// with no designed correlation. There is no randomness anywhere.
type Double struct {
	// Quality is reported for every extraction. Zero value defaults to 0.9.
	Quality float64
}

// NewDouble constructs a Double reporting the given quality, or 0.9 when q is 0.
func NewDouble(q float64) *Double {
	return &Double{Quality: q}
}

func (d *Double) Extract(ctx context.Context, sample models.RawSample, modality models.Modality) (Features, error) {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Features{}, dErrors.Wrap(err, models.CodeExtractionTimeout, "feature extraction timed out")
		}
		return Features{}, err
	}
	if len(sample) == 0 {
		return Features{}, dErrors.New(models.CodeInvalidSample, "sample is empty")
	}

	dim, ok := doubleDims[modality]
	if !ok {
		dim = 64
	}

	values := make([]float64, dim)
	digest := sha256.Sum256(sample)
	for i := range values {
		if i > 0 && i%4 == 0 {
			digest = sha256.Sum256(digest[:])
		}
		word := binary.BigEndian.Uint64(digest[(i%4)*8 : (i%4)*8+8])
		// Map the 64-bit word onto [-1,1].
		values[i] = float64(int64(word)) / float64(1<<63)
	}

	encoded, err := vector.Encode(values)
	if err != nil {
		return Features{}, err
	}

	quality := d.Quality
	if quality == 0 {
		quality = 0.9
	}
	return Features{Vector: encoded, Quality: quality}, nil
}

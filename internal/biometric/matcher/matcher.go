// Package matcher scores the similarity of two feature vectors.
//
// The scorer is pure and deterministic: no state, no randomness, and the
// contract holds for any extractor backend — Score(a,b) == Score(b,a) and
// Score(a,a) ≈ 1.0 within floating-point tolerance.
package matcher

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"biomatch/internal/biometric/vector"
)

// Scorer compares encoded feature vectors and yields a confidence in [0,1].
type Scorer interface {
	Score(a, b []byte) (float64, error)
}

// Cosine scores vectors by cosine similarity rescaled from [-1,1] to [0,1]
// via (cos+1)/2.
type Cosine struct{}

// NewCosine constructs the default scorer.
func NewCosine() *Cosine { return &Cosine{} }

// Score decodes both payloads and computes the rescaled cosine similarity.
// Vectors of differing lengths are compared over their shared prefix; real
// extractors emit fixed-length vectors per modality, so this is a defensive
// policy rather than an expected path. Zero-magnitude input scores 0.
func (c *Cosine) Score(a, b []byte) (float64, error) {
	va, err := vector.Decode(a)
	if err != nil {
		return 0, err
	}
	vb, err := vector.Decode(b)
	if err != nil {
		return 0, err
	}
	return similarity(va, vb), nil
}

func similarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	a, b = a[:n], b[:n]

	dot := floats.Dot(a, b)
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (normA * normB)
	// Floating-point drift can push |cos| marginally past 1.
	cos = math.Max(-1, math.Min(1, cos))
	return (cos + 1) / 2
}

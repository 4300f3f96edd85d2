// Package index ranks a probe vector against a tenant's enrolled templates.
//
// The Searcher interface is the seam between the identification workflow and
// the scan strategy: Linear brute-forces the tenant's active set, and a
// sub-linear approximate-nearest-neighbor index can replace it for large
// tenants without touching workflow logic or the threshold/ranking contract.
package index

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"biomatch/internal/biometric/matcher"
	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
	dErrors "biomatch/pkg/domain-errors"
)

// Candidate pairs a template with its similarity to the probe.
type Candidate struct {
	Template *models.BiometricTemplate
	Score    float64
}

// Result carries the ranked matches at/above the threshold plus the best
// candidate overall. Best is recorded in the audit trail even when it falls
// below the threshold, so a rejected search still names its closest template.
type Result struct {
	Matches []Candidate
	Best    *Candidate
	// Scanned counts the templates scored for this probe.
	Scanned int
}

// Searcher ranks the tenant's matchable templates against a probe vector.
// Matches are sorted by descending score; ties break toward the earliest
// enrollment. limit caps Matches, never Best.
type Searcher interface {
	Search(ctx context.Context, tenantID id.TenantID, modality models.Modality, probe []byte, threshold float64, limit int) (Result, error)
}

// TemplateLister is the slice of the template store the index needs.
type TemplateLister interface {
	ListByTenant(ctx context.Context, tenantID id.TenantID, modality models.Modality) ([]*models.BiometricTemplate, error)
}

// DefaultParallelism bounds concurrent similarity computations per search.
const DefaultParallelism = 8

// Linear scans every active template in the tenant. O(N) similarity
// computations per probe; fine for small tenants, the Searcher seam exists
// for the rest.
type Linear struct {
	templates   TemplateLister
	scorer      matcher.Scorer
	parallelism int
}

// NewLinear constructs a brute-force searcher. parallelism <= 0 falls back to
// DefaultParallelism.
func NewLinear(templates TemplateLister, scorer matcher.Scorer, parallelism int) *Linear {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	return &Linear{templates: templates, scorer: scorer, parallelism: parallelism}
}

func (l *Linear) Search(ctx context.Context, tenantID id.TenantID, modality models.Modality, probe []byte, threshold float64, limit int) (Result, error) {
	templates, err := l.templates.ListByTenant(ctx, tenantID, modality)
	if err != nil {
		return Result{}, dErrors.Wrap(err, models.CodePersistenceFailure, "enumerate tenant templates")
	}
	if len(templates) == 0 {
		return Result{}, nil
	}

	scores := make([]float64, len(templates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.parallelism)
	for i, t := range templates {
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score, err := l.scorer.Score(probe, t.FeatureVector)
			if err != nil {
				return err
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	// templates arrive enrollment-time ascending; the stable sort keeps that
	// order within equal scores, which is the ranking tie-break contract.
	candidates := make([]Candidate, len(templates))
	for i, t := range templates {
		candidates[i] = Candidate{Template: t, Score: scores[i]}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	result := Result{Best: &candidates[0], Scanned: len(candidates)}
	for _, c := range candidates {
		if c.Score < threshold {
			break
		}
		result.Matches = append(result.Matches, c)
		if limit > 0 && len(result.Matches) == limit {
			break
		}
	}
	return result, nil
}

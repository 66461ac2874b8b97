// Package trust implements the perspectival trust engine: bounded
// propagation of weighted, domain-scoped trust edges across the signed
// social graph, path aggregation, trust-weighted endorsement scoring,
// feed ranking, and local-graph sybil risk assessment. The engine owns
// no storage; the graph arrives through the EdgeSource collaborator.
package trust

import (
	"context"

	"github.com/nintynick/transitive-trust/pkg/models"
)

// Engine is the perspectival trust engine facade. It owns no persistent
// or shared-mutable state: every graph access goes through the injected
// EdgeSource and every query's working set dies with the call, so
// concurrent queries are independent by construction.
type Engine struct {
	graph EdgeSource
}

// New builds an engine over the given collaborator.
func New(graph EdgeSource) *Engine {
	return &Engine{graph: graph}
}

// EffectiveTrust computes the viewer's trust in a single target for the
// queried domain. Self-queries return the identity entry without any
// graph access; unreachable targets return trust 0, no paths, hops -1.
func (e *Engine) EffectiveTrust(ctx context.Context, viewer, target, domain string, opts Options) (EffectiveTrust, error) {
	resolved, err := opts.resolve()
	if err != nil {
		return EffectiveTrust{}, err
	}
	if target == viewer {
		return EffectiveTrust{Trust: 1.0, Paths: [][]string{{viewer}}, Hops: 0}, nil
	}
	nb, err := propagate(ctx, e.graph, viewer, domain, resolved)
	if err != nil {
		return EffectiveTrust{}, err
	}
	return nb.Lookup(target), nil
}

// TrustNeighborhood computes the viewer's full reachable set under the
// given options.
func (e *Engine) TrustNeighborhood(ctx context.Context, viewer, domain string, opts Options) (Neighborhood, error) {
	resolved, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	return propagate(ctx, e.graph, viewer, domain, resolved)
}

// PersonalizedScore scores one subject's endorsements from the viewer's
// vantage point. The neighborhood is computed once and each endorsement's
// author is looked up in it.
func (e *Engine) PersonalizedScore(ctx context.Context, viewer, subject, domain string, endorsements []models.Endorsement, opts Options) (ScoreResult, error) {
	resolved, err := opts.resolve()
	if err != nil {
		return ScoreResult{}, err
	}
	nb, err := propagate(ctx, e.graph, viewer, domain, resolved)
	if err != nil {
		return ScoreResult{}, err
	}
	return scoreEndorsements(nb, subject, endorsements, resolved), nil
}

// SubjectEndorsements is one batch scoring unit.
type SubjectEndorsements struct {
	Subject      string               `json:"subject"`
	Endorsements []models.Endorsement `json:"endorsements"`
}

// PersonalizedScoresBatch scores many subjects against one shared
// neighborhood, avoiding a propagation per subject.
func (e *Engine) PersonalizedScoresBatch(ctx context.Context, viewer string, batch []SubjectEndorsements, domain string, opts Options) (map[string]ScoreResult, error) {
	resolved, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	nb, err := propagate(ctx, e.graph, viewer, domain, resolved)
	if err != nil {
		return nil, err
	}
	results := make(map[string]ScoreResult, len(batch))
	for _, unit := range batch {
		results[unit.Subject] = scoreEndorsements(nb, unit.Subject, unit.Endorsements, resolved)
	}
	return results, nil
}

// Feed ranks the given endorsements by the viewer's effective trust in
// their authors. Entries whose authors the viewer does not reach are
// dropped. Empty sort parameters default to trust descending.
func (e *Engine) Feed(ctx context.Context, viewer, domain string, entries []FeedEntry, sortBy FeedSort, order SortOrder, opts Options) ([]FeedItem, error) {
	resolved, err := opts.resolve()
	if err != nil {
		return nil, err
	}
	if sortBy == "" {
		sortBy = FeedSortTrust
	}
	if order == "" {
		order = OrderDesc
	}
	nb, err := propagate(ctx, e.graph, viewer, domain, resolved)
	if err != nil {
		return nil, err
	}
	return rankFeed(nb, entries, sortBy, order), nil
}

// AssessSybil evaluates a principal's local subgraph. The bundle is
// supplied by the caller, so no collaborator access happens here.
func (e *Engine) AssessSybil(input SybilInput) SybilAssessment {
	return AssessSybil(input)
}

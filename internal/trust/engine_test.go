package trust

import (
	"context"
	"errors"
	"testing"

	"github.com/nintynick/transitive-trust/pkg/models"
)

func TestEngineSelfTrustSkipsGraph(t *testing.T) {
	// A broken collaborator proves no graph access happens for self-queries.
	engine := New(&stubGraph{edgeErr: errors.New("unreachable store")})

	got, err := engine.EffectiveTrust(context.Background(), "V", "V", "food", Options{})
	if err != nil {
		t.Fatalf("self query must not touch the graph: %v", err)
	}
	if got.Trust != 1.0 || got.Hops != 0 || len(got.Paths) != 1 || !samePath(got.Paths[0], []string{"V"}) {
		t.Errorf("self trust = %+v, want {1.0, [[V]], 0}", got)
	}
}

func TestEngineUnreachableTarget(t *testing.T) {
	engine := New(&stubGraph{edges: map[string][]OutgoingEdge{
		"V": {edge("V", "A", 0.9, "*")},
	}})

	got, err := engine.EffectiveTrust(context.Background(), "V", "Z", "food", Options{})
	if err != nil {
		t.Fatalf("EffectiveTrust: %v", err)
	}
	if got.Trust != 0 || got.Hops != -1 || len(got.Paths) != 0 {
		t.Errorf("unreachable target = %+v, want {0, [], -1}", got)
	}
}

func TestEngineOptionBounds(t *testing.T) {
	engine := New(&stubGraph{})
	tests := []struct {
		name string
		opts Options
	}{
		{"MaxHops Above Ceiling", Options{MaxHops: 9}},
		{"MaxHops Negative", Options{MaxHops: -1}},
		{"Threshold Above One", Options{MinTrustThreshold: 1.5}},
		{"Threshold Negative", Options{MinTrustThreshold: -0.1}},
		{"Exponential Parameter Above One", Options{DecayFunction: DecayExponential, DecayParameter: 1.2}},
		{"Negative Decay Parameter", Options{DecayFunction: DecayLinear, DecayParameter: -0.5}},
		{"Boost Below One", Options{VerificationBoost: 0.5}},
		{"Boost Above Five", Options{VerificationBoost: 6}},
		{"Unknown Decay Function", Options{DecayFunction: "quadratic"}},
		{"Unknown Aggregation", Options{Aggregation: "median"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.EffectiveTrust(context.Background(), "V", "T", "food", tt.opts)
			if !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("expected ErrInvalidOptions, got %v", err)
			}
		})
	}
}

func TestEngineDefaultsResolve(t *testing.T) {
	opts, err := Options{}.resolve()
	if err != nil {
		t.Fatalf("resolve of empty options: %v", err)
	}
	if opts.MaxHops != DefaultMaxHops ||
		opts.DecayFunction != DecayExponential ||
		opts.DecayParameter != DefaultDecayParameter ||
		opts.Aggregation != AggregateMaximum ||
		opts.MinTrustThreshold != DefaultMinTrustThreshold ||
		opts.VerificationBoost != DefaultVerificationBoost ||
		opts.RecencyHalfLifeDays != DefaultRecencyHalfLifeDays ||
		opts.DomainDistanceFactor != DefaultDomainDistanceFactor {
		t.Errorf("resolved defaults = %+v", opts)
	}
	if opts.AsOf.IsZero() {
		t.Error("resolve must pin AsOf")
	}

	linear, err := Options{DecayFunction: DecayLinear}.resolve()
	if err != nil {
		t.Fatalf("resolve linear: %v", err)
	}
	if linear.DecayParameter != DefaultLinearDecayStep {
		t.Errorf("linear default parameter = %v, want %v", linear.DecayParameter, DefaultLinearDecayStep)
	}
	cutoff, err := Options{DecayFunction: DecayCutoff}.resolve()
	if err != nil {
		t.Fatalf("resolve cutoff: %v", err)
	}
	if cutoff.DecayParameter != DefaultCutoffHops {
		t.Errorf("cutoff default parameter = %v, want %v", cutoff.DecayParameter, float64(DefaultCutoffHops))
	}
}

func TestEnginePersonalizedScore(t *testing.T) {
	engine := New(&stubGraph{edges: map[string][]OutgoingEdge{
		"V": {edge("V", "A", 0.6, "*")},
	}})

	endorsements := []models.Endorsement{
		endorsement("A", 0.8, false, scoreNow),
		endorsement("stranger", 0.1, false, scoreNow),
	}
	result, err := engine.PersonalizedScore(context.Background(), "V", "cafe-roma", "food.restaurants", endorsements, Options{AsOf: scoreNow})
	if err != nil {
		t.Fatalf("PersonalizedScore: %v", err)
	}
	if result.Score == nil || !almostEqual(*result.Score, 0.8, 1e-9) {
		t.Errorf("score = %v, want 0.8 from the single reachable author", result.Score)
	}
	if result.NetworkEndorsementCount != 1 || result.EndorsementCount != 2 {
		t.Errorf("counts = %d/%d, want 1/2", result.NetworkEndorsementCount, result.EndorsementCount)
	}
}

func TestEngineBatchSharesNeighborhood(t *testing.T) {
	counting := &countingGraph{stubGraph: stubGraph{edges: map[string][]OutgoingEdge{
		"V": {edge("V", "A", 0.6, "*")},
	}}}
	engine := New(counting)

	batch := []SubjectEndorsements{
		{Subject: "s1", Endorsements: []models.Endorsement{endorsement("A", 1.0, false, scoreNow)}},
		{Subject: "s2", Endorsements: []models.Endorsement{endorsement("A", 0.0, false, scoreNow)}},
		{Subject: "s3"},
	}
	results, err := engine.PersonalizedScoresBatch(context.Background(), "V", batch, "food", Options{AsOf: scoreNow})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results["s1"].Score == nil || *results["s1"].Score != 1.0 {
		t.Errorf("s1 score = %v, want 1.0", results["s1"].Score)
	}
	if results["s2"].Score == nil || *results["s2"].Score != 0.0 {
		t.Errorf("s2 score = %v, want 0.0", results["s2"].Score)
	}
	if results["s3"].Score != nil {
		t.Errorf("s3 has no endorsements, score must be nil")
	}

	// One propagation for the whole batch: V and A each expanded once.
	if counting.edgeCalls != 2 {
		t.Errorf("edge fetches = %d, want 2 (single shared neighborhood)", counting.edgeCalls)
	}
}

type countingGraph struct {
	stubGraph
	edgeCalls int
}

func (g *countingGraph) OutgoingEdges(ctx context.Context, node, domain string) ([]OutgoingEdge, error) {
	g.edgeCalls++
	return g.stubGraph.OutgoingEdges(ctx, node, domain)
}

func TestEngineFeedDefaults(t *testing.T) {
	engine := New(&stubGraph{edges: map[string][]OutgoingEdge{
		"V": {edge("V", "A", 0.9, "*"), edge("V", "B", 0.3, "*")},
	}})

	entries := []FeedEntry{
		{Endorsement: endorsement("B", 0.9, false, scoreNow)},
		{Endorsement: endorsement("A", 0.5, false, scoreNow)},
	}
	items, err := engine.Feed(context.Background(), "V", "food", entries, "", "", Options{AsOf: scoreNow})
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(items) != 2 || items[0].Endorsement.Author != "A" {
		t.Errorf("default feed order must be trust descending, got %+v", items)
	}
}

func TestEngineCollaboratorErrorSurfaces(t *testing.T) {
	sentinel := errors.New("pool exhausted")
	engine := New(&stubGraph{
		edges:   map[string][]OutgoingEdge{"V": {edge("V", "A", 0.9, "*")}},
		distErr: sentinel,
	})

	_, err := engine.TrustNeighborhood(context.Background(), "V", "food", Options{})
	if !errors.Is(err, sentinel) {
		t.Errorf("distrust callback failure must surface, got %v", err)
	}
}

func TestEngineTrustAlwaysInUnitInterval(t *testing.T) {
	g := &stubGraph{edges: map[string][]OutgoingEdge{
		"V": {edge("V", "A", 1.0, "*"), edge("V", "B", 1.0, "*")},
		"A": {edge("A", "C", 1.0, "*")},
		"B": {edge("B", "C", 1.0, "*"), edge("B", "A", 1.0, "*")},
		"C": {edge("C", "D", 1.0, "*")},
	}}

	for _, agg := range []Aggregation{AggregateMaximum, AggregateProbabilistic, AggregateSum} {
		engine := New(g)
		nb, err := engine.TrustNeighborhood(context.Background(), "V", "food",
			Options{Aggregation: agg, DecayFunction: DecayCutoff, DecayParameter: 8})
		if err != nil {
			t.Fatalf("%s: %v", agg, err)
		}
		for node, entry := range nb {
			if entry.Trust < 0 || entry.Trust > 1 {
				t.Errorf("%s: trust(%s) = %v escaped [0, 1]", agg, node, entry.Trust)
			}
			if len(entry.Paths) == 0 {
				t.Errorf("%s: %s has no path", agg, node)
			}
			shortest := entry.Paths[0]
			for _, p := range entry.Paths {
				if len(p) < len(shortest) {
					shortest = p
				}
			}
			if len(shortest)-1 != entry.MinHops {
				t.Errorf("%s: %s minHops %d does not match shortest path %v", agg, node, entry.MinHops, shortest)
			}
		}
	}
}

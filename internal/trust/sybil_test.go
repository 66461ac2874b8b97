package trust

import (
	"testing"
	"time"

	"github.com/nintynick/transitive-trust/pkg/models"
)

var sybilNow = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func trustEdgeAt(from, to string, createdAt time.Time) models.TrustEdge {
	return models.TrustEdge{From: from, To: to, Weight: 0.8, Domain: "*", CreatedAt: createdAt}
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}

func TestSybilFlagsAndRisk(t *testing.T) {
	// The farm shape: young account, saturated velocity, tight reciprocal
	// ring, a single inbound voucher.
	ind := SybilIndicators{
		ClusterCoef:    0.5,
		Reciprocity:    0.875,
		EdgeVelocity:   25,
		PathDiversity:  1,
		AccountAgeDays: 5,
	}

	flags := sybilFlags(ind)
	expected := []string{FlagHighReciprocity, FlagRapidEdgeCreation, FlagLowPathDiversity, FlagNewAccount}
	if len(flags) != len(expected) {
		t.Fatalf("flags = %v, want %v", flags, expected)
	}
	for _, f := range expected {
		if !hasFlag(flags, f) {
			t.Errorf("missing flag %s in %v", f, flags)
		}
	}

	risk := riskScore(ind)
	// 0.25*0.5 + 0.2*0.875 + 0.2*1 + 0.15*0.5 + 0.2*(1 - 5/30)
	if !almostEqual(risk, 0.7417, 1e-3) {
		t.Errorf("risk = %v, want ~0.74", risk)
	}
}

func TestSybilIndicatorsFromSubgraph(t *testing.T) {
	recent := sybilNow.Add(-24 * time.Hour)
	older := sybilNow.Add(-30 * 24 * time.Hour)
	input := SybilInput{
		Principal: "P",
		CreatedAt: sybilNow.Add(-90 * 24 * time.Hour),
		OutgoingEdges: []models.TrustEdge{
			trustEdgeAt("P", "a", recent),
			trustEdgeAt("P", "b", older),
		},
		IncomingEdges: []models.TrustEdge{
			trustEdgeAt("a", "P", older),
		},
		IntraNeighborEdges: 1,
		AssessedAt:         sybilNow,
	}

	got := AssessSybil(input)

	// Two neighbors (a, b); one directed edge among them of 2 possible.
	if !almostEqual(got.Indicators.ClusterCoef, 0.5, 1e-9) {
		t.Errorf("clusterCoef = %v, want 0.5", got.Indicators.ClusterCoef)
	}
	// One of two outgoing edges is vouched back.
	if !almostEqual(got.Indicators.Reciprocity, 0.5, 1e-9) {
		t.Errorf("reciprocity = %v, want 0.5", got.Indicators.Reciprocity)
	}
	if got.Indicators.EdgeVelocity != 1 {
		t.Errorf("edgeVelocity = %d, want 1 (only the recent edge)", got.Indicators.EdgeVelocity)
	}
	if got.Indicators.PathDiversity != 1 {
		t.Errorf("pathDiversity = %d, want 1", got.Indicators.PathDiversity)
	}
	if !almostEqual(got.Indicators.AccountAgeDays, 90, 1e-6) {
		t.Errorf("accountAgeDays = %v, want 90", got.Indicators.AccountAgeDays)
	}
	if got.Principal != "P" || !got.AssessedAt.Equal(sybilNow) {
		t.Errorf("assessment header = %s/%v", got.Principal, got.AssessedAt)
	}
	if hasFlag(got.Flags, FlagNewAccount) {
		t.Error("a 90-day account is not new")
	}
	if !hasFlag(got.Flags, FlagLowPathDiversity) {
		t.Error("single inbound voucher must flag low diversity")
	}
}

func TestSybilIsolatedPrincipal(t *testing.T) {
	got := AssessSybil(SybilInput{
		Principal:  "loner",
		CreatedAt:  sybilNow.Add(-10 * 24 * time.Hour),
		AssessedAt: sybilNow,
	})

	if got.Indicators.ClusterCoef != 0 {
		t.Errorf("clusterCoef with < 2 neighbors = %v, want 0", got.Indicators.ClusterCoef)
	}
	if got.Indicators.Reciprocity != 0 {
		t.Errorf("reciprocity with no outgoing = %v, want 0", got.Indicators.Reciprocity)
	}
	for _, f := range []string{FlagNoInboundTrust, FlagLowPathDiversity, FlagNewAccount} {
		if !hasFlag(got.Flags, f) {
			t.Errorf("missing flag %s in %v", f, got.Flags)
		}
	}
	if got.Risk < 0 || got.Risk > 1 {
		t.Errorf("risk %v escaped [0, 1]", got.Risk)
	}
}

func TestSybilRiskBounds(t *testing.T) {
	worst := SybilIndicators{ClusterCoef: 1, Reciprocity: 1, EdgeVelocity: 1000, PathDiversity: 0, AccountAgeDays: 0}
	if got := riskScore(worst); !almostEqual(got, 1.0, 1e-9) {
		t.Errorf("worst case risk = %v, want 1.0", got)
	}

	best := SybilIndicators{ClusterCoef: 0, Reciprocity: 0, EdgeVelocity: 0, PathDiversity: 50, AccountAgeDays: 2000}
	if got := riskScore(best); !almostEqual(got, 0.0, 1e-9) {
		t.Errorf("best case risk = %v, want 0.0", got)
	}
}

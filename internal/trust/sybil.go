package trust

import (
	"time"

	"github.com/nintynick/transitive-trust/pkg/models"
)

// Sybil risk assessment over a principal's local 1-hop subgraph.
//
// Coordinated fake identities betray themselves structurally long before
// they betray themselves behaviorally: they vouch for each other in tight
// reciprocal clusters, mint edges in bursts, and attract no independent
// inbound trust. Each indicator is normalized to [0, 1] and folded into a
// weighted risk score; diversity and age are inverted (low = risky).

// Sybil flag labels.
const (
	FlagHighClusterCoefficient = "high_cluster_coefficient"
	FlagHighReciprocity        = "high_reciprocity"
	FlagRapidEdgeCreation      = "rapid_edge_creation"
	FlagLowPathDiversity       = "low_path_diversity"
	FlagNewAccount             = "new_account"
	FlagNoInboundTrust         = "no_inbound_trust"
)

// Flag thresholds. The same values anchor the indicator normalization.
const (
	clusterCoefFlagLevel = 0.8
	reciprocityFlagLevel = 0.7
	velocityFlagLevel    = 20
	diversityFlagLevel   = 2
	newAccountDays       = 30
	velocityWindow       = 7 * 24 * time.Hour
)

// Indicator weights (sum to 1.0).
const (
	weightClusterCoef   = 0.25
	weightReciprocity   = 0.20
	weightEdgeVelocity  = 0.20
	weightPathDiversity = 0.15
	weightAccountAge    = 0.20
)

// SybilInput is the local-subgraph bundle supplied by the collaborator:
// the principal's own edges in both directions plus the number of
// directed edges that exist among its neighbors.
type SybilInput struct {
	Principal          string             `json:"principal"`
	CreatedAt          time.Time          `json:"createdAt"`
	OutgoingEdges      []models.TrustEdge `json:"outgoingEdges"`
	IncomingEdges      []models.TrustEdge `json:"incomingEdges"`
	IntraNeighborEdges int                `json:"intraNeighborEdges"`

	// AssessedAt pins "now"; zero means wall-clock time.
	AssessedAt time.Time `json:"assessedAt,omitempty"`
}

// SybilIndicators are the raw local-graph measurements.
type SybilIndicators struct {
	ClusterCoef    float64 `json:"clusterCoef"`    // directed density among neighbors
	Reciprocity    float64 `json:"reciprocity"`    // fraction of outgoing edges vouched back
	EdgeVelocity   int     `json:"edgeVelocity"`   // outgoing edges minted in the last 7 days
	PathDiversity  int     `json:"pathDiversity"`  // distinct inbound vouchers
	AccountAgeDays float64 `json:"accountAgeDays"` // days since the principal was created
}

// SybilAssessment is the risk verdict for one principal.
type SybilAssessment struct {
	Principal  string          `json:"principal"`
	Indicators SybilIndicators `json:"indicators"`
	Flags      []string        `json:"flags"`
	Risk       float64         `json:"risk"` // [0, 1]
	AssessedAt time.Time       `json:"assessedAt"`
}

// AssessSybil computes indicators, flags, and the weighted risk score
// from a principal's local subgraph. Pure and deterministic given a
// pinned AssessedAt.
func AssessSybil(input SybilInput) SybilAssessment {
	now := input.AssessedAt
	if now.IsZero() {
		now = time.Now()
	}

	ind := SybilIndicators{
		ClusterCoef:   clusterCoefficient(input),
		Reciprocity:   reciprocity(input),
		EdgeVelocity:  edgeVelocity(input.OutgoingEdges, now),
		PathDiversity: pathDiversity(input.IncomingEdges),
	}
	if !input.CreatedAt.IsZero() {
		ind.AccountAgeDays = now.Sub(input.CreatedAt).Hours() / 24
	}

	return SybilAssessment{
		Principal:  input.Principal,
		Indicators: ind,
		Flags:      sybilFlags(ind),
		Risk:       riskScore(ind),
		AssessedAt: now,
	}
}

// sybilFlags derives the categorical flags from the raw indicators.
func sybilFlags(ind SybilIndicators) []string {
	var flags []string
	if ind.ClusterCoef > clusterCoefFlagLevel {
		flags = append(flags, FlagHighClusterCoefficient)
	}
	if ind.Reciprocity > reciprocityFlagLevel {
		flags = append(flags, FlagHighReciprocity)
	}
	if ind.EdgeVelocity > velocityFlagLevel {
		flags = append(flags, FlagRapidEdgeCreation)
	}
	if ind.PathDiversity < diversityFlagLevel {
		flags = append(flags, FlagLowPathDiversity)
	}
	if ind.AccountAgeDays < newAccountDays {
		flags = append(flags, FlagNewAccount)
	}
	if ind.PathDiversity == 0 {
		flags = append(flags, FlagNoInboundTrust)
	}
	return flags
}

// clusterCoefficient is the directed edge density among the principal's
// neighbors: intraEdges / (k·(k−1)), 0 when fewer than two neighbors.
func clusterCoefficient(input SybilInput) float64 {
	k := neighborCount(input)
	if k < 2 {
		return 0
	}
	return clamp01(float64(input.IntraNeighborEdges) / float64(k*(k-1)))
}

func neighborCount(input SybilInput) int {
	neighbors := make(map[string]struct{})
	for _, e := range input.OutgoingEdges {
		if e.To != input.Principal {
			neighbors[e.To] = struct{}{}
		}
	}
	for _, e := range input.IncomingEdges {
		if e.From != input.Principal {
			neighbors[e.From] = struct{}{}
		}
	}
	return len(neighbors)
}

// reciprocity is the fraction of outgoing edges whose target vouches
// back. Tightly reciprocal rings are the classic collusion shape.
func reciprocity(input SybilInput) float64 {
	if len(input.OutgoingEdges) == 0 {
		return 0
	}
	inbound := make(map[string]struct{}, len(input.IncomingEdges))
	for _, e := range input.IncomingEdges {
		inbound[e.From] = struct{}{}
	}
	reciprocated := 0
	for _, e := range input.OutgoingEdges {
		if _, ok := inbound[e.To]; ok {
			reciprocated++
		}
	}
	return float64(reciprocated) / float64(len(input.OutgoingEdges))
}

func edgeVelocity(outgoing []models.TrustEdge, now time.Time) int {
	cutoff := now.Add(-velocityWindow)
	count := 0
	for _, e := range outgoing {
		if e.CreatedAt.After(cutoff) {
			count++
		}
	}
	return count
}

// pathDiversity counts distinct inbound vouchers, a rough proxy for
// independent attestations.
func pathDiversity(incoming []models.TrustEdge) int {
	vouchers := make(map[string]struct{}, len(incoming))
	for _, e := range incoming {
		vouchers[e.From] = struct{}{}
	}
	return len(vouchers)
}

// riskScore folds normalized indicators into [0, 1]. Normalization scales
// are the flag thresholds; diversity and age are inverted so that low
// values read as risky.
func riskScore(ind SybilIndicators) float64 {
	velocityNorm := clamp01(float64(ind.EdgeVelocity) / velocityFlagLevel)
	diversityNorm := clamp01(float64(ind.PathDiversity) / diversityFlagLevel)
	ageNorm := clamp01(ind.AccountAgeDays / newAccountDays)

	risk := weightClusterCoef*ind.ClusterCoef +
		weightReciprocity*ind.Reciprocity +
		weightEdgeVelocity*velocityNorm +
		weightPathDiversity*(1-diversityNorm) +
		weightAccountAge*(1-ageNorm)
	return clamp01(risk)
}

package trust

import (
	"fmt"
	"math"
	"sort"

	"github.com/nintynick/transitive-trust/pkg/models"
)

// Endorsement scoring: a trust-weighted, verification-boosted,
// recency-decayed weighted mean over the endorsements whose authors sit
// in the viewer's neighborhood.
//
//	weight = trust(author) × boost(verified) × 0.5^(age/halfLife)
//	score  = Σ(weight·rating) / Σ(weight)
//
// Confidence saturates with both contributor count and aggregate weight
// instead of using a sharp cutoff.

const maxTopContributors = 10

// Network coverage bands for score explanations.
const (
	CoverageSparse   = "sparse"   // < 20% of endorsements from the network
	CoverageModerate = "moderate" // < 50%
	CoverageDense    = "dense"    // >= 50%
)

// Contributor is one endorsement that survived the trust threshold.
type Contributor struct {
	Author   string     `json:"author"`
	Trust    float64    `json:"trust"`
	Rating   float64    `json:"rating"`
	Hops     int        `json:"hops"`
	Verified bool       `json:"verified"`
	Paths    [][]string `json:"paths,omitempty"`
}

// Explanation summarizes how a score came to be.
type Explanation struct {
	Summary         string   `json:"summary"`
	PrimaryPath     []string `json:"primaryPath,omitempty"`
	NetworkCoverage string   `json:"networkCoverage"`
}

// ScoreResult is the personalized score of one subject. Score is nil
// when no endorsement from the neighborhood survived the threshold.
type ScoreResult struct {
	Score                   *float64      `json:"score"`
	Confidence              float64       `json:"confidence"`
	EndorsementCount        int           `json:"endorsementCount"`
	NetworkEndorsementCount int           `json:"networkEndorsementCount"`
	TopContributors         []Contributor `json:"topContributors"`
	Explanation             *Explanation  `json:"explanation,omitempty"`
}

// scoreEndorsements folds a subject's endorsements against an already
// computed neighborhood. Options must be resolved.
func scoreEndorsements(nb Neighborhood, subject string, endorsements []models.Endorsement, opts Options) ScoreResult {
	result := ScoreResult{
		EndorsementCount: len(endorsements),
		TopContributors:  []Contributor{},
	}

	var (
		weightedSum  float64
		totalWeight  float64
		contributors []Contributor
	)
	for _, end := range endorsements {
		node, ok := nb[end.Author]
		if !ok || node.Trust < opts.MinTrustThreshold {
			continue
		}

		w := node.Trust
		if end.Verified() {
			w *= opts.VerificationBoost
		}
		w *= recencyDecay(opts.AsOf.Sub(end.CreatedAt), opts.RecencyHalfLifeDays)

		weightedSum += w * end.Rating.Score
		totalWeight += w
		contributors = append(contributors, Contributor{
			Author:   end.Author,
			Trust:    node.Trust,
			Rating:   end.Rating.Score,
			Hops:     node.MinHops,
			Verified: end.Verified(),
			Paths:    node.Paths,
		})
	}

	result.NetworkEndorsementCount = len(contributors)
	if totalWeight == 0 {
		return result
	}

	score := clamp01(weightedSum / totalWeight)
	result.Score = &score

	// Saturating confidence: grows with both how many endorsers
	// contributed and how much aggregate weight they carried.
	n := float64(len(contributors))
	contributorFactor := 1 - math.Exp(-n/3)
	weightFactor := 1 - math.Exp(-totalWeight/2)
	result.Confidence = clamp01((contributorFactor + weightFactor) / 2)

	sort.SliceStable(contributors, func(i, j int) bool {
		return contributors[i].Trust > contributors[j].Trust
	})
	top := contributors
	if len(top) > maxTopContributors {
		top = top[:maxTopContributors]
	}
	result.TopContributors = top

	result.Explanation = explainScore(nb, subject, result)
	return result
}

// explainScore builds the optional human-readable breakdown.
func explainScore(nb Neighborhood, subject string, r ScoreResult) *Explanation {
	if len(r.TopContributors) == 0 {
		return nil
	}
	lead := r.TopContributors[0]
	ex := &Explanation{
		Summary: fmt.Sprintf("score %.2f for %s from %d of %d endorsements, led by %s (trust %.2f)",
			*r.Score, subject, r.NetworkEndorsementCount, r.EndorsementCount, lead.Author, lead.Trust),
		NetworkCoverage: coverageBand(r.NetworkEndorsementCount, r.EndorsementCount),
	}
	if node, ok := nb[lead.Author]; ok {
		ex.PrimaryPath = node.bestPath
	}
	return ex
}

// coverageBand classifies how much of the endorsement set the viewer's
// network actually covered. Zero totals read as sparse.
func coverageBand(network, total int) string {
	if total == 0 {
		return CoverageSparse
	}
	ratio := float64(network) / float64(total)
	switch {
	case ratio >= 0.5:
		return CoverageDense
	case ratio >= 0.2:
		return CoverageModerate
	default:
		return CoverageSparse
	}
}

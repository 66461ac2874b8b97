package trust

import (
	"testing"
	"time"

	"github.com/nintynick/transitive-trust/pkg/models"
)

var scoreNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func scoreOpts(t *testing.T) Options {
	t.Helper()
	return resolved(t, Options{AsOf: scoreNow})
}

func endorsement(author string, rating float64, verified bool, createdAt time.Time) models.Endorsement {
	e := models.Endorsement{
		Author:    author,
		Subject:   "cafe-roma",
		Domain:    "food.restaurants",
		Rating:    models.Rating{Score: rating},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	if verified {
		e.Context = &models.EndorsementContext{Verified: true}
	}
	return e
}

func trustNode(trust float64, hops int, path []string) *TrustNode {
	return &TrustNode{Trust: trust, Paths: [][]string{path}, MinHops: hops, bestPath: path, bestPathTrust: trust}
}

func TestScoreTwoEndorsers(t *testing.T) {
	nb := Neighborhood{
		"V": trustNode(1.0, 0, []string{"V"}),
		"A": trustNode(0.6, 1, []string{"V", "A"}),
		"B": trustNode(0.2, 1, []string{"V", "B"}),
	}
	endorsements := []models.Endorsement{
		endorsement("A", 0.8, false, scoreNow),
		endorsement("B", 0.4, true, scoreNow),
	}

	result := scoreEndorsements(nb, "cafe-roma", endorsements, scoreOpts(t))

	if result.Score == nil {
		t.Fatal("expected a score")
	}
	// weights 0.6 and 0.2*1.5=0.3; (0.6*0.8 + 0.3*0.4) / 0.9
	if !almostEqual(*result.Score, 0.6667, 1e-3) {
		t.Errorf("score = %v, want ~0.667", *result.Score)
	}
	if !almostEqual(result.Confidence, 0.4245, 1e-2) {
		t.Errorf("confidence = %v, want ~0.425", result.Confidence)
	}
	if result.EndorsementCount != 2 || result.NetworkEndorsementCount != 2 {
		t.Errorf("counts = %d/%d, want 2/2", result.NetworkEndorsementCount, result.EndorsementCount)
	}
	if len(result.TopContributors) != 2 || result.TopContributors[0].Author != "A" {
		t.Errorf("top contributors = %+v, want A first", result.TopContributors)
	}
}

func TestScoreNoSurvivingEndorsements(t *testing.T) {
	nb := Neighborhood{"V": trustNode(1.0, 0, []string{"V"})}
	endorsements := []models.Endorsement{
		endorsement("stranger", 0.9, true, scoreNow),
	}

	result := scoreEndorsements(nb, "cafe-roma", endorsements, scoreOpts(t))

	if result.Score != nil {
		t.Errorf("score must be nil when nothing survives, got %v", *result.Score)
	}
	if result.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", result.Confidence)
	}
	if result.EndorsementCount != 1 || result.NetworkEndorsementCount != 0 {
		t.Errorf("counts = %d/%d, want 0/1", result.NetworkEndorsementCount, result.EndorsementCount)
	}
	if len(result.TopContributors) != 0 {
		t.Errorf("expected no contributors, got %v", result.TopContributors)
	}
	if result.Explanation != nil {
		t.Error("no-data results carry no explanation")
	}
}

func TestScoreThresholdSkipsWeakAuthors(t *testing.T) {
	opts := scoreOpts(t)
	nb := Neighborhood{
		"A": trustNode(0.5, 1, []string{"V", "A"}),
		"B": trustNode(opts.MinTrustThreshold / 2, 2, []string{"V", "A", "B"}),
	}
	endorsements := []models.Endorsement{
		endorsement("A", 1.0, false, scoreNow),
		endorsement("B", 0.0, false, scoreNow),
	}

	result := scoreEndorsements(nb, "cafe-roma", endorsements, opts)
	if result.NetworkEndorsementCount != 1 {
		t.Fatalf("sub-threshold author must be skipped, got %d contributors", result.NetworkEndorsementCount)
	}
	if *result.Score != 1.0 {
		t.Errorf("score = %v, want 1.0 from the sole contributor", *result.Score)
	}
}

func TestScoreRecencySymmetry(t *testing.T) {
	created := scoreNow.AddDate(0, -6, 0)
	nb := Neighborhood{
		"A": trustNode(0.5, 1, []string{"V", "A"}),
		"B": trustNode(0.5, 1, []string{"V", "B"}),
	}
	endorsements := []models.Endorsement{
		endorsement("A", 1.0, true, created),
		endorsement("B", 0.0, true, created),
	}

	result := scoreEndorsements(nb, "cafe-roma", endorsements, scoreOpts(t))
	// Identical (rating-symmetric) weights: the mean lands exactly between.
	if !almostEqual(*result.Score, 0.5, 1e-12) {
		t.Errorf("score = %v, want exactly 0.5", *result.Score)
	}
}

func TestScoreRecencyDecayShiftsWeight(t *testing.T) {
	nb := Neighborhood{
		"A": trustNode(0.5, 1, []string{"V", "A"}),
		"B": trustNode(0.5, 1, []string{"V", "B"}),
	}
	endorsements := []models.Endorsement{
		endorsement("A", 1.0, false, scoreNow),
		endorsement("B", 0.0, false, scoreNow.AddDate(-1, 0, 0)),
	}

	result := scoreEndorsements(nb, "cafe-roma", endorsements, scoreOpts(t))
	// B's weight halves after one half-life: (0.5*1 + 0.25*0) / 0.75
	if !almostEqual(*result.Score, 0.6667, 2e-3) {
		t.Errorf("score = %v, want ~0.667 with the stale rating discounted", *result.Score)
	}
}

func TestScoreTopContributorsCapped(t *testing.T) {
	nb := Neighborhood{}
	var endorsements []models.Endorsement
	authors := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	for i, author := range authors {
		nb[author] = trustNode(float64(i+1)/20, 1, []string{"V", author})
		endorsements = append(endorsements, endorsement(author, 0.5, false, scoreNow))
	}

	result := scoreEndorsements(nb, "cafe-roma", endorsements, scoreOpts(t))
	if len(result.TopContributors) != maxTopContributors {
		t.Fatalf("got %d contributors, want %d", len(result.TopContributors), maxTopContributors)
	}
	for i := 1; i < len(result.TopContributors); i++ {
		if result.TopContributors[i].Trust > result.TopContributors[i-1].Trust {
			t.Errorf("contributors not sorted by trust descending at %d", i)
		}
	}
	if result.TopContributors[0].Author != "l" {
		t.Errorf("strongest author = %s, want l", result.TopContributors[0].Author)
	}
}

func TestScoreExplanation(t *testing.T) {
	nb := Neighborhood{
		"A": trustNode(0.7, 2, []string{"V", "X", "A"}),
		"B": trustNode(0.3, 1, []string{"V", "B"}),
	}
	endorsements := []models.Endorsement{
		endorsement("A", 0.9, false, scoreNow),
		endorsement("B", 0.5, false, scoreNow),
		endorsement("outsider1", 0.1, false, scoreNow),
		endorsement("outsider2", 0.1, false, scoreNow),
		endorsement("outsider3", 0.1, false, scoreNow),
	}

	result := scoreEndorsements(nb, "cafe-roma", endorsements, scoreOpts(t))
	if result.Explanation == nil {
		t.Fatal("expected an explanation")
	}
	if !samePath(result.Explanation.PrimaryPath, []string{"V", "X", "A"}) {
		t.Errorf("primary path = %v, want the top contributor's best path", result.Explanation.PrimaryPath)
	}
	// 2 of 5 endorsements covered = 40% -> moderate
	if result.Explanation.NetworkCoverage != CoverageModerate {
		t.Errorf("coverage = %s, want %s", result.Explanation.NetworkCoverage, CoverageModerate)
	}
}

func TestCoverageBand(t *testing.T) {
	tests := []struct {
		network  int
		total    int
		expected string
	}{
		{0, 0, CoverageSparse},
		{1, 10, CoverageSparse},
		{2, 10, CoverageModerate},
		{4, 10, CoverageModerate},
		{5, 10, CoverageDense},
		{10, 10, CoverageDense},
	}
	for _, tt := range tests {
		if got := coverageBand(tt.network, tt.total); got != tt.expected {
			t.Errorf("coverageBand(%d, %d) = %s, want %s", tt.network, tt.total, got, tt.expected)
		}
	}
}

func TestFeedRanking(t *testing.T) {
	nb := Neighborhood{
		"A": trustNode(0.9, 1, []string{"V", "A"}),
		"B": trustNode(0.4, 2, []string{"V", "A", "B"}),
	}
	old := scoreNow.AddDate(0, -1, 0)
	entries := []FeedEntry{
		{Endorsement: endorsement("B", 0.9, false, scoreNow), AuthorName: "Bo"},
		{Endorsement: endorsement("A", 0.2, false, old), AuthorName: "Al"},
		{Endorsement: endorsement("nobody", 1.0, false, scoreNow)},
	}

	items := rankFeed(nb, entries, FeedSortTrust, OrderDesc)
	if len(items) != 2 {
		t.Fatalf("out-of-network author must be dropped, got %d items", len(items))
	}
	if items[0].Endorsement.Author != "A" || items[0].AuthorName != "Al" || items[0].HopDistance != 1 {
		t.Errorf("first item = %+v, want Al at 1 hop", items[0])
	}

	items = rankFeed(nb, entries, FeedSortRating, OrderDesc)
	if items[0].Endorsement.Author != "B" {
		t.Errorf("rating sort desc should lead with B, got %s", items[0].Endorsement.Author)
	}

	items = rankFeed(nb, entries, FeedSortDate, OrderAsc)
	if items[0].Endorsement.Author != "A" {
		t.Errorf("date sort asc should lead with the older endorsement, got %s", items[0].Endorsement.Author)
	}
}

func TestFeedTieBreaksByDate(t *testing.T) {
	nb := Neighborhood{
		"A": trustNode(0.5, 1, []string{"V", "A"}),
		"B": trustNode(0.5, 1, []string{"V", "B"}),
	}
	entries := []FeedEntry{
		{Endorsement: endorsement("A", 0.5, false, scoreNow.Add(-time.Hour))},
		{Endorsement: endorsement("B", 0.5, false, scoreNow)},
	}

	items := rankFeed(nb, entries, FeedSortTrust, OrderDesc)
	if items[0].Endorsement.Author != "B" {
		t.Errorf("equal trust must break by created_at descending, got %s first", items[0].Endorsement.Author)
	}
}

package trust

import (
	"strings"

	"github.com/nintynick/transitive-trust/pkg/models"
)

// Domains are dotted lowercase paths ("food.restaurants.pizza"). The
// hierarchy is purely lexical: ancestors are produced by stripping one
// dotted component at a time, with the wildcard appended last. No
// registry lookup is performed.

// domainAncestors returns the ancestor chain of a queried domain, nearest
// first, ending with the wildcard: "a.b.c" -> ["a.b", "a", "*"].
func domainAncestors(domain string) []string {
	var ancestors []string
	for {
		i := strings.LastIndexByte(domain, '.')
		if i < 0 {
			break
		}
		domain = domain[:i]
		ancestors = append(ancestors, domain)
	}
	return append(ancestors, models.Wildcard)
}

// domainWeight computes the eligibility weight of an edge declared in
// `declared` against a query in `queried`.
//
//	declared == queried  -> 1.0
//	declared == "*"      -> 1.0
//	declared is the i-th ancestor of queried (1-based) -> factor^i
//	otherwise            -> 0.0 (edge ineligible)
//
// The relation is asymmetric: a specific edge never satisfies a more
// general query except through the wildcard.
func domainWeight(declared, queried string, factor float64) float64 {
	if declared == queried || declared == models.Wildcard {
		return 1.0
	}
	for i, anc := range domainAncestors(queried) {
		if anc == declared {
			return domainDecay(factor, i+1)
		}
	}
	return 0
}

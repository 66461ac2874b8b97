package trust

// Path aggregation. Each strategy merges an incoming path's trust into
// the node's visited entry; path sets are always unioned and minHops is
// always the minimum observed, regardless of strategy.
//
//	maximum:       max(existing, incoming)        — default
//	probabilistic: 1 - (1-existing)*(1-incoming)  — independent-evidence OR
//	sum:           min(1, existing + incoming)    — diagnostic only
func mergeTrust(strategy Aggregation, existing, incoming float64) float64 {
	var merged float64
	switch strategy {
	case AggregateProbabilistic:
		merged = 1 - (1-existing)*(1-incoming)
	case AggregateSum:
		merged = existing + incoming
	default: // maximum
		merged = existing
		if incoming > merged {
			merged = incoming
		}
	}
	return clamp01(merged)
}

// shouldExpand reports whether the arrival of a new path with the given
// trust warrants re-enqueueing the node for further expansion. Under
// maximum only a strictly better path re-expands; the evidence-combining
// strategies always do.
func shouldExpand(strategy Aggregation, existing, incoming float64) bool {
	switch strategy {
	case AggregateProbabilistic, AggregateSum:
		return true
	default:
		return incoming > existing
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

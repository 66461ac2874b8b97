package trust

import (
	"context"
	"fmt"
)

// TrustNode is one entry of a viewer's trust neighborhood: the merged
// effective trust, every qualifying path from the viewer, and the
// shortest observed hop count.
type TrustNode struct {
	Trust   float64    `json:"trust"`
	Paths   [][]string `json:"paths"`
	MinHops int        `json:"minHops"`

	// bestPath is the single highest-trust path observed, tracked for
	// score explanations. Not part of the serialized entry.
	bestPath      []string
	bestPathTrust float64
}

// Neighborhood maps reachable principals to their trust entries. It is
// derived per query and owned by the caller; the engine keeps no copy.
type Neighborhood map[string]*TrustNode

// EffectiveTrust is the single-target projection of a neighborhood.
// Unreachable targets carry trust 0, no paths, and hops -1.
type EffectiveTrust struct {
	Trust float64    `json:"trust"`
	Paths [][]string `json:"paths"`
	Hops  int        `json:"hops"`
}

// Lookup projects one target out of the neighborhood.
func (n Neighborhood) Lookup(target string) EffectiveTrust {
	if node, ok := n[target]; ok {
		return EffectiveTrust{Trust: node.Trust, Paths: node.Paths, Hops: node.MinHops}
	}
	return EffectiveTrust{Trust: 0, Paths: nil, Hops: -1}
}

// queueItem is one pending path expansion. It carries the raw edge
// product (weights times domain weights, no hop decay) so that decay is
// applied exactly once per path length, keeping the decay-identity
// property: a chain of weight-1 wildcard edges at hop h scores
// decay(h), not a compounded product of per-step decays.
type queueItem struct {
	node string
	raw  float64
	hops int
	path []string
}

// propagate runs the bounded breadth-first traversal and returns the
// viewer's full trust neighborhood. Options must already be resolved.
//
// Ordering is canonical — FIFO queue, edges relaxed in the order the
// collaborator returns them, fixed multiply order — so re-runs over a
// deterministic collaborator are bit-identical. The only suspension
// points are the two collaborator calls; cancellation is honored before
// each and discards the partial neighborhood.
func propagate(ctx context.Context, src EdgeSource, viewer, domain string, opts Options) (Neighborhood, error) {
	visited := Neighborhood{
		viewer: {Trust: 1.0, Paths: [][]string{{viewer}}, MinHops: 0, bestPath: []string{viewer}, bestPathTrust: 1.0},
	}
	queue := []queueItem{{node: viewer, raw: 1.0, hops: 0, path: []string{viewer}}}

	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.hops >= opts.MaxHops {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		edges, err := src.OutgoingEdges(ctx, it.node, domain)
		if err != nil {
			return nil, fmt.Errorf("outgoing edges of %s: %w", it.node, err)
		}

		for _, e := range edges {
			// Self-loops are rejected at the invariant level and edges
			// back to the viewer would dilute the identity entry.
			if e.To == it.node || e.To == viewer || e.To == "" {
				continue
			}

			if err := ctx.Err(); err != nil {
				return nil, err
			}
			distrusted, err := src.IsDistrusted(ctx, viewer, e.To, domain)
			if err != nil {
				return nil, fmt.Errorf("distrust check for %s: %w", e.To, err)
			}
			if distrusted {
				continue
			}

			dw := domainWeight(e.Domain, domain, opts.DomainDistanceFactor)
			if dw == 0 {
				continue
			}
			w := clamp01(e.Weight)
			if e.Penalty > 0 {
				w *= e.Penalty
			}

			hops := it.hops + 1
			raw := it.raw * (w * dw)
			pathTrust := raw * hopDecay(opts.DecayFunction, opts.DecayParameter, hops)
			if pathTrust < opts.MinTrustThreshold {
				continue
			}

			newPath := make([]string, len(it.path)+1)
			copy(newPath, it.path)
			newPath[len(it.path)] = e.To

			existing, ok := visited[e.To]
			if !ok {
				visited[e.To] = &TrustNode{
					Trust:         pathTrust,
					Paths:         [][]string{newPath},
					MinHops:       hops,
					bestPath:      newPath,
					bestPathTrust: pathTrust,
				}
				queue = append(queue, queueItem{node: e.To, raw: raw, hops: hops, path: newPath})
				continue
			}

			// The entry is always merged — weaker paths still belong to
			// the path set — but only strategy-approved arrivals re-expand.
			expand := shouldExpand(opts.Aggregation, existing.Trust, pathTrust)
			existing.Trust = mergeTrust(opts.Aggregation, existing.Trust, pathTrust)
			existing.Paths = append(existing.Paths, newPath)
			if hops < existing.MinHops {
				existing.MinHops = hops
			}
			if pathTrust > existing.bestPathTrust {
				existing.bestPathTrust = pathTrust
				existing.bestPath = newPath
			}
			if expand {
				queue = append(queue, queueItem{node: e.To, raw: raw, hops: hops, path: newPath})
			}
		}
	}
	return visited, nil
}

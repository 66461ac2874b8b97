package trust

import (
	"sort"

	"github.com/nintynick/transitive-trust/pkg/models"
)

// FeedSort selects the feed ordering key.
type FeedSort string

const (
	FeedSortTrust  FeedSort = "trust"
	FeedSortDate   FeedSort = "date"
	FeedSortRating FeedSort = "rating"
)

// SortOrder is the feed ordering direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// FeedEntry is one candidate endorsement with its author's display name
// as supplied by the caller.
type FeedEntry struct {
	Endorsement models.Endorsement `json:"endorsement"`
	AuthorName  string             `json:"authorName,omitempty"`
}

// FeedItem is one ranked feed row: an endorsement whose author is inside
// the viewer's neighborhood, annotated with that author's standing.
type FeedItem struct {
	Endorsement models.Endorsement `json:"endorsement"`
	AuthorTrust float64            `json:"authorTrust"`
	HopDistance int                `json:"hopDistance"`
	AuthorName  string             `json:"authorName,omitempty"`
}

// rankFeed projects the entries whose authors the viewer reaches, then
// sorts by the requested key. Ties always break by created_at descending.
func rankFeed(nb Neighborhood, entries []FeedEntry, sortBy FeedSort, order SortOrder) []FeedItem {
	items := make([]FeedItem, 0, len(entries))
	for _, entry := range entries {
		node, ok := nb[entry.Endorsement.Author]
		if !ok {
			continue
		}
		items = append(items, FeedItem{
			Endorsement: entry.Endorsement,
			AuthorTrust: node.Trust,
			HopDistance: node.MinHops,
			AuthorName:  entry.AuthorName,
		})
	}

	asc := order == OrderAsc
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		var less, eq bool
		switch sortBy {
		case FeedSortDate:
			less = a.Endorsement.CreatedAt.Before(b.Endorsement.CreatedAt)
			eq = a.Endorsement.CreatedAt.Equal(b.Endorsement.CreatedAt)
		case FeedSortRating:
			less = a.Endorsement.Rating.Score < b.Endorsement.Rating.Score
			eq = a.Endorsement.Rating.Score == b.Endorsement.Rating.Score
		default: // trust
			less = a.AuthorTrust < b.AuthorTrust
			eq = a.AuthorTrust == b.AuthorTrust
		}
		if eq {
			return a.Endorsement.CreatedAt.After(b.Endorsement.CreatedAt)
		}
		if asc {
			return less
		}
		return !less
	})
	return items
}

// Package ranker orders catalog items for display.
//
// Order of precedence: catalog-wide promotion, category promotion (only when a
// concrete category is selected), weighted popularity score, input order.
package ranker

import (
	"cmp"
	"slices"
	"time"

	"nebula-miniapp/internal/domain/catalog"
)

// AllCategories is the sentinel for "no category selected".
const AllCategories = "All"

const (
	userRatingWeight    = 0.2
	catalogRatingWeight = 0.2
	donatedStarsWeight  = 0.3
	opensWeight         = 0.0001
)

// IsAllCategory reports whether category means "no category filter".
func IsAllCategory(category string) bool {
	switch category {
	case "", AllCategories, "all", "Все":
		return true
	}
	return false
}

// Score is the weighted popularity of an item. Missing fields are zero.
func Score(item *catalog.Item) float64 {
	return userRatingWeight*item.UserRating +
		catalogRatingWeight*item.CatalogRating +
		donatedStarsWeight*float64(item.DonatedStars) +
		opensWeight*float64(item.Opens)
}

// IsCatalogPromoted reports whether the catalog-wide promotion applies at now.
func IsCatalogPromoted(item *catalog.Item, now time.Time) bool {
	return item.IsPromotedInCatalog && inWindow(item.PromoCatalogStart, item.PromoCatalogEnd, now)
}

// IsCategoryPromoted reports whether the item is promoted inside category at
// now. Always false for the All sentinel and for items outside category.
func IsCategoryPromoted(item *catalog.Item, category string, now time.Time) bool {
	if IsAllCategory(category) || !item.InCategory(category) {
		return false
	}
	return item.IsPromotedInCategory && inWindow(item.PromoCategoryStart, item.PromoCategoryEnd, now)
}

// inWindow treats both bounds as inclusive; a nil bound is open.
func inWindow(start, end *time.Time, now time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && now.After(*end) {
		return false
	}
	return true
}

type rankedItem struct {
	item            catalog.Item
	catalogPromoted bool
	categoryPromo   bool
	score           float64
}

// Rank returns a new slice with items in display order. The input slice is
// left untouched.
func Rank(items []catalog.Item, activeCategory string, now time.Time) []catalog.Item {
	if len(items) == 0 {
		return []catalog.Item{}
	}

	keyed := make([]rankedItem, len(items))
	for i := range items {
		keyed[i] = rankedItem{
			item:            items[i],
			catalogPromoted: IsCatalogPromoted(&items[i], now),
			categoryPromo:   IsCategoryPromoted(&items[i], activeCategory, now),
			score:           Score(&items[i]),
		}
	}

	slices.SortStableFunc(keyed, compare)

	out := make([]catalog.Item, len(keyed))
	for i := range keyed {
		out[i] = keyed[i].item
	}
	return out
}

func compare(a, b rankedItem) int {
	if a.catalogPromoted != b.catalogPromoted {
		return promotedFirst(a.catalogPromoted)
	}
	if a.categoryPromo != b.categoryPromo {
		return promotedFirst(a.categoryPromo)
	}
	// higher score first
	return cmp.Compare(b.score, a.score)
}

func promotedFirst(aPromoted bool) int {
	if aPromoted {
		return -1
	}
	return 1
}

// Position returns the 1-based place of id in ranked, or 0 when absent.
func Position(ranked []catalog.Item, id string) int {
	for i := range ranked {
		if ranked[i].ID == id {
			return i + 1
		}
	}
	return 0
}

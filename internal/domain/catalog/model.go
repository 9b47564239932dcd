package catalog

import "time"

// Kind distinguishes games from regular apps.
type Kind string

const (
	KindGame Kind = "game"
	KindApp  Kind = "app"
)

// Item is one listed game or app in canonical form. Numeric popularity fields
// default to zero when the backend omits them.
type Item struct {
	ID                   string   `json:"id"`
	Kind                 Kind     `json:"kind"`
	Category             string   `json:"category,omitempty"`
	AdditionalCategories []string `json:"additionalCategories,omitempty"`
	Geo                  string   `json:"geo,omitempty"`

	UserRating    float64 `json:"userRating"`
	CatalogRating float64 `json:"catalogRating"`
	DonatedStars  int64   `json:"donatedStars"`
	Opens         int64   `json:"opens"`

	IsPromotedInCatalog  bool       `json:"isPromotedInCatalog"`
	IsPromotedInCategory bool       `json:"isPromotedInCategory"`
	PromoCatalogStart    *time.Time `json:"promoCatalogStart,omitempty"`
	PromoCatalogEnd      *time.Time `json:"promoCatalogEnd,omitempty"`
	PromoCategoryStart   *time.Time `json:"promoCategoryStart,omitempty"`
	PromoCategoryEnd     *time.Time `json:"promoCategoryEnd,omitempty"`

	Name             string   `json:"name"`
	IconURL          string   `json:"iconUrl,omitempty"`
	BannerURL        string   `json:"bannerUrl,omitempty"`
	ShortDescription string   `json:"shortDescription,omitempty"`
	LongDescription  string   `json:"longDescription,omitempty"`
	Gallery          []string `json:"gallery"`
	VideoURL         string   `json:"videoUrl,omitempty"`
	Link             string   `json:"link,omitempty"`
	Developer        string   `json:"developer,omitempty"`
	Platforms        []string `json:"platforms"`
	AgeRating        string   `json:"ageRating,omitempty"`
	InAppPurchases   bool     `json:"inAppPurchases"`
	Complaints       int64    `json:"complaints"`

	DateAdded time.Time `json:"dateAdded"`
	EditCount int64     `json:"editCount"`
}

// Categories returns the primary category followed by the additional ones,
// without blanks or duplicates.
func (i *Item) Categories() []string {
	out := make([]string, 0, 1+len(i.AdditionalCategories))
	seen := make(map[string]struct{}, cap(out))
	add := func(c string) {
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	add(i.Category)
	for _, c := range i.AdditionalCategories {
		add(c)
	}
	return out
}

// InCategory reports whether the item is listed under category.
func (i *Item) InCategory(category string) bool {
	if category == "" {
		return false
	}
	if i.Category == category {
		return true
	}
	for _, c := range i.AdditionalCategories {
		if c == category {
			return true
		}
	}
	return false
}

// SharesCategory reports whether both items have at least one category in common.
func (i *Item) SharesCategory(other *Item) bool {
	for _, c := range other.Categories() {
		if i.InCategory(c) {
			return true
		}
	}
	return false
}

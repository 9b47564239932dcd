package backend

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"nebula-miniapp/internal/domain/catalog"
	"nebula-miniapp/internal/domain/inventory"
	"nebula-miniapp/internal/domain/user"
)

// wireItem is the union of every catalog item shape the backend has served.
type wireItem struct {
	ID      flexString `json:"id"`
	MongoID flexString `json:"_id"`

	Type         string      `json:"type"`
	Kind         string      `json:"kind"`
	Category     string      `json:"category"`
	Categories   flexStrings `json:"categories"`
	Additional   flexStrings `json:"additionalCategories"`
	CategoryGame string      `json:"categoryGame"`
	CategoryApps string      `json:"categoryApps"`
	Geo          string      `json:"geo"`

	Rating                 flexFloat `json:"rating"`
	UserRating             flexFloat `json:"userRating"`
	CatalogRating          flexFloat `json:"catalogRating"`
	DonatedStars           flexInt   `json:"donatedStars"`
	TelegramStars          flexInt   `json:"telegramStars"`
	TelegramStarsDonations flexInt   `json:"telegramStarsDonations"`
	Opens                  flexInt   `json:"opens"`
	Clicks                 flexInt   `json:"clicks"`

	IsPromoted           flexBool `json:"isPromoted"`
	IsPromotedInCatalog  flexBool `json:"isPromotedInCatalog"`
	IsPromotedInCategory flexBool `json:"isPromotedInCategory"`
	PromoCatalogStart    flexTime `json:"promoCatalogStart"`
	PromoCatalogEnd      flexTime `json:"promoCatalogEnd"`
	PromoCategoryStart   flexTime `json:"promoCategoryStart"`
	PromoCategoryEnd     flexTime `json:"promoCategoryEnd"`

	Name             string      `json:"name"`
	Icon             string      `json:"icon"`
	IconURL          string      `json:"iconUrl"`
	ImageURL         string      `json:"imageUrl"`
	Banner           string      `json:"banner"`
	BannerURL        string      `json:"bannerUrl"`
	ShortDescription string      `json:"shortDescription"`
	LongDescription  string      `json:"longDescription"`
	Description      string      `json:"description"`
	Gallery          flexStrings `json:"gallery"`
	Video            string      `json:"video"`
	Link             string      `json:"link"`
	URL              string      `json:"url"`
	Developer        string      `json:"developer"`
	Platforms        flexStrings `json:"platforms"`
	AgeRating        string      `json:"ageRating"`
	InAppPurchases   flexBool    `json:"inAppPurchases"`
	Complaints       flexInt     `json:"complaints"`

	DateAdded flexTime `json:"dateAdded"`
	CreatedAt flexTime `json:"createdAt"`
	EditCount flexInt  `json:"editCount"`
}

func (w *wireItem) toDomain() catalog.Item {
	item := catalog.Item{
		ID:   firstString(w.ID, w.MongoID),
		Kind: normalizeKind(firstNonEmpty(w.Kind, w.Type), w.CategoryGame, w.CategoryApps),
		Geo:  w.Geo,

		UserRating:    clampRating(firstFloat(w.UserRating, w.Rating)),
		CatalogRating: clampRating(firstFloat(w.CatalogRating)),
		DonatedStars:  nonNegative(firstInt(w.DonatedStars, w.TelegramStars, w.TelegramStarsDonations)),
		Opens:         nonNegative(firstInt(w.Opens, w.Clicks)),

		IsPromotedInCatalog:  firstBool(w.IsPromotedInCatalog, w.IsPromoted),
		IsPromotedInCategory: firstBool(w.IsPromotedInCategory),
		PromoCatalogStart:    w.PromoCatalogStart.ptr(),
		PromoCatalogEnd:      w.PromoCatalogEnd.ptr(),
		PromoCategoryStart:   w.PromoCategoryStart.ptr(),
		PromoCategoryEnd:     w.PromoCategoryEnd.ptr(),

		Name:             w.Name,
		IconURL:          firstNonEmpty(w.IconURL, w.Icon, w.ImageURL),
		BannerURL:        firstNonEmpty(w.BannerURL, w.Banner),
		ShortDescription: firstNonEmpty(w.ShortDescription, w.Description),
		LongDescription:  firstNonEmpty(w.LongDescription, w.Description),
		Gallery:          orEmpty(w.Gallery),
		VideoURL:         w.Video,
		Link:             firstNonEmpty(w.Link, w.URL),
		Developer:        w.Developer,
		Platforms:        orEmpty(w.Platforms),
		AgeRating:        w.AgeRating,
		InAppPurchases:   firstBool(w.InAppPurchases),
		Complaints:       nonNegative(firstInt(w.Complaints)),

		DateAdded: firstTime(w.DateAdded, w.CreatedAt).V,
		EditCount: nonNegative(firstInt(w.EditCount)),
	}

	all := make([]string, 0, 3+len(w.Categories)+len(w.Additional))
	all = append(all, w.Category, w.CategoryGame, w.CategoryApps)
	all = append(all, w.Categories...)
	all = append(all, w.Additional...)
	all = compact(all)
	if len(all) > 0 {
		item.Category = all[0]
		for _, c := range all[1:] {
			if c != item.Category && !contains(item.AdditionalCategories, c) {
				item.AdditionalCategories = append(item.AdditionalCategories, c)
			}
		}
	}
	return item
}

func normalizeKind(raw, categoryGame, categoryApps string) catalog.Kind {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "game", "games":
		return catalog.KindGame
	case "app", "apps":
		return catalog.KindApp
	}
	if categoryGame != "" {
		return catalog.KindGame
	}
	if categoryApps != "" {
		return catalog.KindApp
	}
	return catalog.KindApp
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// decodeItems accepts a bare array or an object wrapping it under a known key.
func decodeItems(body []byte) ([]catalog.Item, error) {
	body = bytes.TrimSpace(body)
	var raw []wireItem
	if len(body) > 0 && body[0] == '{' {
		var envelope struct {
			Apps  []wireItem `json:"apps"`
			Games []wireItem `json:"games"`
			Data  []wireItem `json:"data"`
			Items []wireItem `json:"items"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, err
		}
		raw = append(raw, envelope.Apps...)
		raw = append(raw, envelope.Games...)
		raw = append(raw, envelope.Data...)
		raw = append(raw, envelope.Items...)
	} else if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	items := make([]catalog.Item, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for i := range raw {
		item := raw[i].toDomain()
		if item.ID == "" {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		items = append(items, item)
	}
	return items, nil
}

// decodeItem accepts an item or {"app": item}.
func decodeItem(body []byte) (catalog.Item, error) {
	var envelope struct {
		App *wireItem `json:"app"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.App != nil {
		return envelope.App.toDomain(), nil
	}
	var w wireItem
	if err := json.Unmarshal(body, &w); err != nil {
		return catalog.Item{}, err
	}
	return w.toDomain(), nil
}

type wireUser struct {
	UserID        flexString     `json:"userId"`
	ID            flexString     `json:"id"`
	Username      string         `json:"username"`
	FirstName     string         `json:"firstName"`
	PhotoURL      string         `json:"photoUrl"`
	IsPremium     flexBool       `json:"isPremium"`
	Platform      string         `json:"platform"`
	Platforms     flexStrings    `json:"platforms"`
	PlatformsSeen flexStrings    `json:"platformsSeen"`
	FirstLogin    flexTime       `json:"firstLogin"`
	FirstLoginAt  flexTime       `json:"firstLoginAt"`
	LastLogin     flexTime       `json:"lastLogin"`
	LastLoginAt   flexTime       `json:"lastLoginAt"`
	LoginCount    flexInt        `json:"loginCount"`
	OnlineStatus  string         `json:"onlineStatus"`
	Referrals     []wireReferral `json:"referrals"`
}

type wireReferral struct {
	TelegramID flexString `json:"telegramId"`
	UserID     flexString `json:"userId"`
	Username   string     `json:"username"`
}

func (w *wireUser) toDomain() user.Profile {
	p := user.Profile{
		ID:            firstString(w.UserID, w.ID),
		Username:      firstNonEmpty(w.Username, w.FirstName),
		PhotoURL:      w.PhotoURL,
		IsPremium:     firstBool(w.IsPremium),
		PlatformsSeen: []string{},
		FirstLoginAt:  firstTime(w.FirstLoginAt, w.FirstLogin).V,
		LastLoginAt:   firstTime(w.LastLoginAt, w.LastLogin).V,
		LoginCount:    nonNegative(firstInt(w.LoginCount)),
		OnlineStatus:  user.StatusOffline,
	}
	if strings.EqualFold(w.OnlineStatus, user.StatusOnline) {
		p.OnlineStatus = user.StatusOnline
	}
	for _, platform := range append(append([]string{}, w.PlatformsSeen...), w.Platforms...) {
		p.AddPlatform(platform)
	}
	p.AddPlatform(w.Platform)
	p.Referrals = toReferrals(w.Referrals)
	return p
}

// toReferrals drops entries without an id and repeated ids.
func toReferrals(in []wireReferral) []user.Referral {
	out := make([]user.Referral, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, r := range in {
		id := strings.TrimSpace(firstString(r.TelegramID, r.UserID))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, user.Referral{TelegramID: id, Username: r.Username})
	}
	return out
}

// userUpdateRequest is the body of POST /api/user/update.
type userUpdateRequest struct {
	UserID       string          `json:"userId" validate:"required"`
	Username     string          `json:"username"`
	PhotoURL     string          `json:"photoUrl"`
	Platform     string          `json:"platform"`
	IsPremium    bool            `json:"isPremium"`
	Platforms    []string        `json:"platforms"`
	FirstLogin   time.Time       `json:"firstLogin"`
	LastLogin    time.Time       `json:"lastLogin"`
	LoginCount   int64           `json:"loginCount" validate:"gte=0"`
	OnlineStatus string          `json:"onlineStatus" validate:"oneof=online offline"`
	Referrals    []user.Referral `json:"referrals"`
}

func newUserUpdateRequest(p *user.Profile, platform string) userUpdateRequest {
	req := userUpdateRequest{
		UserID:       p.ID,
		Username:     p.Username,
		PhotoURL:     p.PhotoURL,
		Platform:     platform,
		IsPremium:    p.IsPremium,
		Platforms:    orEmpty(p.PlatformsSeen),
		FirstLogin:   p.FirstLoginAt,
		LastLogin:    p.LastLoginAt,
		LoginCount:   p.LoginCount,
		OnlineStatus: firstNonEmpty(p.OnlineStatus, user.StatusOffline),
		Referrals:    p.Referrals,
	}
	if req.Referrals == nil {
		req.Referrals = []user.Referral{}
	}
	return req
}

type wireInventory struct {
	UserID                 flexString `json:"userId"`
	Coins                  flexInt    `json:"coins"`
	Stars                  flexInt    `json:"stars"`
	TelegramStars          flexInt    `json:"telegramStars"`
	TelegramStarsDonations flexInt    `json:"telegramStarsDonations"`
	LastCoinUpdate         flexTime   `json:"lastCoinUpdate"`
}

func (w *wireInventory) toDomain() inventory.Account {
	return inventory.Account{
		UserID:         firstString(w.UserID),
		Coins:          nonNegative(firstInt(w.Coins)),
		Stars:          nonNegative(firstInt(w.Stars)),
		TelegramStars:  nonNegative(firstInt(w.TelegramStars, w.TelegramStarsDonations)),
		LastCoinUpdate: w.LastCoinUpdate.V,
	}
}

// inventoryUpdateRequest is the body of POST /api/inventory/update.
type inventoryUpdateRequest struct {
	UserID         string     `json:"userId" validate:"required"`
	Coins          int64      `json:"coins" validate:"gte=0"`
	Stars          int64      `json:"stars" validate:"gte=0"`
	TelegramStars  int64      `json:"telegramStars" validate:"gte=0"`
	LastCoinUpdate *time.Time `json:"lastCoinUpdate,omitempty"`
}

func newInventoryUpdateRequest(acc *inventory.Account) inventoryUpdateRequest {
	req := inventoryUpdateRequest{
		UserID:        acc.UserID,
		Coins:         acc.Coins,
		Stars:         acc.Stars,
		TelegramStars: acc.TelegramStars,
	}
	if !acc.LastCoinUpdate.IsZero() {
		t := acc.LastCoinUpdate.UTC()
		req.LastCoinUpdate = &t
	}
	return req
}

type rateRequest struct {
	Rating int `json:"rating" validate:"min=1,max=5"`
}

type donateRequest struct {
	UserID string `json:"userId" validate:"required"`
	Stars  int    `json:"stars" validate:"min=1,max=10"`
}

// DonationResult is the backend answer to a star donation.
type DonationResult struct {
	Message      string `json:"message"`
	UpdatedStars int64  `json:"updatedStars"`
}

type wireDonation struct {
	Message      string  `json:"message"`
	UpdatedStars flexInt `json:"updatedStars"`
	Stars        flexInt `json:"telegramStars"`
}

type wireClicks struct {
	Clicks flexInt `json:"clicks"`
	Opens  flexInt `json:"opens"`
}

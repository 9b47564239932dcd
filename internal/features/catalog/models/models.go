package models

import "nebula-miniapp/internal/domain/catalog"

// Filter narrows a catalog listing. Empty fields and the All sentinel match everything.
type Filter struct {
	Kind     string `form:"kind" example:"games" enums:"all,games,apps"`
	Category string `form:"category" example:"Arcade"`
	Geo      string `form:"geo" example:"US"`
}

// ListResponse is a ranked catalog page.
// @Description Ranked catalog items after filtering
type ListResponse struct {
	Items    []catalog.Item `json:"items"`
	Total    int            `json:"total" example:"42"`
	Kind     string         `json:"kind" example:"all"`
	Category string         `json:"category" example:"All"`
	Geo      string         `json:"geo" example:"All"`
}

// CategoriesResponse lists filter options, each led by the All sentinel.
type CategoriesResponse struct {
	Categories []string `json:"categories" example:"All,Arcade,Puzzle"`
	Geos       []string `json:"geos" example:"All,US,DE"`
}

// DetailResponse is one item with its overall position and similar items.
type DetailResponse struct {
	Item     catalog.Item   `json:"item"`
	Position int            `json:"position" example:"3"`
	Similar  []catalog.Item `json:"similar"`
}

type RateRequest struct {
	Rating int `json:"rating" binding:"required,min=1,max=5" example:"5"`
}

type DonateRequest struct {
	Stars int `json:"stars" binding:"required,min=1,max=10" example:"5"`
}

type DonateResponse struct {
	Message      string `json:"message" example:"Thank you!"`
	UpdatedStars int64  `json:"updatedStars" example:"120"`
}

type ClickResponse struct {
	Clicks int64 `json:"clicks" example:"1024"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error" example:"Error message"`
}

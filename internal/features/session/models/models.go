package models

import (
	"time"

	"nebula-miniapp/internal/domain/catalog"
	"nebula-miniapp/internal/domain/inventory"
	"nebula-miniapp/internal/domain/user"
)

// BootstrapResponse is everything the web view needs on launch.
// @Description Initial profile, balance and ranked catalog
type BootstrapResponse struct {
	Guest     bool              `json:"guest" example:"false"`
	Platform  string            `json:"platform" example:"ios"`
	Profile   user.Profile      `json:"profile"`
	Inventory inventory.Account `json:"inventory"`
	Catalog   []catalog.Item    `json:"catalog"`
	Session   *SessionResponse  `json:"session,omitempty"`
	Error     string            `json:"error,omitempty" example:"backend unavailable"`
}

// SessionResponse describes the sync loop of the current user.
// @Description Merged balance and sync loop state
type SessionResponse struct {
	UserID     string            `json:"userId" example:"123456789"`
	Active     bool              `json:"active" example:"true"`
	State      string            `json:"state" example:"active" enums:"idle,active,error,terminated"`
	Generation uint64            `json:"generation" example:"3"`
	Inventory  inventory.Account `json:"inventory"`
	StartedAt  time.Time         `json:"startedAt"`
	LastSeen   time.Time         `json:"lastSeen"`
	LastSync   *time.Time        `json:"lastSync,omitempty"`
	LastError  string            `json:"lastError,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error" example:"Error message"`
}

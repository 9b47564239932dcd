package identity

import "nebula-miniapp/internal/domain/user"

// UnknownPlatform is reported when the web view does not tell us where it runs.
const UnknownPlatform = "unknown"

// Identity is what the Telegram bridge tells us about the current viewer.
type Identity struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photoUrl,omitempty"`
	Platform  string `json:"platform"`
	IsPremium bool   `json:"isPremium"`
}

// Guest returns the identity used when no Telegram user is available.
func Guest(platform string) Identity {
	if platform == "" {
		platform = UnknownPlatform
	}
	return Identity{UserID: user.GuestID, Username: "Guest", Platform: platform}
}

func (i Identity) IsGuest() bool {
	return i.UserID == "" || i.UserID == user.GuestID
}

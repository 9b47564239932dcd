package user

import (
	"sort"
	"time"
)

// GuestID is the identity used when Telegram provides no user.
const GuestID = "guest"

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Referral is a user invited by the profile owner.
type Referral struct {
	TelegramID string `json:"telegramId"`
	Username   string `json:"username"`
}

// Profile mirrors the backend user record for one Telegram identity.
type Profile struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	PhotoURL      string     `json:"photoUrl,omitempty"`
	IsPremium     bool       `json:"isPremium"`
	PlatformsSeen []string   `json:"platformsSeen"`
	FirstLoginAt  time.Time  `json:"firstLoginAt"`
	LastLoginAt   time.Time  `json:"lastLoginAt"`
	LoginCount    int64      `json:"loginCount"`
	OnlineStatus  string     `json:"onlineStatus"`
	Referrals     []Referral `json:"referrals"`
}

// Guest returns the placeholder profile shown when no identity is available.
func Guest() Profile {
	return Profile{
		ID:            GuestID,
		Username:      "Guest",
		PlatformsSeen: []string{},
		OnlineStatus:  StatusOffline,
		Referrals:     []Referral{},
	}
}

// IsGuest reports whether the profile belongs to the guest sentinel.
func (p *Profile) IsGuest() bool {
	return p.ID == "" || p.ID == GuestID
}

// RecordLogin applies an app-foreground event to the profile.
func (p *Profile) RecordLogin(platform string, now time.Time) {
	p.LoginCount++
	if p.FirstLoginAt.IsZero() {
		p.FirstLoginAt = now
	}
	p.LastLoginAt = now
	p.AddPlatform(platform)
	p.OnlineStatus = StatusOnline
}

// AddPlatform unions platform into PlatformsSeen, keeping it sorted.
func (p *Profile) AddPlatform(platform string) {
	if platform == "" {
		return
	}
	for _, seen := range p.PlatformsSeen {
		if seen == platform {
			return
		}
	}
	p.PlatformsSeen = append(p.PlatformsSeen, platform)
	sort.Strings(p.PlatformsSeen)
}

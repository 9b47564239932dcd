package inventory

import "time"

// Account tracks the currency balance of one user.
type Account struct {
	UserID         string    `json:"userId"`
	Coins          int64     `json:"coins"`
	Stars          int64     `json:"stars"`
	TelegramStars  int64     `json:"telegramStars"`
	LastCoinUpdate time.Time `json:"lastCoinUpdate"`
}

// Empty returns the zero balance used before the backend has answered.
func Empty(userID string) Account {
	return Account{UserID: userID}
}

// Merge folds a server copy into the local one. Coins never go down: a server
// value below the local one is ignored for coins but star balances and the
// accrual timestamp are still taken from the server.
func Merge(local, server Account) Account {
	merged := server
	if merged.UserID == "" {
		merged.UserID = local.UserID
	}
	if local.Coins > merged.Coins {
		merged.Coins = local.Coins
	}
	if merged.LastCoinUpdate.Before(local.LastCoinUpdate) {
		merged.LastCoinUpdate = local.LastCoinUpdate
	}
	return merged
}

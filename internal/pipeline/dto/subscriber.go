package dto

// UpdateWatchlistRequest replaces a subscriber's watchlist and tracked
// wallet set.
type UpdateWatchlistRequest struct {
	Watchlist      []string `json:"watchlist"`
	TrackedWallets []string `json:"tracked_wallets"`
}

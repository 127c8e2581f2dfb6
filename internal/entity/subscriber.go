package entity

import (
	"time"

	"github.com/lib/pq"
)

// Subscriber is a profile consuming the pipeline.
type Subscriber struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"not null" json:"name"`
	TelegramChatID int64          `json:"telegram_chat_id"`
	Watchlist      pq.StringArray `gorm:"type:text[]" json:"watchlist"`
	TrackedWallets pq.StringArray `gorm:"type:text[]" json:"tracked_wallets"`
	AlertThreshold float64        `gorm:"not null;default:0.55" json:"alert_threshold"`
	CooldownWindow time.Duration  `gorm:"-" json:"-"`
	CooldownSecs   int64          `gorm:"column:cooldown_seconds;default:3600" json:"cooldown_seconds"`
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the Subscriber model.
func (Subscriber) TableName() string {
	return "subscribers"
}

// Cooldown returns the per-subscriber dedup window, falling back to the
// persisted seconds column when the in-memory duration is unset.
func (s *Subscriber) Cooldown() time.Duration {
	if s.CooldownWindow > 0 {
		return s.CooldownWindow
	}
	if s.CooldownSecs > 0 {
		return time.Duration(s.CooldownSecs) * time.Second
	}
	return time.Hour
}

// WatchesEntity reports whether the entity is on the watchlist or in the
// tracked wallet set.
func (s *Subscriber) WatchesEntity(name string) bool {
	for _, symbol := range s.Watchlist {
		if symbol == name {
			return true
		}
	}
	for _, wallet := range s.TrackedWallets {
		if wallet == name {
			return true
		}
	}
	return false
}

// CategoryWeight is a per-subscriber multiplier learned from feedback,
// biasing relevance toward engaged categories. Mutated only through the
// personalization store.
type CategoryWeight struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubscriberID uint      `gorm:"not null;uniqueIndex:idx_subscriber_category" json:"subscriber_id"`
	Category     string    `gorm:"not null;uniqueIndex:idx_subscriber_category" json:"category"`
	Weight       float64   `gorm:"not null;default:1.0" json:"weight"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name for the CategoryWeight model.
func (CategoryWeight) TableName() string {
	return "category_weights"
}

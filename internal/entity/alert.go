package entity

import (
	"time"

	"github.com/lib/pq"
)

// AlertState tracks the decision lifecycle of a (subscriber, fingerprint) pair.
type AlertState string

const (
	AlertStateUnseen     AlertState = "unseen"
	AlertStateScored     AlertState = "scored"
	AlertStateSuppressed AlertState = "suppressed"
	AlertStateAlerted    AlertState = "alerted"
)

// Alert is the immutable decision artifact handed to delivery.
type Alert struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	SubscriberID       uint           `gorm:"not null;index" json:"subscriber_id"`
	EventFingerprint   string         `gorm:"not null;index" json:"event_fingerprint"`
	Title              string         `gorm:"not null" json:"title"`
	SourceType         SourceType     `gorm:"not null" json:"source_type"`
	ActionabilityIndex float64        `gorm:"not null" json:"actionability_index"`
	Confidence         float64        `gorm:"not null" json:"confidence"`
	Reasoning          pq.StringArray `gorm:"type:text[]" json:"reasoning"`
	SourceLinks        pq.StringArray `gorm:"type:text[]" json:"source_links"`
	IssuedAt           time.Time      `gorm:"not null" json:"issued_at"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the Alert model.
func (Alert) TableName() string {
	return "alerts"
}

package entity

import "time"

// FeedbackAction is a subscriber interaction with an emitted alert.
type FeedbackAction string

const (
	FeedbackActionClick   FeedbackAction = "click"
	FeedbackActionDismiss FeedbackAction = "dismiss"
	FeedbackActionIgnore  FeedbackAction = "ignore"
)

// Valid reports whether the action is one of the known values.
func (a FeedbackAction) Valid() bool {
	switch a {
	case FeedbackActionClick, FeedbackActionDismiss, FeedbackActionIgnore:
		return true
	}
	return false
}

// Feedback records one subscriber interaction against an alerted fingerprint.
type Feedback struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SubscriberID     uint           `gorm:"not null;index" json:"subscriber_id"`
	EventFingerprint string         `gorm:"not null" json:"event_fingerprint"`
	Action           FeedbackAction `gorm:"not null" json:"action"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the Feedback model.
func (Feedback) TableName() string {
	return "feedbacks"
}

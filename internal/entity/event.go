package entity

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// SourceType identifies the kind of ingestion source an event came from.
type SourceType string

const (
	SourceTypeOnChain SourceType = "on_chain"
	SourceTypeNews    SourceType = "news"
	SourceTypeSocial  SourceType = "social"
)

// Valid reports whether the source type is one of the known values.
func (s SourceType) Valid() bool {
	switch s {
	case SourceTypeOnChain, SourceTypeNews, SourceTypeSocial:
		return true
	}
	return false
}

// Event is the canonical unit of information produced by the normalizer.
// RawPayload keeps the original adapter record untouched for traceability.
type Event struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	SourceType     SourceType     `gorm:"not null;index" json:"source_type"`
	Timestamp      time.Time      `gorm:"not null" json:"timestamp"`
	Entities       pq.StringArray `gorm:"type:text[]" json:"entities"`
	Summary        string         `gorm:"not null" json:"summary"`
	RawPayload     datatypes.JSON `gorm:"type:jsonb" json:"raw_payload"`
	SentimentScore float64        `json:"sentiment_score"`
	MagnitudeScore float64        `json:"magnitude_score"`
	Credibility    float64        `json:"credibility"`
	Fingerprint    string         `gorm:"uniqueIndex;not null" json:"fingerprint"`
	SourceLinks    pq.StringArray `gorm:"type:text[]" json:"source_links"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for the Event model.
func (Event) TableName() string {
	return "events"
}

// EngagementScore reads the adapter-estimated engagement from the raw payload,
// defaulting to 0.5 when the adapter did not report one.
func (e *Event) EngagementScore() float64 {
	return e.payloadFloat("engagement_score", 0.5)
}

// VelocityChange reads the adapter-estimated velocity change from the raw
// payload, defaulting to 0.5 when the adapter did not report one.
func (e *Event) VelocityChange() float64 {
	return e.payloadFloat("velocity_change", 0.5)
}

func (e *Event) payloadFloat(key string, fallback float64) float64 {
	if len(e.RawPayload) == 0 {
		return fallback
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(e.RawPayload, &payload); err != nil {
		return fallback
	}
	if v, ok := payload[key].(float64); ok {
		return v
	}
	return fallback
}

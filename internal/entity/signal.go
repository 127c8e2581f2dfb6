package entity

// ScoredEvent is an Event plus subscriber-specific derived scores. It is
// ephemeral: recomputed per (event, subscriber) pair and never persisted
// independent of the alert decision.
type ScoredEvent struct {
	Event              *Event
	SubscriberID       uint
	Impact             float64
	Urgency            float64
	Relevance          float64
	Noise              float64
	ActionabilityIndex float64
	Confidence         float64
	Reasons            []string
	MatchedEntities    []string
}

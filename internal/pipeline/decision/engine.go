package decision

import (
	"context"
	"time"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/pkg/logger"
)

// Engine applies subscriber thresholds and dedup rules to scored events. Per
// (subscriber, fingerprint) pair the lifecycle is
// Unseen -> Scored -> {Suppressed | Alerted}; a new fingerprint re-enters at
// Unseen. At most one alert is issued per pair within the cooldown window,
// regardless of score recomputation.
type Engine struct {
	dedup  DedupStore
	logger *logger.Logger
	now    func() time.Time
}

// NewEngine creates an alert decision engine.
func NewEngine(dedup DedupStore, log *logger.Logger) *Engine {
	return &Engine{
		dedup:  dedup,
		logger: log,
		now:    time.Now,
	}
}

// Decide runs the Scored transition for one scored event. It returns the
// terminal state and, when the state is Alerted, the immutable Alert to hand
// to delivery. A dedup-store failure returns Scored with the error so the
// caller can retry the same raw record safely.
func (e *Engine) Decide(ctx context.Context, scored *entity.ScoredEvent, sub *entity.Subscriber) (entity.AlertState, *entity.Alert, error) {
	event := scored.Event

	// Zero interest overlap never alerts, independent of score or dedup state.
	if scored.Relevance <= 0 {
		return entity.AlertStateSuppressed, nil, nil
	}

	if scored.ActionabilityIndex < sub.AlertThreshold {
		e.logger.DebugContext(ctx, "Suppressed below threshold",
			logger.IntField("subscriber_id", int(sub.ID)),
			logger.StringField("fingerprint", event.Fingerprint),
			logger.Float64Field("index", scored.ActionabilityIndex),
		)
		return entity.AlertStateSuppressed, nil, nil
	}

	issued, err := e.dedup.MarkAlerted(ctx, sub.ID, event.Fingerprint, sub.Cooldown())
	if err != nil {
		return entity.AlertStateScored, nil, err
	}
	if !issued {
		e.logger.DebugContext(ctx, "Suppressed within cooldown",
			logger.IntField("subscriber_id", int(sub.ID)),
			logger.StringField("fingerprint", event.Fingerprint),
		)
		return entity.AlertStateSuppressed, nil, nil
	}

	alert := &entity.Alert{
		SubscriberID:       sub.ID,
		EventFingerprint:   event.Fingerprint,
		Title:              event.Summary,
		SourceType:         event.SourceType,
		ActionabilityIndex: scored.ActionabilityIndex,
		Confidence:         scored.Confidence,
		Reasoning:          scored.Reasons,
		SourceLinks:        event.SourceLinks,
		IssuedAt:           e.now().UTC(),
	}
	return entity.AlertStateAlerted, alert, nil
}

package scoring

import (
	"fmt"
	"strings"
	"time"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/config"
	"crypto-signal-agent/pkg/utils"
)

const maxReasonEntities = 3

// Scorer computes the deterministic actionability scores. Score is total and
// pure: identical (event, subscriber, weights, density, now) inputs always
// yield the identical ScoredEvent, which keeps the pipeline replayable.
type Scorer struct {
	cfg config.Scoring
	per config.Personalization
}

// New creates a Scorer from the configured scoring constants.
func New(cfg config.Scoring, per config.Personalization) *Scorer {
	return &Scorer{cfg: cfg, per: per}
}

// Score derives the four sub-scores and the composite actionability index for
// one (event, subscriber) pair. weights is the subscriber's committed
// category-weight snapshot; dupCount is the recent-event density observed for
// the event's fingerprint prefix.
func (s *Scorer) Score(event *entity.Event, sub *entity.Subscriber, weights map[string]float64, dupCount int, now time.Time) *entity.ScoredEvent {
	matched := matchedEntities(event, sub)

	impact := s.impact(event)
	urgency := s.urgency(event, now)
	relevance := s.relevance(event, matched, weights)
	noise := s.noise(event, dupCount)

	index := 0.0
	if relevance > 0 {
		index = utils.Clamp(impact*urgency*relevance/noise, 0, 1)
	}
	confidence := utils.Clamp(0.6*event.Credibility+0.4*(1-noise), 0, 1)

	return &entity.ScoredEvent{
		Event:              event,
		SubscriberID:       sub.ID,
		Impact:             impact,
		Urgency:            urgency,
		Relevance:          relevance,
		Noise:              noise,
		ActionabilityIndex: index,
		Confidence:         confidence,
		Reasons:            buildReasons(impact, urgency, relevance, noise, matched),
		MatchedEntities:    matched,
	}
}

// impact blends normalized event magnitude with source credibility.
func (s *Scorer) impact(event *entity.Event) float64 {
	return utils.Clamp(0.6*event.MagnitudeScore+0.4*event.Credibility, 0, 1)
}

// urgency decays hyperbolically with event age so it strictly decreases as
// the event gets older, blended with the adapter-reported velocity change.
func (s *Scorer) urgency(event *entity.Event, now time.Time) float64 {
	ageMinutes := now.Sub(event.Timestamp).Minutes()
	if ageMinutes < 0 {
		ageMinutes = 0
	}
	recency := 1 / (1 + ageMinutes/s.cfg.RecencyHalfLifeMinutes)
	velocity := utils.Clamp(event.VelocityChange(), 0, 1)
	return utils.Clamp(0.7*recency+0.3*velocity, 0, 1)
}

// relevance is zero when the event shares no entity with the subscriber's
// watchlist or tracked wallets; otherwise it is the matched proportion of the
// event's entities, scaled by the combined category weight.
func (s *Scorer) relevance(event *entity.Event, matched []string, weights map[string]float64) float64 {
	if len(matched) == 0 || len(event.Entities) == 0 {
		return 0
	}

	tokenMatches := 0
	walletMatches := 0
	for _, name := range matched {
		if strings.HasPrefix(name, "0x") {
			walletMatches++
		} else {
			tokenMatches++
		}
	}

	total := float64(len(event.Entities))
	base := 0.6*(float64(tokenMatches)/total) + 0.4*(float64(walletMatches)/total)
	return utils.Clamp(base*s.combinedWeight(event, matched, weights), 0, 1)
}

// noise estimates the duplicate/low-credibility probability from the
// adapter-reported engagement and the fingerprint-prefix density. It is never
// zero so the composite division stays defined.
func (s *Scorer) noise(event *entity.Event, dupCount int) float64 {
	lowEngagement := utils.Clamp(1-event.EngagementScore(), 0, 1)
	dupPenalty := 0.0
	if dupCount > s.cfg.NoiseDensityThreshold {
		dupPenalty = s.cfg.NoiseDuplicatePenalty
	}
	return utils.Clamp(0.3+0.5*lowEngagement+dupPenalty, 0.1, 1)
}

// combinedWeight folds the subscriber's learned category weights for the
// event's source type and matched entities into one bounded multiplier.
func (s *Scorer) combinedWeight(event *entity.Event, matched []string, weights map[string]float64) float64 {
	weight := lookupWeight(weights, string(event.SourceType))
	if len(matched) > 0 {
		sum := 0.0
		for _, name := range matched {
			sum += lookupWeight(weights, name)
		}
		weight *= sum / float64(len(matched))
	}
	return utils.Clamp(weight, s.per.MinWeight, s.per.MaxWeight)
}

func lookupWeight(weights map[string]float64, category string) float64 {
	if w, ok := weights[category]; ok && w > 0 {
		return w
	}
	return 1.0
}

func matchedEntities(event *entity.Event, sub *entity.Subscriber) []string {
	var matched []string
	for _, name := range event.Entities {
		if sub.WatchesEntity(name) {
			matched = append(matched, name)
		}
	}
	return matched
}

// buildReasons projects the already-computed sub-scores into the ordered
// human-readable justification attached to alerts. No extra inference runs
// here, so the narrative stays auditable.
func buildReasons(impact, urgency, relevance, noise float64, matched []string) []string {
	reasons := []string{
		fmt.Sprintf("impact=%.2f", impact),
		fmt.Sprintf("urgency=%.2f", urgency),
		fmt.Sprintf("relevance=%.2f", relevance),
		fmt.Sprintf("noise=%.2f", noise),
	}
	if len(matched) > 0 {
		top := matched
		if len(top) > maxReasonEntities {
			top = top[:maxReasonEntities]
		}
		reasons = append(reasons, fmt.Sprintf("matched entities: %s", strings.Join(top, ", ")))
	}
	return reasons
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/internal/pipeline/normalizer"
	"crypto-signal-agent/pkg/utils"
)

// ErrSourceUnavailable marks a source that could not be reached this poll
// cycle. The source is logged and skipped; the next cycle retries.
var ErrSourceUnavailable = errors.New("source unavailable")

// FetchProfile carries the interest sets the adapters query against. The
// pipeline builds it as the union of all active subscribers' watchlists and
// tracked wallets.
type FetchProfile struct {
	Watchlist      []string
	TrackedWallets []string
}

// Adapter produces raw records for one source per poll cycle. Adapters are
// independent producers: a failing adapter never blocks the others.
type Adapter interface {
	SourceType() entity.SourceType
	Fetch(ctx context.Context, profile FetchProfile, limit int) ([]dto.RawRecord, error)
}

var newsSourceCredibility = map[string]float64{
	"coindesk.com":      0.84,
	"cointelegraph.com": 0.78,
	"decrypt.co":        0.75,
}

var socialSourceCredibility = map[string]float64{
	"reddit.com":     0.52,
	"www.reddit.com": 0.52,
}

var impactKeywords = map[string]float64{
	"etf":         0.18,
	"approval":    0.12,
	"sec":         0.12,
	"hack":        0.2,
	"exploit":     0.2,
	"lawsuit":     0.14,
	"liquidation": 0.12,
	"whale":       0.11,
	"inflow":      0.1,
	"outflow":     0.1,
	"listing":     0.08,
	"delist":      0.12,
}

var positiveSentimentTerms = []string{
	"approval", "rally", "surge", "breakout", "partnership", "launch", "adoption",
}

var negativeSentimentTerms = []string{
	"hack", "exploit", "lawsuit", "ban", "liquidation", "breach", "fraud", "outflow",
}

// sentimentFromText derives a lexicon-based sentiment in [-1, 1] from the
// positive/negative hit delta.
func sentimentFromText(text string) float64 {
	lowered := strings.ToLower(text)
	positiveHits := 0
	for _, term := range positiveSentimentTerms {
		if strings.Contains(lowered, term) {
			positiveHits++
		}
	}
	negativeHits := 0
	for _, term := range negativeSentimentTerms {
		if strings.Contains(lowered, term) {
			negativeHits++
		}
	}
	if positiveHits == negativeHits {
		return 0
	}
	delta := float64(positiveHits - negativeHits)
	return utils.Clamp(delta/3, -1, 1)
}

// magnitudeFromText boosts the base magnitude for each impact keyword hit.
func magnitudeFromText(text string, base float64) float64 {
	lowered := strings.ToLower(text)
	score := base
	for keyword, weight := range impactKeywords {
		if strings.Contains(lowered, keyword) {
			score += weight
		}
	}
	return utils.Clamp(score, 0, 1)
}

func newsCredibility(source string) float64 {
	if source == "" {
		return 0.68
	}
	for domain, score := range newsSourceCredibility {
		if strings.Contains(source, domain) {
			return score
		}
	}
	return 0.68
}

func socialCredibility(source string) float64 {
	if score, ok := socialSourceCredibility[source]; ok {
		return score
	}
	return 0.5
}

func shortWallet(wallet string) string {
	if len(wallet) <= 12 {
		return wallet
	}
	return fmt.Sprintf("%s...%s", wallet[:6], wallet[len(wallet)-4:])
}

// sortNewestFirst orders records by their parsed timestamps, newest first, so
// per-source limits keep the freshest records. Unparsable timestamps sort last.
func sortNewestFirst(records []dto.RawRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return recordUnix(records[i]) > recordUnix(records[j])
	})
}

func recordUnix(record dto.RawRecord) int64 {
	ts, err := normalizer.ParseTimestamp(record["timestamp"])
	if err != nil {
		return 0
	}
	return ts.Unix()
}

func capRecords(records []dto.RawRecord, limit int) []dto.RawRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

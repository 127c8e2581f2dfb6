package normalizer

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/dto"
)

// ErrMalformedSourceRecord marks records that cannot be normalized. The record
// is dropped and the cycle continues.
var ErrMalformedSourceRecord = errors.New("malformed source record")

const maxSummaryLength = 280

var (
	tokenPattern  = regexp.MustCompile(`\b[A-Z]{2,6}\b`)
	walletPattern = regexp.MustCompile(`0x[a-fA-F0-9]{8,40}`)
)

// Normalizer converts adapter-specific raw records into canonical events.
// The transform is pure: identical input records always yield identical
// events, fingerprint included.
type Normalizer struct {
	knownSymbols       map[string]struct{}
	defaultCredibility map[entity.SourceType]float64
}

// New creates a Normalizer. knownSymbols is the deterministic symbol set used
// for entity extraction; defaultCredibility provides the per-source fallback
// when an adapter does not report credibility itself.
func New(knownSymbols []string, defaultCredibility map[entity.SourceType]float64) *Normalizer {
	symbols := make(map[string]struct{}, len(knownSymbols))
	for _, symbol := range knownSymbols {
		symbols[strings.ToUpper(symbol)] = struct{}{}
	}
	return &Normalizer{
		knownSymbols:       symbols,
		defaultCredibility: defaultCredibility,
	}
}

// Normalize converts one raw record into exactly one Event, or fails with
// ErrMalformedSourceRecord. Records without a parsable origination timestamp
// are rejected rather than defaulted to ingestion time, otherwise urgency
// scores would be wrong.
func (n *Normalizer) Normalize(sourceType entity.SourceType, record dto.RawRecord) (*entity.Event, error) {
	if !sourceType.Valid() {
		return nil, fmt.Errorf("%w: unknown source type %q", ErrMalformedSourceRecord, sourceType)
	}

	summary := strings.TrimSpace(record.String("summary", "title", "text"))
	if summary == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedSourceRecord)
	}
	summary = truncateSummary(summary, maxSummaryLength)

	timestamp, err := ParseTimestamp(record["timestamp"])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSourceRecord, err)
	}

	entities := record.Strings("entities")
	if len(entities) == 0 {
		entities = n.ExtractEntities(summary)
	}

	rawPayload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: unparsable payload: %v", ErrMalformedSourceRecord, err)
	}

	event := &entity.Event{
		SourceType:     sourceType,
		Timestamp:      timestamp,
		Entities:       entities,
		Summary:        summary,
		RawPayload:     rawPayload,
		SentimentScore: clampSigned(record.Float("sentiment_score", 0)),
		MagnitudeScore: clampUnit(record.Float("magnitude_score", 0.5)),
		Credibility:    clampUnit(record.Float("source_credibility", n.fallbackCredibility(sourceType))),
		SourceLinks:    record.Strings("source_links"),
	}
	event.Fingerprint = Fingerprint(sourceType, entities, timestamp, summary)
	return event, nil
}

// ExtractEntities performs the deterministic lookup extraction: uppercase
// ticker tokens and 0x-prefixed addresses found in the text, deduplicated and
// sorted. Uppercase tokens outside the known-symbol set are kept as free-text
// entities; lowercase mentions are recognized only for known symbols.
func (n *Normalizer) ExtractEntities(text string) []string {
	seen := make(map[string]struct{})
	for _, token := range tokenPattern.FindAllString(text, -1) {
		seen[token] = struct{}{}
	}
	for _, word := range strings.FieldsFunc(text, isWordSeparator) {
		upper := strings.ToUpper(word)
		if _, ok := n.knownSymbols[upper]; ok {
			seen[upper] = struct{}{}
		}
	}
	for _, wallet := range walletPattern.FindAllString(text, -1) {
		seen[wallet] = struct{}{}
	}

	entities := make([]string, 0, len(seen))
	for name := range seen {
		entities = append(entities, name)
	}
	sort.Strings(entities)
	return entities
}

func isWordSeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
}

// truncateSummary caps the summary at max bytes without splitting a multibyte
// rune, so the stored summary stays valid UTF-8.
func truncateSummary(summary string, max int) string {
	if len(summary) <= max {
		return summary
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(summary[cut]) {
		cut--
	}
	return summary[:cut]
}

// KnownSymbol reports whether the symbol belongs to the configured symbol set.
func (n *Normalizer) KnownSymbol(symbol string) bool {
	_, ok := n.knownSymbols[strings.ToUpper(symbol)]
	return ok
}

func (n *Normalizer) fallbackCredibility(sourceType entity.SourceType) float64 {
	if cred, ok := n.defaultCredibility[sourceType]; ok {
		return cred
	}
	return 0.5
}

// Fingerprint derives the content hash used for deduplication: sha1 over
// source type, sorted entities, the timestamp rounded to the minute, and the
// lowercased summary. Two adapters reporting the same occurrence converge on
// the same value.
func Fingerprint(sourceType entity.SourceType, entities []string, timestamp time.Time, summary string) string {
	sorted := append([]string(nil), entities...)
	sort.Strings(sorted)

	rounded := timestamp.UTC().Truncate(time.Minute).Unix()
	normalized := fmt.Sprintf("%s|%s|%d|%s",
		sourceType,
		strings.Join(sorted, "/"),
		rounded,
		strings.ToLower(strings.TrimSpace(summary)),
	)
	sum := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// ParseTimestamp normalizes the timestamp shapes the adapters produce to a
// UTC instant: unix seconds, unix milliseconds, RFC3339 and RFC1123 strings.
func ParseTimestamp(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), nil
	case int:
		return fromUnix(float64(v)), nil
	case int64:
		return fromUnix(float64(v)), nil
	case float64:
		return fromUnix(v), nil
	case string:
		return parseTimestampString(strings.TrimSpace(v))
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %v", value)
}

func parseTimestampString(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	if numeric, err := strconv.ParseFloat(raw, 64); err == nil {
		return fromUnix(numeric), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.RFC1123Z, time.RFC1123} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format %q", raw)
}

// Values above ten billion are treated as milliseconds.
func fromUnix(numeric float64) time.Time {
	if numeric > 10_000_000_000 {
		numeric = numeric / 1000
	}
	secs := int64(numeric)
	nanos := int64((numeric - float64(secs)) * float64(time.Second))
	return time.Unix(secs, nanos).UTC()
}

func clampUnit(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func clampSigned(value float64) float64 {
	if value < -1 {
		return -1
	}
	if value > 1 {
		return 1
	}
	return value
}

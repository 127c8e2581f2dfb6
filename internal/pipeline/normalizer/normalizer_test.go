package normalizer

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/dto"
)

func newTestNormalizer() *Normalizer {
	return New([]string{"BTC", "ETH", "SOL"}, map[entity.SourceType]float64{
		entity.SourceTypeOnChain: 0.9,
		entity.SourceTypeNews:    0.75,
		entity.SourceTypeSocial:  0.5,
	})
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer()
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	record := dto.RawRecord{
		"title":              "BTC breaks resistance after ETF approval",
		"timestamp":          ts.Format(time.RFC3339),
		"sentiment_score":    0.8,
		"magnitude_score":    0.7,
		"source_credibility": 0.84,
		"source_links":       []string{"https://example.com/btc"},
	}

	event, err := n.Normalize(entity.SourceTypeNews, record)
	require.NoError(t, err)

	assert.Equal(t, entity.SourceTypeNews, event.SourceType)
	assert.Equal(t, "BTC breaks resistance after ETF approval", event.Summary)
	assert.True(t, event.Timestamp.Equal(ts))
	assert.InDelta(t, 0.8, event.SentimentScore, 1e-9)
	assert.InDelta(t, 0.7, event.MagnitudeScore, 1e-9)
	assert.InDelta(t, 0.84, event.Credibility, 1e-9)
	assert.Contains(t, []string(event.Entities), "BTC")
	assert.NotEmpty(t, event.Fingerprint)
	assert.Equal(t, []string{"https://example.com/btc"}, []string(event.SourceLinks))
}

func TestNormalizeIsDeterministic(t *testing.T) {
	n := newTestNormalizer()
	record := dto.RawRecord{
		"summary":   "Whale moved 12000 ETH to exchange",
		"timestamp": "2025-03-14T09:26:53Z",
		"entities":  []string{"ETH", "0xdeadbeef01"},
	}

	first, err := n.Normalize(entity.SourceTypeOnChain, record)
	require.NoError(t, err)
	second, err := n.Normalize(entity.SourceTypeOnChain, record)
	require.NoError(t, err)

	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, first.Entities, second.Entities)
	assert.Equal(t, first.Summary, second.Summary)
}

func TestNormalizeMissingSummary(t *testing.T) {
	n := newTestNormalizer()
	_, err := n.Normalize(entity.SourceTypeNews, dto.RawRecord{
		"timestamp": "2025-03-14T09:26:53Z",
	})
	assert.ErrorIs(t, err, ErrMalformedSourceRecord)
}

func TestNormalizeMissingTimestamp(t *testing.T) {
	n := newTestNormalizer()
	_, err := n.Normalize(entity.SourceTypeNews, dto.RawRecord{
		"summary": "BTC rally continues",
	})
	assert.ErrorIs(t, err, ErrMalformedSourceRecord)
}

func TestNormalizeUnknownSourceType(t *testing.T) {
	n := newTestNormalizer()
	_, err := n.Normalize(entity.SourceType("webhooks"), dto.RawRecord{
		"summary":   "BTC rally continues",
		"timestamp": "2025-03-14T09:26:53Z",
	})
	assert.ErrorIs(t, err, ErrMalformedSourceRecord)
}

func TestNormalizeTruncatesLongSummary(t *testing.T) {
	n := newTestNormalizer()
	event, err := n.Normalize(entity.SourceTypeSocial, dto.RawRecord{
		"summary":   "BTC " + strings.Repeat("x", 400),
		"timestamp": "2025-03-14T09:26:53Z",
	})
	require.NoError(t, err)
	assert.Len(t, event.Summary, 280)
}

func TestNormalizeTruncationKeepsValidUTF8(t *testing.T) {
	n := newTestNormalizer()
	// The two-byte é spans the 280-byte cut; a byte-index slice would leave
	// an orphaned lead byte behind.
	event, err := n.Normalize(entity.SourceTypeSocial, dto.RawRecord{
		"summary":   strings.Repeat("a", 279) + "é BTC",
		"timestamp": "2025-03-14T09:26:53Z",
	})
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(event.Summary))
	assert.Equal(t, strings.Repeat("a", 279), event.Summary)
}

func TestNormalizeClampsScores(t *testing.T) {
	n := newTestNormalizer()
	event, err := n.Normalize(entity.SourceTypeSocial, dto.RawRecord{
		"summary":            "SOL pumping",
		"timestamp":          "2025-03-14T09:26:53Z",
		"sentiment_score":    3.5,
		"magnitude_score":    -2.0,
		"source_credibility": 1.7,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, event.SentimentScore, 1e-9)
	assert.InDelta(t, 0.0, event.MagnitudeScore, 1e-9)
	assert.InDelta(t, 1.0, event.Credibility, 1e-9)
}

func TestNormalizeFallbackCredibility(t *testing.T) {
	n := newTestNormalizer()
	event, err := n.Normalize(entity.SourceTypeSocial, dto.RawRecord{
		"summary":   "SOL chatter",
		"timestamp": "2025-03-14T09:26:53Z",
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, event.Credibility, 1e-9)
}

func TestExtractEntities(t *testing.T) {
	n := newTestNormalizer()

	entities := n.ExtractEntities("BTC and eth rally while 0xAbCdEf1234 accumulates SOL, btc again")
	assert.Equal(t, []string{"0xAbCdEf1234", "BTC", "ETH", "SOL"}, entities)
}

func TestExtractEntitiesEmpty(t *testing.T) {
	n := newTestNormalizer()
	assert.Empty(t, n.ExtractEntities("nothing of interest here"))
}

func TestFingerprintEntityOrderInsensitive(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	a := Fingerprint(entity.SourceTypeNews, []string{"BTC", "ETH"}, ts, "BTC and ETH rally")
	b := Fingerprint(entity.SourceTypeNews, []string{"ETH", "BTC"}, ts, "BTC and ETH rally")
	assert.Equal(t, a, b)
}

func TestFingerprintMinuteRounding(t *testing.T) {
	base := time.Date(2025, 3, 14, 9, 26, 5, 0, time.UTC)
	later := base.Add(40 * time.Second) // same minute
	nextMinute := base.Add(60 * time.Second)

	a := Fingerprint(entity.SourceTypeNews, []string{"BTC"}, base, "BTC rally")
	b := Fingerprint(entity.SourceTypeNews, []string{"BTC"}, later, "BTC rally")
	c := Fingerprint(entity.SourceTypeNews, []string{"BTC"}, nextMinute, "BTC rally")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestFingerprintSummaryCaseInsensitive(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)

	a := Fingerprint(entity.SourceTypeSocial, []string{"BTC"}, ts, "BTC Rally")
	b := Fingerprint(entity.SourceTypeSocial, []string{"BTC"}, ts, "btc rally")
	assert.Equal(t, a, b)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	cases := []struct {
		name  string
		value interface{}
	}{
		{"rfc3339", "2025-03-14T09:26:53Z"},
		{"unix seconds int", int64(want.Unix())},
		{"unix seconds float", float64(want.Unix())},
		{"unix millis", float64(want.UnixMilli())},
		{"numeric string", "1741944413"},
		{"time value", want},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTimestamp(tc.value)
			require.NoError(t, err)
			assert.Equal(t, want.Unix(), got.UTC().Unix())
		})
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	_, err := ParseTimestamp("not a time")
	assert.Error(t, err)

	_, err = ParseTimestamp(nil)
	assert.Error(t, err)
}

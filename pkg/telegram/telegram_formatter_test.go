package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatAlertForTelegram(t *testing.T) {
	message := FormatAlertForTelegram(AlertMessage{
		Title:       "BTC rally extends into the weekend",
		Score:       0.82,
		Confidence:  0.74,
		SourceType:  "news",
		Entities:    []string{"BTC"},
		Sentiment:   0.67,
		Reasons:     []string{"impact=0.82", "urgency=0.88"},
		SourceLinks: []string{"https://example.com/article"},
		IssuedAt:    time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	})

	assert.Contains(t, message, "Signal Alert")
	assert.Contains(t, message, "(news)")
	assert.Contains(t, message, "BTC rally extends into the weekend")
	assert.Contains(t, message, "Score: `0.82`")
	assert.Contains(t, message, "Confidence: `0.74`")
	assert.Contains(t, message, "Entities: `BTC`")
	assert.Contains(t, message, "Sentiment: `+0.67`")
	assert.Contains(t, message, "impact=0.82")
	assert.Contains(t, message, "[source](https://example.com/article)")
	assert.Contains(t, message, "Fri, 14 Mar 2025 10:00:00 UTC")
}

func TestFormatAlertForTelegramEscapesTitle(t *testing.T) {
	message := FormatAlertForTelegram(AlertMessage{
		Title:    "under_score *bold* [link",
		IssuedAt: time.Now(),
	})

	assert.Contains(t, message, `under\_score \*bold\* \[link`)
}

func TestFormatAlertForTelegramOmitsEmptySections(t *testing.T) {
	message := FormatAlertForTelegram(AlertMessage{
		Title:    "quiet alert",
		IssuedAt: time.Now(),
	})

	assert.NotContains(t, message, "Entities:")
	assert.NotContains(t, message, "Sentiment:")
	assert.NotContains(t, message, "Why this matters")
	assert.NotContains(t, message, "[source]")
}

package telegram

import (
	"fmt"
	"strings"
	"time"
)

// AlertMessage holds the fields rendered into a Telegram alert.
type AlertMessage struct {
	Title       string
	Score       float64
	Confidence  float64
	SourceType  string
	Entities    []string
	Sentiment   float64
	Reasons     []string
	SourceLinks []string
	IssuedAt    time.Time
}

// FormatAlertForTelegram renders an alert as Telegram markdown.
func FormatAlertForTelegram(a AlertMessage) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🚨 *Signal Alert* (%s)\n", a.SourceType))
	b.WriteString(fmt.Sprintf("*%s*\n\n", escapeMarkdown(a.Title)))
	b.WriteString(fmt.Sprintf("Score: `%.2f`  Confidence: `%.2f`\n", a.Score, a.Confidence))
	if len(a.Entities) > 0 {
		b.WriteString(fmt.Sprintf("Entities: `%s`\n", strings.Join(a.Entities, ", ")))
	}
	if a.Sentiment != 0 {
		b.WriteString(fmt.Sprintf("Sentiment: `%+.2f`\n", a.Sentiment))
	}

	if len(a.Reasons) > 0 {
		b.WriteString("\n*Why this matters*\n")
		for _, reason := range a.Reasons {
			b.WriteString(fmt.Sprintf("• %s\n", escapeMarkdown(reason)))
		}
	}

	for _, link := range a.SourceLinks {
		b.WriteString(fmt.Sprintf("\n[source](%s)", link))
	}

	b.WriteString(fmt.Sprintf("\n\n_%s_", a.IssuedAt.UTC().Format(time.RFC1123)))
	return b.String()
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")
	return replacer.Replace(text)
}

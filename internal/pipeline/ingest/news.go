package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/internal/pipeline/normalizer"
	"crypto-signal-agent/pkg/logger"
	"crypto-signal-agent/pkg/utils"
)

// NewsAdapter polls RSS/Atom feeds and turns entries into raw news records.
type NewsAdapter struct {
	feedURLs   []string
	parser     *gofeed.Parser
	normalizer *normalizer.Normalizer
	logger     *logger.Logger
}

// NewNewsAdapter creates a news adapter over the configured feed URLs.
func NewNewsAdapter(feedURLs []string, n *normalizer.Normalizer, log *logger.Logger) *NewsAdapter {
	parser := gofeed.NewParser()
	parser.UserAgent = "crypto-signal-agent/1.0"
	return &NewsAdapter{
		feedURLs:   feedURLs,
		parser:     parser,
		normalizer: n,
		logger:     log,
	}
}

// SourceType returns the source type this adapter produces.
func (a *NewsAdapter) SourceType() entity.SourceType {
	return entity.SourceTypeNews
}

// Fetch pulls every configured feed. Individual feed failures are logged and
// skipped; the adapter fails with ErrSourceUnavailable only when every feed
// was unreachable.
func (a *NewsAdapter) Fetch(ctx context.Context, profile FetchProfile, limit int) ([]dto.RawRecord, error) {
	type feedItem struct {
		item   *gofeed.Item
		source string
	}

	var items []feedItem
	failures := 0
	for _, feedURL := range a.feedURLs {
		feed, err := a.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			failures++
			a.logger.Warn("Failed to fetch news feed", logger.StringField("feed", feedURL), logger.ErrorField(err))
			continue
		}
		source := hostOf(feedURL)
		for _, item := range feed.Items {
			items = append(items, feedItem{item: item, source: source})
		}
	}
	if len(a.feedURLs) > 0 && failures == len(a.feedURLs) {
		return nil, fmt.Errorf("%w: all news feeds failed", ErrSourceUnavailable)
	}
	if len(items) == 0 {
		return nil, nil
	}

	// Mention spikes against the watchlist drive engagement and velocity.
	mentions := make(map[string]int)
	watched := make(map[string]struct{}, len(profile.Watchlist))
	for _, symbol := range profile.Watchlist {
		watched[strings.ToUpper(symbol)] = struct{}{}
	}
	for _, fi := range items {
		text := strings.ToUpper(itemText(fi.item))
		for symbol := range watched {
			if strings.Contains(text, symbol) {
				mentions[symbol]++
			}
		}
	}
	peakMentions := 1
	for _, count := range mentions {
		if count > peakMentions {
			peakMentions = count
		}
	}

	records := make([]dto.RawRecord, 0, len(items))
	for _, fi := range items {
		text := itemText(fi.item)
		entities := a.normalizer.ExtractEntities(text)

		mentionScore := 0
		for _, name := range entities {
			if _, ok := watched[name]; ok && mentions[name] > mentionScore {
				mentionScore = mentions[name]
			}
		}
		spikeRatio := 0.0
		if mentionScore > 0 {
			spikeRatio = float64(mentionScore) / float64(peakMentions)
		}

		records = append(records, dto.RawRecord{
			"timestamp":          itemTimestamp(fi.item),
			"title":              fi.item.Title,
			"summary":            fi.item.Title,
			"entities":           entities,
			"sentiment_score":    sentimentFromText(text),
			"magnitude_score":    magnitudeFromText(text, 0.5),
			"source_credibility": newsCredibility(fi.source),
			"engagement_score":   utils.Clamp(0.45+spikeRatio*0.45, 0, 1),
			"velocity_change":    utils.Clamp(0.35+spikeRatio*0.65, 0, 1),
			"source_links":       itemLinks(fi.item),
		})
	}

	sortNewestFirst(records)
	return capRecords(records, limit), nil
}

func itemText(item *gofeed.Item) string {
	return strings.TrimSpace(item.Title + " " + stripHTML(item.Description))
}

// stripHTML flattens feed descriptions that carry embedded markup.
func stripHTML(content string) string {
	if !strings.Contains(content, "<") {
		return content
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return strings.TrimSpace(doc.Text())
}

func itemTimestamp(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	return item.Published
}

func itemLinks(item *gofeed.Item) []string {
	if item.Link == "" {
		return nil
	}
	return []string{item.Link}
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

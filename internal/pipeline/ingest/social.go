package ingest

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mmcdole/gofeed"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/internal/pipeline/normalizer"
	"crypto-signal-agent/pkg/logger"
	"crypto-signal-agent/pkg/utils"
)

// SocialAdapter searches a social RSS endpoint (Reddit by default) for each
// watchlist term and turns matching posts into raw social records.
type SocialAdapter struct {
	searchTemplate string // fmt template with one %s for the escaped query
	maxTerms       int
	parser         *gofeed.Parser
	normalizer     *normalizer.Normalizer
	logger         *logger.Logger
}

// NewSocialAdapter creates a social adapter over the given search template.
func NewSocialAdapter(searchTemplate string, maxTerms int, n *normalizer.Normalizer, log *logger.Logger) *SocialAdapter {
	parser := gofeed.NewParser()
	parser.UserAgent = "crypto-signal-agent/1.0"
	return &SocialAdapter{
		searchTemplate: searchTemplate,
		maxTerms:       maxTerms,
		parser:         parser,
		normalizer:     n,
		logger:         log,
	}
}

// SourceType returns the source type this adapter produces.
func (a *SocialAdapter) SourceType() entity.SourceType {
	return entity.SourceTypeSocial
}

// Fetch searches once per tracked term, capped at maxTerms. Term frequency
// relative to the busiest term feeds engagement and velocity.
func (a *SocialAdapter) Fetch(ctx context.Context, profile FetchProfile, limit int) ([]dto.RawRecord, error) {
	terms := profile.Watchlist
	if len(terms) == 0 {
		return nil, nil
	}
	if a.maxTerms > 0 && len(terms) > a.maxTerms {
		terms = terms[:a.maxTerms]
	}

	type termItem struct {
		term   string
		item   *gofeed.Item
		source string
	}

	var items []termItem
	failures := 0
	for _, term := range terms {
		query := url.QueryEscape(term + " crypto")
		feedURL := fmt.Sprintf(a.searchTemplate, query)
		feed, err := a.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			failures++
			a.logger.Warn("Failed to fetch social search feed", logger.StringField("term", term), logger.ErrorField(err))
			continue
		}
		source := hostOf(feedURL)
		for _, item := range feed.Items {
			items = append(items, termItem{term: term, item: item, source: source})
		}
	}
	if failures == len(terms) {
		return nil, fmt.Errorf("%w: all social searches failed", ErrSourceUnavailable)
	}
	if len(items) == 0 {
		return nil, nil
	}

	termCounts := make(map[string]int)
	peak := 1
	for _, ti := range items {
		termCounts[ti.term]++
		if termCounts[ti.term] > peak {
			peak = termCounts[ti.term]
		}
	}

	records := make([]dto.RawRecord, 0, len(items))
	for _, ti := range items {
		text := itemText(ti.item)
		termRatio := float64(termCounts[ti.term]) / float64(peak)

		records = append(records, dto.RawRecord{
			"timestamp":          itemTimestamp(ti.item),
			"text":               ti.item.Title,
			"summary":            ti.item.Title,
			"entities":           a.normalizer.ExtractEntities(text),
			"sentiment_score":    sentimentFromText(text),
			"magnitude_score":    magnitudeFromText(text, 0.4+termRatio*0.2),
			"source_credibility": socialCredibility(ti.source),
			"engagement_score":   utils.Clamp(0.4+termRatio*0.5, 0, 1),
			"velocity_change":    utils.Clamp(0.45+termRatio*0.55, 0, 1),
			"source_links":       itemLinks(ti.item),
		})
	}

	sortNewestFirst(records)
	return capRecords(records, limit), nil
}

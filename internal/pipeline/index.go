package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/DeafMist/news-lake-pipeline/internal/models"
	"github.com/DeafMist/news-lake-pipeline/internal/processing"
)

const (
	keywordLimit     = 8
	keywordMinLength = 4
	defaultSource    = "bing"
)

func indexItems(ctx context.Context, idx NewsIndexer, items []map[string]any, file string) error {
	for _, item := range items {
		doc, ok := toNewsDocument(item, file)
		if !ok {
			continue
		}
		if err := idx.IndexNews(ctx, doc); err != nil {
			return fmt.Errorf("index %s from %s: %w", doc.ID, file, err)
		}
	}
	return nil
}

// toNewsDocument maps a cleaned news item onto the index document. Items
// with neither a title nor a URL are not indexable.
func toNewsDocument(item map[string]any, file string) (models.NewsDocument, bool) {
	title := stringField(item, "name")
	text := stringField(item, "description")
	url := stringField(item, "url")
	if title == "" && url == "" {
		return models.NewsDocument{}, false
	}

	ts := parseTimestamp(stringField(item, "datePublished"))
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	urls := make([]string, 0, 1)
	if url != "" {
		urls = append(urls, url)
	}
	for _, u := range processing.ExtractURLs(text) {
		if u != url {
			urls = append(urls, u)
		}
	}

	return models.NewsDocument{
		ID:        processing.BuildDocumentID(url, title),
		Title:     title,
		Text:      text,
		Timestamp: ts,
		Keywords:  processing.ExtractKeywords(title+" "+text, keywordLimit, keywordMinLength),
		Source:    providerName(item),
		URLs:      urls,
		File:      file,
	}, true
}

func stringField(item map[string]any, key string) string {
	s, _ := item[key].(string)
	return strings.TrimSpace(s)
}

func providerName(item map[string]any) string {
	providers, _ := item["provider"].([]any)
	for _, p := range providers {
		if obj, ok := p.(map[string]any); ok {
			if name := stringField(obj, "name"); name != "" {
				return name
			}
		}
	}
	return defaultSource
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}

	for _, f := range formats {
		if ts, err := time.Parse(f, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

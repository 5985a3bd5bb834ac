package models

import "time"

// NewsItem is a single search result as returned by the search API. Its
// fields are not interpreted by the pipeline.
type NewsItem map[string]any

// SearchQuery is built per request from the trigger's query parameters.
type SearchQuery struct {
	Term  string
	Count int
}

// NewsDocument represents the canonical structure stored in Elasticsearch.
type NewsDocument struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Keywords  []string  `json:"keywords"`
	Source    string    `json:"source"`
	URLs      []string  `json:"urls"`
	File      string    `json:"file"`
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/DeafMist/news-lake-pipeline/internal/config"
	"github.com/DeafMist/news-lake-pipeline/internal/events"
	"github.com/DeafMist/news-lake-pipeline/internal/models"
	"github.com/DeafMist/news-lake-pipeline/internal/naming"
	"github.com/DeafMist/news-lake-pipeline/internal/search"
)

const (
	DefaultTerm  = "ChatGPT"
	DefaultCount = 10
)

// QueryFromParams builds the search query from trigger parameters. The term
// comes from "name"; "search_term" is not read.
func QueryFromParams(v url.Values) models.SearchQuery {
	term := strings.TrimSpace(v.Get("name"))
	if term == "" {
		term = DefaultTerm
	}
	return models.SearchQuery{
		Term:  term,
		Count: clampInt(v.Get("count"), DefaultCount, search.MaxCount),
	}
}

func clampInt(raw string, fallback, max int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}

// SearchResult is what one search-and-store run produced.
type SearchResult struct {
	Filename string
	Items    int
	// Location is the blob URL, empty when nothing was uploaded.
	Location string
}

// SearchAndStore runs the HTTP-triggered stage.
type SearchAndStore struct {
	Log         *slog.Logger
	Credentials CredentialProvider
	Secrets     SecretStore
	Search      NewsSearcher
	Blobs       BlobUploader
	// Events is optional.
	Events EventPublisher

	// LoadConfig defaults to config.LoadSearch.
	LoadConfig func() (*config.Search, error)
	// NewToken defaults to naming.RandomToken.
	NewToken func() string
}

// Run searches for q and stores a non-empty result set as a blob. Every
// failure is returned to the caller.
func (s *SearchAndStore) Run(ctx context.Context, q models.SearchQuery) (SearchResult, error) {
	load := s.LoadConfig
	if load == nil {
		load = config.LoadSearch
	}
	cfg, err := load()
	if err != nil {
		return SearchResult{}, fmt.Errorf("load config: %w", err)
	}

	identity, err := s.Credentials.DefaultCredential()
	if err != nil {
		return SearchResult{}, fmt.Errorf("identity credential: %w", err)
	}

	key, err := s.Secrets.GetSecret(ctx, identity, cfg.KeyVaultName, cfg.SecretName)
	if err != nil {
		return SearchResult{}, fmt.Errorf("read search key: %w", err)
	}

	keyCred, err := s.Credentials.KeyCredential(key)
	if err != nil {
		return SearchResult{}, fmt.Errorf("search key credential: %w", err)
	}

	newToken := s.NewToken
	if newToken == nil {
		newToken = naming.RandomToken
	}
	res := SearchResult{Filename: naming.ResultFilename(q.Term, newToken())}

	items, err := s.Search.SearchNews(ctx, keyCred, cfg.SearchEndpoint, models.SearchQuery{
		Term:  naming.SanitizeTerm(q.Term),
		Count: q.Count,
	})
	if err != nil {
		return SearchResult{}, err
	}

	res.Items = len(items)
	if res.Items == 0 {
		s.Log.Info("no news found", slog.String("term", q.Term), slog.String("file", res.Filename))
		return res, nil
	}
	s.Log.Info("news item count", slog.Int("count", res.Items))

	payload, err := json.Marshal(items)
	if err != nil {
		return SearchResult{}, fmt.Errorf("encode results: %w", err)
	}

	res.Location, err = s.Blobs.UploadBlob(ctx, identity, cfg.BlobAccount, cfg.BlobContainer, res.Filename, payload)
	if err != nil {
		return SearchResult{}, err
	}
	s.Log.Info("news uploaded", slog.String("url", res.Location))

	if s.Events != nil {
		if err := s.Events.Publish(ctx, events.Event{
			Stage:    events.StageRawStored,
			File:     res.Filename,
			Location: res.Location,
			Items:    res.Items,
		}); err != nil {
			return SearchResult{}, err
		}
	}

	return res, nil
}

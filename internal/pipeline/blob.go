package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/DeafMist/news-lake-pipeline/internal/config"
	"github.com/DeafMist/news-lake-pipeline/internal/events"
	"github.com/DeafMist/news-lake-pipeline/internal/naming"
	"github.com/DeafMist/news-lake-pipeline/internal/processing"
)

var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// BlobResult is what one blob run produced.
type BlobResult struct {
	// Skipped is set when the blob could not be decoded and was dropped.
	Skipped  bool
	Filename string
	Location string
	Items    int
}

// BlobProcessor runs the blob-triggered stage.
type BlobProcessor struct {
	Log         *slog.Logger
	Credentials IdentityProvider
	Cleaner     DocumentCleaner
	DataLake    DataLakeUploader
	// Index and Events are optional.
	Index  NewsIndexer
	Events EventPublisher

	// LoadConfig defaults to config.LoadDataLake.
	LoadConfig func() *config.DataLake
}

// Process cleans the JSON blob at blobPath and writes it to the data lake.
// Content that is not UTF-8 JSON is logged and skipped with a nil error;
// every other failure is returned.
func (p *BlobProcessor) Process(ctx context.Context, blobPath string, content []byte) (BlobResult, error) {
	p.Log.Info("blob trigger function processed blob",
		slog.String("name", blobPath),
		slog.Int("size", len(content)),
	)

	doc, err := decodeJSON(content)
	if err != nil {
		p.Log.Error("error converting blob to a document",
			slog.String("name", blobPath),
			slog.Any("err", err),
		)
		return BlobResult{Skipped: true}, nil
	}

	load := p.LoadConfig
	if load == nil {
		load = config.LoadDataLake
	}
	cfg := load()

	cleaned, err := p.Cleaner.Clean(doc)
	if err != nil {
		return BlobResult{}, fmt.Errorf("clean %s: %w", blobPath, err)
	}

	payload, err := json.Marshal(cleaned)
	if err != nil {
		return BlobResult{}, fmt.Errorf("encode cleaned %s: %w", blobPath, err)
	}

	name, err := naming.ProcessedFilename(blobPath)
	if err != nil {
		return BlobResult{}, err
	}

	identity, err := p.Credentials.DefaultCredential()
	if err != nil {
		return BlobResult{}, fmt.Errorf("identity credential: %w", err)
	}

	location, err := p.DataLake.UploadFile(ctx, identity, cfg.Account, cfg.Container, cfg.Directory, name, payload)
	if err != nil {
		return BlobResult{}, err
	}
	p.Log.Info("successfully uploaded to data lake",
		slog.String("old", blobPath),
		slog.String("new", name),
	)

	res := BlobResult{Filename: name, Location: location}
	items := processing.NewsItems(cleaned)
	res.Items = len(items)

	if p.Index != nil {
		if err := indexItems(ctx, p.Index, items, name); err != nil {
			return BlobResult{}, err
		}
	}

	if p.Events != nil {
		if err := p.Events.Publish(ctx, events.Event{
			Stage:    events.StageProcessed,
			File:     name,
			Location: location,
			Items:    res.Items,
		}); err != nil {
			return BlobResult{}, err
		}
	}

	return res, nil
}

func decodeJSON(content []byte) (any, error) {
	if !utf8.Valid(content) {
		return nil, errInvalidUTF8
	}
	var doc any
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

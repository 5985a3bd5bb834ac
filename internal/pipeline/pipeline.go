// Package pipeline implements the two function bodies: search-and-store and
// the blob-triggered cleaner. Every collaborator is an interface so a run is
// fully described by its inputs; nothing is kept between invocations.
package pipeline

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"

	"github.com/DeafMist/news-lake-pipeline/internal/events"
	"github.com/DeafMist/news-lake-pipeline/internal/models"
)

// Function names as registered with the host.
const (
	SearchFunction = "SearchAndSaveResultToStorage"
	BlobFunction   = "BlobTrigger"
)

// IdentityProvider returns the ambient identity credential.
type IdentityProvider interface {
	DefaultCredential() (azcore.TokenCredential, error)
}

// CredentialProvider also wraps API keys.
type CredentialProvider interface {
	IdentityProvider
	KeyCredential(key string) (*azcore.KeyCredential, error)
}

type SecretStore interface {
	GetSecret(ctx context.Context, cred azcore.TokenCredential, vaultName, secretName string) (string, error)
}

type NewsSearcher interface {
	SearchNews(ctx context.Context, cred *azcore.KeyCredential, endpoint string, q models.SearchQuery) ([]models.NewsItem, error)
}

type BlobUploader interface {
	UploadBlob(ctx context.Context, cred azcore.TokenCredential, account, container, name string, payload []byte) (string, error)
}

type DataLakeUploader interface {
	UploadFile(ctx context.Context, cred azcore.TokenCredential, account, fileSystem, directory, name string, payload []byte) (string, error)
}

type DocumentCleaner interface {
	Clean(doc any) (any, error)
}

// NewsIndexer is the optional search index sink.
type NewsIndexer interface {
	IndexNews(ctx context.Context, doc models.NewsDocument) error
}

// EventPublisher is the optional stage notifier.
type EventPublisher interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Package storage uploads pipeline output to Azure Blob Storage and Azure
// Data Lake Storage Gen2.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
)

const jsonContentType = "application/json"

// BlobServiceURL returns the blob endpoint of a storage account.
func BlobServiceURL(account string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net/", strings.TrimSpace(account))
}

// Blob writes block blobs. A client is built for every call from the
// caller's credential.
type Blob struct {
	Options *azblob.ClientOptions
}

// UploadBlob stores payload as container/name, overwriting any existing
// blob, and returns the blob URL.
func (b Blob) UploadBlob(ctx context.Context, cred azcore.TokenCredential, account, container, name string, payload []byte) (string, error) {
	if err := requireNames(map[string]string{"account": account, "container": container, "blob": name}); err != nil {
		return "", fmt.Errorf("blob upload: %w", err)
	}

	client, err := azblob.NewClient(BlobServiceURL(account), cred, b.Options)
	if err != nil {
		return "", fmt.Errorf("blob client: %w", err)
	}

	bb := client.ServiceClient().NewContainerClient(container).NewBlockBlobClient(name)
	_, err = bb.UploadBuffer(ctx, payload, &blockblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr(jsonContentType)},
	})
	if err != nil {
		return "", fmt.Errorf("upload blob %s/%s: %w", container, name, err)
	}
	return bb.URL(), nil
}

func requireNames(fields map[string]string) error {
	var errs []error
	for _, field := range []string{"account", "container", "directory", "blob", "file"} {
		v, ok := fields[field]
		if ok && strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s name is empty", field))
		}
	}
	return errors.Join(errs...)
}

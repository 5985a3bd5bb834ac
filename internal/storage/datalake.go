package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/file"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azdatalake/service"
)

// DFSServiceURL returns the Data Lake endpoint of a storage account.
func DFSServiceURL(account string) string {
	return fmt.Sprintf("https://%s.dfs.core.windows.net/", strings.TrimSpace(account))
}

// FilePath joins a directory and file name into a file system path.
func FilePath(directory, name string) string {
	return path.Join(strings.Trim(directory, "/"), name)
}

// DataLake writes files into a hierarchical namespace file system.
type DataLake struct {
	Options *service.ClientOptions
}

// UploadFile creates (or truncates) fileSystem/directory/name, writes payload
// and returns the file URL. Empty account, file system or directory names
// fail here rather than when the configuration is read.
func (d DataLake) UploadFile(ctx context.Context, cred azcore.TokenCredential, account, fileSystem, directory, name string, payload []byte) (string, error) {
	if err := requireNames(map[string]string{"account": account, "container": fileSystem, "directory": directory, "file": name}); err != nil {
		return "", fmt.Errorf("data lake upload: %w", err)
	}

	// service.NewClient appends to the options' per-call policies.
	var opts *service.ClientOptions
	if d.Options != nil {
		o := *d.Options
		opts = &o
	}
	client, err := service.NewClient(DFSServiceURL(account), cred, opts)
	if err != nil {
		return "", fmt.Errorf("data lake client: %w", err)
	}

	target := FilePath(directory, name)
	fc := client.NewFileSystemClient(fileSystem).NewFileClient(target)
	headers := &file.HTTPHeaders{ContentType: to.Ptr(jsonContentType)}

	if _, err := fc.Create(ctx, &file.CreateOptions{HTTPHeaders: headers}); err != nil {
		return "", fmt.Errorf("create file %s/%s: %w", fileSystem, target, err)
	}
	// Flush rewrites the content headers, so they are sent again.
	if err := fc.UploadBuffer(ctx, payload, &file.UploadBufferOptions{HTTPHeaders: headers}); err != nil {
		return "", fmt.Errorf("write file %s/%s: %w", fileSystem, target, err)
	}
	return fc.DFSURL(), nil
}

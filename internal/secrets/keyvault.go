package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// KeyVault reads secrets from Azure Key Vault. It holds no state; a client
// is built for every call from the caller's credential.
type KeyVault struct {
	// Options is passed to azsecrets.NewClient. Nil uses SDK defaults.
	Options *azsecrets.ClientOptions
}

// VaultURL returns the data-plane URL of the named vault.
func VaultURL(vaultName string) string {
	return fmt.Sprintf("https://%s.vault.azure.net", strings.TrimSpace(vaultName))
}

// GetSecret returns the latest version of secretName in vaultName.
func (k KeyVault) GetSecret(ctx context.Context, cred azcore.TokenCredential, vaultName, secretName string) (string, error) {
	client, err := azsecrets.NewClient(VaultURL(vaultName), cred, k.Options)
	if err != nil {
		return "", fmt.Errorf("azure key vault client: %w", err)
	}

	resp, err := client.GetSecret(ctx, secretName, "", nil)
	if err != nil {
		return "", fmt.Errorf("azure key vault get %q: %w", secretName, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("azure key vault %q: nil value", secretName)
	}
	return *resp.Value, nil
}

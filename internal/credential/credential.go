// Package credential resolves the identity used to reach Azure services and
// wraps API keys for services that authenticate with a key header.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// ErrNoCredential is returned when no source in a Chain could issue a token.
var ErrNoCredential = errors.New("no credential source succeeded")

// Source names.
const (
	SourceDefault         = "default"
	SourceEnvironment     = "environment"
	SourceManagedIdentity = "managed_identity"
	SourceAzureCLI        = "azure_cli"
)

// Source is one place an identity can come from.
type Source interface {
	Name() string
	// Credential constructs the source's credential. An error means the
	// source is not configured in this environment.
	Credential() (azcore.TokenCredential, error)
}

// Chain is an ordered azidentity.ChainedTokenCredential over the sources
// that could be constructed. Once a source issues a token it is reused.
type Chain struct {
	chain *azidentity.ChainedTokenCredential
	// setup holds the construction errors of skipped sources.
	setup []error
}

var _ azcore.TokenCredential = (*Chain)(nil)

// NewChain builds a Chain over sources. Sources whose credential cannot be
// constructed are skipped; if none remain, ErrNoCredential is returned.
func NewChain(sources ...Source) (*Chain, error) {
	var (
		creds []azcore.TokenCredential
		setup []error
	)
	for _, src := range sources {
		cred, err := src.Credential()
		if err != nil {
			setup = append(setup, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		creds = append(creds, cred)
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoCredential, errors.Join(append(setup, errors.New("chain has no usable sources"))...))
	}

	chain, err := azidentity.NewChainedTokenCredential(creds, nil)
	if err != nil {
		return nil, fmt.Errorf("build credential chain: %w", err)
	}
	return &Chain{chain: chain, setup: setup}, nil
}

// GetToken implements azcore.TokenCredential.
func (c *Chain) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	tok, err := c.chain.GetToken(ctx, opts)
	if err == nil {
		return tok, nil
	}
	if ctx.Err() != nil {
		return azcore.AccessToken{}, ctx.Err()
	}
	errs := append(append([]error(nil), c.setup...), err)
	return azcore.AccessToken{}, fmt.Errorf("%w: %w", ErrNoCredential, errors.Join(errs...))
}

type sourceFunc struct {
	name string
	fn   func() (azcore.TokenCredential, error)
}

func (s sourceFunc) Name() string                                { return s.name }
func (s sourceFunc) Credential() (azcore.TokenCredential, error) { return s.fn() }

// DefaultSource is azidentity's DefaultAzureCredential: environment,
// workload identity, managed identity (AZURE_CLIENT_ID selects a
// user-assigned one), then the developer CLIs. AZURE_TOKEN_CREDENTIALS
// narrows it.
func DefaultSource() Source {
	return sourceFunc{name: SourceDefault, fn: func() (azcore.TokenCredential, error) {
		return azidentity.NewDefaultAzureCredential(nil)
	}}
}

// EnvironmentSource reads a service principal from AZURE_TENANT_ID,
// AZURE_CLIENT_ID and AZURE_CLIENT_SECRET (or certificate) variables.
func EnvironmentSource() Source {
	return sourceFunc{name: SourceEnvironment, fn: func() (azcore.TokenCredential, error) {
		return azidentity.NewEnvironmentCredential(nil)
	}}
}

// ManagedIdentitySource uses the Function App's managed identity. A
// non-empty clientID selects a user-assigned identity. Unlike DefaultSource
// it does not probe IMDS first, so off Azure it fails only after IMDS
// retries.
func ManagedIdentitySource(clientID string) Source {
	return sourceFunc{name: SourceManagedIdentity, fn: func() (azcore.TokenCredential, error) {
		opts := &azidentity.ManagedIdentityCredentialOptions{}
		if clientID != "" {
			opts.ID = azidentity.ClientID(clientID)
		}
		return azidentity.NewManagedIdentityCredential(opts)
	}}
}

// CLISource uses the developer's `az login` session.
func CLISource() Source {
	return sourceFunc{name: SourceAzureCLI, fn: func() (azcore.TokenCredential, error) {
		return azidentity.NewAzureCLICredential(nil)
	}}
}

// SourcesByName resolves source names in order.
func SourcesByName(names []string, managedIdentityClientID string) ([]Source, error) {
	sources := make([]Source, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case SourceDefault:
			sources = append(sources, DefaultSource())
		case SourceEnvironment:
			sources = append(sources, EnvironmentSource())
		case SourceManagedIdentity:
			sources = append(sources, ManagedIdentitySource(managedIdentityClientID))
		case SourceAzureCLI:
			sources = append(sources, CLISource())
		default:
			return nil, fmt.Errorf("unknown credential source %q", name)
		}
	}
	return sources, nil
}

// Provider hands out the two credential kinds the pipeline needs.
type Provider struct {
	// ManagedIdentityClientID selects a user-assigned identity for an
	// explicit managed_identity source.
	ManagedIdentityClientID string
	// Sources names an explicit chain. Empty means DefaultSource alone.
	Sources []string
}

// DefaultCredential returns a fresh ambient identity chain.
func (p Provider) DefaultCredential() (azcore.TokenCredential, error) {
	sources := []Source{DefaultSource()}
	if len(p.Sources) > 0 {
		var err error
		if sources, err = SourcesByName(p.Sources, p.ManagedIdentityClientID); err != nil {
			return nil, err
		}
	}

	chain, err := NewChain(sources...)
	if err != nil {
		return nil, err
	}
	return chain, nil
}

// KeyCredential wraps an API key.
func (Provider) KeyCredential(key string) (*azcore.KeyCredential, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("api key is empty")
	}
	return azcore.NewKeyCredential(key), nil
}

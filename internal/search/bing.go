// Package search queries the Bing News Search API.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/DeafMist/news-lake-pipeline/internal/models"
)

const (
	moduleName    = "newssearch"
	moduleVersion = "v1.0.0"
	keyHeader     = "Ocp-Apim-Subscription-Key"
	newsPath      = "/v7.0/news/search"

	// MaxCount is the largest page the news endpoint returns.
	MaxCount = 100
)

// Bing calls the news search endpoint through an azcore pipeline that
// attaches the subscription key.
type Bing struct {
	// Market is sent as mkt. Defaults to en-US.
	Market string
	// ClientOptions configures the pipeline transport and retry policy.
	ClientOptions *policy.ClientOptions
	// AllowHTTP permits sending the key to a plain-HTTP endpoint.
	AllowHTTP bool
}

type newsResponse struct {
	Value []models.NewsItem `json:"value"`
}

// NewsURL resolves the news search URL from a configured endpoint, which
// may be the service root or the full news path.
func NewsURL(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", errors.New("search endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid search endpoint %q", endpoint)
	}

	path := strings.TrimRight(u.Path, "/")
	if !strings.HasSuffix(path, "/news/search") {
		path += newsPath
	}
	u.Path = path
	u.RawQuery = ""
	return u.String(), nil
}

// SearchNews returns the news items matching q.Term, at most q.Count.
func (b Bing) SearchNews(ctx context.Context, cred *azcore.KeyCredential, endpoint string, q models.SearchQuery) ([]models.NewsItem, error) {
	if cred == nil {
		return nil, errors.New("search: key credential is nil")
	}
	target, err := NewsURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	keyPolicy := runtime.NewKeyCredentialPolicy(cred, keyHeader, &runtime.KeyCredentialPolicyOptions{
		InsecureAllowCredentialWithHTTP: b.AllowHTTP,
	})
	pl := runtime.NewPipeline(moduleName, moduleVersion, runtime.PipelineOptions{
		PerCall: []policy.Policy{keyPolicy},
	}, b.ClientOptions)

	req, err := runtime.NewRequest(ctx, http.MethodGet, target)
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}

	market := b.Market
	if market == "" {
		market = "en-US"
	}
	params := url.Values{}
	params.Set("q", q.Term)
	params.Set("count", strconv.Itoa(q.Count))
	params.Set("mkt", market)
	req.Raw().URL.RawQuery = params.Encode()
	req.Raw().Header.Set("Accept", "application/json")

	resp, err := pl.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", q.Term, err)
	}
	if !runtime.HasStatusCode(resp, http.StatusOK) {
		return nil, fmt.Errorf("search %q: %w", q.Term, runtime.NewResponseError(resp))
	}

	var parsed newsResponse
	if err := runtime.UnmarshalAsJSON(resp, &parsed); err != nil {
		return nil, fmt.Errorf("search %q: decode response: %w", q.Term, err)
	}
	return parsed.Value, nil
}

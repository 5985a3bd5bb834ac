package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-lake-pipeline/internal/config"
	"github.com/DeafMist/news-lake-pipeline/internal/logger"
	"github.com/DeafMist/news-lake-pipeline/internal/metrics"
	"github.com/DeafMist/news-lake-pipeline/internal/models"
	"github.com/DeafMist/news-lake-pipeline/internal/pipeline"
	"github.com/DeafMist/news-lake-pipeline/internal/processing"
)

type staticToken struct{}

func (staticToken) GetToken(context.Context, policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "t"}, nil
}

type stubCreds struct{}

func (stubCreds) DefaultCredential() (azcore.TokenCredential, error) { return staticToken{}, nil }
func (stubCreds) KeyCredential(key string) (*azcore.KeyCredential, error) {
	return azcore.NewKeyCredential(key), nil
}

type stubSecrets struct{}

func (stubSecrets) GetSecret(context.Context, azcore.TokenCredential, string, string) (string, error) {
	return "key", nil
}

type stubSearch struct {
	items []models.NewsItem
	err   error
	query models.SearchQuery
}

func (s *stubSearch) SearchNews(_ context.Context, _ *azcore.KeyCredential, _ string, q models.SearchQuery) ([]models.NewsItem, error) {
	s.query = q
	return s.items, s.err
}

type stubBlobs struct{ names []string }

func (s *stubBlobs) UploadBlob(_ context.Context, _ azcore.TokenCredential, _, _, name string, _ []byte) (string, error) {
	s.names = append(s.names, name)
	return "https://rawnews.blob.core.windows.net/c/" + name, nil
}

type stubLake struct {
	names    []string
	payloads []string
	err      error
}

func (s *stubLake) UploadFile(_ context.Context, _ azcore.TokenCredential, _, _, _, name string, payload []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.names = append(s.names, name)
	s.payloads = append(s.payloads, string(payload))
	return "https://lake.dfs.core.windows.net/news/cleaned/" + name, nil
}

type fixture struct {
	srv    *server
	search *stubSearch
	blobs  *stubBlobs
	lake   *stubLake
}

func newFixture() *fixture {
	f := &fixture{search: &stubSearch{}, blobs: &stubBlobs{}, lake: &stubLake{}}
	f.srv = &server{
		log:     logger.Discard(),
		metrics: metrics.New(),
		search: &pipeline.SearchAndStore{
			Log:         logger.Discard(),
			Credentials: stubCreds{},
			Secrets:     stubSecrets{},
			Search:      f.search,
			Blobs:       f.blobs,
			LoadConfig: func() (*config.Search, error) {
				return &config.Search{KeyVaultName: "kv", SecretName: "s", SearchEndpoint: "https://bing", BlobAccount: "rawnews", BlobContainer: "c"}, nil
			},
			NewToken: func() string { return "0a1b2c3d" },
		},
		blobs: &pipeline.BlobProcessor{
			Log:         logger.Discard(),
			Credentials: stubCreds{},
			Cleaner:     processing.NewCleaner(),
			DataLake:    f.lake,
			LoadConfig: func() *config.DataLake {
				return &config.DataLake{Account: "lake", Container: "news", Directory: "cleaned"}
			},
		},
	}
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.srv.routes().ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func blobInvocation(t *testing.T, path, content string) string {
	t.Helper()
	name := path[strings.LastIndex(path, "/")+1:]
	payload := map[string]any{
		"Data": map[string]any{"myblob": content},
		"Metadata": map[string]any{
			"BlobTrigger": path,
			"name":        name,
			"Uri":         "https://rawnews.blob.core.windows.net/" + path,
		},
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(b)
}

func TestSearchEndpointReturnsFilename(t *testing.T) {
	f := newFixture()
	f.search.items = []models.NewsItem{{"name": "a"}, {"name": "b"}, {"name": "c"}}

	rec := f.do(http.MethodGet, "/api/Hello?name=AI&count=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "search_results_AI_0a1b2c3d.json", rec.Body.String())
	require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, models.SearchQuery{Term: "AI", Count: 5}, f.search.query)
	require.Equal(t, []string{"search_results_AI_0a1b2c3d.json"}, f.blobs.names)
}

func TestSearchRouteMatchesBinding(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join(pipeline.SearchFunction, "function.json"))
	require.NoError(t, err)

	var fn struct {
		Bindings []struct {
			Type  string `json:"type"`
			Route string `json:"route"`
		} `json:"bindings"`
	}
	require.NoError(t, json.Unmarshal(raw, &fn))
	require.NotEmpty(t, fn.Bindings)
	require.Equal(t, "httpTrigger", fn.Bindings[0].Type)
	require.Equal(t, searchRoute, fn.Bindings[0].Route)

	f := newFixture()
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/"+searchRoute, "").Code)
	require.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/api/"+pipeline.SearchFunction, "").Code)
}

func TestSearchEndpointAcceptsPost(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/api/Hello", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "search_results_ChatGPT_0a1b2c3d.json", rec.Body.String())
	require.Empty(t, f.blobs.names)
}

func TestSearchEndpointFailure(t *testing.T) {
	f := newFixture()
	f.search.err = errors.New("quota exceeded")

	rec := f.do(http.MethodGet, "/api/Hello?name=AI", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "quota exceeded")
}

func TestBlobInvocationUploads(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/BlobTrigger", blobInvocation(t, "samples-workitems/search_results_AI_ab12.json", `{"a":1}`))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp invocationResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Logs, 1)
	assert.Contains(t, resp.Logs[0], "processed_search_results_AI_ab12.json")

	require.Equal(t, []string{"processed_search_results_AI_ab12.json"}, f.lake.names)
	require.JSONEq(t, `{"a":1}`, f.lake.payloads[0])
}

func TestBlobInvocationSkipsMalformed(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/BlobTrigger", blobInvocation(t, "samples-workitems/bad.json", "not json"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "skipped")
	require.Empty(t, f.lake.names)
}

func TestBlobInvocationFailure(t *testing.T) {
	f := newFixture()
	f.lake.err = errors.New("filesystem not found")

	rec := f.do(http.MethodPost, "/BlobTrigger", blobInvocation(t, "samples-workitems/a.json", `[]`))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "filesystem not found")
}

func TestBlobInvocationBadPayload(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/BlobTrigger", "{")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/BlobTrigger", `{"Data":{},"Metadata":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBlobPath(t *testing.T) {
	tests := []struct {
		name string
		meta string
		want string
	}{
		{name: "blob trigger", meta: `{"BlobTrigger":"samples-workitems/a.json","name":"a.json"}`, want: "samples-workitems/a.json"},
		{name: "double encoded", meta: `{"BlobTrigger":"\"samples-workitems/a.json\""}`, want: "samples-workitems/a.json"},
		{name: "uri fallback", meta: `{"Uri":"https://acct.blob.core.windows.net/samples-workitems/my%20file.json"}`, want: "samples-workitems/my file.json"},
		{name: "name only", meta: `{"name":"a.json"}`, want: "a.json"},
		{name: "empty", meta: `{}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var meta map[string]json.RawMessage
			require.NoError(t, json.Unmarshal([]byte(tt.meta), &meta))
			require.Equal(t, tt.want, blobPath(meta))
		})
	}
}

func TestBindingContent(t *testing.T) {
	b, err := bindingContent(json.RawMessage(`"{\"a\":1}"`))
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(b))

	b, err = bindingContent(json.RawMessage(`[1,2]`))
	require.NoError(t, err)
	require.Equal(t, `[1,2]`, string(b))

	_, err = bindingContent(nil)
	require.Error(t, err)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture()
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "").Code)

	f.srv.health = func(context.Context) error { return errors.New("red") }
	require.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/health", "").Code)

	f.do(http.MethodPost, "/BlobTrigger", blobInvocation(t, "samples-workitems/bad.json", "not json"))
	rec := f.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `pipeline_invocations_total{function="BlobTrigger",outcome="skipped"} 1`)
}

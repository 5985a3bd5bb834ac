package elasticsearch_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/news-lake-pipeline/internal/elasticsearch"
	"github.com/DeafMist/news-lake-pipeline/internal/models"
)

func esServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIndexNews(t *testing.T) {
	var got models.NewsDocument
	srv := esServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/news/_doc/abc", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	client, err := elasticsearch.New(srv.URL, "news", nil)
	require.NoError(t, err)

	doc := models.NewsDocument{
		ID:        "abc",
		Title:     "Chips",
		Timestamp: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
		File:      "processed_a.json",
	}
	require.NoError(t, client.IndexNews(context.Background(), doc))
	require.Equal(t, "Chips", got.Title)
	require.Equal(t, "processed_a.json", got.File)
}

func TestIndexNewsError(t *testing.T) {
	srv := esServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"mapper_parsing_exception"}`))
	})

	client, err := elasticsearch.New(srv.URL, "news", nil)
	require.NoError(t, err)

	err = client.IndexNews(context.Background(), models.NewsDocument{ID: "x"})
	require.ErrorContains(t, err, "mapper_parsing_exception")
}

func TestHealth(t *testing.T) {
	srv := esServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_cluster/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"green"}`))
	})

	client, err := elasticsearch.New(srv.URL, "news", nil)
	require.NoError(t, err)
	require.NoError(t, client.Health(context.Background()))
}

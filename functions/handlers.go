package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DeafMist/news-lake-pipeline/internal/metrics"
	"github.com/DeafMist/news-lake-pipeline/internal/pipeline"
)

const (
	// searchRoute is the "route" of the HTTP trigger in
	// SearchAndSaveResultToStorage/function.json, under the host's /api prefix.
	searchRoute = "Hello"
	// blobBinding is the trigger binding name in BlobTrigger/function.json.
	blobBinding = "myblob"
)

type server struct {
	log     *slog.Logger
	search  *pipeline.SearchAndStore
	blobs   *pipeline.BlobProcessor
	metrics *metrics.Metrics
	// health is nil when no sink needs checking.
	health func(ctx context.Context) error
}

// invocationRequest is the payload the Functions host posts for
// non-HTTP triggers.
type invocationRequest struct {
	Data     map[string]json.RawMessage `json:"Data"`
	Metadata map[string]json.RawMessage `json:"Metadata"`
}

type invocationResponse struct {
	Outputs     map[string]any `json:"Outputs"`
	Logs        []string       `json:"Logs"`
	ReturnValue any            `json:"ReturnValue"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	searchPath := "/api/" + searchRoute
	r.Get(searchPath, s.handleSearch)
	r.Post(searchPath, s.handleSearch)
	r.Post("/"+pipeline.BlobFunction, s.handleBlob)

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.health(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := s.log.With(
		slog.String("function", pipeline.SearchFunction),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	log.Info("http trigger function")

	q := pipeline.QueryFromParams(r.URL.Query())
	res, err := s.search.Run(r.Context(), q)
	if err != nil {
		s.metrics.Observe(pipeline.SearchFunction, metrics.OutcomeError, time.Since(start))
		log.Error("search and store failed", slog.String("term", q.Term), slog.Any("err", err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.metrics.Observe(pipeline.SearchFunction, metrics.OutcomeOK, time.Since(start))
	s.metrics.AddItems(pipeline.SearchFunction, res.Items)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(res.Filename))
}

func (s *server) handleBlob(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := s.log.With(slog.String("function", pipeline.BlobFunction))

	var req invocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid invocation payload: " + err.Error()})
		return
	}

	content, err := bindingContent(req.Data[blobBinding])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	path := blobPath(req.Metadata)

	res, err := s.blobs.Process(r.Context(), path, content)
	if err != nil {
		s.metrics.Observe(pipeline.BlobFunction, metrics.OutcomeError, time.Since(start))
		log.Error("blob processing failed", slog.String("name", path), slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, invocationResponse{
			Outputs: map[string]any{},
			Logs:    []string{fmt.Sprintf("processing %s failed: %v", path, err)},
		})
		return
	}

	resp := invocationResponse{Outputs: map[string]any{}}
	if res.Skipped {
		s.metrics.Observe(pipeline.BlobFunction, metrics.OutcomeSkipped, time.Since(start))
		resp.Logs = []string{fmt.Sprintf("skipped %s: content is not JSON", path)}
	} else {
		s.metrics.Observe(pipeline.BlobFunction, metrics.OutcomeOK, time.Since(start))
		s.metrics.AddItems(pipeline.BlobFunction, res.Items)
		resp.Logs = []string{fmt.Sprintf("uploaded %s as %s", path, res.Filename)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// bindingContent returns the blob bytes. The host sends text content as a
// JSON string; anything else is taken verbatim.
func bindingContent(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("invocation has no %q data", blobBinding)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return []byte(text), nil
	}
	return raw, nil
}

// blobPath returns "<container>/<name>" from the trigger metadata, preferring
// BlobTrigger over the blob Uri.
func blobPath(meta map[string]json.RawMessage) string {
	if p := metadataString(meta["BlobTrigger"]); p != "" {
		return p
	}
	if uri := metadataString(meta["Uri"]); uri != "" {
		if u, err := url.Parse(uri); err == nil && u.Path != "" {
			if p, err := url.PathUnescape(strings.TrimPrefix(u.Path, "/")); err == nil {
				return p
			}
		}
	}
	return metadataString(meta["name"])
}

// metadataString decodes a metadata value. The host double-encodes some
// string values, so a quoted result is unquoted once more.
func metadataString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	if unq, err := strconv.Unquote(s); err == nil {
		return unq
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}

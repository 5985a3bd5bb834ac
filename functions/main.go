package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/DeafMist/news-lake-pipeline/internal/config"
	"github.com/DeafMist/news-lake-pipeline/internal/credential"
	"github.com/DeafMist/news-lake-pipeline/internal/elasticsearch"
	"github.com/DeafMist/news-lake-pipeline/internal/events"
	"github.com/DeafMist/news-lake-pipeline/internal/logger"
	"github.com/DeafMist/news-lake-pipeline/internal/metrics"
	"github.com/DeafMist/news-lake-pipeline/internal/pipeline"
	"github.com/DeafMist/news-lake-pipeline/internal/processing"
	"github.com/DeafMist/news-lake-pipeline/internal/search"
	"github.com/DeafMist/news-lake-pipeline/internal/secrets"
	"github.com/DeafMist/news-lake-pipeline/internal/storage"
)

func main() {
	// Local runs only; in Azure the settings arrive as environment variables.
	_ = godotenv.Load()

	log := logger.New("functions")
	cfg, err := config.LoadHost()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	sinks := config.LoadSinks()

	creds := credential.Provider{
		ManagedIdentityClientID: cfg.IdentityClientID,
		Sources:                 cfg.CredentialSources,
	}
	if _, err := credential.SourcesByName(creds.Sources, creds.ManagedIdentityClientID); err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}
	srv := &server{
		log:     log,
		metrics: metrics.New(),
		search: &pipeline.SearchAndStore{
			Log:         log.With(slog.String("function", pipeline.SearchFunction)),
			Credentials: creds,
			Secrets:     secrets.KeyVault{},
			Search:      search.Bing{},
			Blobs:       storage.Blob{},
		},
		blobs: &pipeline.BlobProcessor{
			Log:         log.With(slog.String("function", pipeline.BlobFunction)),
			Credentials: creds,
			Cleaner:     processing.NewCleaner(),
			DataLake:    storage.DataLake{},
		},
	}

	if sinks.ElasticsearchAddr != "" {
		esClient, err := elasticsearch.New(sinks.ElasticsearchAddr, sinks.ElasticsearchIndex, log)
		if err != nil {
			log.Error("init elasticsearch", slog.Any("err", err))
			os.Exit(1)
		}
		srv.blobs.Index = esClient
		srv.health = esClient.Health
		log.Info("search index sink enabled", slog.String("index", sinks.ElasticsearchIndex))
	}

	if len(sinks.KafkaBrokers) > 0 {
		publisher := events.NewPublisher(sinks.KafkaBrokers, sinks.KafkaTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error("close event publisher", slog.Any("err", err))
			}
		}()
		srv.search.Events = publisher
		srv.blobs.Events = publisher
		log.Info("pipeline events enabled", slog.String("topic", sinks.KafkaTopic))
	}

	addr := net.JoinHostPort("", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("custom handler starting", slog.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/analysis"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/api"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/config"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/dal"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/inference"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/metrics"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/patient"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/staging"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/pkg/zerolog_config"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Info().Msg("No .env file found, assuming environment variables are set")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	zerolog_config.SetAppPrefix("wound-analysis-api")
	zerolog_config.StartupWithEnv(cfg.ElasticsearchURL, "logs", cfg.LogLevel)

	log.Info().Msg("Starting wound-analysis-api service")

	metrics.StartSystemMetricsCollection("wound-analysis-api")

	store, closeStore, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize patient store")
	}
	defer closeStore()

	stager, uploadsDir, err := buildStager(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize media staging")
	}

	orchestrator := &analysis.Orchestrator{
		Store:     store,
		Stager:    stager,
		Inference: inference.NewClient(cfg.MLServiceURL, cfg.InferenceTimeout),
		Clock:     analysis.SystemClock{},
	}

	router := api.SetupRoutes(api.NewServer(store, orchestrator, uploadsDir))

	server := &http.Server{
		Addr:        ":" + cfg.APIPort,
		Handler:     router,
		ReadTimeout: 5 * time.Minute, // large uploads
		IdleTimeout: 60 * time.Second,
	}

	// Listen for shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().
			Str("port", cfg.APIPort).
			Str("media_backend", cfg.MediaBackend).
			Str("store_backend", cfg.StoreBackend).
			Msg("Server starting")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().
				Err(err).
				Msg("Failed to start server")
		}
	}()

	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("API service shutdown complete")
}

// buildStore selects the patient store backend. The Couchbase path
// fails fast when the cluster is unreachable.
func buildStore(cfg *config.Config) (patient.Store, func(), error) {
	if cfg.StoreBackend == "memory" {
		log.Warn().Msg("Using in-memory patient store; records will not survive a restart")
		return dal.NewMemoryStore(), func() {}, nil
	}

	conn, err := dal.NewConnection(dal.Options{
		URL:        cfg.CouchbaseURL,
		Username:   cfg.CouchbaseUsername,
		Password:   cfg.CouchbasePassword,
		BucketName: cfg.CouchbaseBucket,
	})
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		log.Info().Msg("Closing database connection...")
		if err := conn.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database connection")
		}
	}
	return dal.NewCouchbaseStore(conn), closeFn, nil
}

// buildStager selects the media staging backend. The returned dir is
// non-empty only for disk staging, where the API serves /uploads/.
func buildStager(cfg *config.Config) (staging.Stager, string, error) {
	if cfg.MediaBackend == "minio" {
		stager, err := staging.NewMinioStager(
			context.Background(),
			cfg.MinioEndpoint,
			cfg.MinioRegion,
			cfg.MinioBucket,
			cfg.MinioAccessKey,
			cfg.MinioSecretKey,
			cfg.MinioUseSSL,
			cfg.MaxUploadBytes,
		)
		return stager, "", err
	}

	stager, err := staging.NewDiskStager(cfg.UploadDir, cfg.PublicBaseURL, cfg.MaxUploadBytes)
	if err != nil {
		return nil, "", err
	}
	return stager, stager.Dir(), nil
}

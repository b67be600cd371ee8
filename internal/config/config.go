package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries all service settings, sourced from the environment.
// main loads .env first so local development matches deployment.
type Config struct {
	APIPort       string
	PublicBaseURL string

	MLServiceURL     string
	InferenceTimeout time.Duration

	MediaBackend   string // "disk" or "minio"
	UploadDir      string
	MaxUploadBytes int64

	StoreBackend string // "couchbase" or "memory"

	CouchbaseURL      string
	CouchbaseUsername string
	CouchbasePassword string
	CouchbaseBucket   string

	MinioEndpoint  string
	MinioRegion    string
	MinioBucket    string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool

	ElasticsearchURL string
	LogLevel         string
}

// Load reads configuration from environment variables with defaults
// that match a local single-node setup.
func Load() (*Config, error) {
	cfg := &Config{
		APIPort:       getEnv("API_PORT", "5000"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:5000"),

		MLServiceURL:     getEnv("ML_SERVICE_URL", "http://localhost:5001/predict"),
		InferenceTimeout: getDurationEnv("INFERENCE_TIMEOUT", 60*time.Second),

		MediaBackend:   getEnv("MEDIA_BACKEND", "disk"),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadBytes: getInt64Env("MAX_UPLOAD_BYTES", 100*1024*1024),

		StoreBackend: getEnv("STORE_BACKEND", "couchbase"),

		CouchbaseURL:      getEnv("COUCHBASE_URL", "couchbase://localhost"),
		CouchbaseUsername: getEnv("COUCHBASE_USERNAME", "wound_analysis_user"),
		CouchbasePassword: getEnv("COUCHBASE_PASSWORD", "password"),
		CouchbaseBucket:   getEnv("COUCHBASE_BUCKET", "wound-analysis"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioBucket:    getEnv("MINIO_BUCKET", "wound-media"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioUseSSL:    getBoolEnv("MINIO_USE_SSL", false),

		ElasticsearchURL: getEnv("ELASTICSEARCH_URL", ""),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}

	switch cfg.MediaBackend {
	case "disk", "minio":
	default:
		return nil, fmt.Errorf("unsupported MEDIA_BACKEND %q", cfg.MediaBackend)
	}
	switch cfg.StoreBackend {
	case "couchbase", "memory":
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND %q", cfg.StoreBackend)
	}

	return cfg, nil
}

// getEnv retrieves environment variable with fallback default
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt64Env(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

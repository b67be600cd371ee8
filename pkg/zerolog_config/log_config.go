package zerolog_config

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.elastic.co/ecszerolog"
)

var appPrefix string
var setAppPrefixOnce = &sync.Once{}
var startupLoggerOnce = &sync.Once{}

// ElasticsearchWriter sends logs directly to Elasticsearch
type ElasticsearchWriter struct {
	URL string
}

func (ew ElasticsearchWriter) Write(p []byte) (n int, err error) {
	resp, err := http.Post(
		ew.URL+"/_doc",
		"application/json",
		bytes.NewBuffer(p),
	)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("elasticsearch returned %d", resp.StatusCode)
	}

	return len(p), nil
}

func startupLogger(elasticsearchURL, index, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if elasticsearchURL == "" {
		// Console only
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Str("app", appPrefix).
			Timestamp().Logger()
		return
	}

	// ECS format for Elasticsearch
	ecsLogger := ecszerolog.New(&ElasticsearchWriter{
		URL: elasticsearchURL + "/" + index,
	})

	// Pretty console output
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout}

	// MultiLevelWriter: ECS to Elasticsearch + Pretty to Console
	multi := zerolog.MultiLevelWriter(
		ecsLogger,
		consoleWriter,
	)

	log.Logger = zerolog.New(multi).With().Str("app", appPrefix).
		Timestamp().Logger()
}

// SetAppPrefix sets the app prefix
func SetAppPrefix(prefix string) {
	setAppPrefixOnce.Do(func() {
		appPrefix = prefix
	})
}

// StartupWithEnv sets up the logger with the given Elasticsearch URL,
// index and level. An empty URL falls back to console-only logging.
// Run SetAppPrefix before StartupWithEnv.
func StartupWithEnv(elasticsearchURL string, index string, level string) error {
	if index == "" {
		return fmt.Errorf("index is required")
	}
	startupLoggerOnce.Do(func() {
		startupLogger(elasticsearchURL, index, level)
	})
	return nil
}

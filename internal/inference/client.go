package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/metrics"
)

// ErrorKind classifies inference failures for the caller.
type ErrorKind string

const (
	// KindUnavailable means the service could not be reached at all:
	// connection refused, DNS failure, or the request timed out.
	KindUnavailable ErrorKind = "unavailable"

	// KindBadResponse means the service answered but with a non-2xx
	// status or a body that is not the expected JSON shape.
	KindBadResponse ErrorKind = "bad_response"
)

// Error is a typed inference failure.
type Error struct {
	Kind   ErrorKind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inference %s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("inference %s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Err }

// Payload is the loosely-typed prediction response. Every key is
// optional; the normalizer applies the defaults.
type Payload struct {
	Result          *string         `json:"result"`
	Prediction      *string         `json:"prediction"`
	Severity        *string         `json:"severity"`
	Recommendations *string         `json:"recommendations"`
	Confidence      *float64        `json:"confidence"`
	AdditionalData  json.RawMessage `json:"additionalData"`
}

// DefaultTimeout bounds a single inference attempt.
const DefaultTimeout = 60 * time.Second

// Request carries the staged media and its context to the service.
type Request struct {
	File     io.Reader
	FileName string
	Email    string
	FileType string
}

// Client talks to the external ML inference service. It makes exactly
// one attempt per analysis; retrying is the caller's decision.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

// NewClient builds a client for the given predict endpoint. A zero
// timeout falls back to DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		endpoint: endpoint,
	}
}

// Analyze posts the file with its identity and media kind and decodes
// the prediction payload. The multipart body is streamed through a
// pipe so the staged media is never buffered whole in memory.
func (c *Client) Analyze(ctx context.Context, req Request) (*Payload, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", req.FileName)
		if err != nil {
			pw.CloseWithError(fmt.Errorf("build multipart request: %w", err))
			return
		}
		if _, err := io.Copy(part, req.File); err != nil {
			pw.CloseWithError(fmt.Errorf("copy file into request: %w", err))
			return
		}
		if err := writer.WriteField("email", req.Email); err != nil {
			pw.CloseWithError(fmt.Errorf("write email field: %w", err))
			return
		}
		if err := writer.WriteField("fileType", req.FileType); err != nil {
			pw.CloseWithError(fmt.Errorf("write fileType field: %w", err))
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, pr)
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordInferenceRequest(startTime, 0)
		log.Warn().
			Err(err).
			Str("endpoint", c.endpoint).
			Msg("Inference service unreachable")
		return nil, &Error{Kind: KindUnavailable, Detail: "inference service is not reachable", Err: err}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close inference response body")
		}
	}()

	metrics.RecordInferenceRequest(startTime, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := fmt.Sprintf("inference service returned status %d", resp.StatusCode)
		log.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", c.endpoint).
			Msg("Inference service returned an error status")
		return nil, &Error{Kind: KindBadResponse, Detail: detail}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Kind: KindBadResponse, Detail: "failed to read inference response body", Err: err}
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &Error{Kind: KindBadResponse, Detail: "inference response is not valid JSON", Err: err}
	}

	log.Debug().
		Str("endpoint", c.endpoint).
		Dur("duration", time.Since(startTime)).
		Msg("Inference completed")

	return &payload, nil
}

// IsUnavailable reports whether err is an inference reachability
// failure, including timeouts surfaced as net errors.
func IsUnavailable(err error) bool {
	var infErr *Error
	if errors.As(err, &infErr) {
		return infErr.Kind == KindUnavailable
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

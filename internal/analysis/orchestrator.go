package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/inference"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/metrics"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/patient"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/staging"
)

// State names the pipeline position of an analysis run.
type State string

const (
	StateReceived    State = "received"
	StateStaged      State = "staged"
	StateInferring   State = "inferring"
	StateNormalizing State = "normalizing"
	StatePersisted   State = "persisted"
	StateFailed      State = "failed"
)

// InferenceClient is the outbound prediction contract consumed by the
// orchestrator.
type InferenceClient interface {
	Analyze(ctx context.Context, req inference.Request) (*inference.Payload, error)
}

// Clock abstraction so record timestamps are testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Request is a single analysis submission.
type Request struct {
	Email     string
	MediaKind string
	Upload    staging.Upload
}

// Orchestrator sequences staging, inference, normalization and
// persistence for one analysis request, and owns the staged file's
// lifecycle across every terminal state. Independent requests run
// concurrently; the orchestrator holds no cross-request locks.
type Orchestrator struct {
	Store     patient.Store
	Stager    staging.Stager
	Inference InferenceClient
	Clock     Clock
}

// Run drives a request to a terminal state and returns the persisted
// record or a *PipelineError with a stable failure kind.
//
// The staged file is released on every failure after staging except a
// persistence failure: at that point the inference has already run,
// and keeping the media beats losing the analysis work.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*patient.AnalysisRecord, error) {
	// A client disconnect must not abandon the staged file between
	// transitions, so the pipeline runs on a detached context once the
	// request is accepted. The inference client keeps its own timeout.
	runCtx := context.WithoutCancel(ctx)

	email := patient.NormalizeEmail(req.Email)
	state := StateReceived

	stageStart := time.Now()
	staged, err := o.Stager.Stage(runCtx, req.Upload)
	if err != nil {
		if errors.Is(err, staging.ErrRejected) {
			return nil, o.fail(state, FailInvalidUpload, err.Error(), err)
		}
		// Not a validation failure: the backend itself could not take
		// the bytes. That is the service's fault, not the client's.
		return nil, o.fail(state, FailStagingError, "could not stage upload", err)
	}
	metrics.RecordStageDuration("staging", stageStart)
	metrics.IncStagedFiles()
	state = StateStaged

	log.Debug().
		Str("email", email).
		Str("file", staged.Key).
		Int64("size", staged.Size).
		Msg("Upload staged")

	if email == "" {
		o.release(runCtx, staged)
		return nil, o.fail(state, FailMissingIdentity, "email is required", nil)
	}

	if _, err := o.Store.FindByEmail(runCtx, email); err != nil {
		o.release(runCtx, staged)
		if errors.Is(err, patient.ErrNotFound) {
			return nil, o.fail(state, FailUnknownIdentity, "no patient record for this email", err)
		}
		return nil, o.fail(state, FailPersistence, "could not look up patient record", err)
	}

	state = StateInferring
	kind := resolveMediaKind(req.MediaKind, req.Upload.ContentType)

	file, err := o.Stager.Open(runCtx, staged)
	if err != nil {
		o.release(runCtx, staged)
		return nil, o.fail(state, FailStagingError, "staged file is unreadable", err)
	}

	inferStart := time.Now()
	payload, err := o.Inference.Analyze(runCtx, inference.Request{
		File:     file,
		FileName: staged.Key,
		Email:    email,
		FileType: string(kind),
	})
	file.Close()
	metrics.RecordStageDuration("inference", inferStart)
	if err != nil {
		// The staged file must never survive a failed inference attempt.
		o.release(runCtx, staged)

		var infErr *inference.Error
		if errors.As(err, &infErr) && infErr.Kind == inference.KindBadResponse {
			return nil, o.fail(state, FailInferenceBadResponse, infErr.Detail, err)
		}
		return nil, o.fail(state, FailInferenceUnavailable,
			"analysis service is not available, please try again later", err)
	}

	state = StateNormalizing
	record := Normalize(payload, kind, staged.URL, staged.Key, o.Clock.Now())

	persistStart := time.Now()
	if _, err := o.Store.AppendAnalysis(runCtx, email, record); err != nil {
		// The inference already ran; the staged file is kept so the
		// completed analysis is not stranded without its media. An
		// operator can reconcile from the logs.
		metrics.DecStagedFiles()
		log.Error().
			Err(err).
			Str("email", email).
			Str("file", staged.Key).
			Msg("Analysis persisted nothing; staged media retained for reconciliation")
		return nil, o.fail(state, FailPersistence, "could not save analysis to patient record", err)
	}
	metrics.RecordStageDuration("persist", persistStart)
	metrics.DecStagedFiles()
	metrics.RecordAnalysisOutcome("persisted")

	log.Info().
		Str("email", email).
		Str("file", staged.Key).
		Str("severity", record.Severity).
		Msg("Analysis persisted")

	return &record, nil
}

// release drops the staged file on a failure path. Release errors are
// logged, not surfaced: the pipeline error already in flight matters
// more than the cleanup error.
func (o *Orchestrator) release(ctx context.Context, staged *staging.StagedFile) {
	metrics.DecStagedFiles()
	if err := o.Stager.Release(ctx, staged); err != nil {
		log.Error().
			Err(err).
			Str("file", staged.Key).
			Msg("Failed to release staged file")
	}
}

func (o *Orchestrator) fail(from State, kind FailureKind, message string, err error) *PipelineError {
	metrics.RecordAnalysisOutcome(string(kind))
	log.Warn().
		Err(err).
		Str("state", string(from)).
		Str("reason", string(kind)).
		Msg("Analysis run failed")
	return failed(kind, message, err)
}

// resolveMediaKind trusts the client hint when it is valid and falls
// back to the declared content type.
func resolveMediaKind(hint, contentType string) patient.MediaKind {
	switch patient.MediaKind(strings.ToLower(strings.TrimSpace(hint))) {
	case patient.MediaImage:
		return patient.MediaImage
	case patient.MediaVideo:
		return patient.MediaVideo
	}
	if strings.HasPrefix(strings.ToLower(contentType), "video/") {
		return patient.MediaVideo
	}
	return patient.MediaImage
}

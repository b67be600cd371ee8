package analysis

import "fmt"

// FailureKind is the stable reason code for a failed pipeline run.
type FailureKind string

const (
	FailInvalidUpload        FailureKind = "invalid_upload"
	FailStagingError         FailureKind = "staging_error"
	FailMissingIdentity      FailureKind = "missing_identity"
	FailUnknownIdentity      FailureKind = "unknown_identity"
	FailInferenceUnavailable FailureKind = "inference_unavailable"
	FailInferenceBadResponse FailureKind = "inference_bad_response"
	FailPersistence          FailureKind = "persistence_error"
)

// PipelineError is the typed terminal failure of an analysis run. The
// Kind is stable across releases; Message is safe to show to callers.
type PipelineError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis failed (%s): %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("analysis failed (%s): %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func failed(kind FailureKind, message string, err error) *PipelineError {
	return &PipelineError{Kind: kind, Message: message, Err: err}
}

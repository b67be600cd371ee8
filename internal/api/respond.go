package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/analysis"
)

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Message: message})
}

// pipelineStatus maps a terminal pipeline failure to its HTTP status.
func pipelineStatus(err error) int {
	var pipeErr *analysis.PipelineError
	if !errors.As(err, &pipeErr) {
		return http.StatusInternalServerError
	}
	switch pipeErr.Kind {
	case analysis.FailInvalidUpload, analysis.FailMissingIdentity:
		return http.StatusBadRequest
	case analysis.FailUnknownIdentity:
		return http.StatusNotFound
	case analysis.FailInferenceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func pipelineMessage(err error) string {
	var pipeErr *analysis.PipelineError
	if errors.As(err, &pipeErr) {
		return pipeErr.Message
	}
	return "Analysis failed"
}

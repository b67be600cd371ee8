package api

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/analysis"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/staging"
)

// analyzeFormMemory caps how much of the multipart body is buffered in
// memory; the rest spills to temp files managed by the runtime.
const analyzeFormMemory = 32 << 20

// AnalyzeHandler is the ingestion endpoint: it hands the uploaded media
// to the orchestrator and maps the terminal state to a response.
func (s *Server) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(analyzeFormMemory); err != nil {
		log.Warn().Err(err).Msg("Failed to parse multipart analyze request")
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()

	email := r.FormValue("email")
	fileType := r.FormValue("fileType")

	log.Info().
		Str("file", header.Filename).
		Int64("size", header.Size).
		Str("fileType", fileType).
		Msg("Analysis request received")

	record, err := s.orchestrator.Run(r.Context(), analysis.Request{
		Email:     email,
		MediaKind: fileType,
		Upload: staging.Upload{
			Reader:      file,
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
		},
	})
	if err != nil {
		writeError(w, pipelineStatus(err), pipelineMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Analysis completed successfully",
		Data:    record,
	})
}

package analysis

import (
	"encoding/json"
	"time"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/inference"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/patient"
)

// Fallbacks applied when the inference payload omits optional keys.
const (
	DefaultResult          = "Analysis completed"
	DefaultSeverity        = "Unknown"
	DefaultRecommendations = "Please consult with a healthcare professional"
)

// Normalize maps a loosely-typed inference payload into a fixed
// AnalysisRecord. It is pure and total: missing keys fall back to
// defaults, and the same inputs always produce the same record.
//
// Confidence is deliberately left nil when absent; zero confidence and
// no confidence are different statements.
func Normalize(p *inference.Payload, kind patient.MediaKind, mediaURL, fileName string, now time.Time) patient.AnalysisRecord {
	rec := patient.AnalysisRecord{
		Date:            now,
		Result:          DefaultResult,
		Severity:        DefaultSeverity,
		Recommendations: DefaultRecommendations,
		MediaURL:        mediaURL,
		FileName:        fileName,
		MediaKind:       kind,
	}
	if p == nil {
		return rec
	}

	if p.Result != nil && *p.Result != "" {
		rec.Result = *p.Result
	} else if p.Prediction != nil && *p.Prediction != "" {
		rec.Result = *p.Prediction
	}

	if p.Severity != nil && *p.Severity != "" {
		rec.Severity = *p.Severity
	}
	if p.Recommendations != nil && *p.Recommendations != "" {
		rec.Recommendations = *p.Recommendations
	}
	if p.Confidence != nil {
		confidence := *p.Confidence
		rec.Confidence = &confidence
	}

	rec.AdditionalData = decodeAdditionalData(p.AdditionalData)
	return rec
}

// decodeAdditionalData keeps the structured detail when it is present
// and decodable, and drops it otherwise. The upstream schema is not
// contractually fixed, so a shape mismatch must not fail the record.
func decodeAdditionalData(raw json.RawMessage) *patient.AdditionalData {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var data patient.AdditionalData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return &data
}

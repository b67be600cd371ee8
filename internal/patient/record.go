package patient

import (
	"encoding/json"
	"strings"
	"time"
)

// MediaKind distinguishes uploaded wound media.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// RegionFinding describes a single detected wound region as reported by
// the inference service. The upstream schema for this data is not
// contractually fixed, so every field is best-effort.
type RegionFinding struct {
	Condition       string   `json:"condition,omitempty"`
	AreaCm2         float64  `json:"areaCm2,omitempty"`
	HealingProgress float64  `json:"healingProgress,omitempty"`
	PusDetected     bool     `json:"pusDetected,omitempty"`
	Alerts          []string `json:"alerts,omitempty"`
}

// AdditionalData carries the optional structured detail attached to an
// analysis. WoundsDetected is trusted as reported upstream; it is not
// recomputed from the region list.
type AdditionalData struct {
	WoundsDetected int             `json:"woundsDetected"`
	Regions        []RegionFinding `json:"regions,omitempty"`
}

// AnalysisRecord is a single completed wound analysis. Records are
// immutable once appended to a patient's history.
type AnalysisRecord struct {
	Date            time.Time       `json:"date"`
	Result          string          `json:"result"`
	Severity        string          `json:"severity"`
	Recommendations string          `json:"recommendations"`
	Confidence      *float64        `json:"confidence,omitempty"`
	MediaURL        string          `json:"imageUrl"`
	FileName        string          `json:"fileName"`
	MediaKind       MediaKind       `json:"fileType"`
	AdditionalData  *AdditionalData `json:"additionalData,omitempty"`
}

// Record is a patient document keyed by normalized email.
type Record struct {
	Email          string           `json:"email"`
	Name           string           `json:"name"`
	Age            *float64         `json:"age"`
	Height         *float64         `json:"height"`
	Weight         *float64         `json:"weight"`
	Injury         *Injury          `json:"injury"`
	MedicalHistory *string          `json:"medicalHistory"`
	Allergies      []string         `json:"allergies"`
	Analysis       []AnalysisRecord `json:"analysis"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// Injury holds the free-text injury description.
type Injury struct {
	Description *string `json:"description"`
}

// LastAnalysis returns the most recently appended record, or nil when
// the history is empty. Insertion order wins over timestamps.
func (r *Record) LastAnalysis() *AnalysisRecord {
	if len(r.Analysis) == 0 {
		return nil
	}
	return &r.Analysis[len(r.Analysis)-1]
}

// TotalAnalyses returns the length of the history sequence.
func (r *Record) TotalAnalyses() int {
	return len(r.Analysis)
}

// NormalizeEmail lowercases and trims an identity key. Every lookup
// must pass identities through here so the unique key stays stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ParseAllergies normalizes the allergies field into a list or nil.
// Callers may send a JSON array, a JSON string containing a comma
// separated list, or a stringified JSON array.
func ParseAllergies(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return cleanAllergies(list)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// Some clients double-encode the list as a JSON string.
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			return cleanAllergies(list)
		}
	}
	return cleanAllergies(strings.Split(s, ","))
}

func cleanAllergies(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

package api

import (
	"encoding/json"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/patient"
)

// Request Types
type LoginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type PatientDetailsRequest struct {
	Email          string          `json:"email"`
	Age            *float64        `json:"age"`
	Height         *float64        `json:"height"`
	Weight         *float64        `json:"weight"`
	MedicalHistory *string         `json:"medicalHistory"`
	Injury         *string         `json:"injury"`
	Allergies      json.RawMessage `json:"allergies"`
}

// Response Types
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Exists  *bool       `json:"exists,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// PatientProjection is the read shape the presentation layer consumes.
type PatientProjection struct {
	Email          string                  `json:"email"`
	Name           string                  `json:"name"`
	Age            *float64                `json:"age"`
	Weight         *float64                `json:"weight"`
	Height         *float64                `json:"height"`
	Injury         *patient.Injury         `json:"injury"`
	MedicalHistory *string                 `json:"medicalHistory"`
	Allergies      []string                `json:"allergies"`
	LastAnalysis   *patient.AnalysisRecord `json:"lastAnalysis"`
	TotalAnalyses  int                     `json:"totalAnalyses"`
}

// NewPatientProjection projects a record for API responses.
func NewPatientProjection(rec *patient.Record) PatientProjection {
	return PatientProjection{
		Email:          rec.Email,
		Name:           rec.Name,
		Age:            rec.Age,
		Weight:         rec.Weight,
		Height:         rec.Height,
		Injury:         rec.Injury,
		MedicalHistory: rec.MedicalHistory,
		Allergies:      rec.Allergies,
		LastAnalysis:   rec.LastAnalysis(),
		TotalAnalyses:  rec.TotalAnalyses(),
	}
}

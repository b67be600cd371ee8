package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/analysis"
	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/patient"
)

// Server holds the handler dependencies.
type Server struct {
	store        patient.Store
	orchestrator *analysis.Orchestrator
	uploadsDir   string // non-empty only for the disk media backend
}

// NewServer wires the handlers.
func NewServer(store patient.Store, orchestrator *analysis.Orchestrator, uploadsDir string) *Server {
	return &Server{
		store:        store,
		orchestrator: orchestrator,
		uploadsDir:   uploadsDir,
	}
}

// LiveHandler confirms the API is up.
func (s *Server) LiveHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Api is Live"))
}

// HealthHandler reports service and store health.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		log.Warn().Err(err).Msg("Health check failed on patient store")
		writeError(w, http.StatusServiceUnavailable, "patient store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "healthy"})
}

// LoginHandler performs the identity handshake: an existing identity
// gets its record back, a new identity gets a fresh record.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error().Err(err).Msg("Failed to decode login request")
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	email := patient.NormalizeEmail(req.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}

	rec, err := s.store.FindByEmail(r.Context(), email)
	if err == nil {
		exists := true
		log.Info().Str("email", email).Msg("Existing patient logged in")
		writeJSON(w, http.StatusOK, Response{
			Success: true,
			Exists:  &exists,
			Message: "Welcome back!",
			Data:    NewPatientProjection(rec),
		})
		return
	}
	if !errors.Is(err, patient.ErrNotFound) {
		log.Error().Err(err).Str("email", email).Msg("Login lookup failed")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	name := req.Name
	if name == "" {
		name = "User"
	}
	rec, err = s.store.Create(r.Context(), email, name)
	if err != nil {
		if errors.Is(err, patient.ErrAlreadyExists) {
			// Lost a create race; the record is there now.
			if rec, err = s.store.FindByEmail(r.Context(), email); err == nil {
				exists := true
				writeJSON(w, http.StatusOK, Response{
					Success: true,
					Exists:  &exists,
					Message: "Welcome back!",
					Data:    NewPatientProjection(rec),
				})
				return
			}
		}
		log.Error().Err(err).Str("email", email).Msg("Failed to create patient record")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	exists := false
	log.Info().Str("email", email).Msg("New patient record created")
	writeJSON(w, http.StatusCreated, Response{
		Success: true,
		Exists:  &exists,
		Message: "New user created",
		Data:    NewPatientProjection(rec),
	})
}

// GetUserHandler returns the patient projection for an identity.
func (s *Server) GetUserHandler(w http.ResponseWriter, r *http.Request) {
	email := patient.NormalizeEmail(mux.Vars(r)["email"])

	log.Debug().Str("email", email).Msg("Fetching patient record")

	rec, err := s.store.FindByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Str("email", email).Msg("Failed to fetch patient record")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(w, http.StatusOK, Response{Success: true, Data: NewPatientProjection(rec)})
}

// PatientDetailsHandler applies a partial profile update. Only fields
// present in the request body overwrite stored values.
func (s *Server) PatientDetailsHandler(w http.ResponseWriter, r *http.Request) {
	var req PatientDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error().Err(err).Msg("Failed to decode patient details request")
		writeError(w, http.StatusBadRequest, "Invalid JSON format")
		return
	}

	email := patient.NormalizeEmail(req.Email)
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}

	update := patient.ProfileUpdate{
		Age:            req.Age,
		Height:         req.Height,
		Weight:         req.Weight,
		MedicalHistory: req.MedicalHistory,
		Injury:         req.Injury,
	}
	if len(req.Allergies) > 0 {
		update.HasAllergies = true
		update.Allergies = patient.ParseAllergies(req.Allergies)
	}

	rec, err := s.store.UpdateProfile(r.Context(), email, update)
	if err != nil {
		if errors.Is(err, patient.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Error().Err(err).Str("email", email).Msg("Failed to update patient details")
		writeError(w, http.StatusInternalServerError, "Server error")
		return
	}

	log.Info().Str("email", email).Msg("Patient details updated")
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Patient details updated successfully",
		Data:    NewPatientProjection(rec),
	})
}

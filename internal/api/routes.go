package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/metrics"
)

// SetupRoutes configures and returns the HTTP router
func SetupRoutes(s *Server) *mux.Router {
	r := mux.NewRouter()

	// Add middleware to all routes
	r.Use(metrics.MetricsMiddleware)

	// Routes
	r.HandleFunc("/api", s.LiveHandler).Methods("GET")
	r.HandleFunc("/api/login", s.LoginHandler).Methods("POST")
	r.HandleFunc("/api/user/{email}", s.GetUserHandler).Methods("GET")
	r.HandleFunc("/api/patient-details", s.PatientDetailsHandler).Methods("PUT")
	r.HandleFunc("/api/analyze", s.AnalyzeHandler).Methods("POST")

	// Staged media is exposed by reference when staged on local disk;
	// the object-store backend serves its own URLs.
	if s.uploadsDir != "" {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.uploadsDir))),
		).Methods("GET")
	}

	// Health endpoint
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")

	// Prometheus metrics endpoint
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}

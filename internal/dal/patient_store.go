package dal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/patient"
)

const patientsCollection = "patients"

// CouchbaseStore implements patient.Store over a patients collection.
// Documents are keyed "Patient/<email>" with the normalized email.
type CouchbaseStore struct {
	conn *Connection
}

// NewCouchbaseStore creates a patient store over an open connection.
func NewCouchbaseStore(conn *Connection) *CouchbaseStore {
	return &CouchbaseStore{conn: conn}
}

func (s *CouchbaseStore) collection() *gocb.Collection {
	return s.conn.GetBucket().Scope("_default").Collection(patientsCollection)
}

func docID(email string) string {
	return fmt.Sprintf("Patient/%s", email)
}

// FindByEmail retrieves a patient record.
func (s *CouchbaseStore) FindByEmail(ctx context.Context, email string) (*patient.Record, error) {
	result, err := s.collection().Get(docID(email), &gocb.GetOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, patient.ErrNotFound
		}
		log.Error().Err(err).Str("email", email).Msg("Failed to get patient document")
		return nil, fmt.Errorf("get patient: %w", err)
	}

	var rec patient.Record
	if err := result.Content(&rec); err != nil {
		return nil, fmt.Errorf("decode patient document: %w", err)
	}
	return &rec, nil
}

// Create inserts a fresh record for a first-time identity handshake.
func (s *CouchbaseStore) Create(ctx context.Context, email, name string) (*patient.Record, error) {
	now := time.Now().UTC()
	rec := &patient.Record{
		Email:     email,
		Name:      name,
		Analysis:  []patient.AnalysisRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.collection().Insert(docID(email), rec, &gocb.InsertOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentExists) {
			return nil, patient.ErrAlreadyExists
		}
		log.Error().Err(err).Str("email", email).Msg("Failed to insert patient document")
		return nil, fmt.Errorf("insert patient: %w", err)
	}

	log.Info().Str("email", email).Msg("Created patient record")
	return rec, nil
}

// AppendAnalysis appends one record to the history with a server-side
// sub-document array append. Concurrent appends for the same identity
// both land; there is no read-modify-write window to race on.
func (s *CouchbaseStore) AppendAnalysis(ctx context.Context, email string, rec patient.AnalysisRecord) (*patient.Record, error) {
	_, err := s.collection().MutateIn(docID(email), []gocb.MutateInSpec{
		gocb.ArrayAppendSpec("analysis", rec, nil),
		gocb.UpsertSpec("updatedAt", time.Now().UTC(), nil),
	}, &gocb.MutateInOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, patient.ErrNotFound
		}
		log.Error().Err(err).Str("email", email).Msg("Failed to append analysis")
		return nil, fmt.Errorf("append analysis: %w", err)
	}

	log.Debug().Str("email", email).Msg("Appended analysis to patient history")
	return s.FindByEmail(ctx, email)
}

// UpdateProfile applies only the provided fields via sub-document
// upserts; absent fields never clear stored values.
func (s *CouchbaseStore) UpdateProfile(ctx context.Context, email string, update patient.ProfileUpdate) (*patient.Record, error) {
	specs := buildProfileSpecs(update)
	if len(specs) == 0 {
		return s.FindByEmail(ctx, email)
	}
	specs = append(specs, gocb.UpsertSpec("updatedAt", time.Now().UTC(), nil))

	_, err := s.collection().MutateIn(docID(email), specs, &gocb.MutateInOptions{Context: ctx})
	if err != nil {
		if errors.Is(err, gocb.ErrDocumentNotFound) {
			return nil, patient.ErrNotFound
		}
		log.Error().Err(err).Str("email", email).Msg("Failed to update patient profile")
		return nil, fmt.Errorf("update profile: %w", err)
	}

	log.Info().Str("email", email).Msg("Updated patient profile")
	return s.FindByEmail(ctx, email)
}

func buildProfileSpecs(update patient.ProfileUpdate) []gocb.MutateInSpec {
	var specs []gocb.MutateInSpec
	if update.Age != nil {
		specs = append(specs, gocb.UpsertSpec("age", *update.Age, nil))
	}
	if update.Height != nil {
		specs = append(specs, gocb.UpsertSpec("height", *update.Height, nil))
	}
	if update.Weight != nil {
		specs = append(specs, gocb.UpsertSpec("weight", *update.Weight, nil))
	}
	if update.MedicalHistory != nil {
		specs = append(specs, gocb.UpsertSpec("medicalHistory", *update.MedicalHistory, nil))
	}
	if update.Injury != nil {
		specs = append(specs, gocb.UpsertSpec("injury.description", *update.Injury, &gocb.UpsertSpecOptions{CreatePath: true}))
	}
	if update.HasAllergies {
		specs = append(specs, gocb.UpsertSpec("allergies", update.Allergies, nil))
	}
	return specs
}

// Ping reports store reachability.
func (s *CouchbaseStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

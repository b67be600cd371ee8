package dal

import (
	"context"
	"sync"
	"time"

	"github.com/TrimergeLabs/AiWoundAnalysisProj/internal/patient"
)

// MemoryStore is an in-memory patient.Store used by tests and as a
// development backend. A single mutex serializes history appends, which
// satisfies the atomic-append requirement for one process.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*patient.Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*patient.Record)}
}

// FindByEmail returns a copy of the stored record.
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*patient.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[email]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return copyRecord(rec), nil
}

// Create inserts a fresh record.
func (s *MemoryStore) Create(ctx context.Context, email, name string) (*patient.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[email]; ok {
		return nil, patient.ErrAlreadyExists
	}

	now := time.Now().UTC()
	rec := &patient.Record{
		Email:     email,
		Name:      name,
		Analysis:  []patient.AnalysisRecord{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.records[email] = rec
	return copyRecord(rec), nil
}

// AppendAnalysis appends under the store lock.
func (s *MemoryStore) AppendAnalysis(ctx context.Context, email string, rec patient.AnalysisRecord) (*patient.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[email]
	if !ok {
		return nil, patient.ErrNotFound
	}
	stored.Analysis = append(stored.Analysis, rec)
	stored.UpdatedAt = time.Now().UTC()
	return copyRecord(stored), nil
}

// UpdateProfile applies only the provided fields.
func (s *MemoryStore) UpdateProfile(ctx context.Context, email string, update patient.ProfileUpdate) (*patient.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[email]
	if !ok {
		return nil, patient.ErrNotFound
	}

	if update.Age != nil {
		stored.Age = update.Age
	}
	if update.Height != nil {
		stored.Height = update.Height
	}
	if update.Weight != nil {
		stored.Weight = update.Weight
	}
	if update.MedicalHistory != nil {
		stored.MedicalHistory = update.MedicalHistory
	}
	if update.Injury != nil {
		if stored.Injury == nil {
			stored.Injury = &patient.Injury{}
		}
		stored.Injury.Description = update.Injury
	}
	if update.HasAllergies {
		stored.Allergies = update.Allergies
	}
	stored.UpdatedAt = time.Now().UTC()
	return copyRecord(stored), nil
}

// Ping always succeeds for the in-memory backend.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func copyRecord(rec *patient.Record) *patient.Record {
	out := *rec
	out.Analysis = make([]patient.AnalysisRecord, len(rec.Analysis))
	copy(out.Analysis, rec.Analysis)
	return &out
}

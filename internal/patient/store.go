package patient

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no record exists for an identity.
	ErrNotFound = errors.New("patient not found")

	// ErrAlreadyExists is returned by Create when the identity is taken.
	ErrAlreadyExists = errors.New("patient already exists")

	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached. Callers should treat it as fatal for the request, not
	// probe connection flags.
	ErrStoreUnavailable = errors.New("patient store unavailable")
)

// ProfileUpdate is a partial set of profile fields. Only non-nil fields
// are applied; an absent field never clears a stored value.
type ProfileUpdate struct {
	Age            *float64
	Height         *float64
	Weight         *float64
	MedicalHistory *string
	Injury         *string
	Allergies      []string
	HasAllergies   bool
}

// Store is the persistence contract the analysis pipeline consumes.
// Identities passed in must already be normalized via NormalizeEmail.
//
// AppendAnalysis must be atomic with respect to the history sequence:
// two concurrent appends for the same identity both land, in some
// order, with no overwrite.
type Store interface {
	FindByEmail(ctx context.Context, email string) (*Record, error)
	Create(ctx context.Context, email, name string) (*Record, error)
	AppendAnalysis(ctx context.Context, email string, rec AnalysisRecord) (*Record, error)
	UpdateProfile(ctx context.Context, email string, update ProfileUpdate) (*Record, error)
	Ping(ctx context.Context) error
}

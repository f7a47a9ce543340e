package repository

import (
	"context"
	"time"

	"github.com/developerashishcanada/carpoolreact/internal/domain/profile"
	"github.com/developerashishcanada/carpoolreact/internal/store"
)

// ProfileRepository stores profiles keyed by user id.
type ProfileRepository struct {
	s store.Session
}

// NewProfileRepository creates a profile repository over s.
func NewProfileRepository(s store.Session) *ProfileRepository {
	return &ProfileRepository{s: s}
}

var _ profile.Repository = (*ProfileRepository)(nil)

// Get retrieves a profile by user id.
func (r *ProfileRepository) Get(ctx context.Context, id string) (*profile.Profile, error) {
	var p profile.Profile
	if err := get(ctx, r.s, store.CollectionProfiles, id, profile.ErrProfileNotFound, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Save creates or replaces a profile.
func (r *ProfileRepository) Save(ctx context.Context, p *profile.Profile) error {
	return put(ctx, r.s, store.CollectionProfiles, p.ID, p)
}

// UpdateVerification sets the verification status.
func (r *ProfileRepository) UpdateVerification(ctx context.Context, id string, status profile.VerificationStatus) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return r.s.Update(ctx, store.CollectionProfiles, id, store.Data{
		"verification_status": string(status),
		"updated_at":          time.Now().UTC().Format(time.RFC3339Nano),
	})
}

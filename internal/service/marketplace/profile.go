package marketplace

import (
	"context"
	"errors"
	"time"

	"github.com/developerashishcanada/carpoolreact/internal/domain/profile"
	"github.com/developerashishcanada/carpoolreact/internal/events"
	"github.com/developerashishcanada/carpoolreact/internal/repository"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// RegisterInput is the registration form
type RegisterInput struct {
	Name            string
	Email           string
	Phone           string
	Role            profile.Role
	Vehicle         *profile.Vehicle
	LicenseUploaded bool
	IDUploaded      bool
}

// Register validates the form and stores the caller's profile with a pending
// verification. Every missing field is reported at once and nothing is
// written on failure. A registered user may resubmit the form but not switch
// role.
func (s *Service) Register(ctx context.Context, userID string, in RegisterInput) (*profile.Profile, error) {
	if userID == "" {
		return nil, apperrors.Unauthorized("Missing user identity", nil)
	}

	p := &profile.Profile{
		ID:              userID,
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		Role:            in.Role,
		LicenseUploaded: in.LicenseUploaded,
		IDUploaded:      in.IDUploaded,
	}
	if in.Vehicle != nil {
		v := *in.Vehicle
		p.Vehicle = &v
	}
	p.Normalize()
	if missing := p.MissingFields(); len(missing) > 0 {
		return nil, s.fail("register", apperrors.Validation("Missing required fields", missing...))
	}

	err := s.transact(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		now := time.Now().UTC()
		p.CreatedAt = now
		existing, err := repos.Profiles.Get(ctx, userID)
		switch {
		case err == nil:
			if existing.Role != p.Role {
				return profile.ErrRoleFixed
			}
			p.CreatedAt = existing.CreatedAt
		case !errors.Is(err, profile.ErrProfileNotFound):
			return err
		}
		p.VerificationStatus = profile.VerificationPending
		p.UpdatedAt = now
		return repos.Profiles.Save(ctx, p)
	})
	if err != nil {
		return nil, s.fail("register", err)
	}

	s.logger.Info("Profile registered",
		logger.String("user_id", userID),
		logger.String("role", string(p.Role)),
	)
	s.publish(ctx, events.New(events.ProfileRegistered, userID, userID, map[string]interface{}{
		"role": string(p.Role),
	}))
	return p, nil
}

// GetProfile returns a profile by user id
func (s *Service) GetProfile(ctx context.Context, id string) (*profile.Profile, error) {
	p, err := s.repos.Profiles.Get(ctx, id)
	if err != nil {
		return nil, s.fail("get_profile", err)
	}
	return p, nil
}

// SetVerificationStatus records the outcome of a document review
func (s *Service) SetVerificationStatus(ctx context.Context, id string, status profile.VerificationStatus) (*profile.Profile, error) {
	if !status.IsValid() {
		return nil, s.fail("set_verification", apperrors.Validation("Unknown verification status", "status"))
	}
	if err := s.repos.Profiles.UpdateVerification(ctx, id, status); err != nil {
		return nil, s.fail("set_verification", err)
	}

	s.logger.Info("Verification status changed",
		logger.String("user_id", id),
		logger.String("status", string(status)),
	)
	s.publish(ctx, events.New(events.ProfileVerified, id, id, map[string]interface{}{
		"status": string(status),
	}))
	return s.GetProfile(ctx, id)
}

// Package marketplace is the command layer of the carpool marketplace. Every
// command takes an explicit Caller, validates it, and applies its writes to
// the document store. Commands that touch more than one document run inside
// a single store transaction.
package marketplace

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/developerashishcanada/carpoolreact/internal/domain/chat"
	"github.com/developerashishcanada/carpoolreact/internal/domain/profile"
	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
	"github.com/developerashishcanada/carpoolreact/internal/domain/wallet"
	"github.com/developerashishcanada/carpoolreact/internal/events"
	"github.com/developerashishcanada/carpoolreact/internal/repository"
	"github.com/developerashishcanada/carpoolreact/internal/store"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
	"github.com/developerashishcanada/carpoolreact/pkg/monitoring"
)

// Suggester produces price and text suggestions
type Suggester interface {
	SuggestPrice(ctx context.Context, from, to string, at time.Time) (decimal.Decimal, error)
	SuggestRefinement(ctx context.Context, text string) (string, error)
}

// Caller is the identity a command runs as. Profile is nil until the user
// registers.
type Caller struct {
	ID      string
	Profile *profile.Profile
}

// Name returns the display name of the caller
func (c Caller) Name() string {
	if c.Profile == nil {
		return ""
	}
	return c.Profile.Name
}

// Service runs marketplace commands
type Service struct {
	store     store.Store
	repos     *repository.Repositories
	suggester Suggester
	events    events.Publisher
	nr        *monitoring.NewRelicApp
	logger    *logger.Logger
}

// NewService creates the marketplace service. suggester and nr may be nil.
func NewService(s store.Store, suggester Suggester, publisher events.Publisher, nr *monitoring.NewRelicApp, log *logger.Logger) *Service {
	if publisher == nil {
		publisher = events.NewLogPublisher(log)
	}
	return &Service{
		store:     s,
		repos:     repository.New(s),
		suggester: suggester,
		events:    publisher,
		nr:        nr,
		logger:    log.Named("marketplace"),
	}
}

// Caller loads the profile of userID. An unregistered user yields a Caller
// without profile, not an error.
func (s *Service) Caller(ctx context.Context, userID string) (Caller, error) {
	if userID == "" {
		return Caller{}, apperrors.Unauthorized("Missing user identity", nil)
	}
	p, err := s.repos.Profiles.Get(ctx, userID)
	if errors.Is(err, profile.ErrProfileNotFound) {
		return Caller{ID: userID}, nil
	}
	if err != nil {
		return Caller{}, s.fail("load_caller", err)
	}
	return Caller{ID: userID, Profile: p}, nil
}

// transact runs fn with repositories bound to a store transaction
func (s *Service) transact(ctx context.Context, fn func(ctx context.Context, repos *repository.Repositories) error) error {
	return s.store.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, repository.New(tx))
	})
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("Failed to publish event",
			logger.String("type", e.Type),
			logger.String("subject", e.Subject),
			logger.Err(err),
		)
	}
}

// fail translates err into an AppError and logs it at the level its kind
// deserves. Client mistakes are warnings, everything else is an error.
func (s *Service) fail(command string, err error) error {
	appErr := translate(err)
	if appErr.Status >= 500 {
		s.logger.Error("Command failed",
			logger.String("command", command),
			logger.Err(err),
		)
	} else {
		s.logger.Warn("Command rejected",
			logger.String("command", command),
			logger.String("code", appErr.Code),
			logger.String("reason", appErr.Error()),
		)
		s.nr.RecordCommandRejected(command, appErr.Code)
	}
	return appErr
}

// translate maps domain and store errors onto the application taxonomy
func translate(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		return apperrors.ErrProfileNotFound
	case errors.Is(err, profile.ErrRoleFixed):
		return apperrors.ErrRoleFixed
	case errors.Is(err, ride.ErrRideNotFound):
		return apperrors.ErrRideNotFound
	case errors.Is(err, ride.ErrNoSeats):
		return apperrors.ErrSeatsExhausted
	case errors.Is(err, ride.ErrNotActive):
		return apperrors.ErrRideNotActive
	case errors.Is(err, request.ErrRequestNotFound):
		return apperrors.ErrRequestNotFound
	case errors.Is(err, request.ErrInvalidTransition):
		return apperrors.ErrInvalidTransition
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return apperrors.ErrInsufficientFunds
	case errors.Is(err, wallet.ErrInvalidAmount):
		return apperrors.Validation("Amount must be greater than zero", "amount")
	case errors.Is(err, chat.ErrThreadNotFound):
		return apperrors.ErrThreadNotFound
	case errors.Is(err, chat.ErrEmptyMessage):
		return apperrors.Validation("Message text is required", "text")
	case errors.Is(err, chat.ErrNotParticipant):
		return apperrors.ErrNotOwner
	case errors.Is(err, store.ErrNotFound):
		return apperrors.NotFound("Document not found", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Internal("Request cancelled", err)
	}
	return apperrors.Internal("An unexpected error occurred", err)
}

func requireRegistered(c Caller) error {
	if c.Profile == nil {
		return apperrors.ErrNotRegistered
	}
	return nil
}

func requireDriver(c Caller) error {
	if err := requireRegistered(c); err != nil {
		return err
	}
	if !c.Profile.IsDriver() {
		return apperrors.ErrNotDriver
	}
	return nil
}

func requireRider(c Caller) error {
	if err := requireRegistered(c); err != nil {
		return err
	}
	if !c.Profile.IsRider() {
		return apperrors.ErrNotRider
	}
	return nil
}

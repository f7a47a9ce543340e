package marketplace

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
	"github.com/developerashishcanada/carpoolreact/internal/domain/wallet"
	"github.com/developerashishcanada/carpoolreact/internal/events"
	"github.com/developerashishcanada/carpoolreact/internal/repository"
	"github.com/developerashishcanada/carpoolreact/internal/service/matching"
	"github.com/developerashishcanada/carpoolreact/internal/view"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// OpenRequestInput describes a trip a rider wants but no ride offers yet
type OpenRequestInput struct {
	From  string
	To    string
	Stops []string
}

// RequestRide books a seat request on a ride. The duplicate check and the
// insert share one transaction, so a rider holds at most one pending or
// accepted request per ride.
func (s *Service) RequestRide(ctx context.Context, caller Caller, rideID string) (*request.Request, error) {
	if err := requireRider(caller); err != nil {
		return nil, s.fail("request_ride", err)
	}
	if strings.TrimSpace(rideID) == "" {
		return nil, s.fail("request_ride", apperrors.Validation("Ride id is required", "ride_id"))
	}

	var req *request.Request
	err := s.transact(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		rd, err := repos.Rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if rd.DriverID == caller.ID {
			return apperrors.Conflict("You cannot book your own ride", nil)
		}
		if !rd.IsActive() {
			return ride.ErrNotActive
		}
		if !rd.HasSeats() {
			return ride.ErrNoSeats
		}

		existing, err := repos.Requests.ListByRide(ctx, rideID)
		if err != nil {
			return err
		}
		for _, r := range existing {
			if r.Blocks(rideID, caller.ID) {
				return apperrors.ErrDuplicateRequest
			}
		}

		now := time.Now().UTC()
		req = &request.Request{
			ID:        uuid.NewString(),
			RideID:    rd.ID,
			RiderID:   caller.ID,
			RiderName: caller.Name(),
			DriverID:  rd.DriverID,
			From:      rd.From,
			To:        rd.To,
			Route:     append([]string(nil), rd.Route...),
			Status:    request.StatusPending,
			Price:     rd.PricePerSeat,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return repos.Requests.Create(ctx, req)
	})
	if err != nil {
		return nil, s.fail("request_ride", err)
	}

	s.logger.Info("Ride requested",
		logger.String("request_id", req.ID),
		logger.String("ride_id", req.RideID),
		logger.String("rider_id", req.RiderID),
	)
	s.publish(ctx, events.New(events.RequestCreated, req.ID, caller.ID, map[string]interface{}{
		"ride_id":   req.RideID,
		"driver_id": req.DriverID,
	}))
	return req, nil
}

// PostOpenRequest publishes a rider's trip with no ride attached. Drivers
// browse these and reach out over chat.
func (s *Service) PostOpenRequest(ctx context.Context, caller Caller, in OpenRequestInput) (*request.Request, error) {
	if err := requireRider(caller); err != nil {
		return nil, s.fail("post_open_request", err)
	}
	var missing []string
	if strings.TrimSpace(in.From) == "" {
		missing = append(missing, "from")
	}
	if strings.TrimSpace(in.To) == "" {
		missing = append(missing, "to")
	}
	if len(missing) > 0 {
		return nil, s.fail("post_open_request", apperrors.Validation("Missing required fields", missing...))
	}

	now := time.Now().UTC()
	req := &request.Request{
		ID:        uuid.NewString(),
		RiderID:   caller.ID,
		RiderName: caller.Name(),
		From:      strings.TrimSpace(in.From),
		To:        strings.TrimSpace(in.To),
		Route:     ride.BuildRoute(in.From, in.To, in.Stops),
		Status:    request.StatusSearching,
		Price:     decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.Requests.Create(ctx, req); err != nil {
		return nil, s.fail("post_open_request", err)
	}

	s.logger.Info("Open request posted",
		logger.String("request_id", req.ID),
		logger.String("rider_id", req.RiderID),
		logger.Strings("route", req.Route),
	)
	s.publish(ctx, events.New(events.RequestOpened, req.ID, caller.ID, map[string]interface{}{
		"from": req.From,
		"to":   req.To,
	}))
	return req, nil
}

// ListOpenRequests returns searching requests matching the criteria
func (s *Service) ListOpenRequests(ctx context.Context, criteria matching.Criteria) ([]*request.Request, error) {
	reqs, err := s.repos.Requests.ListOpen(ctx)
	if err != nil {
		return nil, s.fail("list_open_requests", err)
	}
	return matching.FilterOpenRequests(reqs, criteria), nil
}

// ListRequests returns the requests relevant to the caller: those on a
// driver's rides, or a rider's own. activeOnly drops finished requests.
func (s *Service) ListRequests(ctx context.Context, caller Caller, activeOnly bool) ([]*request.Request, error) {
	if err := requireRegistered(caller); err != nil {
		return nil, s.fail("list_requests", err)
	}

	var (
		reqs []*request.Request
		err  error
	)
	if caller.Profile.IsDriver() {
		reqs, err = s.repos.Requests.ListByDriver(ctx, caller.ID)
	} else {
		reqs, err = s.repos.Requests.ListByRider(ctx, caller.ID)
	}
	if err != nil {
		return nil, s.fail("list_requests", err)
	}
	if activeOnly {
		reqs = view.ActiveRequests(reqs)
	}
	return reqs, nil
}

// AcceptRequest accepts a pending request and takes one seat on its ride in
// the same transaction. When the last seat is gone the accept fails with a
// conflict and the request stays pending.
func (s *Service) AcceptRequest(ctx context.Context, caller Caller, requestID string) (*request.Request, error) {
	if err := requireDriver(caller); err != nil {
		return nil, s.fail("accept_request", err)
	}

	var (
		req *request.Request
		rd  *ride.Ride
	)
	err := s.transact(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		req, err = repos.Requests.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.IsOpen() {
			return apperrors.Conflict("Open requests are arranged over chat", nil)
		}
		rd, err = repos.Rides.GetByID(ctx, req.RideID)
		if err != nil {
			return err
		}
		if rd.DriverID != caller.ID {
			return apperrors.ErrNotOwner
		}
		if !req.Status.CanTransition(request.StatusAccepted) {
			return request.ErrInvalidTransition
		}
		if err := rd.TakeSeat(); err != nil {
			return err
		}
		if err := req.Transition(request.StatusAccepted); err != nil {
			return err
		}
		if err := repos.Requests.Update(ctx, req); err != nil {
			return err
		}
		return repos.Rides.Update(ctx, rd)
	})
	if err != nil {
		return nil, s.fail("accept_request", err)
	}

	s.logger.Info("Request accepted",
		logger.String("request_id", req.ID),
		logger.String("ride_id", rd.ID),
		logger.Int("seats_left", rd.AvailableSeats),
	)
	s.nr.RecordRequestAccepted(rd.ID, rd.AvailableSeats)
	s.publish(ctx, events.New(events.RequestAccepted, req.ID, caller.ID, map[string]interface{}{
		"ride_id":    rd.ID,
		"rider_id":   req.RiderID,
		"seats_left": rd.AvailableSeats,
	}))
	return req, nil
}

// RejectRequest turns down a pending request. Rejection is final.
func (s *Service) RejectRequest(ctx context.Context, caller Caller, requestID string) (*request.Request, error) {
	if err := requireDriver(caller); err != nil {
		return nil, s.fail("reject_request", err)
	}

	var req *request.Request
	err := s.transact(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		req, err = repos.Requests.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.IsOpen() || req.DriverID != caller.ID {
			return apperrors.ErrNotOwner
		}
		if err := req.Transition(request.StatusRejected); err != nil {
			return err
		}
		return repos.Requests.Update(ctx, req)
	})
	if err != nil {
		return nil, s.fail("reject_request", err)
	}

	s.logger.Info("Request rejected",
		logger.String("request_id", req.ID),
		logger.String("ride_id", req.RideID),
	)
	s.publish(ctx, events.New(events.RequestRejected, req.ID, caller.ID, map[string]interface{}{
		"ride_id":  req.RideID,
		"rider_id": req.RiderID,
	}))
	return req, nil
}

// CancelRequest withdraws the rider's own request. Only pending and
// searching requests can be cancelled; anything else is a conflict and
// nothing is written.
func (s *Service) CancelRequest(ctx context.Context, caller Caller, requestID string) (*request.Request, error) {
	if err := requireRegistered(caller); err != nil {
		return nil, s.fail("cancel_request", err)
	}

	var req *request.Request
	err := s.transact(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		req, err = repos.Requests.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.RiderID != caller.ID {
			return apperrors.ErrNotOwner
		}
		if err := req.Transition(request.StatusCancelled); err != nil {
			return err
		}
		return repos.Requests.Update(ctx, req)
	})
	if err != nil {
		return nil, s.fail("cancel_request", err)
	}

	s.logger.Info("Request cancelled",
		logger.String("request_id", req.ID),
		logger.String("rider_id", req.RiderID),
	)
	s.publish(ctx, events.New(events.RequestCancelled, req.ID, caller.ID, map[string]interface{}{
		"ride_id": req.RideID,
	}))
	return req, nil
}

// Settlement is the outcome of completing a ride for one rider
type Settlement struct {
	RideID         string          `json:"ride_id"`
	RiderID        string          `json:"rider_id"`
	Price          decimal.Decimal `json:"price"`
	DriverBalance  decimal.Decimal `json:"driver_balance"`
	RiderBalance   decimal.Decimal `json:"rider_balance"`
	CompletedCount int             `json:"completed_requests"`
}

// SettlementReference is the ledger reference of a ride completion. It
// doubles as the idempotency key: a second completion finds it and stops.
func SettlementReference(rideID, riderID string) string {
	return "complete:" + rideID + ":" + riderID
}

// CompleteRide marks the ride completed, completes the rider's accepted
// requests on it and moves price from the rider's wallet to the driver's.
// All of it commits together or not at all. The rider's balance may go
// negative.
func (s *Service) CompleteRide(ctx context.Context, caller Caller, rideID, riderID string, price decimal.Decimal) (*Settlement, error) {
	if err := requireDriver(caller); err != nil {
		return nil, s.fail("complete_ride", err)
	}
	var missing []string
	if strings.TrimSpace(rideID) == "" {
		missing = append(missing, "ride_id")
	}
	if strings.TrimSpace(riderID) == "" {
		missing = append(missing, "rider_id")
	}
	if !price.IsPositive() {
		missing = append(missing, "price")
	}
	if len(missing) > 0 {
		return nil, s.fail("complete_ride", apperrors.Validation("Missing or invalid completion fields", missing...))
	}

	reference := SettlementReference(rideID, riderID)
	var result *Settlement
	err := s.transact(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		// Reads first: Firestore transactions reject reads after writes.
		rd, err := repos.Rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if rd.DriverID != caller.ID {
			return apperrors.ErrNotOwner
		}
		settled, err := repos.Wallets.HasReference(ctx, reference)
		if err != nil {
			return err
		}
		if settled {
			return apperrors.ErrAlreadySettled
		}
		reqs, err := repos.Requests.ListByRide(ctx, rideID)
		if err != nil {
			return err
		}
		var accepted []*request.Request
		for _, r := range reqs {
			if r.RiderID == riderID && r.Status == request.StatusAccepted {
				accepted = append(accepted, r)
			}
		}
		if len(accepted) == 0 {
			return apperrors.ErrNoAcceptedRequest
		}
		driverWallet, _, err := repos.Wallets.Get(ctx, rd.DriverID)
		if err != nil {
			return err
		}
		riderWallet, _, err := repos.Wallets.Get(ctx, riderID)
		if err != nil {
			return err
		}

		rd.Complete()
		if err := repos.Rides.Update(ctx, rd); err != nil {
			return err
		}
		for _, r := range accepted {
			if err := r.Transition(request.StatusCompleted); err != nil {
				return err
			}
			if err := repos.Requests.Update(ctx, r); err != nil {
				return err
			}
		}

		credit, err := driverWallet.Credit(wallet.EntryRideCredit, price, reference)
		if err != nil {
			return err
		}
		debit, err := riderWallet.Debit(wallet.EntryRideDebit, price, reference, false)
		if err != nil {
			return err
		}
		for _, b := range []*wallet.Balance{driverWallet, riderWallet} {
			if err := repos.Wallets.Save(ctx, b); err != nil {
				return err
			}
		}
		for _, e := range []*wallet.Entry{credit, debit} {
			if err := repos.Wallets.AddEntry(ctx, e); err != nil {
				return err
			}
		}

		result = &Settlement{
			RideID:         rideID,
			RiderID:        riderID,
			Price:          price,
			DriverBalance:  driverWallet.Balance,
			RiderBalance:   riderWallet.Balance,
			CompletedCount: len(accepted),
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("complete_ride", err)
	}

	s.logger.Info("Ride completed",
		logger.String("ride_id", rideID),
		logger.String("rider_id", riderID),
		logger.Decimal("price", price),
	)
	s.nr.RecordRideCompleted(rideID, price)
	s.publish(ctx, events.New(events.RideCompleted, rideID, caller.ID, map[string]interface{}{
		"rider_id":  riderID,
		"price":     price.String(),
		"reference": reference,
	}))
	return result, nil
}

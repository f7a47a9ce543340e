package repository

import (
	"context"
	"sort"

	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/store"
)

// RequestRepository stores ride requests, bound and open.
type RequestRepository struct {
	s store.Session
}

// NewRequestRepository creates a request repository over s.
func NewRequestRepository(s store.Session) *RequestRepository {
	return &RequestRepository{s: s}
}

var _ request.Repository = (*RequestRepository)(nil)

// Create persists a new request under its id.
func (r *RequestRepository) Create(ctx context.Context, req *request.Request) error {
	return put(ctx, r.s, store.CollectionRequests, req.ID, req)
}

// GetByID retrieves a request by id.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*request.Request, error) {
	var req request.Request
	if err := get(ctx, r.s, store.CollectionRequests, id, request.ErrRequestNotFound, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// Update replaces a request.
func (r *RequestRepository) Update(ctx context.Context, req *request.Request) error {
	return put(ctx, r.s, store.CollectionRequests, req.ID, req)
}

// ListByRide returns every request made against a ride.
func (r *RequestRepository) ListByRide(ctx context.Context, rideID string) ([]*request.Request, error) {
	return r.list(ctx, store.Eq("ride_id", rideID))
}

// ListByRider returns the rider's requests.
func (r *RequestRepository) ListByRider(ctx context.Context, riderID string) ([]*request.Request, error) {
	return r.list(ctx, store.Eq("rider_id", riderID))
}

// ListByDriver returns requests made against the driver's rides.
func (r *RequestRepository) ListByDriver(ctx context.Context, driverID string) ([]*request.Request, error) {
	return r.list(ctx, store.Eq("driver_id", driverID))
}

// ListOpen returns open requests still searching for a driver.
func (r *RequestRepository) ListOpen(ctx context.Context) ([]*request.Request, error) {
	return r.list(ctx, store.Eq("status", string(request.StatusSearching)))
}

func (r *RequestRepository) list(ctx context.Context, filters ...store.Filter) ([]*request.Request, error) {
	reqs := make([]*request.Request, 0)
	err := list(ctx, r.s, store.CollectionRequests, func(d store.Data) error {
		var req request.Request
		if err := store.Decode(d, &req); err != nil {
			return err
		}
		reqs = append(reqs, &req)
		return nil
	}, filters...)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reqs, func(i, j int) bool {
		return reqs[i].CreatedAt.Before(reqs[j].CreatedAt)
	})
	return reqs, nil
}

package repository

import (
	"context"
	"sort"

	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
	"github.com/developerashishcanada/carpoolreact/internal/store"
)

// RideRepository stores posted rides.
type RideRepository struct {
	s store.Session
}

// NewRideRepository creates a ride repository over s.
func NewRideRepository(s store.Session) *RideRepository {
	return &RideRepository{s: s}
}

var _ ride.Repository = (*RideRepository)(nil)

// Create persists a new ride under its id.
func (r *RideRepository) Create(ctx context.Context, rd *ride.Ride) error {
	return put(ctx, r.s, store.CollectionRides, rd.ID, rd)
}

// GetByID retrieves a ride by id.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	var rd ride.Ride
	if err := get(ctx, r.s, store.CollectionRides, id, ride.ErrRideNotFound, &rd); err != nil {
		return nil, err
	}
	return &rd, nil
}

// Update replaces a ride.
func (r *RideRepository) Update(ctx context.Context, rd *ride.Ride) error {
	return put(ctx, r.s, store.CollectionRides, rd.ID, rd)
}

// ListActive returns active rides ordered by start time.
func (r *RideRepository) ListActive(ctx context.Context) ([]*ride.Ride, error) {
	return r.list(ctx, store.Eq("status", string(ride.StatusActive)))
}

// ListByDriver returns the driver's rides ordered by start time.
func (r *RideRepository) ListByDriver(ctx context.Context, driverID string) ([]*ride.Ride, error) {
	return r.list(ctx, store.Eq("driver_id", driverID))
}

func (r *RideRepository) list(ctx context.Context, filters ...store.Filter) ([]*ride.Ride, error) {
	rides := make([]*ride.Ride, 0)
	err := list(ctx, r.s, store.CollectionRides, func(d store.Data) error {
		var rd ride.Ride
		if err := store.Decode(d, &rd); err != nil {
			return err
		}
		rides = append(rides, &rd)
		return nil
	}, filters...)
	if err != nil {
		return nil, err
	}
	SortRides(rides)
	return rides, nil
}

// SortRides orders rides by start time, then id.
func SortRides(rides []*ride.Ride) {
	sort.SliceStable(rides, func(i, j int) bool {
		if !rides[i].StartTime.Equal(rides[j].StartTime) {
			return rides[i].StartTime.Before(rides[j].StartTime)
		}
		return rides[i].ID < rides[j].ID
	})
}

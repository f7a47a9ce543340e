package view

import (
	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
)

// ActiveRequests keeps requests that are still live: searching, pending or
// accepted. Cancelled, rejected and completed requests drop out.
func ActiveRequests(reqs []*request.Request) []*request.Request {
	return filterRequests(reqs, func(r *request.Request) bool { return r.Status.IsActive() })
}

// RequestsForDriver keeps requests made against the driver's rides
func RequestsForDriver(reqs []*request.Request, driverID string) []*request.Request {
	return filterRequests(reqs, func(r *request.Request) bool { return r.DriverID == driverID && !r.IsOpen() })
}

// RequestsForRider keeps the rider's own requests, bound and open
func RequestsForRider(reqs []*request.Request, riderID string) []*request.Request {
	return filterRequests(reqs, func(r *request.Request) bool { return r.RiderID == riderID })
}

// PendingForRide keeps the pending requests of one ride
func PendingForRide(reqs []*request.Request, rideID string) []*request.Request {
	return filterRequests(reqs, func(r *request.Request) bool {
		return r.RideID == rideID && r.Status == request.StatusPending
	})
}

func filterRequests(reqs []*request.Request, keep func(*request.Request) bool) []*request.Request {
	out := make([]*request.Request, 0, len(reqs))
	for _, r := range reqs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

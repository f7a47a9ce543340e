// Package view holds pure projections over store snapshots. Nothing here is
// patched incrementally: every projection is recomputed from the latest full
// snapshot.
package view

import (
	"sort"

	"github.com/developerashishcanada/carpoolreact/internal/domain/chat"
	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
)

// Chat entry kinds
const (
	KindRide = "ride"
	KindOpen = "open_request"
)

// ChatEntry is one line of a user's chat list
type ChatEntry struct {
	ThreadID        string `json:"thread_id"`
	Kind            string `json:"kind"`
	RideID          string `json:"ride_id,omitempty"`
	RequestID       string `json:"request_id"`
	CounterpartID   string `json:"counterpart_id"`
	CounterpartName string `json:"counterpart_name,omitempty"`
	From            string `json:"from"`
	To              string `json:"to"`
	RequestStatus   string `json:"request_status"`
}

// ChatList derives the chat list of userID. Accepted requests give one entry
// to the driver and one to the rider. Open searching requests give one entry
// to each driver who made contact, and the owning rider one entry per
// contacting driver. rides is only used to resolve driver names.
func ChatList(userID string, rides []*ride.Ride, reqs []*request.Request) []ChatEntry {
	driverNames := make(map[string]string, len(rides))
	for _, r := range rides {
		if r.DriverName != "" {
			driverNames[r.DriverID] = r.DriverName
		}
	}

	entries := make([]ChatEntry, 0)
	seen := make(map[string]bool)
	add := func(e ChatEntry) {
		if seen[e.ThreadID] {
			return
		}
		seen[e.ThreadID] = true
		entries = append(entries, e)
	}

	for _, req := range reqs {
		switch {
		case !req.IsOpen() && req.Status == request.StatusAccepted:
			entry := ChatEntry{
				ThreadID:      chat.ThreadID(req.RideID, req.RiderID),
				Kind:          KindRide,
				RideID:        req.RideID,
				RequestID:     req.ID,
				From:          req.From,
				To:            req.To,
				RequestStatus: string(req.Status),
			}
			if req.DriverID == userID {
				entry.CounterpartID = req.RiderID
				entry.CounterpartName = req.RiderName
				add(entry)
			} else if req.RiderID == userID {
				entry.CounterpartID = req.DriverID
				entry.CounterpartName = driverNames[req.DriverID]
				add(entry)
			}

		case req.IsOpen() && req.Status == request.StatusSearching:
			if req.WasContactedBy(userID) {
				add(ChatEntry{
					ThreadID:        chat.ThreadID(req.ID, userID),
					Kind:            KindOpen,
					RequestID:       req.ID,
					CounterpartID:   req.RiderID,
					CounterpartName: req.RiderName,
					From:            req.From,
					To:              req.To,
					RequestStatus:   string(req.Status),
				})
			}
			if req.RiderID == userID {
				for _, driverID := range req.ContactedBy {
					add(ChatEntry{
						ThreadID:        chat.ThreadID(req.ID, driverID),
						Kind:            KindOpen,
						RequestID:       req.ID,
						CounterpartID:   driverID,
						CounterpartName: driverNames[driverID],
						From:            req.From,
						To:              req.To,
						RequestStatus:   string(req.Status),
					})
				}
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ThreadID < entries[j].ThreadID })
	return entries
}

// Package matching decides which rides and open requests fit a search.
//
// Route overlap is a containment heuristic over place names, not geography:
// two routes overlap when some waypoint of one contains, or is contained in,
// some waypoint of the other after lower-casing. "Downtown" therefore matches
// "Toronto Downtown" but "Oakville" never matches "Burlington" however close
// they are.
package matching

import (
	"strings"

	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
)

// Criteria is a rider's search. Blank fields are not filtered on.
type Criteria struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Route []string `json:"route"`
}

// HasRoute reports whether the criteria carry at least one non-blank point
func (c Criteria) HasRoute() bool {
	return len(normalize(c.Route)) > 0
}

// Overlap reports whether any waypoint of a and any waypoint of b contain one
// another, ignoring case and surrounding space. Blank points are ignored and
// an empty side never overlaps.
func Overlap(a, b []string) bool {
	na, nb := normalize(a), normalize(b)
	for _, x := range na {
		for _, y := range nb {
			if strings.Contains(x, y) || strings.Contains(y, x) {
				return true
			}
		}
	}
	return false
}

// Matches reports whether a ride satisfies the criteria: it is active, has a
// free seat, its from/to contain the searched text, and its route overlaps
// the searched route when one is given.
func Matches(r *ride.Ride, c Criteria) bool {
	if r == nil || !r.IsActive() || !r.HasSeats() {
		return false
	}
	if !containsFold(r.From, c.From) || !containsFold(r.To, c.To) {
		return false
	}
	if c.HasRoute() && !Overlap(r.Route, c.Route) {
		return false
	}
	return true
}

// MatchesOpenRequest applies the same text and route rules to an open
// request that is still searching.
func MatchesOpenRequest(req *request.Request, c Criteria) bool {
	if req == nil || !req.IsOpen() || req.Status != request.StatusSearching {
		return false
	}
	if !containsFold(req.From, c.From) || !containsFold(req.To, c.To) {
		return false
	}
	if c.HasRoute() && !Overlap(req.Route, c.Route) {
		return false
	}
	return true
}

// FilterRides keeps the rides matching c, preserving order
func FilterRides(rides []*ride.Ride, c Criteria) []*ride.Ride {
	out := make([]*ride.Ride, 0, len(rides))
	for _, r := range rides {
		if Matches(r, c) {
			out = append(out, r)
		}
	}
	return out
}

// FilterOpenRequests keeps the open requests matching c, preserving order
func FilterOpenRequests(reqs []*request.Request, c Criteria) []*request.Request {
	out := make([]*request.Request, 0, len(reqs))
	for _, r := range reqs {
		if MatchesOpenRequest(r, c) {
			out = append(out, r)
		}
	}
	return out
}

// ParseRoute splits a comma separated route parameter
func ParseRoute(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return normalizeKeepCase(strings.Split(raw, ","))
}

func containsFold(field, query string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(field), query)
}

func normalize(points []string) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeKeepCase(points []string) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

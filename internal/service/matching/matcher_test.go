package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
)

func newRide(from, to string, seats int, stops ...string) *ride.Ride {
	return &ride.Ride{
		ID:             "ride-1",
		From:           from,
		To:             to,
		Stops:          stops,
		Route:          ride.BuildRoute(from, to, stops),
		StartTime:      time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC),
		AvailableSeats: seats,
		PricePerSeat:   decimal.NewFromInt(15),
		Status:         ride.StatusActive,
	}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		name string
		a    []string
		b    []string
		want bool
	}{
		{"exact", []string{"Toronto"}, []string{"Toronto"}, true},
		{"case insensitive containment", []string{"Downtown"}, []string{"downtown plaza"}, true},
		{"containment either way", []string{"Union Station Toronto"}, []string{"union station"}, true},
		{"one shared stop", []string{"Toronto", "Oakville", "Hamilton"}, []string{"Burlington", "oakville"}, true},
		{"no shared text", []string{"Oakville"}, []string{"Burlington"}, false},
		{"empty side", nil, []string{"Toronto"}, false},
		{"blank points ignored", []string{"  ", ""}, []string{"Toronto"}, false},
		{"surrounding space ignored", []string{" Mississauga "}, []string{"mississauga"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlap(tt.a, tt.b))
		})
	}
}

func TestOverlap_IsSymmetric(t *testing.T) {
	routes := [][]string{
		{"Toronto Downtown", "Mississauga"},
		{"downtown"},
		{"Brampton", "Square One"},
		{"square"},
		{},
		{"Oakville", "Hamilton"},
	}
	for _, a := range routes {
		for _, b := range routes {
			assert.Equal(t, Overlap(a, b), Overlap(b, a), "overlap(%v, %v)", a, b)
		}
	}
}

func TestMatches_TorontoDowntownScenario(t *testing.T) {
	r := newRide("Toronto Downtown", "Mississauga", 2)
	c := Criteria{From: "Downtown", To: "Mississauga"}

	assert.True(t, Matches(r, c))
	assert.Len(t, FilterRides([]*ride.Ride{r}, c), 1)
}

func TestMatches_WithoutRoutePoints(t *testing.T) {
	tests := []struct {
		name     string
		ride     *ride.Ride
		criteria Criteria
		want     bool
	}{
		{"from and to match", newRide("Toronto", "Ottawa", 3), Criteria{From: "tor", To: "OTT"}, true},
		{"blank criteria match anything with seats", newRide("Toronto", "Ottawa", 1), Criteria{}, true},
		{"from mismatch", newRide("Toronto", "Ottawa", 3), Criteria{From: "Kingston"}, false},
		{"to mismatch", newRide("Toronto", "Ottawa", 3), Criteria{To: "Montreal"}, false},
		{"no seats", newRide("Toronto", "Ottawa", 0), Criteria{From: "Toronto"}, false},
		{"blank route points skip overlap", newRide("Toronto", "Ottawa", 1), Criteria{Route: []string{" ", ""}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.ride, tt.criteria))
		})
	}
}

func TestMatches_RouteOverlap(t *testing.T) {
	r := newRide("Toronto", "Hamilton", 2, "Oakville", "  ", "Burlington")

	assert.True(t, Matches(r, Criteria{Route: []string{"burlington"}}))
	assert.False(t, Matches(r, Criteria{Route: []string{"Kitchener"}}))
}

func TestMatches_CompletedRideExcluded(t *testing.T) {
	r := newRide("Toronto", "Ottawa", 2)
	r.Complete()
	assert.False(t, Matches(r, Criteria{}))
}

func TestFilterOpenRequests(t *testing.T) {
	open := &request.Request{ID: "a", From: "Brampton", To: "Toronto Downtown", Route: []string{"Brampton", "Toronto Downtown"}, Status: request.StatusSearching}
	bound := &request.Request{ID: "b", RideID: "ride-1", From: "Brampton", To: "Toronto", Status: request.StatusPending}
	cancelled := &request.Request{ID: "c", From: "Brampton", To: "Toronto", Status: request.StatusCancelled}

	got := FilterOpenRequests([]*request.Request{open, bound, cancelled}, Criteria{Route: []string{"downtown"}})
	assert.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestParseRoute(t *testing.T) {
	assert.Nil(t, ParseRoute("  "))
	assert.Equal(t, []string{"Toronto", "Oakville"}, ParseRoute("Toronto, ,Oakville "))
}

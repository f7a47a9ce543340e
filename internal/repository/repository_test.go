package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developerashishcanada/carpoolreact/internal/domain/profile"
	"github.com/developerashishcanada/carpoolreact/internal/domain/request"
	"github.com/developerashishcanada/carpoolreact/internal/domain/ride"
	"github.com/developerashishcanada/carpoolreact/internal/domain/wallet"
	"github.com/developerashishcanada/carpoolreact/internal/store"
	"github.com/developerashishcanada/carpoolreact/internal/store/memory"
)

func TestProfileRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repos := New(memory.New("test"))

	_, err := repos.Profiles.Get(ctx, "u1")
	assert.ErrorIs(t, err, profile.ErrProfileNotFound)

	p := &profile.Profile{
		ID:                 "u1",
		Name:               "Dana",
		Role:               profile.RoleDriver,
		Vehicle:            &profile.Vehicle{Type: "Sedan", Color: "Blue", Plate: "ABC 123"},
		VerificationStatus: profile.VerificationPending,
	}
	require.NoError(t, repos.Profiles.Save(ctx, p))
	require.NoError(t, repos.Profiles.UpdateVerification(ctx, "u1", profile.VerificationVerified))

	got, err := repos.Profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Blue", got.Vehicle.Color)
	assert.Equal(t, profile.VerificationVerified, got.VerificationStatus)

	err = repos.Profiles.UpdateVerification(ctx, "missing", profile.VerificationVerified)
	assert.ErrorIs(t, err, profile.ErrProfileNotFound)
}

func TestRideRepository_ListsOrderedByStartTime(t *testing.T) {
	ctx := context.Background()
	repos := New(memory.New("test"))
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"late", "early", "done"} {
		rd := &ride.Ride{
			ID:             id,
			DriverID:       "d1",
			StartTime:      base.Add(time.Duration(2-i) * time.Hour),
			AvailableSeats: 2,
			PricePerSeat:   decimal.NewFromInt(15),
			Status:         ride.StatusActive,
		}
		if id == "done" {
			rd.Status = ride.StatusCompleted
		}
		require.NoError(t, repos.Rides.Create(ctx, rd))
	}

	active, err := repos.Rides.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "early", active[0].ID)
	assert.Equal(t, "late", active[1].ID)
	assert.True(t, decimal.NewFromInt(15).Equal(active[0].PricePerSeat))

	mine, err := repos.Rides.ListByDriver(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	_, err = repos.Rides.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, ride.ErrRideNotFound)
}

func TestRequestRepository_Filters(t *testing.T) {
	ctx := context.Background()
	repos := New(memory.New("test"))
	now := time.Now().UTC()

	reqs := []*request.Request{
		{ID: "a", RideID: "r1", RiderID: "u1", DriverID: "d1", Status: request.StatusPending, CreatedAt: now},
		{ID: "b", RideID: "r2", RiderID: "u1", DriverID: "d2", Status: request.StatusAccepted, CreatedAt: now.Add(time.Second)},
		{ID: "c", RiderID: "u2", Status: request.StatusSearching, CreatedAt: now.Add(2 * time.Second)},
	}
	for _, r := range reqs {
		require.NoError(t, repos.Requests.Create(ctx, r))
	}

	tests := []struct {
		name string
		list func() ([]*request.Request, error)
		want []string
	}{
		{"by ride", func() ([]*request.Request, error) { return repos.Requests.ListByRide(ctx, "r1") }, []string{"a"}},
		{"by rider", func() ([]*request.Request, error) { return repos.Requests.ListByRider(ctx, "u1") }, []string{"a", "b"}},
		{"by driver", func() ([]*request.Request, error) { return repos.Requests.ListByDriver(ctx, "d2") }, []string{"b"}},
		{"open", func() ([]*request.Request, error) { return repos.Requests.ListOpen(ctx) }, []string{"c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.list()
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestWalletRepository_LazyBalanceAndLedger(t *testing.T) {
	ctx := context.Background()
	s := memory.New("test")
	repos := New(s)

	b, found, err := repos.Wallets.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, b.Balance.IsZero())

	err = s.RunTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		w := NewWalletRepository(tx)
		entry, err := b.Credit(wallet.EntryDeposit, decimal.NewFromInt(40), "dep-1")
		if err != nil {
			return err
		}
		if err := w.Save(ctx, b); err != nil {
			return err
		}
		return w.AddEntry(ctx, entry)
	})
	require.NoError(t, err)

	b, found, err = repos.Wallets.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "40.00", b.Balance.StringFixed(2))

	has, err := repos.Wallets.HasReference(ctx, "dep-1")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = repos.Wallets.HasReference(ctx, "dep-2")
	require.NoError(t, err)
	assert.False(t, has)

	entries, err := repos.Wallets.Entries(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, wallet.EntryDeposit, entries[0].Kind)
	assert.Equal(t, "40", entries[0].BalanceAfter.String())
}

package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/developerashishcanada/carpoolreact/internal/domain/wallet"
	"github.com/developerashishcanada/carpoolreact/internal/store"
)

var errWalletMissing = errors.New("wallet missing")

// WalletRepository stores balances and their ledger.
type WalletRepository struct {
	s store.Session
}

// NewWalletRepository creates a wallet repository over s.
func NewWalletRepository(s store.Session) *WalletRepository {
	return &WalletRepository{s: s}
}

var _ wallet.Repository = (*WalletRepository)(nil)

// Get returns the stored balance. When none exists it returns a zero balance
// and false; the caller decides whether to persist it.
func (r *WalletRepository) Get(ctx context.Context, ownerID string) (*wallet.Balance, bool, error) {
	var b wallet.Balance
	err := get(ctx, r.s, store.CollectionWallets, ownerID, errWalletMissing, &b)
	if errors.Is(err, errWalletMissing) {
		return wallet.NewBalance(ownerID), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &b, true, nil
}

// Save replaces the balance document.
func (r *WalletRepository) Save(ctx context.Context, b *wallet.Balance) error {
	return put(ctx, r.s, store.CollectionWallets, b.OwnerID, b)
}

// AddEntry appends a ledger entry.
func (r *WalletRepository) AddEntry(ctx context.Context, e *wallet.Entry) error {
	return put(ctx, r.s, store.CollectionLedger, e.ID, e)
}

// Entries returns the owner's ledger, newest first.
func (r *WalletRepository) Entries(ctx context.Context, ownerID string) ([]*wallet.Entry, error) {
	entries := make([]*wallet.Entry, 0)
	err := list(ctx, r.s, store.CollectionLedger, func(d store.Data) error {
		var e wallet.Entry
		if err := store.Decode(d, &e); err != nil {
			return err
		}
		entries = append(entries, &e)
		return nil
	}, store.Eq("owner_id", ownerID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// HasReference reports whether any ledger entry carries the reference.
func (r *WalletRepository) HasReference(ctx context.Context, reference string) (bool, error) {
	found := false
	err := list(ctx, r.s, store.CollectionLedger, func(store.Data) error {
		found = true
		return nil
	}, store.Eq("reference", reference))
	return found, err
}

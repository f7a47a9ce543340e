package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger entry
type EntryKind string

const (
	EntryDeposit    EntryKind = "deposit"
	EntryWithdrawal EntryKind = "withdrawal"
	EntryRideCredit EntryKind = "ride_credit"
	EntryRideDebit  EntryKind = "ride_debit"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Balance is the current simulated funds of one user. It is signed: ride
// settlement may push a rider below zero.
type Balance struct {
	OwnerID   string          `json:"owner_id"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Entry is an immutable record of one balance movement
type Entry struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Kind          EntryKind       `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reference     string          `json:"reference,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Repository defines balance and ledger persistence
type Repository interface {
	// Get returns the balance, or a zero balance when none is stored yet
	Get(ctx context.Context, ownerID string) (*Balance, bool, error)
	Save(ctx context.Context, b *Balance) error
	AddEntry(ctx context.Context, e *Entry) error
	Entries(ctx context.Context, ownerID string) ([]*Entry, error)
	HasReference(ctx context.Context, reference string) (bool, error)
}

// NewBalance returns an empty balance for the owner
func NewBalance(ownerID string) *Balance {
	return &Balance{OwnerID: ownerID, Balance: decimal.Zero, UpdatedAt: time.Now().UTC()}
}

// Credit adds amount and returns the matching ledger entry
func (b *Balance) Credit(kind EntryKind, amount decimal.Decimal, reference string) (*Entry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	return b.apply(kind, amount, reference), nil
}

// Debit subtracts amount. With strict set the debit fails when it would
// overdraw the balance.
func (b *Balance) Debit(kind EntryKind, amount decimal.Decimal, reference string, strict bool) (*Entry, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if strict && amount.GreaterThan(b.Balance) {
		return nil, ErrInsufficientFunds
	}
	return b.apply(kind, amount.Neg(), reference), nil
}

func (b *Balance) apply(kind EntryKind, delta decimal.Decimal, reference string) *Entry {
	now := time.Now().UTC()
	before := b.Balance
	b.Balance = before.Add(delta)
	b.UpdatedAt = now
	return &Entry{
		ID:            uuid.NewString(),
		OwnerID:       b.OwnerID,
		Kind:          kind,
		Amount:        delta.Abs(),
		BalanceBefore: before,
		BalanceAfter:  b.Balance,
		Reference:     reference,
		CreatedAt:     now,
	}
}

package marketplace

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/developerashishcanada/carpoolreact/internal/domain/wallet"
	"github.com/developerashishcanada/carpoolreact/internal/events"
	"github.com/developerashishcanada/carpoolreact/internal/repository"
	apperrors "github.com/developerashishcanada/carpoolreact/pkg/errors"
	"github.com/developerashishcanada/carpoolreact/pkg/logger"
)

// Balance returns the owner's balance, creating a zero balance on first read.
// The lookup and the insert share one transaction so a concurrent deposit or
// settlement is never overwritten by the zero document.
func (s *Service) Balance(ctx context.Context, ownerID string) (*wallet.Balance, error) {
	var (
		b       *wallet.Balance
		created bool
	)
	err := s.transact(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var (
			found bool
			err   error
		)
		b, found, err = repos.Wallets.Get(ctx, ownerID)
		if err != nil || found {
			return err
		}
		created = true
		return repos.Wallets.Save(ctx, b)
	})
	if err != nil {
		return nil, s.fail("balance", err)
	}
	if created {
		s.logger.Debug("Wallet created", logger.String("owner_id", ownerID))
	}
	return b, nil
}

// History returns the owner's ledger, newest first
func (s *Service) History(ctx context.Context, ownerID string) ([]*wallet.Entry, error) {
	entries, err := s.repos.Wallets.Entries(ctx, ownerID)
	if err != nil {
		return nil, s.fail("wallet_history", err)
	}
	return entries, nil
}

// Deposit adds simulated funds to the caller's wallet
func (s *Service) Deposit(ctx context.Context, caller Caller, amount decimal.Decimal) (*wallet.Balance, error) {
	return s.move(ctx, "deposit", caller, amount, func(b *wallet.Balance, ref string) (*wallet.Entry, error) {
		return b.Credit(wallet.EntryDeposit, amount, ref)
	})
}

// Withdraw takes funds out of the caller's wallet. It fails with insufficient
// funds when amount exceeds the balance, leaving the balance untouched.
func (s *Service) Withdraw(ctx context.Context, caller Caller, amount decimal.Decimal) (*wallet.Balance, error) {
	return s.move(ctx, "withdraw", caller, amount, func(b *wallet.Balance, ref string) (*wallet.Entry, error) {
		return b.Debit(wallet.EntryWithdrawal, amount, ref, true)
	})
}

func (s *Service) move(ctx context.Context, command string, caller Caller, amount decimal.Decimal, apply func(*wallet.Balance, string) (*wallet.Entry, error)) (*wallet.Balance, error) {
	if caller.ID == "" {
		return nil, s.fail(command, apperrors.Unauthorized("Missing user identity", nil))
	}
	if !amount.IsPositive() {
		return nil, s.fail(command, apperrors.Validation("Amount must be greater than zero", "amount"))
	}

	reference := command + ":" + uuid.NewString()
	var (
		balance *wallet.Balance
		entry   *wallet.Entry
	)
	err := s.transact(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		balance, _, err = repos.Wallets.Get(ctx, caller.ID)
		if err != nil {
			return err
		}
		entry, err = apply(balance, reference)
		if err != nil {
			return err
		}
		if err := repos.Wallets.Save(ctx, balance); err != nil {
			return err
		}
		return repos.Wallets.AddEntry(ctx, entry)
	})
	if err != nil {
		return nil, s.fail(command, err)
	}

	s.logger.Info("Wallet updated",
		logger.String("owner_id", caller.ID),
		logger.String("kind", string(entry.Kind)),
		logger.Decimal("amount", amount),
		logger.Decimal("balance", balance.Balance),
	)
	s.nr.RecordWalletMovement(string(entry.Kind), amount)

	eventType := events.WalletDeposit
	if entry.Kind == wallet.EntryWithdrawal {
		eventType = events.WalletWithdrawal
	}
	s.publish(ctx, events.New(eventType, caller.ID, caller.ID, map[string]interface{}{
		"amount":    amount.String(),
		"reference": reference,
	}))
	return balance, nil
}

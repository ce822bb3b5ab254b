package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetWallet returns the user's wallet without creating one. Callers that
// must observe a wallet for a brand-new user get the zero snapshot.
func (s *Store) GetWallet(ctx context.Context, userID uuid.UUID) (Wallet, error) {
	var w Wallet
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, available, locked, updated_at
		FROM wallets
		WHERE user_id = $1
	`, userID)
	if err := row.Scan(&w.ID, &w.UserID, &w.Available, &w.Locked, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{UserID: userID}, nil
		}
		return Wallet{}, err
	}
	return w, nil
}

// Deposit credits available funds and appends a deposit entry, all in one
// transaction.
func (s *Store) Deposit(ctx context.Context, userID uuid.UUID, amount int64) (Wallet, error) {
	if amount <= 0 {
		return Wallet{}, ErrInvalidAmount
	}

	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return Wallet{}, err
	}
	committed := false
	defer cleanup(&committed)

	w, err := s.getWalletForUpdate(ctx, tx, userID)
	if err != nil {
		return Wallet{}, err
	}

	w.Available += amount
	if err := s.saveWallet(ctx, tx, w); err != nil {
		return Wallet{}, err
	}
	if _, err := s.appendEntry(ctx, tx, w.ID, EntryDeposit, amount, uuid.Nil); err != nil {
		return Wallet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}
	committed = true
	return w, nil
}

// Withdraw debits available funds, failing when the balance cannot cover the
// amount.
func (s *Store) Withdraw(ctx context.Context, userID uuid.UUID, amount int64) (Wallet, error) {
	if amount <= 0 {
		return Wallet{}, ErrInvalidAmount
	}

	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return Wallet{}, err
	}
	committed := false
	defer cleanup(&committed)

	w, err := s.getWalletForUpdate(ctx, tx, userID)
	if err != nil {
		return Wallet{}, err
	}
	if amount > w.Available {
		return Wallet{}, ErrInsufficientFunds
	}

	w.Available -= amount
	if err := s.saveWallet(ctx, tx, w); err != nil {
		return Wallet{}, err
	}
	if _, err := s.appendEntry(ctx, tx, w.ID, EntryWithdraw, amount, uuid.Nil); err != nil {
		return Wallet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}
	committed = true
	return w, nil
}

// Lock moves funds from available to locked. Total is unchanged; the
// reference id ties the entry to the circle the funds are committed to.
func (s *Store) Lock(ctx context.Context, userID uuid.UUID, amount int64, referenceID uuid.UUID) (Wallet, error) {
	if amount <= 0 {
		return Wallet{}, ErrInvalidAmount
	}

	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return Wallet{}, err
	}
	committed := false
	defer cleanup(&committed)

	w, err := s.lockInTx(ctx, tx, userID, amount, referenceID)
	if err != nil {
		return Wallet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}
	committed = true
	return w, nil
}

// lockInTx is the shared body of Lock, JoinCommit and Contribute: those run
// it inside their own wider transactions.
func (s *Store) lockInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, referenceID uuid.UUID) (Wallet, error) {
	w, err := s.getWalletForUpdate(ctx, tx, userID)
	if err != nil {
		return Wallet{}, err
	}
	if amount > w.Available {
		return Wallet{}, ErrInsufficientFunds
	}

	w.Available -= amount
	w.Locked += amount
	if err := s.saveWallet(ctx, tx, w); err != nil {
		return Wallet{}, err
	}
	if _, err := s.appendEntry(ctx, tx, w.ID, EntryLock, amount, referenceID); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// Unlock consumes locked funds: they leave both locked and total, they do
// not return to available. AdvanceCycle pairs this with the recipient credit
// inside one transaction; the standalone form exists for settlement tooling.
func (s *Store) Unlock(ctx context.Context, userID uuid.UUID, amount int64, referenceID uuid.UUID) (Wallet, error) {
	if amount <= 0 {
		return Wallet{}, ErrInvalidAmount
	}

	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return Wallet{}, err
	}
	committed := false
	defer cleanup(&committed)

	w, err := s.debitLockedInTx(ctx, tx, userID, amount, EntryUnlock, referenceID)
	if err != nil {
		return Wallet{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Wallet{}, err
	}
	committed = true
	return w, nil
}

// debitLockedInTx removes funds from the locked balance without returning
// them to available. The kind distinguishes a payout-settling contribution
// from a standalone unlock.
func (s *Store) debitLockedInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, kind string, referenceID uuid.UUID) (Wallet, error) {
	w, err := s.getWalletForUpdate(ctx, tx, userID)
	if err != nil {
		return Wallet{}, err
	}
	if amount > w.Locked {
		s.logger.Error("locked balance below contribution",
			"user_id", userID.String(), "locked", w.Locked, "amount", amount)
		return Wallet{}, fmt.Errorf("%w: locked %d below contribution %d", ErrInvariantViolation, w.Locked, amount)
	}

	w.Locked -= amount
	if err := s.saveWallet(ctx, tx, w); err != nil {
		return Wallet{}, err
	}
	if _, err := s.appendEntry(ctx, tx, w.ID, kind, amount, referenceID); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// creditAvailableInTx credits the payout to the recipient inside the advance
// transaction.
func (s *Store) creditAvailableInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int64, referenceID uuid.UUID) (Wallet, error) {
	w, err := s.getWalletForUpdate(ctx, tx, userID)
	if err != nil {
		return Wallet{}, err
	}

	w.Available += amount
	if err := s.saveWallet(ctx, tx, w); err != nil {
		return Wallet{}, err
	}
	if _, err := s.appendEntry(ctx, tx, w.ID, EntryPayout, amount, referenceID); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// ListEntries returns the newest ledger entries for the user's wallet.
func (s *Store) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.wallet_id, e.kind, e.amount, e.reference_id, e.created_at
		FROM ledger_entries e
		JOIN wallets w ON w.id = e.wallet_id
		WHERE w.user_id = $1
		ORDER BY e.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var ref *uuid.UUID
		if err := rows.Scan(&e.ID, &e.WalletID, &e.Kind, &e.Amount, &ref, &e.CreatedAt); err != nil {
			return nil, err
		}
		if ref != nil {
			e.ReferenceID = *ref
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// begin opens a transaction with the pattern used everywhere in this store:
// the caller sets *committed after a successful Commit and the deferred
// rollback is a no-op from then on.
func (s *Store) begin(ctx context.Context) (pgx.Tx, func(*bool), error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func(committed *bool) {
		if !*committed {
			_ = tx.Rollback(ctx)
		}
	}
	return tx, cleanup, nil
}

// getWalletForUpdate locks the wallet row for the rest of the transaction,
// creating it lazily on first touch. All single-wallet operations serialize
// on this row lock.
func (s *Store) getWalletForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (Wallet, error) {
	var w Wallet
	row := tx.QueryRow(ctx, `
		SELECT id, user_id, available, locked, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	err := row.Scan(&w.ID, &w.UserID, &w.Available, &w.Locked, &w.UpdatedAt)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, err
	}

	now := time.Now().UTC()
	w = Wallet{ID: uuid.New(), UserID: userID, UpdatedAt: now}
	if _, err := tx.Exec(ctx, `
		INSERT INTO wallets (id, user_id, available, locked, updated_at)
		VALUES ($1, $2, 0, 0, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, w.ID, userID, now); err != nil {
		return Wallet{}, err
	}

	// A concurrent insert may have won; re-read under the lock either way.
	row = tx.QueryRow(ctx, `
		SELECT id, user_id, available, locked, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err := row.Scan(&w.ID, &w.UserID, &w.Available, &w.Locked, &w.UpdatedAt); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

// saveWallet writes the mutated balances back and rejects any state that
// breaks the ledger invariants before it can be committed.
func (s *Store) saveWallet(ctx context.Context, tx pgx.Tx, w Wallet) error {
	if w.Available < 0 || w.Locked < 0 {
		s.logger.Error("wallet invariant violated",
			"wallet_id", w.ID.String(),
			"available", w.Available,
			"locked", w.Locked,
		)
		return ErrInvariantViolation
	}
	now := time.Now().UTC()
	_, err := tx.Exec(ctx, `
		UPDATE wallets
		SET available = $1, locked = $2, updated_at = $3
		WHERE id = $4
	`, w.Available, w.Locked, now, w.ID)
	return err
}

// appendEntry records one immutable ledger entry inside the caller's
// transaction.
func (s *Store) appendEntry(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, kind string, amount int64, referenceID uuid.UUID) (LedgerEntry, error) {
	entry := LedgerEntry{
		ID:          uuid.New(),
		WalletID:    walletID,
		Kind:        kind,
		Amount:      amount,
		ReferenceID: referenceID,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, wallet_id, kind, amount, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.WalletID, entry.Kind, entry.Amount, nullableUUID(entry.ReferenceID), entry.CreatedAt)
	if err != nil {
		return LedgerEntry{}, err
	}
	return entry, nil
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

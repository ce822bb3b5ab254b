package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) (User, error) {
	var u User
	row := s.pool.QueryRow(ctx, `
		SELECT id, email, verification_level, active, created_at
		FROM users
		WHERE id = $1
	`, userID)
	if err := row.Scan(&u.ID, &u.Email, &u.VerificationLevel, &u.Active, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

// CreateUser registers a user at verification level 1. Sign-up itself lives
// with the auth provider; this records the ledger-side identity.
func (s *Store) CreateUser(ctx context.Context, id uuid.UUID, email string) (User, error) {
	now := time.Now().UTC()
	u := User{ID: id, Email: email, VerificationLevel: 1, Active: true, CreatedAt: now}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, verification_level, active, created_at)
		VALUES ($1, $2, 1, true, $3)
		ON CONFLICT (id) DO NOTHING
	`, u.ID, u.Email, u.CreatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// SetVerificationLevel is the collaborator contract behind KYC approval: set
// the level and settle any pending submission for it in one transaction.
func (s *Store) SetVerificationLevel(ctx context.Context, userID uuid.UUID, level int) (User, error) {
	if level < 1 || level > 3 {
		return User{}, ErrInvalidAmount
	}

	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return User{}, err
	}
	committed := false
	defer cleanup(&committed)

	tag, err := tx.Exec(ctx, `
		UPDATE users SET verification_level = $1 WHERE id = $2
	`, level, userID)
	if err != nil {
		return User{}, err
	}
	if tag.RowsAffected() == 0 {
		return User{}, ErrUserNotFound
	}

	if _, err := tx.Exec(ctx, `
		UPDATE kyc_submissions
		SET status = 'approved'
		WHERE user_id = $1 AND tier_requested = $2 AND status = 'pending'
	`, userID, level); err != nil {
		return User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	committed = true

	return s.GetUser(ctx, userID)
}

// SubmitKYC records a pending tier-upgrade request. Document handling is the
// collaborator's problem; only the submission state lives here.
func (s *Store) SubmitKYC(ctx context.Context, userID uuid.UUID, tierRequested int) (KYCSubmission, error) {
	if tierRequested < 2 || tierRequested > 3 {
		return KYCSubmission{}, ErrInvalidAmount
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return KYCSubmission{}, err
	}

	sub := KYCSubmission{
		ID:            uuid.New(),
		UserID:        userID,
		TierRequested: tierRequested,
		Status:        KYCPending,
		SubmittedAt:   time.Now().UTC(),
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO kyc_submissions (id, user_id, tier_requested, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sub.ID, sub.UserID, sub.TierRequested, sub.Status, sub.SubmittedAt); err != nil {
		return KYCSubmission{}, err
	}
	return sub, nil
}

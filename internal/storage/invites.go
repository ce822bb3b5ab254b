package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GenerateInvite issues a fresh single-use invite for the circle. Only the
// head may issue one, and only when no live invite exists.
func (s *Store) GenerateInvite(ctx context.Context, ajoID, requesterID uuid.UUID, ttl time.Duration) (Invite, error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return Invite{}, err
	}
	committed := false
	defer cleanup(&committed)

	// Serialize invite issuance per circle so two heads' tabs cannot both
	// pass the live-invite check.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "invite:"+ajoID.String()); err != nil {
		return Invite{}, err
	}

	ajo, err := s.getAjoInTx(ctx, tx, ajoID, false)
	if err != nil {
		return Invite{}, err
	}
	if ajo.CreatedBy != requesterID {
		return Invite{}, ErrForbidden
	}

	now := time.Now().UTC()
	var liveCount int
	row := tx.QueryRow(ctx, `
		SELECT count(*) FROM invites
		WHERE ajo_id = $1 AND consumed = false AND expires_at > $2
	`, ajoID, now)
	if err := row.Scan(&liveCount); err != nil {
		return Invite{}, err
	}
	if liveCount > 0 {
		return Invite{}, ErrInviteAlreadyActive
	}

	token, err := newInviteToken()
	if err != nil {
		return Invite{}, err
	}

	invite := Invite{
		ID:        uuid.New(),
		AjoID:     ajoID,
		Token:     token,
		CreatedBy: requesterID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO invites (id, ajo_id, token, created_by, expires_at, consumed, created_at)
		VALUES ($1, $2, $3, $4, $5, false, $6)
	`, invite.ID, invite.AjoID, invite.Token, invite.CreatedBy, invite.ExpiresAt, invite.CreatedAt); err != nil {
		return Invite{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Invite{}, err
	}
	committed = true
	return invite, nil
}

// RedeemInvite consumes the token and opens a pending join request as one
// atomic step, so concurrent redeems of the same token produce exactly one
// request.
func (s *Store) RedeemInvite(ctx context.Context, token string, userID uuid.UUID) (JoinRequest, error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return JoinRequest{}, err
	}
	committed := false
	defer cleanup(&committed)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "redeem:"+token); err != nil {
		return JoinRequest{}, err
	}

	var invite Invite
	row := tx.QueryRow(ctx, `
		SELECT id, ajo_id, token, created_by, expires_at, consumed, created_at
		FROM invites
		WHERE token = $1
		FOR UPDATE
	`, token)
	if err := row.Scan(&invite.ID, &invite.AjoID, &invite.Token, &invite.CreatedBy, &invite.ExpiresAt, &invite.Consumed, &invite.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JoinRequest{}, ErrInviteNotFound
		}
		return JoinRequest{}, err
	}

	now := time.Now().UTC()
	if invite.Consumed {
		// Consumed tokens behave like missing ones for redeemers.
		return JoinRequest{}, ErrInviteNotFound
	}
	if now.After(invite.ExpiresAt) {
		return JoinRequest{}, ErrInviteExpired
	}
	if invite.CreatedBy == userID {
		return JoinRequest{}, ErrSelfInviteForbidden
	}

	member, err := s.membershipExists(ctx, tx, invite.AjoID, userID)
	if err != nil {
		return JoinRequest{}, err
	}
	if member {
		return JoinRequest{}, ErrAlreadyMember
	}

	if _, err := tx.Exec(ctx, `
		UPDATE invites SET consumed = true WHERE id = $1
	`, invite.ID); err != nil {
		return JoinRequest{}, err
	}

	request := JoinRequest{
		ID:        uuid.New(),
		AjoID:     invite.AjoID,
		UserID:    userID,
		Status:    JoinRequestPending,
		CreatedAt: now,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO join_requests (id, ajo_id, user_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, request.ID, request.AjoID, request.UserID, request.Status, request.CreatedAt); err != nil {
		return JoinRequest{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return JoinRequest{}, err
	}
	committed = true
	return request, nil
}

// DecideJoinRequest settles a pending request. Approval inserts the
// membership row in the same transaction; a terminal request is never
// re-decided.
func (s *Store) DecideJoinRequest(ctx context.Context, requestID, deciderID uuid.UUID, approve bool) (JoinRequest, error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return JoinRequest{}, err
	}
	committed := false
	defer cleanup(&committed)

	var request JoinRequest
	row := tx.QueryRow(ctx, `
		SELECT id, ajo_id, user_id, status, created_at, decided_at
		FROM join_requests
		WHERE id = $1
		FOR UPDATE
	`, requestID)
	if err := row.Scan(&request.ID, &request.AjoID, &request.UserID, &request.Status, &request.CreatedAt, &request.DecidedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JoinRequest{}, ErrRequestNotFound
		}
		return JoinRequest{}, err
	}

	ajo, err := s.getAjoInTx(ctx, tx, request.AjoID, false)
	if err != nil {
		return JoinRequest{}, err
	}
	if ajo.CreatedBy != deciderID {
		return JoinRequest{}, ErrForbidden
	}
	if request.Status != JoinRequestPending {
		return JoinRequest{}, ErrAlreadyDecided
	}

	now := time.Now().UTC()
	status := JoinRequestDeclined
	if approve {
		status = JoinRequestApproved
		if _, err := tx.Exec(ctx, `
			INSERT INTO memberships (ajo_id, user_id, is_head, locked_contribution, payout_due, created_at)
			VALUES ($1, $2, false, 0, false, $3)
		`, request.AjoID, request.UserID, now); err != nil {
			if isUniqueViolation(err) {
				return JoinRequest{}, ErrAlreadyMember
			}
			return JoinRequest{}, err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE join_requests SET status = $1, decided_at = $2 WHERE id = $3
	`, status, now, request.ID); err != nil {
		return JoinRequest{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return JoinRequest{}, err
	}
	committed = true

	request.Status = status
	request.DecidedAt = &now
	return request, nil
}

func (s *Store) membershipExists(ctx context.Context, tx pgx.Tx, ajoID, userID uuid.UUID) (bool, error) {
	var count int
	row := tx.QueryRow(ctx, `
		SELECT count(*) FROM memberships WHERE ajo_id = $1 AND user_id = $2
	`, ajoID, userID)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func newInviteToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate invite token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

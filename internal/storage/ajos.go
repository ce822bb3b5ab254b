package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateAjo inserts the circle and its head membership together.
func (s *Store) CreateAjo(ctx context.Context, creatorID uuid.UUID, name string, cycleAmount int64, cycleDuration int) (Ajo, error) {
	if cycleAmount <= 0 || cycleDuration <= 0 {
		return Ajo{}, ErrInvalidAmount
	}

	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return Ajo{}, err
	}
	committed := false
	defer cleanup(&committed)

	now := time.Now().UTC()
	ajo := Ajo{
		ID:            uuid.New(),
		Name:          name,
		CreatedBy:     creatorID,
		CycleAmount:   cycleAmount,
		CycleDuration: cycleDuration,
		CurrentCycle:  1,
		CreatedAt:     now,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO ajos (id, name, created_by, cycle_amount, cycle_duration, current_cycle, created_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6)
	`, ajo.ID, ajo.Name, ajo.CreatedBy, ajo.CycleAmount, ajo.CycleDuration, ajo.CreatedAt); err != nil {
		return Ajo{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO memberships (ajo_id, user_id, is_head, locked_contribution, payout_due, created_at)
		VALUES ($1, $2, true, 0, false, $3)
	`, ajo.ID, creatorID, now); err != nil {
		return Ajo{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Ajo{}, err
	}
	committed = true
	return ajo, nil
}

func (s *Store) GetAjo(ctx context.Context, ajoID uuid.UUID) (Ajo, error) {
	var ajo Ajo
	var lastPaid *uuid.UUID
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, created_by, cycle_amount, cycle_duration, current_cycle, last_paid_member_id, created_at
		FROM ajos
		WHERE id = $1
	`, ajoID)
	if err := row.Scan(&ajo.ID, &ajo.Name, &ajo.CreatedBy, &ajo.CycleAmount, &ajo.CycleDuration, &ajo.CurrentCycle, &lastPaid, &ajo.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ajo{}, ErrAjoNotFound
		}
		return Ajo{}, err
	}
	if lastPaid != nil {
		ajo.LastPaidMemberID = *lastPaid
	}
	return ajo, nil
}

func (s *Store) getAjoInTx(ctx context.Context, tx pgx.Tx, ajoID uuid.UUID, forUpdate bool) (Ajo, error) {
	q := `
		SELECT id, name, created_by, cycle_amount, cycle_duration, current_cycle, last_paid_member_id, created_at
		FROM ajos
		WHERE id = $1`
	if forUpdate {
		q += `
		FOR UPDATE`
	}
	var ajo Ajo
	var lastPaid *uuid.UUID
	row := tx.QueryRow(ctx, q, ajoID)
	if err := row.Scan(&ajo.ID, &ajo.Name, &ajo.CreatedBy, &ajo.CycleAmount, &ajo.CycleDuration, &ajo.CurrentCycle, &lastPaid, &ajo.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ajo{}, ErrAjoNotFound
		}
		return Ajo{}, err
	}
	if lastPaid != nil {
		ajo.LastPaidMemberID = *lastPaid
	}
	return ajo, nil
}

// Contribute tops the member's locked contribution up to the circle's cycle
// amount. Already covered is a no-op; only the shortfall is locked. The same
// per-circle advisory lock used by AdvanceCycle keeps contributions from
// interleaving with an advance.
func (s *Store) Contribute(ctx context.Context, ajoID, userID uuid.UUID) (Membership, Wallet, error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return Membership{}, Wallet{}, err
	}
	committed := false
	defer cleanup(&committed)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "ajo:"+ajoID.String()); err != nil {
		return Membership{}, Wallet{}, err
	}

	ajo, err := s.getAjoInTx(ctx, tx, ajoID, false)
	if err != nil {
		return Membership{}, Wallet{}, err
	}

	var m Membership
	row := tx.QueryRow(ctx, `
		SELECT ajo_id, user_id, is_head, locked_contribution, payout_due, created_at
		FROM memberships
		WHERE ajo_id = $1 AND user_id = $2
		FOR UPDATE
	`, ajoID, userID)
	if err := row.Scan(&m.AjoID, &m.UserID, &m.IsHead, &m.LockedContribution, &m.PayoutDue, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, Wallet{}, ErrNotMember
		}
		return Membership{}, Wallet{}, err
	}

	shortfall := ajo.CycleAmount - m.LockedContribution
	var w Wallet
	if shortfall <= 0 {
		w, err = s.getWalletForUpdate(ctx, tx, userID)
		if err != nil {
			return Membership{}, Wallet{}, err
		}
	} else {
		w, err = s.lockInTx(ctx, tx, userID, shortfall, ajoID)
		if err != nil {
			return Membership{}, Wallet{}, err
		}
		m.LockedContribution = ajo.CycleAmount
		if _, err := tx.Exec(ctx, `
			UPDATE memberships SET locked_contribution = $1 WHERE ajo_id = $2 AND user_id = $3
		`, m.LockedContribution, ajoID, userID); err != nil {
			return Membership{}, Wallet{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Membership{}, Wallet{}, err
	}
	committed = true
	return m, w, nil
}

// AdvanceCycle settles one cycle as a single transaction: pay the due
// member, zero every contribution including a contributing head's, rotate
// payout_due among the non-head members, bump the counter. The per-circle
// advisory lock makes a concurrent advance fail fast instead of queueing a
// double payout; Contribute holds the same key, so an advance racing an
// in-flight contribution also reports ErrCycleAdvancing rather than waiting.
func (s *Store) AdvanceCycle(ctx context.Context, ajoID, deciderID uuid.UUID) (AdvanceResult, error) {
	tx, cleanup, err := s.begin(ctx)
	if err != nil {
		return AdvanceResult{}, err
	}
	committed := false
	defer cleanup(&committed)

	var locked bool
	row := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock(hashtext($1))`, "ajo:"+ajoID.String())
	if err := row.Scan(&locked); err != nil {
		return AdvanceResult{}, err
	}
	if !locked {
		return AdvanceResult{}, ErrCycleAdvancing
	}

	ajo, err := s.getAjoInTx(ctx, tx, ajoID, true)
	if err != nil {
		return AdvanceResult{}, err
	}
	if ajo.CreatedBy != deciderID {
		return AdvanceResult{}, ErrForbidden
	}

	members, err := s.listMembersInTx(ctx, tx, ajoID)
	if err != nil {
		return AdvanceResult{}, err
	}
	// The head may contribute to the pool but never receives a payout, so
	// rotation runs over the non-head members only.
	var rotation []Membership
	for _, m := range members {
		if !m.IsHead {
			rotation = append(rotation, m)
		}
	}
	if len(rotation) == 0 {
		return AdvanceResult{}, ErrNoMembers
	}

	// Outgoing recipient: the payout_due holder, or the first member by
	// join order on the very first advance.
	recipient := rotation[0]
	recipientIdx := 0
	for i, m := range rotation {
		if m.PayoutDue {
			recipient = m
			recipientIdx = i
			break
		}
	}

	var payout int64
	contributors := 0
	for _, m := range members {
		if m.LockedContribution <= 0 {
			continue
		}
		if _, err := s.debitLockedInTx(ctx, tx, m.UserID, m.LockedContribution, EntryContribution, ajoID); err != nil {
			return AdvanceResult{}, err
		}
		payout += m.LockedContribution
		contributors++
	}
	if payout > 0 {
		if _, err := s.creditAvailableInTx(ctx, tx, recipient.UserID, payout, ajoID); err != nil {
			return AdvanceResult{}, err
		}
	}

	// Clear first, then mark the next member: the partial unique index on
	// payout_due would reject a single statement that flips rows in the
	// wrong order.
	next := rotation[(recipientIdx+1)%len(rotation)]
	if _, err := tx.Exec(ctx, `
		UPDATE memberships
		SET locked_contribution = 0, payout_due = false
		WHERE ajo_id = $1
	`, ajoID); err != nil {
		return AdvanceResult{}, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE memberships SET payout_due = true WHERE ajo_id = $1 AND user_id = $2
	`, ajoID, next.UserID); err != nil {
		return AdvanceResult{}, err
	}

	newCycle := ajo.CurrentCycle + 1
	if _, err := tx.Exec(ctx, `
		UPDATE ajos SET current_cycle = $1, last_paid_member_id = $2 WHERE id = $3
	`, newCycle, recipient.UserID, ajoID); err != nil {
		return AdvanceResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return AdvanceResult{}, err
	}
	committed = true

	return AdvanceResult{
		AjoID:            ajoID,
		NewCycle:         newCycle,
		PaidMemberID:     recipient.UserID,
		PayoutAmount:     payout,
		NextPayoutDueID:  next.UserID,
		ContributorCount: contributors,
	}, nil
}

// listMembersInTx returns every membership in join order, head included,
// locked for the rest of the transaction.
func (s *Store) listMembersInTx(ctx context.Context, tx pgx.Tx, ajoID uuid.UUID) ([]Membership, error) {
	rows, err := tx.Query(ctx, `
		SELECT ajo_id, user_id, is_head, locked_contribution, payout_due, created_at
		FROM memberships
		WHERE ajo_id = $1
		ORDER BY created_at ASC, user_id ASC
		FOR UPDATE
	`, ajoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.AjoID, &m.UserID, &m.IsHead, &m.LockedContribution, &m.PayoutDue, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) GetMembership(ctx context.Context, ajoID, userID uuid.UUID) (Membership, error) {
	var m Membership
	row := s.pool.QueryRow(ctx, `
		SELECT ajo_id, user_id, is_head, locked_contribution, payout_due, created_at
		FROM memberships
		WHERE ajo_id = $1 AND user_id = $2
	`, ajoID, userID)
	if err := row.Scan(&m.AjoID, &m.UserID, &m.IsHead, &m.LockedContribution, &m.PayoutDue, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, ErrNotMember
		}
		return Membership{}, err
	}
	return m, nil
}

// ListAjosForUser returns circles the user heads or belongs to, with member
// counts for the listing screens.
func (s *Store) ListAjosForUser(ctx context.Context, userID uuid.UUID) ([]AjoSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.name, a.created_by, a.cycle_amount, a.cycle_duration, a.current_cycle, a.last_paid_member_id, a.created_at,
		       (SELECT count(*) FROM memberships mc WHERE mc.ajo_id = a.id) AS member_count
		FROM ajos a
		JOIN memberships m ON m.ajo_id = a.id
		WHERE m.user_id = $1
		ORDER BY a.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AjoSummary
	for rows.Next() {
		var s AjoSummary
		var lastPaid *uuid.UUID
		if err := rows.Scan(&s.Ajo.ID, &s.Ajo.Name, &s.Ajo.CreatedBy, &s.Ajo.CycleAmount, &s.Ajo.CycleDuration,
			&s.Ajo.CurrentCycle, &lastPaid, &s.Ajo.CreatedAt, &s.MemberCount); err != nil {
			return nil, err
		}
		if lastPaid != nil {
			s.Ajo.LastPaidMemberID = *lastPaid
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// MembershipOverview gathers the dashboard view in three queries: joined
// circles, pending requests into circles the user heads, and the user's own
// requests.
func (s *Store) MembershipOverview(ctx context.Context, userID uuid.UUID) (MembershipOverview, error) {
	var overview MembershipOverview

	rows, err := s.pool.Query(ctx, `
		SELECT m.ajo_id, m.user_id, m.is_head, m.locked_contribution, m.payout_due, m.created_at,
		       a.id, a.name, a.created_by, a.cycle_amount, a.cycle_duration, a.current_cycle, a.last_paid_member_id, a.created_at
		FROM memberships m
		JOIN ajos a ON a.id = m.ajo_id
		WHERE m.user_id = $1 AND m.is_head = false
		ORDER BY m.created_at DESC
	`, userID)
	if err != nil {
		return MembershipOverview{}, err
	}
	for rows.Next() {
		var mw MembershipWithAjo
		var lastPaid *uuid.UUID
		if err := rows.Scan(&mw.Membership.AjoID, &mw.Membership.UserID, &mw.Membership.IsHead,
			&mw.Membership.LockedContribution, &mw.Membership.PayoutDue, &mw.Membership.CreatedAt,
			&mw.Ajo.ID, &mw.Ajo.Name, &mw.Ajo.CreatedBy, &mw.Ajo.CycleAmount, &mw.Ajo.CycleDuration,
			&mw.Ajo.CurrentCycle, &lastPaid, &mw.Ajo.CreatedAt); err != nil {
			rows.Close()
			return MembershipOverview{}, err
		}
		if lastPaid != nil {
			mw.Ajo.LastPaidMemberID = *lastPaid
		}
		overview.Memberships = append(overview.Memberships, mw)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return MembershipOverview{}, err
	}

	overview.IncomingRequests, err = s.listRequests(ctx, `
		SELECT r.id, r.ajo_id, r.user_id, r.status, r.created_at, r.decided_at
		FROM join_requests r
		JOIN ajos a ON a.id = r.ajo_id
		WHERE a.created_by = $1 AND r.status = 'pending'
		ORDER BY r.created_at ASC
	`, userID)
	if err != nil {
		return MembershipOverview{}, err
	}

	overview.SentRequests, err = s.listRequests(ctx, `
		SELECT id, ajo_id, user_id, status, created_at, decided_at
		FROM join_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return MembershipOverview{}, err
	}

	return overview, nil
}

func (s *Store) listRequests(ctx context.Context, query string, args ...any) ([]JoinRequest, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JoinRequest
	for rows.Next() {
		var r JoinRequest
		if err := rows.Scan(&r.ID, &r.AjoID, &r.UserID, &r.Status, &r.CreatedAt, &r.DecidedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

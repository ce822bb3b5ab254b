package storage

import (
	"time"

	"github.com/google/uuid"
)

// Ledger entry kinds. Amounts are always positive; the kind determines the
// direction of each balance movement.
const (
	EntryDeposit      = "deposit"
	EntryWithdraw     = "withdraw"
	EntryLock         = "lock"
	EntryUnlock       = "unlock"
	EntryContribution = "contribution"
	EntryPayout       = "payout"
)

const (
	JoinRequestPending  = "pending"
	JoinRequestApproved = "approved"
	JoinRequestDeclined = "declined"
)

const (
	KYCPending  = "pending"
	KYCApproved = "approved"
	KYCDeclined = "declined"
)

type User struct {
	ID                uuid.UUID
	Email             string
	VerificationLevel int
	Active            bool
	CreatedAt         time.Time
}

// Wallet balances are in the smallest currency unit. Total is derived, never
// stored: total == available + locked at all times.
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Available int64
	Locked    int64
	UpdatedAt time.Time
}

func (w Wallet) Total() int64 { return w.Available + w.Locked }

type LedgerEntry struct {
	ID          uuid.UUID
	WalletID    uuid.UUID
	Kind        string
	Amount      int64
	ReferenceID uuid.UUID
	CreatedAt   time.Time
}

type Ajo struct {
	ID               uuid.UUID
	Name             string
	CreatedBy        uuid.UUID
	CycleAmount      int64
	CycleDuration    int
	CurrentCycle     int
	LastPaidMemberID uuid.UUID // uuid.Nil before the first payout
	CreatedAt        time.Time
}

type Membership struct {
	AjoID              uuid.UUID
	UserID             uuid.UUID
	IsHead             bool
	LockedContribution int64
	PayoutDue          bool
	CreatedAt          time.Time
}

type Invite struct {
	ID        uuid.UUID
	AjoID     uuid.UUID
	Token     string
	CreatedBy uuid.UUID
	ExpiresAt time.Time
	Consumed  bool
	CreatedAt time.Time
}

type JoinRequest struct {
	ID        uuid.UUID
	AjoID     uuid.UUID
	UserID    uuid.UUID
	Status    string
	CreatedAt time.Time
	DecidedAt *time.Time
}

type KYCSubmission struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	TierRequested int
	Status        string
	SubmittedAt   time.Time
}

// AdvanceResult reports one completed cycle advance.
type AdvanceResult struct {
	AjoID            uuid.UUID
	NewCycle         int
	PaidMemberID     uuid.UUID
	PayoutAmount     int64
	NextPayoutDueID  uuid.UUID
	ContributorCount int
}

// MembershipOverview is the member-facing dashboard payload: circles the
// user belongs to, pending requests into circles the user heads, and the
// user's own sent requests.
type MembershipOverview struct {
	Memberships      []MembershipWithAjo
	IncomingRequests []JoinRequest
	SentRequests     []JoinRequest
}

type MembershipWithAjo struct {
	Membership Membership
	Ajo        Ajo
}

// AjoSummary is a circle plus its member count, for listing screens.
type AjoSummary struct {
	Ajo         Ajo
	MemberCount int
}

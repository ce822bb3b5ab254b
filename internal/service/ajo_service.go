package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Full-Stack-Sanctus/Remittra/internal/storage"
	"github.com/Full-Stack-Sanctus/Remittra/libs/kafka"
	"github.com/google/uuid"
	"log/slog"
)

type AjoStore interface {
	GetUser(ctx context.Context, userID uuid.UUID) (storage.User, error)
	CreateAjo(ctx context.Context, creatorID uuid.UUID, name string, cycleAmount int64, cycleDuration int) (storage.Ajo, error)
	GetAjo(ctx context.Context, ajoID uuid.UUID) (storage.Ajo, error)
	GenerateInvite(ctx context.Context, ajoID, requesterID uuid.UUID, ttl time.Duration) (storage.Invite, error)
	RedeemInvite(ctx context.Context, token string, userID uuid.UUID) (storage.JoinRequest, error)
	DecideJoinRequest(ctx context.Context, requestID, deciderID uuid.UUID, approve bool) (storage.JoinRequest, error)
	Contribute(ctx context.Context, ajoID, userID uuid.UUID) (storage.Membership, storage.Wallet, error)
	AdvanceCycle(ctx context.Context, ajoID, deciderID uuid.UUID) (storage.AdvanceResult, error)
	GetMembership(ctx context.Context, ajoID, userID uuid.UUID) (storage.Membership, error)
	ListAjosForUser(ctx context.Context, userID uuid.UUID) ([]storage.AjoSummary, error)
	MembershipOverview(ctx context.Context, userID uuid.UUID) (storage.MembershipOverview, error)
	SubmitKYC(ctx context.Context, userID uuid.UUID, tierRequested int) (storage.KYCSubmission, error)
	SetVerificationLevel(ctx context.Context, userID uuid.UUID, level int) (storage.User, error)
}

type AjoService struct {
	store     AjoStore
	tiers     *TierGate
	inviteTTL time.Duration
	logger    *slog.Logger
	metrics   *Metrics
	publisher kafka.Publisher
	topic     string
}

func NewAjoService(store AjoStore, tiers *TierGate, inviteTTL time.Duration, logger *slog.Logger, metrics *Metrics, publisher kafka.Publisher, topic string) *AjoService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AjoService{
		store:     store,
		tiers:     tiers,
		inviteTTL: inviteTTL,
		logger:    logger,
		metrics:   metrics,
		publisher: publisher,
		topic:     topic,
	}
}

// CreateAjo opens a circle with the creator as head, subject to the creator's
// tier limits.
func (s *AjoService) CreateAjo(ctx context.Context, creatorID uuid.UUID, name string, cycleAmount int64, cycleDuration int) (storage.Ajo, error) {
	name = strings.TrimSpace(name)
	if name == "" || cycleAmount <= 0 || cycleDuration <= 0 {
		return storage.Ajo{}, storage.ErrInvalidAmount
	}

	user, err := s.store.GetUser(ctx, creatorID)
	if err != nil {
		return storage.Ajo{}, err
	}
	if err := s.tiers.CheckCreate(user.VerificationLevel, cycleAmount); err != nil {
		s.metrics.IncTierRejection("create_ajo")
		return storage.Ajo{}, err
	}

	return s.store.CreateAjo(ctx, creatorID, name, cycleAmount, cycleDuration)
}

func (s *AjoService) GetAjo(ctx context.Context, ajoID uuid.UUID) (storage.Ajo, error) {
	return s.store.GetAjo(ctx, ajoID)
}

func (s *AjoService) ListAjos(ctx context.Context, userID uuid.UUID) ([]storage.AjoSummary, error) {
	return s.store.ListAjosForUser(ctx, userID)
}

func (s *AjoService) MembershipOverview(ctx context.Context, userID uuid.UUID) (storage.MembershipOverview, error) {
	return s.store.MembershipOverview(ctx, userID)
}

func (s *AjoService) GenerateInvite(ctx context.Context, ajoID, requesterID uuid.UUID) (storage.Invite, error) {
	return s.store.GenerateInvite(ctx, ajoID, requesterID, s.inviteTTL)
}

func (s *AjoService) RedeemInvite(ctx context.Context, token string, userID uuid.UUID) (storage.JoinRequest, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		s.metrics.IncInviteRedemption("not_found")
		return storage.JoinRequest{}, storage.ErrInviteNotFound
	}

	request, err := s.store.RedeemInvite(ctx, token, userID)
	if err != nil {
		s.metrics.IncInviteRedemption("rejected")
		return storage.JoinRequest{}, err
	}
	s.metrics.IncInviteRedemption("success")
	return request, nil
}

func (s *AjoService) DecideJoinRequest(ctx context.Context, requestID, deciderID uuid.UUID, approve bool) (storage.JoinRequest, error) {
	request, err := s.store.DecideJoinRequest(ctx, requestID, deciderID, approve)
	if err != nil {
		return storage.JoinRequest{}, err
	}
	s.metrics.IncJoinDecision(request.Status)

	if request.Status == storage.JoinRequestApproved {
		if env, envErr := kafka.NewEnvelope(EventMemberJoined, eventEnvelopeVersion, ""); envErr == nil {
			publish(ctx, s.publisher, s.logger, s.topic, request.AjoID.String(), MemberJoinedEvent{
				Envelope: env,
				AjoID:    request.AjoID.String(),
				UserID:   request.UserID.String(),
			})
		}
	}
	return request, nil
}

// Contribute locks the member's shortfall for the current cycle. JoinCommit
// right after approval and explicit top-ups both land here; a member already
// covered for the cycle is a no-op.
func (s *AjoService) Contribute(ctx context.Context, ajoID, userID uuid.UUID) (storage.Membership, storage.Wallet, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return storage.Membership{}, storage.Wallet{}, err
	}
	ajo, err := s.store.GetAjo(ctx, ajoID)
	if err != nil {
		return storage.Membership{}, storage.Wallet{}, err
	}
	if err := s.tiers.CheckJoin(user.VerificationLevel, ajo.CycleAmount); err != nil {
		s.metrics.IncTierRejection("contribute")
		return storage.Membership{}, storage.Wallet{}, err
	}

	m, w, err := s.store.Contribute(ctx, ajoID, userID)
	if err != nil {
		s.metrics.IncWalletOp("lock", "error")
		return storage.Membership{}, storage.Wallet{}, err
	}
	s.metrics.IncWalletOp("lock", "success")
	return m, w, nil
}

func (s *AjoService) AdvanceCycle(ctx context.Context, ajoID, deciderID uuid.UUID) (storage.AdvanceResult, error) {
	start := time.Now()
	result, err := s.store.AdvanceCycle(ctx, ajoID, deciderID)
	if err != nil {
		status := "error"
		if errors.Is(err, storage.ErrCycleAdvancing) {
			status = "conflict"
		}
		s.metrics.ObserveCycleAdvance(status, time.Since(start))
		return storage.AdvanceResult{}, err
	}
	s.metrics.ObserveCycleAdvance("success", time.Since(start))
	s.metrics.ObservePayout(result.PayoutAmount)

	s.logger.Info("cycle advanced",
		"ajo_id", result.AjoID.String(),
		"new_cycle", result.NewCycle,
		"paid_member", result.PaidMemberID.String(),
		"payout", result.PayoutAmount,
		"contributors", result.ContributorCount,
	)

	if env, envErr := kafka.NewEnvelope(EventCycleAdvanced, eventEnvelopeVersion, ""); envErr == nil {
		publish(ctx, s.publisher, s.logger, s.topic, result.AjoID.String(), CycleAdvancedEvent{
			Envelope:     env,
			AjoID:        result.AjoID.String(),
			NewCycle:     result.NewCycle,
			PaidMemberID: result.PaidMemberID.String(),
			PayoutAmount: result.PayoutAmount,
			NextDueID:    result.NextPayoutDueID.String(),
		})
	}
	return result, nil
}

func (s *AjoService) GetMembership(ctx context.Context, ajoID, userID uuid.UUID) (storage.Membership, error) {
	return s.store.GetMembership(ctx, ajoID, userID)
}

func (s *AjoService) SubmitKYC(ctx context.Context, userID uuid.UUID, tierRequested int) (storage.KYCSubmission, error) {
	return s.store.SubmitKYC(ctx, userID, tierRequested)
}

// SetVerificationLevel is invoked by the KYC review collaborator, once per
// approved submission.
func (s *AjoService) SetVerificationLevel(ctx context.Context, userID uuid.UUID, level int) (storage.User, error) {
	return s.store.SetVerificationLevel(ctx, userID, level)
}

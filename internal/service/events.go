package service

import (
	"context"

	"github.com/Full-Stack-Sanctus/Remittra/libs/kafka"
	"log/slog"
)

// Event types carried on the wallet and ajo topics.
const (
	EventWalletDeposited = "wallet.deposited"
	EventWalletWithdrawn = "wallet.withdrawn"
	EventMemberJoined    = "ajo.member.joined"
	EventCycleAdvanced   = "ajo.cycle.advanced"
	eventEnvelopeVersion = 1
)

type WalletEvent struct {
	kafka.Envelope
	UserID    string `json:"user_id"`
	Amount    int64  `json:"amount"`
	Available int64  `json:"available"`
	Locked    int64  `json:"locked"`
	Total     int64  `json:"total"`
}

type MemberJoinedEvent struct {
	kafka.Envelope
	AjoID  string `json:"ajo_id"`
	UserID string `json:"user_id"`
}

type CycleAdvancedEvent struct {
	kafka.Envelope
	AjoID        string `json:"ajo_id"`
	NewCycle     int    `json:"new_cycle"`
	PaidMemberID string `json:"paid_member_id"`
	PayoutAmount int64  `json:"payout_amount"`
	NextDueID    string `json:"next_payout_due_id"`
}

// publish sends a domain event best-effort: a broker outage never fails the
// committed operation, it only logs (the DLQ wrapper handles retry topics).
func publish(ctx context.Context, pub kafka.Publisher, logger *slog.Logger, topic, key string, value any) {
	if pub == nil {
		return
	}
	if _, _, err := pub.PublishJSON(ctx, topic, key, value); err != nil {
		logger.Error("event publish failed", "topic", topic, "error", err)
	}
}

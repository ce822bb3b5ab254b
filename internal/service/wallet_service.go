package service

import (
	"context"

	"github.com/Full-Stack-Sanctus/Remittra/internal/storage"
	"github.com/Full-Stack-Sanctus/Remittra/libs/kafka"
	"github.com/google/uuid"
	"log/slog"
)

type WalletStore interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (storage.Wallet, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount int64) (storage.Wallet, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount int64) (storage.Wallet, error)
	ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]storage.LedgerEntry, error)
}

type WalletService struct {
	store     WalletStore
	logger    *slog.Logger
	metrics   *Metrics
	publisher kafka.Publisher
	topic     string
}

func NewWalletService(store WalletStore, logger *slog.Logger, metrics *Metrics, publisher kafka.Publisher, topic string) *WalletService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WalletService{
		store:     store,
		logger:    logger,
		metrics:   metrics,
		publisher: publisher,
		topic:     topic,
	}
}

func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (storage.Wallet, error) {
	return s.store.GetWallet(ctx, userID)
}

func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]storage.LedgerEntry, error) {
	return s.store.ListEntries(ctx, userID, limit)
}

func (s *WalletService) Deposit(ctx context.Context, userID uuid.UUID, amount int64) (storage.Wallet, error) {
	if amount <= 0 {
		s.metrics.IncWalletOp("deposit", "invalid")
		return storage.Wallet{}, storage.ErrInvalidAmount
	}

	w, err := s.store.Deposit(ctx, userID, amount)
	if err != nil {
		s.metrics.IncWalletOp("deposit", "error")
		return storage.Wallet{}, err
	}
	s.metrics.IncWalletOp("deposit", "success")

	s.emitWalletEvent(ctx, EventWalletDeposited, userID, amount, w)
	return w, nil
}

func (s *WalletService) Withdraw(ctx context.Context, userID uuid.UUID, amount int64) (storage.Wallet, error) {
	if amount <= 0 {
		s.metrics.IncWalletOp("withdraw", "invalid")
		return storage.Wallet{}, storage.ErrInvalidAmount
	}

	w, err := s.store.Withdraw(ctx, userID, amount)
	if err != nil {
		s.metrics.IncWalletOp("withdraw", "error")
		return storage.Wallet{}, err
	}
	s.metrics.IncWalletOp("withdraw", "success")

	s.emitWalletEvent(ctx, EventWalletWithdrawn, userID, amount, w)
	return w, nil
}

func (s *WalletService) emitWalletEvent(ctx context.Context, eventType string, userID uuid.UUID, amount int64, w storage.Wallet) {
	env, err := kafka.NewEnvelope(eventType, eventEnvelopeVersion, "")
	if err != nil {
		s.logger.Error("build event envelope failed", "event_type", eventType, "error", err)
		return
	}
	publish(ctx, s.publisher, s.logger, s.topic, userID.String(), WalletEvent{
		Envelope:  env,
		UserID:    userID.String(),
		Amount:    amount,
		Available: w.Available,
		Locked:    w.Locked,
		Total:     w.Total(),
	})
}

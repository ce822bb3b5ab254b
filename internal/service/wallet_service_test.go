package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Full-Stack-Sanctus/Remittra/internal/storage"
	"github.com/google/uuid"
	"log/slog"
)

type fakeWalletStore struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]storage.Wallet
	err     error
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{wallets: map[uuid.UUID]storage.Wallet{}}
}

func (f *fakeWalletStore) GetWallet(ctx context.Context, userID uuid.UUID) (storage.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return storage.Wallet{}, f.err
	}
	return f.wallets[userID], nil
}

func (f *fakeWalletStore) Deposit(ctx context.Context, userID uuid.UUID, amount int64) (storage.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return storage.Wallet{}, f.err
	}
	w := f.wallets[userID]
	w.Available += amount
	f.wallets[userID] = w
	return w, nil
}

func (f *fakeWalletStore) Withdraw(ctx context.Context, userID uuid.UUID, amount int64) (storage.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return storage.Wallet{}, f.err
	}
	w := f.wallets[userID]
	if w.Available < amount {
		return storage.Wallet{}, storage.ErrInsufficientFunds
	}
	w.Available -= amount
	f.wallets[userID] = w
	return w, nil
}

func (f *fakeWalletStore) ListEntries(ctx context.Context, userID uuid.UUID, limit int) ([]storage.LedgerEntry, error) {
	return nil, f.err
}

type capturingPublisher struct {
	mu     sync.Mutex
	topics []string
	keys   []string
	err    error
}

func (p *capturingPublisher) PublishJSON(ctx context.Context, topic, key string, value any) (int32, int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, 0, p.err
	}
	p.topics = append(p.topics, topic)
	p.keys = append(p.keys, key)
	return 0, 1, nil
}

func (p *capturingPublisher) Close() error { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func TestWalletDeposit(t *testing.T) {
	store := newFakeWalletStore()
	pub := &capturingPublisher{}
	svc := NewWalletService(store, quietLogger(), nil, pub, "wallet.events")
	userID := uuid.New()

	w, err := svc.Deposit(context.Background(), userID, 10_000)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if w.Available != 10_000 || w.Total() != 10_000 {
		t.Fatalf("unexpected wallet: %+v", w)
	}
	if len(pub.topics) != 1 || pub.topics[0] != "wallet.events" {
		t.Fatalf("expected one event on wallet.events, got %v", pub.topics)
	}
	if pub.keys[0] != userID.String() {
		t.Fatalf("expected event keyed by user id")
	}
}

func TestWalletDepositRejectsNonPositive(t *testing.T) {
	store := newFakeWalletStore()
	svc := NewWalletService(store, quietLogger(), nil, nil, "")

	for _, amount := range []int64{0, -5} {
		if _, err := svc.Deposit(context.Background(), uuid.New(), amount); !errors.Is(err, storage.ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if len(store.wallets) != 0 {
		t.Fatalf("expected no wallet mutation on rejected amount")
	}
}

func TestWalletWithdrawInsufficient(t *testing.T) {
	store := newFakeWalletStore()
	svc := NewWalletService(store, quietLogger(), nil, nil, "")
	userID := uuid.New()
	store.wallets[userID] = storage.Wallet{Available: 100}

	if _, err := svc.Withdraw(context.Background(), userID, 101); !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if store.wallets[userID].Available != 100 {
		t.Fatalf("expected balance unchanged after failed withdraw")
	}
}

func TestWalletWithdrawLockedNotSpendable(t *testing.T) {
	// Locked funds never count toward withdrawable balance.
	store := newFakeWalletStore()
	svc := NewWalletService(store, quietLogger(), nil, nil, "")
	userID := uuid.New()
	store.wallets[userID] = storage.Wallet{Available: 100, Locked: 900}

	if _, err := svc.Withdraw(context.Background(), userID, 500); !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	w, err := svc.Withdraw(context.Background(), userID, 100)
	if err != nil {
		t.Fatalf("withdraw within available: %v", err)
	}
	if w.Available != 0 || w.Locked != 900 {
		t.Fatalf("unexpected wallet: %+v", w)
	}
}

func TestWalletEventFailureDoesNotFailOperation(t *testing.T) {
	store := newFakeWalletStore()
	pub := &capturingPublisher{err: errors.New("broker down")}
	svc := NewWalletService(store, quietLogger(), nil, pub, "wallet.events")

	if _, err := svc.Deposit(context.Background(), uuid.New(), 500); err != nil {
		t.Fatalf("deposit must succeed despite publish failure, got %v", err)
	}
}

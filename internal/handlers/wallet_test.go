package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Full-Stack-Sanctus/Remittra/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type fakeWalletService struct {
	wallet  storage.Wallet
	entries []storage.LedgerEntry
	err     error

	lastAmount int64
}

func (f *fakeWalletService) GetWallet(ctx context.Context, userID uuid.UUID) (storage.Wallet, error) {
	return f.wallet, f.err
}

func (f *fakeWalletService) Deposit(ctx context.Context, userID uuid.UUID, amount int64) (storage.Wallet, error) {
	f.lastAmount = amount
	if f.err != nil {
		return storage.Wallet{}, f.err
	}
	f.wallet.Available += amount
	return f.wallet, nil
}

func (f *fakeWalletService) Withdraw(ctx context.Context, userID uuid.UUID, amount int64) (storage.Wallet, error) {
	f.lastAmount = amount
	if f.err != nil {
		return storage.Wallet{}, f.err
	}
	f.wallet.Available -= amount
	return f.wallet, nil
}

func (f *fakeWalletService) ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]storage.LedgerEntry, error) {
	return f.entries, f.err
}

func setupWalletRouter(svc WalletService, limiter Limiter, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(injectUser(userID))
	NewWalletHandler(svc, testLogger(), limiter).RegisterRoutes(router)
	return router
}

func TestGetWallet(t *testing.T) {
	svc := &fakeWalletService{wallet: storage.Wallet{Available: 700, Locked: 300}}
	router := setupWalletRouter(svc, nil, uuid.New())

	resp := performRequest(router, http.MethodGet, "/wallet", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var out walletResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Available != 700 || out.Locked != 300 || out.Total != 1000 {
		t.Fatalf("unexpected balances: %+v", out)
	}
}

func TestDepositSuccess(t *testing.T) {
	svc := &fakeWalletService{}
	router := setupWalletRouter(svc, nil, uuid.New())

	resp := performRequest(router, http.MethodPost, "/wallet/deposit", amountRequest{Amount: 5000})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastAmount != 5000 {
		t.Fatalf("expected amount 5000 passed through, got %d", svc.lastAmount)
	}
}

func TestDepositInvalidAmount(t *testing.T) {
	svc := &fakeWalletService{err: storage.ErrInvalidAmount}
	router := setupWalletRouter(svc, nil, uuid.New())

	resp := performRequest(router, http.MethodPost, "/wallet/deposit", amountRequest{Amount: -1})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	var errResp errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != "INVALID_AMOUNT" {
		t.Fatalf("expected INVALID_AMOUNT, got %q", errResp.Code)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	svc := &fakeWalletService{err: storage.ErrInsufficientFunds}
	router := setupWalletRouter(svc, nil, uuid.New())

	resp := performRequest(router, http.MethodPost, "/wallet/withdraw", amountRequest{Amount: 9999})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}

	var errResp errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != "INSUFFICIENT_FUNDS" {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %q", errResp.Code)
	}
}

func TestDepositTimeout(t *testing.T) {
	// Timeouts get a distinct code so callers know the outcome is unknown.
	svc := &fakeWalletService{err: context.DeadlineExceeded}
	router := setupWalletRouter(svc, nil, uuid.New())

	resp := performRequest(router, http.MethodPost, "/wallet/deposit", amountRequest{Amount: 100})
	if resp.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.Code)
	}

	var errResp errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.Code != "TIMEOUT" {
		t.Fatalf("expected TIMEOUT, got %q", errResp.Code)
	}
}

func TestDepositRateLimited(t *testing.T) {
	svc := &fakeWalletService{}
	limiter := &fakeLimiter{allowed: false, retryAfter: 30 * time.Second}
	router := setupWalletRouter(svc, limiter, uuid.New())

	resp := performRequest(router, http.MethodPost, "/wallet/deposit", amountRequest{Amount: 100})
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if resp.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if svc.lastAmount != 0 {
		t.Fatalf("expected service untouched when limited")
	}
}

func TestWithdrawNotRateLimited(t *testing.T) {
	// Only deposits consume rate budget.
	svc := &fakeWalletService{wallet: storage.Wallet{Available: 1000}}
	limiter := &fakeLimiter{allowed: false}
	router := setupWalletRouter(svc, limiter, uuid.New())

	resp := performRequest(router, http.MethodPost, "/wallet/withdraw", amountRequest{Amount: 100})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if limiter.calls != 0 {
		t.Fatalf("expected limiter not consulted for withdraw")
	}
}

func TestListTransactions(t *testing.T) {
	entries := []storage.LedgerEntry{
		{ID: uuid.New(), Kind: storage.EntryDeposit, Amount: 1000, CreatedAt: time.Now()},
		{ID: uuid.New(), Kind: storage.EntryLock, Amount: 400, ReferenceID: uuid.New(), CreatedAt: time.Now()},
	}
	svc := &fakeWalletService{entries: entries}
	router := setupWalletRouter(svc, nil, uuid.New())

	resp := performRequest(router, http.MethodGet, "/wallet/transactions?limit=10", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var out struct {
		Transactions []entryResponse `json:"transactions"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(out.Transactions) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out.Transactions))
	}
	if out.Transactions[0].Kind != storage.EntryDeposit {
		t.Fatalf("unexpected entry kind %q", out.Transactions[0].Kind)
	}
	if out.Transactions[1].ReferenceID == "" {
		t.Fatalf("expected reference id on lock entry")
	}
}

func TestWalletRequiresSubject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewWalletHandler(&fakeWalletService{}, testLogger(), nil).RegisterRoutes(router)

	resp := performRequest(router, http.MethodGet, "/wallet", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without subject, got %d", resp.Code)
	}
}

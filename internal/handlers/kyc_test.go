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

type fakeKYCService struct {
	submission storage.KYCSubmission
	user       storage.User
	err        error

	lastLevel int
}

func (f *fakeKYCService) SubmitKYC(ctx context.Context, userID uuid.UUID, tierRequested int) (storage.KYCSubmission, error) {
	if f.err != nil {
		return storage.KYCSubmission{}, f.err
	}
	return f.submission, nil
}

func (f *fakeKYCService) SetVerificationLevel(ctx context.Context, userID uuid.UUID, level int) (storage.User, error) {
	f.lastLevel = level
	if f.err != nil {
		return storage.User{}, f.err
	}
	return f.user, nil
}

func setupKYCRouter(svc KYCService, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(injectUser(userID))
	h := NewKYCHandler(svc, testLogger())
	h.RegisterRoutes(router)
	h.RegisterAdminRoutes(router)
	return router
}

func TestSubmitKYC(t *testing.T) {
	userID := uuid.New()
	svc := &fakeKYCService{submission: storage.KYCSubmission{
		ID:            uuid.New(),
		UserID:        userID,
		TierRequested: 2,
		Status:        storage.KYCPending,
		SubmittedAt:   time.Now(),
	}}
	router := setupKYCRouter(svc, userID)

	resp := performRequest(router, http.MethodPost, "/kyc/submit", submitKYCRequest{Tier: 2})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var out kycSubmissionResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.TierRequested != 2 || out.Status != storage.KYCPending {
		t.Fatalf("unexpected body: %+v", out)
	}
}

func TestSubmitKYCInvalidTier(t *testing.T) {
	svc := &fakeKYCService{err: storage.ErrInvalidAmount}
	router := setupKYCRouter(svc, uuid.New())

	resp := performRequest(router, http.MethodPost, "/kyc/submit", submitKYCRequest{Tier: 9})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSetVerification(t *testing.T) {
	target := uuid.New()
	svc := &fakeKYCService{user: storage.User{ID: target, Email: "ada@example.com", VerificationLevel: 2}}
	router := setupKYCRouter(svc, uuid.New())

	resp := performRequest(router, http.MethodPost, "/admin/users/"+target.String()+"/verification", setVerificationRequest{Level: 2})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastLevel != 2 {
		t.Fatalf("expected level 2 passed through, got %d", svc.lastLevel)
	}

	var out userResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.VerificationLevel != 2 {
		t.Fatalf("expected verification level 2, got %d", out.VerificationLevel)
	}
}

func TestSetVerificationUnknownUser(t *testing.T) {
	svc := &fakeKYCService{err: storage.ErrUserNotFound}
	router := setupKYCRouter(svc, uuid.New())

	resp := performRequest(router, http.MethodPost, "/admin/users/"+uuid.NewString()+"/verification", setVerificationRequest{Level: 2})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

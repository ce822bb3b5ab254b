package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/Full-Stack-Sanctus/Remittra/internal/storage"
	"github.com/Full-Stack-Sanctus/Remittra/internal/testutil"
	"github.com/Full-Stack-Sanctus/Remittra/libs/auth"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// These tests run the real JWT middleware in front of the handlers, the same
// wiring the server uses, instead of the injectUser shortcut.

var authTestSecret = []byte("handler-auth-test-secret")

func signToken(t *testing.T, subject string, roles []string) string {
	t.Helper()
	claims := auth.Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(authTestSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func setupAuthedRouter(wallet WalletService, kyc KYCService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := router.Group("/", auth.Middleware(authTestSecret))
	NewWalletHandler(wallet, testLogger(), nil).RegisterRoutes(api)
	NewKYCHandler(kyc, testLogger()).RegisterRoutes(api)

	admin := router.Group("/", auth.Middleware(authTestSecret), auth.RequireAdmin())
	NewKYCHandler(kyc, testLogger()).RegisterAdminRoutes(admin)

	return router
}

func TestAuthedDepositRoundTrip(t *testing.T) {
	svc := &fakeWalletService{}
	router := setupAuthedRouter(svc, &fakeKYCService{})
	token := signToken(t, uuid.NewString(), nil)

	resp := testutil.MakeAuthRequest(router, http.MethodPost, "/wallet/deposit", amountRequest{Amount: 2500}, token)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	if svc.lastAmount != 2500 {
		t.Fatalf("expected deposit of 2500, got %d", svc.lastAmount)
	}
}

func TestAuthedRequestWithoutToken(t *testing.T) {
	router := setupAuthedRouter(&fakeWalletService{}, &fakeKYCService{})

	resp := testutil.MakeAPIRequest(router, http.MethodGet, "/wallet", nil)
	testutil.AssertErrorCode(t, resp, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestAuthedRequestBadSignature(t *testing.T) {
	router := setupAuthedRouter(&fakeWalletService{}, &fakeKYCService{})
	claims := jwt.RegisteredClaims{Subject: uuid.NewString(), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	resp := testutil.MakeAuthRequest(router, http.MethodGet, "/wallet", nil, forged)
	testutil.AssertErrorCode(t, resp, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestAdminRouteRejectsNonAdmin(t *testing.T) {
	router := setupAuthedRouter(&fakeWalletService{}, &fakeKYCService{})
	token := signToken(t, uuid.NewString(), nil)

	resp := testutil.MakeAuthRequest(router, http.MethodPost, "/admin/users/"+uuid.NewString()+"/verification", setVerificationRequest{Level: 2}, token)
	testutil.AssertErrorCode(t, resp, http.StatusForbidden, "FORBIDDEN")
}

func TestAdminRouteAllowsAdmin(t *testing.T) {
	target := uuid.New()
	kyc := &fakeKYCService{user: storage.User{ID: target, Email: "ada@example.com", VerificationLevel: 3}}
	router := setupAuthedRouter(&fakeWalletService{}, kyc)
	token := signToken(t, uuid.NewString(), []string{auth.RoleAdmin})

	resp := testutil.MakeAuthRequest(router, http.MethodPost, "/admin/users/"+target.String()+"/verification", setVerificationRequest{Level: 3}, token)
	testutil.AssertHTTPStatus(t, resp, http.StatusOK)
	if kyc.lastLevel != 3 {
		t.Fatalf("expected level 3 passed through, got %d", kyc.lastLevel)
	}
}

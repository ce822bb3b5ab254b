package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Full-Stack-Sanctus/Remittra/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"log/slog"
)

type WalletService interface {
	GetWallet(ctx context.Context, userID uuid.UUID) (storage.Wallet, error)
	Deposit(ctx context.Context, userID uuid.UUID, amount int64) (storage.Wallet, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount int64) (storage.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]storage.LedgerEntry, error)
}

type WalletHandler struct {
	Service WalletService
	Logger  *slog.Logger
	Limiter Limiter
}

func NewWalletHandler(service WalletService, logger *slog.Logger, limiter Limiter) *WalletHandler {
	return &WalletHandler{Service: service, Logger: logger, Limiter: limiter}
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type walletResponse struct {
	UserID    string    `json:"user_id"`
	Available int64     `json:"available"`
	Locked    int64     `json:"locked"`
	Total     int64     `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

type entryResponse struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Amount      int64     `json:"amount"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toWalletResponse(userID uuid.UUID, w storage.Wallet) walletResponse {
	return walletResponse{
		UserID:    userID.String(),
		Available: w.Available,
		Locked:    w.Locked,
		Total:     w.Total(),
		UpdatedAt: w.UpdatedAt,
	}
}

func (h *WalletHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/wallet", h.GetWallet)
	r.GET("/wallet/transactions", h.ListTransactions)
	r.POST("/wallet/deposit", h.Deposit)
	r.POST("/wallet/withdraw", h.Withdraw)
}

func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	w, err := h.Service.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, toWalletResponse(userID, w))
}

func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	entries, err := h.Service.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp := entryResponse{
			ID:        e.ID.String(),
			Kind:      e.Kind,
			Amount:    e.Amount,
			CreatedAt: e.CreatedAt,
		}
		if e.ReferenceID != uuid.Nil {
			resp.ReferenceID = e.ReferenceID.String()
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out})
}

func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if !allow(c, h.Logger, h.Limiter, "deposit:"+userID.String()) {
		return
	}

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	w, err := h.Service.Deposit(c.Request.Context(), userID, req.Amount)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, toWalletResponse(userID, w))
}

func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	w, err := h.Service.Withdraw(c.Request.Context(), userID, req.Amount)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, toWalletResponse(userID, w))
}

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/Full-Stack-Sanctus/Remittra/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"log/slog"
)

type KYCService interface {
	SubmitKYC(ctx context.Context, userID uuid.UUID, tierRequested int) (storage.KYCSubmission, error)
	SetVerificationLevel(ctx context.Context, userID uuid.UUID, level int) (storage.User, error)
}

type KYCHandler struct {
	Service KYCService
	Logger  *slog.Logger
}

func NewKYCHandler(service KYCService, logger *slog.Logger) *KYCHandler {
	return &KYCHandler{Service: service, Logger: logger}
}

type submitKYCRequest struct {
	Tier int `json:"tier"`
}

type setVerificationRequest struct {
	Level int `json:"level"`
}

type kycSubmissionResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	TierRequested int       `json:"tier_requested"`
	Status        string    `json:"status"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

type userResponse struct {
	ID                string `json:"id"`
	Email             string `json:"email"`
	VerificationLevel int    `json:"verification_level"`
}

func (h *KYCHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/kyc/submit", h.Submit)
}

// RegisterAdminRoutes mounts the reviewer-only endpoint. The caller wires it
// behind auth.RequireAdmin.
func (h *KYCHandler) RegisterAdminRoutes(r gin.IRoutes) {
	r.POST("/admin/users/:id/verification", h.SetVerification)
}

func (h *KYCHandler) Submit(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req submitKYCRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	sub, err := h.Service.SubmitKYC(c.Request.Context(), userID, req.Tier)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, kycSubmissionResponse{
		ID:            sub.ID.String(),
		UserID:        sub.UserID.String(),
		TierRequested: sub.TierRequested,
		Status:        sub.Status,
		SubmittedAt:   sub.SubmittedAt,
	})
}

func (h *KYCHandler) SetVerification(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid user id"})
		return
	}

	var req setVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	user, err := h.Service.SetVerificationLevel(c.Request.Context(), userID, req.Level)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, userResponse{
		ID:                user.ID.String(),
		Email:             user.Email,
		VerificationLevel: user.VerificationLevel,
	})
}

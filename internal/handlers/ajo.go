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

type AjoService interface {
	CreateAjo(ctx context.Context, creatorID uuid.UUID, name string, cycleAmount int64, cycleDuration int) (storage.Ajo, error)
	GetAjo(ctx context.Context, ajoID uuid.UUID) (storage.Ajo, error)
	ListAjos(ctx context.Context, userID uuid.UUID) ([]storage.AjoSummary, error)
	MembershipOverview(ctx context.Context, userID uuid.UUID) (storage.MembershipOverview, error)
	GenerateInvite(ctx context.Context, ajoID, requesterID uuid.UUID) (storage.Invite, error)
	RedeemInvite(ctx context.Context, token string, userID uuid.UUID) (storage.JoinRequest, error)
	DecideJoinRequest(ctx context.Context, requestID, deciderID uuid.UUID, approve bool) (storage.JoinRequest, error)
	Contribute(ctx context.Context, ajoID, userID uuid.UUID) (storage.Membership, storage.Wallet, error)
	AdvanceCycle(ctx context.Context, ajoID, deciderID uuid.UUID) (storage.AdvanceResult, error)
	GetMembership(ctx context.Context, ajoID, userID uuid.UUID) (storage.Membership, error)
}

type AjoHandler struct {
	Service AjoService
	Logger  *slog.Logger
	Limiter Limiter
}

func NewAjoHandler(service AjoService, logger *slog.Logger, limiter Limiter) *AjoHandler {
	return &AjoHandler{Service: service, Logger: logger, Limiter: limiter}
}

type createAjoRequest struct {
	Name          string `json:"name"`
	CycleAmount   int64  `json:"cycle_amount"`
	CycleDuration int    `json:"cycle_duration"`
}

type joinRequestBody struct {
	Token string `json:"token"`
}

type ajoResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	CreatedBy        string    `json:"created_by"`
	CycleAmount      int64     `json:"cycle_amount"`
	CycleDuration    int       `json:"cycle_duration"`
	CurrentCycle     int       `json:"current_cycle"`
	LastPaidMemberID string    `json:"last_paid_member_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type membershipResponse struct {
	AjoID              string    `json:"ajo_id"`
	UserID             string    `json:"user_id"`
	IsHead             bool      `json:"is_head"`
	LockedContribution int64     `json:"locked_contribution"`
	PayoutDue          bool      `json:"payout_due"`
	CreatedAt          time.Time `json:"created_at"`
}

type joinRequestResponse struct {
	ID        string     `json:"id"`
	AjoID     string     `json:"ajo_id"`
	UserID    string     `json:"user_id"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

type inviteResponse struct {
	Token     string    `json:"token"`
	AjoID     string    `json:"ajo_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

type advanceResponse struct {
	AjoID            string `json:"ajo_id"`
	NewCycle         int    `json:"new_cycle"`
	PaidMemberID     string `json:"paid_member_id"`
	PayoutAmount     int64  `json:"payout_amount"`
	NextPayoutDueID  string `json:"next_payout_due_id"`
	ContributorCount int    `json:"contributor_count"`
}

func toAjoResponse(a storage.Ajo) ajoResponse {
	resp := ajoResponse{
		ID:            a.ID.String(),
		Name:          a.Name,
		CreatedBy:     a.CreatedBy.String(),
		CycleAmount:   a.CycleAmount,
		CycleDuration: a.CycleDuration,
		CurrentCycle:  a.CurrentCycle,
		CreatedAt:     a.CreatedAt,
	}
	if a.LastPaidMemberID != uuid.Nil {
		resp.LastPaidMemberID = a.LastPaidMemberID.String()
	}
	return resp
}

func toMembershipResponse(m storage.Membership) membershipResponse {
	return membershipResponse{
		AjoID:              m.AjoID.String(),
		UserID:             m.UserID.String(),
		IsHead:             m.IsHead,
		LockedContribution: m.LockedContribution,
		PayoutDue:          m.PayoutDue,
		CreatedAt:          m.CreatedAt,
	}
}

func toJoinRequestResponse(r storage.JoinRequest) joinRequestResponse {
	return joinRequestResponse{
		ID:        r.ID.String(),
		AjoID:     r.AjoID.String(),
		UserID:    r.UserID.String(),
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		DecidedAt: r.DecidedAt,
	}
}

func (h *AjoHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/ajos", h.Create)
	r.GET("/ajos", h.List)
	r.GET("/ajos/memberships", h.Overview)
	r.GET("/ajos/:id", h.Get)
	r.POST("/ajos/:id/invite", h.Invite)
	r.POST("/ajos/join", h.Join)
	r.POST("/ajos/requests/:id/:action", h.Decide)
	r.POST("/ajos/:id/commit", h.Contribute)
	r.POST("/ajos/:id/contribute", h.Contribute)
	r.POST("/ajos/:id/advance", h.Advance)
}

func (h *AjoHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req createAjoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	ajo, err := h.Service.CreateAjo(c.Request.Context(), userID, req.Name, req.CycleAmount, req.CycleDuration)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, toAjoResponse(ajo))
}

func (h *AjoHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	summaries, err := h.Service.ListAjos(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	out := make([]gin.H, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, gin.H{
			"ajo":          toAjoResponse(s.Ajo),
			"member_count": s.MemberCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{"ajos": out})
}

func (h *AjoHandler) Overview(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ov, err := h.Service.MembershipOverview(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	memberships := make([]gin.H, 0, len(ov.Memberships))
	for _, m := range ov.Memberships {
		memberships = append(memberships, gin.H{
			"membership": toMembershipResponse(m.Membership),
			"ajo":        toAjoResponse(m.Ajo),
		})
	}
	incoming := make([]joinRequestResponse, 0, len(ov.IncomingRequests))
	for _, r := range ov.IncomingRequests {
		incoming = append(incoming, toJoinRequestResponse(r))
	}
	sent := make([]joinRequestResponse, 0, len(ov.SentRequests))
	for _, r := range ov.SentRequests {
		sent = append(sent, toJoinRequestResponse(r))
	}

	c.JSON(http.StatusOK, gin.H{
		"memberships":       memberships,
		"incoming_requests": incoming,
		"sent_requests":     sent,
	})
}

func (h *AjoHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	ajoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid ajo id"})
		return
	}

	ajo, err := h.Service.GetAjo(c.Request.Context(), ajoID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	resp := gin.H{"ajo": toAjoResponse(ajo)}
	if m, err := h.Service.GetMembership(c.Request.Context(), ajoID, userID); err == nil {
		resp["membership"] = toMembershipResponse(m)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AjoHandler) Invite(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if !allow(c, h.Logger, h.Limiter, "invite:"+userID.String()) {
		return
	}
	ajoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid ajo id"})
		return
	}

	invite, err := h.Service.GenerateInvite(c.Request.Context(), ajoID, userID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, inviteResponse{
		Token:     invite.Token,
		AjoID:     invite.AjoID.String(),
		ExpiresAt: invite.ExpiresAt,
	})
}

func (h *AjoHandler) Join(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req joinRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid payload"})
		return
	}

	request, err := h.Service.RedeemInvite(c.Request.Context(), req.Token, userID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, toJoinRequestResponse(request))
}

func (h *AjoHandler) Decide(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	requestID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid request id"})
		return
	}

	var approve bool
	switch c.Param("action") {
	case "approve":
		approve = true
	case "decline":
		approve = false
	default:
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "action must be approve or decline"})
		return
	}

	request, err := h.Service.DecideJoinRequest(c.Request.Context(), requestID, userID, approve)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, toJoinRequestResponse(request))
}

func (h *AjoHandler) Contribute(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	ajoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid ajo id"})
		return
	}

	membership, wallet, err := h.Service.Contribute(c.Request.Context(), ajoID, userID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"membership": toMembershipResponse(membership),
		"wallet":     toWalletResponse(userID, wallet),
	})
}

func (h *AjoHandler) Advance(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	ajoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Code: "INVALID_REQUEST", Message: "invalid ajo id"})
		return
	}

	result, err := h.Service.AdvanceCycle(c.Request.Context(), ajoID, userID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}

	resp := advanceResponse{
		AjoID:            result.AjoID.String(),
		NewCycle:         result.NewCycle,
		PayoutAmount:     result.PayoutAmount,
		ContributorCount: result.ContributorCount,
	}
	if result.PaidMemberID != uuid.Nil {
		resp.PaidMemberID = result.PaidMemberID.String()
	}
	if result.NextPayoutDueID != uuid.Nil {
		resp.NextPayoutDueID = result.NextPayoutDueID.String()
	}
	c.JSON(http.StatusOK, resp)
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Full-Stack-Sanctus/Remittra/internal/service"
	"github.com/Full-Stack-Sanctus/Remittra/internal/storage"
	"github.com/Full-Stack-Sanctus/Remittra/libs/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"log/slog"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Limiter is satisfied by rate.RedisLimiter. A nil Limiter disables limiting.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// classify maps business errors to a status and stable code. Anything it does
// not recognize is an internal error.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrInvalidAmount):
		return http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, storage.ErrInsufficientFunds):
		return http.StatusBadRequest, "INSUFFICIENT_FUNDS"
	case errors.Is(err, service.ErrTierLimitExceeded):
		return http.StatusForbidden, "TIER_LIMIT_EXCEEDED"
	case errors.Is(err, storage.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, storage.ErrNotMember):
		return http.StatusForbidden, "NOT_MEMBER"
	case errors.Is(err, storage.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND"
	case errors.Is(err, storage.ErrAjoNotFound):
		return http.StatusNotFound, "AJO_NOT_FOUND"
	case errors.Is(err, storage.ErrInviteNotFound):
		return http.StatusNotFound, "INVITE_NOT_FOUND"
	case errors.Is(err, storage.ErrRequestNotFound):
		return http.StatusNotFound, "REQUEST_NOT_FOUND"
	case errors.Is(err, storage.ErrInviteExpired):
		return http.StatusGone, "INVITE_EXPIRED"
	case errors.Is(err, storage.ErrInviteAlreadyActive):
		return http.StatusConflict, "INVITE_ALREADY_ACTIVE"
	case errors.Is(err, storage.ErrSelfInviteForbidden):
		return http.StatusBadRequest, "SELF_INVITE_FORBIDDEN"
	case errors.Is(err, storage.ErrAlreadyMember):
		return http.StatusConflict, "ALREADY_MEMBER"
	case errors.Is(err, storage.ErrAlreadyDecided):
		return http.StatusConflict, "ALREADY_DECIDED"
	case errors.Is(err, storage.ErrNoMembers):
		return http.StatusBadRequest, "NO_MEMBERS"
	case errors.Is(err, storage.ErrCycleAdvancing):
		return http.StatusConflict, "CYCLE_IN_PROGRESS"
	case errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err):
		return http.StatusGatewayTimeout, "TIMEOUT"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := classify(err)
	switch status {
	case http.StatusInternalServerError:
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, errorResponse{Code: code, Message: "internal error"})
	case http.StatusGatewayTimeout:
		logger.Error("request timed out", "path", c.FullPath(), "error", err)
		c.JSON(status, errorResponse{Code: code, Message: "operation timed out"})
	default:
		c.JSON(status, errorResponse{Code: code, Message: err.Error()})
	}
}

// currentUserID reads the authenticated subject set by the auth middleware.
// Responds 401 itself when the id is missing or malformed.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetString(auth.ContextUserIDKey)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		c.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "missing subject"})
		return uuid.Nil, false
	}
	return id, true
}

// allow consults the limiter and writes the 429 response when over budget.
// Limiter outages fail open: a redis blip must not take wallet ops down.
func allow(c *gin.Context, logger *slog.Logger, limiter Limiter, key string) bool {
	if limiter == nil {
		return true
	}
	ok, retryAfter, err := limiter.Allow(c.Request.Context(), key)
	if err != nil {
		logger.Error("rate limiter unavailable", "key", key, "error", err)
		return true
	}
	if !ok {
		seconds := int(retryAfter/time.Second) + 1
		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, errorResponse{Code: "RATE_LIMITED", Message: "too many requests"})
		return false
	}
	return true
}

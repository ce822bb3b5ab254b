package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"time"

	"github.com/Full-Stack-Sanctus/Remittra/libs/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"log/slog"
)

// Shared test plumbing for the handler suites in this package.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

// injectUser stands in for the JWT middleware in unit tests.
func injectUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(auth.ContextUserIDKey, userID.String())
		c.Next()
	}
}

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type fakeLimiter struct {
	allowed    bool
	retryAfter time.Duration
	calls      int
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	f.calls++
	return f.allowed, f.retryAfter, nil
}

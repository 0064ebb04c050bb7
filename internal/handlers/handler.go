// Package handlers exposes the ledger and the accounts over HTTP.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"sales-ledger/internal/auth"
	"sales-ledger/internal/ledger"
	"sales-ledger/internal/middleware"
	"sales-ledger/internal/notify"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Assistant answers free-text questions with access to the ledger.
type Assistant interface {
	Ask(ctx context.Context, message string, actor ledger.Actor) (string, error)
}

type Handler struct {
	Ledger    *ledger.Service
	Accounts  *auth.Accounts
	Hub       *notify.Hub
	Assistant Assistant // nil disables /api/ask
	Log       *zap.Logger
}

func New(l *ledger.Service, accounts *auth.Accounts, hub *notify.Hub, assistant Assistant, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{Ledger: l, Accounts: accounts, Hub: hub, Assistant: assistant, Log: log}
}

// fail writes the status that matches the error kind.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, ledger.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientStock),
		errors.Is(err, ledger.ErrDuplicate),
		errors.Is(err, ledger.ErrBoundary):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrTransient):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// paramID reads a positive numeric path parameter.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(v), true
}

func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return v, true
}

// queryTime accepts RFC 3339 or a plain date. A plain date used as an upper
// bound covers the whole day.
func queryTime(c *gin.Context, name string, endOfDay bool) (*time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, true
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		badRequest(c, "Invalid "+name+": use YYYY-MM-DD or RFC 3339")
		return nil, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, true
}

func queryRange(c *gin.Context) (from, to *time.Time, ok bool) {
	if from, ok = queryTime(c, "from", false); !ok {
		return nil, nil, false
	}
	if to, ok = queryTime(c, "to", true); !ok {
		return nil, nil, false
	}
	return from, to, true
}

func actor(c *gin.Context) ledger.Actor { return middleware.Actor(c) }

package handlers

import (
	"net/http"

	"sales-ledger/internal/auth"

	"github.com/gin-gonic/gin"
)

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// --- POST: /login ---
func (h *Handler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Username and password are required")
		return
	}

	session, err := h.Accounts.Login(c.Request.Context(), input.Username, input.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// --- POST: /register (only mounted when ALLOW_REGISTRATION is set) ---
func (h *Handler) Register(c *gin.Context) {
	var input auth.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	user, err := h.Accounts.Register(c.Request.Context(), input)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": user})
}

// --- Users (admin) ---

func (h *Handler) GetUsers(c *gin.Context) {
	users, err := h.Accounts.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

type permissionsRequest struct {
	Role        *auth.Role      `json:"role"`
	Permissions map[string]bool `json:"permissions"`
}

func (h *Handler) UpdateUserPermissions(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req permissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	user, err := h.Accounts.UpdatePermissions(c.Request.Context(), id, req.Role, req.Permissions)
	if err != nil {
		h.fail(c, err)
		return
	}
	caps, err := auth.Capabilities(user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "effective": caps.Map()})
}

package handlers

import (
	"net/http"

	"sales-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

// --- Marketers ---

func (h *Handler) GetMarketers(c *gin.Context) {
	marketers, err := h.Ledger.ListMarketers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, marketers)
}

func (h *Handler) AddMarketer(c *gin.Context) {
	var in ledger.PartyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	marketer, err := h.Ledger.CreateMarketer(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, marketer)
}

func (h *Handler) DeleteMarketer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledger.DeleteMarketer(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Marketer deleted"})
}

// --- Mandobes (delivery agents) ---

func (h *Handler) GetMandobes(c *gin.Context) {
	mandobes, err := h.Ledger.ListMandobes(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mandobes)
}

func (h *Handler) AddMandobe(c *gin.Context) {
	var in ledger.PartyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	mandobe, err := h.Ledger.CreateMandobe(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, mandobe)
}

func (h *Handler) DeleteMandobe(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledger.DeleteMandobe(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Mandobe deleted"})
}

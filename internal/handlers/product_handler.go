package handlers

import (
	"net/http"

	"sales-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

// --- GET: List products in display order (optional ?q= search) ---
func (h *Handler) GetProducts(c *gin.Context) {
	var err error
	var products any
	if q := c.Query("q"); q != "" {
		products, err = h.Ledger.FindProducts(c.Request.Context(), q)
	} else {
		products, err = h.Ledger.ListProducts(c.Request.Context())
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	product, err := h.Ledger.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// --- POST: Add a new product ---
func (h *Handler) AddProduct(c *gin.Context) {
	var in ledger.ProductInput

	// 1. Parse JSON Input
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	// 2. Save (initial count is booked as a stock movement)
	product, err := h.Ledger.CreateProduct(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// --- PUT: Update code, name or price ---
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var patch ledger.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	product, err := h.Ledger.UpdateProduct(c.Request.Context(), id, patch, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledger.DeleteProduct(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

type stockRequest struct {
	Delta int    `json:"delta"`
	Note  string `json:"note"`
}

// --- PATCH: Manual stock correction ---
func (h *Handler) UpdateStock(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req stockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	mv, err := h.Ledger.SetStockDelta(c.Request.Context(), id, req.Delta, req.Note, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, mv)
}

// reorderRequest carries either a direction ("up"/"down") or a target position.
type reorderRequest struct {
	Direction string `json:"direction"`
	Position  *int   `json:"position"`
}

// --- POST: Reorder a product ---
func (h *Handler) ReorderProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	var changed any
	var err error
	switch {
	case req.Position != nil:
		changed, err = h.Ledger.MoveProduct(c.Request.Context(), id, *req.Position, actor(c))
	case req.Direction == "up":
		changed, err = h.Ledger.StepProduct(c.Request.Context(), id, ledger.Up, actor(c))
	case req.Direction == "down":
		changed, err = h.Ledger.StepProduct(c.Request.Context(), id, ledger.Down, actor(c))
	default:
		badRequest(c, "Send direction (up|down) or position")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

func (h *Handler) GetProductHistory(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	history, err := h.Ledger.GetHistory(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

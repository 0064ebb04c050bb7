package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"sales-ledger/internal/database"
	"sales-ledger/internal/ledger"
	"sales-ledger/internal/models"

	"github.com/gin-gonic/gin"
)

// orderFilter reads the shared listing/statistics query parameters.
func orderFilter(c *gin.Context) (database.OrderFilter, bool) {
	f := database.OrderFilter{
		Query:  c.Query("q"),
		Status: models.OrderStatus(c.Query("status")),
		City:   c.Query("city"),
	}
	if f.Status != "" && !f.Status.Valid() {
		badRequest(c, "Invalid status")
		return f, false
	}
	var ok bool
	if f.MandobeID, ok = queryUint(c, "mandobe_id"); !ok {
		return f, false
	}
	if f.MarketerID, ok = queryUint(c, "marketer_id"); !ok {
		return f, false
	}
	if f.Month, ok = queryInt(c, "month", 0); !ok {
		return f, false
	}
	if f.Year, ok = queryInt(c, "year", 0); !ok {
		return f, false
	}
	if raw := c.Query("paid"); raw != "" {
		paid, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "Invalid paid")
			return f, false
		}
		f.Paid = &paid
	}
	return f, true
}

// --- GET: /api/orders ---
func (h *Handler) GetOrders(c *gin.Context) {
	f, ok := orderFilter(c)
	if !ok {
		return
	}
	q := ledger.OrderQuery{OrderFilter: f, Sort: c.DefaultQuery("sort", ledger.SortNewest)}
	if q.Limit, ok = queryInt(c, "limit", 50); !ok {
		return
	}
	if q.Offset, ok = queryInt(c, "offset", 0); !ok {
		return
	}

	orders, total, err := h.Ledger.ListOrders(c.Request.Context(), q)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": total})
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.Ledger.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) AddOrder(c *gin.Context) {
	var in ledger.OrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	order, err := h.Ledger.CreateOrder(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) UpdateOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var patch ledger.OrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	order, err := h.Ledger.UpdateOrder(c.Request.Context(), id, patch, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) DeleteOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledger.DeleteOrder(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}

// --- Narrow updates ---

type statusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Status is required")
		return
	}
	order, changes, err := h.Ledger.UpdateOrderStatus(c.Request.Context(), id, req.Status, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "changes": changes})
}

// mandobeRequest assigns by id or by name; both empty clears the assignment.
type mandobeRequest struct {
	MandobeID   *uint  `json:"mandobe_id"`
	MandobeName string `json:"mandobe_name"`
}

func (h *Handler) UpdateOrderMandobe(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req mandobeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}

	mandobeID := req.MandobeID
	if name := strings.TrimSpace(req.MandobeName); mandobeID == nil && name != "" {
		mandobe, err := h.Ledger.FindMandobeByName(c.Request.Context(), name)
		if err != nil {
			h.fail(c, err)
			return
		}
		mandobeID = &mandobe.ID
	}

	order, changes, err := h.Ledger.UpdateOrderMandobe(c.Request.Context(), id, mandobeID, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "changes": changes})
}

type paymentFlagRequest struct {
	Paid *bool `json:"paid" binding:"required"`
}

func (h *Handler) UpdateOrderPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req paymentFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "paid is required")
		return
	}
	order, changes, err := h.Ledger.UpdateOrderPayment(c.Request.Context(), id, *req.Paid, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order, "changes": changes})
}

// --- GET: /api/orders/statistics ---
func (h *Handler) GetOrderStatistics(c *gin.Context) {
	f, ok := orderFilter(c)
	if !ok {
		return
	}
	stats, err := h.Ledger.GetStatistics(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

package handlers

import (
	"net/http"

	"sales-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

// --- Suppliers ---

func (h *Handler) GetSuppliers(c *gin.Context) {
	suppliers, err := h.Ledger.ListSuppliers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, suppliers)
}

func (h *Handler) GetSupplier(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	supplier, err := h.Ledger.GetSupplier(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, supplier)
}

func (h *Handler) AddSupplier(c *gin.Context) {
	var in ledger.PartyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	supplier, err := h.Ledger.CreateSupplier(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, supplier)
}

func (h *Handler) DeleteSupplier(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledger.DeleteSupplier(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Supplier deleted"})
}

// --- GET: /api/suppliers/:id/statement?from=&to= ---
func (h *Handler) GetSupplierStatement(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	from, to, ok := queryRange(c)
	if !ok {
		return
	}
	statement, err := h.Ledger.GetStatement(c.Request.Context(), id, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, statement)
}

func ledgerFilter(c *gin.Context) (ledger.SupplierLedgerFilter, bool) {
	var f ledger.SupplierLedgerFilter
	var ok bool
	if f.SupplierID, ok = queryUint(c, "supplier_id"); !ok {
		return f, false
	}
	if f.From, f.To, ok = queryRange(c); !ok {
		return f, false
	}
	return f, true
}

// --- Supplier orders (invoices) ---

func (h *Handler) GetSupplierOrders(c *gin.Context) {
	f, ok := ledgerFilter(c)
	if !ok {
		return
	}
	orders, err := h.Ledger.ListSupplierOrders(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) GetSupplierOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.Ledger.GetSupplierOrder(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) AddSupplierOrder(c *gin.Context) {
	var in ledger.SupplierOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	res, err := h.Ledger.CreateSupplierOrder(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateSupplierOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var patch ledger.SupplierOrderPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	res, err := h.Ledger.UpdateSupplierOrder(c.Request.Context(), id, patch, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteSupplierOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.Ledger.DeleteSupplierOrder(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Supplier payments ---

func (h *Handler) GetSupplierPayments(c *gin.Context) {
	f, ok := ledgerFilter(c)
	if !ok {
		return
	}
	payments, err := h.Ledger.ListSupplierPayments(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (h *Handler) AddSupplierPayment(c *gin.Context) {
	var in ledger.SupplierPaymentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	res, err := h.Ledger.AddSupplierPayment(c.Request.Context(), in, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) UpdateSupplierPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var patch ledger.SupplierPaymentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	res, err := h.Ledger.UpdateSupplierPayment(c.Request.Context(), id, patch, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) DeleteSupplierPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	res, err := h.Ledger.DeleteSupplierPayment(c.Request.Context(), id, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// --- POST: /api/admin/reconcile?fix=true ---
// Recomputes supplier balances and order paid flags and reports the drift.
func (h *Handler) Reconcile(c *gin.Context) {
	fix, err := strconv.ParseBool(c.DefaultQuery("fix", "false"))
	if err != nil {
		badRequest(c, "Invalid fix")
		return
	}

	balances, err := h.Ledger.ReconcileSupplierBalances(c.Request.Context(), fix, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	flags, err := h.Ledger.ReconcilePaidFlags(c.Request.Context(), fix, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fixed": fix, "supplier_balances": balances, "paid_flags": flags})
}

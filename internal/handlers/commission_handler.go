package handlers

import (
	"net/http"
	"time"

	"sales-ledger/internal/ledger"

	"github.com/gin-gonic/gin"
)

type bulkPaymentRequest struct {
	Payments []ledger.MarketerPaymentInput `json:"payments"`
}

// --- POST: /api/marketer-payments/bulk ---
// Items settle independently; failures come back in "errors".
func (h *Handler) AddMarketerPayments(c *gin.Context) {
	var req bulkPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid input")
		return
	}
	res, err := h.Ledger.ProcessBulkMarketerPayments(c.Request.Context(), req.Payments, actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func marketerPaymentFilter(c *gin.Context) (ledger.MarketerPaymentFilter, bool) {
	var f ledger.MarketerPaymentFilter
	var ok bool
	if f.MarketerID, ok = queryUint(c, "marketer_id"); !ok {
		return f, false
	}
	if f.From, f.To, ok = queryRange(c); !ok {
		return f, false
	}
	return f, true
}

func (h *Handler) GetMarketerPayments(c *gin.Context) {
	f, ok := marketerPaymentFilter(c)
	if !ok {
		return
	}
	days, err := h.Ledger.ListMarketerPayments(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

// --- GET: /api/marketer-payments/by-month?marketer_id=&year= ---

func (h *Handler) GetMarketerPaymentsByMonth(c *gin.Context) {
	f, ok := marketerPaymentFilter(c)
	if !ok {
		return
	}
	year, ok := queryInt(c, "year", 0)
	if !ok {
		return
	}
	if year != 0 {
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(1, 0, 0).Add(-time.Nanosecond)
		f.From, f.To = &from, &to
	}
	months, err := h.Ledger.MarketerPaymentsByMonth(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, months)
}

func (h *Handler) GetMarketerPaymentSummary(c *gin.Context) {
	f, ok := marketerPaymentFilter(c)
	if !ok {
		return
	}
	summary, err := h.Ledger.MarketerPaymentSummary(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) DeleteMarketerPayment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.Ledger.DeleteMarketerPayment(c.Request.Context(), id, actor(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment deleted"})
}

package handlers

import (
	"net/http"

	"sales-ledger/internal/auth"
	"sales-ledger/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Routes mounts the API on r.
func (h *Handler) Routes(r *gin.Engine, secret []byte, allowRegistration bool) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "online"}) })
	r.POST("/login", h.Login)

	// --- FEATURE FLAG: Registration ---
	if allowRegistration {
		r.POST("/register", h.Register)
		h.Log.Warn("registration route is OPEN, disable ALLOW_REGISTRATION in production")
	}

	can := middleware.RequireCapability

	// --- PROTECTED ROUTES ---
	api := r.Group("/api", middleware.AuthMiddleware(secret))
	{
		api.GET("/events", h.StreamEvents)

		// Store: products, suppliers and their ledger
		api.GET("/products", can(auth.ShowStore), h.GetProducts)
		api.GET("/products/:id", can(auth.ShowStore), h.GetProduct)
		api.GET("/products/:id/history", can(auth.ShowStore), h.GetProductHistory)
		api.POST("/products", can(auth.AddStore), h.AddProduct)
		api.PUT("/products/:id", can(auth.EditStore), h.UpdateProduct)
		api.PATCH("/products/:id/stock", can(auth.EditStore), h.UpdateStock)
		api.POST("/products/:id/reorder", can(auth.EditStore), h.ReorderProduct)
		api.DELETE("/products/:id", can(auth.EditStore), h.DeleteProduct)

		api.GET("/suppliers", can(auth.ShowStore), h.GetSuppliers)
		api.GET("/suppliers/:id", can(auth.ShowStore), h.GetSupplier)
		api.GET("/suppliers/:id/statement", can(auth.ShowStore), h.GetSupplierStatement)
		api.POST("/suppliers", can(auth.AddStore), h.AddSupplier)
		api.DELETE("/suppliers/:id", can(auth.EditStore), h.DeleteSupplier)

		api.GET("/supplier-orders", can(auth.ShowStore), h.GetSupplierOrders)
		api.GET("/supplier-orders/:id", can(auth.ShowStore), h.GetSupplierOrder)
		api.POST("/supplier-orders", can(auth.AddStore), h.AddSupplierOrder)
		api.PUT("/supplier-orders/:id", can(auth.EditStore), h.UpdateSupplierOrder)
		api.DELETE("/supplier-orders/:id", can(auth.EditStore), h.DeleteSupplierOrder)

		api.GET("/supplier-payments", can(auth.ShowStore), h.GetSupplierPayments)
		api.POST("/supplier-payments", can(auth.AddStore), h.AddSupplierPayment)
		api.PUT("/supplier-payments/:id", can(auth.EditStore), h.UpdateSupplierPayment)
		api.DELETE("/supplier-payments/:id", can(auth.EditStore), h.DeleteSupplierPayment)

		// Orders: reads are open to every signed-in user
		api.GET("/orders", h.GetOrders)
		api.GET("/orders/statistics", h.GetOrderStatistics)
		api.GET("/orders/:id", h.GetOrder)
		api.POST("/orders", can(auth.AddOrder), h.AddOrder)
		api.PUT("/orders/:id", can(auth.EditOrder), h.UpdateOrder)
		api.PATCH("/orders/:id/status", can(auth.EditOrder), h.UpdateOrderStatus)
		api.PATCH("/orders/:id/mandobe", can(auth.EditOrder), h.UpdateOrderMandobe)
		api.PATCH("/orders/:id/payment", can(auth.EditOrder), h.UpdateOrderPayment)
		api.DELETE("/orders/:id", can(auth.RemoveOrder), h.DeleteOrder)

		// Codes: marketers and their commissions
		api.GET("/marketers", can(auth.ShowCode), h.GetMarketers)
		api.POST("/marketers", can(auth.AddCode), h.AddMarketer)
		api.DELETE("/marketers/:id", can(auth.RemoveCode), h.DeleteMarketer)
		api.GET("/marketer-payments", can(auth.ShowCode), h.GetMarketerPayments)
		api.GET("/marketer-payments/summary", can(auth.ShowCode), h.GetMarketerPaymentSummary)
		api.GET("/marketer-payments/by-month", can(auth.ShowCode), h.GetMarketerPaymentsByMonth)
		api.POST("/marketer-payments/bulk", can(auth.AddCode), h.AddMarketerPayments)
		api.DELETE("/marketer-payments/:id", can(auth.RemoveCode), h.DeleteMarketerPayment)

		api.GET("/mandobes", can(auth.ShowMandobe), h.GetMandobes)
		api.POST("/mandobes", can(auth.AddMandobe), h.AddMandobe)
		api.DELETE("/mandobes/:id", can(auth.RemoveMandobe), h.DeleteMandobe)

		// ADMIN ONLY
		admin := api.Group("/", middleware.RequireRole(auth.RoleAdmin))
		{
			admin.GET("/users", h.GetUsers)
			admin.PUT("/users/:id/permissions", h.UpdateUserPermissions)
			admin.POST("/admin/reconcile", h.Reconcile)
			admin.POST("/ask", h.AskAI)
		}
	}
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// User - staff account. Role is one of admin, sales, marketer, mandobe.
// Permissions holds per-user overrides on top of the role defaults.
type User struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	Name         string            `gorm:"size:255;not null" json:"name"`
	Username     string            `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Phone        string            `gorm:"size:50" json:"phone,omitempty"`
	PasswordHash string            `gorm:"size:255;not null" json:"-"` // Never return this in JSON
	Role         string            `gorm:"size:16;not null" json:"role"`
	Permissions  datatypes.JSONMap `json:"permissions,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Product - the inventory. Count only changes through the stock engine.
type Product struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Code         string          `gorm:"uniqueIndex;size:64;not null" json:"code"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Count        int             `gorm:"not null" json:"count"`
	DisplayOrder int             `gorm:"not null;index" json:"display_order"`
}

// ProductHistory - one immutable row per stock mutation.
type ProductHistory struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProductID   uint      `gorm:"index;not null" json:"product_id"`
	CountBefore int       `gorm:"not null" json:"count_before"`
	CountAfter  int       `gorm:"not null" json:"count_after"`
	Delta       int       `gorm:"not null" json:"count_delta"`
	Note        string    `gorm:"size:255" json:"note,omitempty"`
	DateTime    time.Time `gorm:"index;not null" json:"date_time"`
	ActorID     *uint     `json:"created_by,omitempty"`
}

// ProductHistory lives in product_histories by default; keep the short name.
func (ProductHistory) TableName() string { return "product_history" }

type OrderStatus string

const (
	OrderPending OrderStatus = "pending"
	OrderAccept  OrderStatus = "accept"
	OrderRefuse  OrderStatus = "refuse"
	OrderDelay   OrderStatus = "delay"
)

var OrderStatuses = []OrderStatus{OrderPending, OrderAccept, OrderRefuse, OrderDelay}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Order - customer order. Paid ("sells") mirrors the existence of a MarketerPayment.
type Order struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	OrderCode    *string             `gorm:"uniqueIndex;size:50" json:"order_code,omitempty"`
	CustomerName string              `gorm:"size:255;not null" json:"customer_name"`
	Phone        string              `gorm:"size:50;not null" json:"phone"`
	PhoneTwo     string              `gorm:"size:50" json:"phone_two,omitempty"`
	Address      string              `gorm:"size:255" json:"address,omitempty"`
	City         string              `gorm:"size:120;index" json:"city,omitempty"`
	Status       OrderStatus         `gorm:"size:16;not null;index" json:"status"`
	Total        decimal.Decimal     `gorm:"type:decimal(10,2);not null" json:"total"`
	Shipping     decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"shipping"`
	Paid         bool                `gorm:"column:sells;not null;index" json:"sells"`
	Notes        string              `gorm:"type:text" json:"notes,omitempty"`
	NameAdd      string              `gorm:"size:255" json:"name_add,omitempty"`
	NameEdit     string              `gorm:"size:255" json:"name_edit,omitempty"`
	MarketerID   *uint               `gorm:"index" json:"marketer_id"`
	Marketer     *Marketer           `gorm:"constraint:OnDelete:SET NULL" json:"marketer,omitempty"`
	MandobeID    *uint               `gorm:"index" json:"mandobe_id"`
	Mandobe      *Mandobe            `gorm:"constraint:OnDelete:SET NULL" json:"mandobe,omitempty"`
	DateTime     time.Time           `gorm:"index;not null" json:"date_time"`
	CreatedAt    time.Time           `json:"created_at"`
	Details      []OrderDetail       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"details"`
}

// OrderDetail - line item. Price is a snapshot taken when the order was written.
type OrderDetail struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"index;not null" json:"order_id"`
	ProductID uint            `gorm:"index;not null" json:"product_id"`
	Product   *Product        `gorm:"constraint:OnDelete:RESTRICT" json:"product,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Note      string          `gorm:"size:255" json:"details,omitempty"`
}

type Marketer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;index" json:"name"`
	Phone     string    `gorm:"size:50" json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Mandobe - delivery agent.
type Mandobe struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;index" json:"name"`
	Phone     string    `gorm:"size:50" json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MarketerPayment - commission settlement, at most one per order.
type MarketerPayment struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     uint            `gorm:"uniqueIndex;not null" json:"order_id"`
	Order       *Order          `gorm:"constraint:OnDelete:CASCADE" json:"order,omitempty"`
	MarketerID  uint            `gorm:"index;not null" json:"marketer_id"`
	Marketer    *Marketer       `gorm:"constraint:OnDelete:RESTRICT" json:"marketer,omitempty"`
	Commission  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"commission"`
	PaymentDate time.Time       `gorm:"index;not null" json:"payment_date"`
	Notes       string          `gorm:"type:text" json:"notes,omitempty"`
	CreatedBy   *uint           `json:"created_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Supplier - positive balance means the business owes the supplier.
type Supplier struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"size:255;not null" json:"name"`
	Phone     string          `gorm:"size:50" json:"phone,omitempty"`
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// SupplierOrder - supplier invoice. Total is the sum of the detail totals.
type SupplierOrder struct {
	ID         uint                  `gorm:"primaryKey" json:"id"`
	SupplierID uint                  `gorm:"index;not null" json:"supplier_id"`
	Supplier   *Supplier             `gorm:"constraint:OnDelete:RESTRICT" json:"supplier,omitempty"`
	Total      decimal.Decimal       `gorm:"type:decimal(12,2);not null" json:"total"`
	Status     string                `gorm:"size:32" json:"status"`
	Type       string                `gorm:"size:64" json:"type,omitempty"`
	Notes      string                `gorm:"type:text" json:"notes,omitempty"`
	DateTime   time.Time             `gorm:"index;not null" json:"date_time"`
	CreatedBy  *uint                 `json:"created_by,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	Details    []SupplierOrderDetail `gorm:"foreignKey:SupplierOrderID;constraint:OnDelete:CASCADE" json:"details"`
}

type SupplierOrderDetail struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	SupplierOrderID uint            `gorm:"index;not null" json:"supplier_order_id"`
	ProductID       uint            `gorm:"index;not null" json:"product_id"`
	Product         *Product        `gorm:"constraint:OnDelete:RESTRICT" json:"product,omitempty"`
	Quantity        int             `gorm:"not null" json:"quantity"`
	Price           decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Total           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
}

type SupplierPayment struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	SupplierID uint            `gorm:"index;not null" json:"supplier_id"`
	Supplier   *Supplier       `gorm:"constraint:OnDelete:RESTRICT" json:"supplier,omitempty"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Type       string          `gorm:"size:64" json:"type,omitempty"`
	Note       string          `gorm:"type:text" json:"note,omitempty"`
	DateTime   time.Time       `gorm:"index;not null" json:"date_time"`
	CreatedBy  *uint           `json:"created_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// All lists every model in dependency order for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Product{},
		&ProductHistory{},
		&Marketer{},
		&Mandobe{},
		&Order{},
		&OrderDetail{},
		&MarketerPayment{},
		&Supplier{},
		&SupplierOrder{},
		&SupplierOrderDetail{},
		&SupplierPayment{},
	}
}

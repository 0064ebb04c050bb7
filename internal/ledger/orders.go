package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sales-ledger/internal/database"
	"sales-ledger/internal/models"
	"sales-ledger/internal/notify"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderLine is a line item as submitted. Price is stored as given and never
// re-read from the product.
type OrderLine struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Note      string          `json:"details"`
}

type OrderInput struct {
	OrderCode    *string             `json:"order_code"`
	CustomerName string              `json:"customer_name"`
	Phone        string              `json:"phone"`
	PhoneTwo     string              `json:"phone_two"`
	Address      string              `json:"address"`
	City         string              `json:"city"`
	Status       models.OrderStatus  `json:"status"`
	Total        decimal.Decimal     `json:"total"`
	Shipping     decimal.NullDecimal `json:"shipping"`
	Notes        string              `json:"notes"`
	MarketerID   *uint               `json:"marketer_id"`
	MandobeID    *uint               `json:"mandobe_id"`
	DateTime     time.Time           `json:"date_time"`
	Details      []OrderLine         `json:"details"`
}

// OrderPatch leaves nil fields alone. A non-nil Details, even empty,
// replaces every line.
type OrderPatch struct {
	OrderCode    *string              `json:"order_code"`
	CustomerName *string              `json:"customer_name"`
	Phone        *string              `json:"phone"`
	PhoneTwo     *string              `json:"phone_two"`
	Address      *string              `json:"address"`
	City         *string              `json:"city"`
	Status       *models.OrderStatus  `json:"status"`
	Total        *decimal.Decimal     `json:"total"`
	Shipping     *decimal.NullDecimal `json:"shipping"`
	Notes        *string              `json:"notes"`
	MarketerID   *uint                `json:"marketer_id"`
	DateTime     *time.Time           `json:"date_time"`
	Details      []OrderLine          `json:"details"`
}

func validateOrderLines(lines []OrderLine) error {
	for i, l := range lines {
		if l.ProductID == 0 || l.Quantity < 1 || l.Price.IsNegative() {
			return validationf("line %d needs product_id, quantity >= 1 and a non-negative price", i+1)
		}
	}
	return nil
}

func normalizeCode(code *string) *string {
	if code == nil {
		return nil
	}
	c := strings.TrimSpace(*code)
	if c == "" {
		return nil
	}
	return &c
}

// CreateOrder writes the order and then its lines. Lines are informational
// snapshots: product stock is not touched.
func (s *Service) CreateOrder(ctx context.Context, in OrderInput, actor Actor) (*models.Order, error) {
	if strings.TrimSpace(in.CustomerName) == "" || strings.TrimSpace(in.Phone) == "" {
		return nil, validationf("customer_name and phone are required")
	}
	if in.Status == "" {
		in.Status = models.OrderPending
	}
	if !in.Status.Valid() {
		return nil, validationf("unknown order status %q", in.Status)
	}
	if in.Total.IsNegative() {
		return nil, validationf("total must not be negative")
	}
	if err := validateOrderLines(in.Details); err != nil {
		return nil, err
	}
	if in.DateTime.IsZero() {
		in.DateTime = s.Now()
	}

	order := models.Order{
		OrderCode:    normalizeCode(in.OrderCode),
		CustomerName: strings.TrimSpace(in.CustomerName),
		Phone:        strings.TrimSpace(in.Phone),
		PhoneTwo:     in.PhoneTwo,
		Address:      in.Address,
		City:         strings.TrimSpace(in.City),
		Status:       in.Status,
		Total:        in.Total,
		Shipping:     in.Shipping,
		Notes:        in.Notes,
		NameAdd:      actor.Name,
		MarketerID:   in.MarketerID,
		MandobeID:    in.MandobeID,
		DateTime:     in.DateTime,
	}
	if order.Total.IsZero() {
		order.Total = linesTotal(in.Details)
	}

	err := s.transact(ctx, func(tx *gorm.DB) error {
		return s.insertOrder(tx, &order, in.Details)
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("order created", zap.Uint("order_id", order.ID), zap.String("total", order.Total.String()), zap.String("actor", actor.Name))
	s.publish([]notify.Event{s.event(notify.OrderCreated, order, nil, actor)})
	return &order, nil
}

func (s *Service) insertOrder(tx *gorm.DB, order *models.Order, lines []OrderLine) error {
	if order.OrderCode != nil {
		var taken int64
		if err := tx.Model(&models.Order{}).Where("order_code = ?", *order.OrderCode).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("%w: order code %q already exists", ErrDuplicate, *order.OrderCode)
		}
	}
	if err := checkParties(tx, order.MarketerID, order.MandobeID); err != nil {
		return err
	}
	if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
		return err
	}
	details, err := replaceLines(tx, order.ID, lines)
	order.Details = details
	return err
}

func checkParties(tx *gorm.DB, marketerID, mandobeID *uint) error {
	if marketerID != nil {
		if err := exists(tx, &models.Marketer{}, "marketer", *marketerID); err != nil {
			return err
		}
	}
	if mandobeID != nil {
		if err := exists(tx, &models.Mandobe{}, "mandobe", *mandobeID); err != nil {
			return err
		}
	}
	return nil
}

func exists(tx *gorm.DB, model any, entity string, id uint) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

// replaceLines deletes every line of the order and inserts lines in their place.
func replaceLines(tx *gorm.DB, orderID uint, lines []OrderLine) ([]models.OrderDetail, error) {
	if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderDetail{}).Error; err != nil {
		return nil, err
	}
	details := make([]models.OrderDetail, 0, len(lines))
	if len(lines) == 0 {
		return details, nil
	}

	ids := make([]uint, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	var found int64
	if err := tx.Model(&models.Product{}).Where("id IN ?", ids).Distinct("id").Count(&found).Error; err != nil {
		return nil, err
	}
	if int(found) != countDistinct(ids) {
		return nil, fmt.Errorf("%w: order references unknown products", ErrNotFound)
	}

	for _, l := range lines {
		details = append(details, models.OrderDetail{
			OrderID:   orderID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
			Note:      l.Note,
		})
	}
	return details, tx.Omit(clause.Associations).Create(&details).Error
}

func countDistinct(ids []uint) int {
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}

func linesTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// UpdateOrder changes scalar fields and, when Details is set, swaps the lines.
func (s *Service) UpdateOrder(ctx context.Context, id uint, patch OrderPatch, actor Actor) (*models.Order, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, validationf("unknown order status %q", *patch.Status)
	}
	if patch.Total != nil && patch.Total.IsNegative() {
		return nil, validationf("total must not be negative")
	}
	if err := validateOrderLines(patch.Details); err != nil {
		return nil, err
	}

	var order models.Order
	changes := map[string]notify.Change{}
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&order, id).Error; err != nil {
			return err
		}

		updates := map[string]any{}
		setString := func(column string, field *string, value *string) {
			if value == nil || *value == *field {
				return
			}
			changes[column] = notify.Change{Old: *field, New: *value}
			updates[column] = *value
			*field = *value
		}
		setString("customer_name", &order.CustomerName, patch.CustomerName)
		setString("phone", &order.Phone, patch.Phone)
		setString("phone_two", &order.PhoneTwo, patch.PhoneTwo)
		setString("address", &order.Address, patch.Address)
		setString("city", &order.City, patch.City)
		setString("notes", &order.Notes, patch.Notes)
		if order.CustomerName == "" || order.Phone == "" {
			return validationf("customer_name and phone must not be empty")
		}

		if patch.OrderCode != nil {
			code := normalizeCode(patch.OrderCode)
			if !sameCode(code, order.OrderCode) {
				if code != nil {
					var taken int64
					if err := tx.Model(&models.Order{}).Where("order_code = ? AND id <> ?", *code, id).Count(&taken).Error; err != nil {
						return err
					}
					if taken > 0 {
						return fmt.Errorf("%w: order code %q already exists", ErrDuplicate, *code)
					}
				}
				changes["order_code"] = notify.Change{Old: order.OrderCode, New: code}
				updates["order_code"] = code
				order.OrderCode = code
			}
		}
		if patch.Status != nil && *patch.Status != order.Status {
			changes["status"] = notify.Change{Old: order.Status, New: *patch.Status}
			updates["status"], order.Status = *patch.Status, *patch.Status
		}
		if patch.Total != nil && !patch.Total.Equal(order.Total) {
			changes["total"] = notify.Change{Old: order.Total, New: *patch.Total}
			updates["total"], order.Total = *patch.Total, *patch.Total
		}
		if patch.Shipping != nil && !sameShipping(*patch.Shipping, order.Shipping) {
			changes["shipping"] = notify.Change{Old: order.Shipping, New: *patch.Shipping}
			updates["shipping"], order.Shipping = *patch.Shipping, *patch.Shipping
		}
		if patch.MarketerID != nil && !sameID(patch.MarketerID, order.MarketerID) {
			if err := checkParties(tx, patch.MarketerID, nil); err != nil {
				return err
			}
			changes["marketer_id"] = notify.Change{Old: order.MarketerID, New: *patch.MarketerID}
			updates["marketer_id"], order.MarketerID = *patch.MarketerID, patch.MarketerID
		}
		if patch.DateTime != nil && !patch.DateTime.Equal(order.DateTime) {
			changes["date_time"] = notify.Change{Old: order.DateTime, New: *patch.DateTime}
			updates["date_time"], order.DateTime = *patch.DateTime, *patch.DateTime
		}

		if patch.Details != nil {
			details, err := replaceLines(tx, id, patch.Details)
			if err != nil {
				return err
			}
			changes["details"] = notify.Change{New: len(details)}
			order.Details = details
		} else if err := tx.Where("order_id = ?", id).Order("id").Find(&order.Details).Error; err != nil {
			return err
		}

		if len(updates) == 0 && patch.Details == nil {
			return nil
		}
		updates["name_edit"], order.NameEdit = actor.Name, actor.Name
		return tx.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		s.Log.Info("order updated", zap.Uint("order_id", id), zap.Strings("fields", changedFields(changes)), zap.String("actor", actor.Name))
		s.publish([]notify.Event{s.event(notify.OrderUpdated, order, changes, actor)})
	}
	return &order, nil
}

func sameCode(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameShipping(a, b decimal.NullDecimal) bool {
	if !a.Valid || !b.Valid {
		return a.Valid == b.Valid
	}
	return a.Decimal.Equal(b.Decimal)
}

func sameID(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// updateOrderField runs one narrow update under the order's row lock.
func (s *Service) updateOrderField(ctx context.Context, id uint, actor Actor, apply func(tx *gorm.DB, order *models.Order) (map[string]notify.Change, map[string]any, error)) (*models.Order, map[string]notify.Change, error) {
	var order models.Order
	var changes map[string]notify.Change
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&order, id).Error; err != nil {
			return err
		}
		var updates map[string]any
		var err error
		changes, updates, err = apply(tx, &order)
		if err != nil || len(updates) == 0 {
			return err
		}
		updates["name_edit"], order.NameEdit = actor.Name, actor.Name
		return tx.Model(&models.Order{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, nil, err
	}
	if len(changes) > 0 {
		s.Log.Info("order updated",
			zap.Uint("order_id", id),
			zap.Strings("fields", changedFields(changes)),
			zap.Any("changes", changes),
			zap.String("actor", actor.Name))
		s.publish([]notify.Event{s.event(notify.OrderUpdated, order, changes, actor)})
	}
	return &order, changes, nil
}

func (s *Service) UpdateOrderStatus(ctx context.Context, id uint, status models.OrderStatus, actor Actor) (*models.Order, map[string]notify.Change, error) {
	if !status.Valid() {
		return nil, nil, validationf("unknown order status %q", status)
	}
	return s.updateOrderField(ctx, id, actor, func(_ *gorm.DB, order *models.Order) (map[string]notify.Change, map[string]any, error) {
		if order.Status == status {
			return nil, nil, nil
		}
		changes := map[string]notify.Change{"status": {Old: order.Status, New: status}}
		order.Status = status
		return changes, map[string]any{"status": status}, nil
	})
}

// UpdateOrderMandobe assigns the delivery agent; nil clears it.
func (s *Service) UpdateOrderMandobe(ctx context.Context, id uint, mandobeID *uint, actor Actor) (*models.Order, map[string]notify.Change, error) {
	return s.updateOrderField(ctx, id, actor, func(tx *gorm.DB, order *models.Order) (map[string]notify.Change, map[string]any, error) {
		if sameID(order.MandobeID, mandobeID) {
			return nil, nil, nil
		}
		if err := checkParties(tx, nil, mandobeID); err != nil {
			return nil, nil, err
		}
		changes := map[string]notify.Change{"mandobe_id": {Old: order.MandobeID, New: mandobeID}}
		order.MandobeID = mandobeID
		return changes, map[string]any{"mandobe_id": mandobeID}, nil
	})
}

// UpdateOrderPayment sets the paid flag. The flag mirrors the commission
// payment, so a value that disagrees with it is rejected; settling and
// unsettling go through the marketer payment operations.
func (s *Service) UpdateOrderPayment(ctx context.Context, id uint, paid bool, actor Actor) (*models.Order, map[string]notify.Change, error) {
	return s.updateOrderField(ctx, id, actor, func(tx *gorm.DB, order *models.Order) (map[string]notify.Change, map[string]any, error) {
		var settled int64
		if err := tx.Model(&models.MarketerPayment{}).Where("order_id = ?", order.ID).Count(&settled).Error; err != nil {
			return nil, nil, err
		}
		if paid != (settled > 0) {
			if paid {
				return nil, nil, validationf("order %d has no commission payment", order.ID)
			}
			return nil, nil, validationf("order %d has a commission payment; delete it to mark the order unpaid", order.ID)
		}
		if order.Paid == paid {
			return nil, nil, nil
		}
		changes := map[string]notify.Change{"sells": {Old: order.Paid, New: paid}}
		order.Paid = paid
		return changes, map[string]any{"sells": paid}, nil
	})
}

// DeleteOrder removes the order with its lines and its commission payment.
func (s *Service) DeleteOrder(ctx context.Context, id uint, actor Actor) error {
	var order models.Order
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&order, id).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.MarketerPayment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderDetail{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Order{}, id).Error
	})
	if err != nil {
		return err
	}
	s.Log.Info("order deleted", zap.Uint("order_id", id), zap.String("actor", actor.Name))
	s.publish([]notify.Event{s.event(notify.OrderDeleted, order, nil, actor)})
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := s.read(ctx).
		Preload("Details.Product").
		Preload("Marketer").
		Preload("Mandobe").
		First(&order, id).Error
	if err != nil {
		return nil, classify(err)
	}
	return &order, nil
}

// Order listing sorts.
const (
	SortNewest   = "id_desc"
	SortDateAsc  = "date_asc"
	SortDateDesc = "date_desc"
)

type OrderQuery struct {
	database.OrderFilter
	Sort   string
	Limit  int
	Offset int
}

// ListOrders returns one page of matching orders and the number of matches.
func (s *Service) ListOrders(ctx context.Context, q OrderQuery) ([]models.Order, int64, error) {
	db := s.read(ctx)
	var total int64
	if err := q.Apply(db.Model(&models.Order{})).Count(&total).Error; err != nil {
		return nil, 0, classify(err)
	}

	list := q.Apply(db.Model(&models.Order{})).
		Preload("Details.Product").
		Preload("Marketer").
		Preload("Mandobe")
	switch q.Sort {
	case SortDateAsc:
		list = list.Order("date_time ASC, id ASC")
	case SortDateDesc:
		list = list.Order("date_time DESC, id DESC")
	case "", SortNewest:
		list = list.Order("id DESC")
	default:
		return nil, 0, validationf("unknown sort %q", q.Sort)
	}
	if q.Limit > 0 {
		list = list.Limit(q.Limit).Offset(q.Offset)
	}

	var orders []models.Order
	if err := list.Find(&orders).Error; err != nil {
		return nil, 0, classify(err)
	}
	return orders, total, nil
}

func (s *Service) GetStatistics(ctx context.Context, f database.OrderFilter) (*database.OrderStatistics, error) {
	stats, err := database.GetOrderStatistics(s.read(ctx), f)
	return stats, classify(err)
}

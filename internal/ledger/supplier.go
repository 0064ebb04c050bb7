package ledger

import (
	"context"
	"fmt"
	"time"

	"sales-ledger/internal/models"
	"sales-ledger/internal/notify"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SupplierOrderLine is one invoice line as submitted.
type SupplierOrderLine struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type SupplierOrderInput struct {
	SupplierID uint                `json:"supplier_id"`
	Status     string              `json:"status"`
	Type       string              `json:"type"`
	Notes      string              `json:"notes"`
	DateTime   time.Time           `json:"date_time"`
	Details    []SupplierOrderLine `json:"details"`
}

// SupplierOrderPatch leaves nil fields alone. A nil Details keeps the lines
// and the total; a non-nil one replaces them.
type SupplierOrderPatch struct {
	Status   *string             `json:"status"`
	Type     *string             `json:"type"`
	Notes    *string             `json:"notes"`
	DateTime *time.Time          `json:"date_time"`
	Details  []SupplierOrderLine `json:"details"`
}

// SupplierOrderResult is a committed invoice mutation.
type SupplierOrderResult struct {
	Order   models.SupplierOrder `json:"order"`
	Stock   []StockMovement      `json:"stock"`
	Balance BalanceMovement      `json:"balance"`
}

func validateLines(lines []SupplierOrderLine) error {
	if len(lines) == 0 {
		return validationf("at least one invoice line is required")
	}
	for i, l := range lines {
		// a zero price counts as missing
		if l.ProductID == 0 || l.Quantity < 1 || !l.Price.IsPositive() {
			return validationf("line %d needs product_id, quantity >= 1 and price > 0", i+1)
		}
	}
	return nil
}

// applySupplierOrder books the lines: stock up per line, detail rows, total,
// balance up by the total. Products are locked before the supplier.
func (s *Service) applySupplierOrder(tx *gorm.DB, order *models.SupplierOrder, lines []SupplierOrderLine, actor Actor) ([]StockMovement, BalanceMovement, error) {
	ids := make([]uint, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	if _, err := lockProducts(tx, ids); err != nil {
		return nil, BalanceMovement{}, err
	}

	total := decimal.Zero
	details := make([]models.SupplierOrderDetail, 0, len(lines))
	moves := make([]StockMovement, 0, len(lines))
	note := fmt.Sprintf("supplier order #%d", order.ID)
	for _, l := range lines {
		mv, err := s.adjustStock(tx, l.ProductID, l.Quantity, note, actor)
		if err != nil {
			return nil, BalanceMovement{}, err
		}
		moves = append(moves, mv)

		lineTotal := l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		total = total.Add(lineTotal)
		details = append(details, models.SupplierOrderDetail{
			SupplierOrderID: order.ID,
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			Price:           l.Price,
			Total:           lineTotal,
		})
	}
	if err := tx.Create(&details).Error; err != nil {
		return nil, BalanceMovement{}, err
	}
	if err := tx.Model(&models.SupplierOrder{}).Where("id = ?", order.ID).Update("total", total).Error; err != nil {
		return nil, BalanceMovement{}, err
	}
	order.Total = total
	order.Details = details

	bal, err := s.adjustBalance(tx, order.SupplierID, total)
	if err != nil {
		return nil, BalanceMovement{}, err
	}
	return moves, bal, nil
}

// revertSupplierOrder undoes applySupplierOrder: clamped stock decrements,
// detail rows removed, balance down by the stored total.
func (s *Service) revertSupplierOrder(tx *gorm.DB, order *models.SupplierOrder, actor Actor) ([]StockMovement, BalanceMovement, error) {
	var details []models.SupplierOrderDetail
	if err := tx.Where("supplier_order_id = ?", order.ID).Order("id").Find(&details).Error; err != nil {
		return nil, BalanceMovement{}, err
	}
	ids := make([]uint, len(details))
	for i, d := range details {
		ids[i] = d.ProductID
	}
	if _, err := lockProducts(tx, ids); err != nil {
		return nil, BalanceMovement{}, err
	}

	var moves []StockMovement
	note := fmt.Sprintf("revert supplier order #%d", order.ID)
	for _, d := range details {
		mv, changed, err := s.revertStock(tx, d.ProductID, d.Quantity, note, actor)
		if err != nil {
			return nil, BalanceMovement{}, err
		}
		if changed {
			moves = append(moves, mv)
		}
	}
	if err := tx.Where("supplier_order_id = ?", order.ID).Delete(&models.SupplierOrderDetail{}).Error; err != nil {
		return nil, BalanceMovement{}, err
	}

	bal, err := s.adjustBalance(tx, order.SupplierID, order.Total.Neg())
	if err != nil {
		return nil, BalanceMovement{}, err
	}
	order.Details = nil
	return moves, bal, nil
}

func (s *Service) CreateSupplierOrder(ctx context.Context, in SupplierOrderInput, actor Actor) (*SupplierOrderResult, error) {
	if in.SupplierID == 0 {
		return nil, validationf("supplier_id is required")
	}
	if err := validateLines(in.Details); err != nil {
		return nil, err
	}
	if in.DateTime.IsZero() {
		in.DateTime = s.Now()
	}

	res := &SupplierOrderResult{}
	err := s.transact(ctx, func(tx *gorm.DB) error {
		// existence check only; applySupplierOrder locks the products, then the supplier
		if err := exists(tx, &models.Supplier{}, "supplier", in.SupplierID); err != nil {
			return err
		}

		res.Order = models.SupplierOrder{
			SupplierID: in.SupplierID,
			Total:      decimal.Zero,
			Status:     in.Status,
			Type:       in.Type,
			Notes:      in.Notes,
			DateTime:   in.DateTime,
			CreatedBy:  actor.idPtr(),
		}
		if err := tx.Omit("Details", "Supplier").Create(&res.Order).Error; err != nil {
			return err
		}

		var err error
		res.Stock, res.Balance, err = s.applySupplierOrder(tx, &res.Order, in.Details, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("supplier order created",
		zap.Uint("supplier_order_id", res.Order.ID),
		zap.Uint("supplier_id", in.SupplierID),
		zap.String("total", res.Order.Total.String()),
		zap.String("balance", res.Balance.After.String()),
		zap.String("actor", actor.Name))
	s.publishSupplierOrder(notify.SupplierOrderCreated, res, nil, actor)
	return res, nil
}

// UpdateSupplierOrder reverts the stored invoice and applies the new lines in
// the same transaction, so the balance only ever moves by newTotal-oldTotal
// as seen from outside.
func (s *Service) UpdateSupplierOrder(ctx context.Context, id uint, patch SupplierOrderPatch, actor Actor) (*SupplierOrderResult, error) {
	if patch.Details != nil {
		if err := validateLines(patch.Details); err != nil {
			return nil, err
		}
	}

	res := &SupplierOrderResult{}
	changes := map[string]notify.Change{}
	err := s.transact(ctx, func(tx *gorm.DB) error {
		order := &res.Order
		if err := forUpdate(tx).First(order, id).Error; err != nil {
			return err
		}

		updates := map[string]any{}
		if patch.Status != nil && *patch.Status != order.Status {
			changes["status"] = notify.Change{Old: order.Status, New: *patch.Status}
			updates["status"], order.Status = *patch.Status, *patch.Status
		}
		if patch.Type != nil && *patch.Type != order.Type {
			changes["type"] = notify.Change{Old: order.Type, New: *patch.Type}
			updates["type"], order.Type = *patch.Type, *patch.Type
		}
		if patch.Notes != nil && *patch.Notes != order.Notes {
			changes["notes"] = notify.Change{Old: order.Notes, New: *patch.Notes}
			updates["notes"], order.Notes = *patch.Notes, *patch.Notes
		}
		if patch.DateTime != nil && !patch.DateTime.Equal(order.DateTime) {
			changes["date_time"] = notify.Change{Old: order.DateTime, New: *patch.DateTime}
			updates["date_time"], order.DateTime = *patch.DateTime, *patch.DateTime
		}
		if len(updates) > 0 {
			if err := tx.Model(&models.SupplierOrder{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}
		}

		if patch.Details == nil {
			return tx.Where("supplier_order_id = ?", id).Order("id").Find(&order.Details).Error
		}

		oldTotal := order.Total
		reverted, first, err := s.revertSupplierOrder(tx, order, actor)
		if err != nil {
			return err
		}
		applied, last, err := s.applySupplierOrder(tx, order, patch.Details, actor)
		if err != nil {
			return err
		}
		res.Stock = append(reverted, applied...)
		res.Balance = mergeBalance(first, last)
		if !oldTotal.Equal(order.Total) {
			changes["total"] = notify.Change{Old: oldTotal, New: order.Total}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("supplier order updated",
		zap.Uint("supplier_order_id", id),
		zap.Bool("lines_replaced", patch.Details != nil),
		zap.String("total", res.Order.Total.String()),
		zap.String("actor", actor.Name))
	s.publishSupplierOrder(notify.SupplierOrderUpdated, res, changes, actor)
	return res, nil
}

func (s *Service) DeleteSupplierOrder(ctx context.Context, id uint, actor Actor) (*SupplierOrderResult, error) {
	res := &SupplierOrderResult{}
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&res.Order, id).Error; err != nil {
			return err
		}
		var err error
		res.Stock, res.Balance, err = s.revertSupplierOrder(tx, &res.Order, actor)
		if err != nil {
			return err
		}
		return tx.Delete(&models.SupplierOrder{}, id).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("supplier order deleted",
		zap.Uint("supplier_order_id", id),
		zap.String("balance", res.Balance.After.String()),
		zap.String("actor", actor.Name))
	s.publishSupplierOrder(notify.SupplierOrderDeleted, res, nil, actor)
	return res, nil
}

func (s *Service) publishSupplierOrder(eventType string, res *SupplierOrderResult, changes map[string]notify.Change, actor Actor) {
	events := []notify.Event{s.event(eventType, res.Order, changes, actor)}
	events = append(events, s.stockEvents(res.Stock, actor)...)
	if res.Balance.SupplierID != 0 && !res.Balance.Before.Equal(res.Balance.After) {
		events = append(events, s.balanceEvent(res.Balance, actor))
	}
	s.publish(events)
}

// --- Payments ---

type SupplierPaymentInput struct {
	SupplierID uint            `json:"supplier_id"`
	Amount     decimal.Decimal `json:"amount"`
	Type       string          `json:"type"`
	Note       string          `json:"note"`
	DateTime   time.Time       `json:"date_time"`
}

type SupplierPaymentPatch struct {
	Amount   *decimal.Decimal `json:"amount"`
	Type     *string          `json:"type"`
	Note     *string          `json:"note"`
	DateTime *time.Time       `json:"date_time"`
}

type SupplierPaymentResult struct {
	Payment models.SupplierPayment `json:"payment"`
	Balance BalanceMovement        `json:"balance"`
}

func (s *Service) AddSupplierPayment(ctx context.Context, in SupplierPaymentInput, actor Actor) (*SupplierPaymentResult, error) {
	if in.SupplierID == 0 {
		return nil, validationf("supplier_id is required")
	}
	if !in.Amount.IsPositive() {
		return nil, validationf("amount must be greater than zero")
	}
	if in.DateTime.IsZero() {
		in.DateTime = s.Now()
	}

	res := &SupplierPaymentResult{}
	err := s.transact(ctx, func(tx *gorm.DB) error {
		var err error
		if res.Balance, err = s.adjustBalance(tx, in.SupplierID, in.Amount.Neg()); err != nil {
			return err
		}
		res.Payment = models.SupplierPayment{
			SupplierID: in.SupplierID,
			Amount:     in.Amount,
			Type:       in.Type,
			Note:       in.Note,
			DateTime:   in.DateTime,
			CreatedBy:  actor.idPtr(),
		}
		return tx.Omit("Supplier").Create(&res.Payment).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("supplier payment added",
		zap.Uint("payment_id", res.Payment.ID),
		zap.Uint("supplier_id", in.SupplierID),
		zap.String("amount", in.Amount.String()),
		zap.String("balance", res.Balance.After.String()),
		zap.String("actor", actor.Name))
	s.publish([]notify.Event{
		s.event(notify.SupplierPaymentCreated, res.Payment, nil, actor),
		s.balanceEvent(res.Balance, actor),
	})
	return res, nil
}

// UpdateSupplierPayment moves the balance by oldAmount-newAmount.
func (s *Service) UpdateSupplierPayment(ctx context.Context, id uint, patch SupplierPaymentPatch, actor Actor) (*SupplierPaymentResult, error) {
	if patch.Amount != nil && !patch.Amount.IsPositive() {
		return nil, validationf("amount must be greater than zero")
	}

	res := &SupplierPaymentResult{}
	changes := map[string]notify.Change{}
	err := s.transact(ctx, func(tx *gorm.DB) error {
		p := &res.Payment
		if err := forUpdate(tx).First(p, id).Error; err != nil {
			return err
		}

		updates := map[string]any{}
		if patch.Amount != nil && !patch.Amount.Equal(p.Amount) {
			first, err := s.adjustBalance(tx, p.SupplierID, p.Amount)
			if err != nil {
				return err
			}
			last, err := s.adjustBalance(tx, p.SupplierID, patch.Amount.Neg())
			if err != nil {
				return err
			}
			res.Balance = mergeBalance(first, last)
			changes["amount"] = notify.Change{Old: p.Amount, New: *patch.Amount}
			updates["amount"], p.Amount = *patch.Amount, *patch.Amount
		}
		if patch.Type != nil && *patch.Type != p.Type {
			changes["type"] = notify.Change{Old: p.Type, New: *patch.Type}
			updates["type"], p.Type = *patch.Type, *patch.Type
		}
		if patch.Note != nil && *patch.Note != p.Note {
			changes["note"] = notify.Change{Old: p.Note, New: *patch.Note}
			updates["note"], p.Note = *patch.Note, *patch.Note
		}
		if patch.DateTime != nil && !patch.DateTime.Equal(p.DateTime) {
			changes["date_time"] = notify.Change{Old: p.DateTime, New: *patch.DateTime}
			updates["date_time"], p.DateTime = *patch.DateTime, *patch.DateTime
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.SupplierPayment{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	if len(changes) > 0 {
		s.Log.Info("supplier payment updated",
			zap.Uint("supplier_payment_id", id),
			zap.Uint("supplier_id", res.Payment.SupplierID),
			zap.Strings("fields", changedFields(changes)),
			zap.String("amount", res.Payment.Amount.String()),
			zap.String("actor", actor.Name))
	}
	events := []notify.Event{s.event(notify.SupplierPaymentUpdated, res.Payment, changes, actor)}
	if res.Balance.SupplierID != 0 {
		events = append(events, s.balanceEvent(res.Balance, actor))
	}
	s.publish(events)
	return res, nil
}

func (s *Service) DeleteSupplierPayment(ctx context.Context, id uint, actor Actor) (*SupplierPaymentResult, error) {
	res := &SupplierPaymentResult{}
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&res.Payment, id).Error; err != nil {
			return err
		}
		var err error
		if res.Balance, err = s.adjustBalance(tx, res.Payment.SupplierID, res.Payment.Amount); err != nil {
			return err
		}
		return tx.Delete(&models.SupplierPayment{}, id).Error
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("supplier payment deleted",
		zap.Uint("payment_id", id),
		zap.String("balance", res.Balance.After.String()),
		zap.String("actor", actor.Name))
	s.publish([]notify.Event{
		s.event(notify.SupplierPaymentDeleted, res.Payment, nil, actor),
		s.balanceEvent(res.Balance, actor),
	})
	return res, nil
}

// --- Listings ---

// SupplierLedgerFilter narrows invoice and payment listings. Zero values mean "any".
type SupplierLedgerFilter struct {
	SupplierID uint
	From       *time.Time
	To         *time.Time
}

func (f SupplierLedgerFilter) apply(q *gorm.DB) *gorm.DB {
	if f.SupplierID != 0 {
		q = q.Where("supplier_id = ?", f.SupplierID)
	}
	if f.From != nil {
		q = q.Where("date_time >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("date_time <= ?", *f.To)
	}
	return q
}

func (s *Service) ListSupplierOrders(ctx context.Context, f SupplierLedgerFilter) ([]models.SupplierOrder, error) {
	var out []models.SupplierOrder
	err := f.apply(s.read(ctx)).
		Preload("Supplier").
		Preload("Details.Product").
		Order("date_time DESC, id DESC").
		Find(&out).Error
	return out, classify(err)
}

func (s *Service) GetSupplierOrder(ctx context.Context, id uint) (*models.SupplierOrder, error) {
	var order models.SupplierOrder
	err := s.read(ctx).Preload("Supplier").Preload("Details.Product").First(&order, id).Error
	if err != nil {
		return nil, classify(err)
	}
	return &order, nil
}

func (s *Service) ListSupplierPayments(ctx context.Context, f SupplierLedgerFilter) ([]models.SupplierPayment, error) {
	var out []models.SupplierPayment
	err := f.apply(s.read(ctx)).
		Preload("Supplier").
		Order("date_time DESC, id DESC").
		Find(&out).Error
	return out, classify(err)
}

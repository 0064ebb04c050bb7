package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sales-ledger/internal/models"
	"sales-ledger/internal/notify"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MarketerPaymentInput settles one order's commission.
type MarketerPaymentInput struct {
	OrderID     uint            `json:"order_id"`
	MarketerID  uint            `json:"marketer_id"`
	Commission  decimal.Decimal `json:"commission"`
	PaymentDate time.Time       `json:"payment_date"`
	Notes       string          `json:"notes"`
}

// PaymentFailure is an item the batch could not settle.
type PaymentFailure struct {
	OrderID    uint   `json:"order_id"`
	MarketerID uint   `json:"marketer_id"`
	Error      string `json:"error"`
	Err        error  `json:"-"`
}

type BulkPaymentResult struct {
	Results []models.MarketerPayment `json:"results"`
	Errors  []PaymentFailure         `json:"errors"`
}

// ProcessBulkMarketerPayments settles each item in its own transaction. A
// failing item is reported and does not stop the others.
func (s *Service) ProcessBulkMarketerPayments(ctx context.Context, items []MarketerPaymentInput, actor Actor) (*BulkPaymentResult, error) {
	if len(items) == 0 {
		return nil, validationf("payments list is empty")
	}

	res := &BulkPaymentResult{Results: []models.MarketerPayment{}, Errors: []PaymentFailure{}}
	for _, item := range items {
		payment, order, err := s.settle(ctx, item, actor)
		if err != nil {
			s.Log.Warn("commission not settled",
				zap.Uint("order_id", item.OrderID),
				zap.Uint("marketer_id", item.MarketerID),
				zap.Error(err))
			res.Errors = append(res.Errors, PaymentFailure{OrderID: item.OrderID, MarketerID: item.MarketerID, Error: err.Error(), Err: err})
			continue
		}
		res.Results = append(res.Results, *payment)
		s.publish([]notify.Event{
			s.event(notify.MarketerPaymentCreated, payment, nil, actor),
			s.event(notify.OrderUpdated, order, map[string]notify.Change{"sells": {Old: false, New: true}}, actor),
		})
	}

	s.Log.Info("commission batch processed",
		zap.Int("settled", len(res.Results)),
		zap.Int("failed", len(res.Errors)),
		zap.String("actor", actor.Name))
	return res, nil
}

func (s *Service) settle(ctx context.Context, item MarketerPaymentInput, actor Actor) (*models.MarketerPayment, *models.Order, error) {
	switch {
	case item.OrderID == 0 || item.MarketerID == 0:
		return nil, nil, validationf("order_id and marketer_id are required")
	case item.Commission.IsNegative():
		return nil, nil, validationf("commission must not be negative")
	}
	if item.PaymentDate.IsZero() {
		item.PaymentDate = s.Now()
	}

	var order models.Order
	var payment models.MarketerPayment
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&order, item.OrderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("order", item.OrderID)
			}
			return err
		}
		if err := exists(tx, &models.Marketer{}, "marketer", item.MarketerID); err != nil {
			return err
		}
		var settled int64
		if err := tx.Model(&models.MarketerPayment{}).Where("order_id = ?", item.OrderID).Count(&settled).Error; err != nil {
			return err
		}
		if settled > 0 {
			return fmt.Errorf("%w: order %d already paid", ErrDuplicate, item.OrderID)
		}

		payment = models.MarketerPayment{
			OrderID:     item.OrderID,
			MarketerID:  item.MarketerID,
			Commission:  item.Commission,
			PaymentDate: item.PaymentDate,
			Notes:       item.Notes,
			CreatedBy:   actor.idPtr(),
		}
		if err := tx.Omit("Order", "Marketer").Create(&payment).Error; err != nil {
			return err
		}
		order.Paid = true
		return tx.Model(&models.Order{}).Where("id = ?", item.OrderID).Update("sells", true).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return &payment, &order, nil
}

// DeleteMarketerPayment clears the order's paid flag and removes the payment.
func (s *Service) DeleteMarketerPayment(ctx context.Context, id uint, actor Actor) error {
	var payment models.MarketerPayment
	var order models.Order
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&payment, id).Error; err != nil {
			return err
		}
		if err := forUpdate(tx).First(&order, payment.OrderID).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("sells", false).Error; err != nil {
			return err
		}
		order.Paid = false
		return tx.Delete(&models.MarketerPayment{}, id).Error
	})
	if err != nil {
		return err
	}

	s.Log.Info("commission payment deleted", zap.Uint("payment_id", id), zap.Uint("order_id", order.ID), zap.String("actor", actor.Name))
	s.publish([]notify.Event{
		s.event(notify.MarketerPaymentDeleted, payment, nil, actor),
		s.event(notify.OrderUpdated, order, map[string]notify.Change{"sells": {Old: true, New: false}}, actor),
	})
	return nil
}

// MarketerPaymentFilter narrows commission listings. Zero values mean "any".
type MarketerPaymentFilter struct {
	MarketerID uint
	From       *time.Time
	To         *time.Time
}

func (f MarketerPaymentFilter) apply(q *gorm.DB) *gorm.DB {
	if f.MarketerID != 0 {
		q = q.Where("marketer_payments.marketer_id = ?", f.MarketerID)
	}
	if f.From != nil {
		q = q.Where("marketer_payments.payment_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("marketer_payments.payment_date <= ?", *f.To)
	}
	return q
}

// PaymentDay groups the commission payments made on one calendar day.
type PaymentDay struct {
	Date     string                   `json:"date"`
	Total    decimal.Decimal          `json:"total"`
	Payments []models.MarketerPayment `json:"payments"`
}

// ListMarketerPayments returns payments grouped by day, newest day first.
func (s *Service) ListMarketerPayments(ctx context.Context, f MarketerPaymentFilter) ([]PaymentDay, error) {
	payments, err := s.findMarketerPayments(ctx, f)
	if err != nil {
		return nil, err
	}

	days := []PaymentDay{}
	for _, p := range payments {
		day := p.PaymentDate.Format(time.DateOnly)
		if n := len(days); n == 0 || days[n-1].Date != day {
			days = append(days, PaymentDay{Date: day, Total: decimal.Zero})
		}
		d := &days[len(days)-1]
		d.Payments = append(d.Payments, p)
		d.Total = d.Total.Add(p.Commission)
	}
	return days, nil
}

// PaymentMonth groups the commission payments of one calendar month.
type PaymentMonth struct {
	Month    string                   `json:"month"`
	Count    int                      `json:"count"`
	Total    decimal.Decimal          `json:"total_commission"`
	Payments []models.MarketerPayment `json:"payments"`
}

// MarketerPaymentsByMonth returns payments grouped by month ("2006-01"),
// newest month first.
func (s *Service) MarketerPaymentsByMonth(ctx context.Context, f MarketerPaymentFilter) ([]PaymentMonth, error) {
	payments, err := s.findMarketerPayments(ctx, f)
	if err != nil {
		return nil, err
	}

	months := []PaymentMonth{}
	for _, p := range payments {
		month := p.PaymentDate.Format("2006-01")
		if n := len(months); n == 0 || months[n-1].Month != month {
			months = append(months, PaymentMonth{Month: month, Total: decimal.Zero})
		}
		m := &months[len(months)-1]
		m.Payments = append(m.Payments, p)
		m.Count++
		m.Total = m.Total.Add(p.Commission)
	}
	return months, nil
}

func (s *Service) findMarketerPayments(ctx context.Context, f MarketerPaymentFilter) ([]models.MarketerPayment, error) {
	var payments []models.MarketerPayment
	err := f.apply(s.read(ctx).Model(&models.MarketerPayment{})).
		Preload("Order").
		Preload("Marketer").
		Order("payment_date DESC, id DESC").
		Find(&payments).Error
	return payments, classify(err)
}

type MarketerSummary struct {
	MarketerID      uint            `json:"marketer_id"`
	Name            string          `json:"name"`
	Payments        int64           `json:"payments"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

// MarketerPaymentSummary totals commissions per marketer.
func (s *Service) MarketerPaymentSummary(ctx context.Context, f MarketerPaymentFilter) ([]MarketerSummary, error) {
	var rows []MarketerSummary
	err := f.apply(s.read(ctx).Model(&models.MarketerPayment{})).
		Select("marketer_payments.marketer_id AS marketer_id, marketers.name AS name, COUNT(*) AS payments, COALESCE(SUM(marketer_payments.commission), 0) AS total_commission").
		Joins("JOIN marketers ON marketers.id = marketer_payments.marketer_id").
		Group("marketer_payments.marketer_id, marketers.name").
		Order("marketers.name ASC").
		Scan(&rows).Error
	return rows, classify(err)
}

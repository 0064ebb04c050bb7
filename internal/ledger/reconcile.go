package ledger

import (
	"context"

	"sales-ledger/internal/models"
	"sales-ledger/internal/notify"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BalanceDrift is a supplier whose stored balance differs from its invoices
// minus its payments.
type BalanceDrift struct {
	SupplierID uint            `json:"supplier_id"`
	Name       string          `json:"name"`
	Stored     decimal.Decimal `json:"stored"`
	Computed   decimal.Decimal `json:"computed"`
	Fixed      bool            `json:"fixed"`
}

// ReconcileSupplierBalances recomputes every balance from the live invoices
// and payments. With fix set, drifted balances are rewritten under the
// supplier's row lock.
func (s *Service) ReconcileSupplierBalances(ctx context.Context, fix bool, actor Actor) ([]BalanceDrift, error) {
	var ids []uint
	if err := s.read(ctx).Model(&models.Supplier{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, classify(err)
	}

	drifts := []BalanceDrift{}
	for _, id := range ids {
		var drift *BalanceDrift
		err := s.transact(ctx, func(tx *gorm.DB) error {
			q := tx
			if fix {
				q = forUpdate(tx)
			}
			var supplier models.Supplier
			if err := q.First(&supplier, id).Error; err != nil {
				return err
			}
			computed, err := computedBalance(tx, id)
			if err != nil {
				return err
			}
			if computed.Equal(supplier.Balance) {
				return nil
			}
			drift = &BalanceDrift{SupplierID: id, Name: supplier.Name, Stored: supplier.Balance, Computed: computed}
			if !fix {
				return nil
			}
			if err := tx.Model(&models.Supplier{}).Where("id = ?", id).Update("balance", computed).Error; err != nil {
				return err
			}
			drift.Fixed = true
			return nil
		})
		if err != nil {
			return drifts, err
		}
		if drift == nil {
			continue
		}

		s.Log.Warn("supplier balance drift",
			zap.Uint("supplier_id", id),
			zap.String("stored", drift.Stored.String()),
			zap.String("computed", drift.Computed.String()),
			zap.Bool("fixed", drift.Fixed))
		drifts = append(drifts, *drift)
		if drift.Fixed {
			s.publish([]notify.Event{s.balanceEvent(BalanceMovement{
				SupplierID: id,
				Before:     drift.Stored,
				After:      drift.Computed,
				Supplier:   models.Supplier{ID: id, Name: drift.Name, Balance: drift.Computed},
			}, actor)})
		}
	}
	return drifts, nil
}

func computedBalance(tx *gorm.DB, supplierID uint) (decimal.Decimal, error) {
	invoiced, err := sumColumn(tx.Model(&models.SupplierOrder{}).Where("supplier_id = ?", supplierID), "total")
	if err != nil {
		return decimal.Zero, err
	}
	paid, err := sumColumn(tx.Model(&models.SupplierPayment{}).Where("supplier_id = ?", supplierID), "amount")
	if err != nil {
		return decimal.Zero, err
	}
	return invoiced.Sub(paid), nil
}

// PaidFlagDrift is an order whose paid flag disagrees with its commission
// payment.
type PaidFlagDrift struct {
	OrderID  uint `json:"order_id"`
	Stored   bool `json:"stored"`
	Computed bool `json:"computed"`
	Fixed    bool `json:"fixed"`
}

// ReconcilePaidFlags compares every order's paid flag with the existence of
// a commission payment and, with fix set, rewrites the flag.
func (s *Service) ReconcilePaidFlags(ctx context.Context, fix bool, actor Actor) ([]PaidFlagDrift, error) {
	db := s.read(ctx)
	var paidWithout, settledUnpaid []uint
	if err := db.Model(&models.Order{}).
		Where("sells = ?", true).
		Where("NOT EXISTS (SELECT 1 FROM marketer_payments mp WHERE mp.order_id = orders.id)").
		Order("id").Pluck("id", &paidWithout).Error; err != nil {
		return nil, classify(err)
	}
	if err := db.Model(&models.Order{}).
		Where("sells = ?", false).
		Where("EXISTS (SELECT 1 FROM marketer_payments mp WHERE mp.order_id = orders.id)").
		Order("id").Pluck("id", &settledUnpaid).Error; err != nil {
		return nil, classify(err)
	}

	drifts := []PaidFlagDrift{}
	for _, id := range paidWithout {
		drifts = append(drifts, PaidFlagDrift{OrderID: id, Stored: true, Computed: false})
	}
	for _, id := range settledUnpaid {
		drifts = append(drifts, PaidFlagDrift{OrderID: id, Stored: false, Computed: true})
	}
	if !fix {
		return drifts, nil
	}

	for i := range drifts {
		d := &drifts[i]
		var order models.Order
		var changed bool
		err := s.transact(ctx, func(tx *gorm.DB) error {
			if err := forUpdate(tx).First(&order, d.OrderID).Error; err != nil {
				return err
			}
			var settled int64
			if err := tx.Model(&models.MarketerPayment{}).Where("order_id = ?", d.OrderID).Count(&settled).Error; err != nil {
				return err
			}
			// recheck under the lock; a concurrent settle may have fixed it
			want := settled > 0
			if order.Paid == want {
				return nil
			}
			if err := tx.Model(&models.Order{}).Where("id = ?", d.OrderID).Update("sells", want).Error; err != nil {
				return err
			}
			order.Paid, changed = want, true
			return nil
		})
		if err != nil {
			return drifts, err
		}
		d.Fixed = true
		if changed {
			s.Log.Warn("order paid flag repaired", zap.Uint("order_id", d.OrderID), zap.Bool("paid", order.Paid))
			s.publish([]notify.Event{s.event(notify.OrderUpdated, order, map[string]notify.Change{
				"sells": {Old: !order.Paid, New: order.Paid},
			}, actor)})
		}
	}
	return drifts, nil
}

package ledger

import (
	"context"
	"errors"

	"sales-ledger/internal/models"
	"sales-ledger/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetStockDelta changes one product's count by delta and records it.
func (s *Service) SetStockDelta(ctx context.Context, productID uint, delta int, note string, actor Actor) (*StockMovement, error) {
	if delta == 0 {
		return nil, validationf("stock change must not be zero")
	}

	var mv StockMovement
	err := s.transact(ctx, func(tx *gorm.DB) error {
		var err error
		mv, err = s.adjustStock(tx, productID, delta, note, actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("stock adjusted",
		zap.Uint("product_id", productID),
		zap.Int("before", mv.Before),
		zap.Int("after", mv.After),
		zap.String("note", note),
		zap.String("actor", actor.Name))
	s.publish(s.stockEvents([]StockMovement{mv}, actor))
	return &mv, nil
}

// Direction is a one-step move in display order.
type Direction int

const (
	Up   Direction = -1
	Down Direction = 1
)

// StepProduct swaps the product with its neighbour in display order.
func (s *Service) StepProduct(ctx context.Context, productID uint, dir Direction, actor Actor) ([]models.Product, error) {
	if dir != Up && dir != Down {
		return nil, validationf("direction must be up or down")
	}

	var changed []models.Product
	err := s.transact(ctx, func(tx *gorm.DB) error {
		var product models.Product
		if err := forUpdate(tx).First(&product, productID).Error; err != nil {
			return err
		}

		q := forUpdate(tx)
		if dir == Up {
			q = q.Where("display_order < ?", product.DisplayOrder).Order("display_order DESC, id DESC")
		} else {
			q = q.Where("display_order > ?", product.DisplayOrder).Order("display_order ASC, id ASC")
		}
		var neighbour models.Product
		if err := q.First(&neighbour).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBoundary
			}
			return err
		}

		product.DisplayOrder, neighbour.DisplayOrder = neighbour.DisplayOrder, product.DisplayOrder
		for _, p := range []models.Product{product, neighbour} {
			if err := tx.Model(&models.Product{}).Where("id = ?", p.ID).Update("display_order", p.DisplayOrder).Error; err != nil {
				return err
			}
		}
		changed = []models.Product{product, neighbour}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishReorder(changed, actor)
	return changed, nil
}

// MoveProduct moves the product to position target in the display sequence
// and renumbers the sequence densely from 0. Targets past the end land on
// the last position. Returns the products whose position changed.
func (s *Service) MoveProduct(ctx context.Context, productID uint, target int, actor Actor) ([]models.Product, error) {
	if target < 0 {
		return nil, validationf("position must not be negative")
	}

	var changed []models.Product
	err := s.transact(ctx, func(tx *gorm.DB) error {
		var all []models.Product
		if err := forUpdate(tx).Order("display_order ASC, id ASC").Find(&all).Error; err != nil {
			return err
		}

		from := -1
		for i, p := range all {
			if p.ID == productID {
				from = i
				break
			}
		}
		if from < 0 {
			return notFound("product", productID)
		}
		target = min(target, len(all)-1)
		if target == from {
			return nil
		}

		moved := all[from]
		seq := append(all[:from:from], all[from+1:]...)
		seq = append(seq[:target], append([]models.Product{moved}, seq[target:]...)...)

		for i, p := range seq {
			if p.DisplayOrder == i {
				continue
			}
			if err := tx.Model(&models.Product{}).Where("id = ?", p.ID).Update("display_order", i).Error; err != nil {
				return err
			}
			p.DisplayOrder = i
			changed = append(changed, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishReorder(changed, actor)
	return changed, nil
}

func (s *Service) publishReorder(changed []models.Product, actor Actor) {
	events := make([]notify.Event, 0, len(changed))
	for _, p := range changed {
		events = append(events, s.event(notify.ProductUpdated, p, map[string]notify.Change{
			"display_order": {New: p.DisplayOrder},
		}, actor))
	}
	s.publish(events)
}

// GetHistory returns the product's stock history, newest first.
func (s *Service) GetHistory(ctx context.Context, productID uint) ([]models.ProductHistory, error) {
	db := s.read(ctx)
	var product models.Product
	if err := db.Select("id").First(&product, productID).Error; err != nil {
		return nil, classify(err)
	}

	var rows []models.ProductHistory
	err := db.Where("product_id = ?", productID).
		Order("date_time DESC, id DESC").
		Find(&rows).Error
	return rows, classify(err)
}

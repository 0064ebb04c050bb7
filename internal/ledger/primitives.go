package ledger

import (
	"errors"
	"sort"

	"sales-ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StockMovement is the result of one stock mutation. Product is the row
// after the write.
type StockMovement struct {
	ProductID uint           `json:"product_id"`
	Before    int            `json:"count_before"`
	After     int            `json:"count_after"`
	Delta     int            `json:"count_delta"`
	Product   models.Product `json:"product"`
}

// BalanceMovement is the result of one supplier balance mutation.
type BalanceMovement struct {
	SupplierID uint            `json:"supplier_id"`
	Before     decimal.Decimal `json:"balance_before"`
	After      decimal.Decimal `json:"balance_after"`
	Supplier   models.Supplier `json:"supplier"`
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// adjustStock locks the product row, applies delta and appends the history
// row. It must run inside the caller's transaction.
func (s *Service) adjustStock(tx *gorm.DB, productID uint, delta int, note string, actor Actor) (StockMovement, error) {
	var product models.Product
	if err := forUpdate(tx).First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StockMovement{}, notFound("product", productID)
		}
		return StockMovement{}, err
	}

	before := product.Count
	after := before + delta
	if after < 0 {
		return StockMovement{}, &InsufficientStockError{ProductID: productID, Count: before, Delta: delta}
	}
	return s.writeStock(tx, product, after, note, actor)
}

// revertStock takes back an earlier increment. The decrement is clamped at
// the current count, so undoing never fails on stock; a clamped delta of
// zero writes nothing.
func (s *Service) revertStock(tx *gorm.DB, productID uint, quantity int, note string, actor Actor) (StockMovement, bool, error) {
	var product models.Product
	if err := forUpdate(tx).First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StockMovement{}, false, notFound("product", productID)
		}
		return StockMovement{}, false, err
	}

	take := min(quantity, product.Count)
	if take <= 0 {
		return StockMovement{}, false, nil
	}
	mv, err := s.writeStock(tx, product, product.Count-take, note, actor)
	return mv, err == nil, err
}

func (s *Service) writeStock(tx *gorm.DB, product models.Product, after int, note string, actor Actor) (StockMovement, error) {
	before := product.Count
	if err := tx.Model(&models.Product{}).Where("id = ?", product.ID).Update("count", after).Error; err != nil {
		return StockMovement{}, err
	}
	history := models.ProductHistory{
		ProductID:   product.ID,
		CountBefore: before,
		CountAfter:  after,
		Delta:       after - before,
		Note:        note,
		DateTime:    s.Now(),
		ActorID:     actor.idPtr(),
	}
	if err := tx.Create(&history).Error; err != nil {
		return StockMovement{}, err
	}

	product.Count = after
	return StockMovement{
		ProductID: product.ID,
		Before:    before,
		After:     after,
		Delta:     after - before,
		Product:   product,
	}, nil
}

// adjustBalance locks the supplier row and adds delta. Balances may go
// negative.
func (s *Service) adjustBalance(tx *gorm.DB, supplierID uint, delta decimal.Decimal) (BalanceMovement, error) {
	var supplier models.Supplier
	if err := forUpdate(tx).First(&supplier, supplierID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return BalanceMovement{}, notFound("supplier", supplierID)
		}
		return BalanceMovement{}, err
	}

	before := supplier.Balance
	after := before.Add(delta)
	if err := tx.Model(&models.Supplier{}).Where("id = ?", supplierID).Update("balance", after).Error; err != nil {
		return BalanceMovement{}, err
	}
	supplier.Balance = after
	return BalanceMovement{SupplierID: supplierID, Before: before, After: after, Supplier: supplier}, nil
}

// lockProducts locks every distinct product in ascending id order, so two
// transactions touching the same set cannot deadlock on each other.
func lockProducts(tx *gorm.DB, ids []uint) (map[uint]models.Product, error) {
	unique := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	if len(unique) == 0 {
		return map[uint]models.Product{}, nil
	}

	var products []models.Product
	if err := forUpdate(tx).Where("id IN ?", unique).Order("id").Find(&products).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range unique {
		if _, ok := byID[id]; !ok {
			return nil, notFound("product", id)
		}
	}
	return byID, nil
}

// mergeBalance folds consecutive movements on one supplier into one.
func mergeBalance(first, last BalanceMovement) BalanceMovement {
	return BalanceMovement{SupplierID: last.SupplierID, Before: first.Before, After: last.After, Supplier: last.Supplier}
}

// sumColumn returns SUM(column) over q, zero when nothing matches.
func sumColumn(q *gorm.DB, column string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.Select("COALESCE(SUM(" + column + "), 0)").Row().Scan(&total)
	return total, err
}

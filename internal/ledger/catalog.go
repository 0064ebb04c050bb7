package ledger

import (
	"context"
	"fmt"
	"strings"

	"sales-ledger/internal/models"
	"sales-ledger/internal/notify"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- Products ---

type ProductInput struct {
	Code  string          `json:"code"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Count int             `json:"count"`
}

// ProductPatch changes catalog fields only. Count moves through SetStockDelta.
type ProductPatch struct {
	Code  *string          `json:"code"`
	Name  *string          `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

// CreateProduct appends the product at the end of the display order. A
// non-zero starting count is booked as a stock movement.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput, actor Actor) (*models.Product, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Code == "" || in.Name == "":
		return nil, validationf("code and name are required")
	case in.Price.IsNegative():
		return nil, validationf("price must not be negative")
	case in.Count < 0:
		return nil, validationf("count must not be negative")
	}

	var product models.Product
	var moves []StockMovement
	err := s.transact(ctx, func(tx *gorm.DB) error {
		var err error
		product, err = s.insertProduct(tx, in.Code, in.Name, in.Price)
		if err != nil {
			return err
		}
		if in.Count > 0 {
			mv, err := s.adjustStock(tx, product.ID, in.Count, "initial stock", actor)
			if err != nil {
				return err
			}
			product = mv.Product
			moves = append(moves, mv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("product created", zap.Uint("product_id", product.ID), zap.String("code", product.Code), zap.String("actor", actor.Name))
	events := []notify.Event{s.event(notify.ProductCreated, product, nil, actor)}
	s.publish(append(events, s.stockEvents(moves, actor)...))
	return &product, nil
}

func (s *Service) insertProduct(tx *gorm.DB, code, name string, price decimal.Decimal) (models.Product, error) {
	var taken int64
	if err := tx.Model(&models.Product{}).Where("code = ?", code).Count(&taken).Error; err != nil {
		return models.Product{}, err
	}
	if taken > 0 {
		return models.Product{}, fmt.Errorf("%w: product code %q already exists", ErrDuplicate, code)
	}

	var last int
	if err := tx.Model(&models.Product{}).Select("COALESCE(MAX(display_order), -1)").Scan(&last).Error; err != nil {
		return models.Product{}, err
	}
	product := models.Product{Code: code, Name: name, Price: price, DisplayOrder: last + 1}
	return product, tx.Create(&product).Error
}

func (s *Service) UpdateProduct(ctx context.Context, id uint, patch ProductPatch, actor Actor) (*models.Product, error) {
	if patch.Price != nil && patch.Price.IsNegative() {
		return nil, validationf("price must not be negative")
	}

	var product models.Product
	changes := map[string]notify.Change{}
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&product, id).Error; err != nil {
			return err
		}

		updates := map[string]any{}
		if patch.Code != nil {
			code := strings.TrimSpace(*patch.Code)
			if code == "" {
				return validationf("code must not be empty")
			}
			if code != product.Code {
				var taken int64
				if err := tx.Model(&models.Product{}).Where("code = ? AND id <> ?", code, id).Count(&taken).Error; err != nil {
					return err
				}
				if taken > 0 {
					return fmt.Errorf("%w: product code %q already exists", ErrDuplicate, code)
				}
				changes["code"] = notify.Change{Old: product.Code, New: code}
				updates["code"] = code
				product.Code = code
			}
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return validationf("name must not be empty")
			}
			if name != product.Name {
				changes["name"] = notify.Change{Old: product.Name, New: name}
				updates["name"] = name
				product.Name = name
			}
		}
		if patch.Price != nil && !patch.Price.Equal(product.Price) {
			changes["price"] = notify.Change{Old: product.Price, New: *patch.Price}
			updates["price"] = *patch.Price
			product.Price = *patch.Price
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&models.Product{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	if len(changes) > 0 {
		s.publish([]notify.Event{s.event(notify.ProductUpdated, product, changes, actor)})
	}
	return &product, nil
}

// DeleteProduct refuses while any order or supplier invoice line points at
// the product. Its stock history stays.
func (s *Service) DeleteProduct(ctx context.Context, id uint, actor Actor) error {
	var product models.Product
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&product, id).Error; err != nil {
			return err
		}
		var refs, supplied int64
		if err := tx.Model(&models.OrderDetail{}).Where("product_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.SupplierOrderDetail{}).Where("product_id = ?", id).Count(&supplied).Error; err != nil {
			return err
		}
		if refs+supplied > 0 {
			return validationf("product %d is referenced by %d order lines and %d supplier invoice lines", id, refs, supplied)
		}
		return tx.Delete(&models.Product{}, id).Error
	})
	if err != nil {
		return err
	}
	s.Log.Info("product deleted", zap.Uint("product_id", id), zap.String("actor", actor.Name))
	s.publish([]notify.Event{s.event(notify.ProductDeleted, product, nil, actor)})
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.read(ctx).Order("display_order ASC, id ASC").Find(&products).Error
	return products, classify(err)
}

func (s *Service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := s.read(ctx).First(&product, id).Error; err != nil {
		return nil, classify(err)
	}
	return &product, nil
}

// FindProducts matches code or name, for the assistant and the import.
func (s *Service) FindProducts(ctx context.Context, query string) ([]models.Product, error) {
	like := "%" + strings.TrimSpace(query) + "%"
	var products []models.Product
	err := s.read(ctx).
		Where("code LIKE ? OR name LIKE ?", like, like).
		Order("display_order ASC, id ASC").
		Find(&products).Error
	return products, classify(err)
}

// --- Suppliers ---

type PartyInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (in PartyInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return validationf("name is required")
	}
	return nil
}

// CreateSupplier opens an account with a zero balance.
func (s *Service) CreateSupplier(ctx context.Context, in PartyInput, actor Actor) (*models.Supplier, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	supplier := models.Supplier{Name: strings.TrimSpace(in.Name), Phone: in.Phone, Balance: decimal.Zero}
	if err := classify(s.read(ctx).Create(&supplier).Error); err != nil {
		return nil, err
	}
	s.Log.Info("supplier created", zap.Uint("supplier_id", supplier.ID), zap.String("name", supplier.Name), zap.String("actor", actor.Name))
	s.publish([]notify.Event{s.event(notify.SupplierCreated, supplier, nil, actor)})
	return &supplier, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	var suppliers []models.Supplier
	err := s.read(ctx).Order("name ASC, id ASC").Find(&suppliers).Error
	return suppliers, classify(err)
}

func (s *Service) GetSupplier(ctx context.Context, id uint) (*models.Supplier, error) {
	var supplier models.Supplier
	if err := s.read(ctx).First(&supplier, id).Error; err != nil {
		return nil, classify(err)
	}
	return &supplier, nil
}

// DeleteSupplier only removes accounts with no invoices and no payments.
func (s *Service) DeleteSupplier(ctx context.Context, id uint, actor Actor) error {
	var supplier models.Supplier
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&supplier, id).Error; err != nil {
			return err
		}
		var invoices, payments int64
		if err := tx.Model(&models.SupplierOrder{}).Where("supplier_id = ?", id).Count(&invoices).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.SupplierPayment{}).Where("supplier_id = ?", id).Count(&payments).Error; err != nil {
			return err
		}
		if invoices+payments > 0 {
			return validationf("supplier %d still has %d invoices and %d payments", id, invoices, payments)
		}
		return tx.Delete(&models.Supplier{}, id).Error
	})
	if err != nil {
		return err
	}
	s.Log.Info("supplier deleted", zap.Uint("supplier_id", id), zap.String("name", supplier.Name), zap.String("actor", actor.Name))
	s.publish([]notify.Event{s.event(notify.SupplierDeleted, supplier, nil, actor)})
	return nil
}

// --- Marketers & mandobes ---

func (s *Service) CreateMarketer(ctx context.Context, in PartyInput, actor Actor) (*models.Marketer, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	m := models.Marketer{Name: strings.TrimSpace(in.Name), Phone: in.Phone}
	if err := classify(s.read(ctx).Create(&m).Error); err != nil {
		return nil, err
	}
	s.Log.Info("marketer created", zap.Uint("marketer_id", m.ID), zap.String("name", m.Name), zap.String("actor", actor.Name))
	s.publish([]notify.Event{s.event(notify.MarketerCreated, m, nil, actor)})
	return &m, nil
}

func (s *Service) ListMarketers(ctx context.Context) ([]models.Marketer, error) {
	var out []models.Marketer
	err := s.read(ctx).Order("name ASC, id ASC").Find(&out).Error
	return out, classify(err)
}

// DeleteMarketer clears the marketer from its orders. Marketers with
// commission payments on record stay.
func (s *Service) DeleteMarketer(ctx context.Context, id uint, actor Actor) error {
	var m models.Marketer
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&m, id).Error; err != nil {
			return err
		}
		var paid int64
		if err := tx.Model(&models.MarketerPayment{}).Where("marketer_id = ?", id).Count(&paid).Error; err != nil {
			return err
		}
		if paid > 0 {
			return validationf("marketer %d has %d commission payments", id, paid)
		}
		if err := tx.Model(&models.Order{}).Where("marketer_id = ?", id).Update("marketer_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Marketer{}, id).Error
	})
	if err != nil {
		return err
	}
	s.Log.Info("marketer deleted", zap.Uint("marketer_id", id), zap.String("name", m.Name), zap.String("actor", actor.Name))
	s.publish([]notify.Event{s.event(notify.MarketerDeleted, m, nil, actor)})
	return nil
}

func (s *Service) CreateMandobe(ctx context.Context, in PartyInput, actor Actor) (*models.Mandobe, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	m := models.Mandobe{Name: strings.TrimSpace(in.Name), Phone: in.Phone}
	if err := classify(s.read(ctx).Create(&m).Error); err != nil {
		return nil, err
	}
	s.Log.Info("mandobe created", zap.Uint("mandobe_id", m.ID), zap.String("name", m.Name), zap.String("actor", actor.Name))
	s.publish([]notify.Event{s.event(notify.MandobeCreated, m, nil, actor)})
	return &m, nil
}

func (s *Service) ListMandobes(ctx context.Context) ([]models.Mandobe, error) {
	var out []models.Mandobe
	err := s.read(ctx).Order("name ASC, id ASC").Find(&out).Error
	return out, classify(err)
}

// FindMandobeByName is used where clients address the delivery agent by name.
func (s *Service) FindMandobeByName(ctx context.Context, name string) (*models.Mandobe, error) {
	var m models.Mandobe
	if err := s.read(ctx).Where("name = ?", strings.TrimSpace(name)).First(&m).Error; err != nil {
		return nil, classify(err)
	}
	return &m, nil
}

func (s *Service) DeleteMandobe(ctx context.Context, id uint, actor Actor) error {
	var m models.Mandobe
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&m, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Order{}).Where("mandobe_id = ?", id).Update("mandobe_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Mandobe{}, id).Error
	})
	if err != nil {
		return err
	}
	s.Log.Info("mandobe deleted", zap.Uint("mandobe_id", id), zap.String("name", m.Name), zap.String("actor", actor.Name))
	s.publish([]notify.Event{s.event(notify.MandobeDeleted, m, nil, actor)})
	return nil
}

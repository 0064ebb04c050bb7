package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales-ledger/internal/models"
	"sales-ledger/internal/notify"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ImportItem is an order line that names its product by code.
type ImportItem struct {
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Note        string          `json:"details"`
}

// ImportRecord is one order from an external feed. OrderCode is the
// idempotency key.
type ImportRecord struct {
	OrderCode    string              `json:"order_code"`
	CustomerName string              `json:"customer_name"`
	Phone        string              `json:"phone"`
	PhoneTwo     string              `json:"phone_two"`
	Address      string              `json:"address"`
	City         string              `json:"city"`
	Status       models.OrderStatus  `json:"status"`
	Total        decimal.Decimal     `json:"total"`
	Shipping     decimal.NullDecimal `json:"shipping"`
	Notes        string              `json:"notes"`
	MarketerName string              `json:"marketer"`
	MandobeName  string              `json:"mandobe"`
	DateTime     time.Time           `json:"date_time"`
	Items        []ImportItem        `json:"items"`
}

type ImportFailure struct {
	OrderCode string `json:"order_code"`
	Error     string `json:"error"`
}

type ImportReport struct {
	Created []string        `json:"created"`
	Skipped []string        `json:"skipped"`
	Failed  []ImportFailure `json:"failed"`
}

var errAlreadyImported = errors.New("order already imported")

// ImportOrders writes each record in its own transaction. Records whose
// order code is already stored are skipped, so a feed can be replayed.
// Transient failures are retried with backoff.
func (s *Service) ImportOrders(ctx context.Context, records []ImportRecord, p RetryPolicy, actor Actor) (*ImportReport, error) {
	report := &ImportReport{Created: []string{}, Skipped: []string{}, Failed: []ImportFailure{}}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		code := strings.TrimSpace(rec.OrderCode)
		if code == "" {
			report.Failed = append(report.Failed, ImportFailure{Error: "order_code is required"})
			continue
		}
		rec.OrderCode = code

		var order *models.Order
		err := s.withRetry(ctx, p, func() error {
			var err error
			order, err = s.importOne(ctx, rec, actor)
			return err
		})
		switch {
		case err == nil:
			report.Created = append(report.Created, code)
			s.publish([]notify.Event{s.event(notify.OrderCreated, *order, nil, actor)})
		case errors.Is(err, errAlreadyImported):
			report.Skipped = append(report.Skipped, code)
		default:
			s.Log.Warn("order import failed", zap.String("order_code", code), zap.Error(err))
			report.Failed = append(report.Failed, ImportFailure{OrderCode: code, Error: err.Error()})
		}
	}

	s.Log.Info("order import finished",
		zap.Int("created", len(report.Created)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

func (s *Service) importOne(ctx context.Context, rec ImportRecord, actor Actor) (*models.Order, error) {
	if rec.Status == "" {
		rec.Status = models.OrderPending
	}
	if !rec.Status.Valid() {
		return nil, validationf("unknown order status %q", rec.Status)
	}
	if strings.TrimSpace(rec.CustomerName) == "" || strings.TrimSpace(rec.Phone) == "" {
		return nil, validationf("customer_name and phone are required")
	}
	if rec.DateTime.IsZero() {
		rec.DateTime = s.Now()
	}

	var order models.Order
	err := s.transact(ctx, func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Order{}).Where("order_code = ?", rec.OrderCode).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return errAlreadyImported
		}

		lines := make([]OrderLine, 0, len(rec.Items))
		for i, item := range rec.Items {
			if item.Quantity < 1 || item.Price.IsNegative() || strings.TrimSpace(item.ProductCode) == "" {
				return validationf("item %d needs product_code, quantity >= 1 and a non-negative price", i+1)
			}
			product, err := s.ensureProduct(tx, item)
			if err != nil {
				return err
			}
			lines = append(lines, OrderLine{ProductID: product.ID, Quantity: item.Quantity, Price: item.Price, Note: item.Note})
		}

		code := rec.OrderCode
		order = models.Order{
			OrderCode:    &code,
			CustomerName: strings.TrimSpace(rec.CustomerName),
			Phone:        strings.TrimSpace(rec.Phone),
			PhoneTwo:     rec.PhoneTwo,
			Address:      rec.Address,
			City:         strings.TrimSpace(rec.City),
			Status:       rec.Status,
			Total:        rec.Total,
			Shipping:     rec.Shipping,
			Notes:        rec.Notes,
			NameAdd:      actor.Name,
			DateTime:     rec.DateTime,
		}
		if order.Total.IsZero() {
			order.Total = linesTotal(lines)
		}
		if name := strings.TrimSpace(rec.MarketerName); name != "" {
			var m models.Marketer
			if err := tx.Where(models.Marketer{Name: name}).FirstOrCreate(&m).Error; err != nil {
				return err
			}
			order.MarketerID = &m.ID
		}
		if name := strings.TrimSpace(rec.MandobeName); name != "" {
			var m models.Mandobe
			if err := tx.Where(models.Mandobe{Name: name}).FirstOrCreate(&m).Error; err != nil {
				return err
			}
			order.MandobeID = &m.ID
		}
		return s.insertOrder(tx, &order, lines)
	})
	if errors.Is(err, errAlreadyImported) {
		return nil, errAlreadyImported
	}
	if errors.Is(err, ErrDuplicate) {
		// lost a race on the order code or a product code; the next attempt
		// sees the committed row
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ensureProduct finds the product by code or creates it with a zero count.
func (s *Service) ensureProduct(tx *gorm.DB, item ImportItem) (models.Product, error) {
	code := strings.TrimSpace(item.ProductCode)
	var product models.Product
	err := tx.Where("code = ?", code).First(&product).Error
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return product, err
	}

	name := strings.TrimSpace(item.ProductName)
	if name == "" {
		name = code
	}
	return s.insertProduct(tx, code, name, item.Price)
}

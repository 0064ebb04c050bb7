// Package ledger keeps Product.count, Supplier.balance and Order.paid
// consistent with their logs: product history rows, supplier invoices and
// payments, and marketer commission payments.
//
// Every mutating operation runs in one database transaction with row locks
// on the rows it adjusts. Events are handed to the Publisher only after the
// transaction committed.
package ledger

import (
	"context"
	"maps"
	"slices"
	"time"

	"sales-ledger/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actor is the authenticated user behind a mutation.
type Actor struct {
	ID   uint
	Name string
}

func (a Actor) idPtr() *uint {
	if a.ID == 0 {
		return nil
	}
	id := a.ID
	return &id
}

type Service struct {
	DB        *gorm.DB
	Log       *zap.Logger
	Publisher notify.Publisher
	Now       func() time.Time
}

func New(db *gorm.DB, log *zap.Logger, pub notify.Publisher) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if pub == nil {
		pub = notify.Discard
	}
	return &Service{DB: db, Log: log, Publisher: pub, Now: time.Now}
}

// transact runs fn in a transaction and classifies whatever comes out.
func (s *Service) transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return classify(s.DB.WithContext(ctx).Transaction(fn))
}

func (s *Service) read(ctx context.Context) *gorm.DB {
	return s.DB.WithContext(ctx)
}

func (s *Service) publish(events []notify.Event) {
	if len(events) > 0 {
		s.Publisher.Publish(events...)
	}
}

func (s *Service) event(eventType string, entity any, changes map[string]notify.Change, actor Actor) notify.Event {
	return notify.NewEvent(eventType, entity, changes, actor.Name, s.Now())
}

func (s *Service) stockEvents(moves []StockMovement, actor Actor) []notify.Event {
	events := make([]notify.Event, 0, len(moves))
	for _, mv := range moves {
		events = append(events, s.event(notify.ProductStockUpdated, mv.Product, map[string]notify.Change{
			"count": {Old: mv.Before, New: mv.After},
		}, actor))
	}
	return events
}

func (s *Service) balanceEvent(mv BalanceMovement, actor Actor) notify.Event {
	return s.event(notify.SupplierBalanceUpdated, mv.Supplier, map[string]notify.Change{
		"balance": {Old: mv.Before, New: mv.After},
	}, actor)
}

// changedFields lists the keys of a change-set in a stable order for logs.
func changedFields(changes map[string]notify.Change) []string {
	return slices.Sorted(maps.Keys(changes))
}

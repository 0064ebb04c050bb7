package ledger

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrValidation reports malformed input; nothing was written.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound reports a missing product, supplier, order, marketer or payment.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock reports a decrement that would take a count below zero.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicate reports a unique constraint hit (product code, order code, second commission).
	ErrDuplicate = errors.New("duplicate")
	// ErrTransient reports a lock timeout, deadlock or lost connection. The
	// whole operation rolled back and may be retried.
	ErrTransient = errors.New("transient database failure")
	// ErrBoundary reports a step reorder past the first or last product.
	ErrBoundary = errors.New("already at boundary")
)

// InsufficientStockError carries the details of a rejected decrement.
type InsufficientStockError struct {
	ProductID uint
	Count     int
	Delta     int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: have %d, change %d", e.ProductID, e.Count, e.Delta)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(entity string, id uint) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
}

// classify maps driver and gorm errors onto the ledger taxonomy. Errors that
// already carry a ledger kind pass through untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrValidation, ErrNotFound, ErrInsufficientStock, ErrDuplicate, ErrTransient, ErrBoundary} {
		if errors.Is(err, known) {
			return err
		}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: referenced record missing or still in use: %v", ErrValidation, err)
	case errors.Is(err, driver.ErrBadConn):
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1062:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case 1205, 1213:
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	return err
}

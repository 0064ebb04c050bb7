package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"sales-ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	EntryOrder   = "order"
	EntryPayment = "payment"
)

// StatementEntry is one invoice (debit) or payment (credit) line with the
// balance after it.
type StatementEntry struct {
	Kind        string          `json:"kind"`
	ID          uint            `json:"id"`
	DateTime    time.Time       `json:"date_time"`
	Description string          `json:"description"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Balance     decimal.Decimal `json:"balance"`
}

type Statement struct {
	Supplier       models.Supplier  `json:"supplier"`
	From           *time.Time       `json:"from,omitempty"`
	To             *time.Time       `json:"to,omitempty"`
	OpeningBalance decimal.Decimal  `json:"opening_balance"`
	TotalDebit     decimal.Decimal  `json:"total_debit"`
	TotalCredit    decimal.Decimal  `json:"total_credit"`
	ClosingBalance decimal.Decimal  `json:"closing_balance"`
	Entries        []StatementEntry `json:"entries"`
}

// GetStatement merges the supplier's invoices and payments in date order and
// folds the running balance. With a From date the fold starts at the balance
// implied by everything before it.
func (s *Service) GetStatement(ctx context.Context, supplierID uint, from, to *time.Time) (*Statement, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, validationf("statement range ends before it starts")
	}

	st := &Statement{From: from, To: to, OpeningBalance: decimal.Zero, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	err := s.transact(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&st.Supplier, supplierID).Error; err != nil {
			return err
		}

		if from != nil {
			invoiced, err := sumColumn(tx.Model(&models.SupplierOrder{}).
				Where("supplier_id = ? AND date_time < ?", supplierID, *from), "total")
			if err != nil {
				return err
			}
			paid, err := sumColumn(tx.Model(&models.SupplierPayment{}).
				Where("supplier_id = ? AND date_time < ?", supplierID, *from), "amount")
			if err != nil {
				return err
			}
			st.OpeningBalance = invoiced.Sub(paid)
		}

		f := SupplierLedgerFilter{SupplierID: supplierID, From: from, To: to}
		var orders []models.SupplierOrder
		if err := f.apply(tx).Find(&orders).Error; err != nil {
			return err
		}
		var payments []models.SupplierPayment
		if err := f.apply(tx).Find(&payments).Error; err != nil {
			return err
		}

		for _, o := range orders {
			st.Entries = append(st.Entries, StatementEntry{
				Kind:        EntryOrder,
				ID:          o.ID,
				DateTime:    o.DateTime,
				Description: describe("invoice", o.Type, o.Notes),
				Debit:       o.Total,
				Credit:      decimal.Zero,
			})
		}
		for _, p := range payments {
			st.Entries = append(st.Entries, StatementEntry{
				Kind:        EntryPayment,
				ID:          p.ID,
				DateTime:    p.DateTime,
				Description: describe("payment", p.Type, p.Note),
				Debit:       decimal.Zero,
				Credit:      p.Amount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// same instant: invoices before payments, then by id
	sort.SliceStable(st.Entries, func(i, j int) bool {
		a, b := st.Entries[i], st.Entries[j]
		if !a.DateTime.Equal(b.DateTime) {
			return a.DateTime.Before(b.DateTime)
		}
		if a.Kind != b.Kind {
			return a.Kind == EntryOrder
		}
		return a.ID < b.ID
	})

	running := st.OpeningBalance
	for i := range st.Entries {
		e := &st.Entries[i]
		running = running.Add(e.Debit).Sub(e.Credit)
		e.Balance = running
		st.TotalDebit = st.TotalDebit.Add(e.Debit)
		st.TotalCredit = st.TotalCredit.Add(e.Credit)
	}
	st.ClosingBalance = running
	if st.Entries == nil {
		st.Entries = []StatementEntry{}
	}
	return st, nil
}

func describe(kind, typ, note string) string {
	switch {
	case typ != "" && note != "":
		return fmt.Sprintf("%s (%s): %s", kind, typ, note)
	case typ != "":
		return fmt.Sprintf("%s (%s)", kind, typ)
	case note != "":
		return fmt.Sprintf("%s: %s", kind, note)
	}
	return kind
}

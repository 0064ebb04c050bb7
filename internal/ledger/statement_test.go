package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time { return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC) }

func TestStatement(t *testing.T) {
	svc, _ := newTestService(t)
	s := seedSupplier(t, svc, "Delta Fabrics")
	p := seedProduct(t, svc, "P", 0)

	line := func(qty int, price string) []SupplierOrderLine {
		return []SupplierOrderLine{{ProductID: p.ID, Quantity: qty, Price: dec(price)}}
	}
	_, err := svc.CreateSupplierOrder(ctx, SupplierOrderInput{SupplierID: s.ID, DateTime: day(5), Details: line(5, "10")}, testActor)
	require.NoError(t, err)
	_, err = svc.AddSupplierPayment(ctx, SupplierPaymentInput{SupplierID: s.ID, DateTime: day(10), Amount: dec("30"), Type: "cash"}, testActor)
	require.NoError(t, err)
	// payment recorded first, same day as the invoice
	_, err = svc.AddSupplierPayment(ctx, SupplierPaymentInput{SupplierID: s.ID, DateTime: day(20), Amount: dec("5")}, testActor)
	require.NoError(t, err)
	_, err = svc.CreateSupplierOrder(ctx, SupplierOrderInput{SupplierID: s.ID, DateTime: day(20), Details: line(1, "10")}, testActor)
	require.NoError(t, err)

	t.Run("full history ends at the live balance", func(t *testing.T) {
		st, err := svc.GetStatement(ctx, s.ID, nil, nil)
		require.NoError(t, err)
		require.Len(t, st.Entries, 4)

		kinds := make([]string, len(st.Entries))
		for i, e := range st.Entries {
			kinds[i] = e.Kind
		}
		assert.Equal(t, []string{EntryOrder, EntryPayment, EntryOrder, EntryPayment}, kinds)
		assertDecimal(t, "50", st.Entries[0].Balance)
		assertDecimal(t, "20", st.Entries[1].Balance)
		assertDecimal(t, "30", st.Entries[2].Balance)
		assertDecimal(t, "25", st.Entries[3].Balance)
		assert.Equal(t, "payment (cash)", st.Entries[1].Description)

		assertDecimal(t, "0", st.OpeningBalance)
		assertDecimal(t, "60", st.TotalDebit)
		assertDecimal(t, "35", st.TotalCredit)
		assertDecimal(t, "25", st.ClosingBalance)
		assertDecimal(t, st.ClosingBalance.String(), supplierBalance(t, svc, s.ID))
	})

	t.Run("range starts from the opening balance", func(t *testing.T) {
		from := day(15)
		st, err := svc.GetStatement(ctx, s.ID, &from, nil)
		require.NoError(t, err)
		require.Len(t, st.Entries, 2)
		assertDecimal(t, "20", st.OpeningBalance)
		assertDecimal(t, "25", st.ClosingBalance)
	})

	t.Run("range end", func(t *testing.T) {
		to := day(12)
		st, err := svc.GetStatement(ctx, s.ID, nil, &to)
		require.NoError(t, err)
		require.Len(t, st.Entries, 2)
		assertDecimal(t, "20", st.ClosingBalance)
	})

	t.Run("empty range", func(t *testing.T) {
		from, to := day(25), day(26)
		st, err := svc.GetStatement(ctx, s.ID, &from, &to)
		require.NoError(t, err)
		assert.Empty(t, st.Entries)
		assertDecimal(t, "25", st.OpeningBalance)
		assertDecimal(t, "25", st.ClosingBalance)
	})

	from, to := day(20), day(10)
	_, err = svc.GetStatement(ctx, s.ID, &from, &to)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.GetStatement(ctx, 404, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

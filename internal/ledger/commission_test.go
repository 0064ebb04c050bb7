package ledger

import (
	"testing"
	"time"

	"sales-ledger/internal/models"
	"sales-ledger/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countPayments(t *testing.T, svc *Service, orderID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, svc.DB.Model(&models.MarketerPayment{}).Where("order_id = ?", orderID).Count(&n).Error)
	return n
}

func TestCommissionSettlement(t *testing.T) {
	svc, rec := newTestService(t)
	m := seedMarketer(t, svc, "Hassan")
	o := seedOrder(t, svc, OrderInput{MarketerID: &m.ID})
	require.False(t, o.Paid)
	rec.Reset()

	batch := []MarketerPaymentInput{{OrderID: o.ID, MarketerID: m.ID, Commission: dec("15")}}
	res, err := svc.ProcessBulkMarketerPayments(ctx, batch, testActor)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Empty(t, res.Errors)
	assert.True(t, orderPaid(t, svc, o.ID))
	assert.Equal(t, int64(1), countPayments(t, svc, o.ID))
	assert.Equal(t, []string{notify.MarketerPaymentCreated, notify.OrderUpdated}, rec.Types())

	again, err := svc.ProcessBulkMarketerPayments(ctx, batch, testActor)
	require.NoError(t, err, "item failures do not fail the batch")
	assert.Empty(t, again.Results)
	require.Len(t, again.Errors, 1)
	assert.ErrorIs(t, again.Errors[0].Err, ErrDuplicate)
	assert.Contains(t, again.Errors[0].Error, "already paid")
	assert.True(t, orderPaid(t, svc, o.ID))
	assert.Equal(t, int64(1), countPayments(t, svc, o.ID))

	require.NoError(t, svc.DeleteMarketerPayment(ctx, res.Results[0].ID, testActor))
	assert.False(t, orderPaid(t, svc, o.ID))
	assert.Zero(t, countPayments(t, svc, o.ID))
	assert.ErrorIs(t, svc.DeleteMarketerPayment(ctx, res.Results[0].ID, testActor), ErrNotFound)
}

func TestBulkPaymentsPartialSuccess(t *testing.T) {
	svc, _ := newTestService(t)
	m := seedMarketer(t, svc, "Hassan")
	o1 := seedOrder(t, svc, OrderInput{})
	o2 := seedOrder(t, svc, OrderInput{})

	res, err := svc.ProcessBulkMarketerPayments(ctx, []MarketerPaymentInput{
		{OrderID: o1.ID, MarketerID: m.ID, Commission: dec("10")},
		{OrderID: 404, MarketerID: m.ID, Commission: dec("10")},
		{OrderID: o2.ID, MarketerID: 404, Commission: dec("10")},
		{OrderID: o2.ID, MarketerID: m.ID, Commission: dec("-1")},
		{OrderID: o2.ID, MarketerID: m.ID, Commission: dec("12.5")},
		{OrderID: o1.ID, MarketerID: m.ID, Commission: dec("10")},
	}, testActor)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	require.Len(t, res.Errors, 4)
	assert.ErrorIs(t, res.Errors[0].Err, ErrNotFound)
	assert.ErrorIs(t, res.Errors[1].Err, ErrNotFound)
	assert.ErrorIs(t, res.Errors[2].Err, ErrValidation)
	assert.ErrorIs(t, res.Errors[3].Err, ErrDuplicate)

	assert.True(t, orderPaid(t, svc, o1.ID))
	assert.True(t, orderPaid(t, svc, o2.ID))

	_, err = svc.ProcessBulkMarketerPayments(ctx, nil, testActor)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPaidFlagTracksPayments(t *testing.T) {
	svc, _ := newTestService(t)
	m := seedMarketer(t, svc, "Hassan")
	orders := []*models.Order{seedOrder(t, svc, OrderInput{}), seedOrder(t, svc, OrderInput{}), seedOrder(t, svc, OrderInput{})}

	assertSynced := func() {
		t.Helper()
		for _, o := range orders {
			assert.Equal(t, countPayments(t, svc, o.ID) > 0, orderPaid(t, svc, o.ID), "order %d", o.ID)
		}
	}

	paymentIDs := map[uint]uint{}
	for round := 0; round < 3; round++ {
		for i, o := range orders {
			if (i+round)%2 == 0 {
				res, err := svc.ProcessBulkMarketerPayments(ctx, []MarketerPaymentInput{{OrderID: o.ID, MarketerID: m.ID, Commission: dec("1")}}, testActor)
				require.NoError(t, err)
				if len(res.Results) == 1 {
					paymentIDs[o.ID] = res.Results[0].ID
				}
			} else if id, ok := paymentIDs[o.ID]; ok {
				require.NoError(t, svc.DeleteMarketerPayment(ctx, id, testActor))
				delete(paymentIDs, o.ID)
			}
			assertSynced()
		}
	}
}

func TestMarketerPaymentListingAndSummary(t *testing.T) {
	svc, _ := newTestService(t)
	hassan := seedMarketer(t, svc, "Hassan")
	laila := seedMarketer(t, svc, "Laila")
	at := func(d, h int) time.Time { return time.Date(2024, time.February, d, h, 0, 0, 0, time.UTC) }

	var batch []MarketerPaymentInput
	for _, p := range []struct {
		marketer uint
		amount   string
		when     time.Time
	}{
		{hassan.ID, "10", at(1, 9)},
		{hassan.ID, "5", at(1, 15)},
		{laila.ID, "7.5", at(2, 10)},
		{hassan.ID, "2", at(3, 11)},
	} {
		o := seedOrder(t, svc, OrderInput{MarketerID: &p.marketer})
		batch = append(batch, MarketerPaymentInput{OrderID: o.ID, MarketerID: p.marketer, Commission: dec(p.amount), PaymentDate: p.when})
	}
	res, err := svc.ProcessBulkMarketerPayments(ctx, batch, testActor)
	require.NoError(t, err)
	require.Len(t, res.Results, 4)

	days, err := svc.ListMarketerPayments(ctx, MarketerPaymentFilter{})
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-02-03", days[0].Date)
	assert.Equal(t, "2024-02-01", days[2].Date)
	assert.Len(t, days[2].Payments, 2)
	assertDecimal(t, "15", days[2].Total)

	from := at(2, 0)
	hassanOnly, err := svc.ListMarketerPayments(ctx, MarketerPaymentFilter{MarketerID: hassan.ID, From: &from})
	require.NoError(t, err)
	require.Len(t, hassanOnly, 1)
	assertDecimal(t, "2", hassanOnly[0].Total)

	summary, err := svc.MarketerPaymentSummary(ctx, MarketerPaymentFilter{})
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "Hassan", summary[0].Name)
	assert.Equal(t, int64(3), summary[0].Payments)
	assertDecimal(t, "17", summary[0].TotalCommission)
	assert.Equal(t, "Laila", summary[1].Name)
	assertDecimal(t, "7.5", summary[1].TotalCommission)
}

func TestMarketerPaymentsByMonth(t *testing.T) {
	svc, _ := newTestService(t)
	hassan := seedMarketer(t, svc, "Hassan")
	laila := seedMarketer(t, svc, "Laila")
	on := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 12, 0, 0, 0, time.UTC) }

	var batch []MarketerPaymentInput
	for _, p := range []struct {
		marketer uint
		amount   string
		when     time.Time
	}{
		{hassan.ID, "10", on(2023, time.December, 30)},
		{hassan.ID, "4", on(2024, time.January, 5)},
		{laila.ID, "6.5", on(2024, time.January, 28)},
		{hassan.ID, "3", on(2024, time.March, 15)},
	} {
		o := seedOrder(t, svc, OrderInput{MarketerID: &p.marketer})
		batch = append(batch, MarketerPaymentInput{OrderID: o.ID, MarketerID: p.marketer, Commission: dec(p.amount), PaymentDate: p.when})
	}
	_, err := svc.ProcessBulkMarketerPayments(ctx, batch, testActor)
	require.NoError(t, err)

	months, err := svc.MarketerPaymentsByMonth(ctx, MarketerPaymentFilter{})
	require.NoError(t, err)
	require.Len(t, months, 3)
	assert.Equal(t, []string{"2024-03", "2024-01", "2023-12"}, []string{months[0].Month, months[1].Month, months[2].Month})
	assert.Equal(t, 2, months[1].Count)
	assert.Len(t, months[1].Payments, 2)
	assertDecimal(t, "10.5", months[1].Total)

	from, to := on(2024, time.January, 1), on(2024, time.December, 31)
	hassanOnly, err := svc.MarketerPaymentsByMonth(ctx, MarketerPaymentFilter{MarketerID: hassan.ID, From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, hassanOnly, 2)
	assert.Equal(t, "2024-03", hassanOnly[0].Month)
	assertDecimal(t, "4", hassanOnly[1].Total)

	none, err := svc.MarketerPaymentsByMonth(ctx, MarketerPaymentFilter{MarketerID: 404})
	require.NoError(t, err)
	assert.Empty(t, none)
}

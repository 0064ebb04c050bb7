package ledger

import (
	"testing"

	"sales-ledger/internal/models"
	"sales-ledger/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetStockDelta(t *testing.T) {
	svc, rec := newTestService(t)
	p := seedProduct(t, svc, "P-1", 4)
	rec.Reset()

	mv, err := svc.SetStockDelta(ctx, p.ID, 6, "restock", testActor)
	require.NoError(t, err)
	assert.Equal(t, 10, mv.After)
	assert.Equal(t, 10, mv.Product.Count)

	require.Equal(t, []string{notify.ProductStockUpdated}, rec.Types())
	ev := rec.Events[0]
	assert.Equal(t, testActor.Name, ev.ActorName)
	assert.Equal(t, notify.Change{Old: 4, New: 10}, ev.Changes["count"])

	_, err = svc.SetStockDelta(ctx, p.ID, 0, "noop", testActor)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.SetStockDelta(ctx, 404, 1, "ghost", testActor)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.SetStockDelta(ctx, p.ID, -11, "oversell", testActor)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Len(t, rec.Events, 1, "failed mutations publish nothing")
}

func TestHistoryReconstructsCount(t *testing.T) {
	svc, _ := newTestService(t)
	p := seedProduct(t, svc, "P-1", 5)

	succeeded := 1 // initial stock
	for _, delta := range []int{3, -2, -7, 4, -10, 1, -1, -3, 9, -20} {
		if _, err := svc.SetStockDelta(ctx, p.ID, delta, "churn", testActor); err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrInsufficientStock)
		}
		require.GreaterOrEqual(t, productCount(t, svc, p.ID), 0)
	}

	history, err := svc.GetHistory(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, history, succeeded)

	count := 0
	for i := len(history) - 1; i >= 0; i-- {
		h := history[i]
		assert.Equal(t, count, h.CountBefore)
		assert.Equal(t, h.CountAfter-h.CountBefore, h.Delta)
		count = h.CountAfter
	}
	assert.Equal(t, productCount(t, svc, p.ID), count)
}

func TestGetHistoryUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetHistory(ctx, 12)
	assert.ErrorIs(t, err, ErrNotFound)
}

func displayOrders(t *testing.T, svc *Service) map[string]int {
	t.Helper()
	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	out := make(map[string]int, len(products))
	for _, p := range products {
		out[p.Code] = p.DisplayOrder
	}
	return out
}

func codes(t *testing.T, svc *Service) []string {
	t.Helper()
	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Code
	}
	return out
}

func TestStepProduct(t *testing.T) {
	svc, _ := newTestService(t)
	a := seedProduct(t, svc, "A", 0)
	seedProduct(t, svc, "B", 0)
	c := seedProduct(t, svc, "C", 0)

	changed, err := svc.StepProduct(ctx, c.ID, Up, testActor)
	require.NoError(t, err)
	assert.Len(t, changed, 2)
	assert.Equal(t, []string{"A", "C", "B"}, codes(t, svc))

	_, err = svc.StepProduct(ctx, a.ID, Up, testActor)
	assert.ErrorIs(t, err, ErrBoundary)

	_, err = svc.StepProduct(ctx, a.ID, Down, testActor)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, codes(t, svc))

	_, err = svc.StepProduct(ctx, 404, Down, testActor)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.StepProduct(ctx, a.ID, Direction(3), testActor)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMoveProduct(t *testing.T) {
	svc, rec := newTestService(t)
	seedProduct(t, svc, "A", 0)
	b := seedProduct(t, svc, "B", 0)
	seedProduct(t, svc, "C", 0)
	d := seedProduct(t, svc, "D", 0)

	_, err := svc.MoveProduct(ctx, d.ID, 1, testActor)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "D", "B", "C"}, codes(t, svc))
	assert.Equal(t, map[string]int{"A": 0, "D": 1, "B": 2, "C": 3}, displayOrders(t, svc))

	// past the end lands last
	_, err = svc.MoveProduct(ctx, b.ID, 99, testActor)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "D", "C", "B"}, codes(t, svc))

	_, err = svc.MoveProduct(ctx, b.ID, -1, testActor)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.MoveProduct(ctx, 404, 0, testActor)
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("own position changes nothing", func(t *testing.T) {
		before := displayOrders(t, svc)
		rec.Reset()
		changed, err := svc.MoveProduct(ctx, d.ID, 1, testActor)
		require.NoError(t, err)
		assert.Empty(t, changed)
		assert.Empty(t, rec.Events)
		assert.Equal(t, before, displayOrders(t, svc))
	})
}

func TestMoveProductRenumbersSparseOrder(t *testing.T) {
	svc, _ := newTestService(t)
	a := seedProduct(t, svc, "A", 0)
	b := seedProduct(t, svc, "B", 0)
	require.NoError(t, svc.DB.Model(&models.Product{}).Where("id = ?", a.ID).Update("display_order", 10).Error)
	require.NoError(t, svc.DB.Model(&models.Product{}).Where("id = ?", b.ID).Update("display_order", 20).Error)

	_, err := svc.MoveProduct(ctx, b.ID, 0, testActor)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"B": 0, "A": 1}, displayOrders(t, svc))
}

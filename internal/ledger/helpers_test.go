package ledger

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"sales-ledger/internal/database"
	"sales-ledger/internal/models"
	"sales-ledger/internal/notify"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	ctx       = context.Background()
	testActor = Actor{ID: 7, Name: "amira"}
)

// newTestService returns a service over a fresh in-memory database and the
// recorder its events go to. The clock advances one second per call.
func newTestService(t *testing.T) (*Service, *notify.Recorder) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name), false)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	rec := &notify.Recorder{}
	svc := New(db, zap.NewNop(), rec)
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, rec
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func seedProduct(t *testing.T, svc *Service, code string, count int) *models.Product {
	t.Helper()
	p, err := svc.CreateProduct(ctx, ProductInput{Code: code, Name: "Product " + code, Price: dec("12.50"), Count: count}, testActor)
	require.NoError(t, err)
	return p
}

func seedSupplier(t *testing.T, svc *Service, name string) *models.Supplier {
	t.Helper()
	s, err := svc.CreateSupplier(ctx, PartyInput{Name: name, Phone: "0100"}, testActor)
	require.NoError(t, err)
	return s
}

func seedMarketer(t *testing.T, svc *Service, name string) *models.Marketer {
	t.Helper()
	m, err := svc.CreateMarketer(ctx, PartyInput{Name: name}, testActor)
	require.NoError(t, err)
	return m
}

func seedOrder(t *testing.T, svc *Service, in OrderInput) *models.Order {
	t.Helper()
	if in.CustomerName == "" {
		in.CustomerName = "Customer"
	}
	if in.Phone == "" {
		in.Phone = "0123456789"
	}
	o, err := svc.CreateOrder(ctx, in, testActor)
	require.NoError(t, err)
	return o
}

func productCount(t *testing.T, svc *Service, id uint) int {
	t.Helper()
	p, err := svc.GetProduct(ctx, id)
	require.NoError(t, err)
	return p.Count
}

func supplierBalance(t *testing.T, svc *Service, id uint) decimal.Decimal {
	t.Helper()
	s, err := svc.GetSupplier(ctx, id)
	require.NoError(t, err)
	return s.Balance
}

func orderPaid(t *testing.T, svc *Service, id uint) bool {
	t.Helper()
	o, err := svc.GetOrder(ctx, id)
	require.NoError(t, err)
	return o.Paid
}

func ptr[T any](v T) *T { return &v }

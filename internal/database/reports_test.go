package database

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"sales-ledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name), false)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedOrders(t *testing.T, db *gorm.DB) {
	t.Helper()
	orders := []models.Order{
		{CustomerName: "Laila", Phone: "0100", City: "Giza", Status: models.OrderAccept, Total: decimal.NewFromInt(100), Paid: true,
			DateTime: time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC)},
		{CustomerName: "Omar", Phone: "0111", City: "Giza", Status: models.OrderPending, Total: decimal.NewFromInt(40),
			DateTime: time.Date(2024, 2, 28, 23, 0, 0, 0, time.UTC)},
		{CustomerName: "Hoda", Phone: "0122", PhoneTwo: "0999", City: "Alexandria", Status: models.OrderRefuse, Total: decimal.NewFromInt(15),
			DateTime: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{CustomerName: "Sami", Phone: "0133", Status: models.OrderAccept, Total: decimal.NewFromInt(5),
			DateTime: time.Date(2023, 12, 31, 12, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, db.Create(&orders).Error)
}

func TestOrderFilterApply(t *testing.T) {
	db := openTestDB(t)
	seedOrders(t, db)
	paid := true

	tests := []struct {
		name   string
		filter OrderFilter
		want   []string
	}{
		{"everything", OrderFilter{}, []string{"Laila", "Omar", "Hoda", "Sami"}},
		{"search by second phone", OrderFilter{Query: "0999"}, []string{"Hoda"}},
		{"status", OrderFilter{Status: models.OrderAccept}, []string{"Laila", "Sami"}},
		{"city", OrderFilter{City: "giz"}, []string{"Laila", "Omar"}},
		{"paid", OrderFilter{Paid: &paid}, []string{"Laila"}},
		{"month is half-open", OrderFilter{Year: 2024, Month: 2}, []string{"Laila", "Omar"}},
		{"year", OrderFilter{Year: 2023}, []string{"Sami"}},
		{"month without year is ignored", OrderFilter{Month: 3}, []string{"Laila", "Omar", "Hoda", "Sami"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var names []string
			err := tt.filter.Apply(db.Model(&models.Order{})).Order("id").Pluck("customer_name", &names).Error
			require.NoError(t, err)
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestGetOrderStatistics(t *testing.T) {
	db := openTestDB(t)
	seedOrders(t, db)

	stats, err := GetOrderStatistics(db, OrderFilter{Year: 2024})
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.True(t, decimal.NewFromInt(155).Equal(stats.TotalAmount), stats.TotalAmount.String())
	assert.Equal(t, map[models.OrderStatus]int64{
		models.OrderPending: 1, models.OrderAccept: 1, models.OrderRefuse: 1, models.OrderDelay: 0,
	}, stats.ByStatus)
	assert.Equal(t, map[string]int64{"Giza": 2, "Alexandria": 1}, stats.ByCity)

	empty, err := GetOrderStatistics(db, OrderFilter{Year: 1999})
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.True(t, empty.TotalAmount.IsZero())
	assert.Empty(t, empty.ByCity)
}

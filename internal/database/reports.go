package database

import (
	"strings"
	"time"

	"sales-ledger/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderFilter narrows order listings and statistics. Zero values mean "any".
type OrderFilter struct {
	Query      string // customer name, phones or order code
	Status     models.OrderStatus
	City       string
	MandobeID  uint
	MarketerID uint
	Paid       *bool
	Month      int // 1-12, needs Year
	Year       int
}

// Apply adds the filter's conditions to an orders query.
func (f OrderFilter) Apply(q *gorm.DB) *gorm.DB {
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + s + "%"
		q = q.Where("customer_name LIKE ? OR phone LIKE ? OR phone_two LIKE ? OR order_code LIKE ?", like, like, like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.City != "" {
		q = q.Where("city LIKE ?", "%"+f.City+"%")
	}
	if f.MandobeID != 0 {
		q = q.Where("mandobe_id = ?", f.MandobeID)
	}
	if f.MarketerID != 0 {
		q = q.Where("marketer_id = ?", f.MarketerID)
	}
	if f.Paid != nil {
		q = q.Where("sells = ?", *f.Paid)
	}
	if start, end, ok := f.period(); ok {
		q = q.Where("date_time >= ? AND date_time < ?", start, end)
	}
	return q
}

// period turns Month/Year into a half-open [start, end) range.
func (f OrderFilter) period() (time.Time, time.Time, bool) {
	if f.Year == 0 {
		return time.Time{}, time.Time{}, false
	}
	if f.Month >= 1 && f.Month <= 12 {
		start := time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), true
	}
	start := time.Date(f.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0), true
}

// OrderStatistics holds the order counts and amount totals
type OrderStatistics struct {
	Total       int64                        `json:"total"`
	TotalAmount decimal.Decimal              `json:"total_amount"`
	ByStatus    map[models.OrderStatus]int64 `json:"by_status"`
	ByCity      map[string]int64             `json:"by_city"`
}

// GetOrderStatistics aggregates the orders matching f
func GetOrderStatistics(db *gorm.DB, f OrderFilter) (*OrderStatistics, error) {
	stats := &OrderStatistics{
		ByStatus: make(map[models.OrderStatus]int64, len(models.OrderStatuses)),
		ByCity:   map[string]int64{},
	}
	for _, s := range models.OrderStatuses {
		stats.ByStatus[s] = 0
	}

	// 1. Count and sum
	// COALESCE ensures we get 0 instead of NULL if nothing matches
	var totals struct {
		Total       int64
		TotalAmount decimal.Decimal
	}
	err := f.Apply(db.Model(&models.Order{})).
		Select("COUNT(*) AS total, COALESCE(SUM(total), 0) AS total_amount").
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	stats.Total = totals.Total
	stats.TotalAmount = totals.TotalAmount

	// 2. Break down by status
	var byStatus []struct {
		Status models.OrderStatus
		N      int64
	}
	err = f.Apply(db.Model(&models.Order{})).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.N
	}

	// 3. Break down by city (orders without a city are left out)
	var byCity []struct {
		City string
		N    int64
	}
	err = f.Apply(db.Model(&models.Order{})).
		Where("city <> ''").
		Select("city, COUNT(*) AS n").
		Group("city").
		Scan(&byCity).Error
	if err != nil {
		return nil, err
	}
	for _, row := range byCity {
		stats.ByCity[row.City] = row.N
	}

	return stats, nil
}

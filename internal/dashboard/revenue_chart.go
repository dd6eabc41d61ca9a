package dashboard

import (
	"context"
	"time"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/models"
)

type RevenuePoint struct {
	Date    string `json:"date"`
	Orders  int64  `json:"orders"`
	Revenue int64  `json:"revenue"`
}

type RevenueChart struct {
	Year   int            `json:"year"`
	Month  int            `json:"month"`
	Points []RevenuePoint `json:"points"`
	Total  int64          `json:"total"`
}

// DailyRevenue returns one point per day of the month, zero-filled, for
// orders delivered that month. Days are bucketed in UTC.
func (s *Service) DailyRevenue(ctx context.Context, year, month int) (*RevenueChart, error) {
	if month < 1 || month > 12 {
		return nil, apperr.Invalid("month must be between 1 and 12")
	}
	if year < 2000 || year > 9999 {
		return nil, apperr.Invalid("year %d is out of range", year)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var rows []struct {
		DeliveredAt time.Time
		Total       int64
	}
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Select("delivered_at, total").
		Where("status = ? AND delivered_at >= ? AND delivered_at < ?", models.OrderDelivered, start, end).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	days := end.AddDate(0, 0, -1).Day()
	chart := &RevenueChart{Year: year, Month: month, Points: make([]RevenuePoint, days)}
	for i := range chart.Points {
		chart.Points[i].Date = start.AddDate(0, 0, i).Format("2006-01-02")
	}
	for _, r := range rows {
		p := &chart.Points[r.DeliveredAt.UTC().Day()-1]
		p.Orders++
		p.Revenue += r.Total
		chart.Total += r.Total
	}
	return chart, nil
}

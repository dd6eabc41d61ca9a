package dashboard

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/httpx"
)

const defaultSummaryDays = 30

// GET /api/admin/dashboard/summary?from=YYYY-MM-DD&to=YYYY-MM-DD
func SummaryHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		now := svc.Now().UTC()
		if to == nil {
			t := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
			to = &t
		}
		if from == nil {
			f := to.AddDate(0, 0, -defaultSummaryDays)
			from = &f
		}
		sum, err := svc.Summary(c.UserContext(), *from, *to)
		if err != nil {
			return err
		}
		return c.JSON(sum)
	}
}

// GET /api/admin/dashboard/revenue?year=2024&month=6
func RevenueHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		now := svc.Now().UTC()
		chart, err := svc.DailyRevenue(c.UserContext(),
			c.QueryInt("year", now.Year()),
			c.QueryInt("month", int(now.Month())))
		if err != nil {
			return err
		}
		return c.JSON(chart)
	}
}

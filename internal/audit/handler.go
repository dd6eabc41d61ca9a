package audit

import (
	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/httpx"
)

// GET /api/admin/audit-logs?entity_type=product&entity_id=1&user_id=2
func ListAuditLogsHandler(rec *Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := httpx.ListQuery(c)
		logs, total, err := rec.List(c.UserContext(), Filter{
			EntityType: c.Query("entity_type"),
			EntityID:   httpx.QueryUint(c, "entity_id"),
			UserID:     httpx.QueryUint(c, "user_id"),
			Action:     c.Query("action"),
		}, page)
		if err != nil {
			return err
		}
		return c.JSON(httpx.NewPage(logs, total, page))
	}
}

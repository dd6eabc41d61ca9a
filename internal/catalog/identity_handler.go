package catalog

import (
	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/audit"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type IdentityStatusRequest struct {
	Status models.IdentityStatus `json:"status" validate:"required,oneof=in_stock sold returned defective"`
}

// GET /api/admin/identities?product_id=&status=&search=<imei>
func ListIdentitiesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := httpx.ListQuery(c)
		list, total, err := svc.ListIdentities(c.UserContext(), IdentityFilter{
			ProductID: httpx.QueryUint(c, "product_id"),
			Status:    models.IdentityStatus(c.Query("status")),
		}, page)
		if err != nil {
			return err
		}
		return c.JSON(httpx.NewPage(list, total, page))
	}
}

// GET /api/admin/identities/:imei
func GetIdentityHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := svc.GetIdentityByIMEI(c.UserContext(), c.Params("imei"))
		if err != nil {
			return err
		}
		return c.JSON(v)
	}
}

// PUT /api/admin/identities/:id/status
func UpdateIdentityStatusHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body IdentityStatusRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		before, after, err := svc.UpdateIdentityStatus(c.UserContext(), id, body.Status)
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType: "product_identity", EntityID: id, Action: models.AuditActionStatus,
			Description: "identity " + after.IMEI + " " + string(before.Status) + " -> " + string(after.Status),
			Before:      before, After: after,
		})
		return c.JSON(after)
	}
}

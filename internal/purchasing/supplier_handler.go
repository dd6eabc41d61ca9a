package purchasing

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/audit"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type SupplierRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	ContactName *string `json:"contact_name" validate:"omitempty,max=100"`
	Phone       *string `json:"phone" validate:"omitempty,max=20"`
	Email       *string `json:"email" validate:"omitempty,email,max=100"`
	Address     *string `json:"address" validate:"omitempty,max=255"`
	Note        *string `json:"note" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active"`
}

type SupplierResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name"`
	Phone       string    `json:"phone"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	Note        string    `json:"note"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toSupplierResponse(s *models.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:          s.ID,
		Name:        s.Name,
		ContactName: s.ContactName,
		Phone:       s.Phone,
		Email:       s.Email,
		Address:     s.Address,
		Note:        s.Note,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// GET /api/admin/suppliers?active=true
func ListSuppliersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := httpx.ListQuery(c)
		list, total, err := svc.ListSuppliers(c.UserContext(), c.QueryBool("active"), page)
		if err != nil {
			return err
		}
		out := make([]SupplierResponse, 0, len(list))
		for i := range list {
			out = append(out, toSupplierResponse(&list[i]))
		}
		return c.JSON(httpx.NewPage(out, total, page))
	}
}

// GET /api/admin/suppliers/:id
func GetSupplierHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		sup, err := svc.GetSupplier(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(toSupplierResponse(sup))
	}
}

// POST /api/admin/suppliers
func CreateSupplierHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SupplierRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		sup, err := svc.CreateSupplier(c.UserContext(), SupplierInput(body))
		if err != nil {
			return err
		}
		resp := toSupplierResponse(sup)
		rec.Record(c, audit.LogOptions{
			EntityType: "supplier", EntityID: sup.ID, Action: models.AuditActionCreate,
			Description: "created supplier " + sup.Name, After: resp,
		})
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// PUT /api/admin/suppliers/:id
func UpdateSupplierHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body SupplierRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		before, after, err := svc.UpdateSupplier(c.UserContext(), id, SupplierInput(body))
		if err != nil {
			return err
		}
		resp := toSupplierResponse(after)
		rec.Record(c, audit.LogOptions{
			EntityType: "supplier", EntityID: id, Action: models.AuditActionUpdate,
			Description: "updated supplier " + after.Name,
			Before:      toSupplierResponse(before), After: resp,
		})
		return c.JSON(resp)
	}
}

// DELETE /api/admin/suppliers/:id
func DeleteSupplierHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		sup, err := svc.DeleteSupplier(c.UserContext(), id)
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType: "supplier", EntityID: id, Action: models.AuditActionDelete,
			Description: "deleted supplier " + sup.Name, Before: toSupplierResponse(sup),
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

package catalog

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/audit"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type ProductRequest struct {
	ModelID        *uint   `json:"model_id" validate:"omitempty,gt=0"`
	Name           *string `json:"name" validate:"omitempty,min=1,max=150"`
	Color          *string `json:"color" validate:"omitempty,max=50"`
	Storage        *string `json:"storage" validate:"omitempty,max=20"`
	RAM            *string `json:"ram" validate:"omitempty,max=20"`
	Price          *int64  `json:"price" validate:"omitempty,gt=0"`
	Description    *string `json:"description"`
	ImageURL       *string `json:"image_url" validate:"omitempty,max=255"`
	WarrantyMonths *int    `json:"warranty_months" validate:"omitempty,gte=0,lte=60"`
	IsActive       *bool   `json:"is_active"`
}

func queryInt64(c *fiber.Ctx, key string) (*int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, key+" must be a non-negative integer")
	}
	return &v, nil
}

func productFilter(c *fiber.Ctx, includeInactive bool) (ProductFilter, error) {
	f := ProductFilter{
		BrandID:         httpx.QueryUint(c, "brand_id"),
		ModelID:         httpx.QueryUint(c, "model_id"),
		IncludeInactive: includeInactive,
	}
	var err error
	if f.MinPrice, err = queryInt64(c, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = queryInt64(c, "max_price"); err != nil {
		return f, err
	}
	if raw := c.Query("in_stock"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fiber.NewError(fiber.StatusBadRequest, "in_stock must be true or false")
		}
		f.InStock = &v
	}
	return f, nil
}

// GET /api/products?brand_id=&model_id=&min_price=&max_price=&in_stock=&search=&sort_by=price&sort_dir=asc
func ListProductsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := productFilter(c, false)
		if err != nil {
			return err
		}
		page := httpx.ListQuery(c)
		list, total, err := svc.ListProducts(c.UserContext(), f, page)
		if err != nil {
			return err
		}
		return c.JSON(httpx.NewPage(list, total, page))
	}
}

// GET /api/admin/products?include_inactive=true
func AdminListProductsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := productFilter(c, c.QueryBool("include_inactive", false))
		if err != nil {
			return err
		}
		page := httpx.ListQuery(c)
		list, total, err := svc.ListProducts(c.UserContext(), f, page)
		if err != nil {
			return err
		}
		return c.JSON(httpx.NewPage(list, total, page))
	}
}

// GET /api/products/:id
func GetProductHandler(svc *Service, activeOnly bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.GetProduct(c.UserContext(), id, activeOnly)
		if err != nil {
			return err
		}
		return c.JSON(p)
	}
}

// POST /api/admin/products
func CreateProductHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ProductRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		p, err := svc.CreateProduct(c.UserContext(), ProductInput(body))
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType: "product", EntityID: p.ID, Action: models.AuditActionCreate,
			Description: "created product " + p.Name, After: p,
		})
		return c.Status(fiber.StatusCreated).JSON(p)
	}
}

// PUT /api/admin/products/:id
func UpdateProductHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ProductRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		before, after, err := svc.UpdateProduct(c.UserContext(), id, ProductInput(body))
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType: "product", EntityID: id, Action: models.AuditActionUpdate,
			Description: "updated product " + after.Name, Before: before, After: after,
		})
		return c.JSON(after)
	}
}

// DELETE /api/admin/products/:id
func DeleteProductHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.DeleteProduct(c.UserContext(), id)
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType: "product", EntityID: id, Action: models.AuditActionDelete,
			Description: "deleted product " + p.Name, Before: p,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/admin/products/:id/image (multipart field "image")
func UploadProductImageHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		fh, err := c.FormFile("image")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "multipart field 'image' is required")
		}
		p, err := svc.SetProductImage(c.UserContext(), id, fh)
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType: "product", EntityID: id, Action: models.AuditActionUpdate,
			Description: fmt.Sprintf("uploaded image %s", p.ImageURL), After: p,
		})
		return c.JSON(p)
	}
}

package catalog

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/audit"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type BrandRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	LogoURL     *string `json:"logo_url" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"is_active"`
}

type ModelRequest struct {
	BrandID     *uint   `json:"brand_id" validate:"omitempty,gt=0"`
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active"`
}

type BrandResponse struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	LogoURL     string    `json:"logo_url"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ModelResponse struct {
	ID          uint      `json:"id"`
	BrandID     uint      `json:"brand_id"`
	BrandName   string    `json:"brand_name"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toBrandResponse(b *models.Brand) BrandResponse {
	return BrandResponse{
		ID:          b.ID,
		Name:        b.Name,
		Description: b.Description,
		LogoURL:     b.LogoURL,
		IsActive:    b.IsActive,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func toModelResponse(m *models.PhoneModel) ModelResponse {
	return ModelResponse{
		ID:          m.ID,
		BrandID:     m.BrandID,
		BrandName:   m.Brand.Name,
		Name:        m.Name,
		Description: m.Description,
		IsActive:    m.IsActive,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func brandResponses(list []models.Brand) []BrandResponse {
	out := make([]BrandResponse, 0, len(list))
	for i := range list {
		out = append(out, toBrandResponse(&list[i]))
	}
	return out
}

func modelResponses(list []models.PhoneModel) []ModelResponse {
	out := make([]ModelResponse, 0, len(list))
	for i := range list {
		out = append(out, toModelResponse(&list[i]))
	}
	return out
}

// GET /api/brands (public) and /api/admin/brands (all)
func ListBrandsHandler(svc *Service, activeOnly bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := httpx.ListQuery(c)
		list, total, err := svc.ListBrands(c.UserContext(), activeOnly, page)
		if err != nil {
			return err
		}
		return c.JSON(httpx.NewPage(brandResponses(list), total, page))
	}
}

// GET /api/brands/:id
func GetBrandHandler(svc *Service, activeOnly bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		b, err := svc.GetBrand(c.UserContext(), id, activeOnly)
		if err != nil {
			return err
		}
		return c.JSON(toBrandResponse(b))
	}
}

// POST /api/admin/brands
func CreateBrandHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body BrandRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		b, err := svc.CreateBrand(c.UserContext(), BrandInput(body))
		if err != nil {
			return err
		}
		resp := toBrandResponse(b)
		rec.Record(c, audit.LogOptions{
			EntityType: "brand", EntityID: b.ID, Action: models.AuditActionCreate,
			Description: "created brand " + b.Name, After: resp,
		})
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// PUT /api/admin/brands/:id
func UpdateBrandHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body BrandRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		before, after, err := svc.UpdateBrand(c.UserContext(), id, BrandInput(body))
		if err != nil {
			return err
		}
		resp := toBrandResponse(after)
		rec.Record(c, audit.LogOptions{
			EntityType: "brand", EntityID: id, Action: models.AuditActionUpdate,
			Description: "updated brand " + after.Name, Before: toBrandResponse(before), After: resp,
		})
		return c.JSON(resp)
	}
}

// DELETE /api/admin/brands/:id
func DeleteBrandHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		b, err := svc.DeleteBrand(c.UserContext(), id)
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType: "brand", EntityID: id, Action: models.AuditActionDelete,
			Description: "deleted brand " + b.Name, Before: toBrandResponse(b),
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/models?brand_id= and GET /api/brands/:id/models
func ListModelsHandler(svc *Service, activeOnly bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := httpx.ListQuery(c)
		f := ModelFilter{ActiveOnly: activeOnly, BrandID: httpx.QueryUint(c, "brand_id")}
		if c.Params("id") != "" {
			id, err := httpx.ParamID(c, "id")
			if err != nil {
				return err
			}
			if _, err := svc.GetBrand(c.UserContext(), id, activeOnly); err != nil {
				return err
			}
			f.BrandID = &id
		}
		list, total, err := svc.ListModels(c.UserContext(), f, page)
		if err != nil {
			return err
		}
		return c.JSON(httpx.NewPage(modelResponses(list), total, page))
	}
}

// GET /api/models/:id
func GetModelHandler(svc *Service, activeOnly bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		m, err := svc.GetModel(c.UserContext(), id, activeOnly)
		if err != nil {
			return err
		}
		return c.JSON(toModelResponse(m))
	}
}

// POST /api/admin/models
func CreateModelHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ModelRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		m, err := svc.CreateModel(c.UserContext(), ModelInput(body))
		if err != nil {
			return err
		}
		resp := toModelResponse(m)
		rec.Record(c, audit.LogOptions{
			EntityType: "phone_model", EntityID: m.ID, Action: models.AuditActionCreate,
			Description: "created model " + m.Name, After: resp,
		})
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// PUT /api/admin/models/:id
func UpdateModelHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ModelRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		before, after, err := svc.UpdateModel(c.UserContext(), id, ModelInput(body))
		if err != nil {
			return err
		}
		resp := toModelResponse(after)
		rec.Record(c, audit.LogOptions{
			EntityType: "phone_model", EntityID: id, Action: models.AuditActionUpdate,
			Description: "updated model " + after.Name, Before: toModelResponse(before), After: resp,
		})
		return c.JSON(resp)
	}
}

// DELETE /api/admin/models/:id
func DeleteModelHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		m, err := svc.DeleteModel(c.UserContext(), id)
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType: "phone_model", EntityID: id, Action: models.AuditActionDelete,
			Description: "deleted model " + m.Name, Before: toModelResponse(m),
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

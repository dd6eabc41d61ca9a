package promotion

import (
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/audit"
	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type PromotionRequest struct {
	Code           *string              `json:"code" validate:"omitempty,min=3,max=50"`
	Name           *string              `json:"name" validate:"omitempty,min=1,max=150"`
	Description    *string              `json:"description" validate:"omitempty,max=500"`
	DiscountType   *models.DiscountType `json:"discount_type" validate:"omitempty,oneof=percent fixed"`
	DiscountValue  *int64               `json:"discount_value" validate:"omitempty,gt=0"`
	MaxDiscount    *int64               `json:"max_discount" validate:"omitempty,gte=0"`
	MinOrderAmount *int64               `json:"min_order_amount" validate:"omitempty,gte=0"`
	UsageLimit     *int                 `json:"usage_limit" validate:"omitempty,gte=0"`
	StartDate      *string              `json:"start_date"`
	EndDate        *string              `json:"end_date"`
	IsActive       *bool                `json:"is_active"`
	ProductIDs     *[]uint              `json:"product_ids" validate:"omitempty,dive,gt=0"`
}

func (r PromotionRequest) input() (Input, error) {
	in := Input{
		Code:           r.Code,
		Name:           r.Name,
		Description:    r.Description,
		DiscountType:   r.DiscountType,
		DiscountValue:  r.DiscountValue,
		MaxDiscount:    r.MaxDiscount,
		MinOrderAmount: r.MinOrderAmount,
		UsageLimit:     r.UsageLimit,
		IsActive:       r.IsActive,
		ProductIDs:     r.ProductIDs,
	}
	if r.StartDate != nil {
		d, err := httpx.ParseDate(*r.StartDate)
		if err != nil {
			return in, err
		}
		in.StartDate = &d
	}
	if r.EndDate != nil {
		d, err := httpx.ParseDate(*r.EndDate)
		if err != nil {
			return in, err
		}
		in.EndDate = &d
	}
	return in, nil
}

type ItemRequest struct {
	ProductID uint `json:"product_id" validate:"required,gt=0"`
	Quantity  int  `json:"quantity" validate:"required,min=1,max=10"`
}

type ValidateRequest struct {
	Code  string        `json:"code" validate:"required,max=50"`
	Items []ItemRequest `json:"items" validate:"omitempty,dive"`
}

type PromotionResponse struct {
	ID             uint      `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	DiscountType   string    `json:"discount_type"`
	DiscountValue  int64     `json:"discount_value"`
	MaxDiscount    int64     `json:"max_discount"`
	MinOrderAmount int64     `json:"min_order_amount"`
	UsageLimit     int       `json:"usage_limit"`
	UsedCount      int       `json:"used_count"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	IsActive       bool      `json:"is_active"`
	ProductIDs     []uint    `json:"product_ids"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type QuoteResponse struct {
	Code             string `json:"code"`
	Name             string `json:"name"`
	Subtotal         int64  `json:"subtotal"`
	EligibleSubtotal int64  `json:"eligible_subtotal"`
	DiscountAmount   int64  `json:"discount_amount"`
	Total            int64  `json:"total"`
}

func toResponse(p *models.Promotion) PromotionResponse {
	return PromotionResponse{
		ID:             p.ID,
		Code:           p.Code,
		Name:           p.Name,
		Description:    p.Description,
		DiscountType:   string(p.DiscountType),
		DiscountValue:  p.DiscountValue,
		MaxDiscount:    p.MaxDiscount,
		MinOrderAmount: p.MinOrderAmount,
		UsageLimit:     p.UsageLimit,
		UsedCount:      p.UsedCount,
		StartDate:      p.StartDate.Format(httpx.DateLayout),
		EndDate:        p.EndDate.Format(httpx.DateLayout),
		IsActive:       p.IsActive,
		ProductIDs:     slice.Map(p.Products, func(_ int, prod models.Product) uint { return prod.ID }),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toResponses(list []models.Promotion) []PromotionResponse {
	return slice.Map(list, func(i int, _ models.Promotion) PromotionResponse { return toResponse(&list[i]) })
}

// GET /api/admin/promotions?status=active|upcoming|expired
func ListPromotionsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := httpx.ListQuery(c)
		list, total, err := svc.List(c.UserContext(), c.Query("status"), page)
		if err != nil {
			return err
		}
		return c.JSON(httpx.NewPage(toResponses(list), total, page))
	}
}

// GET /api/promotions/active
func ActivePromotionsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.Active(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": toResponses(list)})
	}
}

// GET /api/admin/promotions/:id
func GetPromotionHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(p))
	}
}

// POST /api/admin/promotions
func CreatePromotionHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PromotionRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		in, err := body.input()
		if err != nil {
			return err
		}
		p, err := svc.Create(c.UserContext(), in)
		if err != nil {
			return err
		}
		resp := toResponse(p)
		rec.Record(c, audit.LogOptions{
			EntityType: "promotion", EntityID: p.ID, Action: models.AuditActionCreate,
			Description: "created promotion " + p.Code, After: resp,
		})
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// PUT /api/admin/promotions/:id
func UpdatePromotionHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body PromotionRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		in, err := body.input()
		if err != nil {
			return err
		}
		before, after, err := svc.Update(c.UserContext(), id, in)
		if err != nil {
			return err
		}
		resp := toResponse(after)
		rec.Record(c, audit.LogOptions{
			EntityType: "promotion", EntityID: id, Action: models.AuditActionUpdate,
			Description: "updated promotion " + after.Code, Before: toResponse(before), After: resp,
		})
		return c.JSON(resp)
	}
}

// DELETE /api/admin/promotions/:id
func DeletePromotionHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		p, err := svc.Delete(c.UserContext(), id)
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType: "promotion", EntityID: id, Action: models.AuditActionDelete,
			Description: "deleted promotion " + p.Code, Before: toResponse(p),
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/promotions/validate
func ValidatePromotionHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ValidateRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		items := slice.Map(body.Items, func(_ int, it ItemRequest) ItemInput {
			return ItemInput{ProductID: it.ProductID, Quantity: it.Quantity}
		})
		lines, err := svc.PriceLines(c.UserContext(), actor.ID, items)
		if err != nil {
			return err
		}
		q, err := svc.Preview(c.UserContext(), body.Code, lines)
		if err != nil {
			return err
		}
		return c.JSON(QuoteResponse{
			Code:             q.Promotion.Code,
			Name:             q.Promotion.Name,
			Subtotal:         q.Subtotal,
			EligibleSubtotal: q.EligibleSubtotal,
			DiscountAmount:   q.Discount,
			Total:            q.Subtotal - q.Discount,
		})
	}
}

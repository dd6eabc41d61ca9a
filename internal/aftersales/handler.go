package aftersales

import (
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/audit"
	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type WarrantyUpdateRequest struct {
	Status *models.WarrantyStatus `json:"status" validate:"omitempty,oneof=active claimed void"`
	Note   *string                `json:"note" validate:"omitempty,max=500"`
}

type CreateReturnRequest struct {
	OrderID uint   `json:"order_id" validate:"required,gt=0"`
	IMEI    string `json:"imei" validate:"required,imei"`
	Reason  string `json:"reason" validate:"required,min=3,max=500"`
}

type ReturnStatusRequest struct {
	Status       models.ReturnStatus `json:"status" validate:"required,oneof=approved rejected completed"`
	AdminNote    *string             `json:"admin_note" validate:"omitempty,max=500"`
	RefundAmount *int64              `json:"refund_amount" validate:"omitempty,gte=0"`
}

type ReturnResponse struct {
	ID                uint       `json:"id"`
	OrderID           uint       `json:"order_id"`
	OrderItemID       uint       `json:"order_item_id"`
	ProductIdentityID uint       `json:"product_identity_id"`
	IMEI              string     `json:"imei"`
	UserID            uint       `json:"user_id"`
	Reason            string     `json:"reason"`
	Status            string     `json:"status"`
	AdminNote         string     `json:"admin_note"`
	RefundAmount      int64      `json:"refund_amount"`
	ResolvedBy        *uint      `json:"resolved_by"`
	ResolvedAt        *time.Time `json:"resolved_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toReturnResponse(r *models.ReturnRequest) ReturnResponse {
	return ReturnResponse{
		ID:                r.ID,
		OrderID:           r.OrderID,
		OrderItemID:       r.OrderItemID,
		ProductIdentityID: r.ProductIdentityID,
		IMEI:              r.ProductIdentity.IMEI,
		UserID:            r.UserID,
		Reason:            r.Reason,
		Status:            string(r.Status),
		AdminNote:         r.AdminNote,
		RefundAmount:      r.RefundAmount,
		ResolvedBy:        r.ResolvedBy,
		ResolvedAt:        r.ResolvedAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// GET /api/warranties (own) and /api/admin/warranties (all)
func ListWarrantiesHandler(svc *Service, own bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := WarrantyFilter{Status: models.WarrantyStatus(c.Query("status"))}
		if own {
			actor, err := auth.CurrentActor(c)
			if err != nil {
				return err
			}
			f.UserID = &actor.ID
		} else {
			f.UserID = httpx.QueryUint(c, "user_id")
		}
		page := httpx.ListQuery(c)
		list, total, err := svc.ListWarranties(c.UserContext(), f, page)
		if err != nil {
			return err
		}
		return c.JSON(httpx.NewPage(list, total, page))
	}
}

// GET /api/warranties/imei/:imei
func LookupWarrantyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		w, err := svc.LookupByIMEI(c.UserContext(), c.Params("imei"), actor)
		if err != nil {
			return err
		}
		return c.JSON(w)
	}
}

// PUT /api/admin/warranties/:id
func UpdateWarrantyHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body WarrantyUpdateRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		before, after, err := svc.UpdateWarranty(c.UserContext(), id, WarrantyUpdate(body))
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType: "warranty", EntityID: id, Action: models.AuditActionUpdate,
			Description: "updated warranty for imei " + after.IMEI, Before: before, After: after,
		})
		return c.JSON(after)
	}
}

// POST /api/returns
func CreateReturnHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		var body CreateReturnRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		r, err := svc.CreateReturn(c.UserContext(), actor.ID, ReturnInput(body))
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toReturnResponse(r))
	}
}

// GET /api/returns (own) and /api/admin/returns (all)
func ListReturnsHandler(svc *Service, own bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := ReturnFilter{Status: models.ReturnStatus(c.Query("status"))}
		if own {
			actor, err := auth.CurrentActor(c)
			if err != nil {
				return err
			}
			f.UserID = &actor.ID
		} else {
			f.UserID = httpx.QueryUint(c, "user_id")
		}
		page := httpx.ListQuery(c)
		list, total, err := svc.ListReturns(c.UserContext(), f, page)
		if err != nil {
			return err
		}
		out := slice.Map(list, func(i int, _ models.ReturnRequest) ReturnResponse { return toReturnResponse(&list[i]) })
		return c.JSON(httpx.NewPage(out, total, page))
	}
}

// PUT /api/admin/returns/:id/status
func ResolveReturnHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body ReturnStatusRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		before, after, err := svc.ResolveReturn(c.UserContext(), id, ReturnDecision{
			Status:       body.Status,
			AdminNote:    body.AdminNote,
			RefundAmount: body.RefundAmount,
			ResolvedBy:   actor.ID,
		})
		if err != nil {
			return err
		}
		resp := toReturnResponse(after)
		rec.Record(c, audit.LogOptions{
			EntityType: "return_request", EntityID: id, Action: models.AuditActionStatus,
			Description: "return " + string(before.Status) + " -> " + string(after.Status),
			Before:      toReturnResponse(before), After: resp,
		})
		return c.JSON(resp)
	}
}

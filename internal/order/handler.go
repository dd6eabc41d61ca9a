package order

import (
	"fmt"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/audit"
	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
	"phonestore-backend/internal/promotion"
)

type CheckoutItemRequest struct {
	ProductID uint `json:"product_id" validate:"required,gt=0"`
	Quantity  int  `json:"quantity" validate:"required,min=1,max=10"`
}

type CheckoutRequest struct {
	Items           []CheckoutItemRequest `json:"items" validate:"omitempty,dive"`
	ShippingName    string                `json:"shipping_name" validate:"max=100"`
	ShippingPhone   string                `json:"shipping_phone" validate:"max=20"`
	ShippingAddress string                `json:"shipping_address" validate:"max=255"`
	PaymentMethod   models.PaymentMethod  `json:"payment_method" validate:"omitempty,oneof=cod bank_transfer"`
	Note            string                `json:"note" validate:"max=500"`
	PromotionCode   string                `json:"promotion_code" validate:"max=50"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

type StatusRequest struct {
	Status models.OrderStatus `json:"status" validate:"required,oneof=confirmed shipping delivered cancelled"`
	Reason string             `json:"reason" validate:"max=255"`
}

type ItemResponse struct {
	ID          uint     `json:"id"`
	ProductID   uint     `json:"product_id"`
	ProductName string   `json:"product_name"`
	UnitPrice   int64    `json:"unit_price"`
	Quantity    int      `json:"quantity"`
	LineTotal   int64    `json:"line_total"`
	IMEIs       []string `json:"imeis,omitempty"`
}

type OrderResponse struct {
	ID              uint           `json:"id"`
	Code            string         `json:"code"`
	UserID          uint           `json:"user_id"`
	Username        string         `json:"username,omitempty"`
	Status          string         `json:"status"`
	ShippingName    string         `json:"shipping_name"`
	ShippingPhone   string         `json:"shipping_phone"`
	ShippingAddress string         `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
	Note            string         `json:"note"`
	PromotionCode   string         `json:"promotion_code"`
	Subtotal        int64          `json:"subtotal"`
	DiscountAmount  int64          `json:"discount_amount"`
	Total           int64          `json:"total"`
	CancelReason    string         `json:"cancel_reason,omitempty"`
	ConfirmedAt     *time.Time     `json:"confirmed_at"`
	DeliveredAt     *time.Time     `json:"delivered_at"`
	CancelledAt     *time.Time     `json:"cancelled_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Items           []ItemResponse `json:"items"`
}

func toResponse(o *models.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID,
		Code:            o.Code,
		UserID:          o.UserID,
		Username:        o.User.Username,
		Status:          string(o.Status),
		ShippingName:    o.ShippingName,
		ShippingPhone:   o.ShippingPhone,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   string(o.PaymentMethod),
		Note:            o.Note,
		PromotionCode:   o.PromotionCode,
		Subtotal:        o.Subtotal,
		DiscountAmount:  o.DiscountAmount,
		Total:           o.Total,
		CancelReason:    o.CancelReason,
		ConfirmedAt:     o.ConfirmedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items: slice.Map(o.Items, func(_ int, it models.OrderItem) ItemResponse {
			return ItemResponse{
				ID:          it.ID,
				ProductID:   it.ProductID,
				ProductName: it.ProductName,
				UnitPrice:   it.UnitPrice,
				Quantity:    it.Quantity,
				LineTotal:   it.LineTotal,
				IMEIs:       slice.Map(it.Identities, func(_ int, u models.ProductIdentity) string { return u.IMEI }),
			}
		}),
	}
}

func toResponses(list []models.Order) []OrderResponse {
	return slice.Map(list, func(i int, _ models.Order) OrderResponse { return toResponse(&list[i]) })
}

// POST /api/orders
func CheckoutHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		var body CheckoutRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		o, err := svc.Checkout(c.UserContext(), actor.ID, CheckoutInput{
			Items: slice.Map(body.Items, func(_ int, it CheckoutItemRequest) promotion.ItemInput {
				return promotion.ItemInput{ProductID: it.ProductID, Quantity: it.Quantity}
			}),
			ShippingName:    body.ShippingName,
			ShippingPhone:   body.ShippingPhone,
			ShippingAddress: body.ShippingAddress,
			PaymentMethod:   body.PaymentMethod,
			Note:            body.Note,
			PromotionCode:   body.PromotionCode,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(o))
	}
}

// GET /api/orders?status=
func ListMyOrdersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		page := httpx.ListQuery(c)
		list, total, err := svc.List(c.UserContext(), Filter{
			UserID: &actor.ID,
			Status: models.OrderStatus(c.Query("status")),
		}, page)
		if err != nil {
			return err
		}
		return c.JSON(httpx.NewPage(toResponses(list), total, page))
	}
}

// GET /api/orders/:id and /api/admin/orders/:id
func GetOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		o, err := svc.Get(c.UserContext(), id, actor)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(o))
	}
}

// POST /api/orders/:id/cancel
func CancelMyOrderHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body CancelRequest
		if len(c.Body()) > 0 {
			if err := httpx.Bind(c, &body); err != nil {
				return err
			}
		}
		o, err := svc.Cancel(c.UserContext(), actor.ID, id, body.Reason)
		if err != nil {
			return err
		}
		resp := toResponse(o)
		rec.Record(c, audit.LogOptions{
			EntityType: "order", EntityID: id, Action: models.AuditActionStatus,
			Description: "customer cancelled order " + o.Code, After: resp,
		})
		return c.JSON(resp)
	}
}

// GET /api/admin/orders?status=&user_id=&from=&to=&search=
func AdminListOrdersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := httpx.ListQuery(c)
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		list, total, err := svc.List(c.UserContext(), Filter{
			UserID: httpx.QueryUint(c, "user_id"),
			Status: models.OrderStatus(c.Query("status")),
			From:   from,
			To:     to,
		}, page)
		if err != nil {
			return err
		}
		return c.JSON(httpx.NewPage(toResponses(list), total, page))
	}
}

// PUT /api/admin/orders/:id/status
func UpdateOrderStatusHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body StatusRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		before, after, err := svc.UpdateStatus(c.UserContext(), id, body.Status, body.Reason)
		if err != nil {
			return err
		}
		resp := toResponse(after)
		rec.Record(c, audit.LogOptions{
			EntityType: "order", EntityID: id, Action: models.AuditActionStatus,
			Description: fmt.Sprintf("order %s %s -> %s", after.Code, before.Status, after.Status),
			Before:      toResponse(before), After: resp,
		})
		return c.JSON(resp)
	}
}

// GET /api/admin/orders/export?from=&to=&status=
func ExportOrdersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		buf, err := svc.Export(c.UserContext(), Filter{
			Status: models.OrderStatus(c.Query("status")),
			From:   from,
			To:     to,
		})
		if err != nil {
			return err
		}
		name := "orders-" + svc.Now().Format("20060102") + ".xlsx"
		c.Attachment(name)
		return c.Send(buf.Bytes())
	}
}

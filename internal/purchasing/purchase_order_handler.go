package purchasing

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ecodeclub/ekit/slice"
	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/audit"
	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type DetailRequest struct {
	ID          *uint  `json:"id" validate:"omitempty,gt=0"`
	ProductID   uint   `json:"product_id" validate:"required,gt=0"`
	Color       string `json:"color" validate:"max=50"`
	IMEI        string `json:"imei" validate:"required,imei"`
	ImportPrice int64  `json:"import_price" validate:"required,gt=0"`
}

type PurchaseOrderRequest struct {
	SupplierID *uint           `json:"supplier_id" validate:"omitempty,gt=0"`
	Note       *string         `json:"note" validate:"omitempty,max=500"`
	ImportDate *string         `json:"import_date"`
	Details    []DetailRequest `json:"details" validate:"omitempty,dive"`
}

type StatusRequest struct {
	Status models.PurchaseOrderStatus `json:"status" validate:"required,oneof=completed cancelled"`
}

type DetailResponse struct {
	ID                uint   `json:"id"`
	ProductID         uint   `json:"product_id"`
	ProductName       string `json:"product_name"`
	Color             string `json:"color"`
	IMEI              string `json:"imei"`
	ImportPrice       int64  `json:"import_price"`
	ProductIdentityID *uint  `json:"product_identity_id"`
}

type PurchaseOrderResponse struct {
	ID           uint             `json:"id"`
	Code         string           `json:"code"`
	SupplierID   uint             `json:"supplier_id"`
	SupplierName string           `json:"supplier_name"`
	Status       string           `json:"status"`
	Note         string           `json:"note"`
	ImportDate   string           `json:"import_date"`
	TotalAmount  int64            `json:"total_amount"`
	ItemCount    int              `json:"item_count"`
	CreatedBy    uint             `json:"created_by"`
	CompletedAt  *time.Time       `json:"completed_at"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Details      []DetailResponse `json:"details,omitempty"`
}

func toPurchaseOrderResponse(po *models.PurchaseOrder, withDetails bool) PurchaseOrderResponse {
	resp := PurchaseOrderResponse{
		ID:           po.ID,
		Code:         po.Code,
		SupplierID:   po.SupplierID,
		SupplierName: po.Supplier.Name,
		Status:       string(po.Status),
		Note:         po.Note,
		ImportDate:   po.ImportDate.Format(httpx.DateLayout),
		TotalAmount:  po.TotalAmount,
		ItemCount:    len(po.Details),
		CreatedBy:    po.CreatedBy,
		CompletedAt:  po.CompletedAt,
		CreatedAt:    po.CreatedAt,
		UpdatedAt:    po.UpdatedAt,
	}
	if withDetails {
		resp.Details = slice.Map(po.Details, func(_ int, d models.PurchaseOrderDetail) DetailResponse {
			return DetailResponse{
				ID:                d.ID,
				ProductID:         d.ProductID,
				ProductName:       d.Product.Name,
				Color:             d.Color,
				IMEI:              d.IMEI,
				ImportPrice:       d.ImportPrice,
				ProductIdentityID: d.ProductIdentityID,
			}
		})
	}
	return resp
}

func (r PurchaseOrderRequest) input() (OrderInput, error) {
	in := OrderInput{SupplierID: r.SupplierID, Note: r.Note}
	if r.ImportDate != nil {
		d, err := httpx.ParseDate(*r.ImportDate)
		if err != nil {
			return in, &apperr.ValidationError{Fields: map[string]string{"import_date": "must be a date (YYYY-MM-DD)"}}
		}
		in.ImportDate = &d
	}
	if r.Details != nil {
		in.Details = slice.Map(r.Details, func(_ int, d DetailRequest) DetailInput {
			return DetailInput{ID: d.ID, ProductID: d.ProductID, Color: d.Color, IMEI: d.IMEI, ImportPrice: d.ImportPrice}
		})
	}
	return in, nil
}

// GET /api/admin/purchase-orders?supplier_id=&status=&from=&to=&search=
func ListPurchaseOrdersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := httpx.ListQuery(c)
		from, to, err := httpx.DateRange(c)
		if err != nil {
			return err
		}
		f := OrderFilter{
			SupplierID: httpx.QueryUint(c, "supplier_id"),
			Status:     models.PurchaseOrderStatus(c.Query("status")),
			From:       from,
			To:         to,
		}
		list, total, err := svc.List(c.UserContext(), f, page)
		if err != nil {
			return err
		}
		out := slice.Map(list, func(i int, _ models.PurchaseOrder) PurchaseOrderResponse {
			return toPurchaseOrderResponse(&list[i], false)
		})
		return c.JSON(httpx.NewPage(out, total, page))
	}
}

// GET /api/admin/purchase-orders/:id
func GetPurchaseOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		po, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(toPurchaseOrderResponse(po, true))
	}
}

// POST /api/admin/purchase-orders
func CreatePurchaseOrderHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body PurchaseOrderRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		in, err := body.input()
		if err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		po, err := svc.Create(c.UserContext(), in, actor.ID)
		if err != nil {
			return err
		}
		resp := toPurchaseOrderResponse(po, true)
		rec.Record(c, audit.LogOptions{
			EntityType: "purchase_order", EntityID: po.ID, Action: models.AuditActionCreate,
			Description: "created purchase order " + po.Code, After: resp,
		})
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// POST /api/admin/purchase-orders/import (multipart: file, supplier_id, note)
func ImportPurchaseOrderHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file is required")
		}
		if !strings.EqualFold(filepath.Ext(fh.Filename), ".xlsx") {
			return fiber.NewError(fiber.StatusBadRequest, "only .xlsx files are accepted")
		}
		supplierID, err := strconv.ParseUint(c.FormValue("supplier_id"), 10, 32)
		if err != nil || supplierID == 0 {
			return &apperr.ValidationError{Fields: map[string]string{"supplier_id": "is required"}}
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}

		f, err := fh.Open()
		if err != nil {
			return err
		}
		defer f.Close()

		po, err := svc.Import(c.UserContext(), f, ImportSheet{
			SupplierID: uint(supplierID),
			Note:       c.FormValue("note"),
			CreatedBy:  actor.ID,
		})
		if err != nil {
			return err
		}
		resp := toPurchaseOrderResponse(po, true)
		rec.Record(c, audit.LogOptions{
			EntityType: "purchase_order", EntityID: po.ID, Action: models.AuditActionCreate,
			Description: "imported purchase order " + po.Code + " from " + fh.Filename, After: resp,
		})
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// PUT /api/admin/purchase-orders/:id
func UpdatePurchaseOrderHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body PurchaseOrderRequest
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
		resp := toPurchaseOrderResponse(after, true)
		rec.Record(c, audit.LogOptions{
			EntityType: "purchase_order", EntityID: id, Action: models.AuditActionUpdate,
			Description: "updated purchase order " + after.Code,
			Before:      toPurchaseOrderResponse(before, true), After: resp,
		})
		return c.JSON(resp)
	}
}

// PUT /api/admin/purchase-orders/:id/status
func UpdatePurchaseOrderStatusHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body StatusRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		before, after, err := svc.SetStatus(c.UserContext(), id, body.Status)
		if err != nil {
			return err
		}
		resp := toPurchaseOrderResponse(after, true)
		rec.Record(c, audit.LogOptions{
			EntityType: "purchase_order", EntityID: id, Action: models.AuditActionStatus,
			Description: "purchase order " + after.Code + " " + string(before.Status) + " -> " + string(after.Status),
			Before:      toPurchaseOrderResponse(before, false), After: resp,
		})
		return c.JSON(resp)
	}
}

// DELETE /api/admin/purchase-orders/:id
func DeletePurchaseOrderHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		before, after, err := svc.Cancel(c.UserContext(), id)
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType: "purchase_order", EntityID: id, Action: models.AuditActionDelete,
			Description: "cancelled purchase order " + after.Code,
			Before:      toPurchaseOrderResponse(before, false), After: toPurchaseOrderResponse(after, false),
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

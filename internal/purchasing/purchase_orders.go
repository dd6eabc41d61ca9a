package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type DetailInput struct {
	ID          *uint
	ProductID   uint
	Color       string
	IMEI        string
	ImportPrice int64
}

type OrderInput struct {
	SupplierID *uint
	Note       *string
	ImportDate *time.Time
	// Details nil leaves existing details untouched on update.
	Details []DetailInput
}

type OrderFilter struct {
	SupplierID *uint
	Status     models.PurchaseOrderStatus
	From, To   *time.Time
}

func detailLabel(i int) string { return fmt.Sprintf("details[%d]", i) }

func (s *Service) newCode() string {
	return fmt.Sprintf("PO-%s-%s", s.Now().Format("20060102"), strings.ToUpper(uuid.NewString()[:6]))
}

func (s *Service) today() time.Time {
	now := s.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func activeSupplier(tx *gorm.DB, id uint) error {
	var sup models.Supplier
	if err := tx.First(&sup, id).Error; err != nil {
		return notFound(err, "supplier %d not found", id)
	}
	if !sup.IsActive {
		return apperr.Invalid("supplier %q is inactive", sup.Name)
	}
	return nil
}

// validateDetails checks every line of a submission. IMEIs must be well
// formed, unique within the submission, not yet an identity, and not on any
// other pending purchase order. label names a line in error fields.
func validateDetails(tx *gorm.DB, details []DetailInput, excludeOrderID uint, label func(int) string) error {
	fields := map[string]string{}
	seen := map[string]int{}
	imeis := make([]string, 0, len(details))
	productIDs := map[uint]struct{}{}

	for i := range details {
		d := &details[i]
		d.IMEI = strings.TrimSpace(d.IMEI)
		d.Color = strings.TrimSpace(d.Color)
		switch {
		case !httpx.ValidIMEI(d.IMEI):
			fields[label(i)+".imei"] = "must be exactly 15 digits"
		default:
			if j, dup := seen[d.IMEI]; dup {
				fields[label(i)+".imei"] = fmt.Sprintf("duplicates %s", label(j))
			} else {
				seen[d.IMEI] = i
				imeis = append(imeis, d.IMEI)
			}
		}
		if d.ImportPrice <= 0 {
			fields[label(i)+".import_price"] = "must be greater than 0"
		}
		if d.ProductID == 0 {
			fields[label(i)+".product_id"] = "is required"
		} else {
			productIDs[d.ProductID] = struct{}{}
		}
	}

	if len(productIDs) > 0 {
		ids := make([]uint, 0, len(productIDs))
		for id := range productIDs {
			ids = append(ids, id)
		}
		var active []uint
		if err := tx.Model(&models.Product{}).Where("id IN ? AND is_active = ?", ids, true).Pluck("id", &active).Error; err != nil {
			return err
		}
		ok := make(map[uint]bool, len(active))
		for _, id := range active {
			ok[id] = true
		}
		for i, d := range details {
			if d.ProductID != 0 && !ok[d.ProductID] {
				fields[label(i)+".product_id"] = fmt.Sprintf("product %d not found or inactive", d.ProductID)
			}
		}
	}

	if len(imeis) > 0 {
		var stocked []string
		if err := tx.Model(&models.ProductIdentity{}).Where("imei IN ?", imeis).Pluck("imei", &stocked).Error; err != nil {
			return err
		}
		for _, imei := range stocked {
			fields[label(seen[imei])+".imei"] = "already registered as a product identity"
		}

		type pendingRow struct {
			IMEI string
			Code string
		}
		var pending []pendingRow
		err := tx.Table("purchase_order_details d").
			Select("d.imei AS imei, po.code AS code").
			Joins("JOIN purchase_orders po ON po.id = d.purchase_order_id").
			Where("po.status = ? AND po.id <> ? AND d.imei IN ?", models.PurchaseOrderPending, excludeOrderID, imeis).
			Scan(&pending).Error
		if err != nil {
			return err
		}
		for _, p := range pending {
			fields[label(seen[p.IMEI])+".imei"] = "already on pending purchase order " + p.Code
		}
	}

	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

func sumImportPrice(details []DetailInput) int64 {
	var total int64
	for _, d := range details {
		total += d.ImportPrice
	}
	return total
}

func (s *Service) Create(ctx context.Context, in OrderInput, createdBy uint) (*models.PurchaseOrder, error) {
	return s.create(ctx, in, createdBy, detailLabel)
}

func (s *Service) create(ctx context.Context, in OrderInput, createdBy uint, label func(int) string) (*models.PurchaseOrder, error) {
	if in.SupplierID == nil {
		return nil, apperr.Invalid("supplier_id is required")
	}
	if len(in.Details) == 0 {
		return nil, apperr.Invalid("at least one detail is required")
	}
	po := models.PurchaseOrder{
		Code:       s.newCode(),
		SupplierID: *in.SupplierID,
		Status:     models.PurchaseOrderPending,
		ImportDate: s.today(),
		CreatedBy:  createdBy,
	}
	if in.Note != nil {
		po.Note = strings.TrimSpace(*in.Note)
	}
	if in.ImportDate != nil {
		po.ImportDate = *in.ImportDate
	}

	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := activeSupplier(tx, po.SupplierID); err != nil {
			return err
		}
		if err := validateDetails(tx, in.Details, 0, label); err != nil {
			return err
		}
		po.TotalAmount = sumImportPrice(in.Details)
		for _, d := range in.Details {
			po.Details = append(po.Details, models.PurchaseOrderDetail{
				ProductID:   d.ProductID,
				Color:       d.Color,
				IMEI:        d.IMEI,
				ImportPrice: d.ImportPrice,
			})
		}
		return tx.Create(&po).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("purchase order created", zap.String("code", po.Code), zap.Int("lines", len(po.Details)))
	return s.Get(ctx, po.ID)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	err := s.db.WithContext(ctx).
		Preload("Supplier", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Details.Product", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&po, id).Error
	if err != nil {
		return nil, notFound(err, "purchase order %d not found", id)
	}
	return &po, nil
}

func (s *Service) List(ctx context.Context, f OrderFilter, page httpx.ListFilters) ([]models.PurchaseOrder, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.PurchaseOrder{})
	if f.SupplierID != nil {
		q = q.Where("supplier_id = ?", *f.SupplierID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("import_date >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("import_date < ?", *f.To)
	}
	if page.Search != "" {
		clause, args := httpx.SearchClause(page.Search, "code")
		q = q.Where(clause, args...)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := page.OrderClause(map[string]string{
		"import_date":  "import_date",
		"total_amount": "total_amount",
		"created_at":   "created_at",
	}, "created_at DESC")
	var out []models.PurchaseOrder
	err := q.Preload("Supplier", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Details").
		Order(order).Order("id DESC").Offset(page.Offset()).Limit(page.Limit).Find(&out).Error
	return out, total, err
}

func lockPending(tx *gorm.DB, id uint) (*models.PurchaseOrder, error) {
	var po models.PurchaseOrder
	if err := database.ForUpdate(tx).First(&po, id).Error; err != nil {
		return nil, notFound(err, "purchase order %d not found", id)
	}
	if po.Status != models.PurchaseOrderPending {
		return nil, apperr.Conflict("purchase order %s is %s and can no longer be changed", po.Code, po.Status)
	}
	return &po, nil
}

// Update edits a pending purchase order. When in.Details is non-nil the
// stored lines are reconciled against it in the same transaction: lines
// with an id are updated, lines without one are added, and stored lines
// whose id is absent are deleted.
func (s *Service) Update(ctx context.Context, id uint, in OrderInput) (before, after *models.PurchaseOrder, err error) {
	before, err = s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		po, err := lockPending(tx, id)
		if err != nil {
			return err
		}
		updates := map[string]any{}
		if in.SupplierID != nil && *in.SupplierID != po.SupplierID {
			if err := activeSupplier(tx, *in.SupplierID); err != nil {
				return err
			}
			updates["supplier_id"] = *in.SupplierID
		}
		if in.Note != nil {
			updates["note"] = strings.TrimSpace(*in.Note)
		}
		if in.ImportDate != nil {
			updates["import_date"] = *in.ImportDate
		}
		if in.Details != nil {
			total, err := reconcileDetails(tx, po.ID, in.Details)
			if err != nil {
				return err
			}
			updates["total_amount"] = total
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(po).Updates(updates).Error
	})
	if err != nil {
		return nil, nil, err
	}
	after, err = s.Get(ctx, id)
	return before, after, err
}

func reconcileDetails(tx *gorm.DB, orderID uint, details []DetailInput) (int64, error) {
	if len(details) == 0 {
		return 0, apperr.Invalid("at least one detail is required")
	}
	var existing []models.PurchaseOrderDetail
	if err := tx.Where("purchase_order_id = ?", orderID).Find(&existing).Error; err != nil {
		return 0, err
	}
	byID := make(map[uint]*models.PurchaseOrderDetail, len(existing))
	for i := range existing {
		byID[existing[i].ID] = &existing[i]
	}

	foreign := map[string]string{}
	kept := map[uint]bool{}
	for i, d := range details {
		if d.ID == nil {
			continue
		}
		if _, ok := byID[*d.ID]; !ok {
			foreign[detailLabel(i)+".id"] = fmt.Sprintf("detail %d does not belong to this purchase order", *d.ID)
			continue
		}
		if kept[*d.ID] {
			foreign[detailLabel(i)+".id"] = fmt.Sprintf("detail %d is listed twice", *d.ID)
		}
		kept[*d.ID] = true
	}
	if len(foreign) > 0 {
		return 0, &apperr.ValidationError{Fields: foreign}
	}
	if err := validateDetails(tx, details, orderID, detailLabel); err != nil {
		return 0, err
	}

	var drop []uint
	for id := range byID {
		if !kept[id] {
			drop = append(drop, id)
		}
	}
	if len(drop) > 0 {
		if err := tx.Where("id IN ?", drop).Delete(&models.PurchaseOrderDetail{}).Error; err != nil {
			return 0, err
		}
	}

	for _, d := range details {
		if d.ID == nil {
			continue
		}
		err := tx.Model(&models.PurchaseOrderDetail{}).Where("id = ?", *d.ID).Updates(map[string]any{
			"product_id":   d.ProductID,
			"color":        d.Color,
			"imei":         d.IMEI,
			"import_price": d.ImportPrice,
		}).Error
		if err != nil {
			return 0, err
		}
	}
	for _, d := range details {
		if d.ID != nil {
			continue
		}
		row := models.PurchaseOrderDetail{
			PurchaseOrderID: orderID,
			ProductID:       d.ProductID,
			Color:           d.Color,
			IMEI:            d.IMEI,
			ImportPrice:     d.ImportPrice,
		}
		if err := tx.Create(&row).Error; err != nil {
			return 0, err
		}
	}
	return sumImportPrice(details), nil
}

// SetStatus moves a pending order to completed or cancelled. Completion
// creates one in-stock identity per line.
func (s *Service) SetStatus(ctx context.Context, id uint, to models.PurchaseOrderStatus) (before, after *models.PurchaseOrder, err error) {
	before, err = s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var po models.PurchaseOrder
		if err := database.ForUpdate(tx).First(&po, id).Error; err != nil {
			return notFound(err, "purchase order %d not found", id)
		}
		if po.Status != models.PurchaseOrderPending ||
			(to != models.PurchaseOrderCompleted && to != models.PurchaseOrderCancelled) {
			return apperr.InvalidState(string(po.Status), string(to))
		}

		updates := map[string]any{"status": to}
		if to == models.PurchaseOrderCompleted {
			if err := receiveStock(tx, po.ID); err != nil {
				return err
			}
			updates["completed_at"] = s.Now()
		}
		return tx.Model(&po).Updates(updates).Error
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("purchase order status changed", zap.Uint("id", id), zap.String("to", string(to)))
	after, err = s.Get(ctx, id)
	return before, after, err
}

func receiveStock(tx *gorm.DB, orderID uint) error {
	var details []models.PurchaseOrderDetail
	if err := tx.Where("purchase_order_id = ?", orderID).Order("id").Find(&details).Error; err != nil {
		return err
	}
	if len(details) == 0 {
		return apperr.Invalid("purchase order has no details")
	}
	for _, d := range details {
		detailID := d.ID
		identity := models.ProductIdentity{
			ProductID:             d.ProductID,
			IMEI:                  d.IMEI,
			Color:                 d.Color,
			ImportPrice:           d.ImportPrice,
			Status:                models.IdentityInStock,
			PurchaseOrderDetailID: &detailID,
		}
		if err := tx.Create(&identity).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Conflict("imei %s is already in stock", d.IMEI)
			}
			return err
		}
		if err := tx.Model(&models.PurchaseOrderDetail{}).Where("id = ?", d.ID).
			Update("product_identity_id", identity.ID).Error; err != nil {
			return err
		}
	}
	return nil
}

// Cancel is the DELETE verb: only pending orders can be cancelled.
func (s *Service) Cancel(ctx context.Context, id uint) (before, after *models.PurchaseOrder, err error) {
	return s.SetStatus(ctx, id, models.PurchaseOrderCancelled)
}

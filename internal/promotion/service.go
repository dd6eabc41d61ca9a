// Package promotion manages discount codes and computes the discount a code
// grants on a set of order lines.
package promotion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

// Listing filters for the admin view.
const (
	StatusActive   = "active"
	StatusUpcoming = "upcoming"
	StatusExpired  = "expired"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger
	Now func() time.Time
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log, Now: time.Now}
}

// Day truncates t to midnight UTC. Promotion dates compare by calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) today() time.Time { return Day(s.Now()) }

type Input struct {
	Code           *string
	Name           *string
	Description    *string
	DiscountType   *models.DiscountType
	DiscountValue  *int64
	MaxDiscount    *int64
	MinOrderAmount *int64
	UsageLimit     *int
	StartDate      *time.Time
	EndDate        *time.Time
	IsActive       *bool
	// ProductIDs nil leaves the product set untouched on update; an empty
	// set makes the promotion apply to every product.
	ProductIDs *[]uint
}

func (in Input) apply(p *models.Promotion) {
	if in.Code != nil {
		p.Code = strings.ToUpper(strings.TrimSpace(*in.Code))
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.DiscountType != nil {
		p.DiscountType = *in.DiscountType
	}
	if in.DiscountValue != nil {
		p.DiscountValue = *in.DiscountValue
	}
	if in.MaxDiscount != nil {
		p.MaxDiscount = *in.MaxDiscount
	}
	if in.MinOrderAmount != nil {
		p.MinOrderAmount = *in.MinOrderAmount
	}
	if in.UsageLimit != nil {
		p.UsageLimit = *in.UsageLimit
	}
	if in.StartDate != nil {
		p.StartDate = Day(*in.StartDate)
	}
	if in.EndDate != nil {
		p.EndDate = Day(*in.EndDate)
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}

func checkRules(p *models.Promotion) error {
	fields := map[string]string{}
	if p.Code == "" {
		fields["code"] = "is required"
	}
	if p.Name == "" {
		fields["name"] = "is required"
	}
	switch p.DiscountType {
	case models.DiscountPercent:
		if p.DiscountValue < 1 || p.DiscountValue > 100 {
			fields["discount_value"] = "must be between 1 and 100 for percent discounts"
		}
	case models.DiscountFixed:
		if p.DiscountValue <= 0 {
			fields["discount_value"] = "must be greater than 0"
		}
	default:
		fields["discount_type"] = "must be one of [percent fixed]"
	}
	if p.MaxDiscount < 0 {
		fields["max_discount"] = "must not be negative"
	}
	if p.MinOrderAmount < 0 {
		fields["min_order_amount"] = "must not be negative"
	}
	if p.UsageLimit < 0 {
		fields["usage_limit"] = "must not be negative"
	}
	if p.StartDate.IsZero() {
		fields["start_date"] = "is required"
	}
	if p.EndDate.IsZero() {
		fields["end_date"] = "is required"
	}
	if !p.StartDate.IsZero() && !p.EndDate.IsZero() && p.EndDate.Before(p.StartDate) {
		fields["end_date"] = "must not be before start_date"
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

func codeTaken(tx *gorm.DB, code string, exceptID uint) error {
	q := tx.Model(&models.Promotion{}).Where("code = ?", code)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return apperr.Conflict("promotion code %s already exists", code)
	}
	return nil
}

func loadProducts(tx *gorm.DB, ids []uint) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	var products []models.Product
	if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	found := make(map[uint]bool, len(products))
	for _, p := range products {
		found[p.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, &apperr.ValidationError{Fields: map[string]string{"product_ids": fmt.Sprintf("product %d not found", id)}}
		}
	}
	return products, nil
}

// withProducts preloads the product set including soft-deleted products, so a
// promotion restricted to deleted products still applies to none.
func withProducts(db *gorm.DB) *gorm.DB {
	return db.Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Unscoped() })
}

func (s *Service) get(db *gorm.DB, id uint) (*models.Promotion, error) {
	var p models.Promotion
	if err := withProducts(db).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("promotion %d not found", id)
		}
		return nil, err
	}
	return &p, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Promotion, error) {
	return s.get(s.db.WithContext(ctx), id)
}

func (s *Service) Create(ctx context.Context, in Input) (*models.Promotion, error) {
	p := models.Promotion{IsActive: true}
	in.apply(&p)
	if err := checkRules(&p); err != nil {
		return nil, err
	}
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := codeTaken(tx, p.Code, 0); err != nil {
			return err
		}
		if in.ProductIDs != nil {
			products, err := loadProducts(tx, *in.ProductIDs)
			if err != nil {
				return err
			}
			p.Products = products
		}
		return tx.Omit("Products.*").Create(&p).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("promotion created", zap.String("code", p.Code))
	return s.Get(ctx, p.ID)
}

func (s *Service) Update(ctx context.Context, id uint, in Input) (before, after *models.Promotion, err error) {
	err = database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		p, err := s.get(tx, id)
		if err != nil {
			return err
		}
		prev := *p
		before = &prev

		in.apply(p)
		if err := checkRules(p); err != nil {
			return err
		}
		if p.Code != before.Code {
			if err := codeTaken(tx, p.Code, id); err != nil {
				return err
			}
		}
		err = tx.Model(&models.Promotion{}).Where("id = ?", id).Updates(map[string]any{
			"code":             p.Code,
			"name":             p.Name,
			"description":      p.Description,
			"discount_type":    p.DiscountType,
			"discount_value":   p.DiscountValue,
			"max_discount":     p.MaxDiscount,
			"min_order_amount": p.MinOrderAmount,
			"usage_limit":      p.UsageLimit,
			"start_date":       p.StartDate,
			"end_date":         p.EndDate,
			"is_active":        p.IsActive,
		}).Error
		if err != nil {
			return err
		}
		if in.ProductIDs != nil {
			products, err := loadProducts(tx, *in.ProductIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(p).Omit("Products.*").Association("Products").Replace(products); err != nil {
				return err
			}
		}
		after, err = s.get(tx, id)
		return err
	})
	return before, after, err
}

func (s *Service) Delete(ctx context.Context, id uint) (*models.Promotion, error) {
	var p *models.Promotion
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var err error
		if p, err = s.get(tx, id); err != nil {
			return err
		}
		if err := tx.Model(p).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Delete(p).Error
	})
	return p, err
}

func (s *Service) List(ctx context.Context, status string, page httpx.ListFilters) ([]models.Promotion, int64, error) {
	today := s.today()
	q := s.db.WithContext(ctx).Model(&models.Promotion{})
	switch status {
	case "":
	case StatusActive:
		q = q.Where("is_active = ? AND start_date <= ? AND end_date >= ?", true, today, today)
	case StatusUpcoming:
		q = q.Where("start_date > ?", today)
	case StatusExpired:
		q = q.Where("end_date < ?", today)
	default:
		return nil, 0, apperr.Invalid("status must be one of active, upcoming, expired")
	}
	if page.Search != "" {
		clause, args := httpx.SearchClause(page.Search, "code", "name")
		q = q.Where(clause, args...)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	order := page.OrderClause(map[string]string{
		"start_date": "start_date",
		"end_date":   "end_date",
		"code":       "code",
		"created_at": "created_at",
	}, "created_at DESC")
	var out []models.Promotion
	err := withProducts(q).Order(order).Order("id DESC").Offset(page.Offset()).Limit(page.Limit).Find(&out).Error
	return out, total, err
}

// Active lists promotions a customer can use today.
func (s *Service) Active(ctx context.Context) ([]models.Promotion, error) {
	today := s.today()
	var out []models.Promotion
	err := withProducts(s.db.WithContext(ctx)).
		Where("is_active = ? AND start_date <= ? AND end_date >= ?", true, today, today).
		Where("usage_limit = 0 OR used_count < usage_limit").
		Order("end_date ASC").Order("id").
		Find(&out).Error
	return out, err
}

// Line is one priced order line.
type Line struct {
	ProductID uint
	Quantity  int
	UnitPrice int64
}

type Quote struct {
	Promotion        *models.Promotion
	Subtotal         int64
	EligibleSubtotal int64
	Discount         int64
}

// Evaluate checks p against the lines on the given day and computes the
// discount.
func Evaluate(p *models.Promotion, lines []Line, today time.Time) (Quote, error) {
	q := Quote{Promotion: p}
	eligible := make(map[uint]bool, len(p.Products))
	for _, prod := range p.Products {
		eligible[prod.ID] = true
	}
	for _, l := range lines {
		amount := l.UnitPrice * int64(l.Quantity)
		q.Subtotal += amount
		if len(eligible) == 0 || eligible[l.ProductID] {
			q.EligibleSubtotal += amount
		}
	}

	today = Day(today)
	switch {
	case !p.IsActive:
		return q, apperr.Invalid("promotion %s is not active", p.Code)
	case today.Before(Day(p.StartDate)):
		return q, apperr.Invalid("promotion %s starts on %s", p.Code, p.StartDate.Format(httpx.DateLayout))
	case today.After(Day(p.EndDate)):
		return q, apperr.Invalid("promotion %s expired on %s", p.Code, p.EndDate.Format(httpx.DateLayout))
	case p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit:
		return q, apperr.Invalid("promotion %s has reached its usage limit", p.Code)
	case q.EligibleSubtotal == 0:
		return q, apperr.Invalid("promotion %s does not apply to any item", p.Code)
	case q.EligibleSubtotal < p.MinOrderAmount:
		return q, apperr.Invalid("promotion %s requires a minimum of %d", p.Code, p.MinOrderAmount)
	}

	q.Discount = discount(p, q.EligibleSubtotal)
	return q, nil
}

func discount(p *models.Promotion, eligible int64) int64 {
	var d int64
	switch p.DiscountType {
	case models.DiscountPercent:
		d = decimal.NewFromInt(eligible).
			Mul(decimal.NewFromInt(p.DiscountValue)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		if p.MaxDiscount > 0 && d > p.MaxDiscount {
			d = p.MaxDiscount
		}
	case models.DiscountFixed:
		d = min(p.DiscountValue, eligible)
	}
	return d
}

func findByCode(db *gorm.DB, code string) (*models.Promotion, error) {
	var p models.Promotion
	err := withProducts(db).Where("code = ?", strings.ToUpper(strings.TrimSpace(code))).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("promotion code %s not found", code)
	}
	return &p, err
}

// Preview evaluates code against the lines without consuming a use.
func (s *Service) Preview(ctx context.Context, code string, lines []Line) (Quote, error) {
	p, err := findByCode(s.db.WithContext(ctx), code)
	if err != nil {
		return Quote{}, err
	}
	return Evaluate(p, lines, s.Now())
}

// Redeem evaluates code inside tx and consumes one use.
func Redeem(tx *gorm.DB, code string, lines []Line, now time.Time) (Quote, error) {
	p, err := findByCode(database.ForUpdate(tx), code)
	if err != nil {
		return Quote{}, err
	}
	q, err := Evaluate(p, lines, now)
	if err != nil {
		return q, err
	}
	res := tx.Model(&models.Promotion{}).
		Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", p.ID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return q, res.Error
	}
	if res.RowsAffected == 0 {
		return q, apperr.Invalid("promotion %s has reached its usage limit", p.Code)
	}
	p.UsedCount++
	return q, nil
}

// Release gives back a use consumed by Redeem.
func Release(tx *gorm.DB, promotionID uint) error {
	return tx.Unscoped().Model(&models.Promotion{}).
		Where("id = ? AND used_count > 0", promotionID).
		Update("used_count", gorm.Expr("used_count - 1")).Error
}

// ItemInput is a product and quantity, priced from the catalog by PriceLines.
type ItemInput struct {
	ProductID uint
	Quantity  int
}

// PriceLines prices items at current catalog prices. With no items the
// caller's cart is used.
func (s *Service) PriceLines(ctx context.Context, userID uint, items []ItemInput) ([]Line, error) {
	db := s.db.WithContext(ctx)
	if len(items) == 0 {
		var cart []models.CartItem
		if err := db.Where("user_id = ?", userID).Order("id").Find(&cart).Error; err != nil {
			return nil, err
		}
		for _, ci := range cart {
			items = append(items, ItemInput{ProductID: ci.ProductID, Quantity: ci.Quantity})
		}
	}
	if len(items) == 0 {
		return nil, apperr.Invalid("no items to evaluate")
	}
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	var products []models.Product
	if err := db.Where("id IN ? AND is_active = ?", ids, true).Find(&products).Error; err != nil {
		return nil, err
	}
	price := make(map[uint]int64, len(products))
	for _, p := range products {
		price[p.ID] = p.Price
	}
	lines := make([]Line, 0, len(items))
	for _, it := range items {
		unit, ok := price[it.ProductID]
		if !ok {
			return nil, apperr.NotFound("product %d not found", it.ProductID)
		}
		lines = append(lines, Line{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: unit})
	}
	return lines, nil
}

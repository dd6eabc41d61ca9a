// Package cart keeps each customer's pending purchase.
package cart

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/catalog"
	"phonestore-backend/internal/database"
	"phonestore-backend/internal/models"
)

// MaxQuantity is the largest quantity a single cart line may hold.
const MaxQuantity = 10

type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

type Line struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	ImageURL    string `json:"image_url"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"line_total"`
	Stock       int64  `json:"stock"`
	IsActive    bool   `json:"is_active"`
}

type View struct {
	Items     []Line `json:"items"`
	ItemCount int    `json:"item_count"`
	Subtotal  int64  `json:"subtotal"`
}

func InStock(tx *gorm.DB, productID uint) (int64, error) {
	var n int64
	err := tx.Model(&models.ProductIdentity{}).
		Where("product_id = ? AND status = ?", productID, models.IdentityInStock).
		Count(&n).Error
	return n, err
}

func (s *Service) Get(ctx context.Context, userID uint) (*View, error) {
	return load(s.db.WithContext(ctx), userID)
}

func load(db *gorm.DB, userID uint) (*View, error) {
	var lines []Line
	err := db.Table("cart_items").
		Select(`cart_items.product_id, products.name AS product_name, products.image_url,
			products.price AS unit_price, cart_items.quantity,
			products.price * cart_items.quantity AS line_total,
			products.is_active AND products.deleted_at IS NULL AS is_active,
			(SELECT COUNT(*) FROM product_identities pi WHERE pi.product_id = products.id AND pi.status = ?) AS stock`,
			models.IdentityInStock).
		Joins("JOIN products ON products.id = cart_items.product_id").
		Where("cart_items.user_id = ?", userID).
		Order("cart_items.id").
		Scan(&lines).Error
	if err != nil {
		return nil, err
	}
	v := &View{Items: lines}
	if v.Items == nil {
		v.Items = []Line{}
	}
	for _, l := range lines {
		v.ItemCount += l.Quantity
		v.Subtotal += l.LineTotal
	}
	return v, nil
}

func checkProduct(tx *gorm.DB, productID uint, qty int) error {
	if qty < 1 || qty > MaxQuantity {
		return apperr.Invalid("quantity must be between 1 and %d", MaxQuantity)
	}
	p, err := catalog.SellableProduct(tx, productID)
	if err != nil {
		return err
	}
	stock, err := InStock(tx, productID)
	if err != nil {
		return err
	}
	if int64(qty) > stock {
		return apperr.Conflict("only %d units of %s in stock", stock, p.Name)
	}
	return nil
}

// Add puts qty more units of a product in the cart.
func (s *Service) Add(ctx context.Context, userID, productID uint, qty int) (*View, error) {
	var view *View
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var item models.CartItem
		err := tx.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = models.CartItem{UserID: userID, ProductID: productID}
		case err != nil:
			return err
		}
		if qty < 1 {
			return apperr.Invalid("quantity must be between 1 and %d", MaxQuantity)
		}
		if err := checkProduct(tx, productID, item.Quantity+qty); err != nil {
			return err
		}
		item.Quantity += qty
		if err := tx.Save(&item).Error; err != nil {
			return err
		}
		view, err = load(tx, userID)
		return err
	})
	return view, err
}

// SetQuantity replaces a line's quantity; 0 removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID, productID uint, qty int) (*View, error) {
	if qty == 0 {
		return s.Remove(ctx, userID, productID)
	}
	var view *View
	err := database.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		var item models.CartItem
		if err := tx.Where("user_id = ? AND product_id = ?", userID, productID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("product %d is not in the cart", productID)
			}
			return err
		}
		if err := checkProduct(tx, productID, qty); err != nil {
			return err
		}
		if err := tx.Model(&item).Update("quantity", qty).Error; err != nil {
			return err
		}
		var err error
		view, err = load(tx, userID)
		return err
	})
	return view, err
}

func (s *Service) Remove(ctx context.Context, userID, productID uint) (*View, error) {
	db := s.db.WithContext(ctx)
	res := db.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.CartItem{})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("product %d is not in the cart", productID)
	}
	return load(db, userID)
}

func (s *Service) Clear(ctx context.Context, userID uint) error {
	return ClearTx(s.db.WithContext(ctx), userID)
}

func ClearTx(tx *gorm.DB, userID uint) error {
	return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

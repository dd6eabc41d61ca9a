package cart

import (
	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/httpx"
)

type AddItemRequest struct {
	ProductID uint `json:"product_id" validate:"required,gt=0"`
	Quantity  int  `json:"quantity" validate:"required,min=1,max=10"`
}

type SetQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0,max=10"`
}

// GET /api/cart
func GetCartHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		v, err := svc.Get(c.UserContext(), actor.ID)
		if err != nil {
			return err
		}
		return c.JSON(v)
	}
}

// POST /api/cart/items
func AddItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		var body AddItemRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		v, err := svc.Add(c.UserContext(), actor.ID, body.ProductID, body.Quantity)
		if err != nil {
			return err
		}
		return c.JSON(v)
	}
}

// PUT /api/cart/items/:product_id
func SetQuantityHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		productID, err := httpx.ParamID(c, "product_id")
		if err != nil {
			return err
		}
		var body SetQuantityRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		v, err := svc.SetQuantity(c.UserContext(), actor.ID, productID, *body.Quantity)
		if err != nil {
			return err
		}
		return c.JSON(v)
	}
}

// DELETE /api/cart/items/:product_id
func RemoveItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		productID, err := httpx.ParamID(c, "product_id")
		if err != nil {
			return err
		}
		v, err := svc.Remove(c.UserContext(), actor.ID, productID)
		if err != nil {
			return err
		}
		return c.JSON(v)
	}
}

// DELETE /api/cart
func ClearCartHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		if err := svc.Clear(c.UserContext(), actor.ID); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

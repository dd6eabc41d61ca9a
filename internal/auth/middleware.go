package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/models"
)

const (
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
	CtxUsernameKey = "username"
	CtxClaimsKey   = "claims"
)

// Authenticate requires a valid, unrevoked bearer token of an active user.
func Authenticate(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "authorization header must be 'Bearer <token>'")
		}

		claims, user, err := svc.Authenticate(c.UserContext(), strings.TrimSpace(token))
		if err != nil {
			return err
		}

		c.Locals(CtxUserIDKey, user.ID)
		c.Locals(CtxUserRoleKey, user.Role)
		c.Locals(CtxUsernameKey, user.Username)
		c.Locals(CtxClaimsKey, claims)
		return c.Next()
	}
}

func RequireRole(allowed ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "role information missing")
		}
		for _, r := range allowed {
			if r == role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "you are not allowed to perform this action")
	}
}

// Actor is the authenticated caller.
type Actor struct {
	ID       uint
	Username string
	Role     models.UserRole
}

func (a Actor) IsStaff() bool {
	return a.Role == models.RoleAdmin || a.Role == models.RoleStaff
}

// CurrentActor reads the caller set by Authenticate.
func CurrentActor(c *fiber.Ctx) (Actor, error) {
	id, ok := c.Locals(CtxUserIDKey).(uint)
	if !ok || id == 0 {
		return Actor{}, apperr.ErrUnauthorized
	}
	role, _ := c.Locals(CtxUserRoleKey).(models.UserRole)
	name, _ := c.Locals(CtxUsernameKey).(string)
	return Actor{ID: id, Username: name, Role: role}, nil
}

func CurrentClaims(c *fiber.Ctx) (*Claims, error) {
	claims, ok := c.Locals(CtxClaimsKey).(*Claims)
	if !ok {
		return nil, apperr.ErrUnauthorized
	}
	return claims, nil
}

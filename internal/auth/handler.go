package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Email    string `json:"email" validate:"required,email,max=100"`
	FullName string `json:"full_name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Address  string `json:"address" validate:"omitempty,max=255"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=100"`
	Email    *string `json:"email" validate:"omitempty,email,max=100"`
	Phone    *string `json:"phone" validate:"omitempty,max=20"`
	Address  *string `json:"address" validate:"omitempty,max=255"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type UserResponse struct {
	ID        uint            `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	FullName  string          `json:"full_name"`
	Phone     string          `json:"phone"`
	Address   string          `json:"address"`
	Role      models.UserRole `json:"role"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     u.Phone,
		Address:   u.Address,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (r RegisterRequest) toNewUser() NewUser {
	return NewUser{
		Username: r.Username,
		Password: r.Password,
		Email:    r.Email,
		FullName: r.FullName,
		Phone:    r.Phone,
		Address:  r.Address,
	}
}

// POST /api/auth/register
func RegisterHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		user, err := svc.Register(c.UserContext(), body.toNewUser())
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(NewUserResponse(user))
	}
}

// POST /api/auth/register-admin
func RegisterAdminHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		user, err := svc.RegisterAdmin(c.UserContext(), body.toNewUser())
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(NewUserResponse(user))
	}
}

// POST /api/auth/login
func LoginHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		res, err := svc.Login(c.UserContext(), body.Username, body.Password)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"token":      res.Token,
			"token_type": "Bearer",
			"expires_at": res.ExpiresAt,
			"user":       NewUserResponse(res.User),
		})
	}
}

// POST /api/auth/logout
func LogoutHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := CurrentClaims(c)
		if err != nil {
			return err
		}
		if err := svc.Logout(c.UserContext(), claims); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/auth/me
func MeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := CurrentActor(c)
		if err != nil {
			return err
		}
		user, err := svc.Me(c.UserContext(), actor.ID)
		if err != nil {
			return err
		}
		return c.JSON(NewUserResponse(user))
	}
}

// PUT /api/auth/me
func UpdateMeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := CurrentActor(c)
		if err != nil {
			return err
		}
		var body UpdateProfileRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		user, err := svc.UpdateProfile(c.UserContext(), actor.ID, ProfileUpdate{
			FullName: body.FullName,
			Email:    body.Email,
			Phone:    body.Phone,
			Address:  body.Address,
		})
		if err != nil {
			return err
		}
		return c.JSON(NewUserResponse(user))
	}
}

// PUT /api/auth/me/password
func ChangePasswordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, err := CurrentActor(c)
		if err != nil {
			return err
		}
		var body ChangePasswordRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		if err := svc.ChangePassword(c.UserContext(), actor.ID, body.CurrentPassword, body.NewPassword); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "password updated"})
	}
}

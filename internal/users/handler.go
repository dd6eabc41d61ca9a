package users

import (
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/audit"
	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/httpx"
	"phonestore-backend/internal/models"
)

type CreateUserRequest struct {
	Username string          `json:"username" validate:"required,min=3,max=50,username"`
	Password string          `json:"password" validate:"required,min=8,max=72"`
	Email    string          `json:"email" validate:"required,email,max=100"`
	FullName string          `json:"full_name" validate:"required,max=100"`
	Phone    string          `json:"phone" validate:"omitempty,max=20"`
	Address  string          `json:"address" validate:"omitempty,max=255"`
	Role     models.UserRole `json:"role" validate:"required,oneof=admin staff customer"`
	IsActive *bool           `json:"is_active"`
}

type UpdateUserRequest struct {
	FullName *string          `json:"full_name" validate:"omitempty,min=1,max=100"`
	Email    *string          `json:"email" validate:"omitempty,email,max=100"`
	Phone    *string          `json:"phone" validate:"omitempty,max=20"`
	Address  *string          `json:"address" validate:"omitempty,max=255"`
	Role     *models.UserRole `json:"role" validate:"omitempty,oneof=admin staff customer"`
	IsActive *bool            `json:"is_active"`
	Password *string          `json:"password" validate:"omitempty,min=8,max=72"`
}

func responses(list []models.User) []auth.UserResponse {
	out := make([]auth.UserResponse, 0, len(list))
	for i := range list {
		out = append(out, auth.NewUserResponse(&list[i]))
	}
	return out
}

// GET /api/admin/users?search=&role=&is_active=
func ListUsersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := httpx.ListQuery(c)
		f := Filter{Role: models.UserRole(c.Query("role"))}
		if raw := c.Query("is_active"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "is_active must be true or false")
			}
			f.IsActive = &v
		}
		list, total, err := svc.List(c.UserContext(), f, page)
		if err != nil {
			return err
		}
		return c.JSON(httpx.NewPage(responses(list), total, page))
	}
}

// GET /api/admin/users/:id
func GetUserHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		u, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(auth.NewUserResponse(u))
	}
}

// POST /api/admin/users
func CreateUserHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		active := true
		if body.IsActive != nil {
			active = *body.IsActive
		}
		u, err := svc.Create(c.UserContext(), auth.NewUser{
			Username: body.Username,
			Password: body.Password,
			Email:    body.Email,
			FullName: body.FullName,
			Phone:    body.Phone,
			Address:  body.Address,
			Role:     body.Role,
			IsActive: active,
		})
		if err != nil {
			return err
		}
		resp := auth.NewUserResponse(u)
		rec.Record(c, audit.LogOptions{
			EntityType:  "user",
			EntityID:    u.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("created %s user %s", u.Role, u.Username),
			After:       resp,
		})
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// PUT /api/admin/users/:id
func UpdateUserHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateUserRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		before, after, err := svc.Update(c.UserContext(), id, Update{
			FullName: body.FullName,
			Email:    body.Email,
			Phone:    body.Phone,
			Address:  body.Address,
			Role:     body.Role,
			IsActive: body.IsActive,
			Password: body.Password,
		})
		if err != nil {
			return err
		}
		resp := auth.NewUserResponse(after)
		rec.Record(c, audit.LogOptions{
			EntityType:  "user",
			EntityID:    id,
			Action:      models.AuditActionUpdate,
			Description: "updated user " + after.Username,
			Before:      auth.NewUserResponse(before),
			After:       resp,
		})
		return c.JSON(resp)
	}
}

// DELETE /api/admin/users/:id
func DeleteUserHandler(svc *Service, rec *audit.Recorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "id")
		if err != nil {
			return err
		}
		actor, err := auth.CurrentActor(c)
		if err != nil {
			return err
		}
		u, err := svc.Delete(c.UserContext(), id, actor.ID)
		if err != nil {
			return err
		}
		rec.Record(c, audit.LogOptions{
			EntityType:  "user",
			EntityID:    id,
			Action:      models.AuditActionDelete,
			Description: "deleted user " + u.Username,
			Before:      auth.NewUserResponse(u),
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

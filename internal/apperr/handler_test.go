package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("product %d", 1), fiber.StatusNotFound},
		{gorm.ErrRecordNotFound, fiber.StatusNotFound},
		{Conflict("imei taken"), fiber.StatusConflict},
		{gorm.ErrDuplicatedKey, fiber.StatusConflict},
		{InvalidState("pending", "delivered"), fiber.StatusConflict},
		{Invalid("bad"), fiber.StatusBadRequest},
		{&ValidationError{Fields: map[string]string{"a": "required"}}, fiber.StatusBadRequest},
		{Forbidden("nope"), fiber.StatusForbidden},
		{fmt.Errorf("wrap: %w", ErrUnauthorized), fiber.StatusUnauthorized},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.err), tc.err.Error())
	}
}

func TestHandlerRendersBody(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: Handler(zap.NewNop())})
	app.Get("/nf", func(c *fiber.Ctx) error { return NotFound("brand %d", 7) })
	app.Get("/val", func(c *fiber.Ctx) error {
		return &ValidationError{Fields: map[string]string{"name": "required"}}
	})
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "short and stout") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db down") })

	body := func(path string) (int, map[string]any) {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	code, out := body("/nf")
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "brand 7", out["error"])

	code, out = body("/val")
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, map[string]any{"name": "required"}, out["fields"])

	code, out = body("/fiber")
	assert.Equal(t, fiber.StatusTeapot, code)
	assert.Equal(t, "short and stout", out["error"])

	code, out = body("/boom")
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", out["error"])
}

package httpx

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phonestore-backend/internal/apperr"
)

type signup struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Email    string `json:"email" validate:"required,email"`
	Items    []struct {
		IMEI string `json:"imei" validate:"imei"`
	} `json:"items" validate:"dive"`
}

func TestValidateCollectsFieldErrors(t *testing.T) {
	in := signup{Username: "a b", Email: "nope"}
	in.Items = append(in.Items, struct {
		IMEI string `json:"imei" validate:"imei"`
	}{IMEI: "123"})

	err := Validate(&in)
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "may only contain letters, digits and underscores", ve.Fields["username"])
	assert.Equal(t, "must be a valid email", ve.Fields["email"])
	assert.Equal(t, "must be exactly 15 digits", ve.Fields["items[0].imei"])
}

func TestValidIMEI(t *testing.T) {
	assert.True(t, ValidIMEI("356938035643809"))
	assert.False(t, ValidIMEI("35693803564380"))
	assert.False(t, ValidIMEI("35693803564380x"))
}

func TestListQueryClamps(t *testing.T) {
	app := fiber.New()
	var got ListFilters
	app.Get("/", func(c *fiber.Ctx) error {
		got = ListQuery(c)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/?page=0&limit=500&search=%20pixel%20&sort_dir=ASC", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Page)
	assert.Equal(t, MaxLimit, got.Limit)
	assert.Equal(t, "pixel", got.Search)
	assert.Equal(t, "asc", got.SortDir)

	_, err = app.Test(httptest.NewRequest("GET", "/?page=3&limit=10", nil))
	require.NoError(t, err)
	assert.Equal(t, 20, got.Offset())
	assert.Equal(t, "desc", got.SortDir)

	_, err = app.Test(httptest.NewRequest("GET", "/?page=9223372036854775807&limit=100", nil))
	require.NoError(t, err)
	assert.Equal(t, MaxPage, got.Page)
	assert.Positive(t, got.Offset())
}

func TestNewPage(t *testing.T) {
	p := NewPage[int](nil, 41, ListFilters{Page: 2, Limit: 20})
	assert.Equal(t, []int{}, p.Data)
	assert.Equal(t, 3, p.Pagination.TotalPages)
	assert.Equal(t, int64(41), p.Pagination.Total)
}

func TestParamID(t *testing.T) {
	app := fiber.New()
	app.Get("/:id", func(c *fiber.Ctx) error {
		id, err := ParamID(c, "id")
		if err != nil {
			return err
		}
		return c.SendString(strings.Repeat("x", int(id)))
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/0", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/3", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, 29, d.Day())

	_, err = ParseDate("29/02/2024")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLikeEscapes(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, Like("50%_OFF"))
}

func TestSearchClause(t *testing.T) {
	clause, args := SearchClause("Pro", "name", "code")
	assert.Equal(t, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(code) LIKE ? ESCAPE '\')`, clause)
	assert.Equal(t, []any{"%pro%", "%pro%"}, args)
}

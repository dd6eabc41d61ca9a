package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"phonestore-backend/internal/apperr"
	"phonestore-backend/internal/models"
	"phonestore-backend/internal/testutil"
)

type HandlerSuite struct {
	suite.Suite
	app *fiber.App
	svc *Service
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	db := testutil.NewDB(s.T())
	s.svc = NewService(db, NewTokens(testutil.JWTSecret, time.Hour), NewDBStore(db), nil, zap.NewNop())

	app := fiber.New(fiber.Config{ErrorHandler: apperr.Handler(zap.NewNop())})
	api := app.Group("/api")
	api.Post("/auth/register", RegisterHandler(s.svc))
	api.Post("/auth/register-admin", RegisterAdminHandler(s.svc))
	api.Post("/auth/login", LoginHandler(s.svc))

	protected := api.Group("", Authenticate(s.svc))
	protected.Post("/auth/logout", LogoutHandler(s.svc))
	protected.Get("/auth/me", MeHandler(s.svc))
	protected.Put("/auth/me", UpdateMeHandler(s.svc))
	protected.Put("/auth/me/password", ChangePasswordHandler(s.svc))
	protected.Get("/admin/ping", RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	s.app = app
}

func (s *HandlerSuite) do(method, path, token string, body any) (int, map[string]any) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (s *HandlerSuite) login(username, password string) string {
	code, out := s.do("POST", "/api/auth/login", "", fiber.Map{"username": username, "password": password})
	s.Require().Equal(fiber.StatusOK, code, out)
	return out["token"].(string)
}

func (s *HandlerSuite) TestRegisterValidation() {
	code, out := s.do("POST", "/api/auth/register", "", fiber.Map{
		"username": "x", "password": "short", "email": "bad", "full_name": "",
	})
	s.Equal(fiber.StatusBadRequest, code)
	fields := out["fields"].(map[string]any)
	s.Contains(fields, "username")
	s.Contains(fields, "password")
	s.Contains(fields, "email")
	s.Contains(fields, "full_name")
}

func (s *HandlerSuite) TestRegisterLoginMeLogout() {
	code, out := s.do("POST", "/api/auth/register", "", fiber.Map{
		"username": "Minh_Anh", "password": "password123", "email": "minh@example.vn", "full_name": "Minh Anh",
	})
	s.Require().Equal(fiber.StatusCreated, code, out)
	s.Equal("minh_anh", out["username"])
	s.NotContains(out, "password_hash")

	token := s.login("minh_anh", "password123")

	code, out = s.do("GET", "/api/auth/me", token, nil)
	s.Equal(fiber.StatusOK, code)
	s.Equal("customer", out["role"])

	code, _ = s.do("GET", "/api/admin/ping", token, nil)
	s.Equal(fiber.StatusForbidden, code)

	code, _ = s.do("POST", "/api/auth/logout", token, nil)
	s.Equal(fiber.StatusNoContent, code)

	code, out = s.do("GET", "/api/auth/me", token, nil)
	s.Equal(fiber.StatusUnauthorized, code)
	s.Equal("token has been revoked", out["error"])
}

func (s *HandlerSuite) TestLoginWrongPassword() {
	testutil.CreateUser(s.T(), s.svc.db, "staffer", models.RoleStaff)
	code, out := s.do("POST", "/api/auth/login", "", fiber.Map{"username": "staffer", "password": "nope"})
	s.Equal(fiber.StatusUnauthorized, code)
	s.Equal("invalid username or password", out["error"])
}

func (s *HandlerSuite) TestMissingOrMalformedHeader() {
	code, _ := s.do("GET", "/api/auth/me", "", nil)
	s.Equal(fiber.StatusUnauthorized, code)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Token abc")
	resp, err := s.app.Test(req)
	require.NoError(s.T(), err)
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)

	code, _ = s.do("GET", "/api/auth/me", "not.a.jwt", nil)
	s.Equal(fiber.StatusUnauthorized, code)
}

func (s *HandlerSuite) TestRegisterAdminThenForbidden() {
	body := fiber.Map{"username": "boss", "password": "password123", "email": "boss@example.vn", "full_name": "Boss"}
	code, out := s.do("POST", "/api/auth/register-admin", "", body)
	s.Require().Equal(fiber.StatusCreated, code, out)
	s.Equal("admin", out["role"])

	token := s.login("boss", "password123")
	code, _ = s.do("GET", "/api/admin/ping", token, nil)
	s.Equal(fiber.StatusOK, code)

	body["username"] = "boss2"
	body["email"] = "boss2@example.vn"
	code, _ = s.do("POST", "/api/auth/register-admin", "", body)
	s.Equal(fiber.StatusForbidden, code)
}

func (s *HandlerSuite) TestChangePassword() {
	testutil.CreateUser(s.T(), s.svc.db, "linh", models.RoleCustomer)
	token := s.login("linh", "password123")

	code, _ := s.do("PUT", "/api/auth/me/password", token, fiber.Map{
		"current_password": "wrong", "new_password": "brandnew99",
	})
	s.Equal(fiber.StatusBadRequest, code)

	code, _ = s.do("PUT", "/api/auth/me/password", token, fiber.Map{
		"current_password": "password123", "new_password": "brandnew99",
	})
	s.Equal(fiber.StatusOK, code)
	s.login("linh", "brandnew99")
}

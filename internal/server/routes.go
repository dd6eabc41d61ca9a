package server

import (
	"github.com/gofiber/fiber/v2"

	"phonestore-backend/internal/aftersales"
	"phonestore-backend/internal/audit"
	"phonestore-backend/internal/auth"
	"phonestore-backend/internal/cart"
	"phonestore-backend/internal/catalog"
	"phonestore-backend/internal/config"
	"phonestore-backend/internal/dashboard"
	"phonestore-backend/internal/models"
	"phonestore-backend/internal/order"
	"phonestore-backend/internal/promotion"
	"phonestore-backend/internal/purchasing"
	"phonestore-backend/internal/users"
)

func registerRoutes(app *fiber.App, cfg *config.Config, s services) {
	api := app.Group("/api")
	rec := s.audit

	// Public
	api.Post("/auth/register", auth.RegisterHandler(s.auth))
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(s.auth))
	api.Post("/auth/login", loginLimiter(cfg.LoginRateLimit), auth.LoginHandler(s.auth))

	api.Get("/brands", catalog.ListBrandsHandler(s.catalog, true))
	api.Get("/brands/:id", catalog.GetBrandHandler(s.catalog, true))
	api.Get("/brands/:id/models", catalog.ListModelsHandler(s.catalog, true))
	api.Get("/models", catalog.ListModelsHandler(s.catalog, true))
	api.Get("/models/:id", catalog.GetModelHandler(s.catalog, true))
	api.Get("/products", catalog.ListProductsHandler(s.catalog))
	api.Get("/products/:id", catalog.GetProductHandler(s.catalog, true))
	api.Get("/promotions/active", promotion.ActivePromotionsHandler(s.promotion))

	// Any authenticated user
	protected := api.Group("", auth.Authenticate(s.auth))

	protected.Post("/auth/logout", auth.LogoutHandler(s.auth))
	protected.Get("/auth/me", auth.MeHandler(s.auth))
	protected.Put("/auth/me", auth.UpdateMeHandler(s.auth))
	protected.Put("/auth/me/password", auth.ChangePasswordHandler(s.auth))

	protected.Get("/cart", cart.GetCartHandler(s.cart))
	protected.Post("/cart/items", cart.AddItemHandler(s.cart))
	protected.Put("/cart/items/:product_id", cart.SetQuantityHandler(s.cart))
	protected.Delete("/cart/items/:product_id", cart.RemoveItemHandler(s.cart))
	protected.Delete("/cart", cart.ClearCartHandler(s.cart))

	protected.Post("/promotions/validate", promotion.ValidatePromotionHandler(s.promotion))

	protected.Post("/orders", order.CheckoutHandler(s.order))
	protected.Get("/orders", order.ListMyOrdersHandler(s.order))
	protected.Get("/orders/:id", order.GetOrderHandler(s.order))
	protected.Post("/orders/:id/cancel", order.CancelMyOrderHandler(s.order, rec))

	protected.Get("/warranties", aftersales.ListWarrantiesHandler(s.aftersales, true))
	protected.Get("/warranties/imei/:imei", aftersales.LookupWarrantyHandler(s.aftersales))
	protected.Post("/returns", aftersales.CreateReturnHandler(s.aftersales))
	protected.Get("/returns", aftersales.ListReturnsHandler(s.aftersales, true))

	// Staff and admins
	staff := protected.Group("/admin", auth.RequireRole(models.RoleAdmin, models.RoleStaff))
	adminOnly := auth.RequireRole(models.RoleAdmin)

	staff.Get("/brands", catalog.ListBrandsHandler(s.catalog, false))
	staff.Get("/brands/:id", catalog.GetBrandHandler(s.catalog, false))
	staff.Post("/brands", catalog.CreateBrandHandler(s.catalog, rec))
	staff.Put("/brands/:id", catalog.UpdateBrandHandler(s.catalog, rec))
	staff.Delete("/brands/:id", catalog.DeleteBrandHandler(s.catalog, rec))

	staff.Get("/models", catalog.ListModelsHandler(s.catalog, false))
	staff.Get("/models/:id", catalog.GetModelHandler(s.catalog, false))
	staff.Post("/models", catalog.CreateModelHandler(s.catalog, rec))
	staff.Put("/models/:id", catalog.UpdateModelHandler(s.catalog, rec))
	staff.Delete("/models/:id", catalog.DeleteModelHandler(s.catalog, rec))

	staff.Get("/products", catalog.AdminListProductsHandler(s.catalog))
	staff.Get("/products/:id", catalog.GetProductHandler(s.catalog, false))
	staff.Post("/products", catalog.CreateProductHandler(s.catalog, rec))
	staff.Put("/products/:id", catalog.UpdateProductHandler(s.catalog, rec))
	staff.Delete("/products/:id", catalog.DeleteProductHandler(s.catalog, rec))
	staff.Post("/products/:id/image", catalog.UploadProductImageHandler(s.catalog, rec))

	staff.Get("/identities", catalog.ListIdentitiesHandler(s.catalog))
	staff.Get("/identities/:imei", catalog.GetIdentityHandler(s.catalog))
	staff.Put("/identities/:id/status", catalog.UpdateIdentityStatusHandler(s.catalog, rec))

	staff.Get("/suppliers", purchasing.ListSuppliersHandler(s.purchasing))
	staff.Get("/suppliers/:id", purchasing.GetSupplierHandler(s.purchasing))
	staff.Post("/suppliers", purchasing.CreateSupplierHandler(s.purchasing, rec))
	staff.Put("/suppliers/:id", purchasing.UpdateSupplierHandler(s.purchasing, rec))
	staff.Delete("/suppliers/:id", purchasing.DeleteSupplierHandler(s.purchasing, rec))

	staff.Get("/purchase-orders", purchasing.ListPurchaseOrdersHandler(s.purchasing))
	staff.Post("/purchase-orders/import", purchasing.ImportPurchaseOrderHandler(s.purchasing, rec))
	staff.Get("/purchase-orders/:id", purchasing.GetPurchaseOrderHandler(s.purchasing))
	staff.Post("/purchase-orders", purchasing.CreatePurchaseOrderHandler(s.purchasing, rec))
	staff.Put("/purchase-orders/:id", purchasing.UpdatePurchaseOrderHandler(s.purchasing, rec))
	staff.Put("/purchase-orders/:id/status", purchasing.UpdatePurchaseOrderStatusHandler(s.purchasing, rec))
	staff.Delete("/purchase-orders/:id", purchasing.DeletePurchaseOrderHandler(s.purchasing, rec))

	staff.Get("/promotions", promotion.ListPromotionsHandler(s.promotion))
	staff.Get("/promotions/:id", promotion.GetPromotionHandler(s.promotion))
	staff.Post("/promotions", promotion.CreatePromotionHandler(s.promotion, rec))
	staff.Put("/promotions/:id", promotion.UpdatePromotionHandler(s.promotion, rec))
	staff.Delete("/promotions/:id", promotion.DeletePromotionHandler(s.promotion, rec))

	staff.Get("/orders", order.AdminListOrdersHandler(s.order))
	staff.Get("/orders/export", order.ExportOrdersHandler(s.order))
	staff.Get("/orders/:id", order.GetOrderHandler(s.order))
	staff.Put("/orders/:id/status", order.UpdateOrderStatusHandler(s.order, rec))

	staff.Get("/warranties", aftersales.ListWarrantiesHandler(s.aftersales, false))
	staff.Put("/warranties/:id", aftersales.UpdateWarrantyHandler(s.aftersales, rec))
	staff.Get("/returns", aftersales.ListReturnsHandler(s.aftersales, false))
	staff.Put("/returns/:id/status", aftersales.ResolveReturnHandler(s.aftersales, rec))

	staff.Get("/dashboard/summary", dashboard.SummaryHandler(s.dashboard))
	staff.Get("/dashboard/revenue", dashboard.RevenueHandler(s.dashboard))

	// Admins only
	staff.Get("/users", adminOnly, users.ListUsersHandler(s.users))
	staff.Get("/users/:id", adminOnly, users.GetUserHandler(s.users))
	staff.Post("/users", adminOnly, users.CreateUserHandler(s.users, rec))
	staff.Put("/users/:id", adminOnly, users.UpdateUserHandler(s.users, rec))
	staff.Delete("/users/:id", adminOnly, users.DeleteUserHandler(s.users, rec))

	staff.Get("/audit-logs", adminOnly, audit.ListAuditLogsHandler(rec))
}

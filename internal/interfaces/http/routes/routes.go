// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/payment"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/interfaces/http/handlers"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// SetupRoutes configures all API routes
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config, logger *logrus.Logger) {
	gateway := payment.NewHTTPGateway(cfg.Payment, logger)

	productHandler := handlers.NewProductHandler(db, cfg)
	cartHandler := handlers.NewCartHandler(db, redisClient, cfg)
	checkoutHandler := handlers.NewCheckoutHandler(db, redisClient, cfg)
	orderHandler := handlers.NewOrderHandler(db, redisClient, cfg, logger, gateway)
	paymentHandler := handlers.NewPaymentHandler(db, cfg, logger)

	// Catalog routes (public)
	products := rg.Group("/products")
	{
		products.GET("", productHandler.ListProducts)
		products.GET("/:slug", productHandler.GetProduct)
	}
	rg.GET("/categories", productHandler.ListCategories)

	// Cart routes (guests use X-Session-ID, authenticated users their token)
	cart := rg.Group("/cart")
	cart.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		cart.GET("", cartHandler.GetCart)
		cart.DELETE("", cartHandler.ClearCart)
		cart.POST("/items", cartHandler.AddToCart)
		cart.PUT("/items/:id", cartHandler.UpdateCartItem)
		cart.DELETE("/items/:id", cartHandler.RemoveFromCart)
	}
	rg.POST("/cart/merge", middleware.AuthMiddleware(cfg), cartHandler.MergeCart)

	// Checkout routes
	checkout := rg.Group("/checkout")
	checkout.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		checkout.GET("/preview", checkoutHandler.Preview)
		checkout.POST("/coupon", checkoutHandler.ApplyCoupon)
		checkout.DELETE("/coupon", checkoutHandler.RemoveCoupon)
		checkout.POST("", orderHandler.Checkout)
	}

	// Order routes (authenticated)
	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(cfg))
	{
		orders.GET("", orderHandler.GetOrders)
		orders.GET("/:id", orderHandler.GetOrder)
	}

	// Payment gateway callbacks (signature verified, no auth)
	rg.POST("/webhooks/payment", paymentHandler.Callback)

	// Admin routes
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.AdminMiddleware())
	{
		admin.PUT("/orders/:id/status", orderHandler.UpdateOrderStatus)
		admin.POST("/orders/:id/cancel", orderHandler.CancelOrder)
		admin.POST("/orders/:id/refund", orderHandler.RefundOrder)
	}
}

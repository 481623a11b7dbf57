package httpserver

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// buildRouter wires routes for the API.
func buildRouter(logger *log.Logger, db *pgxpool.Pool, deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	api := router.Group("/api")

	api.POST("/guest-sessions", createGuestSessionHandler(deps.Guests))

	api.GET("/products", listProductsHandler(deps.Products))
	api.GET("/products/:id", getProductHandler(deps.Products))

	cart := api.Group("/cart")
	cart.Use(identityMiddleware(deps.Guests))
	cart.GET("", getCartHandler(deps.Registry))
	cart.DELETE("", clearCartHandler(deps.Registry))
	cart.POST("/items", addItemHandler(deps.Registry, deps.Products))
	cart.PATCH("/items/:productId", updateQuantityHandler(deps.Registry))
	cart.DELETE("/items/:productId", removeItemHandler(deps.Registry))
	cart.POST("/items/:productId/prescription-ack", ackPrescriptionHandler(deps.Registry))
	cart.POST("/discount", applyDiscountHandler(deps.Registry))
	cart.POST("/open", setCartOpenHandler(deps.Registry))
	cart.POST("/toggle", toggleCartHandler(deps.Registry))

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "X-User-ID", "X-Guest-Token")
	cfg.AllowMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	return cors.New(cfg)
}

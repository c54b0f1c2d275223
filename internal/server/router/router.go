package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/fieldtrack/internal/server/handlers"
)

const requestIDHeader = "X-Request-ID"

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Farmers    *handlers.FarmerHandler
	Visits     *handlers.VisitHandler
	Purchases  *handlers.PurchaseHandler
	Crops      *handlers.CropHandler
	Users      *handlers.UserHandler
	FarmerList *handlers.FarmerListHandler
	Dashboard  *handlers.DashboardHandler
	Media      *handlers.MediaHandler
	Messages   *handlers.MessageHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/media/*path", h.Media.Serve)

	authGroup := r.Group("/auth")
	authGroup.POST("/otp", h.Auth.RequestCode)
	authGroup.POST("/verify", h.Auth.Verify)
	authGroup.POST("/logout", h.Auth.Logout)

	api := r.Group("/api", h.Auth.RequireSession())
	api.GET("/me", h.Auth.Me)

	api.GET("/farmers", h.Farmers.List)
	api.POST("/farmers", h.Farmers.Create)
	api.GET("/farmers/:id", h.Farmers.Get)
	api.PATCH("/farmers/:id", h.Farmers.Update)
	api.DELETE("/farmers/:id", h.Farmers.Delete)
	api.GET("/farmers/:id/visits", h.Farmers.Visits)
	api.GET("/farmers/:id/purchases", h.Farmers.Purchases)
	api.GET("/farmers/:id/crops/:cropId/activity", h.Farmers.Activity)

	api.GET("/farmer-list", h.FarmerList.View)
	api.POST("/farmer-list/more", h.FarmerList.More)
	api.POST("/farmer-list/search", h.FarmerList.Search)
	api.DELETE("/farmer-list/items/:id", h.FarmerList.Delete)

	api.GET("/visits", h.Visits.ListByCrop)
	api.POST("/visits", h.Visits.Create)
	api.GET("/visits/:id", h.Visits.Get)
	api.PATCH("/visits/:id", h.Visits.Update)
	api.DELETE("/visits/:id", h.Visits.Delete)

	api.GET("/purchases", h.Purchases.ListByCrop)
	api.POST("/purchases", h.Purchases.Create)
	api.GET("/purchases/:id", h.Purchases.Get)
	api.PATCH("/purchases/:id", h.Purchases.Update)
	api.DELETE("/purchases/:id", h.Purchases.Delete)
	api.PUT("/purchases/:id/images/:index", h.Purchases.UploadImage)

	api.GET("/crops", h.Crops.List)
	api.POST("/crops", h.Crops.Create)
	api.GET("/crops/:id", h.Crops.Get)

	api.POST("/images/compress", h.Media.Compress)

	admin := api.Group("", handlers.RequireAdmin())
	admin.DELETE("/crops/:id", h.Crops.Delete)
	admin.GET("/dashboard", h.Dashboard.Get)
	admin.GET("/users", h.Users.List)
	admin.POST("/users", h.Users.Create)
	admin.GET("/users/:id", h.Users.Get)
	admin.PATCH("/users/:id", h.Users.Update)
	admin.DELETE("/users/:id", h.Users.Delete)
	admin.POST("/messages", h.Messages.SendMessage)
	admin.POST("/messages/digest", h.Messages.SendDigest)

	logger.Info("router initialized")

	return r
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(requestIDHeader)))
	}
}

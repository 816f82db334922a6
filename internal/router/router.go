package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/recetasapp/recetas-backend/config"
	"github.com/recetasapp/recetas-backend/internal/app/controller"
	"github.com/recetasapp/recetas-backend/internal/middleware"
)

type Router struct {
	authController   *controller.AuthController
	userController   *controller.UserController
	uploadController *controller.UploadController
	authMiddleware   *middleware.AuthMiddleware
	config           *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	userController *controller.UserController,
	uploadController *controller.UploadController,
	authMiddleware *middleware.AuthMiddleware,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:   authController,
		userController:   userController,
		uploadController: uploadController,
		authMiddleware:   authMiddleware,
		config:           cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"message": "RecetasApp API is running",
		})
	})

	// Endpoints that issue verification codes get a per-IP throttle.
	codeThrottle := middleware.RateLimit(5, time.Minute)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", codeThrottle, r.authController.Register)
			auth.POST("/confirm", r.authController.Confirm)
			auth.POST("/resend", codeThrottle, r.authController.Resend)
			auth.POST("/login", r.authController.Login)
			auth.POST("/forgot-password", codeThrottle, r.authController.ForgotPassword)
			auth.POST("/verify-reset-code", r.authController.VerifyResetCode)
			auth.POST("/reset-password", r.authController.ResetPassword)
		}

		users := v1.Group("/users", r.authMiddleware.Authenticate())
		{
			users.GET("/me", r.userController.GetMe)
			users.PUT("/me", r.userController.UpdateMe)
			users.DELETE("/me", r.userController.DeleteMe)
			users.PUT("/me/password", r.userController.ChangePassword)
			users.POST("/me/email", codeThrottle, r.userController.RequestEmailChange)
			users.PUT("/me/email", r.userController.VerifyEmailChange)
		}

		uploads := v1.Group("/uploads", r.authMiddleware.Authenticate())
		{
			uploads.POST("/presigned-url", r.uploadController.PresignUpload)
		}
	}

	return router
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		for _, allowed := range allowedOrigins {
			if origin == allowed {
				c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
				break
			}
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers",
			"Content-Type, Content-Length, Accept-Encoding, Authorization, Origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

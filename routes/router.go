package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/socialfeed/config"
	"github.com/cppla/socialfeed/controllers"
	"github.com/cppla/socialfeed/middleware"
	"github.com/cppla/socialfeed/services"
	"github.com/cppla/socialfeed/utils"
)

// Services bundles what the HTTP layer needs.
type Services struct {
	Auth   *services.AuthService
	Posts  *services.PostService
	Files  *services.FileService
	Logger *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, svc Services) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	logger := svc.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.MaxMultipartMemory = services.MaxUploadSize
	r.Use(middleware.RequestLogger(logger), middleware.Recovery(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(svc.Auth, logger)
	postController := controllers.NewPostController(svc.Posts, svc.Files, logger)
	requireAuth := middleware.AuthRequired(svc.Auth)
	limiter := middleware.NewIPRateLimiter(cfg.RateLimitPerMinute)

	api := r.Group("/api/v1")
	api.Static("/static", svc.Files.Dir())

	authGroup := api.Group("")
	authGroup.Use(middleware.RateLimit(limiter))
	authGroup.POST("/registration", authController.Register)
	authGroup.POST("/authentication", authController.Login)

	// Public reads
	api.GET("/users/:id", authController.GetUserPublic)
	api.GET("/users/by-username/:username", authController.GetUserPublicByUsername)
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id", postController.GetPost)

	protected := api.Group("")
	protected.Use(requireAuth)
	protected.POST("/logout", authController.Logout)
	protected.GET("/profile", authController.Me)
	protected.PUT("/profile/password", authController.ChangePassword)
	protected.POST("/posts", postController.CreatePost)
	protected.PUT("/posts/:id", postController.UpdatePost)
	protected.DELETE("/posts/:id", postController.DeletePost)
	protected.POST("/posts/:id/like", postController.LikePost)
	protected.POST("/posts/:id/dislike", postController.DislikePost)
	protected.POST("/posts/:id/share", postController.SharePost)
	protected.POST("/posts/:id/image", postController.AddImage)
	protected.POST("/media", postController.UploadMedia)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}

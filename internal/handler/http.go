package handler

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

// RouterDeps — зависимости HTTP-роутера.
type RouterDeps struct {
	Logger          *zap.Logger
	Verifier        TokenVerifier
	AuthHandler     *AuthHandler
	UserHandler     *UserHandler
	StoryHandler    *StoryHandler
	ProgressHandler *ProgressHandler
	BillingHandler  *BillingHandler
	AllowedOrigins  []string
	Env             string
}

// NewRouter собирает gin-роутер со всеми маршрутами и middleware.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	if deps.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(GinZapLogger(deps.Logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(deps.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = deps.AllowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	// Вебхук аутентифицируется подписью, а не JWT.
	router.POST("/billing/webhook", deps.BillingHandler.Webhook)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", deps.AuthHandler.Register)
			authGroup.POST("/login", deps.AuthHandler.Login)
		}

		protected := api.Group("")
		protected.Use(AuthMiddleware(deps.Verifier))
		{
			protected.GET("/users/me/credits", deps.UserHandler.Credits)

			stories := protected.Group("/stories")
			{
				stories.POST("", deps.StoryHandler.Create)
				stories.GET("", deps.StoryHandler.List)
				stories.GET("/:id", deps.StoryHandler.Get)
				stories.DELETE("/:id", deps.StoryHandler.Delete)
				stories.PUT("/:id/script", deps.StoryHandler.UpdateScript)
				stories.POST("/:id/refine", deps.StoryHandler.Refine)
				stories.POST("/:id/generate-segments", deps.StoryHandler.GenerateSegments)
				stories.GET("/:id/ws", deps.ProgressHandler.Feed)
			}

			segments := protected.Group("/segments")
			{
				segments.POST("/:id/generate-image", deps.StoryHandler.GenerateImage)
				segments.PUT("/:id/prompt", deps.StoryHandler.UpdatePrompt)
				segments.DELETE("/:id", deps.StoryHandler.DeleteSegment)
				segments.GET("/:id/image-url", deps.StoryHandler.ImageURL)
			}
		}
	}

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	return router
}

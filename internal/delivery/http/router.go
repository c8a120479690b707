package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/oggyb/campusknot/internal/config"
	"github.com/oggyb/campusknot/internal/delivery/http/handler"
	"github.com/oggyb/campusknot/internal/delivery/http/middleware"
)

type Router struct {
	cfg            *config.Config
	log            *slog.Logger
	authHandler    *handler.AuthHandler
	profileHandler *handler.ProfileHandler
	swipeHandler   *handler.SwipeHandler
	matchHandler   *handler.MatchHandler
	accountHandler *handler.AccountHandler
	liveHandler    *handler.LiveHandler
	healthHandler  *handler.HealthHandler
	authMiddleware *middleware.AuthMiddleware
}

func NewRouter(
	cfg *config.Config,
	log *slog.Logger,
	authHandler *handler.AuthHandler,
	profileHandler *handler.ProfileHandler,
	swipeHandler *handler.SwipeHandler,
	matchHandler *handler.MatchHandler,
	accountHandler *handler.AccountHandler,
	liveHandler *handler.LiveHandler,
	healthHandler *handler.HealthHandler,
	authMiddleware *middleware.AuthMiddleware,
) *Router {
	return &Router{
		cfg:            cfg,
		log:            log,
		authHandler:    authHandler,
		profileHandler: profileHandler,
		swipeHandler:   swipeHandler,
		matchHandler:   matchHandler,
		accountHandler: accountHandler,
		liveHandler:    liveHandler,
		healthHandler:  healthHandler,
		authMiddleware: authMiddleware,
	}
}

// limit returns the per-IP limiter for n requests per configured window.
// A non-positive n disables limiting.
func (r *Router) limit(n int) gin.HandlerFunc {
	window := r.cfg.RateLimit.Window
	if n <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimit(n, window, r.cfg.RateLimit.TrustProxy)
}

func (r *Router) Setup() *gin.Engine {
	if err := handler.RegisterValidators(r.cfg.App.EmailDomain); err != nil {
		r.log.Error("failed to register validators", "err", err)
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(r.log))

	router.GET("/health", r.healthHandler.Health)
	router.HEAD("/health", r.healthHandler.Health)

	if r.cfg.Storage.Driver == "local" && r.cfg.Storage.PublicBase != "" {
		router.Static(r.cfg.Storage.PublicBase, r.cfg.Storage.LocalDir)
	}

	// Live channel authenticates with ?token=
	router.GET("/ws", r.liveHandler.Connect)

	authLimit := r.limit(r.cfg.RateLimit.Auth)
	otpLimit := r.limit(r.cfg.RateLimit.OTP)
	requireAuth := r.authMiddleware.RequireAuth()

	api := router.Group("/api", r.limit(r.cfg.RateLimit.API))
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/send-otp", otpLimit, r.authHandler.SendCode)
			auth.POST("/verify-otp", otpLimit, r.authHandler.VerifyCode)
			auth.POST("/forgot-password", otpLimit, r.authHandler.ForgotPassword)
			auth.POST("/register", authLimit, r.authHandler.Register)
			auth.POST("/login", authLimit, r.authHandler.Login)
			auth.GET("/me", requireAuth, r.authHandler.Me)
		}

		protected := api.Group("")
		protected.Use(requireAuth)
		{
			protected.PUT("/profile", r.profileHandler.UpdateProfile)
			protected.POST("/profile/photo", r.profileHandler.UploadPhoto)

			protected.GET("/discover", r.swipeHandler.Discover)
			protected.POST("/swipe", r.swipeHandler.Swipe)
			protected.GET("/likes/received", r.swipeHandler.ReceivedLikes)
			protected.GET("/stats", r.swipeHandler.Stats)

			protected.GET("/matches", r.matchHandler.ListMatches)
			protected.DELETE("/matches/:id", r.matchHandler.Unmatch)

			messages := protected.Group("/messages")
			{
				messages.GET("/:id", r.matchHandler.ListMessages)
				messages.POST("/:id", r.matchHandler.SendMessage)
				messages.POST("/:id/read", r.matchHandler.MarkRead)
				messages.DELETE("/:id", r.matchHandler.DeleteMessage)
			}

			protected.POST("/report", r.accountHandler.Report)
			protected.POST("/account/deactivate", r.accountHandler.Deactivate)
			protected.DELETE("/account", r.accountHandler.Delete)
			protected.GET("/users/:id/online", r.accountHandler.Online)
		}
	}

	return router
}


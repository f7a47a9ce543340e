package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"github.com/developerashishcanada/carpoolreact/internal/api/handlers"
	"github.com/developerashishcanada/carpoolreact/internal/identity"
	"github.com/developerashishcanada/carpoolreact/internal/middleware"
	"github.com/developerashishcanada/carpoolreact/pkg/cache"
)

// Options carries the middleware dependencies. Every field but Provider may
// be left zero.
type Options struct {
	NewRelic       *newrelic.Application
	Provider       identity.Provider
	Redis          *redis.Client
	IdempotencyTTL time.Duration
	ChatLimiter    *cache.RateLimiter
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, h *handlers.Handlers, opts Options) {
	// Add New Relic middleware if enabled
	if opts.NewRelic != nil {
		r.Use(nrgin.Middleware(opts.NewRelic))
	}
	r.Use(middleware.RequestLogger(h.Logger))

	// Health check
	r.GET("/health", h.Health)

	v1 := r.Group("/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/anonymous", h.SignInAnonymously)
		auth.POST("/signout", h.SignOut)
	}

	authed := v1.Group("")
	authed.Use(middleware.Auth(opts.Provider, h.Logger))
	{
		// WebSocket connection; the token may ride in ?token= for browsers
		authed.GET("/ws", h.HandleWebSocket)
	}

	authed.Use(middleware.Idempotency(opts.Redis, opts.IdempotencyTTL, h.Logger))
	{
		authed.POST("/profile", h.Register)
		authed.GET("/profile", h.Me)
		authed.GET("/profiles/:id", h.GetProfile)
		authed.PUT("/profiles/:id/verification", h.SetVerification)

		rides := authed.Group("/rides")
		{
			rides.POST("", h.PostRide)
			rides.GET("", h.SearchRides)
			rides.GET("/mine", h.MyRides)
			rides.POST("/suggest-price", h.SuggestPrice)
			rides.GET("/:id", h.GetRide)
			rides.POST("/:id/requests", h.RequestRide)
			rides.POST("/:id/complete", h.CompleteRide)
		}

		requests := authed.Group("/requests")
		{
			requests.POST("/open", h.PostOpenRequest)
			requests.GET("/open", h.ListOpenRequests)
			requests.GET("", h.ListRequests)
			requests.POST("/:id/accept", h.AcceptRequest)
			requests.POST("/:id/reject", h.RejectRequest)
			requests.POST("/:id/cancel", h.CancelRequest)
		}

		wallet := authed.Group("/wallet")
		{
			wallet.GET("", h.Balance)
			wallet.GET("/history", h.WalletHistory)
			wallet.POST("/deposit", h.Deposit)
			wallet.POST("/withdraw", h.Withdraw)
		}

		chats := authed.Group("/chats")
		{
			chats.POST("/messages", middleware.RateLimit(opts.ChatLimiter, h.Logger), h.SendMessage)
			chats.GET("", h.ChatList)
			chats.GET("/:id", h.GetThread)
		}

		authed.POST("/suggestions/refine", h.Refine)
	}
}

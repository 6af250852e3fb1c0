package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studio-backend/internal/account"
	googleauth "studio-backend/internal/auth"
	"studio-backend/internal/balance"
	"studio-backend/internal/catalog"
	"studio-backend/internal/dispatch"
	"studio-backend/internal/session"
	"studio-backend/internal/shared/config"
	"studio-backend/internal/shared/metrics"
	"studio-backend/internal/shared/server/middleware"
	"studio-backend/internal/shared/server/respond"
	"studio-backend/internal/users"
)

// RouterDeps carries the feature handlers wired by bootstrap.
type RouterDeps struct {
	Config         config.Config
	CatalogHandler *catalog.Handler
	SessionHandler *session.Handler
	BalanceHandler *balance.Handler
	RunsHandler    *dispatch.Handler
	UsersHandler   *users.Handler
	AccountHandler *account.Handler
	GoogleAuth     *googleauth.GoogleService
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env),
		assistantRateLimit(),
	)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())

	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.UsersHandler != nil {
		deps.UsersHandler.RegisterRoutes(api)
	}
	if deps.CatalogHandler != nil {
		deps.CatalogHandler.RegisterRoutes(api)
	}
	if deps.SessionHandler != nil {
		deps.SessionHandler.RegisterRoutes(api)
	}
	if deps.BalanceHandler != nil {
		deps.BalanceHandler.RegisterRoutes(api)
	}
	if deps.RunsHandler != nil {
		deps.RunsHandler.RegisterRoutes(api)
	}
	if deps.AccountHandler != nil {
		deps.AccountHandler.RegisterRoutes(api)
	}

	if cfg.Env == "dev" && deps.BalanceHandler != nil {
		dev := api.Group("/dev")
		deps.BalanceHandler.RegisterDevRoutes(dev)
	}

	return r
}

// assistantRateLimit throttles the conversational routes harder than
// the rest of the API; every assistant message is a paid provider call.
func assistantRateLimit() gin.HandlerFunc {
	return middleware.RateLimit(middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"ASSISTANT": {Rate: 0.5, Burst: 5},
			"DEFAULT":   {Rate: 10, Burst: 30},
		},
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost &&
				(strings.HasSuffix(c.FullPath(), "/messages") || strings.HasSuffix(c.FullPath(), "/confirm")) {
				return "ASSISTANT"
			}
			return "DEFAULT"
		},
	})
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}

package routes

import (
	"net/http"

	"civicsync/controllers"
	"civicsync/metrics"
	"civicsync/middlewares"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Deps struct {
	Auth        *controllers.AuthController
	Issues      *controllers.IssueController
	Tokens      middlewares.TokenParser
	Denylist    middlewares.TokenDenylist
	RateLimiter gin.HandlerFunc
	CORSOrigins []string
	Log         *zap.Logger
}

// NewRouter builds the engine with the global middleware chain and every
// route mounted.
func NewRouter(d Deps) *gin.Engine {
	controllers.UseJSONFieldNames()

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middlewares.RequestLogger(d.Log),
		metrics.GinMiddleware(),
		middlewares.CORSMiddleware(d.CORSOrigins),
	)

	requireAuth := middlewares.AuthMiddleware(d.Tokens, d.Denylist, d.Log)
	AuthRoutes(r, d.Auth, requireAuth)
	IssueRoutes(r, d.Issues, requireAuth, d.RateLimiter)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

package client

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"

	"github.com/openmined/themesync/internal/client/handlers"
	"github.com/openmined/themesync/internal/client/middleware"
	"github.com/openmined/themesync/internal/theme"
	"github.com/openmined/themesync/internal/version"
)

type RouteConfig struct {
	Auth    middleware.TokenAuthConfig
	Session handlers.SyncSession
	Theme   theme.Theme
	Root    string
	// RateLimit is requests per second. Zero uses the default of 10.
	RateLimit int64
}

func SetupRoutes(routeConfig *RouteConfig) http.Handler {
	r := gin.New()

	rate := routeConfig.RateLimit
	if rate <= 0 {
		rate = 10
	}

	rateLimitStore := memory.NewStore()
	rateLimiter := limiter.New(rateLimitStore, limiter.Rate{
		Period: 1 * time.Second,
		Limit:  rate,
	})

	statusH := handlers.NewStatusHandler(routeConfig.Session, routeConfig.Theme, routeConfig.Root)
	syncH := handlers.NewSyncHandler(routeConfig.Session)

	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Secure())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	r.Use(mgin.NewMiddleware(rateLimiter))

	r.GET("/", IndexHandler)

	v1 := r.Group("/v1")
	v1.Use(middleware.TokenAuth(routeConfig.Auth))
	{
		v1.GET("/status", statusH.Status)

		v1Sync := v1.Group("/sync")
		{
			v1Sync.POST("/now", syncH.Now)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, version.Detailed())
}

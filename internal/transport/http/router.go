package http

import (
	"net/http"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/config"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter registers the HTTP routes. extAuthzPath and extAuthz, when set,
// mount the Envoy ext_authz RPC on the same listener.
func NewRouter(handler *Handler, cfg *config.Config, extAuthzPath string, extAuthz http.Handler) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	if cfg.Observability.TraceEnabled {
		router.Use(otelgin.Middleware(serviceName))
	}
	router.Use(loggingMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	v1 := router.Group("/v1")
	v1.POST("/authorize", handler.Authorize)
	v1.POST("/authorize/basic", handler.AuthorizeBasic)
	v1.Any("/check/*path", handler.Check)

	if extAuthz != nil {
		router.POST(extAuthzPath, gin.WrapH(extAuthz))
	}

	return router
}

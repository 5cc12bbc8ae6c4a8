package http

import (
	"log/slog"
	"net/http"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/app/authz"
	authzdomain "github.com/astro-web3/gateway-jwt-authorizer/internal/domain/authz"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/logger"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/tracer"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const PrincipalHeader = "X-Auth-Principal"

type Handler struct {
	appService   authz.Service
	basicService authz.Service
}

// NewHandler serves the JWT authorizer and, when basicService is non-nil,
// the client-credential authorizer.
func NewHandler(appService, basicService authz.Service) *Handler {
	return &Handler{
		appService:   appService,
		basicService: basicService,
	}
}

// Authorize accepts a gateway authorizer event and always responds 200 with
// the decision as the payload.
func (h *Handler) Authorize(c *gin.Context) {
	h.authorize(c, h.appService, "transport.http.Authorize")
}

func (h *Handler) AuthorizeBasic(c *gin.Context) {
	if h.basicService == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "basic authorizer disabled"})
		return
	}
	h.authorize(c, h.basicService, "transport.http.AuthorizeBasic")
}

func (h *Handler) authorize(c *gin.Context, svc authz.Service, spanName string) {
	ctx, span := tracer.Start(c.Request.Context(), spanName)
	defer span.End()

	var req authzdomain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		span.SetAttributes(attribute.Bool("authz.malformed_request", true))
		logger.WarnContext(ctx, "malformed authorizer request, denying", slog.String("error", err.Error()))
		c.JSON(http.StatusOK, authzdomain.NewDenyDecision())
		return
	}

	decision := svc.Authorize(ctx, &req)
	span.SetAttributes(attribute.Bool("authz.allowed", decision.Allowed()))

	c.JSON(http.StatusOK, decision)
}

// Check is the forward-auth form: the Authorization header of the proxied
// request is verified and the principal returned in a response header.
func (h *Handler) Check(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "transport.http.Check")
	defer span.End()

	decision := h.appService.Authorize(ctx, &authzdomain.Request{
		Headers: map[string]string{
			authzdomain.AuthorizationHeader: c.GetHeader(authzdomain.AuthorizationHeader),
		},
	})

	if !decision.Allowed() {
		span.SetAttributes(attribute.Bool("authz.allowed", false))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	span.SetAttributes(attribute.Bool("authz.allowed", true))
	c.Header(PrincipalHeader, decision.Principal())
	c.Status(http.StatusOK)
}

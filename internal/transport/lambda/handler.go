// Package lambda adapts the authorizer to the AWS Lambda custom authorizer
// trigger.
package lambda

import (
	"context"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/app/authz"
	authzdomain "github.com/astro-web3/gateway-jwt-authorizer/internal/domain/authz"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

type Handler struct {
	appService authz.Service
}

func NewHandler(appService authz.Service) *Handler {
	return &Handler{appService: appService}
}

// Handle returns a decision for every event, including a nil one. Errors are
// never returned so the gateway always receives a policy.
func (h *Handler) Handle(ctx context.Context, event *authzdomain.Request) (*authzdomain.Decision, error) {
	ctx, span := tracer.Start(ctx, "transport.lambda.Handle")
	defer span.End()

	if event == nil {
		event = &authzdomain.Request{}
	}
	span.SetAttributes(attribute.String("authz.event_type", event.Type))

	decision := h.appService.Authorize(ctx, event)
	span.SetAttributes(attribute.Bool("authz.allowed", decision.Allowed()))

	return decision, nil
}

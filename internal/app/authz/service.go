package authz

import (
	"context"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/domain/authz"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

type Service interface {
	Authorize(ctx context.Context, req *authz.Request) *authz.Decision
}

type service struct {
	spanName      string
	domainService authz.Service
}

func NewService(domainService authz.Service) Service {
	return &service{
		spanName:      "app.authz.Authorize",
		domainService: domainService,
	}
}

// NewBasicService traces the client-credential authorizer under its own span name.
func NewBasicService(domainService authz.Service) Service {
	return &service{
		spanName:      "app.authz.AuthorizeBasic",
		domainService: domainService,
	}
}

func (s *service) Authorize(ctx context.Context, req *authz.Request) *authz.Decision {
	ctx, span := tracer.Start(ctx, s.spanName)
	defer span.End()

	if token, err := authz.ExtractToken(req); err == nil {
		span.SetAttributes(attribute.String("token.fingerprint", authz.Fingerprint(token)))
	}

	decision := s.domainService.Authorize(ctx, req)

	if decision.Allowed() {
		span.SetAttributes(
			attribute.Bool("authz.allowed", true),
			attribute.String("authz.principal", decision.Principal()),
		)
	} else {
		span.SetAttributes(attribute.Bool("authz.allowed", false))
	}

	return decision
}

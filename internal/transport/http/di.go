package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	authzapp "github.com/astro-web3/gateway-jwt-authorizer/internal/app/authz"
	"github.com/astro-web3/gateway-jwt-authorizer/internal/config"
	grpctransport "github.com/astro-web3/gateway-jwt-authorizer/internal/transport/grpc"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/logger"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/otel"
)

type Server struct {
	httpServer *http.Server
	services   *authzapp.Services
	tracing    *otel.Provider
}

const (
	idleTimeoutMultiplier = 2
	serviceName           = "gateway-jwt-authorizer"
)

// NewServer wires logging, tracing and the authorizers into one listener
// serving both the HTTP routes and ext_authz over HTTP/1.1 and cleartext HTTP/2.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.Format, cfg.Observability.LogSource)

	tracing, err := otel.Setup(ctx, cfg.Tracing(serviceName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	services, err := authzapp.Build(ctx, cfg)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to build authorizers: %w", err), tracing.Shutdown(ctx))
	}

	handler := NewHandler(services.JWT, services.Basic)
	extAuthzPath, extAuthz := grpctransport.NewRouter(services.JWT)
	router := NewRouter(handler, cfg, extAuthzPath, extAuthz)

	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		Protocols:    protocols,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout * idleTimeoutMultiplier,
	}

	return &Server{
		httpServer: httpServer,
		services:   services,
		tracing:    tracing,
	}, nil
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains the listener, then releases Redis and flushes pending spans.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(
		s.httpServer.Shutdown(ctx),
		s.services.Close(),
		s.tracing.Shutdown(ctx),
	)
}

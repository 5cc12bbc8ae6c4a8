package grpc

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/astro-web3/gateway-jwt-authorizer/internal/app/authz"
)

// NewRouter returns the ext_authz Check handler and the path to mount it on.
// It serves the Connect, gRPC and gRPC-Web protocols.
func NewRouter(appService authz.Service) (string, http.Handler) {
	handler := NewHandler(appService)

	return CheckProcedure, connect.NewUnaryHandler(
		CheckProcedure,
		handler.Check,
		connect.WithInterceptors(
			recoveryInterceptor(),
			loggingInterceptor(),
		),
	)
}

package grpc

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"
	"github.com/astro-web3/gateway-jwt-authorizer/internal/app/authz"
	authzdomain "github.com/astro-web3/gateway-jwt-authorizer/internal/domain/authz"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/logger"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/tracer"
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
)

const (
	// CheckProcedure is the Envoy external authorization RPC.
	CheckProcedure = "/envoy.service.auth.v3.Authorization/Check"

	PrincipalHeader = "x-auth-principal"

	errBody = `{"code": %d, "message": "%s"}`
)

type Handler struct {
	appService authz.Service
}

func NewHandler(appService authz.Service) *Handler {
	return &Handler{appService: appService}
}

// Check answers an Envoy ext_authz request. Denials are OK responses
// carrying a PermissionDenied status, never RPC errors.
func (h *Handler) Check(
	ctx context.Context,
	req *connect.Request[authv3.CheckRequest],
) (*connect.Response[authv3.CheckResponse], error) {
	ctx, span := tracer.Start(ctx, "transport.grpc.Check")
	defer span.End()

	httpReq := req.Msg.GetAttributes().GetRequest().GetHttp()
	if httpReq == nil {
		span.SetAttributes(attribute.Bool("authz.missing_http_request", true))
		logger.WarnContext(ctx, "check request has no HTTP attributes")
		return connect.NewResponse(deniedCheckResponse("unauthorized", typev3.StatusCode_Unauthorized)), nil
	}

	decision := h.appService.Authorize(ctx, &authzdomain.Request{
		Headers: httpReq.GetHeaders(),
	})

	if !decision.Allowed() {
		span.SetAttributes(attribute.Bool("authz.allowed", false))
		logger.DebugContext(ctx, "authorization denied",
			slog.String("method", httpReq.GetMethod()),
			slog.String("path", httpReq.GetPath()),
		)
		return connect.NewResponse(deniedCheckResponse("unauthorized", typev3.StatusCode_Unauthorized)), nil
	}

	span.SetAttributes(attribute.Bool("authz.allowed", true))

	return connect.NewResponse(okCheckResponse([]*corev3.HeaderValueOption{{
		Header: &corev3.HeaderValue{
			Key:   PrincipalHeader,
			Value: decision.Principal(),
		},
		AppendAction: corev3.HeaderValueOption_OVERWRITE_IF_EXISTS_OR_ADD,
	}})), nil
}

func deniedCheckResponse(reason string, httpCode typev3.StatusCode) *authv3.CheckResponse {
	return &authv3.CheckResponse{
		Status: &status.Status{
			Code:    int32(codes.PermissionDenied),
			Message: reason,
		},
		HttpResponse: &authv3.CheckResponse_DeniedResponse{
			DeniedResponse: &authv3.DeniedHttpResponse{
				Status: &typev3.HttpStatus{
					Code: httpCode,
				},
				Headers: []*corev3.HeaderValueOption{{
					Header: &corev3.HeaderValue{
						Key:   "content-type",
						Value: "application/json",
					},
					AppendAction: corev3.HeaderValueOption_OVERWRITE_IF_EXISTS_OR_ADD,
				}},
				Body: fmt.Sprintf(errBody, int(httpCode), reason),
			},
		},
	}
}

func okCheckResponse(headers []*corev3.HeaderValueOption) *authv3.CheckResponse {
	return &authv3.CheckResponse{
		Status: &status.Status{
			Code:    int32(codes.OK),
			Message: "ok",
		},
		HttpResponse: &authv3.CheckResponse_OkResponse{
			OkResponse: &authv3.OkHttpResponse{
				Headers: headers,
			},
		},
	}
}


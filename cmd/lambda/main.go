package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/app/authz"
	"github.com/astro-web3/gateway-jwt-authorizer/internal/config"
	authzdomain "github.com/astro-web3/gateway-jwt-authorizer/internal/domain/authz"
	lambdatransport "github.com/astro-web3/gateway-jwt-authorizer/internal/transport/lambda"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/logger"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/otel"
	"github.com/aws/aws-lambda-go/lambda"
)

const serviceName = "gateway-jwt-authorizer-lambda"

type handlerFunc func(context.Context, *authzdomain.Request) (*authzdomain.Decision, error)

func main() {
	ctx := context.Background()
	cfg := config.MustLoad()
	logger.InitLogger(cfg.Observability.LogLevel, cfg.Observability.Format, cfg.Observability.LogSource)

	tracing, err := otel.Setup(ctx, cfg.Tracing(serviceName))
	if err != nil {
		fatal(ctx, "failed to initialize tracer", err)
	}

	// The key set is warmed here, during the init phase, so the first
	// invocation does not pay for the JWKS fetch.
	services, err := authz.Build(ctx, cfg)
	if err != nil {
		fatal(ctx, "failed to build authorizer", err)
	}

	handler := lambdatransport.NewHandler(services.JWT)
	lambda.StartWithOptions(
		flushAfter(handler.Handle, tracing),
		lambda.WithEnableSIGTERM(func() {
			if err := services.Close(); err != nil {
				logger.WarnContext(ctx, "failed to close redis", slog.String("error", err.Error()))
			}
			if err := tracing.Shutdown(ctx); err != nil {
				logger.WarnContext(ctx, "failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}),
	)
}

// flushAfter exports the invocation's spans before returning, since the
// execution environment may be frozen as soon as the handler returns.
func flushAfter(next handlerFunc, tracing *otel.Provider) handlerFunc {
	return func(ctx context.Context, event *authzdomain.Request) (*authzdomain.Decision, error) {
		defer func() {
			if err := tracing.Flush(ctx); err != nil {
				logger.WarnContext(ctx, "failed to flush spans", slog.String("error", err.Error()))
			}
		}()
		return next(ctx, event)
	}
}

func fatal(ctx context.Context, msg string, err error) {
	logger.ErrorContext(ctx, msg, slog.String("error", err.Error()))
	os.Exit(1)
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astro-web3/gateway-jwt-authorizer/internal/config"
	httptransport "github.com/astro-web3/gateway-jwt-authorizer/internal/transport/http"
	"github.com/astro-web3/gateway-jwt-authorizer/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logger.ErrorContext(context.Background(), "authorizer stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := httptransport.NewServer(ctx, cfg)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting authorizer",
			slog.String("addr", cfg.Server.Addr),
			slog.String("mode", cfg.Server.Mode),
		)
		serveErr <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	case <-ctx.Done():
		logger.InfoContext(context.Background(), "shutting down authorizer")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	return errors.Join(runErr, srv.Shutdown(shutdownCtx))
}

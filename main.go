package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"messenger/internal/app"
	"messenger/internal/app/notification"
	"messenger/internal/config"
	"messenger/internal/db"
	"messenger/internal/middleware"
	"messenger/internal/utils"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	logger, err := utils.NewLogger()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer logger.Sync()

	utils.LoadEnv(logger)
	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "messenger",
		Usage: "threads, unread tracking and real-time notifications",
		Commands: []*cli.Command{
			{
				Name:  "api",
				Usage: "serve the JSON API",
				Action: func(c *cli.Context) error {
					application, err := app.BootstrapAPI(c.Context, &cfg, logger)
					if err != nil {
						return fmt.Errorf("bootstrap api: %w", err)
					}
					defer application.Close()
					return serve(c.Context, logger, ":"+cfg.ServerPort, application)
				},
			},
			{
				Name:  "gateway",
				Usage: "relay notifications to websocket and socket.io clients",
				Action: func(c *cli.Context) error {
					application, err := app.BootstrapGateway(c.Context, &cfg, logger)
					if err != nil {
						return fmt.Errorf("bootstrap gateway: %w", err)
					}
					defer application.Close()
					return serve(c.Context, logger, ":"+cfg.GatewayPort, application)
				},
			},
			{
				Name:  "migrate",
				Usage: "create or update the messenger tables",
				Action: func(c *cli.Context) error {
					conn, err := db.Connect(&cfg, logger)
					if err != nil {
						return err
					}
					return db.Migrate(conn, logger)
				},
			},
			{
				Name:  "token",
				Usage: "print the notification room token for a user",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "user", Usage: "user id", Required: true},
				},
				Action: func(c *cli.Context) error {
					fmt.Println(notification.NewTokens(cfg.TokenSecret).Token(c.Uint64("user")))
					return nil
				},
			},
			{
				Name:  "jwt",
				Usage: "issue an API bearer token for a user",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "user", Usage: "user id", Required: true},
					&cli.DurationFlag{Name: "ttl", Usage: "token lifetime", Value: 24 * time.Hour},
					&cli.BoolFlag{Name: "admin", Usage: "allow broadcasting and moderating broadcast threads"},
				},
				Action: func(c *cli.Context) error {
					token, err := middleware.IssueToken([]byte(cfg.JWTSecret), c.Uint64("user"), c.Bool("admin"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Println(token)
					return nil
				},
			},
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		logger.Fatal("Command failed", zap.Error(err))
	}
}

func serve(ctx context.Context, logger *zap.Logger, addr string, application *app.Application) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: application.Router.Engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server started", zap.String("addr", "localhost"+addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}

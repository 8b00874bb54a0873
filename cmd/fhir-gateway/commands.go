package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fhir-gateway/internal/models"
)

// withRoot builds the composition root for one command and releases it afterwards
func withRoot(run func(ctx context.Context, root *CompositionRoot) error) error {
	root, err := NewCompositionRoot(ResolveConfigPath(configPath))
	if err != nil {
		return err
	}
	defer func() {
		if err := root.Cleanup(); err != nil {
			root.Logger.Error("Failed to cleanup resources", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, root)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRoot(runServer)
		},
	}
}

func runServer(ctx context.Context, root *CompositionRoot) error {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- root.HTTPServer.Start()
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	root.Logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), root.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := root.HTTPServer.Stop(shutdownCtx); err != nil {
		root.Logger.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	root.Logger.Info("Server exited")
	return nil
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Acquire a token with the configured credentials and store it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRoot(func(ctx context.Context, root *CompositionRoot) error {
				creds, err := root.Provider.Login(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), creds)
			})
		},
	}
}

func refreshCmd() *cobra.Command {
	var refreshToken string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the stored token, or exchange --refresh-token without storing the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRoot(func(ctx context.Context, root *CompositionRoot) error {
				var (
					creds *models.Credentials
					err   error
				)
				if refreshToken != "" {
					creds, err = root.TokenManager.RefreshToken(ctx, refreshToken, root.Settings)
				} else {
					creds, err = root.Provider.Refresh(ctx)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), creds)
			})
		},
	}
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "refresh token to exchange")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRoot(func(ctx context.Context, root *CompositionRoot) error {
				if err := root.Provider.Logout(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return err
			})
		},
	}
}

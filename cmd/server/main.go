package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/chatsphere-server/internal/app"
	"github.com/vovakirdan/chatsphere-server/internal/auth"
	"github.com/vovakirdan/chatsphere-server/internal/config"
	"github.com/vovakirdan/chatsphere-server/internal/log"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "chatsphere-server",
		Short:         "Real-time chat relay server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default ./config.yaml)")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(tokenCmd(&configPath))
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	var addr, dbPath, logLevel string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLog := log.New("info", true)
			cfg, path, err := config.Load(bootLog, *configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if dbPath != "" {
				cfg.DatabasePath = dbPath
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			logger := log.New(cfg.LogLevel, cfg.LogConsole)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting chatsphere server")

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite database path (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	return cmd
}

// tokenCmd mints an access token signed with the configured secret,
// for poking the websocket endpoint with the dev scripts.
func tokenCmd(configPath *string) *cobra.Command {
	var userID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user-id is required")
			}

			cfg, _, err := config.Load(nil, *configPath)
			if err != nil {
				return err
			}

			token, jti, err := auth.GenerateAccessToken([]byte(cfg.JWT.Secret), cfg.JWT.Issuer, cfg.JWT.Audience, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Printf("jti: %s\n%s\n", jti, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id to embed in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/partnerhub/internal/audit"
	"github.com/smallbiznis/partnerhub/internal/clock"
	"github.com/smallbiznis/partnerhub/internal/config"
	"github.com/smallbiznis/partnerhub/internal/dashboard"
	"github.com/smallbiznis/partnerhub/internal/events"
	"github.com/smallbiznis/partnerhub/internal/lead"
	"github.com/smallbiznis/partnerhub/internal/migration"
	"github.com/smallbiznis/partnerhub/internal/notification"
	"github.com/smallbiznis/partnerhub/internal/observability"
	"github.com/smallbiznis/partnerhub/internal/onboarding"
	"github.com/smallbiznis/partnerhub/internal/partner"
	"github.com/smallbiznis/partnerhub/internal/providers"
	"github.com/smallbiznis/partnerhub/internal/ratelimit"
	"github.com/smallbiznis/partnerhub/internal/server"
	"github.com/smallbiznis/partnerhub/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "partnerhub",
		Short:         "Partner referral program backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(serveCmd(), migrateCmd(), dispatchCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "partnerhub %s\n", version)
		},
	})
	return cmd
}

// infrastructure is shared by every command.
func infrastructure() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the outbox dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				infrastructure(),
				migration.Module,
				server.Module,
				events.RunnerModule,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed default agreements",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				infrastructure(),
				fx.Decorate(func(cfg config.Config) config.Config {
					cfg.DBAutoMigrate = true
					return cfg
				}),
				migration.Module,
			)
			return startStop(cmd.Context(), app)
		},
	}
}

func dispatchCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Deliver pending outbox events to their handlers",
		RunE: func(cmd *cobra.Command, args []string) error {
			modules := []fx.Option{
				infrastructure(),
				audit.Module,
				events.Module,
				providers.Module,
				ratelimit.Module,
				partner.Module,
				onboarding.Module,
				lead.Module,
				notification.Module,
				dashboard.Module,
			}

			if !once {
				app := fx.New(append(modules, events.RunnerModule)...)
				if err := app.Err(); err != nil {
					return err
				}
				app.Run()
				return nil
			}

			var (
				dispatcher *events.Dispatcher
				cfg        config.Config
				log        *zap.Logger
			)
			app := fx.New(append(modules, fx.Populate(&dispatcher, &cfg, &log))...)
			return withApp(cmd.Context(), app, func(ctx context.Context) error {
				result, err := dispatcher.WithBatchSize(cfg.Outbox.BatchSize).ProcessPending(ctx)
				if err != nil {
					return err
				}
				log.Info("dispatch pass finished",
					zap.Int("published", result.Published),
					zap.Int("failed", result.Failed),
					zap.Int("deferred", result.Deferred),
				)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run a single dispatch pass and exit")
	return cmd
}

func startStop(ctx context.Context, app *fx.App) error {
	return withApp(ctx, app, func(context.Context) error { return nil })
}

func withApp(ctx context.Context, app *fx.App, fn func(context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

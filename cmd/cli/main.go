package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/cmd/cli/commands"
	"github.com/jakechorley/shift-calendar/internal/config"
	"github.com/jakechorley/shift-calendar/pkg/core/services"
	"github.com/jakechorley/shift-calendar/pkg/metrics"
	"github.com/jakechorley/shift-calendar/pkg/postgres"
	"github.com/jakechorley/shift-calendar/pkg/utils/logging"
)

var (
	env     string
	verbose bool
	app     = &commands.AppContext{}
	closeDB func()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Shift Calendar CLI - Manage who holds each day",
		Long:  `A CLI tool for assigning and cancelling daily shifts, managing the roster and serving the shared live calendar.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeDB != nil {
				closeDB()
			}
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.AssignCmd(app))
	rootCmd.AddCommand(commands.CancelCmd(app))
	rootCmd.AddCommand(commands.CalendarCmd(app))
	rootCmd.AddCommand(commands.WatchCmd(app))
	rootCmd.AddCommand(commands.HistoryCmd(app))
	rootCmd.AddCommand(commands.ListMembersCmd(app))
	rootCmd.AddCommand(commands.AddMemberCmd(app))
	rootCmd.AddCommand(commands.EditMemberCmd(app))
	rootCmd.AddCommand(commands.RemoveMemberCmd(app))
	rootCmd.AddCommand(commands.ExternalCalendarCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, database and the transition engine
func initApp() error {
	var err error
	app.Env = env
	app.Ctx = context.Background()

	app.Logger, err = logging.InitLogger(env, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Debug("Starting application", zap.String("environment", env))

	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully")

	database, err := postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL, app.Logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	closeDB = database.Close

	if err := database.RunMigrations(app.Ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	app.Database = database

	app.Registry = prometheus.NewRegistry()
	app.Metrics = metrics.New(app.Registry)
	app.Engine = services.NewEngine(database, app.Logger, services.WithMetrics(app.Metrics))

	app.Logger.Debug("Application initialized")
	return nil
}

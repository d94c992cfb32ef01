package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jakechorley/shift-calendar/pkg/server"
)

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar API and live view until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = app.Cfg.ListenAddr
			}

			opts := server.Options{
				AccessKey:      app.Cfg.AccessKey,
				AllowedOrigins: app.Cfg.AllowedOrigins,
				HistoryLimit:   app.Cfg.HistoryLimit,
				VisibleDays:    app.Cfg.VisibleDays,
				Metrics:        app.Metrics,
			}
			if app.Registry != nil {
				opts.Gatherer = app.Registry
			}

			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(app.Database, app.Engine, app.Logger, opts)
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to listenAddr from config)")

	return cmd
}

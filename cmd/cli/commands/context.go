package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jakechorley/shift-calendar/internal/config"
	"github.com/jakechorley/shift-calendar/pkg/clients/calendarclient"
	"github.com/jakechorley/shift-calendar/pkg/clients/gmailclient"
	"github.com/jakechorley/shift-calendar/pkg/core/services"
	"github.com/jakechorley/shift-calendar/pkg/db"
	"github.com/jakechorley/shift-calendar/pkg/metrics"
	"github.com/jakechorley/shift-calendar/pkg/utils"
)

// EventLister reads upcoming events from an external calendar
type EventLister interface {
	ListUpcoming(ctx context.Context, calendarID string, from time.Time, days int) ([]calendarclient.Event, error)
}

// AppContext holds the application dependencies shared across all commands.
//
// Google clients are created on first use so commands that never touch
// Google do not trigger the OAuth flow. Tests may set Mailer and Calendar
// directly.
type AppContext struct {
	Env      string
	Cfg      *config.Config
	Database db.Database
	Engine   *services.Engine
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
	Logger   *zap.Logger
	Ctx      context.Context

	Mailer   services.EmailSender
	Calendar EventLister

	oauthConfig *oauth2.Config
	token       *oauth2.Token
}

// googleAuth loads the OAuth client config and a token, running the browser
// flow when no stored token is usable
func (app *AppContext) googleAuth() (*oauth2.Config, *oauth2.Token, error) {
	if app.oauthConfig != nil && app.token != nil {
		return app.oauthConfig, app.token, nil
	}

	app.Logger.Info("Loading OAuth client configuration")
	oauthCfg, err := config.LoadOAuthClientWithEnv(app.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, nil, err
	}

	token, err := utils.GetTokenWithFlow(app.Ctx, oauthConfig, app.Env, app.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get OAuth token: %w", err)
	}

	app.oauthConfig = oauthConfig
	app.token = token
	return oauthConfig, token, nil
}

// EmailSender returns the gmail client, creating it on first use
func (app *AppContext) EmailSender() (services.EmailSender, error) {
	if app.Mailer != nil {
		return app.Mailer, nil
	}

	oauthConfig, token, err := app.googleAuth()
	if err != nil {
		return nil, err
	}

	app.Logger.Info("Initializing gmail client")
	client, err := gmailclient.NewClient(app.Ctx, oauthConfig, token, app.Cfg.GmailSender)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	app.Mailer = client
	return client, nil
}

// CalendarClient returns the external calendar client, creating it on first use
func (app *AppContext) CalendarClient() (EventLister, error) {
	if app.Calendar != nil {
		return app.Calendar, nil
	}

	oauthConfig, token, err := app.googleAuth()
	if err != nil {
		return nil, err
	}

	app.Logger.Info("Initializing calendar client")
	client, err := calendarclient.NewClient(app.Ctx, oauthConfig, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}
	app.Calendar = client
	return client, nil
}

// engineFor returns the shared engine, or one that also emails the affected
// member when notify is set
func (app *AppContext) engineFor(notify bool) (*services.Engine, error) {
	if !notify {
		return app.Engine, nil
	}

	sender, err := app.EmailSender()
	if err != nil {
		return nil, err
	}
	return services.NewEngine(app.Database, app.Logger,
		services.WithMetrics(app.Metrics),
		services.WithNotifier(services.NewEmailNotifier(sender, app.Logger)),
	), nil
}

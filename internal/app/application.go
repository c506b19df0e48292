// Package app wires the domain services against a storage.Stores and
// manages their background jobs through system.Manager. It is the
// single place that knows how every package in internal/ fits
// together; cmd/controlplane does little more than build a Config, call
// app.New, and mount HTTP handlers against the result.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/solarfleet/control-plane/infrastructure/ratelimit"
	"github.com/solarfleet/control-plane/internal/alerts"
	"github.com/solarfleet/control-plane/internal/analytics"
	"github.com/solarfleet/control-plane/internal/app/system"
	"github.com/solarfleet/control-plane/internal/audit"
	"github.com/solarfleet/control-plane/internal/commands"
	"github.com/solarfleet/control-plane/internal/config"
	"github.com/solarfleet/control-plane/internal/domain/notification"
	"github.com/solarfleet/control-plane/internal/entitlement"
	"github.com/solarfleet/control-plane/internal/identity"
	"github.com/solarfleet/control-plane/internal/integrations"
	"github.com/solarfleet/control-plane/internal/notifications"
	"github.com/solarfleet/control-plane/internal/ota"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/internal/telemetry"
	weathersvc "github.com/solarfleet/control-plane/internal/weather"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// notificationDrainInterval is how often the notification consumer
// drains the queued-event table. Unlike the cron-scheduled rollup and
// weather pulls, delivery latency matters here, so it runs on a short
// fixed tick rather than a cron expression.
const notificationDrainInterval = 10 * time.Second

// Option customises the application runtime.
type Option func(*options)

type options struct {
	httpClient         *http.Client
	weatherProvider    integrations.WeatherProvider
	simProvider        integrations.SimProvider
	geocodeProvider    integrations.GeocodeProvider
	notifyAdapters     map[notification.ChannelType]notifications.Adapter
	skipBackgroundJobs bool
}

// WithHTTPClient injects a shared HTTP client used by the outbound
// integrations (weather, geocode, SIM, webhook notifications). A nil
// client falls back to a 10-second-timeout default.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithWeatherProvider overrides the weather integration, primarily for
// tests that want a deterministic fake instead of the HTTP-backed one.
func WithWeatherProvider(p integrations.WeatherProvider) Option {
	return func(o *options) { o.weatherProvider = p }
}

// WithSimProvider overrides the SIM-carrier integration.
func WithSimProvider(p integrations.SimProvider) Option {
	return func(o *options) { o.simProvider = p }
}

// WithGeocodeProvider overrides the reverse-geocoding integration.
func WithGeocodeProvider(p integrations.GeocodeProvider) Option {
	return func(o *options) { o.geocodeProvider = p }
}

// WithNotificationAdapters overrides the channel-type-to-adapter
// routing table the notification consumer dispatches through.
func WithNotificationAdapters(adapters map[notification.ChannelType]notifications.Adapter) Option {
	return func(o *options) { o.notifyAdapters = adapters }
}

// WithoutBackgroundJobs prevents New from registering the alert sweep,
// notification drain, rollup, and weather pull jobs with the lifecycle
// manager. Intended for unit tests that exercise services directly and
// don't want a background goroutine racing the test.
func WithoutBackgroundJobs() Option {
	return func(o *options) { o.skipBackgroundJobs = true }
}

// Application ties every domain service together against a shared
// storage.Stores and manages their background jobs.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	cfg     *config.Config

	Stores storage.Stores

	Identity      *identity.Service
	Entitlements  *entitlement.Service
	Telemetry     *telemetry.Service
	Commands      *commands.Service
	Alerts        *alerts.Service
	Notifications *notifications.Service
	OTA           *ota.Service
	Analytics     *analytics.Service
	Audit         *audit.Sink
	Weather       *weathersvc.Service

	WeatherProvider integrations.WeatherProvider
	SimProvider     integrations.SimProvider
	GeocodeProvider integrations.GeocodeProvider
}

// New builds a fully initialised application against stores and cfg.
func New(stores storage.Stores, cfg *config.Config, log *logger.Logger, opts ...Option) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	if log == nil {
		log = logger.NewDefault("app")
	}

	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	manager := system.NewManager()

	auditSink := audit.New(stores.Audit, log)

	identitySvc := identity.New(stores.Users, stores.Memberships, cfg.JWTSecret, cfg.JWTExpiresIn, cfg.DeviceHMACSecret, log)
	entitlementSvc := entitlement.New(stores.Entitlements, log)
	telemetrySvc := telemetry.New(stores.Devices, stores.Sites, stores.Telemetry, stores.Twins, auditSink, log)
	commandsSvc := commands.New(stores.Devices, stores.Commands, entitlementSvc, auditSink, log)
	otaSvc := ota.New(stores.Firmware, stores.OtaJobs, stores.Devices, log)
	analyticsSvc := analytics.New(stores.Tenants, stores.Devices, stores.Telemetry, stores.Rollups, log)
	alertsSvc := alerts.New(stores.AlertRules, stores.AlertEvents, stores.Devices, stores.Telemetry, stores.Twins, stores.NotificationChannels, stores.NotificationEvents, log)

	adapters := o.notifyAdapters
	if adapters == nil {
		adapters = defaultNotificationAdapters(cfg, httpClient)
	}
	notificationsSvc := notifications.New(stores.NotificationChannels, stores.NotificationEvents, adapters, log)

	weatherProvider := o.weatherProvider
	if weatherProvider == nil {
		weatherProvider = integrations.NewHTTPWeatherProvider(httpClient, cfg.WeatherBaseURL, log)
	}
	simProvider := o.simProvider
	if simProvider == nil {
		simProvider = integrations.NewHTTPSimProvider(httpClient, cfg.SimBaseURL, log)
	}
	geocodeProvider := o.geocodeProvider
	if geocodeProvider == nil {
		geocodeProvider = integrations.NewHTTPGeocodeProvider(httpClient, cfg.GeocodeBaseURL, log)
	}
	weatherSvc := weathersvc.New(stores.Tenants, stores.Sites, stores.Weather, weatherProvider, log)

	application := &Application{
		manager:         manager,
		log:             log,
		cfg:             cfg,
		Stores:          stores,
		Identity:        identitySvc,
		Entitlements:    entitlementSvc,
		Telemetry:       telemetrySvc,
		Commands:        commandsSvc,
		Alerts:          alertsSvc,
		Notifications:   notificationsSvc,
		OTA:             otaSvc,
		Analytics:       analyticsSvc,
		Audit:           auditSink,
		Weather:         weatherSvc,
		WeatherProvider: weatherProvider,
		SimProvider:     simProvider,
		GeocodeProvider: geocodeProvider,
	}

	if !o.skipBackgroundJobs {
		if err := application.registerBackgroundJobs(); err != nil {
			return nil, err
		}
	}

	return application, nil
}

func defaultNotificationAdapters(cfg *config.Config, httpClient *http.Client) map[notification.ChannelType]notifications.Adapter {
	rlCfg := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		rlCfg.RequestsPerSecond = float64(cfg.RateLimitPerMinute) / 60
	}
	if cfg.RateLimitBurst > 0 {
		rlCfg.Burst = cfg.RateLimitBurst
	}

	return map[notification.ChannelType]notifications.Adapter{
		notification.Webhook: notifications.NewWebhookAdapter(rlCfg),
		notification.Email:   notifications.NewEmailAdapter(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, nil),
		notification.SMS:     notifications.NewSMSAdapter(cfg.SMSGatewayURL),
	}
}

func (a *Application) registerBackgroundJobs() error {
	alertInterval := time.Duration(a.cfg.AlertEvalIntervalMinutes) * time.Minute
	if alertInterval <= 0 {
		alertInterval = 5 * time.Minute
	}

	jobs := []system.Service{
		newTickerJob("alert-sweep", alertInterval, a.log, func(ctx context.Context) error {
			return a.Alerts.Sweep(ctx)
		}),
		newTickerJob("notification-drain", notificationDrainInterval, a.log, func(ctx context.Context) error {
			return a.Notifications.Consume(ctx)
		}),
		newCronJob("analytics-rollup", a.cfg.RollupCron, a.log, func(ctx context.Context) error {
			yesterday := time.Now().UTC().AddDate(0, 0, -1)
			return a.Analytics.RollDay(ctx, yesterday)
		}),
		newCronJob("weather-pull", a.cfg.WeatherCron, a.log, func(ctx context.Context) error {
			return a.Weather.Pull(ctx, time.Now().UTC())
		}),
	}

	for _, job := range jobs {
		if err := a.manager.Register(job); err != nil {
			return fmt.Errorf("register %s: %w", job.Name(), err)
		}
	}
	return nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered background jobs.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all registered background jobs.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

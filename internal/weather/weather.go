// Package weather runs the daily per-site weather pull: for every
// site with an established location, fetch a current observation and
// upsert it as that day's snapshot. Per-site failures are logged and
// do not abort the sweep, the same discipline the alert evaluator and
// analytics rollup use for their own per-entity loops.
package weather

import (
	"context"
	"time"

	"github.com/solarfleet/control-plane/internal/integrations"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// Service runs the scheduled weather pull.
type Service struct {
	tenants  storage.TenantStore
	sites    storage.SiteStore
	weather  storage.WeatherStore
	provider integrations.WeatherProvider
	log      *logger.Logger
}

// New creates a weather pull service.
func New(tenants storage.TenantStore, sites storage.SiteStore, weather storage.WeatherStore, provider integrations.WeatherProvider, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("weather")
	}
	return &Service{tenants: tenants, sites: sites, weather: weather, provider: provider, log: log}
}

// Pull fetches and persists a weather snapshot for day across every
// site in every tenant that has an established location.
func (s *Service) Pull(ctx context.Context, day time.Time) error {
	tenants, err := s.tenants.ListTenants(ctx)
	if err != nil {
		return err
	}

	for _, t := range tenants {
		sites, err := s.sites.ListSites(ctx, t.ID)
		if err != nil {
			s.log.WithField("tenant_id", t.ID).WithField("error", err.Error()).Warn("failed to list sites for weather pull")
			continue
		}
		for _, site := range sites {
			if !site.HasLocation() {
				continue
			}
			obs, err := s.provider.Fetch(ctx, *site.Lat, *site.Lon)
			if err != nil {
				s.log.WithField("site_id", site.ID).WithField("error", err.Error()).Warn("weather fetch failed")
				continue
			}
			snap := obs.ToSnapshot(site.ID, day)
			if err := s.weather.UpsertWeatherSnapshot(ctx, snap); err != nil {
				s.log.WithField("site_id", site.ID).WithField("error", err.Error()).Warn("weather snapshot upsert failed")
			}
		}
	}
	return nil
}

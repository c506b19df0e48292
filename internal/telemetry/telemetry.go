// Package telemetry ingests device readings, maintains the per-device
// shadow (twin), and reconciles a site's location from device-reported
// geo on first contact.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/audit"
	domainaudit "github.com/solarfleet/control-plane/internal/domain/audit"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/site"
	"github.com/solarfleet/control-plane/internal/domain/telemetry"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/pkg/logger"
)

// IngestInput is a single telemetry submission.
type IngestInput struct {
	DeviceID string
	Ts       time.Time
	Metrics  map[string]any
	Geo      *telemetry.Geo
}

// IngestResult is returned to the device on a successful ingest.
type IngestResult struct {
	ID       string
	Warnings []string
}

// Service ingests readings and maintains device twins.
type Service struct {
	devices   storage.DeviceStore
	sites     storage.SiteStore
	readings  storage.TelemetryStore
	twins     storage.TwinStore
	auditSink *audit.Sink
	log       *logger.Logger
}

// New creates a telemetry service backed by the provided stores.
func New(devices storage.DeviceStore, sites storage.SiteStore, readings storage.TelemetryStore, twins storage.TwinStore, auditSink *audit.Sink, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("telemetry")
	}
	return &Service{devices: devices, sites: sites, readings: readings, twins: twins, auditSink: auditSink, log: log}
}

// Ingest validates and persists a telemetry submission. authDeviceID is
// the device identity established by the caller's MAC token; it must
// match in.DeviceID.
func (s *Service) Ingest(ctx context.Context, authDeviceID string, in IngestInput) (*IngestResult, error) {
	if authDeviceID != in.DeviceID {
		return nil, apierror.Invalid("authenticated device does not match payload deviceId")
	}

	d, err := s.devices.GetDeviceByID(ctx, in.DeviceID)
	if err != nil {
		return nil, err
	}

	warnings := validateMetrics(in.Metrics)

	reading := &telemetry.Reading{
		ID:       uuid.NewString(),
		DeviceID: d.ID,
		TenantID: d.TenantID,
		Ts:       in.Ts,
		Metrics:  in.Metrics,
		Geo:      in.Geo,
	}
	if err := s.readings.CreateReading(ctx, reading); err != nil {
		return nil, err
	}

	d.LastSeenAt = &in.Ts
	if in.Geo != nil {
		lat, lon := in.Geo.Lat, in.Geo.Lon
		d.GeoLat, d.GeoLon = &lat, &lon
		d.GeoSource = device.GeoSource(in.Geo.Source)
		d.GeoAccuracy = in.Geo.Accuracy
	}
	if err := s.devices.UpdateDevice(ctx, d); err != nil {
		return nil, err
	}

	if err := s.upsertTwin(ctx, d.ID, in); err != nil {
		return nil, err
	}

	if d.SiteID != nil && in.Geo != nil {
		if err := s.reconcileSiteGeo(ctx, d.TenantID, *d.SiteID, in.Geo); err != nil {
			return nil, err
		}
	}

	return &IngestResult{ID: reading.ID, Warnings: warnings}, nil
}

func validateMetrics(metrics map[string]any) []string {
	var warnings []string
	for key, raw := range metrics {
		rng, ok := telemetry.PlausibilityRanges[key]
		if !ok {
			continue
		}
		v, ok := toFloat(raw)
		if !ok {
			continue
		}
		if v < rng.Min || v > rng.Max {
			warnings = append(warnings, fmt.Sprintf("%s=%v is outside plausible range [%v,%v]", key, raw, rng.Min, rng.Max))
		}
	}
	return warnings
}

func (s *Service) upsertTwin(ctx context.Context, deviceID string, in IngestInput) error {
	prior, err := s.twins.GetTwin(ctx, deviceID)
	if err != nil {
		if apiErr, ok := apierror.As(err); !ok || apiErr.Code != apierror.NotFound {
			return err
		}
		prior = &telemetry.Twin{DeviceID: deviceID, DerivedState: map[string]any{}}
	}

	derived := map[string]any{}
	for k, v := range prior.DerivedState {
		derived[k] = v
	}

	for k, v := range in.Metrics {
		derived["last"+capitalize(k)] = v
	}
	if v, ok := in.Metrics["heaterOn"]; ok {
		derived["heaterOn"] = v
	}
	if v, ok := in.Metrics["rssiDbm"]; ok {
		derived["lastRssi"] = v
	}
	derived["isOnline"] = true

	health := 100
	if v, ok := toFloat(in.Metrics["rssiDbm"]); ok && v < -100 {
		health -= 20
	}
	if v, ok := toFloat(in.Metrics["batteryPct"]); ok && v < 20 {
		health -= 30
	}
	if v, ok := toFloat(in.Metrics["tankTempC"]); ok && v > 85 {
		health -= 20
	}
	if health < 0 {
		health = 0
	}
	derived["healthScore"] = health

	if in.Geo != nil {
		derived["lastGeoLat"] = in.Geo.Lat
		derived["lastGeoLon"] = in.Geo.Lon
		derived["lastGeoSource"] = in.Geo.Source
	}

	twin := &telemetry.Twin{DeviceID: deviceID, LastTs: in.Ts, DerivedState: derived}
	return s.twins.UpsertTwin(ctx, twin)
}

// reconcileSiteGeo implements the one-time location fill and the
// large-jump audit check described for the telemetry ingestor.
func (s *Service) reconcileSiteGeo(ctx context.Context, tenantID, siteID string, geo *telemetry.Geo) error {
	st, err := s.sites.GetSiteByID(ctx, siteID)
	if err != nil {
		if apiErr, ok := apierror.As(err); ok && apiErr.Code == apierror.NotFound {
			return nil
		}
		return err
	}

	if !st.LocationLock && !st.HasLocation() {
		lat, lon := geo.Lat, geo.Lon
		now := time.Now().UTC()
		st.Lat, st.Lon = &lat, &lon
		st.LocationSource = site.LocationSource(geo.Source)
		st.LocationAccuracyM = geo.Accuracy
		st.LocationUpdatedAt = &now
		if err := s.sites.UpdateSite(ctx, st); err != nil {
			return err
		}
		if s.auditSink != nil {
			s.auditSink.Record(ctx, &tenantID, nil, domainaudit.ActorDevice, domainaudit.ActionSiteLocationSetFromDevice,
				"site", siteID, map[string]any{"lat": lat, "lon": lon})
		}
		return nil
	}

	if st.HasLocation() {
		distanceKm := haversineKm(*st.Lat, *st.Lon, geo.Lat, geo.Lon)
		if distanceKm > 1 {
			if s.auditSink != nil {
				s.auditSink.Record(ctx, &tenantID, nil, domainaudit.ActorDevice, domainaudit.ActionDeviceGeoLargeJump,
					"site", siteID, map[string]any{
						"oldLat": *st.Lat, "oldLon": *st.Lon,
						"newLat": geo.Lat, "newLon": geo.Lon,
						"distanceKm": distanceKm,
					})
			}
		}
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

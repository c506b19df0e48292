package memory

import (
	"context"
	"strings"
	"time"

	"github.com/solarfleet/control-plane/internal/apierror"
	"github.com/solarfleet/control-plane/internal/domain/device"
	"github.com/solarfleet/control-plane/internal/domain/site"
	"github.com/solarfleet/control-plane/internal/storage"
)

// CreateSite implements storage.SiteStore.
func (s *Store) CreateSite(ctx context.Context, st *site.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st.ID == "" {
		st.ID = newID()
	}
	now := time.Now().UTC()
	st.CreatedAt, st.UpdatedAt = now, now
	cp := *st
	s.sites[st.ID] = &cp
	return nil
}

// GetSite implements storage.SiteStore.
func (s *Store) GetSite(ctx context.Context, tenantID, id string) (*site.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sites[id]
	if !ok || st.TenantID != tenantID {
		return nil, apierror.Missing("site", id)
	}
	cp := *st
	return &cp, nil
}

// GetSiteByID implements storage.SiteStore.
func (s *Store) GetSiteByID(ctx context.Context, id string) (*site.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sites[id]
	if !ok {
		return nil, apierror.Missing("site", id)
	}
	cp := *st
	return &cp, nil
}

// ListSites implements storage.SiteStore.
func (s *Store) ListSites(ctx context.Context, tenantID string) ([]*site.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*site.Site
	for _, st := range s.sites {
		if st.TenantID == tenantID {
			cp := *st
			out = append(out, &cp)
		}
	}
	return out, nil
}

// UpdateSite implements storage.SiteStore.
func (s *Store) UpdateSite(ctx context.Context, st *site.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sites[st.ID]; !ok {
		return apierror.Missing("site", st.ID)
	}
	st.UpdatedAt = time.Now().UTC()
	cp := *st
	s.sites[st.ID] = &cp
	return nil
}

// CreateDevice implements storage.DeviceStore.
func (s *Store) CreateDevice(ctx context.Context, d *device.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.devices {
		if existing.TenantID == d.TenantID && existing.SerialNumber == d.SerialNumber {
			return apierror.Dup("device serial number already registered for this tenant")
		}
	}
	if d.ID == "" {
		d.ID = newID()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	cp := *d
	s.devices[d.ID] = &cp
	return nil
}

// GetDevice implements storage.DeviceStore.
func (s *Store) GetDevice(ctx context.Context, tenantID, id string) (*device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok || d.TenantID != tenantID {
		return nil, apierror.Missing("device", id)
	}
	cp := *d
	return &cp, nil
}

// GetDeviceByID implements storage.DeviceStore.
func (s *Store) GetDeviceByID(ctx context.Context, id string) (*device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return nil, apierror.Missing("device", id)
	}
	cp := *d
	return &cp, nil
}

// GetDeviceBySerial implements storage.DeviceStore.
func (s *Store) GetDeviceBySerial(ctx context.Context, tenantID, serial string) (*device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.devices {
		if d.TenantID == tenantID && d.SerialNumber == serial {
			cp := *d
			return &cp, nil
		}
	}
	return nil, apierror.Missing("device", serial)
}

// ListDevices implements storage.DeviceStore.
func (s *Store) ListDevices(ctx context.Context, tenantID string, filter storage.DeviceFilter) ([]*device.Device, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*device.Device
	for _, d := range s.devices {
		if d.TenantID != tenantID {
			continue
		}
		if filter.SiteID != nil {
			if d.SiteID == nil || *d.SiteID != *filter.SiteID {
				continue
			}
		}
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(d.SerialNumber), needle) &&
				!strings.Contains(strings.ToLower(d.Name), needle) {
				continue
			}
		}
		if filter.BBox != nil {
			lat, lon, ok := deviceCoordinates(d)
			if !ok || !inBBox(lat, lon, *filter.BBox) {
				continue
			}
		}
		cp := *d
		matched = append(matched, &cp)
	}

	total := len(matched)
	offset, limit := filter.Offset, filter.Limit
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return matched[offset:end], total, nil
}

func deviceCoordinates(d *device.Device) (lat, lon float64, ok bool) {
	if d.GeoLat != nil && d.GeoLon != nil {
		return *d.GeoLat, *d.GeoLon, true
	}
	return 0, 0, false
}

func inBBox(lat, lon float64, b storage.BBox) bool {
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// ListDevicesByOwnerAndSite implements storage.DeviceStore.
func (s *Store) ListDevicesByOwnerAndSite(ctx context.Context, siteID, ownerUserID string) ([]*device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*device.Device
	for _, d := range s.devices {
		if d.SiteID != nil && *d.SiteID == siteID && d.OwnerID != nil && *d.OwnerID == ownerUserID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListDevicesBySimICCID implements storage.DeviceStore.
func (s *Store) ListDevicesBySimICCID(ctx context.Context, tenantID, iccid string) ([]*device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*device.Device
	for _, d := range s.devices {
		if d.TenantID == tenantID && d.SimICCID == iccid {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// UpdateDevice implements storage.DeviceStore.
func (s *Store) UpdateDevice(ctx context.Context, d *device.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.devices[d.ID]; !ok {
		return apierror.Missing("device", d.ID)
	}
	d.UpdatedAt = time.Now().UTC()
	cp := *d
	s.devices[d.ID] = &cp
	return nil
}

// CreateDeviceSecret implements storage.DeviceSecretStore.
func (s *Store) CreateDeviceSecret(ctx context.Context, sec *device.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.secrets[sec.DeviceID]; exists {
		return apierror.Dup("device secret already provisioned")
	}
	if sec.ID == "" {
		sec.ID = newID()
	}
	sec.CreatedAt = time.Now().UTC()
	cp := *sec
	s.secrets[sec.DeviceID] = &cp
	return nil
}

// GetDeviceSecretByDeviceID implements storage.DeviceSecretStore.
func (s *Store) GetDeviceSecretByDeviceID(ctx context.Context, deviceID string) (*device.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.secrets[deviceID]
	if !ok {
		return nil, apierror.Missing("deviceSecret", deviceID)
	}
	cp := *sec
	return &cp, nil
}
